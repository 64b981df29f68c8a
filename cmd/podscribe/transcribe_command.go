package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"podscribe/internal/audio"
	"podscribe/internal/download"
	"podscribe/internal/feed"
	"podscribe/internal/model"
	"podscribe/internal/pipeline"
	"podscribe/internal/storage"
	"podscribe/internal/stt"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var name string
	cmd := &cobra.Command{
		Use:   "transcribe <rss_url> [episode_index]",
		Short: "Download and transcribe one episode",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseEpisodeIndex(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			provider, err := stt.CreateProvider(cfg)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = "."
			}

			store := newReportingStore(storage.NewMemoryStore(), cmd.ErrOrStderr())
			task := model.NewTask(args[0], index)
			if err := store.Create(task); err != nil {
				return err
			}

			p := &pipeline.Pipeline{
				Feed:       feed.NewClient(nil),
				Downloader: download.New(cfg.DownloadTimeout),
				Prober:     audio.NewProber(cfg.FFprobeBin),
				Splitter:   audio.NewSplitter(cfg.FFmpegBin, cfg.MaxChunkBytes()),
				Provider:   provider,
				Store:      store,
				WorkDir:    cfg.WorkDir,
				OutputDir:  outDir,
				Options:    stt.Options{Language: cfg.Language, Prompt: cfg.Prompt},
			}
			result, err := p.Run(cmd.Context(), pipeline.Request{
				TaskID:       task.ID,
				FeedURL:      args[0],
				EpisodeIndex: index,
				OutputName:   name,
			})
			store.finish()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Transcribed %q in %s\n", result.EpisodeTitle, result.TranscriptionTime.Round(time.Second))
			fmt.Fprintf(out, "Text:      %s\n", result.TextPath)
			fmt.Fprintf(out, "Subtitles: %s\n", result.SRTPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for the transcript files")
	cmd.Flags().StringVar(&name, "name", "episode", "File name stem for the transcript files")
	return cmd
}

func parseEpisodeIndex(args []string) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	index, err := strconv.Atoi(args[1])
	if err != nil || index < 0 {
		return 0, fmt.Errorf("episode_index must be a non-negative integer, got %q", args[1])
	}
	return index, nil
}
