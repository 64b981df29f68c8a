package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"podscribe/internal/feed"
)

const episodeListLimit = 10

// newEpisodesCommand lists a feed. It needs no configuration, so it works
// without transcription credentials.
func newEpisodesCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "episodes <rss_url>",
		Short: "List audio episodes in a podcast feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := feed.NewClient(nil).Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeEpisodes(cmd.OutOrStdout(), f, limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", episodeListLimit, "Number of episodes to show")
	return cmd
}

func writeEpisodes(out io.Writer, f *feed.Feed, limit int) {
	if limit <= 0 {
		limit = episodeListLimit
	}
	if f.Title != "" {
		fmt.Fprintf(out, "Podcast: %s\n", f.Title)
	}
	fmt.Fprintf(out, "Found %d episodes\n", len(f.Episodes))

	shown := f.Episodes
	if len(shown) > limit {
		shown = shown[:limit]
	}
	rows := make([][]string, 0, len(shown))
	for _, ep := range shown {
		size := "-"
		if ep.SizeBytes > 0 {
			size = humanize.IBytes(uint64(ep.SizeBytes))
		}
		rows = append(rows, []string{strconv.Itoa(ep.Index), ep.Title, ep.Published, size})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Title", "Published", "Size"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	))
	if rest := len(f.Episodes) - len(shown); rest > 0 {
		fmt.Fprintf(out, "... and %d more episodes\n", rest)
	}
}
