package transcript

import (
	"fmt"
	"os"
	"path/filepath"
)

// Files are the paths of a rendered transcript.
type Files struct {
	TextPath string
	SRTPath  string
}

// Write renders t to <dir>/<base>.txt and <dir>/<base>.srt. Each file is
// replaced atomically so readers never see partial content.
func Write(dir, base string, t Transcript) (Files, error) {
	if base == "" {
		return Files{}, fmt.Errorf("write transcript: empty file name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create output dir: %w", err)
	}
	files := Files{
		TextPath: filepath.Join(dir, base+".txt"),
		SRTPath:  filepath.Join(dir, base+".srt"),
	}
	if err := writeFileAtomic(files.TextPath, []byte(Text(t))); err != nil {
		return Files{}, err
	}
	if err := writeFileAtomic(files.SRTPath, []byte(SRT(t))); err != nil {
		_ = os.Remove(files.TextPath)
		return Files{}, err
	}
	return files, nil
}

// Remove deletes both files, ignoring ones already gone.
func (f Files) Remove() error {
	for _, path := range []string{f.TextPath, f.SRTPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
