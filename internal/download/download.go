package download

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// ErrBadStatus is returned when the server answers with a non-2xx status.
var ErrBadStatus = errors.New("unexpected HTTP status")

const bufferSize = 32 * 1024

// Progress describes a download in flight. Total is zero when the server
// sent no Content-Length.
type Progress struct {
	Bytes   int64
	Total   int64
	Percent float64
	Speed   float64 // bytes per second
	ETA     time.Duration
}

// SpeedString formats the transfer rate for status output.
func (p Progress) SpeedString() string {
	return humanize.IBytes(uint64(p.Speed)) + "/s"
}

// ProgressFunc receives periodic progress updates.
type ProgressFunc func(Progress)

// Downloader streams remote files to disk.
type Downloader struct {
	client   *http.Client
	interval time.Duration
}

// New returns a Downloader. A zero timeout means no overall limit.
func New(timeout time.Duration) *Downloader {
	return &Downloader{
		client:   &http.Client{Timeout: timeout},
		interval: 500 * time.Millisecond,
	}
}

// WithClient replaces the HTTP client (for testing).
func (d *Downloader) WithClient(c *http.Client) *Downloader {
	d.client = c
	return d
}

// Download fetches url into dest and returns the number of bytes written.
// dest is removed when the transfer fails.
func (d *Downloader) Download(ctx context.Context, url, dest string, onProgress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", "podscribe/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "get %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.Wrapf(ErrBadStatus, "get %s: %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, errors.Wrap(err, "create download dir")
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, errors.Wrap(err, "create download file")
	}

	written, err := d.copy(out, resp.Body, resp.ContentLength, onProgress)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return 0, errors.Wrapf(err, "download %s", url)
	}

	log.Printf("[Download] %s: %s", filepath.Base(dest), humanize.IBytes(uint64(written)))
	return written, nil
}

func (d *Downloader) copy(dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	if total < 0 {
		total = 0
	}
	start := time.Now()
	lastReport := time.Time{}
	buf := make([]byte, bufferSize)
	var written int64

	report := func(final bool) {
		if onProgress == nil {
			return
		}
		now := time.Now()
		if !final && now.Sub(lastReport) < d.interval {
			return
		}
		lastReport = now
		onProgress(progressAt(written, total, now.Sub(start)))
	}

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			report(false)
		}
		if rerr == io.EOF {
			report(true)
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func progressAt(written, total int64, elapsed time.Duration) Progress {
	p := Progress{Bytes: written, Total: total}
	if secs := elapsed.Seconds(); secs > 0 {
		p.Speed = float64(written) / secs
	}
	if total > 0 {
		p.Percent = float64(written) / float64(total) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
		if p.Speed > 0 && written < total {
			p.ETA = time.Duration(float64(total-written) / p.Speed * float64(time.Second))
		}
	}
	return p
}

// FormatETA renders an ETA in minutes with one decimal.
func FormatETA(eta time.Duration) string {
	return fmt.Sprintf("%.1f min", eta.Minutes())
}
