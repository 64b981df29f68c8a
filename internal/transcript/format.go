package transcript

import (
	"fmt"
	"math"
	"strings"
)

// FormatTimestamp renders seconds as an SRT timestamp, HH:MM:SS,mmm.
// Fractions below a millisecond are truncated; negative input is clamped.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	// 3725.4*1000 is 3725399.9999999995 in float64. Values within a
	// nanosecond below a millisecond boundary count as that boundary; all
	// other fractions truncate.
	ms := int64(math.Floor(seconds*1000 + 1e-6))
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// Text renders the plain-text transcript.
func Text(t Transcript) string {
	return strings.TrimSpace(t.FullText)
}

// SRT renders subtitle records, one per segment. A transcript without
// segments yields a single one-second record holding the full text.
func SRT(t Transcript) string {
	var b strings.Builder
	if len(t.Segments) == 0 {
		writeRecord(&b, 1, 0, 1, Text(t))
		return b.String()
	}
	for i, seg := range t.Segments {
		writeRecord(&b, i+1, seg.Start, seg.End, strings.TrimSpace(seg.Text))
	}
	return b.String()
}

func writeRecord(b *strings.Builder, index int, start, end float64, text string) {
	fmt.Fprintf(b, "%d\n%s --> %s\n%s\n\n", index, FormatTimestamp(start), FormatTimestamp(end), text)
}
