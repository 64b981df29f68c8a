package transcript

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrChunkOrder is returned when chunk results are added out of sequence.
var ErrChunkOrder = errors.New("chunk result out of order")

// ChunkResult is one backend result with chunk-local segment times.
type ChunkResult struct {
	Index      int
	Text       string
	Segments   []Segment
	Language   string
	Confidence float64
}

// Stitcher merges per-chunk results into one global timeline. Chunk i is
// assumed to start at i*total/n seconds.
type Stitcher struct {
	total        float64
	n            int
	languageHint string

	next       int
	lastStart  float64
	segments   []Segment
	texts      []string
	language   string
	confidence float64
}

// NewStitcher prepares a stitcher for n chunks of an asset lasting total
// seconds.
func NewStitcher(total float64, n int, languageHint string) *Stitcher {
	if n < 1 {
		n = 1
	}
	if total < 0 {
		total = 0
	}
	return &Stitcher{total: total, n: n, languageHint: languageHint}
}

// Offset is the global start time of chunk i.
func (s *Stitcher) Offset(i int) float64 {
	return float64(i) * s.total / float64(s.n)
}

// Add appends the next chunk. Results must arrive in index order.
func (s *Stitcher) Add(r ChunkResult) error {
	if r.Index != s.next {
		return fmt.Errorf("%w: got chunk %d, want %d", ErrChunkOrder, r.Index, s.next)
	}
	if r.Index >= s.n {
		return fmt.Errorf("%w: chunk %d exceeds count %d", ErrChunkOrder, r.Index, s.n)
	}
	s.next++

	local := append([]Segment(nil), r.Segments...)
	sort.SliceStable(local, func(a, b int) bool { return local[a].Start < local[b].Start })

	offset := s.Offset(r.Index)
	for _, seg := range local {
		start := max(seg.Start, 0) + offset
		end := seg.End + offset
		if len(s.segments) > 0 && start < s.lastStart {
			start = s.lastStart
		}
		if end < start {
			end = start
		}
		s.lastStart = start
		s.segments = append(s.segments, Segment{Start: start, End: end, Text: strings.TrimSpace(seg.Text)})
	}

	if text := strings.TrimSpace(r.Text); text != "" {
		s.texts = append(s.texts, text)
	}
	if s.language == "" {
		s.language = r.Language
	}
	s.confidence += r.Confidence
	return nil
}

// Transcript returns the merged result of the chunks added so far.
func (s *Stitcher) Transcript() Transcript {
	language := s.language
	if language == "" {
		language = s.languageHint
	}
	var confidence float64
	if s.next > 0 {
		confidence = min(max(s.confidence/float64(s.next), 0), 1)
	}
	return Transcript{
		Segments:   append([]Segment(nil), s.segments...),
		FullText:   strings.Join(s.texts, " "),
		Language:   language,
		Confidence: confidence,
	}
}

// Stitch merges ordered chunk results in one call.
func Stitch(total float64, languageHint string, results []ChunkResult) (Transcript, error) {
	s := NewStitcher(total, len(results), languageHint)
	for _, r := range results {
		if err := s.Add(r); err != nil {
			return Transcript{}, err
		}
	}
	return s.Transcript(), nil
}
