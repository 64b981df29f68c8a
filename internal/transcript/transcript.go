package transcript

// Segment is a timed piece of transcribed text. Times are seconds, local to
// a chunk when produced by a backend and global after stitching.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the stitched result for a whole episode.
type Transcript struct {
	Segments   []Segment `json:"segments"`
	FullText   string    `json:"text"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"`
}
