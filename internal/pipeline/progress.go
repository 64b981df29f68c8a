package pipeline

// Progress checkpoints, in percent.
const (
	ProgressStart          = 0
	ProgressDownloadSpan   = 5
	ProgressSplitting      = 5
	ProgressTranscribeBase = 10
	ProgressTranscribeSpan = 60
	ProgressProcessing     = 70
	ProgressFilesWritten   = 85
	ProgressDone           = 100
)

// DownloadProgress maps a download percentage onto 0-5.
func DownloadProgress(percent float64) int {
	if percent <= 0 {
		return ProgressStart
	}
	if percent >= 100 {
		return ProgressDownloadSpan
	}
	return int(percent * ProgressDownloadSpan / 100)
}

// ChunkProgress is the progress reported when chunk i of n starts.
func ChunkProgress(i, n int) int {
	if n < 1 {
		n = 1
	}
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return ProgressTranscribeBase + i*ProgressTranscribeSpan/n
}
