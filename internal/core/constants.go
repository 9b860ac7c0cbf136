package core

import "time"

// Status values of an analysis, used in session views and templates
const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// User-facing error messages. They never vary with the failure cause.
const (
	AnalyzeErrorMessage  = "Error processing video. Please check the URL and try again."
	DownloadErrorMessage = "Error downloading video. Please try again."
)

// Thumbnail display box
const (
	ThumbnailWidth  = 320
	ThumbnailHeight = 180
)

// DownloadFilename is the save-as name offered for downloaded videos.
const DownloadFilename = "video"

// Lifetime defaults
const (
	DefaultSessionTTL   = 30 * time.Minute
	DefaultTransientTTL = 2 * time.Minute
	DefaultSweepEvery   = time.Minute
)

// Status is the lifecycle state of the most recent analysis of a session.
type Status string

func (s Status) String() string {
	return string(s)
}

// IsFinished reports whether the analysis has settled.
func (s Status) IsFinished() bool {
	return s == StatusSuccess || s == StatusFailed
}
