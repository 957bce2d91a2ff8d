package ports

import (
	"context"
	"image"
)

// SourceInfo describes a video track opened through a FrameSource.
type SourceInfo struct {
	Width      int
	Height     int
	DurationUs int64   // Track duration in microseconds
	FrameCount int64   // Total number of samples in the track
	FPS        float64 // Nominal frame rate derived from sample durations
	Codec      string  // Sample entry type, e.g. "avc1"
}

// FrameSource is a random-access decode cursor over one video track.
//
// Implementations are not safe for concurrent use; callers that need
// overlapping reads open multiple cursors over the same file.
type FrameSource interface {
	// Info returns static information about the track.
	Info() SourceInfo

	// ReadFrameAt seeks to the sample covering timestampUs and decodes it.
	// It returns the decoded image and the actual sample timestamp, which
	// may differ from the requested one under variable frame rate.
	// Past the end of the track it returns ErrPastEnd from the pipeline
	// error taxonomy (wrapped).
	ReadFrameAt(ctx context.Context, timestampUs int64) (image.Image, int64, error)

	// Close releases decoder resources.
	Close() error
}

// SourceOpener opens a fresh decode cursor. The prefetch layer uses it to
// build its two cursors and to replace a cursor after a seek timeout.
type SourceOpener func() (FrameSource, error)
