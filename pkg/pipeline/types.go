// Package pipeline defines the shared frame types and the error taxonomy
// used across the export pipeline.
package pipeline

import (
	"image"

	"github.com/user/screenshow/pkg/framepool"
)

// DecodedFrame is one raw source frame flowing through the pipeline.
//
// The frame index is 0-based on the output timeline and strictly
// increasing; it is the ordering key. The timestamp is independent of the
// index and may be non-uniform under variable frame rate. Pixel data lives
// behind the pool handle and is owned by exactly one stage at a time.
type DecodedFrame struct {
	Index       int64
	TimestampUs int64
	Handle      framepool.Handle
}

// RenderedFrame is a composited output frame ready for encoding.
type RenderedFrame struct {
	Index       int64
	TimestampUs int64
	Image       image.Image
}

// Phase identifies the orchestrator phase a progress event belongs to.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseRendering    Phase = "rendering"
	PhaseFlushing     Phase = "flushing"
	PhaseFinalizing   Phase = "finalizing"
)

// Progress is reported to the caller as frames complete.
type Progress struct {
	FramesCompleted int64
	TotalFrames     int64
	Phase           Phase
}
