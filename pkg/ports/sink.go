package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate results.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveConfigJSON saves the effective render configuration as JSON.
	SaveConfigJSON(data []byte) error

	// SaveRenderedFrame saves one composited frame.
	SaveRenderedFrame(index int64, img image.Image) error
}
