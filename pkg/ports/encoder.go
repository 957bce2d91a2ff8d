package ports

import (
	"context"
	"image"
)

// EncodedChunk is one encoder output record handed to the muxer.
type EncodedChunk struct {
	FrameIndex  int64
	TimestampUs int64
	IsKeyframe  bool
	Data        []byte
}

// EncoderOptions configures video encoding parameters.
type EncoderOptions struct {
	Bitrate int // Target bitrate in kbps (0 = CRF only)
	Quality int // CRF value: 0-51 (lower is higher quality)
}

// VideoEncoder abstracts an asynchronous video encoder.
//
// Submit returns once the encoder has accepted the frame; the encoded
// chunk for it arrives later on the Chunks channel. Implementations must
// preserve submission order on the output channel (no B-frame reordering).
type VideoEncoder interface {
	// Begin initializes the encoder with the output dimensions and frame rate.
	Begin(width, height int, fps float64, opts EncoderOptions) error

	// Submit hands one frame to the encoder. frameIndex and timestampUs are
	// echoed back on the emitted chunk.
	Submit(img image.Image, frameIndex, timestampUs int64) error

	// Flush signals end of input and blocks until every pending chunk has
	// been emitted and the Chunks channel is closed.
	Flush(ctx context.Context) error

	// Chunks returns the channel of encoded output. Valid after Begin.
	Chunks() <-chan EncodedChunk

	// Close aborts encoding and releases resources. Safe after Flush and on
	// failure paths; closes the Chunks channel if still open.
	Close()
}

// Muxer writes ordered encoded chunks into a playable container.
type Muxer interface {
	// Begin initializes the container track.
	Begin(width, height int, fps float64) error

	// WriteChunk appends one chunk. Chunks must arrive in strictly
	// increasing frame-index order.
	WriteChunk(chunk EncodedChunk) error

	// Finalize ends the stream and returns the complete container bytes.
	Finalize() ([]byte, error)
}
