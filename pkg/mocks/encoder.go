package mocks

import (
	"context"
	"image"
	"sync"

	"github.com/user/screenshow/pkg/ports"
)

// VideoEncoder is a mock implementation of ports.VideoEncoder. By default
// it echoes every submitted frame back as a chunk immediately, preserving
// submission order.
type VideoEncoder struct {
	BeginFunc  func(width, height int, fps float64, opts ports.EncoderOptions) error
	SubmitFunc func(img image.Image, frameIndex, timestampUs int64) error
	FlushFunc  func(ctx context.Context) error

	mu     sync.Mutex
	chunks chan ports.EncodedChunk
	closed bool

	// Recorded calls for verification
	BeginCalled bool
	SubmitCalls []SubmitCall
	FlushCalled bool
	CloseCalled bool
}

// SubmitCall records a call to Submit.
type SubmitCall struct {
	FrameIndex  int64
	TimestampUs int64
}

func (m *VideoEncoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	m.BeginCalled = true
	m.chunks = make(chan ports.EncodedChunk, 4096)
	if m.BeginFunc != nil {
		return m.BeginFunc(width, height, fps, opts)
	}
	return nil
}

func (m *VideoEncoder) Submit(img image.Image, frameIndex, timestampUs int64) error {
	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, SubmitCall{FrameIndex: frameIndex, TimestampUs: timestampUs})
	m.mu.Unlock()

	if m.SubmitFunc != nil {
		return m.SubmitFunc(img, frameIndex, timestampUs)
	}
	m.chunks <- ports.EncodedChunk{
		FrameIndex:  frameIndex,
		TimestampUs: timestampUs,
		IsKeyframe:  frameIndex == 0,
		Data:        []byte{0, 0, 0, 1, 0x09},
	}
	return nil
}

func (m *VideoEncoder) Flush(ctx context.Context) error {
	m.FlushCalled = true
	if m.FlushFunc != nil {
		if err := m.FlushFunc(ctx); err != nil {
			return err
		}
	}
	m.closeChunks()
	return nil
}

func (m *VideoEncoder) Chunks() <-chan ports.EncodedChunk {
	return m.chunks
}

func (m *VideoEncoder) Close() {
	m.CloseCalled = true
	m.closeChunks()
}

func (m *VideoEncoder) closeChunks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunks != nil && !m.closed {
		m.closed = true
		close(m.chunks)
	}
}

var _ ports.VideoEncoder = (*VideoEncoder)(nil)
