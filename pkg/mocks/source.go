package mocks

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/user/screenshow/pkg/pipeline"
	"github.com/user/screenshow/pkg/ports"
)

// FrameSource is a mock implementation of ports.FrameSource. The default
// behavior synthesizes a solid frame for any timestamp inside the track.
type FrameSource struct {
	InfoFunc        func() ports.SourceInfo
	ReadFrameAtFunc func(ctx context.Context, timestampUs int64) (image.Image, int64, error)
	CloseFunc       func() error

	mu sync.Mutex

	ReadCalls   []int64
	CloseCalled bool
}

// DefaultSourceInfo is the track the zero-value mock describes:
// 640x360, 10 seconds at 30 fps.
func DefaultSourceInfo() ports.SourceInfo {
	return ports.SourceInfo{
		Width:      640,
		Height:     360,
		DurationUs: 10_000_000,
		FrameCount: 300,
		FPS:        30,
		Codec:      "avc1",
	}
}

func (m *FrameSource) Info() ports.SourceInfo {
	if m.InfoFunc != nil {
		return m.InfoFunc()
	}
	return DefaultSourceInfo()
}

func (m *FrameSource) ReadFrameAt(ctx context.Context, timestampUs int64) (image.Image, int64, error) {
	m.mu.Lock()
	m.ReadCalls = append(m.ReadCalls, timestampUs)
	m.mu.Unlock()

	if m.ReadFrameAtFunc != nil {
		return m.ReadFrameAtFunc(ctx, timestampUs)
	}

	info := m.Info()
	if timestampUs >= info.DurationUs {
		return nil, 0, fmt.Errorf("%w: %dus", pipeline.ErrPastEnd, timestampUs)
	}
	img := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	return img, timestampUs, nil
}

func (m *FrameSource) Close() error {
	m.mu.Lock()
	m.CloseCalled = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// ReadTimestamps returns a copy of the requested timestamps.
func (m *FrameSource) ReadTimestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.ReadCalls))
	copy(out, m.ReadCalls)
	return out
}

var _ ports.FrameSource = (*FrameSource)(nil)
