package mocks

import (
	"sync"

	"github.com/user/screenshow/pkg/ports"
)

// Muxer is a mock implementation of ports.Muxer. It records every chunk
// for verification.
type Muxer struct {
	BeginFunc      func(width, height int, fps float64) error
	WriteChunkFunc func(chunk ports.EncodedChunk) error
	FinalizeFunc   func() ([]byte, error)

	mu sync.Mutex

	BeginCalled    bool
	Chunks         []ports.EncodedChunk
	FinalizeCalled bool
}

func (m *Muxer) Begin(width, height int, fps float64) error {
	m.BeginCalled = true
	if m.BeginFunc != nil {
		return m.BeginFunc(width, height, fps)
	}
	return nil
}

func (m *Muxer) WriteChunk(chunk ports.EncodedChunk) error {
	m.mu.Lock()
	m.Chunks = append(m.Chunks, chunk)
	m.mu.Unlock()
	if m.WriteChunkFunc != nil {
		return m.WriteChunkFunc(chunk)
	}
	return nil
}

func (m *Muxer) Finalize() ([]byte, error) {
	m.FinalizeCalled = true
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc()
	}
	// Minimal ftyp header
	return []byte{0, 0, 0, 8, 'f', 't', 'y', 'p'}, nil
}

// WrittenChunks returns a copy of the recorded chunks.
func (m *Muxer) WrittenChunks() []ports.EncodedChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.EncodedChunk, len(m.Chunks))
	copy(out, m.Chunks)
	return out
}

var _ ports.Muxer = (*Muxer)(nil)
