package mocks

import (
	"image"
	"sync"

	"github.com/user/screenshow/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	EnabledValue bool

	mu sync.Mutex

	ConfigJSON   []byte
	SavedFrames  []int64
}

func (m *DebugSink) Enabled() bool {
	return m.EnabledValue
}

func (m *DebugSink) SaveConfigJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfigJSON = data
	return nil
}

func (m *DebugSink) SaveRenderedFrame(index int64, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SavedFrames = append(m.SavedFrames, index)
	return nil
}

var _ ports.DebugSink = (*DebugSink)(nil)
