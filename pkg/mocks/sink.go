package mocks

import (
	"image"
	"sync"

	"github.com/user/framegrab/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	Stats     map[string][]byte
	Snapshots map[uint64]image.Image
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:   enabled,
		Stats:     make(map[string][]byte),
		Snapshots: make(map[uint64]image.Image),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveStatsJSON(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stats[name] = data
	return nil
}

func (m *DebugSink) SaveSnapshot(frameNumber uint64, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots[frameNumber] = img
	return nil
}

// StatsCount returns how many stats dumps were saved.
func (m *DebugSink) StatsCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Stats)
}

var _ ports.DebugSink = (*DebugSink)(nil)
