package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/user/framegrab/pkg/ports"
)

// MediaSource is a mock implementation of ports.MediaSource and every
// optional capability. Without overrides it produces RGBA frames of the
// current resolution whose first byte is the grab count.
type MediaSource struct {
	mu sync.Mutex

	NameValue string
	Res       ports.Resolution
	DeviceIDs []ports.Device

	// Gate, if set, makes each Grab wait for one receive.
	Gate chan struct{}
	// Interval, if set, makes each Grab sleep before returning.
	Interval time.Duration

	OpenFunc          func(ctx context.Context) (ports.Format, error)
	GrabFunc          func(ctx context.Context, buf []byte) (ports.Frame, error)
	CloseFunc         func() error
	SetResolutionFunc func(ctx context.Context, width, height int) (ports.Format, error)
	SetDeviceFunc     func(ctx context.Context, id string) (ports.Format, error)
	PlayFileFunc      func(ctx context.Context, path string) (ports.Format, error)
	SeekFunc          func(ctx context.Context, position time.Duration) error
	SyncClockFunc     func(ctx context.Context, reference time.Duration) error

	opens       int
	grabs       int
	closes      int
	resolutions []ports.Resolution
	devices     []string
	files       []string
	seeks       []time.Duration
	clockSyncs  []time.Duration
}

// NewMediaSource creates a mock source producing width x height RGBA frames.
func NewMediaSource(width, height int) *MediaSource {
	return &MediaSource{
		NameValue: "mock",
		Res:       ports.Resolution{Width: width, Height: height},
		DeviceIDs: []ports.Device{{ID: "mock0", Name: "Mock camera 0"}, {ID: "mock1", Name: "Mock camera 1"}},
	}
}

func (m *MediaSource) format() ports.Format {
	return ports.Format{Pixel: ports.PixelRGBA, Resolution: m.Res, FrameRate: 30}
}

func (m *MediaSource) Name() string {
	return m.NameValue
}

func (m *MediaSource) Open(ctx context.Context) (ports.Format, error) {
	m.mu.Lock()
	m.opens++
	m.mu.Unlock()
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format(), nil
}

func (m *MediaSource) Grab(ctx context.Context, buf []byte) (ports.Frame, error) {
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return ports.Frame{}, ctx.Err()
		}
	}
	if m.Interval > 0 {
		select {
		case <-time.After(m.Interval):
		case <-ctx.Done():
			return ports.Frame{}, ctx.Err()
		}
	}

	m.mu.Lock()
	m.grabs++
	n := m.grabs
	res := m.Res
	m.mu.Unlock()

	if m.GrabFunc != nil {
		return m.GrabFunc(ctx, buf)
	}

	size := ports.PixelRGBA.BytesPerFrame(res.Width, res.Height)
	data := buf
	if cap(data) < size {
		data = make([]byte, size)
	}
	data = data[:size]
	if size > 0 {
		data[0] = byte(n)
	}
	return ports.Frame{Data: data, Width: res.Width, Height: res.Height}, nil
}

func (m *MediaSource) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MediaSource) SetResolution(ctx context.Context, width, height int) (ports.Format, error) {
	m.mu.Lock()
	m.resolutions = append(m.resolutions, ports.Resolution{Width: width, Height: height})
	m.mu.Unlock()
	if m.SetResolutionFunc != nil {
		return m.SetResolutionFunc(ctx, width, height)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Res = ports.Resolution{Width: width, Height: height}
	return m.format(), nil
}

func (m *MediaSource) Devices(ctx context.Context) ([]ports.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Device(nil), m.DeviceIDs...), nil
}

func (m *MediaSource) SetDevice(ctx context.Context, id string) (ports.Format, error) {
	m.mu.Lock()
	m.devices = append(m.devices, id)
	m.mu.Unlock()
	if m.SetDeviceFunc != nil {
		return m.SetDeviceFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format(), nil
}

func (m *MediaSource) PlayFile(ctx context.Context, path string) (ports.Format, error) {
	m.mu.Lock()
	m.files = append(m.files, path)
	m.mu.Unlock()
	if m.PlayFileFunc != nil {
		return m.PlayFileFunc(ctx, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format(), nil
}

func (m *MediaSource) Seek(ctx context.Context, position time.Duration) error {
	m.mu.Lock()
	m.seeks = append(m.seeks, position)
	m.mu.Unlock()
	if m.SeekFunc != nil {
		return m.SeekFunc(ctx, position)
	}
	return nil
}

func (m *MediaSource) SyncClock(ctx context.Context, reference time.Duration) error {
	m.mu.Lock()
	m.clockSyncs = append(m.clockSyncs, reference)
	m.mu.Unlock()
	if m.SyncClockFunc != nil {
		return m.SyncClockFunc(ctx, reference)
	}
	return nil
}

// Opens returns how many times Open was called.
func (m *MediaSource) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Grabs returns how many frames were grabbed.
func (m *MediaSource) Grabs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grabs
}

// Closes returns how many times Close was called.
func (m *MediaSource) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Resolutions returns the sizes passed to SetResolution.
func (m *MediaSource) Resolutions() []ports.Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Resolution(nil), m.resolutions...)
}

// SelectedDevices returns the ids passed to SetDevice.
func (m *MediaSource) SelectedDevices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.devices...)
}

// PlayedFiles returns the paths passed to PlayFile.
func (m *MediaSource) PlayedFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.files...)
}

// Seeks returns the positions passed to Seek.
func (m *MediaSource) Seeks() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seeks...)
}

// ClockSyncs returns the references passed to SyncClock.
func (m *MediaSource) ClockSyncs() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.clockSyncs...)
}

// BasicSource hides every optional capability of the wrapped source.
type BasicSource struct {
	ports.MediaSource
}

var (
	_ ports.MediaSource    = (*MediaSource)(nil)
	_ ports.Resizer        = (*MediaSource)(nil)
	_ ports.DeviceSelector = (*MediaSource)(nil)
	_ ports.FilePlayer     = (*MediaSource)(nil)
	_ ports.Seeker         = (*MediaSource)(nil)
	_ ports.ClockSyncer    = (*MediaSource)(nil)
)
