// Package testpattern provides a synthetic media source that renders test
// frames with a frame counter overlay. It stands in for a camera when no
// capture hardware is available.
package testpattern

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/user/framegrab/pkg/ports"
)

// Maximum output size accepted by SetResolution.
const (
	MaxWidth  = 7680
	MaxHeight = 4320
)

// MaxFPS caps the pattern rate. Faster rates are clamped.
const MaxFPS = 1000

var errNotOpen = errors.New("testpattern: source not open")

// Options configures a Source.
type Options struct {
	Width   int
	Height  int
	FPS     float64
	Pattern string
	// Frames ends the stream after this many frames. Zero means endless.
	Frames uint64
	// Realtime paces Grab at FPS. Without it frames are produced as fast
	// as they are asked for.
	Realtime bool
}

// DefaultOptions returns a 640x480 color bar pattern at 30 fps.
func DefaultOptions() Options {
	return Options{Width: 640, Height: 480, FPS: 30, Pattern: PatternBars, Realtime: true}
}

// Source renders frames through a ports.Renderer.
type Source struct {
	renderer ports.Renderer
	log      ports.Logger
	opts     Options

	mu       sync.Mutex
	open     bool
	res      ports.Resolution
	pattern  string
	frame    uint64
	position time.Duration
	due      time.Time
}

// New creates a test pattern source.
func New(renderer ports.Renderer, log ports.Logger, opts Options) *Source {
	d := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = d.Width, d.Height
	}
	if opts.FPS <= 0 {
		opts.FPS = d.FPS
	}
	if opts.FPS > MaxFPS {
		opts.FPS = MaxFPS
	}
	if opts.Pattern == "" {
		opts.Pattern = d.Pattern
	}
	return &Source{
		renderer: renderer,
		log:      log.WithComponent("testpattern"),
		opts:     opts,
		res:      ports.Resolution{Width: opts.Width, Height: opts.Height},
		pattern:  opts.Pattern,
	}
}

func (s *Source) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "testpattern:" + s.pattern
}

func (s *Source) interval() time.Duration {
	return time.Duration(float64(time.Second) / s.opts.FPS)
}

func (s *Source) formatLocked() ports.Format {
	return ports.Format{Pixel: ports.PixelRGBA, Resolution: s.res, FrameRate: s.opts.FPS}
}

// Open validates the pattern and resets the timeline.
func (s *Source) Open(ctx context.Context) (ports.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !knownPattern(s.pattern) {
		return ports.Format{}, fmt.Errorf("testpattern: unknown pattern %q", s.pattern)
	}
	s.open = true
	s.frame = 0
	s.position = 0
	s.due = time.Now()
	s.log.Debug("Opened %s pattern at %s, %.1f fps", s.pattern, s.res, s.opts.FPS)
	return s.formatLocked(), nil
}

// Grab renders the next frame into buf.
func (s *Source) Grab(ctx context.Context, buf []byte) (ports.Frame, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ports.Frame{}, errNotOpen
	}
	if s.opts.Frames > 0 && s.frame >= s.opts.Frames {
		s.mu.Unlock()
		return ports.Frame{}, ports.ErrEndOfStream
	}
	wait := time.Until(s.due)
	s.mu.Unlock()

	if s.opts.Realtime && wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ports.Frame{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ports.Frame{}, errNotOpen
	}

	res, pattern, n, pos := s.res, s.pattern, s.frame, s.position
	canvas := s.renderer.CreateCanvas(res.Width, res.Height, color.Black)
	drawPattern(canvas, pattern, res.Width, res.Height, n)
	drawOverlay(canvas, res.Width, res.Height, n, pos)

	pix := canvas.RGBA().Pix
	data := buf
	if cap(data) < len(pix) {
		data = make([]byte, len(pix))
	}
	data = data[:len(pix)]
	copy(data, pix)

	step := s.interval()
	s.frame++
	s.position += step
	s.due = s.due.Add(step)
	// After a stall, resume from now instead of bursting to catch up.
	if now := time.Now(); s.due.Before(now.Add(-step)) {
		s.due = now
	}

	return ports.Frame{
		Data:      data,
		Width:     res.Width,
		Height:    res.Height,
		Timestamp: pos,
		Keyframe:  true,
	}, nil
}

// Close stops the source. Grab fails afterwards until the next Open.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// SetResolution changes the size of subsequent frames.
func (s *Source) SetResolution(ctx context.Context, width, height int) (ports.Format, error) {
	if width <= 0 || height <= 0 || width > MaxWidth || height > MaxHeight {
		return ports.Format{}, fmt.Errorf("testpattern: %dx%d: %w", width, height, ports.ErrUnsupported)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res = ports.Resolution{Width: width, Height: height}
	return s.formatLocked(), nil
}

// Devices lists the available patterns.
func (s *Source) Devices(ctx context.Context) ([]ports.Device, error) {
	devices := make([]ports.Device, 0, len(patterns))
	for _, p := range patterns {
		devices = append(devices, ports.Device{ID: p.id, Name: p.name, Description: p.description})
	}
	return devices, nil
}

// SetDevice switches to another pattern and restarts the timeline.
func (s *Source) SetDevice(ctx context.Context, id string) (ports.Format, error) {
	if !knownPattern(id) {
		return ports.Format{}, fmt.Errorf("testpattern: unknown pattern %q", id)
	}
	s.mu.Lock()
	s.pattern = id
	s.mu.Unlock()
	return s.Open(ctx)
}

// Seek moves the timeline. The frame counter follows the position.
func (s *Source) Seek(ctx context.Context, position time.Duration) error {
	if position < 0 {
		return fmt.Errorf("testpattern: negative seek position %s", position)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	step := s.interval()
	if step <= 0 {
		step = time.Second / MaxFPS
	}
	s.frame = uint64(position / step)
	s.position = time.Duration(s.frame) * step
	s.due = time.Now()
	return nil
}

// SyncClock shifts pacing so the next frame is due when the reference clock
// reaches its timestamp. Offsets beyond one second are treated as a jump.
func (s *Source) SyncClock(ctx context.Context, reference time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ahead := s.position - reference
	switch {
	case ahead <= 0:
		s.due = time.Now()
	case ahead > time.Second:
		s.log.Debug("Clock %s ahead of reference, not waiting", ahead)
		s.due = time.Now()
	default:
		s.due = time.Now().Add(ahead)
	}
	return nil
}

var (
	_ ports.MediaSource    = (*Source)(nil)
	_ ports.Resizer        = (*Source)(nil)
	_ ports.DeviceSelector = (*Source)(nil)
	_ ports.Seeker         = (*Source)(nil)
	_ ports.ClockSyncer    = (*Source)(nil)
)
