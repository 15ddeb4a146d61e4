package ports

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors reported by media sources.
var (
	// ErrTransient marks a grab failure that may succeed on the next attempt.
	// Sources wrap it: fmt.Errorf("read sample: %w", ports.ErrTransient).
	ErrTransient = errors.New("transient media source failure")

	// ErrEndOfStream is returned by Grab when the source has no more frames.
	ErrEndOfStream = errors.New("end of stream")

	// ErrUnsupported is returned when a source lacks a requested capability.
	ErrUnsupported = errors.New("operation not supported by media source")
)

// IsTransient reports whether err should be retried on the next grab cycle.
// Grab deadlines count as transient; cancellation does not.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// PixelFormat names the layout of the bytes a source writes into a frame buffer.
type PixelFormat string

const (
	// PixelRGBA is 8-bit RGBA, 4 bytes per pixel.
	PixelRGBA PixelFormat = "rgba"
	// PixelI420 is planar YUV 4:2:0, 1.5 bytes per pixel.
	PixelI420 PixelFormat = "i420"
	// PixelH264 is an H.264 access unit in Annex B form (not decoded).
	PixelH264 PixelFormat = "h264"
	// PixelAV1 is an AV1 temporal unit (not decoded).
	PixelAV1 PixelFormat = "av1"
)

// BytesPerFrame returns the buffer size needed for one frame of the given
// dimensions, or 0 when the format is compressed and the size varies.
func (p PixelFormat) BytesPerFrame(width, height int) int {
	switch p {
	case PixelRGBA:
		return width * height * 4
	case PixelI420:
		return width*height + 2*((width+1)/2)*((height+1)/2)
	default:
		return 0
	}
}

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether no size is known.
func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Format describes what a source currently produces.
type Format struct {
	Pixel      PixelFormat
	Resolution Resolution
	FrameRate  float64 // nominal rate, 0 if unknown
	Codec      string  // informational, e.g. "avc1" for file sources
}

// Frame describes the result of one grab.
type Frame struct {
	// Data holds the frame bytes. It aliases the buffer passed to Grab when
	// that buffer was large enough, otherwise it is a new allocation.
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Duration // presentation time within the source
	Keyframe  bool
}

// Device identifies a selectable capture device.
type Device struct {
	ID          string
	Name        string
	Description string
}

// MediaSource is the minimal capability set a worker needs: open, grab, close.
// Further capabilities are discovered with type assertions on the optional
// interfaces below.
type MediaSource interface {
	// Name returns a human-readable source name used in notifications.
	Name() string

	// Open prepares the source and reports the format it will produce.
	Open(ctx context.Context) (Format, error)

	// Grab waits for the next frame and writes it into buf.
	// Implementations must return promptly when ctx is done.
	Grab(ctx context.Context, buf []byte) (Frame, error)

	// Close releases all source resources.
	Close() error
}

// Resizer is implemented by sources that can change their output size.
type Resizer interface {
	SetResolution(ctx context.Context, width, height int) (Format, error)
}

// DeviceSelector is implemented by sources backed by capture devices.
type DeviceSelector interface {
	Devices(ctx context.Context) ([]Device, error)
	SetDevice(ctx context.Context, id string) (Format, error)
}

// FilePlayer is implemented by sources that can play media files.
type FilePlayer interface {
	PlayFile(ctx context.Context, path string) (Format, error)
}

// Seeker is implemented by sources with a seekable timeline.
type Seeker interface {
	Seek(ctx context.Context, position time.Duration) error
}

// ClockSyncer is implemented by sources that can align their presentation
// clock to an external reference position (e.g. an audio stream).
type ClockSyncer interface {
	SyncClock(ctx context.Context, reference time.Duration) error
}
