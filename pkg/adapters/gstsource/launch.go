// Package gstsource captures frames through a GStreamer pipeline ending in
// an appsink. The pipeline itself needs cgo and is only built with the
// gstreamer build tag; pipeline descriptions, error classification and
// device discovery are plain Go and always available.
package gstsource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/framegrab/pkg/ports"
)

// Kind selects the element that feeds the pipeline.
type Kind string

const (
	// KindV4L2 reads a Video4Linux device such as /dev/video0.
	KindV4L2 Kind = "v4l2"
	// KindURI decodes a file or network stream with uridecodebin.
	KindURI Kind = "uri"
	// KindTest uses videotestsrc.
	KindTest Kind = "test"
)

// Options configures a Source.
type Options struct {
	Kind   Kind
	Device string // device node for KindV4L2
	URI    string // location for KindURI
	// Pattern is the videotestsrc pattern for KindTest.
	Pattern string
	Width   int
	Height  int
	FPS     float64
	Pixel   ports.PixelFormat // PixelRGBA or PixelI420
}

// DefaultOptions returns a live test source producing 640x480 RGBA at 30 fps.
func DefaultOptions() Options {
	return Options{
		Kind:    KindTest,
		Pattern: "smpte",
		Width:   640,
		Height:  480,
		FPS:     30,
		Pixel:   ports.PixelRGBA,
	}
}

// Validate checks that the options describe a buildable pipeline.
func (o Options) Validate() error {
	var errs []error
	switch o.Kind {
	case KindV4L2:
		if o.Device == "" {
			errs = append(errs, errors.New("v4l2 source needs a device"))
		}
	case KindURI:
		if o.URI == "" {
			errs = append(errs, errors.New("uri source needs a uri"))
		}
	case KindTest:
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", o.Kind))
	}
	if o.Width < 0 || o.Height < 0 || (o.Width == 0) != (o.Height == 0) {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", o.Width, o.Height))
	}
	if o.FPS < 0 {
		errs = append(errs, fmt.Errorf("invalid frame rate %g", o.FPS))
	}
	switch o.Pixel {
	case ports.PixelRGBA, ports.PixelI420, "":
	default:
		errs = append(errs, fmt.Errorf("unsupported pixel format %q", o.Pixel))
	}
	return errors.Join(errs...)
}

func (o Options) live() bool {
	return o.Kind != KindURI
}

func (o Options) pixel() ports.PixelFormat {
	if o.Pixel == "" {
		return ports.PixelRGBA
	}
	return o.Pixel
}

// Caps builds the raw video caps enforced before the appsink. Zero sizes
// leave the size to negotiation; the frame rate is only pinned for live
// sources.
func Caps(o Options, width, height int) string {
	var b strings.Builder
	b.WriteString("video/x-raw,format=")
	if o.pixel() == ports.PixelI420 {
		b.WriteString("I420")
	} else {
		b.WriteString("RGBA")
	}
	if width > 0 && height > 0 {
		fmt.Fprintf(&b, ",width=%d,height=%d", width, height)
	}
	if o.live() && o.FPS > 0 {
		num, den := fraction(o.FPS)
		fmt.Fprintf(&b, ",framerate=%d/%d", num, den)
	}
	return b.String()
}

// fraction turns a frame rate into a GStreamer fraction. Rates below one
// become 1/N; NTSC rates like 29.97 map to 30000/1001, other fractional
// rates to N/1000.
func fraction(fps float64) (int, int) {
	if fps < 1 {
		return 1, int(1/fps + 0.5)
	}
	whole := float64(int(fps + 0.5))
	switch {
	case fps == whole:
		return int(whole), 1
	case abs(fps*1.001-whole) < 0.01:
		return int(whole) * 1000, 1001
	default:
		return int(fps*1000 + 0.5), 1000
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Launch builds the gst-launch description for the options. The capsfilter
// is named "caps" and the appsink "sink".
func Launch(o Options) string {
	var src string
	switch o.Kind {
	case KindV4L2:
		src = "v4l2src device=" + quote(o.Device)
	case KindURI:
		src = "uridecodebin uri=" + quote(o.URI)
	default:
		pattern := o.Pattern
		if pattern == "" {
			pattern = "smpte"
		}
		src = "videotestsrc is-live=true pattern=" + pattern
	}

	parts := []string{src, "videoconvert", "videoscale"}
	if o.live() && o.FPS > 0 {
		parts = append(parts, "videorate drop-only=true")
	}
	parts = append(parts,
		"capsfilter name=caps caps="+quote(Caps(o, o.Width, o.Height)),
		// Files are paced by the pipeline clock, live sources by the device.
		fmt.Sprintf("appsink name=sink sync=%t max-buffers=1 drop=true", !o.live()),
	)
	return strings.Join(parts, " ! ")
}
