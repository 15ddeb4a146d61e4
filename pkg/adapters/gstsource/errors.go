package gstsource

import (
	"fmt"
	"strings"

	"github.com/user/framegrab/pkg/ports"
)

// Category classifies pipeline errors posted on the bus.
type Category int

const (
	CategoryNetwork Category = iota
	CategoryCodec
	CategoryDevice
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryCodec:
		return "codec"
	case CategoryDevice:
		return "device"
	default:
		return "unknown"
	}
}

var (
	deviceKeywords = []string{
		"device", "busy", "permission denied", "no such file", "v4l2", "cannot identify",
	}
	codecKeywords = []string{
		"codec", "decode", "format", "negotiat", "caps", "no decoder", "missing plugin",
	}
	networkKeywords = []string{
		"connection", "timeout", "timed out", "unreachable", "network", "dns",
		"resolve", "socket", "could not connect", "failed to connect",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Classify categorizes an error from its message and debug string.
// Device problems are checked first, then codec, then network.
func Classify(message, debug string) Category {
	combined := strings.ToLower(message + " " + debug)
	switch {
	case containsAny(combined, deviceKeywords):
		return CategoryDevice
	case containsAny(combined, codecKeywords):
		return CategoryCodec
	case containsAny(combined, networkKeywords):
		return CategoryNetwork
	default:
		return CategoryUnknown
	}
}

// PipelineError is an error posted by a pipeline element.
type PipelineError struct {
	Category Category
	Message  string
	Debug    string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("gstreamer %s error: %s", e.Category, e.Message)
}

// Unwrap lets network errors match ports.ErrTransient so the worker keeps
// retrying while a stream reconnects.
func (e *PipelineError) Unwrap() error {
	if e.Category == CategoryNetwork {
		return ports.ErrTransient
	}
	return nil
}

func newPipelineError(message, debug string) *PipelineError {
	return &PipelineError{Category: Classify(message, debug), Message: message, Debug: debug}
}
