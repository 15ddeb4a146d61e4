// Package summarizer provides summary generation for capture sessions.
package summarizer

import (
	"time"

	"github.com/user/framegrab/pkg/ports"
)

// Summary contains all data collected during a capture session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Source information
	Source SourceInfo

	// Capture results
	Capture CaptureInfo

	// Display results
	Display DisplayInfo

	// Worker settings
	Settings Settings
}

// SourceInfo describes the media source at the end of the session.
type SourceInfo struct {
	Name       string
	Kind       string
	Pixel      ports.PixelFormat
	Codec      string
	Resolution ports.Resolution
	FrameRate  float64 // nominal rate reported by the source
}

// CaptureInfo contains the worker counters.
type CaptureInfo struct {
	Duration       time.Duration
	LastFrame      uint64
	Grabbed        uint64
	Commits        uint64
	Missing        uint64
	FrameRate      float64 // measured commit rate
	Transient      uint64
	ForcedReleases uint64
	Reclaimed      uint64

	// Set when the session ended with an error instead of a stop or the
	// end of the stream.
	Err error
}

// DisplayInfo contains what the consumer did with the frames.
type DisplayInfo struct {
	Painted    uint64
	Skipped    uint64 // committed frames never borrowed
	Suppressed uint64 // new-frame notifications dropped above the pending cap
	Snapshots  int
}

// Settings contains the capture configuration.
type Settings struct {
	Capacity    int
	WritePolicy string
	PendingCap  int
	DropFrames  bool
	DisplayFPS  float64
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets source information.
func (b *Builder) WithSource(source SourceInfo) *Builder {
	b.summary.Source = source
	return b
}

// WithCapture sets capture results.
func (b *Builder) WithCapture(capture CaptureInfo) *Builder {
	b.summary.Capture = capture
	return b
}

// WithDisplay sets display results.
func (b *Builder) WithDisplay(display DisplayInfo) *Builder {
	b.summary.Display = display
	return b
}

// WithSettings sets the capture configuration.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
