package worker

import (
	"time"

	"github.com/user/framegrab/pkg/framepool"
	"github.com/user/framegrab/pkg/ports"
)

// Options configures a Worker.
type Options struct {
	// Name identifies the display target in logs.
	Name string
	// Visible is the initial visibility of the display target.
	Visible bool
	// DropWhenInvisible suppresses new-frame notifications while hidden.
	DropWhenInvisible bool

	// Capacity is the number of frame slots.
	Capacity int
	// WritePolicy decides what a grab does when no slot is free.
	WritePolicy framepool.WritePolicy
	// CompressedSlotBytes is the initial slot size for formats without a
	// fixed frame size. Slots grow when a larger frame arrives.
	CompressedSlotBytes int

	// OpenTimeout bounds Open, SetDevice, PlayFile and SetResolution calls.
	OpenTimeout time.Duration
	// GrabTimeout bounds a single Grab. Expiry counts as a transient failure.
	GrabTimeout time.Duration
	// ReconfigureTimeout bounds the wait for the consumer to release its
	// frame reference before the pool is rebuilt.
	ReconfigureTimeout time.Duration
	// StopTimeout bounds Stop.
	StopTimeout time.Duration

	// TransientBackoff is the first delay after a transient grab failure;
	// consecutive failures double it up to MaxTransientBackoff.
	TransientBackoff    time.Duration
	MaxTransientBackoff time.Duration

	// FrameRateSmoothing is the EMA weight of the newest commit interval.
	FrameRateSmoothing float64
	// TimingWindow is the number of commit timestamps kept for FrameTiming.
	TimingWindow int
	// ResolutionNoticeInterval limits notifications for resolution changes
	// the source makes on its own.
	ResolutionNoticeInterval time.Duration

	// Debug receives diagnostic dumps. Nil disables them.
	Debug ports.DebugSink
}

// DefaultOptions returns the standard worker configuration.
func DefaultOptions() Options {
	return Options{
		Name:                     "video",
		Visible:                  true,
		Capacity:                 3,
		WritePolicy:              framepool.PolicyDrop,
		CompressedSlotBytes:      512 * 1024,
		OpenTimeout:              10 * time.Second,
		GrabTimeout:              2 * time.Second,
		ReconfigureTimeout:       500 * time.Millisecond,
		StopTimeout:              3 * time.Second,
		TransientBackoff:         10 * time.Millisecond,
		MaxTransientBackoff:      500 * time.Millisecond,
		FrameRateSmoothing:       0.1,
		TimingWindow:             64,
		ResolutionNoticeInterval: time.Second,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Name == "" {
		o.Name = d.Name
	}
	if o.Capacity <= 0 {
		o.Capacity = d.Capacity
	}
	if o.CompressedSlotBytes <= 0 {
		o.CompressedSlotBytes = d.CompressedSlotBytes
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = d.OpenTimeout
	}
	if o.GrabTimeout <= 0 {
		o.GrabTimeout = d.GrabTimeout
	}
	if o.ReconfigureTimeout <= 0 {
		o.ReconfigureTimeout = d.ReconfigureTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = d.StopTimeout
	}
	if o.TransientBackoff <= 0 {
		o.TransientBackoff = d.TransientBackoff
	}
	if o.MaxTransientBackoff < o.TransientBackoff {
		o.MaxTransientBackoff = d.MaxTransientBackoff
		if o.MaxTransientBackoff < o.TransientBackoff {
			o.MaxTransientBackoff = o.TransientBackoff
		}
	}
	if o.FrameRateSmoothing <= 0 || o.FrameRateSmoothing > 1 {
		o.FrameRateSmoothing = d.FrameRateSmoothing
	}
	if o.TimingWindow < 2 {
		o.TimingWindow = d.TimingWindow
	}
	if o.ResolutionNoticeInterval <= 0 {
		o.ResolutionNoticeInterval = d.ResolutionNoticeInterval
	}
	return o
}

// backoff returns base * 2^(attempt-1), capped at max.
func backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return max
	}
	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}
