// Package notify carries worker notifications to the display shell over a
// bounded event queue.
//
// New-frame signals travel in their own lane whose occupancy is the count of
// pending notifications. With frame dropping enabled a signal is suppressed
// once that count reaches the cap, so a slow consumer never sees more than
// cap queued new-frame events. Control events use a second bounded lane.
// Neither lane ever blocks the worker.
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies a notification.
type Kind int

const (
	NewFrame Kind = iota
	OpenError
	NewSource
	NewSourceResolution
	ResolutionChangeFailed
	SeekComplete
	FullScreenDisplayChanged
)

func (k Kind) String() string {
	switch k {
	case NewFrame:
		return "new-frame"
	case OpenError:
		return "open-error"
	case NewSource:
		return "new-source"
	case NewSourceResolution:
		return "new-source-resolution"
	case ResolutionChangeFailed:
		return "resolution-change-failed"
	case SeekComplete:
		return "seek-complete"
	case FullScreenDisplayChanged:
		return "fullscreen-display-changed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one notification. Fields beyond Kind are filled where relevant.
type Event struct {
	Kind        Kind
	Time        time.Time
	Session     string // id of the source attachment that produced the event
	Source      string // source name (OpenError, NewSource)
	FrameNumber uint64
	Width       int
	Height      int
	FullScreen  bool
	Err         error
}

// Options configures a Queue.
type Options struct {
	// PendingCap is the number of undelivered new-frame signals at which
	// further signals are suppressed while frame dropping is on.
	PendingCap int
	// FrameLaneSize bounds undelivered new-frame signals when frame dropping
	// is off. It is raised to PendingCap if smaller.
	FrameLaneSize int
	// EventLaneSize bounds undelivered control events.
	EventLaneSize int
	// DropFrames is the initial frame-dropping policy.
	DropFrames bool
}

// DefaultOptions returns the queue configuration used by the worker.
func DefaultOptions() Options {
	return Options{
		PendingCap:    2,
		FrameLaneSize: 64,
		EventLaneSize: 32,
		DropFrames:    true,
	}
}

// Stats is a snapshot of queue accounting.
type Stats struct {
	Pending        int
	PostedFrames   uint64
	Suppressed     uint64 // new-frame signals withheld by the pending cap
	Overflowed     uint64 // signals or events lost to a full lane
	PostedEvents   uint64
	DeliveredTotal uint64
}

// Queue is the bounded notification channel between worker and shell.
type Queue struct {
	frames chan Event
	events chan Event
	cap    int

	dropping atomic.Bool

	postedFrames atomic.Uint64
	suppressed   atomic.Uint64
	overflowed   atomic.Uint64
	postedEvents atomic.Uint64
	delivered    atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// NewQueue creates a queue.
func NewQueue(opts Options) *Queue {
	if opts.PendingCap < 1 {
		opts.PendingCap = 1
	}
	if opts.FrameLaneSize < opts.PendingCap {
		opts.FrameLaneSize = opts.PendingCap
	}
	if opts.EventLaneSize < 1 {
		opts.EventLaneSize = 1
	}
	q := &Queue{
		frames: make(chan Event, opts.FrameLaneSize),
		events: make(chan Event, opts.EventLaneSize),
		cap:    opts.PendingCap,
		closed: make(chan struct{}),
	}
	q.dropping.Store(opts.DropFrames)
	return q
}

// SetFrameDropping switches the pending-cap policy for new-frame signals.
func (q *Queue) SetFrameDropping(on bool) {
	q.dropping.Store(on)
}

// FrameDropping reports the current policy.
func (q *Queue) FrameDropping() bool {
	return q.dropping.Load()
}

// Pending returns the number of new-frame signals not yet received.
func (q *Queue) Pending() int {
	return len(q.frames)
}

// PostNewFrame offers a new-frame signal and reports whether it was queued.
// Only the worker calls it, so the cap check cannot race another producer.
func (q *Queue) PostNewFrame(ev Event) bool {
	ev.Kind = NewFrame
	if q.dropping.Load() && len(q.frames) >= q.cap {
		q.suppressed.Add(1)
		return false
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case q.frames <- ev:
		q.postedFrames.Add(1)
		return true
	default:
		q.overflowed.Add(1)
		return false
	}
}

// Post queues a control event and reports whether it fit.
func (q *Queue) Post(ev Event) bool {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case q.events <- ev:
		q.postedEvents.Add(1)
		return true
	default:
		q.overflowed.Add(1)
		return false
	}
}

// Next returns the next notification, control events first. It returns
// false when ctx is done or the queue is closed and drained.
func (q *Queue) Next(ctx context.Context) (Event, bool) {
	select {
	case ev := <-q.events:
		q.delivered.Add(1)
		return ev, true
	default:
	}

	select {
	case ev := <-q.events:
		q.delivered.Add(1)
		return ev, true
	case ev := <-q.frames:
		q.delivered.Add(1)
		return ev, true
	case <-ctx.Done():
		return Event{}, false
	case <-q.closed:
		return q.drainOne()
	}
}

func (q *Queue) drainOne() (Event, bool) {
	select {
	case ev := <-q.events:
		q.delivered.Add(1)
		return ev, true
	default:
	}
	select {
	case ev := <-q.frames:
		q.delivered.Add(1)
		return ev, true
	default:
		return Event{}, false
	}
}

// Close marks the producer side finished. Queued events remain receivable.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Stats returns a snapshot of queue accounting.
func (q *Queue) Stats() Stats {
	return Stats{
		Pending:        len(q.frames),
		PostedFrames:   q.postedFrames.Load(),
		Suppressed:     q.suppressed.Load(),
		Overflowed:     q.overflowed.Load(),
		PostedEvents:   q.postedEvents.Load(),
		DeliveredTotal: q.delivered.Load(),
	}
}
