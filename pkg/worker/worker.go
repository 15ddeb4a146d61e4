// Package worker runs the capture loop: it pulls frames from a media source
// into a framepool ring, applies shell commands between grabs and reports
// progress through a notify.Queue.
//
// One goroutine owns the source and the pool. The shell talks to it through
// the command methods (SetGrabResolution, Seek, ...) which only post to a
// mailbox, and through the frame reference protocol
// (GetCurrentFrameRef/ReleaseCurrentFrameRef), which touches the pool under
// its own short critical section.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/user/framegrab/pkg/control"
	"github.com/user/framegrab/pkg/framepool"
	"github.com/user/framegrab/pkg/notify"
	"github.com/user/framegrab/pkg/ports"
)

// Lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("worker: already started")
	ErrStopTimeout    = errors.New("worker: loop did not exit in time")
)

// Worker is the frame producer.
type Worker struct {
	source  ports.MediaSource
	queue   *notify.Queue
	mailbox *control.Mailbox
	log     ports.Logger
	opts    Options

	pool atomic.Pointer[framepool.Pool]
	// finalPool keeps the pool counters after teardown.
	finalPool atomic.Pointer[framepool.Stats]

	refMu sync.Mutex
	ref   *heldRef

	// Owned by the loop goroutine.
	seq                 uint64
	paused              bool
	awaitSeekFrame      bool
	resolutionRequested bool
	scratch             []byte
	transientStreak     int
	lastCommit          time.Time
	emaInterval         float64
	resolutionNotices   *rate.Limiter

	// Read by the shell, written by the loop.
	stateMu    sync.RWMutex
	format     ports.Format
	desired    ports.Resolution
	actual     ports.Resolution
	session    string
	fullScreen bool

	visible   atomic.Bool
	isPaused  atomic.Bool
	lastFrame atomic.Uint64
	frameRate atomic.Uint64 // math.Float64bits
	timing    *timingWindow
	counters  counters

	startMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	exitErr error
}

type counters struct {
	grabbed            atomic.Uint64
	commits            atomic.Uint64
	missing            atomic.Uint64
	transient          atomic.Uint64
	reconfigTimeouts   atomic.Uint64
	staleReleases      atomic.Uint64
	resolutionChanges  atomic.Uint64
	hiddenFrames       atomic.Uint64
	supersededCommands atomic.Uint64
}

// New creates a worker for source. Notifications go to queue.
func New(source ports.MediaSource, queue *notify.Queue, log ports.Logger, opts Options) *Worker {
	opts = opts.withDefaults()
	w := &Worker{
		source:            source,
		queue:             queue,
		mailbox:           control.NewMailbox(),
		log:               log.WithComponent("worker"),
		opts:              opts,
		resolutionNotices: rate.NewLimiter(rate.Every(opts.ResolutionNoticeInterval), 1),
		timing:            newTimingWindow(opts.TimingWindow),
		done:              make(chan struct{}),
	}
	w.visible.Store(opts.Visible)
	return w
}

// Start launches the capture loop.
func (w *Worker) Start(ctx context.Context) error {
	w.startMu.Lock()
	defer w.startMu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	return nil
}

// Stop cancels the loop and waits for it to exit, at most StopTimeout.
// It is safe to call at any time and more than once.
func (w *Worker) Stop() error {
	w.startMu.Lock()
	if !w.started {
		w.startMu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.startMu.Unlock()

	cancel()

	select {
	case <-w.done:
		return nil
	case <-time.After(w.opts.StopTimeout):
		w.log.Error("Capture loop did not stop within %s", w.opts.StopTimeout)
		return ErrStopTimeout
	}
}

// Done is closed when the loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns why the loop exited: nil after Stop, an error wrapping
// ports.ErrEndOfStream at the end of the media, or the fatal grab error.
// It is only meaningful after Done is closed.
func (w *Worker) Err() error {
	select {
	case <-w.done:
		return w.exitErr
	default:
		return nil
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.teardown()

	w.log.Debug("Capture loop started for %s", w.opts.Name)
	w.attach(ctx, control.Command{}, w.source.Open)

	for {
		if ctx.Err() != nil {
			return
		}

		w.applyCommands(ctx)

		if w.paused {
			select {
			case <-ctx.Done():
				return
			case <-w.mailbox.Wake():
			}
			continue
		}

		if err := w.cycle(ctx); err != nil {
			w.exitErr = err
			return
		}
	}
}

// attach opens (or reopens) the source through open and rebuilds the pool.
// On failure the loop pauses until the next command.
func (w *Worker) attach(ctx context.Context, cmd control.Command, open func(context.Context) (ports.Format, error)) {
	name := w.source.Name()

	openCtx, cancel := context.WithTimeout(ctx, w.opts.OpenTimeout)
	format, err := open(openCtx)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("Failed to open source %s: %v", name, err)
		w.setPaused(true)
		w.queue.Post(notify.Event{Kind: notify.OpenError, Source: name, Err: err, Session: w.sessionID()})
		return
	}

	if cmd.Generation != 0 && w.mailbox.Superseded(cmd) {
		w.counters.supersededCommands.Add(1)
		w.log.Debug("Discarding superseded %s", cmd)
		return
	}

	session := uuid.NewString()
	w.stateMu.Lock()
	w.format = format
	w.session = session
	w.actual = ports.Resolution{}
	if w.desired.IsZero() {
		w.desired = format.Resolution
	}
	w.stateMu.Unlock()

	w.setPaused(false)
	w.awaitSeekFrame = false
	w.transientStreak = 0
	w.lastCommit = time.Time{}
	w.emaInterval = 0
	w.timing.reset()

	w.reconfigurePool(ctx, format)

	w.log.Info("Attached source %s (%s %s)", name, format.Pixel, format.Resolution)
	w.queue.Post(notify.Event{Kind: notify.NewSource, Source: name, Session: session})
}

// reconfigurePool replaces the pool with one sized for format. A borrowed
// frame gets ReconfigureTimeout to come back before it is taken over.
func (w *Worker) reconfigurePool(ctx context.Context, format ports.Format) {
	if old := w.pool.Load(); old != nil {
		drained := old.BeginDrain()
		timer := time.NewTimer(w.opts.ReconfigureTimeout)
		select {
		case <-drained:
		case <-timer.C:
			if old.ForceRelease() {
				w.counters.reconfigTimeouts.Add(1)
				w.log.Warn("Frame reference not released within %s; forcing takeover, display is out of sync", w.opts.ReconfigureTimeout)
				w.dumpStats("reconfigure-timeout")
			}
		case <-ctx.Done():
		}
		timer.Stop()
		old.Close()
	}

	slotBytes := format.Pixel.BytesPerFrame(format.Resolution.Width, format.Resolution.Height)
	if slotBytes == 0 {
		slotBytes = w.opts.CompressedSlotBytes
	}
	w.pool.Store(framepool.New(w.opts.Capacity, slotBytes, w.opts.WritePolicy))
	w.log.Debug("Frame pool ready: %d slots of %d bytes", w.opts.Capacity, slotBytes)
}

// cycle performs one grab. A non-nil error ends the loop.
func (w *Worker) cycle(ctx context.Context) error {
	pool := w.pool.Load()
	if pool == nil {
		w.setPaused(true)
		return nil
	}

	ws, err := pool.AcquireWriteSlot()
	busy := errors.Is(err, framepool.ErrBusy)
	if err != nil && !busy {
		w.log.Debug("Frame pool unavailable: %v", err)
		return nil
	}

	// A busy pool still pulls the frame so the source keeps its pace. Unless a
	// slot frees up meanwhile the frame is dropped and its sequence number is
	// never committed.
	buf := w.scratch[:cap(w.scratch)]
	if !busy {
		buf = ws.Buf
	}

	grabCtx, cancel := context.WithTimeout(ctx, w.opts.GrabTimeout)
	frame, err := w.source.Grab(grabCtx, buf)
	cancel()

	if err != nil {
		if ws != nil {
			pool.Abort(ws)
		}
		return w.handleGrabError(ctx, err)
	}
	w.transientStreak = 0
	w.seq++
	w.counters.grabbed.Add(1)

	if busy {
		if cap(frame.Data) > cap(w.scratch) {
			w.scratch = frame.Data[:0]
		}
		// The consumer may have moved on while we were grabbing.
		ws, err = pool.AcquireWriteSlot()
		if err != nil {
			w.counters.missing.Add(1)
			w.log.Debug("Dropped frame %d: no free slot", w.seq)
			return nil
		}
		frame.Data = append(ws.Buf[:0], frame.Data...)
	}

	if err := pool.Commit(ws, w.seq, frame.Data, frame.Width, frame.Height); err != nil {
		w.counters.missing.Add(1)
		w.log.Warn("Commit of frame %d failed: %v", w.seq, err)
		return nil
	}
	w.afterCommit(frame)
	return nil
}

func (w *Worker) handleGrabError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}

	name := w.source.Name()
	switch {
	case errors.Is(err, ports.ErrEndOfStream):
		w.log.Info("End of stream on %s", name)
		return fmt.Errorf("grab from %s: %w", name, err)

	case ports.IsTransient(err):
		w.counters.transient.Add(1)
		w.transientStreak++
		delay := backoff(w.transientStreak, w.opts.TransientBackoff, w.opts.MaxTransientBackoff)
		w.log.Debug("Transient grab failure #%d on %s, retrying in %s: %v", w.transientStreak, name, delay, err)

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		case <-w.mailbox.Wake():
		}
		return nil

	default:
		w.log.Error("Grab from %s failed: %v", name, err)
		w.queue.Post(notify.Event{Kind: notify.OpenError, Source: name, Err: err, Session: w.sessionID()})
		return fmt.Errorf("grab from %s: %w", name, err)
	}
}

func (w *Worker) afterCommit(frame ports.Frame) {
	now := time.Now()
	w.lastFrame.Store(w.seq)
	w.counters.commits.Add(1)
	w.updateFrameRate(now)
	w.timing.add(now)

	session := w.sessionID()
	dims := ports.Resolution{Width: frame.Width, Height: frame.Height}

	w.stateMu.Lock()
	prev := w.actual
	changed := !dims.IsZero() && dims != prev
	requested := changed && w.resolutionRequested && dims == w.desired
	if changed {
		w.actual = dims
	}
	w.stateMu.Unlock()

	if changed {
		if requested {
			w.resolutionRequested = false
		}
		if requested || prev.IsZero() || w.resolutionNotices.Allow() {
			w.counters.resolutionChanges.Add(1)
			w.log.Debug("Source resolution now %s", dims)
			w.queue.Post(notify.Event{Kind: notify.NewSourceResolution, Width: dims.Width, Height: dims.Height, Session: session})
		} else {
			w.log.Debug("Source resolution flapping to %s, notification suppressed", dims)
		}
	}

	if w.awaitSeekFrame {
		w.awaitSeekFrame = false
		w.queue.Post(notify.Event{Kind: notify.SeekComplete, FrameNumber: w.seq, Session: session})
	}

	if w.opts.DropWhenInvisible && !w.visible.Load() {
		w.counters.hiddenFrames.Add(1)
		return
	}
	w.queue.PostNewFrame(notify.Event{FrameNumber: w.seq, Width: frame.Width, Height: frame.Height, Session: session})
}

func (w *Worker) updateFrameRate(now time.Time) {
	if !w.lastCommit.IsZero() {
		dt := now.Sub(w.lastCommit).Seconds()
		if dt > 0 {
			if w.emaInterval == 0 {
				w.emaInterval = dt
			} else {
				a := w.opts.FrameRateSmoothing
				w.emaInterval = a*dt + (1-a)*w.emaInterval
			}
			w.frameRate.Store(math.Float64bits(1 / w.emaInterval))
		}
	}
	w.lastCommit = now
}

func (w *Worker) teardown() {
	if pool := w.pool.Swap(nil); pool != nil {
		if pool.Close() {
			w.log.Warn("Frame reference still held at shutdown; force-released")
		}
		st := pool.Stats()
		w.finalPool.Store(&st)
	}
	if err := w.source.Close(); err != nil {
		w.log.Warn("Closing source %s: %v", w.source.Name(), err)
	}
	w.setPaused(true)
	w.queue.Close()
	w.log.Debug("Capture loop stopped for %s", w.opts.Name)
}

func (w *Worker) setPaused(p bool) {
	w.paused = p
	w.isPaused.Store(p)
}

func (w *Worker) sessionID() string {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.session
}

func (w *Worker) dumpStats(name string) {
	if w.opts.Debug == nil || !w.opts.Debug.Enabled() {
		return
	}
	data, err := json.MarshalIndent(w.Stats(), "", "  ")
	if err != nil {
		w.log.Debug("Encoding stats for %s: %v", name, err)
		return
	}
	name = fmt.Sprintf("%s-%d", name, w.seq)
	if err := w.opts.Debug.SaveStatsJSON(name, data); err != nil {
		w.log.Debug("Saving stats %s: %v", name, err)
	}
}
