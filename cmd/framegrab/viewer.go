package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/user/framegrab/pkg/config"
	"github.com/user/framegrab/pkg/notify"
	"github.com/user/framegrab/pkg/ports"
	"github.com/user/framegrab/pkg/worker"
)

// frameProvider is the part of the worker the viewer borrows frames from.
type frameProvider interface {
	GetCurrentFrameRef() (worker.FrameRef, error)
	ReleaseCurrentFrameRef() error
	Stats() worker.Stats
}

// viewer is a headless display. It paints at its own rate, but only when a
// new-frame notification arrived since the last paint, and saves every Nth
// painted frame to the debug sink.
type viewer struct {
	frames   frameProvider
	queue    *notify.Queue
	renderer ports.Renderer
	sink     ports.DebugSink
	log      ports.Logger
	opts     config.DisplayConfig

	dirty   atomic.Bool
	cancel  context.CancelFunc
	openErr atomic.Pointer[error]

	// Owned by the paint loop.
	painted     uint64
	lastNumber  uint64
	snapshots   int
	snapshotErr bool
}

func newViewer(frames frameProvider, queue *notify.Queue, renderer ports.Renderer, sink ports.DebugSink, log ports.Logger, opts config.DisplayConfig) *viewer {
	return &viewer{
		frames:   frames,
		queue:    queue,
		renderer: renderer,
		sink:     sink,
		log:      log.WithComponent("viewer"),
		opts:     opts,
	}
}

// handler turns notifications into log lines and paint requests.
func (v *viewer) handler() notify.Handler {
	return notify.Funcs{
		NewFrame: func(uint64) {
			v.dirty.Store(true)
		},
		// Nothing in a headless run can post the command a paused worker
		// waits for, so an open error ends the run.
		OpenError: func(source string, err error) {
			v.log.Warn("Source %s reported an error: %v", source, err)
			err = fmt.Errorf("%s: %w", source, err)
			v.openErr.CompareAndSwap(nil, &err)
			v.cancel()
		},
		NewSource: func(source string) {
			v.log.Info("Now showing %s", source)
		},
		NewSourceResolution: func(width, height int) {
			v.log.Info("Source resolution is %dx%d", width, height)
		},
		ResolutionChangeFailed: func(err error) {
			v.log.Warn("Source refused the requested resolution: %v", err)
		},
		SeekComplete: func(frameNumber uint64) {
			v.log.Debug("Seek completed at frame %d", frameNumber)
			v.dirty.Store(true)
		},
		FullScreenDisplayChanged: func(on bool) {
			v.log.Debug("Fullscreen display %t", on)
		},
	}
}

// Run paints until ctx is done, the notification queue is closed (which
// happens when the capture loop exits) or the source reports an open error.
func (v *viewer) Run(ctx context.Context) {
	ctx, v.cancel = context.WithCancel(ctx)
	defer v.cancel()

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		notify.Dispatch(ctx, v.queue, v.handler())
	}()

	paint := time.NewTicker(time.Duration(float64(time.Second) / v.opts.FPS))
	defer paint.Stop()

	var statsC <-chan time.Time
	if v.opts.StatsInterval > 0 {
		stats := time.NewTicker(v.opts.StatsInterval)
		defer stats.Stop()
		statsC = stats.C
	}

	for {
		select {
		case <-dispatched:
			if v.dirty.Swap(false) {
				v.paint()
			}
			return
		case <-paint.C:
			if v.dirty.Swap(false) {
				v.paint()
			}
		case <-statsC:
			v.logStats()
		}
	}
}

// paint borrows the freshest frame and holds it only while it is shown.
func (v *viewer) paint() {
	ref, err := v.frames.GetCurrentFrameRef()
	if err != nil {
		if !errors.Is(err, worker.ErrUnavailable) {
			v.log.Debug("Paint skipped: %v", err)
		}
		return
	}
	defer func() {
		if err := v.frames.ReleaseCurrentFrameRef(); err != nil {
			v.log.Debug("Releasing frame %d: %v", ref.Number, err)
		}
	}()

	if ref.Number == v.lastNumber {
		return
	}
	v.lastNumber = ref.Number
	v.painted++

	if v.opts.SnapshotEvery > 0 && v.painted%uint64(v.opts.SnapshotEvery) == 0 {
		v.snapshot(ref)
	}
}

// snapshot must finish before the reference is released: the image
// aliases the slot.
func (v *viewer) snapshot(ref worker.FrameRef) {
	if !v.sink.Enabled() {
		return
	}
	img, err := v.renderer.FrameImage(ref.Data, ref.Width, ref.Height, ref.Format)
	if err != nil {
		if !v.snapshotErr {
			v.snapshotErr = true
			v.log.Warn("Cannot snapshot %s frames: %v", ref.Format, err)
		}
		return
	}
	if err := v.sink.SaveSnapshot(ref.Number, img); err != nil {
		v.log.Debug("Saving snapshot of frame %d: %v", ref.Number, err)
		return
	}
	v.snapshots++
}

func (v *viewer) logStats() {
	st := v.frames.Stats()
	v.log.Info("Frame %d: %.1f fps, %d painted, %d missing, %d skipped",
		st.LastFrameNumber, st.FrameRate, v.painted, st.MissingFrames, st.Pool.Skipped)
}

// OpenErr returns the first open error the source reported, or nil.
func (v *viewer) OpenErr() error {
	if err := v.openErr.Load(); err != nil {
		return *err
	}
	return nil
}

// Painted returns the number of distinct frames shown.
func (v *viewer) Painted() uint64 {
	return v.painted
}

// Snapshots returns the number of snapshots saved.
func (v *viewer) Snapshots() int {
	return v.snapshots
}
