package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/user/framegrab/pkg/control"
	"github.com/user/framegrab/pkg/notify"
	"github.com/user/framegrab/pkg/ports"
)

// SetGrabResolution requests a new output size. It returns the command
// generation, or 0 if the size is invalid.
func (w *Worker) SetGrabResolution(width, height int) uint64 {
	if width <= 0 || height <= 0 {
		w.log.Warn("Ignoring invalid grab resolution %dx%d", width, height)
		return 0
	}
	return w.mailbox.Post(control.SetGrabResolution(width, height))
}

// SetDevice switches the source to another capture device.
func (w *Worker) SetDevice(id string) uint64 {
	return w.mailbox.Post(control.SetDevice(id))
}

// PlayFile switches the source to a media file.
func (w *Worker) PlayFile(path string) uint64 {
	return w.mailbox.Post(control.PlayFile(path))
}

// Seek moves playback to position.
func (w *Worker) Seek(position time.Duration) uint64 {
	return w.mailbox.Post(control.Seek(position))
}

// SyncClock aligns the source clock with a reference position.
func (w *Worker) SyncClock(reference time.Duration) uint64 {
	return w.mailbox.Post(control.SyncClock(reference))
}

// SetFullScreenDisplay records the display hint. Grabbing is unaffected.
func (w *Worker) SetFullScreenDisplay(on bool) uint64 {
	return w.mailbox.Post(control.SetFullScreenDisplay(on))
}

// SetFrameDropping switches the pending-notification cap on or off.
func (w *Worker) SetFrameDropping(on bool) uint64 {
	return w.mailbox.Post(control.SetFrameDropping(on))
}

// SetVisible tells the worker whether the display target is shown.
func (w *Worker) SetVisible(visible bool) {
	w.visible.Store(visible)
}

// applyCommands drains the mailbox and applies each command in kind order.
func (w *Worker) applyCommands(ctx context.Context) {
	for _, cmd := range w.mailbox.Drain() {
		if ctx.Err() != nil {
			return
		}
		w.log.Debug("Applying %s", cmd)

		switch cmd.Kind {
		case control.KindSetDevice:
			w.applyDevice(ctx, cmd)
		case control.KindSetGrabResolution:
			w.applyResolution(ctx, cmd)
		case control.KindPlayFile:
			w.applyPlayFile(ctx, cmd)
		case control.KindSeek:
			w.applySeek(ctx, cmd)
		case control.KindSyncClock:
			w.applySyncClock(ctx, cmd)
		case control.KindSetFullScreenDisplay:
			w.applyFullScreen(cmd)
		case control.KindSetFrameDropping:
			w.queue.SetFrameDropping(cmd.Flag)
			w.log.Debug("Frame dropping %t", cmd.Flag)
		}
	}
}

func (w *Worker) applyDevice(ctx context.Context, cmd control.Command) {
	sel, ok := w.source.(ports.DeviceSelector)
	if !ok {
		w.log.Warn("Source %s cannot switch devices", w.source.Name())
		return
	}
	w.attach(ctx, cmd, func(c context.Context) (ports.Format, error) {
		return sel.SetDevice(c, cmd.Device)
	})
}

func (w *Worker) applyPlayFile(ctx context.Context, cmd control.Command) {
	fp, ok := w.source.(ports.FilePlayer)
	if !ok {
		w.log.Warn("Source %s cannot play files", w.source.Name())
		return
	}
	w.attach(ctx, cmd, func(c context.Context) (ports.Format, error) {
		return fp.PlayFile(c, cmd.Path)
	})
}

func (w *Worker) applyResolution(ctx context.Context, cmd control.Command) {
	rz, ok := w.source.(ports.Resizer)
	if !ok {
		w.resolutionFailed(fmt.Errorf("set resolution %dx%d: %w", cmd.Width, cmd.Height, ports.ErrUnsupported))
		return
	}

	w.stateMu.Lock()
	w.desired = ports.Resolution{Width: cmd.Width, Height: cmd.Height}
	w.stateMu.Unlock()

	c, cancel := context.WithTimeout(ctx, w.opts.OpenTimeout)
	format, err := rz.SetResolution(c, cmd.Width, cmd.Height)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.resolutionFailed(fmt.Errorf("set resolution %dx%d: %w", cmd.Width, cmd.Height, err))
		return
	}

	if w.mailbox.Superseded(cmd) {
		w.counters.supersededCommands.Add(1)
		w.log.Debug("Discarding superseded %s", cmd)
		return
	}

	w.stateMu.Lock()
	w.format = format
	w.stateMu.Unlock()

	w.resolutionRequested = true
	w.reconfigurePool(ctx, format)
}

func (w *Worker) resolutionFailed(err error) {
	w.log.Warn("Resolution change failed: %v", err)
	w.queue.Post(notify.Event{Kind: notify.ResolutionChangeFailed, Err: err, Session: w.sessionID()})
}

func (w *Worker) applySeek(ctx context.Context, cmd control.Command) {
	sk, ok := w.source.(ports.Seeker)
	if !ok {
		w.log.Warn("Source %s is not seekable", w.source.Name())
		return
	}

	c, cancel := context.WithTimeout(ctx, w.opts.OpenTimeout)
	err := sk.Seek(c, cmd.Position)
	cancel()
	if err != nil {
		w.log.Warn("Seek to %s failed: %v", cmd.Position, err)
		return
	}

	if pool := w.pool.Load(); pool != nil {
		if n := pool.Invalidate(); n > 0 {
			w.log.Debug("Discarded %d frames from before the seek", n)
		}
	}
	w.awaitSeekFrame = true
}

func (w *Worker) applySyncClock(ctx context.Context, cmd control.Command) {
	cs, ok := w.source.(ports.ClockSyncer)
	if !ok {
		w.log.Debug("Source %s has no clock to synchronize", w.source.Name())
		return
	}

	c, cancel := context.WithTimeout(ctx, w.opts.OpenTimeout)
	defer cancel()
	if err := cs.SyncClock(c, cmd.Position); err != nil {
		w.log.Warn("Clock synchronization failed: %v", err)
	}
}

func (w *Worker) applyFullScreen(cmd control.Command) {
	w.stateMu.Lock()
	w.fullScreen = cmd.Flag
	w.stateMu.Unlock()

	w.queue.Post(notify.Event{Kind: notify.FullScreenDisplayChanged, FullScreen: cmd.Flag, Session: w.sessionID()})
}
