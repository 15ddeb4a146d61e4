package worker

import (
	"errors"

	"github.com/user/framegrab/pkg/framepool"
	"github.com/user/framegrab/pkg/ports"
)

// Frame reference protocol errors.
var (
	// ErrUnavailable means there is no frame to show: nothing has been
	// committed yet, or the pool is being rebuilt.
	ErrUnavailable = errors.New("worker: no frame available")

	// ErrRefAlreadyTaken is a usage error: the previous reference was not
	// released before asking for another one.
	ErrRefAlreadyTaken = errors.New("worker: frame reference already taken")

	// ErrNoFrameRef is returned by a release without a matching get.
	ErrNoFrameRef = errors.New("worker: no frame reference held")
)

// FrameRef is a borrowed view of the freshest frame. Data must not be used
// after ReleaseCurrentFrameRef.
type FrameRef struct {
	Data      []byte
	Number    uint64
	FrameRate float64
	Width     int
	Height    int
	Format    ports.PixelFormat
}

type heldRef struct {
	pool   *framepool.Pool
	index  int
	number uint64
}

// GetCurrentFrameRef borrows the freshest committed frame without copying.
func (w *Worker) GetCurrentFrameRef() (FrameRef, error) {
	w.refMu.Lock()
	defer w.refMu.Unlock()

	if w.ref != nil {
		return FrameRef{}, ErrRefAlreadyTaken
	}

	pool := w.pool.Load()
	if pool == nil {
		return FrameRef{}, ErrUnavailable
	}

	b, err := pool.TryBorrow()
	if err != nil {
		return FrameRef{}, ErrUnavailable
	}
	w.ref = &heldRef{pool: pool, index: b.Index, number: b.Seq}

	w.stateMu.RLock()
	pixel := w.format.Pixel
	w.stateMu.RUnlock()

	return FrameRef{
		Data:      b.Data,
		Number:    b.Seq,
		FrameRate: w.FrameRate(),
		Width:     b.Width,
		Height:    b.Height,
		Format:    pixel,
	}, nil
}

// ReleaseCurrentFrameRef returns the borrowed frame to the pool. Releasing a
// reference the worker already took back during reconfiguration succeeds.
func (w *Worker) ReleaseCurrentFrameRef() error {
	w.refMu.Lock()
	defer w.refMu.Unlock()

	if w.ref == nil {
		return ErrNoFrameRef
	}
	ref := w.ref
	w.ref = nil

	err := ref.pool.Release(ref.index)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, framepool.ErrForceReleased), errors.Is(err, framepool.ErrNotBorrowed):
		w.counters.staleReleases.Add(1)
		w.log.Debug("Released frame %d after it was taken back", ref.number)
		return nil
	default:
		return err
	}
}

// GetLastFrameNumber returns the sequence number of the newest committed frame.
func (w *Worker) GetLastFrameNumber() uint64 {
	return w.lastFrame.Load()
}

// GetGrabResolution returns the requested size and the size of the last
// committed frame.
func (w *Worker) GetGrabResolution() (desired, actual ports.Resolution) {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.desired, w.actual
}
