package main

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/user/framegrab/pkg/config"
	"github.com/user/framegrab/pkg/mocks"
	"github.com/user/framegrab/pkg/notify"
	"github.com/user/framegrab/pkg/ports"
	"github.com/user/framegrab/pkg/worker"
)

// fakeFrames hands out a fixed frame number and counts get/release calls.
type fakeFrames struct {
	number   uint64
	getErr   error
	gets     int
	releases int
}

func (f *fakeFrames) GetCurrentFrameRef() (worker.FrameRef, error) {
	f.gets++
	if f.getErr != nil {
		return worker.FrameRef{}, f.getErr
	}
	return worker.FrameRef{
		Data:   make([]byte, 4*4*4),
		Number: f.number,
		Width:  4,
		Height: 4,
		Format: ports.PixelRGBA,
	}, nil
}

func (f *fakeFrames) ReleaseCurrentFrameRef() error {
	f.releases++
	return nil
}

func (f *fakeFrames) Stats() worker.Stats {
	return worker.Stats{LastFrameNumber: f.number}
}

func testDisplay() config.DisplayConfig {
	return config.DisplayConfig{FPS: 200, SnapshotEvery: 2}
}

func TestViewer_PaintSnapshots(t *testing.T) {
	frames := &fakeFrames{}
	sink := mocks.NewDebugSink(true)
	v := newViewer(frames, notify.NewQueue(notify.DefaultOptions()), &mocks.Renderer{}, sink, mocks.NewLogger(), testDisplay())

	for n := uint64(1); n <= 4; n++ {
		frames.number = n
		v.paint()
	}
	// Painting the same frame again is not a new paint.
	v.paint()

	if v.Painted() != 4 {
		t.Errorf("expected 4 painted frames, got %d", v.Painted())
	}
	if frames.gets != 5 || frames.releases != 5 {
		t.Errorf("every get needs a release: %d gets, %d releases", frames.gets, frames.releases)
	}
	if len(sink.Snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(sink.Snapshots))
	}
	for _, n := range []uint64{2, 4} {
		if _, ok := sink.Snapshots[n]; !ok {
			t.Errorf("missing snapshot of frame %d", n)
		}
	}
}

func TestViewer_PaintUnavailable(t *testing.T) {
	frames := &fakeFrames{getErr: worker.ErrUnavailable}
	log := mocks.NewLogger()
	v := newViewer(frames, notify.NewQueue(notify.DefaultOptions()), &mocks.Renderer{}, mocks.NewDebugSink(true), log, testDisplay())

	v.paint()

	if frames.releases != 0 {
		t.Error("nothing was borrowed, so nothing should be released")
	}
	if v.Painted() != 0 {
		t.Errorf("expected no paints, got %d", v.Painted())
	}
	if len(log.Entries()) != 0 {
		t.Errorf("an empty pool is not worth logging: %+v", log.Entries())
	}
}

func TestViewer_SnapshotFailureLoggedOnce(t *testing.T) {
	frames := &fakeFrames{}
	log := mocks.NewLogger()
	renderer := &mocks.Renderer{
		FrameImageFunc: func([]byte, int, int, ports.PixelFormat) (image.Image, error) {
			return nil, ports.ErrUnsupported
		},
	}
	opts := testDisplay()
	opts.SnapshotEvery = 1
	v := newViewer(frames, notify.NewQueue(notify.DefaultOptions()), renderer, mocks.NewDebugSink(true), log, opts)

	for n := uint64(1); n <= 3; n++ {
		frames.number = n
		v.paint()
	}

	warnings := 0
	for _, e := range log.Entries() {
		if e.Level == ports.LevelWarn {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("expected one warning, got %d", warnings)
	}
}

func TestViewer_RunPaintsOnNotification(t *testing.T) {
	frames := &fakeFrames{number: 7}
	queue := notify.NewQueue(notify.DefaultOptions())
	log := mocks.NewLogger()
	v := newViewer(frames, queue, &mocks.Renderer{}, mocks.NewDebugSink(false), log, testDisplay())

	queue.Post(notify.Event{Kind: notify.NewSource, Source: "fake"})
	queue.PostNewFrame(notify.Event{FrameNumber: 7})
	queue.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the queue closed")
	}

	if v.Painted() != 1 {
		t.Errorf("expected the notified frame to be painted, got %d paints", v.Painted())
	}
	if !log.Contains(ports.LevelInfo, "Now showing") {
		t.Error("expected the new source to be logged")
	}
}

func TestViewer_RunStopsOnCancel(t *testing.T) {
	frames := &fakeFrames{getErr: errors.New("unused")}
	v := newViewer(frames, notify.NewQueue(notify.DefaultOptions()), &mocks.Renderer{}, mocks.NewDebugSink(false), mocks.NewLogger(), testDisplay())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Run(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if frames.gets != 0 {
		t.Errorf("no notification arrived, so nothing should be painted: %d gets", frames.gets)
	}
}

func TestViewer_RunStopsOnOpenError(t *testing.T) {
	frames := &fakeFrames{}
	queue := notify.NewQueue(notify.DefaultOptions())
	log := mocks.NewLogger()
	v := newViewer(frames, queue, &mocks.Renderer{}, mocks.NewDebugSink(false), log, testDisplay())

	// The queue stays open: a paused worker posts nothing further.
	errNoDevice := errors.New("no such device")
	queue.Post(notify.Event{Kind: notify.OpenError, Source: "v4l2:/dev/video9", Err: errNoDevice})

	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after an open error")
	}

	err := v.OpenErr()
	if !errors.Is(err, errNoDevice) {
		t.Fatalf("expected the open error, got %v", err)
	}
	if !strings.Contains(err.Error(), "v4l2:/dev/video9") {
		t.Errorf("expected the source name in %q", err)
	}
	if !log.Contains(ports.LevelWarn, "reported an error") {
		t.Error("expected the open error to be logged")
	}
}
