//go:build gstreamer

package gstsource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	"github.com/user/framegrab/pkg/ports"
)

var (
	initOnce   sync.Once
	errNotOpen = errors.New("gstsource: pipeline not running")
)

// captured is a frame copied out of a GStreamer buffer.
type captured struct {
	data   []byte
	width  int
	height int
	pts    time.Duration
}

// pipeline is one running GStreamer pipeline and its outputs.
type pipeline struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
	caps     *gst.Element
	frames   chan captured // holds only the newest frame
	errs     chan error
	done     chan struct{}
	watch    sync.WaitGroup
}

// Source is a media source backed by a GStreamer pipeline.
type Source struct {
	log ports.Logger

	mu     sync.Mutex
	opts   Options
	p      *pipeline
	format ports.Format
}

// New creates a GStreamer source. The pipeline is built by Open.
func New(log ports.Logger, opts Options) *Source {
	return &Source{log: log.WithComponent("gstsource"), opts: opts}
}

func (s *Source) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.opts.Kind {
	case KindV4L2:
		return "v4l2:" + s.opts.Device
	case KindURI:
		return "uri:" + s.opts.URI
	default:
		return "videotestsrc"
	}
}

// Open builds and starts the pipeline.
func (s *Source) Open(ctx context.Context) (ports.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Source) startLocked(ctx context.Context) (ports.Format, error) {
	if err := s.opts.Validate(); err != nil {
		return ports.Format{}, fmt.Errorf("gstsource: %w", err)
	}
	s.stopLocked()
	initOnce.Do(func() { gst.Init(nil) })

	launch := Launch(s.opts)
	s.log.Debug("Creating pipeline: %s", launch)

	gp, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return ports.Format{}, fmt.Errorf("gstsource: create pipeline: %w", err)
	}
	sinkElem, err := gp.GetElementByName("sink")
	if err != nil {
		return ports.Format{}, fmt.Errorf("gstsource: find appsink: %w", err)
	}
	capsElem, err := gp.GetElementByName("caps")
	if err != nil {
		return ports.Format{}, fmt.Errorf("gstsource: find capsfilter: %w", err)
	}

	p := &pipeline{
		pipeline: gp,
		sink:     app.SinkFromElement(sinkElem),
		caps:     capsElem,
		frames:   make(chan captured, 1),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
	p.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: p.onNewSample,
		EOSFunc: func(*app.Sink) {
			p.report(ports.ErrEndOfStream)
		},
	})

	if err := gp.SetState(gst.StatePlaying); err != nil {
		return ports.Format{}, fmt.Errorf("gstsource: start pipeline: %w", err)
	}
	p.watch.Add(1)
	go p.watchBus(s.log)

	s.p = p
	s.format = ports.Format{
		Pixel:      s.opts.pixel(),
		Resolution: ports.Resolution{Width: s.opts.Width, Height: s.opts.Height},
		FrameRate:  s.opts.FPS,
	}
	return s.format, nil
}

// onNewSample copies the newest buffer out of the appsink. An unread
// older frame is replaced.
func (p *pipeline) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	frame := captured{
		data: append([]byte(nil), data...),
		pts:  buffer.PresentationTimestamp(),
	}
	buffer.Unmap()
	if len(frame.data) == 0 {
		return gst.FlowOK
	}

	if caps := sample.GetCaps(); caps != nil && caps.GetSize() > 0 {
		st := caps.GetStructureAt(0)
		if v, err := st.GetValue("width"); err == nil {
			frame.width, _ = v.(int)
		}
		if v, err := st.GetValue("height"); err == nil {
			frame.height, _ = v.(int)
		}
	}

	for {
		select {
		case p.frames <- frame:
			return gst.FlowOK
		default:
		}
		select {
		case <-p.frames:
		default:
		}
	}
}

// report keeps the first unread error.
func (p *pipeline) report(err error) {
	select {
	case p.errs <- err:
	default:
	}
}

func (p *pipeline) watchBus(log ports.Logger) {
	defer p.watch.Done()
	bus := p.pipeline.GetPipelineBus()
	for {
		select {
		case <-p.done:
			return
		default:
		}
		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			perr := newPipelineError(gerr.Error(), gerr.DebugString())
			log.Debug("Pipeline error (%s): %s", perr.Category, perr.Debug)
			p.report(perr)
		case gst.MessageEOS:
			p.report(ports.ErrEndOfStream)
		}
	}
}

func (p *pipeline) drain() {
	for {
		select {
		case <-p.frames:
		default:
			return
		}
	}
}

func (s *Source) stopLocked() error {
	p := s.p
	if p == nil {
		return nil
	}
	s.p = nil
	close(p.done)
	err := p.pipeline.SetState(gst.StateNull)
	p.watch.Wait()
	return err
}

// Grab waits for the next frame from the appsink and copies it into buf.
func (s *Source) Grab(ctx context.Context, buf []byte) (ports.Frame, error) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p == nil {
		return ports.Frame{}, errNotOpen
	}

	select {
	case <-ctx.Done():
		return ports.Frame{}, ctx.Err()
	case err := <-p.errs:
		return ports.Frame{}, err
	case f := <-p.frames:
		if f.width == 0 || f.height == 0 {
			s.mu.Lock()
			f.width, f.height = s.format.Resolution.Width, s.format.Resolution.Height
			s.mu.Unlock()
		}
		data := append(buf[:0], f.data...)
		return ports.Frame{
			Data:      data,
			Width:     f.width,
			Height:    f.height,
			Timestamp: f.pts,
			Keyframe:  true,
		}, nil
	}
}

// Close stops the pipeline.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// SetResolution renegotiates the capsfilter. Frames captured at the old
// size are dropped.
func (s *Source) SetResolution(ctx context.Context, width, height int) (ports.Format, error) {
	if width <= 0 || height <= 0 {
		return ports.Format{}, fmt.Errorf("gstsource: %dx%d: %w", width, height, ports.ErrUnsupported)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.p == nil {
		return ports.Format{}, errNotOpen
	}
	s.p.caps.SetProperty("caps", gst.NewCapsFromString(Caps(s.opts, width, height)))
	s.p.drain()
	s.opts.Width, s.opts.Height = width, height
	s.format.Resolution = ports.Resolution{Width: width, Height: height}
	return s.format, nil
}

// Devices lists Video4Linux devices.
func (s *Source) Devices(ctx context.Context) ([]ports.Device, error) {
	return ScanDevices(DevGlob, SysClass)
}

// SetDevice rebuilds the pipeline around another Video4Linux device.
func (s *Source) SetDevice(ctx context.Context, id string) (ports.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.opts
	s.opts.Kind = KindV4L2
	s.opts.Device = id
	format, err := s.startLocked(ctx)
	if err != nil {
		s.opts = prev
	}
	return format, err
}

// PlayFile rebuilds the pipeline around uridecodebin for path.
func (s *Source) PlayFile(ctx context.Context, path string) (ports.Format, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ports.Format{}, fmt.Errorf("gstsource: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.opts
	s.opts.Kind = KindURI
	s.opts.URI = "file://" + filepath.ToSlash(abs)
	format, err := s.startLocked(ctx)
	if err != nil {
		s.opts = prev
	}
	return format, err
}

// Seek performs a flushing key-unit seek. Only URI pipelines are seekable.
func (s *Source) Seek(ctx context.Context, position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.p == nil {
		return errNotOpen
	}
	if s.opts.Kind != KindURI {
		return fmt.Errorf("gstsource: live %s source: %w", s.opts.Kind, ports.ErrUnsupported)
	}
	if !s.p.pipeline.SeekSimple(int64(position), gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return fmt.Errorf("gstsource: seek to %s rejected", position)
	}
	s.p.drain()
	return nil
}

var (
	_ ports.MediaSource    = (*Source)(nil)
	_ ports.Resizer        = (*Source)(nil)
	_ ports.DeviceSelector = (*Source)(nil)
	_ ports.FilePlayer     = (*Source)(nil)
	_ ports.Seeker         = (*Source)(nil)
)
