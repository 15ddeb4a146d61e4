// Package mp4source plays the video track of an MP4 file as a media source.
// Frames are emitted in coded form: H.264 access units in Annex B with
// parameter sets in front of every sync sample, or AV1 temporal units as
// stored. Both progressive and fragmented files are supported.
package mp4source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/framegrab/pkg/ports"
)

var (
	errNotOpen = errors.New("mp4source: source not open")
	errNoFile  = errors.New("mp4source: no file to play")
)

// Options configures a Source.
type Options struct {
	// Path is the file opened by Open. PlayFile replaces it.
	Path string
	// Realtime paces Grab at the presentation timestamps of the file.
	Realtime bool
	// Loop restarts at the first sample instead of ending the stream.
	Loop bool
}

// Source reads frames from an MP4 file loaded through ports.FileSystem.
type Source struct {
	fs   ports.FileSystem
	log  ports.Logger
	opts Options

	mu     sync.Mutex
	path   string
	track  *track
	cursor int
	start  time.Time     // wall clock of the presentation origin
	base   time.Duration // presentation time at start
}

// New creates an MP4 file source.
func New(fs ports.FileSystem, log ports.Logger, opts Options) *Source {
	return &Source{
		fs:   fs,
		log:  log.WithComponent("mp4source"),
		opts: opts,
		path: opts.Path,
	}
}

func (s *Source) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return "mp4"
	}
	return "mp4:" + filepath.Base(s.path)
}

// Open loads and indexes the configured file.
func (s *Source) Open(ctx context.Context) (ports.Format, error) {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()
	return s.load(ctx, path)
}

// PlayFile switches to another file and starts at its beginning.
func (s *Source) PlayFile(ctx context.Context, path string) (ports.Format, error) {
	return s.load(ctx, path)
}

func (s *Source) load(ctx context.Context, path string) (ports.Format, error) {
	if path == "" {
		return ports.Format{}, errNoFile
	}
	if err := ctx.Err(); err != nil {
		return ports.Format{}, err
	}
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return ports.Format{}, fmt.Errorf("mp4source: read %s: %w", path, err)
	}
	t, err := indexFile(data)
	if err != nil {
		return ports.Format{}, fmt.Errorf("mp4source: %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.track = t
	s.restartLocked(0)
	s.log.Debug("Indexed %s: %s %s, %d samples, %s", filepath.Base(path), t.codec, t.res, len(t.samples), t.duration())
	return s.formatLocked(), nil
}

func (s *Source) formatLocked() ports.Format {
	t := s.track
	codec := "avc1"
	if t.codec == CodecAV1 {
		codec = "av01"
	}
	return ports.Format{
		Pixel:      t.codec.PixelFormat(),
		Resolution: t.res,
		FrameRate:  t.frameRate(),
		Codec:      codec,
	}
}

// restartLocked moves the cursor and re-anchors pacing so the sample at the
// cursor is due now.
func (s *Source) restartLocked(cursor int) {
	s.cursor = cursor
	s.start = time.Now()
	s.base = 0
	if cursor < len(s.track.samples) {
		s.base = s.track.samples[cursor].pts
	}
}

// Grab copies the next sample into buf.
func (s *Source) Grab(ctx context.Context, buf []byte) (ports.Frame, error) {
	s.mu.Lock()
	if s.track == nil {
		s.mu.Unlock()
		return ports.Frame{}, errNotOpen
	}
	if s.cursor >= len(s.track.samples) {
		if !s.opts.Loop {
			s.mu.Unlock()
			return ports.Frame{}, ports.ErrEndOfStream
		}
		s.restartLocked(0)
	}
	smp := s.track.samples[s.cursor]
	wait := time.Until(s.start.Add(smp.pts - s.base))
	s.mu.Unlock()

	if s.opts.Realtime && wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ports.Frame{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return ports.Frame{}, errNotOpen
	}
	// A seek or file switch during the wait moved the cursor; emit the
	// sample it points at now.
	if s.cursor >= len(s.track.samples) {
		return ports.Frame{}, ports.ErrEndOfStream
	}
	t := s.track
	smp = t.samples[s.cursor]
	s.cursor++

	data := buf[:0]
	switch t.codec {
	case CodecH264:
		if smp.sync {
			data = append(data, t.paramSets...)
		}
		data = appendAnnexB(data, smp.data)
	default:
		data = append(data, smp.data...)
	}

	return ports.Frame{
		Data:      data,
		Width:     t.res.Width,
		Height:    t.res.Height,
		Timestamp: smp.pts,
		Keyframe:  smp.sync,
	}, nil
}

// Close drops the loaded file. Grab fails afterwards until the next Open.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = nil
	return nil
}

// Seek moves to the last sync sample at or before position so decoding can
// restart cleanly. Positions past the end select the last sync sample.
func (s *Source) Seek(ctx context.Context, position time.Duration) error {
	if position < 0 {
		return fmt.Errorf("mp4source: negative seek position %s", position)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return errNotOpen
	}
	idx := s.track.seekIndex(position)
	s.restartLocked(idx)
	s.log.Debug("Seek to %s landed on sample %d at %s", position, idx, s.track.samples[idx].pts)
	return nil
}

// SyncClock re-anchors pacing so the next sample is due when the reference
// clock reaches its timestamp. Offsets beyond one second are treated as a
// jump and the next sample is due immediately.
func (s *Source) SyncClock(ctx context.Context, reference time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return errNotOpen
	}
	if s.cursor >= len(s.track.samples) {
		return nil
	}
	next := s.track.samples[s.cursor].pts
	ahead := next - reference
	s.base = next
	switch {
	case ahead <= 0:
		s.start = time.Now()
	case ahead > time.Second:
		s.log.Debug("Clock %s ahead of reference, not waiting", ahead)
		s.start = time.Now()
	default:
		s.start = time.Now().Add(ahead)
	}
	return nil
}

var (
	_ ports.MediaSource = (*Source)(nil)
	_ ports.FilePlayer  = (*Source)(nil)
	_ ports.Seeker      = (*Source)(nil)
	_ ports.ClockSyncer = (*Source)(nil)
)
