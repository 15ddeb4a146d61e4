package mp4source

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Eyevinn/mp4ff/av1"
	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framegrab/pkg/mocks"
	"github.com/user/framegrab/pkg/ports"
)

const (
	testTimescale = 1000
	testDur       = 40 // 25 fps
)

var (
	testSPS = []byte{0x67, 0x42, 0xc0, 0x1e, 0xd9}
	testPPS = []byte{0x68, 0xce, 0x3c, 0x80}
)

// buildFragmented writes a single-fragment MP4 with one video track.
// Samples listed in keyframes get the sync flag.
func buildFragmented(t *testing.T, entryType string, cfg mp4.Box, payloads [][]byte, keyframes ...int) []byte {
	t.Helper()

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(testTimescale, "video", "en")
	trak := init.Moov.Trak
	trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateVisualSampleEntryBox(entryType, 64, 48, cfg))
	trak.Tkhd.Width = mp4.Fixed32(64 << 16)
	trak.Tkhd.Height = mp4.Fixed32(48 << 16)

	frag, err := mp4.CreateFragment(1, 1)
	if err != nil {
		t.Fatalf("CreateFragment failed: %v", err)
	}
	sync := make(map[int]bool)
	for _, k := range keyframes {
		sync[k] = true
	}
	for i, p := range payloads {
		flags := mp4.NonSyncSampleFlags
		if sync[i] {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample:     mp4.Sample{Flags: flags, Size: uint32(len(p)), Dur: testDur},
			DecodeTime: uint64(i * testDur),
			Data:       p,
		})
	}

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", entryType, "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		t.Fatalf("encode ftyp: %v", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		t.Fatalf("encode moov: %v", err)
	}
	if err := frag.Encode(&buf); err != nil {
		t.Fatalf("encode fragment: %v", err)
	}
	return buf.Bytes()
}

func av1File(t *testing.T, n int, keyframes ...int) ([]byte, [][]byte) {
	t.Helper()
	payloads := make([][]byte, n)
	for i := range payloads {
		payloads[i] = []byte{0x12, 0x00, 0x32, byte(i), byte(i * 3)}
	}
	cfg := &mp4.Av1CBox{CodecConfRec: av1.CodecConfRec{
		Version:            1,
		SeqLevelIdx0:       8,
		ChromaSubsamplingX: 1,
		ChromaSubsamplingY: 1,
	}}
	return buildFragmented(t, "av01", cfg, payloads, keyframes...), payloads
}

func avccSample(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		l := len(n)
		out = append(out, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
		out = append(out, n...)
	}
	return out
}

func h264File(t *testing.T) []byte {
	t.Helper()
	cfg := &mp4.AvcCBox{DecConfRec: avc.DecConfRec{
		AVCProfileIndication: 66,
		ProfileCompatibility: 0xc0,
		AVCLevelIndication:   30,
		SPSnalus:             [][]byte{testSPS},
		PPSnalus:             [][]byte{testPPS},
	}}
	payloads := [][]byte{
		avccSample([]byte{0x65, 0x88, 0x84}),
		avccSample([]byte{0x41, 0x9a, 0x02}),
		avccSample([]byte{0x06, 0x05}, []byte{0x41, 0x9a, 0x04}),
	}
	return buildFragmented(t, "avc1", cfg, payloads, 0)
}

func newSource(t *testing.T, files map[string][]byte, opts Options) *Source {
	t.Helper()
	fs := mocks.NewFileSystem()
	for path, data := range files {
		if err := fs.WriteFile(path, data); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return New(fs, mocks.NewLogger(), opts)
}

func TestSource_FragmentedAV1(t *testing.T) {
	data, payloads := av1File(t, 5, 0, 3)
	s := newSource(t, map[string][]byte{"/media/clip.mp4": data}, Options{Path: "/media/clip.mp4"})
	ctx := context.Background()

	format, err := s.Open(ctx)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if format.Pixel != ports.PixelAV1 || format.Codec != "av01" {
		t.Errorf("unexpected format %+v", format)
	}
	if format.Resolution != (ports.Resolution{Width: 64, Height: 48}) {
		t.Errorf("unexpected resolution %s", format.Resolution)
	}
	if math.Abs(format.FrameRate-25) > 0.01 {
		t.Errorf("expected 25 fps, got %.3f", format.FrameRate)
	}
	if s.Name() != "mp4:clip.mp4" {
		t.Errorf("unexpected name %q", s.Name())
	}

	for i, want := range payloads {
		f, err := s.Grab(ctx, nil)
		if err != nil {
			t.Fatalf("Grab %d failed: %v", i, err)
		}
		if !bytes.Equal(f.Data, want) {
			t.Errorf("frame %d: got %x, want %x", i, f.Data, want)
		}
		if f.Timestamp != time.Duration(i*testDur)*time.Millisecond {
			t.Errorf("frame %d: unexpected timestamp %s", i, f.Timestamp)
		}
		if f.Keyframe != (i == 0 || i == 3) {
			t.Errorf("frame %d: keyframe = %v", i, f.Keyframe)
		}
	}
	if _, err := s.Grab(ctx, nil); !errors.Is(err, ports.ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}
}

func TestSource_H264AnnexB(t *testing.T) {
	s := newSource(t, map[string][]byte{"a.mp4": h264File(t)}, Options{Path: "a.mp4"})
	ctx := context.Background()

	format, err := s.Open(ctx)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if format.Pixel != ports.PixelH264 || format.Codec != "avc1" {
		t.Errorf("unexpected format %+v", format)
	}

	prefix := append(append(append([]byte{0, 0, 0, 1}, testSPS...), 0, 0, 0, 1), testPPS...)
	want := [][]byte{
		append(append([]byte{}, prefix...), 0, 0, 0, 1, 0x65, 0x88, 0x84),
		{0, 0, 0, 1, 0x41, 0x9a, 0x02},
		{0, 0, 0, 1, 0x06, 0x05, 0, 0, 0, 1, 0x41, 0x9a, 0x04},
	}

	buf := make([]byte, 0, 256)
	for i, w := range want {
		f, err := s.Grab(ctx, buf)
		if err != nil {
			t.Fatalf("Grab %d failed: %v", i, err)
		}
		if !bytes.Equal(f.Data, w) {
			t.Errorf("frame %d: got %x, want %x", i, f.Data, w)
		}
		if &f.Data[0] != &buf[:1][0] {
			t.Errorf("frame %d: expected the frame to be written into the given buffer", i)
		}
	}
}

func TestSource_Seek(t *testing.T) {
	data, _ := av1File(t, 6, 0, 3)
	s := newSource(t, map[string][]byte{"clip.mp4": data}, Options{Path: "clip.mp4"})
	ctx := context.Background()
	if _, err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	tests := []struct {
		name     string
		position time.Duration
		want     time.Duration
	}{
		{"start", 0, 0},
		{"before second keyframe", 100 * time.Millisecond, 0},
		{"on keyframe", 120 * time.Millisecond, 120 * time.Millisecond},
		{"after keyframe", 190 * time.Millisecond, 120 * time.Millisecond},
		{"past end", 10 * time.Second, 120 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Seek(ctx, tt.position); err != nil {
				t.Fatalf("Seek failed: %v", err)
			}
			f, err := s.Grab(ctx, nil)
			if err != nil {
				t.Fatalf("Grab failed: %v", err)
			}
			if f.Timestamp != tt.want || !f.Keyframe {
				t.Errorf("got timestamp %s keyframe %v, want keyframe at %s", f.Timestamp, f.Keyframe, tt.want)
			}
		})
	}

	if err := s.Seek(ctx, -time.Second); err == nil {
		t.Error("expected an error for a negative position")
	}
}

func TestSource_Loop(t *testing.T) {
	data, _ := av1File(t, 2, 0)
	s := newSource(t, map[string][]byte{"clip.mp4": data}, Options{Path: "clip.mp4", Loop: true})
	ctx := context.Background()
	if _, err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var stamps []time.Duration
	for i := 0; i < 5; i++ {
		f, err := s.Grab(ctx, nil)
		if err != nil {
			t.Fatalf("Grab %d failed: %v", i, err)
		}
		stamps = append(stamps, f.Timestamp)
	}
	want := []time.Duration{0, 40 * time.Millisecond, 0, 40 * time.Millisecond, 0}
	for i := range want {
		if stamps[i] != want[i] {
			t.Fatalf("unexpected timestamps %v", stamps)
		}
	}
}

func TestSource_PlayFile(t *testing.T) {
	first, _ := av1File(t, 3, 0)
	s := newSource(t, map[string][]byte{
		"first.mp4":  first,
		"second.mp4": h264File(t),
	}, Options{Path: "first.mp4"})
	ctx := context.Background()
	if _, err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Grab(ctx, nil)
	s.Grab(ctx, nil)

	format, err := s.PlayFile(ctx, "second.mp4")
	if err != nil {
		t.Fatalf("PlayFile failed: %v", err)
	}
	if format.Pixel != ports.PixelH264 {
		t.Errorf("expected the new file's format, got %s", format.Pixel)
	}
	if s.Name() != "mp4:second.mp4" {
		t.Errorf("unexpected name %q", s.Name())
	}
	f, err := s.Grab(ctx, nil)
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}
	if f.Timestamp != 0 || !f.Keyframe {
		t.Errorf("expected the new file to start at its first keyframe, got %s", f.Timestamp)
	}

	if _, err := s.PlayFile(ctx, "missing.mp4"); err == nil {
		t.Error("expected an error for a missing file")
	}
	if s.Name() != "mp4:second.mp4" {
		t.Errorf("a failed switch should keep the current file, got %q", s.Name())
	}
}

func TestSource_OpenErrors(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		files map[string][]byte
		want  error
	}{
		{"no path", "", nil, errNoFile},
		{"missing file", "gone.mp4", nil, nil},
		{"not mp4", "junk.mp4", map[string][]byte{"junk.mp4": []byte("definitely not a movie")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSource(t, tt.files, Options{Path: tt.path})
			_, err := s.Open(context.Background())
			if err == nil {
				t.Fatal("expected Open to fail")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSource_ClosedGrabFails(t *testing.T) {
	data, _ := av1File(t, 2, 0)
	s := newSource(t, map[string][]byte{"clip.mp4": data}, Options{Path: "clip.mp4"})
	ctx := context.Background()
	if _, err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Close()
	if _, err := s.Grab(ctx, nil); err == nil {
		t.Error("expected Grab on a closed source to fail")
	}
	if err := s.Seek(ctx, 0); err == nil {
		t.Error("expected Seek on a closed source to fail")
	}
}

func TestSource_Realtime(t *testing.T) {
	data, _ := av1File(t, 4, 0)
	s := newSource(t, map[string][]byte{"clip.mp4": data}, Options{Path: "clip.mp4", Realtime: true})
	ctx := context.Background()
	if _, err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := s.Grab(ctx, nil); err != nil {
			t.Fatalf("Grab %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("3 frames at 25fps took only %s", elapsed)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Grab(cctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled while waiting for the next frame, got %v", err)
	}
}

func TestSource_SyncClock(t *testing.T) {
	data, _ := av1File(t, 4, 0)
	s := newSource(t, map[string][]byte{"clip.mp4": data}, Options{Path: "clip.mp4", Realtime: true})
	ctx := context.Background()
	if _, err := s.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Grab(ctx, nil)

	// The next sample is at 40ms; a reference at 10ms puts it 30ms ahead.
	if err := s.SyncClock(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("SyncClock failed: %v", err)
	}
	start := time.Now()
	s.Grab(ctx, nil)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected Grab to wait for the reference clock, took %s", elapsed)
	}

	// A reference past the next sample makes it due immediately.
	if err := s.SyncClock(ctx, time.Second); err != nil {
		t.Fatalf("SyncClock failed: %v", err)
	}
	start = time.Now()
	s.Grab(ctx, nil)
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("expected an immediate frame, took %s", elapsed)
	}
}

func TestAppendAnnexB(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", nil, nil},
		{"single", avccSample([]byte{0x65, 0x01}), []byte{0, 0, 0, 1, 0x65, 0x01}},
		{"two units", avccSample([]byte{0x09}, []byte{0x41}), []byte{0, 0, 0, 1, 0x09, 0, 0, 0, 1, 0x41}},
		{"truncated tail", append(avccSample([]byte{0x41}), 0, 0, 0, 9, 0x01), []byte{0, 0, 0, 1, 0x41}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := appendAnnexB(nil, tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}

func TestTrackSeekIndex(t *testing.T) {
	tr := &track{samples: []sample{
		{pts: 0, sync: false},
		{pts: 40 * time.Millisecond, sync: true},
		{pts: 80 * time.Millisecond},
	}}
	if got := tr.seekIndex(10 * time.Millisecond); got != 0 {
		t.Errorf("without an earlier sync sample expected 0, got %d", got)
	}
	if got := tr.seekIndex(90 * time.Millisecond); got != 1 {
		t.Errorf("expected sync sample 1, got %d", got)
	}
}

func TestProbe(t *testing.T) {
	data, _ := av1File(t, 6, 0, 3)
	info, err := Probe(data)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.Codec != CodecAV1 || info.Samples != 6 || info.SyncSamples != 2 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Duration != 240*time.Millisecond {
		t.Errorf("expected 240ms, got %s", info.Duration)
	}

	if _, err := Probe([]byte{0, 0, 0, 8, 'f', 'r', 'e', 'e'}); err == nil {
		t.Error("expected an error for a file without a video track")
	}
}
