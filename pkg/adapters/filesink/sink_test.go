package filesink

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/user/framegrab/pkg/mocks"
	"github.com/user/framegrab/pkg/ports"
)

// testBaseDir is a platform-independent base directory for tests
var testBaseDir = filepath.Join("debug")

func TestSink_Enabled(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	if !sink.Enabled() {
		t.Error("expected Enabled to return true")
	}
}

func TestSink_SaveStatsJSON(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	data := []byte(`{"commits": 12}`)
	if err := sink.SaveStatsJSON("reconfigure-timeout-12", data); err != nil {
		t.Fatalf("SaveStatsJSON failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "stats", "reconfigure-timeout-12.json")
	saved, ok := fs.GetFile(expectedPath)
	if !ok {
		t.Fatalf("expected file to be saved at %s", expectedPath)
	}
	if string(saved) != string(data) {
		t.Errorf("expected %q, got %q", data, saved)
	}
}

func TestSink_SaveStatsJSONSanitizesName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"final", "final.json"},
		{"../escape", ".._escape.json"},
		{"a/b c", "a_b_c.json"},
		{"..", "stats.json"},
		{"", "stats.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := mocks.NewFileSystem()
			sink := New(testBaseDir, fs, &mocks.Renderer{})

			if err := sink.SaveStatsJSON(tt.name, []byte("{}")); err != nil {
				t.Fatalf("SaveStatsJSON failed: %v", err)
			}
			expectedPath := filepath.Join(testBaseDir, "stats", tt.want)
			if _, ok := fs.GetFile(expectedPath); !ok {
				t.Errorf("expected file at %s, got %v", expectedPath, fs.GetAllFiles())
			}
		})
	}
}

func TestSink_SaveSnapshot(t *testing.T) {
	fs := mocks.NewFileSystem()
	var encoded ports.ImageFormat = -1
	renderer := &mocks.Renderer{
		EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
			encoded = format
			return []byte{0x89, 0x50, 0x4E, 0x47}, nil // PNG header
		},
	}
	sink := New(testBaseDir, fs, renderer)

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	if err := sink.SaveSnapshot(42, img); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if encoded != ports.FormatPNG {
		t.Errorf("expected PNG encoding, got %d", encoded)
	}
	expectedPath := filepath.Join(testBaseDir, "frames", "frame-000042.png")
	if _, ok := fs.GetFile(expectedPath); !ok {
		t.Errorf("expected file to be saved at %s", expectedPath)
	}
}

func TestSink_SaveSnapshotEncodeError(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{
		EncodeImageFunc: func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
			return nil, errors.New("boom")
		},
	}
	sink := New(testBaseDir, fs, renderer)

	err := sink.SaveSnapshot(1, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(fs.GetAllFiles()) != 0 {
		t.Error("expected nothing written")
	}
}

func TestSink_MkdirError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.MkdirAllFunc = func(path string) error {
		return errors.New("read-only file system")
	}
	sink := New(testBaseDir, fs, &mocks.Renderer{})

	if err := sink.SaveStatsJSON("final", []byte("{}")); err == nil {
		t.Error("expected SaveStatsJSON to fail")
	}
	if err := sink.SaveSnapshot(1, image.NewRGBA(image.Rect(0, 0, 1, 1))); err == nil {
		t.Error("expected SaveSnapshot to fail")
	}
}

func TestSink_MultipleSnapshots(t *testing.T) {
	fs := mocks.NewFileSystem()
	renderer := &mocks.Renderer{}
	sink := New(testBaseDir, fs, renderer)

	for i := uint64(1); i <= 10; i++ {
		if err := sink.SaveSnapshot(i, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
			t.Fatalf("SaveSnapshot %d failed: %v", i, err)
		}
	}

	if got := len(fs.GetAllFiles()); got != 10 {
		t.Errorf("expected 10 files, got %d", got)
	}
}
