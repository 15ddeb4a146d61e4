package summarizer

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/framegrab/pkg/mocks"
	"github.com/user/framegrab/pkg/ports"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Source: SourceInfo{
			Name:       "mp4:clip.mp4",
			Kind:       "mp4",
			Pixel:      ports.PixelH264,
			Codec:      "avc1",
			Resolution: ports.Resolution{Width: 1280, Height: 720},
			FrameRate:  25,
		},
		Capture: CaptureInfo{
			Duration:  4 * time.Second,
			LastFrame: 100,
			Grabbed:   100,
			Commits:   96,
			Missing:   4,
			FrameRate: 24.9,
		},
		Display: DisplayInfo{
			Painted:   90,
			Skipped:   6,
			Snapshots: 3,
		},
		Settings: Settings{
			Capacity:    3,
			WritePolicy: "drop",
			PendingCap:  2,
			DropFrames:  true,
			DisplayFPS:  60,
		},
	}
}

func TestMarkdownFormatter_Format_Basic(t *testing.T) {
	result := NewMarkdownFormatter().Format(sampleSummary())

	checks := []string{
		"# Capture Summary",
		"2024-01-15T10:30:00Z",
		"mp4:clip.mp4",
		"h264 (avc1)",
		"1280x720",
		"25.00 fps",
		"| Missing | 4 (4.0%) |",
		"| Painted | 90 (93.8%) |",
		"| Write Policy | drop |",
		"| Frame Dropping | On |",
		"| Result | Completed |",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q\n%s", check, result)
		}
	}
}

func TestMarkdownFormatter_Format_Empty(t *testing.T) {
	result := NewMarkdownFormatter().Format(NewSummary())

	if !strings.Contains(result, "| Resolution | N/A |") {
		t.Error("expected N/A for an unknown resolution")
	}
	if !strings.Contains(result, "| Measured Frame Rate | N/A |") {
		t.Error("expected N/A for an unknown frame rate")
	}
	if !strings.Contains(result, "| Missing | 0 |") {
		t.Error("expected a bare count when nothing was grabbed")
	}
}

func TestMarkdownFormatter_Format_Failed(t *testing.T) {
	s := sampleSummary()
	s.Capture.Err = errors.New("device unplugged")

	result := NewMarkdownFormatter().Format(s)
	if !strings.Contains(result, "Failed: device unplugged") {
		t.Errorf("expected the failure in the report\n%s", result)
	}
}

func TestMarkdownFormatter_WithTranslator(t *testing.T) {
	translator := func(key string) string {
		translations := map[string]string{
			"Capture Summary": "キャプチャサマリー",
			"Source":          "ソース",
			"Item":            "項目",
		}
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	}

	result := NewMarkdownFormatter(WithTranslator(translator)).Format(sampleSummary())

	for _, want := range []string{"# キャプチャサマリー", "## ソース", "| 項目 | Value |"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(FormatFunc(func(s *Summary) string { return "report " + s.Source.Name }), fs)

	path := filepath.Join("out", "summary.md")
	if err := w.Write(path, &Summary{Source: SourceInfo{Name: "cam"}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, ok := fs.GetFile(path)
	if !ok {
		t.Fatal("summary was not written")
	}
	if string(data) != "report cam" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestWriter_WriteError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFileFunc = func(path string, data []byte) error {
		return errors.New("disk full")
	}
	w := NewWriter(NewMarkdownFormatter(), fs)

	if err := w.Write("summary.md", NewSummary()); err == nil {
		t.Error("expected the write error to be returned")
	}
}
