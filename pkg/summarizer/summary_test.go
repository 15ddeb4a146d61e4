package summarizer

import (
	"testing"
	"time"

	"github.com/user/framegrab/pkg/ports"
)

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Errorf("GeneratedAt should be between %v and %v, got %v",
			before, after, summary.GeneratedAt)
	}
}

func TestBuilder_WithSource(t *testing.T) {
	summary := NewBuilder().
		WithSource(SourceInfo{
			Name:       "mp4:clip.mp4",
			Kind:       "mp4",
			Pixel:      ports.PixelH264,
			Resolution: ports.Resolution{Width: 1280, Height: 720},
		}).
		Build()

	if summary.Source.Name != "mp4:clip.mp4" {
		t.Errorf("expected name 'mp4:clip.mp4', got '%s'", summary.Source.Name)
	}
	if summary.Source.Resolution.Width != 1280 {
		t.Errorf("expected width 1280, got %d", summary.Source.Resolution.Width)
	}
}

func TestBuilder_Chain(t *testing.T) {
	summary := NewBuilder().
		WithCapture(CaptureInfo{Grabbed: 10, Commits: 9, Missing: 1}).
		WithDisplay(DisplayInfo{Painted: 8}).
		WithSettings(Settings{Capacity: 3, WritePolicy: "drop"}).
		Build()

	if summary.Capture.Grabbed != summary.Capture.Commits+summary.Capture.Missing {
		t.Errorf("unexpected capture %+v", summary.Capture)
	}
	if summary.Display.Painted != 8 {
		t.Errorf("expected 8 painted, got %d", summary.Display.Painted)
	}
	if summary.Settings.Capacity != 3 || summary.Settings.WritePolicy != "drop" {
		t.Errorf("unexpected settings %+v", summary.Settings)
	}
}

func TestFormatFunc(t *testing.T) {
	f := FormatFunc(func(s *Summary) string { return s.Source.Name })
	if got := f.Format(&Summary{Source: SourceInfo{Name: "x"}}); got != "x" {
		t.Errorf("expected 'x', got %q", got)
	}
}
