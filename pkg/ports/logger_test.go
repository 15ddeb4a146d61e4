package ports

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"WARN", LevelWarn},
		{" error ", LevelError},
		{"quiet", LevelQuiet},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogLevelString(t *testing.T) {
	if LevelWarn.String() != "warn" {
		t.Errorf("expected warn, got %s", LevelWarn.String())
	}
	if LogLevel(42).String() != "unknown" {
		t.Errorf("expected unknown, got %s", LogLevel(42).String())
	}
}

func TestPixelFormatBytesPerFrame(t *testing.T) {
	tests := []struct {
		format PixelFormat
		w, h   int
		want   int
	}{
		{PixelRGBA, 640, 480, 640 * 480 * 4},
		{PixelI420, 640, 480, 640*480 + 2*320*240},
		{PixelI420, 3, 3, 9 + 2*2*2},
		{PixelH264, 640, 480, 0},
	}

	for _, tt := range tests {
		if got := tt.format.BytesPerFrame(tt.w, tt.h); got != tt.want {
			t.Errorf("%s %dx%d: expected %d, got %d", tt.format, tt.w, tt.h, tt.want, got)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(ErrTransient) {
		t.Error("ErrTransient should be transient")
	}
	if IsTransient(ErrEndOfStream) {
		t.Error("ErrEndOfStream should not be transient")
	}
}
