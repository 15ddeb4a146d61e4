// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/framegrab/pkg/adapters/gstsource"
	"github.com/user/framegrab/pkg/adapters/mp4source"
	"github.com/user/framegrab/pkg/adapters/testpattern"
	"github.com/user/framegrab/pkg/framepool"
	"github.com/user/framegrab/pkg/notify"
	"github.com/user/framegrab/pkg/ports"
	"github.com/user/framegrab/pkg/worker"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceTestPattern = "testpattern"
	SourceMP4         = "mp4"
	SourceGStreamer   = "gstreamer"
)

// MaxFPS bounds source.fps and display.fps.
const MaxFPS = testpattern.MaxFPS

// Config represents the full configuration for framegrab.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Worker  WorkerConfig  `yaml:"worker"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`

	// Debug
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`
}

// SourceConfig selects and configures the media source.
type SourceConfig struct {
	Kind    string  `yaml:"kind"`
	Device  string  `yaml:"device"`
	File    string  `yaml:"file"`
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	FPS     float64 `yaml:"fps"`
	Pattern string  `yaml:"pattern"`
	// Pixel is the raw format requested from GStreamer (rgba or i420).
	Pixel    string `yaml:"pixel"`
	Loop     bool   `yaml:"loop"`
	Realtime bool   `yaml:"realtime"`
	// Frames ends a test pattern after this many frames.
	Frames uint64 `yaml:"frames"`
}

// WorkerConfig represents worker and notification settings.
type WorkerConfig struct {
	Name              string        `yaml:"name"`
	Capacity          int           `yaml:"capacity"`
	WritePolicy       string        `yaml:"write_policy"`
	PendingCap        int           `yaml:"pending_cap"`
	DropFrames        bool          `yaml:"drop_frames"`
	DropWhenInvisible bool          `yaml:"drop_when_invisible"`
	OpenTimeout       time.Duration `yaml:"open_timeout"`
	GrabTimeout       time.Duration `yaml:"grab_timeout"`
	ReconfigTimeout   time.Duration `yaml:"reconfigure_timeout"`
	StopTimeout       time.Duration `yaml:"stop_timeout"`
}

// DisplayConfig represents the headless consumer.
type DisplayConfig struct {
	// FPS is the paint rate of the consumer.
	FPS        float64 `yaml:"fps"`
	Visible    bool    `yaml:"visible"`
	FullScreen bool    `yaml:"fullscreen"`
	// SnapshotEvery saves every Nth painted frame to the debug sink.
	// Zero disables snapshots.
	SnapshotEvery int           `yaml:"snapshot_every"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// LogConfig represents logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	Quiet      bool   `yaml:"quiet"`
	Timestamps bool   `yaml:"timestamps"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	wd := worker.DefaultOptions()
	qd := notify.DefaultOptions()
	return Config{
		Source: SourceConfig{
			Kind:     SourceTestPattern,
			Width:    640,
			Height:   480,
			FPS:      30,
			Pattern:  testpattern.PatternBars,
			Pixel:    string(ports.PixelRGBA),
			Realtime: true,
		},
		Worker: WorkerConfig{
			Name:            wd.Name,
			Capacity:        wd.Capacity,
			WritePolicy:     wd.WritePolicy.String(),
			PendingCap:      qd.PendingCap,
			DropFrames:      qd.DropFrames,
			OpenTimeout:     wd.OpenTimeout,
			GrabTimeout:     wd.GrabTimeout,
			ReconfigTimeout: wd.ReconfigureTimeout,
			StopTimeout:     wd.StopTimeout,
		},
		Display: DisplayConfig{
			FPS:           60,
			Visible:       true,
			StatsInterval: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		DebugDir: "./debug",
	}
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case SourceTestPattern, SourceGStreamer:
	case SourceMP4:
		if c.Source.File == "" {
			errs = append(errs, errors.New("source.file is required for mp4 sources"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.kind %q", c.Source.Kind))
	}
	if c.Source.Width < 0 || c.Source.Height < 0 {
		errs = append(errs, fmt.Errorf("invalid source size %dx%d", c.Source.Width, c.Source.Height))
	}
	if c.Source.FPS < 0 || c.Source.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("invalid source.fps %g", c.Source.FPS))
	}
	if c.Source.Kind == SourceGStreamer {
		if err := c.GstOptions().Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := framepool.ParseWritePolicy(c.Worker.WritePolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Worker.Capacity < 0 {
		errs = append(errs, fmt.Errorf("invalid worker.capacity %d", c.Worker.Capacity))
	}
	if c.Worker.PendingCap < 0 {
		errs = append(errs, fmt.Errorf("invalid worker.pending_cap %d", c.Worker.PendingCap))
	}
	if c.Display.FPS <= 0 || c.Display.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("invalid display.fps %g", c.Display.FPS))
	}
	if c.Display.SnapshotEvery < 0 {
		errs = append(errs, fmt.Errorf("invalid display.snapshot_every %d", c.Display.SnapshotEvery))
	}

	return errors.Join(errs...)
}

// ToWorkerOptions converts the worker settings. Zero values fall back to
// worker defaults. An invalid write policy falls back to drop; Validate
// reports it.
func (c Config) ToWorkerOptions() worker.Options {
	opts := worker.DefaultOptions()
	policy, err := framepool.ParseWritePolicy(c.Worker.WritePolicy)
	if err == nil {
		opts.WritePolicy = policy
	}
	if c.Worker.Name != "" {
		opts.Name = c.Worker.Name
	}
	if c.Worker.Capacity > 0 {
		opts.Capacity = c.Worker.Capacity
	}
	if c.Worker.OpenTimeout > 0 {
		opts.OpenTimeout = c.Worker.OpenTimeout
	}
	if c.Worker.GrabTimeout > 0 {
		opts.GrabTimeout = c.Worker.GrabTimeout
	}
	if c.Worker.ReconfigTimeout > 0 {
		opts.ReconfigureTimeout = c.Worker.ReconfigTimeout
	}
	if c.Worker.StopTimeout > 0 {
		opts.StopTimeout = c.Worker.StopTimeout
	}
	opts.Visible = c.Display.Visible
	opts.DropWhenInvisible = c.Worker.DropWhenInvisible
	return opts
}

// ToQueueOptions converts the notification settings.
func (c Config) ToQueueOptions() notify.Options {
	opts := notify.DefaultOptions()
	if c.Worker.PendingCap > 0 {
		opts.PendingCap = c.Worker.PendingCap
	}
	opts.DropFrames = c.Worker.DropFrames
	return opts
}

// TestPatternOptions converts the source settings for the test pattern.
func (c Config) TestPatternOptions() testpattern.Options {
	pattern := c.Source.Pattern
	if c.Source.Device != "" {
		pattern = c.Source.Device
	}
	return testpattern.Options{
		Width:    c.Source.Width,
		Height:   c.Source.Height,
		FPS:      c.Source.FPS,
		Pattern:  pattern,
		Frames:   c.Source.Frames,
		Realtime: c.Source.Realtime,
	}
}

// MP4Options converts the source settings for MP4 playback.
func (c Config) MP4Options() mp4source.Options {
	return mp4source.Options{
		Path:     c.Source.File,
		Realtime: c.Source.Realtime,
		Loop:     c.Source.Loop,
	}
}

// GstOptions converts the source settings for GStreamer. A file selects
// uridecodebin, a device selects v4l2src, otherwise videotestsrc is used.
func (c Config) GstOptions() gstsource.Options {
	opts := gstsource.Options{
		Kind:    gstsource.KindTest,
		Pattern: c.Source.Pattern,
		Width:   c.Source.Width,
		Height:  c.Source.Height,
		FPS:     c.Source.FPS,
		Pixel:   ports.PixelFormat(c.Source.Pixel),
	}
	switch {
	case c.Source.File != "":
		opts.Kind = gstsource.KindURI
		opts.URI = fileURI(c.Source.File)
	case c.Source.Device != "":
		opts.Kind = gstsource.KindV4L2
		opts.Device = c.Source.Device
	}
	// videotestsrc has its own pattern names.
	if opts.Kind == gstsource.KindTest && !isGstPattern(opts.Pattern) {
		opts.Pattern = ""
	}
	return opts
}

// fileURI turns a local path into a file:// URI. Values that already carry
// a scheme are kept.
func fileURI(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

func isGstPattern(p string) bool {
	switch p {
	case "smpte", "snow", "black", "white", "red", "green", "blue",
		"checkers-1", "checkers-8", "circular", "ball", "gradient":
		return true
	}
	return false
}
