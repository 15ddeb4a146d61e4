// Package main provides the CLI entry point for framegrab.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/framegrab/pkg/adapters/filesink"
	"github.com/user/framegrab/pkg/adapters/ggrenderer"
	"github.com/user/framegrab/pkg/adapters/logger"
	"github.com/user/framegrab/pkg/adapters/mp4source"
	"github.com/user/framegrab/pkg/adapters/nullsink"
	"github.com/user/framegrab/pkg/adapters/osfilesystem"
	"github.com/user/framegrab/pkg/config"
	"github.com/user/framegrab/pkg/notify"
	"github.com/user/framegrab/pkg/ports"
	"github.com/user/framegrab/pkg/summarizer"
	"github.com/user/framegrab/pkg/worker"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Capture frames from a source and show them on a headless display."`
	Devices DevicesCmd `cmd:"" help:"List the capture devices a source can switch to."`
	Probe   ProbeCmd   `cmd:"" help:"Describe the video track of an MP4 file."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// SourceFlags selects the media source. Flags override the config file.
type SourceFlags struct {
	Config string `short:"c" type:"existingfile" help:"YAML configuration file."`

	Source  *string  `short:"s" help:"Source kind (testpattern, mp4, gstreamer)."`
	Device  *string  `short:"D" help:"Capture device or test pattern."`
	File    *string  `short:"f" help:"Media file or URI to play."`
	Width   *int     `short:"W" help:"Requested frame width."`
	Height  *int     `short:"H" help:"Requested frame height."`
	FPS     *float64 `help:"Requested frame rate."`
	Loop    bool     `help:"Restart files at the end of the stream."`
	Burst   bool     `help:"Grab as fast as possible instead of at the source frame rate."`
	Frames  *uint64  `help:"Stop a test pattern after this many frames."`
	Pattern *string  `help:"Test pattern name."`
}

// LogFlags configures console output.
type LogFlags struct {
	LogLevel   *string `short:"l" help:"Log level (debug, info, warn, error)."`
	Quiet      bool    `short:"Q" help:"Suppress all log output."`
	Timestamps bool    `help:"Prefix log lines with the time."`
}

// RunCmd defines the run subcommand.
type RunCmd struct {
	SourceFlags
	LogFlags

	// Worker
	Policy     *string `short:"p" help:"What a grab does when every slot is busy (drop, reclaim)."`
	PendingCap *int    `help:"Maximum undelivered new-frame notifications."`
	NoDrop     bool    `help:"Queue every new-frame notification instead of dropping above the cap."`

	// Display
	DisplayFPS *float64      `help:"Paint rate of the headless display."`
	FullScreen bool          `help:"Start with the fullscreen hint set."`
	Seek       time.Duration `help:"Seek to this position after the source opens."`
	Duration   time.Duration `short:"t" help:"Stop after this long (0 = until the stream ends)."`
	Snapshots  *int          `help:"Save every Nth painted frame to the debug directory (0 = never)."`

	// Output
	Summary string `help:"Write a Markdown capture summary to this file."`

	// Debug
	Debug    bool    `short:"d" help:"Enable debug output."`
	DebugDir *string `help:"Directory for debug output."`
}

// DevicesCmd defines the devices subcommand.
type DevicesCmd struct {
	SourceFlags
}

// ProbeCmd defines the probe subcommand.
type ProbeCmd struct {
	File string `arg:"" type:"existingfile" help:"MP4 file to inspect."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("framegrab"),
		kong.Description("Grab video frames into a fixed ring of buffers and hand them to a display without copying."),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// load reads the config file, if any, and applies source flag overrides.
func (f SourceFlags) load() (config.Config, error) {
	cfg := config.Defaults()
	if f.Config != "" {
		var err error
		cfg, err = config.LoadFromFile(f.Config)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}

	if f.Source != nil {
		cfg.Source.Kind = *f.Source
	}
	if f.Device != nil {
		cfg.Source.Device = *f.Device
	}
	if f.File != nil {
		cfg.Source.File = *f.File
		if f.Source == nil && cfg.Source.Kind == config.SourceTestPattern {
			cfg.Source.Kind = config.SourceMP4
		}
	}
	if f.Width != nil {
		cfg.Source.Width = *f.Width
	}
	if f.Height != nil {
		cfg.Source.Height = *f.Height
	}
	if f.FPS != nil {
		cfg.Source.FPS = *f.FPS
	}
	if f.Loop {
		cfg.Source.Loop = true
	}
	if f.Burst {
		cfg.Source.Realtime = false
	}
	if f.Frames != nil {
		cfg.Source.Frames = *f.Frames
	}
	if f.Pattern != nil {
		cfg.Source.Pattern = *f.Pattern
	}
	return cfg, nil
}

func (f LogFlags) apply(cfg *config.Config) {
	if f.LogLevel != nil {
		cfg.Log.Level = *f.LogLevel
	}
	if f.Quiet {
		cfg.Log.Quiet = true
	}
	if f.Timestamps {
		cfg.Log.Timestamps = true
	}
}

func newLogger(cfg config.LogConfig) ports.Logger {
	if cfg.Quiet {
		return logger.NewNoop()
	}
	return logger.NewConsole(ports.ParseLogLevel(cfg.Level)).WithTimestamps(cfg.Timestamps)
}

// buildConfig merges the config file and every run flag.
func (cmd *RunCmd) buildConfig() (config.Config, error) {
	cfg, err := cmd.SourceFlags.load()
	if err != nil {
		return cfg, err
	}
	cmd.LogFlags.apply(&cfg)

	if cmd.Policy != nil {
		cfg.Worker.WritePolicy = *cmd.Policy
	}
	if cmd.PendingCap != nil {
		cfg.Worker.PendingCap = *cmd.PendingCap
	}
	if cmd.NoDrop {
		cfg.Worker.DropFrames = false
	}
	if cmd.DisplayFPS != nil {
		cfg.Display.FPS = *cmd.DisplayFPS
	}
	if cmd.FullScreen {
		cfg.Display.FullScreen = true
	}
	if cmd.Snapshots != nil {
		cfg.Display.SnapshotEvery = *cmd.Snapshots
	}
	if cmd.Debug {
		cfg.Debug = true
	}
	if cmd.DebugDir != nil {
		cfg.DebugDir = *cmd.DebugDir
	}

	return cfg, cfg.Validate()
}

// Run executes the run command.
func (cmd *RunCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cmd.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cmd.Duration)
		defer cancel()
	}

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn(l10n.T("Interrupted, shutting down..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	// Create adapters
	fs := osfilesystem.New()
	renderer := ggrenderer.New()

	// Create debug sink
	var sink ports.DebugSink
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, renderer)
	} else {
		sink = nullsink.New()
	}

	source, err := buildSource(cfg, fs, renderer, log)
	if err != nil {
		return err
	}

	queue := notify.NewQueue(cfg.ToQueueOptions())
	opts := cfg.ToWorkerOptions()
	opts.Debug = sink
	w := worker.New(source, queue, log, opts)

	if cfg.Display.FullScreen {
		w.SetFullScreenDisplay(true)
	}
	if cmd.Seek > 0 {
		w.Seek(cmd.Seek)
	}

	log.Info(l10n.F("Capturing from %s...", source.Name()))
	started := time.Now()
	if err := w.Start(ctx); err != nil {
		return err
	}

	v := newViewer(w, queue, renderer, sink, log, cfg.Display)
	v.Run(ctx)

	stopErr := w.Stop()
	st := w.Stats()
	log.Info(l10n.F("Captured %d frames, painted %d, missed %d", st.Commits, v.Painted(), st.MissingFrames))

	runErr := w.Err()
	if errors.Is(runErr, ports.ErrEndOfStream) {
		runErr = nil
	}
	if runErr == nil {
		runErr = v.OpenErr()
	}

	if cmd.Summary != "" {
		summary := buildSummary(cfg, w.Format(), st, v, time.Since(started), runErr)
		writer := summarizer.NewWriter(summarizer.NewMarkdownFormatter(summarizer.WithTranslator(l10n.T)), fs)
		if err := writer.Write(cmd.Summary, summary); err != nil {
			log.Warn(l10n.F("Failed to write summary: %v", err))
		} else {
			log.Info(l10n.F("Summary saved to %s", cmd.Summary))
		}
	}

	if sink.Enabled() {
		if data, err := json.MarshalIndent(st, "", "  "); err == nil {
			if err := sink.SaveStatsJSON("final", data); err != nil {
				log.Warn(l10n.F("Failed to save stats: %v", err))
			}
		}
	}

	if stopErr != nil {
		return stopErr
	}
	return runErr
}

// buildSummary collects the session results for the Markdown report.
func buildSummary(cfg config.Config, format ports.Format, st worker.Stats, v *viewer, elapsed time.Duration, runErr error) *summarizer.Summary {
	return summarizer.NewBuilder().
		WithSource(summarizer.SourceInfo{
			Name:       st.Source,
			Kind:       cfg.Source.Kind,
			Pixel:      format.Pixel,
			Codec:      format.Codec,
			Resolution: st.Actual,
			FrameRate:  format.FrameRate,
		}).
		WithCapture(summarizer.CaptureInfo{
			Duration:       elapsed,
			LastFrame:      st.LastFrameNumber,
			Grabbed:        st.Grabbed,
			Commits:        st.Commits,
			Missing:        st.MissingFrames,
			FrameRate:      st.FrameRate,
			Transient:      st.TransientFailures,
			ForcedReleases: st.Pool.ForcedReleases,
			Reclaimed:      st.Pool.Reclaimed,
			Err:            runErr,
		}).
		WithDisplay(summarizer.DisplayInfo{
			Painted:    v.Painted(),
			Skipped:    st.Pool.Skipped,
			Suppressed: st.SuppressedNotices,
			Snapshots:  v.Snapshots(),
		}).
		WithSettings(summarizer.Settings{
			Capacity:    st.Pool.Capacity,
			WritePolicy: cfg.Worker.WritePolicy,
			PendingCap:  cfg.ToQueueOptions().PendingCap,
			DropFrames:  cfg.Worker.DropFrames,
			DisplayFPS:  cfg.Display.FPS,
		}).
		Build()
}

// Run executes the devices command.
func (cmd *DevicesCmd) Run() error {
	cfg, err := cmd.SourceFlags.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.NewNoop()
	source, err := buildSource(cfg, osfilesystem.New(), ggrenderer.New(), log)
	if err != nil {
		return err
	}
	sel, ok := source.(ports.DeviceSelector)
	if !ok {
		return fmt.Errorf("%s: %w", source.Name(), ports.ErrUnsupported)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	devices, err := sel.Devices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println(l10n.T("No devices found."))
		return nil
	}
	for _, d := range devices {
		if d.Description != "" {
			fmt.Printf("%s\t%s\t%s\n", d.ID, d.Name, d.Description)
		} else {
			fmt.Printf("%s\t%s\n", d.ID, d.Name)
		}
	}
	return nil
}

// Run executes the probe command.
func (cmd *ProbeCmd) Run() error {
	data, err := osfilesystem.New().ReadFile(cmd.File)
	if err != nil {
		return err
	}
	info, err := mp4source.Probe(data)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.File, err)
	}

	fmt.Println(l10n.F("Codec: %s", info.Codec))
	fmt.Println(l10n.F("Resolution: %s", info.Resolution))
	fmt.Println(l10n.F("Frame rate: %.3f fps", info.FrameRate))
	fmt.Println(l10n.F("Duration: %s", info.Duration))
	fmt.Println(l10n.F("Samples: %d (%d sync)", info.Samples, info.SyncSamples))
	return nil
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("framegrab version %s", version))
	return nil
}
