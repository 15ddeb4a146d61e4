package worker

import (
	"context"
	"fmt"
	"math"

	"github.com/user/framegrab/pkg/framepool"
	"github.com/user/framegrab/pkg/ports"
)

// Stats is a snapshot of worker counters.
type Stats struct {
	Source  string `json:"source"`
	Session string `json:"session"`
	Paused  bool   `json:"paused"`

	LastFrameNumber      uint64  `json:"last_frame_number"`
	Grabbed              uint64  `json:"grabbed"`
	Commits              uint64  `json:"commits"`
	MissingFrames        uint64  `json:"missing_frames"`
	FrameRate            float64 `json:"frame_rate"`
	PendingNotifications int     `json:"pending_notifications"`

	TransientFailures     uint64 `json:"transient_failures"`
	ReconfigureTimeouts   uint64 `json:"reconfigure_timeouts"`
	StaleReleases         uint64 `json:"stale_releases"`
	ResolutionChanges     uint64 `json:"resolution_changes"`
	SuppressedNotices     uint64 `json:"suppressed_notifications"`
	HiddenFrames          uint64 `json:"hidden_frames"`
	SupersededCommands    uint64 `json:"superseded_commands"`
	PendingCommands       int    `json:"pending_commands"`
	ReplacedBeforeApplied uint64 `json:"replaced_before_applied"`

	Desired ports.Resolution `json:"desired"`
	Actual  ports.Resolution `json:"actual"`
	Pool    framepool.Stats  `json:"pool"`
}

// Stats returns a snapshot of the worker counters. Safe from any goroutine.
func (w *Worker) Stats() Stats {
	w.stateMu.RLock()
	desired, actual, session := w.desired, w.actual, w.session
	w.stateMu.RUnlock()

	qs := w.queue.Stats()
	st := Stats{
		Source:  w.source.Name(),
		Session: session,
		Paused:  w.isPaused.Load(),

		LastFrameNumber:      w.lastFrame.Load(),
		Grabbed:              w.counters.grabbed.Load(),
		Commits:              w.counters.commits.Load(),
		MissingFrames:        w.counters.missing.Load(),
		FrameRate:            w.FrameRate(),
		PendingNotifications: qs.Pending,

		TransientFailures:     w.counters.transient.Load(),
		ReconfigureTimeouts:   w.counters.reconfigTimeouts.Load(),
		StaleReleases:         w.counters.staleReleases.Load(),
		ResolutionChanges:     w.counters.resolutionChanges.Load(),
		SuppressedNotices:     qs.Suppressed,
		HiddenFrames:          w.counters.hiddenFrames.Load(),
		SupersededCommands:    w.counters.supersededCommands.Load(),
		PendingCommands:       w.mailbox.Pending(),
		ReplacedBeforeApplied: w.mailbox.SupersededCount(),

		Desired: desired,
		Actual:  actual,
	}
	if pool := w.pool.Load(); pool != nil {
		st.Pool = pool.Stats()
	} else if final := w.finalPool.Load(); final != nil {
		st.Pool = *final
	}
	return st
}

// FrameRate returns the smoothed commit rate in frames per second.
func (w *Worker) FrameRate() float64 {
	return math.Float64frombits(w.frameRate.Load())
}

// FrameTiming returns statistics over the recent commit window.
func (w *Worker) FrameTiming() FrameTiming {
	return computeTiming(w.timing.ordered())
}

// Format returns what the source currently produces.
func (w *Worker) Format() ports.Format {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.format
}

// FullScreenDisplay returns the last applied fullscreen hint.
func (w *Worker) FullScreenDisplay() bool {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.fullScreen
}

// GetPossibleDevices lists the devices the source can switch to.
// It may be called from any goroutine.
func (w *Worker) GetPossibleDevices(ctx context.Context) ([]ports.Device, error) {
	sel, ok := w.source.(ports.DeviceSelector)
	if !ok {
		return nil, ports.ErrUnsupported
	}
	return sel.Devices(ctx)
}

// VideoInfo returns human-readable status lines for the current source.
func (w *Worker) VideoInfo() []string {
	st := w.Stats()
	format := w.Format()
	timing := w.FrameTiming()

	codec := string(format.Pixel)
	if format.Codec != "" {
		codec = fmt.Sprintf("%s (%s)", format.Pixel, format.Codec)
	}
	stability := "unstable"
	if timing.Stable {
		stability = "stable"
	}

	return []string{
		fmt.Sprintf("Source: %s", st.Source),
		fmt.Sprintf("Format: %s", codec),
		fmt.Sprintf("Resolution: %s (requested %s)", st.Actual, st.Desired),
		fmt.Sprintf("Frame rate: %.2f fps", st.FrameRate),
		fmt.Sprintf("Timing: %.2f fps mean, %.1f ms jitter, %s", timing.FPSMean,
			float64(timing.JitterMean.Microseconds())/1000, stability),
		fmt.Sprintf("Frames: %d delivered, %d missing", st.LastFrameNumber, st.MissingFrames),
		fmt.Sprintf("Pending notifications: %d", st.PendingNotifications),
		fmt.Sprintf("Full screen: %t", w.FullScreenDisplay()),
	}
}
