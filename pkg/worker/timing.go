package worker

import (
	"math"
	"sync"
	"time"
)

const (
	// A stream is stable when the frame-rate standard deviation stays below
	// 15% of the mean and the mean jitter below 20% of the expected interval.
	fpsStabilityThreshold    = 0.15
	jitterStabilityThreshold = 0.20
)

// FrameTiming summarizes recent commit intervals.
type FrameTiming struct {
	Samples    int           `json:"samples"`
	FPSMean    float64       `json:"fps_mean"`
	FPSStdDev  float64       `json:"fps_stddev"`
	FPSMin     float64       `json:"fps_min"`
	FPSMax     float64       `json:"fps_max"`
	JitterMean time.Duration `json:"jitter_mean"`
	JitterMax  time.Duration `json:"jitter_max"`
	Stable     bool          `json:"stable"`
}

// timingWindow keeps the last n commit timestamps.
type timingWindow struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

func newTimingWindow(n int) *timingWindow {
	return &timingWindow{times: make([]time.Time, n)}
}

func (tw *timingWindow) add(t time.Time) {
	tw.mu.Lock()
	tw.times[tw.next] = t
	tw.next = (tw.next + 1) % len(tw.times)
	if tw.next == 0 {
		tw.full = true
	}
	tw.mu.Unlock()
}

func (tw *timingWindow) reset() {
	tw.mu.Lock()
	tw.next = 0
	tw.full = false
	tw.mu.Unlock()
}

// ordered returns the stored timestamps oldest first.
func (tw *timingWindow) ordered() []time.Time {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if !tw.full {
		return append([]time.Time(nil), tw.times[:tw.next]...)
	}
	out := make([]time.Time, 0, len(tw.times))
	out = append(out, tw.times[tw.next:]...)
	return append(out, tw.times[:tw.next]...)
}

// computeTiming derives rate and jitter statistics from commit timestamps.
func computeTiming(times []time.Time) FrameTiming {
	n := len(times)
	ft := FrameTiming{Samples: n}
	if n < 2 {
		return ft
	}

	span := times[n-1].Sub(times[0]).Seconds()
	if span <= 0 {
		return ft
	}
	ft.FPSMean = float64(n-1) / span

	rates := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if dt := times[i].Sub(times[i-1]).Seconds(); dt > 0 {
			rates = append(rates, 1/dt)
		}
	}
	if len(rates) == 0 {
		return ft
	}

	ft.FPSMin, ft.FPSMax = rates[0], rates[0]
	var sumSquares float64
	for _, r := range rates {
		ft.FPSMin = math.Min(ft.FPSMin, r)
		ft.FPSMax = math.Max(ft.FPSMax, r)
		d := r - ft.FPSMean
		sumSquares += d * d
	}
	ft.FPSStdDev = math.Sqrt(sumSquares / float64(len(rates)))

	expected := 1 / ft.FPSMean
	var jitterSum, jitterMax float64
	for i := 1; i < n; i++ {
		j := math.Abs(times[i].Sub(times[i-1]).Seconds() - expected)
		jitterSum += j
		jitterMax = math.Max(jitterMax, j)
	}
	jitterMean := jitterSum / float64(n-1)
	ft.JitterMean = time.Duration(jitterMean * float64(time.Second))
	ft.JitterMax = time.Duration(jitterMax * float64(time.Second))

	ft.Stable = ft.FPSStdDev < ft.FPSMean*fpsStabilityThreshold &&
		jitterMean < expected*jitterStabilityThreshold
	return ft
}
