package worker

import (
	"math"
	"testing"
	"time"
)

func timesEvery(start time.Time, intervals ...time.Duration) []time.Time {
	out := []time.Time{start}
	for _, d := range intervals {
		start = start.Add(d)
		out = append(out, start)
	}
	return out
}

func TestComputeTiming(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := 33333 * time.Microsecond

	steady := make([]time.Duration, 30)
	for i := range steady {
		steady[i] = frame
	}

	jittery := make([]time.Duration, 30)
	for i := range jittery {
		if i%2 == 0 {
			jittery[i] = 10 * time.Millisecond
		} else {
			jittery[i] = 60 * time.Millisecond
		}
	}

	tests := []struct {
		name       string
		times      []time.Time
		wantFPS    float64
		wantStable bool
	}{
		{
			name:  "empty",
			times: nil,
		},
		{
			name:  "single sample",
			times: []time.Time{base},
		},
		{
			name:       "steady 30fps",
			times:      timesEvery(base, steady...),
			wantFPS:    30,
			wantStable: true,
		},
		{
			name:       "jittery",
			times:      timesEvery(base, jittery...),
			wantFPS:    28.57,
			wantStable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := computeTiming(tt.times)
			if ft.Samples != len(tt.times) {
				t.Errorf("expected %d samples, got %d", len(tt.times), ft.Samples)
			}
			if math.Abs(ft.FPSMean-tt.wantFPS) > 0.1 {
				t.Errorf("expected mean %.2f fps, got %.2f", tt.wantFPS, ft.FPSMean)
			}
			if ft.Stable != tt.wantStable {
				t.Errorf("expected stable=%t, got %t (%+v)", tt.wantStable, ft.Stable, ft)
			}
		})
	}
}

func TestComputeTiming_Jitter(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ft := computeTiming(timesEvery(base, 10*time.Millisecond, 30*time.Millisecond))

	if math.Abs(ft.FPSMin-33.33) > 0.01 || math.Abs(ft.FPSMax-100) > 0.01 {
		t.Errorf("unexpected fps range %.2f..%.2f", ft.FPSMin, ft.FPSMax)
	}
	if d := ft.JitterMax - 10*time.Millisecond; d < -time.Microsecond || d > time.Microsecond {
		t.Errorf("expected 10ms max jitter, got %s", ft.JitterMax)
	}
}

func TestTimingWindow(t *testing.T) {
	tw := newTimingWindow(3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if got := tw.ordered(); len(got) != 0 {
		t.Fatalf("expected empty window, got %d", len(got))
	}

	for i := 0; i < 5; i++ {
		tw.add(base.Add(time.Duration(i) * time.Second))
	}
	got := tw.ordered()
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	for i, want := range []time.Duration{2 * time.Second, 3 * time.Second, 4 * time.Second} {
		if got[i] != base.Add(want) {
			t.Errorf("sample %d: expected %s, got %s", i, base.Add(want), got[i])
		}
	}

	tw.reset()
	if got := tw.ordered(); len(got) != 0 {
		t.Errorf("expected empty window after reset, got %d", len(got))
	}
}

func TestBackoff(t *testing.T) {
	base := 10 * time.Millisecond
	max := 500 * time.Millisecond

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{4, 80 * time.Millisecond},
		{6, 320 * time.Millisecond},
		{7, 500 * time.Millisecond},
		{40, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := backoff(tt.attempt, base, max); got != tt.want {
			t.Errorf("backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{GrabTimeout: time.Second, TransientBackoff: time.Second}.withDefaults()

	if opts.Capacity != 3 {
		t.Errorf("expected capacity 3, got %d", opts.Capacity)
	}
	if opts.GrabTimeout != time.Second {
		t.Errorf("explicit grab timeout should be kept, got %s", opts.GrabTimeout)
	}
	if opts.MaxTransientBackoff < opts.TransientBackoff {
		t.Errorf("max backoff %s below base %s", opts.MaxTransientBackoff, opts.TransientBackoff)
	}
	if opts.TimingWindow != 64 {
		t.Errorf("expected timing window 64, got %d", opts.TimingWindow)
	}
}
