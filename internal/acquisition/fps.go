package acquisition

import (
	"math"
	"sync"
	"time"
)

// fpsStabilityThreshold is the maximum instantaneous-FPS standard deviation,
// as a fraction of the mean, for a stream to count as stable.
const fpsStabilityThreshold = 0.15

// FPSStats summarises the capture rate over the recent window.
type FPSStats struct {
	Samples  int
	Mean     float64
	StdDev   float64
	Min      float64
	Max      float64
	IsStable bool
}

// fpsWindow keeps the capture times of the last n frames.
type fpsWindow struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

func newFPSWindow(n int) *fpsWindow {
	return &fpsWindow{times: make([]time.Time, n)}
}

func (w *fpsWindow) observe(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.times[w.next] = t
	w.next = (w.next + 1) % len(w.times)
	if w.next == 0 {
		w.full = true
	}
}

func (w *fpsWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next, w.full = 0, false
}

// ordered returns the window oldest first.
func (w *fpsWindow) ordered() []time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.full {
		return append([]time.Time(nil), w.times[:w.next]...)
	}
	out := make([]time.Time, 0, len(w.times))
	out = append(out, w.times[w.next:]...)
	return append(out, w.times[:w.next]...)
}

func (w *fpsWindow) stats() FPSStats {
	return calculateFPS(w.ordered())
}

// calculateFPS derives mean, spread and stability from capture timestamps.
// The mean is taken over the whole span; min/max/stddev over the
// instantaneous rate of each interval.
func calculateFPS(times []time.Time) FPSStats {
	n := len(times)
	out := FPSStats{Samples: n}
	if n < 2 {
		return out
	}
	span := times[n-1].Sub(times[0]).Seconds()
	if span <= 0 {
		return out
	}
	out.Mean = float64(n-1) / span

	inst := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if dt := times[i].Sub(times[i-1]).Seconds(); dt > 0 {
			inst = append(inst, 1/dt)
		}
	}
	if len(inst) == 0 {
		return out
	}

	out.Min, out.Max = inst[0], inst[0]
	var sq float64
	for _, f := range inst {
		out.Min = math.Min(out.Min, f)
		out.Max = math.Max(out.Max, f)
		sq += (f - out.Mean) * (f - out.Mean)
	}
	out.StdDev = math.Sqrt(sq / float64(len(inst)))
	out.IsStable = out.StdDev < out.Mean*fpsStabilityThreshold
	return out
}
