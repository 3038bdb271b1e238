package metrics

import (
	"math"
	"time"

	"github.com/neurosim-io/neurosim/pkg/signal"
	"github.com/neurosim-io/neurosim/pkg/spectral"
)

// DefaultSmoothingWindow is the number of pipeline passes averaged into each
// reported metric.
const DefaultSmoothingWindow = 5

// NeuralMetrics is the derived psychological state reported to subscribers.
// Every field is clamped to its declared range before it leaves this package;
// NaN or infinite values are never emitted.
type NeuralMetrics struct {
	Stress     float64   `json:"stress"`     // [0, 100]
	Focus      float64   `json:"focus"`      // [0, 100]
	Empathy    float64   `json:"empathy"`    // [0, 100]
	Regulation float64   `json:"regulation"` // [0, 100]
	Coherence  float64   `json:"coherence"`  // [0, 1]
	Timestamp  time.Time `json:"timestamp"`
}

// Deriver maps band powers and raw-signal statistics onto NeuralMetrics,
// smoothing each metric with a bounded moving average over the last N passes
// so consecutive ticks never jump discontinuously.
//
// A Deriver belongs to one session and is not safe for concurrent use.
type Deriver struct {
	window *ring
}

// NewDeriver creates a deriver with the given smoothing window size; values
// below one fall back to DefaultSmoothingWindow.
func NewDeriver(smoothingWindow int) *Deriver {
	if smoothingWindow < 1 {
		smoothingWindow = DefaultSmoothingWindow
	}
	return &Deriver{window: newRing(smoothingWindow)}
}

// Reset clears the smoothing window, e.g. when calibration restarts.
func (d *Deriver) Reset() {
	d.window.reset()
}

// Derive computes the next smoothed metrics sample from one pipeline pass.
//
// Directional contract:
//   - stress rises with the beta/alpha ratio and raw variance
//   - focus rises with beta share and falls with raw variance
//   - empathy rises with cross-channel coherence and the alpha+theta share
//   - regulation rises with alpha share and falls with stress
func (d *Deriver) Derive(bp spectral.BandPowers, stats signal.WindowStats, now time.Time) NeuralMetrics {
	delta := sanitize(bp.Delta)
	theta := sanitize(bp.Theta)
	alpha := sanitize(bp.Alpha)
	beta := sanitize(bp.Beta)
	gamma := sanitize(bp.Gamma)
	variance := sanitize(stats.Variance)
	coh := clampTo(sanitize(stats.Coherence), 0, 1)

	const eps = 1e-9
	total := delta + theta + alpha + beta + gamma + eps

	stress := 100 * (0.55*squash(beta/(alpha+eps)) +
		0.30*squash(variance/25) +
		0.15*(1-coh))
	focus := 100 * (0.60*squash(2*beta/total) +
		0.25*(1-squash(variance/50)) +
		0.15*coh)
	empathy := 100 * (0.60*coh +
		0.40*squash(2*(alpha+theta)/total))
	regulation := 100 * (0.65*squash(2*alpha/total) +
		0.35*(1-clampTo(stress, 0, 100)/100))

	d.window.push([4]float64{
		clampTo(stress, 0, 100),
		clampTo(focus, 0, 100),
		clampTo(empathy, 0, 100),
		clampTo(regulation, 0, 100),
	})
	smoothed := d.window.mean()

	return NeuralMetrics{
		Stress:     clampTo(smoothed[0], 0, 100),
		Focus:      clampTo(smoothed[1], 0, 100),
		Empathy:    clampTo(smoothed[2], 0, 100),
		Regulation: clampTo(smoothed[3], 0, 100),
		Coherence:  coh,
		Timestamp:  now,
	}
}

// squash maps a non-negative ratio into [0, 1).
func squash(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if math.IsInf(x, 1) {
		return 1
	}
	return x / (1 + x)
}

// sanitize replaces NaN, infinities and negative powers with zero so no
// adversarial input can propagate past derivation.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clampTo(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
