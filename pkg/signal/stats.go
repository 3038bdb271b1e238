package signal

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// WindowStats summarizes one window's raw signal: mean, variance and peak
// absolute amplitude across all channels, plus a cross-channel coherence
// figure in [0, 1].
type WindowStats struct {
	Mean      float64 `json:"mean"`
	Variance  float64 `json:"variance"`
	Peak      float64 `json:"peak"`
	Coherence float64 `json:"coherence"`
}

// ComputeStats derives WindowStats from a window. Coherence is the mean
// absolute Pearson correlation over adjacent channel pairs; single-channel
// windows report full coherence.
func ComputeStats(w *Window) WindowStats {
	var flat []float64
	for _, ch := range w.Channels {
		flat = append(flat, ch...)
	}
	if len(flat) == 0 {
		return WindowStats{Coherence: 1}
	}

	mean := stat.Mean(flat, nil)
	variance := stat.Variance(flat, nil)
	if math.IsNaN(variance) {
		variance = 0
	}

	peak := 0.0
	for _, v := range flat {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	return WindowStats{
		Mean:      mean,
		Variance:  variance,
		Peak:      peak,
		Coherence: coherence(w.Channels),
	}
}

func coherence(channels [][]float64) float64 {
	if len(channels) < 2 {
		return 1
	}

	sum := 0.0
	pairs := 0
	for c := 0; c+1 < len(channels); c++ {
		r := stat.Correlation(channels[c], channels[c+1], nil)
		if math.IsNaN(r) {
			continue
		}
		sum += math.Abs(r)
		pairs++
	}
	if pairs == 0 {
		return 0
	}

	coh := sum / float64(pairs)
	if coh < 0 {
		return 0
	}
	if coh > 1 {
		return 1
	}
	return coh
}
