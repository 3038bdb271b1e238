package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStatsKnownValues(t *testing.T) {
	w := &Window{
		Channels:   [][]float64{{1, -1, 1, -1}},
		SampleRate: 4,
	}

	stats := ComputeStats(w)
	assert.InDelta(t, 0.0, stats.Mean, 1e-12)
	assert.InDelta(t, 4.0/3.0, stats.Variance, 1e-12) // sample variance
	assert.Equal(t, 1.0, stats.Peak)
}

func TestComputeStatsEmptyWindow(t *testing.T) {
	stats := ComputeStats(&Window{})
	assert.Equal(t, WindowStats{Coherence: 1}, stats)
}

func TestComputeStatsSingleChannelCoherence(t *testing.T) {
	w := &Window{Channels: [][]float64{{1, 2, 3, 4}}}
	assert.Equal(t, 1.0, ComputeStats(w).Coherence)
}

func TestCoherenceIdenticalChannels(t *testing.T) {
	ch := []float64{1, 2, 3, 4, 5}
	w := &Window{Channels: [][]float64{ch, ch, ch}}

	assert.InDelta(t, 1.0, ComputeStats(w).Coherence, 1e-12)
}

func TestCoherenceAntiCorrelatedChannels(t *testing.T) {
	// Anti-correlation still counts as coherence: the magnitude of the
	// correlation is what matters.
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{5, 4, 3, 2, 1}
	w := &Window{Channels: [][]float64{a, b}}

	assert.InDelta(t, 1.0, ComputeStats(w).Coherence, 1e-12)
}

func TestCoherenceConstantChannels(t *testing.T) {
	// Zero-variance channels make the correlation undefined; those pairs
	// are skipped and with no valid pairs coherence collapses to zero.
	w := &Window{Channels: [][]float64{{2, 2, 2}, {3, 3, 3}}}

	stats := ComputeStats(w)
	assert.Equal(t, 0.0, stats.Coherence)
	assert.False(t, math.IsNaN(stats.Variance))
}

func TestComputeStatsGeneratorOutput(t *testing.T) {
	g := NewGenerator(8, 256, 9)

	for pass := 0; pass < 10; pass++ {
		stats := ComputeStats(g.Generate(256))

		assert.False(t, math.IsNaN(stats.Mean))
		assert.GreaterOrEqual(t, stats.Variance, 0.0)
		assert.LessOrEqual(t, stats.Peak, 100.0)
		assert.GreaterOrEqual(t, stats.Coherence, 0.0)
		assert.LessOrEqual(t, stats.Coherence, 1.0)
	}
}
