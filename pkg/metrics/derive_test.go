package metrics

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurosim-io/neurosim/pkg/signal"
	"github.com/neurosim-io/neurosim/pkg/spectral"
)

func checkBounds(t *testing.T, m NeuralMetrics) {
	t.Helper()

	for name, v := range map[string]float64{
		"stress":     m.Stress,
		"focus":      m.Focus,
		"empathy":    m.Empathy,
		"regulation": m.Regulation,
	} {
		require.False(t, math.IsNaN(v), "%s is NaN", name)
		require.False(t, math.IsInf(v, 0), "%s is infinite", name)
		require.GreaterOrEqual(t, v, 0.0, name)
		require.LessOrEqual(t, v, 100.0, name)
	}
	require.GreaterOrEqual(t, m.Coherence, 0.0)
	require.LessOrEqual(t, m.Coherence, 1.0)
}

func TestDeriveBoundsFuzz(t *testing.T) {
	// Adversarial sweep: no combination of band powers and statistics,
	// including NaN, infinities and negatives, may escape the declared
	// metric ranges.
	rng := rand.New(rand.NewSource(1))
	hostile := []float64{0, -1, 1e-300, 1e300, math.NaN(), math.Inf(1), math.Inf(-1)}

	pick := func() float64 {
		if rng.Intn(4) == 0 {
			return hostile[rng.Intn(len(hostile))]
		}
		return math.Exp(rng.Float64()*40 - 20) // log-uniform over ~17 decades
	}

	d := NewDeriver(DefaultSmoothingWindow)
	now := time.Now()

	for i := 0; i < 10000; i++ {
		bp := spectral.BandPowers{
			Delta: pick(), Theta: pick(), Alpha: pick(), Beta: pick(), Gamma: pick(),
		}
		stats := signal.WindowStats{
			Mean: pick(), Variance: pick(), Peak: pick(), Coherence: pick(),
		}

		m := d.Derive(bp, stats, now)
		checkBounds(t, m)
	}
}

func TestDeriveSmoothingBound(t *testing.T) {
	// Once the window is full, a step change in input can move each metric
	// by at most 100/N per pass.
	const n = 5
	d := NewDeriver(n)
	now := time.Now()

	calm := spectral.BandPowers{Delta: 10, Theta: 8, Alpha: 20, Beta: 2, Gamma: 1}
	calmStats := signal.WindowStats{Variance: 5, Coherence: 0.8}

	var prev NeuralMetrics
	for i := 0; i < n; i++ {
		prev = d.Derive(calm, calmStats, now)
	}

	// Worst-case step input.
	agitated := spectral.BandPowers{Beta: 1e6}
	agitatedStats := signal.WindowStats{Variance: 1e6, Coherence: 0}

	for i := 0; i < 3*n; i++ {
		m := d.Derive(agitated, agitatedStats, now)
		assert.LessOrEqual(t, math.Abs(m.Stress-prev.Stress), 100.0/n+1e-9, "pass %d", i)
		assert.LessOrEqual(t, math.Abs(m.Focus-prev.Focus), 100.0/n+1e-9, "pass %d", i)
		assert.LessOrEqual(t, math.Abs(m.Empathy-prev.Empathy), 100.0/n+1e-9, "pass %d", i)
		assert.LessOrEqual(t, math.Abs(m.Regulation-prev.Regulation), 100.0/n+1e-9, "pass %d", i)
		prev = m
	}
}

func TestDeriveStressDirection(t *testing.T) {
	calm := NewDeriver(1).Derive(
		spectral.BandPowers{Delta: 10, Theta: 8, Alpha: 25, Beta: 3, Gamma: 1},
		signal.WindowStats{Variance: 5, Coherence: 0.9},
		time.Now())

	agitated := NewDeriver(1).Derive(
		spectral.BandPowers{Delta: 5, Theta: 4, Alpha: 4, Beta: 30, Gamma: 5},
		signal.WindowStats{Variance: 80, Coherence: 0.2},
		time.Now())

	assert.Greater(t, agitated.Stress, calm.Stress)
	assert.Less(t, agitated.Regulation, calm.Regulation)
}

func TestDeriveFocusDirection(t *testing.T) {
	distracted := NewDeriver(1).Derive(
		spectral.BandPowers{Delta: 20, Theta: 15, Alpha: 10, Beta: 2, Gamma: 1},
		signal.WindowStats{Variance: 90, Coherence: 0.3},
		time.Now())

	engaged := NewDeriver(1).Derive(
		spectral.BandPowers{Delta: 5, Theta: 4, Alpha: 8, Beta: 25, Gamma: 3},
		signal.WindowStats{Variance: 10, Coherence: 0.8},
		time.Now())

	assert.Greater(t, engaged.Focus, distracted.Focus)
}

func TestDeriveEmpathyDirection(t *testing.T) {
	detached := NewDeriver(1).Derive(
		spectral.BandPowers{Delta: 10, Theta: 2, Alpha: 3, Beta: 20, Gamma: 5},
		signal.WindowStats{Coherence: 0.1},
		time.Now())

	attuned := NewDeriver(1).Derive(
		spectral.BandPowers{Delta: 5, Theta: 12, Alpha: 18, Beta: 3, Gamma: 1},
		signal.WindowStats{Coherence: 0.9},
		time.Now())

	assert.Greater(t, attuned.Empathy, detached.Empathy)
}

func TestDeriveZeroInput(t *testing.T) {
	m := NewDeriver(1).Derive(spectral.BandPowers{}, signal.WindowStats{}, time.Now())
	checkBounds(t, m)
}

func TestDeriverReset(t *testing.T) {
	d := NewDeriver(5)
	now := time.Now()

	loud := spectral.BandPowers{Beta: 100}
	loudStats := signal.WindowStats{Variance: 100}
	for i := 0; i < 5; i++ {
		d.Derive(loud, loudStats, now)
	}

	d.Reset()

	// After a reset the first pass reflects the new input alone, with no
	// residue from the old window.
	quiet := spectral.BandPowers{Alpha: 100}
	got := d.Derive(quiet, signal.WindowStats{Coherence: 0.5}, now)
	want := NewDeriver(1).Derive(quiet, signal.WindowStats{Coherence: 0.5}, now)
	assert.Equal(t, want, got)
}

func TestDeriveTimestampPassthrough(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewDeriver(1).Derive(spectral.BandPowers{Alpha: 1}, signal.WindowStats{}, ts)
	assert.Equal(t, ts, m.Timestamp)
}

func TestRingMean(t *testing.T) {
	r := newRing(3)
	assert.Equal(t, [4]float64{}, r.mean())

	r.push([4]float64{3, 30, 300, 3000})
	assert.Equal(t, [4]float64{3, 30, 300, 3000}, r.mean())

	r.push([4]float64{6, 60, 600, 6000})
	r.push([4]float64{9, 90, 900, 9000})
	assert.Equal(t, [4]float64{6, 60, 600, 6000}, r.mean())

	// A fourth push evicts the oldest.
	r.push([4]float64{12, 120, 1200, 12000})
	assert.Equal(t, [4]float64{9, 90, 900, 9000}, r.mean())
}
