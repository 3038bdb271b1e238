package signal

import (
	"math"
	"math/rand"
	"time"
)

// Window is one fixed-length block of per-channel samples, tagged with the
// sample rate that produced it. Windows are ephemeral: produced and consumed
// within a single pipeline pass.
type Window struct {
	Channels   [][]float64
	SampleRate int
}

// Samples returns the sample slice for one channel.
func (w *Window) Samples(channel int) []float64 {
	return w.Channels[channel]
}

// bandSource is one synthesized EEG band: a central frequency plus the
// bounds its per-channel amplitude may drift within.
type bandSource struct {
	name string
	freq float64
	base float64
	min  float64
	max  float64
}

// bandSources mirrors the spectral band table: one central frequency per
// band, amplitudes in microvolts.
var bandSources = []bandSource{
	{name: "delta", freq: 2, base: 20, min: 5, max: 50},
	{name: "theta", freq: 6, base: 12, min: 3, max: 30},
	{name: "alpha", freq: 10, base: 18, min: 4, max: 45},
	{name: "beta", freq: 20, base: 8, min: 2, max: 25},
	{name: "gamma", freq: 40, base: 4, min: 1, max: 12},
}

// clampMicrovolts bounds generated samples to a realistic EEG voltage range.
const clampMicrovolts = 100.0

// Generator produces synthetic multi-channel EEG-like waveforms. Each window
// sums one sinusoid per band at a slowly drifting per-channel amplitude plus
// independent noise. Phase and amplitude state is threaded across calls so
// consecutive windows are coherent rather than independently random.
//
// A Generator is owned by exactly one session and is not safe for concurrent
// use.
type Generator struct {
	channels   int
	sampleRate int
	rng        *rand.Rand

	phases [][]float64 // [channel][band], radians
	amps   [][]float64 // [channel][band], microvolts
	noise  float64     // noise standard deviation, microvolts
	drift  float64     // per-window amplitude random-walk rate
}

// NewGenerator creates a generator for the given channel count and sample
// rate. A zero seed selects a time-based seed; tests pass a fixed seed for
// reproducible output.
func NewGenerator(channels, sampleRate int, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	phases := make([][]float64, channels)
	amps := make([][]float64, channels)
	for c := range channels {
		phases[c] = make([]float64, len(bandSources))
		amps[c] = make([]float64, len(bandSources))
		for b, src := range bandSources {
			phases[c][b] = rng.Float64() * 2 * math.Pi
			amps[c][b] = src.base * (0.8 + 0.4*rng.Float64())
		}
	}

	return &Generator{
		channels:   channels,
		sampleRate: sampleRate,
		rng:        rng,
		phases:     phases,
		amps:       amps,
		noise:      2.0,
		drift:      0.05,
	}
}

// Channels returns the channel count.
func (g *Generator) Channels() int {
	return g.channels
}

// NoiseLevel returns the current noise standard deviation in microvolts.
func (g *Generator) NoiseLevel() float64 {
	return g.noise
}

// SetNoiseLevel adjusts the additive noise standard deviation.
func (g *Generator) SetNoiseLevel(sigma float64) {
	if sigma >= 0 {
		g.noise = sigma
	}
}

// ScaleBand multiplies the target amplitude of the named band on every
// channel, clamped to the band's drift bounds. Used by calibration task
// shaping.
func (g *Generator) ScaleBand(name string, factor float64) {
	for b, src := range bandSources {
		if src.name != name {
			continue
		}
		for c := range g.channels {
			g.amps[c][b] = clamp(g.amps[c][b]*factor, src.min, src.max)
		}
	}
}

// Generate produces the next window of sampleCount samples per channel and
// advances the generator's phase and amplitude state.
func (g *Generator) Generate(sampleCount int) *Window {
	w := &Window{
		Channels:   make([][]float64, g.channels),
		SampleRate: g.sampleRate,
	}

	for c := range g.channels {
		samples := make([]float64, sampleCount)
		for b, src := range bandSources {
			step := 2 * math.Pi * src.freq / float64(g.sampleRate)
			phase := g.phases[c][b]
			amp := g.amps[c][b]
			for i := range sampleCount {
				samples[i] += amp * math.Sin(phase+float64(i)*step)
			}
			g.phases[c][b] = math.Mod(phase+float64(sampleCount)*step, 2*math.Pi)
		}
		for i := range sampleCount {
			samples[i] = clamp(samples[i]+g.noise*g.rng.NormFloat64(), -clampMicrovolts, clampMicrovolts)
		}
		w.Channels[c] = samples
	}

	g.advanceDrift()
	return w
}

// advanceDrift applies one bounded random-walk step to every per-channel
// band amplitude so successive windows stay coherent while the spectrum
// slowly wanders.
func (g *Generator) advanceDrift() {
	for c := range g.channels {
		for b, src := range bandSources {
			step := 1 + g.drift*g.rng.NormFloat64()
			g.amps[c][b] = clamp(g.amps[c][b]*step, src.min, src.max)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
