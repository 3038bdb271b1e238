package spectral

import (
	"github.com/neurosim-io/neurosim/pkg/logging"
)

// Band defines a named EEG frequency range. Power for a band is averaged
// over the spectrum bins whose frequency falls within [Low, High).
type Band struct {
	Name string
	Low  float64
	High float64
}

// Bands is the canonical EEG band table.
var Bands = []Band{
	{Name: "delta", Low: 0.5, High: 4},
	{Name: "theta", Low: 4, High: 8},
	{Name: "alpha", Low: 8, High: 13},
	{Name: "beta", Low: 13, High: 30},
	{Name: "gamma", Low: 30, High: 50},
}

// BandPowers holds the average spectral power per EEG band. A band with no
// contributing bins reports zero.
type BandPowers struct {
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Total returns the summed power across all bands.
func (bp BandPowers) Total() float64 {
	return bp.Delta + bp.Theta + bp.Alpha + bp.Beta + bp.Gamma
}

// Analyzer computes band powers and diagnostics from time-domain windows.
type Analyzer struct {
	sampleRate int
	logger     logging.Logger
}

// NewAnalyzer creates an analyzer for signals at the given sample rate.
func NewAnalyzer(sampleRate int) *Analyzer {
	return &Analyzer{
		sampleRate: sampleRate,
		logger: logging.WithFields(logging.Fields{
			"component":   "spectral_analyzer",
			"sample_rate": sampleRate,
		}),
	}
}

// SampleRate returns the sample rate the analyzer was built for.
func (a *Analyzer) SampleRate() int {
	return a.sampleRate
}

// BandPowers computes the average power within each EEG band for one window
// of samples. The window length must be a power of two.
func (a *Analyzer) BandPowers(samples []float64) (BandPowers, error) {
	power, err := PowerSpectrum(samples)
	if err != nil {
		return BandPowers{}, err
	}

	freqs := FrequencyBins(a.sampleRate, len(samples))

	sums := make([]float64, len(Bands))
	counts := make([]int, len(Bands))
	for i, f := range freqs {
		for b, band := range Bands {
			if f >= band.Low && f < band.High {
				sums[b] += power[i]
				counts[b]++
				break
			}
		}
	}

	avg := func(b int) float64 {
		if counts[b] == 0 {
			return 0
		}
		return sums[b] / float64(counts[b])
	}

	return BandPowers{
		Delta: avg(0),
		Theta: avg(1),
		Alpha: avg(2),
		Beta:  avg(3),
		Gamma: avg(4),
	}, nil
}

// DominantFrequency returns the frequency of the strongest spectrum bin
// strictly inside (0.5, 50) Hz. Diagnostic only; returns 0 when no bin falls
// in that range.
func (a *Analyzer) DominantFrequency(samples []float64) (float64, error) {
	power, err := PowerSpectrum(samples)
	if err != nil {
		return 0, err
	}

	freqs := FrequencyBins(a.sampleRate, len(samples))

	best := -1
	for i, f := range freqs {
		if f <= 0.5 || f >= 50 {
			continue
		}
		if best < 0 || power[i] > power[best] {
			best = i
		}
	}
	if best < 0 {
		return 0, nil
	}
	return freqs[best], nil
}
