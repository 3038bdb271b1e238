package spectral

import (
	"fmt"
	"math"
)

// InvalidLengthError reports a transform input whose length is not a power of
// two. Callers must pad or truncate windows before transforming.
type InvalidLengthError struct {
	Length int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("spectral: input length %d is not a power of two", e.Length)
}

// IsPowerOfTwo reports whether n is a power of two greater than one.
func IsPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}

// Transform computes the forward discrete Fourier transform of the given
// real/imaginary input using an iterative radix-2 Cooley-Tukey algorithm with
// bit-reversal reordering. The angle convention is -2*pi*k/N and no 1/N
// scaling is applied. im may be nil for purely real input. The input slices
// are not modified.
func Transform(re, im []float64) ([]float64, []float64, error) {
	n := len(re)
	if !IsPowerOfTwo(n) {
		return nil, nil, &InvalidLengthError{Length: n}
	}
	if im != nil && len(im) != n {
		return nil, nil, &InvalidLengthError{Length: len(im)}
	}

	outRe := make([]float64, n)
	outIm := make([]float64, n)
	copy(outRe, re)
	if im != nil {
		copy(outIm, im)
	}

	bitReverse(outRe, outIm)

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		ang := -2 * math.Pi / float64(size)
		stepRe, stepIm := math.Cos(ang), math.Sin(ang)

		for start := 0; start < n; start += size {
			wRe, wIm := 1.0, 0.0
			for k := 0; k < half; k++ {
				i, j := start+k, start+k+half
				tRe := wRe*outRe[j] - wIm*outIm[j]
				tIm := wRe*outIm[j] + wIm*outRe[j]
				outRe[j] = outRe[i] - tRe
				outIm[j] = outIm[i] - tIm
				outRe[i] += tRe
				outIm[i] += tIm
				wRe, wIm = wRe*stepRe-wIm*stepIm, wRe*stepIm+wIm*stepRe
			}
		}
	}

	return outRe, outIm, nil
}

// Inverse computes the inverse discrete Fourier transform, including the 1/N
// scaling, so that Inverse(Transform(x)) reproduces x up to floating-point
// error.
func Inverse(re, im []float64) ([]float64, []float64, error) {
	n := len(re)
	if !IsPowerOfTwo(n) {
		return nil, nil, &InvalidLengthError{Length: n}
	}
	if im == nil {
		im = make([]float64, n)
	} else if len(im) != n {
		return nil, nil, &InvalidLengthError{Length: len(im)}
	}

	// Conjugate, forward transform, conjugate, scale.
	conjIm := make([]float64, n)
	for i, v := range im {
		conjIm[i] = -v
	}

	outRe, outIm, err := Transform(re, conjIm)
	if err != nil {
		return nil, nil, err
	}

	scale := 1 / float64(n)
	for i := range outRe {
		outRe[i] *= scale
		outIm[i] *= -scale
	}
	return outRe, outIm, nil
}

// Magnitude returns sqrt(re^2+im^2) per bin. The slices must be equal length.
func Magnitude(re, im []float64) []float64 {
	mag := make([]float64, len(re))
	for i := range re {
		mag[i] = math.Hypot(re[i], im[i])
	}
	return mag
}

// PowerSpectrum transforms the given real samples and returns the squared
// magnitude for each positive-frequency bin (DC through Nyquist, length
// N/2+1).
func PowerSpectrum(samples []float64) ([]float64, error) {
	re, im, err := Transform(samples, nil)
	if err != nil {
		return nil, err
	}

	bins := len(samples)/2 + 1
	power := make([]float64, bins)
	for i := 0; i < bins; i++ {
		power[i] = re[i]*re[i] + im[i]*im[i]
	}
	return power, nil
}

// FrequencyBins returns the frequency in Hz for each positive-frequency bin
// of an fftSize-point transform at the given sample rate (DC through
// Nyquist, length fftSize/2+1).
func FrequencyBins(sampleRate, fftSize int) []float64 {
	bins := fftSize/2 + 1
	freqs := make([]float64, bins)
	for i := range bins {
		freqs[i] = float64(i) * float64(sampleRate) / float64(fftSize)
	}
	return freqs
}

func bitReverse(re, im []float64) {
	n := len(re)
	j := 0
	for i := 1; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
}
