package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns the one-sided amplitude spectrum of a series sampled
// every dt, with its mean removed. freqs are in cycles per time unit.
func PowerSpectrum(series []float64, dt float64) (freqs, power []float64) {
	n := len(series)
	if n < 2 || dt <= 0 {
		return nil, nil
	}

	mean := stat.Mean(series, nil)
	centered := make([]float64, n)
	for i, v := range series {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, centered)

	freqs = make([]float64, len(coeffs))
	power = make([]float64, len(coeffs))
	for i, c := range coeffs {
		freqs[i] = fft.Freq(i) / dt
		power[i] = cmplx.Abs(c)
	}
	return freqs, power
}

// DominantFrequency returns the non-zero frequency with the most power.
func DominantFrequency(series []float64, dt float64) float64 {
	freqs, power := PowerSpectrum(series, dt)
	best := 0
	for i := 1; i < len(power); i++ {
		if best == 0 || power[i] > power[best] {
			best = i
		}
	}
	if best == 0 {
		return 0
	}
	return freqs[best]
}
