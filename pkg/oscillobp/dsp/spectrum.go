package dsp

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// minSpectrumLen is the zero-padded FFT length used by DominantFrequency,
// giving ~0.006 Hz bins at 100 Hz.
const minSpectrumLen = 16384

// DominantFrequency returns the frequency in Hz with the largest spectral
// magnitude inside [lo, hi]. The mean is removed and the signal zero-padded
// before the transform.
func DominantFrequency(x []float64, fs, lo, hi float64) (float64, error) {
	if len(x) < 2 {
		return 0, fmt.Errorf("%w: %d samples", ErrShortInput, len(x))
	}
	if !(fs > 0) || !(hi > lo) || lo < 0 {
		return 0, fmt.Errorf("dominant frequency: bad band [%v, %v] at %v Hz", lo, hi, fs)
	}
	if !Finite(x) {
		return 0, ErrNonFinite
	}

	size := nextPow2(len(x))
	if size < minSpectrumLen {
		size = minSpectrumLen
	}
	frame := make([]float64, size)
	mean := stat.Mean(x, nil)
	for i, v := range x {
		frame[i] = v - mean
	}

	spectrum := fft.FFTReal(frame)
	res := fs / float64(size)

	best, bestMag := -1, 0.0
	for k := 1; k <= size/2; k++ {
		f := float64(k) * res
		if f < lo || f > hi {
			continue
		}
		if m := cmplx.Abs(spectrum[k]); m > bestMag {
			best, bestMag = k, m
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("dominant frequency: no energy in [%v, %v] Hz", lo, hi)
	}
	return float64(best) * res, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
