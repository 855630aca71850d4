package pipeline

import (
	"fmt"
	"math"

	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/dsp"
	"gonum.org/v1/gonum/floats"
)

// Condition separates the raw recording into the slow cuff-pressure trend
// and the pulsatile oscillations riding on it. Both passes are zero-phase
// 4th-order Butterworth filters at CutoffHz: a low-pass on raw gives the
// trend, a high-pass on the trend gives the oscillations.
func Condition(raw []float64, fs float64) (cuff, pulsatile []float64, err error) {
	if !(fs > 0) || math.IsInf(fs, 0) {
		return nil, nil, fmt.Errorf("%w: sampling rate %v", ErrDegenerateInput, fs)
	}

	low, err := dsp.Butterworth(FilterOrder, CutoffHz, fs, dsp.LowPass)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}
	high, err := dsp.Butterworth(FilterOrder, CutoffHz, fs, dsp.HighPass)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}

	cuff, err = dsp.FiltFilt(low, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cuff trend: %w", ErrDegenerateInput, err)
	}
	pulsatile, err = dsp.FiltFilt(high, cuff)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pulsatile: %w", ErrDegenerateInput, err)
	}
	return cuff, pulsatile, nil
}

// Normalize scales the pulsatile signal by Gain and shifts it up by the
// magnitude of its minimum, so a signal that dips below zero ends with its
// minimum at exactly 0.
func Normalize(pulsatile []float64) []float64 {
	out := make([]float64, len(pulsatile))
	if len(out) == 0 {
		return out
	}
	copy(out, pulsatile)
	floats.Scale(Gain, out)
	floats.AddConst(math.Abs(floats.Min(out)), out)
	return out
}
