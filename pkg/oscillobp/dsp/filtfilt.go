package dsp

import (
	"errors"
	"fmt"
	"math"
)

// ErrShortInput is returned when a signal is too short for an operation.
var ErrShortInput = errors.New("input too short")

// ErrNonFinite is returned when a signal contains NaN or Inf samples.
var ErrNonFinite = errors.New("input contains non-finite samples")

// Finite reports whether every sample in x is a finite number.
func Finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FiltFilt applies the cascade forward and then backward so the output has
// no phase lag and the same length as x.
//
// Both ends are extended by PadLen samples of odd reflection
// (2*x[0] - x[k]) and every pass starts from the cascade's steady state
// scaled by its first sample, the same edge handling as scipy's filtfilt.
// The input must be longer than PadLen.
func FiltFilt(c Cascade, x []float64) ([]float64, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: empty cascade", ErrInvalidFilter)
	}
	pad := c.PadLen()
	n := len(x)
	if n <= pad {
		return nil, fmt.Errorf("%w: %d samples, need more than %d", ErrShortInput, n, pad)
	}
	if !Finite(x) {
		return nil, ErrNonFinite
	}

	ext := make([]float64, 0, n+2*pad)
	for k := pad; k >= 1; k-- {
		ext = append(ext, 2*x[0]-x[k])
	}
	ext = append(ext, x...)
	for k := 1; k <= pad; k++ {
		ext = append(ext, 2*x[n-1]-x[n-1-k])
	}

	zi := c.steadyState()

	// forward
	state := scaleStates(zi, ext[0])
	y := c.Filter(ext, state)

	// backward
	reverse(y)
	state = scaleStates(zi, y[0])
	y = c.Filter(y, state)
	reverse(y)

	out := make([]float64, n)
	copy(out, y[pad:pad+n])
	return out, nil
}

func scaleStates(zi [][2]float64, k float64) [][2]float64 {
	out := make([][2]float64, len(zi))
	for i, z := range zi {
		out[i] = [2]float64{z[0] * k, z[1] * k}
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
