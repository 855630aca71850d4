package dsp

import (
	"errors"
	"fmt"
	"math"
)

// FilterKind selects the response of a Butterworth design.
type FilterKind int

const (
	LowPass FilterKind = iota
	HighPass
)

func (k FilterKind) String() string {
	switch k {
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	default:
		return "unknown"
	}
}

// ErrInvalidFilter is returned for filter designs that cannot be realised.
var ErrInvalidFilter = errors.New("invalid filter design")

// Section is a second-order IIR stage in transposed direct form II.
// Coefficients are normalised so the leading denominator term is 1,
// A holds a1 and a2.
type Section struct {
	B [3]float64
	A [2]float64
}

// DCGain returns the section's response to a constant input.
func (s Section) DCGain() float64 {
	return (s.B[0] + s.B[1] + s.B[2]) / (1 + s.A[0] + s.A[1])
}

// steadyState returns the internal state reached after a unit step has
// settled. Scaling it by the first input sample avoids start-up transients.
func (s Section) steadyState() [2]float64 {
	y := s.DCGain()
	var z [2]float64
	z[1] = s.B[2] - s.A[1]*y
	z[0] = s.B[1] - s.A[0]*y + z[1]
	return z
}

// Cascade is a chain of second-order sections applied in order.
type Cascade []Section

// Butterworth designs a digital Butterworth filter of the given even order
// using the bilinear transform with pre-warped cutoff, the same response
// scipy.signal.butter produces. cutoff and fs are in Hz.
func Butterworth(order int, cutoff, fs float64, kind FilterKind) (Cascade, error) {
	if order < 2 || order%2 != 0 {
		return nil, fmt.Errorf("%w: order %d must be even and >= 2", ErrInvalidFilter, order)
	}
	if !(fs > 0) || math.IsInf(fs, 0) {
		return nil, fmt.Errorf("%w: sampling rate %v", ErrInvalidFilter, fs)
	}
	if !(cutoff > 0) || cutoff >= fs/2 {
		return nil, fmt.Errorf("%w: cutoff %v Hz outside (0, %v)", ErrInvalidFilter, cutoff, fs/2)
	}

	// pre-warped analog cutoff, normalised by 2*fs
	w := math.Tan(math.Pi * cutoff / fs)
	w2 := w * w

	sections := make(Cascade, order/2)
	for k := range sections {
		theta := math.Pi * float64(2*k+1) / float64(2*order)
		zeta := math.Sin(theta)

		a0 := 1 + 2*zeta*w + w2
		s := Section{
			A: [2]float64{2 * (w2 - 1) / a0, (1 - 2*zeta*w + w2) / a0},
		}
		switch kind {
		case LowPass:
			g := w2 / a0
			s.B = [3]float64{g, 2 * g, g}
		case HighPass:
			g := 1 / a0
			s.B = [3]float64{g, -2 * g, g}
		default:
			return nil, fmt.Errorf("%w: unsupported kind %v", ErrInvalidFilter, kind)
		}
		sections[k] = s
	}
	return sections, nil
}

// PadLen is the number of samples FiltFilt extends on each side of the input.
func (c Cascade) PadLen() int {
	return 3 * (2*len(c) + 1)
}

// steadyState returns the per-section initial states for a unit step through
// the whole cascade. Each section sees the DC gain of the sections before it.
func (c Cascade) steadyState() [][2]float64 {
	zi := make([][2]float64, len(c))
	scale := 1.0
	for i, s := range c {
		z := s.steadyState()
		zi[i] = [2]float64{z[0] * scale, z[1] * scale}
		scale *= s.DCGain()
	}
	return zi
}

// Filter runs x through the cascade once (causal, with phase lag) starting
// from the given per-section states, which are updated in place.
func (c Cascade) Filter(x []float64, state [][2]float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	for si, s := range c {
		z := state[si]
		for i, v := range y {
			out := s.B[0]*v + z[0]
			z[0] = s.B[1]*v - s.A[0]*out + z[1]
			z[1] = s.B[2]*v - s.A[1]*out
			y[i] = out
		}
		state[si] = z
	}
	return y
}
