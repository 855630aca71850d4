package dsp

import (
	"errors"
	"math"
	"testing"
)

func TestButterworthDCGain(t *testing.T) {
	tests := []struct {
		kind FilterKind
		want float64
	}{
		{LowPass, 1},
		{HighPass, 0},
	}

	for _, tt := range tests {
		c, err := Butterworth(4, 2, 100, tt.kind)
		if err != nil {
			t.Fatalf("Butterworth(%v) failed: %v", tt.kind, err)
		}
		if len(c) != 2 {
			t.Fatalf("Expected 2 sections for order 4, got %d", len(c))
		}

		gain := 1.0
		for _, s := range c {
			gain *= s.DCGain()
		}
		if math.Abs(gain-tt.want) > 1e-12 {
			t.Errorf("%v DC gain = %v, expected %v", tt.kind, gain, tt.want)
		}
	}
}

func TestButterworthInvalid(t *testing.T) {
	tests := []struct {
		name   string
		order  int
		cutoff float64
		fs     float64
	}{
		{"odd order", 3, 2, 100},
		{"zero order", 0, 2, 100},
		{"cutoff at nyquist", 4, 50, 100},
		{"negative cutoff", 4, -1, 100},
		{"zero rate", 4, 2, 0},
		{"nan rate", 4, 2, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Butterworth(tt.order, tt.cutoff, tt.fs, LowPass)
			if !errors.Is(err, ErrInvalidFilter) {
				t.Errorf("Expected ErrInvalidFilter, got %v", err)
			}
		})
	}
}

// magnitude evaluates |H(e^jw)| of the cascade at frequency f.
func magnitude(c Cascade, f, fs float64) float64 {
	w := 2 * math.Pi * f / fs
	z1 := complex(math.Cos(w), -math.Sin(w))
	z2 := z1 * z1
	h := complex(1, 0)
	for _, s := range c {
		num := complex(s.B[0], 0) + complex(s.B[1], 0)*z1 + complex(s.B[2], 0)*z2
		den := complex(1, 0) + complex(s.A[0], 0)*z1 + complex(s.A[1], 0)*z2
		h *= num / den
	}
	return math.Hypot(real(h), imag(h))
}

func TestButterworthHalfPowerAtCutoff(t *testing.T) {
	for _, kind := range []FilterKind{LowPass, HighPass} {
		c, err := Butterworth(4, 2, 100, kind)
		if err != nil {
			t.Fatalf("Butterworth failed: %v", err)
		}
		got := magnitude(c, 2, 100)
		if math.Abs(got-math.Sqrt(0.5)) > 1e-9 {
			t.Errorf("%v |H(fc)| = %v, expected %v", kind, got, math.Sqrt(0.5))
		}
	}
}

func TestCascadeFilterState(t *testing.T) {
	c, err := Butterworth(4, 2, 100, LowPass)
	if err != nil {
		t.Fatalf("Butterworth failed: %v", err)
	}

	// a constant input starting from the steady state never moves
	x := make([]float64, 50)
	for i := range x {
		x[i] = 7
	}
	y := c.Filter(x, scaleStates(c.steadyState(), 7))
	for i, v := range y {
		if math.Abs(v-7) > 1e-9 {
			t.Fatalf("Sample %d = %v, expected 7", i, v)
		}
	}
}
