package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SavGol smooths x with a Savitzky-Golay filter: every output sample is the
// value at the window centre of the least-squares polynomial of the given
// order fitted to the surrounding window samples.
//
// The first and last window/2 samples are taken from a single polynomial
// fitted to the first (last) full window, so the output has the length of
// x and a polynomial of degree <= order passes through unchanged.
// window must be odd, greater than order, and no longer than x.
func SavGol(x []float64, window, order int) ([]float64, error) {
	if window%2 == 0 || window < 1 {
		return nil, fmt.Errorf("savgol: window %d must be odd and positive", window)
	}
	if order < 0 || order >= window {
		return nil, fmt.Errorf("savgol: order %d must be in [0, %d)", order, window)
	}
	n := len(x)
	if n < window {
		return nil, fmt.Errorf("%w: savgol window %d exceeds %d samples", ErrShortInput, window, n)
	}
	if !Finite(x) {
		return nil, ErrNonFinite
	}

	v := vandermonde(window, order)
	coeffs, err := centreCoefficients(v, order)
	if err != nil {
		return nil, err
	}

	half := window / 2
	out := make([]float64, n)
	for i := half; i < n-half; i++ {
		sum := 0.0
		for j, c := range coeffs {
			sum += c * x[i-half+j]
		}
		out[i] = sum
	}

	if err := fitEdge(v, x[:window], out[:half], 0); err != nil {
		return nil, err
	}
	if err := fitEdge(v, x[n-window:], out[n-half:], window-half); err != nil {
		return nil, err
	}
	return out, nil
}

// vandermonde builds the window x (order+1) design matrix on positions
// scaled to [-1, 1], which keeps the normal equations well conditioned.
func vandermonde(window, order int) *mat.Dense {
	half := window / 2
	scale := float64(half)
	if scale == 0 {
		scale = 1
	}
	v := mat.NewDense(window, order+1, nil)
	for i := 0; i < window; i++ {
		u := float64(i-half) / scale
		p := 1.0
		for k := 0; k <= order; k++ {
			v.Set(i, k, p)
			p *= u
		}
	}
	return v
}

// centreCoefficients returns the filter taps that evaluate the fitted
// polynomial at the window centre: the first row of pinv(V).
func centreCoefficients(v *mat.Dense, order int) ([]float64, error) {
	var normal mat.Dense
	normal.Mul(v.T(), v)

	e0 := mat.NewVecDense(order+1, nil)
	e0.SetVec(0, 1)

	var g mat.VecDense
	if err := g.SolveVec(&normal, e0); err != nil {
		return nil, fmt.Errorf("savgol: solving normal equations: %w", err)
	}

	var c mat.VecDense
	c.MulVec(v, &g)

	rows, _ := v.Dims()
	coeffs := make([]float64, rows)
	for i := range coeffs {
		coeffs[i] = c.AtVec(i)
	}
	return coeffs, nil
}

// fitEdge fits a polynomial to one full window of samples and writes its
// values at window positions start, start+1, ... into dst.
func fitEdge(v *mat.Dense, samples, dst []float64, start int) error {
	var beta mat.VecDense
	if err := beta.SolveVec(v, mat.NewVecDense(len(samples), append([]float64(nil), samples...))); err != nil {
		return fmt.Errorf("savgol: edge fit: %w", err)
	}

	_, cols := v.Dims()
	for i := range dst {
		row := start + i
		sum := 0.0
		for k := 0; k < cols; k++ {
			sum += v.At(row, k) * beta.AtVec(k)
		}
		dst[i] = sum
	}
	return nil
}
