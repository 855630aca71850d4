package dsp

import (
	"fmt"
	"sort"
)

// FindPeaks returns the indices of the local maxima of x, in increasing
// order, keeping only peaks at least minDistance samples apart.
//
// A peak is a sample strictly greater than its left neighbour and strictly
// greater than the first differing sample to its right; flat tops resolve
// to their middle sample (rounded down). The first and last samples are
// never peaks. When two peaks are closer than minDistance the higher one
// wins, and peaks are considered from the highest down so a removed peak
// never suppresses others.
func FindPeaks(x []float64, minDistance int) []int {
	peaks := localMaxima(x)
	if minDistance <= 1 || len(peaks) < 2 {
		return peaks
	}
	return selectByDistance(peaks, x, minDistance)
}

func localMaxima(x []float64) []int {
	var peaks []int
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < n-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				left, right := i, ahead-1
				peaks = append(peaks, (left+right)/2)
				i = ahead
				continue
			}
		}
		i++
	}
	return peaks
}

func selectByDistance(peaks []int, x []float64, minDistance int) []int {
	n := len(peaks)
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	// positions of peaks sorted by height, lowest first
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] < x[peaks[order[b]]]
	})

	for i := n - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < minDistance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < n && peaks[k]-peaks[j] < minDistance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, n)
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// Interp evaluates the piecewise-linear curve through (xp[i], fp[i]) at
// every integer position 0..n-1. Positions left of xp[0] take fp[0] and
// positions right of the last point take the last value. xp must be
// strictly increasing.
func Interp(n int, xp []int, fp []float64) ([]float64, error) {
	if len(xp) == 0 || len(xp) != len(fp) {
		return nil, fmt.Errorf("interp: %d positions, %d values", len(xp), len(fp))
	}
	for i := 1; i < len(xp); i++ {
		if xp[i] <= xp[i-1] {
			return nil, fmt.Errorf("interp: positions not increasing at %d", i)
		}
	}

	out := make([]float64, n)
	seg := 0
	last := len(xp) - 1
	for i := 0; i < n; i++ {
		switch {
		case i <= xp[0]:
			out[i] = fp[0]
		case i >= xp[last]:
			out[i] = fp[last]
		default:
			for xp[seg+1] < i {
				seg++
			}
			x0, x1 := float64(xp[seg]), float64(xp[seg+1])
			t := (float64(i) - x0) / (x1 - x0)
			out[i] = fp[seg] + t*(fp[seg+1]-fp[seg])
		}
	}
	return out, nil
}
