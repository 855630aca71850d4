package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// EstimatePressure locates MAP at the envelope maximum and then searches
// SearchFraction of the recording on either side of it: SBP before MAP,
// where the envelope is closest to SystolicRatio of its peak, and DBP from
// MAP onwards, closest to DiastolicRatio. Pressures are read from cuff at
// the matching indices.
func EstimatePressure(cuff, envelope []float64) (PressurePoints, error) {
	n := len(envelope)
	if n == 0 {
		return PressurePoints{}, fmt.Errorf("%w: empty envelope", ErrDegenerateInput)
	}
	if len(cuff) != n {
		return PressurePoints{}, fmt.Errorf("%w: cuff has %d samples, envelope %d", ErrDegenerateInput, len(cuff), n)
	}

	xMAP := floats.MaxIdx(envelope)
	peak := envelope[xMAP]
	if !(peak > 0) || math.IsInf(peak, 0) {
		return PressurePoints{}, fmt.Errorf("%w: envelope peak %v", ErrDegenerateInput, peak)
	}

	p := PressurePoints{
		XMAP: xMAP,
		YSys: SystolicRatio * peak,
		YDia: DiastolicRatio * peak,
		MAP:  cuff[xMAP],
	}

	span := int(SearchFraction * float64(n))
	left := max(0, xMAP-span)
	right := min(n, xMAP+span)
	if left >= xMAP {
		return PressurePoints{}, fmt.Errorf("%w: no samples before MAP at %d", ErrDegenerateInput, xMAP)
	}
	if xMAP >= right {
		return PressurePoints{}, fmt.Errorf("%w: no samples after MAP at %d", ErrDegenerateInput, xMAP)
	}

	p.XSys = left + closest(envelope[left:xMAP], p.YSys)
	p.XDia = xMAP + closest(envelope[xMAP:right], p.YDia)
	p.SBP = cuff[p.XSys]
	p.DBP = cuff[p.XDia]
	return p, nil
}

// closest returns the first index of x whose value is nearest to target.
func closest(x []float64, target float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, v := range x {
		if d := math.Abs(v - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
