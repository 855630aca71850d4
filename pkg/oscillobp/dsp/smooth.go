package dsp

// MovingAverage returns the centred running mean of x over window samples.
// The output has the same length as x. Near the ends the mean is taken over
// the neighbours that exist rather than padding with zeros.
func MovingAverage(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	if window <= 1 {
		copy(out, x)
		return out
	}

	before := (window - 1) / 2
	after := window / 2
	for i := range x {
		lo := i - before
		if lo < 0 {
			lo = 0
		}
		hi := i + after
		if hi > len(x)-1 {
			hi = len(x) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += x[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
