package pipeline

import (
	"math"

	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/dsp"
	"gonum.org/v1/gonum/stat"
)

// PulseRate counts beats in the smoothed pulsatile signal and returns
// 60 / mean beat interval in beats per minute, truncated. Fewer than two
// beats give 0.
func PulseRate(smoothed []float64, fs float64) int {
	if !(fs > 0) || math.IsInf(fs, 0) {
		return 0
	}
	peaks := dsp.FindPeaks(smoothed, peakSpacing(fs))
	if len(peaks) < 2 {
		return 0
	}

	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = float64(peaks[i]-peaks[i-1]) / fs
	}
	mean := stat.Mean(intervals, nil)
	if !(mean > 0) {
		return 0
	}
	return int(60 / mean)
}
