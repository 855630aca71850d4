package pipeline

import (
	"fmt"

	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/dsp"
)

// ExtractEnvelope traces the oscillation amplitude over the recording.
//
// Beats are the peaks of smoothed at least PeakSpacingSeconds apart. Their
// heights are joined linearly (held flat before the first and after the
// last beat), then smoothed with a Savitzky-Golay filter and the moving
// average. The returned peaks are the beat indices.
func ExtractEnvelope(smoothed []float64, fs float64) (envelope []float64, peaks []int, err error) {
	if !(fs > 0) {
		return nil, nil, fmt.Errorf("%w: sampling rate %v", ErrDegenerateInput, fs)
	}

	peaks = dsp.FindPeaks(smoothed, peakSpacing(fs))
	if len(peaks) < 2 {
		return nil, peaks, fmt.Errorf("%w: %d oscillation peaks, need at least 2", ErrDegenerateInput, len(peaks))
	}

	heights := make([]float64, len(peaks))
	for i, p := range peaks {
		heights[i] = smoothed[p]
	}
	line, err := dsp.Interp(len(smoothed), peaks, heights)
	if err != nil {
		return nil, peaks, fmt.Errorf("%w: %w", ErrDegenerateInput, err)
	}

	sg, err := dsp.SavGol(line, EnvelopeWindow, EnvelopeOrder)
	if err != nil {
		return nil, peaks, fmt.Errorf("%w: envelope: %w", ErrDegenerateInput, err)
	}
	return dsp.MovingAverage(sg, SmoothWindow), peaks, nil
}
