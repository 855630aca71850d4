package pipeline

import (
	"sort"

	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/dsp"
	"github.com/pconstantinou/savitzkygolay"
	"gonum.org/v1/gonum/stat"
)

// Pulse band searched for the spectral pulse rate, in Hz (30-210 bpm).
const (
	pulseBandLow  = 0.5
	pulseBandHigh = 3.5
)

// Quality holds recording diagnostics. They never change the Result and are
// left at zero when they cannot be computed.
type Quality struct {
	// DeflationRate is the median cuff deflation speed around MAP, mmHg/s.
	DeflationRate float64 `json:"deflation_rate"`
	// SpectralPulseRate is the dominant pulsatile frequency, in bpm.
	SpectralPulseRate float64 `json:"spectral_pulse_rate"`
	PeakCount         int     `json:"peak_count"`
	Duration          float64 `json:"duration"`
}

func assessQuality(a *Analysis) Quality {
	fs := a.SamplingRate
	q := Quality{
		PeakCount: len(a.Peaks),
		Duration:  float64(len(a.Cuff)) / fs,
	}

	if f, err := dsp.DominantFrequency(a.Pulsatile, fs, pulseBandLow, pulseBandHigh); err == nil {
		q.SpectralPulseRate = f * 60
	}
	q.DeflationRate = deflationRate(a.Cuff, fs, a.XMAP)
	return q
}

// deflationRate differentiates the cuff trend with a Savitzky-Golay filter
// and returns the median of -dP/dt inside the SBP/DBP search window.
func deflationRate(cuff []float64, fs float64, xMAP int) float64 {
	n := len(cuff)
	if n < EnvelopeWindow {
		return 0
	}
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) / fs
	}

	filter, err := savitzkygolay.NewFilter(EnvelopeWindow, 1, EnvelopeOrder)
	if err != nil {
		return 0
	}
	slope, err := filter.Process(cuff, ts)
	if err != nil || len(slope) == 0 {
		return 0
	}

	span := int(SearchFraction * float64(n))
	left := max(0, xMAP-span)
	right := min(len(slope), xMAP+span)
	if left >= right {
		return 0
	}
	rates := make([]float64, 0, right-left)
	for _, s := range slope[left:right] {
		rates = append(rates, -s)
	}
	sort.Float64s(rates)
	return stat.Quantile(0.5, stat.Empirical, rates, nil)
}
