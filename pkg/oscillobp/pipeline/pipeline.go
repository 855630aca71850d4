// Package pipeline estimates blood pressure and pulse rate from a single
// oscillometric cuff-pressure recording taken during a controlled deflation.
//
// The estimate is one stateless pass over the samples:
//
//	raw -> Condition -> Normalize -> smooth -> ExtractEnvelope -> EstimatePressure
//	                                       \-> PulseRate
//
// Every derived waveform keeps the length and time alignment of the raw
// recording (sample i is at i/fs seconds).
package pipeline

import (
	"errors"
	"math"
	"time"
)

const (
	// DefaultSamplingRate is the acquisition rate of the cuff controller.
	DefaultSamplingRate = 100.0

	CutoffHz    = 2.0
	FilterOrder = 4

	// Gain scales the pulsatile component before it is shifted non-negative.
	Gain = 5.0

	SmoothWindow = 3

	// PeakSpacingSeconds is the minimum time between two detected beats.
	PeakSpacingSeconds = 0.4

	EnvelopeWindow = 51
	EnvelopeOrder  = 3

	// SystolicRatio and DiastolicRatio are the fractions of the maximum
	// oscillation amplitude that mark SBP and DBP.
	SystolicRatio  = 0.5
	DiastolicRatio = 0.7

	// SearchFraction bounds the SBP/DBP search to this fraction of the
	// recording on each side of the MAP point.
	SearchFraction = 0.1
)

// ErrDegenerateInput is returned when a recording cannot produce an estimate:
// too short, non-finite, flat, or without enough oscillations.
var ErrDegenerateInput = errors.New("degenerate input")

// Result is the outcome of one estimate. A failed estimate has nil SBP, DBP
// and Timestamp and a zero PulseRate.
type Result struct {
	SBP       *float64   `json:"sbp"`
	DBP       *float64   `json:"dbp"`
	MAP       float64    `json:"-"`
	PulseRate int        `json:"pulse_rate"`
	Timestamp *time.Time `json:"timestamp"`
}

// OK reports whether the result carries both pressures.
func (r Result) OK() bool {
	return r.SBP != nil && r.DBP != nil
}

// Failure returns the result reported when estimation fails.
func Failure() Result {
	return Result{}
}

// PressurePoints are the envelope positions and thresholds found by
// EstimatePressure. Pressures are unrounded cuff values in mmHg.
type PressurePoints struct {
	XMAP int     `json:"x_map"`
	XSys int     `json:"x_sys"`
	XDia int     `json:"x_dia"`
	YSys float64 `json:"y_sys"`
	YDia float64 `json:"y_dia"`
	MAP  float64 `json:"map"`
	SBP  float64 `json:"sbp"`
	DBP  float64 `json:"dbp"`
}

// Analysis exposes every intermediate of one estimate so callers can plot
// or inspect it.
type Analysis struct {
	SamplingRate float64   `json:"sampling_rate"`
	Cuff         []float64 `json:"cuff"`
	Pulsatile    []float64 `json:"pulsatile"`
	Normalized   []float64 `json:"normalized"`
	Smoothed     []float64 `json:"smoothed"`
	Envelope     []float64 `json:"envelope"`
	Peaks        []int     `json:"peaks"`
	PressurePoints
	Quality Quality `json:"quality"`
	Result  Result  `json:"result"`
}

// roundTenth rounds v to one decimal place, halves away from zero.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// peakSpacing converts PeakSpacingSeconds to a whole number of samples.
func peakSpacing(fs float64) int {
	d := int(math.Ceil(PeakSpacingSeconds*fs - 1e-9))
	if d < 1 {
		return 1
	}
	return d
}

func newResult(p PressurePoints, pulse int, at time.Time) Result {
	sbp := roundTenth(p.SBP)
	dbp := roundTenth(p.DBP)
	return Result{
		SBP:       &sbp,
		DBP:       &dbp,
		MAP:       roundTenth(p.MAP),
		PulseRate: pulse,
		Timestamp: &at,
	}
}
