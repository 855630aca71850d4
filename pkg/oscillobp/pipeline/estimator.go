package pipeline

import (
	"fmt"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/dsp"
)

// Logger is the subset of the application logger the estimator uses.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Estimator runs the pipeline. It holds no per-call state and may be used
// from several goroutines at once.
type Estimator struct {
	now func() time.Time
	log Logger
}

type Option func(*Estimator)

// WithClock sets the clock used to stamp successful results.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l Logger) Option {
	return func(e *Estimator) {
		if l != nil {
			e.log = l
		}
	}
}

func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		now: time.Now,
		log: logger.With("pipeline"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEstimator = NewEstimator()

// Estimate runs the pipeline with the default estimator.
func Estimate(raw []float64, fs float64) Result {
	return defaultEstimator.Estimate(raw, fs)
}

// Estimate returns SBP, DBP and pulse rate for one recording. It never
// fails: any error or panic inside the pipeline yields Failure().
func (e *Estimator) Estimate(raw []float64, fs float64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("estimate panicked: %v", r)
			res = Failure()
		}
	}()

	a, err := e.run(raw, fs, false)
	if err != nil {
		e.log.Warnf("estimate failed: %v", err)
		return Failure()
	}
	return a.Result
}

// Analyze runs the same pipeline as Estimate but returns the intermediates
// and quality diagnostics, or the error that stopped it.
func (e *Estimator) Analyze(raw []float64, fs float64) (a *Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("analyze panicked: %v", r)
			a, err = nil, fmt.Errorf("%w: internal error: %v", ErrDegenerateInput, r)
		}
	}()
	return e.run(raw, fs, true)
}

func (e *Estimator) run(raw []float64, fs float64, detail bool) (*Analysis, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDegenerateInput)
	}
	if !dsp.Finite(raw) {
		return nil, fmt.Errorf("%w: %w", ErrDegenerateInput, dsp.ErrNonFinite)
	}

	cuff, pulsatile, err := Condition(raw, fs)
	if err != nil {
		return nil, err
	}
	normalized := Normalize(pulsatile)
	smoothed := dsp.MovingAverage(normalized, SmoothWindow)

	envelope, peaks, err := ExtractEnvelope(smoothed, fs)
	if err != nil {
		return nil, err
	}
	points, err := EstimatePressure(cuff, envelope)
	if err != nil {
		return nil, err
	}
	pulse := PulseRate(smoothed, fs)

	a := &Analysis{
		SamplingRate:   fs,
		PressurePoints: points,
		Peaks:          peaks,
		Result:         newResult(points, pulse, e.now()),
	}
	e.log.Debugf("estimate: sbp=%.1f dbp=%.1f map=%.1f pulse=%d from %d samples",
		points.SBP, points.DBP, points.MAP, pulse, len(raw))

	if detail {
		a.Cuff = cuff
		a.Pulsatile = pulsatile
		a.Normalized = normalized
		a.Smoothed = smoothed
		a.Envelope = envelope
		a.Quality = assessQuality(a)
	}
	return a, nil
}
