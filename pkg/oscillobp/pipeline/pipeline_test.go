package pipeline

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/simulate"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestEstimator() *Estimator {
	return NewEstimator(
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger.Discard()),
	)
}

func simulated(t *testing.T) []float64 {
	t.Helper()
	raw, err := simulate.Deflation(simulate.DefaultProfile())
	if err != nil {
		t.Fatalf("Failed to simulate deflation: %v", err)
	}
	return raw
}

func TestEstimateSimulatedDeflation(t *testing.T) {
	res := newTestEstimator().Estimate(simulated(t), DefaultSamplingRate)

	if !res.OK() {
		t.Fatalf("Expected an estimate, got failure")
	}
	sbp, dbp := *res.SBP, *res.DBP
	t.Logf("SBP=%.1f DBP=%.1f MAP=%.1f pulse=%d", sbp, dbp, res.MAP, res.PulseRate)

	if sbp < 110 || sbp > 130 {
		t.Errorf("Expected SBP in [110, 130], got %.1f", sbp)
	}
	if dbp < 70 || dbp > 90 {
		t.Errorf("Expected DBP in [70, 90], got %.1f", dbp)
	}
	if !(sbp > res.MAP && res.MAP > dbp) {
		t.Errorf("Expected SBP > MAP > DBP, got %.1f / %.1f / %.1f", sbp, res.MAP, dbp)
	}
	// filter start-up at the quiet ends of the record adds a beat or two
	if res.PulseRate < 68 || res.PulseRate > 76 {
		t.Errorf("Expected pulse near 72, got %d", res.PulseRate)
	}
	if res.Timestamp == nil || !res.Timestamp.Equal(fixedNow) {
		t.Errorf("Expected timestamp %v, got %v", fixedNow, res.Timestamp)
	}
}

func TestAnalyzeIntermediates(t *testing.T) {
	raw := simulated(t)
	a, err := newTestEstimator().Analyze(raw, DefaultSamplingRate)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	n := len(raw)
	for name, w := range map[string][]float64{
		"cuff":       a.Cuff,
		"pulsatile":  a.Pulsatile,
		"normalized": a.Normalized,
		"smoothed":   a.Smoothed,
		"envelope":   a.Envelope,
	} {
		if len(w) != n {
			t.Errorf("Expected %s to have %d samples, got %d", name, n, len(w))
		}
	}

	peak := a.Envelope[a.XMAP]
	if !(0 < a.YSys && a.YSys < a.YDia && a.YDia < peak) {
		t.Errorf("Expected 0 < ySys < yDia < peak, got %v %v %v", a.YSys, a.YDia, peak)
	}
	if a.YSys != SystolicRatio*peak || a.YDia != DiastolicRatio*peak {
		t.Errorf("Thresholds %v/%v do not match ratios of peak %v", a.YSys, a.YDia, peak)
	}

	span := int(SearchFraction * float64(n))
	if a.XSys < a.XMAP-span || a.XSys >= a.XMAP {
		t.Errorf("xSys %d outside [%d, %d)", a.XSys, a.XMAP-span, a.XMAP)
	}
	if a.XDia < a.XMAP || a.XDia >= a.XMAP+span {
		t.Errorf("xDia %d outside [%d, %d)", a.XDia, a.XMAP, a.XMAP+span)
	}

	lowest := math.Inf(1)
	for _, v := range a.Normalized {
		lowest = math.Min(lowest, v)
	}
	if lowest != 0 {
		t.Errorf("Expected normalized minimum 0, got %v", lowest)
	}

	if a.Quality.PeakCount != len(a.Peaks) {
		t.Errorf("Expected peak count %d, got %d", len(a.Peaks), a.Quality.PeakCount)
	}
	if a.Quality.Duration != 30 {
		t.Errorf("Expected duration 30s, got %v", a.Quality.Duration)
	}
	if math.Abs(a.Quality.SpectralPulseRate-72) > 2 {
		t.Errorf("Expected spectral pulse near 72, got %v", a.Quality.SpectralPulseRate)
	}
	if a.Quality.DeflationRate < 1 || a.Quality.DeflationRate > 10 {
		t.Errorf("Expected deflation rate near 4.7 mmHg/s, got %v", a.Quality.DeflationRate)
	}

	if *a.Result.SBP != roundTenth(a.SBP) || *a.Result.DBP != roundTenth(a.DBP) {
		t.Errorf("Result %v/%v does not match points %v/%v", *a.Result.SBP, *a.Result.DBP, a.SBP, a.DBP)
	}
}

func TestEstimateFailures(t *testing.T) {
	zeros := make([]float64, 3000)
	withNaN := simulated(t)
	withNaN[1200] = math.NaN()
	withInf := simulated(t)
	withInf[10] = math.Inf(-1)

	tests := []struct {
		name string
		raw  []float64
		fs   float64
	}{
		{"nil", nil, 100},
		{"empty", []float64{}, 100},
		{"shorter than padding", make([]float64, 15), 100},
		{"all zero", zeros, 100},
		{"NaN sample", withNaN, 100},
		{"Inf sample", withInf, 100},
		{"zero rate", simulated(t), 0},
		{"negative rate", simulated(t), -100},
		{"NaN rate", simulated(t), math.NaN()},
		{"cutoff above Nyquist", simulated(t), 3},
	}

	est := newTestEstimator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := est.Estimate(tt.raw, tt.fs)
			if diff := cmp.Diff(Failure(), res); diff != "" {
				t.Errorf("Expected failure result (-want +got):\n%s", diff)
			}

			if _, err := est.Analyze(tt.raw, tt.fs); !errors.Is(err, ErrDegenerateInput) {
				t.Errorf("Expected ErrDegenerateInput from Analyze, got %v", err)
			}
		})
	}
}

func TestEstimateRecoversFromPanic(t *testing.T) {
	est := NewEstimator(
		WithClock(func() time.Time { panic("clock stopped") }),
		WithLogger(logger.Discard()),
	)
	raw := simulated(t)

	if res := est.Estimate(raw, DefaultSamplingRate); res.OK() || res.PulseRate != 0 || res.Timestamp != nil {
		t.Errorf("Expected failure result after panic, got %+v", res)
	}
	if _, err := est.Analyze(raw, DefaultSamplingRate); !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("Expected ErrDegenerateInput after panic, got %v", err)
	}
}

func TestEstimateConcurrent(t *testing.T) {
	est := newTestEstimator()
	raw := simulated(t)
	want := est.Estimate(raw, DefaultSamplingRate)

	const workers = 8
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = est.Estimate(raw, DefaultSamplingRate)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Worker %d result differs (-want +got):\n%s", i, diff)
		}
	}
}

func TestEstimateDoesNotModifyInput(t *testing.T) {
	raw := simulated(t)
	orig := append([]float64(nil), raw...)
	newTestEstimator().Estimate(raw, DefaultSamplingRate)
	if diff := cmp.Diff(orig, raw); diff != "" {
		t.Errorf("Estimate modified its input (-want +got):\n%s", diff)
	}
}

func TestPackageEstimate(t *testing.T) {
	if res := Estimate(simulated(t), DefaultSamplingRate); !res.OK() {
		t.Error("Expected package-level Estimate to succeed")
	}
}
