// Package simulate generates synthetic oscillometric recordings with known
// blood pressure, for tests, demos and the cuff emulator.
package simulate

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var ErrInvalidProfile = errors.New("invalid deflation profile")

// Profile describes one simulated deflation.
type Profile struct {
	StartPressure float64 `json:"start_pressure"` // mmHg
	EndPressure   float64 `json:"end_pressure"`   // mmHg
	Duration      float64 `json:"duration"`       // seconds
	SamplingRate  float64 `json:"sampling_rate"`  // Hz
	PulseRate     float64 `json:"pulse_rate"`     // beats per minute

	SBP float64 `json:"sbp"`
	MAP float64 `json:"map"`
	DBP float64 `json:"dbp"`

	// Amplitude is the peak oscillation in mmHg, reached at MAP.
	Amplitude float64 `json:"amplitude"`
	// Noise is the standard deviation of additive Gaussian noise in mmHg.
	Noise float64 `json:"noise"`
	Seed  int64   `json:"seed"`
}

// DefaultProfile is a 180 to 40 mmHg deflation over 30 s at 100 Hz with a
// 72 bpm pulse and a 120/80 (MAP 100) subject.
func DefaultProfile() Profile {
	return Profile{
		StartPressure: 180,
		EndPressure:   40,
		Duration:      30,
		SamplingRate:  100,
		PulseRate:     72,
		SBP:           120,
		MAP:           100,
		DBP:           80,
		Amplitude:     3,
		Seed:          1,
	}
}

func (p Profile) Validate() error {
	switch {
	case !(p.Duration > 0):
		return fmt.Errorf("%w: duration %v", ErrInvalidProfile, p.Duration)
	case !(p.SamplingRate > 0):
		return fmt.Errorf("%w: sampling rate %v", ErrInvalidProfile, p.SamplingRate)
	case !(p.StartPressure > p.EndPressure):
		return fmt.Errorf("%w: pressure must fall from %v to %v", ErrInvalidProfile, p.StartPressure, p.EndPressure)
	case !(p.SBP > p.MAP && p.MAP > p.DBP):
		return fmt.Errorf("%w: need SBP > MAP > DBP, got %v/%v/%v", ErrInvalidProfile, p.SBP, p.MAP, p.DBP)
	case !(p.PulseRate > 0):
		return fmt.Errorf("%w: pulse rate %v", ErrInvalidProfile, p.PulseRate)
	case !(p.Amplitude > 0):
		return fmt.Errorf("%w: amplitude %v", ErrInvalidProfile, p.Amplitude)
	case p.Noise < 0:
		return fmt.Errorf("%w: noise %v", ErrInvalidProfile, p.Noise)
	}
	return nil
}

// Samples returns the number of samples Deflation produces.
func (p Profile) Samples() int {
	return int(math.Round(p.Duration * p.SamplingRate))
}

// OscillationAmplitude is the pulse amplitude at cuff pressure c: a Gaussian
// in pressure peaking at MAP, with each side's width chosen so the
// amplitude is half the maximum at SBP and 0.7 of it at DBP.
func (p Profile) OscillationAmplitude(c float64) float64 {
	var sigma float64
	if c >= p.MAP {
		sigma = (p.SBP - p.MAP) / math.Sqrt(-2*math.Log(0.5))
	} else {
		sigma = (p.MAP - p.DBP) / math.Sqrt(-2*math.Log(0.7))
	}
	d := (c - p.MAP) / sigma
	return p.Amplitude * math.Exp(-d*d/2)
}

// Cuff returns the cuff pressure at time t seconds.
func (p Profile) Cuff(t float64) float64 {
	return p.StartPressure - (p.StartPressure-p.EndPressure)*t/p.Duration
}

// Deflation renders the profile: a linear cuff ramp plus a sinusoidal
// pulse at PulseRate whose amplitude follows OscillationAmplitude.
// Output is deterministic for a given profile.
func Deflation(p Profile) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.Samples()
	hz := p.PulseRate / 60
	rng := rand.New(rand.NewSource(p.Seed))

	out := make([]float64, n)
	for i := range out {
		t := float64(i) / p.SamplingRate
		c := p.Cuff(t)
		out[i] = c + p.OscillationAmplitude(c)*math.Sin(2*math.Pi*hz*t)
		if p.Noise > 0 {
			out[i] += rng.NormFloat64() * p.Noise
		}
	}
	return out, nil
}
