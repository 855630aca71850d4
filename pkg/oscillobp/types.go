package oscillobp

import (
	"errors"

	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/storage"
)

var (
	// ErrMeasurementInProgress is returned by Measure while another
	// measurement is running.
	ErrMeasurementInProgress = errors.New("a measurement is already in progress")
	// ErrAcquisition wraps every failure to obtain a recording from the
	// cuff controller.
	ErrAcquisition           = errors.New("acquisition failed")
	ErrInvalidReading        = errors.New("invalid reading")
	ErrEmptyCapture          = errors.New("capture has no pressure samples")
	ErrNotFound              = storage.ErrNotFound
)

// Reading is a result computed by the device itself. Field names follow
// the controller's JSON.
type Reading struct {
	Patient string  `json:"patient"`
	SBP     float64 `json:"SBP"`
	DBP     float64 `json:"DBP"`
	Pulse   int     `json:"Pulse"`
}
