package models

import "time"

// Source of a stored measurement.
const (
	SourceDevice  = "device"  // acquired from the cuff controller and estimated here
	SourceIngest  = "ingest"  // waveform received over MQTT or the analyze API
	SourceReceive = "receive" // values computed by the device itself
)

// DefaultPatient is used when a measurement arrives without a patient name.
const DefaultPatient = "Unknown"

// Measurement is one blood-pressure reading. SBP and DBP are nil when the
// estimate failed; failed readings are still kept.
type Measurement struct {
	ID      string    `json:"id"`
	Patient string    `json:"patient"`
	TakenAt time.Time `json:"taken_at"`
	SBP     *float64  `json:"sbp"`
	DBP     *float64  `json:"dbp"`
	Pulse   int       `json:"pulse"`
	Source  string    `json:"source"`
}

// Complete reports whether both pressures are present.
func (m Measurement) Complete() bool {
	return m.SBP != nil && m.DBP != nil
}

// MonthlyAverage summarises the complete measurements of one calendar month.
type MonthlyAverage struct {
	Month     string  `json:"month"`      // YYYY-MM
	MonthName string  `json:"month_name"` // e.g. "March 2026"
	AvgSBP    float64 `json:"avg_sbp"`
	AvgDBP    float64 `json:"avg_dbp"`
	AvgPulse  float64 `json:"avg_pulse"`
	Count     int     `json:"count"`
}

// DailyAverage is one day of a DailyReport. Averages are nil on days
// without complete measurements.
type DailyAverage struct {
	Date        string   `json:"date"`         // YYYY-MM-DD
	DisplayDate string   `json:"display_date"` // DD/MM
	DayName     string   `json:"day_name"`
	AvgSBP      *float64 `json:"avg_sbp"`
	AvgDBP      *float64 `json:"avg_dbp"`
	AvgPulse    *float64 `json:"avg_pulse"`
	Count       int      `json:"count"`
}

type DailyReport struct {
	Period     string         `json:"period"` // week or month
	PeriodName string         `json:"period_name"`
	StartDate  string         `json:"start_date"`
	EndDate    string         `json:"end_date"`
	Days       []DailyAverage `json:"days"`
}

// CalendarEvent is a measurement shaped for calendar widgets.
type CalendarEvent struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Start         string         `json:"start"`
	ExtendedProps CalendarDetail `json:"extendedProps"`
}

type CalendarDetail struct {
	Patient string   `json:"patient"`
	SBP     *float64 `json:"sbp"`
	DBP     *float64 `json:"dbp"`
	Pulse   int      `json:"pulse"`
}

// Capture is one raw cuff recording waiting to be estimated.
type Capture struct {
	Patient      string    `json:"patient,omitempty"`
	SamplingRate float64   `json:"sampling_rate,omitempty"`
	Samples      []float64 `json:"pressure_data"`
}
