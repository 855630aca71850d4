package main

import (
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
)

const (
	// MaxPressureSamples bounds one uploaded recording (about 10 minutes at 100 Hz).
	MaxPressureSamples = 60000

	// maxBodyBytes bounds request bodies.
	maxBodyBytes = 8 << 20
)

// MeasureRequest is the optional body for POST /api/measure
type MeasureRequest struct {
	Patient string `json:"patient_name"`
}

// AnalyzeRequest is the request body for POST /api/analyze
type AnalyzeRequest struct {
	PressureData []float64 `json:"pressure_data"`
	SamplingRate float64   `json:"sampling_rate,omitempty"`
	Patient      string    `json:"patient,omitempty"`
	// Store keeps the result like a measurement taken through the cuff.
	Store bool `json:"store,omitempty"`
}

// Validate checks if the request is valid
func (r *AnalyzeRequest) Validate() error {
	if len(r.PressureData) == 0 {
		return fmt.Errorf("no pressure_data provided")
	}
	if len(r.PressureData) > MaxPressureSamples {
		return fmt.Errorf("too many samples: %d (maximum: %d)", len(r.PressureData), MaxPressureSamples)
	}
	if r.SamplingRate < 0 || math.IsInf(r.SamplingRate, 0) || math.IsNaN(r.SamplingRate) {
		return fmt.Errorf("invalid sampling_rate: %v", r.SamplingRate)
	}
	return nil
}

func (r *AnalyzeRequest) capture() models.Capture {
	return models.Capture{
		Patient:      r.Patient,
		SamplingRate: r.SamplingRate,
		Samples:      r.PressureData,
	}
}

// AnalyzeResponse mirrors the cuff controller's own result document.
// Pressures are null when the recording could not be analysed.
type AnalyzeResponse struct {
	SBP       *float64 `json:"SBP"`
	DBP       *float64 `json:"DBP"`
	Pulse     int      `json:"Pulse"`
	Timestamp string   `json:"timestamp,omitempty"`
	ID        string   `json:"id,omitempty"`
}

func newAnalyzeResponse(res pipeline.Result) AnalyzeResponse {
	out := AnalyzeResponse{SBP: res.SBP, DBP: res.DBP, Pulse: res.PulseRate}
	if res.Timestamp != nil {
		out.Timestamp = res.Timestamp.Format(timestampLayout)
	}
	return out
}

// ReceiveResponse is the response for POST /api/receive
type ReceiveResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

// MeasurementDTO represents a measurement in API responses
type MeasurementDTO struct {
	ID      string   `json:"id"`
	Patient string   `json:"patient"`
	Date    string   `json:"date"`
	Time    string   `json:"time"`
	SBP     *float64 `json:"SBP"`
	DBP     *float64 `json:"DBP"`
	Pulse   int      `json:"Pulse"`
	Source  string   `json:"source"`
}

func newMeasurementDTO(m models.Measurement) MeasurementDTO {
	return MeasurementDTO{
		ID:      m.ID,
		Patient: m.Patient,
		Date:    m.TakenAt.Format(time.DateOnly),
		Time:    m.TakenAt.Format(time.TimeOnly),
		SBP:     m.SBP,
		DBP:     m.DBP,
		Pulse:   m.Pulse,
		Source:  m.Source,
	}
}

// ListMeasurementsResponse is the response for GET /api/measurements
type ListMeasurementsResponse struct {
	Measurements []MeasurementDTO `json:"measurements"`
	Count        int              `json:"count"`
}

// DeleteMeasurementResponse is the response for DELETE /api/measurements/{id}
type DeleteMeasurementResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type MonthlyAveragesResponse struct {
	MonthlyAverages []models.MonthlyAverage `json:"monthly_averages"`
}

type DailyAveragesResponse struct {
	DailyAverages []models.DailyAverage `json:"daily_averages"`
	Period        string                `json:"period"`
	StartDate     string                `json:"start_date"`
	EndDate       string                `json:"end_date"`
}

type CalendarResponse struct {
	Events []models.CalendarEvent `json:"events"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

const timestampLayout = "2006-01-02 15:04:05"
