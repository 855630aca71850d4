package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/device"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/report"
	"github.com/himanishpuri/OscilloBP/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service oscillobp.Service
	config  *ServerConfig
	log     oscillobp.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	DeviceURL      string
	SamplingRate   float64
	AllowedOrigins []string
	// Location is used to read dates in query parameters.
	Location *time.Location
	// MeasureTimeout bounds POST /api/measure, inflation included.
	MeasureTimeout time.Duration
}

// NewServer creates a new server instance
func NewServer(service oscillobp.Service, config *ServerConfig) *Server {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.MeasureTimeout <= 0 {
		config.MeasureTimeout = device.DefaultTimeout + 10*time.Second
	}
	return &Server{
		service: service,
		config:  config,
		log:     logger.With("server"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, oscillobp.ErrMeasurementInProgress):
		return http.StatusConflict
	case errors.Is(err, device.ErrLowPressure),
		errors.Is(err, device.ErrHighPressure),
		errors.Is(err, device.ErrNoPressureData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, oscillobp.ErrAcquisition):
		return http.StatusBadGateway
	case errors.Is(err, oscillobp.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, oscillobp.ErrInvalidReading),
		errors.Is(err, oscillobp.ErrEmptyCapture):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Errorf("Request failed: %v", err)
	} else {
		s.log.Warnf("Request rejected: %v", err)
	}
	s.respondError(w, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "OscilloBP API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"measure":         "POST /api/measure",
			"receive":         "POST /api/receive",
			"analyze":         "POST /api/analyze[?detail=true]",
			"measurements":    "GET /api/measurements",
			"measurement":     "GET|DELETE /api/measurements/{id}",
			"csv":             "GET /api/measurements.csv",
			"monthlyAverages": "GET /api/monthly-averages",
			"dailyAverages":   "GET /api/daily-averages",
			"calendar":        "GET /api/calendar",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMeasure handles POST /api/measure
func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.MeasureTimeout)
	defer cancel()

	var req MeasureRequest
	if r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		req.Patient = r.FormValue("patient_name")
	}

	m, err := s.service.Measure(ctx, req.Patient)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, newMeasurementDTO(*m))
}

// handleReceive handles POST /api/receive with values computed by the device
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var reading oscillobp.Reading
	if err := decodeJSON(w, r, &reading); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m, err := s.service.Record(r.Context(), reading)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ReceiveResponse{
		Status:    "success",
		ID:        m.ID,
		Timestamp: m.TakenAt.Format(timestampLayout),
	})
}

// handleAnalyze handles POST /api/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AnalyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if detail, _ := strconv.ParseBool(r.URL.Query().Get("detail")); detail {
		a, err := s.service.AnalyzeDetailed(req.PressureData, req.SamplingRate)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, a)
		return
	}

	if req.Store {
		m, err := s.service.Ingest(r.Context(), req.capture())
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusCreated, AnalyzeResponse{
			SBP:       m.SBP,
			DBP:       m.DBP,
			Pulse:     m.Pulse,
			Timestamp: m.TakenAt.Format(timestampLayout),
			ID:        m.ID,
		})
		return
	}

	res := s.service.Analyze(req.PressureData, req.SamplingRate)
	if !res.OK() {
		s.log.Warnf("Analysis of %d samples produced no estimate", len(req.PressureData))
	}
	s.respondJSON(w, http.StatusOK, newAnalyzeResponse(res))
}

// parseFilter reads patient, from, to and limit query parameters.
func (s *Server) parseFilter(r *http.Request) (models.MeasurementFilter, error) {
	q := r.URL.Query()
	f := models.MeasurementFilter{Patient: q.Get("patient")}

	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, s.config.Location)
		if err != nil {
			return f, fmt.Errorf("invalid from date %q", v)
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, s.config.Location)
		if err != nil {
			return f, fmt.Errorf("invalid to date %q", v)
		}
		// inclusive day
		f.To = t.AddDate(0, 0, 1)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

// handleMeasurements handles GET /api/measurements
func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, err := s.parseFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ms, err := s.service.ListMeasurements(filter)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	dtos := make([]MeasurementDTO, len(ms))
	for i, m := range ms {
		dtos[i] = newMeasurementDTO(m)
	}
	s.respondJSON(w, http.StatusOK, ListMeasurementsResponse{
		Measurements: dtos,
		Count:        len(dtos),
	})
}

// handleMeasurement routes requests to /api/measurements/{id}
func (s *Server) handleMeasurement(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/measurements/")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Measurement ID required")
		return
	}
	if !utils.ValidUUID(id) {
		s.respondError(w, http.StatusBadRequest, "Invalid measurement ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		m, err := s.service.GetMeasurement(id)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, newMeasurementDTO(*m))
	case http.MethodDelete:
		if err := s.service.DeleteMeasurement(id); err != nil {
			s.respondServiceError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, DeleteMeasurementResponse{
			Message: "Measurement deleted successfully",
			ID:      id,
		})
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCSV handles GET /api/measurements.csv
func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, err := s.parseFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="measurements.csv"`)
	if err := s.service.ExportCSV(w, filter); err != nil {
		// headers are gone once rows are written
		s.log.Errorf("Failed to export CSV: %v", err)
	}
}

// handleMonthlyAverages handles GET /api/monthly-averages
func (s *Server) handleMonthlyAverages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	avgs, err := s.service.MonthlyAverages(r.URL.Query().Get("patient"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MonthlyAveragesResponse{MonthlyAverages: avgs})
}

// handleDailyAverages handles GET /api/daily-averages
func (s *Server) handleDailyAverages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	var date time.Time
	if v := q.Get("date"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, s.config.Location)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", v))
			return
		}
		date = t
	}

	rep, err := s.service.DailyAverages(q.Get("patient"), report.ParsePeriod(q.Get("period")), date)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, DailyAveragesResponse{
		DailyAverages: rep.Days,
		Period:        rep.PeriodName,
		StartDate:     rep.StartDate,
		EndDate:       rep.EndDate,
	})
}

// handleCalendar handles GET /api/calendar
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	events, err := s.service.CalendarEvents(r.URL.Query().Get("patient"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, CalendarResponse{Events: events})
}
