package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/device"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/report"
)

var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

// fakeService records calls and returns canned values.
type fakeService struct {
	oscillobp.Service

	measureErr  error
	recordErr   error
	stored      []models.Measurement
	lastFilter  models.MeasurementFilter
	lastPeriod  report.Period
	lastDate    time.Time
	lastPatient string
	lastRate    float64
}

func (f *fakeService) Analyze(samples []float64, fs float64) pipeline.Result {
	f.lastRate = fs
	if len(samples) < 3 {
		return pipeline.Failure()
	}
	return pipeline.Result{SBP: ptr(118.2), DBP: ptr(77.9), PulseRate: 71, Timestamp: &testTime}
}

func (f *fakeService) AnalyzeDetailed(samples []float64, fs float64) (*pipeline.Analysis, error) {
	if len(samples) < 3 {
		return nil, pipeline.ErrDegenerateInput
	}
	return &pipeline.Analysis{SamplingRate: fs, Peaks: []int{1}}, nil
}

func (f *fakeService) Measure(ctx context.Context, patient string) (*models.Measurement, error) {
	f.lastPatient = patient
	if f.measureErr != nil {
		return nil, f.measureErr
	}
	return &models.Measurement{ID: "m1", Patient: patient, TakenAt: testTime, SBP: ptr(120), DBP: ptr(80), Pulse: 70, Source: models.SourceDevice}, nil
}

func (f *fakeService) Ingest(ctx context.Context, c models.Capture) (*models.Measurement, error) {
	return &models.Measurement{ID: "i1", Patient: c.Patient, TakenAt: testTime, SBP: ptr(118.2), DBP: ptr(77.9), Pulse: 71}, nil
}

func (f *fakeService) Record(ctx context.Context, r oscillobp.Reading) (*models.Measurement, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return &models.Measurement{ID: "r1", TakenAt: testTime, SBP: &r.SBP, DBP: &r.DBP, Pulse: r.Pulse}, nil
}

func (f *fakeService) ListMeasurements(filter models.MeasurementFilter) ([]models.Measurement, error) {
	f.lastFilter = filter
	return f.stored, nil
}

func (f *fakeService) GetMeasurement(id string) (*models.Measurement, error) {
	for _, m := range f.stored {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", oscillobp.ErrNotFound, id)
}

func (f *fakeService) DeleteMeasurement(id string) error {
	_, err := f.GetMeasurement(id)
	return err
}

func (f *fakeService) MonthlyAverages(patient string) ([]models.MonthlyAverage, error) {
	f.lastPatient = patient
	return []models.MonthlyAverage{{Month: "2026-03", MonthName: "March 2026", AvgSBP: 120, AvgDBP: 80, AvgPulse: 70, Count: 2}}, nil
}

func (f *fakeService) DailyAverages(patient string, period report.Period, date time.Time) (*models.DailyReport, error) {
	f.lastPatient, f.lastPeriod, f.lastDate = patient, period, date
	return &models.DailyReport{Period: string(period), PeriodName: "This Week", StartDate: "2026-03-09", EndDate: "2026-03-15"}, nil
}

func (f *fakeService) CalendarEvents(patient string) ([]models.CalendarEvent, error) {
	return []models.CalendarEvent{{ID: "m1", Title: "SBP: 120.0 | DBP: 80.0 | Pulse: 70"}}, nil
}

func (f *fakeService) ExportCSV(w io.Writer, filter models.MeasurementFilter) error {
	f.lastFilter = filter
	_, err := io.WriteString(w, "Date,Time,Patient,SBP,DBP,Pulse\n")
	return err
}

func (f *fakeService) Close() error { return nil }

func setupTestServer(t *testing.T, svc *fakeService) http.Handler {
	t.Helper()
	s := NewServer(svc, &ServerConfig{AllowedOrigins: []string{"*"}, Location: time.UTC})
	s.log = discardLogger{}
	return s.setupRoutes()
}

type discardLogger struct{}

func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Errorf(string, ...any) {}
func (discardLogger) Debugf(string, ...any) {}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h := setupTestServer(t, &fakeService{})
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected CORS header *, got %q", got)
	}
}

func TestPreflight(t *testing.T) {
	h := setupTestServer(t, &fakeService{})
	if rec := do(t, h, http.MethodOptions, "/api/analyze", ""); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	svc := &fakeService{}
	h := setupTestServer(t, svc)

	rec := do(t, h, http.MethodPost, "/api/analyze", `{"pressure_data":[1,2,3,4]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got AnalyzeResponse
	decode(t, rec, &got)
	want := AnalyzeResponse{SBP: ptr(118.2), DBP: ptr(77.9), Pulse: 71, Timestamp: "2026-03-14 09:30:00"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Analyze response mismatch (-want +got):\n%s", diff)
	}
	if svc.lastRate != 0 {
		t.Errorf("Expected missing rate to be passed through as 0, got %v", svc.lastRate)
	}
}

func TestAnalyzeFailureIsNull(t *testing.T) {
	h := setupTestServer(t, &fakeService{})

	rec := do(t, h, http.MethodPost, "/api/analyze", `{"pressure_data":[1,2],"sampling_rate":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"SBP":null`) || !strings.Contains(rec.Body.String(), `"Pulse":0`) {
		t.Errorf("Expected null pressures, got %s", rec.Body.String())
	}
}

func TestAnalyzeDetail(t *testing.T) {
	h := setupTestServer(t, &fakeService{})

	rec := do(t, h, http.MethodPost, "/api/analyze?detail=true", `{"pressure_data":[1,2,3],"sampling_rate":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var a pipeline.Analysis
	decode(t, rec, &a)
	if a.SamplingRate != 50 {
		t.Errorf("Expected sampling rate 50, got %v", a.SamplingRate)
	}

	rec = do(t, h, http.MethodPost, "/api/analyze?detail=true", `{"pressure_data":[1]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for degenerate detail, got %d", rec.Code)
	}
}

func TestAnalyzeStore(t *testing.T) {
	h := setupTestServer(t, &fakeService{})

	rec := do(t, h, http.MethodPost, "/api/analyze", `{"pressure_data":[1,2,3],"patient":"alice","store":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	var got AnalyzeResponse
	decode(t, rec, &got)
	if got.ID != "i1" {
		t.Errorf("Expected stored id i1, got %q", got.ID)
	}
}

func TestAnalyzeBadRequests(t *testing.T) {
	h := setupTestServer(t, &fakeService{})

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, `{"pressure_data":`, http.StatusBadRequest},
		{"no data", http.MethodPost, `{"pressure_data":[]}`, http.StatusBadRequest},
		{"negative rate", http.MethodPost, `{"pressure_data":[1,2,3],"sampling_rate":-1}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, tt.method, "/api/analyze", tt.body); rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestMeasure(t *testing.T) {
	svc := &fakeService{}
	h := setupTestServer(t, svc)

	rec := do(t, h, http.MethodPost, "/api/measure", `{"patient_name":"alice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var got MeasurementDTO
	decode(t, rec, &got)
	if got.ID != "m1" || got.Patient != "alice" || got.Date != "2026-03-14" || got.Time != "09:30:00" {
		t.Errorf("Unexpected measurement %+v", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/measure", strings.NewReader("patient_name=bob"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated || svc.lastPatient != "bob" {
		t.Errorf("Expected form patient bob, got %q with %d", svc.lastPatient, rec.Code)
	}
}

func TestMeasureErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"in progress", oscillobp.ErrMeasurementInProgress, http.StatusConflict},
		{"low pressure", fmt.Errorf("%w: %w", oscillobp.ErrAcquisition, device.ErrLowPressure), http.StatusUnprocessableEntity},
		{"high pressure", fmt.Errorf("%w: %w", oscillobp.ErrAcquisition, device.ErrHighPressure), http.StatusUnprocessableEntity},
		{"no data", fmt.Errorf("%w: %w", oscillobp.ErrAcquisition, device.ErrNoPressureData), http.StatusUnprocessableEntity},
		{"device status", fmt.Errorf("%w: %w", oscillobp.ErrAcquisition, device.ErrDeviceStatus), http.StatusBadGateway},
		{"unreachable", fmt.Errorf("%w: dial tcp: timeout", oscillobp.ErrAcquisition), http.StatusBadGateway},
		{"storage", fmt.Errorf("storing measurement: disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestServer(t, &fakeService{measureErr: tt.err})
			rec := do(t, h, http.MethodPost, "/api/measure", "")
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
			var e ErrorResponse
			decode(t, rec, &e)
			if e.Code != tt.want || e.Message == "" {
				t.Errorf("Unexpected error body %+v", e)
			}
		})
	}
}

func TestReceive(t *testing.T) {
	h := setupTestServer(t, &fakeService{})

	rec := do(t, h, http.MethodPost, "/api/receive", `{"SBP":121,"DBP":79,"Pulse":66}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	want := ReceiveResponse{Status: "success", ID: "r1", Timestamp: "2026-03-14 09:30:00"}
	var got ReceiveResponse
	decode(t, rec, &got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Receive response mismatch (-want +got):\n%s", diff)
	}

	h = setupTestServer(t, &fakeService{recordErr: fmt.Errorf("%w: SBP 0", oscillobp.ErrInvalidReading)})
	if rec := do(t, h, http.MethodPost, "/api/receive", `{"SBP":0}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid reading, got %d", rec.Code)
	}
}

func TestMeasurements(t *testing.T) {
	svc := &fakeService{stored: []models.Measurement{
		{ID: "a", Patient: "alice", TakenAt: testTime, SBP: ptr(120), DBP: ptr(80), Pulse: 70, Source: models.SourceDevice},
		{ID: "b", Patient: "alice", TakenAt: testTime.Add(time.Hour), Pulse: 0, Source: models.SourceIngest},
	}}
	h := setupTestServer(t, svc)

	rec := do(t, h, http.MethodGet, "/api/measurements?patient=alice&from=2026-03-01&to=2026-03-14&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var got ListMeasurementsResponse
	decode(t, rec, &got)
	if got.Count != 2 || got.Measurements[1].SBP != nil {
		t.Errorf("Unexpected list %+v", got)
	}

	wantFilter := models.MeasurementFilter{
		Patient: "alice",
		From:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Limit:   5,
	}
	if diff := cmp.Diff(wantFilter, svc.lastFilter); diff != "" {
		t.Errorf("Filter mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, h, http.MethodGet, "/api/measurements?from=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad date, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/measurements?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestMeasurementByID(t *testing.T) {
	const (
		known   = "6f1c2a9e-3b7d-4e5f-8a01-2c3d4e5f6a7b"
		unknown = "00000000-0000-4000-8000-000000000000"
	)
	svc := &fakeService{stored: []models.Measurement{{ID: known, Patient: "alice", TakenAt: testTime}}}
	h := setupTestServer(t, svc)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/measurements/" + known, http.StatusOK},
		{http.MethodGet, "/api/measurements/" + unknown, http.StatusNotFound},
		{http.MethodDelete, "/api/measurements/" + known, http.StatusOK},
		{http.MethodDelete, "/api/measurements/" + unknown, http.StatusNotFound},
		{http.MethodPost, "/api/measurements/" + known, http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/measurements/", http.StatusBadRequest},
		{http.MethodGet, "/api/measurements/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.path, ""); rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestCSV(t *testing.T) {
	svc := &fakeService{}
	h := setupTestServer(t, svc)

	rec := do(t, h, http.MethodGet, "/api/measurements.csv?patient=alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "Date,Time,Patient,SBP,DBP,Pulse") {
		t.Errorf("Unexpected CSV body %q", rec.Body.String())
	}
	if svc.lastFilter.Patient != "alice" {
		t.Errorf("Expected patient filter alice, got %q", svc.lastFilter.Patient)
	}
}

func TestAverages(t *testing.T) {
	svc := &fakeService{}
	h := setupTestServer(t, svc)

	rec := do(t, h, http.MethodGet, "/api/monthly-averages?patient=alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var monthly MonthlyAveragesResponse
	decode(t, rec, &monthly)
	if len(monthly.MonthlyAverages) != 1 || svc.lastPatient != "alice" {
		t.Errorf("Unexpected monthly response %+v", monthly)
	}

	rec = do(t, h, http.MethodGet, "/api/daily-averages?period=week&date=2026-03-11", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var daily DailyAveragesResponse
	decode(t, rec, &daily)
	if daily.Period != "This Week" || daily.StartDate != "2026-03-09" {
		t.Errorf("Unexpected daily response %+v", daily)
	}
	if svc.lastPeriod != report.PeriodWeek || !svc.lastDate.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected week of 2026-03-11, got %s %v", svc.lastPeriod, svc.lastDate)
	}

	do(t, h, http.MethodGet, "/api/daily-averages", "")
	if svc.lastPeriod != report.PeriodMonth || !svc.lastDate.IsZero() {
		t.Errorf("Expected month of today, got %s %v", svc.lastPeriod, svc.lastDate)
	}

	if rec := do(t, h, http.MethodGet, "/api/daily-averages?date=14-03-2026", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad date, got %d", rec.Code)
	}
}

func TestCalendar(t *testing.T) {
	h := setupTestServer(t, &fakeService{})

	rec := do(t, h, http.MethodGet, "/api/calendar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var got CalendarResponse
	decode(t, rec, &got)
	if len(got.Events) != 1 {
		t.Errorf("Expected 1 event, got %d", len(got.Events))
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
