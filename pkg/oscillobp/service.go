package oscillobp

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/device"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/report"
)

// bpService is the default implementation of the Service interface.
type bpService struct {
	storage   Storage
	acquirer  Acquirer
	publisher Publisher
	estimator *pipeline.Estimator
	log       Logger
	config    *Config

	// measuring guards the cuff: one inflation at a time.
	measuring atomic.Bool
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.With("service")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if !(cfg.SamplingRate > 0) {
		return nil, fmt.Errorf("invalid sampling rate %v", cfg.SamplingRate)
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	acq := cfg.Acquirer
	if acq == nil {
		acq = device.NewClient(cfg.DeviceURL,
			device.WithTimeout(cfg.DeviceTimeout),
			device.WithSamplingRate(cfg.SamplingRate),
		)
	}

	return &bpService{
		storage:   stor,
		acquirer:  acq,
		publisher: cfg.Publisher,
		estimator: pipeline.NewEstimator(pipeline.WithClock(cfg.Clock), pipeline.WithLogger(cfg.Logger)),
		log:       cfg.Logger,
		config:    cfg,
	}, nil
}

func (s *bpService) Analyze(samples []float64, fs float64) pipeline.Result {
	return s.estimator.Estimate(samples, s.rate(fs))
}

func (s *bpService) AnalyzeDetailed(samples []float64, fs float64) (*pipeline.Analysis, error) {
	return s.estimator.Analyze(samples, s.rate(fs))
}

// Measure runs one measurement on the cuff controller, estimates it and
// stores the result. Failed estimates are stored too, without pressures.
func (s *bpService) Measure(ctx context.Context, patient string) (*models.Measurement, error) {
	if !s.measuring.CompareAndSwap(false, true) {
		return nil, ErrMeasurementInProgress
	}
	defer s.measuring.Store(false)

	s.log.Infof("Starting measurement for %s", patientOrDefault(patient))
	capture, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	capture.Patient = patient
	return s.process(ctx, *capture, models.SourceDevice)
}

// Ingest estimates and stores a capture recorded elsewhere.
func (s *bpService) Ingest(ctx context.Context, capture models.Capture) (*models.Measurement, error) {
	if len(capture.Samples) == 0 {
		return nil, ErrEmptyCapture
	}
	return s.process(ctx, capture, models.SourceIngest)
}

// Record stores values the device computed itself.
func (s *bpService) Record(ctx context.Context, r Reading) (*models.Measurement, error) {
	if !validPressure(r.SBP) || !validPressure(r.DBP) || r.Pulse < 0 {
		return nil, fmt.Errorf("%w: SBP %v DBP %v pulse %d", ErrInvalidReading, r.SBP, r.DBP, r.Pulse)
	}
	sbp, dbp := r.SBP, r.DBP
	m := &models.Measurement{
		Patient: patientOrDefault(r.Patient),
		TakenAt: s.config.Clock(),
		SBP:     &sbp,
		DBP:     &dbp,
		Pulse:   r.Pulse,
		Source:  models.SourceReceive,
	}
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *bpService) process(ctx context.Context, c models.Capture, source string) (*models.Measurement, error) {
	fs := s.rate(c.SamplingRate)
	res := s.estimator.Estimate(c.Samples, fs)

	m := &models.Measurement{
		Patient: patientOrDefault(c.Patient),
		SBP:     res.SBP,
		DBP:     res.DBP,
		Pulse:   res.PulseRate,
		Source:  source,
	}
	if res.Timestamp != nil {
		m.TakenAt = *res.Timestamp
	} else {
		m.TakenAt = s.config.Clock()
	}

	if res.OK() {
		s.log.Infof("Estimated %.1f/%.1f mmHg, pulse %d for %s (%d samples at %.0f Hz)",
			*res.SBP, *res.DBP, res.PulseRate, m.Patient, len(c.Samples), fs)
	} else {
		s.log.Warnf("Could not estimate blood pressure for %s from %d samples", m.Patient, len(c.Samples))
	}

	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *bpService) save(ctx context.Context, m *models.Measurement) error {
	if err := s.storage.SaveMeasurement(m); err != nil {
		return fmt.Errorf("storing measurement: %w", err)
	}
	m.TakenAt = m.TakenAt.In(s.config.Location)
	if s.publisher != nil {
		if err := s.publisher.PublishMeasurement(ctx, *m); err != nil {
			s.log.Warnf("Failed to publish measurement %s: %v", m.ID, err)
		}
	}
	return nil
}

func (s *bpService) ListMeasurements(filter models.MeasurementFilter) ([]models.Measurement, error) {
	ms, err := s.storage.ListMeasurements(filter)
	if err != nil {
		return nil, err
	}
	return s.localize(ms), nil
}

func (s *bpService) GetMeasurement(id string) (*models.Measurement, error) {
	m, err := s.storage.GetMeasurement(id)
	if err != nil {
		return nil, err
	}
	m.TakenAt = m.TakenAt.In(s.config.Location)
	return m, nil
}

func (s *bpService) DeleteMeasurement(id string) error {
	if err := s.storage.DeleteMeasurement(id); err != nil {
		return err
	}
	s.log.Infof("Deleted measurement %s", id)
	return nil
}

func (s *bpService) MonthlyAverages(patient string) ([]models.MonthlyAverage, error) {
	ms, err := s.ListMeasurements(models.MeasurementFilter{Patient: patient})
	if err != nil {
		return nil, err
	}
	return report.MonthlyAverages(ms), nil
}

// DailyAverages reports the week or month containing date; a zero date
// means today.
func (s *bpService) DailyAverages(patient string, period report.Period, date time.Time) (*models.DailyReport, error) {
	if date.IsZero() {
		date = s.config.Clock()
	}
	date = date.In(s.config.Location)
	start, end := report.PeriodBounds(period, date)

	ms, err := s.ListMeasurements(models.MeasurementFilter{
		Patient: patient,
		From:    start,
		To:      end.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, err
	}
	rep := report.DailyAverages(ms, period, date)
	return &rep, nil
}

func (s *bpService) CalendarEvents(patient string) ([]models.CalendarEvent, error) {
	ms, err := s.ListMeasurements(models.MeasurementFilter{Patient: patient})
	if err != nil {
		return nil, err
	}
	return report.CalendarEvents(ms), nil
}

func (s *bpService) ExportCSV(w io.Writer, filter models.MeasurementFilter) error {
	ms, err := s.ListMeasurements(filter)
	if err != nil {
		return err
	}
	return report.WriteCSV(w, ms)
}

func (s *bpService) Close() error {
	return s.storage.Close()
}

func (s *bpService) rate(fs float64) float64 {
	if fs > 0 && !math.IsInf(fs, 0) {
		return fs
	}
	return s.config.SamplingRate
}

func (s *bpService) localize(ms []models.Measurement) []models.Measurement {
	for i := range ms {
		ms[i].TakenAt = ms[i].TakenAt.In(s.config.Location)
	}
	return ms
}

func patientOrDefault(p string) string {
	if p = strings.TrimSpace(p); p == "" {
		return models.DefaultPatient
	}
	return p
}

func validPressure(v float64) bool {
	return v > 0 && v < 400 && !math.IsInf(v, 0)
}
