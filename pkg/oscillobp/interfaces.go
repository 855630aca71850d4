package oscillobp

import (
	"context"
	"io"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/report"
)

type Service interface {
	Analyze(samples []float64, fs float64) pipeline.Result
	AnalyzeDetailed(samples []float64, fs float64) (*pipeline.Analysis, error)
	Measure(ctx context.Context, patient string) (*models.Measurement, error)
	Ingest(ctx context.Context, capture models.Capture) (*models.Measurement, error)
	Record(ctx context.Context, reading Reading) (*models.Measurement, error)
	ListMeasurements(filter models.MeasurementFilter) ([]models.Measurement, error)
	GetMeasurement(id string) (*models.Measurement, error)
	DeleteMeasurement(id string) error
	MonthlyAverages(patient string) ([]models.MonthlyAverage, error)
	DailyAverages(patient string, period report.Period, date time.Time) (*models.DailyReport, error)
	CalendarEvents(patient string) ([]models.CalendarEvent, error)
	ExportCSV(w io.Writer, filter models.MeasurementFilter) error
	Close() error
}

type Storage interface {
	SaveMeasurement(m *models.Measurement) error
	GetMeasurement(id string) (*models.Measurement, error)
	ListMeasurements(filter models.MeasurementFilter) ([]models.Measurement, error)
	CountMeasurements(filter models.MeasurementFilter) (int64, error)
	DeleteMeasurement(id string) error
	Close() error
}

// Acquirer produces one raw recording, typically by starting a measurement
// on the cuff controller.
type Acquirer interface {
	Acquire(ctx context.Context) (*models.Capture, error)
}

type Publisher interface {
	PublishMeasurement(ctx context.Context, m models.Measurement) error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
