package oscillobp

import (
	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveMeasurement(m *models.Measurement) error {
	return s.db.SaveMeasurement(m)
}

func (s *storageAdapter) GetMeasurement(id string) (*models.Measurement, error) {
	return s.db.GetMeasurement(id)
}

func (s *storageAdapter) ListMeasurements(filter models.MeasurementFilter) ([]models.Measurement, error) {
	return s.db.ListMeasurements(filter)
}

func (s *storageAdapter) CountMeasurements(filter models.MeasurementFilter) (int64, error) {
	return s.db.CountMeasurements(filter)
}

func (s *storageAdapter) DeleteMeasurement(id string) error {
	return s.db.DeleteMeasurement(id)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}
