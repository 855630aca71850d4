package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "oscillobp.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when no measurement has the requested id.
var ErrNotFound = errors.New("measurement not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Measurement is the stored row. Times are kept in UTC so they compare
// correctly as text.
type Measurement struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Patient   string    `gorm:"not null;index:idx_patient_taken,priority:1"`
	TakenAt   time.Time `gorm:"not null;index:idx_patient_taken,priority:2;index:idx_taken_at"`
	SBP       *float64
	DBP       *float64
	Pulse     int
	Source    string `gorm:"type:varchar(16)"`
	CreatedAt time.Time
}

func (m Measurement) model() models.Measurement {
	return models.Measurement{
		ID:      m.ID,
		Patient: m.Patient,
		TakenAt: m.TakenAt.UTC(),
		SBP:     m.SBP,
		DBP:     m.DBP,
		Pulse:   m.Pulse,
		Source:  m.Source,
	}
}

// NewDBClient opens the database at OSCILLOBP_DB_PATH, or DefaultDBFile.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("OSCILLOBP_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := utils.EnsureParentDir(dbPath); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Measurement{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveMeasurement inserts m, filling in a new ID, the current time, the
// default patient and source when they are empty. m is updated in place.
func (c *DBClient) SaveMeasurement(m *models.Measurement) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if m == nil {
		return errors.New("nil measurement")
	}

	if m.ID == "" {
		m.ID = utils.GenerateUUID()
	}
	if m.TakenAt.IsZero() {
		m.TakenAt = time.Now()
	}
	m.TakenAt = m.TakenAt.UTC()
	if strings.TrimSpace(m.Patient) == "" {
		m.Patient = models.DefaultPatient
	}
	if m.Source == "" {
		m.Source = models.SourceDevice
	}

	row := Measurement{
		ID:      m.ID,
		Patient: m.Patient,
		TakenAt: m.TakenAt,
		SBP:     m.SBP,
		DBP:     m.DBP,
		Pulse:   m.Pulse,
		Source:  m.Source,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("creating measurement: %w", err)
	}
	return nil
}

func (c *DBClient) GetMeasurement(id string) (*models.Measurement, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Measurement
	err := c.DB.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying measurement: %w", err)
	}
	m := row.model()
	return &m, nil
}

// ListMeasurements returns the measurements matching f, oldest first.
func (c *DBClient) ListMeasurements(f models.MeasurementFilter) ([]models.Measurement, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	q := filtered(c.DB.Model(&Measurement{}), f).Order("taken_at ASC").Order("id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []Measurement
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing measurements: %w", err)
	}
	out := make([]models.Measurement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (c *DBClient) CountMeasurements(f models.MeasurementFilter) (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := filtered(c.DB.Model(&Measurement{}), f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting measurements: %w", err)
	}
	return n, nil
}

func (c *DBClient) DeleteMeasurement(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("id = ?", id).Delete(&Measurement{})
	if res.Error != nil {
		return fmt.Errorf("deleting measurement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func filtered(q *gorm.DB, f models.MeasurementFilter) *gorm.DB {
	if f.Patient != "" {
		q = q.Where("patient = ?", f.Patient)
	}
	if !f.From.IsZero() {
		q = q.Where("taken_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("taken_at < ?", f.To.UTC())
	}
	return q
}
