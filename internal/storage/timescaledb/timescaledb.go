// Package timescaledb keeps the run ledger in a TimescaleDB hypertable.
package timescaledb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chrissnell/etogrid/internal/database"
	"github.com/chrissnell/etogrid/internal/storage"
)

// Storage holds the connection to a TimescaleDB ledger.
type Storage struct {
	TimescaleDBConn *gorm.DB
	logger          *zap.SugaredLogger
}

// We declare the Tabler interface for purposes of customizing the table name in the DB
type Tabler interface {
	TableName() string
}

// Run is the eto_runs row.
type Run struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Date       time.Time `gorm:"column:date;primaryKey"`
	Source     string    `gorm:"column:source"`
	Rows       int       `gorm:"column:rows"`
	Cols       int       `gorm:"column:cols"`
	Valid      int       `gorm:"column:valid"`
	NonFinite  int       `gorm:"column:nonfinite"`
	EToMin     *float64  `gorm:"column:eto_min"`
	EToMax     *float64  `gorm:"column:eto_max"`
	EToMean    *float64  `gorm:"column:eto_mean"`
	EToStdDev  *float64  `gorm:"column:eto_stddev"`
	DurationMS int64     `gorm:"column:duration_ms"`
	Output     string    `gorm:"column:output"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName implements Tabler.
func (Run) TableName() string {
	return "eto_runs"
}

var _ Tabler = Run{}

// FromRecord converts a ledger record to a row.
func FromRecord(r storage.RunRecord) Run {
	return Run{
		ID:         r.ID,
		Date:       r.Date,
		Source:     r.Source,
		Rows:       r.Rows,
		Cols:       r.Cols,
		Valid:      r.Valid,
		NonFinite:  r.NonFinite,
		EToMin:     storage.Nullable(r.EToMin),
		EToMax:     storage.Nullable(r.EToMax),
		EToMean:    storage.Nullable(r.EToMean),
		EToStdDev:  storage.Nullable(r.EToStdDev),
		DurationMS: r.Duration.Milliseconds(),
		Output:     r.Output,
		CreatedAt:  r.CreatedAt,
	}
}

// Record converts a row back to a ledger record.
func (r Run) Record() storage.RunRecord {
	return storage.RunRecord{
		ID:        r.ID,
		Date:      r.Date.UTC(),
		Source:    r.Source,
		Rows:      r.Rows,
		Cols:      r.Cols,
		Valid:     r.Valid,
		NonFinite: r.NonFinite,
		EToMin:    storage.FromNullable(r.EToMin),
		EToMax:    storage.FromNullable(r.EToMax),
		EToMean:   storage.FromNullable(r.EToMean),
		EToStdDev: storage.FromNullable(r.EToStdDev),
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
		Output:    r.Output,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// New connects to TimescaleDB and creates the ledger hypertable.
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Storage, error) {
	var err error
	t := Storage{logger: logger}

	t.TimescaleDBConn, err = database.CreateConnection(connectionString, logger)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		what string
		sql  string
	}{
		{"ledger table", createTableSQL},
		{"TimescaleDB extension", createExtensionSQL},
		{"hypertable", createHypertableSQL},
		{"source index", createSourceIndexSQL},
	}
	for _, s := range steps {
		logger.Infof("creating %v...", s.what)
		if err := t.TimescaleDBConn.WithContext(ctx).Exec(s.sql).Error; err != nil {
			logger.Warnf("warning: could not create %v", s.what)
			t.Close()
			return nil, fmt.Errorf("timescaledb: creating %v: %w", s.what, err)
		}
	}

	return &t, nil
}

// SaveRun implements storage.RunStore.
func (t *Storage) SaveRun(ctx context.Context, r storage.RunRecord) error {
	row := FromRecord(r)
	if err := t.TimescaleDBConn.WithContext(ctx).Create(&row).Error; err != nil {
		t.logger.Error("could not store run:", err)
		return fmt.Errorf("timescaledb: storing run %v: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the runs for source, newest product date first.
func (t *Storage) ListRuns(ctx context.Context, source string) ([]storage.RunRecord, error) {
	var rows []Run
	if err := t.TimescaleDBConn.WithContext(ctx).Where("source = ?", source).Order("date DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("timescaledb: listing runs: %w", err)
	}
	out := make([]storage.RunRecord, len(rows))
	for i, r := range rows {
		out[i] = r.Record()
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
