// Package sqlite keeps the run ledger in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/etogrid/internal/storage"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS eto_runs (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	source TEXT NOT NULL,
	rows INTEGER NOT NULL,
	cols INTEGER NOT NULL,
	valid INTEGER NOT NULL,
	nonfinite INTEGER NOT NULL,
	eto_min REAL,
	eto_max REAL,
	eto_mean REAL,
	eto_stddev REAL,
	duration_ms INTEGER NOT NULL,
	output TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS eto_runs_source_date_idx ON eto_runs (source, date);
`

const dateLayout = "2006-01-02"

// Store implements storage.RunStore on SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// New opens (creating if needed) the ledger database at dbPath.
func New(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// SaveRun implements storage.RunStore.
func (s *Store) SaveRun(ctx context.Context, r storage.RunRecord) error {
	query := `
		INSERT INTO eto_runs (id, date, source, rows, cols, valid, nonfinite,
		                      eto_min, eto_max, eto_mean, eto_stddev,
		                      duration_ms, output, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(),
		r.Date.UTC().Format(dateLayout),
		r.Source,
		r.Rows,
		r.Cols,
		r.Valid,
		r.NonFinite,
		null(r.EToMin),
		null(r.EToMax),
		null(r.EToMean),
		null(r.EToStdDev),
		r.Duration.Milliseconds(),
		r.Output,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %v: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the runs for source, newest product date first.
func (s *Store) ListRuns(ctx context.Context, source string) ([]storage.RunRecord, error) {
	query := `
		SELECT id, date, source, rows, cols, valid, nonfinite,
		       eto_min, eto_max, eto_mean, eto_stddev,
		       duration_ms, output, created_at
		FROM eto_runs
		WHERE source = ?
		ORDER BY date DESC, created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.RunRecord
	for rows.Next() {
		var (
			r                      storage.RunRecord
			id, date, created      string
			output                 sql.NullString
			lo, hi, mean, stddev   sql.NullFloat64
			durationMS             int64
		)
		if err := rows.Scan(&id, &date, &r.Source, &r.Rows, &r.Cols, &r.Valid, &r.NonFinite,
			&lo, &hi, &mean, &stddev, &durationMS, &output, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		if r.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid run date %q: %w", date, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("invalid run timestamp %q: %w", created, err)
		}
		r.EToMin = value(lo)
		r.EToMax = value(hi)
		r.EToMean = value(mean)
		r.EToStdDev = value(stddev)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Output = output.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func null(v float64) sql.NullFloat64 {
	if p := storage.Nullable(v); p != nil {
		return sql.NullFloat64{Float64: *p, Valid: true}
	}
	return sql.NullFloat64{}
}

func value(v sql.NullFloat64) float64 {
	if !v.Valid {
		return storage.FromNullable(nil)
	}
	return v.Float64
}
