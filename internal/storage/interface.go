// Package storage defines the run ledger: a record of every ETo product
// generated, kept in one or more database backends.
package storage

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/etogrid/internal/pipeline"
)

// RunStore is implemented by ledger backends.
type RunStore interface {
	SaveRun(ctx context.Context, r RunRecord) error
	Close() error
}

// RunRecord summarises one successful pipeline run.
type RunRecord struct {
	ID        uuid.UUID
	Date      time.Time
	Source    string
	Rows      int
	Cols      int
	Valid     int
	NonFinite int
	EToMin    float64
	EToMax    float64
	EToMean   float64
	EToStdDev float64
	Duration  time.Duration
	Output    string
	CreatedAt time.Time
}

// NewRunRecord builds the ledger entry for res, written to output.
func NewRunRecord(res *pipeline.Result, output string, now time.Time) RunRecord {
	grid := res.Model.ETo.Grid()
	return RunRecord{
		ID:        uuid.New(),
		Date:      res.Request.Date.UTC(),
		Source:    res.Canonical.Source.String(),
		Rows:      grid.Rows,
		Cols:      grid.Cols,
		Valid:     res.Summary.Count,
		NonFinite: res.Summary.NonFinite,
		EToMin:    res.Summary.Min,
		EToMax:    res.Summary.Max,
		EToMean:   res.Summary.Mean,
		EToStdDev: res.Summary.StdDev,
		Duration:  res.Duration,
		Output:    output,
		CreatedAt: now.UTC(),
	}
}

// Nullable maps NaN and Inf statistics to nil so they can be stored as NULL.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FromNullable is the inverse of Nullable.
func FromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
