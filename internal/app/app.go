// Package app runs one daily ETo job end to end: load inputs, evaluate the
// pipeline, write the product, record the run and push metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chrissnell/etogrid/internal/meteo"
	"github.com/chrissnell/etogrid/internal/netcdf"
	"github.com/chrissnell/etogrid/internal/observability"
	"github.com/chrissnell/etogrid/internal/pipeline"
	"github.com/chrissnell/etogrid/internal/storage"
	"github.com/chrissnell/etogrid/internal/storage/sqlite"
	"github.com/chrissnell/etogrid/internal/storage/timescaledb"
	"github.com/chrissnell/etogrid/pkg/config"
	"github.com/chrissnell/etogrid/pkg/raster"
)

// App represents the main application
type App struct {
	config  *config.ConfigData
	logger  *zap.SugaredLogger
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// Report is what a successful run produced.
type Report struct {
	Result *pipeline.Result
	Output string
	Run    storage.RunRecord
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config:  cfg,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}
}

// SetClock replaces the clock used to pick the default run date.
func (a *App) SetClock(c clockwork.Clock) {
	a.clock = c
}

// Metrics returns the metrics recorded by Run.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// RunDate returns the configured date, or yesterday (UTC) when none is set.
func (a *App) RunDate() (time.Time, error) {
	if a.config.Run.Date != "" {
		d, err := time.Parse(config.DateLayout, a.config.Run.Date)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid run date %q: %w", a.config.Run.Date, err)
		}
		return d, nil
	}
	now := a.clock.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC), nil
}

// Run computes, writes and records the ETo product for the configured date
// and source. Ledger and metrics push failures are logged, not returned.
func (a *App) Run(ctx context.Context) (*Report, error) {
	if err := a.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	date, err := a.RunDate()
	if err != nil {
		return nil, err
	}

	loader := netcdf.NewLoader(a.config.Input.Meteorology, a.logger.Named("netcdf"))
	fetcher := timeoutFetcher{Fetcher: loader, timeout: a.config.Run.FetchTimeout}
	adapter := meteo.NewAdapter(fetcher, a.logger.Named("meteo"))
	p := pipeline.New(adapter, a.elevationSource(), a.metrics, a.logger.Named("pipeline"))

	req := pipeline.Request{Date: date, Source: a.config.Run.Source}
	a.logger.Infow("starting ETo run", "date", date.Format(config.DateLayout), "source", req.Source)

	res, err := p.Run(ctx, req)
	if err != nil {
		a.pushMetrics(ctx)
		return nil, err
	}

	output := OutputPath(a.config.Output.Path, date, res.Canonical.Source)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		a.pushMetrics(ctx)
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if err := netcdf.WriteFields(output, netcdf.Metadata{Time: date, Source: req.Source}, res.Rasters()...); err != nil {
		a.pushMetrics(ctx)
		return nil, err
	}
	a.logger.Infof("wrote %v", output)

	record := storage.NewRunRecord(res, output, a.clock.Now())
	a.recordRun(ctx, record)
	a.pushMetrics(ctx)

	return &Report{Result: res, Output: output, Run: record}, nil
}

func (a *App) elevationSource() pipeline.ElevationSource {
	e := a.config.Input.Elevation
	if e.Constant != nil {
		return pipeline.ConstantElevation(*e.Constant)
	}
	return netcdf.ElevationFile{Path: e.File, Variable: e.Variable}
}

// OutputPath expands the {date} and {source} placeholders of a path template.
func OutputPath(template string, date time.Time, source meteo.SourceKind) string {
	r := strings.NewReplacer(
		"{date}", date.Format(config.DateLayout),
		"{source}", strings.ToLower(source.String()),
	)
	return r.Replace(template)
}

func (a *App) openStores(ctx context.Context) ([]storage.RunStore, error) {
	var stores []storage.RunStore
	var errs []error
	if c := a.config.Storage.TimescaleDB; c != nil {
		s, err := timescaledb.New(ctx, c.ConnectionString, a.logger.Named("timescaledb"))
		if err != nil {
			errs = append(errs, err)
		} else {
			stores = append(stores, s)
		}
	}
	if c := a.config.Storage.SQLite; c != nil {
		s, err := sqlite.New(ctx, c.Path)
		if err != nil {
			errs = append(errs, err)
		} else {
			stores = append(stores, s)
		}
	}
	return stores, errors.Join(errs...)
}

func (a *App) recordRun(ctx context.Context, r storage.RunRecord) {
	stores, err := a.openStores(ctx)
	if err != nil {
		a.logger.Warnf("run ledger unavailable: %v", err)
	}
	for _, s := range stores {
		if err := s.SaveRun(ctx, r); err != nil {
			a.logger.Warnf("could not record run %v: %v", r.ID, err)
		}
		if err := s.Close(); err != nil {
			a.logger.Warnf("closing run ledger: %v", err)
		}
	}
	if len(stores) > 0 {
		a.logger.Infof("recorded run %v", r.ID)
	}
}

func (a *App) pushMetrics(ctx context.Context) {
	m := a.config.Metrics
	if m.PushgatewayURL == "" {
		return
	}
	if err := a.metrics.Push(ctx, m.PushgatewayURL, m.Job); err != nil {
		a.logger.Warnf("could not push metrics: %v", err)
	}
}

// timeoutFetcher bounds each fetch with its own deadline.
type timeoutFetcher struct {
	meteo.Fetcher
	timeout time.Duration
}

func (f timeoutFetcher) Fetch(ctx context.Context, sourceID string, start, end time.Time) (*raster.Collection, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return f.Fetcher.Fetch(ctx, sourceID, start, end)
}
