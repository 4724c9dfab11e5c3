// Package pipeline evaluates the daily ETo graph for one date and source:
// canonical variables, elevation, radiation balance and Penman-Monteith.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/etogrid/internal/eto"
	"github.com/chrissnell/etogrid/internal/meteo"
	"github.com/chrissnell/etogrid/internal/observability"
	"github.com/chrissnell/etogrid/pkg/raster"
)

// ElevationSource provides terrain elevation in metres on a given grid.
type ElevationSource interface {
	Elevation(ctx context.Context, grid raster.Grid) (*raster.Field, error)
}

// ConstantElevation is an ElevationSource for domains of uniform height.
type ConstantElevation float64

func (c ConstantElevation) Elevation(_ context.Context, grid raster.Grid) (*raster.Field, error) {
	return raster.Constant(grid, "elevation", "m", float64(c)), nil
}

// Request identifies one run.
type Request struct {
	Date   time.Time
	Source string
}

// Result carries the ETo raster, its inputs and intermediates.
type Result struct {
	Request   Request
	Canonical *meteo.Canonical
	Elevation *raster.Field
	Model     *eto.Result
	Summary   raster.Summary
	Duration  time.Duration
}

// Rasters returns the output rasters in the order they are written.
func (r *Result) Rasters() []*raster.Field {
	out := r.Canonical.Fields()
	return append(out,
		r.Model.Radiation.Rn,
		r.Model.Radiation.Geometry.DaylightHours,
		r.Model.ETo,
	)
}

// Pipeline wires the adapter and model stages.
type Pipeline struct {
	adapter   *meteo.Adapter
	elevation ElevationSource
	metrics   *observability.Metrics
	logger    *zap.SugaredLogger
}

// New creates a pipeline.
func New(adapter *meteo.Adapter, elevation ElevationSource, metrics *observability.Metrics, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		adapter:   adapter,
		elevation: elevation,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run computes daily ETo for req. Only unsupported sources, misaligned
// inputs and collaborator failures return errors; numerical degeneracies
// show up as NaN or Inf cells counted in Result.Summary.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	res, err := p.run(ctx, req)
	p.metrics.RunDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		p.metrics.Runs.WithLabelValues(req.Source, "error").Inc()
		return nil, err
	}
	res.Duration = time.Since(started)

	p.metrics.Runs.WithLabelValues(req.Source, "success").Inc()
	p.metrics.GridCells.WithLabelValues(req.Source).Set(float64(res.Model.ETo.Len()))
	p.metrics.NonFinitePixels.WithLabelValues(req.Source).Set(float64(res.Summary.NonFinite))
	p.metrics.EToMean.WithLabelValues(req.Source).Set(res.Summary.Mean)
	p.metrics.EToMin.WithLabelValues(req.Source).Set(res.Summary.Min)
	p.metrics.EToMax.WithLabelValues(req.Source).Set(res.Summary.Max)
	p.metrics.LastSuccess.WithLabelValues(req.Source).SetToCurrentTime()

	if res.Summary.NonFinite > 0 {
		p.logger.Warnf("%d of %d ETo cells are not finite", res.Summary.NonFinite, res.Model.ETo.Len())
	}
	p.logger.Infow("ETo computed",
		"date", req.Date.Format(time.DateOnly),
		"source", req.Source,
		"cells", res.Summary.Count,
		"mean_mm", res.Summary.Mean,
		"min_mm", res.Summary.Min,
		"max_mm", res.Summary.Max,
		"duration", res.Duration,
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request) (*Result, error) {
	stage := time.Now()
	canon, err := p.adapter.ComputeCanonicalVariables(ctx, req.Date, req.Source)
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage("adapt", stage)

	stage = time.Now()
	elev, err := p.elevation.Elevation(ctx, canon.Grid())
	if err != nil {
		return nil, fmt.Errorf("loading elevation: %w", err)
	}
	if err := raster.CheckAligned("elevation", canon.Tair, elev); err != nil {
		return nil, err
	}
	p.metrics.ObserveStage("elevation", stage)

	stage = time.Now()
	model, err := eto.Compute(eto.Inputs{
		TimeStart: req.Date,
		Tmin:      canon.Tmin,
		Tmax:      canon.Tmax,
		Tair:      canon.Tair,
		WindSpeed: canon.WindSpeed,
		Shortwave: canon.Shortwave,
		Elevation: elev,
	})
	if err != nil {
		return nil, fmt.Errorf("computing reference ETo: %w", err)
	}
	p.metrics.ObserveStage("model", stage)

	return &Result{
		Request:   req,
		Canonical: canon,
		Elevation: elev,
		Model:     model,
		Summary:   raster.Summarize(model.ETo),
	}, nil
}
