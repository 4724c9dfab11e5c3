// Package observability holds the Prometheus metrics recorded by an ETo run.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "etogrid"

// Metrics holds the counters, histograms and gauges for pipeline runs.
type Metrics struct {
	registry *prometheus.Registry

	Runs          *prometheus.CounterVec   // labels: source, outcome={success,error}
	StageDuration *prometheus.HistogramVec // labels: stage={adapt,elevation,model}
	RunDuration   prometheus.Histogram

	// Per-run result gauges, labelled by source.
	GridCells       *prometheus.GaugeVec
	NonFinitePixels *prometheus.GaugeVec
	EToMean         *prometheus.GaugeVec
	EToMin          *prometheus.GaugeVec
	EToMax          *prometheus.GaugeVec
	LastSuccess     *prometheus.GaugeVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "ETo runs by source and outcome.",
		}, []string{"source", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete ETo run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		GridCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_cells",
			Help:      "Number of cells in the last computed grid.",
		}, []string{"source"}),
		NonFinitePixels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nonfinite_pixels",
			Help:      "NaN or Inf cells in the last ETo grid.",
		}, []string{"source"}),
		EToMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eto_mean_mm",
			Help:      "Mean of the finite cells of the last ETo grid.",
		}, []string{"source"}),
		EToMin: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eto_min_mm",
			Help:      "Minimum of the finite cells of the last ETo grid.",
		}, []string{"source"}),
		EToMax: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eto_max_mm",
			Help:      "Maximum of the finite cells of the last ETo grid.",
		}, []string{"source"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"source"}),
	}

	reg.MustRegister(
		m.Runs,
		m.StageDuration,
		m.RunDuration,
		m.GridCells,
		m.NonFinitePixels,
		m.EToMean,
		m.EToMin,
		m.EToMax,
		m.LastSuccess,
	)
	return m
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, started time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends the current metrics to a Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
