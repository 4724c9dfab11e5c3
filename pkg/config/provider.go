// Package config loads etogrid run configuration.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultFetchTimeout      = 10 * time.Minute
	DefaultElevationVariable = "elevation"
	DefaultMetricsJob        = "etogrid"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Run     RunData     `json:"run"`
	Input   InputData   `json:"input"`
	Output  OutputData  `json:"output"`
	Storage StorageData `json:"storage,omitempty"`
	Metrics MetricsData `json:"metrics,omitempty"`
}

// RunData selects what to compute. An empty Date means yesterday (UTC).
type RunData struct {
	Date         string        `json:"date,omitempty"`
	Source       string        `json:"source"`
	FetchTimeout time.Duration `json:"fetch_timeout,omitempty"`
}

// InputData lists the files the run reads.
type InputData struct {
	Meteorology []string      `json:"meteorology"`
	Elevation   ElevationData `json:"elevation"`
}

// ElevationData points at a gridded elevation variable, or gives one height
// for the whole domain.
type ElevationData struct {
	File     string   `json:"file,omitempty"`
	Variable string   `json:"variable,omitempty"`
	Constant *float64 `json:"constant,omitempty"`
}

// OutputData says where the product is written. Path may contain {date}
// and {source} placeholders.
type OutputData struct {
	Path string `json:"path"`
}

// StorageData holds the configuration for the run ledger backends.
// More than one backend can be used simultaneously.
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

type SQLiteData struct {
	Path string `json:"path"`
}

// MetricsData configures the Prometheus Pushgateway. Metrics are not pushed
// when PushgatewayURL is empty.
type MetricsData struct {
	PushgatewayURL string `json:"pushgateway_url,omitempty"`
	Job            string `json:"job,omitempty"`
}

// Validate checks that the configuration describes a runnable job.
func (c *ConfigData) Validate() error {
	var errs []error
	if c.Run.Source == "" {
		errs = append(errs, errors.New("run.source is required"))
	}
	if c.Run.Date != "" {
		if _, err := time.Parse(DateLayout, c.Run.Date); err != nil {
			errs = append(errs, fmt.Errorf("run.date %q is not YYYY-MM-DD", c.Run.Date))
		}
	}
	if c.Run.FetchTimeout < 0 {
		errs = append(errs, errors.New("run.fetch-timeout must not be negative"))
	}
	if len(c.Input.Meteorology) == 0 {
		errs = append(errs, errors.New("input.meteorology needs at least one file"))
	}
	switch e := c.Input.Elevation; {
	case e.File == "" && e.Constant == nil:
		errs = append(errs, errors.New("input.elevation needs a file or a constant"))
	case e.File != "" && e.Constant != nil:
		errs = append(errs, errors.New("input.elevation takes a file or a constant, not both"))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if c.Storage.TimescaleDB != nil && c.Storage.TimescaleDB.ConnectionString == "" {
		errs = append(errs, errors.New("storage.timescaledb.connection-string is required"))
	}
	if c.Storage.SQLite != nil && c.Storage.SQLite.Path == "" {
		errs = append(errs, errors.New("storage.sqlite.path is required"))
	}
	return errors.Join(errs...)
}

// DateLayout is the format of run dates.
const DateLayout = "2006-01-02"

func (c *ConfigData) applyDefaults() {
	if c.Run.FetchTimeout == 0 {
		c.Run.FetchTimeout = DefaultFetchTimeout
	}
	if c.Input.Elevation.File != "" && c.Input.Elevation.Variable == "" {
		c.Input.Elevation.Variable = DefaultElevationVariable
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = DefaultMetricsJob
	}
}
