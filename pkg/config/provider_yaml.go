package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", y.filename, err)
	}
	y.config = config
	return config, nil
}

// ParseYAML converts a YAML document to ConfigData with defaults applied.
// It does not validate; callers validate after applying overrides.
func ParseYAML(doc []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(doc, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Run: RunData{
			Date:   yamlConfig.Run.Date,
			Source: yamlConfig.Run.Source,
		},
		Input: InputData{
			Meteorology: yamlConfig.Input.Meteorology,
			Elevation: ElevationData{
				File:     yamlConfig.Input.Elevation.File,
				Variable: yamlConfig.Input.Elevation.Variable,
				Constant: yamlConfig.Input.Elevation.Constant,
			},
		},
		Output: OutputData{
			Path: yamlConfig.Output.Path,
		},
		Metrics: MetricsData{
			PushgatewayURL: yamlConfig.Metrics.PushgatewayURL,
			Job:            yamlConfig.Metrics.Job,
		},
	}

	if yamlConfig.Run.FetchTimeout != "" {
		d, err := time.ParseDuration(yamlConfig.Run.FetchTimeout)
		if err != nil {
			return nil, fmt.Errorf("run.fetch-timeout: %w", err)
		}
		config.Run.FetchTimeout = d
	}

	// Convert storage
	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}
	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{
			Path: yamlConfig.Storage.SQLite.Path,
		}
	}

	config.applyDefaults()
	return config, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the file format
type ConfigYAML struct {
	Run     RunYAML     `yaml:"run"`
	Input   InputYAML   `yaml:"input"`
	Output  OutputYAML  `yaml:"output"`
	Storage StorageYAML `yaml:"storage,omitempty"`
	Metrics MetricsYAML `yaml:"metrics,omitempty"`
}

type RunYAML struct {
	Date         string `yaml:"date,omitempty"`
	Source       string `yaml:"source"`
	FetchTimeout string `yaml:"fetch-timeout,omitempty"`
}

type InputYAML struct {
	Meteorology []string      `yaml:"meteorology"`
	Elevation   ElevationYAML `yaml:"elevation"`
}

type ElevationYAML struct {
	File     string   `yaml:"file,omitempty"`
	Variable string   `yaml:"variable,omitempty"`
	Constant *float64 `yaml:"constant,omitempty"`
}

type OutputYAML struct {
	Path string `yaml:"path"`
}

type StorageYAML struct {
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
	SQLite      *SQLiteYAML      `yaml:"sqlite,omitempty"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type MetricsYAML struct {
	PushgatewayURL string `yaml:"pushgateway-url,omitempty"`
	Job            string `yaml:"job,omitempty"`
}
