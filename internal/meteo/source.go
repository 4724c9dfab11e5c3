// Package meteo adapts meteorological reanalysis products to the canonical
// daily variable set consumed by the evapotranspiration model.
package meteo

import (
	"fmt"
	"strings"
	"time"

	"github.com/chrissnell/etogrid/pkg/raster"
)

// SourceKind enumerates the supported meteorological products.
type SourceKind int

const (
	SourceGLDAS SourceKind = iota + 1
	SourceERA5
)

func (k SourceKind) String() string {
	switch k {
	case SourceGLDAS:
		return "GLDAS"
	case SourceERA5:
		return "ERA5"
	}
	return fmt.Sprintf("SourceKind(%d)", int(k))
}

// WindPolicy says how daily wind speed is obtained from a product.
type WindPolicy int

const (
	// WindDirect averages a wind speed band.
	WindDirect WindPolicy = iota
	// WindComponents takes the magnitude of the averaged u and v components.
	WindComponents
)

// ShortwavePolicy describes how the daily mean downward shortwave flux is
// derived from a product's radiation band.
type ShortwavePolicy struct {
	Reducer raster.Reducer
	// Offset shifts the 24-hour aggregation window relative to time_start.
	Offset time.Duration
	// Divisor converts the reduced value to W m⁻². 1 for flux products.
	Divisor float64
}

// Bands maps canonical variables to a product's band names. Empty entries
// are not provided by the product.
type Bands struct {
	Temperature string
	WindSpeed   string
	WindU       string
	WindV       string
	Shortwave   string

	// Carried by the products but not used by the reference ETo model.
	SpecificHumidity string
	DewPoint         string
	Pressure         string
}

// Source is a registry entry for one meteorological product.
type Source struct {
	Kind      SourceKind
	Match     string
	Bands     Bands
	Wind      WindPolicy
	Shortwave ShortwavePolicy
}

const (
	day             = 24 * time.Hour
	secondsPerDay   = 86400.0
	gldasSolarShift = 3 * time.Hour
)

var registry = []Source{
	{
		// GLDAS-2.1 Noah 3-hourly. SWdown_f_tavg is a 3-hour average flux.
		Kind:  SourceGLDAS,
		Match: "gldas",
		Bands: Bands{
			Temperature:      "Tair_f_inst",
			WindSpeed:        "Wind_f_inst",
			Shortwave:        "SWdown_f_tavg",
			SpecificHumidity: "Qair_f_inst",
			Pressure:         "Psurf_f_inst",
		},
		Wind: WindDirect,
		Shortwave: ShortwavePolicy{
			Reducer: raster.ReduceMean,
			Offset:  gldasSolarShift,
			Divisor: 1,
		},
	},
	{
		// ERA5(-Land) hourly. Radiation is accumulated J m⁻² per hour.
		Kind:  SourceERA5,
		Match: "era5",
		Bands: Bands{
			Temperature: "temperature_2m",
			WindU:       "u_component_of_wind_10m",
			WindV:       "v_component_of_wind_10m",
			Shortwave:   "surface_solar_radiation_downwards_hourly",
			DewPoint:    "dewpoint_temperature_2m",
			Pressure:    "surface_pressure",
		},
		Wind: WindComponents,
		Shortwave: ShortwavePolicy{
			Reducer: raster.ReduceSum,
			Divisor: secondsPerDay,
		},
	},
}

// UnsupportedSourceError is returned when a source identifier does not
// match any registered product.
type UnsupportedSourceError struct {
	SourceID string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("meteorology dataset not supported: %q", e.SourceID)
}

// Resolve finds the registry entry whose match string is contained in
// sourceID, ignoring case.
func Resolve(sourceID string) (Source, error) {
	id := strings.ToLower(sourceID)
	for _, s := range registry {
		if strings.Contains(id, s.Match) {
			return s, nil
		}
	}
	return Source{}, &UnsupportedSourceError{SourceID: sourceID}
}

// Sources returns the registered products.
func Sources() []Source {
	out := make([]Source, len(registry))
	copy(out, registry)
	return out
}

// shortwaveWindow returns the aggregation window for the radiation band.
func (s Source) shortwaveWindow(timeStart time.Time) (time.Time, time.Time) {
	start := timeStart.Add(s.Shortwave.Offset)
	return start, start.Add(day)
}

// fetchWindow covers both the nominal day and the shortwave window.
func (s Source) fetchWindow(timeStart time.Time) (time.Time, time.Time) {
	swStart, swEnd := s.shortwaveWindow(timeStart)
	start, end := timeStart, timeStart.Add(day)
	if swStart.Before(start) {
		start = swStart
	}
	if swEnd.After(end) {
		end = swEnd
	}
	return start, end
}
