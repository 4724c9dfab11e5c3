// Package eto computes daily grass reference evapotranspiration with the
// FAO-56 Penman-Monteith equation.
package eto

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/etogrid/internal/radiation"
	"github.com/chrissnell/etogrid/pkg/raster"
)

// Reference crop coefficients for a daily time step.
const (
	Cn = 900.0
	Cd = 0.34
)

const (
	kelvinOffset = 273.15

	// psychrometricFactor is cp/(ε·λ) in kPa⁻¹ times P.
	psychrometricFactor = 0.000665
)

// Inputs are the daily rasters the model consumes. Temperatures are in K,
// wind speed in m s⁻¹, shortwave is the daily mean flux in W m⁻² and
// elevation is in metres.
type Inputs struct {
	TimeStart time.Time
	Tmin      *raster.Field
	Tmax      *raster.Field
	Tair      *raster.Field
	WindSpeed *raster.Field
	Shortwave *raster.Field
	Elevation *raster.Field
}

// Result holds ETo and every intermediate term.
type Result struct {
	Radiation *radiation.Components

	Pressure *raster.Field // kPa
	Gamma    *raster.Field // kPa °C⁻¹
	EaMax    *raster.Field // kPa
	EaMin    *raster.Field // kPa
	Es       *raster.Field // kPa
	Delta    *raster.Field // kPa °C⁻¹
	ETo      *raster.Field // mm day⁻¹
}

// AtmosphericPressure returns P in kPa for elevation z in metres
// (FAO-56 eq. 7).
func AtmosphericPressure(z float64) float64 {
	return 101.3 * math.Pow((293-0.0065*z)/293, 5.26)
}

// PsychrometricConstant returns γ in kPa °C⁻¹ (FAO-56 eq. 8).
func PsychrometricConstant(p float64) float64 {
	return psychrometricFactor * p
}

// SaturationVaporPressure returns e°(T) in kPa for T in °C (FAO-56 eq. 11).
func SaturationVaporPressure(tc float64) float64 {
	return 0.6108 * math.Exp(17.27*tc/(tc+237.3))
}

// VaporPressureSlope returns Δ from the mean saturation vapour pressure es
// and the mean air temperature in °C. This is 4098·es/T², not the FAO-56
// eq. 13 form evaluated at T; the two differ numerically.
func VaporPressureSlope(es, tairC float64) float64 {
	return 4098 * es / (tairC * tairC)
}

// PenmanMonteith returns ETo in mm day⁻¹ (FAO-56 eq. 6). ea is the actual
// vapour pressure, approximated here by e°(Tmin).
func PenmanMonteith(delta, rn, gamma, tairC, u2, es, ea float64) float64 {
	return (0.408*delta*rn + gamma*(Cn/(tairC+273))*u2*(es-ea)) /
		(delta + gamma*(1+Cd*u2))
}

// Compute runs the radiation balance and the vapour pressure chain
// concurrently, then combines them into ETo. Negative values are kept.
func Compute(in Inputs) (*Result, error) {
	if err := raster.CheckAligned("reference ETo", in.Tmin, in.Tmax, in.Tair, in.WindSpeed, in.Shortwave, in.Elevation); err != nil {
		return nil, err
	}

	res := &Result{}

	var g errgroup.Group
	g.Go(func() error {
		rad, err := radiation.Compute(in.TimeStart, in.Tmax, in.Tmin, in.Elevation, in.Shortwave)
		if err != nil {
			return fmt.Errorf("net radiation: %w", err)
		}
		res.Radiation = rad
		return nil
	})
	g.Go(func() error {
		res.Pressure = in.Elevation.Map("p_atm", "kPa", AtmosphericPressure)
		res.Gamma = res.Pressure.Map("cte_psi", "kPa C-1", PsychrometricConstant)
		res.EaMax = in.Tmax.Map("ea_max", "kPa", func(t float64) float64 {
			return SaturationVaporPressure(t - kelvinOffset)
		})
		res.EaMin = in.Tmin.Map("ea_min", "kPa", func(t float64) float64 {
			return SaturationVaporPressure(t - kelvinOffset)
		})

		var err error
		res.Es, err = raster.Combine("es_mean", "kPa", func(v []float64) float64 {
			return (v[0] + v[1]) / 2
		}, res.EaMin, res.EaMax)
		if err != nil {
			return err
		}
		res.Delta, err = raster.Combine("delta", "kPa C-1", func(v []float64) float64 {
			return VaporPressureSlope(v[0], v[1]-kelvinOffset)
		}, res.Es, in.Tair)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	eto, err := raster.Combine("eto24h", "mm day-1", func(v []float64) float64 {
		return PenmanMonteith(v[0], v[1], v[2], v[3]-kelvinOffset, v[4], v[5], v[6])
	}, res.Delta, res.Radiation.Rn, res.Gamma, in.Tair, in.WindSpeed, res.Es, res.EaMin)
	if err != nil {
		return nil, err
	}
	res.ETo = eto
	return res, nil
}

// ReferenceETo returns daily ETo in mm day⁻¹.
func ReferenceETo(timeStart time.Time, tmin, tmax, tair, windSpeed, shortwave, elevation *raster.Field) (*raster.Field, error) {
	res, err := Compute(Inputs{
		TimeStart: timeStart,
		Tmin:      tmin,
		Tmax:      tmax,
		Tair:      tair,
		WindSpeed: windSpeed,
		Shortwave: shortwave,
		Elevation: elevation,
	})
	if err != nil {
		return nil, err
	}
	return res.ETo, nil
}
