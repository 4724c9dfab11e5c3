// Package radiation computes the daily net radiation balance at a grass
// reference surface (FAO-56 chapter 3).
package radiation

import (
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/etogrid/pkg/raster"
	"github.com/chrissnell/etogrid/pkg/solar"
)

const (
	// Albedo of the hypothetical grass reference crop.
	Albedo = 0.23

	// StefanBoltzmann is σ in MJ K⁻⁴ m⁻² day⁻¹.
	StefanBoltzmann = 4.901e-9

	// fluxToDaily converts a mean flux in W m⁻² to MJ m⁻² day⁻¹.
	fluxToDaily = 0.0864

	kelvinOffset = 273.15
)

const unitDaily = "MJ m-2 day-1"

// Components holds every term of the radiation balance.
type Components struct {
	Geometry *solar.Geometry

	Rs  *raster.Field // incoming shortwave
	Ra  *raster.Field // extraterrestrial
	Rso *raster.Field // clear-sky shortwave
	Rns *raster.Field // net shortwave
	Ea  *raster.Field // vapour pressure proxy for the longwave term, kPa
	Rnl *raster.Field // net outgoing longwave
	Rn  *raster.Field // net radiation
}

// ClearSky returns Rso (FAO-56 eq. 37) for elevation z in metres.
func ClearSky(z, ra float64) float64 {
	return (0.75 + 2e-5*z) * ra
}

// NetShortwave returns Rns (FAO-56 eq. 38).
func NetShortwave(rs float64) float64 {
	return (1 - Albedo) * rs
}

// LongwaveVaporPressure returns the actual vapour pressure used by the
// longwave term, estimated from tmin (K) alone.
func LongwaveVaporPressure(tminK float64) float64 {
	tc := tminK - kelvinOffset
	return 0.6108 * math.Exp(17.27*tc/(tc+237.3))
}

// NetLongwave returns Rnl (FAO-56 eq. 39) for temperatures in K. A zero or
// non-finite rso yields a non-finite result, and so does a negative one.
func NetLongwave(tmaxK, tminK, ea, rs, rso float64) float64 {
	if rso < 0 {
		return math.NaN()
	}
	return StefanBoltzmann * ((math.Pow(tmaxK, 4) + math.Pow(tminK, 4)) / 2) *
		(0.34 - 0.14*math.Sqrt(ea)) *
		(1.35*(rs/rso) - 0.35)
}

// Compute evaluates the radiation balance. shortwave is the daily mean
// downward flux in W m⁻²; temperatures are in K and elevation in metres.
// Latitude is taken from the shortwave grid.
func Compute(timeStart time.Time, tmax, tmin, elevation, shortwave *raster.Field) (*Components, error) {
	if err := raster.CheckAligned("net radiation", shortwave, tmax, tmin, elevation); err != nil {
		return nil, err
	}

	geo, err := solar.ComputeGeometry(timeStart, raster.Radians(shortwave.Grid().Latitudes()))
	if err != nil {
		return nil, err
	}

	rs := shortwave.Map("Rs", unitDaily, func(v float64) float64 { return v * fluxToDaily })

	rso, err := raster.Combine("Rso", unitDaily, func(v []float64) float64 {
		return ClearSky(v[0], v[1])
	}, elevation, geo.Extraterrestrial)
	if err != nil {
		return nil, fmt.Errorf("clear-sky radiation: %w", err)
	}

	rns := rs.Map("Rns", unitDaily, NetShortwave)
	ea := tmin.Map("ea", "kPa", LongwaveVaporPressure)

	rnl, err := raster.Combine("Rnl", unitDaily, func(v []float64) float64 {
		return NetLongwave(v[0], v[1], v[2], v[3], v[4])
	}, tmax, tmin, ea, rs, rso)
	if err != nil {
		return nil, fmt.Errorf("net longwave radiation: %w", err)
	}

	rn, err := raster.Combine("rad_24h", unitDaily, func(v []float64) float64 {
		return v[0] - v[1]
	}, rns, rnl)
	if err != nil {
		return nil, fmt.Errorf("net radiation: %w", err)
	}

	return &Components{
		Geometry: geo,
		Rs:       rs,
		Ra:       geo.Extraterrestrial,
		Rso:      rso,
		Rns:      rns,
		Ea:       ea,
		Rnl:      rnl,
		Rn:       rn,
	}, nil
}

// NetRadiation returns Rn in MJ m⁻² day⁻¹.
func NetRadiation(timeStart time.Time, tmax, tmin, elevation, shortwave *raster.Field) (*raster.Field, error) {
	c, err := Compute(timeStart, tmax, tmin, elevation, shortwave)
	if err != nil {
		return nil, err
	}
	return c.Rn, nil
}
