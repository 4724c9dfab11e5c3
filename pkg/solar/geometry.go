package solar

import (
	"fmt"
	"time"

	"github.com/chrissnell/etogrid/pkg/raster"
)

// Geometry holds the astronomical terms for one day over a grid. Scalars
// depend only on the date; rasters depend on latitude as well.
type Geometry struct {
	DayOfYear               int
	InverseRelativeDistance float64
	Declination             float64

	// SunsetHourAngle is ωs in radians. NaN at polar day/night pixels.
	SunsetHourAngle *raster.Field
	// Extraterrestrial is Ra in MJ m⁻² day⁻¹.
	Extraterrestrial *raster.Field
	// DaylightHours is N in hours.
	DaylightHours *raster.Field
}

// ComputeGeometry evaluates the solar geometry for timeStart over a
// per-pixel latitude field given in radians.
func ComputeGeometry(timeStart time.Time, latRad *raster.Field) (*Geometry, error) {
	doy := DayOfYear(timeStart)
	dr := InverseRelativeDistance(doy)
	decl := Declination(doy)

	ws := latRad.Map("sunset_hour_angle", "radians", func(lat float64) float64 {
		return SunsetHourAngle(lat, decl)
	})

	ra, err := raster.Combine("extraterrestrial_radiation", "MJ m-2 day-1", func(v []float64) float64 {
		return ExtraterrestrialRadiation(v[0], decl, dr, v[1])
	}, latRad, ws)
	if err != nil {
		return nil, fmt.Errorf("extraterrestrial radiation: %w", err)
	}

	return &Geometry{
		DayOfYear:               doy,
		InverseRelativeDistance: dr,
		Declination:             decl,
		SunsetHourAngle:         ws,
		Extraterrestrial:        ra,
		DaylightHours:           ws.Map("daylight_hours", "h", DaylightHours),
	}, nil
}
