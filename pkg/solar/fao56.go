// Package solar computes the daily solar geometry terms of FAO Irrigation
// and Drainage Paper 56 (Allen et al., 1998) used by the reference
// evapotranspiration model.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Constants
const (
	// SolarConstant is Gsc in MJ m⁻² min⁻¹ (FAO-56 eq. 21).
	SolarConstant = 0.0820

	// minutesPerDay is the 24·60 factor that turns Gsc into a daily total.
	minutesPerDay = 24 * 60

	// daysPerYear is the fixed year length of the FAO-56 seasonal terms,
	// leap years included.
	daysPerYear = 365.0
)

// DayOfYear returns J, the 1-based ordinal day of t in its UTC year.
func DayOfYear(t time.Time) int {
	u := t.UTC()
	return julian.DayOfYearGregorian(u.Year(), int(u.Month()), u.Day())
}

// seasonalAngle is 2πJ/365, the argument shared by dr and δ.
func seasonalAngle(doy int) float64 {
	return (2 * math.Pi / daysPerYear) * float64(doy)
}

// InverseRelativeDistance returns dr, the inverse relative Earth-Sun
// distance (FAO-56 eq. 23).
func InverseRelativeDistance(doy int) float64 {
	return 1 + 0.033*math.Cos(seasonalAngle(doy))
}

// Declination returns δ, the solar declination in radians (FAO-56 eq. 24).
func Declination(doy int) float64 {
	return 0.40928 * math.Sin(seasonalAngle(doy)-1.39)
}

// SunsetHourAngle returns ωs in radians (FAO-56 eq. 25). Where
// |tan(lat)·tan(δ)| > 1 (polar day or night) the result is NaN.
func SunsetHourAngle(latRad, decl float64) float64 {
	return math.Acos(-math.Tan(latRad) * math.Tan(decl))
}

// ExtraterrestrialRadiation returns Ra in MJ m⁻² day⁻¹ (FAO-56 eq. 21).
func ExtraterrestrialRadiation(latRad, decl, dr, ws float64) float64 {
	return (minutesPerDay / math.Pi) * SolarConstant * dr *
		(ws*math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*math.Sin(ws))
}

// DaylightHours returns N, the maximum possible duration of sunshine in
// hours (FAO-56 eq. 34).
func DaylightHours(ws float64) float64 {
	return 24 / math.Pi * ws
}
