package solar

import (
	"math"
	"testing"
	"time"

	"github.com/chrissnell/etogrid/pkg/raster"
)

func TestDayOfYear(t *testing.T) {
	tests := []struct {
		name     string
		t        time.Time
		expected int
	}{
		{"first day", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 1},
		{"June 1 in a leap year", time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), 153},
		{"June 1 in a common year", time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), 152},
		{"last day of a leap year", time.Date(2020, 12, 31, 23, 0, 0, 0, time.UTC), 366},
		{"offset zone resolves to UTC date", time.Date(2020, 6, 1, 1, 0, 0, 0, time.FixedZone("UTC+5", 5*3600)), 152},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayOfYear(tt.t); got != tt.expected {
				t.Errorf("DayOfYear(%s) = %d, expected %d", tt.t, got, tt.expected)
			}
		})
	}
}

// FAO-56 examples 8 and 9: 20°S on 3 September.
func TestExtraterrestrialRadiationFAOExample(t *testing.T) {
	doy := DayOfYear(time.Date(2015, 9, 3, 0, 0, 0, 0, time.UTC))
	if doy != 246 {
		t.Fatalf("day of year = %d, expected 246", doy)
	}

	lat := -20.0 * math.Pi / 180
	dr := InverseRelativeDistance(doy)
	decl := Declination(doy)
	ws := SunsetHourAngle(lat, decl)
	ra := ExtraterrestrialRadiation(lat, decl, dr, ws)

	checks := []struct {
		name      string
		got, want float64
		tol       float64
	}{
		{"dr", dr, 0.985, 0.001},
		{"declination", decl, 0.120, 0.001},
		{"sunset hour angle", ws, 1.527, 0.001},
		{"Ra", ra, 32.2, 0.05},
		{"N", DaylightHours(ws), 11.7, 0.05},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > c.tol {
			t.Errorf("%s = %.4f, expected %.4f ±%g", c.name, c.got, c.want, c.tol)
		}
	}
}

func TestExtraterrestrialRadiationNonNegative(t *testing.T) {
	for doy := 1; doy <= 365; doy++ {
		dr := InverseRelativeDistance(doy)
		decl := Declination(doy)
		for latDeg := -89.0; latDeg <= 89.0; latDeg += 0.5 {
			lat := latDeg * math.Pi / 180
			if math.Abs(math.Tan(lat)*math.Tan(decl)) > 1 {
				continue
			}
			ra := ExtraterrestrialRadiation(lat, decl, dr, SunsetHourAngle(lat, decl))
			if ra < -1e-9 || math.IsNaN(ra) {
				t.Fatalf("day %d, lat %.1f: Ra = %g, expected >= 0", doy, latDeg, ra)
			}
		}
	}
}

func TestSunsetHourAnglePolarConditions(t *testing.T) {
	tests := []struct {
		name string
		doy  int
		lat  float64
	}{
		{"Arctic summer (polar day)", 172, 80},
		{"Arctic winter (polar night)", 355, 80},
		{"Antarctic summer (polar day)", 355, -80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := SunsetHourAngle(tt.lat*math.Pi/180, Declination(tt.doy))
			if !math.IsNaN(ws) {
				t.Errorf("expected NaN sunset hour angle, got %g", ws)
			}
		})
	}
}

func TestComputeGeometry(t *testing.T) {
	// Row 0 at 20°S, row 1 at 80°N.
	grid := raster.Grid{Rows: 2, Cols: 2, X0: 0, Y0: -20, DX: 1, DY: 100, CRS: raster.DefaultCRS}
	day := time.Date(2015, 12, 21, 0, 0, 0, 0, time.UTC)

	g, err := ComputeGeometry(day, raster.Radians(grid.Latitudes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.DayOfYear != 355 {
		t.Errorf("day of year = %d, expected 355", g.DayOfYear)
	}

	for col := 0; col < 2; col++ {
		ra := g.Extraterrestrial.At(0, col)
		if math.IsNaN(ra) || ra <= 0 {
			t.Errorf("20°S col %d: expected positive Ra, got %g", col, ra)
		}
		if n := g.DaylightHours.At(0, col); n < 12 || n > 14 {
			t.Errorf("20°S col %d: expected austral summer day length, got %g h", col, n)
		}
		if !math.IsNaN(g.Extraterrestrial.At(1, col)) {
			t.Errorf("80°N col %d: expected NaN Ra during polar night, got %g", col, g.Extraterrestrial.At(1, col))
		}
	}
}
