package eto

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/etogrid/internal/radiation"
	"github.com/chrissnell/etogrid/pkg/raster"
)

var day0 = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

func field(t *testing.T, g raster.Grid, values ...float64) *raster.Field {
	t.Helper()
	f, err := raster.New(g, "x", "", values)
	require.NoError(t, err)
	return f
}

func sampleInputs(t *testing.T) Inputs {
	g := raster.Grid{Rows: 2, Cols: 3, X0: -5, Y0: 38, DX: 0.5, DY: -0.5, CRS: raster.DefaultCRS}
	return Inputs{
		TimeStart: day0,
		Tmin:      field(t, g, 288, 290, 285, 281, 286, 287),
		Tmax:      field(t, g, 303, 306, 300, 296, 301, 304),
		Tair:      field(t, g, 295.5, 298, 292.5, 288.5, 293.5, 295.5),
		WindSpeed: field(t, g, 2, 1.5, 3.2, 0.8, 2.4, 4),
		Shortwave: field(t, g, 310, 325, 290, 260, 300, 330),
		Elevation: field(t, g, 10, 600, 1500, 2200, 50, 0),
	}
}

// FAO-56 examples 2 and 3.
func TestPressureAndPsychrometricConstant(t *testing.T) {
	p := AtmosphericPressure(1800)
	assert.InDelta(t, 81.8, p, 0.05)
	assert.InDelta(t, 0.054, PsychrometricConstant(p), 0.0005)
	assert.InDelta(t, 101.3, AtmosphericPressure(0), 1e-12)
}

func TestSaturationVaporPressure(t *testing.T) {
	// FAO-56 table 2.3.
	assert.InDelta(t, 3.168, SaturationVaporPressure(25), 0.001)
	assert.InDelta(t, 0.6108, SaturationVaporPressure(0), 1e-12)
}

func TestVaporPressureSlopeUsesMeanSaturationPressure(t *testing.T) {
	es := 2.5
	assert.InDelta(t, 4098*2.5/400, VaporPressureSlope(es, 20), 1e-12)
}

func TestPenmanMonteithKeepsNegativeValues(t *testing.T) {
	assert.Less(t, PenmanMonteith(0.1, -5, 0.066, 10, 2, 1.2, 1.2), 0.0)
}

func TestComputeMatchesScalarChain(t *testing.T) {
	in := sampleInputs(t)
	res, err := Compute(in)
	require.NoError(t, err)

	tmin, tmax, tair := in.Tmin.Values(), in.Tmax.Values(), in.Tair.Values()
	u2, z := in.WindSpeed.Values(), in.Elevation.Values()
	rn := res.Radiation.Rn.Values()
	out := res.ETo.Values()

	for i := range out {
		p := 101.3 * math.Pow((293-0.0065*z[i])/293, 5.26)
		gamma := 0.000665 * p
		eaMax := 0.6108 * math.Exp(17.27*(tmax[i]-273.15)/((tmax[i]-273.15)+237.3))
		eaMin := 0.6108 * math.Exp(17.27*(tmin[i]-273.15)/((tmin[i]-273.15)+237.3))
		es := (eaMin + eaMax) / 2
		ta := tair[i] - 273.15
		delta := 4098 * es / (ta * ta)
		want := (0.408*delta*rn[i] + gamma*(900/(ta+273))*u2[i]*(es-eaMin)) / (delta + gamma*(1+0.34*u2[i]))

		assert.InDelta(t, want, out[i], 1e-9, "cell %d", i)
		assert.True(t, out[i] > 0 && out[i] < 15, "cell %d: implausible ETo %g", i, out[i])
	}

	rnAlone, err := radiation.NetRadiation(in.TimeStart, in.Tmax, in.Tmin, in.Elevation, in.Shortwave)
	require.NoError(t, err)
	assert.True(t, rnAlone.Identical(res.Radiation.Rn))
	assert.Equal(t, "eto24h", res.ETo.Name())
	assert.Equal(t, "mm day-1", res.ETo.Unit())
}

func TestReferenceEToIsIdempotent(t *testing.T) {
	in := sampleInputs(t)

	first, err := ReferenceETo(in.TimeStart, in.Tmin, in.Tmax, in.Tair, in.WindSpeed, in.Shortwave, in.Elevation)
	require.NoError(t, err)
	second, err := ReferenceETo(in.TimeStart, in.Tmin, in.Tmax, in.Tair, in.WindSpeed, in.Shortwave, in.Elevation)
	require.NoError(t, err)

	assert.True(t, first.Identical(second))
}

func TestNegativeEToIsNotClamped(t *testing.T) {
	// Cold, dry, dim winter day at 60°N: net radiation is negative.
	g := raster.Grid{Rows: 1, Cols: 1, X0: 10, Y0: 60, DX: 1, DY: -1, CRS: raster.DefaultCRS}
	res, err := Compute(Inputs{
		TimeStart: time.Date(2020, 12, 21, 0, 0, 0, 0, time.UTC),
		Tmin:      field(t, g, 250),
		Tmax:      field(t, g, 250),
		Tair:      field(t, g, 250),
		WindSpeed: field(t, g, 2),
		Shortwave: field(t, g, 20),
		Elevation: field(t, g, 0),
	})
	require.NoError(t, err)

	assert.Less(t, res.Radiation.Rn.At(0, 0), 0.0)
	assert.Less(t, res.ETo.At(0, 0), 0.0)
}

func TestComputeGridMismatch(t *testing.T) {
	in := sampleInputs(t)
	g := in.Elevation.Grid()
	g.Rows, g.Cols = 3, 2
	in.Elevation = raster.Constant(g, "elevation", "m", 0)

	_, err := Compute(in)
	var gm *raster.GridMismatchError
	assert.True(t, errors.As(err, &gm))
}
