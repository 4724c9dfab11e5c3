package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chrissnell/etogrid/internal/meteo"
	"github.com/chrissnell/etogrid/internal/observability"
	"github.com/chrissnell/etogrid/pkg/raster"
)

const gldasID = "NASA/GLDAS/V021/NOAH/G025/T3H"

var (
	testGrid = raster.Grid{Rows: 3, Cols: 4, X0: 5, Y0: 45, DX: 0.25, DY: -0.25, CRS: raster.DefaultCRS}
	day0     = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
)

type memFetcher struct {
	coll *raster.Collection
}

func (m memFetcher) Fetch(_ context.Context, _ string, start, end time.Time) (*raster.Collection, error) {
	return m.coll.FilterDate(start, end), nil
}

type gridElevation struct {
	grid raster.Grid
}

func (g gridElevation) Elevation(context.Context, raster.Grid) (*raster.Field, error) {
	return raster.Constant(g.grid, "elevation", "m", 0), nil
}

func gldas(t *testing.T) *raster.Collection {
	t.Helper()
	var images []raster.Image
	for h := 0; h < 48; h += 3 {
		// Diurnal temperature swing between 288 K and 302 K.
		temp := 295 + 7*math.Sin(2*math.Pi*float64(h-9)/24)
		images = append(images, raster.Image{
			Time: day0.Add(time.Duration(h) * time.Hour),
			Bands: map[string]*raster.Field{
				"Tair_f_inst":   raster.Constant(testGrid, "Tair_f_inst", "K", temp),
				"Wind_f_inst":   raster.Constant(testGrid, "Wind_f_inst", "m s-1", 2),
				"SWdown_f_tavg": raster.Constant(testGrid, "SWdown_f_tavg", "W m-2", 280),
			},
		})
	}
	coll, err := raster.NewCollection(testGrid, images...)
	require.NoError(t, err)
	return coll
}

func newPipeline(t *testing.T, elev ElevationSource) (*Pipeline, *observability.Metrics) {
	logger := zaptest.NewLogger(t).Sugar()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	adapter := meteo.NewAdapter(memFetcher{coll: gldas(t)}, logger)
	return New(adapter, elev, metrics, logger), metrics
}

func TestRun(t *testing.T) {
	p, metrics := newPipeline(t, ConstantElevation(150))

	res, err := p.Run(context.Background(), Request{Date: day0, Source: gldasID})
	require.NoError(t, err)

	assert.Equal(t, testGrid.Len(), res.Summary.Count)
	assert.Zero(t, res.Summary.NonFinite)
	assert.Greater(t, res.Summary.Mean, 0.0)
	assert.Equal(t, 150.0, res.Elevation.At(2, 3))

	names := make([]string, 0, 8)
	for _, f := range res.Rasters() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{
		"tmin", "tmax", "tair", "wind_speed", "shortwave_radiation",
		"rad_24h", "daylight_hours", "eto24h",
	}, names)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues(gldasID, "success")))
	assert.Equal(t, float64(testGrid.Len()), testutil.ToFloat64(metrics.GridCells.WithLabelValues(gldasID)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.NonFinitePixels.WithLabelValues(gldasID)))
}

func TestRunIsDeterministic(t *testing.T) {
	p, _ := newPipeline(t, ConstantElevation(150))

	a, err := p.Run(context.Background(), Request{Date: day0, Source: gldasID})
	require.NoError(t, err)
	b, err := p.Run(context.Background(), Request{Date: day0, Source: gldasID})
	require.NoError(t, err)

	assert.True(t, a.Model.ETo.Identical(b.Model.ETo))
}

func TestRunUnsupportedSource(t *testing.T) {
	p, metrics := newPipeline(t, ConstantElevation(0))

	_, err := p.Run(context.Background(), Request{Date: day0, Source: "foobar"})
	var unsupported *meteo.UnsupportedSourceError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("foobar", "error")))
}

func TestRunMisalignedElevation(t *testing.T) {
	other := testGrid
	other.DX = 0.1
	p, _ := newPipeline(t, gridElevation{grid: other})

	_, err := p.Run(context.Background(), Request{Date: day0, Source: gldasID})
	var gm *raster.GridMismatchError
	assert.True(t, errors.As(err, &gm))
}
