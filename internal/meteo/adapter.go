package meteo

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/etogrid/pkg/raster"
)

// Canonical names and units of the adapter outputs.
const (
	VarTmin      = "tmin"
	VarTmax      = "tmax"
	VarTair      = "tair"
	VarWindSpeed = "wind_speed"
	VarShortwave = "shortwave_radiation"

	UnitKelvin = "K"
	UnitWind   = "m s-1"
	UnitFlux   = "W m-2"
)

// Fetcher returns the raw bands of a product over [start, end). Any time
// filter it applies is coarse; the adapter filters its own windows.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string, start, end time.Time) (*raster.Collection, error)
}

// Canonical is the daily variable set shared by every product, all on the
// grid of the source collection.
type Canonical struct {
	Source    SourceKind
	TimeStart time.Time

	Tmin      *raster.Field // K
	Tmax      *raster.Field // K
	Tair      *raster.Field // K
	WindSpeed *raster.Field // m s⁻¹
	Shortwave *raster.Field // daily mean W m⁻²
}

// Grid returns the grid shared by the canonical fields.
func (c *Canonical) Grid() raster.Grid {
	return c.Tair.Grid()
}

// Fields returns the canonical fields in a stable order.
func (c *Canonical) Fields() []*raster.Field {
	return []*raster.Field{c.Tmin, c.Tmax, c.Tair, c.WindSpeed, c.Shortwave}
}

// Adapter turns a product's raw collection into canonical variables.
type Adapter struct {
	fetcher Fetcher
	logger  *zap.SugaredLogger
}

// NewAdapter creates an adapter reading raw collections from fetcher.
func NewAdapter(fetcher Fetcher, logger *zap.SugaredLogger) *Adapter {
	return &Adapter{
		fetcher: fetcher,
		logger:  logger,
	}
}

// ComputeCanonicalVariables resolves sourceID, fetches its collection and
// reduces it to the canonical daily variables for the 24-hour UTC window
// starting at timeStart.
func (a *Adapter) ComputeCanonicalVariables(ctx context.Context, timeStart time.Time, sourceID string) (*Canonical, error) {
	src, err := Resolve(sourceID)
	if err != nil {
		return nil, err
	}

	fetchStart, fetchEnd := src.fetchWindow(timeStart)
	a.logger.Debugw("fetching meteorology", "source", sourceID, "kind", src.Kind, "start", fetchStart, "end", fetchEnd)

	coll, err := a.fetcher.Fetch(ctx, sourceID, fetchStart, fetchEnd)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", sourceID, err)
	}

	c, err := src.Canonicalize(coll, timeStart)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Kind, err)
	}

	a.logger.Infow("canonical variables ready", "source", src.Kind, "grid", c.Grid().String(), "images", coll.Len())
	return c, nil
}

// Canonicalize reduces a raw collection of this product to the canonical
// variables. The collection may extend past the day; only the relevant
// windows are used.
func (s Source) Canonicalize(coll *raster.Collection, timeStart time.Time) (*Canonical, error) {
	dayColl := coll.FilterDate(timeStart, timeStart.Add(day))

	tmin, err := dayColl.Reduce(s.Bands.Temperature, raster.ReduceMin)
	if err != nil {
		return nil, fmt.Errorf("tmin: %w", err)
	}
	tmax, err := dayColl.Reduce(s.Bands.Temperature, raster.ReduceMax)
	if err != nil {
		return nil, fmt.Errorf("tmax: %w", err)
	}
	tair, err := dayColl.Reduce(s.Bands.Temperature, raster.ReduceMean)
	if err != nil {
		return nil, fmt.Errorf("tair: %w", err)
	}

	wind, err := s.windSpeed(dayColl)
	if err != nil {
		return nil, fmt.Errorf("wind speed: %w", err)
	}

	swStart, swEnd := s.shortwaveWindow(timeStart)
	sw, err := coll.FilterDate(swStart, swEnd).Reduce(s.Bands.Shortwave, s.Shortwave.Reducer)
	if err != nil {
		return nil, fmt.Errorf("shortwave radiation: %w", err)
	}
	divisor := s.Shortwave.Divisor
	sw = sw.Map(VarShortwave, UnitFlux, func(v float64) float64 { return v / divisor })

	return &Canonical{
		Source:    s.Kind,
		TimeStart: timeStart,
		Tmin:      tmin.Rename(VarTmin, UnitKelvin),
		Tmax:      tmax.Rename(VarTmax, UnitKelvin),
		Tair:      tair.Rename(VarTair, UnitKelvin),
		WindSpeed: wind,
		Shortwave: sw,
	}, nil
}

// windSpeed averages u and v before taking the magnitude; the mean of the
// hourly magnitudes would be a different quantity.
func (s Source) windSpeed(dayColl *raster.Collection) (*raster.Field, error) {
	if s.Wind == WindDirect {
		ws, err := dayColl.Reduce(s.Bands.WindSpeed, raster.ReduceMean)
		if err != nil {
			return nil, err
		}
		return ws.Rename(VarWindSpeed, UnitWind), nil
	}

	u, err := dayColl.Reduce(s.Bands.WindU, raster.ReduceMean)
	if err != nil {
		return nil, err
	}
	v, err := dayColl.Reduce(s.Bands.WindV, raster.ReduceMean)
	if err != nil {
		return nil, err
	}
	return raster.Combine(VarWindSpeed, UnitWind, func(x []float64) float64 {
		return math.Sqrt(x[0]*x[0] + x[1]*x[1])
	}, u, v)
}
