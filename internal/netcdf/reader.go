// Package netcdf reads meteorological collections and elevation grids from
// COARDS-style NetCDF-3 files and writes daily ETo products back out.
package netcdf

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"go.uber.org/zap"

	"github.com/chrissnell/etogrid/pkg/raster"
)

var (
	latNames  = []string{"lat", "latitude"}
	lonNames  = []string{"lon", "longitude"}
	timeNames = []string{"time", "valid_time"}
)

// Loader serves meteorological collections out of a fixed set of NetCDF
// files. Every file must share the same lat/lon grid; the images of all
// files are merged and then windowed by time.
type Loader struct {
	files  []string
	logger *zap.SugaredLogger
}

// NewLoader creates a loader over files.
func NewLoader(files []string, logger *zap.SugaredLogger) *Loader {
	return &Loader{files: files, logger: logger}
}

// Fetch implements meteo.Fetcher. The source ID is not used to pick files:
// the configured files are expected to hold the bands of that source.
func (l *Loader) Fetch(ctx context.Context, sourceID string, start, end time.Time) (*raster.Collection, error) {
	if len(l.files) == 0 {
		return nil, fmt.Errorf("netcdf: no meteorology files configured for source %q", sourceID)
	}

	var merged *raster.Collection
	for _, path := range l.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		coll, err := ReadCollection(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debugf("read %d images from %v", coll.Len(), path)
		if merged == nil {
			merged = coll
			continue
		}
		if merged, err = merged.Merge(coll); err != nil {
			return nil, fmt.Errorf("netcdf: merging %v: %w", path, err)
		}
	}

	window := merged.FilterDate(start, end)
	l.logger.Infof("loaded %d of %d images in [%v, %v) for %v",
		window.Len(), merged.Len(), start.Format(time.RFC3339), end.Format(time.RFC3339), sourceID)
	return window, nil
}

// ReadCollection reads every variable with dimensions (time, lat, lon) of a
// NetCDF-3 file into a collection, one image per time step.
func ReadCollection(path string) (*raster.Collection, error) {
	nc, closer, size, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	grid, err := readGrid(nc, size)
	if err != nil {
		return nil, fmt.Errorf("netcdf: %v: %w", path, err)
	}

	timeVar := findVar(nc, timeNames)
	if timeVar == "" {
		return nil, fmt.Errorf("netcdf: %v: no time variable", path)
	}
	times, err := readTimes(nc, timeVar, size)
	if err != nil {
		return nil, fmt.Errorf("netcdf: %v: %w", path, err)
	}

	images := make([]raster.Image, len(times))
	for i, t := range times {
		images[i] = raster.Image{Time: t, Bands: map[string]*raster.Field{}}
	}

	for _, v := range nc.Header.Variables() {
		if !isGridded(nc, v, true) {
			continue
		}
		data, err := readVar(nc, v, size)
		if err != nil {
			return nil, fmt.Errorf("netcdf: %v: reading %v: %w", path, v, err)
		}
		if len(data) != len(times)*grid.Len() {
			return nil, fmt.Errorf("netcdf: %v: variable %v has %d values, want %d",
				path, v, len(data), len(times)*grid.Len())
		}
		unit := attrString(nc, v, "units")
		for i := range times {
			f, err := raster.New(grid, v, unit, data[i*grid.Len():(i+1)*grid.Len()])
			if err != nil {
				return nil, err
			}
			images[i].Bands[v] = f
		}
	}

	return raster.NewCollection(grid, images...)
}

// ElevationFile reads terrain height from a NetCDF variable with dimensions
// (lat, lon).
type ElevationFile struct {
	Path     string
	Variable string
}

// Elevation implements pipeline.ElevationSource. The file's grid must match
// grid exactly.
func (e ElevationFile) Elevation(ctx context.Context, grid raster.Grid) (*raster.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := ReadField(e.Path, e.Variable)
	if err != nil {
		return nil, err
	}
	if f.Grid() != grid {
		return nil, &raster.GridMismatchError{Op: "elevation " + e.Path, Want: grid, Got: f.Grid()}
	}
	return f, nil
}

// ReadField reads a single (lat, lon) variable. A (time, lat, lon) variable
// with one time step is accepted too.
func ReadField(path, variable string) (*raster.Field, error) {
	nc, closer, size, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	if !hasVar(nc, variable) {
		return nil, fmt.Errorf("netcdf: %v: no variable %q", path, variable)
	}
	if !isGridded(nc, variable, false) && !isGridded(nc, variable, true) {
		return nil, fmt.Errorf("netcdf: %v: variable %q is not on a lat/lon grid", path, variable)
	}

	grid, err := readGrid(nc, size)
	if err != nil {
		return nil, fmt.Errorf("netcdf: %v: %w", path, err)
	}
	data, err := readVar(nc, variable, size)
	if err != nil {
		return nil, fmt.Errorf("netcdf: %v: reading %v: %w", path, variable, err)
	}
	if len(data) != grid.Len() {
		return nil, fmt.Errorf("netcdf: %v: variable %v has %d values, want %d", path, variable, len(data), grid.Len())
	}
	return raster.New(grid, variable, attrString(nc, variable, "units"), data)
}

func open(path string) (*cdf.File, *os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("netcdf: opening %v: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, 0, fmt.Errorf("netcdf: stat %v: %w", path, err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, nil, 0, fmt.Errorf("netcdf: opening %v: %w", path, err)
	}
	return nc, f, st.Size(), nil
}

func hasVar(nc *cdf.File, name string) bool {
	for _, v := range nc.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

func findVar(nc *cdf.File, names []string) string {
	for _, n := range names {
		if hasVar(nc, n) {
			return n
		}
	}
	return ""
}

func isOneOf(s string, names []string) bool {
	for _, n := range names {
		if s == n {
			return true
		}
	}
	return false
}

// isGridded reports whether v has dimensions (lat, lon), or
// (time, lat, lon) when withTime is set.
func isGridded(nc *cdf.File, v string, withTime bool) bool {
	dims := nc.Header.Dimensions(v)
	if withTime {
		if len(dims) != 3 || !isOneOf(dims[0], timeNames) {
			return false
		}
		dims = dims[1:]
	}
	return len(dims) == 2 && isOneOf(dims[0], latNames) && isOneOf(dims[1], lonNames)
}

func readGrid(nc *cdf.File, size int64) (raster.Grid, error) {
	latVar, lonVar := findVar(nc, latNames), findVar(nc, lonNames)
	if latVar == "" || lonVar == "" {
		return raster.Grid{}, fmt.Errorf("missing lat/lon coordinate variables")
	}
	lats, err := readVar(nc, latVar, size)
	if err != nil {
		return raster.Grid{}, fmt.Errorf("reading %v: %w", latVar, err)
	}
	lons, err := readVar(nc, lonVar, size)
	if err != nil {
		return raster.Grid{}, fmt.Errorf("reading %v: %w", lonVar, err)
	}
	g := raster.Grid{
		Rows: len(lats),
		Cols: len(lons),
		CRS:  raster.DefaultCRS,
	}
	if err := g.Validate(); err != nil {
		return raster.Grid{}, err
	}
	g.Y0, g.X0 = lats[0], lons[0]
	if len(lats) > 1 {
		g.DY = lats[1] - lats[0]
	}
	if len(lons) > 1 {
		g.DX = lons[1] - lons[0]
	}
	return g, nil
}

// readTimes decodes a CF time coordinate ("<unit> since <reference>").
func readTimes(nc *cdf.File, v string, size int64) ([]time.Time, error) {
	units := attrString(nc, v, "units")
	step, ref, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	vals, err := readVar(nc, v, size)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(vals))
	for i, x := range vals {
		if math.IsNaN(x) {
			return nil, fmt.Errorf("time step %d is missing", i)
		}
		t, err := offset(ref, x, step)
		if err != nil {
			return nil, fmt.Errorf("time step %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// maxOffsetDays bounds a time coordinate to roughly a million years either
// side of its reference.
const maxOffsetDays = 365e6

// offset returns ref plus x steps. Whole days are added on the calendar so
// that distant references such as "days since 0001-01-01" do not overflow
// time.Duration.
func offset(ref time.Time, x float64, step time.Duration) (time.Time, error) {
	secs := x * step.Seconds()
	days := math.Floor(secs / secondsPerDay)
	if math.IsInf(secs, 0) || math.Abs(days) > maxOffsetDays {
		return time.Time{}, fmt.Errorf("offset %v x %v is out of range", x, step)
	}
	rem := secs - days*secondsPerDay
	return ref.AddDate(0, 0, int(days)).Add(time.Duration(math.Round(rem * float64(time.Second)))), nil
}

const secondsPerDay = 86400

var referenceLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:4:5",
	"2006-01-02",
	"2006-1-2",
}

func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "seconds", "second", "secs", "sec", "s":
		step = time.Second
	case "minutes", "minute", "mins", "min":
		step = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time step in %q", units)
	}

	ref := strings.TrimSpace(parts[1])
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, " +00:00")
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unsupported reference time in %q", units)
}

// readVar reads a whole numeric variable as float64. Fill and missing values
// become NaN before scale_factor and add_offset are applied.
func readVar(nc *cdf.File, v string, size int64) ([]float64, error) {
	lengths := append([]int(nil), nc.Header.Lengths(v)...)
	if nc.Header.IsRecordVariable(v) {
		lengths[0] = int(nc.Header.NumRecs(size))
	}
	n := count(lengths)
	if n == 0 {
		return nil, nil
	}

	begin := make([]int, len(lengths))
	end := make([]int, len(lengths))
	for i, l := range lengths {
		end[i] = l - 1
	}
	buf := nc.Header.ZeroValue(v, n)
	if _, ok := buf.(string); ok || buf == nil {
		return nil, fmt.Errorf("variable %v is not numeric", v)
	}
	if _, err := nc.Reader(v, begin, end).Read(buf); err != nil {
		return nil, err
	}

	data, err := toFloat64(buf)
	if err != nil {
		return nil, err
	}

	var missing []float64
	if fv, ok := scalar(nc.Header.FillValue(v)); ok {
		missing = append(missing, fv)
	}
	if mv, ok := scalar(nc.Header.GetAttribute(v, "missing_value")); ok {
		missing = append(missing, mv)
	}
	scale, hasScale := scalar(nc.Header.GetAttribute(v, "scale_factor"))
	offset, hasOffset := scalar(nc.Header.GetAttribute(v, "add_offset"))
	if !hasScale {
		scale = 1
	}

	for i, x := range data {
		for _, m := range missing {
			if x == m {
				x = math.NaN()
				break
			}
		}
		if hasScale || hasOffset {
			x = x*scale + offset
		}
		data[i] = x
	}
	return data, nil
}

func toFloat64(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(x)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(b))
		for i, x := range b {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported data type %T", buf)
}

// scalar extracts a single number from an attribute or fill value.
func scalar(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []uint8:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func attrString(nc *cdf.File, v, name string) string {
	if s, ok := nc.Header.GetAttribute(v, name).(string); ok {
		return strings.TrimRight(s, "\x00")
	}
	return ""
}
