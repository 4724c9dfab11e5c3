package netcdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ctessum/cdf"

	"github.com/chrissnell/etogrid/pkg/raster"
)

// Metadata describes the single time step of an output file.
type Metadata struct {
	Time   time.Time
	Source string
}

// WriteFields writes aligned fields to a new NetCDF-3 file at path as
// float32 variables with dimensions (time, lat, lon) holding one time step
// at meta.Time.
func WriteFields(path string, meta Metadata, fields ...*raster.Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("netcdf: nothing to write to %v", path)
	}
	if err := raster.CheckAligned("netcdf write", fields...); err != nil {
		return err
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		switch {
		case f.Name() == "":
			return fmt.Errorf("netcdf: unnamed field")
		case seen[f.Name()], isOneOf(f.Name(), latNames), isOneOf(f.Name(), lonNames), isOneOf(f.Name(), timeNames):
			return fmt.Errorf("netcdf: duplicate variable %q", f.Name())
		}
		seen[f.Name()] = true
	}
	grid := fields[0].Grid()

	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{1, grid.Rows, grid.Cols})
	h.AddAttribute("", "Conventions", "COARDS")
	h.AddAttribute("", "title", "FAO-56 daily reference evapotranspiration")
	h.AddAttribute("", "date", meta.Time.UTC().Format(time.DateOnly))
	h.AddAttribute("", "source", meta.Source)
	h.AddAttribute("", "crs", grid.CRS)

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "hours since "+meta.Time.UTC().Format(time.DateTime))
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	for _, f := range fields {
		h.AddVariable(f.Name(), []string{"time", "lat", "lon"}, []float32{0})
		if f.Unit() != "" {
			h.AddAttribute(f.Name(), "units", f.Unit())
		}
	}
	h.Define()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("netcdf: creating %v: %w", path, err)
	}
	defer out.Close()

	nc, err := cdf.Create(out, h)
	if err != nil {
		return fmt.Errorf("netcdf: writing header to %v: %w", path, err)
	}

	lats := make([]float64, grid.Rows)
	for r := range lats {
		lats[r] = grid.Latitude(r)
	}
	lons := make([]float64, grid.Cols)
	for c := range lons {
		lons[c] = grid.Longitude(c)
	}
	if err := write(nc, "time", []float64{0}); err != nil {
		return fmt.Errorf("netcdf: %v: %w", path, err)
	}
	if err := write(nc, "lat", lats); err != nil {
		return fmt.Errorf("netcdf: %v: %w", path, err)
	}
	if err := write(nc, "lon", lons); err != nil {
		return fmt.Errorf("netcdf: %v: %w", path, err)
	}

	for _, f := range fields {
		vals := f.Values()
		data32 := make([]float32, len(vals))
		for i, v := range vals {
			data32[i] = float32(v)
		}
		if err := write(nc, f.Name(), data32); err != nil {
			return fmt.Errorf("netcdf: %v: %w", path, err)
		}
	}

	if err := cdf.UpdateNumRecs(out); err != nil {
		return fmt.Errorf("netcdf: %v: %w", path, err)
	}
	return out.Close()
}

// write fills a whole fixed-size variable. The strider reports io.EOF once
// the last element of the variable has been written.
func write(nc *cdf.File, v string, data interface{}) error {
	n, err := nc.Writer(v, nil, nil).Write(data)
	if errors.Is(err, io.EOF) && n == count(nc.Header.Lengths(v)) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("writing variable %v: %w", v, err)
	}
	return nil
}

func count(lengths []int) int {
	n := 1
	for _, l := range lengths {
		n *= l
	}
	return n
}
