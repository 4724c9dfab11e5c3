// Package raster provides dense, immutable 2-D grids of float64 values and
// the per-pixel and temporal algebra used to build daily meteorological
// products from reanalysis collections.
package raster

import "fmt"

// DefaultCRS is the coordinate reference system assumed for grids whose
// source does not carry one.
const DefaultCRS = "EPSG:4326"

// Grid is the spatial reference and alignment of a raster. Two fields can
// only be combined when their grids are identical.
type Grid struct {
	Rows int
	Cols int
	// X0 and Y0 are the longitude and latitude (degrees) of the centre of
	// cell (0, 0).
	X0 float64
	Y0 float64
	// DX and DY are the cell steps in degrees. DY is negative for
	// north-up grids.
	DX  float64
	DY  float64
	CRS string
}

// Len returns the number of cells in the grid.
func (g Grid) Len() int {
	return g.Rows * g.Cols
}

// Validate reports whether the grid describes a usable raster.
func (g Grid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("raster: invalid grid shape %dx%d", g.Rows, g.Cols)
	}
	return nil
}

// Latitude returns the latitude (degrees) of the centre of the given row.
func (g Grid) Latitude(row int) float64 {
	return g.Y0 + float64(row)*g.DY
}

// Longitude returns the longitude (degrees) of the centre of the given column.
func (g Grid) Longitude(col int) float64 {
	return g.X0 + float64(col)*g.DX
}

// Latitudes returns a per-pixel latitude field in degrees.
func (g Grid) Latitudes() *Field {
	data := make([]float64, g.Len())
	for r := 0; r < g.Rows; r++ {
		lat := g.Latitude(r)
		row := data[r*g.Cols : (r+1)*g.Cols]
		for c := range row {
			row[c] = lat
		}
	}
	return &Field{grid: g, name: "latitude", unit: "degrees_north", data: data}
}

// Longitudes returns a per-pixel longitude field in degrees.
func (g Grid) Longitudes() *Field {
	data := make([]float64, g.Len())
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			data[r*g.Cols+c] = g.Longitude(c)
		}
	}
	return &Field{grid: g, name: "longitude", unit: "degrees_east", data: data}
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d@(%g,%g) step (%g,%g) %s", g.Rows, g.Cols, g.X0, g.Y0, g.DX, g.DY, g.CRS)
}
