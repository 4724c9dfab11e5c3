package raster

import (
	"fmt"
	"math"
)

// Field is an immutable grid of float64 values with a semantic name and unit.
// Fields carry no identity beyond their values: every operation returns a
// new Field.
type Field struct {
	grid Grid
	name string
	unit string
	data []float64
}

// New builds a field from row-major values. The slice is copied.
func New(grid Grid, name, unit string, values []float64) (*Field, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if len(values) != grid.Len() {
		return nil, fmt.Errorf("raster: field %q has %d values, grid %s needs %d", name, len(values), grid, grid.Len())
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Field{grid: grid, name: name, unit: unit, data: data}, nil
}

// Constant builds a field holding the same value in every cell.
func Constant(grid Grid, name, unit string, v float64) *Field {
	data := make([]float64, grid.Len())
	for i := range data {
		data[i] = v
	}
	return &Field{grid: grid, name: name, unit: unit, data: data}
}

func (f *Field) Grid() Grid   { return f.grid }
func (f *Field) Name() string { return f.name }
func (f *Field) Unit() string { return f.unit }
func (f *Field) Len() int     { return len(f.data) }

// At returns the value at the given row and column.
func (f *Field) At(row, col int) float64 {
	return f.data[row*f.grid.Cols+col]
}

// Values returns a copy of the row-major values.
func (f *Field) Values() []float64 {
	out := make([]float64, len(f.data))
	copy(out, f.data)
	return out
}

// Rename returns the same values under a new name and unit.
func (f *Field) Rename(name, unit string) *Field {
	return &Field{grid: f.grid, name: name, unit: unit, data: f.data}
}

// Map applies fn to every cell.
func (f *Field) Map(name, unit string, fn func(v float64) float64) *Field {
	out, _ := Combine(name, unit, func(v []float64) float64 { return fn(v[0]) }, f)
	return out
}

// Identical reports whether both fields share a grid and are bitwise equal,
// NaN payloads included.
func (f *Field) Identical(o *Field) bool {
	if f.grid != o.grid || len(f.data) != len(o.data) {
		return false
	}
	for i := range f.data {
		if math.Float64bits(f.data[i]) != math.Float64bits(o.data[i]) {
			return false
		}
	}
	return true
}

// CheckAligned returns a *GridMismatchError if any of the fields does not
// share the grid of the first one.
func CheckAligned(op string, fields ...*Field) error {
	if len(fields) == 0 {
		return nil
	}
	want := fields[0].grid
	for _, f := range fields[1:] {
		if f.grid != want {
			return &GridMismatchError{Op: op, Want: want, Got: f.grid}
		}
	}
	return nil
}

// Radians converts a field in degrees to radians.
func Radians(f *Field) *Field {
	return f.Map(f.name, "radians", func(v float64) float64 { return v * math.Pi / 180.0 })
}
