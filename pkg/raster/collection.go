package raster

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Image is one time step of a collection: a set of named bands on a
// common grid.
type Image struct {
	Time  time.Time
	Bands map[string]*Field
}

// Collection is a time-ordered set of images sharing one grid.
type Collection struct {
	grid   Grid
	images []Image
}

// NewCollection validates that every band of every image is on grid and
// returns the images sorted by time.
func NewCollection(grid Grid, images ...Image) (*Collection, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	sorted := make([]Image, len(images))
	copy(sorted, images)
	for _, img := range sorted {
		for name, b := range img.Bands {
			if b.grid != grid {
				return nil, &GridMismatchError{Op: "collection band " + name, Want: grid, Got: b.grid}
			}
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	return &Collection{grid: grid, images: sorted}, nil
}

func (c *Collection) Grid() Grid { return c.grid }
func (c *Collection) Len() int   { return len(c.images) }

// Images returns the images in time order.
func (c *Collection) Images() []Image {
	out := make([]Image, len(c.images))
	copy(out, c.images)
	return out
}

// Merge returns a collection holding the images of both collections.
// Images at the same time are joined into one image carrying the union of
// their bands; a band present in both is a DuplicateBandError.
func (c *Collection) Merge(o *Collection) (*Collection, error) {
	if o.grid != c.grid {
		return nil, &GridMismatchError{Op: "merge", Want: c.grid, Got: o.grid}
	}
	all, err := NewCollection(c.grid, append(c.Images(), o.images...)...)
	if err != nil {
		return nil, err
	}

	joined := make([]Image, 0, len(all.images))
	for _, img := range all.images {
		n := len(joined)
		if n == 0 || !joined[n-1].Time.Equal(img.Time) {
			bands := make(map[string]*Field, len(img.Bands))
			for name, f := range img.Bands {
				bands[name] = f
			}
			joined = append(joined, Image{Time: img.Time, Bands: bands})
			continue
		}
		for name, f := range img.Bands {
			if _, ok := joined[n-1].Bands[name]; ok {
				return nil, &DuplicateBandError{Band: name, Time: img.Time}
			}
			joined[n-1].Bands[name] = f
		}
	}
	return &Collection{grid: c.grid, images: joined}, nil
}

// FilterDate keeps the images whose time falls in [start, end).
func (c *Collection) FilterDate(start, end time.Time) *Collection {
	var kept []Image
	for _, img := range c.images {
		if !img.Time.Before(start) && img.Time.Before(end) {
			kept = append(kept, img)
		}
	}
	return &Collection{grid: c.grid, images: kept}
}

// Select returns the named band of every image in time order.
func (c *Collection) Select(band string) ([]*Field, error) {
	fields := make([]*Field, 0, len(c.images))
	for _, img := range c.images {
		f, ok := img.Bands[band]
		if !ok {
			return nil, &BandNotFoundError{Band: band, Time: img.Time}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Reducer is a temporal reduction over a stack of fields.
type Reducer int

const (
	ReduceMean Reducer = iota
	ReduceMin
	ReduceMax
	ReduceSum
)

func (r Reducer) String() string {
	switch r {
	case ReduceMean:
		return "mean"
	case ReduceMin:
		return "min"
	case ReduceMax:
		return "max"
	case ReduceSum:
		return "sum"
	}
	return fmt.Sprintf("reducer(%d)", int(r))
}

// Reduce selects band and reduces it over time.
func (c *Collection) Reduce(band string, r Reducer) (*Field, error) {
	fields, err := c.Select(band)
	if err != nil {
		return nil, err
	}
	out, err := r.Apply(fields)
	if err != nil {
		return nil, fmt.Errorf("%s of %q: %w", r, band, err)
	}
	return out.Rename(band, out.unit), nil
}

// Apply reduces the stack cell by cell. NaN cells propagate; no gap
// filling is done.
func (r Reducer) Apply(fields []*Field) (*Field, error) {
	switch r {
	case ReduceMean:
		return Mean(fields)
	case ReduceMin:
		return Min(fields)
	case ReduceMax:
		return Max(fields)
	case ReduceSum:
		return Sum(fields)
	}
	return nil, fmt.Errorf("raster: unknown reducer %d", int(r))
}

// Sum returns the cell-wise sum of the stack.
func Sum(fields []*Field) (*Field, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyCollection
	}
	if err := CheckAligned("sum", fields...); err != nil {
		return nil, err
	}
	out := make([]float64, len(fields[0].data))
	for _, f := range fields {
		floats.Add(out, f.data)
	}
	return &Field{grid: fields[0].grid, name: fields[0].name, unit: fields[0].unit, data: out}, nil
}

// Mean returns the cell-wise arithmetic mean of the stack.
func Mean(fields []*Field) (*Field, error) {
	sum, err := Sum(fields)
	if err != nil {
		return nil, err
	}
	n := float64(len(fields))
	for i := range sum.data {
		sum.data[i] /= n
	}
	return sum, nil
}

// Min returns the cell-wise minimum of the stack.
func Min(fields []*Field) (*Field, error) {
	return extreme("min", fields, math.Min)
}

// Max returns the cell-wise maximum of the stack.
func Max(fields []*Field) (*Field, error) {
	return extreme("max", fields, math.Max)
}

func extreme(op string, fields []*Field, pick func(a, b float64) float64) (*Field, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyCollection
	}
	if err := CheckAligned(op, fields...); err != nil {
		return nil, err
	}
	out := make([]float64, len(fields[0].data))
	copy(out, fields[0].data)
	for _, f := range fields[1:] {
		for i, v := range f.data {
			out[i] = pick(out[i], v)
		}
	}
	return &Field{grid: fields[0].grid, name: fields[0].name, unit: fields[0].unit, data: out}, nil
}
