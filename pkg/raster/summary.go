package raster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the finite cells of a field. NonFinite counts the NaN
// and Inf cells left for the caller to mask.
type Summary struct {
	Count     int
	NonFinite int
	Min       float64
	Max       float64
	Mean      float64
	StdDev    float64
}

// Summarize computes statistics over the finite cells of f. When no cell is
// finite the statistics are NaN.
func Summarize(f *Field) Summary {
	finite := make([]float64, 0, len(f.data))
	for _, v := range f.data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}

	s := Summary{
		Count:     len(finite),
		NonFinite: len(f.data) - len(finite),
	}
	if len(finite) == 0 {
		nan := math.NaN()
		s.Min, s.Max, s.Mean, s.StdDev = nan, nan, nan, nan
		return s
	}

	s.Min = floats.Min(finite)
	s.Max = floats.Max(finite)
	s.Mean, s.StdDev = stat.PopMeanStdDev(finite, nil)
	return s
}
