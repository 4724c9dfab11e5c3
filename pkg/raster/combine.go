package raster

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// tasksPerProc controls how finely rows are split across workers.
const tasksPerProc = 4

// Combine evaluates fn once per cell over the operands and returns the result
// as a new field. fn receives the operand values in argument order; the slice
// is reused between calls and must not be retained.
//
// Cells are independent, so rows are evaluated in parallel. Numerical domain
// errors are not errors here: NaN and Inf simply land in the affected cells.
func Combine(name, unit string, fn func(v []float64) float64, operands ...*Field) (*Field, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("raster: combine %q: no operands", name)
	}
	if err := CheckAligned(name, operands...); err != nil {
		return nil, err
	}

	grid := operands[0].grid
	out := make([]float64, grid.Len())

	workers := runtime.GOMAXPROCS(0)
	rowsPerTask := max(1, grid.Rows/(workers*tasksPerProc))

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < grid.Rows; start += rowsPerTask {
		lo := start * grid.Cols
		hi := min(start+rowsPerTask, grid.Rows) * grid.Cols
		g.Go(func() error {
			args := make([]float64, len(operands))
			for i := lo; i < hi; i++ {
				for k, op := range operands {
					args[k] = op.data[i]
				}
				out[i] = fn(args)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Field{grid: grid, name: name, unit: unit, data: out}, nil
}
