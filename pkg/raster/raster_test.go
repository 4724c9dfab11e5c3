package raster

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGrid = Grid{Rows: 3, Cols: 2, X0: -120, Y0: 45, DX: 0.25, DY: -0.25, CRS: DefaultCRS}

func mustField(t *testing.T, g Grid, name string, values ...float64) *Field {
	t.Helper()
	f, err := New(g, name, "1", values)
	require.NoError(t, err)
	return f
}

func TestNewRejectsWrongLength(t *testing.T) {
	_, err := New(testGrid, "x", "1", []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestNewCopiesInput(t *testing.T) {
	in := []float64{1, 2, 3, 4, 5, 6}
	f := mustField(t, testGrid, "x", in...)
	in[0] = 99
	assert.Equal(t, 1.0, f.At(0, 0))

	out := f.Values()
	out[1] = 99
	assert.Equal(t, 2.0, f.At(0, 1))
}

func TestLatitudes(t *testing.T) {
	lat := testGrid.Latitudes()
	assert.Equal(t, 45.0, lat.At(0, 0))
	assert.Equal(t, 45.0, lat.At(0, 1))
	assert.Equal(t, 44.75, lat.At(1, 0))
	assert.Equal(t, 44.5, lat.At(2, 1))

	lon := testGrid.Longitudes()
	assert.Equal(t, -120.0, lon.At(2, 0))
	assert.Equal(t, -119.75, lon.At(2, 1))
}

func TestCombine(t *testing.T) {
	a := mustField(t, testGrid, "a", 1, 2, 3, 4, 5, 6)
	b := mustField(t, testGrid, "b", 6, 5, 4, 3, 2, 1)

	sum, err := Combine("sum", "1", func(v []float64) float64 { return v[0] + v[1] }, a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7, 7, 7, 7, 7}, sum.Values())
	assert.Equal(t, "sum", sum.Name())
}

func TestCombineLargeGridMatchesSerial(t *testing.T) {
	g := Grid{Rows: 157, Cols: 33, DX: 1, DY: -1, CRS: DefaultCRS}
	vals := make([]float64, g.Len())
	for i := range vals {
		vals[i] = float64(i)
	}
	f := mustField(t, g, "x", vals...)

	sq := f.Map("sq", "1", func(v float64) float64 { return v * v })
	for i, v := range sq.Values() {
		require.Equal(t, float64(i)*float64(i), v)
	}
}

func TestCombineGridMismatch(t *testing.T) {
	other := testGrid
	other.DX = 0.5
	a := mustField(t, testGrid, "a", 1, 2, 3, 4, 5, 6)
	b := mustField(t, other, "b", 1, 2, 3, 4, 5, 6)

	_, err := Combine("bad", "1", func(v []float64) float64 { return v[0] }, a, b)
	var gm *GridMismatchError
	require.True(t, errors.As(err, &gm))
	assert.Equal(t, testGrid, gm.Want)
	assert.Equal(t, other, gm.Got)
}

func TestCombinePropagatesNaNPerCell(t *testing.T) {
	a := mustField(t, testGrid, "a", 1, -1, 4, 9, -4, 0)

	root := a.Map("root", "1", math.Sqrt)
	v := root.Values()
	assert.Equal(t, 1.0, v[0])
	assert.True(t, math.IsNaN(v[1]))
	assert.Equal(t, 2.0, v[2])
	assert.Equal(t, 3.0, v[3])
	assert.True(t, math.IsNaN(v[4]))
	assert.Equal(t, 0.0, v[5])
}

func TestReductions(t *testing.T) {
	stack := []*Field{
		mustField(t, testGrid, "t", 1, 2, 3, 4, 5, 6),
		mustField(t, testGrid, "t", 3, 2, 1, 0, 7, 6),
		mustField(t, testGrid, "t", 2, 2, 2, 2, 0, 6),
	}

	tests := []struct {
		reducer Reducer
		want    []float64
	}{
		{ReduceSum, []float64{6, 6, 6, 6, 12, 18}},
		{ReduceMean, []float64{2, 2, 2, 2, 4, 6}},
		{ReduceMin, []float64{1, 2, 1, 0, 0, 6}},
		{ReduceMax, []float64{3, 2, 3, 4, 7, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.reducer.String(), func(t *testing.T) {
			out, err := tt.reducer.Apply(stack)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Values())
		})
	}
}

func TestReduceEmpty(t *testing.T) {
	for _, r := range []Reducer{ReduceMean, ReduceMin, ReduceMax, ReduceSum} {
		_, err := r.Apply(nil)
		assert.ErrorIs(t, err, ErrEmptyCollection, r.String())
	}
}

func TestCollectionFilterAndReduce(t *testing.T) {
	t0 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	var images []Image
	for h := 0; h < 30; h += 3 {
		images = append(images, Image{
			Time:  t0.Add(time.Duration(h) * time.Hour),
			Bands: map[string]*Field{"x": Constant(testGrid, "x", "K", float64(h))},
		})
	}
	// Out of order on purpose.
	images[0], images[5] = images[5], images[0]

	c, err := NewCollection(testGrid, images...)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Len())
	assert.True(t, c.Images()[0].Time.Equal(t0))

	day := c.FilterDate(t0, t0.Add(24*time.Hour))
	assert.Equal(t, 8, day.Len())

	mx, err := day.Reduce("x", ReduceMax)
	require.NoError(t, err)
	assert.Equal(t, 21.0, mx.At(1, 1))
	assert.Equal(t, "x", mx.Name())
	assert.Equal(t, "K", mx.Unit())

	_, err = day.Reduce("missing", ReduceMean)
	var bnf *BandNotFoundError
	assert.True(t, errors.As(err, &bnf))

	empty := c.FilterDate(t0.Add(48*time.Hour), t0.Add(72*time.Hour))
	_, err = empty.Reduce("x", ReduceMean)
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestNewCollectionRejectsMisalignedBand(t *testing.T) {
	other := testGrid
	other.Rows = 2
	_, err := NewCollection(testGrid, Image{
		Time:  time.Now(),
		Bands: map[string]*Field{"x": Constant(other, "x", "1", 1)},
	})
	var gm *GridMismatchError
	assert.True(t, errors.As(err, &gm))
}

func TestMergeJoinsImagesByTime(t *testing.T) {
	t0 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	temps, err := NewCollection(testGrid,
		Image{Time: t0, Bands: map[string]*Field{"t": Constant(testGrid, "t", "K", 290)}},
		Image{Time: t0.Add(time.Hour), Bands: map[string]*Field{"t": Constant(testGrid, "t", "K", 291)}},
	)
	require.NoError(t, err)
	winds, err := NewCollection(testGrid,
		Image{Time: t0.Add(time.Hour), Bands: map[string]*Field{"u": Constant(testGrid, "u", "m s-1", 3)}},
		Image{Time: t0.Add(2 * time.Hour), Bands: map[string]*Field{"u": Constant(testGrid, "u", "m s-1", 4)}},
	)
	require.NoError(t, err)

	m, err := temps.Merge(winds)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	images := m.Images()
	assert.Len(t, images[0].Bands, 1)
	assert.Len(t, images[1].Bands, 2)
	assert.Equal(t, 291.0, images[1].Bands["t"].At(0, 0))
	assert.Equal(t, 3.0, images[1].Bands["u"].At(0, 0))
	assert.Len(t, images[2].Bands, 1)

	// The inputs are left untouched.
	assert.Len(t, temps.Images()[1].Bands, 1)

	_, err = m.Reduce("t", ReduceMean)
	var bnf *BandNotFoundError
	assert.True(t, errors.As(err, &bnf))
}

func TestMergeRejectsRepeatedBand(t *testing.T) {
	t0 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	c, err := NewCollection(testGrid,
		Image{Time: t0, Bands: map[string]*Field{"sw": Constant(testGrid, "sw", "J m-2", 360000)}},
	)
	require.NoError(t, err)

	_, err = c.Merge(c)
	var dup *DuplicateBandError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "sw", dup.Band)
	assert.True(t, dup.Time.Equal(t0))

	other := testGrid
	other.X0 = 0
	o, err := NewCollection(other)
	require.NoError(t, err)
	_, err = c.Merge(o)
	var gm *GridMismatchError
	assert.True(t, errors.As(err, &gm))
}

func TestSummarize(t *testing.T) {
	f := mustField(t, testGrid, "x", 1, 2, 3, math.NaN(), math.Inf(1), 6)
	s := Summarize(f)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 2, s.NonFinite)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 6.0, s.Max)
	assert.InDelta(t, 3.0, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(3.5), s.StdDev, 1e-12)

	allBad := Constant(testGrid, "x", "1", math.NaN())
	s = Summarize(allBad)
	assert.Equal(t, 0, s.Count)
	assert.True(t, math.IsNaN(s.Mean))
}

func TestIdentical(t *testing.T) {
	a := mustField(t, testGrid, "a", 1, 2, math.NaN(), 4, 5, 6)
	b := mustField(t, testGrid, "b", 1, 2, math.NaN(), 4, 5, 6)
	c := mustField(t, testGrid, "c", 1, 2, 3, 4, 5, 6)
	assert.True(t, a.Identical(b))
	assert.False(t, a.Identical(c))
}
