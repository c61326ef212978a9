// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/worldclim-extractor/internal/raster"
)

// band is an in-memory band that records the windows it was asked for.
type band struct {
	width  int
	values []float64
	reads  []raster.Window
	err    error
}

func (b *band) read(w raster.Window, buf []float64) error {
	b.reads = append(b.reads, w)
	if b.err != nil {
		return b.err
	}
	for r := 0; r < w.Height; r++ {
		for c := 0; c < w.Width; c++ {
			buf[r*w.Width+c] = b.values[(w.Row+r)*b.width+w.Col+c]
		}
	}
	return nil
}

// ramp is a 5x5 grid over lon [0,5) lat (0,5] holding 10*row+col.
func ramp(t *testing.T, nodata *float64) (raster.Grid, *band) {
	t.Helper()
	values := make([]float64, 25)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			values[r*5+c] = float64(10*r + c)
		}
	}
	g, err := raster.NewGrid(5, 5, raster.NorthUp(0, 5, 1, 1), nodata)
	require.NoError(t, err)
	return g, &band{width: 5, values: values}
}

func nodata(v float64) *float64 { return &v }

func TestNewGrid(t *testing.T) {
	_, err := raster.NewGrid(0, 5, raster.NorthUp(0, 5, 1, 1), nil)
	assert.ErrorIs(t, err, raster.ErrFormat)

	_, err = raster.NewGrid(5, 5, raster.GeoTransform{}, nil)
	assert.ErrorIs(t, err, raster.ErrNoGeoreference)
}

func TestIndex(t *testing.T) {
	g, _ := ramp(t, nil)

	row, col := g.Index(0.5, 4.5)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	row, col = g.Index(2.0, 2.0)
	assert.Equal(t, 3, row)
	assert.Equal(t, 2, col)

	row, col = g.Index(-0.5, 5.5)
	assert.Equal(t, -1, row)
	assert.Equal(t, -1, col)
	assert.False(t, g.Inside(row, col))
}

func TestWorldclimLikeGrid(t *testing.T) {
	g, err := raster.NewGrid(2160, 1080, raster.NorthUp(-180, 90, 1.0/6, 1.0/6), nil)
	require.NoError(t, err)

	row, col := g.Index(18.425556, 43.7125)
	assert.Equal(t, 277, row)
	assert.Equal(t, 1190, col)
}

func TestSample(t *testing.T) {
	g, b := ramp(t, nodata(-9999))

	v, err := g.Sample(2.5, 2.5, b.read)
	require.NoError(t, err)
	assert.Equal(t, 22.0, v)
	assert.Equal(t, []raster.Window{{Col: 2, Row: 2, Width: 1, Height: 1}}, b.reads)

	v, err = g.Sample(100, 100, b.read)
	require.NoError(t, err)
	assert.Equal(t, -9999.0, v)
	assert.Len(t, b.reads, 1)
}

func TestFill(t *testing.T) {
	g, _ := ramp(t, nil)
	assert.Equal(t, 0.0, g.Fill())

	g, _ = ramp(t, nodata(-3.4e38))
	assert.Equal(t, -3.4e38, g.Fill())
}

func TestReadWindowInside(t *testing.T) {
	g, b := ramp(t, nil)
	values, err := g.ReadWindow(raster.Window{Col: 1, Row: 1, Width: 2, Height: 2}, false, b.read)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 12, 21, 22}, values)
	assert.Len(t, b.reads, 1)
}

func TestReadWindowBoundless(t *testing.T) {
	g, b := ramp(t, nodata(-1))

	values, err := g.ReadWindow(raster.Window{Col: -1, Row: -1, Width: 3, Height: 3}, true, b.read)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		-1, -1, -1,
		-1, 0, 1,
		-1, 10, 11,
	}, values)
	// Only the part inside the raster is read.
	assert.Equal(t, raster.Window{Col: 0, Row: 0, Width: 2, Height: 2}, b.reads[0])

	values, err = g.ReadWindow(raster.Window{Col: 4, Row: 4, Width: 2, Height: 1}, true, b.read)
	require.NoError(t, err)
	assert.Equal(t, []float64{44, -1}, values)
}

func TestReadWindowBoundlessZeroFill(t *testing.T) {
	g, b := ramp(t, nil)
	values, err := g.ReadWindow(raster.Window{Col: 3, Row: 3, Width: 3, Height: 3}, true, b.read)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		33, 34, 0,
		43, 44, 0,
		0, 0, 0,
	}, values)
}

func TestReadWindowEntirelyOutside(t *testing.T) {
	g, b := ramp(t, nodata(-7))
	values, err := g.ReadWindow(raster.Window{Col: 10, Row: 10, Width: 2, Height: 2}, true, b.read)
	require.NoError(t, err)
	assert.Equal(t, []float64{-7, -7, -7, -7}, values)
	assert.Empty(t, b.reads)
}

func TestReadWindowOutOfBounds(t *testing.T) {
	g, b := ramp(t, nil)

	_, err := g.ReadWindow(raster.Window{Col: -1, Row: 0, Width: 3, Height: 3}, false, b.read)
	assert.ErrorIs(t, err, raster.ErrOutOfBounds)

	_, err = g.ReadWindow(raster.Window{Width: 0, Height: 1}, true, b.read)
	assert.ErrorIs(t, err, raster.ErrOutOfBounds)
	assert.Empty(t, b.reads)
}

func TestReadWindowPropagatesReadError(t *testing.T) {
	g, b := ramp(t, nil)
	b.err = errors.New("injected read failure")

	_, err := g.ReadWindow(raster.Window{Col: -1, Row: -1, Width: 3, Height: 3}, true, b.read)
	assert.ErrorIs(t, err, b.err)
	_, err = g.Sample(0.5, 4.5, b.read)
	assert.ErrorIs(t, err, b.err)
}

func TestIntersect(t *testing.T) {
	w, ok := raster.Window{Col: -2, Row: 3, Width: 4, Height: 4}.Intersect(5, 5)
	require.True(t, ok)
	assert.Equal(t, raster.Window{Col: 0, Row: 3, Width: 2, Height: 2}, w)

	_, ok = raster.Window{Col: 5, Row: 0, Width: 1, Height: 1}.Intersect(5, 5)
	assert.False(t, ok)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 2.0, raster.Mean([]float64{1, 2, 3}))
	assert.Equal(t, -2.5, raster.Mean([]float64{0, -5}))
	assert.True(t, math.IsNaN(raster.Mean(nil)))
}

func TestGeoTransformRoundTrip(t *testing.T) {
	gt := raster.NorthUp(-180, 90, 1.0/6, 1.0/6)
	require.True(t, gt.Invertible())
	col, row := gt.Pixel(18.425556, 43.7125)
	x, y := gt.World(col, row)
	assert.InDelta(t, 18.425556, x, 1e-9)
	assert.InDelta(t, 43.7125, y, 1e-9)
	assert.Equal(t, 1190, int(math.Floor(col)))
	assert.Equal(t, 277, int(math.Floor(row)))

	assert.False(t, raster.GeoTransform{}.Invertible())
}
