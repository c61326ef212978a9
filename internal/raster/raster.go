// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package raster holds the pixel-grid arithmetic shared by every layer
// source: mapping coordinates to pixels, boundless windowed reads and the
// focal mean. Pixel values come from a ReadFunc supplied by the source.
package raster

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrFormat         = errors.New("not a readable raster")
	ErrNoGeoreference = errors.New("raster has no georeferencing")
	ErrOutOfBounds    = errors.New("window outside raster")
)

// Window is a rectangle of whole pixels. Col and Row may be negative or
// past the raster edge for boundless reads.
type Window struct {
	Col, Row      int
	Width, Height int
}

// Intersect clips w to a width×height raster. ok is false when nothing
// is left.
func (w Window) Intersect(width, height int) (clipped Window, ok bool) {
	c0, r0 := max(w.Col, 0), max(w.Row, 0)
	c1, r1 := min(w.Col+w.Width, width), min(w.Row+w.Height, height)
	if c1 <= c0 || r1 <= r0 {
		return Window{}, false
	}
	return Window{Col: c0, Row: r0, Width: c1 - c0, Height: r1 - r0}, true
}

// ReadFunc fills buf with the band values of an in-bounds window in
// row-major order. len(buf) is w.Width*w.Height.
type ReadFunc func(w Window, buf []float64) error

// Grid is the pixel grid of one band.
type Grid struct {
	Width, Height int
	Transform     GeoTransform

	// NoData is nil when the band declares none.
	NoData *float64
}

// NewGrid validates the raster size and transform.
func NewGrid(width, height int, gt GeoTransform, nodata *float64) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("%w: raster is %dx%d", ErrFormat, width, height)
	}
	if !gt.Invertible() {
		return Grid{}, fmt.Errorf("%w: degenerate transform %v", ErrNoGeoreference, gt)
	}
	return Grid{Width: width, Height: height, Transform: gt, NoData: nodata}, nil
}

// Fill is the value reported for cells outside the raster: nodata when
// declared, otherwise zero.
func (g Grid) Fill() float64 {
	if g.NoData != nil {
		return *g.NoData
	}
	return 0
}

// Index returns the pixel containing world coordinate (x, y).
func (g Grid) Index(x, y float64) (row, col int) {
	c, r := g.Transform.Pixel(x, y)
	return int(math.Floor(r)), int(math.Floor(c))
}

// Inside reports whether (row, col) addresses a raster pixel.
func (g Grid) Inside(row, col int) bool {
	return row >= 0 && col >= 0 && row < g.Height && col < g.Width
}

// Sample returns the value of the pixel containing (x, y), or Fill when
// the coordinate falls outside the raster.
func (g Grid) Sample(x, y float64, read ReadFunc) (float64, error) {
	row, col := g.Index(x, y)
	if !g.Inside(row, col) {
		return g.Fill(), nil
	}
	buf := make([]float64, 1)
	if err := read(Window{Col: col, Row: row, Width: 1, Height: 1}, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadWindow returns the window's values in row-major order. With
// boundless set, cells outside the raster hold Fill and only the part
// inside is read; otherwise a window that leaves the raster fails with
// ErrOutOfBounds.
func (g Grid) ReadWindow(w Window, boundless bool, read ReadFunc) ([]float64, error) {
	if w.Width <= 0 || w.Height <= 0 {
		return nil, fmt.Errorf("%w: empty window %+v", ErrOutOfBounds, w)
	}
	clipped, ok := w.Intersect(g.Width, g.Height)
	if !boundless && (!ok || clipped != w) {
		return nil, fmt.Errorf("%w: %+v on %dx%d raster", ErrOutOfBounds, w, g.Width, g.Height)
	}

	out := make([]float64, w.Width*w.Height)
	if clipped == w {
		if err := read(w, out); err != nil {
			return nil, err
		}
		return out, nil
	}

	fill := g.Fill()
	for i := range out {
		out[i] = fill
	}
	if !ok {
		return out, nil
	}
	inner := make([]float64, clipped.Width*clipped.Height)
	if err := read(clipped, inner); err != nil {
		return nil, err
	}
	for r := 0; r < clipped.Height; r++ {
		dst := (clipped.Row-w.Row+r)*w.Width + (clipped.Col - w.Col)
		copy(out[dst:dst+clipped.Width], inner[r*clipped.Width:(r+1)*clipped.Width])
	}
	return out, nil
}

// Mean returns the arithmetic mean of values, or NaN for none. Fill
// values are averaged like any other.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
