// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package raster

import "math"

// GeoTransform is an affine pixel-to-world transform in GDAL order:
//
//	x = T[0] + col*T[1] + row*T[2]
//	y = T[3] + col*T[4] + row*T[5]
//
// where (col, row) address the top-left corner of a pixel.
type GeoTransform [6]float64

// NorthUp builds the transform of an unrotated grid whose top-left corner
// is (originX, originY) with square-or-not pixels of the given size.
func NorthUp(originX, originY, pixelWidth, pixelHeight float64) GeoTransform {
	return GeoTransform{originX, pixelWidth, 0, originY, 0, -pixelHeight}
}

func (t GeoTransform) det() float64 {
	return t[1]*t[5] - t[2]*t[4]
}

// Invertible reports whether world coordinates can be mapped back to pixels.
func (t GeoTransform) Invertible() bool {
	d := t.det()
	return d != 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

// Pixel maps a world coordinate to continuous (col, row) pixel space.
func (t GeoTransform) Pixel(x, y float64) (col, row float64) {
	d := t.det()
	dx, dy := x-t[0], y-t[3]
	col = (t[5]*dx - t[2]*dy) / d
	row = (-t[4]*dx + t[1]*dy) / d
	return col, row
}

// World maps continuous pixel coordinates to the world.
func (t GeoTransform) World(col, row float64) (x, y float64) {
	return t[0] + col*t[1] + row*t[2], t[3] + col*t[4] + row*t[5]
}
