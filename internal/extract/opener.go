// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"

	"github.com/pdiddy/worldclim-extractor/internal/raster"
)

// Raster is an open single-band layer. The gdal package provides the
// production implementation; tests supply in-memory fakes.
type Raster interface {
	// Index returns the pixel containing (lon, lat).
	Index(lon, lat float64) (row, col int)

	// Sample returns the pixel value at (lon, lat), or the fill value
	// outside the raster.
	Sample(lon, lat float64) (float64, error)

	// ReadWindow reads a window of pixels; boundless fills cells past the
	// edge.
	ReadWindow(w raster.Window, boundless bool) ([]float64, error)

	Close() error
}

// Opener opens the raster behind a virtual path.
type Opener interface {
	Open(ctx context.Context, path string) (Raster, error)
}
