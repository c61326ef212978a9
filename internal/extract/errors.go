// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"errors"
	"fmt"

	"github.com/pdiddy/worldclim-extractor/internal/worldclim"
)

var (
	ErrInvalidWindow     = errors.New("invalid pixel window")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrMissingColumn     = errors.New("missing coordinate column")
	ErrEmptyInput        = errors.New("input table has no rows")
)

// LayerError names the layer and virtual path whose extraction failed.
type LayerError struct {
	Variable   worldclim.Variable
	Resolution worldclim.Resolution
	Index      int
	Path       string
	Err        error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %d of %s/%s (%s): %v", e.Index, e.Variable, e.Resolution, e.Path, e.Err)
}

func (e *LayerError) Unwrap() error { return e.Err }
