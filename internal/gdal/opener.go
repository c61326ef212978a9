// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gdal

import (
	"context"

	"github.com/pdiddy/worldclim-extractor/internal/extract"
	"github.com/pdiddy/worldclim-extractor/internal/vsi"
)

// Opener reads extraction layers out of remote zip archives.
type Opener struct {
	Env vsi.Env
}

// Open implements extract.Opener.
func (o Opener) Open(ctx context.Context, path string) (extract.Raster, error) {
	return Open(ctx, o.Env, path)
}
