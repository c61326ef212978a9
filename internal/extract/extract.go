// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract samples every layer of a WorldClim variable archive at
// the coordinates of a table and appends one column per layer.
//
// Each layer is opened once, read for every row, and closed before the
// next layer is opened. A single failure aborts the whole extraction: the
// caller gets either a complete table or an error, never partial columns.
package extract

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pdiddy/worldclim-extractor/internal/logger"
	"github.com/pdiddy/worldclim-extractor/internal/raster"
	"github.com/pdiddy/worldclim-extractor/internal/table"
	"github.com/pdiddy/worldclim-extractor/internal/worldclim"
	"github.com/pdiddy/worldclim-extractor/pkg/types"
)

// Request names the columns and the archive an extraction reads.
type Request struct {
	LonColumn  string
	LatColumn  string
	Variable   worldclim.Variable
	Resolution worldclim.Resolution

	// Window is the side of the focal window in pixels. 0 and 1 sample the
	// single pixel under each coordinate.
	Window int

	// ArchiveURL overrides the archive derived from the base URL.
	ArchiveURL string
}

// Stage marks a progress event.
type Stage string

const (
	LayerStarted  Stage = "started"
	LayerFinished Stage = "finished"
	LayerFailed   Stage = "failed"
)

// Progress reports one layer changing stage.
type Progress struct {
	Stage  Stage
	Layer  worldclim.Layer
	Column string
	Path   string

	// Position is the 1-based layer number out of Total.
	Position int
	Total    int

	Elapsed time.Duration
	Err     error
}

// Extractor runs extractions against an Opener.
type Extractor struct {
	opener          Opener
	policy          worldclim.LayerPolicy
	baseURL         string
	allowEvenWindow bool
	log             logger.Logger

	// OnProgress, when set, is called as each layer starts and ends.
	OnProgress func(Progress)
}

// New builds an Extractor from the extraction configuration. Layer rule
// overrides must name known variables.
func New(opener Opener, cfg types.ExtractionConfig, log logger.Logger) (*Extractor, error) {
	policy, err := PolicyFrom(cfg.Layers)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	base := cfg.BaseURL
	if base == "" {
		base = worldclim.DefaultBaseURL
	}
	return &Extractor{
		opener:          opener,
		policy:          policy,
		baseURL:         base,
		allowEvenWindow: cfg.AllowEvenWindow,
		log:             log.WithField("component", "extract"),
	}, nil
}

// PolicyFrom applies configured layer rules to the default policy.
func PolicyFrom(rules map[string]types.LayerRule) (worldclim.LayerPolicy, error) {
	policy := worldclim.DefaultLayerPolicy()
	for code, r := range rules {
		v, err := worldclim.ParseVariable(code)
		if err != nil {
			return policy, fmt.Errorf("layer rule: %w", err)
		}
		if r.Count <= 0 {
			return policy, fmt.Errorf("layer rule for %s: count must be positive, got %d", v, r.Count)
		}
		policy = policy.With(v, worldclim.LayerRule{Count: r.Count, Padded: r.Padded})
	}
	return policy, nil
}

// Policy returns the layer policy in use.
func (e *Extractor) Policy() worldclim.LayerPolicy { return e.policy }

// ArchiveURL returns the archive req reads.
func (e *Extractor) ArchiveURL(req Request) string {
	if req.ArchiveURL != "" {
		return req.ArchiveURL
	}
	return worldclim.ArchiveURL(e.baseURL, req.Resolution, req.Variable)
}

// Plan lists the layers req would read, with their columns and paths,
// without touching the network.
func (e *Extractor) Plan(req Request) []Planned {
	archive := e.ArchiveURL(req)
	layers := e.policy.Layers(req.Variable, req.Resolution)
	out := make([]Planned, len(layers))
	for i, l := range layers {
		out[i] = Planned{
			Layer:  l,
			Column: worldclim.ColumnName(l),
			Path:   worldclim.VSIPath(archive, worldclim.MemberName(l)),
		}
	}
	return out
}

// Planned is one layer of an extraction plan.
type Planned struct {
	Layer  worldclim.Layer
	Column string
	Path   string
}

type point struct{ lon, lat float64 }

// Extract returns a copy of t with one column per layer of the requested
// variable. t is never modified. Row count and order are preserved.
func (e *Extractor) Extract(ctx context.Context, t *table.Table, req Request) (*table.Table, error) {
	window, err := e.window(req.Window)
	if err != nil {
		return nil, err
	}
	if req.Variable == "" || req.Resolution == "" {
		return nil, fmt.Errorf("variable and resolution are required")
	}
	points, err := coordinates(t, req.LonColumn, req.LatColumn)
	if err != nil {
		return nil, err
	}

	plan := e.Plan(req)
	log := e.log.WithFields(map[string]any{
		"variable":   string(req.Variable),
		"resolution": string(req.Resolution),
		"window":     window,
		"rows":       len(points),
	})
	log.Infof("extracting %d layers from %s", len(plan), e.ArchiveURL(req))

	cols := make([]table.Column, 0, len(plan))
	for i, p := range plan {
		if err := ctx.Err(); err != nil {
			return nil, e.layerError(p, err)
		}

		e.report(Progress{Stage: LayerStarted, Layer: p.Layer, Column: p.Column, Path: p.Path, Position: i + 1, Total: len(plan)})
		start := time.Now()

		values, err := e.extractLayer(ctx, p.Path, points, window)
		if err != nil {
			lerr := e.layerError(p, err)
			e.report(Progress{Stage: LayerFailed, Layer: p.Layer, Column: p.Column, Path: p.Path, Position: i + 1, Total: len(plan), Elapsed: time.Since(start), Err: lerr})
			log.Errorf("%v", lerr)
			return nil, lerr
		}

		e.report(Progress{Stage: LayerFinished, Layer: p.Layer, Column: p.Column, Path: p.Path, Position: i + 1, Total: len(plan), Elapsed: time.Since(start)})
		log.Debugf("layer %s done in %s", p.Column, time.Since(start))
		cols = append(cols, table.Column{Name: p.Column, Values: values})
	}

	return t.WithColumns(cols...)
}

func (e *Extractor) layerError(p Planned, err error) *LayerError {
	return &LayerError{
		Variable:   p.Layer.Variable,
		Resolution: p.Layer.Resolution,
		Index:      p.Layer.Index,
		Path:       p.Path,
		Err:        err,
	}
}

func (e *Extractor) report(p Progress) {
	if e.OnProgress != nil {
		e.OnProgress(p)
	}
}

// window normalises the requested window size. 0 and 1 mean exact
// sampling and are returned as 1.
func (e *Extractor) window(n int) (int, error) {
	switch {
	case n == 0 || n == 1:
		return 1, nil
	case n < 0:
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidWindow, n)
	case n%2 == 0 && !e.allowEvenWindow:
		return 0, fmt.Errorf("%w: %d is even; use an odd size so the window centres on the pixel", ErrInvalidWindow, n)
	}
	return n, nil
}

// coordinates reads the lon/lat pair of every row.
func coordinates(t *table.Table, lonCol, latCol string) ([]point, error) {
	if t == nil || t.Len() == 0 {
		return nil, ErrEmptyInput
	}
	lon, ok := t.Column(lonCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, lonCol)
	}
	lat, ok := t.Column(latCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, latCol)
	}

	points := make([]point, t.Len())
	for i := range points {
		x, err := t.Float(i, lon)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCoordinate, err)
		}
		y, err := t.Float(i, lat)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCoordinate, err)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("%w: row %d is not finite (%v, %v)", ErrInvalidCoordinate, i+1, x, y)
		}
		points[i] = point{lon: x, lat: y}
	}
	return points, nil
}

// extractLayer opens one layer and reads a value for every point. The
// layer is closed on every return path.
func (e *Extractor) extractLayer(ctx context.Context, path string, points []point, window int) (values []float64, err error) {
	r, err := e.opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	values = make([]float64, len(points))
	for i, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if window == 1 {
			values[i], err = r.Sample(p.lon, p.lat)
		} else {
			values[i], err = focalMean(r, p, window)
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return values, nil
}

// focalMean averages the n×n window whose top-left corner is n/2 pixels
// up and left of the pixel under p. Cells past the raster edge count with
// the layer's fill value.
func focalMean(r Raster, p point, n int) (float64, error) {
	row, col := r.Index(p.lon, p.lat)
	w := raster.Window{Col: col - n/2, Row: row - n/2, Width: n, Height: n}
	cells, err := r.ReadWindow(w, true)
	if err != nil {
		return 0, err
	}
	return raster.Mean(cells), nil
}
