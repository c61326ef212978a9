// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gdal opens WorldClim layers through GDAL's /vsizip/vsicurl/
// virtual file systems. Every GDAL call made for a dataset carries the
// configuration options of the vsi.Env it was opened under, so two
// datasets opened with different options never see each other's
// settings.
package gdal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/pdiddy/worldclim-extractor/internal/raster"
	"github.com/pdiddy/worldclim-extractor/internal/vsi"
)

var registerOnce sync.Once

// Register loads the GDAL drivers. It is safe to call repeatedly.
func Register() { registerOnce.Do(godal.RegisterAll) }

// Dataset is an open single-band layer. Only band 1 is read.
type Dataset struct {
	name string
	ds   *godal.Dataset
	band godal.Band
	grid raster.Grid
	opts []string
}

// Open opens the layer at name, a /vsizip/vsicurl/ path, with env's
// options. The archive and member extensions are checked before any
// request is made. When GDAL cannot open the layer the archive is checked
// once more so the error says whether it is missing, unreachable or not a
// zip file.
func Open(ctx context.Context, env vsi.Env, name string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := env.Resolve(name)
	if err != nil {
		return nil, err
	}
	Register()

	opts := env.Config().GDALOptions()
	ds, err := godal.Open(p.String(), godal.ConfigOption(opts...), godal.RasterOnly())
	if err != nil {
		return nil, &vsi.PathError{Op: "open", Path: p.String(), Err: diagnose(ctx, env, p, err)}
	}

	d, err := newDataset(p.String(), ds, opts)
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return d, nil
}

func newDataset(name string, ds *godal.Dataset, opts []string) (*Dataset, error) {
	st := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", raster.ErrFormat)
	}
	band := bands[0]

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raster.ErrNoGeoreference, err)
	}

	var nodata *float64
	if v, ok := band.NoData(); ok {
		// GDAL reports a float32 band's nodata at double precision; cells
		// read as float32 must compare equal to it.
		if band.Structure().DataType == godal.Float32 {
			v = float64(float32(v))
		}
		nodata = &v
	}

	grid, err := raster.NewGrid(st.SizeX, st.SizeY, raster.GeoTransform(gt), nodata)
	if err != nil {
		return nil, err
	}
	return &Dataset{name: name, ds: ds, band: band, grid: grid, opts: opts}, nil
}

// diagnose turns a failed GDAL open into a vsi error class. GDAL's own
// message is kept as the detail.
func diagnose(ctx context.Context, env vsi.Env, p vsi.Path, cause error) error {
	if err := env.CheckArchive(ctx, p); err != nil {
		return fmt.Errorf("%w (%v)", err, cause)
	}
	if strings.Contains(cause.Error(), "does not exist") {
		return fmt.Errorf("%w: %s not in archive (%v)", vsi.ErrNotFound, p.Member, cause)
	}
	return fmt.Errorf("%w: %v", raster.ErrFormat, cause)
}

// Name returns the virtual path the dataset was opened with.
func (d *Dataset) Name() string { return d.name }

// Grid returns the band's pixel grid.
func (d *Dataset) Grid() raster.Grid { return d.grid }

// Index returns the pixel containing (x, y).
func (d *Dataset) Index(x, y float64) (row, col int) { return d.grid.Index(x, y) }

// Sample returns the value of the pixel containing (x, y), or the fill
// value outside the raster.
func (d *Dataset) Sample(x, y float64) (float64, error) {
	return d.grid.Sample(x, y, d.read)
}

// ReadWindow reads w in row-major order. With boundless set, cells past
// the edge hold the fill value.
func (d *Dataset) ReadWindow(w raster.Window, boundless bool) ([]float64, error) {
	return d.grid.ReadWindow(w, boundless, d.read)
}

func (d *Dataset) read(w raster.Window, buf []float64) error {
	if err := d.band.Read(w.Col, w.Row, buf, w.Width, w.Height, godal.ConfigOption(d.opts...)); err != nil {
		return &vsi.PathError{Op: "read", Path: d.name, Err: fmt.Errorf("%w: %v", vsi.ErrRemote, err)}
	}
	return nil
}

// Close releases the dataset. It is safe to call more than once.
func (d *Dataset) Close() error {
	if d.ds == nil {
		return nil
	}
	err := d.ds.Close()
	d.ds = nil
	return err
}

// WithDataset opens name under env, runs fn, and closes the dataset on
// every exit path.
func WithDataset(ctx context.Context, env vsi.Env, name string, fn func(*Dataset) error) (err error) {
	d, err := Open(ctx, env, name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(d)
}
