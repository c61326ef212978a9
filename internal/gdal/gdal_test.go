// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gdal

import (
	"archive/zip"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/worldclim-extractor/internal/raster"
	"github.com/pdiddy/worldclim-extractor/internal/raster/rastertest"
	"github.com/pdiddy/worldclim-extractor/internal/vsi"
)

// archive is one zip published by a test server. Its path is unique per
// test so GDAL's per-URL cache never carries state between tests.
type archive struct {
	srv  *rastertest.Server
	path string
}

func publish(t *testing.T, method uint16, members map[string][]byte) archive {
	t.Helper()
	path := "/" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "/layers.zip"
	srv := rastertest.NewServer(t, map[string][]byte{path: rastertest.Zip(t, members, method)})
	return archive{srv: srv, path: path}
}

func (a archive) member(name string) string {
	return "/vsizip/vsicurl/" + a.srv.URL + a.path + "/" + name
}

func (a archive) env(cfg vsi.Config) vsi.Env { return vsi.NewEnv(cfg, a.srv.Client()) }

// ramp is a 5x5 grid over lon [0,5) lat (0,5] holding 10*row+col.
func ramp() rastertest.Layer {
	return rastertest.Grid(5, 5, 0, 5, func(r, c int) float64 { return float64(10*r + c) })
}

func openLayer(t *testing.T, l rastertest.Layer) *Dataset {
	t.Helper()
	a := publish(t, zip.Store, map[string][]byte{"layer.tif": l.MustEncode(t)})
	d, err := Open(context.Background(), a.env(vsi.DefaultConfig()), a.member("layer.tif"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenEncodings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*rastertest.Layer)
	}{
		{"float32 strips", func(l *rastertest.Layer) {}},
		{"float32 one-row strips", func(l *rastertest.Layer) { l.RowsPerStrip = 1 }},
		{"short last strip", func(l *rastertest.Layer) { l.RowsPerStrip = 2 }},
		{"float64", func(l *rastertest.Layer) { l.Type = rastertest.Float64 }},
		{"int16", func(l *rastertest.Layer) { l.Type = rastertest.Int16 }},
		{"uint8", func(l *rastertest.Layer) { l.Type = rastertest.Uint8 }},
		{"big endian", func(l *rastertest.Layer) { l.BigEndian = true }},
		{"bigtiff", func(l *rastertest.Layer) { l.BigTIFF = true }},
		{"deflate", func(l *rastertest.Layer) { l.Compression = rastertest.Deflate }},
		{"lzw", func(l *rastertest.Layer) { l.Compression = rastertest.LZW }},
		{"lzw tiles", func(l *rastertest.Layer) { l.Compression = rastertest.LZW; l.TileSize = 4 }},
		{"lzw horizontal predictor int16", func(l *rastertest.Layer) {
			l.Type = rastertest.Int16
			l.Predictor = 2
			l.Compression = rastertest.LZW
		}},
		{"lzw floating point predictor", func(l *rastertest.Layer) {
			l.Predictor = 3
			l.Compression = rastertest.LZW
		}},
		{"tiles", func(l *rastertest.Layer) { l.TileSize = 16 }},
		{"partial tiles", func(l *rastertest.Layer) { l.TileSize = 2 }},
		{"floating point predictor deflate", func(l *rastertest.Layer) {
			l.Predictor = 3
			l.Compression = rastertest.Deflate
		}},
		{"floating point predictor big endian tiles", func(l *rastertest.Layer) {
			l.Predictor = 3
			l.BigEndian = true
			l.TileSize = 2
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ramp()
			tt.mutate(&l)
			d := openLayer(t, l)

			g := d.Grid()
			assert.Equal(t, 5, g.Width)
			assert.Equal(t, 5, g.Height)
			values, err := d.ReadWindow(raster.Window{Width: 5, Height: 5}, false)
			require.NoError(t, err)
			assert.Equal(t, l.Values, values)
		})
	}
}

func TestOpenDeflatedMember(t *testing.T) {
	l := ramp()
	l.Compression = rastertest.LZW
	a := publish(t, zip.Deflate, map[string][]byte{"layer.tif": l.MustEncode(t)})

	err := WithDataset(context.Background(), a.env(vsi.DefaultConfig()), a.member("layer.tif"), func(d *Dataset) error {
		v, err := d.Sample(2.5, 2.5)
		assert.Equal(t, 22.0, v)
		return err
	})
	require.NoError(t, err)
}

func TestDeflatedMemberFetchedInFewRequests(t *testing.T) {
	// 1024x1024 float32 noise: a 4 MiB member that deflate cannot shrink.
	l := rastertest.Noise(1024, 1024, 7)
	a := publish(t, zip.Deflate, map[string][]byte{"layer.tif": l.MustEncode(t)})

	err := WithDataset(context.Background(), a.env(vsi.DefaultConfig()), a.member("layer.tif"), func(d *Dataset) error {
		v, err := d.Sample(1023.5, 0.5)
		assert.Equal(t, float64(float32(l.Values[1023*1024+1023])), v)
		return err
	})
	require.NoError(t, err)

	gets := a.srv.Count("GET", a.path)
	assert.Positive(t, gets)
	assert.LessOrEqual(t, gets, 16, "member fetched in %d GETs", gets)
}

func TestTransform(t *testing.T) {
	d := openLayer(t, ramp())
	assert.Equal(t, raster.NorthUp(0, 5, 1, 1), d.Grid().Transform)

	row, col := d.Index(2.0, 2.0)
	assert.Equal(t, 3, row)
	assert.Equal(t, 2, col)

	l := ramp()
	l.PixelIsPoint = true
	d = openLayer(t, l)
	assert.Equal(t, raster.NorthUp(-0.5, 5.5, 1, 1), d.Grid().Transform)
}

func TestNoData(t *testing.T) {
	d := openLayer(t, ramp())
	assert.Nil(t, d.Grid().NoData)

	l := ramp()
	l.NoData = rastertest.NoData(-3.4e38)
	d = openLayer(t, l)
	require.NotNil(t, d.Grid().NoData)
	assert.Equal(t, float64(float32(-3.4e38)), *d.Grid().NoData)

	v, err := d.Sample(100, 100)
	require.NoError(t, err)
	assert.Equal(t, float64(float32(-3.4e38)), v)
}

func TestReadWindowBoundless(t *testing.T) {
	l := ramp()
	l.NoData = rastertest.NoData(-1)
	d := openLayer(t, l)

	values, err := d.ReadWindow(raster.Window{Col: -1, Row: -1, Width: 3, Height: 3}, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		-1, -1, -1,
		-1, 0, 1,
		-1, 10, 11,
	}, values)

	_, err = d.ReadWindow(raster.Window{Col: -1, Row: 0, Width: 3, Height: 3}, false)
	assert.ErrorIs(t, err, raster.ErrOutOfBounds)
}

func TestOpenNoGeoreference(t *testing.T) {
	l := ramp()
	l.NoGeoreference = true
	a := publish(t, zip.Store, map[string][]byte{"layer.tif": l.MustEncode(t)})

	_, err := Open(context.Background(), a.env(vsi.DefaultConfig()), a.member("layer.tif"))
	assert.ErrorIs(t, err, raster.ErrNoGeoreference)
}

func TestOpenUsesHeadWhenConfigured(t *testing.T) {
	tif := ramp().MustEncode(t)

	a := publish(t, zip.Store, map[string][]byte{"a.tif": tif})
	require.NoError(t, WithDataset(context.Background(), a.env(vsi.DefaultConfig()), a.member("a.tif"), noop))
	assert.Positive(t, a.srv.Count("HEAD", a.path))

	cfg := vsi.DefaultConfig()
	cfg.UseHead = false
	b := publish(t, zip.Store, map[string][]byte{"b.tif": tif})
	require.NoError(t, WithDataset(context.Background(), b.env(cfg), b.member("b.tif"), noop))
	assert.Zero(t, b.srv.Count("HEAD", b.path))
}

func TestOpenDirectoryListing(t *testing.T) {
	tif := ramp().MustEncode(t)
	dir := func(a archive) string { return strings.TrimSuffix(a.path, "layers.zip") }

	a := publish(t, zip.Store, map[string][]byte{"a.tif": tif})
	require.NoError(t, WithDataset(context.Background(), a.env(vsi.DefaultConfig()), a.member("a.tif"), noop))
	assert.Zero(t, a.srv.Count("GET", dir(a)))

	cfg := vsi.DefaultConfig()
	cfg.DisableReadDir = false
	b := publish(t, zip.Store, map[string][]byte{"b.tif": tif})
	require.NoError(t, WithDataset(context.Background(), b.env(cfg), b.member("b.tif"), noop))
	assert.Positive(t, b.srv.Count("GET", dir(b)))
}

func TestOpenSendsConfiguredHeaders(t *testing.T) {
	a := publish(t, zip.Store, map[string][]byte{"a.tif": ramp().MustEncode(t)})
	a.srv.RequireHeader("Authorization", "Bearer abc")

	cfg := vsi.DefaultConfig()
	cfg.UserAgent = "test-agent/1"
	cfg.Header = http.Header{"Authorization": {"Bearer abc"}}
	require.NoError(t, WithDataset(context.Background(), a.env(cfg), a.member("a.tif"), noop))

	headers := a.srv.Headers()
	require.NotEmpty(t, headers)
	for _, h := range headers {
		assert.Equal(t, "Bearer abc", h.Get("Authorization"))
		assert.Equal(t, "test-agent/1", h.Get("User-Agent"))
	}
}

func TestOptionsDoNotLeakBetweenEnvs(t *testing.T) {
	tif := ramp().MustEncode(t)
	a := publish(t, zip.Store, map[string][]byte{"a.tif": tif})
	a.srv.RequireHeader("Authorization", "Bearer abc")
	b := publish(t, zip.Store, map[string][]byte{"b.tif": tif})
	b.srv.RequireHeader("Authorization", "Bearer abc")

	withAuth := vsi.DefaultConfig()
	withAuth.Header = http.Header{"Authorization": {"Bearer abc"}}

	d, err := Open(context.Background(), a.env(withAuth), a.member("a.tif"))
	require.NoError(t, err)
	defer d.Close()

	// The credentials of the open dataset are not visible to another Env.
	_, err = Open(context.Background(), b.env(vsi.DefaultConfig()), b.member("b.tif"))
	require.ErrorIs(t, err, vsi.ErrRemote)

	v, err := d.Sample(0.5, 4.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestOpenRejectsExtensionBeforeRequest(t *testing.T) {
	a := publish(t, zip.Store, map[string][]byte{"a.dat": []byte("x")})

	_, err := Open(context.Background(), a.env(vsi.DefaultConfig()), a.member("a.dat"))
	require.ErrorIs(t, err, vsi.ErrExtensionNotAllowed)
	assert.Empty(t, a.srv.Requests())

	var pe *vsi.PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "open", pe.Op)
	assert.Contains(t, err.Error(), "a.dat")
}

func TestOpenNotFound(t *testing.T) {
	a := publish(t, zip.Store, map[string][]byte{"a.tif": ramp().MustEncode(t)})
	env := a.env(vsi.DefaultConfig())

	t.Run("archive", func(t *testing.T) {
		name := "/vsizip/vsicurl/" + a.srv.URL + "/elsewhere/missing.zip/a.tif"
		_, err := Open(context.Background(), env, name)
		require.ErrorIs(t, err, vsi.ErrNotFound)
		assert.Contains(t, err.Error(), name)
	})
	t.Run("member", func(t *testing.T) {
		_, err := Open(context.Background(), env, a.member("b.tif"))
		require.ErrorIs(t, err, vsi.ErrNotFound)
		assert.Contains(t, err.Error(), "b.tif")
	})
}

func TestOpenInvalidArchive(t *testing.T) {
	path := "/" + t.Name() + "/layers.zip"
	srv := rastertest.NewServer(t, map[string][]byte{path: []byte("not a zip archive")})
	env := vsi.NewEnv(vsi.DefaultConfig(), srv.Client())

	_, err := Open(context.Background(), env, "/vsizip/vsicurl/"+srv.URL+path+"/a.tif")
	assert.ErrorIs(t, err, vsi.ErrInvalidArchive)
}

func TestOpenMemberNotRaster(t *testing.T) {
	a := publish(t, zip.Store, map[string][]byte{"a.tif": []byte("plain text, not a tiff")})

	_, err := Open(context.Background(), a.env(vsi.DefaultConfig()), a.member("a.tif"))
	assert.ErrorIs(t, err, raster.ErrFormat)
}

func TestOpenUnreachable(t *testing.T) {
	a := publish(t, zip.Store, map[string][]byte{"a.tif": ramp().MustEncode(t)})
	name := a.member("a.tif")
	a.srv.Close()

	_, err := Open(context.Background(), vsi.NewEnv(vsi.DefaultConfig(), nil), name)
	require.ErrorIs(t, err, vsi.ErrRemote)
	assert.NotErrorIs(t, err, vsi.ErrNotFound)
}

func TestOpenCancelled(t *testing.T) {
	a := publish(t, zip.Store, map[string][]byte{"a.tif": ramp().MustEncode(t)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, a.env(vsi.DefaultConfig()), a.member("a.tif"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.srv.Requests())
}

func TestWithDatasetClosesOnError(t *testing.T) {
	a := publish(t, zip.Store, map[string][]byte{"a.tif": ramp().MustEncode(t)})
	boom := errors.New("boom")

	var opened *Dataset
	err := WithDataset(context.Background(), a.env(vsi.DefaultConfig()), a.member("a.tif"), func(d *Dataset) error {
		opened = d
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, opened)
	assert.Nil(t, opened.ds)
	assert.NoError(t, opened.Close())
}

func noop(*Dataset) error { return nil }
