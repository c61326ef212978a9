// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rastertest

import (
	"archive/zip"
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff/lzw"
)

func TestLZWBlocksDecodeAsTIFF(t *testing.T) {
	l := Layer{Compression: LZW}
	raw := bytes.Repeat([]byte{0, 0, 0x80, 0x3f, 1, 2, 3}, 40)[:maxLZWBlock]

	packed, err := l.compress(raw)
	require.NoError(t, err)

	got, err := io.ReadAll(lzw.NewReader(bytes.NewReader(packed), lzw.MSB, 8))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestLZWRejectsLargeBlocks(t *testing.T) {
	l := Grid(16, 16, 0, 16, func(r, c int) float64 { return float64(r + c) })
	l.Compression = LZW
	_, err := l.Encode()
	assert.Error(t, err)

	l.RowsPerStrip = 2
	_, err = l.Encode()
	assert.NoError(t, err)
}

func TestZipDeflate(t *testing.T) {
	member := bytes.Repeat([]byte("wc2.1_10m_tmin_01.tif "), 1000)
	archive := Zip(t, map[string][]byte{"a.tif": member}, zip.Deflate)
	assert.Less(t, len(archive), len(member))

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, member, got)
}

func TestServerCountsRequests(t *testing.T) {
	srv := NewServer(t, map[string][]byte{"/a.zip": []byte("0123456789")})

	req, err := newRangeRequest(srv.URL+"/a.zip", "bytes=2-5")
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, "2345", string(body))
	assert.Equal(t, 1, srv.Count("GET", "/a.zip"))
	assert.Equal(t, int64(4), srv.Served("/a.zip"))

	resp, err = srv.Client().Get(srv.URL + "/missing.zip")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{"GET /a.zip", "GET /missing.zip"}, srv.Requests())
	assert.Equal(t, "bytes=2-5", srv.Headers()[0].Get("Range"))
}

func TestServerRequireHeader(t *testing.T) {
	srv := NewServer(t, map[string][]byte{"/a.zip": []byte("x")})
	srv.RequireHeader("Authorization", "Bearer abc")

	resp, err := srv.Client().Get(srv.URL + "/a.zip")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := newRangeRequest(srv.URL+"/a.zip", "bytes=0-0")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer abc")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
}

func newRangeRequest(url, rng string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", rng)
	return req, nil
}
