// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vsi

import (
	"math"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/worldclim-extractor/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "worldclim-extractor/0.1"

	// DefaultChunkSize is the fetch size when none is configured.
	DefaultChunkSize = 512 << 10

	// GDAL accepts chunk sizes between these bounds.
	minChunkSize = 1 << 10
	maxChunkSize = 10 << 20
)

// Config holds the options that govern remote reads. It is a plain value:
// every Env carries its own copy and nothing is stored process-wide.
type Config struct {
	// AllowedExtensions lists the suffixes remote resources may carry.
	AllowedExtensions []string

	// DisableReadDir skips listing the archive's directory on open.
	DisableReadDir bool

	// UseHead discovers remote sizes with HEAD instead of a ranged GET.
	UseHead bool

	// ChunkSize is the smallest byte range fetched per request.
	ChunkSize int

	Timeout    time.Duration
	UserAgent  string
	MaxRetries int

	// Header is sent with every request.
	Header http.Header
}

// DefaultConfig returns the options WorldClim archives are read with:
// only .zip and .tif may be fetched, no directory listing, sizes from HEAD.
func DefaultConfig() Config {
	return Config{
		AllowedExtensions: []string{".zip", ".tif"},
		DisableReadDir:    true,
		UseHead:           true,
		ChunkSize:         DefaultChunkSize,
		Timeout:           defaultTimeout,
		UserAgent:         defaultUserAgent,
	}
}

// ConfigFrom converts the file/flag configuration section, filling gaps
// with defaults.
func ConfigFrom(rc types.RemoteConfig) Config {
	cfg := DefaultConfig()
	if len(rc.AllowedExtensions) > 0 {
		cfg.AllowedExtensions = slices.Clone(rc.AllowedExtensions)
	}
	cfg.DisableReadDir = rc.DisableReadDir
	cfg.UseHead = rc.UseHead
	if rc.ChunkSize > 0 {
		cfg.ChunkSize = rc.ChunkSize
	}
	if rc.Timeout > 0 {
		cfg.Timeout = rc.Timeout
	}
	if rc.UserAgent != "" {
		cfg.UserAgent = rc.UserAgent
	}
	cfg.MaxRetries = rc.MaxRetries
	return cfg
}

func (c Config) clone() Config {
	c.AllowedExtensions = slices.Clone(c.AllowedExtensions)
	c.Header = c.Header.Clone()
	return c
}

// allowed reports whether name ends in one of the permitted extensions.
// An empty list permits everything.
func (c Config) allowed(name string) bool {
	if len(c.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, a := range c.AllowedExtensions {
		if strings.ToLower(strings.TrimSpace(a)) == ext {
			return true
		}
	}
	return false
}

// GDALOptions renders c as GDAL configuration options ("KEY=VALUE"). They
// are passed with each GDAL call rather than set globally.
func (c Config) GDALOptions() []string {
	var opts []string
	if len(c.AllowedExtensions) > 0 {
		opts = append(opts, "CPL_VSIL_CURL_ALLOWED_EXTENSIONS="+strings.Join(c.AllowedExtensions, ","))
	}
	readDir := "FALSE"
	if c.DisableReadDir {
		readDir = "EMPTY_DIR"
	}
	opts = append(opts, "GDAL_DISABLE_READDIR_ON_OPEN="+readDir)
	useHead := "NO"
	if c.UseHead {
		useHead = "YES"
	}
	opts = append(opts, "CPL_VSIL_CURL_USE_HEAD="+useHead)

	chunk := c.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	chunk = min(max(chunk, minChunkSize), maxChunkSize)
	opts = append(opts, "CPL_VSIL_CURL_CHUNK_SIZE="+strconv.Itoa(chunk))

	if c.Timeout > 0 {
		opts = append(opts, "GDAL_HTTP_TIMEOUT="+strconv.Itoa(int(math.Ceil(c.Timeout.Seconds()))))
	}
	if c.UserAgent != "" {
		opts = append(opts, "GDAL_HTTP_USERAGENT="+c.UserAgent)
	}
	if c.MaxRetries > 0 {
		opts = append(opts, "GDAL_HTTP_MAX_RETRY="+strconv.Itoa(c.MaxRetries), "GDAL_HTTP_RETRY_DELAY=2")
	}
	if len(c.Header) > 0 {
		keys := make([]string, 0, len(c.Header))
		for k := range c.Header {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		var lines []string
		for _, k := range keys {
			for _, v := range c.Header[k] {
				lines = append(lines, k+": "+v)
			}
		}
		opts = append(opts, "GDAL_HTTP_HEADERS="+strings.Join(lines, "\r\n"))
	}
	return opts
}
