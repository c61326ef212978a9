// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the configuration and run records shared by the
// worldclim-extractor packages.
package types

import "time"

// HTTPConfig holds shared HTTP settings used by every remote read.
type HTTPConfig struct {
	// Timeout bounds a single HTTP request (HEAD or ranged GET).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "worldclim-extractor/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries is the number of retries on throttling or gateway
	// responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// RemoteConfig controls the streaming virtual filesystem. The fields mirror
// the GDAL options the WorldClim archives are usually read with:
// CPL_VSIL_CURL_ALLOWED_EXTENSIONS, GDAL_DISABLE_READDIR_ON_OPEN and
// CPL_VSIL_CURL_USE_HEAD, plus the chunk size.
type RemoteConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// AllowedExtensions restricts which remote resources may be range-read.
	AllowedExtensions []string `json:"allowed_extensions" yaml:"allowed_extensions" mapstructure:"allowed_extensions"`

	// DisableReadDir skips the directory listing request on open.
	DisableReadDir bool `json:"disable_read_dir" yaml:"disable_read_dir" mapstructure:"disable_read_dir"`

	// UseHead discovers remote sizes with HEAD instead of a ranged GET.
	UseHead bool `json:"use_head" yaml:"use_head" mapstructure:"use_head"`

	// ChunkSize is the smallest byte range fetched per request
	// (CPL_VSIL_CURL_CHUNK_SIZE). Zero uses 512 KiB.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`

	// HeadersDir names a directory of credential files, one request
	// header per file. Empty sends no extra headers.
	HeadersDir string `json:"headers_dir,omitempty" yaml:"headers_dir,omitempty" mapstructure:"headers_dir"`
}

// LayerRule overrides how many layers a variable archive holds and whether
// the layer index is zero-padded to two digits.
type LayerRule struct {
	Count  int  `json:"count" yaml:"count" mapstructure:"count"`
	Padded bool `json:"padded" yaml:"padded" mapstructure:"padded"`
}

// ExtractionConfig holds settings for the extract command.
type ExtractionConfig struct {
	Remote RemoteConfig `json:"remote" yaml:"remote" mapstructure:"remote"`

	// BaseURL is the root of the WorldClim archive service.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// LonColumn and LatColumn name the coordinate columns in the input.
	LonColumn string `json:"lon_column" yaml:"lon_column" mapstructure:"lon_column"`
	LatColumn string `json:"lat_column" yaml:"lat_column" mapstructure:"lat_column"`

	// AllowEvenWindow keeps the historic asymmetric window for even sizes
	// instead of rejecting them.
	AllowEvenWindow bool `json:"allow_even_window" yaml:"allow_even_window" mapstructure:"allow_even_window"`

	// Layers overrides the per-variable layer policy, keyed by variable code.
	Layers map[string]LayerRule `json:"layers,omitempty" yaml:"layers,omitempty" mapstructure:"layers"`
}

// HistoryConfig holds settings for the run ledger.
type HistoryConfig struct {
	// Dir is the directory that holds the SQLite database.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Disabled turns off run recording.
	Disabled bool `json:"disabled" yaml:"disabled" mapstructure:"disabled"`

	// MaxResults is the default number of runs listed (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Env switches to JSON output when set to "production".
	Env string `json:"env" yaml:"env" mapstructure:"env"`
}

// AppConfig groups every configuration section.
type AppConfig struct {
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	History    HistoryConfig    `json:"history" yaml:"history" mapstructure:"history"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
