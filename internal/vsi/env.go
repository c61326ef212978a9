// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vsi describes how layers inside remote zip archives are reached
// through GDAL's chained virtual file systems. Paths follow the grammar
// /vsizip/vsicurl/{archive_url}/{member}. An Env pairs one Config with an
// HTTP client; its options are handed to GDAL per call, so they never
// leak between unrelated opens.
package vsi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/worldclim-extractor/internal/httputil"
)

// zipMagic opens every local file header and end-of-directory record.
var zipMagic = []byte("PK")

// Env binds a Config to an HTTP client.
type Env struct {
	cfg    Config
	client *http.Client
}

// NewEnv returns an Env using cfg. A nil client gets one whose timeout is
// cfg.Timeout.
func NewEnv(cfg Config, client *http.Client) Env {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return Env{cfg: cfg.clone(), client: client}
}

// Config returns a copy of the environment's options.
func (e Env) Config() Config { return e.cfg.clone() }

// Resolve parses name and checks the archive and member against the
// allowed extensions. It makes no request.
func (e Env) Resolve(name string) (Path, error) {
	p, err := ParsePath(name)
	if err != nil {
		return Path{}, &PathError{Op: "open", Path: name, Err: err}
	}
	for _, n := range []string{p.ArchiveURL, p.Member} {
		if !e.cfg.allowed(n) {
			return Path{}, &PathError{Op: "open", Path: p.String(), Err: fmt.Errorf("%w: %s", ErrExtensionNotAllowed, n)}
		}
	}
	return p, nil
}

// CheckArchive fetches the first bytes of p's archive. It returns nil when
// the archive is reachable and starts like a zip file, and otherwise an
// error wrapping ErrNotFound, ErrRemote or ErrInvalidArchive.
func (e Env) CheckArchive(ctx context.Context, p Path) error {
	head, err := httputil.FetchPrefix(ctx, e.client, p.ArchiveURL, int64(len(zipMagic)), httputil.RequestOptions{
		UserAgent:  e.cfg.UserAgent,
		MaxRetries: e.cfg.MaxRetries,
		Header:     e.cfg.Header,
	})
	if err != nil {
		return classify(err)
	}
	if !bytes.Equal(head, zipMagic) {
		return fmt.Errorf("%w: %s", ErrInvalidArchive, p.ArchiveURL)
	}
	return nil
}
