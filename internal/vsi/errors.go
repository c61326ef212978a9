// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vsi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/worldclim-extractor/internal/httputil"
)

var (
	ErrUnsupportedPath     = errors.New("unsupported virtual path")
	ErrExtensionNotAllowed = errors.New("extension not allowed for remote access")
	ErrNotFound            = errors.New("remote resource not found")
	ErrRemote              = errors.New("remote access failed")
	ErrInvalidArchive      = errors.New("invalid zip archive")
)

// PathError records the operation and virtual path that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// classify tags a transport error with ErrNotFound or ErrRemote.
func classify(err error) error {
	var se *httputil.StatusError
	if errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrRemote, err)
}
