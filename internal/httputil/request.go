// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// StatusError reports an unexpected HTTP status for a URL.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// RequestOptions configures the requests a helper issues.
type RequestOptions struct {
	UserAgent  string
	MaxRetries int

	// Header is added to every request, e.g. credentials for a mirror.
	Header http.Header
}

// SetHeaders copies h onto req and sets the User-Agent when one is given.
func SetHeaders(req *http.Request, h http.Header, userAgent string) {
	for k, vs := range h {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
}

// FetchPrefix returns up to n leading bytes of url with a single ranged
// GET. Servers that ignore the range are read no further than n bytes.
// Any status other than 200 or 206 is a *StatusError.
func FetchPrefix(ctx context.Context, client *http.Client, url string, n int64, opts RequestOptions) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	SetHeaders(req, opts.Header, opts.UserAgent)
	req.Header.Set("Range", "bytes=0-"+strconv.FormatInt(n-1, 10))

	resp, err := DoWithRetry(ctx, client, req, opts.MaxRetries)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Method: http.MethodGet, URL: url, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, n))
}
