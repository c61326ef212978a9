// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials for archive mirrors that require them
// from a directory of plain-text files. Each file in the directory is one
// HTTP request header: the filename is the header name and the file
// contents (trimmed) are the value.
//
// A typical directory holds a single file named Authorization containing
// "Bearer <token>". Nothing in the directory is ever logged.
package secrets

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/worldclim-extractor/internal/logger"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning but do not abort.
func Load(dir string, log logger.Logger) (map[string]string, error) {
	if log == nil {
		log = logger.Discard()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warnf("could not read secret %s: %v", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Headers loads dir and returns its entries as request headers with
// canonical names. Files whose name is not a valid header token, or whose
// value spans lines, are rejected.
func Headers(dir string, log logger.Logger) (http.Header, error) {
	if log == nil {
		log = logger.Discard()
	}
	secrets, err := Load(dir, log)
	if err != nil {
		return nil, err
	}
	h := make(http.Header, len(secrets))
	for name, value := range secrets {
		if !validToken(name) {
			return nil, fmt.Errorf("secret %s: not a valid header name", name)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("secret %s: value spans multiple lines", name)
		}
		h.Set(name, value)
	}
	if len(h) > 0 {
		log.Debugf("loaded %d request headers from %s", len(h), dir)
	}
	return h, nil
}

// validToken reports whether s is an RFC 7230 token.
func validToken(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune("!#$%&'*+-.^_`|~", c):
		default:
			return false
		}
	}
	return true
}
