// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vsi

import (
	"fmt"
	"net/url"
	"strings"
)

// Prefixes of the chained zip-over-HTTP virtual path. The double-slash
// form is accepted and means the same thing.
var zipCurlPrefixes = []string{
	"/vsizip/vsicurl/",
	"/vsizip//vsicurl/",
}

// Path is a parsed /vsizip/vsicurl/ virtual path.
type Path struct {
	// ArchiveURL is the http(s) address of the zip archive.
	ArchiveURL string

	// Member is the file name inside the archive.
	Member string
}

// String renders the canonical single-slash form.
func (p Path) String() string {
	return "/vsizip/vsicurl/" + p.ArchiveURL + "/" + p.Member
}

// ParsePath splits a /vsizip/vsicurl/{archive_url}/{member} path. The
// archive URL ends at the first ".zip/" separator.
func ParsePath(p string) (Path, error) {
	var rest string
	for _, prefix := range zipCurlPrefixes {
		if strings.HasPrefix(p, prefix) {
			rest = strings.TrimPrefix(p, prefix)
			break
		}
	}
	if rest == "" {
		return Path{}, fmt.Errorf("%w: %q", ErrUnsupportedPath, p)
	}

	i := strings.Index(strings.ToLower(rest), ".zip/")
	if i < 0 {
		return Path{}, fmt.Errorf("%w: no .zip archive in %q", ErrUnsupportedPath, p)
	}
	archive, member := rest[:i+len(".zip")], rest[i+len(".zip/"):]
	if member == "" {
		return Path{}, fmt.Errorf("%w: no archive member in %q", ErrUnsupportedPath, p)
	}

	u, err := url.Parse(archive)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Path{}, fmt.Errorf("%w: archive %q is not an http(s) URL", ErrUnsupportedPath, archive)
	}
	return Path{ArchiveURL: archive, Member: member}, nil
}
