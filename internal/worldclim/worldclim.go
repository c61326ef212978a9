// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package worldclim describes the WorldClim v2.1 archive catalogue: the
// variables and resolutions it publishes, how many layers each archive
// holds, and the deterministic names of archives, layers and output columns.
package worldclim

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultBaseURL is the public root of the WorldClim v2.1 base archives.
const DefaultBaseURL = "https://geodata.ucdavis.edu/climate/worldclim/2_1/base"

var (
	ErrUnknownVariable   = errors.New("unknown variable")
	ErrUnknownResolution = errors.New("unknown resolution")
)

// Variable is a WorldClim climate variable code.
type Variable string

const (
	Bio  Variable = "bio"
	Elev Variable = "elev"
	Tmin Variable = "tmin"
	Tmax Variable = "tmax"
	Tavg Variable = "tavg"
	Prec Variable = "prec"
	Srad Variable = "srad"
	Wind Variable = "wind"
	Vapr Variable = "vapr"
)

// Variables lists every published variable in catalogue order.
var Variables = []Variable{Bio, Elev, Tmin, Tmax, Tavg, Prec, Srad, Wind, Vapr}

// ParseVariable validates s against the catalogue. Matching is
// case-insensitive; the canonical lower-case code is returned.
func ParseVariable(s string) (Variable, error) {
	v := Variable(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variables {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownVariable, s, joinCodes(Variables))
}

func (v Variable) String() string { return string(v) }

// Resolution is a WorldClim grid resolution label, embedded verbatim in
// archive paths and column names.
type Resolution string

const (
	Res30s  Resolution = "30s"
	Res2_5m Resolution = "2.5m"
	Res5m   Resolution = "5m"
	Res10m  Resolution = "10m"
)

// Resolutions lists every published resolution, finest first.
var Resolutions = []Resolution{Res30s, Res2_5m, Res5m, Res10m}

// ParseResolution validates s against the catalogue.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.TrimSpace(s))
	for _, known := range Resolutions {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownResolution, s, joinCodes(Resolutions))
}

func (r Resolution) String() string { return string(r) }

func joinCodes[T ~string](codes []T) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
