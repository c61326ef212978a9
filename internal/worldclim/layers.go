// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worldclim

import (
	"fmt"
	"strconv"
	"strings"
)

// LayerRule says how many layers an archive holds and how their indices
// are written.
type LayerRule struct {
	// Count is the number of layers, indexed 1..Count.
	Count int

	// Padded writes indices as two-digit zero-padded decimals ("07").
	Padded bool
}

// LayerPolicy maps each variable to its layer rule. Variables absent from
// the map fall back to Default.
type LayerPolicy struct {
	Default LayerRule
	Rules   map[Variable]LayerRule
}

// DefaultLayerPolicy returns the historic policy: 19 unpadded bioclimatic
// layers for bio and 12 padded monthly layers for everything else.
//
// elev is published as a single layer but keeps the monthly rule here;
// override it through configuration once the expected behaviour is settled.
func DefaultLayerPolicy() LayerPolicy {
	return LayerPolicy{
		Default: LayerRule{Count: 12, Padded: true},
		Rules: map[Variable]LayerRule{
			Bio: {Count: 19, Padded: false},
		},
	}
}

// With returns a copy of p with rule applied to v.
func (p LayerPolicy) With(v Variable, rule LayerRule) LayerPolicy {
	rules := make(map[Variable]LayerRule, len(p.Rules)+1)
	for k, r := range p.Rules {
		rules[k] = r
	}
	rules[v] = rule
	return LayerPolicy{Default: p.Default, Rules: rules}
}

// Rule returns the rule that applies to v.
func (p LayerPolicy) Rule(v Variable) LayerRule {
	if r, ok := p.Rules[v]; ok {
		return r
	}
	return p.Default
}

// Layer identifies one single-band raster inside a variable archive.
type Layer struct {
	Variable   Variable
	Resolution Resolution
	Index      int

	// IndexString is the index as it appears in file and column names.
	IndexString string
}

// Layers returns every layer of the (v, r) archive in ascending index order.
func (p LayerPolicy) Layers(v Variable, r Resolution) []Layer {
	rule := p.Rule(v)
	layers := make([]Layer, 0, rule.Count)
	for i := 1; i <= rule.Count; i++ {
		layers = append(layers, Layer{
			Variable:    v,
			Resolution:  r,
			Index:       i,
			IndexString: indexString(i, rule.Padded),
		})
	}
	return layers
}

func indexString(i int, padded bool) string {
	if padded {
		return fmt.Sprintf("%02d", i)
	}
	return strconv.Itoa(i)
}

// ArchiveURL returns the remote zip holding every layer of (v, r).
func ArchiveURL(baseURL string, r Resolution, v Variable) string {
	return fmt.Sprintf("%s/wc2.1_%s_%s.zip", strings.TrimRight(baseURL, "/"), r, v)
}

// MemberName returns the GeoTIFF file name of l inside its archive.
func MemberName(l Layer) string {
	return fmt.Sprintf("wc2.1_%s_%s_%s.tif", l.Resolution, l.Variable, l.IndexString)
}

// ColumnName returns the output column that receives l's values.
func ColumnName(l Layer) string {
	return fmt.Sprintf("%s_%s_%s", l.Variable, l.Resolution, l.IndexString)
}

// VSIPath returns the virtual path reading member from the zip at
// archiveURL over HTTP range requests.
func VSIPath(archiveURL, member string) string {
	return "/vsizip/vsicurl/" + archiveURL + "/" + member
}
