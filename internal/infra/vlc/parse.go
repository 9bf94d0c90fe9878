package vlc

import (
	"math"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/xmlpath.v2"
)

// text returns the trimmed text of the first match, or "".
func text(p *xmlpath.Path, node *xmlpath.Node) string {
	s, ok := p.String(node)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// number returns the first match as a float. Missing or non-numeric values yield 0.
func number(p *xmlpath.Path, node *xmlpath.Node) float64 {
	return toNumber(text(p, node))
}

func toNumber(s string) float64 {
	v := cast.ToFloat64(strings.TrimSpace(s))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// flag returns the first match as a bool. Anything but a true literal yields false.
func flag(p *xmlpath.Path, node *xmlpath.Node) bool {
	return cast.ToBool(text(p, node))
}

// yes reports whether an attribute carries the player's "yes" literal.
func yes(p *xmlpath.Path, node *xmlpath.Node) bool {
	return strings.EqualFold(text(p, node), "yes")
}

// round2 rounds to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
