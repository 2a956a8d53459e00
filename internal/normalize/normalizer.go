// internal/normalize/normalizer.go
package normalize

import (
	"regexp"
)

// Rule rewrites one attribute-ordering variant into the canonical order.
// Replacement uses regexp template syntax (${1}, ${2}, ...).
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Apply rewrites every non-overlapping match in s.
func (r Rule) Apply(s string) string {
	return r.Pattern.ReplaceAllString(s, r.Replacement)
}

// The canonical order is the one the default serializer produces.
var (
	// RendStyle turns style="X" rend="Y" into rend="Y" style="X".
	RendStyle = Rule{
		Name:        "rend_style",
		Pattern:     regexp.MustCompile(`(style="[^"]*?") (rend="[^"]*?")`),
		Replacement: "${2} ${1}",
	}
	// Xmlns puts the default namespace declaration before xmlns:math.
	Xmlns = Rule{
		Name:        "xmlns",
		Pattern:     regexp.MustCompile(`(xmlns:math="[^"]*?") (xmlns="[^"]*?")`),
		Replacement: "${2} ${1}",
	}
	// DivAttrs moves subtype directly after type in the four-attribute div group.
	DivAttrs = Rule{
		Name:        "div_attrs",
		Pattern:     regexp.MustCompile(`(type="[^"]*?") (rend="[^"]*?") (rendition="[^"]*?") (subtype="[^"]*?")`),
		Replacement: "${1} ${4} ${2} ${3}",
	}
	// Moo puts MOO before moo. Attribute names are case sensitive.
	Moo = Rule{
		Name:        "moo",
		Pattern:     regexp.MustCompile(`(moo="[^"]*?") (MOO="[^"]*?")`),
		Replacement: "${2} ${1}",
	}
)

// RulesFor returns the ordered rule set needed for a browser identity.
// The returned slice is a fresh copy.
func RulesFor(id Identity) []Rule {
	switch id {
	case LegacyIE:
		return []Rule{RendStyle, Xmlns, DivAttrs}
	case LegacyEdge:
		return []Rule{RendStyle, DivAttrs, Moo}
	default:
		return nil
	}
}

// Normalizer applies an ordered list of rules. Later rules see the output of
// earlier ones.
type Normalizer struct {
	Rules []Rule
}

// NewNormalizer creates a new normalizer with the given rules.
func NewNormalizer(rules []Rule) *Normalizer {
	return &Normalizer{Rules: rules}
}

// ForIdentity returns the normalizer for documents serialized by id.
func ForIdentity(id Identity) *Normalizer {
	return NewNormalizer(RulesFor(id))
}

// Normalize returns data rewritten into canonical attribute order.
func (n *Normalizer) Normalize(data string) string {
	for _, r := range n.Rules {
		data = r.Apply(data)
	}
	return data
}

// Normalize is shorthand for ForIdentity(id).Normalize(data).
func Normalize(id Identity, data string) string {
	return ForIdentity(id).Normalize(data)
}
