package acoustic

import "strings"

// Epsilon is the Kaldi symbol for the empty phone.
const Epsilon = "<eps>"

// DisambigMarker marks disambiguation symbols such as "#0" in a phone table.
const DisambigMarker = "#"

// Context is the phonetic context of one decision-tree leaf.
// A monophone context has empty Left and Right.
type Context struct {
	Left   string
	Center string
	Right  string
}

// Monophone returns the context of a context-independent phone.
func Monophone(phone string) Context {
	return Context{Center: phone}
}

// NewTriphone returns a left-center+right context.
func NewTriphone(left, center, right string) Context {
	return Context{Left: left, Center: center, Right: right}
}

// IsMonophone reports whether the context carries no neighbours.
func (c Context) IsMonophone() bool {
	return c.Left == "" && c.Right == ""
}

// Phones returns the phones of the context in left-to-right order.
func (c Context) Phones() []string {
	if c.IsMonophone() {
		return []string{c.Center}
	}
	return []string{c.Left, c.Center, c.Right}
}

// HasDisambiguation reports whether any phone of the context is a
// disambiguation symbol.
func (c Context) HasDisambiguation() bool {
	for _, p := range c.Phones() {
		if strings.Contains(p, DisambigMarker) {
			return true
		}
	}
	return false
}

// HasEpsilon reports whether any phone of the context is <eps>.
func (c Context) HasEpsilon() bool {
	for _, p := range c.Phones() {
		if strings.Contains(p, Epsilon) {
			return true
		}
	}
	return false
}
