// Package token finds, highlights and resolves {{name}} merge tokens in
// template text.
package token

import (
	"regexp"
)

var pattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)

// Find returns the distinct token names referenced in text, in order of
// first appearance.
func Find(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		if name := m[1]; !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Highlighter renders one token occurrence. match is the literal placeholder
// as it appears in the text.
type Highlighter func(name, match string) string

// SpanHighlighter wraps a token in <span class="merge-token">.
func SpanHighlighter(_, match string) string {
	return `<span class="merge-token">` + match + `</span>`
}

// Highlight wraps every token occurrence in a merge-token span. Text outside
// tokens is left untouched.
func Highlight(text string) string {
	return HighlightWith(text, SpanHighlighter)
}

// HighlightWith renders every token occurrence with h.
func HighlightWith(text string, h Highlighter) string {
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		return h(nameOf(match), match)
	})
}

// Resolve replaces every token that has a value. Values may themselves
// contain tokens, which are expanded too, and the text is rescanned until no
// substitution forms a new token. Tokens without a value, and tokens whose
// expansion would loop back on itself, are left in place verbatim, so Find on
// the result reports what is still unresolved and resolving the result again
// changes nothing. Text whose rescans keep growing is returned unchanged.
func Resolve(text string, values map[string]string) string {
	if len(values) == 0 {
		return text
	}
	r := newResolver(values)

	cur := r.pass(text)
	limit := max(maxGrowth, 4*len(cur))
	seen := map[string]bool{text: true}
	for i := 0; i < maxPasses && !seen[cur]; i++ {
		seen[cur] = true
		next := r.pass(cur)
		if next == cur {
			return cur
		}
		if len(next) > limit {
			return text
		}
		cur = next
	}
	if !seen[cur] {
		return text
	}
	return cur
}

const (
	maxPasses = 64
	maxGrowth = 1 << 20
)

// pass replaces every token of text once with its expanded value.
func (r *resolver) pass(text string) string {
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		if v, ok := r.expand(nameOf(match)); ok {
			return v
		}
		return match
	})
}

// Unresolved returns the tokens still present after resolving text with
// values.
func Unresolved(text string, values map[string]string) []string {
	return Find(Resolve(text, values))
}

func nameOf(match string) string {
	return pattern.FindStringSubmatch(match)[1]
}

type visit int

const (
	unvisited visit = iota
	visiting
	visited
)

type resolver struct {
	values   map[string]string
	state    map[string]visit
	expanded map[string]string
	cyclic   map[string]bool
}

func newResolver(values map[string]string) *resolver {
	return &resolver{
		values:   values,
		state:    make(map[string]visit),
		expanded: make(map[string]string),
		cyclic:   make(map[string]bool),
	}
}

// expand returns the fully expanded value of name. It reports false when name
// has no value or its expansion reaches a cycle.
func (r *resolver) expand(name string) (string, bool) {
	switch r.state[name] {
	case visiting:
		return "", false
	case visited:
		v, ok := r.expanded[name]
		return v, ok
	}

	raw, ok := r.values[name]
	if !ok {
		return "", false
	}

	r.state[name] = visiting
	loops := false
	out := pattern.ReplaceAllStringFunc(raw, func(match string) string {
		inner := nameOf(match)
		v, ok := r.expand(inner)
		if ok {
			return v
		}
		if r.state[inner] == visiting || r.cyclic[inner] {
			loops = true
		}
		return match
	})
	r.state[name] = visited

	if loops {
		r.cyclic[name] = true
		return "", false
	}
	r.expanded[name] = out
	return out, true
}
