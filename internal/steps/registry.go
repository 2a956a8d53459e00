// internal/steps/registry.go
package steps

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind is the keyword a step is written with.
type Kind int

const (
	// Any matches steps written with any keyword.
	Any Kind = iota
	Given
	When
	Then
)

func (k Kind) String() string {
	switch k {
	case Given:
		return "Given"
	case When:
		return "When"
	case Then:
		return "Then"
	}
	return "*"
}

var (
	ErrNoMatch   = errors.New("no step definition matches")
	ErrAmbiguous = errors.New("more than one step definition matches")
)

// Handler executes one step. args holds the pattern's capture groups.
type Handler func(ctx context.Context, sc *Context, args []string) error

type definition struct {
	kind    Kind
	pattern *regexp.Regexp
	handler Handler
}

// Registry is an explicit table of step definitions. Patterns are anchored
// at both ends when registered.
type Registry struct {
	defs []definition
	seen map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]bool)}
}

// Register adds a definition. Invalid and duplicate patterns are rejected.
func (r *Registry) Register(kind Kind, pattern string, h Handler) error {
	if h == nil {
		return fmt.Errorf("step %q: nil handler", pattern)
	}
	key := kind.String() + " " + pattern
	if r.seen[key] {
		return fmt.Errorf("step %q: duplicate definition", pattern)
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("step %q: %w", pattern, err)
	}
	r.seen[key] = true
	r.defs = append(r.defs, definition{kind: kind, pattern: re, handler: h})
	return nil
}

// MustRegister is Register for definitions known at compile time.
func (r *Registry) MustRegister(kind Kind, pattern string, h Handler) {
	if err := r.Register(kind, pattern, h); err != nil {
		panic(err)
	}
}

// Len returns the number of definitions.
func (r *Registry) Len() int { return len(r.defs) }

// Match finds the single definition that matches text written with kind.
func (r *Registry) Match(kind Kind, text string) (Handler, []string, error) {
	var (
		found   Handler
		args    []string
		matches []string
	)
	for _, d := range r.defs {
		if d.kind != Any && kind != Any && d.kind != kind {
			continue
		}
		m := d.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		matches = append(matches, d.pattern.String())
		found, args = d.handler, m[1:]
	}
	switch len(matches) {
	case 0:
		return nil, nil, fmt.Errorf("%w: %s %q", ErrNoMatch, kind, text)
	case 1:
		return found, args, nil
	}
	return nil, nil, fmt.Errorf("%w: %s %q: %s", ErrAmbiguous, kind, text, strings.Join(matches, ", "))
}

// ParseStep splits a step line into its kind and text. "And" and "But"
// continue prev. A line without a keyword has kind Any.
func ParseStep(line string, prev Kind) (Kind, string) {
	line = strings.TrimSpace(line)
	keyword, rest, found := strings.Cut(line, " ")
	if !found {
		return Any, line
	}
	rest = strings.TrimSpace(rest)
	switch keyword {
	case "Given":
		return Given, rest
	case "When":
		return When, rest
	case "Then":
		return Then, rest
	case "And", "But":
		return prev, rest
	}
	return Any, line
}
