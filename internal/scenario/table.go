// Package scenario holds the expected serialization for each named scenario
// and loads scenario definitions from YAML.
package scenario

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownScenario is returned for a scenario name with no expected entry.
// It is an authoring error and never worth retrying.
var ErrUnknownScenario = errors.New("unknown scenario")

// Table maps scenario names to the exact document a save must produce. A
// Table never changes after construction and is safe for concurrent use.
type Table struct {
	entries map[string]string
}

// NewTable copies entries into a new Table.
func NewTable(entries map[string]string) *Table {
	t := &Table{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t
}

// Builtin returns the table shipped with the harness.
func Builtin() *Table { return NewTable(builtinExpected) }

// Lookup returns the expected document for name.
func (t *Table) Lookup(name string) (string, error) {
	v, ok := t.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return v, nil
}

// Has reports whether name has an entry.
func (t *Table) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Names returns the scenario names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for k := range t.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// With returns a new Table holding t's entries plus extra. Redefining an
// existing name with a different document is an error.
func (t *Table) With(extra map[string]string) (*Table, error) {
	out := NewTable(t.entries)
	for k, v := range extra {
		if old, ok := out.entries[k]; ok && old != v {
			return nil, fmt.Errorf("scenario %q already has a different expected document", k)
		}
		out.entries[k] = v
	}
	return out, nil
}
