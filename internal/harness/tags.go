// internal/harness/tags.go
package harness

import "strings"

// SkipTag marks a scenario that never runs.
const SkipTag = "skip"

var (
	onlyPrefixes = []string{"only.with_", "use.with_", "active.with_"}
	notPrefixes  = []string{"not.with_", "not.active.with_"}
)

func cutTag(tag string, prefixes []string) (category, value string, ok bool) {
	for _, p := range prefixes {
		if rest, found := strings.CutPrefix(tag, p); found {
			return strings.Cut(rest, "=")
		}
	}
	return "", "", false
}

// Excluded reports whether active tags rule a scenario out for the given
// category values. Several "only" tags of one category allow any of their
// values. Tags for categories missing from values are ignored.
func Excluded(tags []string, values map[string]string) bool {
	allowed := map[string]bool{}
	constrained := map[string]bool{}
	for _, tag := range tags {
		tag = strings.TrimPrefix(tag, "@")
		if cat, val, ok := cutTag(tag, notPrefixes); ok {
			if cur, known := values[cat]; known && cur == val {
				return true
			}
			continue
		}
		if cat, val, ok := cutTag(tag, onlyPrefixes); ok {
			cur, known := values[cat]
			if !known {
				continue
			}
			constrained[cat] = true
			if cur == val {
				allowed[cat] = true
			}
		}
	}
	for cat := range constrained {
		if !allowed[cat] {
			return true
		}
	}
	return false
}
