// Package normalize canonicalizes checkpoint, category, and topic names.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

// Key returns the canonical form of a name: case-folded, trimmed, with
// internal whitespace runs collapsed to a single space. Equivalent human
// phrasings such as "Pricing  Model" and "pricing model" map to one key.
func Key(s string) string {
	// Caser values are stateful and not safe to share across goroutines.
	folded := cases.Fold().String(s)
	return strings.Join(strings.Fields(folded), " ")
}

// Keys normalizes every name, dropping blanks and duplicates while keeping
// first-seen order.
func Keys(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		k := Key(n)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
