// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// FoldList trims and lowercases each value, dropping blanks and repeats.
// The first occurrence keeps its position.
//
//	FoldList([]string{" Mailinator.com", "", "mailinator.com ", "tempmail.org"})
//	// []string{"mailinator.com", "tempmail.org"}
func FoldList(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		folded := strings.ToLower(strings.TrimSpace(v))
		if folded == "" {
			continue
		}
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		out = append(out, folded)
	}
	return out
}

// FoldSet is FoldList as a membership set.
func FoldSet(values []string) map[string]struct{} {
	folded := FoldList(values)
	set := make(map[string]struct{}, len(folded))
	for _, v := range folded {
		set[v] = struct{}{}
	}
	return set
}
