package core

import (
	"strings"
	"unicode"
)

// Normalize filters records with an empty identifier and, when dedup is set,
// collapses records that share an identifier once all whitespace is removed.
//
// With dedup the stored identifier is the stripped key and the first record
// seen for a key wins outright; without dedup identifiers are kept as given.
// Output order follows first appearance. The input slice is not modified.
func Normalize(records []Record, dedup bool) []Record {
	out := make([]Record, 0, len(records))

	if !dedup {
		for _, r := range records {
			if strings.TrimSpace(r.Identifier) != "" {
				out = append(out, r)
			}
		}
		return out
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		key := StripSpace(r.Identifier)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Record{Identifier: key, Label: r.Label, Quantity: r.Quantity})
	}
	return out
}

// StripSpace removes every Unicode whitespace rune from s.
func StripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
