// Package tags canonicalizes free-text tags and holds the per-source tag
// vocabulary.
package tags

import (
	"strings"
	"unicode"
)

// MaxLength is the maximum number of characters kept in a normalized tag.
const MaxLength = 30

// Normalize canonicalizes a single tag: lowercased, restricted to letters,
// digits, spaces and hyphens, whitespace collapsed and capped at MaxLength
// characters. Empty input yields "".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	lowered := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	tag := strings.Join(strings.Fields(b.String()), " ")

	if runes := []rune(tag); len(runes) > MaxLength {
		tag = strings.TrimRightFunc(string(runes[:MaxLength]), unicode.IsSpace)
	}
	return tag
}

// NormalizeList normalizes every tag, drops empty results and removes
// duplicates keeping the first occurrence. The result is never nil.
func NormalizeList(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Merge appends extra to base and normalizes the union.
func Merge(base []string, extra ...string) []string {
	all := make([]string, 0, len(base)+len(extra))
	all = append(all, base...)
	all = append(all, extra...)
	return NormalizeList(all)
}
