// Package title provides the match-key normalization, similarity scoring
// and URL slug construction used to join films across sources.
package title

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parenthetical = regexp.MustCompile(`\(.*?\)`)
	nonWord       = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multiSpace    = regexp.MustCompile(`\s+`)
)

// foldDiacritics strips combining marks so "Les Misérables" and
// "Les Miserables" produce the same match key.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize produces the match key for a film title: lowercased,
// parentheticals removed, "&" spelled out, diacritics folded,
// punctuation stripped, whitespace collapsed, leading articles removed.
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	if s == "" {
		return ""
	}

	s = parenthetical.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", "and")
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = nonWord.ReplaceAllString(s, " ")
	s = strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))

	// Strip leading articles until none remain, so a second pass is a no-op.
	for {
		stripped := s
		for _, article := range []string{"the ", "a ", "an "} {
			if rest, ok := strings.CutPrefix(s, article); ok {
				stripped = rest
				break
			}
		}
		if stripped == s {
			break
		}
		s = stripped
	}

	return s
}

// Tokens splits a normalized title into its words.
func Tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}
