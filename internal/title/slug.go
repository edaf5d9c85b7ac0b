package title

import (
	"fmt"
	"regexp"
	"strings"
)

// slugPunct matches the punctuation the review site drops from slugs.
var slugPunct = regexp.MustCompile(`["\x60:,.!?;()\[\]{}]`)

var underscoreRuns = regexp.MustCompile(`_+`)

// SlugRule is one replacement applied to a title before the generic slug
// transform. Rules come from config because the site's punctuation
// handling is not fully pinned down.
type SlugRule struct {
	From string
	To   string
}

// ParseSlugRules parses "from=to" strings into rules. Malformed entries
// (no "=") are skipped.
func ParseSlugRules(raw []string) []SlugRule {
	rules := make([]SlugRule, 0, len(raw))
	for _, r := range raw {
		from, to, ok := strings.Cut(r, "=")
		if !ok || from == "" {
			continue
		}
		rules = append(rules, SlugRule{From: from, To: to})
	}
	return rules
}

// Slugs generates candidate review-page slugs for a title, most likely
// first: the base slug, a hyphens-to-underscores variant, and both with
// the release year appended (for ambiguous titles like "Smile"). A year
// of 0 skips the year variants.
func Slugs(title string, year int, rules []SlugRule) []string {
	slug := strings.ToLower(strings.TrimSpace(title))
	for _, r := range rules {
		slug = strings.ReplaceAll(slug, r.From, r.To)
	}
	slug = slugPunct.ReplaceAllString(slug, "")
	slug = multiSpace.ReplaceAllString(slug, "_")
	slug = underscoreRuns.ReplaceAllString(slug, "_")
	slug = strings.Trim(slug, "_")

	candidates := []string{slug}
	if strings.Contains(slug, "-") {
		candidates = append(candidates, strings.ReplaceAll(slug, "-", "_"))
	}
	if year != 0 {
		for _, c := range candidates[:len(candidates):len(candidates)] {
			candidates = append(candidates, fmt.Sprintf("%s_%d", c, year))
		}
	}

	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		unique = append(unique, c)
	}
	return unique
}
