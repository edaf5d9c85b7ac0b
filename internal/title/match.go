package title

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// MatchScore rates how well a candidate (title, year) matches a target
// (title, year) on a 0-100 scale. It is a pure function of its inputs so
// matching behavior is testable without live pages. A year of 0 means
// unknown and contributes nothing.
//
// Scoring: exact normalized equality 100, containment 80, otherwise the
// better of Jaro-Winkler similarity and token overlap scaled to 70, plus
// a bonus of 10 when the years agree exactly and 5 when they are one
// apart.
func MatchScore(candTitle string, candYear int, targetTitle string, targetYear int) float64 {
	cand := Normalize(candTitle)
	target := Normalize(targetTitle)
	if cand == "" || target == "" {
		return 0
	}

	var score float64
	switch {
	case cand == target:
		score = 100
	case contains(cand, target) || contains(target, cand):
		score = 80
	default:
		jw := matchr.JaroWinkler(cand, target, false)
		score = max(jw, tokenOverlap(cand, target)) * 70
	}

	if candYear != 0 && targetYear != 0 {
		switch diff := abs(candYear - targetYear); diff {
		case 0:
			score += 10
		case 1:
			score += 5
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// tokenOverlap is the share of shared words relative to the larger
// title, in [0, 1].
func tokenOverlap(a, b string) float64 {
	at := Tokens(a)
	bt := Tokens(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	set := make(map[string]bool, len(at))
	for _, w := range at {
		set[w] = true
	}
	shared := 0
	for _, w := range bt {
		if set[w] {
			shared++
		}
	}
	denom := len(at)
	if len(bt) > denom {
		denom = len(bt)
	}
	return float64(shared) / float64(denom)
}

func contains(haystack, needle string) bool {
	if len(needle) >= len(haystack) {
		return false
	}
	return strings.Contains(haystack, needle)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
