// Package parse holds small pure parsers for scraped text values.
package parse

import (
	"strconv"
	"strings"
)

// Money parses dollar strings like "$154,201,673", "$1.2B", "$400M" into
// whole dollars. Dashes, "n/a" and empty strings parse to nil. Plain
// numbers ("4,440") work too, so it doubles as a thousands-separated
// integer parser for theater counts.
func Money(text string) *int64 {
	s := strings.TrimSpace(text)
	switch s {
	case "", "-", "–", "—", "n/a", "N/A":
		return nil
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'B', 'b':
		mult = 1_000_000_000
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1_000_000
		s = s[:len(s)-1]
	case 'K', 'k':
		mult = 1_000
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int64(f * float64(mult))
	return &v
}
