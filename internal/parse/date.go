package parse

import (
	"strings"
	"time"
)

// dateFormats are tried in order. They cover the formats the scraped
// sites actually emit.
var dateFormats = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02",
	"01/02/2006",
}

// Date parses a date string in any of the known formats. Returns the
// zero time and false when nothing matches.
func Date(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
