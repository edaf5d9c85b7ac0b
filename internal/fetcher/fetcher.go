// Package fetcher downloads pages from the scraped sites with per-host
// rate limiting, retries and backoff.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher defines the interface for downloading remote pages.
type Fetcher interface {
	// Get fetches the URL and returns the response body.
	Get(ctx context.Context, url string) ([]byte, error)

	// GetWithHeaders fetches the URL with extra request headers. Headers
	// override the fetcher defaults (used for user-agent rotation).
	GetWithHeaders(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// StatusError reports a non-200 terminal response (after retries for
// transient codes). Scrapers check for 404 via this type when probing
// candidate slugs.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Code, e.URL)
}

// IsNotFound reports whether err is a StatusError with code 404.
func IsNotFound(err error) bool {
	se, ok := asStatusError(err)
	return ok && se.Code == 404
}
