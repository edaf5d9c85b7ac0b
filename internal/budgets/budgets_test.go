package budgets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmlab/boxrdd/internal/fetcher"
	"github.com/filmlab/boxrdd/internal/resilience"
)

func budgetRow(rank int, date, name, budget, domestic, worldwide string) string {
	return fmt.Sprintf(
		"<tr><td>%d</td><td>%s</td><td><a href=\"#\">%s</a></td><td>%s</td><td>%s</td><td>%s</td></tr>",
		rank, date, name, budget, domestic, worldwide)
}

func budgetPage(rows ...string) string {
	return "<html><body><table><tr><th>Rank</th></tr>" + strings.Join(rows, "") + "</table></body></html>"
}

func TestParsePage(t *testing.T) {
	page := budgetPage(
		budgetRow(1, "Dec 17, 2021", "Example Movie", "$200,000,000", "$814,866,759", "$1,921,207,343"),
		budgetRow(2, "Jun 1, 2019", "The Example Movie", "$55,000,000", "$100", "$200"),
	)

	rows, err := ParsePage([]byte(page))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	r := rows[0]
	require.NotNil(t, r.Rank)
	assert.Equal(t, 1, *r.Rank)
	assert.Equal(t, "Example Movie", r.Title)
	assert.Equal(t, "2021-12-17", r.ReleaseDate)
	require.NotNil(t, r.ReleaseYear)
	assert.Equal(t, 2021, *r.ReleaseYear)
	require.NotNil(t, r.Budget)
	assert.Equal(t, int64(200_000_000), *r.Budget)
	assert.Equal(t, "example movie", r.TitleNormalized)

	// leading article stripped during normalization
	assert.Equal(t, "example movie", rows[1].TitleNormalized)
}

func TestParsePageSkipsShortRows(t *testing.T) {
	page := budgetPage("<tr><td>1</td><td>oops</td></tr>")
	rows, err := ParsePage([]byte(page))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParsePageUnparseableDateKeptRaw(t *testing.T) {
	page := budgetPage(budgetRow(1, "Unknown", "Mystery Film", "$5,000,000", "-", "-"))
	rows, err := ParsePage([]byte(page))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Unknown", rows[0].ReleaseDate)
	assert.Nil(t, rows[0].ReleaseYear)
	assert.Nil(t, rows[0].DomesticGross)
}

func TestScrapeAllPaginates(t *testing.T) {
	// page 1: full 100 rows; page 101: 3 rows (short page ends the walk)
	var fullRows []string
	for i := 1; i <= 100; i++ {
		fullRows = append(fullRows, budgetRow(i, "Jan 1, 2022", fmt.Sprintf("Film %d", i), "$1,000,000", "$1", "$2"))
	}
	lastRows := []string{
		budgetRow(101, "Feb 1, 2022", "Film 101", "$1,000,000", "$1", "$2"),
		budgetRow(102, "Feb 2, 2022", "Film 102", "$1,000,000", "$1", "$2"),
		budgetRow(103, "Feb 3, 2022", "Film 103", "$1,000,000", "$1", "$2"),
	}

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/movie/budgets/all":
			fmt.Fprint(w, budgetPage(fullRows...))
		case "/movie/budgets/all/101":
			fmt.Fprint(w, budgetPage(lastRows...))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewScraper(testFetcher(), srv.URL)
	rows, err := s.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 103)
	assert.Equal(t, []string{"/movie/budgets/all", "/movie/budgets/all/101"}, paths)
}

func TestScrapeAllFirstPageFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewScraper(testFetcher(), srv.URL)
	_, err := s.ScrapeAll(context.Background())
	require.Error(t, err)
}

func TestScrapeAllStopsOnLaterFailure(t *testing.T) {
	var fullRows []string
	for i := 1; i <= 100; i++ {
		fullRows = append(fullRows, budgetRow(i, "Jan 1, 2022", fmt.Sprintf("Film %d", i), "$1", "$1", "$2"))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/movie/budgets/all" {
			fmt.Fprint(w, budgetPage(fullRows...))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewScraper(testFetcher(), srv.URL)
	rows, err := s.ScrapeAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 100)
}

func testFetcher() fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		UserAgent: "boxrdd-test",
		Timeout:   5 * time.Second,
		Retry:     resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
}
