package bom

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/filmlab/boxrdd/internal/fetcher"
	"github.com/filmlab/boxrdd/internal/model"
	"github.com/filmlab/boxrdd/internal/parse"
	"github.com/filmlab/boxrdd/internal/store"
)

var theaterCountRe = regexp.MustCompile(`([\d,]+)\s+theaters`)

// DetailScraper fetches per-release detail pages. Progress is
// checkpointed so an interrupted run resumes where it stopped.
type DetailScraper struct {
	fetch   fetcher.Fetcher
	cache   *store.Cache
	workers int
}

// NewDetailScraper creates a detail scraper. cache may be nil to
// disable checkpointing. workers below 1 is treated as 1.
func NewDetailScraper(fetch fetcher.Fetcher, cache *store.Cache, workers int) *DetailScraper {
	if workers < 1 {
		workers = 1
	}
	return &DetailScraper{fetch: fetch, cache: cache, workers: workers}
}

// ScrapeAll fetches the detail page for every index row and returns one
// DetailRow per film, in index order. A page that fails to fetch or
// parse still yields a row with nil metric fields; no film is dropped.
func (s *DetailScraper) ScrapeAll(ctx context.Context, index []model.IndexRow) ([]model.DetailRow, error) {
	const stage = "details"

	var runID string
	done := map[string]bool{}
	if s.cache != nil {
		var err error
		runID, err = s.cache.BeginRun(ctx, stage)
		if err != nil {
			return nil, err
		}
		done, err = s.cache.DoneSet(ctx, stage)
		if err != nil {
			return nil, err
		}
	}

	rows := make([]model.DetailRow, len(index))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, ir := range index {
		g.Go(func() error {
			row := s.scrapeOne(ctx, ir, done)
			mu.Lock()
			rows[i] = row
			mu.Unlock()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.cache != nil {
				if err := s.cache.MarkDone(ctx, stage, ir.ReleaseID, runID); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "bom: scrape details")
	}
	return rows, nil
}

func (s *DetailScraper) scrapeOne(ctx context.Context, ir model.IndexRow, done map[string]bool) model.DetailRow {
	row := model.DetailRow{ReleaseID: ir.ReleaseID, Title: ir.Title}

	var body []byte
	if s.cache != nil && done[ir.ReleaseID] {
		if cached, ok, err := s.cache.GetPage(ctx, ir.ReleaseURL); err == nil && ok {
			body = cached
		}
	}
	if body == nil {
		var err error
		body, err = s.fetch.Get(ctx, ir.ReleaseURL)
		if err != nil {
			zap.L().Warn("detail page fetch failed",
				zap.String("release_id", ir.ReleaseID),
				zap.String("title", ir.Title),
				zap.Error(err))
			return row
		}
		if s.cache != nil {
			if err := s.cache.PutPage(ctx, ir.ReleaseURL, body); err != nil {
				zap.L().Warn("detail page cache write failed",
					zap.String("release_id", ir.ReleaseID), zap.Error(err))
			}
		}
	}

	parsed, err := ParseReleasePage(body)
	if err != nil {
		zap.L().Warn("detail page parse failed",
			zap.String("release_id", ir.ReleaseID),
			zap.String("title", ir.Title),
			zap.Error(err))
		return row
	}
	parsed.ReleaseID = ir.ReleaseID
	parsed.Title = ir.Title
	return parsed
}

// ParseReleasePage extracts the labelled summary fields from a release
// detail page. Fields the page does not yield stay zero; partial
// extraction is not an error.
func ParseReleasePage(html []byte) (model.DetailRow, error) {
	var row model.DetailRow

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return row, eris.Wrap(err, "bom: parse detail html")
	}

	if parts := summaryValues(doc, "Opening"); len(parts) > 0 {
		row.OpeningGross = firstMoney(parts)
		row.OpeningTheaters = firstTheaterCount(parts)
	}
	if parts := summaryValues(doc, "Widest Release"); len(parts) > 0 {
		if row.WidestRelease = firstTheaterCount(parts); row.WidestRelease == nil {
			row.WidestRelease = parse.Money(parts[0])
		}
	}
	if parts := summaryValues(doc, "Domestic ("); len(parts) > 0 {
		row.DomesticGross = firstMoney(parts)
	}
	if parts := summaryValues(doc, "MPAA"); len(parts) > 0 {
		row.MPAARating = parts[0]
	}
	if parts := summaryValues(doc, "Genres"); len(parts) > 0 {
		row.Genres = normalizeGenres(parts[0])
	}
	if parts := summaryValues(doc, "Release Date"); len(parts) > 0 {
		if d, ok := parse.Date(parts[0]); ok {
			row.ReleaseDate = d.Format("2006-01-02")
		} else {
			row.ReleaseDate = parts[0]
		}
	}
	if parts := summaryValues(doc, "Distributor"); len(parts) > 0 {
		row.Distributor = strings.TrimSuffix(parts[0], "See full company information")
		row.Distributor = strings.TrimSpace(row.Distributor)
	}

	return row, nil
}

// summaryValues finds the summary block whose label span starts with
// label and returns the trimmed text of the sibling nodes after it.
func summaryValues(doc *goquery.Document, label string) []string {
	var parts []string
	doc.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		if !strings.HasPrefix(trimText(span), label) {
			return true
		}
		found := false
		span.Parent().Contents().Each(func(_ int, node *goquery.Selection) {
			txt := trimText(node)
			if txt == "" {
				return
			}
			if !found {
				found = strings.HasPrefix(txt, label)
				return
			}
			parts = append(parts, txt)
		})
		return false
	})
	return parts
}

func firstMoney(parts []string) *int64 {
	for _, p := range parts {
		if strings.Contains(p, "$") {
			if v := parse.Money(p); v != nil {
				return v
			}
		}
	}
	return nil
}

func firstTheaterCount(parts []string) *int64 {
	for _, p := range parts {
		if m := theaterCountRe.FindStringSubmatch(p); m != nil {
			return parse.Money(m[1])
		}
	}
	return nil
}

// normalizeGenres collapses the multi-line genre block into a single
// space-separated list.
func normalizeGenres(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func trimText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
