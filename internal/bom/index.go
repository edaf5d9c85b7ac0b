// Package bom scrapes the box-office site: yearly index tables and
// per-release detail pages.
package bom

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/fetcher"
	"github.com/filmlab/boxrdd/internal/model"
	"github.com/filmlab/boxrdd/internal/parse"
)

var releaseIDRe = regexp.MustCompile(`/release/(rl\d+)/`)

// IndexScraper fetches yearly box-office index pages.
type IndexScraper struct {
	fetch   fetcher.Fetcher
	baseURL string
}

// NewIndexScraper creates an index scraper against the given site base URL.
func NewIndexScraper(fetch fetcher.Fetcher, baseURL string) *IndexScraper {
	return &IndexScraper{fetch: fetch, baseURL: baseURL}
}

// ScrapeYears fetches the index page for each year and returns one row
// per film, deduplicated on release ID (December releases appear on two
// year pages). A failed or malformed year page is logged and skipped;
// only zero usable years is an error.
func (s *IndexScraper) ScrapeYears(ctx context.Context, years []int) ([]model.IndexRow, error) {
	var all []model.IndexRow
	okYears := 0

	for _, year := range years {
		url := fmt.Sprintf("%s/year/%d/", s.baseURL, year)
		body, err := s.fetch.Get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Error("index year fetch failed, skipping",
				zap.Int("year", year), zap.Error(err))
			continue
		}

		rows, err := ParseYearPage(body, year)
		if err != nil {
			zap.L().Error("index year parse failed, skipping",
				zap.Int("year", year), zap.Error(err))
			continue
		}
		zap.L().Info("index year scraped", zap.Int("year", year), zap.Int("films", len(rows)))
		all = append(all, rows...)
		okYears++
	}

	if okYears == 0 {
		return nil, eris.New("bom: no index year pages could be scraped")
	}

	return dedupeByReleaseID(all), nil
}

// ParseYearPage parses a yearly index page into partial film records.
func ParseYearPage(html []byte, year int) ([]model.IndexRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "bom: parse index html")
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, &model.ParseError{Source: "bom_index", Field: "table", Detail: fmt.Sprintf("no table on year %d page", year)}
	}

	var rows []model.IndexRow
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return // header
		}
		cells := tr.Find("td")
		if cells.Length() < 10 {
			return
		}

		link := cells.Eq(1).Find("a").First()
		title := trimText(link)
		href, _ := link.Attr("href")
		m := releaseIDRe.FindStringSubmatch(href)
		if title == "" || m == nil {
			return
		}
		releaseID := m[1]

		rows = append(rows, model.IndexRow{
			ReleaseID:      releaseID,
			Title:          title,
			YearGross:      parse.Money(trimText(cells.Eq(5))),
			MaxTheaters:    parse.Money(trimText(cells.Eq(6))),
			TotalGross:     parse.Money(trimText(cells.Eq(7))),
			ReleaseDateRaw: trimText(cells.Eq(8)),
			Year:           year,
			Distributor:    trimText(cells.Eq(9)),
			ReleaseURL:     fmt.Sprintf("https://www.boxofficemojo.com/release/%s/", releaseID),
		})
	})

	return rows, nil
}

func dedupeByReleaseID(rows []model.IndexRow) []model.IndexRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if seen[r.ReleaseID] {
			continue
		}
		seen[r.ReleaseID] = true
		out = append(out, r)
	}
	return out
}
