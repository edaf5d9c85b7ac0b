// Package budgets scrapes the production-budget listing, which is one
// long table paginated 100 rows at a time.
package budgets

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/fetcher"
	"github.com/filmlab/boxrdd/internal/model"
	"github.com/filmlab/boxrdd/internal/parse"
	"github.com/filmlab/boxrdd/internal/title"
)

const rowsPerPage = 100

// Scraper paginates the budget table.
type Scraper struct {
	fetch   fetcher.Fetcher
	baseURL string
}

// NewScraper creates a budget scraper against the given site base URL.
func NewScraper(fetch fetcher.Fetcher, baseURL string) *Scraper {
	return &Scraper{fetch: fetch, baseURL: baseURL}
}

// ScrapeAll walks every page of the budget table. Pagination stops at
// the first empty or short page; a fetch failure after at least one
// good page ends the walk rather than failing the stage.
func (s *Scraper) ScrapeAll(ctx context.Context) ([]model.BudgetRow, error) {
	var all []model.BudgetRow

	for offset := 1; ; offset += rowsPerPage {
		url := s.pageURL(offset)
		body, err := s.fetch.Get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if len(all) == 0 {
				return nil, eris.Wrap(err, "budgets: fetch first page")
			}
			zap.L().Warn("budget page fetch failed, stopping pagination",
				zap.Int("offset", offset), zap.Error(err))
			break
		}

		rows, err := ParsePage(body)
		if err != nil {
			if len(all) == 0 {
				return nil, err
			}
			zap.L().Warn("budget page parse failed, stopping pagination",
				zap.Int("offset", offset), zap.Error(err))
			break
		}
		if len(rows) == 0 {
			zap.L().Info("no more budget rows", zap.Int("offset", offset))
			break
		}

		all = append(all, rows...)
		zap.L().Debug("budget page scraped",
			zap.Int("offset", offset), zap.Int("total", len(all)))

		if len(rows) < rowsPerPage {
			break
		}
	}

	if len(all) == 0 {
		return nil, eris.New("budgets: no rows scraped")
	}
	zap.L().Info("budget scrape complete", zap.Int("films", len(all)))
	return all, nil
}

func (s *Scraper) pageURL(offset int) string {
	if offset == 1 {
		return s.baseURL + "/movie/budgets/all"
	}
	return fmt.Sprintf("%s/movie/budgets/all/%d", s.baseURL, offset)
}

// ParsePage parses one page of the budget table. Columns are rank,
// release date, title, production budget, domestic gross, worldwide
// gross. Malformed rows are skipped.
func ParsePage(html []byte) ([]model.BudgetRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "budgets: parse html")
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, &model.ParseError{Source: "the_numbers", Field: "table", Detail: "no table on budget page"}
	}

	var rows []model.BudgetRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 6 {
			return
		}

		name := cellText(cells, 2)
		if name == "" {
			return
		}

		row := model.BudgetRow{
			Title:           name,
			Budget:          parse.Money(cellText(cells, 3)),
			DomesticGross:   parse.Money(cellText(cells, 4)),
			WorldwideGross:  parse.Money(cellText(cells, 5)),
			TitleNormalized: title.Normalize(name),
		}

		if rank, err := strconv.Atoi(cellText(cells, 0)); err == nil {
			row.Rank = model.IntPtr(rank)
		}

		dateText := cellText(cells, 1)
		if d, ok := parse.Date(dateText); ok {
			row.ReleaseDate = d.Format("2006-01-02")
			row.ReleaseYear = model.IntPtr(d.Year())
		} else {
			row.ReleaseDate = dateText
		}

		rows = append(rows, row)
	})

	return rows, nil
}

func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}
