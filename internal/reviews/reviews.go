// Package reviews locates each film's page on the review site and
// extracts its critic and audience scores.
//
// Page location is two-stage: candidate URL slugs built from the title
// (cheap, usually right), then the site's search page scored against
// the film's title and year. Films that match neither are recorded as
// unmatched rather than dropped.
package reviews

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/fetcher"
	"github.com/filmlab/boxrdd/internal/model"
	"github.com/filmlab/boxrdd/internal/parse"
	"github.com/filmlab/boxrdd/internal/store"
	"github.com/filmlab/boxrdd/internal/title"
)

var movieHrefRe = regexp.MustCompile(`/m/[^/"]+`)

var scriptSlugRe = regexp.MustCompile(`"/m/([^"]+)"`)

// Options configures a review scraper.
type Options struct {
	BaseURL string
	// UserAgents are rotated request to request; the site serves
	// skeleton pages to clients it decides are bots.
	UserAgents []string
	SlugRules  []title.SlugRule
	// SearchThreshold is the minimum match score (0-100) a search result
	// needs before its page is fetched.
	SearchThreshold float64
}

// Scraper scrapes the review site. Requests go out sequentially; the
// rate limiter and user-agent rotation are what keep the site friendly,
// not parallelism.
type Scraper struct {
	fetch   fetcher.Fetcher
	cache   *store.Cache
	opts    Options
	uaIndex int
}

// NewScraper creates a review scraper. cache may be nil to disable
// checkpointing.
func NewScraper(fetch fetcher.Fetcher, cache *store.Cache, opts Options) *Scraper {
	if opts.SearchThreshold == 0 {
		opts.SearchThreshold = 50
	}
	return &Scraper{fetch: fetch, cache: cache, opts: opts}
}

// ScrapeAll locates and scrapes the review page for every film, in
// input order. Already-checkpointed films whose pages are cached are
// re-extracted from cache instead of re-fetched.
func (s *Scraper) ScrapeAll(ctx context.Context, films []model.DetailRow) ([]model.ScoreRow, error) {
	const stage = "reviews"

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

	rows := make([]model.ScoreRow, 0, len(films))
	matched := 0
	for _, film := range films {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		row := s.scrapeOne(ctx, film, done)
		if row.MatchMethod != model.MatchUnmatched {
			matched++
		}
		rows = append(rows, row)
		if s.cache != nil {
			if err := s.cache.MarkDone(ctx, stage, film.ReleaseID, runID); err != nil {
				return nil, err
			}
		}
	}

	zap.L().Info("review scrape complete",
		zap.Int("films", len(rows)),
		zap.Int("matched", matched),
		zap.Int("unmatched", len(rows)-matched))
	return rows, nil
}

// RescrapeMissing retries films that matched a page but yielded no
// scores (skeleton pages, or a wrong film behind an ambiguous slug like
// "smile"). Year-appended slugs go first this time and requests carry a
// Referer, which gets past most of the skeleton responses. Rows are
// updated in place; already-scored rows are left alone.
func (s *Scraper) RescrapeMissing(ctx context.Context, rows []model.ScoreRow, films []model.DetailRow) (int, error) {
	years := make(map[string]int, len(films))
	titles := make(map[string]string, len(films))
	for _, f := range films {
		years[f.ReleaseID] = releaseYear(f.ReleaseDate)
		titles[f.ReleaseID] = f.Title
	}

	recovered := 0
	for i := range rows {
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}
		r := &rows[i]
		if r.CriticScore != nil || r.AudienceScore != nil {
			continue
		}
		t := titles[r.ReleaseID]
		if t == "" {
			t = r.TitleSearched
		}
		year := years[r.ReleaseID]

		slugs := yearFirstSlugs(t, year, s.opts.SlugRules)
		fresh, ok := s.tryCandidates(ctx, t, slugs, true)
		method := model.MatchDirect
		if !ok {
			fresh, ok = s.trySearch(ctx, t, year, true)
			method = model.MatchSearch
		}
		if !ok || !fresh.data.HasScores() {
			continue
		}

		r.URL = fresh.url
		r.PageTitle = fresh.data.PageTitle
		r.CriticScore = fresh.data.CriticScore
		r.AudienceScore = fresh.data.AudienceScore
		r.CriticCount = fresh.data.CriticCount
		r.AudienceCount = fresh.data.AudienceCount
		r.Genres = fresh.data.Genres
		r.ContentRating = fresh.data.ContentRating
		r.MatchMethod = method
		recovered++
		zap.L().Info("recovered scores on rescrape",
			zap.String("release_id", r.ReleaseID), zap.String("title", t))
	}

	zap.L().Info("rescrape complete", zap.Int("recovered", recovered))
	return recovered, nil
}

type pageHit struct {
	url  string
	data PageData
}

func (s *Scraper) scrapeOne(ctx context.Context, film model.DetailRow, done map[string]bool) model.ScoreRow {
	row := model.ScoreRow{
		ReleaseID:     film.ReleaseID,
		TitleSearched: film.Title,
		MatchMethod:   model.MatchUnmatched,
	}
	year := releaseYear(film.ReleaseDate)

	if s.cache != nil && done[film.ReleaseID] {
		if hit, ok := s.cachedHit(ctx, film.Title, year); ok {
			fillRow(&row, hit, model.MatchDirect)
			return row
		}
	}

	if hit, ok := s.tryCandidates(ctx, film.Title, title.Slugs(film.Title, year, s.opts.SlugRules), false); ok {
		fillRow(&row, hit, model.MatchDirect)
		return row
	}
	if hit, ok := s.trySearch(ctx, film.Title, year, false); ok {
		fillRow(&row, hit, model.MatchSearch)
		return row
	}

	zap.L().Debug("no review page found",
		zap.String("release_id", film.ReleaseID), zap.String("title", film.Title))
	return row
}

func fillRow(row *model.ScoreRow, hit pageHit, method model.MatchMethod) {
	row.URL = hit.url
	row.PageTitle = hit.data.PageTitle
	row.CriticScore = hit.data.CriticScore
	row.AudienceScore = hit.data.AudienceScore
	row.CriticCount = hit.data.CriticCount
	row.AudienceCount = hit.data.AudienceCount
	row.Genres = hit.data.Genres
	row.ContentRating = hit.data.ContentRating
	row.MatchMethod = method
}

// cachedHit re-extracts a previously fetched page from the cache.
func (s *Scraper) cachedHit(ctx context.Context, filmTitle string, year int) (pageHit, bool) {
	for _, slug := range title.Slugs(filmTitle, year, s.opts.SlugRules) {
		u := s.movieURL(slug)
		body, ok, err := s.cache.GetPage(ctx, u)
		if err != nil || !ok {
			continue
		}
		data := ExtractPage(body)
		if !s.titleMatches(filmTitle, data.PageTitle) {
			continue
		}
		return pageHit{url: u, data: data}, true
	}
	return pageHit{}, false
}

// tryCandidates probes candidate slugs in order and returns the first
// page that resolves to the right film. 404s mean wrong slug and are
// expected; a resolving page about a different film (slug collision)
// falls through to the next candidate.
func (s *Scraper) tryCandidates(ctx context.Context, filmTitle string, slugs []string, referer bool) (pageHit, bool) {
	for _, slug := range slugs {
		u := s.movieURL(slug)
		body, err := s.get(ctx, u, referer)
		if err != nil {
			if !fetcher.IsNotFound(err) && ctx.Err() == nil {
				zap.L().Debug("candidate slug fetch failed",
					zap.String("url", u), zap.Error(err))
			}
			continue
		}
		s.putPage(ctx, u, body)
		data := ExtractPage(body)
		if !s.titleMatches(filmTitle, data.PageTitle) {
			zap.L().Debug("page title mismatch",
				zap.String("url", u),
				zap.String("page_title", data.PageTitle),
				zap.String("wanted", filmTitle))
			continue
		}
		return pageHit{url: u, data: data}, true
	}
	return pageHit{}, false
}

// titleMatches guards against slug collisions. Skeleton pages carry no
// title and pass; the rescrape pass deals with those.
func (s *Scraper) titleMatches(filmTitle, pageTitle string) bool {
	if pageTitle == "" {
		return true
	}
	return title.MatchScore(pageTitle, 0, filmTitle, 0) >= s.opts.SearchThreshold
}

// trySearch runs the site search and fetches the best-scoring result
// above the threshold.
func (s *Scraper) trySearch(ctx context.Context, filmTitle string, year int, referer bool) (pageHit, bool) {
	searchURL := s.opts.BaseURL + "/search?search=" + url.QueryEscape(filmTitle)
	body, err := s.get(ctx, searchURL, referer)
	if err != nil {
		zap.L().Debug("search fetch failed", zap.String("title", filmTitle), zap.Error(err))
		return pageHit{}, false
	}

	best, score := s.bestSearchResult(body, filmTitle, year)
	if best == "" || score < s.opts.SearchThreshold {
		return pageHit{}, false
	}

	pageBody, err := s.get(ctx, best, referer)
	if err != nil {
		zap.L().Debug("search result fetch failed", zap.String("url", best), zap.Error(err))
		return pageHit{}, false
	}
	s.putPage(ctx, best, pageBody)
	return pageHit{url: best, data: ExtractPage(pageBody)}, true
}

// bestSearchResult scores every movie link on a search page against the
// target title and year and returns the winner.
func (s *Scraper) bestSearchResult(html []byte, filmTitle string, year int) (string, float64) {
	type link struct {
		url  string
		text string
	}
	var links []link
	seen := map[string]bool{}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html))); err == nil {
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if !movieHrefRe.MatchString(href) {
				return
			}
			text := strings.TrimSpace(a.Text())
			if text == "" {
				return
			}
			if strings.HasPrefix(href, "/") {
				href = s.opts.BaseURL + href
			}
			if seen[href] {
				return
			}
			seen[href] = true
			links = append(links, link{url: href, text: text})
		})
		// search pages also carry result slugs inside script tags
		doc.Find("script").Each(func(_ int, sc *goquery.Selection) {
			for _, m := range scriptSlugRe.FindAllStringSubmatch(sc.Text(), -1) {
				u := s.movieURL(m[1])
				if seen[u] {
					continue
				}
				seen[u] = true
				links = append(links, link{url: u, text: strings.ReplaceAll(m[1], "_", " ")})
			}
		})
	}

	var bestURL string
	var bestScore float64
	yearStr := ""
	if year != 0 {
		yearStr = "_" + strconv.Itoa(year)
	}
	for _, l := range links {
		score := title.MatchScore(l.text, 0, filmTitle, 0)
		if yearStr != "" && strings.Contains(l.url, yearStr) {
			score += 10
		}
		if score > bestScore {
			bestScore = score
			bestURL = l.url
		}
	}
	return bestURL, bestScore
}

func (s *Scraper) get(ctx context.Context, u string, referer bool) ([]byte, error) {
	headers := map[string]string{
		"User-Agent": s.nextUserAgent(),
	}
	if referer {
		headers["Referer"] = s.opts.BaseURL + "/"
	}
	body, err := s.fetch.GetWithHeaders(ctx, u, headers)
	if err != nil {
		return nil, eris.Wrap(err, "reviews: fetch")
	}
	return body, nil
}

func (s *Scraper) putPage(ctx context.Context, u string, body []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutPage(ctx, u, body); err != nil {
		zap.L().Warn("review page cache write failed", zap.String("url", u), zap.Error(err))
	}
}

func (s *Scraper) nextUserAgent() string {
	if len(s.opts.UserAgents) == 0 {
		return ""
	}
	ua := s.opts.UserAgents[s.uaIndex%len(s.opts.UserAgents)]
	s.uaIndex++
	return ua
}

func (s *Scraper) movieURL(slug string) string {
	return s.opts.BaseURL + "/m/" + slug
}

// yearFirstSlugs reorders slug candidates so year-suffixed ones are
// probed first. Used on rescrape, where the plain slug already resolved
// to the wrong film or a skeleton page.
func yearFirstSlugs(filmTitle string, year int, rules []title.SlugRule) []string {
	slugs := title.Slugs(filmTitle, year, rules)
	if year == 0 {
		return slugs
	}
	suffix := "_" + strconv.Itoa(year)
	ordered := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if strings.HasSuffix(s, suffix) {
			ordered = append(ordered, s)
		}
	}
	for _, s := range slugs {
		if !strings.HasSuffix(s, suffix) {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

func releaseYear(date string) int {
	d, ok := parse.Date(date)
	if !ok {
		return 0
	}
	return d.Year()
}

