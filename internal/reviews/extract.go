package reviews

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The review site renders scores client-side; the numbers live in JSON
// embedded in the page source. Extraction works on the raw bytes rather
// than the DOM.
var (
	criticScoreRe   = regexp.MustCompile(`"criticsScore"\s*:\s*\{[^}]*?"score"\s*:\s*"(\d+)"`)
	audienceScoreRe = regexp.MustCompile(`"audienceScore"\s*:\s*\{[^}]*?"score"\s*:\s*"(\d+)"`)
	criticBlockRe   = regexp.MustCompile(`"criticsScore"\s*:\s*(\{[^}]+\})`)
	audienceBlockRe = regexp.MustCompile(`"audienceScore"\s*:\s*(\{[^}]+\})`)
	reviewCountRe   = regexp.MustCompile(`"reviewCount"\s*:\s*(\d+)`)
	ratingCountRe   = regexp.MustCompile(`"ratingCount"\s*:\s*(\d+)`)
	genresRe        = regexp.MustCompile(`"metadataGenres"\s*:\s*\[(.*?)\]`)
	contentRatingRe = regexp.MustCompile(`"contentRating"\s*:\s*"([^"]+)"`)
)

// PageData holds whatever a movie page yielded. Nil means the field was
// absent, which for scores usually means a skeleton page from bot
// detection.
type PageData struct {
	PageTitle     string
	CriticScore   *int
	AudienceScore *int
	CriticCount   *int
	AudienceCount *int
	Genres        string
	ContentRating string
}

// HasScores reports whether the page yielded at least one score. Pages
// that matched but yielded none are candidates for re-scraping.
func (d PageData) HasScores() bool {
	return d.CriticScore != nil || d.AudienceScore != nil
}

// ExtractPage pulls scores, counts, genres and the content rating out of
// a movie page. Missing fields stay nil; extraction never fails.
func ExtractPage(html []byte) PageData {
	var d PageData

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html)); err == nil {
		// page titles look like "Inside Out 2 | Rotten Tomatoes"
		full := strings.TrimSpace(doc.Find("title").First().Text())
		d.PageTitle = strings.TrimSpace(strings.SplitN(full, "|", 2)[0])
	}

	d.CriticScore = firstIntSubmatch(criticScoreRe, html)
	d.AudienceScore = firstIntSubmatch(audienceScoreRe, html)

	if m := criticBlockRe.FindSubmatch(html); m != nil {
		d.CriticCount = firstIntSubmatch(reviewCountRe, m[1])
	}
	if m := audienceBlockRe.FindSubmatch(html); m != nil {
		// the audience block carries ratingCount; older pages reviewCount
		d.AudienceCount = firstIntSubmatch(ratingCountRe, m[1])
		if d.AudienceCount == nil {
			d.AudienceCount = firstIntSubmatch(reviewCountRe, m[1])
		}
	}

	if m := genresRe.FindSubmatch(html); m != nil {
		var genres []string
		if err := json.Unmarshal([]byte("["+string(m[1])+"]"), &genres); err == nil {
			d.Genres = strings.Join(genres, ", ")
		} else {
			d.Genres = strings.TrimSpace(strings.ReplaceAll(string(m[1]), `"`, ""))
		}
	}
	if m := contentRatingRe.FindSubmatch(html); m != nil {
		d.ContentRating = string(m[1])
	}

	return d
}

func firstIntSubmatch(re *regexp.Regexp, b []byte) *int {
	m := re.FindSubmatch(b)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return nil
	}
	return &v
}
