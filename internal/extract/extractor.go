// Package extract converts rendered timeline markup into tweet records.
package extract

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tweet_collector/internal/model"
)

var (
	statusRe    = regexp.MustCompile(`status/(\d+)`)
	nameParamRe = regexp.MustCompile(`([?&]name=)[^&]+`)
	metricRe    = regexp.MustCompile(`[^0-9.KMB]`)
	analyticsRe = regexp.MustCompile(`\.? View post analytics`)
)

// Extractor scans document snapshots for tweet records.
type Extractor struct {
	log *slog.Logger
}

// New creates an Extractor.
func New(log *slog.Logger) *Extractor {
	return &Extractor{log: log}
}

// All extracts every currently extractable tweet from the document.
// Entities without a canonical status link are skipped silently (still
// loading); any other per-entity failure is logged and must not abort
// extraction of siblings.
func (e *Extractor) All(doc *goquery.Document) []model.Tweet {
	var tweets []model.Tweet
	doc.Find("article").Each(func(_ int, sel *goquery.Selection) {
		t, ok := e.One(sel)
		if ok {
			tweets = append(tweets, t)
		}
	})
	return tweets
}

// One extracts a single tweet from an entity container. The second return
// is false when the entity is not yet extractable.
func (e *Extractor) One(sel *goquery.Selection) (model.Tweet, bool) {
	id := TweetID(sel)
	if id == "" {
		e.log.Debug("entity without status link, skipping")
		return model.Tweet{}, false
	}

	media := extractImages(sel)
	media = append(media, extractVideos(sel)...)

	t := model.Tweet{
		ID:           id,
		AuthorHandle: authorHandle(sel),
		AuthorName:   authorName(sel),
		Verified:     sel.Find(`[data-testid="icon-verified"]`).Length() > 0,
		Text:         strings.TrimSpace(sel.Find(`[data-testid="tweetText"]`).Text()),
		CreatedAt:    createdAt(sel),
		Metrics:      extractMetrics(sel),
		MediaURLs:    media,
		HasMedia:     len(media) > 0,
	}
	return t, true
}

// TweetID derives the stable identity from the entity's canonical
// /status/ link. Returns "" when no such link is present.
func TweetID(sel *goquery.Selection) string {
	var id string
	sel.Find(`a[href*="/status/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := statusRe.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

func authorName(sel *goquery.Selection) string {
	name := strings.TrimSpace(sel.Find(`[data-testid="User-Name"] span`).First().Text())
	if name == "" {
		return "Unknown User"
	}
	return name
}

func authorHandle(sel *goquery.Selection) string {
	handle := "@unknown"
	sel.Find(`[data-testid="User-Name"] span`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(text, "@") {
			handle = text
			return false
		}
		return true
	})
	return handle
}

func createdAt(sel *goquery.Selection) string {
	dt, ok := sel.Find("time").First().Attr("datetime")
	if !ok {
		return ""
	}
	ts, err := time.Parse(time.RFC3339, dt)
	if err != nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func extractImages(sel *goquery.Selection) []string {
	var urls []string
	sel.Find(`[data-testid="tweetPhoto"] img`).Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" || strings.Contains(src, "emoji") {
			return
		}
		// Request the highest-resolution variant when the CDN supports it.
		urls = append(urls, nameParamRe.ReplaceAllString(src, "${1}orig"))
	})
	return urls
}

func extractVideos(sel *goquery.Selection) []string {
	var urls []string
	sel.Find("video source").Each(func(_ int, source *goquery.Selection) {
		src, ok := source.Attr("src")
		if ok && strings.TrimSpace(src) != "" {
			urls = append(urls, src)
		}
	})
	return urls
}

func extractMetrics(sel *goquery.Selection) model.Metrics {
	m := model.Metrics{Replies: "0", Reshares: "0", Likes: "0", Views: "0"}

	if el := sel.Find(`[data-testid="reply"]`); el.Length() > 0 {
		m.Replies = NormalizeMetric(el.Text())
	}
	if el := sel.Find(`[data-testid="retweet"]`); el.Length() > 0 {
		m.Reshares = NormalizeMetric(el.Text())
	}
	if el := sel.Find(`[data-testid="like"]`); el.Length() > 0 {
		m.Likes = NormalizeMetric(el.Text())
	}
	if el := sel.Find(`a[href*="/analytics"]`); el.Length() > 0 {
		label, _ := el.Attr("aria-label")
		m.Views = NormalizeMetric(analyticsRe.ReplaceAllString(label, ""))
	}
	return m
}

// NormalizeMetric converts a displayed engagement count into a plain
// integer string. A trailing K/M/B suffix multiplies the numeric prefix by
// 1e3/1e6/1e9; empty or unparseable input yields "0".
func NormalizeMetric(text string) string {
	clean := metricRe.ReplaceAllString(text, "")
	if clean == "" {
		return "0"
	}

	multiplier := 1.0
	switch {
	case strings.Contains(clean, "K"):
		multiplier = 1e3
	case strings.Contains(clean, "M"):
		multiplier = 1e6
	case strings.Contains(clean, "B"):
		multiplier = 1e9
	}

	n, err := strconv.ParseFloat(strings.Trim(clean, "KMB"), 64)
	if err != nil {
		return "0"
	}
	return strconv.FormatInt(int64(math.Round(n*multiplier)), 10)
}
