package crawler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/99souls/kycscan/engine/models"
)

// fetchResult is the raw outcome of fetching a single URL, before
// classification.
type fetchResult struct {
	FinalURL    string
	Status      int
	ContentType string
	HTML        string
	Title       string
	Headers     http.Header
	Err         error
	ErrClass    models.ErrorClass
}

// fetchOne fetches a single URL with a fresh colly.Collector scoped to the
// call, honoring ctx for cancellation/timeout. Only text/html responses
// carry a body; other content types return a status-carrying, bodyless
// result. One collector per call keeps concurrent fetches from racing on
// shared callback state.
func fetchOne(ctx context.Context, rawURL string, timeout time.Duration, userAgent string) *fetchResult {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(timeout)

	result := &fetchResult{}

	c.OnResponse(func(r *colly.Response) {
		result.FinalURL = r.Request.URL.String()
		result.Status = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.Headers = *r.Headers
		if strings.Contains(strings.ToLower(result.ContentType), "text/html") {
			result.HTML = string(r.Body)
		}
	})

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if result.Title == "" {
			result.Title = strings.TrimSpace(e.Text)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if result.Status == 0 {
			result.Status = r.StatusCode
		}
		result.Err = err
		result.ErrClass = classifyError(r.StatusCode, err)
	})

	visitErr := c.Visit(rawURL)
	c.Wait()

	if visitErr != nil && result.Err == nil {
		result.Err = visitErr
		result.ErrClass = classifyError(result.Status, visitErr)
	}
	return result
}

// classifyError buckets a fetch failure per the engine's error taxonomy.
func classifyError(status int, err error) models.ErrorClass {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "dns"):
		return models.ErrClassDNS
	case strings.Contains(msg, "certificate") || strings.Contains(msg, "x509") || strings.Contains(msg, "tls"):
		return models.ErrClassSSL
	case strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout"):
		return models.ErrClassTimeout
	case status == http.StatusForbidden || status == http.StatusUnauthorized || status == http.StatusTooManyRequests:
		return models.ErrClassBlocked
	case status >= http.StatusBadRequest:
		return models.ErrClassHTTPError
	default:
		return models.ErrClassUnknown
	}
}

// extractVisibleText strips script/style tags and collapses whitespace,
// capping the result to keep downstream analysis bounded.
const maxVisibleTextLen = 200_000

func extractVisibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	text := doc.Text()
	fields := strings.Fields(text)
	collapsed := strings.Join(fields, " ")
	if len(collapsed) > maxVisibleTextLen {
		collapsed = collapsed[:maxVisibleTextLen]
	}
	return collapsed
}

func extractCanonical(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	href, _ := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	return strings.TrimSpace(href)
}

func extractLinkRelSitemap(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	href, _ := doc.Find(`link[rel="sitemap"]`).First().Attr("href")
	return strings.TrimSpace(href)
}
