// Package navigation extracts and classifies candidate links from a fetched
// page's HTML, split into primary navigation (nav/header/footer/menu
// containers) and secondary body links.
package navigation

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/99souls/kycscan/engine/models"
	"github.com/99souls/kycscan/engine/urlnorm"
)

// primarySelectors are checked, in order, for navigation-container links.
// Each selector contributes at most maxPrimaryContainers new links; the
// number of matching containers is not counted or capped.
var primarySelectors = []string{
	"nav a[href]",
	"header a[href]",
	"footer a[href]",
	".menu a[href]",
	"[class*=nav] a[href]",
}

const maxPrimaryContainers = 5

// Candidate is a classified, deduplicated link discovered on a page.
type Candidate struct {
	URL        string
	AnchorText string
	PageType   models.PageType
	Confidence float64
	Source     models.SourceTag
}

// Extract parses html relative to pageURL and returns primary-navigation
// candidates followed by secondary body candidates, each deduplicated by
// normalized URL (keeping the highest-confidence classification seen).
func Extract(html string, pageURL *url.URL, title string) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]*Candidate)
	var order []string

	collect := func(sel string, source models.SourceTag, cap int) {
		count := 0
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if cap > 0 && count >= cap {
				return
			}
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			resolved := resolve(pageURL, href)
			if resolved == nil {
				return
			}
			if !urlnorm.IsInternal(resolved, pageURL) {
				return
			}
			norm, err := urlnorm.Normalize(resolved.String())
			if err != nil {
				return
			}
			anchor := strings.TrimSpace(s.Text())
			pt, conf := urlnorm.Classify(norm, anchor, title)
			if pt == models.PageSkip {
				return
			}
			if existing, ok := seen[norm]; ok {
				if conf > existing.Confidence {
					existing.Confidence = conf
					existing.PageType = pt
					existing.AnchorText = anchor
				}
				return
			}
			c := &Candidate{URL: norm, AnchorText: anchor, PageType: pt, Confidence: conf, Source: source}
			seen[norm] = c
			order = append(order, norm)
			count++
		})
	}

	for _, sel := range primarySelectors {
		collect(sel, models.SourceNavPrimary, maxPrimaryContainers)
	}

	doc.Find("script, style").Remove()
	collect("body a[href]", models.SourceNavSecondary, 0)

	out := make([]Candidate, 0, len(order))
	for _, u := range order {
		out = append(out, *seen[u])
	}
	return out
}

func resolve(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}
	return base.ResolveReference(ref)
}
