// Package product derives the products or services a site actually offers
// and compares them against what the merchant declared. The default
// extractor is rule-based over navigation and page content; deployments
// with an external extraction model can plug one in behind the same
// interface.
package product

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/99souls/kycscan/engine/models"
	"github.com/99souls/kycscan/engine/navigation"
)

const (
	maxExtractedTerms  = 20
	maxHeadingsPerPage = 10
)

// Extractor derives product/service terms from a crawled site.
type Extractor interface {
	Extract(graph *models.NormalizedPageGraph) []string
}

// RuleBased is the default Extractor: navigation anchor text pointing at
// offer pages, plus headings on the offer pages themselves. No external
// model involved.
type RuleBased struct{}

// offerPageTypes are the page types whose navigation anchors and headings
// name what the site sells.
var offerPageTypes = []models.PageType{
	models.PageProduct,
	models.PageSolutions,
	models.PagePricing,
}

// structuralTerms are anchor/heading texts that describe the site's layout
// rather than any particular offering.
var structuralTerms = map[string]bool{
	"products": true, "product": true, "our products": true,
	"solutions": true, "our solutions": true,
	"pricing": true, "plans": true, "pricing & plans": true,
	"shop": true, "store": true, "shop now": true,
	"home": true, "learn more": true, "get started": true,
	"view all": true, "see all": true,
}

// Extract walks the homepage navigation and the graph's offer pages and
// returns a deduplicated list of terms naming what the site sells. An
// empty result on a successfully crawled site is itself a signal: the
// merchant declared products the site never exhibits.
func (RuleBased) Extract(graph *models.NormalizedPageGraph) []string {
	if graph == nil {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" || len(term) > 80 || len(out) >= maxExtractedTerms {
			return
		}
		key := strings.ToLower(term)
		if structuralTerms[key] || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, term)
	}

	if home, ok := graph.Home(); ok && home.Status == 200 && home.HTML != "" {
		if base, err := url.Parse(home.RequestedURL); err == nil {
			for _, cand := range navigation.Extract(home.HTML, base, "") {
				for _, pt := range offerPageTypes {
					if cand.PageType == pt && cand.AnchorText != "" {
						add(cand.AnchorText)
						break
					}
				}
			}
		}
	}

	for _, pt := range offerPageTypes {
		if page, ok := graph.ByType(pt); ok && page.Status == 200 && page.HTML != "" {
			for _, h := range headings(page.HTML) {
				add(h)
			}
		}
	}

	return out
}

func headings(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
		return len(out) < maxHeadingsPerPage
	})
	return out
}

// genericTokens are words too common across declared-product phrasing to
// carry any matching signal on their own.
var genericTokens = map[string]bool{
	"products": true, "product": true, "services": true, "service": true,
	"online": true, "solutions": true, "solution": true, "general": true,
	"other": true, "various": true, "and": true, "sale": true, "sales": true,
}

// Match compares each declared product/service item against the extracted
// terms and the site's combined visible text.
//
// An item matches when any of its distinctive tokens appears on the site.
// Items made up entirely of generic words carry no signal and are ignored;
// a merchant whose whole declaration is unverifiable that way comes back
// UNABLE_TO_VERIFY rather than MISMATCH. A site that exhibits no offering
// at all mismatches any concrete declaration outright.
func Match(declared, extracted []string, siteText string) models.ProductMatchStatus {
	if len(declared) == 0 {
		return models.ProductUnableToVerify
	}
	if len(extracted) == 0 && strings.TrimSpace(siteText) == "" {
		return models.ProductUnableToVerify
	}

	haystack := strings.ToLower(strings.Join(extracted, " ") + " " + siteText)
	verifiable, matched := 0, 0
	for _, item := range declared {
		tokens := distinctiveTokens(item)
		if len(tokens) == 0 {
			continue
		}
		verifiable++
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				matched++
				break
			}
		}
	}

	switch {
	case verifiable == 0:
		return models.ProductUnableToVerify
	case len(extracted) == 0:
		return models.ProductMismatch
	case matched == verifiable:
		return models.ProductMatch
	case matched > 0:
		return models.ProductPartialMatch
	default:
		return models.ProductMismatch
	}
}

func distinctiveTokens(item string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(item)) {
		tok = strings.Trim(tok, ",.;:&()/")
		if len(tok) < 4 || genericTokens[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}
