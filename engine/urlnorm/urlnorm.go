// Package urlnorm canonicalizes URLs and classifies them into a page type
// with a confidence score, ahead of anything being fetched.
package urlnorm

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/99souls/kycscan/engine/models"
)

// preserveQueryKeys is the small set of query parameters considered part of
// a page's identity; everything else is cosmetic and dropped.
var preserveQueryKeys = map[string]bool{
	"p": true, "page": true, "id": true, "product": true, "category": true,
}

var skipExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".css": true, ".js": true,
}

var skipSchemes = []string{"javascript:", "mailto:", "tel:"}

// Normalize canonicalizes a URL: lowercases the host (stripping a leading
// www.), drops the fragment, strips a trailing slash (except for the
// root path), and retains only the preserve-set query keys, sorted.
// Normalize is deterministic and idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Fragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.RawQuery != "" {
		q := u.Query()
		kept := url.Values{}
		for k, v := range q {
			if preserveQueryKeys[strings.ToLower(k)] {
				kept[k] = v
			}
		}
		keys := make([]string, 0, len(kept))
		for k := range kept {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}
			for j, v := range kept[k] {
				if j > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	}
	return u.String(), nil
}

// IsInternal reports whether u belongs to the same site as base, comparing
// hosts after stripping a leading www. on both sides.
func IsInternal(u, base *url.URL) bool {
	if u == nil || base == nil {
		return false
	}
	strip := func(h string) string { return strings.TrimPrefix(strings.ToLower(h), "www.") }
	return strip(u.Host) == strip(base.Host)
}

type urlPattern struct {
	re     *regexp.Regexp
	weight float64
}

type typeRule struct {
	pageType     models.PageType
	urlPatterns  []urlPattern
	textPatterns []*regexp.Regexp
}

// blog/news/press/article patterns are matched first and short-circuit any
// policy classification: a post titled "our new privacy features" must
// never be filed as the privacy policy.
var contentExclusionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/(blog|news|press|article|insights)(/|$)`),
}

var catalog []typeRule

func init() {
	mk := func(re string, w float64) urlPattern { return urlPattern{re: regexp.MustCompile(re), weight: w} }
	mkText := func(res ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(res))
		for i, r := range res {
			out[i] = regexp.MustCompile(r)
		}
		return out
	}
	catalog = []typeRule{
		{models.PageHome, []urlPattern{mk(`^/?$`, 1.0)}, mkText(`(?i)^home$`)},
		{models.PagePrivacyPolicy, []urlPattern{mk(`(?i)/privacy(-policy)?/?$`, 0.95), mk(`(?i)/privacy`, 0.7)}, mkText(`(?i)privacy`)},
		{models.PageTermsConditions, []urlPattern{mk(`(?i)/terms(-(and-)?conditions|-of-(service|use))?/?$`, 0.95), mk(`(?i)/tos/?$`, 0.9), mk(`(?i)/terms`, 0.7)}, mkText(`(?i)terms`)},
		{models.PageRefundPolicy, []urlPattern{mk(`(?i)/(refund|return)(s)?(-policy)?/?$`, 0.9), mk(`(?i)/refund|/return`, 0.6)}, mkText(`(?i)refund|return`)},
		{models.PageShippingDelivery, []urlPattern{mk(`(?i)/shipping(-(and-)?delivery)?/?$`, 0.9), mk(`(?i)/delivery/?$`, 0.85)}, mkText(`(?i)shipping|delivery`)},
		{models.PageAbout, []urlPattern{mk(`(?i)/about(-us)?/?$`, 0.9), mk(`(?i)/(company|our-story)/?$`, 0.6)}, mkText(`(?i)about`)},
		{models.PageContact, []urlPattern{mk(`(?i)/contact(-us)?/?$`, 0.9), mk(`(?i)/support/?$`, 0.5)}, mkText(`(?i)contact`)},
		{models.PagePricing, []urlPattern{mk(`(?i)/pricing/?$`, 0.9), mk(`(?i)/plans/?$`, 0.7)}, mkText(`(?i)pricing|plans`)},
		{models.PageProduct, []urlPattern{mk(`(?i)/products?/`, 0.7), mk(`(?i)/shop/`, 0.6), mk(`(?i)/item/`, 0.5)}, mkText(`(?i)product`)},
		{models.PageSolutions, []urlPattern{mk(`(?i)/solutions?/?`, 0.7), mk(`(?i)/use-cases?/?`, 0.6)}, mkText(`(?i)solutions?`)},
		{models.PageFAQ, []urlPattern{mk(`(?i)/faq/?$`, 0.9), mk(`(?i)/help/?$`, 0.4)}, mkText(`(?i)faq|frequently asked`)},
		{models.PageDocs, []urlPattern{mk(`(?i)/docs?/`, 0.8), mk(`(?i)/documentation/`, 0.8), mk(`(?i)/api/?`, 0.5)}, mkText(`(?i)docs|documentation|developer`)},
		{models.PageBlog, []urlPattern{mk(`(?i)/(blog|news|press|article|insights)(/|$)`, 0.85)}, mkText(`(?i)blog|news`)},
	}
}

// Classify assigns a page type and confidence to a candidate link, given its
// URL, anchor text, and (if already fetched) page title. Anchor and title
// contribute capped additions (x0.3 and x0.2) on top of the URL's base
// weight. Returns (PageSkip, 1.0) for file extensions and schemes excluded
// from crawling entirely.
func Classify(rawURL, anchorText, title string) (models.PageType, float64) {
	lower := strings.ToLower(rawURL)
	for _, scheme := range skipSchemes {
		if strings.HasPrefix(lower, scheme) {
			return models.PageSkip, 1.0
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		for ext := range skipExtensions {
			if strings.HasSuffix(strings.ToLower(u.Path), ext) {
				return models.PageSkip, 1.0
			}
		}
	}
	for _, ex := range contentExclusionPatterns {
		if ex.MatchString(rawURL) {
			return models.PageBlog, bestWeight(models.PageBlog, rawURL, anchorText, title)
		}
	}

	var best models.PageType
	var bestScore float64
	for _, rule := range catalog {
		score := scoreRule(rule, rawURL, anchorText, title)
		if score > bestScore {
			bestScore = score
			best = rule.pageType
		}
	}
	if best == "" {
		return models.PageOther, 0.1
	}
	if bestScore > 1.0 {
		bestScore = 1.0
	}
	return best, bestScore
}

func bestWeight(pt models.PageType, rawURL, anchorText, title string) float64 {
	for _, rule := range catalog {
		if rule.pageType == pt {
			return scoreRule(rule, rawURL, anchorText, title)
		}
	}
	return 0.5
}

func scoreRule(rule typeRule, rawURL, anchorText, title string) float64 {
	// URL patterns are written against the path (e.g. `^/?$` for the root).
	target := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		target = u.Path
	}
	var base float64
	for _, up := range rule.urlPatterns {
		if up.re.MatchString(target) && up.weight > base {
			base = up.weight
		}
	}
	if base == 0 {
		return 0
	}
	score := base
	for _, tp := range rule.textPatterns {
		if anchorText != "" && tp.MatchString(anchorText) {
			score += 0.3
			break
		}
	}
	for _, tp := range rule.textPatterns {
		if title != "" && tp.MatchString(title) {
			score += 0.2
			break
		}
	}
	return score
}
