package robots

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// standardSitemapPaths are checked when robots.txt advertises no sitemap.
var standardSitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml"}

const (
	maxSitemapsToFetch = 3
	maxIndexChildren    = 3
	maxURLsPerSitemap   = 100
)

type urlset struct {
	XMLName xml.Name    `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type sitemapindex struct {
	XMLName xml.Name       `xml:"sitemapindex"`
	Entries []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// DiscoverSitemaps returns the candidate sitemap URLs for base: robots.txt's
// advertised sitemaps first (capped at 3), falling back to standard
// well-known paths, plus any <link rel="sitemap"> advertised in the
// homepage HTML if provided.
func DiscoverSitemaps(base *url.URL, rules *Rules, htmlLinkRelSitemap string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	if rules != nil {
		for i, sm := range rules.Sitemaps {
			if i >= maxSitemapsToFetch {
				break
			}
			add(sm)
		}
	}
	if htmlLinkRelSitemap != "" {
		add(htmlLinkRelSitemap)
	}
	if len(out) == 0 {
		for _, p := range standardSitemapPaths {
			add(fmt.Sprintf("%s://%s%s", base.Scheme, base.Host, p))
		}
	}
	return out
}

// FetchAndFlatten downloads each sitemap URL (following one level of
// sitemap-index nesting, first 3 children), and returns up to
// maxURLsPerSitemap page URLs per leaf sitemap after applying the skip
// predicate (internal-only, non-asset URLs).
func FetchAndFlatten(httpc *http.Client, sitemapURLs []string, skip func(string) bool) []string {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	var flattened []string
	seen := map[string]bool{}
	addAll := func(locs []string) {
		count := 0
		for _, loc := range locs {
			if count >= maxURLsPerSitemap {
				break
			}
			if loc == "" || seen[loc] || (skip != nil && skip(loc)) {
				continue
			}
			seen[loc] = true
			flattened = append(flattened, loc)
			count++
		}
	}

	for i, smURL := range sitemapURLs {
		if i >= maxSitemapsToFetch {
			break
		}
		body, err := fetchBody(httpc, smURL)
		if err != nil {
			continue
		}
		if locs, ok := tryParseURLSet(body); ok {
			addAll(locs)
			continue
		}
		if children, ok := tryParseIndex(body); ok {
			for j, child := range children {
				if j >= maxIndexChildren {
					break
				}
				childBody, err := fetchBody(httpc, child)
				if err != nil {
					continue
				}
				if locs, ok := tryParseURLSet(childBody); ok {
					addAll(locs)
				}
			}
		}
	}
	return flattened
}

func fetchBody(httpc *http.Client, u string) ([]byte, error) {
	resp, err := httpc.Get(u)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("sitemap fetch %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
}

func tryParseURLSet(body []byte) ([]string, bool) {
	if !strings.Contains(string(body[:min(len(body), 512)]), "<urlset") {
		return nil, false
	}
	var us urlset
	if err := xml.Unmarshal(body, &us); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(us.URLs))
	for _, u := range us.URLs {
		out = append(out, strings.TrimSpace(u.Loc))
	}
	return out, true
}

func tryParseIndex(body []byte) ([]string, bool) {
	if !strings.Contains(string(body[:min(len(body), 512)]), "<sitemapindex") {
		return nil, false
	}
	var idx sitemapindex
	if err := xml.Unmarshal(body, &idx); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		out = append(out, strings.TrimSpace(e.Loc))
	}
	return out, true
}
