// Package robots fetches and evaluates robots.txt, and discovers sitemap
// URLs advertised by it, for a single target host.
package robots

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// UserAgent is the product token this engine identifies itself with.
const UserAgent = "Agent_X"

// Rules is the parsed robots.txt for one host, cached for the lifetime of a
// single scan.
type Rules struct {
	group     *robotstxt.Group
	Sitemaps  []string
	FetchedAt time.Time
	Found     bool
}

// Allowed reports whether path may be fetched under these rules. A nil
// Rules (robots.txt unreachable, or disabled) always allows.
func (r *Rules) Allowed(path string) bool {
	if r == nil || r.group == nil {
		return true
	}
	return r.group.Test(path)
}

// Cache holds per-host robots.txt results for the duration of a scan, since
// every page on the same host shares one robots.txt.
type Cache struct {
	mu    sync.RWMutex
	rules map[string]*Rules
	httpc *http.Client
}

// NewCache returns a Cache that fetches robots.txt with the given HTTP
// client (or http.DefaultClient if nil).
func NewCache(httpc *http.Client) *Cache {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Cache{rules: make(map[string]*Rules), httpc: httpc}
}

// Get returns the robots rules for u's host, fetching and parsing
// robots.txt on first use and caching the result for subsequent calls.
// Any fetch or parse error degrades to an allow-all Rules, per the
// engine's fail-open contract — a missing or broken robots.txt never
// blocks a scan.
func (c *Cache) Get(u *url.URL) *Rules {
	host := u.Host
	c.mu.RLock()
	if r, ok := c.rules[host]; ok {
		c.mu.RUnlock()
		return r
	}
	c.mu.RUnlock()

	r := c.fetch(u)
	c.mu.Lock()
	c.rules[host] = r
	c.mu.Unlock()
	return r
}

func (c *Cache) fetch(u *url.URL) *Rules {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	resp, err := c.httpc.Get(robotsURL)
	if err != nil {
		return &Rules{FetchedAt: time.Now()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return &Rules{FetchedAt: time.Now()}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return &Rules{FetchedAt: time.Now()}
	}

	doc, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return &Rules{FetchedAt: time.Now()}
	}

	return &Rules{
		group:     doc.FindGroup(UserAgent),
		Sitemaps:  doc.Sitemaps,
		FetchedAt: time.Now(),
		Found:     true,
	}
}
