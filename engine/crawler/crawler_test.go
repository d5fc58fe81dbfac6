package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/kycscan/engine/models"
	"github.com/99souls/kycscan/engine/robots"
)

func newTestCrawler(t *testing.T) *Crawler {
	t.Helper()
	budget := DefaultBudget()
	budget.TotalTimeout = 5 * time.Second
	return New(budget, "Agent_X-test", robots.NewCache(http.DefaultClient), nil, nil, nil)
}

func TestCrawlFetchesHomeAndNavLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
			<nav><a href="/privacy-policy">Privacy Policy</a><a href="/terms">Terms</a></nav>
			<main><a href="/about">About Us</a></main>
		</body></html>`)
	})
	mux.HandleFunc("/privacy-policy", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Privacy content with enough length to pass minimums for a policy page body used in tests here.</body></html>`)
	})
	mux.HandleFunc("/terms", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Terms content with enough length to pass minimums for a policy page body used in tests here.</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>About us content.</body></html>`)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestCrawler(t)
	graph, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)

	home, ok := graph.Home()
	require.True(t, ok)
	assert.Equal(t, 200, home.Status)
	assert.Equal(t, 1.0, home.ClassificationConfidence)

	privacy, ok := graph.ByType(models.PagePrivacyPolicy)
	require.True(t, ok)
	assert.Equal(t, 200, privacy.Status)
}

func TestCrawlHomepageUnreachableStillReturnsGraph(t *testing.T) {
	c := newTestCrawler(t)
	graph, err := c.Crawl(context.Background(), "http://127.0.0.1:1/")
	require.ErrorIs(t, err, models.ErrHomepageUnreachable)
	require.NotNil(t, graph)

	home, ok := graph.Home()
	require.True(t, ok)
	assert.NotNil(t, home.Error)
}

func TestCrawlRespectsRobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><nav><a href="/admin-secret">Secret</a></nav></body></html>`)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /admin-secret\n")
	})
	mux.HandleFunc("/admin-secret", func(w http.ResponseWriter, r *http.Request) {
		t.Error("disallowed URL should never be fetched")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestCrawler(t)
	graph, err := c.Crawl(context.Background(), srv.URL)
	require.NoError(t, err)
	blocked, ok := graph.ByURL(srv.URL + "/admin-secret")
	if ok {
		assert.Equal(t, 0, blocked.Status)
		require.NotNil(t, blocked.Error)
		assert.Equal(t, models.ErrClassBlocked, blocked.Error.Class)
	}
}
