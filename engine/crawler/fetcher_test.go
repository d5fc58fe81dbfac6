package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/kycscan/engine/models"
)

func TestFetchOneReturnsHTMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Hi</title></head><body>hello</body></html>`))
	}))
	defer srv.Close()

	res := fetchOne(context.Background(), srv.URL, 3*time.Second, "Agent_X-test")
	require.Nil(t, res.Err)
	assert.Equal(t, 200, res.Status)
	assert.Contains(t, res.HTML, "hello")
	assert.Equal(t, "Hi", res.Title)
}

func TestFetchOneClassifiesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := fetchOne(context.Background(), srv.URL, 3*time.Second, "Agent_X-test")
	assert.Equal(t, 404, res.Status)
	assert.Equal(t, models.ErrClassHTTPError, res.ErrClass)
}

func TestFetchOneClassifiesBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	res := fetchOne(context.Background(), srv.URL, 3*time.Second, "Agent_X-test")
	assert.Equal(t, 403, res.Status)
	assert.Equal(t, models.ErrClassBlocked, res.ErrClass)
}

func TestExtractVisibleTextStripsScriptAndStyle(t *testing.T) {
	html := `<html><body><script>var x=1;</script><style>.a{}</style><p>Real   text</p></body></html>`
	got := extractVisibleText(html)
	assert.Equal(t, "Real text", got)
}

func TestExtractCanonical(t *testing.T) {
	html := `<html><head><link rel="canonical" href="https://example.com/canon"></head></html>`
	assert.Equal(t, "https://example.com/canon", extractCanonical(html))
}
