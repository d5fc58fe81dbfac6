package urlnorm

import (
	"net/url"
	"testing"

	"github.com/99souls/kycscan/engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsWwwAndFragment(t *testing.T) {
	out, err := Normalize("https://WWW.Example.com/Path/?utm_source=x#section")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/Path", out)
}

func TestNormalizeKeepsRoot(t *testing.T) {
	out, err := Normalize("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", out)
}

func TestNormalizePreservesIdentityQueryKeys(t *testing.T) {
	out, err := Normalize("https://example.com/shop?utm_campaign=a&product=42&page=2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/shop?page=2&product=42", out)
}

func TestNormalizeIdempotent(t *testing.T) {
	first, err := Normalize("https://www.example.com/a/?id=9&ref=y")
	require.NoError(t, err)
	second, err := Normalize(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIsInternal(t *testing.T) {
	base, _ := url.Parse("https://example.com")
	internal, _ := url.Parse("https://www.example.com/about")
	external, _ := url.Parse("https://other.com")
	assert.True(t, IsInternal(internal, base))
	assert.False(t, IsInternal(external, base))
}

func TestClassifyHomeAndPolicyPages(t *testing.T) {
	pt, conf := Classify("https://example.com/", "", "Home")
	assert.Equal(t, models.PageHome, pt)
	assert.Greater(t, conf, 0.9)

	pt, conf = Classify("https://example.com/privacy-policy", "Privacy Policy", "")
	assert.Equal(t, models.PagePrivacyPolicy, pt)
	assert.Greater(t, conf, 0.9)
}

func TestClassifySkipsNonHTMLAssets(t *testing.T) {
	pt, _ := Classify("https://example.com/brochure.pdf", "", "")
	assert.Equal(t, models.PageSkip, pt)

	pt, _ = Classify("javascript:void(0)", "", "")
	assert.Equal(t, models.PageSkip, pt)
}

func TestClassifyExcludesBlogFromPolicyTypes(t *testing.T) {
	pt, _ := Classify("https://example.com/blog/new-privacy-rules", "Privacy", "")
	assert.Equal(t, models.PageBlog, pt)
}

func TestClassifyUnknownFallsBackToOther(t *testing.T) {
	pt, conf := Classify("https://example.com/random-slug-xyz", "", "")
	assert.Equal(t, models.PageOther, pt)
	assert.Less(t, conf, 0.5)
}
