package content

import (
	"testing"

	"github.com/99souls/kycscan/engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeDetectsHyphenSpaceFlexibleKeyword(t *testing.T) {
	pages := []Page{{URL: "https://example.com/", Text: "Welcome to our sports betting portal, play now!", PageType: models.PageHome}}
	res := Analyze(pages)
	require.NotEmpty(t, res.Hits)
	found := false
	for _, h := range res.Hits {
		if h.Category == "gambling" {
			found = true
			assert.Equal(t, models.IntentPromotional, h.Intent)
		}
	}
	assert.True(t, found)
}

func TestAnalyzeSuppressesProhibitiveHitsOnPolicyPages(t *testing.T) {
	pages := []Page{{
		URL:      "https://example.com/terms",
		Text:     "We do not allow gambling or betting of any kind on this platform.",
		PageType: models.PageTermsConditions,
	}}
	res := Analyze(pages)
	require.NotEmpty(t, res.Hits)
	for _, h := range res.Hits {
		assert.True(t, h.SuppressedFromRisk())
	}
	assert.Equal(t, 0, res.RiskContributingCount)
	assert.Greater(t, res.PolicyMentionsCount, 0)
}

func TestAnalyzeCorroborationPromotesSeverity(t *testing.T) {
	pages := []Page{
		{URL: "https://example.com/a", Text: "visit our casino for the best odds", PageType: models.PageOther},
		{URL: "https://example.com/b", Text: "casino games available now", PageType: models.PageOther},
	}
	res := Analyze(pages)
	require.Contains(t, res.Corroboration, "gambling")
	criticalFound := false
	for _, h := range res.Hits {
		if h.Category == "gambling" && h.Severity == models.SeverityCritical {
			criticalFound = true
		}
	}
	assert.True(t, criticalFound)
}

func TestAnalyzeForJurisdictionWidensCatalog(t *testing.T) {
	pages := []Page{{URL: "https://example.com/", Text: "Play teen patti and fantasy cricket, join today!", PageType: models.PageHome}}

	base := Analyze(pages)
	assert.Empty(t, base.Hits, "base catalog has no India-specific gambling terms")

	res := AnalyzeForJurisdiction(pages, "IN")
	require.NotEmpty(t, res.Hits)
	for _, h := range res.Hits {
		assert.Equal(t, "gambling", h.Category)
	}
}

func TestAnalyzeForJurisdictionUnknownCountryIsNoop(t *testing.T) {
	pages := []Page{{URL: "https://example.com/", Text: "visit our casino", PageType: models.PageHome}}
	assert.Equal(t, Analyze(pages), AnalyzeForJurisdiction(pages, "ZZ"))
}

func TestAnalyzeDetectsDummyWords(t *testing.T) {
	pages := []Page{{URL: "https://example.com/", Text: "Lorem ipsum dolor sit amet, consectetur adipiscing elit.", PageType: models.PageHome}}
	res := Analyze(pages)
	assert.NotEmpty(t, res.DummyWordsDetected)
}
