package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/kycscan/engine/models"
)

func newGraphWithHome(finalURL string, status int) *models.NormalizedPageGraph {
	g := models.NewPageGraph()
	g.AddPage(&models.PageArtifact{
		RequestedURL: finalURL,
		FinalURL:     finalURL,
		CanonicalURL: finalURL,
		PageType:     models.PageHome,
		Status:       status,
	})
	return g
}

func TestScore_FullMarksForCleanHTTPSAgedSite(t *testing.T) {
	eng := New(nil)
	in := Input{
		Graph:         newGraphWithHome("https://example.com/", 200),
		DomainAgeDays: 2000,
		PolicyChecks: []models.PolicyCheckResult{
			{PolicyType: "privacy_policy", Found: true, HasRequiredKeywords: true, ContentLength: 1000, Expectation: models.ExpectationRequired},
			{PolicyType: "terms_conditions", Found: true, HasRequiredKeywords: true, ContentLength: 1000, Expectation: models.ExpectationRequired},
			{PolicyType: "refund_policy", Found: true, HasRequiredKeywords: true, ContentLength: 1000, Expectation: models.ExpectationRequired},
			{PolicyType: "contact_us", Found: true, HasRequiredKeywords: true, ContentLength: 1000, Expectation: models.ExpectationRequired},
			{PolicyType: "shipping_delivery", Found: true, HasRequiredKeywords: true, ContentLength: 1000, Expectation: models.ExpectationRequired},
		},
	}
	out := eng.Score(context.Background(), in)
	require.NotNil(t, out)
	assert.Equal(t, 30.0, out.Technical)
	assert.Equal(t, 40.0, out.Policy)
	assert.Equal(t, 30.0, out.Trust)
	assert.Equal(t, 100.0, out.Overall)
	assert.Equal(t, models.RatingGood, out.Rating)
}

func TestScore_ShallowPolicyFloors(t *testing.T) {
	eng := New(nil)
	in := Input{
		Graph:         newGraphWithHome("https://example.com/", 200),
		DomainAgeDays: 1,
		PolicyChecks: []models.PolicyCheckResult{
			{PolicyType: "privacy_policy", Found: true, HasRequiredKeywords: false, ContentLength: 50, Expectation: models.ExpectationRequired},
		},
	}
	out := eng.Score(context.Background(), in)
	assert.Equal(t, 6.0, out.Policy)
}

func TestScore_GamblingPenaltyApplies(t *testing.T) {
	eng := New(nil)
	in := Input{
		Graph: newGraphWithHome("https://example.com/", 200),
		ContentRisk: &models.ContentRiskSummary{
			Hits: []models.RestrictedKeywordHit{
				{Category: "gambling", Keyword: "casino", PageType: models.PageHome, Intent: models.IntentPromotional},
			},
		},
	}
	out := eng.Score(context.Background(), in)
	assert.Equal(t, 15.0, out.Trust)
}

func TestScore_SuppressedHitNotPenalized(t *testing.T) {
	eng := New(nil)
	in := Input{
		Graph: newGraphWithHome("https://example.com/", 200),
		ContentRisk: &models.ContentRiskSummary{
			Hits: []models.RestrictedKeywordHit{
				{Category: "gambling", Keyword: "casino", PageType: models.PagePrivacyPolicy, Intent: models.IntentProhibitive},
			},
		},
	}
	out := eng.Score(context.Background(), in)
	assert.Equal(t, 30.0, out.Trust)
}

func TestScore_BlockchainContextOverridesCryptoPenalty(t *testing.T) {
	eng := New(nil)
	in := Input{
		Graph: newGraphWithHome("https://example.com/", 200),
		ContentRisk: &models.ContentRiskSummary{
			Hits: []models.RestrictedKeywordHit{
				{Category: "crypto", Keyword: "token sale", PageType: models.PageHome, Intent: models.IntentPromotional},
			},
		},
		BusinessContext: &models.BusinessContext{Primary: models.ContextBlockchain},
	}
	out := eng.Score(context.Background(), in)
	assert.Equal(t, 30.0, out.Trust)
}

func TestScore_UnlistedCategoryTakesDefaultLightPenalty(t *testing.T) {
	eng := New(nil)
	in := Input{
		Graph: newGraphWithHome("https://example.com/", 200),
		ContentRisk: &models.ContentRiskSummary{
			Hits: []models.RestrictedKeywordHit{
				{Category: "weapons", Keyword: "ammunition", PageType: models.PageHome, Intent: models.IntentPromotional},
			},
		},
	}
	out := eng.Score(context.Background(), in)
	assert.Equal(t, 25.0, out.Trust)
}

func TestScore_HTTPSiteLosesSSLPoints(t *testing.T) {
	eng := New(nil)
	in := Input{Graph: newGraphWithHome("http://example.com/", 200)}
	out := eng.Score(context.Background(), in)
	assert.Less(t, out.Technical, 15.0)
}
