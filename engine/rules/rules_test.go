package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/99souls/kycscan/engine/models"
)

func graphWithHomeAndContact(includeContact bool) *models.NormalizedPageGraph {
	g := models.NewPageGraph()
	g.AddPage(&models.PageArtifact{RequestedURL: "https://x.com/", CanonicalURL: "https://x.com/", PageType: models.PageHome, Status: 200})
	if includeContact {
		g.AddPage(&models.PageArtifact{RequestedURL: "https://x.com/contact", CanonicalURL: "https://x.com/contact", PageType: models.PageContact, Status: 200})
	}
	return g
}

func TestEvaluate_HomepageUnreachableFails(t *testing.T) {
	in := Input{Graph: models.NewPageGraph()}
	reasons, decision, confidence := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
	assert.Equal(t, 0.95, confidence)
	found := false
	for _, r := range reasons {
		if r.Code == "SITE_UNREACHABLE" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_MissingRequiredPolicyFails(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		PolicyChecks: []models.PolicyCheckResult{
			{PolicyType: "privacy_policy", Found: false, Expectation: models.ExpectationRequired},
		},
	}
	_, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
}

func TestEvaluate_HighRiskContentFails(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		ContentRisk: &models.ContentRiskSummary{
			Hits: []models.RestrictedKeywordHit{
				{Category: "gambling", PageType: models.PageHome, Intent: models.IntentPromotional},
			},
		},
	}
	_, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
}

func TestEvaluate_SuppressedHitDoesNotFail(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		ContentRisk: &models.ContentRiskSummary{
			Hits: []models.RestrictedKeywordHit{
				{Category: "gambling", PageType: models.PagePrivacyPolicy, Intent: models.IntentProhibitive},
			},
		},
	}
	_, decision, _ := Evaluate(in)
	assert.NotEqual(t, models.DecisionFail, decision)
}

func TestEvaluate_NoContactEscalates(t *testing.T) {
	in := Input{Graph: graphWithHomeAndContact(false)}
	_, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
}

func TestEvaluate_CleanScanPassesWithTieredConfidence(t *testing.T) {
	in := Input{
		Graph:      graphWithHomeAndContact(true),
		Compliance: &models.ComplianceBreakdown{Overall: 90},
	}
	_, decision, confidence := Evaluate(in)
	assert.Equal(t, models.DecisionPass, decision)
	assert.Equal(t, 0.95, confidence)
}

func TestEvaluate_EntityMismatchEscalates(t *testing.T) {
	in := Input{
		Graph:  graphWithHomeAndContact(true),
		Entity: &models.EntityMatchResult{DeclaredName: "Acme Inc", MatchStatus: models.MatchNone},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "LEGAL_ENTITY_MISMATCH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_PartialEntityMatchEscalates(t *testing.T) {
	in := Input{
		Graph:  graphWithHomeAndContact(true),
		Entity: &models.EntityMatchResult{DeclaredName: "Acme Inc", MatchStatus: models.MatchPartial},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "PARTIAL_ENTITY_MATCH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_CheckoutUnreachableEscalatesForEcommerce(t *testing.T) {
	in := Input{
		Graph:           graphWithHomeAndContact(true),
		BusinessContext: &models.BusinessContext{Primary: models.ContextEcommerce},
		Checkout:        &models.CheckoutFlowResult{HasCTA: true, CheckoutReachable: false},
	}
	_, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
}

func TestEvaluate_HighRiskMCCEscalates(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		MCC:   &models.MCCMatch{Category: "Entertainment", Subcategory: "Gaming", Confidence: 80},
	}
	_, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
}

func TestEvaluate_DNSFailureFails(t *testing.T) {
	g := models.NewPageGraph()
	g.AddPage(&models.PageArtifact{
		RequestedURL: "https://x.com/",
		CanonicalURL: "https://x.com/",
		PageType:     models.PageHome,
		Status:       0,
		Error:        models.NewScanError("https://x.com/", "fetch", models.ErrClassDNS, nil),
	})
	in := Input{Graph: g}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "DNS_FAIL" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_SSLFailureFails(t *testing.T) {
	g := models.NewPageGraph()
	g.AddPage(&models.PageArtifact{
		RequestedURL: "https://x.com/",
		CanonicalURL: "https://x.com/",
		PageType:     models.PageHome,
		Status:       0,
		Error:        models.NewScanError("https://x.com/", "fetch", models.ErrClassSSL, nil),
	})
	in := Input{Graph: g}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "SSL_ERROR" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_ParkedDomainFails(t *testing.T) {
	g := models.NewPageGraph()
	g.AddPage(&models.PageArtifact{
		RequestedURL: "https://x.com/",
		CanonicalURL: "https://x.com/",
		PageType:     models.PageHome,
		Status:       200,
		VisibleText:  "This domain is for sale. Contact the owner to buy this domain.",
	})
	in := Input{Graph: g}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "PARKED_DOMAIN" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_DomainTooNewEscalates(t *testing.T) {
	in := Input{
		Graph:      graphWithHomeAndContact(true),
		Compliance: &models.ComplianceBreakdown{Overall: 90, DomainAgeDays: 30},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "DOMAIN_TOO_NEW" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_NoCheckoutFlowEscalates(t *testing.T) {
	in := Input{
		Graph:           graphWithHomeAndContact(true),
		BusinessContext: &models.BusinessContext{Primary: models.ContextEcommerce},
		Checkout:        &models.CheckoutFlowResult{HasCTA: false},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "NO_CHECKOUT_FLOW" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_DeadCTAsOnlyFails(t *testing.T) {
	in := Input{
		Graph:           graphWithHomeAndContact(true),
		BusinessContext: &models.BusinessContext{Primary: models.ContextEcommerce},
		Checkout: &models.CheckoutFlowResult{
			HasCTA:      true,
			CTAsSampled: 2,
			DeadCTAs:    []models.DeadCTA{{}, {}},
			PricingVisible: true,
		},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "DEAD_CTAS_ONLY" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_FakePricingFails(t *testing.T) {
	in := Input{
		Graph:           graphWithHomeAndContact(true),
		BusinessContext: &models.BusinessContext{Primary: models.ContextEcommerce},
		Checkout: &models.CheckoutFlowResult{
			HasCTA:             true,
			CTAsSampled:        2,
			DeadCTAs:           []models.DeadCTA{{}},
			PricingVisible:     true,
			CheckoutConfidence: 0,
		},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "FAKE_PRICING" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_MissingPricingEscalates(t *testing.T) {
	in := Input{
		Graph:           graphWithHomeAndContact(true),
		BusinessContext: &models.BusinessContext{Primary: models.ContextEcommerce},
		Checkout: &models.CheckoutFlowResult{
			HasCTA:            true,
			CTAsSampled:       1,
			CheckoutReachable: true,
			PricingVisible:    false,
		},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "MISSING_PRICING" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_MissingPrivacyFiresSpecificCode(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		PolicyChecks: []models.PolicyCheckResult{
			{PolicyType: "privacy_policy", Found: false, Expectation: models.ExpectationRequired},
			{PolicyType: "terms_conditions", Found: true, HasRequiredKeywords: true, Expectation: models.ExpectationRequired},
		},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
	var codes []string
	for _, r := range reasons {
		codes = append(codes, r.Code)
	}
	assert.Contains(t, codes, "MISSING_PRIVACY_POLICY")
	assert.NotContains(t, codes, "MISSING_TERMS")
}

func TestEvaluate_MissingRefundEscalatesNotFails(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		PolicyChecks: []models.PolicyCheckResult{
			{PolicyType: "refund_policy", Found: false, Expectation: models.ExpectationRequired},
		},
		BusinessContext: &models.BusinessContext{Primary: models.ContextEcommerce, Status: models.ContextDetermined},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "MISSING_REFUND_POLICY" {
			found = true
			assert.False(t, r.IsAutoFail)
		}
	}
	assert.True(t, found)
}

func TestEvaluate_CorroboratedGamblingFiresHighRiskCode(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		ContentRisk: &models.ContentRiskSummary{
			Hits: []models.RestrictedKeywordHit{
				{Category: "gambling", PageType: models.PageHome, Intent: models.IntentPromotional, Corroborated: true, PageURL: "https://x.com/"},
				{Category: "gambling", PageType: models.PageOther, Intent: models.IntentPromotional, Corroborated: true, PageURL: "https://x.com/games"},
			},
			Corroboration: map[string][]string{"gambling": {"https://x.com/", "https://x.com/games"}},
		},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionFail, decision)
	count := 0
	for _, r := range reasons {
		if r.Code == "HIGH_RISK_CONTENT_GAMBLING" {
			count++
		}
	}
	assert.Equal(t, 1, count, "one reason per category, not per hit")
}

func TestEvaluate_UncorroboratedPolicyPageHitDoesNotFail(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		ContentRisk: &models.ContentRiskSummary{
			Hits: []models.RestrictedKeywordHit{
				{Category: "gambling", PageType: models.PageTermsConditions, Intent: models.IntentNeutral, Corroborated: false},
			},
		},
	}
	_, decision, _ := Evaluate(in)
	assert.NotEqual(t, models.DecisionFail, decision)
}

func TestEvaluate_PoorComplianceBlocksPass(t *testing.T) {
	in := Input{
		Graph:      graphWithHomeAndContact(true),
		Compliance: &models.ComplianceBreakdown{Overall: 35},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "LOW_COMPLIANCE_SCORE" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_ContactPolicyCheckPreferredOverGraph(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(false),
		PolicyChecks: []models.PolicyCheckResult{
			{PolicyType: "contact_us", Found: true, Expectation: models.ExpectationRequired},
		},
		Compliance: &models.ComplianceBreakdown{Overall: 90},
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionPass, decision)
	for _, r := range reasons {
		assert.NotEqual(t, "NO_CONTACT_METHOD", r.Code)
	}
}

func TestEvaluate_ProductMismatchEscalates(t *testing.T) {
	in := Input{
		Graph:        graphWithHomeAndContact(true),
		ProductMatch: models.ProductMismatch,
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "PRODUCT_MISMATCH" {
			found = true
			assert.True(t, r.IsAutoEscalate)
		}
	}
	assert.True(t, found)
}

func TestEvaluate_BusinessTypeMismatchEscalates(t *testing.T) {
	in := Input{
		Graph: graphWithHomeAndContact(true),
		BusinessContext: &models.BusinessContext{
			Primary: models.ContextBlockchain,
			Status:  models.ContextDetermined,
		},
		DeclaredBusinessType: "online retail store",
	}
	reasons, decision, _ := Evaluate(in)
	assert.Equal(t, models.DecisionEscalate, decision)
	found := false
	for _, r := range reasons {
		if r.Code == "BUSINESS_TYPE_MISMATCH" {
			found = true
		}
	}
	assert.True(t, found)
}
