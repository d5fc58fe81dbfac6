// Package rules evaluates a completed scan's signals into a final decision.
// Every phase always runs and may append reason codes; the terminal
// decision is derived from the accumulated set once all seven phases have
// run, never short-circuited mid-phase, so the audit trail always records
// every rule that triggered.
package rules

import (
	"fmt"
	"strings"

	"github.com/99souls/kycscan/engine/models"
)

// highRiskCategories are content-risk categories that always fail a scan
// regardless of business context, unless suppressed or overridden. Mirrors
// the content analyzer's own critical-severity category set.
var highRiskCategories = map[string]bool{
	"adult":             true,
	"gambling":          true,
	"child_pornography": true,
	"weapons":           true,
	"drugs":             true,
	"illegal_goods":     true,
	"hacking":           true,
	"counterfeit":       true,
}

// mediumRiskCategories escalate only when corroborated across pages.
var mediumRiskCategories = map[string]bool{
	"pharmacy":      true,
	"alcohol":       true,
	"tobacco":       true,
	"dating_escort": true,
	"mlm":           true,
}

// parkedDomainIndicators are phrases a registrar's for-sale/parking page
// shows in place of real site content.
var parkedDomainIndicators = []string{
	"domain is parked",
	"this domain is for sale",
	"buy this domain",
	"domain may be for sale",
	"parking page",
}

// domainTooNewDays is the age, in days, below which a registered domain is
// flagged as too new to trust on its own. Mirrors the scoring engine's own
// zero-point threshold for domain age.
const domainTooNewDays = 180

// contextTypeKeywords are the plain-language words a merchant's own
// declared_business_type would plausibly contain for each detected business
// context. Used only as a loose sanity check, not a precise classifier.
var contextTypeKeywords = map[models.BusinessContextType][]string{
	models.ContextEcommerce:   {"ecommerce", "e-commerce", "retail", "shop", "store", "merchandise", "goods"},
	models.ContextMarketplace: {"marketplace", "platform", "multi-vendor"},
	models.ContextSaaS:        {"saas", "software", "subscription", "platform", "service"},
	models.ContextFintech:     {"fintech", "payment", "financial", "banking", "lending"},
	models.ContextBlockchain:  {"crypto", "blockchain", "web3", "defi", "token"},
	models.ContextContent:     {"media", "content", "publishing", "blog", "news"},
	models.ContextDeveloper:   {"developer", "api", "sdk", "devtools", "infrastructure"},
}

// Input bundles every signal the evaluator needs.
type Input struct {
	Graph                *models.NormalizedPageGraph
	PolicyChecks         []models.PolicyCheckResult
	ContentRisk          *models.ContentRiskSummary
	Checkout             *models.CheckoutFlowResult
	Entity               *models.EntityMatchResult
	BusinessContext      *models.BusinessContext
	MCC                  *models.MCCMatch
	ProductMatch         models.ProductMatchStatus
	Compliance           *models.ComplianceBreakdown
	DeclaredBusinessType string
}

// Evaluate runs all seven phases and returns the ordered reason codes plus
// the final decision.
func Evaluate(in Input) ([]models.ReasonCode, models.Decision, float64) {
	var reasons []models.ReasonCode

	reasons = append(reasons, accessibilityPhase(in)...)
	reasons = append(reasons, policyPhase(in)...)
	reasons = append(reasons, contentRiskPhase(in)...)
	reasons = append(reasons, checkoutPhase(in)...)
	reasons = append(reasons, entityPhase(in)...)
	reasons = append(reasons, productBusinessTypePhase(in)...)
	reasons = append(reasons, contactPhase(in)...)

	// A clean rule run still can't pass a site whose compliance score sits
	// below the Fair floor; a human reviews it instead.
	if !anyAuto(reasons) && in.Compliance != nil && in.Compliance.Overall < 50 {
		reasons = append(reasons, models.ReasonCode{
			Code:           "LOW_COMPLIANCE_SCORE",
			Category:       "compliance",
			Severity:       models.ReasonHigh,
			Message:        fmt.Sprintf("overall compliance score %.1f is below the pass floor", in.Compliance.Overall),
			IsAutoEscalate: true,
		})
	}

	decision, confidence := makeDecision(reasons, in)
	return reasons, decision, confidence
}

func anyAuto(reasons []models.ReasonCode) bool {
	for _, r := range reasons {
		if r.IsAutoFail || r.IsAutoEscalate {
			return true
		}
	}
	return false
}

func makeDecision(reasons []models.ReasonCode, in Input) (models.Decision, float64) {
	hasFail := false
	hasEscalate := false
	for _, r := range reasons {
		if r.IsAutoFail {
			hasFail = true
		}
		if r.IsAutoEscalate {
			hasEscalate = true
		}
	}
	switch {
	case hasFail:
		return models.DecisionFail, 0.95
	case hasEscalate:
		return models.DecisionEscalate, 0.75
	default:
		overall := 0.0
		if in.Compliance != nil {
			overall = in.Compliance.Overall
		}
		switch {
		case overall >= 80:
			return models.DecisionPass, 0.95
		case overall >= 60:
			return models.DecisionPass, 0.85
		default:
			return models.DecisionPass, 0.75
		}
	}
}

func accessibilityPhase(in Input) []models.ReasonCode {
	var reasons []models.ReasonCode
	if in.Graph == nil {
		return reasons
	}
	home, ok := in.Graph.Home()
	switch {
	case !ok:
		reasons = append(reasons, models.ReasonCode{
			Code:       "SITE_UNREACHABLE",
			Category:   "accessibility",
			Severity:   models.ReasonCritical,
			Message:    "homepage could not be fetched",
			IsAutoFail: true,
		})
	case home.Status != 200 || home.Error != nil:
		code, message := classifyAccessibilityFailure(home)
		reasons = append(reasons, models.ReasonCode{
			Code:        code,
			Category:    "accessibility",
			Severity:    models.ReasonCritical,
			Message:     message,
			EvidenceURL: home.RequestedURL,
			IsAutoFail:  true,
		})
	case isParkedDomain(home.VisibleText):
		reasons = append(reasons, models.ReasonCode{
			Code:        "PARKED_DOMAIN",
			Category:    "accessibility",
			Severity:    models.ReasonCritical,
			Message:     "homepage content matches a registrar parking/for-sale page",
			EvidenceURL: home.RequestedURL,
			IsAutoFail:  true,
		})
	}
	// A zero or negative age means the RDAP lookup never resolved; only a
	// positively-resolved young domain escalates.
	if in.Compliance != nil && in.Compliance.DomainAgeDays > 0 && in.Compliance.DomainAgeDays < domainTooNewDays {
		reasons = append(reasons, models.ReasonCode{
			Code:           "DOMAIN_TOO_NEW",
			Category:       "accessibility",
			Severity:       models.ReasonMedium,
			Message:        fmt.Sprintf("domain registered %d days ago", in.Compliance.DomainAgeDays),
			IsAutoEscalate: true,
		})
	}
	if in.Graph.Metadata.TimedOut {
		reasons = append(reasons, models.ReasonCode{
			Code:           "CRAWL_TIMED_OUT",
			Category:       "accessibility",
			Severity:       models.ReasonMedium,
			Message:        "crawl budget exhausted before completion",
			IsAutoEscalate: true,
		})
	}
	if len(in.Graph.Metadata.Errors) > 3 {
		reasons = append(reasons, models.ReasonCode{
			Code:           "EXCESSIVE_FETCH_ERRORS",
			Category:       "accessibility",
			Severity:       models.ReasonMedium,
			Message:        fmt.Sprintf("%d pages failed to fetch", len(in.Graph.Metadata.Errors)),
			IsAutoEscalate: true,
		})
	}
	return reasons
}

// classifyAccessibilityFailure maps a homepage fetch failure's error class
// to the specific reason code spec §4.13 names; an unrecognized or absent
// class falls back to the generic SITE_UNREACHABLE.
func classifyAccessibilityFailure(home *models.PageArtifact) (string, string) {
	class := models.ErrClassUnknown
	if home.Error != nil {
		class = home.Error.Class
	}
	switch class {
	case models.ErrClassDNS:
		return "DNS_FAIL", "homepage domain does not resolve"
	case models.ErrClassSSL:
		return "SSL_ERROR", "homepage TLS handshake failed"
	default:
		return "SITE_UNREACHABLE", fmt.Sprintf("homepage unreachable (%s)", class)
	}
}

func isParkedDomain(visibleText string) bool {
	lower := strings.ToLower(visibleText)
	for _, ind := range parkedDomainIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

func containsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// missingPolicyCodes maps a policy type to the reason code fired when it is
// required but absent. Privacy and terms are mandatory (auto-fail); the
// rest escalate for human review.
var missingPolicyCodes = map[string]struct {
	code     string
	autoFail bool
}{
	"privacy_policy":    {"MISSING_PRIVACY_POLICY", true},
	"terms_conditions":  {"MISSING_TERMS", true},
	"refund_policy":     {"MISSING_REFUND_POLICY", false},
	"shipping_delivery": {"MISSING_SHIPPING_POLICY", false},
}

func policyPhase(in Input) []models.ReasonCode {
	var reasons []models.ReasonCode
	for _, pc := range in.PolicyChecks {
		if pc.Expectation != models.ExpectationRequired {
			continue
		}
		mapping, tracked := missingPolicyCodes[pc.PolicyType]
		if !pc.Found {
			if !tracked {
				continue
			}
			reasons = append(reasons, models.ReasonCode{
				Code:           mapping.code,
				Category:       "policy",
				Severity:       models.ReasonCritical,
				Message:        fmt.Sprintf("required policy %q not found", pc.PolicyType),
				IsAutoFail:     mapping.autoFail,
				IsAutoEscalate: !mapping.autoFail,
			})
			if !mapping.autoFail {
				reasons[len(reasons)-1].Severity = models.ReasonHigh
			}
			continue
		}
		// The shallow heuristic only makes sense for policy documents; a
		// contact page has no required legal vocabulary to be shallow on.
		if tracked && !pc.HasRequiredKeywords {
			reasons = append(reasons, models.ReasonCode{
				Code:           "POLICY_SHALLOW_" + strings.ToUpper(pc.PolicyType),
				Category:       "policy",
				Severity:       models.ReasonMedium,
				Message:        fmt.Sprintf("%s present but lacks required content", pc.PolicyType),
				EvidenceURL:    pc.URL,
				IsAutoEscalate: true,
			})
		}
	}
	return reasons
}

func contentRiskPhase(in Input) []models.ReasonCode {
	var reasons []models.ReasonCode
	if in.ContentRisk == nil {
		return reasons
	}
	firedHigh := map[string]bool{}
	firedMedium := map[string]bool{}
	for _, hit := range in.ContentRisk.Hits {
		if hit.SuppressedFromRisk() {
			continue
		}
		category := strings.ToLower(hit.Category)
		switch {
		case highRiskCategories[category]:
			// An isolated hit on a policy page (even promotional/neutral)
			// isn't strong enough to auto-fail; it needs corroboration or
			// placement on a regular content page.
			if !hit.Corroborated && models.PolicyPageSet[hit.PageType] {
				continue
			}
			if firedHigh[category] {
				continue
			}
			firedHigh[category] = true
			reasons = append(reasons, models.ReasonCode{
				Code:            "HIGH_RISK_CONTENT_" + strings.ToUpper(category),
				Category:        "content_risk",
				Severity:        models.ReasonCritical,
				Message:         fmt.Sprintf("high-risk content detected: %s", category),
				EvidenceURL:     hit.PageURL,
				EvidenceSnippet: hit.Snippet,
				IsAutoFail:      true,
			})
		case mediumRiskCategories[category]:
			if hit.Corroborated && !firedMedium[category] {
				firedMedium[category] = true
				reasons = append(reasons, models.ReasonCode{
					Code:            "MEDIUM_RISK_CONTENT",
					Category:        "content_risk",
					Severity:        models.ReasonMedium,
					Message:         fmt.Sprintf("corroborated medium-risk content: %s", category),
					EvidenceURL:     hit.PageURL,
					EvidenceSnippet: hit.Snippet,
					IsAutoEscalate:  true,
				})
			}
		}
	}
	if len(in.ContentRisk.DummyWordsDetected) > 0 {
		reasons = append(reasons, models.ReasonCode{
			Code:           "PLACEHOLDER_CONTENT",
			Category:       "content_risk",
			Severity:       models.ReasonMedium,
			Message:        "placeholder or dummy text found on live site",
			IsAutoEscalate: true,
		})
	}
	return reasons
}

func checkoutPhase(in Input) []models.ReasonCode {
	var reasons []models.ReasonCode
	if in.Checkout == nil {
		return reasons
	}
	if in.Checkout.Degraded {
		reasons = append(reasons, models.ReasonCode{
			Code:     "CHECKOUT_VALIDATION_DEGRADED",
			Category: "checkout",
			Severity: models.ReasonLow,
			Message:  in.Checkout.DegradedReason,
		})
		return reasons
	}
	isEcommerce := in.BusinessContext != nil &&
		(in.BusinessContext.Primary == models.ContextEcommerce || in.BusinessContext.Primary == models.ContextMarketplace)
	if !isEcommerce {
		return reasons
	}

	if !in.Checkout.PricingVisible {
		reasons = append(reasons, models.ReasonCode{
			Code:           "MISSING_PRICING",
			Category:       "checkout",
			Severity:       models.ReasonMedium,
			Message:        "no pricing information visible on the site",
			IsAutoEscalate: true,
		})
	}

	deadCTAs := len(in.Checkout.DeadCTAs)
	switch {
	case !in.Checkout.HasCTA:
		reasons = append(reasons, models.ReasonCode{
			Code:           "NO_CHECKOUT_FLOW",
			Category:       "checkout",
			Severity:       models.ReasonHigh,
			Message:        "no checkout call-to-action could be located",
			IsAutoEscalate: true,
		})
	case in.Checkout.CTAsSampled > 0 && deadCTAs == in.Checkout.CTAsSampled:
		reasons = append(reasons, models.ReasonCode{
			Code:       "DEAD_CTAS_ONLY",
			Category:   "checkout",
			Severity:   models.ReasonCritical,
			Message:    fmt.Sprintf("all %d sampled call-to-action elements failed to lead anywhere", in.Checkout.CTAsSampled),
			IsAutoFail: true,
		})
	case in.Checkout.PricingVisible && in.Checkout.CheckoutConfidence == 0:
		reasons = append(reasons, models.ReasonCode{
			Code:       "FAKE_PRICING",
			Category:   "checkout",
			Severity:   models.ReasonCritical,
			Message:    "pricing is advertised but no genuine checkout path could be found",
			IsAutoFail: true,
		})
	case !in.Checkout.CheckoutReachable:
		reasons = append(reasons, models.ReasonCode{
			Code:           "CHECKOUT_INCOMPLETE",
			Category:       "checkout",
			Severity:       models.ReasonHigh,
			Message:        "checkout flow started but could not be completed",
			IsAutoEscalate: true,
		})
	}
	return reasons
}

func entityPhase(in Input) []models.ReasonCode {
	var reasons []models.ReasonCode
	if in.Entity == nil {
		return reasons
	}
	switch in.Entity.MatchStatus {
	case models.MatchNone:
		reasons = append(reasons, models.ReasonCode{
			Code:           "LEGAL_ENTITY_MISMATCH",
			Category:       "entity",
			Severity:       models.ReasonHigh,
			Message:        fmt.Sprintf("declared name %q not found on site", in.Entity.DeclaredName),
			IsAutoEscalate: true,
		})
	case models.MatchPartial:
		reasons = append(reasons, models.ReasonCode{
			Code:           "PARTIAL_ENTITY_MATCH",
			Category:       "entity",
			Severity:       models.ReasonMedium,
			Message:        fmt.Sprintf("declared name %q only partially matches site content", in.Entity.DeclaredName),
			IsAutoEscalate: true,
		})
	}
	if in.Entity.AddressMatch != nil && in.Entity.AddressMatch.Status == models.MatchNone {
		reasons = append(reasons, models.ReasonCode{
			Code:           "ADDRESS_MISMATCH",
			Category:       "entity",
			Severity:       models.ReasonMedium,
			Message:        "declared address not found on site",
			IsAutoEscalate: true,
		})
	}
	return reasons
}

func productBusinessTypePhase(in Input) []models.ReasonCode {
	var reasons []models.ReasonCode
	switch in.ProductMatch {
	case models.ProductMismatch:
		reasons = append(reasons, models.ReasonCode{
			Code:           "PRODUCT_MISMATCH",
			Category:       "business_type",
			Severity:       models.ReasonHigh,
			Message:        "declared products/services do not match what the site actually sells",
			IsAutoEscalate: true,
		})
	case models.ProductUnableToVerify:
		reasons = append(reasons, models.ReasonCode{
			Code:     "PRODUCT_MATCH_UNVERIFIABLE",
			Category: "business_type",
			Severity: models.ReasonLow,
			Message:  "insufficient site content to verify declared products/services",
		})
	}
	if in.MCC != nil && in.MCC.Confidence >= 30 {
		if isHighRiskMCC(in.MCC.Category, in.MCC.Subcategory) {
			reasons = append(reasons, models.ReasonCode{
				Code:           "HIGH_RISK_MERCHANT_CATEGORY",
				Category:       "business_type",
				Severity:       models.ReasonHigh,
				Message:        fmt.Sprintf("merchant category %s/%s is high risk", in.MCC.Category, in.MCC.Subcategory),
				IsAutoEscalate: true,
			})
		}
	}
	if in.BusinessContext != nil && in.BusinessContext.Status != models.ContextUndetermined && in.DeclaredBusinessType != "" {
		if kws, ok := contextTypeKeywords[in.BusinessContext.Primary]; ok && !containsAnyKeyword(in.DeclaredBusinessType, kws) {
			reasons = append(reasons, models.ReasonCode{
				Code:           "BUSINESS_TYPE_MISMATCH",
				Category:       "business_type",
				Severity:       models.ReasonMedium,
				Message:        fmt.Sprintf("declared business type %q does not match detected context %s", in.DeclaredBusinessType, in.BusinessContext.Primary),
				IsAutoEscalate: true,
			})
		}
	}
	return reasons
}

func isHighRiskMCC(category, subcategory string) bool {
	if category == "Entertainment" && subcategory == "Gaming" {
		return true
	}
	if category == "Services" && subcategory == "Financial" {
		return true
	}
	return false
}

func contactPhase(in Input) []models.ReasonCode {
	var reasons []models.ReasonCode

	for _, pc := range in.PolicyChecks {
		if pc.PolicyType != "contact_us" {
			continue
		}
		if pc.Found || pc.Expectation != models.ExpectationRequired {
			return reasons
		}
		reasons = append(reasons, models.ReasonCode{
			Code:           "NO_CONTACT_METHOD",
			Category:       "contact",
			Severity:       models.ReasonMedium,
			Message:        "no contact method found on site",
			IsAutoEscalate: true,
		})
		return reasons
	}

	if in.Graph == nil {
		return reasons
	}
	if _, ok := in.Graph.ByType(models.PageContact); !ok {
		reasons = append(reasons, models.ReasonCode{
			Code:           "NO_CONTACT_METHOD",
			Category:       "contact",
			Severity:       models.ReasonMedium,
			Message:        "no contact page found on site",
			IsAutoEscalate: true,
		})
	}
	return reasons
}
