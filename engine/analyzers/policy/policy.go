// Package policy decides, for each required policy type, whether it was
// found, where, and with what evidence — preferring a page already present
// in the crawl graph over a single validating HEAD/GET of an anchor URL.
package policy

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/99souls/kycscan/engine/models"
	"github.com/99souls/kycscan/engine/navigation"
)

// detectedPolicies lists, in fixed evaluation order, the page types the
// detector reports on and the canonical PolicyCheckResult.PolicyType string
// for each. The contact page is included because the scoring engine treats
// a reachable contact method as one of its four policy checks.
var detectedPolicies = []struct {
	pageType models.PageType
	name     string
}{
	{models.PagePrivacyPolicy, "privacy_policy"},
	{models.PageTermsConditions, "terms_conditions"},
	{models.PageRefundPolicy, "refund_policy"},
	{models.PageShippingDelivery, "shipping_delivery"},
	{models.PageContact, "contact_us"},
}

// requiredKeywords are checked in a found policy page's text as a coarse
// sanity signal that the page isn't a stub.
var requiredKeywords = map[models.PageType][]string{
	models.PagePrivacyPolicy:    {"privacy", "personal information", "data"},
	models.PageTermsConditions:  {"terms", "agreement", "conditions"},
	models.PageRefundPolicy:     {"refund", "return"},
	models.PageShippingDelivery: {"shipping", "delivery"},
	models.PageContact:          {"contact", "email", "phone", "address"},
}

// Detect evaluates presence of every detected policy type in a fixed order.
// homeAnchors are the anchor candidates discovered on the homepage, used
// only as a fallback when the graph has no page of the right type.
func Detect(ctx context.Context, graph *models.NormalizedPageGraph, homeAnchors []navigation.Candidate, httpc *http.Client, expectations map[models.PageType]models.PolicyExpectation) []models.PolicyCheckResult {
	if httpc == nil {
		httpc = &http.Client{Timeout: 5 * time.Second}
	}
	results := make([]models.PolicyCheckResult, 0, len(detectedPolicies))
	for _, dp := range detectedPolicies {
		results = append(results, detectOne(ctx, graph, homeAnchors, httpc, dp.pageType, dp.name, expectations[dp.pageType]))
	}
	return results
}

func detectOne(ctx context.Context, graph *models.NormalizedPageGraph, anchors []navigation.Candidate, httpc *http.Client, pt models.PageType, name string, expectation models.PolicyExpectation) models.PolicyCheckResult {
	if page, ok := graph.ByType(pt); ok && page.Status == 200 {
		return models.PolicyCheckResult{
			PolicyType:          name,
			Found:               true,
			URL:                 page.RequestedURL,
			ContentLength:       len(page.VisibleText),
			HasRequiredKeywords: containsAny(page.VisibleText, requiredKeywords[pt]),
			Expectation:         expectation,
			Evidence:            snippet(page.VisibleText),
		}
	}

	var anchorURL string
	for _, a := range anchors {
		if a.PageType == pt {
			anchorURL = a.URL
			break
		}
	}
	if anchorURL == "" {
		return models.PolicyCheckResult{PolicyType: name, Found: false, Expectation: expectation}
	}

	ok := validateAnchor(ctx, httpc, anchorURL)
	return models.PolicyCheckResult{
		PolicyType:  name,
		Found:       ok,
		URL:         anchorURL,
		Expectation: expectation,
	}
}

// validateAnchor issues a single HEAD request (falling back to GET on 405)
// to confirm the anchor-detected URL actually resolves.
func validateAnchor(ctx context.Context, httpc *http.Client, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return false
		}
		getResp, err := httpc.Do(getReq)
		if err != nil {
			return false
		}
		defer func() { _ = getResp.Body.Close() }()
		return getResp.StatusCode == http.StatusOK
	}
	return resp.StatusCode == http.StatusOK
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func snippet(text string) string {
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
