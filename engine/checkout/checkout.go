// Package checkout drives a headless browser to find a site's
// call-to-action elements, click through them, and score whatever page
// results for checkout-reachability, falling back to a direct-URL probe
// and finally to a degraded result when no browser is available.
package checkout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/99souls/kycscan/engine/models"
)

const (
	pageLoadTimeout    = 30 * time.Second
	ctaClickTimeout    = 5 * time.Second
	postClickWait      = 2 * time.Second
	postClickSettle    = 1500 * time.Millisecond
	directProbeTimeout = 8 * time.Second
	maxCTASamples      = 5
	checkoutThreshold  = 0.25
	maxProbeBodyBytes  = 2 * 1024 * 1024
)

var ctaKeywordSets = map[string][]string{
	"buy":           {"buy now", "buy", "purchase", "add to cart"},
	"cart":          {"view cart", "cart", "basket"},
	"subscribe":     {"subscribe", "start free trial", "free trial", "start trial"},
	"checkout":      {"checkout", "proceed to checkout", "place order"},
	"pricing":       {"pricing", "view plans", "plans"},
	"contact_sales": {"contact sales", "talk to sales"},
}

var pricingKeywordRe = regexp.MustCompile(`(?i)\bpricing\b|\bplans?\b`)

var loginRedirectPattern = regexp.MustCompile(`(?i)/(login|signin|sign-in|account/login)`)

var commonCheckoutPaths = []string{"/checkout", "/cart", "/basket", "/checkout/cart", "/order", "/payment"}

var checkoutURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/checkout`),
	regexp.MustCompile(`(?i)/cart`),
	regexp.MustCompile(`(?i)/basket`),
	regexp.MustCompile(`(?i)/payment`),
	regexp.MustCompile(`(?i)/order`),
}

var routePattern = regexp.MustCompile(`(?i)[?&]route=(checkout|cart|payment)`)

var strongContentIndicators = []string{
	"order total", "payment method", "credit card", "billing address", "place order",
}

var weakContentIndicators = []string{
	"subtotal", "shipping cost", "tax", "promo code", "discount code", "estimated delivery",
}

var formFieldSelectors = []string{
	`input[name*="card"]`, `input[name*="cvv"]`, `input[name*="billing"]`,
	`input[name*="shipping"]`, `input[autocomplete="cc-number"]`,
}

var addToCartRe = regexp.MustCompile(`(?i)add to cart`)

// CrawlURL is the minimal shape the direct-URL fallback needs from a page
// already discovered by the crawl orchestrator.
type CrawlURL struct {
	URL      string
	PageType models.PageType
}

type ctaCandidate struct {
	category string
	xpath    string
}

// Validate loads rootURL in a hardened headless Chrome instance, samples up
// to five CTAs, clicks through each, and scores the resulting page for
// checkout-reachability. When no browser can be launched it returns a
// degraded result instead of failing the scan.
func Validate(ctx context.Context, rootURL string, crawledURLs []CrawlURL, httpc *http.Client) *models.CheckoutFlowResult {
	browserCtx, cancel, err := newBrowserContext(ctx)
	if err != nil {
		return &models.CheckoutFlowResult{Degraded: true, DegradedReason: err.Error()}
	}
	defer cancel()

	loadCtx, loadCancel := context.WithTimeout(browserCtx, pageLoadTimeout)
	defer loadCancel()

	var bodyText, bodyHTML, finalURL string
	if err := chromedp.Run(loadCtx,
		chromedp.Navigate(rootURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Location(&finalURL),
		chromedp.Text("body", &bodyText, chromedp.ByQuery),
		chromedp.InnerHTML("html", &bodyHTML, chromedp.ByQuery),
	); err != nil {
		return &models.CheckoutFlowResult{
			Degraded:       true,
			DegradedReason: fmt.Sprintf("failed to load %s: %v", rootURL, err),
		}
	}
	_ = bodyHTML

	if loginRedirectPattern.MatchString(finalURL) {
		return &models.CheckoutFlowResult{Evidence: []string{"redirected to login page: " + finalURL}}
	}

	result := &models.CheckoutFlowResult{
		PricingVisible: pricingKeywordRe.MatchString(bodyText),
	}

	ctas := findCTAs(bodyText)
	result.HasCTA = len(ctas) > 0
	if len(ctas) > maxCTASamples {
		ctas = ctas[:maxCTASamples]
	}
	result.CTAsSampled = len(ctas)

	for _, cta := range ctas {
		newURL, newHTML, formsPresent, reason := clickCTA(browserCtx, cta)
		if reason != "" {
			result.DeadCTAs = append(result.DeadCTAs, models.DeadCTA{Text: cta.category, Reason: reason})
			continue
		}
		result.CTAClickable = true
		score, evidence := classify(newURL, newHTML, formsPresent)
		if formsPresent {
			result.FormFieldsPresent = true
		}
		if score > result.CheckoutConfidence {
			result.CheckoutConfidence = score
			result.CheckoutURL = newURL
			result.Evidence = evidence
		}
	}

	if result.CheckoutConfidence < checkoutThreshold {
		probeDirectPaths(ctx, httpc, rootURL, crawledURLs, result)
	}

	result.CheckoutReachable = result.CheckoutConfidence >= checkoutThreshold
	return result
}

// newBrowserContext launches a hardened headless Chrome instance, the same
// container-safe flag set as a pricing-page prober that faces the same
// class of arbitrary-site navigation problem.
func newBrowserContext(parent context.Context) (context.Context, context.CancelFunc, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			chromedp.WindowSize(1920, 1080),
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-background-networking", true),
			chromedp.Flag("disable-default-apps", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-sync", true),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("hide-scrollbars", true),
		)...,
	)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, nil, fmt.Errorf("%w: %v", models.ErrBrowserUnavailable, err)
	}
	return browserCtx, func() { browserCancel(); allocCancel() }, nil
}

// findCTAs scans visible body text for CTA keyword hits and builds an XPath
// selector per category good enough to click the first matching clickable
// element in the DOM.
func findCTAs(bodyText string) []ctaCandidate {
	lower := strings.ToLower(bodyText)
	var out []ctaCandidate
	for category, keywords := range ctaKeywordSets {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, ctaCandidate{category: category, xpath: xpathFor(kw)})
				break
			}
		}
	}
	return out
}

func xpathFor(keyword string) string {
	title := strings.ToUpper(keyword[:1]) + keyword[1:]
	return fmt.Sprintf(`//*[self::button or self::a or self::input][contains(., %q) or contains(., %q)]`, keyword, title)
}

// clickCTA scrolls a CTA into view, clicks it, waits for the page to
// settle, and returns the resulting URL/HTML and whether payment-shaped
// form fields are now present. An empty reason means success.
func clickCTA(ctx context.Context, cta ctaCandidate) (newURL, newHTML string, formsPresent bool, reason string) {
	clickCtx, cancel := context.WithTimeout(ctx, ctaClickTimeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(clickCtx, chromedp.Nodes(cta.xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil || len(nodes) == 0 {
		return "", "", false, "no matching element found"
	}

	if err := chromedp.Run(clickCtx,
		chromedp.ScrollIntoView(cta.xpath, chromedp.BySearch),
		chromedp.Click(cta.xpath, chromedp.BySearch),
	); err != nil {
		return "", "", false, "click failed: " + err.Error()
	}

	settleCtx, settleCancel := context.WithTimeout(ctx, postClickWait+postClickSettle)
	defer settleCancel()
	if err := chromedp.Run(settleCtx, chromedp.Sleep(postClickWait)); err != nil {
		return "", "", false, "post-click wait failed"
	}

	if err := chromedp.Run(ctx,
		chromedp.Location(&newURL),
		chromedp.InnerHTML("html", &newHTML, chromedp.ByQuery),
	); err != nil {
		return "", "", false, "failed to inspect post-click state"
	}
	return newURL, newHTML, detectFormFields(ctx), ""
}

func detectFormFields(ctx context.Context) bool {
	for _, sel := range formFieldSelectors {
		var nodes []*cdp.Node
		if err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err == nil && len(nodes) > 0 {
			return true
		}
	}
	return false
}

// classify scores a page's checkout-likelihood from its URL and content.
// Each signal group's contribution is capped so no single noisy signal can
// dominate the score.
func classify(pageURL, html string, formFieldsPresent bool) (float64, []string) {
	lower := strings.ToLower(html)
	var evidence []string
	score := 0.0

	urlScore := 0.0
	for _, re := range checkoutURLPatterns {
		if re.MatchString(pageURL) {
			urlScore += 0.2
		}
	}
	if routePattern.MatchString(pageURL) {
		urlScore += 0.2
	}
	if urlScore > 0.4 {
		urlScore = 0.4
	}
	if urlScore > 0 {
		score += urlScore
		evidence = append(evidence, "url pattern match: "+pageURL)
	}

	strongScore := 0.0
	for _, ind := range strongContentIndicators {
		if strings.Contains(lower, ind) {
			strongScore += 0.2
			evidence = append(evidence, "content indicator: "+ind)
		}
	}
	if strongScore > 0.5 {
		strongScore = 0.5
	}
	score += strongScore

	weakHits := 0
	for _, ind := range weakContentIndicators {
		if strings.Contains(lower, ind) {
			weakHits++
		}
	}
	switch {
	case weakHits >= 2:
		score += 0.15
	case weakHits == 1:
		score += 0.05
	}

	if formFieldsPresent {
		score += 0.1
		evidence = append(evidence, "payment/billing form fields present")
	}

	if addToCartCount := len(addToCartRe.FindAllString(lower, -1)); addToCartCount > 1 {
		penalty := float64(addToCartCount-1) * 0.1
		if penalty > 0.3 {
			penalty = 0.3
		}
		score -= penalty
		evidence = append(evidence, fmt.Sprintf("%d add-to-cart instances suggest a listing page, not checkout", addToCartCount))
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, evidence
}

// probeDirectPaths tries common checkout paths plus any checkout-shaped
// URLs the crawl already discovered, using plain HTTP rather than the
// browser — used only when no clicked CTA reached checkout confidence.
func probeDirectPaths(ctx context.Context, httpc *http.Client, rootURL string, crawledURLs []CrawlURL, result *models.CheckoutFlowResult) {
	if httpc == nil {
		httpc = &http.Client{}
	}
	base, err := url.Parse(rootURL)
	if err != nil {
		return
	}

	candidates := make([]string, 0, len(commonCheckoutPaths)+len(crawledURLs))
	for _, p := range commonCheckoutPaths {
		u := *base
		u.Path = p
		candidates = append(candidates, u.String())
	}
	for _, c := range crawledURLs {
		for _, re := range checkoutURLPatterns {
			if re.MatchString(c.URL) {
				candidates = append(candidates, c.URL)
				break
			}
		}
	}

	for _, candidate := range candidates {
		probeCtx, cancel := context.WithTimeout(ctx, directProbeTimeout)
		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, candidate, nil)
		if err != nil {
			cancel()
			continue
		}
		resp, err := httpc.Do(req)
		if err != nil {
			cancel()
			continue
		}
		finalURL := resp.Request.URL.String()
		if loginRedirectPattern.MatchString(finalURL) {
			_ = resp.Body.Close()
			cancel()
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxProbeBodyBytes))
		_ = resp.Body.Close()
		cancel()

		score, evidence := classify(finalURL, string(body), false)
		if score > result.CheckoutConfidence {
			result.CheckoutConfidence = score
			result.CheckoutURL = finalURL
			result.Evidence = evidence
		}
	}
}
