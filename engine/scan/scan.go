// Package scan wires every engine component into one request → decision
// pipeline: crawl, run each analyzer over the resulting page graph, score
// compliance, evaluate decision rules, and freeze an audit trail. Callers
// construct one ScanEngine per process and share it across requests;
// nothing in it is a package-level global.
package scan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/99souls/kycscan/engine/analyzers/content"
	kyccontext "github.com/99souls/kycscan/engine/analyzers/context"
	"github.com/99souls/kycscan/engine/analyzers/entity"
	"github.com/99souls/kycscan/engine/analyzers/mcc"
	"github.com/99souls/kycscan/engine/analyzers/policy"
	"github.com/99souls/kycscan/engine/analyzers/product"
	"github.com/99souls/kycscan/engine/audit"
	"github.com/99souls/kycscan/engine/cache"
	"github.com/99souls/kycscan/engine/checkout"
	"github.com/99souls/kycscan/engine/crawler"
	"github.com/99souls/kycscan/engine/models"
	"github.com/99souls/kycscan/engine/navigation"
	"github.com/99souls/kycscan/engine/ratelimit"
	"github.com/99souls/kycscan/engine/robots"
	"github.com/99souls/kycscan/engine/rules"
	"github.com/99souls/kycscan/engine/scoring"
	"github.com/99souls/kycscan/engine/telemetry/logging"
	"github.com/99souls/kycscan/engine/telemetry/metrics"
	"github.com/99souls/kycscan/engine/telemetry/tracing"
	"github.com/99souls/kycscan/engine/urlnorm"
)

// entityMatchBudget caps how long the scan waits for the entity matcher
// before surrendering the signal entirely.
const entityMatchBudget = 30 * time.Second

// Options configures one ScanEngine instance.
type Options struct {
	Budget           crawler.Budget
	UserAgent        string
	PageCache        cache.PageCache
	Limiter          *ratelimit.Limiter
	Logger           logging.Logger
	Metrics          metrics.Provider
	DomainAge        *scoring.DomainAgeLookup
	HTTPClient       *http.Client
	ProductExtractor product.Extractor
}

// ScanEngine runs complete merchant-website scans. Build one with New and
// reuse it for the lifetime of the process; it holds no per-scan mutable
// state of its own.
type ScanEngine struct {
	crawler  *crawler.Crawler
	scoring  *scoring.Engine
	httpc    *http.Client
	logger   logging.Logger
	provider metrics.Provider
	metrics  *metrics.ScanMetrics
	tracer   *tracing.Tracer
	products product.Extractor
}

// New builds a ScanEngine from the given options, filling sensible
// defaults for anything left zero. With no metrics backend configured the
// engine registers its instruments against a Prometheus provider, whose
// /metrics handler the host can mount via MetricsProvider.
func New(opts Options) *ScanEngine {
	if opts.Budget == (crawler.Budget{}) {
		opts.Budget = crawler.DefaultBudget()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = robots.UserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	}
	if opts.ProductExtractor == nil {
		opts.ProductExtractor = product.RuleBased{}
	}
	scanMetrics := metrics.NewScanMetrics(opts.Metrics)

	pageCache := opts.PageCache
	if pageCache == nil {
		pageCache = cache.NewNoopCache()
	}
	pageCache = &instrumentedCache{inner: pageCache, metrics: scanMetrics}

	robotsCache := robots.NewCache(opts.HTTPClient)
	cr := crawler.New(opts.Budget, opts.UserAgent, robotsCache, pageCache, opts.Limiter, opts.Logger)

	return &ScanEngine{
		crawler:  cr,
		scoring:  scoring.New(opts.DomainAge),
		httpc:    opts.HTTPClient,
		logger:   opts.Logger,
		provider: opts.Metrics,
		metrics:  scanMetrics,
		tracer:   tracing.NewTracer("kycscan/engine/scan"),
		products: opts.ProductExtractor,
	}
}

// MetricsProvider returns the metrics backend the engine records against,
// so a host can mount its exposition handler (e.g. a PrometheusProvider's
// MetricsHandler) or check its health.
func (e *ScanEngine) MetricsProvider() metrics.Provider { return e.provider }

// Scan runs a synchronous end-to-end screening of one merchant and blocks
// until the decision is ready or ctx is cancelled.
func (e *ScanEngine) Scan(ctx context.Context, in models.MerchantInput) (*models.KYCDecision, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	rootURL := normalizeScheme(in.WebsiteURL)

	ctx, span := e.tracer.StartSpan(ctx, tracing.SpanScan)
	defer span.End()

	started := time.Now()
	trail := audit.StartAudit(rootURL, started)
	trail.AddTimestamp("SCAN_START", in.MerchantLegalName)
	if normalized, err := urlnorm.Normalize(rootURL); err == nil && normalized != rootURL {
		trail.AddTimestamp("SEED", fmt.Sprintf("%s -> %s", rootURL, normalized))
	}

	crawlCtx, crawlSpan := e.tracer.StartSpan(ctx, tracing.SpanCrawl)
	graph, err := e.crawler.Crawl(crawlCtx, rootURL)
	crawlSpan.End()
	if err != nil && graph == nil {
		return nil, fmt.Errorf("scan: crawl: %w", err)
	}
	trail.ImportScanEvidence(graph)
	trail.AddTimestamp("CRAWL_COMPLETE", fmt.Sprintf("%d pages", len(graph.Pages())))
	e.metrics.CrawlDuration.Observe(graph.Metadata.CrawlDuration.Seconds())
	e.metrics.PagesFetched.Observe(float64(graph.Metadata.PagesFetched))

	home, homeOK := graph.Home()
	if homeOK && home.FinalURL != "" {
		trail.SetFinalURL(home.FinalURL)
	}

	contentPages := make([]content.Page, 0, len(graph.Pages()))
	mccPages := make([]mcc.PageText, 0, len(graph.Pages()))
	site := entity.Site{PageTexts: map[string]string{}}
	for _, p := range graph.Pages() {
		if p.Status != 200 {
			continue
		}
		contentPages = append(contentPages, content.Page{URL: p.RequestedURL, Text: p.VisibleText, PageType: p.PageType})
		mccPages = append(mccPages, mcc.PageText{URL: p.RequestedURL, Text: p.VisibleText})
		site.PageTexts[p.RequestedURL] = p.VisibleText
		site.FooterTexts = append(site.FooterTexts, entity.FooterText(p.HTML))
		if p.PageType == models.PageHome {
			site.HomeTitle = p.VisibleText
		}
		if p.PageType == models.PageContact {
			site.ContactAddress = p.VisibleText
		}
		if p.PageType == models.PageTermsConditions {
			site.TermsConditionsText = p.VisibleText
		}
	}

	_, contentSpan := e.tracer.StartSpan(ctx, tracing.SpanAnalyzeContent)
	contentResult := analyzeContent(contentPages, in.Optional)
	contentSpan.End()
	trail.AddTimestamp("CONTENT_ANALYSIS_COMPLETE", fmt.Sprintf("%d hits", len(contentResult.Hits)))
	for _, hit := range contentResult.Hits {
		trail.AddKeywordTrigger(hit)
	}

	entityResult := matchEntityWithBudget(ctx, in.MerchantLegalName, in.RegisteredAddress, site)
	if entityResult != nil {
		trail.AddTimestamp("ENTITY_MATCH_COMPLETE", string(entityResult.MatchStatus))
	} else {
		trail.AddTimestamp("ENTITY_MATCH_COMPLETE", "surrendered: budget exceeded")
	}

	mccMatch := mcc.Classify(mccPages)

	businessCtx := kyccontext.Classify(buildContextEvidence(graph, mccMatch))
	trail.AddTimestamp("BUSINESS_CONTEXT_CLASSIFIED", string(businessCtx.Primary))

	// The checkout validator only runs for commercial contexts with a
	// reachable homepage, and overlaps the remaining analyzer/scoring work.
	checkoutCh := make(chan *models.CheckoutFlowResult, 1)
	if shouldValidateCheckout(graph, businessCtx) {
		var crawlURLs []checkout.CrawlURL
		for _, p := range graph.Pages() {
			crawlURLs = append(crawlURLs, checkout.CrawlURL{URL: p.RequestedURL, PageType: p.PageType})
		}
		go func() {
			coCtx, coSpan := e.tracer.StartSpan(ctx, tracing.SpanCheckout)
			defer coSpan.End()
			checkoutStart := time.Now()
			res := checkout.Validate(coCtx, rootURL, crawlURLs, e.httpc)
			e.metrics.CheckoutDuration.Observe(time.Since(checkoutStart).Seconds())
			checkoutCh <- res
		}()
	} else {
		checkoutCh <- nil
	}

	expectations := policyExpectationsFor(businessCtx)
	homeAnchors := extractHomeAnchors(graph)
	policyChecks := policy.Detect(ctx, graph, homeAnchors, e.httpc, expectations)
	trail.AddTimestamp("POLICY_CHECK_COMPLETE", fmt.Sprintf("%d checks", len(policyChecks)))

	productMatch := e.evaluateProductMatch(in.DeclaredProductsServices, businessCtx, graph)
	trail.AddTimestamp("PRODUCT_MATCH_EVALUATED", string(productMatch))

	contentRiskSummary := &models.ContentRiskSummary{
		Hits:                  contentResult.Hits,
		Corroboration:         contentResult.Corroboration,
		PolicyMentionsCount:   contentResult.PolicyMentionsCount,
		RiskContributingCount: contentResult.RiskContributingCount,
		DummyWordsDetected:    contentResult.DummyWordsDetected,
	}

	scoreCtx, scoreSpan := e.tracer.StartSpan(ctx, tracing.SpanScore)
	compliance := e.scoring.Score(scoreCtx, scoring.Input{
		Graph:           graph,
		PolicyChecks:    policyChecks,
		ContentRisk:     contentRiskSummary,
		BusinessContext: businessCtx,
	})
	scoreSpan.End()
	e.metrics.ComplianceScore.Observe(compliance.Overall)
	trail.AddTimestamp("COMPLIANCE_SCORED", fmt.Sprintf("%.1f", compliance.Overall))

	checkoutResult := <-checkoutCh
	trail.AddTimestamp("CHECKOUT_VALIDATION_COMPLETE", checkoutDetail(checkoutResult))

	_, decideSpan := e.tracer.StartSpan(ctx, tracing.SpanDecide)
	reasonCodes, decision, confidence := rules.Evaluate(rules.Input{
		Graph:                graph,
		PolicyChecks:         policyChecks,
		ContentRisk:          contentRiskSummary,
		Checkout:             checkoutResult,
		Entity:               entityResult,
		BusinessContext:      businessCtx,
		MCC:                  mccMatch,
		ProductMatch:         productMatch,
		Compliance:           compliance,
		DeclaredBusinessType: in.DeclaredBusinessType,
	})
	decideSpan.End()
	confidence = capConfidenceForRiskTier(decision, confidence, in.Optional)
	trail.AddTimestamp("DECISION_RULES_EVALUATED", string(decision))
	e.metrics.ScansTotal.Inc(1, string(decision))

	recordChecks(trail, reasonCodes)
	trail.AddEvidenceFromReasons(reasonCodes, graph)
	trail.AddTimestamp("SCAN_COMPLETE", string(decision))

	view := trail.Build(time.Now(), graph.Metadata.PagesFetched)

	return &models.KYCDecision{
		Decision:             decision,
		ReasonCodes:          reasonCodes,
		Summary:              summarize(decision, reasonCodes),
		Confidence:           confidence,
		PolicyChecks:         policyChecks,
		CheckoutFlow:         checkoutResult,
		EntityMatch:          entityResult,
		ComplianceScore:      compliance,
		DetectedBusinessType: businessCtx,
		DetectedMCC:          mccMatch,
		ProductMatchStatus:   productMatch,
		ContentRiskSummary:   contentRiskSummary,
		AuditTrail:           view,
		ScanVersion:          models.ScanVersion,
	}, nil
}

// ScanAsync runs Scan in a goroutine and returns a channel that receives
// exactly one result. Callers that already have their own worker pool
// (an HTTP handler's request goroutine, a queue consumer) can await it
// directly instead of blocking the calling goroutine on Scan.
func (e *ScanEngine) ScanAsync(ctx context.Context, in models.MerchantInput) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		decision, err := e.Scan(ctx, in)
		out <- Result{Decision: decision, Err: err}
	}()
	return out
}

// Result is the payload delivered on a ScanAsync channel.
type Result struct {
	Decision *models.KYCDecision
	Err      error
}

// analyzeContent widens the keyword catalog for the merchant's declared
// jurisdiction when one was supplied; scrutiny is only ever added.
func analyzeContent(pages []content.Page, optional *models.OptionalMerchantData) content.Result {
	if optional != nil && optional.CountryOfIncorporation != "" {
		return content.AnalyzeForJurisdiction(pages, strings.ToUpper(optional.CountryOfIncorporation))
	}
	return content.Analyze(pages)
}

// matchEntityWithBudget runs the entity matcher under a hard time budget;
// a blown budget surrenders the signal as nil rather than stalling the scan.
func matchEntityWithBudget(ctx context.Context, declaredName, declaredAddress string, site entity.Site) *models.EntityMatchResult {
	resultCh := make(chan *models.EntityMatchResult, 1)
	go func() {
		resultCh <- entity.Match(declaredName, declaredAddress, site)
	}()
	timer := time.NewTimer(entityMatchBudget)
	defer timer.Stop()
	select {
	case r := <-resultCh:
		return r
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// shouldValidateCheckout gates the browser probe: it needs a reachable
// homepage and a context where a purchase path is even expected.
func shouldValidateCheckout(graph *models.NormalizedPageGraph, ctx *models.BusinessContext) bool {
	home, ok := graph.Home()
	if !ok || home.Status != 200 {
		return false
	}
	if ctx != nil && ctx.Primary == models.ContextContent {
		return false
	}
	return true
}

func checkoutDetail(r *models.CheckoutFlowResult) string {
	switch {
	case r == nil:
		return "skipped"
	case r.Degraded:
		return "degraded: " + r.DegradedReason
	case r.CheckoutReachable:
		return "checkout reachable"
	default:
		return "checkout not reachable"
	}
}

// capConfidenceForRiskTier keeps a HIGH-risk-tier merchant's PASS from
// carrying top-band confidence regardless of how clean the scan looked.
func capConfidenceForRiskTier(decision models.Decision, confidence float64, optional *models.OptionalMerchantData) float64 {
	if decision != models.DecisionPass || optional == nil || optional.RiskTier != models.RiskHigh {
		return confidence
	}
	if confidence > 0.85 {
		return 0.85
	}
	return confidence
}

// extractHomeAnchors re-runs navigation extraction over the homepage HTML
// so the policy detector has anchor candidates to fall back on when the
// crawl graph carries no page of a given policy type.
func extractHomeAnchors(graph *models.NormalizedPageGraph) []navigation.Candidate {
	home, ok := graph.Home()
	if !ok || home.Status != 200 || home.HTML == "" {
		return nil
	}
	base, err := url.Parse(home.RequestedURL)
	if err != nil {
		return nil
	}
	return navigation.Extract(home.HTML, base, "")
}

// recordChecks projects the triggered reason codes into audit checks:
// auto-fail reasons are failed checks, auto-escalate reasons are flagged
// for review, and informational reasons are recorded as passed context.
func recordChecks(trail *audit.Trail, reasons []models.ReasonCode) {
	for _, rc := range reasons {
		switch {
		case rc.IsAutoFail:
			trail.AddCheck(rc.Code, false, rc.Message)
		case rc.IsAutoEscalate:
			trail.AddFlaggedCheck(rc.Code, rc.Message)
		default:
			trail.AddCheck(rc.Code, true, rc.Message)
		}
	}
}

func normalizeScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

func summarize(decision models.Decision, reasons []models.ReasonCode) string {
	if len(reasons) == 0 {
		return fmt.Sprintf("%s: no issues found", decision)
	}
	head := reasons[0].Code
	if reasons[0].Message != "" {
		head += ": " + reasons[0].Message
	}
	if len(reasons) > 1 {
		return fmt.Sprintf("%s: %s (+%d more issues)", decision, head, len(reasons)-1)
	}
	return fmt.Sprintf("%s: %s", decision, head)
}

// evaluateProductMatch extracts what the site actually offers and compares
// it against the merchant's declaration. A crawl too broken to classify a
// business context is too broken to verify products against.
func (e *ScanEngine) evaluateProductMatch(declared []string, ctx *models.BusinessContext, graph *models.NormalizedPageGraph) models.ProductMatchStatus {
	if ctx == nil || ctx.Status == models.ContextUndetermined {
		return models.ProductUnableToVerify
	}
	extracted := e.products.Extract(graph)
	return product.Match(declared, extracted, graph.CombinedVisibleText())
}

// policyExpectationsFor derives which policy pages a merchant is expected to
// carry from its detected business context. Privacy is always required;
// terms, refund, shipping and contact expectations vary by context, since a
// subscription or infrastructure business has no physical fulfillment to
// document and an undetermined context can't be held to either standard.
func policyExpectationsFor(ctx *models.BusinessContext) map[models.PageType]models.PolicyExpectation {
	expectations := map[models.PageType]models.PolicyExpectation{
		models.PagePrivacyPolicy:   models.ExpectationRequired,
		models.PageTermsConditions: models.ExpectationRequired,
		models.PageContact:         models.ExpectationRequired,
	}

	primary := models.ContextUnknown
	undetermined := ctx == nil || ctx.Status == models.ContextUndetermined
	if ctx != nil {
		primary = ctx.Primary
	}

	switch {
	case undetermined:
		expectations[models.PageRefundPolicy] = models.ExpectationOptional
		expectations[models.PageShippingDelivery] = models.ExpectationOptional
		expectations[models.PageContact] = models.ExpectationOptional
	case primary == models.ContextSaaS:
		expectations[models.PageRefundPolicy] = models.ExpectationOptional
		expectations[models.PageShippingDelivery] = models.ExpectationNA
	case primary == models.ContextFintech:
		expectations[models.PageRefundPolicy] = models.ExpectationNA
		expectations[models.PageShippingDelivery] = models.ExpectationNA
	case primary == models.ContextBlockchain:
		expectations[models.PageRefundPolicy] = models.ExpectationNA
		expectations[models.PageShippingDelivery] = models.ExpectationOptional
		expectations[models.PageContact] = models.ExpectationOptional
	case primary == models.ContextContent:
		expectations[models.PageTermsConditions] = models.ExpectationOptional
		expectations[models.PageRefundPolicy] = models.ExpectationNA
		expectations[models.PageShippingDelivery] = models.ExpectationOptional
		expectations[models.PageContact] = models.ExpectationOptional
	default:
		expectations[models.PageRefundPolicy] = models.ExpectationRequired
		expectations[models.PageShippingDelivery] = models.ExpectationRequired
	}

	return expectations
}

func buildContextEvidence(graph *models.NormalizedPageGraph, m *models.MCCMatch) kyccontext.Evidence {
	ev := kyccontext.Evidence{
		Crawl: kyccontext.CrawlSignals{
			PagesFetched:    graph.Metadata.PagesFetched,
			PagesDiscovered: graph.Metadata.PagesDiscovered,
			RobotsChecked:   graph.Metadata.RobotsChecked,
			SitemapFound:    graph.Metadata.SitemapFound,
		},
		KeywordHits: kyccontext.CollectKeywordHits(graph.CombinedVisibleText()),
	}
	if home, ok := graph.Home(); ok {
		blocked := home.Status == http.StatusForbidden || home.Status == http.StatusUnauthorized
		if home.Error != nil && home.Error.Class == models.ErrClassBlocked {
			blocked = true
		}
		ev.Crawl.Blocked = blocked
		ev.Crawl.AuthGated = blocked
	}
	if m != nil {
		ev.MCC = kyccontext.MCCSignal{Description: m.Category + " " + m.Subcategory, Confidence: m.Confidence}
	}
	if _, ok := graph.ByType(models.PageProduct); ok {
		ev.Structure.HasCart = true
	}
	if _, ok := graph.ByType(models.PagePricing); ok {
		ev.Structure.HasPricingPage = true
	}
	for _, p := range graph.Pages() {
		lower := strings.ToLower(p.RequestedURL)
		if strings.Contains(lower, "/cart") || strings.Contains(lower, "/checkout") {
			ev.Structure.HasCheckout = true
			ev.Crawl.EcommerceURLPatterns = true
			break
		}
	}
	return ev
}

// instrumentedCache wraps a PageCache so every lookup lands in the scan
// metrics as a hit or miss without the crawler knowing about metrics.
type instrumentedCache struct {
	inner   cache.PageCache
	metrics *metrics.ScanMetrics
}

func (c *instrumentedCache) Get(ctx context.Context, normalizedURL string) (*models.PageArtifact, bool, error) {
	artifact, hit, err := c.inner.Get(ctx, normalizedURL)
	if err == nil && hit {
		c.metrics.CacheHits.Inc(1, backendName(c.inner))
	} else {
		c.metrics.CacheMisses.Inc(1, backendName(c.inner))
	}
	return artifact, hit, err
}

func (c *instrumentedCache) Put(ctx context.Context, artifact *models.PageArtifact) error {
	return c.inner.Put(ctx, artifact)
}

func (c *instrumentedCache) Close() error { return c.inner.Close() }

func backendName(pc cache.PageCache) string {
	switch pc.(type) {
	case *cache.PostgresCache:
		return "postgres"
	case *cache.NoopCache:
		return "noop"
	default:
		return "custom"
	}
}
