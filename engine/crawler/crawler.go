// Package crawler fans out from a merchant's homepage to the rest of the
// site under a strict page/time/depth budget, producing a NormalizedPageGraph.
package crawler

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/99souls/kycscan/engine/cache"
	"github.com/99souls/kycscan/engine/models"
	"github.com/99souls/kycscan/engine/navigation"
	"github.com/99souls/kycscan/engine/ratelimit"
	"github.com/99souls/kycscan/engine/robots"
	"github.com/99souls/kycscan/engine/telemetry/logging"
	"github.com/99souls/kycscan/engine/urlnorm"
)

// Budget bounds a single crawl.
type Budget struct {
	MaxPages       int
	MaxDepth       int
	Concurrency    int
	PerPageTimeout time.Duration
	TotalTimeout   time.Duration
}

// DefaultBudget is the standard per-scan crawl allowance: twenty pages,
// two levels deep, ten concurrent fetches, ten seconds wall-clock.
func DefaultBudget() Budget {
	return Budget{
		MaxPages:       20,
		MaxDepth:       2,
		Concurrency:    10,
		PerPageTimeout: 3 * time.Second,
		TotalTimeout:   10 * time.Second,
	}
}

// Crawler orchestrates the fetch fan-out.
type Crawler struct {
	budget    Budget
	userAgent string
	robots    *robots.Cache
	pageCache cache.PageCache
	limiter   *ratelimit.Limiter
	logger    logging.Logger
	httpc     *http.Client
}

// New returns a Crawler. pageCache and limiter may be nil (a NoopCache / no
// pacing is used respectively) to keep the crawl fail-open.
func New(budget Budget, userAgent string, robotsCache *robots.Cache, pageCache cache.PageCache, limiter *ratelimit.Limiter, logger logging.Logger) *Crawler {
	if pageCache == nil {
		pageCache = cache.NewNoopCache()
	}
	return &Crawler{
		budget:    budget,
		userAgent: userAgent,
		robots:    robotsCache,
		pageCache: pageCache,
		limiter:   limiter,
		logger:    logger,
		httpc:     &http.Client{Timeout: budget.PerPageTimeout + 2*time.Second},
	}
}

// queuedURL is a candidate awaiting fetch.
type queuedURL struct {
	url        string
	anchorText string
	pageType   models.PageType
	confidence float64
	source     models.SourceTag
	depth      int
}

// Crawl runs the full ten-step algorithm from the orchestrator contract and
// returns a well-formed graph even on partial failure — a reachable
// homepage alone is a valid, if limited, result.
func (c *Crawler) Crawl(ctx context.Context, rootURL string) (*models.NormalizedPageGraph, error) {
	graph := models.NewPageGraph()
	graph.Metadata.CrawlStarted = time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.budget.TotalTimeout)
	defer cancel()

	normalizedRoot, err := urlnorm.Normalize(rootURL)
	if err != nil {
		return nil, models.ErrMissingRootURL
	}
	base, err := url.Parse(normalizedRoot)
	if err != nil || base.Host == "" {
		return nil, models.ErrMissingRootURL
	}

	rules := c.robots.Get(base)
	graph.Metadata.RobotsChecked = rules != nil

	home := fetchOne(ctx, normalizedRoot, c.budget.PerPageTimeout, c.userAgent)
	if home.Err != nil || home.Status == 0 {
		artifact := &models.PageArtifact{
			RequestedURL: normalizedRoot,
			Status:       home.Status,
			PageType:     models.PageHome,
			Source:       models.SourceRoot,
			RenderType:   models.RenderHTTP,
			FetchedAt:    time.Now(),
			Error:        models.NewScanError(normalizedRoot, "homepage_fetch", classifyErrorOrDefault(home), home.Err),
		}
		graph.AddPage(artifact)
		graph.Metadata.CrawlDuration = time.Since(graph.Metadata.CrawlStarted)
		graph.Metadata.Errors = append(graph.Metadata.Errors, models.PageError{URL: normalizedRoot, Class: artifact.Error.Class, Msg: artifact.Error.Error()})
		return graph, models.ErrHomepageUnreachable
	}

	homeText := extractVisibleText(home.HTML)
	homeArtifact := &models.PageArtifact{
		RequestedURL:             normalizedRoot,
		FinalURL:                 home.FinalURL,
		Status:                   home.Status,
		ContentType:              home.ContentType,
		HTML:                     home.HTML,
		VisibleText:              homeText,
		CanonicalURL:             extractCanonical(home.HTML),
		PageType:                 models.PageHome,
		ClassificationConfidence: 1.0,
		Depth:                    0,
		Source:                   models.SourceRoot,
		RenderType:               models.RenderHTTP,
		FetchedAt:                time.Now(),
	}
	homeArtifact.ComputeContentHash()
	graph.AddPage(homeArtifact)
	graph.Metadata.PagesDiscovered++
	graph.Metadata.PagesFetched++
	_ = c.pageCache.Put(ctx, homeArtifact)

	sitemapCandidates := c.discoverSitemap(ctx, base, rules, home.HTML)
	graph.Metadata.SitemapFound = len(sitemapCandidates) > 0
	graph.Metadata.SitemapUsed = graph.Metadata.SitemapFound

	navCandidates := navigation.Extract(home.HTML, base, home.Title)

	queue := c.buildQueue(base, rules, sitemapCandidates, navCandidates, normalizedRoot)
	graph.Metadata.PagesDiscovered += len(queue)

	var mu sync.Mutex
	earlyExit := false

	fetchCtx, fetchCancel := context.WithCancel(ctx)
	defer fetchCancel()

	g, gCtx := errgroup.WithContext(fetchCtx)
	sem := make(chan struct{}, c.budget.Concurrency)

	skip := func(u string) {
		mu.Lock()
		reason := "crawl time budget exhausted"
		if earlyExit {
			reason = "early exit triggered"
		}
		graph.Metadata.PagesSkipped++
		graph.Metadata.SkippedURLs = append(graph.Metadata.SkippedURLs, models.SkippedURL{URL: u, Reason: reason})
		mu.Unlock()
	}

	for _, item := range queue {
		item := item
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gCtx.Done():
				skip(item.url)
				return nil
			}
			defer func() { <-sem }()

			if gCtx.Err() != nil {
				skip(item.url)
				return nil
			}

			artifact := c.fetchAndClassify(gCtx, item, rules)
			if artifact == nil {
				mu.Lock()
				graph.Metadata.PagesSkipped++
				graph.Metadata.SkippedURLs = append(graph.Metadata.SkippedURLs, models.SkippedURL{URL: item.url, Reason: "unparseable URL"})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			inserted := graph.AddPage(artifact)
			if inserted {
				if artifact.Status == 200 {
					graph.Metadata.PagesFetched++
				}
			}
			if !earlyExit && shouldEarlyExit(graph) {
				earlyExit = true
				graph.Metadata.EarlyExit = true
				graph.Metadata.EarlyExitReason = "early exit triggered"
				fetchCancel()
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		graph.Metadata.TimedOut = true
	}
	graph.Metadata.CrawlDuration = time.Since(graph.Metadata.CrawlStarted)
	return graph, nil
}

func classifyErrorOrDefault(r *fetchResult) models.ErrorClass {
	if r.ErrClass != "" {
		return r.ErrClass
	}
	return models.ErrClassUnknown
}

// shouldEarlyExit implements the early-exit policy: both required policy
// types present at confidence >= 0.7, plus at least one high-value type.
func shouldEarlyExit(graph *models.NormalizedPageGraph) bool {
	requiredOK := true
	for _, pt := range []models.PageType{models.PagePrivacyPolicy, models.PageTermsConditions} {
		p, ok := graph.ByType(pt)
		if !ok || p.ClassificationConfidence < 0.7 {
			requiredOK = false
			break
		}
	}
	if !requiredOK {
		return false
	}
	for _, pt := range []models.PageType{models.PageAbout, models.PageContact, models.PagePricing, models.PageProduct} {
		if _, ok := graph.ByType(pt); ok {
			return true
		}
	}
	return false
}

func (c *Crawler) discoverSitemap(ctx context.Context, base *url.URL, rules *robots.Rules, homeHTML string) []string {
	linkRel := extractLinkRelSitemap(homeHTML)
	candidates := robots.DiscoverSitemaps(base, rules, linkRel)
	if len(candidates) == 0 {
		return nil
	}
	skip := func(u string) bool {
		pt, _ := urlnorm.Classify(u, "", "")
		return pt == models.PageSkip
	}
	return robots.FetchAndFlatten(c.httpc, candidates, skip)
}

func (c *Crawler) buildQueue(base *url.URL, rules *robots.Rules, sitemapURLs []string, navCandidates []navigation.Candidate, rootNormalized string) []queuedURL {
	seen := map[string]bool{rootNormalized: true}
	var queue []queuedURL

	addSitemap := func(raw string) {
		norm, err := urlnorm.Normalize(raw)
		if err != nil || seen[norm] {
			return
		}
		u, err := url.Parse(norm)
		if err != nil || !urlnorm.IsInternal(u, base) {
			return
		}
		if rules != nil && !rules.Allowed(u.Path) {
			return
		}
		pt, conf := urlnorm.Classify(norm, "", "")
		if pt == models.PageSkip {
			return
		}
		seen[norm] = true
		queue = append(queue, queuedURL{url: norm, pageType: pt, confidence: conf, source: models.SourceSitemap, depth: 1})
	}
	for _, u := range sitemapURLs {
		addSitemap(u)
	}

	addNav := func(cand navigation.Candidate) {
		if seen[cand.URL] {
			return
		}
		if cand.PageType == models.PageSkip {
			return
		}
		u, err := url.Parse(cand.URL)
		if err != nil {
			return
		}
		if rules != nil && !rules.Allowed(u.Path) {
			return
		}
		seen[cand.URL] = true
		queue = append(queue, queuedURL{
			url: cand.URL, anchorText: cand.AnchorText, pageType: cand.PageType,
			confidence: cand.Confidence, source: cand.Source, depth: 1,
		})
	}
	for _, cand := range navCandidates {
		if cand.Source == models.SourceNavPrimary {
			addNav(cand)
		}
	}
	for _, cand := range navCandidates {
		if cand.Source == models.SourceNavSecondary {
			addNav(cand)
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].pageType.QueuePriority() > queue[j].pageType.QueuePriority()
	})

	if len(queue) > c.budget.MaxPages-1 {
		queue = queue[:c.budget.MaxPages-1]
	}
	return queue
}

func (c *Crawler) fetchAndClassify(ctx context.Context, item queuedURL, rules *robots.Rules) *models.PageArtifact {
	u, err := url.Parse(item.url)
	if err != nil {
		return nil
	}
	if rules != nil && !rules.Allowed(u.Path) {
		return &models.PageArtifact{
			RequestedURL: item.url,
			Status:       0,
			PageType:     item.pageType,
			Depth:        item.depth,
			Source:       item.source,
			RenderType:   models.RenderHTTP,
			FetchedAt:    time.Now(),
			Error:        models.NewScanError(item.url, "robots_check", models.ErrClassBlocked, nil),
		}
	}

	if cached, hit, err := c.pageCache.Get(ctx, item.url); err == nil && hit {
		return cached
	}

	if c.limiter != nil {
		_ = c.limiter.Wait(ctx)
	}

	res := fetchOne(ctx, item.url, c.budget.PerPageTimeout, c.userAgent)
	if res.Err != nil && res.Status == 0 {
		return &models.PageArtifact{
			RequestedURL: item.url,
			Status:       res.Status,
			PageType:     item.pageType,
			Depth:        item.depth,
			Source:       item.source,
			RenderType:   models.RenderHTTP,
			FetchedAt:    time.Now(),
			Error:        models.NewScanError(item.url, "fetch", classifyErrorOrDefault(res), res.Err),
		}
	}

	artifact := &models.PageArtifact{
		RequestedURL: item.url,
		FinalURL:     res.FinalURL,
		Status:       res.Status,
		ContentType:  res.ContentType,
		Depth:        item.depth,
		Source:       item.source,
		RenderType:   models.RenderHTTP,
		FetchedAt:    time.Now(),
	}
	if res.Status >= 400 {
		artifact.Error = models.NewScanError(item.url, "fetch", classifyErrorOrDefault(res), nil)
		artifact.PageType = item.pageType
		return artifact
	}
	if res.HTML != "" {
		artifact.HTML = res.HTML
		artifact.VisibleText = extractVisibleText(res.HTML)
		artifact.CanonicalURL = extractCanonical(res.HTML)
		pt, conf := urlnorm.Classify(item.url, item.anchorText, res.Title)
		artifact.PageType = pt
		artifact.ClassificationConfidence = conf
		artifact.ComputeContentHash()
	} else {
		artifact.PageType = item.pageType
		artifact.ClassificationConfidence = item.confidence
	}
	if artifact.Status == 200 {
		_ = c.pageCache.Put(ctx, artifact)
	}
	return artifact
}
