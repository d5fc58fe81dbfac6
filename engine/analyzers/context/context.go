// Package context scores a crawled site's evidence into a primary business
// context (e-commerce, SaaS, fintech, blockchain, content, developer
// platform, marketplace, or unknown) plus a frontend-surface classification,
// used to tune policy expectations and decision rules downstream.
package context

import (
	"sort"
	"strings"

	"github.com/99souls/kycscan/engine/models"
)

// contentKeywordPatterns is the fixed catalog of content keyword categories
// scanned over combined site text. fintechCore and paymentMethods are kept
// separate: fintech_core keywords (banking, lending, payment gateway
// infrastructure) are a strong fintech signal, while payment_methods
// keywords (UPI, Stripe, PayPal, refund, chargeback) are common on any
// e-commerce site and must not by themselves imply a fintech business.
var contentKeywordPatterns = map[string][]string{
	"developer_docs": {
		"api reference", "sdk", "documentation", "developer guide", "git clone", "npm install",
	},
	"blockchain_specific": {
		"validator", "consensus", "tokenomics", "smart contract", "faucet", "mainnet", "testnet", "rpc endpoint",
	},
	"blockchain_generic": {
		"blockchain", "crypto", "web3", "decentralized", "protocol",
	},
	"fintech_core": {
		"banking", "wealth management", "insurance", "loans", "credit card", "investing", "brokerage",
		"mutual fund", "stock trading", "demat account", "fixed deposit", "savings account",
		"payment gateway", "payment processing", "payment api", "payment infrastructure",
		"acquirer", "issuer", "card processing", "checkout api",
		"aml", "forex", "currency exchange", "remittance", "wire transfer",
		"lending", "credit score", "loan application", "fico",
	},
	"payment_methods": {
		"upi", "netbanking", "neft", "rtgs", "imps", "emi",
		"razorpay", "stripe", "paypal", "paytm", "phonepe", "gpay", "bharat qr",
		"payout", "settlement", "refund", "chargeback", "merchant",
		"recurring payments", "subscription billing", "pci dss", "pci compliant",
		"escrow", "split payment", "payment link", "payment button",
	},
	"saas": {
		"dashboard", "sign up", "log in", "pricing", "subscription", "software", "platform",
	},
	"ecommerce": {
		"add to cart", "checkout", "shipping", "store", "shop now", "buy now", "order now", "purchase",
	},
	"marketplace": {
		"become a seller", "sell on", "seller dashboard", "vendor registration",
		"multi-vendor", "list your products", "seller central", "commission rates",
	},
	"content": {
		"blog", "news", "article", "editorial", "subscribe to newsletter", "read more",
	},
}

var paymentKeywordSubstrings = []string{
	"payment gateway", "payment processing", "payment api", "merchant",
	"payout", "settlement", "pci", "razorpay", "stripe", "upi", "netbanking",
}

var ecommercePlatformKeywords = []string{
	"shopify", "woocommerce", "magento", "bigcommerce", "prestashop",
	"opencart", "squarespace commerce", "ecwid", "volusion",
}

// TechSignals are detections from whatever technology-fingerprinting pass
// ran over the homepage (script tags, meta generators, response headers).
type TechSignals struct {
	DetectedTechnologies []string // lowercased technology names
	CMSDetected          []string
}

// CrawlSignals are facts the crawl orchestrator already knows about the scan.
type CrawlSignals struct {
	PagesFetched         int
	PagesDiscovered      int
	AuthGated            bool
	Blocked              bool
	RobotsChecked        bool
	SitemapFound         bool
	EcommerceURLPatterns bool
}

// StructureSignals are page-structure facts derived from navigation/content.
type StructureSignals struct {
	HasCart        bool
	HasCheckout    bool
	PricingModel   string // e.g. "Subscription"
	HasPricingPage bool
	LoginDetected  bool
}

// MCCSignal carries the primary MCC classification, if any, as a
// cross-signal input to context scoring.
type MCCSignal struct {
	Description string
	Confidence  float64
}

// Evidence is the full set of raw observations the classifier scores.
// Collected separately from scoring so the scoring function stays pure.
type Evidence struct {
	Tech          TechSignals
	Crawl         CrawlSignals
	Structure     StructureSignals
	MCC           MCCSignal
	KeywordHits   map[string][]string
	HasWhitepaper bool
	HasGithub     bool
}

// CollectKeywordHits scans combined site text for every content keyword
// category and records which keywords actually matched.
func CollectKeywordHits(combinedText string) map[string][]string {
	if combinedText == "" {
		return nil
	}
	lower := strings.ToLower(combinedText)
	hits := map[string][]string{}
	for category, keywords := range contentKeywordPatterns {
		var found []string
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				found = append(found, kw)
			}
		}
		if len(found) > 0 {
			hits[category] = found
		}
	}
	return hits
}

// DetectEcommercePlatforms filters a list of fingerprinted technology names
// down to the ones known to be e-commerce platforms.
func DetectEcommercePlatforms(techNames []string) []string {
	var out []string
	for _, t := range techNames {
		lt := strings.ToLower(t)
		for _, ec := range ecommercePlatformKeywords {
			if strings.Contains(lt, ec) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Classify scores the collected evidence into a BusinessContext.
func Classify(ev Evidence) *models.BusinessContext {
	if ev.Crawl.PagesFetched == 0 {
		return &models.BusinessContext{
			Primary:         models.ContextUnknown,
			Status:          models.ContextUndetermined,
			Confidence:      0,
			FrontendSurface: models.SurfaceUnknown,
			Reason:          "CRAWL_FAILED",
		}
	}
	if ev.Crawl.Blocked {
		return &models.BusinessContext{
			Primary:         models.ContextUnknown,
			Status:          models.ContextUndetermined,
			Confidence:      0,
			FrontendSurface: models.SurfaceAuthGated,
			Reason:          "ACCESS_BLOCKED",
		}
	}

	scores := calculateScores(ev)
	type entry struct {
		ctx   models.BusinessContextType
		score float64
	}
	ordered := make([]entry, 0, len(scores))
	for ctx, score := range scores {
		ordered = append(ordered, entry{ctx, score})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].ctx < ordered[j].ctx
	})

	primary := ordered[0].ctx
	primaryScore := ordered[0].score
	confidence := primaryScore / 10.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}

	status := models.ContextDetermined
	if confidence < 0.3 {
		status = models.ContextLowConfidence
		if primaryScore <= 1 {
			primary = models.ContextUnknown
			status = models.ContextUndetermined
		}
	}
	if len(ordered) > 1 {
		gap := primaryScore - ordered[1].score
		if primaryScore > 0 && gap < 1.0 {
			status = models.ContextLowConfidence
		}
	}

	surface := determineSurface(ev, primary)

	var alternatives []models.ContextAlternative
	for _, e := range ordered[1:] {
		if e.score <= 0 {
			continue
		}
		alternatives = append(alternatives, models.ContextAlternative{Type: e.ctx, Score: e.score})
		if len(alternatives) == 2 {
			break
		}
	}

	return &models.BusinessContext{
		Primary:         primary,
		Status:          status,
		Confidence:      roundTo2(confidence),
		FrontendSurface: surface,
		Alternatives:    alternatives,
		Reason:          "scored as " + string(primary),
	}
}

func calculateScores(ev Evidence) map[models.BusinessContextType]float64 {
	scores := map[models.BusinessContextType]float64{
		models.ContextEcommerce: 0, models.ContextSaaS: 0, models.ContextFintech: 0,
		models.ContextBlockchain: 0, models.ContextContent: 0, models.ContextDeveloper: 0,
		models.ContextMarketplace: 0,
	}
	hits := ev.KeywordHits
	ecommercePlatforms := DetectEcommercePlatforms(ev.Tech.DetectedTechnologies)

	if len(ecommercePlatforms) > 0 {
		scores[models.ContextEcommerce] += 5
	}
	if ev.Structure.HasCart {
		scores[models.ContextEcommerce] += 3
	}
	if ev.Structure.HasCheckout {
		scores[models.ContextEcommerce] += 2
	}
	if len(hits["ecommerce"]) > 0 {
		scores[models.ContextEcommerce] += 1
	}

	if mpHits := hits["marketplace"]; len(mpHits) > 0 {
		scores[models.ContextMarketplace] += min(float64(len(mpHits))*2.0, 6)
		// Seller-recruitment language alongside a working storefront is the
		// marketplace signature; outscore plain e-commerce in that case.
		if ev.Structure.HasCart || ev.Structure.HasCheckout {
			scores[models.ContextMarketplace] += 3
		}
	}

	if len(hits["saas"]) > 0 {
		scores[models.ContextSaaS] += 2
	}
	if ev.Structure.PricingModel == "Subscription" {
		scores[models.ContextSaaS] += 3
	}
	if ev.Structure.LoginDetected {
		scores[models.ContextSaaS] += 1
	}

	if coreHits := hits["fintech_core"]; len(coreHits) > 0 {
		scores[models.ContextFintech] += min(float64(len(coreHits))*1.0, 8)
		paymentSpecific := 0
		for _, k := range coreHits {
			for _, pk := range paymentKeywordSubstrings {
				if strings.Contains(k, pk) {
					paymentSpecific++
					break
				}
			}
		}
		if paymentSpecific >= 2 {
			scores[models.ContextFintech] += 3
		}
	}
	if strings.Contains(strings.ToLower(ev.MCC.Description), "financial") {
		scores[models.ContextFintech] += 4
	}

	if len(hits["blockchain_specific"]) > 0 {
		scores[models.ContextBlockchain] += 5
	}
	if len(hits["blockchain_generic"]) > 0 {
		scores[models.ContextBlockchain] += 1
	}
	if ev.HasWhitepaper {
		scores[models.ContextBlockchain] += 2
	}

	if len(hits["developer_docs"]) > 0 {
		scores[models.ContextDeveloper] += 3
	}
	if ev.HasGithub {
		scores[models.ContextDeveloper] += 1
	}

	if len(hits["content"]) > 0 {
		scores[models.ContextContent] += 2
	}
	if len(ev.Tech.CMSDetected) > 0 {
		scores[models.ContextContent] += 1
	}

	if scores[models.ContextBlockchain] >= 5 {
		if scores[models.ContextSaaS] > 0 {
			scores[models.ContextSaaS] -= 2
		}
		if scores[models.ContextDeveloper] > 0 {
			scores[models.ContextDeveloper] -= 2
		}
	}
	if len(ecommercePlatforms) > 0 {
		scores[models.ContextEcommerce] += 2
	}

	return scores
}

func determineSurface(ev Evidence, primary models.BusinessContextType) models.FrontendSurface {
	if ev.Crawl.AuthGated || ev.Structure.LoginDetected {
		if ev.Structure.HasCart {
			return models.SurfaceFullCommerce
		}
		return models.SurfaceAuthGated
	}
	if ev.Structure.HasCart || ev.Structure.HasCheckout {
		return models.SurfaceFullCommerce
	}
	if len(ev.KeywordHits["developer_docs"]) > 0 && primary == models.ContextDeveloper {
		return models.SurfaceAPIDocs
	}
	if len(ev.KeywordHits["content"]) > 0 && primary == models.ContextContent {
		return models.SurfaceContentOnly
	}
	return models.SurfaceMarketingSite
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func roundTo2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
