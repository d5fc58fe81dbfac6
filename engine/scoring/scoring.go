// Package scoring computes the compliance breakdown (technical, policy,
// trust) that feeds the decision rules engine, attributing every point
// gained or lost to the signal that produced it.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/99souls/kycscan/engine/models"
)

const (
	technicalMax = 30.0
	policyMax    = 40.0
	trustMax     = 30.0

	sslPoints = 15.0

	perPolicyPoints   = 10.0
	shallowPolicyFloor = 6.0
)

// domainAgeBand maps an RDAP age-in-days figure to a point award. Thresholds
// mirror the "established business" heuristic: a domain under six months
// old earns nothing, one over three years earns full marks.
func domainAgeBand(days int) float64 {
	switch {
	case days < 0:
		return 0
	case days < 180:
		return 0
	case days < 365:
		return 5
	case days < 1095:
		return 10
	default:
		return 15
	}
}

// contentRiskPenalty is the standard trust-score deduction for one
// restricted-content category, before any business-context override.
// Categories not listed here (weapons, drugs, counterfeit, …) take
// defaultContentPenalty; their real weight is the auto-fail rule, so the
// advisory score only needs a light deduction.
var contentRiskPenalty = map[string]float64{
	"gambling": 15,
	"adult":    20,
	"pharmacy": 10,
	"alcohol":  3,
	"tobacco":  3,
	"dummy_text": 10,
}

const defaultContentPenalty = 5.0

// contextOverrideCategories lists content-risk categories that a
// BLOCKCHAIN_INFRASTRUCTURE or FINTECH_INFRASTRUCTURE business context
// reclassifies as informational rather than penalized: a crypto exchange
// mentioning "forex" or "securities" is describing its own product, not
// running an undisclosed side business.
var contextOverrideCategories = map[string]bool{
	"crypto":     true,
	"forex":      true,
	"securities": true,
}

// Input is everything the scoring engine needs to produce a breakdown.
type Input struct {
	Graph           *models.NormalizedPageGraph
	PolicyChecks    []models.PolicyCheckResult
	ContentRisk     *models.ContentRiskSummary
	BusinessContext *models.BusinessContext
	DomainAgeDays   int
}

// Engine scores a completed crawl into a ComplianceBreakdown.
type Engine struct {
	domainAge *DomainAgeLookup
}

// New builds a scoring engine. domainAge may be nil; in that case callers
// must supply Input.DomainAgeDays directly (e.g. from a pre-resolved value
// or a test fixture) and Score will not perform a live RDAP lookup.
func New(domainAge *DomainAgeLookup) *Engine {
	return &Engine{domainAge: domainAge}
}

// Score computes the full compliance breakdown for one scan.
func (e *Engine) Score(ctx context.Context, in Input) *models.ComplianceBreakdown {
	var components []models.ScoreComponent

	technical, ageDays, techComponents := e.scoreTechnical(ctx, in)
	components = append(components, techComponents...)

	policy, policyComponents := scorePolicy(in)
	components = append(components, policyComponents...)

	trust, trustComponents := scoreTrust(in)
	components = append(components, trustComponents...)

	overall := technical + policy + trust
	rating := models.RatingPoor
	switch {
	case overall >= 80:
		rating = models.RatingGood
	case overall >= 50:
		rating = models.RatingFair
	}

	return &models.ComplianceBreakdown{
		Overall:       overall,
		Technical:     technical,
		Policy:        policy,
		Trust:         trust,
		Rating:        rating,
		DomainAgeDays: ageDays,
		Components:    components,
	}
}

func (e *Engine) scoreTechnical(ctx context.Context, in Input) (float64, int, []models.ScoreComponent) {
	var components []models.ScoreComponent
	var total float64

	if home, ok := homeOrFirst(in.Graph); ok && home.Status == 200 && strings.HasPrefix(strings.ToLower(home.FinalURL), "https://") {
		total += sslPoints
		components = append(components, models.ScoreComponent{
			Category:        "technical",
			Points:          sslPoints,
			Max:             sslPoints,
			Reason:          "site served over HTTPS",
			SignalReference: "ssl_certificate",
			Evidence:        home.FinalURL,
		})
	} else {
		components = append(components, models.ScoreComponent{
			Category:        "technical",
			Points:          0,
			Max:             sslPoints,
			Reason:          "site not served over HTTPS or homepage unreachable",
			SignalReference: "ssl_certificate",
		})
	}

	ageDays := in.DomainAgeDays
	if ageDays == 0 && e.domainAge != nil {
		if home, ok := homeOrFirst(in.Graph); ok {
			if host := hostOf(home.FinalURL); host != "" {
				ageDays = e.domainAge.AgeDays(ctx, host)
			}
		}
	}
	agePoints := domainAgeBand(ageDays)
	total += agePoints
	components = append(components, models.ScoreComponent{
		Category:        "technical",
		Points:          agePoints,
		Max:             15,
		Reason:          fmt.Sprintf("domain age %d days", ageDays),
		SignalReference: "rdap_domain_age",
	})

	return total, ageDays, components
}

// scoredPolicyTypes are the four policy checks that carry points; the
// shipping policy is detected and rule-evaluated but not scored, keeping
// the policy sub-score an even ten points per check.
var scoredPolicyTypes = map[string]bool{
	"privacy_policy":   true,
	"terms_conditions": true,
	"refund_policy":    true,
	"contact_us":       true,
}

func scorePolicy(in Input) (float64, []models.ScoreComponent) {
	var components []models.ScoreComponent
	var total float64

	for _, pc := range in.PolicyChecks {
		if !scoredPolicyTypes[pc.PolicyType] {
			continue
		}
		points := 0.0
		reason := fmt.Sprintf("%s not found", pc.PolicyType)
		switch {
		case pc.Expectation == models.ExpectationNA:
			points = perPolicyPoints
			reason = fmt.Sprintf("%s not applicable for this business type", pc.PolicyType)
		case pc.Found:
			points = perPolicyPoints
			reason = fmt.Sprintf("%s found", pc.PolicyType)
			if !pc.HasRequiredKeywords || pc.ContentLength < 200 {
				points = shallowPolicyFloor
				reason = fmt.Sprintf("%s found but shallow", pc.PolicyType)
			}
		case pc.Expectation == models.ExpectationOptional:
			points = perPolicyPoints
			reason = fmt.Sprintf("%s not found, optional for this business type", pc.PolicyType)
		}
		total += points
		components = append(components, models.ScoreComponent{
			Category:        "policy",
			Points:          points,
			Max:             perPolicyPoints,
			Reason:          reason,
			SignalReference: pc.PolicyType,
			Evidence:        pc.Evidence,
		})
	}

	if total > policyMax {
		total = policyMax
	}
	return total, components
}

func scoreTrust(in Input) (float64, []models.ScoreComponent) {
	penalty := 0.0
	var components []models.ScoreComponent

	if in.ContentRisk != nil {
		for _, hit := range in.ContentRisk.Hits {
			if hit.SuppressedFromRisk() {
				continue
			}
			category := strings.ToLower(hit.Category)

			if in.BusinessContext != nil && contextOverrideCategories[category] &&
				(in.BusinessContext.Primary == models.ContextBlockchain || in.BusinessContext.Primary == models.ContextFintech) {
				components = append(components, models.ScoreComponent{
					Category:        "trust",
					Points:          0,
					Max:             0,
					Reason:          fmt.Sprintf("%s category treated as informational for %s", category, in.BusinessContext.Primary),
					SignalReference: hit.Category,
					Evidence:        hit.Snippet,
				})
				continue
			}

			p, ok := contentRiskPenalty[category]
			if !ok {
				p = defaultContentPenalty
			}
			penalty += p
			components = append(components, models.ScoreComponent{
				Category:        "trust",
				Points:          -p,
				Max:             0,
				Reason:          fmt.Sprintf("%s content risk penalty", category),
				SignalReference: hit.Category,
				Evidence:        hit.Snippet,
			})
		}
		for range in.ContentRisk.DummyWordsDetected {
			penalty += contentRiskPenalty["dummy_text"]
			components = append(components, models.ScoreComponent{
				Category:        "trust",
				Points:          -contentRiskPenalty["dummy_text"],
				Max:             0,
				Reason:          "placeholder/dummy text detected",
				SignalReference: "dummy_text",
			})
			break // the penalty applies once per scan regardless of hit count
		}
	}

	score := trustMax - penalty
	if score < 0 {
		score = 0
	}
	return score, components
}

func homeOrFirst(g *models.NormalizedPageGraph) (*models.PageArtifact, bool) {
	if g == nil {
		return nil, false
	}
	if home, ok := g.Home(); ok {
		return home, true
	}
	pages := g.Pages()
	if len(pages) == 0 {
		return nil, false
	}
	return pages[0], true
}

func hostOf(rawURL string) string {
	rawURL = strings.TrimPrefix(rawURL, "https://")
	rawURL = strings.TrimPrefix(rawURL, "http://")
	if i := strings.IndexAny(rawURL, "/?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	if i := strings.LastIndex(rawURL, "@"); i >= 0 {
		rawURL = rawURL[i+1:]
	}
	return rawURL
}
