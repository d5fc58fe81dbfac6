// Package audit builds an append-only record of everything a scan did,
// producing both the structured AuditTrailView attached to a decision and a
// human-readable Markdown summary report.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/google/uuid"

	"github.com/99souls/kycscan/engine/models"
)

const maxKeywordTriggersInReport = 10

// Trail accumulates audit entries for one scan. It is not safe for
// concurrent use; the scan engine owns a single Trail per scan.
type Trail struct {
	scanID      string
	targetURL   string
	finalURL    string
	startedAt   time.Time
	completedAt time.Time

	urlsVisited      []string
	urlsVisitedSet   map[string]bool
	checks           []models.AuditCheck
	keywordTriggers  []models.RestrictedKeywordHit
	evidenceSnippets []models.EvidenceSnippet
	timeline         []models.TimelineEvent
}

// StartAudit begins a new trail for the given target URL, stamping the
// start time and generating a scan ID.
func StartAudit(targetURL string, startedAt time.Time) *Trail {
	return &Trail{
		scanID:         uuid.NewString(),
		targetURL:      targetURL,
		startedAt:      startedAt,
		urlsVisitedSet: map[string]bool{},
	}
}

// AddTimestamp records a timestamped event with optional detail.
func (t *Trail) AddTimestamp(event, detail string) {
	t.timeline = append(t.timeline, models.TimelineEvent{At: time.Now(), Event: event, Detail: detail})
}

// AddCheck records the pass/fail outcome of one scan check.
func (t *Trail) AddCheck(name string, passed bool, detail string) {
	outcome := models.CheckFailed
	if passed {
		outcome = models.CheckPassed
	}
	t.checks = append(t.checks, models.AuditCheck{Name: name, Passed: passed, Outcome: outcome, Detail: detail})
}

// AddFlaggedCheck records a check that neither cleanly passed nor failed —
// it requires human review.
func (t *Trail) AddFlaggedCheck(name, detail string) {
	t.checks = append(t.checks, models.AuditCheck{Name: name, Outcome: models.CheckFlagged, Detail: detail})
}

// AddKeywordTrigger records a restricted-keyword hit for the report.
func (t *Trail) AddKeywordTrigger(hit models.RestrictedKeywordHit) {
	t.keywordTriggers = append(t.keywordTriggers, hit)
}

// AddEvidenceSnippet records a piece of evidence supporting a check or
// reason code.
func (t *Trail) AddEvidenceSnippet(snippet models.EvidenceSnippet) {
	t.evidenceSnippets = append(t.evidenceSnippets, snippet)
}

// renderMarkdown converts a page's raw HTML into a readable Markdown body.
// Used to attach a human-readable alternate text to an evidence snippet
// alongside its raw excerpt; a conversion failure just leaves it blank.
func renderMarkdown(html string) string {
	conv := converter.NewConverter(converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()))
	md, err := conv.ConvertString(html)
	if err != nil {
		return ""
	}
	return md
}

// AddEvidenceFromReasons records one evidence snippet per reason code that
// carries an EvidenceURL, pulling the page's HTML out of the crawl graph and
// rendering it to Markdown alongside the raw snippet.
func (t *Trail) AddEvidenceFromReasons(reasons []models.ReasonCode, graph *models.NormalizedPageGraph) {
	if graph == nil {
		return
	}
	for _, r := range reasons {
		if r.EvidenceURL == "" {
			continue
		}
		page, ok := graph.ByURL(r.EvidenceURL)
		if !ok {
			// The graph keys by canonical URL when one exists; reason codes
			// carry the requested URL, so fall back to a linear match.
			for _, p := range graph.Pages() {
				if p.RequestedURL == r.EvidenceURL || p.FinalURL == r.EvidenceURL {
					page, ok = p, true
					break
				}
			}
		}
		if !ok {
			continue
		}
		t.AddEvidenceSnippet(models.EvidenceSnippet{
			URL:      r.EvidenceURL,
			Snippet:  r.EvidenceSnippet,
			Markdown: renderMarkdown(page.HTML),
		})
	}
}

// AddURLVisited records one URL the crawl fetched, deduplicated.
func (t *Trail) AddURLVisited(u string) {
	if u == "" || t.urlsVisitedSet[u] {
		return
	}
	t.urlsVisitedSet[u] = true
	t.urlsVisited = append(t.urlsVisited, u)
}

// AddURLsVisited is a convenience wrapper around AddURLVisited for a batch
// of URLs, such as every page in a finished crawl graph.
func (t *Trail) AddURLsVisited(urls []string) {
	for _, u := range urls {
		t.AddURLVisited(u)
	}
}

// SetFinalURL records the post-redirect URL the crawl actually landed on.
func (t *Trail) SetFinalURL(u string) { t.finalURL = u }

// ImportScanEvidence records every page's requested URL (and canonical URL,
// when set) from a finished page graph as visited, so callers don't have to
// walk it by hand. Keyword triggers and the page count are not imported.
func (t *Trail) ImportScanEvidence(graph *models.NormalizedPageGraph) {
	if graph == nil {
		return
	}
	for _, p := range graph.Pages() {
		t.AddURLVisited(p.RequestedURL)
		if p.CanonicalURL != "" {
			t.AddURLVisited(p.CanonicalURL)
		}
	}
}

// Build freezes the trail into its read-only view, stamping the completion
// time and page count.
func (t *Trail) Build(completedAt time.Time, pagesScanned int) models.AuditTrailView {
	t.completedAt = completedAt
	return models.AuditTrailView{
		ScanID:           t.scanID,
		TargetURL:        t.targetURL,
		FinalURL:         t.finalURL,
		StartedAt:        t.startedAt,
		CompletedAt:      completedAt,
		Duration:         completedAt.Sub(t.startedAt),
		URLsVisited:      append([]string(nil), t.urlsVisited...),
		PagesScanned:     pagesScanned,
		Checks:           append([]models.AuditCheck(nil), t.checks...),
		KeywordTriggers:  append([]models.RestrictedKeywordHit(nil), t.keywordTriggers...),
		EvidenceSnippets: append([]models.EvidenceSnippet(nil), t.evidenceSnippets...),
		Timeline:         append([]models.TimelineEvent(nil), t.timeline...),
	}
}

// GenerateSummaryReport renders a human-readable Markdown report from a
// frozen AuditTrailView: checks grouped by outcome, then keyword triggers
// (capped), then the event timeline.
func GenerateSummaryReport(view models.AuditTrailView) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Scan Audit Report\n\n")
	fmt.Fprintf(&b, "- Scan ID: %s\n", view.ScanID)
	fmt.Fprintf(&b, "- Target: %s\n", view.TargetURL)
	if view.FinalURL != "" && view.FinalURL != view.TargetURL {
		fmt.Fprintf(&b, "- Final URL: %s\n", view.FinalURL)
	}
	fmt.Fprintf(&b, "- Started: %s\n", view.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", view.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Pages scanned: %d\n\n", view.PagesScanned)

	var passed, failed, flagged []models.AuditCheck
	for _, c := range view.Checks {
		switch c.Outcome {
		case models.CheckFlagged:
			flagged = append(flagged, c)
		case models.CheckFailed:
			failed = append(failed, c)
		default:
			passed = append(passed, c)
		}
	}

	writeCheckSection(&b, "Passed Checks", passed)
	writeCheckSection(&b, "Failed Checks", failed)
	writeCheckSection(&b, "Flagged Checks", flagged)

	if len(view.KeywordTriggers) > 0 {
		b.WriteString("## Keyword Triggers\n\n")
		n := len(view.KeywordTriggers)
		if n > maxKeywordTriggersInReport {
			n = maxKeywordTriggersInReport
		}
		for _, hit := range view.KeywordTriggers[:n] {
			fmt.Fprintf(&b, "- [%s] %q on %s\n", hit.Category, hit.Keyword, hit.PageURL)
		}
		if len(view.KeywordTriggers) > maxKeywordTriggersInReport {
			fmt.Fprintf(&b, "- ... and %d more\n", len(view.KeywordTriggers)-maxKeywordTriggersInReport)
		}
		b.WriteString("\n")
	}

	if len(view.Timeline) > 0 {
		b.WriteString("## Timeline\n\n")
		for _, ev := range view.Timeline {
			fmt.Fprintf(&b, "- %s — %s", ev.At.Format(time.RFC3339), ev.Event)
			if ev.Detail != "" {
				fmt.Fprintf(&b, ": %s", ev.Detail)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeCheckSection(b *strings.Builder, title string, checks []models.AuditCheck) {
	if len(checks) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, c := range checks {
		if c.Detail != "" {
			fmt.Fprintf(b, "- %s: %s\n", c.Name, c.Detail)
		} else {
			fmt.Fprintf(b, "- %s\n", c.Name)
		}
	}
	b.WriteString("\n")
}
