package mcc

import (
	"sort"
	"strings"

	"github.com/99souls/kycscan/engine/models"
)

const (
	scorePerKeyword = 1.0
	confidenceScale = 15.0
	minConfidence   = 30.0
)

// PageText is one page's readable text keyed by its URL, so matches can be
// attributed back to the pages that produced them.
type PageText struct {
	URL  string
	Text string
}

// Classify scores combined page text against the fixed catalog and returns
// the best match, or nil when no keyword matched at all. A match below the
// confidence threshold is still returned, flagged LowConfidence, so
// downstream consumers can distinguish "ambiguous" from "no signal".
type hit struct {
	entry        entry
	score        float64
	matchedPages map[string]struct{}
}

func Classify(pages []PageText) *models.MCCMatch {
	hits := map[string]*hit{}

	for _, p := range pages {
		lower := strings.ToLower(p.Text)
		for _, e := range catalog {
			key := e.category + "/" + e.subcategory
			for _, kw := range e.keywords {
				if !strings.Contains(lower, kw) {
					continue
				}
				h, ok := hits[key]
				if !ok {
					h = &hit{entry: e, matchedPages: map[string]struct{}{}}
					hits[key] = h
				}
				h.score += scorePerKeyword
				if p.URL != "" {
					h.matchedPages[p.URL] = struct{}{}
				}
			}
		}
	}
	if len(hits) == 0 {
		return nil
	}

	ordered := make([]*hit, 0, len(hits))
	for _, h := range hits {
		ordered = append(ordered, h)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].entry.code < ordered[j].entry.code
	})

	primary := toMatch(ordered[0])
	if len(ordered) > 1 && ordered[1].score > 0 {
		primary.Secondary = toMatch(ordered[1])
	}
	return primary
}

func toMatch(h *hit) *models.MCCMatch {
	confidence := h.score * confidenceScale
	if confidence > 100 {
		confidence = 100
	}
	pages := make([]string, 0, len(h.matchedPages))
	for u := range h.matchedPages {
		pages = append(pages, u)
	}
	sort.Strings(pages)
	return &models.MCCMatch{
		Category:      h.entry.category,
		Subcategory:   h.entry.subcategory,
		Code:          h.entry.code,
		Confidence:    confidence,
		MatchedPages:  pages,
		LowConfidence: confidence < minConfidence,
	}
}
