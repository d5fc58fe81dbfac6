// Package content performs rule-based, non-semantic keyword detection for
// prohibited or restricted business categories across a crawled site, with
// intent classification and cross-page corroboration.
package content

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/99souls/kycscan/engine/models"
)

// restrictedKeywords is the fixed category->keyword catalog. Keywords may
// contain hyphens, which are matched flexibly against space-separated text.
var restrictedKeywords = map[string][]string{
	"gambling": {
		"casino", "betting", "poker", "lottery", "gambling", "sports-betting",
		"online-casino", "bingo", "slot-machine", "blackjack", "roulette",
		"wager", "gambling-site", "online-betting", "jackpot", "slots",
	},
	"adult": {
		"adult-content", "porn", "xxx", "nsfw", "adult-entertainment",
		"erotic", "pornography", "adult-site", "explicit-content", "nude",
	},
	"child_pornography": {
		"child porn", "child pornography", "child abuse", "underage content",
	},
	"weapons": {
		"firearm", "ammunition", "explosive", "explosives", "rifle", "pistol",
		"shotgun", "gun-shop", "assault-rifle", "gun parts",
	},
	"drugs": {
		"illegal drugs", "drug paraphernalia", "cocaine", "heroin",
		"methamphetamine", "drug test circumvention",
	},
	"illegal_goods": {
		"illegal goods", "contraband", "illegal products", "prohibited goods",
	},
	"hacking": {
		"hacking tools", "cracking materials", "malware", "bypass security",
		"hack software", "crack software",
	},
	"counterfeit": {
		"counterfeit", "replica", "designer knockoff", "fake designer",
		"unauthorized goods",
	},
	"crypto": {
		"cryptocurrency", "crypto-exchange", "ico", "nft", "crypto-wallet", "defi",
	},
	"forex": {
		"forex-trading", "forex-broker", "currency-trading", "fx-trading", "leverage",
	},
	"pharmacy": {
		"online pharmacy", "prescription medication", "viagra", "cialis",
	},
	"alcohol": {
		"alcoholic beverages", "liquor", "whiskey", "vodka", "alcohol sales",
	},
	"tobacco": {
		"tobacco products", "e-cigarettes", "vaping", "cigarette store",
	},
	"dating_escort": {
		"escort service", "dating site", "escort agency", "prostitution",
	},
	"mlm": {
		"pyramid scheme", "multi-level marketing", "get rich quick",
	},
}

// highRiskCategories are eligible for "critical" severity once corroborated
// across at least two distinct URLs.
var highRiskCategories = map[string]bool{
	"gambling": true, "adult": true, "child_pornography": true, "weapons": true,
	"drugs": true, "illegal_goods": true, "hacking": true, "counterfeit": true,
}

var loremPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)lorem\s+ipsum\s+dolor\s+sit\s+amet`),
	regexp.MustCompile(`(?i)consectetur\s+adipiscing`),
	regexp.MustCompile(`(?i)sed\s+do\s+eiusmod`),
}

var prohibitiveMarkers = []string{
	"we do not allow", "we don't allow", "prohibited", "not permitted",
	"strictly forbidden", "is banned", "not allowed on our platform",
}

var promotionalMarkers = []string{
	"buy now", "play now", "join today", "sign up now", "shop now", "bet now",
}

const windowRadius = 150

// Page is the minimal shape the analyzer needs from a crawled artifact.
type Page struct {
	URL      string
	Text     string
	PageType models.PageType
}

// Result is the content analyzer's full output.
type Result struct {
	Hits                []models.RestrictedKeywordHit
	Corroboration       map[string][]string
	PolicyMentionsCount int
	RiskContributingCount int
	DummyWordsDetected  []string
}

// Analyze scans every page's text for restricted keywords and lorem-ipsum
// filler, classifies each hit's surrounding intent, and promotes severity
// for categories corroborated across at least two distinct URLs.
func Analyze(pages []Page) Result {
	return analyze(pages, restrictedKeywords)
}

func analyze(pages []Page, catalog map[string][]string) Result {
	var rawHits []models.RestrictedKeywordHit
	urlsByCategory := map[string]map[string]bool{}
	var dummyWords []string

	categories := make([]string, 0, len(catalog))
	for category := range catalog {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, p := range pages {
		lower := strings.ToLower(p.Text)
		for _, re := range loremPatterns {
			if re.MatchString(lower) {
				dummyWords = append(dummyWords, re.String())
			}
		}
		for _, category := range categories {
			keywords := catalog[category]
			for _, kw := range keywords {
				pos := matchKeyword(kw, lower)
				if pos < 0 {
					continue
				}
				snippet := extractSnippet(p.Text, pos, len(kw))
				intent := classifyIntent(lower, pos)
				hit := models.RestrictedKeywordHit{
					Category: category,
					Keyword:  kw,
					PageURL:  p.URL,
					Snippet:  snippet,
					Intent:   intent,
					PageType: p.PageType,
					Severity: models.SeverityModerate,
				}
				rawHits = append(rawHits, hit)
				if urlsByCategory[category] == nil {
					urlsByCategory[category] = map[string]bool{}
				}
				urlsByCategory[category][p.URL] = true
			}
		}
	}

	corroboration := map[string][]string{}
	for category, urls := range urlsByCategory {
		if len(urls) >= 2 {
			list := make([]string, 0, len(urls))
			for u := range urls {
				list = append(list, u)
			}
			sort.Strings(list)
			corroboration[category] = list
		}
	}

	var final []models.RestrictedKeywordHit
	policyMentions := 0
	riskContributing := 0
	for _, h := range rawHits {
		h.Corroborated = len(corroboration[h.Category]) > 0
		if h.Corroborated && highRiskCategories[h.Category] {
			h.Severity = models.SeverityCritical
		} else if highRiskCategories[h.Category] {
			h.Severity = models.SeverityModerate
		} else {
			h.Severity = models.SeverityLow
		}

		if h.SuppressedFromRisk() {
			policyMentions++
		} else {
			riskContributing++
		}
		final = append(final, h)
	}

	return Result{
		Hits:                final,
		Corroboration:       corroboration,
		PolicyMentionsCount: policyMentions,
		RiskContributingCount: riskContributing,
		DummyWordsDetected:  dummyWords,
	}
}

// matchKeyword returns the byte offset of the first match of keyword in
// text, with hyphen-space-flexible semantics: a hyphenated keyword also
// matches its space-separated form, and multi-word keywords match when all
// words appear within windowRadius/3 characters of each other.
func matchKeyword(keyword, text string) int {
	keyword = strings.ToLower(keyword)
	if idx := strings.Index(text, keyword); idx >= 0 {
		return idx
	}
	spaced := strings.ReplaceAll(keyword, "-", " ")
	if idx := strings.Index(text, spaced); idx >= 0 {
		return idx
	}
	words := strings.Fields(spaced)
	if len(words) < 2 {
		return -1
	}
	pattern := `\b` + strings.Join(escapeAll(words), `\b.{0,50}?\b`) + `\b`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return -1
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	return loc[0]
}

func escapeAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = regexp.QuoteMeta(w)
	}
	return out
}

func extractSnippet(original string, pos, kwLen int) string {
	start := pos - 100
	if start < 0 {
		start = 0
	}
	end := pos + kwLen + 100
	if end > len(original) {
		end = len(original)
	}
	snippet := strings.TrimSpace(original[start:end])
	if len(snippet) > 200 {
		snippet = snippet[:197] + "..."
	}
	return snippet
}

func classifyIntent(lower string, pos int) models.Intent {
	start := pos - windowRadius
	if start < 0 {
		start = 0
	}
	end := pos + windowRadius
	if end > len(lower) {
		end = len(lower)
	}
	window := lower[start:end]
	for _, m := range prohibitiveMarkers {
		if strings.Contains(window, m) {
			return models.IntentProhibitive
		}
	}
	for _, m := range promotionalMarkers {
		if strings.Contains(window, m) {
			return models.IntentPromotional
		}
	}
	return models.IntentNeutral
}

// DummyWordsSnippet is a convenience formatter used by the audit builder
// when reporting detected filler text.
func DummyWordsSnippet(pattern string) string {
	return fmt.Sprintf("filler-text pattern matched: %s", pattern)
}
