// Package entity matches a merchant's declared legal name and registered
// address against names and addresses extracted from the crawled site,
// using normalization plus a weighted blend of string-similarity ratios.
package entity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/99souls/kycscan/engine/models"
)

const (
	matchThreshold        = 80.0
	partialMatchThreshold = 60.0
	maxNames              = 10
	maxAddresses          = 5
)

// companySuffixes are stripped from the end of a name before comparison,
// longest-match-first so "private limited" isn't left as a dangling
// "limited" after a shorter suffix already matched.
var companySuffixes = []string{
	"private limited", "pvt. ltd.", "pvt ltd.", "pvt. ltd", "pvt ltd",
	"limited liability company", "l.l.c.", "llc.", "llc",
	"incorporated", "inc.", "inc",
	"corporation", "corp.", "corp",
	"limited", "ltd.", "ltd",
	"company", "co.", "co",
	"plc", "gmbh", "ag", "s.a.", "sa",
	"pty ltd.", "pty ltd", "pty. ltd.",
	"opc pvt ltd", "opc private limited",
	"llp", "l.l.p.",
}

var copyrightPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)©\s*(?:\d{4}\s*[-–]?\s*\d{0,4}\s*)?([A-Z][A-Za-z0-9\s&,.'-]{2,80}?)(?:\.\s|\.$|,|\s{2,}|$)`),
	regexp.MustCompile(`(?i)\(c\)\s*(?:\d{4}\s*[-–]?\s*\d{0,4}\s*)?([A-Z][A-Za-z0-9\s&,.'-]{2,80}?)(?:\.\s|\.$|,|\s{2,}|$)`),
	regexp.MustCompile(`(?i)copyright\s*(?:\d{4}\s*[-–]?\s*\d{0,4}\s*)?([A-Z][A-Za-z0-9\s&,.'-]{2,80}?)(?:\.\s|\.$|,|\s{2,}|$)`),
}

var operatedByPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:operated|provided|owned|run)\s+by\s+([A-Z][A-Za-z0-9\s&,.'-]+?)(?:\.|,|\s*\()`),
	regexp.MustCompile(`(?i)(?:company|entity|organization)\s+name[:\s]+([A-Z][A-Za-z0-9\s&,.'-]+?)(?:\.|,)`),
}

var addressPatterns = []*regexp.Regexp{
	// Indian: street, city, state - PIN
	regexp.MustCompile(`(?i)[\w\s,.-]+,\s*[\w\s]+,\s*[\w\s]+\s*-\s*\d{6}`),
	// US: street, City, ST ZIP
	regexp.MustCompile(`(?i)\d+\s+[\w\s.]+,\s*[\w\s]+,\s*[A-Z]{2}\s*\d{5}(?:-\d{4})?`),
	// UK: ..., Postcode
	regexp.MustCompile(`(?i)[\w\s,.-]+,\s*[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}`),
	// generic with explicit PIN/zip/postal code label
	regexp.MustCompile(`(?i)[\w\s,.-]{10,120}(?:pin|zip|postal)\s*code[:\s]*\d{4,6}`),
}

var commonWords = map[string]bool{
	"home": true, "about": true, "contact": true, "privacy": true,
	"terms": true, "blog": true, "news": true,
}

var yearRangeRe = regexp.MustCompile(`\s*\d{4}\s*[-–]?\s*\d{4}`)
var allRightsReservedRe = regexp.MustCompile(`(?i)\s*all\s+rights\s+reserved.*$`)
var allDigitsRe = regexp.MustCompile(`^[\d\s]+$`)
var nonAlnumRe = regexp.MustCompile(`[^\w\s]`)

var addressAbbreviations = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\bstreet\b`), "st"}, {regexp.MustCompile(`\bst\.?\b`), "st"},
	{regexp.MustCompile(`\bavenue\b`), "ave"}, {regexp.MustCompile(`\bave\.?\b`), "ave"},
	{regexp.MustCompile(`\broad\b`), "rd"}, {regexp.MustCompile(`\brd\.?\b`), "rd"},
	{regexp.MustCompile(`\bboulevard\b`), "blvd"}, {regexp.MustCompile(`\bblvd\.?\b`), "blvd"},
	{regexp.MustCompile(`\bdrive\b`), "dr"}, {regexp.MustCompile(`\bdr\.?\b`), "dr"},
	{regexp.MustCompile(`\blane\b`), "ln"}, {regexp.MustCompile(`\bln\.?\b`), "ln"},
	{regexp.MustCompile(`\bapartment\b`), "apt"}, {regexp.MustCompile(`\bapt\.?\b`), "apt"},
	{regexp.MustCompile(`\bsuite\b`), "ste"}, {regexp.MustCompile(`\bste\.?\b`), "ste"},
	{regexp.MustCompile(`\bfloor\b`), "fl"}, {regexp.MustCompile(`\bfl\.?\b`), "fl"},
}

// Site is the extracted material the matcher draws candidate names and
// addresses from — one entry per fetched page plus whatever structured
// business details were already recognized elsewhere in the pipeline.
type Site struct {
	ExtractedBusinessName string
	OGSiteName             string
	HomeTitle              string
	ContactAddress         string
	TermsConditionsText    string
	FooterTexts            []string // footer HTML/text fragments per page, for copyright scanning
	PageTexts              map[string]string
}

// Match compares a merchant's declared legal name and registered address
// against Site's extracted candidates and returns the blended verdict.
func Match(declaredName, declaredAddress string, site Site) *models.EntityMatchResult {
	names := extractLegalNames(site)
	addresses := extractAddresses(site)

	best, score := matchNames(declaredName, names)

	status := models.MatchNoData
	if len(names) > 0 {
		switch {
		case score >= matchThreshold:
			status = models.MatchFull
		case score >= partialMatchThreshold:
			status = models.MatchPartial
		default:
			status = models.MatchNone
		}
	}

	result := &models.EntityMatchResult{
		DeclaredName:   declaredName,
		ExtractedNames: names,
		BestMatch:      best,
		MatchScore:     score,
		MatchStatus:    status,
	}
	if declaredAddress != "" && len(addresses) > 0 {
		result.AddressMatch = matchAddress(declaredAddress, addresses)
	}
	return result
}

func extractLegalNames(site Site) []string {
	var names []string

	if site.ExtractedBusinessName != "" && site.ExtractedBusinessName != "Not found" {
		names = append(names, site.ExtractedBusinessName)
	}
	if site.OGSiteName != "" {
		names = append(names, site.OGSiteName)
	}
	if site.HomeTitle != "" {
		title := site.HomeTitle
		for _, sep := range []string{"-", "|"} {
			if idx := strings.Index(title, sep); idx > 0 {
				title = title[:idx]
				break
			}
		}
		names = append(names, strings.TrimSpace(title))
	}

	for _, text := range site.PageTexts {
		names = append(names, copyrightMatches(text)...)
	}
	for _, footer := range site.FooterTexts {
		names = append(names, copyrightMatches(footer)...)
	}

	if site.TermsConditionsText != "" {
		for _, re := range operatedByPatterns {
			for _, m := range re.FindAllStringSubmatch(site.TermsConditionsText, -1) {
				clean := strings.TrimSpace(m[1])
				if len(clean) >= 3 {
					names = append(names, clean)
				}
			}
		}
	}

	cleaned := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, n := range names {
		c := cleanExtractedName(n)
		if c != "" && !seen[c] {
			seen[c] = true
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) > maxNames {
		cleaned = cleaned[:maxNames]
	}
	return cleaned
}

func copyrightMatches(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, re := range copyrightPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return out
}

func extractAddresses(site Site) []string {
	var addresses []string
	if site.ContactAddress != "" && site.ContactAddress != "Not found" {
		addresses = append(addresses, site.ContactAddress)
	}
	for _, text := range site.PageTexts {
		for _, re := range addressPatterns {
			for _, m := range re.FindAllString(text, -1) {
				clean := strings.TrimSpace(m)
				if len(clean) >= 20 {
					addresses = append(addresses, clean)
				}
			}
		}
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	if len(out) > maxAddresses {
		out = out[:maxAddresses]
	}
	return out
}

// matchNames finds the extracted name with the highest weighted blend of
// full, partial, token-sort and token-set ratios against the declared name.
func matchNames(declared string, extracted []string) (string, float64) {
	if len(extracted) == 0 {
		return "", 0
	}
	declaredNorm := normalizeCompanyName(declared)

	var best string
	bestScore := -1.0
	for _, ext := range extracted {
		extNorm := normalizeCompanyName(ext)
		score := ratio(declaredNorm, extNorm)*0.2 +
			partialRatio(declaredNorm, extNorm)*0.2 +
			tokenSortRatio(declaredNorm, extNorm)*0.3 +
			tokenSetRatio(declaredNorm, extNorm)*0.3
		if score == 0 {
			score = basicSimilarity(declaredNorm, extNorm)
		}
		if score > bestScore {
			bestScore = score
			best = ext
		}
	}
	return best, bestScore
}

func matchAddress(declared string, extracted []string) *models.AddressMatch {
	declaredNorm := normalizeAddress(declared)
	var best string
	bestScore := 0.0
	for _, addr := range extracted {
		score := tokenSetRatio(declaredNorm, normalizeAddress(addr))
		if score > bestScore {
			bestScore = score
			best = addr
		}
	}
	status := models.MatchNone
	switch {
	case bestScore >= matchThreshold:
		status = models.MatchFull
	case bestScore >= partialMatchThreshold:
		status = models.MatchPartial
	}
	return &models.AddressMatch{
		Declared:  declared,
		BestMatch: best,
		Score:     bestScore,
		Status:    status,
	}
}

func normalizeCompanyName(name string) string {
	if name == "" {
		return ""
	}
	normalized := strings.ToLower(strings.TrimSpace(name))

	sorted := append([]string(nil), companySuffixes...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	for _, suffix := range sorted {
		trimmed := strings.TrimSuffix(strings.TrimSpace(normalized), suffix)
		if trimmed != strings.TrimSpace(normalized) {
			normalized = trimmed
			break
		}
	}

	normalized = nonAlnumRe.ReplaceAllString(normalized, " ")
	return strings.Join(strings.Fields(normalized), " ")
}

func normalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	normalized := strings.ToLower(strings.TrimSpace(address))
	for _, ab := range addressAbbreviations {
		normalized = ab.pattern.ReplaceAllString(normalized, ab.repl)
	}
	normalized = strings.NewReplacer(",", " ", ".", " ").Replace(normalized)
	return strings.Join(strings.Fields(normalized), " ")
}

func cleanExtractedName(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = allRightsReservedRe.ReplaceAllString(cleaned, "")
	cleaned = yearRangeRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if l := len(cleaned); l < 3 || l > 100 {
		return ""
	}
	if allDigitsRe.MatchString(cleaned) {
		return ""
	}
	if commonWords[strings.ToLower(cleaned)] {
		return ""
	}
	return cleaned
}

// FooterText extracts the text of <footer> elements from a parsed page.
// Copyright lines cluster in footers, so they are scanned separately from
// full page text.
func FooterText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("footer").Text())
}
