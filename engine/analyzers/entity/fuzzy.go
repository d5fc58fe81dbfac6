package entity

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ratio is a Levenshtein-distance-based analog of rapidfuzz's fuzz.ratio:
// 100 when identical, 0 when completely dissimilar.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := (1 - float64(dist)/float64(maxLen)) * 100
	if score < 0 {
		return 0
	}
	return score
}

// partialRatio approximates fuzz.partial_ratio: the best ratio between the
// shorter string and any equal-length window of the longer one.
func partialRatio(a, b string) float64 {
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if shorter == "" {
		return ratio(a, b)
	}
	if len(longer) <= len(shorter) {
		return ratio(shorter, longer)
	}
	best := 0.0
	step := len(shorter)
	for start := 0; start+step <= len(longer); start++ {
		window := longer[start : start+step]
		if r := ratio(shorter, window); r > best {
			best = r
		}
	}
	return best
}

// tokenSortRatio sorts each string's whitespace tokens alphabetically before
// comparing, neutralizing word-order differences.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// tokenSetRatio compares the intersection of tokens against each string's
// remaining unique tokens, which tolerates one name being a subset or
// superset of the other (e.g. a trading name vs. its registered form).
func tokenSetRatio(a, b string) float64 {
	tokensA := uniqueTokens(a)
	tokensB := uniqueTokens(b)

	intersection := make([]string, 0)
	onlyA := make([]string, 0)
	onlyB := make([]string, 0)

	setB := map[string]bool{}
	for _, t := range tokensB {
		setB[t] = true
	}
	setA := map[string]bool{}
	for _, t := range tokensA {
		setA[t] = true
	}
	for _, t := range tokensA {
		if setB[t] {
			intersection = append(intersection, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tokensB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(intersection)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(intersection, " ")
	combined1 := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combined2 := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := ratio(sect, combined1)
	if r := ratio(sect, combined2); r > best {
		best = r
	}
	if r := ratio(combined1, combined2); r > best {
		best = r
	}
	return best
}

func uniqueTokens(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range strings.Fields(s) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// basicSimilarity is the Jaccard word-overlap fallback used when the
// weighted ratio blend collapses to all-zero (e.g. single-character tokens
// where Levenshtein ratio is too coarse).
func basicSimilarity(a, b string) float64 {
	wordsA := uniqueTokens(strings.ToLower(a))
	wordsB := uniqueTokens(strings.ToLower(b))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	setB := map[string]bool{}
	for _, w := range wordsB {
		setB[w] = true
	}
	inter := 0
	for _, w := range wordsA {
		if setB[w] {
			inter++
		}
	}
	union := map[string]bool{}
	for _, w := range wordsA {
		union[w] = true
	}
	for _, w := range wordsB {
		union[w] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union)) * 100
}
