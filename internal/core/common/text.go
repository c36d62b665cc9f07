package common

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9' ]`)
)

// NormalizeName lowercases a name, strips punctuation, and collapses
// whitespace so equal display names map to the same cluster key.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NameSimilarity returns the Jaccard similarity of character trigram shingles
// of the two normalized names, in [0, 1]. Short names fall back to exact
// comparison, which avoids spuriously high scores on two-letter overlaps.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if len(na) < 3 || len(nb) < 3 {
		return 0
	}

	sa, sb := shingles(na), shingles(nb)
	var intersection, union int
	for s := range sa {
		if sb[s] {
			intersection++
		}
	}
	union = len(sa) + len(sb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func shingles(s string) map[string]bool {
	out := make(map[string]bool, len(s))
	for i := 0; i+3 <= len(s); i++ {
		out[s[i:i+3]] = true
	}
	return out
}

// TokenOverlap returns the fraction of query tokens that appear in doc,
// used as the lexical relevance score for fulltext candidates.
func TokenOverlap(query, doc string) float64 {
	qTokens := strings.Fields(NormalizeName(query))
	if len(qTokens) == 0 {
		return 0
	}
	dTokens := make(map[string]bool)
	for _, t := range strings.Fields(NormalizeName(doc)) {
		dTokens[t] = true
	}
	var hits int
	for _, t := range qTokens {
		if dTokens[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(qTokens))
}
