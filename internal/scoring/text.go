// Package scoring computes confidence scores for bibliographic candidates.
//
// Two scoring modes share one output range of [0, 1]: match scoring compares
// a candidate against a structured query during verification, and quality
// scoring estimates the intrinsic desirability of a record during discovery,
// where there is no reference query to compare against.
package scoring

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// stopwords are dropped from titles before similarity comparison. The list is
// deliberately small: only words so common they carry no matching signal.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "by": {}, "for": {}, "from": {},
	"in": {}, "of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "with": {},
}

// NormalizeTitle lowercases, strips punctuation and collapses whitespace.
// It is also the dedup key for discovery mode: two records whose normalized
// titles are equal are the same publication as far as ranking is concerned.
func NormalizeTitle(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-':
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// stripStopwords removes stopword tokens from an already-normalized string.
func stripStopwords(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, ok := stopwords[f]; !ok {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// TextSimilarity returns 1 - levenshtein/maxLen over the two strings after
// case folding, punctuation stripping and stopword removal. Empty input on
// either side scores zero: absence of a field is not evidence of a match.
func TextSimilarity(a, b string) float64 {
	a = stripStopwords(NormalizeTitle(a))
	b = stripStopwords(NormalizeTitle(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	if dist >= maxLen {
		return 0
	}
	return 1 - float64(dist)/float64(maxLen)
}

// AuthorOverlap returns the fraction of query authors that can be matched to
// a candidate author. Two names match when their last names are equal and
// their first names are compatible: equal, or one is a single-letter initial
// matching the other's first letter. Each candidate author is consumed by at
// most one query author.
func AuthorOverlap(query, candidate []string) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}

	used := make([]bool, len(candidate))
	matched := 0
	for _, qa := range query {
		qLast, qFirst := splitName(qa)
		if qLast == "" {
			continue
		}
		for j, ca := range candidate {
			if used[j] {
				continue
			}
			cLast, cFirst := splitName(ca)
			if qLast != cLast {
				continue
			}
			if firstNamesCompatible(qFirst, cFirst) {
				used[j] = true
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(query))
}

// splitName normalizes a name and separates the last name from the first
// name tokens. It handles both "First Last" and "Last, First" orderings:
// a comma means the surname comes first.
func splitName(name string) (last, first string) {
	if idx := strings.Index(name, ","); idx >= 0 {
		l := strings.TrimSpace(name[:idx])
		f := strings.TrimSpace(name[idx+1:])
		name = f + " " + l
	}
	fields := strings.Fields(NormalizeTitle(name))
	if len(fields) == 0 {
		return "", ""
	}
	// "Surname F M" style: trailing single-letter initials follow the surname.
	if len(fields) > 1 && allInitials(fields[1:]) {
		return fields[0], strings.Join(fields[1:], " ")
	}
	last = fields[len(fields)-1]
	first = strings.Join(fields[:len(fields)-1], " ")
	return last, first
}

func allInitials(tokens []string) bool {
	for _, t := range tokens {
		if len(t) != 1 {
			return false
		}
	}
	return true
}

// firstNamesCompatible reports whether two first-name strings could belong to
// the same person. Missing first names are compatible with anything: many
// citation styles surface surnames only.
func firstNamesCompatible(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	ta := strings.Fields(a)[0]
	tb := strings.Fields(b)[0]
	if len(ta) == 1 {
		return ta[0] == tb[0]
	}
	if len(tb) == 1 {
		return tb[0] == ta[0]
	}
	return ta == tb
}
