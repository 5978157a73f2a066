// Package citeparse turns free-text citations into structured queries.
//
// The parser never fails: fields it cannot extract are simply left at their
// zero value, and a completely unparseable string yields an empty query the
// orchestrator rejects as insufficient data. Detection runs in a fixed order
// so that strong identifiers (DOI, PubMed ID, arXiv ID) win over the fuzzier
// author-year heuristics.
package citeparse

import (
	"encoding/csv"
	"regexp"
	"strconv"
	"strings"

	"github.com/refhub/citation-service/internal/domain"
)

var (
	// doiPattern matches a DOI anywhere in the text, with or without the
	// common "doi:" or "https://doi.org/" prefixes.
	doiPattern = regexp.MustCompile(`(?i)\b(?:doi:\s*|https?://(?:dx\.)?doi\.org/)?(10\.\d{4,9}/[^\s"'<>]+)`)

	// pubmedPattern matches an explicit PubMed identifier.
	pubmedPattern = regexp.MustCompile(`(?i)\b(?:pmid|pubmed)\s*:?\s*(\d{1,8})\b`)

	// arxivPattern matches new-style (2104.12345v2) and old-style
	// (cond-mat/9876543) arXiv identifiers with an explicit arXiv prefix.
	arxivPattern = regexp.MustCompile(`(?i)\barxiv\s*:?\s*(\d{4}\.\d{4,5}(?:v\d+)?|[a-z-]+(?:\.[A-Z]{2})?/\d{7})`)

	// bracketPattern matches numeric reference markers such as "[12]" or
	// "[3, 7]" at the start of a reference-list entry.
	bracketPattern = regexp.MustCompile(`^\s*\[\d+(?:\s*,\s*\d+)*\]\s*`)

	// parentheticalPattern matches in-text citations such as "(Smith, 2020)",
	// "(Smith & Jones, 2021)" or "(Smith et al., 2019)". The wrapping
	// parentheses are optional so bare "Jones et al., 2019" also matches.
	parentheticalPattern = regexp.MustCompile(`\(?\s*([A-Z][\p{L}'’-]+(?:\s*(?:,|&|and)\s*[A-Z][\p{L}'’-]+)*)((?:,)?\s+et\s+al\.?)?\s*,\s*(\d{4})[a-z]?\s*\)?`)

	// referencePattern matches APA-style reference entries:
	// "Smith, J., & Jones, M. (2020). Title of the paper. Journal, 12(3), 45-67."
	referencePattern = regexp.MustCompile(`^(.+?)\s*\((\d{4})[a-z]?\)\.?\s*(.*)$`)

	// journalTailPattern picks journal, volume, issue and pages out of the
	// text following the title in a reference entry.
	journalTailPattern = regexp.MustCompile(`^([^,]+?),\s*(\d+)\s*(?:\((\d+[^)]*)\))?\s*,\s*([\dA-Za-z]+\s*[-–]\s*[\dA-Za-z]+|\d+)`)

	etAlPattern = regexp.MustCompile(`(?i)\bet\s+al\b`)

	yearPattern = regexp.MustCompile(`\b(1[6-9]\d{2}|20\d{2})\b`)
)

// taggedPrefix introduces explicitly structured citations:
// "CITE: Smith J; Jones M, 2020, Attention Is All You Need, 10.1000/xyz"
const taggedPrefix = "CITE:"

// Parse converts one raw citation string into a StructuredQuery.
func Parse(raw string) domain.StructuredQuery {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.StructuredQuery{}
	}

	// Numeric reference markers carry no searchable signal; strip and go on.
	text = bracketPattern.ReplaceAllString(text, "")

	if rest, ok := strings.CutPrefix(text, taggedPrefix); ok {
		return parseTagged(rest)
	}

	var q domain.StructuredQuery

	if m := doiPattern.FindStringSubmatch(text); m != nil {
		q.DOI = strings.TrimRight(m[1], ".,;)")
		text = strings.Replace(text, m[0], "", 1)
	}
	if m := pubmedPattern.FindStringSubmatch(text); m != nil {
		q.PubMedID = m[1]
		text = strings.Replace(text, m[0], "", 1)
	}
	if m := arxivPattern.FindStringSubmatch(text); m != nil {
		q.ArXivID = m[1]
		text = strings.Replace(text, m[0], "", 1)
	}

	q.HasEtAl = etAlPattern.MatchString(text)

	if parseReference(text, &q) {
		return q
	}
	parseParenthetical(text, &q)
	return q
}

// parseReference handles full reference-list entries with a parenthesized
// year separating the author block from the title. Returns false when the
// text does not look like a reference entry.
func parseReference(text string, q *domain.StructuredQuery) bool {
	m := referencePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return false
	}

	authors := parseAuthorClause(m[1])
	if len(authors) == 0 {
		return false
	}
	year, _ := strconv.Atoi(m[2])
	q.Authors = authors
	q.Year = year

	rest := strings.TrimSpace(m[3])
	if rest == "" {
		return true
	}

	// First sentence after the year is the title.
	title, tail := splitSentence(rest)
	q.Title = strings.TrimSuffix(title, ".")

	if tail != "" {
		if jm := journalTailPattern.FindStringSubmatch(tail); jm != nil {
			q.Journal = strings.TrimSpace(jm[1])
			q.Volume = jm[2]
			q.Issue = strings.TrimSpace(jm[3])
			q.Pages = strings.ReplaceAll(strings.ReplaceAll(jm[4], " ", ""), "–", "-")
		} else {
			q.Journal = strings.TrimSuffix(strings.TrimSpace(tail), ".")
		}
	}
	return true
}

// parseParenthetical handles in-text author-year citations.
func parseParenthetical(text string, q *domain.StructuredQuery) {
	m := parentheticalPattern.FindStringSubmatch(text)
	if m == nil {
		// Last resort: a bare year plus whatever reads like a title.
		if ym := yearPattern.FindStringSubmatch(text); ym != nil && q.Title == "" {
			q.Year, _ = strconv.Atoi(ym[1])
		}
		return
	}

	q.Authors = parseAuthorClause(m[1])
	q.Year, _ = strconv.Atoi(m[3])
	if m[2] != "" {
		q.HasEtAl = true
	}
}

// parseTagged parses the explicit "CITE:" form. Fields are comma separated:
// authors (semicolon separated within the field), year, title, then an
// optional DOI. A tolerant CSV reader keeps stray quotes from breaking it.
func parseTagged(rest string) domain.StructuredQuery {
	var q domain.StructuredQuery

	r := csv.NewReader(strings.NewReader(rest))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	fields, err := r.Read()
	if err != nil {
		// Fall back to a naive split; the tagged form is best effort.
		fields = strings.Split(rest, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
	}

	if len(fields) > 0 {
		for _, a := range strings.Split(fields[0], ";") {
			if a = strings.TrimSpace(a); a != "" {
				q.Authors = append(q.Authors, a)
			}
		}
	}
	if len(fields) > 1 {
		q.Year, _ = strconv.Atoi(strings.TrimSpace(fields[1]))
	}
	if len(fields) > 2 {
		q.Title = strings.TrimSpace(fields[2])
	}
	if len(fields) > 3 {
		if m := doiPattern.FindStringSubmatch(fields[3]); m != nil {
			q.DOI = m[1]
		}
	}
	q.HasEtAl = etAlPattern.MatchString(rest)
	return q
}

// parseAuthorClause splits an author block into individual names. It copes
// with "Smith, J., & Jones, M.", "Smith and Jones" and plain "Smith" while
// dropping the et-al marker.
func parseAuthorClause(clause string) []string {
	clause = etAlPattern.ReplaceAllString(clause, "")
	clause = strings.NewReplacer(" and ", "&", " & ", "&").Replace(clause)

	var authors []string
	for _, part := range strings.Split(clause, "&") {
		for _, name := range splitSurnameInitials(part) {
			if name != "" {
				authors = append(authors, name)
			}
		}
	}
	return authors
}

// splitSurnameInitials handles comma-separated "Surname, F. M." sequences:
// consecutive initial-only tokens are folded into the preceding surname.
func splitSurnameInitials(part string) []string {
	var out []string
	for _, tok := range strings.Split(part, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if isInitials(tok) && len(out) > 0 {
			out[len(out)-1] = out[len(out)-1] + " " + strings.ReplaceAll(tok, ".", "")
			continue
		}
		out = append(out, strings.Trim(tok, " ."))
	}
	return out
}

// isInitials reports whether a token is only initials ("J.", "J. M.", "JM").
func isInitials(tok string) bool {
	letters := 0
	for _, r := range tok {
		switch {
		case r == '.' || r == ' ':
		case r >= 'A' && r <= 'Z':
			letters++
		default:
			return false
		}
	}
	return letters >= 1 && letters <= 3
}

// splitSentence splits text at the first sentence boundary, skipping periods
// that belong to initials or abbreviations.
func splitSentence(text string) (string, string) {
	for i := 0; i < len(text); i++ {
		if text[i] != '.' {
			continue
		}
		// A period followed by end-of-string or a space starts a new sentence
		// unless it trails a single capital letter (an initial).
		if i >= 2 && text[i-1] >= 'A' && text[i-1] <= 'Z' && text[i-2] == ' ' {
			continue
		}
		if i+1 >= len(text) {
			return text[:i], ""
		}
		if text[i+1] == ' ' {
			return text[:i], strings.TrimSpace(text[i+1:])
		}
	}
	return text, ""
}
