package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// StructuredQuery is the normalized representation of one citation or topic
// string, produced by the citeparse package. Unmatched fields stay at their
// zero value. A StructuredQuery is immutable once produced.
type StructuredQuery struct {
	Authors  []string `json:"authors,omitempty"`
	Year     int      `json:"year,omitempty"`
	Title    string   `json:"title,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	PubMedID string   `json:"pubmed_id,omitempty"`
	ArXivID  string   `json:"arxiv_id,omitempty"`
	Journal  string   `json:"journal,omitempty"`
	Pages    string   `json:"pages,omitempty"`
	Volume   string   `json:"volume,omitempty"`
	Issue    string   `json:"issue,omitempty"`

	// HasEtAl is true when the author clause carried an "et al." marker.
	// Such citations surface only the first author, so the verification
	// threshold is relaxed for them.
	HasEtAl bool `json:"has_et_al,omitempty"`
}

// HasIdentifier returns true if the query carries a strong external identifier.
func (q StructuredQuery) HasIdentifier() bool {
	return q.DOI != "" || q.PubMedID != "" || q.ArXivID != ""
}

// IsEmpty returns true if the query carries nothing a search could use:
// no identifier, no title, and no author+year pair.
func (q StructuredQuery) IsEmpty() bool {
	if q.HasIdentifier() || q.Title != "" {
		return false
	}
	return len(q.Authors) == 0 || q.Year == 0
}

// CanonicalKey derives the identity key for a query. The precedence mirrors
// CitationRecord identity (DOI > PubMed > arXiv > content hash) so that cache
// hits and record-store dedup agree on what "the same publication" means.
// Returns empty string when the query has no identifier and no content to hash.
func (q StructuredQuery) CanonicalKey() string {
	if doi := strings.TrimSpace(q.DOI); doi != "" {
		return "doi:" + strings.ToLower(doi)
	}
	if pmid := strings.TrimSpace(q.PubMedID); pmid != "" {
		return "pubmed:" + pmid
	}
	if arxiv := strings.TrimSpace(q.ArXivID); arxiv != "" {
		return "arxiv:" + strings.ToLower(arxiv)
	}
	if q.Title == "" && len(q.Authors) == 0 {
		return ""
	}
	return "hash:" + contentHash(q.Title, q.Authors, q.Year)
}

// contentHash hashes the normalized title, author list and year into a stable
// hex digest used as the identity fallback for identifier-less citations.
func contentHash(title string, authors []string, year int) string {
	var sb strings.Builder
	sb.WriteString(foldForHash(title))
	for _, a := range authors {
		sb.WriteByte('|')
		sb.WriteString(foldForHash(a))
	}
	fmt.Fprintf(&sb, "|%d", year)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:16])
}

// foldForHash lowercases and strips everything but letters, digits and single
// spaces so trivially different spellings hash identically.
func foldForHash(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimRight(sb.String(), " ")
}
