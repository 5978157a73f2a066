package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one bibliographic candidate returned by a source adapter,
// normalized into a common shape. Author order is significant: the first
// author carries the most matching weight. Duplicates across sources are
// expected and resolved by scoring, never by the adapters themselves.
type Record struct {
	Title          string     `json:"title"`
	Authors        []string   `json:"authors,omitempty"`
	Year           int        `json:"year,omitempty"`
	Venue          string     `json:"venue,omitempty"`
	DOI            string     `json:"doi,omitempty"`
	URL            string     `json:"url,omitempty"`
	Abstract       string     `json:"abstract,omitempty"`
	Pages          string     `json:"pages,omitempty"`
	Volume         string     `json:"volume,omitempty"`
	CitationCount  int        `json:"citation_count"`
	OpenAccess     bool       `json:"open_access"`
	Source         SourceType `json:"source"`
	SourceRecordID string     `json:"source_record_id,omitempty"`
	PubMedID       string     `json:"pubmed_id,omitempty"`
	ArXivID        string     `json:"arxiv_id,omitempty"`
}

// CanonicalKey derives the identity key for a record using the same
// precedence as StructuredQuery.CanonicalKey.
func (r Record) CanonicalKey() string {
	if doi := strings.TrimSpace(r.DOI); doi != "" {
		return "doi:" + strings.ToLower(doi)
	}
	if r.PubMedID != "" {
		return "pubmed:" + r.PubMedID
	}
	if r.ArXivID != "" {
		return "arxiv:" + strings.ToLower(r.ArXivID)
	}
	if r.Title == "" && len(r.Authors) == 0 {
		return ""
	}
	return "hash:" + contentHash(r.Title, r.Authors, r.Year)
}

// ScoredCandidate pairs a record with its scorer output. Confidence is match
// confidence in verification mode and intrinsic quality in discovery mode;
// both live in [0, 1].
type ScoredCandidate struct {
	Record     Record  `json:"record"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// CitationRecord is the persisted canonical representation of a publication,
// deduplicated by canonical key. Records are created on first verified match
// and updated by later verifications; this subsystem never deletes them.
type CitationRecord struct {
	ID            uuid.UUID
	CanonicalID   string
	Title         string
	Authors       []string
	Year          int
	Venue         string
	DOI           string
	URL           string
	Abstract      string
	Pages         string
	Volume        string
	CitationCount int
	OpenAccess    bool
	VerifiedVia   SourceType
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RecordToCitation converts a scored source record into the persistable form.
func RecordToCitation(r Record) *CitationRecord {
	return &CitationRecord{
		CanonicalID:   r.CanonicalKey(),
		Title:         r.Title,
		Authors:       r.Authors,
		Year:          r.Year,
		Venue:         r.Venue,
		DOI:           r.DOI,
		URL:           r.URL,
		Abstract:      r.Abstract,
		Pages:         r.Pages,
		Volume:        r.Volume,
		CitationCount: r.CitationCount,
		OpenAccess:    r.OpenAccess,
		VerifiedVia:   r.Source,
	}
}
