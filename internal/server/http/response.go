package httpserver

import (
	"time"

	"github.com/refhub/citation-service/internal/domain"
)

// Response types for JSON serialization.

type recordResponse struct {
	Title          string   `json:"title"`
	Authors        []string `json:"authors,omitempty"`
	Year           int      `json:"year,omitempty"`
	Venue          string   `json:"venue,omitempty"`
	DOI            string   `json:"doi,omitempty"`
	URL            string   `json:"url,omitempty"`
	Abstract       string   `json:"abstract,omitempty"`
	Pages          string   `json:"pages,omitempty"`
	Volume         string   `json:"volume,omitempty"`
	CitationCount  int      `json:"citation_count"`
	OpenAccess     bool     `json:"open_access"`
	Source         string   `json:"source"`
	SourceRecordID string   `json:"source_record_id,omitempty"`
	PubMedID       string   `json:"pubmed_id,omitempty"`
	ArXivID        string   `json:"arxiv_id,omitempty"`
}

type suggestionResponse struct {
	Record     recordResponse `json:"record"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
}

type verificationResponse struct {
	Status         string               `json:"status"`
	Record         *recordResponse      `json:"record,omitempty"`
	Confidence     float64              `json:"confidence,omitempty"`
	Source         string               `json:"source,omitempty"`
	Suggestions    []suggestionResponse `json:"suggestions,omitempty"`
	FailureReason  string               `json:"failure_reason,omitempty"`
	SourcesQueried []string             `json:"sources_queried,omitempty"`
	ElapsedMS      int64                `json:"elapsed_ms"`
}

type queuedBatchResponse struct {
	CorrelationID string `json:"correlation_id"`
	Count         int    `json:"count"`
	Status        string `json:"status"`
}

type discoverResponse struct {
	Papers []rankedPaperResponse `json:"papers"`
	Count  int                   `json:"count"`
}

type rankedPaperResponse struct {
	Record       recordResponse `json:"record"`
	QualityScore float64        `json:"quality_score"`
	Source       string         `json:"source"`
}

type citationRecordResponse struct {
	ID            string   `json:"id"`
	CanonicalID   string   `json:"canonical_id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors,omitempty"`
	Year          int      `json:"year,omitempty"`
	Venue         string   `json:"venue,omitempty"`
	DOI           string   `json:"doi,omitempty"`
	URL           string   `json:"url,omitempty"`
	Pages         string   `json:"pages,omitempty"`
	Volume        string   `json:"volume,omitempty"`
	CitationCount int      `json:"citation_count"`
	OpenAccess    bool     `json:"open_access"`
	VerifiedVia   string   `json:"verified_via"`
	UpdatedAt     string   `json:"updated_at"`
}

type citationRecordListResponse struct {
	Records []citationRecordResponse `json:"records"`
	Count   int                      `json:"count"`
}

// Converter functions

func domainRecordToResponse(r domain.Record) recordResponse {
	return recordResponse{
		Title:          r.Title,
		Authors:        r.Authors,
		Year:           r.Year,
		Venue:          r.Venue,
		DOI:            r.DOI,
		URL:            r.URL,
		Abstract:       r.Abstract,
		Pages:          r.Pages,
		Volume:         r.Volume,
		CitationCount:  r.CitationCount,
		OpenAccess:     r.OpenAccess,
		Source:         string(r.Source),
		SourceRecordID: r.SourceRecordID,
		PubMedID:       r.PubMedID,
		ArXivID:        r.ArXivID,
	}
}

func domainResultToResponse(res *domain.VerificationResult) verificationResponse {
	resp := verificationResponse{
		Status:         string(res.Status),
		Confidence:     res.Confidence,
		Source:         res.Source,
		FailureReason:  string(res.FailureReason),
		SourcesQueried: res.SourcesQueried,
		ElapsedMS:      res.ElapsedMS,
	}
	if res.Record != nil {
		r := domainRecordToResponse(*res.Record)
		resp.Record = &r
	}
	for _, s := range res.Suggestions {
		resp.Suggestions = append(resp.Suggestions, suggestionResponse{
			Record:     domainRecordToResponse(s.Record),
			Confidence: s.Confidence,
			Source:     s.Source,
		})
	}
	return resp
}

func domainRankedToResponse(ranked []domain.ScoredCandidate) discoverResponse {
	papers := make([]rankedPaperResponse, len(ranked))
	for i, c := range ranked {
		papers[i] = rankedPaperResponse{
			Record:       domainRecordToResponse(c.Record),
			QualityScore: c.Confidence,
			Source:       c.Source,
		}
	}
	return discoverResponse{Papers: papers, Count: len(papers)}
}

func citationRecordsToResponse(records []*domain.CitationRecord) citationRecordListResponse {
	out := make([]citationRecordResponse, len(records))
	for i, rec := range records {
		out[i] = citationRecordResponse{
			ID:            rec.ID.String(),
			CanonicalID:   rec.CanonicalID,
			Title:         rec.Title,
			Authors:       rec.Authors,
			Year:          rec.Year,
			Venue:         rec.Venue,
			DOI:           rec.DOI,
			URL:           rec.URL,
			Pages:         rec.Pages,
			Volume:        rec.Volume,
			CitationCount: rec.CitationCount,
			OpenAccess:    rec.OpenAccess,
			VerifiedVia:   string(rec.VerifiedVia),
			UpdatedAt:     rec.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	return citationRecordListResponse{Records: out, Count: len(out)}
}
