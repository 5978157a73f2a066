// Package domain provides domain models and business logic for the Citation Service.
package domain

// SourceType represents the bibliographic authority that provided record data.
// These values must match the database enum source_type.
type SourceType string

const (
	SourceTypeCrossref        SourceType = "crossref"
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeOpenAlex        SourceType = "openalex"

	// SourceCache is used as the result source when a verification is served
	// entirely from the cache without querying any bibliographic authority.
	SourceCache = "cache"
)

// VerificationStatus represents the terminal outcome of a verification.
type VerificationStatus string

const (
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusFailed   VerificationStatus = "failed"
)

// FailureReason explains why a verification ended in VerificationStatusFailed.
type FailureReason string

const (
	// FailureReasonInsufficientData means the citation text yielded no usable
	// query fields (no identifier, no title, no author+year pair).
	FailureReasonInsufficientData FailureReason = "insufficient_data"

	// FailureReasonNoConfidentMatch means the search completed but no candidate
	// cleared the adaptive confidence threshold.
	FailureReasonNoConfidentMatch FailureReason = "no_confident_match"
)

// DefaultSourceOrder is the fallback adapter order used when a query carries
// no identifier that would promote a specific source to the front.
var DefaultSourceOrder = []SourceType{
	SourceTypeCrossref,
	SourceTypeSemanticScholar,
	SourceTypeOpenAlex,
	SourceTypePubMed,
}
