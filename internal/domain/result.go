package domain

// VerificationResult is the terminal outcome of one citation verification.
// Callers always receive one of the two statuses; ordinary "not found"
// outcomes are failed results, never errors.
type VerificationResult struct {
	Status VerificationStatus `json:"status"`

	// Record and Confidence are set when Status is verified. Confidence is
	// always at or above the adaptive threshold for the query that produced it.
	Record     *Record `json:"record,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// Source names the adapter that produced the verified record, or
	// SourceCache when the result was served from the cache.
	Source string `json:"source,omitempty"`

	// Suggestions holds up to five candidates sorted descending by confidence
	// when Status is failed and the search produced near misses.
	Suggestions []ScoredCandidate `json:"suggestions,omitempty"`

	// FailureReason is set when Status is failed.
	FailureReason FailureReason `json:"failure_reason,omitempty"`

	// SourcesQueried lists the adapters that were actually invoked.
	SourcesQueried []string `json:"sources_queried,omitempty"`

	ElapsedMS int64 `json:"elapsed_ms"`
}

// Verified returns true if the result represents a confident match.
func (r *VerificationResult) Verified() bool {
	return r.Status == VerificationStatusVerified
}

// MaxSuggestions is the cap on candidates returned with a failed result.
const MaxSuggestions = 5
