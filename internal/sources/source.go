// Package sources provides interfaces and shared plumbing for bibliographic
// authority clients.
//
// Each external authority (Crossref, PubMed, Semantic Scholar, OpenAlex)
// implements the Source interface. Adapters normalize their native response
// shapes into domain.Record; source-specific payloads never leak past the
// adapter boundary. "No results" is an empty slice, not an error; errors are
// reserved for transport and API failures, which callers log and treat as
// zero results.
package sources

import (
	"context"

	"github.com/refhub/citation-service/internal/domain"
)

// Source is the uniform contract implemented once per bibliographic authority.
type Source interface {
	// Search queries the authority for records matching the structured query.
	// Identifier fields take precedence over free-text fields where the
	// authority supports direct lookup. Implementations must respect context
	// cancellation and apply their own rate limiting.
	Search(ctx context.Context, query domain.StructuredQuery) ([]domain.Record, error)

	// SourceType returns the type identifier for this source, used for
	// attribution, priority ordering and metrics labels.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logging and display.
	Name() string

	// IsEnabled reports whether the source is available for searches. A
	// source may be disabled by configuration or a missing API key.
	IsEnabled() bool
}
