package verify

import "github.com/refhub/citation-service/internal/domain"

// SourceOrder returns the adapter order for a verification lookup. A query
// carrying a strong identifier promotes the authority for that identifier
// to the front; the rest keep their default relative order. DOI wins over
// PubMed ID when a citation carries both, matching canonical key precedence.
func SourceOrder(q domain.StructuredQuery) []domain.SourceType {
	switch {
	case q.DOI != "":
		return promote(domain.SourceTypeCrossref)
	case q.PubMedID != "":
		return promote(domain.SourceTypePubMed)
	case q.ArXivID != "":
		return promote(domain.SourceTypeSemanticScholar)
	default:
		return domain.DefaultSourceOrder
	}
}

// promote moves first to the front of the default order.
func promote(first domain.SourceType) []domain.SourceType {
	order := make([]domain.SourceType, 0, len(domain.DefaultSourceOrder))
	order = append(order, first)
	for _, s := range domain.DefaultSourceOrder {
		if s != first {
			order = append(order, s)
		}
	}
	return order
}
