package scoring

import (
	"strings"

	"github.com/refhub/citation-service/internal/domain"
)

// Weights for the individual signals of the match score. Terms contribute at
// most their weight; the sum is capped at 1.0.
const (
	weightTitle   = 0.30
	weightAuthors = 0.25
	weightYear    = 0.15
	weightVenue   = 0.15
	weightPages   = 0.10
	weightVolume  = 0.05
)

// Adaptive confidence thresholds by query shape. The author+year thresholds
// sit below title-only on purpose: sparse in-text citations carry inherently
// less matchable information, and demanding title-level confidence from them
// would reject almost everything.
const (
	ThresholdIdentifier   = 0.85
	ThresholdTitleAuthors = 0.70
	ThresholdTitleOnly    = 0.60
	ThresholdAuthorsEtAl  = 0.40
	ThresholdAuthorsYear  = 0.50
	ThresholdDefault      = 0.60
)

// MatchScore computes the confidence that a candidate record is the
// publication the query refers to.
//
// An exact DOI match short-circuits to 1.0: the DOI is an authoritative
// identifier, so no amount of disagreement in the remaining fields can
// override it. Otherwise the score is a weighted sum over title, authors,
// year, venue, pages and volume.
func MatchScore(q domain.StructuredQuery, r domain.Record) float64 {
	if q.DOI != "" && r.DOI != "" && strings.EqualFold(normalizeDOI(q.DOI), normalizeDOI(r.DOI)) {
		return 1.0
	}

	score := weightTitle * TextSimilarity(q.Title, r.Title)
	score += weightAuthors * AuthorOverlap(q.Authors, r.Authors)
	score += weightYear * yearScore(q.Year, r.Year)
	score += weightVenue * TextSimilarity(q.Journal, r.Venue)

	if q.Pages != "" && q.Pages == r.Pages {
		score += weightPages
	}
	if q.Volume != "" && q.Volume == r.Volume {
		score += weightVolume
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// yearScore gives full credit for an exact year match and half credit within
// one year, covering online-first versus print publication dates.
func yearScore(want, got int) float64 {
	if want == 0 || got == 0 {
		return 0
	}
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return 1.0
	case diff == 1:
		return 0.5
	default:
		return 0
	}
}

// Threshold returns the minimum confidence needed to accept a match for the
// given query. It is a pure function of which fields are present.
func Threshold(q domain.StructuredQuery) float64 {
	switch {
	case q.HasIdentifier():
		return ThresholdIdentifier
	case q.Title != "" && len(q.Authors) > 0:
		return ThresholdTitleAuthors
	case q.Title != "":
		return ThresholdTitleOnly
	case len(q.Authors) > 0 && q.Year != 0 && q.HasEtAl:
		return ThresholdAuthorsEtAl
	case len(q.Authors) > 0 && q.Year != 0:
		return ThresholdAuthorsYear
	default:
		return ThresholdDefault
	}
}

// normalizeDOI strips URL prefixes and surrounding whitespace so DOIs from
// different sources compare equal.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		if rest, ok := strings.CutPrefix(strings.ToLower(doi), prefix); ok {
			return rest
		}
	}
	return strings.ToLower(doi)
}
