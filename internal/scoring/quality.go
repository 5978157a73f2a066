package scoring

import (
	"math"
	"time"

	"github.com/refhub/citation-service/internal/domain"
)

// qualityWeights tunes the intrinsic-quality blend per source family.
// Metadata completeness differs across the authorities: Semantic Scholar's
// citation graph is the most trustworthy citation signal, PubMed reports no
// citation counts at all, and Crossref's counts lag the graph services. The
// weights always sum to 1 so scores stay comparable across sources.
type qualityWeights struct {
	citations  float64
	recency    float64
	openAccess float64
	provenance float64
}

var sourceWeights = map[domain.SourceType]qualityWeights{
	domain.SourceTypeSemanticScholar: {citations: 0.45, recency: 0.25, openAccess: 0.15, provenance: 0.15},
	domain.SourceTypeOpenAlex:        {citations: 0.40, recency: 0.25, openAccess: 0.15, provenance: 0.20},
	domain.SourceTypeCrossref:        {citations: 0.30, recency: 0.30, openAccess: 0.10, provenance: 0.30},
	domain.SourceTypePubMed:          {citations: 0.10, recency: 0.40, openAccess: 0.20, provenance: 0.30},
}

var defaultWeights = qualityWeights{citations: 0.35, recency: 0.30, openAccess: 0.15, provenance: 0.20}

// citationSaturation is the citation count at which the log-scaled citation
// term reaches full credit.
const citationSaturation = 1000.0

// QualityScore estimates how desirable a record is as citable source
// material, independent of any query. The result is in [0, 1] and comparable
// across sources.
func QualityScore(r domain.Record) float64 {
	return qualityScoreAt(r, time.Now().UTC())
}

// qualityScoreAt is the clock-injected form used by tests.
func qualityScoreAt(r domain.Record, now time.Time) float64 {
	w, ok := sourceWeights[r.Source]
	if !ok {
		w = defaultWeights
	}

	score := w.citations * citationTerm(r.CitationCount)
	score += w.recency * recencyTerm(r.Year, now.Year())
	if r.OpenAccess {
		score += w.openAccess
	}
	score += w.provenance * provenanceTerm(r)

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// citationTerm log-scales the citation count and caps it at 1.0 so a handful
// of mega-cited classics cannot crowd out everything else.
func citationTerm(count int) float64 {
	if count <= 0 {
		return 0
	}
	v := math.Log1p(float64(count)) / math.Log1p(citationSaturation)
	if v > 1.0 {
		v = 1.0
	}
	return v
}

// recencyTerm gives full credit to papers up to five years old and half
// credit up to ten.
func recencyTerm(year, currentYear int) float64 {
	if year <= 0 {
		return 0
	}
	age := currentYear - year
	switch {
	case age < 0:
		// In-press records dated next year count as current.
		return 1.0
	case age <= 5:
		return 1.0
	case age <= 10:
		return 0.5
	default:
		return 0
	}
}

// provenanceTerm rewards records that are traceable: a DOI and a named venue
// each count for half.
func provenanceTerm(r domain.Record) float64 {
	v := 0.0
	if r.DOI != "" {
		v += 0.5
	}
	if r.Venue != "" {
		v += 0.5
	}
	return v
}
