package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredQuery_HasIdentifier(t *testing.T) {
	assert.True(t, StructuredQuery{DOI: "10.1/x"}.HasIdentifier())
	assert.True(t, StructuredQuery{PubMedID: "123"}.HasIdentifier())
	assert.True(t, StructuredQuery{ArXivID: "1706.03762"}.HasIdentifier())
	assert.False(t, StructuredQuery{Title: "t", Authors: []string{"a"}, Year: 2020}.HasIdentifier())
}

func TestStructuredQuery_IsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		query    StructuredQuery
		expected bool
	}{
		{"zero query", StructuredQuery{}, true},
		{"identifier only", StructuredQuery{DOI: "10.1/x"}, false},
		{"title only", StructuredQuery{Title: "t"}, false},
		{"authors and year", StructuredQuery{Authors: []string{"a"}, Year: 2020}, false},
		{"authors without year", StructuredQuery{Authors: []string{"a"}}, true},
		{"year without authors", StructuredQuery{Year: 2020}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.query.IsEmpty())
		})
	}
}

func TestStructuredQuery_CanonicalKey(t *testing.T) {
	t.Run("DOI has highest precedence", func(t *testing.T) {
		q := StructuredQuery{DOI: " 10.1038/NATURE14539 ", PubMedID: "123", ArXivID: "1706.03762"}
		assert.Equal(t, "doi:10.1038/nature14539", q.CanonicalKey())
	})

	t.Run("PubMed beats arXiv", func(t *testing.T) {
		q := StructuredQuery{PubMedID: "26017442", ArXivID: "1706.03762"}
		assert.Equal(t, "pubmed:26017442", q.CanonicalKey())
	})

	t.Run("arXiv is lowercased", func(t *testing.T) {
		q := StructuredQuery{ArXivID: "1706.03762V5"}
		assert.Equal(t, "arxiv:1706.03762v5", q.CanonicalKey())
	})

	t.Run("content hash fallback", func(t *testing.T) {
		q := StructuredQuery{Title: "Deep learning", Authors: []string{"LeCun"}, Year: 2015}
		key := q.CanonicalKey()
		assert.True(t, strings.HasPrefix(key, "hash:"))
		assert.Len(t, key, len("hash:")+32)
	})

	t.Run("hash is spelling tolerant", func(t *testing.T) {
		a := StructuredQuery{Title: "Deep  Learning!", Authors: []string{"LeCun"}, Year: 2015}
		b := StructuredQuery{Title: "deep learning", Authors: []string{"lecun"}, Year: 2015}
		assert.Equal(t, a.CanonicalKey(), b.CanonicalKey())
	})

	t.Run("no content means no key", func(t *testing.T) {
		assert.Empty(t, StructuredQuery{Year: 2020}.CanonicalKey())
	})
}

func TestRecord_CanonicalKey(t *testing.T) {
	t.Run("agrees with query key for the same publication", func(t *testing.T) {
		q := StructuredQuery{Title: "Deep learning", Authors: []string{"LeCun"}, Year: 2015}
		r := Record{Title: "Deep learning", Authors: []string{"LeCun"}, Year: 2015}
		assert.Equal(t, q.CanonicalKey(), r.CanonicalKey())
	})

	t.Run("identifier precedence", func(t *testing.T) {
		r := Record{DOI: "10.1/X", PubMedID: "123", ArXivID: "1706.03762"}
		assert.Equal(t, "doi:10.1/x", r.CanonicalKey())

		r.DOI = ""
		assert.Equal(t, "pubmed:123", r.CanonicalKey())

		r.PubMedID = ""
		assert.Equal(t, "arxiv:1706.03762", r.CanonicalKey())
	})

	t.Run("empty record has no key", func(t *testing.T) {
		assert.Empty(t, Record{Year: 2020}.CanonicalKey())
	})
}

func TestRecordToCitation(t *testing.T) {
	r := Record{
		Title:         "Deep learning",
		Authors:       []string{"Yann LeCun"},
		Year:          2015,
		Venue:         "Nature",
		DOI:           "10.1038/nature14539",
		CitationCount: 45000,
		OpenAccess:    true,
		Source:        SourceTypeCrossref,
	}

	c := RecordToCitation(r)
	assert.Equal(t, "doi:10.1038/nature14539", c.CanonicalID)
	assert.Equal(t, r.Title, c.Title)
	assert.Equal(t, r.Authors, c.Authors)
	assert.Equal(t, r.Year, c.Year)
	assert.Equal(t, SourceTypeCrossref, c.VerifiedVia)
}
