package citeparse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/refhub/citation-service/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected domain.StructuredQuery
	}{
		{
			name: "APA reference entry",
			raw:  "Smith, J., & Jones, M. (2020). Attention and memory. Journal of Cognition, 12(3), 45-67.",
			expected: domain.StructuredQuery{
				Authors: []string{"Smith J", "Jones M"},
				Year:    2020,
				Title:   "Attention and memory",
				Journal: "Journal of Cognition",
				Volume:  "12",
				Issue:   "3",
				Pages:   "45-67",
			},
		},
		{
			name: "bracketed reference marker is stripped",
			raw:  "[12] Brown, T. (2020). Language models.",
			expected: domain.StructuredQuery{
				Authors: []string{"Brown T"},
				Year:    2020,
				Title:   "Language models",
			},
		},
		{
			name: "DOI with URL prefix and trailing period",
			raw:  "Deep learning. https://doi.org/10.1038/nature14539.",
			expected: domain.StructuredQuery{
				DOI: "10.1038/nature14539",
			},
		},
		{
			name: "bare DOI with scheme prefix",
			raw:  "doi:10.1000/xyz123",
			expected: domain.StructuredQuery{
				DOI: "10.1000/xyz123",
			},
		},
		{
			name: "explicit PubMed identifier",
			raw:  "PMID: 26017442",
			expected: domain.StructuredQuery{
				PubMedID: "26017442",
			},
		},
		{
			name: "arXiv identifier with version",
			raw:  "arXiv:1706.03762v5",
			expected: domain.StructuredQuery{
				ArXivID: "1706.03762v5",
			},
		},
		{
			name: "parenthetical et al citation",
			raw:  "(Vaswani et al., 2017)",
			expected: domain.StructuredQuery{
				Authors: []string{"Vaswani"},
				Year:    2017,
				HasEtAl: true,
			},
		},
		{
			name: "parenthetical two-author citation",
			raw:  "(Smith & Jones, 2021)",
			expected: domain.StructuredQuery{
				Authors: []string{"Smith", "Jones"},
				Year:    2021,
			},
		},
		{
			name: "tagged citation",
			raw:  "CITE: Smith J; Jones M, 2020, Attention Is All You Need, 10.1000/xyz",
			expected: domain.StructuredQuery{
				Authors: []string{"Smith J", "Jones M"},
				Year:    2020,
				Title:   "Attention Is All You Need",
				DOI:     "10.1000/xyz",
			},
		},
		{
			name: "bare year fallback",
			raw:  "Some unstructured note from 2019 about things",
			expected: domain.StructuredQuery{
				Year: 2019,
			},
		},
		{
			name:     "empty input",
			raw:      "   ",
			expected: domain.StructuredQuery{},
		},
		{
			name:     "no extractable signal",
			raw:      "???",
			expected: domain.StructuredQuery{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.raw))
		})
	}
}

func TestParse_IdentifierWinsOverHeuristics(t *testing.T) {
	q := Parse("Vaswani, A. (2017). Attention Is All You Need. doi:10.48550/arXiv.1706.03762")

	assert.Equal(t, "10.48550/arXiv.1706.03762", q.DOI)
	assert.Equal(t, []string{"Vaswani A"}, q.Authors)
	assert.Equal(t, 2017, q.Year)
	assert.Equal(t, "Attention Is All You Need", q.Title)
}

func TestParseAuthorClause(t *testing.T) {
	tests := []struct {
		name     string
		clause   string
		expected []string
	}{
		{"surname initials pairs", "Smith, J., & Jones, M.", []string{"Smith J", "Jones M"}},
		{"and separator", "Smith and Jones", []string{"Smith", "Jones"}},
		{"single surname", "Smith", []string{"Smith"}},
		{"et al marker dropped", "Smith et al.", []string{"Smith"}},
		{"multiple initials folded", "García, J. M.", []string{"García J M"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseAuthorClause(tt.clause))
		})
	}
}

func TestSplitSentence(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		first string
		rest  string
	}{
		{"plain boundary", "A title. A journal.", "A title", "A journal."},
		{"trailing period only", "A title.", "A title", ""},
		{"no boundary", "A title", "A title", ""},
		{"initial is skipped", "Edited by J. Doe. Another part", "Edited by J. Doe", "Another part"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, rest := splitSentence(tt.text)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.rest, rest)
		})
	}
}
