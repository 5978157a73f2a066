package semanticscholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refhub/citation-service/internal/domain"
	"github.com/refhub/citation-service/internal/sources"
)

// Sample JSON responses for testing.
const searchResponseJSON = `{
	"total": 1,
	"offset": 0,
	"data": [
		{
			"paperId": "abc123",
			"externalIds": {"DOI": "10.1038/nature14539", "PubMed": "26017442", "ArXiv": "1505.00001"},
			"title": "Deep learning",
			"abstract": "Deep learning allows computational models.",
			"year": 2015,
			"venue": "Nature",
			"journal": {"name": "Nature", "pages": "436-444", "volume": "521"},
			"authors": [{"authorId": "1", "name": "Yann LeCun"}, {"authorId": "2", "name": "Yoshua Bengio"}],
			"citationCount": 45000,
			"isOpenAccess": true,
			"openAccessPdf": {"url": "https://example.org/deep-learning.pdf"},
			"url": "https://www.semanticscholar.org/paper/abc123"
		}
	]
}`

const paperResponseJSON = `{
	"paperId": "abc123",
	"externalIds": {"DOI": "10.1038/nature14539"},
	"title": "Deep learning",
	"year": 2015,
	"venue": "",
	"journal": {"name": "Nature", "pages": "436-444", "volume": "521"},
	"authors": [{"authorId": "1", "name": "Yann LeCun"}],
	"citationCount": 45000,
	"isOpenAccess": false,
	"url": "https://www.semanticscholar.org/paper/abc123"
}`

func TestNewClient(t *testing.T) {
	t.Run("creates client with default config", func(t *testing.T) {
		client := New(Config{Enabled: true})

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultMaxResults, client.config.MaxResults)
		assert.True(t, client.IsEnabled())
	})
}

func TestClient_SourceType(t *testing.T) {
	client := New(Config{Enabled: true})
	assert.Equal(t, domain.SourceTypeSemanticScholar, client.SourceType())
}

func TestClient_Name(t *testing.T) {
	client := New(Config{Enabled: true})
	assert.Equal(t, "Semantic Scholar", client.Name())
}

func TestLookupID(t *testing.T) {
	tests := []struct {
		name     string
		query    domain.StructuredQuery
		expected string
	}{
		{"arxiv wins over doi", domain.StructuredQuery{ArXivID: "1505.00001", DOI: "10.1/x"}, "ARXIV:1505.00001"},
		{"doi", domain.StructuredQuery{DOI: "10.1038/nature14539"}, "DOI:10.1038/nature14539"},
		{"pmid", domain.StructuredQuery{PubMedID: "26017442"}, "PMID:26017442"},
		{"no identifier", domain.StructuredQuery{Title: "Deep learning"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, lookupID(tt.query))
		})
	}
}

func TestClient_Search(t *testing.T) {
	t.Run("relevance search with results", func(t *testing.T) {
		var receivedQuery, receivedYear string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.True(t, strings.HasSuffix(r.URL.Path, "/paper/search"))
			receivedQuery = r.URL.Query().Get("query")
			receivedYear = r.URL.Query().Get("year")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(searchResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		query := domain.StructuredQuery{
			Title:   "Deep learning",
			Authors: []string{"LeCun"},
			Year:    2015,
		}
		records, err := client.Search(context.Background(), query)
		require.NoError(t, err)
		require.Len(t, records, 1)

		assert.Equal(t, "Deep learning LeCun", receivedQuery)
		assert.Equal(t, "2015", receivedYear)

		rec := records[0]
		assert.Equal(t, "Deep learning", rec.Title)
		assert.Equal(t, []string{"Yann LeCun", "Yoshua Bengio"}, rec.Authors)
		assert.Equal(t, 2015, rec.Year)
		assert.Equal(t, "Nature", rec.Venue)
		assert.Equal(t, "10.1038/nature14539", rec.DOI)
		assert.Equal(t, "26017442", rec.PubMedID)
		assert.Equal(t, "1505.00001", rec.ArXivID)
		assert.Equal(t, "436-444", rec.Pages)
		assert.Equal(t, "521", rec.Volume)
		assert.Equal(t, 45000, rec.CitationCount)
		assert.True(t, rec.OpenAccess)
		// Open access PDF URL is preferred over the listing URL.
		assert.Equal(t, "https://example.org/deep-learning.pdf", rec.URL)
		assert.Equal(t, "abc123", rec.SourceRecordID)
	})

	t.Run("DOI query uses direct lookup", func(t *testing.T) {
		var receivedPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(paperResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		records, err := client.Search(context.Background(), domain.StructuredQuery{DOI: "10.1038/nature14539"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Contains(t, receivedPath, "/paper/DOI:10.1038")
		// Journal name backfills an empty venue.
		assert.Equal(t, "Nature", records[0].Venue)
	})

	t.Run("identifier not found returns empty results", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "Paper not found"}`))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		records, err := client.Search(context.Background(), domain.StructuredQuery{DOI: "10.9999/missing"})
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("search surfaces API error message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "Unrecognized field"}`))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.Search(context.Background(), domain.StructuredQuery{Title: "test"})
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Unrecognized field", apiErr.Message)
	})

	t.Run("search fails when disabled", func(t *testing.T) {
		client := New(Config{Enabled: false})

		_, err := client.Search(context.Background(), domain.StructuredQuery{Title: "test"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSourceDisabled)
	})
}

// createTestClient creates a test client with the given base URL.
func createTestClient(baseURL string, enabled bool) *Client {
	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		RateLimit: 100,
		BurstSize: 10,
	})

	return NewWithHTTPClient(Config{
		BaseURL: baseURL,
		Enabled: enabled,
	}, httpClient)
}
