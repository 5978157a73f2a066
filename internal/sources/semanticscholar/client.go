package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/refhub/citation-service/internal/domain"
	"github.com/refhub/citation-service/internal/sources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum number of results per search.
	DefaultMaxResults = 20

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,externalIds,title,abstract,year,venue,journal,authors,citationCount,isOpenAccess,openAccessPdf,url"

	// maxResponseBytes caps response parsing to prevent resource exhaustion.
	maxResponseBytes = 10 << 20

	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// Authenticated requests have higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum number of results to return per search.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the sources.Source interface for Semantic Scholar.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Source = (*Client)(nil)

// New creates a new Semantic Scholar client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			UserAgent:    "RefHub-CitationService/1.0",
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		}),
	}
}

// NewWithHTTPClient creates a Semantic Scholar client with a custom HTTP
// client. Used by tests with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Search queries Semantic Scholar. Identifier-bearing queries resolve
// through the direct paper lookup endpoint, which accepts prefixed
// external IDs (DOI:..., ARXIV:..., PMID:...).
func (c *Client) Search(ctx context.Context, query domain.StructuredQuery) ([]domain.Record, error) {
	if !c.config.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	if id := lookupID(query); id != "" {
		record, err := c.getByID(ctx, id)
		if err != nil {
			var nf *domain.NotFoundError
			if errors.As(err, &nf) {
				return []domain.Record{}, nil
			}
			return nil, err
		}
		return []domain.Record{*record}, nil
	}

	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]domain.Record, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		if r := paperToRecord(&searchResp.Data[i]); r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

// getByID retrieves a single paper by a prefixed external identifier.
func (c *Client) getByID(ctx context.Context, id string) (*domain.Record, error) {
	paperURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(id), paperFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paperURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("paper", id)
	}
	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	var paper PaperResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&paper); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	record := paperToRecord(&paper)
	if record == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return record, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// lookupID returns the prefixed external identifier for the direct lookup
// endpoint, or "" when the query carries no usable identifier.
func lookupID(query domain.StructuredQuery) string {
	switch {
	case query.ArXivID != "":
		return "ARXIV:" + query.ArXivID
	case query.DOI != "":
		return "DOI:" + query.DOI
	case query.PubMedID != "":
		return "PMID:" + query.PubMedID
	}
	return ""
}

// buildSearchURL constructs the search API URL from the query fields.
func (c *Client) buildSearchURL(query domain.StructuredQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	var parts []string
	if query.Title != "" {
		parts = append(parts, query.Title)
	}
	parts = append(parts, query.Authors...)

	q := searchURL.Query()
	q.Set("query", strings.Join(parts, " "))
	q.Set("fields", paperFields)
	q.Set("limit", strconv.Itoa(c.config.MaxResults))
	if query.Year != 0 {
		q.Set("year", strconv.Itoa(query.Year))
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message != "" {
			return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
		}
	}

	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

// paperToRecord maps a Semantic Scholar paper into the normalized record
// shape. Returns nil for papers without a title.
func paperToRecord(p *PaperResult) *domain.Record {
	if p.Title == "" {
		return nil
	}

	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	venue := p.Venue
	var pages, volume string
	if p.Journal != nil {
		if venue == "" {
			venue = p.Journal.Name
		}
		pages = p.Journal.Pages
		volume = p.Journal.Volume
	}

	recordURL := p.URL
	if p.OpenAccessPDF != nil && p.OpenAccessPDF.URL != "" {
		recordURL = p.OpenAccessPDF.URL
	}

	record := &domain.Record{
		Title:          p.Title,
		Authors:        authors,
		Year:           p.Year,
		Venue:          venue,
		URL:            recordURL,
		Abstract:       p.Abstract,
		Pages:          pages,
		Volume:         volume,
		CitationCount:  p.CitationCount,
		OpenAccess:     p.IsOpenAccess,
		Source:         domain.SourceTypeSemanticScholar,
		SourceRecordID: p.PaperID,
	}
	if p.ExternalIDs != nil {
		record.DOI = p.ExternalIDs.DOI
		record.PubMedID = p.ExternalIDs.PubMed
		record.ArXivID = p.ExternalIDs.ArXiv
	}
	return record
}
