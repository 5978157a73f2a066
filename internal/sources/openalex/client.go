package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/refhub/citation-service/internal/domain"
	"github.com/refhub/citation-service/internal/sources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 20

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// maxResponseBytes caps response parsing to prevent resource exhaustion.
	maxResponseBytes = 10 << 20

	sourceName = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Email is the contact email for the polite pool.
	// Providing an email grants access to higher rate limits.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
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

// Client implements the sources.Source interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Source = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := "RefHub-CitationService/1.0"
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	return &Client{
		config: cfg,
		httpClient: sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
			UserAgent: userAgent,
		}),
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// Used by tests with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Search queries OpenAlex. DOI-bearing queries use the direct works
// lookup; everything else goes through full-text search with filters.
func (c *Client) Search(ctx context.Context, query domain.StructuredQuery) ([]domain.Record, error) {
	if !c.config.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	if query.DOI != "" {
		return c.getByDOI(ctx, query.DOI)
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

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]domain.Record, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if r := workToRecord(&searchResp.Results[i]); r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

// getByDOI resolves a single work by DOI through the direct lookup path.
// OpenAlex expects the DOI as-is in the path and decodes it on their side.
func (c *Client) getByDOI(ctx context.Context, doi string) ([]domain.Record, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works/" + doiPrefix + normalizeDOI(doi)
	if c.config.Email != "" {
		q := url.Values{}
		q.Set("mailto", c.config.Email)
		baseURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []domain.Record{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var work Work
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&work); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	record := workToRecord(&work)
	if record == nil {
		return []domain.Record{}, nil
	}
	return []domain.Record{*record}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the works search URL from the query fields.
func (c *Client) buildSearchURL(query domain.StructuredQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works"

	q := url.Values{}

	var filters []string
	if query.Title != "" {
		filters = append(filters, "title.search:"+escapeFilterValue(query.Title))
		if len(query.Authors) > 0 {
			filters = append(filters, "raw_author_name.search:"+escapeFilterValue(strings.Join(query.Authors, " ")))
		}
	} else {
		var parts []string
		parts = append(parts, query.Authors...)
		q.Set("search", strings.Join(parts, " "))
	}
	if query.Year != 0 {
		filters = append(filters, "publication_year:"+strconv.Itoa(query.Year))
	}
	if len(filters) > 0 {
		q.Set("filter", strings.Join(filters, ","))
	}

	q.Set("per_page", strconv.Itoa(c.config.MaxResults))
	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = q.Encode()
	return baseURL.String(), nil
}

// escapeFilterValue strips characters with syntactic meaning in the
// OpenAlex filter grammar.
func escapeFilterValue(v string) string {
	return strings.NewReplacer(",", " ", ":", " ", "|", " ").Replace(v)
}

// workToRecord converts an OpenAlex work into the normalized record shape.
// Returns nil for works without a title.
func workToRecord(work *Work) *domain.Record {
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}
	if title == "" {
		return nil
	}

	authors := make([]string, 0, len(work.Authorships))
	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName != "" {
			authors = append(authors, authorship.Author.DisplayName)
		}
	}

	var venue string
	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		venue = work.PrimaryLocation.Source.DisplayName
	}

	doi := normalizeDOI(work.DOI)
	if doi == "" {
		doi = normalizeDOI(work.IDs.DOI)
	}

	isOpenAccess := work.IsOpenAccess
	if work.OpenAccess != nil {
		isOpenAccess = work.OpenAccess.IsOA
	}

	var recordURL string
	if work.OpenAccess != nil && work.OpenAccess.OAURL != "" {
		recordURL = work.OpenAccess.OAURL
	} else if work.PrimaryLocation != nil && work.PrimaryLocation.PDFURL != "" {
		recordURL = work.PrimaryLocation.PDFURL
	} else {
		recordURL = work.ID
	}

	pages := work.Biblio.FirstPage
	if work.Biblio.LastPage != "" && work.Biblio.LastPage != work.Biblio.FirstPage {
		pages = work.Biblio.FirstPage + "-" + work.Biblio.LastPage
	}

	return &domain.Record{
		Title:          title,
		Authors:        authors,
		Year:           work.PublicationYear,
		Venue:          venue,
		DOI:            doi,
		URL:            recordURL,
		Abstract:       reconstructAbstract(work.AbstractInvertedIndex),
		Pages:          pages,
		Volume:         work.Biblio.Volume,
		CitationCount:  work.CitedByCount,
		OpenAccess:     isOpenAccess,
		Source:         domain.SourceTypeOpenAlex,
		SourceRecordID: normalizeOpenAlexID(work.ID),
		PubMedID:       normalizePMID(work.IDs.PMID),
	}
}

// normalizeDOI strips URL and scheme prefixes from DOIs and lowercases.
func normalizeDOI(doi string) string {
	if doi == "" {
		return ""
	}
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

// normalizeOpenAlexID extracts the short ID from full OpenAlex URLs.
func normalizeOpenAlexID(id string) string {
	return strings.TrimSpace(strings.TrimPrefix(id, "https://openalex.org/"))
}

// normalizePMID strips any URL prefixes from PubMed IDs.
func normalizePMID(pmid string) string {
	if pmid == "" {
		return ""
	}
	pmid = strings.TrimPrefix(pmid, "https://pubmed.ncbi.nlm.nih.gov/")
	return strings.TrimSpace(strings.TrimSuffix(pmid, "/"))
}

// reconstructAbstract reconstructs the abstract text from OpenAlex's
// inverted index format, which maps words to their positions.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	// Guard against malicious payloads with excessive position entries.
	if totalPairs > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, totalPairs)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}
	return builder.String()
}
