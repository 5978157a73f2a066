package crossref

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
	// DefaultBaseURL is the default Crossref API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default requests per second. Crossref's polite
	// pool (requests carrying a mailto contact) tolerates higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default number of rows per search.
	DefaultMaxResults = 20

	// maxResponseBytes caps response parsing to prevent resource exhaustion.
	maxResponseBytes = 10 << 20

	sourceName = "Crossref"
)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the API base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Email is the contact address for the polite pool.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the number of rows requested per search.
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

// Client implements the sources.Source interface for Crossref.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Source = (*Client)(nil)

// New creates a new Crossref client with the given configuration.
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

// NewWithHTTPClient creates a Crossref client with a custom HTTP client.
// Used by tests with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Search queries Crossref. A DOI-bearing query resolves through the direct
// /works/{doi} lookup; anything else goes through bibliographic search.
func (c *Client) Search(ctx context.Context, query domain.StructuredQuery) ([]domain.Record, error) {
	if !c.config.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	if query.DOI != "" {
		record, err := c.getByDOI(ctx, query.DOI)
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

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var works WorksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&works); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]domain.Record, 0, len(works.Message.Items))
	for i := range works.Message.Items {
		if r := workToRecord(&works.Message.Items[i]); r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

// getByDOI resolves a single work by DOI.
func (c *Client) getByDOI(ctx context.Context, doi string) (*domain.Record, error) {
	lookupURL := fmt.Sprintf("%s/works/%s", c.config.BaseURL, url.PathEscape(doi))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("work", doi)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var work WorkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&work); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	record := workToRecord(&work.Message)
	if record == nil {
		return nil, domain.NewNotFoundError("work", doi)
	}
	return record, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCrossref
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the /works search URL from the query fields.
func (c *Client) buildSearchURL(query domain.StructuredQuery) (string, error) {
	base, err := url.Parse(c.config.BaseURL + "/works")
	if err != nil {
		return "", err
	}

	params := url.Values{}
	if query.Title != "" {
		params.Set("query.bibliographic", query.Title)
	} else {
		var parts []string
		parts = append(parts, query.Authors...)
		if query.Year != 0 {
			parts = append(parts, strconv.Itoa(query.Year))
		}
		params.Set("query.bibliographic", strings.Join(parts, " "))
	}
	if len(query.Authors) > 0 {
		params.Set("query.author", strings.Join(query.Authors, " "))
	}
	params.Set("rows", strconv.Itoa(c.config.MaxResults))
	if c.config.Email != "" {
		params.Set("mailto", c.config.Email)
	}

	base.RawQuery = params.Encode()
	return base.String(), nil
}

// workToRecord maps a Crossref work into the normalized record shape.
// Returns nil for works without a title, which cannot be scored.
func workToRecord(w *Work) *domain.Record {
	if len(w.Title) == 0 || w.Title[0] == "" {
		return nil
	}

	authors := make([]string, 0, len(w.Author))
	for _, a := range w.Author {
		switch {
		case a.Family != "" && a.Given != "":
			authors = append(authors, a.Given+" "+a.Family)
		case a.Family != "":
			authors = append(authors, a.Family)
		case a.Name != "":
			authors = append(authors, a.Name)
		}
	}

	venue := ""
	if len(w.ContainerTitle) > 0 {
		venue = w.ContainerTitle[0]
	}

	return &domain.Record{
		Title:          w.Title[0],
		Authors:        authors,
		Year:           w.Issued.Year(),
		Venue:          venue,
		DOI:            w.DOI,
		URL:            w.URL,
		Abstract:       stripJATS(w.Abstract),
		Pages:          w.Page,
		Volume:         w.Volume,
		CitationCount:  w.ReferencedBy,
		OpenAccess:     len(w.License) > 0,
		Source:         domain.SourceTypeCrossref,
		SourceRecordID: w.DOI,
	}
}

// stripJATS removes the JATS XML tags Crossref wraps abstracts in.
func stripJATS(s string) string {
	if s == "" {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
