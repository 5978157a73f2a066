package pubmed

import (
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 20

	// maxResponseBytes caps response parsing to prevent resource exhaustion.
	maxResponseBytes = 10 << 20

	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results per search.
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

// Client implements the sources.Source interface for PubMed.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var _ sources.Source = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
			UserAgent: "RefHub-CitationService/1.0",
		}),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// Used by tests with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Search queries PubMed for records matching the structured query.
// A query carrying a PMID goes straight to efetch; everything else runs
// a two-step lookup: esearch for PMIDs, then efetch for metadata.
func (c *Client) Search(ctx context.Context, query domain.StructuredQuery) ([]domain.Record, error) {
	if !c.config.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	var pmids []string
	if query.PubMedID != "" {
		pmids = []string{query.PubMedID}
	} else {
		term := buildTerm(query)
		if term == "" {
			return []domain.Record{}, nil
		}

		searchResult, err := c.esearch(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("esearch: %w", err)
		}

		// Phrase-not-found is an empty result, not a failure.
		if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
			return []domain.Record{}, nil
		}
		if len(searchResult.IDList.IDs) == 0 {
			return []domain.Record{}, nil
		}
		pmids = searchResult.IDList.IDs
	}

	articles, err := c.efetch(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	records := make([]domain.Record, 0, len(articles.Articles))
	for i := range articles.Articles {
		if r := articleToRecord(&articles.Articles[i]); r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildTerm assembles a fielded E-utilities query term.
func buildTerm(query domain.StructuredQuery) string {
	var clauses []string
	if query.Title != "" {
		clauses = append(clauses, query.Title+"[Title]")
	}
	for _, author := range query.Authors {
		clauses = append(clauses, author+"[Author]")
	}
	if query.Year != 0 {
		clauses = append(clauses, strconv.Itoa(query.Year)+"[pdat]")
	}
	return strings.Join(clauses, " AND ")
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, term string) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmode", "xml")
	q.Set("retmax", strconv.Itoa(c.config.MaxResults))
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result ESearchResult
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	if len(pmids) == 0 {
		return &PubmedArticleSet{}, nil
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result PubmedArticleSet
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getXML executes a GET request and unmarshals the XML body into out.
func (c *Client) getXML(ctx context.Context, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing XML response: %w", err)
	}
	return nil
}

// articleToRecord converts a PubmedArticle into the normalized record shape.
// Returns nil for articles without a title.
func articleToRecord(article *PubmedArticle) *domain.Record {
	citation := article.MedlineCitation
	if citation.Article.ArticleTitle == "" {
		return nil
	}

	doi := extractDOI(citation.Article, article.PubmedData)

	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	pmcOpenAccess := false
	for _, aid := range article.PubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "pmc" {
			pmcOpenAccess = true
			break
		}
	}

	recordURL := ""
	if citation.PMID.Value != "" {
		recordURL = "https://pubmed.ncbi.nlm.nih.gov/" + citation.PMID.Value + "/"
	}

	return &domain.Record{
		Title:          strings.TrimSuffix(citation.Article.ArticleTitle, "."),
		Authors:        extractAuthors(citation.Article.AuthorList),
		Year:           extractYear(citation.Article),
		Venue:          journal,
		DOI:            doi,
		URL:            recordURL,
		Abstract:       extractAbstract(citation.Article.Abstract),
		Pages:          extractPages(citation.Article.Pagination),
		Volume:         citation.Article.Journal.JournalIssue.Volume,
		OpenAccess:     pmcOpenAccess,
		Source:         domain.SourceTypePubMed,
		SourceRecordID: citation.PMID.Value,
		PubMedID:       citation.PMID.Value,
	}
}

// extractDOI extracts the DOI from article metadata.
// It checks ELocationID first (more reliable), then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return aid.Value
		}
	}
	return ""
}

// extractYear extracts the publication year. Uses ArticleDate if available,
// then the journal issue PubDate, handling the MedlineDate range format.
func extractYear(article Article) int {
	for _, ad := range article.ArticleDate {
		if year, err := strconv.Atoi(ad.Year); err == nil {
			return year
		}
	}

	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.Year != "" {
		if year, err := strconv.Atoi(pubDate.Year); err == nil {
			return year
		}
	}

	// MedlineDate can be "2020 Jan-Feb", "2020 Spring", "2020-2021".
	if pubDate.MedlineDate != "" {
		parts := strings.Fields(pubDate.MedlineDate)
		if len(parts) > 0 {
			yearStr := strings.Split(parts[0], "-")[0]
			if year, err := strconv.Atoi(yearStr); err == nil {
				return year
			}
		}
	}

	return 0
}

// extractAbstract concatenates multiple abstract sections into a single string.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// extractAuthors flattens the PubMed author list into display names.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil || len(authorList.Authors) == 0 {
		return nil
	}

	authors := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		switch {
		case a.CollectiveName != "":
			name = a.CollectiveName
		case a.ForeName != "" && a.LastName != "":
			name = a.ForeName + " " + a.LastName
		case a.LastName != "":
			name = a.LastName
		}
		if name == "" {
			continue
		}
		authors = append(authors, name)
	}
	return authors
}

// extractPages formats the page information.
func extractPages(pagination *Pagination) string {
	if pagination == nil {
		return ""
	}
	if pagination.MedlinePgn != "" {
		return pagination.MedlinePgn
	}
	if pagination.StartPage != "" {
		if pagination.EndPage != "" && pagination.EndPage != pagination.StartPage {
			return pagination.StartPage + "-" + pagination.EndPage
		}
		return pagination.StartPage
	}
	return ""
}
