package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errx "github.com/library-assistant/server/internal/core/error"
	"github.com/library-assistant/server/internal/library"
)

const (
	DefaultBaseURL    = "https://export.arxiv.org/api/query"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxResults = 10
)

// Config is bound from the environment by envconfig.
type Config struct {
	BaseURL   string        `envconfig:"ARXIV_BASE_URL" default:"https://export.arxiv.org/api/query"`
	Timeout   time.Duration `envconfig:"ARXIV_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"ARXIV_USER_AGENT" default:"library-assistant/1.0"`
}

// Paper is one arXiv record.
type Paper struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Abstract   string   `json:"abstract"`
	Published  string   `json:"published"`
	Updated    string   `json:"updated"`
	DOI        string   `json:"doi,omitempty"`
	Journal    string   `json:"journal,omitempty"`
	Categories []string `json:"categories"`
	PDFURL     string   `json:"pdfUrl"`
	ArxivURL   string   `json:"arxivUrl"`
}

// SearchResult is one page of a search.
type SearchResult struct {
	Papers       []Paper `json:"papers"`
	TotalResults int     `json:"totalResults"`
	StartIndex   int     `json:"startIndex"`
	ItemsPerPage int     `json:"itemsPerPage"`
}

// Client queries the arXiv API. The zero value is not usable; use NewClient.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// SearchPapers runs a search_query (arXiv query syntax, e.g. `ti:"attention"`).
func (c *Client) SearchPapers(ctx context.Context, query string, maxResults int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &errx.LookupError{Op: "search papers", Query: query, Err: fmt.Errorf("empty query")}
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	params := url.Values{
		"search_query": {query},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	res, err := c.fetch(ctx, params)
	if err != nil {
		return nil, &errx.LookupError{Op: "search papers", Query: query, Err: err}
	}
	return res, nil
}

// GetPaperByID returns the paper with the given id, or nil when the feed has no entry for it.
func (c *Client) GetPaperByID(ctx context.Context, id string) (*Paper, error) {
	clean := CleanID(id)
	if clean == "" {
		return nil, &errx.LookupError{Op: "get paper", Query: id, Err: fmt.Errorf("empty id")}
	}
	res, err := c.fetch(ctx, url.Values{"id_list": {clean}})
	if err != nil {
		return nil, &errx.LookupError{Op: "get paper", Query: clean, Err: err}
	}
	for _, p := range res.Papers {
		// arXiv answers unknown ids with an error entry rather than an empty feed
		if p.ID == clean {
			return &p, nil
		}
	}
	return nil, nil
}

func (c *Client) fetch(ctx context.Context, params url.Values) (*SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	res := &SearchResult{
		Papers:       make([]Paper, 0, len(f.Entries)),
		TotalResults: atoi(f.TotalResults),
		StartIndex:   atoi(f.StartIndex),
		ItemsPerPage: atoi(f.ItemsPerPage),
	}
	for _, e := range f.Entries {
		p := e.toPaper()
		if p.ID == "" {
			continue
		}
		res.Papers = append(res.Papers, p)
	}
	return res, nil
}

// ToResearchPaper converts an arXiv record into a library item. The id is left
// empty so the applier assigns one.
func ToResearchPaper(p Paper) library.ResearchPaper {
	rp := library.ResearchPaper{
		Type:      library.TypePaper,
		Title:     p.Title,
		Authors:   append([]string{}, p.Authors...),
		PaperLink: "https://arxiv.org/abs/" + p.ID,
		Abstract:  p.Abstract,
	}
	if p.Journal != "" {
		rp.Journal = library.Ptr(p.Journal)
	}
	if p.DOI != "" {
		rp.DOI = library.Ptr(p.DOI)
	}
	if t, err := time.Parse(time.RFC3339, p.Published); err == nil {
		rp.Year = library.Ptr(t.Year())
	}
	return rp
}
