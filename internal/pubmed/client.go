// Package pubmed searches PubMed through the NCBI E-utilities API and turns
// efetch XML into rag.Article values ready to be saved.
package pubmed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/rag"
)

const (
	// DefaultBaseURL is the NCBI E-utilities endpoint.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"

	// MaxResults caps the ids returned by a search.
	MaxResults = 300

	// freeFilter restricts a search to articles with free full text.
	freeFilter = `"free full text"[Filter]`
)

// Sort orders search results.
type Sort string

const (
	// SortRelevance is PubMed's best-match order.
	SortRelevance Sort = "relevance"
	// SortPubDate orders by publication date, newest first.
	SortPubDate Sort = "pub_date"
)

// ParseSort maps user input to a Sort. Unknown values fall back to
// SortRelevance.
func ParseSort(s string) Sort {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pubdate", "pub_date", "date":
		return SortPubDate
	default:
		return SortRelevance
	}
}

// ErrUpstream is returned when E-utilities answers with a non-200 status.
var ErrUpstream = errors.New("pubmed: upstream request failed")

// Config holds the settings for constructing a Client.
type Config struct {
	// BaseURL overrides DefaultBaseURL (tests).
	BaseURL string
	// APIKey is the optional NCBI API key; it raises the rate limit to 10/s.
	APIKey string
	// Tool and Email identify the caller to NCBI.
	Tool  string
	Email string
	// RequestsPerSecond overrides the NCBI default (3/s, or 10/s with a key).
	RequestsPerSecond float64
	// Timeout is the per-request HTTP timeout (default 30s).
	Timeout time.Duration
}

// Client talks to E-utilities. It is safe for concurrent use; all requests
// share one rate limiter.
type Client struct {
	base    string
	apiKey  string
	tool    string
	email   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient constructs a Client from cfg.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
		if cfg.APIKey != "" {
			rps = 10
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tool := cfg.Tool
	if tool == "" {
		tool = "pmrag"
	}
	return &Client{
		base:    base,
		apiKey:  cfg.APIKey,
		tool:    tool,
		email:   cfg.Email,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Search returns the articles matching term, at most MaxResults. An empty
// term yields an empty result without contacting NCBI. Articles are marked
// free when they also match the free-full-text filter; failure of that
// lookup is logged and leaves every article marked not free.
func (c *Client) Search(ctx context.Context, term string, sort Sort) ([]rag.Article, error) {
	log := logging.FromContext(ctx)
	term = strings.TrimSpace(term)
	if term == "" {
		return []rag.Article{}, nil
	}

	var ids []string
	free := map[string]bool{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ids, err = c.esearch(gctx, term, sort)
		return err
	})
	g.Go(func() error {
		freeIDs, err := c.esearch(gctx, term+" AND "+freeFilter, sort)
		if err != nil {
			// A cancelled group means the main search already failed.
			if gctx.Err() == nil {
				log.Warn("pubmed: free full text lookup failed, free badges may be inaccurate", slog.Any("error", err))
			}
			return nil
		}
		for _, id := range freeIDs {
			free[id] = true
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []rag.Article{}, nil
	}

	articles, err := c.efetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		articles[i].IsFree = free[articles[i].ID]
	}
	log.Info("pubmed: search completed", slog.String("term", logging.Preview(term, 100)), slog.Int("results", len(articles)))
	return articles, nil
}

// Fetch resolves specific PMIDs, in the order NCBI returns them.
func (c *Client) Fetch(ctx context.Context, ids []string) ([]rag.Article, error) {
	log := logging.FromContext(ctx)
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return []rag.Article{}, nil
	}

	articles, err := c.efetch(ctx, clean)
	if err != nil {
		return nil, err
	}

	uidTerms := make([]string, 0, len(clean))
	for _, id := range clean {
		uidTerms = append(uidTerms, id+"[uid]")
	}
	freeIDs, err := c.esearch(ctx, "("+strings.Join(uidTerms, " OR ")+") AND "+freeFilter, SortRelevance)
	if err != nil {
		log.Warn("pubmed: free full text lookup failed, free badges may be inaccurate", slog.Any("error", err))
	}
	free := make(map[string]bool, len(freeIDs))
	for _, id := range freeIDs {
		free[id] = true
	}
	for i := range articles {
		articles[i].IsFree = free[articles[i].ID]
	}
	return articles, nil
}

// esearchResponse is the JSON body of esearch.fcgi.
type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

func (c *Client) esearch(ctx context.Context, term string, sort Sort) ([]string, error) {
	q := c.params()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmax", fmt.Sprint(MaxResults))
	q.Set("retmode", "json")
	q.Set("sort", string(sort))

	body, err := c.do(ctx, http.MethodGet, c.base+"esearch.fcgi?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("pubmed: esearch: %w", err)
	}
	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pubmed: decode esearch: %w", err)
	}
	return resp.Result.IDList, nil
}

func (c *Client) efetch(ctx context.Context, ids []string) ([]rag.Article, error) {
	form := c.params()
	form.Set("db", "pubmed")
	form.Set("id", strings.Join(ids, ","))
	form.Set("rettype", "abstract")
	form.Set("retmode", "xml")

	body, err := c.do(ctx, http.MethodPost, c.base+"efetch.fcgi", form)
	if err != nil {
		return nil, fmt.Errorf("pubmed: efetch: %w", err)
	}
	articles, err := ParseArticles(body)
	if err != nil {
		return nil, fmt.Errorf("pubmed: %w", err)
	}
	return articles, nil
}

// params returns the identification parameters NCBI asks every caller to send.
func (c *Client) params() url.Values {
	q := url.Values{}
	q.Set("tool", c.tool)
	if c.email != "" {
		q.Set("email", c.email)
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	return q
}

// do waits for the rate limiter and performs one request.
func (c *Client) do(ctx context.Context, method, u string, form url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}
	return data, nil
}
