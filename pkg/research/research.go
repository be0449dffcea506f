// Package research provides the web_search tool backed by DuckDuckGo's HTML
// endpoint, with per-query result caching.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
)

// DefaultEndpoint is DuckDuckGo's JavaScript-free search page.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Options tune a search.
type Options struct {
	MaxResults int
	Region     string
}

// Client searches DuckDuckGo.
type Client struct {
	endpoint   string
	http       *http.Client
	cache      Cache
	ttl        time.Duration
	maxResults int
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(u string) Option { return func(c *Client) { c.endpoint = u } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithCache caches results for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.ttl = ttl
	}
}

// WithMaxResults sets the default result count.
func WithMaxResults(n int) Option { return func(c *Client) { c.maxResults = n } }

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		http:       &http.Client{Timeout: 30 * time.Second},
		maxResults: 5,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search runs query and returns at most opts.MaxResults hits.
func (c *Client) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("research: empty query")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = c.maxResults
	}

	key := cacheKey(query, opts)
	if c.cache != nil {
		if hit, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn("search cache read failed", "error", err)
		} else if ok {
			c.logger.Debug("search cache hit", "query", query)
			return hit, nil
		}
	}

	results, err := c.fetch(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, results, c.ttl); err != nil {
			c.logger.Warn("search cache write failed", "error", err)
		}
	}

	return results, nil
}

func (c *Client) fetch(ctx context.Context, query string, opts Options) ([]Result, error) {
	form := url.Values{"q": {query}}
	if opts.Region != "" {
		form.Set("kl", opts.Region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("research: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("research: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("research: parse results: %w", err)
	}

	return parseResults(doc, opts.MaxResults), nil
}

func parseResults(doc *goquery.Document, limit int) []Result {
	var out []Result

	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}

		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		r := Result{
			Title:   strings.TrimSpace(link.Text()),
			URL:     unwrapRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		}
		if r.Title == "" || r.URL == "" {
			return true
		}

		out = append(out, r)
		return len(out) < limit
	})

	return out
}

// unwrapRedirect returns the target of DuckDuckGo's /l/?uddg=<url> links.
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}

	if target := u.Query().Get("uddg"); target != "" {
		return target
	}

	return href
}

func cacheKey(query string, opts Options) string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(query), opts.Region, opts.MaxResults)
}

type searchInput struct {
	Query      string `json:"query" jsonschema:"description=What to search the web for"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results"`
}

// Tools returns a toolbox with the web_search tool.
func (c *Client) Tools() *toolbox.ToolBox {
	return toolbox.New(toolbox.Func("web_search",
		"Search the web for current trends, news and company information.",
		func(ctx context.Context, in searchInput) ([]Result, error) {
			return c.Search(ctx, in.Query, Options{MaxResults: in.MaxResults})
		}))
}
