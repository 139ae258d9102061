package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/conclave-ai/conclave/internal/cache"
	"github.com/conclave-ai/conclave/internal/model"
	"github.com/conclave-ai/conclave/internal/util"
)

const maxResponseBytes = 1 << 20 // 1 MiB

// TavilyClient implements Client against the Tavily search API
type TavilyClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	maxResults int
	limiter    *rate.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
}

// NewTavilyClient creates a client from configuration. Returns nil when no
// API key is configured; verification then degrades instead of failing.
func NewTavilyClient(cfg model.SearchConfig) *TavilyClient {
	if cfg.APIKey == "" {
		return nil
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	return &TavilyClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
		},
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		maxResults: maxResults,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		cache:      cache.NewMemoryCache(ttl, 2*ttl),
		cacheTTL:   ttl,
	}
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search executes one query, rate-limited and cached by query text
func (c *TavilyClient) Search(ctx context.Context, query string) (*Response, error) {
	key := cache.Key("tavily", query)
	if data, found := c.cache.Get(key); found {
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil {
			return &resp, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    c.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d", httpResp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	resp := &Response{
		Query:  query,
		Answer: FlattenHTML(parsed.Answer),
	}
	for _, r := range parsed.Results {
		resp.Results = append(resp.Results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Content: FlattenHTML(r.Content),
		})
	}

	if data, err := json.Marshal(resp); err == nil {
		_ = c.cache.Set(key, data, c.cacheTTL)
	}

	return resp, nil
}
