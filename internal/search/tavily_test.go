package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conclave-ai/conclave/internal/model"
)

func tavilyTestServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.APIKey == "" || req.Query == "" {
			t.Error("request missing api key or query")
		}

		_ = json.NewEncoder(w).Encode(tavilyResponse{
			Answer: "direct answer for " + req.Query,
			Results: []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Content string `json:"content"`
			}{
				{Title: "hit", URL: "https://example.org", Content: "<p>some <b>evidence</b></p>"},
			},
		})
	}))
}

func testClient(baseURL string) *TavilyClient {
	return NewTavilyClient(model.SearchConfig{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		MaxResults:        3,
		Timeout:           5 * time.Second,
		CacheTTL:          time.Minute,
		RequestsPerSecond: 100,
	})
}

func TestNewTavilyClient_NilWithoutKey(t *testing.T) {
	if c := NewTavilyClient(model.SearchConfig{}); c != nil {
		t.Error("No API key must yield a nil client")
	}
}

func TestTavilyClient_SearchAndFlatten(t *testing.T) {
	var hits atomic.Int64
	srv := tavilyTestServer(t, &hits)
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.Search(context.Background(), "test query")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Answer != "direct answer for test query" {
		t.Errorf("Unexpected answer: %q", resp.Answer)
	}
	if len(resp.Results) != 1 || resp.Results[0].Content != "some evidence" {
		t.Errorf("Result content must be flattened, got %+v", resp.Results)
	}
}

func TestTavilyClient_CacheHit(t *testing.T) {
	var hits atomic.Int64
	srv := tavilyTestServer(t, &hits)
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()

	if _, err := c.Search(ctx, "repeated query"); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if _, err := c.Search(ctx, "repeated query"); err != nil {
		t.Fatalf("second search: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("Identical query must hit the cache, got %d upstream calls", got)
	}

	if _, err := c.Search(ctx, "different query"); err != nil {
		t.Fatalf("third search: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("Different query must reach upstream, got %d calls", got)
	}
}

func TestTavilyClient_UpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.Search(context.Background(), "q"); err == nil {
		t.Error("Upstream failure must return an error")
	}
}
