// Package search provides the external evidence backend for claim
// verification: a web-search client plus helpers for turning raw results
// into compact context blocks for the adjudicating model.
package search

import "context"

// Client executes web searches. A nil Client means search is unconfigured;
// callers degrade rather than fail.
type Client interface {
	Search(ctx context.Context, query string) (*Response, error)
}

// Result is a single web search hit
type Result struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Response is the outcome of one search query
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// HasData reports whether the response carries any usable evidence
func (r *Response) HasData() bool {
	return r != nil && (r.Answer != "" || len(r.Results) > 0)
}
