package council

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/model"
)

// Scrubber wraps the two neutralization passes: Phase 0 query scrubbing and
// the Stage 2 style-neutralization of metadata text. Both follow the same
// pattern: ask a model to rewrite text, extract JSON from the reply, and
// fall back to the original input on any failure. The pipeline never blocks
// on a scrub.
type Scrubber struct {
	provider llm.Provider
	model    string
	prompts  Prompts
	enabled  bool
}

// NewScrubber creates a scrubber. When disabled, ScrubQuery passes input
// through unchanged and NeutralizeAll returns its input.
func NewScrubber(provider llm.Provider, modelID string, prompts Prompts, enabled bool) *Scrubber {
	return &Scrubber{
		provider: provider,
		model:    modelID,
		prompts:  prompts,
		enabled:  enabled,
	}
}

// ScrubQuery runs Phase 0: neutralize framing bias in the user's query.
// Any failure (call error, missing or unparsable JSON) falls back to the
// original query with empty reasoning.
func (s *Scrubber) ScrubQuery(ctx context.Context, query string) model.ScrubResult {
	fallback := model.ScrubResult{Original: query, Scrubbed: query}

	if !s.enabled || s.provider == nil {
		fallback.Reasoning = "Scrubbing disabled."
		return fallback
	}

	messages := llm.SystemUser(s.prompts.ScrubberSystem, fmt.Sprintf(s.prompts.ScrubberUser, query))
	reply, err := s.provider.Call(ctx, s.model, messages)
	if err != nil {
		slog.Warn("phase 0 scrub unavailable, using original query", "error", err)
		return fallback
	}

	obj, ok := extractJSONObject(reply)
	if !ok {
		slog.Warn("phase 0 scrub returned no JSON, using original query")
		return fallback
	}

	var parsed struct {
		Scrubbed  string `json:"scrubbed"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil || parsed.Scrubbed == "" {
		slog.Warn("phase 0 scrub returned unparsable JSON, using original query")
		return fallback
	}

	return model.ScrubResult{
		Original:  query,
		Scrubbed:  parsed.Scrubbed,
		Reasoning: parsed.Reasoning,
	}
}

// NeutralizeAll rewrites every text in neutral third-person phrasing in a
// single call. The contract is positional: the output list must match the
// input in length and order. On any failure, including a length mismatch,
// it fails closed and returns the original texts. Stylistic leakage is an
// acceptable fallback risk, data loss is not.
func (s *Scrubber) NeutralizeAll(ctx context.Context, texts []string) []string {
	if len(texts) == 0 {
		return texts
	}
	if !s.enabled || s.provider == nil {
		return texts
	}

	payload, err := json.Marshal(texts)
	if err != nil {
		return texts
	}

	messages := llm.SystemUser(s.prompts.NeutralizeSystem, string(payload))
	reply, err := s.provider.Call(ctx, s.model, messages)
	if err != nil {
		slog.Warn("style neutralization unavailable, ranking on original text", "error", err)
		return texts
	}

	arr, ok := extractJSONArray(reply)
	if !ok {
		slog.Warn("style neutralization returned no JSON array, ranking on original text")
		return texts
	}

	var rewritten []string
	if err := json.Unmarshal([]byte(arr), &rewritten); err != nil {
		slog.Warn("style neutralization returned unparsable output, ranking on original text")
		return texts
	}
	if len(rewritten) != len(texts) {
		slog.Warn("style neutralization length mismatch, ranking on original text",
			"want", len(texts), "got", len(rewritten))
		return texts
	}

	// Empty rewrites keep the original slot
	for i, t := range rewritten {
		if strings.TrimSpace(t) == "" {
			rewritten[i] = texts[i]
		}
	}
	return rewritten
}

// extractJSONObject pulls the outermost {...} span from a reply, tolerating
// markdown fences, preambles, and trailing commentary around it.
func extractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// extractJSONArray is the array counterpart of extractJSONObject
func extractJSONArray(raw string) (string, bool) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}
