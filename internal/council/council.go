// Package council implements the multi-stage deliberation pipeline: it
// fans a query out to independent models, has them rank each other's
// anonymized answers, spot-checks high-confidence claims against external
// search evidence, and synthesizes a single final answer with a calibrated
// reliability verdict.
package council

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/model"
	"github.com/conclave-ai/conclave/internal/search"
)

// Council orchestrates one deliberation turn. All prompts and feature gates
// are fixed at construction; a Council is safe for concurrent turns.
type Council struct {
	provider llm.Provider
	cfg      model.CouncilConfig
	heur     model.HeuristicsConfig
	prompts  Prompts
	scrubber *Scrubber
	verifier *Verifier
	rng      *rand.Rand
}

// New creates a council from configuration. searchClient may be nil, in
// which case verification degrades per claim instead of failing.
func New(provider llm.Provider, cfg model.Config, searchClient search.Client) *Council {
	prompts := DefaultPrompts()
	return &Council{
		provider: provider,
		cfg:      cfg.Council,
		heur:     cfg.Heuristics,
		prompts:  prompts,
		scrubber: NewScrubber(provider, cfg.Council.Scrubber, prompts, true),
		verifier: NewVerifier(provider, cfg.Council.Verifier, searchClient, prompts,
			cfg.Council.ConfidenceThreshold, cfg.Council.MaxClaims),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Scrubber exposes the Phase 0 scrubber for the review flow
func (c *Council) Scrubber() *Scrubber {
	return c.scrubber
}

// Memory is the session context consumed by Stage 3: facts settled in prior
// turns and the previous turn's synthesis. It never affects Stages 1-2.5.
type Memory struct {
	SettledFacts   []model.SettledFact
	PriorSynthesis string
	Title          string
}

// TurnResult holds every artifact of one completed turn. All fields are
// read-only once RunTurn returns.
type TurnResult struct {
	Query        string
	Stage1       []model.ModelResponse
	Rankings     []model.RankingResult
	LabelMap     map[string]string
	Aggregate    []model.AggregateRanking
	Verification []model.VerificationResult
	Synthesis    model.SynthesisResult
	Verdict      model.ReliabilityVerdict
	Title        string
}

// Message converts the turn into a persistable assistant message
func (r *TurnResult) Message() model.Message {
	synth := r.Synthesis
	return model.Message{
		Role:    "assistant",
		Stage1:  r.Stage1,
		Stage2:  r.Rankings,
		Stage25: r.Verification,
		Stage3:  &synth,
		Verdict: r.Verdict,
	}
}

// RunTurn executes the full pipeline for one query. Stages run strictly in
// sequence; fan-out within a stage joins before the next stage begins.
// Per-model failures degrade silently; only an empty Stage 1 or a failed
// Stage 3 call aborts the turn, emitting an error event and returning a
// non-nil error with no partial result.
func (c *Council) RunTurn(ctx context.Context, query string, mem Memory, em Emitter) (*TurnResult, error) {
	if em == nil {
		em = NopEmitter
	}

	fail := func(err error) (*TurnResult, error) {
		em.Emit(Event{Type: EventError, Payload: ErrorPayload{Message: err.Error()}})
		return nil, err
	}

	// Stage 1: independent responses
	em.Emit(Event{Type: EventStage1Start})
	stage1 := c.CollectResponses(ctx, query)
	if len(stage1) == 0 {
		return fail(fmt.Errorf("stage 1: no council model responded"))
	}
	em.Emit(Event{Type: EventStage1Complete, Payload: stage1})

	// Stage 2: anonymized peer ranking
	em.Emit(Event{Type: EventStage2Start})
	rankings, labels := c.CollectRankings(ctx, query, stage1)
	aggregate := AggregateRankings(rankings, labels)
	em.Emit(Event{Type: EventStage2Complete, Payload: Stage2Payload{
		Rankings:  rankings,
		LabelMap:  labels.byLabel(),
		Aggregate: aggregate,
	}})

	// Stage 2.5: external spot-check of the top-ranked responses. Never
	// fatal: failure or a disabled engine yields an empty result set.
	em.Emit(Event{Type: EventStage25Start})
	var verification []model.VerificationResult
	if c.cfg.Stage25Enabled {
		verification = c.verifier.VerifyClaims(ctx, topRanked(stage1, aggregate, 2), query)
	}
	em.Emit(Event{Type: EventStage25Complete, Payload: verification})

	// Stage 3: chairman synthesis
	em.Emit(Event{Type: EventStage3Start})
	synthesis, err := c.Synthesize(ctx, query, stage1, rankings, verification, mem)
	if err != nil {
		return fail(fmt.Errorf("stage 3: %w", err))
	}
	synthesis.Annotated = Annotate(synthesis.Response, verification)
	em.Emit(Event{Type: EventStage3Complete, Payload: Stage3Payload{
		Model:    synthesis.Model,
		Response: synthesis.Response,
	}})

	// Title side effect: generated once per conversation
	title := mem.Title
	if title == "" || title == "New Conversation" {
		title = c.GenerateTitle(ctx, query)
	}
	em.Emit(Event{Type: EventTitleComplete, Payload: TitlePayload{Title: title}})

	result := &TurnResult{
		Query:        query,
		Stage1:       stage1,
		Rankings:     rankings,
		LabelMap:     labels.byLabel(),
		Aggregate:    aggregate,
		Verification: verification,
		Synthesis:    synthesis,
		Verdict:      Verdict(verification, stage1, c.heur),
		Title:        title,
	}

	em.Emit(Event{Type: EventComplete})
	return result, nil
}

// topRanked returns the n best responses by aggregate rank, falling back to
// collection order for models missing from the aggregate.
func topRanked(stage1 []model.ModelResponse, aggregate []model.AggregateRanking, n int) []model.ModelResponse {
	byModel := make(map[string]model.ModelResponse, len(stage1))
	for _, r := range stage1 {
		byModel[r.Model] = r
	}

	var top []model.ModelResponse
	seen := make(map[string]bool, n)
	for _, agg := range aggregate {
		if len(top) >= n {
			break
		}
		if r, ok := byModel[agg.Model]; ok && !seen[agg.Model] {
			top = append(top, r)
			seen[agg.Model] = true
		}
	}
	// Not enough ranked models (e.g. every vote failed to parse): pad in
	// collection order so verification still has material.
	for _, r := range stage1 {
		if len(top) >= n {
			break
		}
		if !seen[r.Model] {
			top = append(top, r)
			seen[r.Model] = true
		}
	}
	return top
}

func warnDegraded(stage string, err error) {
	slog.Warn("pipeline stage degraded", "stage", stage, "error", err)
}
