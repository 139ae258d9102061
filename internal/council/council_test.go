package council

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/model"
	"github.com/conclave-ai/conclave/internal/search"
)

// stubProvider scripts model replies by inspecting the outgoing request
type stubProvider struct {
	mu    sync.Mutex
	calls []string
	fn    func(modelID string, messages []llm.Message) (string, error)
}

func (p *stubProvider) Name() string                     { return "stub" }
func (p *stubProvider) IsAvailable(context.Context) bool { return true }
func (p *stubProvider) Call(ctx context.Context, modelID string, messages []llm.Message) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, modelID)
	p.mu.Unlock()
	return p.fn(modelID, messages)
}

func lastUserContent(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func testCouncil(p llm.Provider, models []string) *Council {
	cfg := model.DefaultConfig()
	cfg.Council.Models = models
	cfg.Council.Chairman = "chairman"
	cfg.Council.Scrubber = "scrubber"
	cfg.Council.Verifier = "verifier"
	cfg.Council.TitleModel = "titler"
	return New(p, cfg, nil)
}

// stubSearch scripts search results and records queries
type stubSearch struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string) (*search.Response, error)
}

func (s *stubSearch) Search(ctx context.Context, query string) (*search.Response, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return s.fn(query)
}

// scriptedReply routes a stub call to the right stage by its content
func scriptedReply(modelID string, messages []llm.Message) (string, error) {
	user := lastUserContent(messages)
	switch {
	case modelID == "titler":
		return "Test Question Title", nil
	case modelID == "chairman":
		return "The council's final synthesized answer.", nil
	case modelID == "scrubber":
		if strings.Contains(user, "sanitize") {
			return `{"scrubbed": "neutral question", "reasoning": "removed framing"}`, nil
		}
		// Style neutralization: echo the array back
		if arr, ok := extractJSONArray(user); ok {
			return arr, nil
		}
		return "", fmt.Errorf("unexpected scrubber call")
	case strings.Contains(user, "FINAL RANKING"):
		// Ranking ballot: rank the peers shown in the blocks, in label order
		blocks := user
		if cut := strings.Index(user, "Your task"); cut > 0 {
			blocks = user[:cut]
		}
		labels := labelPattern.FindAllString(blocks, -1)
		seen := make(map[string]bool)
		var b strings.Builder
		b.WriteString("Evaluation text.\n\nFINAL RANKING:\n")
		n := 0
		for _, l := range labels {
			if seen[l] {
				continue
			}
			seen[l] = true
			n++
			fmt.Fprintf(&b, "%d. %s\n", n, l)
		}
		return b.String(), nil
	default:
		// Stage 1 answer with metadata
		return fmt.Sprintf(`Answer from %s.

{"confidence": 80, "confidence_source": "recalled", "factual_claims": ["fact from %s"]}`, modelID, modelID), nil
	}
}

func TestRunTurn_EventOrder(t *testing.T) {
	p := &stubProvider{fn: scriptedReply}
	c := testCouncil(p, []string{"m1", "m2", "m3"})

	var events []EventType
	emitter := EmitterFunc(func(ev Event) { events = append(events, ev.Type) })

	result, err := c.RunTurn(context.Background(), "question?", Memory{}, emitter)
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	want := []EventType{
		EventStage1Start, EventStage1Complete,
		EventStage2Start, EventStage2Complete,
		EventStage25Start, EventStage25Complete,
		EventStage3Start, EventStage3Complete,
		EventTitleComplete, EventComplete,
	}
	if len(events) != len(want) {
		t.Fatalf("Expected %d events, got %d: %v", len(want), len(events), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], events[i])
		}
	}

	if len(result.Stage1) != 3 {
		t.Errorf("Expected 3 stage1 responses, got %d", len(result.Stage1))
	}
	if len(result.Rankings) != 3 {
		t.Errorf("Expected 3 ballots, got %d", len(result.Rankings))
	}
	if result.Synthesis.Response != "The council's final synthesized answer." {
		t.Errorf("Unexpected synthesis: %q", result.Synthesis.Response)
	}
	if result.Title != "Test Question Title" {
		t.Errorf("Unexpected title: %q", result.Title)
	}
}

func TestRunTurn_PartialStage1Failure(t *testing.T) {
	p := &stubProvider{fn: func(modelID string, messages []llm.Message) (string, error) {
		if modelID == "m2" && !strings.Contains(lastUserContent(messages), "FINAL RANKING") {
			return "", fmt.Errorf("model offline")
		}
		return scriptedReply(modelID, messages)
	}}
	c := testCouncil(p, []string{"m1", "m2", "m3"})

	result, err := c.RunTurn(context.Background(), "question?", Memory{}, nil)
	if err != nil {
		t.Fatalf("Turn must survive a single model failure: %v", err)
	}
	if len(result.Stage1) != 2 {
		t.Fatalf("Expected 2 surviving responses, got %d", len(result.Stage1))
	}
	for _, r := range result.Stage1 {
		if r.Model == "m2" {
			t.Error("Failed model must be omitted from stage1")
		}
	}
	// m2 still votes in stage 2 even though its own answer failed
	votedModels := make(map[string]bool)
	for _, r := range result.Rankings {
		votedModels[r.Model] = true
	}
	if !votedModels["m2"] {
		t.Error("A model that failed stage 1 should still vote in stage 2")
	}
}

func TestRunTurn_EmptyStage1Fatal(t *testing.T) {
	p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
		return "", fmt.Errorf("all models down")
	}}
	c := testCouncil(p, []string{"m1", "m2"})

	var events []EventType
	emitter := EmitterFunc(func(ev Event) { events = append(events, ev.Type) })

	result, err := c.RunTurn(context.Background(), "question?", Memory{}, emitter)
	if err == nil {
		t.Fatal("Expected error when no model responds")
	}
	if result != nil {
		t.Error("No partial result on a fatal turn")
	}
	if events[len(events)-1] != EventError {
		t.Errorf("Last event should be error, got %v", events)
	}
}

func TestRunTurn_ChairmanFailureFatal(t *testing.T) {
	p := &stubProvider{fn: func(modelID string, messages []llm.Message) (string, error) {
		if modelID == "chairman" {
			return "", fmt.Errorf("chairman offline")
		}
		return scriptedReply(modelID, messages)
	}}
	c := testCouncil(p, []string{"m1", "m2"})

	_, err := c.RunTurn(context.Background(), "question?", Memory{}, nil)
	if err == nil {
		t.Fatal("Expected error when the chairman fails")
	}
	if !strings.Contains(err.Error(), "stage 3") {
		t.Errorf("Error should name stage 3, got %v", err)
	}
}

func TestRunTurn_ExistingTitleKept(t *testing.T) {
	p := &stubProvider{fn: scriptedReply}
	c := testCouncil(p, []string{"m1", "m2"})

	result, err := c.RunTurn(context.Background(), "question?", Memory{Title: "Settled Title"}, nil)
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Title != "Settled Title" {
		t.Errorf("Existing title must be kept, got %q", result.Title)
	}
	for _, call := range p.calls {
		if call == "titler" {
			t.Error("Title model must not be called when a title exists")
		}
	}
}

func TestTopRanked_PadsFromCollectionOrder(t *testing.T) {
	stage1 := []model.ModelResponse{{Model: "a"}, {Model: "b"}, {Model: "c"}}
	agg := []model.AggregateRanking{{Model: "c", AverageRank: 1.0}}

	top := topRanked(stage1, agg, 2)
	if len(top) != 2 {
		t.Fatalf("Expected 2, got %d", len(top))
	}
	if top[0].Model != "c" {
		t.Errorf("Ranked model first, got %s", top[0].Model)
	}
	if top[1].Model != "a" {
		t.Errorf("Pad from collection order, got %s", top[1].Model)
	}
}
