package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/model"
	"github.com/conclave-ai/conclave/internal/store"
)

type scriptedProvider struct{}

func (scriptedProvider) Name() string                     { return "scripted" }
func (scriptedProvider) IsAvailable(context.Context) bool { return true }
func (scriptedProvider) Call(ctx context.Context, modelID string, messages []llm.Message) (string, error) {
	user := messages[len(messages)-1].Content
	switch {
	case modelID == "titler":
		return "Scripted Title", nil
	case modelID == "chairman":
		return "synthesized answer", nil
	case modelID == "scrubber":
		if strings.Contains(user, "sanitize") {
			return `{"scrubbed": "neutral form", "reasoning": "removed framing"}`, nil
		}
		if start := strings.IndexByte(user, '['); start != -1 {
			return user[start:], nil
		}
		return "", fmt.Errorf("unexpected scrubber call")
	case strings.Contains(user, "FINAL RANKING"):
		return "FINAL RANKING:\n1. Response A\n2. Response B", nil
	default:
		return fmt.Sprintf(`Answer from %s.

{"confidence": 60, "confidence_source": "reasoned"}`, modelID), nil
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := model.DefaultConfig()
	cfg.Council.Models = []string{"m1", "m2", "m3"}
	cfg.Council.Chairman = "chairman"
	cfg.Council.Scrubber = "scrubber"
	cfg.Council.Verifier = "verifier"
	cfg.Council.TitleModel = "titler"
	cfg.Council.Stage25Enabled = false

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	cn := council.New(scriptedProvider{}, cfg, nil)
	srv, err := New(cfg.Server, cn, st)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.app.ServeHTTP(rec, req)
	return rec
}

func createConversation(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/conversations", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var conv model.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	return conv.ID
}

func TestServer_Health(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestServer_ConversationLifecycle(t *testing.T) {
	srv := testServer(t)
	id := createConversation(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/conversations/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/conversations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var summaries []store.ConversationSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != id {
		t.Errorf("Unexpected listing: %+v", summaries)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/conversations/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation: expected 404, got %d", rec.Code)
	}
}

func TestServer_MessageStreamsAndPersists(t *testing.T) {
	srv := testServer(t)
	id := createConversation(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/message",
		`{"content": "what is the answer?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("message: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected SSE content type, got %q", ct)
	}

	body := rec.Body.String()
	wantOrder := []string{
		"event: stage1_start", "event: stage1_complete",
		"event: stage2_start", "event: stage2_complete",
		"event: stage25_start", "event: stage25_complete",
		"event: stage3_start", "event: stage3_complete",
		"event: title_complete", "event: complete",
	}
	pos := -1
	for _, ev := range wantOrder {
		idx := strings.Index(body, ev)
		if idx == -1 {
			t.Fatalf("Stream missing %q:\n%s", ev, body)
		}
		if idx < pos {
			t.Errorf("Event %q out of order", ev)
		}
		pos = idx
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/conversations/"+id, "")
	var conv model.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("Turn not persisted: %d messages", len(conv.Messages))
	}
	if conv.Messages[0].Content != "what is the answer?" {
		t.Errorf("Original query must be persisted, got %q", conv.Messages[0].Content)
	}
	if conv.Messages[1].Stage3 == nil || conv.Messages[1].Stage3.Response != "synthesized answer" {
		t.Errorf("Synthesis not persisted: %+v", conv.Messages[1])
	}
	if conv.Title != "Scripted Title" {
		t.Errorf("Title not updated, got %q", conv.Title)
	}
}

func TestServer_ScrubReviewFlow(t *testing.T) {
	srv := testServer(t)
	id := createConversation(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/scrub",
		`{"content": "why is X obviously wrong?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scrub: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var scrub scrubResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &scrub); err != nil {
		t.Fatalf("decode scrub: %v", err)
	}
	if scrub.Scrubbed != "neutral form" || !scrub.Changed {
		t.Errorf("Unexpected scrub result: %+v", scrub)
	}

	// A second scrub while one is pending conflicts
	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/scrub",
		`{"content": "another question"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("pending scrub: expected 409, got %d", rec.Code)
	}

	// Sending without resolving the review conflicts
	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/message",
		`{"content": "ignored"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("unresolved review: expected 409, got %d", rec.Code)
	}

	// Rejecting the scrub sends and persists the original text
	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/message",
		`{"content": "", "accept_scrubbed": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolved message: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/conversations/"+id, "")
	var conv model.Conversation
	_ = json.Unmarshal(rec.Body.Bytes(), &conv)
	if len(conv.Messages) != 2 || conv.Messages[0].Content != "why is X obviously wrong?" {
		t.Errorf("Original query must be persisted after rejection: %+v", conv.Messages)
	}
}

func TestServer_MessageValidation(t *testing.T) {
	srv := testServer(t)
	id := createConversation(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/message", `{"content": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty content: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/"+id+"/message",
		`{"content": "q", "accept_scrubbed": true}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no pending review: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/conversations/missing/message", `{"content": "q"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation: expected 404, got %d", rec.Code)
	}
}
