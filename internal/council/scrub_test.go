package council

import (
	"context"
	"fmt"
	"testing"

	"github.com/conclave-ai/conclave/internal/llm"
)

func TestScrubQuery_Success(t *testing.T) {
	p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
		return `Here you go: {"scrubbed": "what are the arguments on X", "reasoning": "removed loaded framing"}`, nil
	}}
	s := NewScrubber(p, "scrubber", DefaultPrompts(), true)

	result := s.ScrubQuery(context.Background(), "why is X obviously terrible")
	if result.Scrubbed != "what are the arguments on X" {
		t.Errorf("Unexpected scrubbed text: %q", result.Scrubbed)
	}
	if result.Original != "why is X obviously terrible" {
		t.Errorf("Original must be preserved: %q", result.Original)
	}
	if result.Reasoning == "" {
		t.Error("Reasoning should be carried through")
	}
}

func TestScrubQuery_ProviderFailureIsIdentity(t *testing.T) {
	p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
		return "", fmt.Errorf("scrubber offline")
	}}
	s := NewScrubber(p, "scrubber", DefaultPrompts(), true)

	result := s.ScrubQuery(context.Background(), "the question")
	if result.Scrubbed != "the question" || result.Original != "the question" {
		t.Errorf("Failure must degrade to identity, got %+v", result)
	}
}

func TestScrubQuery_GarbageReplyIsIdentity(t *testing.T) {
	cases := []string{
		"no json here at all",
		`{"scrubbed": ""}`,
		`{broken json`,
	}
	for _, reply := range cases {
		p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
			return reply, nil
		}}
		s := NewScrubber(p, "scrubber", DefaultPrompts(), true)

		result := s.ScrubQuery(context.Background(), "q")
		if result.Scrubbed != "q" {
			t.Errorf("Reply %q must degrade to identity, got %q", reply, result.Scrubbed)
		}
	}
}

func TestScrubQuery_Disabled(t *testing.T) {
	called := false
	p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
		called = true
		return "", nil
	}}
	s := NewScrubber(p, "scrubber", DefaultPrompts(), false)

	result := s.ScrubQuery(context.Background(), "q")
	if result.Scrubbed != "q" {
		t.Errorf("Disabled scrub must pass through, got %q", result.Scrubbed)
	}
	if called {
		t.Error("Disabled scrub must not call the provider")
	}
}

func TestNeutralizeAll_Success(t *testing.T) {
	p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
		return `["rewritten one", "rewritten two"]`, nil
	}}
	s := NewScrubber(p, "scrubber", DefaultPrompts(), true)

	got := s.NeutralizeAll(context.Background(), []string{"one", "two"})
	if got[0] != "rewritten one" || got[1] != "rewritten two" {
		t.Errorf("Unexpected rewrites: %v", got)
	}
}

func TestNeutralizeAll_LengthMismatchFailsClosed(t *testing.T) {
	p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
		return `["only one"]`, nil
	}}
	s := NewScrubber(p, "scrubber", DefaultPrompts(), true)

	got := s.NeutralizeAll(context.Background(), []string{"one", "two"})
	if got[0] != "one" || got[1] != "two" {
		t.Errorf("Length mismatch must return originals, got %v", got)
	}
}

func TestNeutralizeAll_EmptyRewriteKeepsOriginal(t *testing.T) {
	p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
		return `["rewritten", "  "]`, nil
	}}
	s := NewScrubber(p, "scrubber", DefaultPrompts(), true)

	got := s.NeutralizeAll(context.Background(), []string{"one", "two"})
	if got[0] != "rewritten" || got[1] != "two" {
		t.Errorf("Blank rewrite must keep the original slot, got %v", got)
	}
}

func TestNeutralizeAll_EmptyInput(t *testing.T) {
	p := &stubProvider{fn: func(string, []llm.Message) (string, error) {
		t.Fatal("must not call the provider for empty input")
		return "", nil
	}}
	s := NewScrubber(p, "scrubber", DefaultPrompts(), true)

	if got := s.NeutralizeAll(context.Background(), nil); len(got) != 0 {
		t.Errorf("Expected empty output, got %v", got)
	}
}
