// Package store persists conversations as one JSON file per conversation.
// Records are append-only per turn: a completed turn is written atomically
// (user message, assistant stage payloads, and settled facts together), and
// nothing is persisted for an aborted turn.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/internal/model"
)

// Store manages conversation files under a data directory
type Store struct {
	dir string
}

// New creates a store rooted at dir, creating it if needed
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// ConversationSummary is the listing view of a conversation
type ConversationSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create initializes a new conversation
func (s *Store) Create(id string) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Title:     "New Conversation",
		Messages:  []model.Message{},
	}
	if err := s.Save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get loads a conversation. Legacy records lacking newer fields (settled
// facts, factual claims) decode to empty values rather than erroring.
func (s *Store) Get(id string) (*model.Conversation, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("read conversation %s: %w", id, err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &conv, nil
}

// Save writes a conversation to disk
func (s *Store) Save(conv *model.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", conv.ID, err)
	}
	if err := os.WriteFile(s.path(conv.ID), data, 0644); err != nil {
		return fmt.Errorf("write conversation %s: %w", conv.ID, err)
	}
	return nil
}

// List returns summaries for all conversations, newest first
func (s *Store) List() ([]ConversationSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var summaries []ConversationSummary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		conv, err := s.Get(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		summaries = append(summaries, ConversationSummary{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// AppendTurn records one completed deliberation turn: the user's original
// (never scrubbed) query, all stage payloads, and the newly settled facts,
// in a single write.
func (s *Store) AppendTurn(id string, query string, turn model.Message, facts []model.SettledFact) error {
	conv, err := s.Get(id)
	if err != nil {
		return err
	}

	conv.Messages = append(conv.Messages, model.Message{Role: "user", Content: query})
	conv.Messages = append(conv.Messages, turn)
	addSettledFacts(conv, facts)

	return s.Save(conv)
}

// addSettledFacts appends facts deduplicated by exact claim text
func addSettledFacts(conv *model.Conversation, facts []model.SettledFact) {
	existing := make(map[string]bool, len(conv.SettledFacts))
	for _, f := range conv.SettledFacts {
		existing[f.Text] = true
	}
	for _, f := range facts {
		if f.Text == "" || existing[f.Text] {
			continue
		}
		conv.SettledFacts = append(conv.SettledFacts, f)
		existing[f.Text] = true
	}
}

// BuildSettledFacts extracts the facts that resolved VERIFIED this turn,
// numbered from a pre-turn conversation snapshot.
func BuildSettledFacts(results []model.VerificationResult, snapshot *model.Conversation) []model.SettledFact {
	turn := snapshot.TurnNumber()
	var facts []model.SettledFact
	for _, r := range results {
		if r.Status != model.StatusVerified {
			continue
		}
		facts = append(facts, model.SettledFact{
			Text:       r.Claim,
			Source:     r.Source,
			Model:      r.Model,
			SourceTurn: turn,
		})
	}
	return facts
}

// UpdateTitle sets the conversation title
func (s *Store) UpdateTitle(id, title string) error {
	conv, err := s.Get(id)
	if err != nil {
		return err
	}
	conv.Title = title
	return s.Save(conv)
}
