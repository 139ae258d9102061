package model

import "time"

// SettledFact is a claim that resolved VERIFIED in a prior turn. Facts
// accumulate monotonically per conversation and are deduplicated by text.
type SettledFact struct {
	Text       string `json:"text"`
	Source     string `json:"source,omitempty"`
	Model      string `json:"model,omitempty"`
	SourceTurn int    `json:"source_turn"`
}

// Message is one entry in a conversation: either a user query or a full
// assistant turn carrying every stage payload. Legacy records may lack the
// newer fields; zero values are the correct defaults.
type Message struct {
	Role    string               `json:"role"`
	Content string               `json:"content,omitempty"`
	Stage1  []ModelResponse      `json:"stage1,omitempty"`
	Stage2  []RankingResult      `json:"stage2,omitempty"`
	Stage25 []VerificationResult `json:"stage25,omitempty"`
	Stage3  *SynthesisResult     `json:"stage3,omitempty"`
	Verdict ReliabilityVerdict   `json:"verdict,omitempty"`
}

// Conversation owns the cross-turn memory: the message history and the
// running settled-fact list. It is the only entity mutated after a turn
// completes, and only atomically (a whole turn appended at once).
type Conversation struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Title        string        `json:"title"`
	Messages     []Message     `json:"messages"`
	SettledFacts []SettledFact `json:"settled_facts,omitempty"`
}

// PriorSynthesis returns the chairman's text from the most recent assistant
// turn, or "" on the first turn.
func (c *Conversation) PriorSynthesis() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role == "assistant" && m.Stage3 != nil {
			return m.Stage3.Response
		}
	}
	return ""
}

// TurnNumber returns the 1-indexed number of the turn about to run, counted
// from a pre-turn snapshot (prior assistant messages + 1).
func (c *Conversation) TurnNumber() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == "assistant" {
			n++
		}
	}
	return n + 1
}
