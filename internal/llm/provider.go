package llm

import (
	"context"
	"time"

	"github.com/conclave-ai/conclave/internal/model"
)

// Role constants for chat messages
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single chat message sent to a model
type Message struct {
	Role    string
	Content string
}

// SystemUser is shorthand for the common system+user message pair
func SystemUser(system, user string) []Message {
	if system == "" {
		return []Message{{Role: RoleUser, Content: user}}
	}
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

// Provider defines the interface to an LLM backend. Every pipeline stage
// treats a model call as an opaque function from messages to text;
// implementations own transport, auth, and timeouts.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Call sends messages to the named model and returns its text reply
	Call(ctx context.Context, modelID string, messages []Message) (string, error)

	// IsAvailable checks if the provider is properly configured and reachable
	IsAvailable(ctx context.Context) bool
}

// Config holds provider configuration
type Config struct {
	// APIKey authenticates against the endpoint
	APIKey string

	// BaseURL points at any OpenAI-compatible endpoint (OpenRouter, OpenAI,
	// a local gateway). Empty uses the client library default.
	BaseURL string

	// Timeout bounds a single model call
	Timeout time.Duration

	// MaxTokens limits response length
	MaxTokens int
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Timeout:   c.Timeout,
		MaxTokens: c.MaxTokens,
	}
}
