package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterProvider talks to any OpenAI-compatible chat-completions
// endpoint. With the default base URL it reaches OpenRouter, which fronts
// every council model behind a single API key.
type OpenRouterProvider struct {
	client *openai.Client
	config Config
}

// NewOpenRouterProvider creates a new provider
func NewOpenRouterProvider(config Config) (*OpenRouterProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenRouterProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenRouterProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Call sends the messages to the named model and returns the reply text
func (p *OpenRouterProvider) Call(ctx context.Context, modelID string, messages []Message) (string, error) {
	if modelID == "" {
		return "", fmt.Errorf("model id is required")
	}

	timeout := p.config.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: chatMessages,
	}
	if p.config.MaxTokens > 0 {
		req.MaxTokens = p.config.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", modelID, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", modelID)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
