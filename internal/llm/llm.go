// Package llm wraps the chat completion client. Groq exposes an
// OpenAI-compatible API, so the client is go-openai with an overridden base
// URL; any other OpenAI-compatible provider works the same way.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/uovfts/faculty-assistant/internal/log"
)

// ErrGeneration indicates the completion call failed. The orchestrator owns
// the retry policy; this package never retries.
var ErrGeneration = errors.New("generation failed")

// Message roles understood by the chat API.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one turn of a chat completion request.
type Message struct {
	Role    string
	Content string
}

// Config holds client settings for the completion endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client produces chat completions.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      log.Logger
}

// New creates a completion client.
func New(cfg Config, logger log.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Complete runs one chat completion over the given messages and returns the
// assistant text. Messages must already be ordered and within the caller's
// token budget.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", ErrGeneration)
	}

	c.logger.Debug("completion finished",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return resp.Choices[0].Message.Content, nil
}
