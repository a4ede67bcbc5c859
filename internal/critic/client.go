// Package critic implements the selective LLM-based logic check. It catches
// classification errors that vector similarity cannot — a novel entity that
// looks nothing like past feedback but is still the wrong type.
package critic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/msg43/winnow/internal/model"
)

// ErrNoResponse indicates the model returned no choices.
var ErrNoResponse = errors.New("no response from model")

// ChatClient is the minimal chat-completion surface the critic needs.
// Tests substitute a fake; production uses the OpenAI-compatible client.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIClient implements ChatClient over an OpenAI-compatible endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient creates a chat client from critic configuration.
func NewOpenAIClient(cfg model.CriticConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("critic API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	m := cfg.Model
	if m == "" {
		m = openai.GPT4oMini
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       m,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends one system+user exchange and returns the raw reply text.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
