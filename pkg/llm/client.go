// Package llm wraps the OpenAI-compatible chat completion endpoint behind a
// minimal interface so generators can be tested against fakes.
package llm

import (
	"context"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/velesio/docsapi/pkg/apperrors"
)

// CompletionClient produces a text completion for a prompt. Near-zero
// temperatures make QA and test generation close to deterministic.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Config holds the completion model settings.
type Config struct {
	APIURL    string  `json:"api_url"`
	APIKey    string  `json:"api_key"`
	Model     string  `json:"model"`
	MaxTokens int     `json:"max_tokens"`
}

// Client is the production CompletionClient.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewClient builds a completion client against an OpenAI-compatible API.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.APIURL
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.With("component", "llm-client"),
	}
}

// Complete sends the prompt as a single user message and returns the model's
// text. Any transport or API error is surfaced as an upstream failure;
// nothing here fabricates an answer.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.Error("completion call failed", "error", err)
		return "", apperrors.Wrap(apperrors.TypeUpstream, "llm.Complete", "completion API call failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.New(apperrors.TypeUpstream, "llm.Complete", "completion API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
