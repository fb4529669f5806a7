package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zen-systems/routegate/pkg/schema"
)

// AnthropicBackend serves Claude models.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend creates a new Anthropic backend.
func NewAnthropicBackend(apiKey string) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicBackend{client: client}, nil
}

// Name returns the backend identifier.
func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

// ListModels returns the supported Claude models.
func (b *AnthropicBackend) ListModels(_ context.Context) ([]string, error) {
	return []string{
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
	}, nil
}

// Chat sends a prompt to Claude and returns the answer with its latency and
// token usage.
func (b *AnthropicBackend) Chat(ctx context.Context, model, systemText, userText string) (*ChatResult, error) {
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userText)),
		},
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var answer string
	for _, block := range resp.Content {
		if block.Type == "text" {
			answer += block.Text
		}
	}

	return &ChatResult{
		Answer:    answer,
		LatencyMS: time.Since(start).Milliseconds(),
		Usage: &schema.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}
