package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zen-systems/routegate/pkg/schema"
)

// OpenAIBackend serves OpenAI models. Pointed at a compatible base URL it
// also serves OpenAI-API-compatible local servers.
type OpenAIBackend struct {
	client openai.Client
}

// NewOpenAIBackend creates a new OpenAI backend.
func NewOpenAIBackend(apiKey string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIBackend{client: client}, nil
}

// Name returns the backend identifier.
func (b *OpenAIBackend) Name() string {
	return "openai"
}

// ListModels returns the supported OpenAI models.
func (b *OpenAIBackend) ListModels(_ context.Context) ([]string, error) {
	return []string{
		"gpt-5.2-instant",
		"gpt-5.2-thinking",
		"gpt-5.2-pro",
	}, nil
}

// Chat sends a prompt to OpenAI and returns the answer with its latency and
// token usage.
func (b *OpenAIBackend) Chat(ctx context.Context, model, systemText, userText string) (*ChatResult, error) {
	start := time.Now()

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemText != "" {
		messages = append(messages, openai.SystemMessage(systemText))
	}
	messages = append(messages, openai.UserMessage(userText))

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(4096),
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &ChatResult{
		Answer:    resp.Choices[0].Message.Content,
		LatencyMS: time.Since(start).Milliseconds(),
		Usage: &schema.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}
