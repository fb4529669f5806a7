package backend

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/zen-systems/routegate/pkg/schema"
)

// GoogleBackend serves Gemini models.
type GoogleBackend struct {
	client *genai.Client
}

// NewGoogleBackend creates a new Google Gemini backend.
func NewGoogleBackend(apiKey string) (*GoogleBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleBackend{client: client}, nil
}

// Name returns the backend identifier.
func (b *GoogleBackend) Name() string {
	return "google"
}

// ListModels returns the supported Gemini models.
func (b *GoogleBackend) ListModels(_ context.Context) ([]string, error) {
	return []string{
		"gemini-2.0-flash",
		"gemini-2.0-pro",
	}, nil
}

// Chat sends a prompt to Gemini and returns the answer with its latency and
// token usage.
func (b *GoogleBackend) Chat(ctx context.Context, model, systemText, userText string) (*ChatResult, error) {
	start := time.Now()

	var cfg *genai.GenerateContentConfig
	if systemText != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemText}},
			},
		}
	}

	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(userText), cfg)
	if err != nil {
		return nil, fmt.Errorf("google API error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("google returned no candidates")
	}

	var answer string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				answer += part.Text
			}
		}
	}

	result := &ChatResult{
		Answer:    answer,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if resp.UsageMetadata != nil {
		result.Usage = &schema.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return result, nil
}
