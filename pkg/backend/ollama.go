package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaBackend talks to a local Ollama server over its native HTTP API.
type OllamaBackend struct {
	baseURL    string
	httpClient *http.Client
}

// ollamaChatRequest is the /api/chat request body.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// ollamaMessage is a single chat message.
type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse is the non-streaming /api/chat response body.
type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ollamaTagsResponse is the /api/tags response body.
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaOption configures an OllamaBackend.
type OllamaOption func(*OllamaBackend)

// WithOllamaTimeout sets the HTTP client timeout.
func WithOllamaTimeout(timeout time.Duration) OllamaOption {
	return func(b *OllamaBackend) {
		b.httpClient.Timeout = timeout
	}
}

// NewOllamaBackend creates a backend for the Ollama server at baseURL.
// An empty baseURL targets the default local endpoint.
func NewOllamaBackend(baseURL string, opts ...OllamaOption) *OllamaBackend {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	b := &OllamaBackend{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *OllamaBackend) Name() string {
	return "ollama"
}

// Chat sends a chat request to Ollama and returns the answer with its
// latency. Ollama does not report token usage on this path, so Usage is nil.
func (b *OllamaBackend) Chat(ctx context.Context, model, systemText, userText string) (*ChatResult, error) {
	start := time.Now()

	reqBody := ollamaChatRequest{Model: model, Stream: false}
	if systemText != "" {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "system", Content: systemText})
	}
	reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "user", Content: userText})

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Temporary: true, Err: fmt.Errorf("ollama request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Temporary: true, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &ChatResult{
		Answer:    chatResp.Message.Content,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// ListModels queries the live model catalog from /api/tags.
func (b *OllamaBackend) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Temporary: true, Err: fmt.Errorf("ollama request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return models, nil
}
