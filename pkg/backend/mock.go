package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/zen-systems/routegate/pkg/schema"
)

// MockBackend returns deterministic responses for local runs and tests.
type MockBackend struct {
	mu              sync.Mutex
	responses       map[string]string // keyed by model
	defaultResponse string
	usage           *schema.Usage
	err             error
	calls           []MockCall
}

// MockCall records one Chat invocation.
type MockCall struct {
	Model      string
	SystemText string
	UserText   string
}

// NewMockBackend creates a mock backend with a default response.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// SetResponse sets the canned answer returned for a model.
func (b *MockBackend) SetResponse(model, answer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[model] = answer
}

// SetUsage sets the usage counters attached to every answer.
func (b *MockBackend) SetUsage(usage *schema.Usage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage = usage
}

// SetError makes every Chat call fail with err.
func (b *MockBackend) SetError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Calls returns a copy of the recorded Chat invocations.
func (b *MockBackend) Calls() []MockCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	calls := make([]MockCall, len(b.calls))
	copy(calls, b.calls)
	return calls
}

// Name returns the backend identifier.
func (b *MockBackend) Name() string {
	return "mock"
}

// ListModels returns the mock model catalog.
func (b *MockBackend) ListModels(_ context.Context) ([]string, error) {
	return []string{"mock-1"}, nil
}

// Chat returns the canned answer for the model, or a deterministic echo of
// the user text.
func (b *MockBackend) Chat(_ context.Context, model, systemText, userText string) (*ChatResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, MockCall{Model: model, SystemText: systemText, UserText: userText})
	if b.err != nil {
		return nil, b.err
	}

	answer, ok := b.responses[model]
	if !ok {
		answer = fmt.Sprintf("%s\n%s", b.defaultResponse, userText)
	}
	return &ChatResult{Answer: answer, LatencyMS: 1, Usage: b.usage}, nil
}
