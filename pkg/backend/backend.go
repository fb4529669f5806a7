// Package backend defines the generation backend contract and the provider
// clients that satisfy it.
package backend

import (
	"context"

	"github.com/zen-systems/routegate/pkg/schema"
)

// Backend is the generation collaborator the engine calls.
type Backend interface {
	// Chat sends a system and user message to the model and returns the
	// answer text, the call latency, and usage counters when the provider
	// reports them.
	Chat(ctx context.Context, model, systemText, userText string) (*ChatResult, error)

	// ListModels returns the backend's model catalog. It serves the
	// health/inventory surface, not the decision path.
	ListModels(ctx context.Context) ([]string, error)

	// Name returns the backend's identifier.
	Name() string
}

// ChatResult is the outcome of one backend call.
type ChatResult struct {
	Answer    string
	LatencyMS int64
	Usage     *schema.Usage
}
