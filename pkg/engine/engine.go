// Package engine drives one request end-to-end: decide, execute, validate,
// and escalate at most once before responding.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/routegate/pkg/audit"
	"github.com/zen-systems/routegate/pkg/backend"
	"github.com/zen-systems/routegate/pkg/cache"
	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/gate"
	"github.com/zen-systems/routegate/pkg/route"
	"github.com/zen-systems/routegate/pkg/schema"
)

// ErrInvalidRequest marks a malformed request, rejected before any decision
// is made and with no side effects.
var ErrInvalidRequest = errors.New("invalid request")

// systemPrompt is the fixed system message sent with every backend call. It
// is part of the cache fingerprint, so changing it invalidates the cache.
const systemPrompt = "You are a reliable assistant. Follow instructions carefully. " +
	"If the user asks for structured output, comply strictly."

// cheapFirstTypes are the task types that always start on the cheap tier in
// verify mode, relying on validation to catch failures.
var cheapFirstTypes = map[schema.TaskType]bool{
	schema.TaskSummarization: true,
	schema.TaskExtraction:    true,
	schema.TaskRewrite:       true,
}

// Engine orchestrates routing, execution, validation, and escalation. It is
// built once at process start; the cache is its only mutable state.
type Engine struct {
	policy    *config.Policy
	backends  map[string]backend.Backend
	cache     *cache.Cache
	validator *gate.Validator
	sink      audit.Sink
}

// New creates an engine over the given collaborators.
func New(pol *config.Policy, backends map[string]backend.Backend, c *cache.Cache, sink audit.Sink) *Engine {
	return &Engine{
		policy:    pol,
		backends:  backends,
		cache:     c,
		validator: gate.New(),
		sink:      sink,
	}
}

// callResult is the explicit outcome of one model call, cached or live.
type callResult struct {
	answer    string
	latencyMS int64
	usage     *schema.Usage
	hit       bool
}

// callWithCache resolves one call through the cache. On a hit the call is
// zero-latency; on a miss the backend is called and the answer cached. A
// failed call caches nothing.
func (e *Engine) callWithCache(ctx context.Context, target config.Target, task string) (callResult, error) {
	key := cache.Key(target.Name, systemPrompt, task)
	if v, ok := e.cache.Get(key); ok {
		return callResult{answer: v.Answer, usage: v.Usage, hit: true}, nil
	}

	b, ok := e.backends[target.Backend]
	if !ok {
		return callResult{}, fmt.Errorf("backend %q not configured", target.Backend)
	}

	res, err := b.Chat(ctx, target.Name, systemPrompt, task)
	if err != nil {
		return callResult{}, fmt.Errorf("backend %s call failed: %w", target.Backend, err)
	}

	e.cache.Set(key, cache.Value{Answer: res.Answer, Usage: res.Usage})
	return callResult{answer: res.Answer, latencyMS: res.LatencyMS, usage: res.Usage}, nil
}

// Execute runs one request through the full state machine and returns the
// outbound response. A backend failure after retries is fatal for the
// request: no partial answer is cached or returned.
func (e *Engine) Execute(ctx context.Context, req *schema.RouteRequest) (*schema.RouteResponse, error) {
	if err := req.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	requestID := uuid.NewString()
	start := time.Now()

	decision := route.Decide(req.Task, req.TaskTypeHint, req.Constraints.RiskLevel, e.policy)

	if !req.ShouldExecute() {
		return &schema.RouteResponse{
			RequestID: requestID,
			Decision:  decision,
			LatencyMS: totalMS(start),
		}, nil
	}

	initialTier := decision.Tier
	if req.ExecutionMode == schema.ModeCheapFirstVerify && cheapFirstTypes[decision.TaskType] {
		initialTier = schema.TierCheap
	}
	initialTarget, ok := e.policy.Target(initialTier)
	if !ok {
		return nil, fmt.Errorf("no model configured for tier %s", initialTier)
	}

	first, err := e.callWithCache(ctx, initialTarget, req.Task)
	if err != nil {
		return nil, err
	}

	answer := first.answer
	llmLatencyMS := first.latencyMS
	usage := first.usage
	finalModel := initialTarget.Name
	escalated := false
	escalationReason := ""
	cacheHitEscalation := false

	if req.ExecutionMode == schema.ModeCheapFirstVerify {
		verdict := e.validator.Validate(answer, req.OutputSpec)
		strongTarget, strongOK := e.policy.Target(schema.TierStrong)

		if !verdict.Passed && strongOK && finalModel != strongTarget.Name {
			escalated = true
			escalationReason = verdict.Reason

			second, err := e.callWithCache(ctx, strongTarget, req.Task)
			if err != nil {
				return nil, err
			}
			answer = second.answer
			llmLatencyMS = second.latencyMS
			usage = second.usage
			cacheHitEscalation = second.hit
			finalModel = strongTarget.Name
		}
	}

	total := totalMS(start)

	record := audit.Record{
		RequestID:          requestID,
		Mode:               "execute",
		ExecutionMode:      req.ExecutionMode,
		TaskLenChars:       len(req.Task),
		TaskTypeHint:       req.TaskTypeHint,
		RiskLevel:          req.Constraints.RiskLevel,
		Decision:           decision,
		FinalModelName:     finalModel,
		Escalated:          escalated,
		EscalationReason:   escalationReason,
		CacheHitFirst:      first.hit,
		CacheHitEscalation: cacheHitEscalation,
		LatencyMSLLM:       llmLatencyMS,
		LatencyMSTotal:     total,
		Usage:              usage,
		AnswerLenChars:     len(answer),
		Metadata:           req.Metadata,
	}
	if err := e.sink.Append(record); err != nil {
		log.Printf("[engine] audit append failed: %v", err)
	}

	return &schema.RouteResponse{
		RequestID:        requestID,
		Decision:         decision,
		Answer:           answer,
		LatencyMS:        total,
		Usage:            usage,
		Escalated:        escalated,
		EscalationReason: escalationReason,
		FinalModelName:   finalModel,
	}, nil
}

// totalMS returns elapsed whole milliseconds, never less than 1.
func totalMS(start time.Time) int64 {
	ms := time.Since(start).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
