// Package schema defines the request, response, and decision types shared
// across the routing and execution packages.
package schema

import (
	"fmt"
)

// TaskType is the closed set of task categories the router understands.
type TaskType string

const (
	TaskSummarization TaskType = "summarization"
	TaskExtraction    TaskType = "extraction_structuring"
	TaskRewrite       TaskType = "rewrite_formatting"
	TaskPlanning      TaskType = "planning_checklist"
	TaskReasoning     TaskType = "reasoning_decision"
)

// TaskTypes lists every valid task type.
var TaskTypes = []TaskType{
	TaskSummarization,
	TaskExtraction,
	TaskRewrite,
	TaskPlanning,
	TaskReasoning,
}

// ParseTaskType converts a string into a TaskType, rejecting unknown values.
func ParseTaskType(s string) (TaskType, error) {
	for _, tt := range TaskTypes {
		if string(tt) == s {
			return tt, nil
		}
	}
	return "", fmt.Errorf("unknown task type %q", s)
}

// Valid reports whether t is a member of the closed task type set.
func (t TaskType) Valid() bool {
	_, err := ParseTaskType(string(t))
	return err == nil
}

// Tier is a cost/quality class of backend model. Tiers are totally ordered:
// a request's tier may only move upward during one execution.
type Tier int

const (
	TierCheap Tier = iota
	TierStrong
)

// String returns the wire name of the tier.
func (t Tier) String() string {
	switch t {
	case TierCheap:
		return "cheap"
	case TierStrong:
		return "strong"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a string into a Tier, rejecting unknown values.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "cheap":
		return TierCheap, nil
	case "strong":
		return TierStrong, nil
	default:
		return TierCheap, fmt.Errorf("unknown tier %q", s)
	}
}

// MarshalJSON encodes the tier as its wire name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON decodes a tier from its wire name.
func (t *Tier) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML encodes the tier as its wire name.
func (t Tier) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML decodes a tier from its wire name.
func (t *Tier) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RiskLevel grades how costly a wrong answer is for the caller.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ExecutionMode selects how a request is executed after routing.
type ExecutionMode string

const (
	// ModeDirect executes the routed model once, with no validation.
	ModeDirect ExecutionMode = "direct"
	// ModeCheapFirstVerify starts on the cheap tier for low-risk task types,
	// validates the answer, and escalates once on failure.
	ModeCheapFirstVerify ExecutionMode = "cheap_first_verify"
)

// Valid reports whether m is a known execution mode.
func (m ExecutionMode) Valid() bool {
	return m == ModeDirect || m == ModeCheapFirstVerify
}

// OutputFormat names the expected shape of a generated answer.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// Valid reports whether f is a known output format.
func (f OutputFormat) Valid() bool {
	return f == FormatText || f == FormatJSON
}

// OutputSpec is the caller's contract for the generated answer. It drives the
// validator only when the execution mode requests verification.
type OutputSpec struct {
	Format           OutputFormat `json:"output_format" yaml:"output_format"`
	RequiredJSONKeys []string     `json:"required_json_keys,omitempty" yaml:"required_json_keys,omitempty"`
	// MaxWords bounds the whitespace-split word count. Zero means no bound.
	MaxWords int `json:"max_words,omitempty" yaml:"max_words,omitempty"`
}

// Constraints carries caller risk and advisory cost/latency hints. The hints
// are logged but not enforced.
type Constraints struct {
	MaxCostUSD   float64   `json:"max_cost,omitempty" yaml:"max_cost,omitempty"`
	MaxLatencyMS int       `json:"max_latency_ms,omitempty" yaml:"max_latency_ms,omitempty"`
	RiskLevel    RiskLevel `json:"risk_level" yaml:"risk_level"`
}

// RouteRequest is one inbound routing request.
type RouteRequest struct {
	Task          string         `json:"task"`
	TaskTypeHint  TaskType       `json:"task_type_hint,omitempty"`
	Constraints   Constraints    `json:"constraints"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Execute       *bool          `json:"execute,omitempty"`
	ExecutionMode ExecutionMode  `json:"execution_mode,omitempty"`
	OutputSpec    OutputSpec     `json:"output_spec"`
}

// ShouldExecute reports whether the caller wants the backend called.
// The execute flag defaults to true when absent.
func (r *RouteRequest) ShouldExecute() bool {
	return r.Execute == nil || *r.Execute
}

// Normalize fills defaulted fields and validates the rest. It must be called
// before the request reaches the decision path; a returned error means the
// request is malformed and must be rejected with no side effects.
func (r *RouteRequest) Normalize() error {
	if r.Task == "" {
		return fmt.Errorf("task is required")
	}
	if r.TaskTypeHint != "" && !r.TaskTypeHint.Valid() {
		return fmt.Errorf("unknown task_type_hint %q", r.TaskTypeHint)
	}
	if r.Constraints.RiskLevel == "" {
		r.Constraints.RiskLevel = RiskLow
	}
	if !r.Constraints.RiskLevel.Valid() {
		return fmt.Errorf("unknown risk_level %q", r.Constraints.RiskLevel)
	}
	if r.ExecutionMode == "" {
		r.ExecutionMode = ModeDirect
	}
	if !r.ExecutionMode.Valid() {
		return fmt.Errorf("unknown execution_mode %q", r.ExecutionMode)
	}
	if r.OutputSpec.Format == "" {
		r.OutputSpec.Format = FormatText
	}
	if !r.OutputSpec.Format.Valid() {
		return fmt.Errorf("unknown output_format %q", r.OutputSpec.Format)
	}
	if r.OutputSpec.MaxWords < 0 {
		return fmt.Errorf("max_words must not be negative")
	}
	return nil
}

// RouteDecision is the immutable outcome of the escalation cascade for one
// request.
type RouteDecision struct {
	Tier          Tier     `json:"chosen_tier"`
	ModelName     string   `json:"chosen_model_name"`
	TaskType      TaskType `json:"task_type"`
	ReasonCodes   []string `json:"reason_codes"`
	RoutingReason string   `json:"routing_reason"`
}

// Usage carries token counts reported by a backend. Backends that do not
// report usage leave the whole struct nil.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// RouteResponse is the outbound payload for one request.
type RouteResponse struct {
	RequestID        string        `json:"request_id"`
	Decision         RouteDecision `json:"decision"`
	Answer           string        `json:"answer,omitempty"`
	LatencyMS        int64         `json:"latency_ms"`
	Usage            *Usage        `json:"usage,omitempty"`
	Escalated        bool          `json:"escalated"`
	EscalationReason string        `json:"escalation_reason,omitempty"`
	FinalModelName   string        `json:"final_model_name,omitempty"`
}
