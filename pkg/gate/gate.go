// Package gate checks a generated answer against the caller's output
// contract. It is advisory: it never fails a request by itself, it returns a
// verdict the engine uses to decide whether to escalate.
package gate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/zen-systems/routegate/pkg/schema"
)

// Reason codes for validation outcomes.
const (
	ReasonOK          = "ok"
	ReasonEmpty       = "empty_answer"
	ReasonUncertainty = "uncertainty_language"
	ReasonInvalidJSON = "invalid_json"
)

// Result is the outcome of one validation.
type Result struct {
	Passed bool
	Reason string
}

// defaultHedgePatterns match answers that hedge instead of answering.
var defaultHedgePatterns = []string{
	`\b(i think|maybe|not sure|cannot confirm|unknown)\b`,
}

// Validator checks answers against an output spec.
type Validator struct {
	hedges []*regexp.Regexp
}

// New creates a validator with the default hedging patterns.
func New() *Validator {
	v, err := NewWithHedgePatterns(defaultHedgePatterns)
	if err != nil {
		// The defaults are compile-time constants; they always compile.
		panic(err)
	}
	return v
}

// NewWithHedgePatterns creates a validator with custom hedging patterns.
// Patterns are matched case-insensitively against the whole answer.
func NewWithHedgePatterns(patterns []string) (*Validator, error) {
	hedges := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("hedge pattern %q: %w", p, err)
		}
		hedges = append(hedges, re)
	}
	return &Validator{hedges: hedges}, nil
}

// Validate checks the answer in order, short-circuiting on the first failure:
// emptiness, word count, hedging language, then JSON shape and required keys
// when the spec asks for JSON.
func (v *Validator) Validate(answer string, spec schema.OutputSpec) Result {
	if strings.TrimSpace(answer) == "" {
		return Result{Reason: ReasonEmpty}
	}

	if spec.MaxWords > 0 {
		words := len(strings.Fields(answer))
		if words > spec.MaxWords {
			return Result{Reason: fmt.Sprintf("too_long:%d>%d", words, spec.MaxWords)}
		}
	}

	lower := strings.ToLower(answer)
	for _, re := range v.hedges {
		if re.MatchString(lower) {
			return Result{Reason: ReasonUncertainty}
		}
	}

	if spec.Format == schema.FormatJSON {
		obj, ok := extractJSONObject(answer)
		if !ok {
			return Result{Reason: ReasonInvalidJSON}
		}
		var missing []string
		for _, key := range spec.RequiredJSONKeys {
			if _, present := obj[key]; !present {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return Result{Reason: fmt.Sprintf("missing_keys:[%s]", strings.Join(missing, ","))}
		}
	}

	return Result{Passed: true, Reason: ReasonOK}
}

// extractJSONObject parses the whole text as a JSON object, falling back to
// the substring between the first '{' and the last '}'. Models often wrap
// JSON in prose or code fences; the fallback recovers the common cases.
func extractJSONObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return obj, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, false
	}
	obj = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
