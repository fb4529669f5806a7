// Package route turns one task into a tier and model choice via an ordered
// escalation cascade. Every rule may raise the tier, never lower it, and
// records a reason code when it fires.
package route

import (
	"fmt"
	"strings"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
)

// Reason codes carried in a RouteDecision.
const (
	ReasonTaskTypeDefault = "RULE_TASK_TYPE_DEFAULT"
	ReasonIntentMatch     = "RULE_INTENT_MATCH"
	ReasonKeywordMatch    = "RULE_KEYWORD_MATCH"
	ReasonFallbackDefault = "FALLBACK_DEFAULT"
	ReasonLongText        = "HEURISTIC_LONG_TEXT"
	ReasonRiskHigh        = "RULE_RISK_HIGH"
)

// Decide runs the classifier and the escalation cascade for one request and
// returns the immutable routing decision. It never fails: unknown lookups
// resolve to defaults, and an unmapped tier resolves to the UNKNOWN_MODEL
// sentinel.
func Decide(task string, hint schema.TaskType, risk schema.RiskLevel, pol *config.Policy) schema.RouteDecision {
	var reasonCodes []string
	var trace []string

	taskType, tag := Classify(task, hint, pol)
	switch {
	case tag == TagHint:
		reasonCodes = append(reasonCodes, ReasonTaskTypeDefault)
		trace = append(trace, fmt.Sprintf("Used task_type_hint=%s", taskType))
	case strings.HasPrefix(tag, "intent:"):
		reasonCodes = append(reasonCodes, ReasonIntentMatch)
		trace = append(trace, fmt.Sprintf("Inferred task_type=%s (%s)", taskType, tag))
	case strings.HasPrefix(tag, "keyword:"):
		reasonCodes = append(reasonCodes, ReasonKeywordMatch)
		trace = append(trace, fmt.Sprintf("Inferred task_type=%s (%s)", taskType, tag))
	default:
		reasonCodes = append(reasonCodes, ReasonFallbackDefault)
		trace = append(trace, fmt.Sprintf("Inferred task_type=%s (%s)", taskType, tag))
	}

	tier := pol.DefaultTierFor(taskType)

	// Hard-reasoning keywords escalate regardless of task type. A rule that
	// fires when the tier is already strong is a no-op and records nothing.
	if tier != schema.TierStrong && containsAny(task, pol.HardReasoningKeywords) {
		tier = schema.TierStrong
		reasonCodes = append(reasonCodes, ReasonKeywordMatch)
		trace = append(trace, "Escalated due to hard reasoning keywords")
	}

	if rule, ok := pol.Rule(taskType); ok && len(rule.EscalateIfKeywords) > 0 {
		if tier != schema.TierStrong && containsAny(task, rule.EscalateIfKeywords) {
			tier = schema.TierStrong
			reasonCodes = append(reasonCodes, ReasonKeywordMatch)
			trace = append(trace, "Escalated due to task type escalation keywords")
		}
	}

	threshold := pol.Heuristics.LongTextCharsThreshold
	if tier != schema.TierStrong && len(task) >= threshold {
		target := pol.Heuristics.LongTextTarget()
		if target > tier {
			tier = target
		}
		reasonCodes = append(reasonCodes, ReasonLongText)
		trace = append(trace, fmt.Sprintf("Escalated due to long_text_chars>=%d", threshold))
	}

	if tier != schema.TierStrong && risk == schema.RiskHigh {
		tier = schema.TierStrong
		reasonCodes = append(reasonCodes, ReasonRiskHigh)
		trace = append(trace, "Escalated due to risk_level=high")
	}

	return schema.RouteDecision{
		Tier:          tier,
		ModelName:     pol.ModelFor(tier),
		TaskType:      taskType,
		ReasonCodes:   reasonCodes,
		RoutingReason: strings.Join(trace, " | "),
	}
}

func containsAny(text string, keywords []string) bool {
	textLower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(textLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
