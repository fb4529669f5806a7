package route

import (
	"strings"

	"github.com/zen-systems/routegate/pkg/config"
	"github.com/zen-systems/routegate/pkg/schema"
)

// Classifier reason tags.
const (
	TagHint     = "hint"
	TagFallback = "fallback"
)

// intentRule pairs a task type with the phrases that signal it.
type intentRule struct {
	Type    schema.TaskType
	Phrases []string
}

// intentRules are scanned in order, first phrase hit wins. They are matched
// before the policy's keyword lists because an explicit verb is a stronger
// signal than a topical keyword.
var intentRules = []intentRule{
	{
		Type: schema.TaskReasoning,
		Phrases: []string{
			"should we",
			"what should",
			"decide",
			"recommend",
			"trade-off",
			"pros and cons",
			"is it worth",
			"which option",
			"next step",
			"best next",
		},
	},
	{
		Type: schema.TaskPlanning,
		Phrases: []string{
			"plan",
			"roadmap",
			"steps",
			"how would you",
			"approach",
			"rollout",
			"ship",
			"milestones",
		},
	},
	{
		Type: schema.TaskRewrite,
		Phrases: []string{
			"rewrite",
			"rephrase",
			"clean this",
			"fix this",
			"make this",
			"polish",
			"professional",
		},
	},
	{
		Type: schema.TaskExtraction,
		Phrases: []string{
			"extract",
			"pull out",
			"key info",
			"structure",
			"turn this into",
			"convert to",
			"json",
			"table",
		},
	},
}

// Classify infers a task type from the task text and an optional caller hint.
// It returns the type together with a reason tag describing which path fired:
// "hint", "intent:<phrase>", "keyword:<keyword>", or "fallback". Absence of a
// match is not an error; it is the summarization fallback.
func Classify(task string, hint schema.TaskType, pol *config.Policy) (schema.TaskType, string) {
	if hint != "" {
		return hint, TagHint
	}

	taskLower := strings.ToLower(task)

	for _, rule := range intentRules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(taskLower, phrase) {
				return rule.Type, "intent:" + phrase
			}
		}
	}

	for _, rule := range pol.TaskTypes {
		for _, kw := range rule.Keywords {
			if strings.Contains(taskLower, strings.ToLower(kw)) {
				return rule.Type, "keyword:" + kw
			}
		}
	}

	return schema.TaskSummarization, TagFallback
}
