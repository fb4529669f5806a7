package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/routegate/pkg/schema"
)

// UnknownModel is the sentinel returned when a tier has no model mapping.
// Resolution never fails; an unmapped tier is observable in the decision.
const UnknownModel = "UNKNOWN_MODEL"

// Policy is the routing policy table. It is loaded once at startup and
// treated as read-only afterwards, so it needs no synchronization.
type Policy struct {
	TaskTypes             TaskRules         `yaml:"task_types"`
	Models                map[string]Target `yaml:"models"`
	Heuristics            Heuristics        `yaml:"heuristics"`
	DefaultTier           schema.Tier       `yaml:"default_tier"`
	HardReasoningKeywords []string          `yaml:"hard_reasoning_keywords"`
	Retry                 RetryConfig       `yaml:"retry"`
}

// TaskRule holds the per-task-type routing knobs.
type TaskRule struct {
	Type               schema.TaskType
	DefaultTier        schema.Tier
	Keywords           []string
	EscalateIfKeywords []string
}

// TaskRules is an ordered list of task rules. Order matters: the classifier
// scans keyword lists in policy declaration order, first hit wins.
type TaskRules []TaskRule

// taskRuleBody is the YAML shape of one task_types entry.
type taskRuleBody struct {
	DefaultTier        schema.Tier `yaml:"default_tier"`
	Keywords           []string    `yaml:"keywords"`
	EscalateIfKeywords []string    `yaml:"escalate_if_keywords"`
}

// UnmarshalYAML decodes the task_types mapping while preserving the file's
// declaration order, which plain map decoding would lose.
func (r *TaskRules) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("task_types must be a mapping")
	}
	rules := make(TaskRules, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return err
		}
		taskType, err := schema.ParseTaskType(name)
		if err != nil {
			return fmt.Errorf("task_types: %w", err)
		}
		var body taskRuleBody
		if err := node.Content[i+1].Decode(&body); err != nil {
			return fmt.Errorf("task_types.%s: %w", name, err)
		}
		rules = append(rules, TaskRule{
			Type:               taskType,
			DefaultTier:        body.DefaultTier,
			Keywords:           body.Keywords,
			EscalateIfKeywords: body.EscalateIfKeywords,
		})
	}
	*r = rules
	return nil
}

// MarshalYAML encodes the rules back into a mapping in declaration order.
func (r TaskRules) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, rule := range r {
		var key, value yaml.Node
		if err := key.Encode(string(rule.Type)); err != nil {
			return nil, err
		}
		if err := value.Encode(taskRuleBody{
			DefaultTier:        rule.DefaultTier,
			Keywords:           rule.Keywords,
			EscalateIfKeywords: rule.EscalateIfKeywords,
		}); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &key, &value)
	}
	return node, nil
}

// Target names the backend and model that serve a tier.
type Target struct {
	Backend string `yaml:"backend"`
	Name    string `yaml:"name"`
}

// Heuristics holds the text-shape escalation knobs.
type Heuristics struct {
	LongTextCharsThreshold int `yaml:"long_text_chars_threshold"`
	// LongTextEscalateTo is the tier the long-text rule escalates to. Unset
	// means strong. It is a policy hook: configured to cheap, the rule leaves
	// the tier unchanged.
	LongTextEscalateTo *schema.Tier `yaml:"long_text_escalate_to"`
}

// LongTextTarget returns the tier the long-text rule escalates to.
func (h Heuristics) LongTextTarget() schema.Tier {
	if h.LongTextEscalateTo == nil {
		return schema.TierStrong
	}
	return *h.LongTextEscalateTo
}

// RetryConfig defines backend retry and backoff behavior.
type RetryConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BaseBackoffMs int `yaml:"base_backoff_ms"`
	MaxBackoffMs  int `yaml:"max_backoff_ms"`
}

// LoadPolicy reads the routing policy from a YAML file. A missing or
// malformed file is a fatal boot-time condition for the caller.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	applyPolicyDefaults(&pol)
	if err := pol.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	return &pol, nil
}

// Validate rejects policies that could not serve requests.
func (p *Policy) Validate() error {
	if len(p.TaskTypes) == 0 {
		return fmt.Errorf("task_types must not be empty")
	}
	for tier := range p.Models {
		if _, err := schema.ParseTier(tier); err != nil {
			return fmt.Errorf("models: %w", err)
		}
	}
	if p.Heuristics.LongTextCharsThreshold <= 0 {
		return fmt.Errorf("long_text_chars_threshold must be positive")
	}
	return nil
}

// Rule returns the rule for a task type, if the policy declares one.
func (p *Policy) Rule(taskType schema.TaskType) (TaskRule, bool) {
	for _, rule := range p.TaskTypes {
		if rule.Type == taskType {
			return rule, true
		}
	}
	return TaskRule{}, false
}

// DefaultTierFor returns the configured default tier for a task type, falling
// back to the policy-wide default when the type has no rule.
func (p *Policy) DefaultTierFor(taskType schema.TaskType) schema.Tier {
	if rule, ok := p.Rule(taskType); ok {
		return rule.DefaultTier
	}
	return p.DefaultTier
}

// Target resolves a tier to its backend/model pair.
func (p *Policy) Target(tier schema.Tier) (Target, bool) {
	target, ok := p.Models[tier.String()]
	return target, ok
}

// ModelFor resolves a tier to a model name, or the UnknownModel sentinel.
func (p *Policy) ModelFor(tier schema.Tier) string {
	if target, ok := p.Target(tier); ok && target.Name != "" {
		return target.Name
	}
	return UnknownModel
}

// DefaultPolicy returns the built-in routing policy, used when no policy file
// is configured.
func DefaultPolicy() *Policy {
	pol := &Policy{
		TaskTypes: TaskRules{
			{
				Type:        schema.TaskSummarization,
				DefaultTier: schema.TierCheap,
				Keywords:    []string{"summarize", "summary", "tl;dr", "shorten", "bullets"},
			},
			{
				Type:        schema.TaskExtraction,
				DefaultTier: schema.TierCheap,
				Keywords:    []string{"extract", "json", "fields", "table", "structure"},
			},
			{
				Type:        schema.TaskRewrite,
				DefaultTier: schema.TierCheap,
				Keywords:    []string{"rewrite", "rephrase", "polish", "tone", "grammar"},
			},
			{
				Type:               schema.TaskPlanning,
				DefaultTier:        schema.TierCheap,
				Keywords:           []string{"plan", "checklist", "steps", "roadmap", "milestones"},
				EscalateIfKeywords: []string{"migration", "architecture", "multi-team"},
			},
			{
				Type:        schema.TaskReasoning,
				DefaultTier: schema.TierStrong,
				Keywords:    []string{"decide", "compare", "recommend", "trade-off", "pros and cons"},
			},
		},
		Models: map[string]Target{
			"cheap":  {Backend: "ollama", Name: "llama3.1:8b"},
			"strong": {Backend: "ollama", Name: "qwen2.5:14b"},
		},
		Heuristics: Heuristics{
			LongTextCharsThreshold: 2500,
		},
		DefaultTier: schema.TierCheap,
		HardReasoningKeywords: []string{
			"compare", "trade-off", "recommend", "decide", "why", "pros and cons",
			"strategy", "prioritize", "diagnose", "root cause",
		},
	}
	applyPolicyDefaults(pol)
	return pol
}

func applyPolicyDefaults(pol *Policy) {
	if pol == nil {
		return
	}
	if pol.Heuristics.LongTextCharsThreshold == 0 {
		pol.Heuristics.LongTextCharsThreshold = 2500
	}
	if pol.Retry.MaxAttempts == 0 {
		pol.Retry.MaxAttempts = 3
	}
	if pol.Retry.BaseBackoffMs == 0 {
		pol.Retry.BaseBackoffMs = 1000
	}
	if pol.Retry.MaxBackoffMs == 0 {
		pol.Retry.MaxBackoffMs = 8000
	}
	if pol.Retry.MaxBackoffMs < pol.Retry.BaseBackoffMs {
		pol.Retry.MaxBackoffMs = pol.Retry.BaseBackoffMs
	}
}
