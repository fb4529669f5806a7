package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/routegate/pkg/schema"
)

const testPolicyYAML = `
task_types:
  reasoning_decision:
    default_tier: strong
    keywords: [decide, compare]
  summarization:
    default_tier: cheap
    keywords: [summarize, "tl;dr"]
  planning_checklist:
    default_tier: cheap
    keywords: [plan, steps]
    escalate_if_keywords: [migration]
models:
  cheap: {backend: ollama, name: "llama3.1:8b"}
  strong: {backend: ollama, name: "qwen2.5:14b"}
heuristics:
  long_text_chars_threshold: 100
  long_text_escalate_to: strong
default_tier: cheap
hard_reasoning_keywords: [compare, decide]
retry:
  max_attempts: 3
  base_backoff_ms: 10
  max_backoff_ms: 40
`

func TestTaskRulesPreserveDeclarationOrder(t *testing.T) {
	var pol Policy
	if err := yaml.Unmarshal([]byte(testPolicyYAML), &pol); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := []schema.TaskType{
		schema.TaskReasoning,
		schema.TaskSummarization,
		schema.TaskPlanning,
	}
	if len(pol.TaskTypes) != len(want) {
		t.Fatalf("got %d task rules, want %d", len(pol.TaskTypes), len(want))
	}
	for i, tt := range want {
		if pol.TaskTypes[i].Type != tt {
			t.Errorf("rule[%d] = %v, want %v", i, pol.TaskTypes[i].Type, tt)
		}
	}
}

func TestTaskRulesRejectUnknownType(t *testing.T) {
	bad := `
task_types:
  poetry:
    default_tier: cheap
`
	var pol Policy
	if err := yaml.Unmarshal([]byte(bad), &pol); err == nil {
		t.Error("Unmarshal() accepted unknown task type")
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(testPolicyYAML), 0644); err != nil {
		t.Fatal(err)
	}

	pol, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}

	if got := pol.ModelFor(schema.TierStrong); got != "qwen2.5:14b" {
		t.Errorf("ModelFor(strong) = %q, want %q", got, "qwen2.5:14b")
	}
	if got := pol.DefaultTierFor(schema.TaskReasoning); got != schema.TierStrong {
		t.Errorf("DefaultTierFor(reasoning) = %v, want strong", got)
	}
	if got := pol.DefaultTierFor(schema.TaskExtraction); got != schema.TierCheap {
		t.Errorf("DefaultTierFor(extraction) = %v, want policy default cheap", got)
	}
	if pol.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", pol.Retry.MaxAttempts)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadPolicy() succeeded for a missing file")
	}
}

func TestLoadPolicyMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("task_types: [not, a, mapping]"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Error("LoadPolicy() accepted malformed policy")
	}
}

func TestModelForUnmappedTier(t *testing.T) {
	pol := &Policy{Models: map[string]Target{}}
	if got := pol.ModelFor(schema.TierStrong); got != UnknownModel {
		t.Errorf("ModelFor(strong) = %q, want sentinel %q", got, UnknownModel)
	}
}

func TestDefaultPolicy(t *testing.T) {
	pol := DefaultPolicy()
	if err := pol.Validate(); err != nil {
		t.Fatalf("DefaultPolicy().Validate() error = %v", err)
	}
	if pol.Heuristics.LongTextTarget() != schema.TierStrong {
		t.Errorf("LongTextTarget() = %v, want strong", pol.Heuristics.LongTextTarget())
	}
	if _, ok := pol.Target(schema.TierCheap); !ok {
		t.Error("default policy has no cheap target")
	}
	if _, ok := pol.Target(schema.TierStrong); !ok {
		t.Error("default policy has no strong target")
	}
	if pol.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", pol.Retry.MaxAttempts)
	}
}

func TestLongTextTargetDefaultsToStrong(t *testing.T) {
	var h Heuristics
	if h.LongTextTarget() != schema.TierStrong {
		t.Error("unset long_text_escalate_to must default to strong")
	}

	cheap := schema.TierCheap
	h.LongTextEscalateTo = &cheap
	if h.LongTextTarget() != schema.TierCheap {
		t.Error("explicit cheap target must be honored")
	}
}
