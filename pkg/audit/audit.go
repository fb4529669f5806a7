// Package audit appends one structured record per completed request to a
// JSON-line log. The sink is best-effort: a write failure never fails the
// request it describes.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zen-systems/routegate/pkg/schema"
)

// Record captures the outcome of one executed request.
type Record struct {
	RequestID          string               `json:"request_id"`
	Timestamp          string               `json:"ts"`
	Mode               string               `json:"mode"`
	ExecutionMode      schema.ExecutionMode `json:"execution_mode,omitempty"`
	TaskLenChars       int                  `json:"task_len_chars"`
	TaskTypeHint       schema.TaskType      `json:"task_type_hint,omitempty"`
	RiskLevel          schema.RiskLevel     `json:"risk_level"`
	Decision           schema.RouteDecision `json:"decision"`
	FinalModelName     string               `json:"final_model_name,omitempty"`
	Escalated          bool                 `json:"escalated"`
	EscalationReason   string               `json:"escalation_reason,omitempty"`
	CacheHitFirst      bool                 `json:"cache_hit_first"`
	CacheHitEscalation bool                 `json:"cache_hit_escalation"`
	LatencyMSLLM       int64                `json:"latency_ms_llm"`
	LatencyMSTotal     int64                `json:"latency_ms_total"`
	Usage              *schema.Usage        `json:"usage,omitempty"`
	AnswerLenChars     int                  `json:"answer_len_chars"`
	Metadata           map[string]any       `json:"metadata,omitempty"`
}

// Sink receives completed-request records.
type Sink interface {
	Append(record Record) error
}

// Writer appends records to a JSON-line file, one object per line.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter creates a writer for the given log path. The parent directory is
// created on first use.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Append writes one record as a JSON line.
func (w *Writer) Append(record Record) error {
	if record.Timestamp == "" {
		record.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create audit log directory: %w", err)
		}
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Memory is an in-memory sink for tests.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// Append stores the record.
func (m *Memory) Append(record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

// Records returns a copy of everything appended so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]Record, len(m.records))
	copy(records, m.records)
	return records
}
