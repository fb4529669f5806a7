package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zen-systems/routegate/pkg/config"
)

// scriptedBackend returns one queued error per call until the queue drains,
// then succeeds.
type scriptedBackend struct {
	errs  []error
	calls int
}

func (s *scriptedBackend) Chat(ctx context.Context, model, systemText, userText string) (*ChatResult, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &ChatResult{Answer: "done", LatencyMS: 5}, nil
}

func (s *scriptedBackend) ListModels(ctx context.Context) ([]string, error) {
	return []string{"m"}, nil
}

func (s *scriptedBackend) Name() string { return "scripted" }

func noSleep(r *Retrier) *[]time.Duration {
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func retryCfg() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 3, BaseBackoffMs: 1000, MaxBackoffMs: 8000}
}

func TestRetrierSucceedsFirstTry(t *testing.T) {
	inner := &scriptedBackend{}
	r := NewRetrier(inner, retryCfg())
	slept := noSleep(r)

	result, err := r.Chat(context.Background(), "m", "sys", "user")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if result.Answer != "done" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want no backoff on success", *slept)
	}
}

func TestRetrierRetriesTransient(t *testing.T) {
	inner := &scriptedBackend{errs: []error{
		&Error{Status: 503},
		&Error{Temporary: true, Err: errors.New("reset")},
	}}
	r := NewRetrier(inner, retryCfg())
	slept := noSleep(r)

	result, err := r.Chat(context.Background(), "m", "sys", "user")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if result.Answer != "done" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("backoff[%d] = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	permanent := &Error{Status: 401, Err: errors.New("bad key")}
	inner := &scriptedBackend{errs: []error{permanent}}
	r := NewRetrier(inner, retryCfg())
	noSleep(r)

	_, err := r.Chat(context.Background(), "m", "sys", "user")
	if !errors.Is(err, permanent) {
		t.Fatalf("Chat() error = %v, want the permanent error", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	inner := &scriptedBackend{errs: []error{
		&Error{Status: 500},
		&Error{Status: 500},
		&Error{Status: 500},
		&Error{Status: 500},
	}}
	r := NewRetrier(inner, retryCfg())
	noSleep(r)

	_, err := r.Chat(context.Background(), "m", "sys", "user")
	if err == nil {
		t.Fatal("Chat() succeeded, want exhaustion error")
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetrierHonorsContextDuringBackoff(t *testing.T) {
	inner := &scriptedBackend{errs: []error{&Error{Status: 503}, &Error{Status: 503}}}
	r := NewRetrier(inner, retryCfg())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := r.Chat(context.Background(), "m", "sys", "user")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Chat() error = %v, want canceled", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 when the first backoff is interrupted", inner.calls)
	}
}

func TestNewRetrierDefaults(t *testing.T) {
	r := NewRetrier(&scriptedBackend{}, config.RetryConfig{})
	if r.cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", r.cfg.MaxAttempts)
	}
	if r.cfg.BaseBackoffMs != 1000 {
		t.Errorf("BaseBackoffMs = %d, want 1000", r.cfg.BaseBackoffMs)
	}
	if r.cfg.MaxBackoffMs != 1000 {
		t.Errorf("MaxBackoffMs = %d, want clamped to base", r.cfg.MaxBackoffMs)
	}
}

func TestComputeBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 8 * time.Second},
		{10, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := computeBackoff(1000, 8000, tt.attempt); got != tt.want {
			t.Errorf("computeBackoff(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
