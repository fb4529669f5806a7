package backend

import (
	"context"
	"time"

	"github.com/zen-systems/routegate/pkg/config"
)

// Retrier wraps a backend with bounded retries and capped exponential
// backoff. Only transient transport errors are retried; everything else
// propagates immediately. The caller's context deadline bounds the whole
// sequence, backoff sleeps included.
type Retrier struct {
	inner Backend
	cfg   config.RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier wraps inner with the given retry policy.
func NewRetrier(inner Backend, cfg config.RetryConfig) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoffMs <= 0 {
		cfg.BaseBackoffMs = 1000
	}
	if cfg.MaxBackoffMs < cfg.BaseBackoffMs {
		cfg.MaxBackoffMs = cfg.BaseBackoffMs
	}
	return &Retrier{inner: inner, cfg: cfg, sleep: sleepWithContext}
}

// Name returns the inner backend's identifier.
func (r *Retrier) Name() string {
	return r.inner.Name()
}

// ListModels delegates to the inner backend without retrying.
func (r *Retrier) ListModels(ctx context.Context) ([]string, error) {
	return r.inner.ListModels(ctx)
}

// Chat calls the inner backend, retrying transient failures up to the
// configured attempt bound.
func (r *Retrier) Chat(ctx context.Context, model, systemText, userText string) (*ChatResult, error) {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		result, err := r.inner.Chat(ctx, model, systemText, userText)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == r.cfg.MaxAttempts-1 {
			return nil, err
		}
		backoff := computeBackoff(r.cfg.BaseBackoffMs, r.cfg.MaxBackoffMs, attempt)
		if err := r.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	backoff := time.Duration(baseMs) * time.Millisecond
	limit := time.Duration(maxMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	if backoff > limit {
		return limit
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
