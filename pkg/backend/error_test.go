package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"net timeout", timeoutErr{}, true},
		{"temporary backend error", &Error{Temporary: true, Err: errors.New("conn refused")}, true},
		{"rate limited", &Error{Status: 429}, true},
		{"server error", &Error{Status: 503}, true},
		{"server error upper bound", &Error{Status: 599}, true},
		{"client error", &Error{Status: 400}, false},
		{"unauthorized", &Error{Status: 401}, false},
		{"not found", &Error{Status: 404}, false},
		{"wrapped backend error", fmt.Errorf("chat: %w", &Error{Status: 500}), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	e := &Error{Status: 503, Err: errors.New("upstream unavailable")}
	if e.Error() != "upstream unavailable" {
		t.Errorf("Error() = %q", e.Error())
	}
	bare := &Error{Status: 502}
	if bare.Error() != "backend error (status=502)" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	e := &Error{Err: inner}
	if !errors.Is(e, inner) {
		t.Error("errors.Is() did not see the wrapped error")
	}
}
