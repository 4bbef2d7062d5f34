package outcome

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKind(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		r    Result[int]
		want string
	}{
		{"ok", OK(1, now), "ok"},
		{"empty", Empty[int](now), "empty"},
		{"auth", Failed[int](fmt.Errorf("open sheet: %w", ErrAuth), now), "auth"},
		{"not found", Failed[int](fmt.Errorf("lookup: %w", ErrNotFound), now), "not_found"},
		{"unavailable", Failed[int](fmt.Errorf("dial: %w", ErrUnavailable), now), "unavailable"},
		{"config", Failed[int](ErrConfig, now), "config"},
		{"other", Failed[int](errors.New("boom"), now), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheable(t *testing.T) {
	now := time.Now()
	if !OK("x", now).Cacheable() {
		t.Error("ok results should be cacheable")
	}
	if !Empty[string](now).Cacheable() {
		t.Error("empty results should be cacheable")
	}
	if Failed[string](errors.New("x"), now).Cacheable() {
		t.Error("failed results should not be cacheable")
	}
}
