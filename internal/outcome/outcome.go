// Package outcome carries the result of a remote fetch so callers can tell
// "no data" apart from "failed because of X".
package outcome

import (
	"errors"
	"time"
)

// Status classifies a fetch.
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sentinel causes wrapped by Failed results.
var (
	ErrAuth        = errors.New("authentication failed")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("source unavailable")
	ErrConfig      = errors.New("not configured")
)

// Result is the value of one fetch together with how it went.
type Result[T any] struct {
	Value     T
	Status    Status
	Err       error
	FetchedAt time.Time
}

func OK[T any](v T, at time.Time) Result[T] {
	return Result[T]{Value: v, Status: StatusOK, FetchedAt: at}
}

func Empty[T any](at time.Time) Result[T] {
	return Result[T]{Status: StatusEmpty, FetchedAt: at}
}

func Failed[T any](err error, at time.Time) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err, FetchedAt: at}
}

// Ok reports whether the fetch produced a usable value.
func (r Result[T]) Ok() bool {
	return r.Status == StatusOK
}

// Cacheable reports whether the result may be memoized. Failures are retried
// on the next call instead.
func (r Result[T]) Cacheable() bool {
	return r.Status != StatusFailed
}

// Kind names the failure cause for display: "auth", "not_found",
// "unavailable", "config" or "error". Non-failed results return their status.
func (r Result[T]) Kind() string {
	if r.Status != StatusFailed {
		return r.Status.String()
	}
	switch {
	case errors.Is(r.Err, ErrAuth):
		return "auth"
	case errors.Is(r.Err, ErrNotFound):
		return "not_found"
	case errors.Is(r.Err, ErrUnavailable):
		return "unavailable"
	case errors.Is(r.Err, ErrConfig):
		return "config"
	default:
		return "error"
	}
}
