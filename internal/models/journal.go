package models

import (
	"errors"
	"time"
)

// LoadEvent records the outcome of one uncached sheet load.
type LoadEvent struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Cause  string    `json:"cause,omitempty"`
	Rows   int       `json:"rows"`
	At     time.Time `json:"at"`
}

// Validate checks load event field constraints.
func (e *LoadEvent) Validate() error {
	if e.ID == "" {
		return errors.New("load event ID must not be empty")
	}
	switch e.Status {
	case "ok", "empty", "failed":
	default:
		return errors.New("load event status must be one of ok, empty, failed")
	}
	if e.Rows < 0 {
		return errors.New("load event rows must not be negative")
	}
	if e.Status == "failed" && e.Cause == "" {
		return errors.New("failed load event must carry a cause")
	}
	if e.At.IsZero() {
		return errors.New("load event time must be set")
	}
	return nil
}

// Digest records a notification sent for one detection date.
type Digest struct {
	ID         string    `json:"id"`
	DetectedOn string    `json:"detected_on"`
	Count      int       `json:"count"`
	Names      []string  `json:"names"`
	SentAt     time.Time `json:"sent_at"`
}

// Validate checks digest field constraints.
func (d *Digest) Validate() error {
	if d.ID == "" {
		return errors.New("digest ID must not be empty")
	}
	if d.DetectedOn == "" {
		return errors.New("digest detection date must not be empty")
	}
	if d.Count < 1 {
		return errors.New("digest count must be at least 1")
	}
	if d.SentAt.After(time.Now().Add(time.Minute)) {
		return errors.New("digest sent at must not be in the future")
	}
	return nil
}
