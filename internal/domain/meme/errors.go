package meme

import (
	"errors"
	"fmt"
)

// ErrPersistenceUnavailable wraps storage failures during an analysis pass.
// A pass that hits it aborts; the scheduler logs and waits for the next
// cycle rather than working from a torn snapshot.
var ErrPersistenceUnavailable = errors.New("persistence unavailable")

// ErrPassInProgress is returned when a pass is requested while the previous
// one is still running. The caller skips the cycle instead of overlapping.
var ErrPassInProgress = errors.New("analysis pass already in progress")

// InvalidEventError rejects a malformed collector event at ingestion.
// Recoverable: the event is logged and skipped, never fatal to a pass.
type InvalidEventError struct {
	Field  string
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// InvalidConfigError reports a threshold misconfiguration at load time.
// Configuration problems fail fast and are never silently clamped.
type InvalidConfigError struct {
	Key    string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Key, e.Reason)
}
