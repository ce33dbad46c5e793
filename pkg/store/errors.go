package store

import "errors"

// Standard error variables shared by all store implementations and the
// engagement engine. Callers classify failures with errors.Is; none of these
// is ever fatal to the process.
var (
	// ErrInvalidArgument marks malformed identifiers or missing required
	// fields. Surfaced immediately, never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks an absent artifact (or other document) where
	// presence is required. Surfaced, never retried.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an optimistic-concurrency write that lost its race
	// repeatedly and exhausted the internal retry budget. Retryable by the
	// caller, never retried silently beyond that budget.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable marks an unreachable store or a timed-out store call.
	// Surfaced as a transient server error; retry is the caller's
	// responsibility, since a blind server-side retry risks duplicate side
	// effects on non-idempotent writes.
	ErrUnavailable = errors.New("store unavailable")
)
