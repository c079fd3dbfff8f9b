package session

import "errors"

// Error taxonomy for the recording-session core. Every rejection wraps
// one of these sentinels so callers can distinguish "retry later" from
// "permanently invalid" with errors.Is.
var (
	// ErrUnauthorized means a webhook carried a bad verification token.
	// The event is dropped and no session state changes.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means no live session matches the given identifier.
	ErrNotFound = errors.New("session not found")

	// ErrConflict means a bot already has an active session.
	ErrConflict = errors.New("active session already exists")

	// ErrInvalidState means a mutation was attempted on a terminal
	// session or its frozen transcript.
	ErrInvalidState = errors.New("invalid session state")

	// ErrEmptyTranscript means summarize was requested before any
	// finalized utterance arrived.
	ErrEmptyTranscript = errors.New("no finalized transcript to summarize")

	// ErrUpstream means an external collaborator failed after the
	// bounded retry. The session itself is untouched.
	ErrUpstream = errors.New("upstream service failed")
)
