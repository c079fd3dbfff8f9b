package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/momentum-hq/scribe/internal/transcript"
)

// Session tracks one bot's recording lifecycle from creation through a
// terminal state. All mutation goes through methods holding the session
// mutex, so concurrent webhooks for the same bot never interleave
// destructively; sessions for different bots share no mutable state.
type Session struct {
	ID        string
	BotID     string
	MeetingID string
	UserID    string
	CreatedAt time.Time

	// SecretFingerprint is the verification token fingerprint bound at
	// creation, used to attribute webhook deliveries.
	SecretFingerprint string

	mu        sync.Mutex
	state     State
	endedAt   time.Time
	lastEvent time.Time
	seen      map[string]struct{}
	buffer    *transcript.Buffer
}

// Info is a read-only snapshot of a session, safe to serialize.
type Info struct {
	ID        string     `json:"session_id"`
	BotID     string     `json:"bot_id"`
	MeetingID string     `json:"meeting_id"`
	UserID    string     `json:"user_id"`
	State     State      `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// New creates a session in StateCreated for the given bot.
func New(botID, meetingID, userID, webhookSecret string, now time.Time) *Session {
	return &Session{
		ID:                uuid.NewString(),
		BotID:             botID,
		MeetingID:         meetingID,
		UserID:            userID,
		CreatedAt:         now.UTC(),
		SecretFingerprint: Fingerprint(webhookSecret),
		state:             StateCreated,
		lastEvent:         now.UTC(),
		seen:              make(map[string]struct{}),
		buffer:            transcript.NewBuffer(),
	}
}

// Fingerprint derives the stored verification token fingerprint. The
// raw secret is never persisted alongside the session.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot for queries and API responses.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:        s.ID,
		BotID:     s.BotID,
		MeetingID: s.MeetingID,
		UserID:    s.UserID,
		State:     s.state,
		CreatedAt: s.CreatedAt,
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		info.EndedAt = &ended
	}
	return info
}

// Buffer exposes the session's transcript log. Appends must go through
// AppendUtterance so the terminal-state check and the write happen
// under one lock.
func (s *Session) Buffer() *transcript.Buffer {
	return s.buffer
}

// Seen records an idempotency key and reports whether it was already
// present. A true result means the event is a replay and must be
// acknowledged without applying anything.
func (s *Session) Seen(key string) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = struct{}{}
	return false
}

// Forget drops an idempotency key so the provider's redelivery of an
// event that failed to apply is not mistaken for a replay.
func (s *Session) Forget(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	delete(s.seen, key)
	s.mu.Unlock()
}

// AppendUtterance appends one utterance to the transcript, assigning
// its sequence marker. Rejected once the session is terminal.
func (s *Session) AppendUtterance(u transcript.Utterance, now time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return 0, fmt.Errorf("bot %s is %s: %w", s.BotID, s.state, ErrInvalidState)
	}

	seq, err := s.buffer.Append(u)
	if err != nil {
		return 0, fmt.Errorf("bot %s: %w", s.BotID, ErrInvalidState)
	}

	s.lastEvent = now.UTC()
	return seq, nil
}

// Transition moves the session to next. On entering a terminal state
// the transcript is frozen; frozeNow is true only for the transition
// that performed the freeze, so terminal side effects run exactly once.
func (s *Session) Transition(next State, now time.Time) (frozeNow bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CanTransition(next) {
		return false, fmt.Errorf("bot %s: %s -> %s: %w", s.BotID, s.state, next, ErrInvalidState)
	}

	s.state = next
	s.lastEvent = now.UTC()

	if next.Terminal() {
		s.endedAt = now.UTC()
		return s.buffer.Freeze(), nil
	}
	return false, nil
}

// LastEventAt returns the time of the last accepted event.
func (s *Session) LastEventAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvent
}

// ExpireIfIdle moves a non-terminal session to StateError when no event
// has been accepted within timeout. This is the only internally
// triggered transition; it is a passive deadline checked by the caller,
// not a per-session timer. Reports whether the session expired now.
func (s *Session) ExpireIfIdle(timeout time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() || timeout <= 0 {
		return false
	}
	if now.UTC().Sub(s.lastEvent) < timeout {
		return false
	}

	s.state = StateError
	s.endedAt = now.UTC()
	s.buffer.Freeze()
	return true
}
