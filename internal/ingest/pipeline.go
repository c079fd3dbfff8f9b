package ingest

import (
	"crypto/hmac"
	"fmt"
	"log/slog"
	"time"

	"github.com/momentum-hq/scribe/internal/session"
	"github.com/momentum-hq/scribe/internal/transcript"
)

// Store persists accepted ingestion results. Failures are surfaced to
// the provider so it redelivers; dedup makes redelivery safe.
type Store interface {
	AppendUtterance(botID string, u transcript.Utterance) error
	UpdateSessionState(info session.Info) error
}

// Broadcaster pushes live events to connected UI clients.
type Broadcaster interface {
	BroadcastLiveTranscript(botID string, u transcript.Utterance)
	BroadcastSessionEnded(info session.Info)
}

// Publisher emits session lifecycle events for downstream consumers.
type Publisher interface {
	PublishSessionState(info session.Info)
}

// Pipeline validates, deduplicates and routes provider webhooks to the
// matching session. Events for different bots proceed in parallel;
// events for one bot serialize on that session's lock.
//
// Delivery is assumed in-order per bot. Out-of-order delivery within a
// session is deduplicated, not reordered; stale status codes are
// dropped with a warning.
type Pipeline struct {
	registry *session.Registry
	secret   string
	store    Store
	hub      Broadcaster
	bus      Publisher

	// inactivityTimeout bounds the silence window before a session is
	// moved to the error state by Sweep. Zero disables expiry.
	inactivityTimeout time.Duration

	archiver session.Archiver
}

// SetArchiver enables transcript export when sessions end.
func (p *Pipeline) SetArchiver(a session.Archiver) {
	p.archiver = a
}

// NewPipeline creates a pipeline routing into registry. hub and bus may
// be nil; store must not be.
func NewPipeline(registry *session.Registry, secret string, store Store, hub Broadcaster, bus Publisher, inactivityTimeout time.Duration) *Pipeline {
	return &Pipeline{
		registry:          registry,
		secret:            secret,
		store:             store,
		hub:               hub,
		bus:               bus,
		inactivityTimeout: inactivityTimeout,
	}
}

// Ingest processes one provider webhook delivery. The returned error
// wraps a taxonomy sentinel; nil means the event was applied or was a
// benign replay.
func (p *Pipeline) Ingest(token string, raw []byte) error {
	if p.secret == "" {
		return fmt.Errorf("webhook secret not configured: %w", session.ErrUnauthorized)
	}
	if !hmac.Equal([]byte(token), []byte(p.secret)) {
		return fmt.Errorf("webhook token mismatch: %w", session.ErrUnauthorized)
	}

	evt, err := DecodeEvent(raw)
	if err != nil {
		return err
	}

	botID := evt.Data.Bot.ID
	if botID == "" {
		return fmt.Errorf("webhook event %s carries no bot id", evt.Kind)
	}

	sess, err := p.registry.Lookup(botID)
	if err != nil {
		slog.Warn("webhook for unknown bot dropped", "bot_id", botID, "kind", evt.Kind)
		return err
	}

	// The fingerprint bound at creation must match the claimed token.
	if !hmac.Equal([]byte(session.Fingerprint(token)), []byte(sess.SecretFingerprint)) {
		return fmt.Errorf("bot %s: token fingerprint mismatch: %w", botID, session.ErrUnauthorized)
	}

	key := evt.IdempotencyKey(raw)
	if sess.Seen(key) {
		return nil
	}

	now := time.Now()
	var applyErr error
	switch evt.Kind {
	case KindTranscriptFinal, KindTranscriptPartial:
		applyErr = p.applyTranscript(sess, evt, now)
	case KindStatusChange:
		applyErr = p.applyStatus(sess, evt.Data.Status, now)
	case KindBotError:
		applyErr = p.applyError(sess, evt.Data.Status, now)
	default:
		// Kinds we did not subscribe to (chat messages etc.) are acked
		// without touching the session.
		return nil
	}

	if applyErr != nil {
		// The event never applied; the key must not swallow its
		// redelivery as a replay.
		sess.Forget(key)
	}
	return applyErr
}

func (p *Pipeline) applyTranscript(sess *session.Session, evt Event, now time.Time) error {
	utterances, err := evt.Utterances()
	if err != nil {
		return err
	}

	for _, u := range utterances {
		seq, err := sess.AppendUtterance(u, now)
		if err != nil {
			return err
		}
		u.Seq = seq

		if p.store != nil {
			if err := p.store.AppendUtterance(sess.BotID, u); err != nil {
				return fmt.Errorf("persist utterance: %w", err)
			}
		}
		if p.hub != nil {
			p.hub.BroadcastLiveTranscript(sess.BotID, u)
		}
	}
	return nil
}

func (p *Pipeline) applyStatus(sess *session.Session, status StatusChange, now time.Time) error {
	target, ok := stateForStatus(status.Code)
	if !ok {
		slog.Warn("unmapped bot status ignored", "bot_id", sess.BotID, "code", status.Code)
		return nil
	}

	if target == session.StateError {
		return p.applyError(sess, status, now)
	}

	current := sess.State()

	// A status at or behind the current state is a provider replay, not
	// an error, even once the session is terminal.
	if stateRank(target) <= stateRank(current) {
		return nil
	}
	if current.Terminal() {
		return fmt.Errorf("bot %s is %s: %w", sess.BotID, current, session.ErrInvalidState)
	}

	// Providers may skip intermediate statuses; walk the machine one
	// legal step at a time until the target is reached.
	for i := 0; i < 4; i++ {
		current = sess.State()
		if current == target || stateRank(target) < stateRank(current) {
			return nil
		}

		next := nextStateToward(current, target)
		froze, err := sess.Transition(next, now)
		if err != nil {
			// A concurrent event advanced the session first; if it got
			// at or past the target, the outcome this status asked for
			// already stands.
			if stateRank(target) <= stateRank(sess.State()) {
				return nil
			}
			return err
		}
		if froze {
			p.finalize(sess)
		}
		if next == target {
			return nil
		}
	}
	return fmt.Errorf("bot %s: no path from %s to %s: %w", sess.BotID, sess.State(), target, session.ErrInvalidState)
}

func (p *Pipeline) applyError(sess *session.Session, status StatusChange, now time.Time) error {
	froze, err := sess.Transition(session.StateError, now)
	if err != nil {
		// Already terminal: the provider repeating or trailing its
		// failure report is a replay, not a conflict.
		if sess.State().Terminal() {
			return nil
		}
		return err
	}

	slog.Warn("bot reported failure", "bot_id", sess.BotID, "code", status.Code, "message", status.Message)
	if froze {
		p.finalize(sess)
	}
	return nil
}

// finalize runs the exactly-once terminal side effects: persist the
// terminal state, tell UI clients, tell the event bus.
func (p *Pipeline) finalize(sess *session.Session) {
	info := sess.Info()

	if p.store != nil {
		if err := p.store.UpdateSessionState(info); err != nil {
			slog.Warn("persist terminal session state failed", "bot_id", info.BotID, "error", err)
		}
	}
	if p.hub != nil {
		p.hub.BroadcastSessionEnded(info)
	}
	if p.bus != nil {
		p.bus.PublishSessionState(info)
	}
	if p.archiver != nil {
		if err := p.archiver.ArchiveTranscript(info, sess.Buffer().Render()); err != nil {
			slog.Warn("archive transcript failed", "session_id", info.ID, "error", err)
		}
	}
}

// Sweep expires sessions whose inactivity deadline has passed. Called
// from a single ticker, never from per-session timers.
func (p *Pipeline) Sweep(now time.Time) int {
	if p.inactivityTimeout <= 0 {
		return 0
	}

	expired := 0
	for _, sess := range p.registry.All() {
		if sess.ExpireIfIdle(p.inactivityTimeout, now) {
			slog.Warn("session expired after inactivity", "bot_id", sess.BotID, "timeout", p.inactivityTimeout)
			p.finalize(sess)
			expired++
		}
	}
	return expired
}

func stateRank(s session.State) int {
	switch s {
	case session.StateCreated:
		return 0
	case session.StateJoining:
		return 1
	case session.StateRecording:
		return 2
	case session.StateStopping:
		return 3
	case session.StateStopped:
		return 4
	default:
		return 5
	}
}

func nextStateToward(current, target session.State) session.State {
	switch current {
	case session.StateCreated:
		return session.StateJoining
	case session.StateJoining:
		return session.StateRecording
	case session.StateRecording:
		if target == session.StateStopped {
			return session.StateStopped
		}
		return session.StateStopping
	default:
		return session.StateStopped
	}
}
