package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager drives operator-facing session operations: provisioning a bot
// and creating its session, stopping it, and querying live sessions.
// Webhook-driven mutation goes through the ingestion pipeline instead.
type Manager struct {
	registry *Registry
	store    Store
	provider BotProvider
	hub      Broadcaster
	bus      Publisher

	webhookSecret string
	archiver      Archiver
}

// SetArchiver enables transcript export on session end.
func (m *Manager) SetArchiver(a Archiver) {
	m.archiver = a
}

// NewManager wires a manager. hub and bus may be nil; store and
// provider must not be.
func NewManager(registry *Registry, store Store, provider BotProvider, hub Broadcaster, bus Publisher, webhookSecret string) *Manager {
	return &Manager{
		registry:      registry,
		store:         store,
		provider:      provider,
		hub:           hub,
		bus:           bus,
		webhookSecret: webhookSecret,
	}
}

// CreateSession provisions a bot for the meeting and registers its
// session. The provider acknowledging the bot is the created -> joining
// transition. A meeting may hold only one live session at a time.
func (m *Manager) CreateSession(ctx context.Context, meetingID, userID, meetingURL string) (Info, error) {
	for _, existing := range m.registry.ForMeeting(meetingID) {
		if !existing.State().Terminal() {
			return Info{}, fmt.Errorf("meeting %s has live bot %s: %w", meetingID, existing.BotID, ErrConflict)
		}
	}

	botID, err := m.provider.CreateBot(ctx, meetingURL)
	if err != nil {
		return Info{}, fmt.Errorf("provision bot for meeting %s: %w: %w", meetingID, ErrUpstream, err)
	}

	now := time.Now()
	sess := New(botID, meetingID, userID, m.webhookSecret, now)

	if err := m.registry.Register(sess); err != nil {
		return Info{}, err
	}

	if err := m.store.CreateSession(sess.Info()); err != nil {
		// Roll back so the bot id is free for a retry.
		_, _ = sess.Transition(StateError, now)
		_ = m.registry.Remove(botID)
		return Info{}, fmt.Errorf("persist session for bot %s: %w", botID, err)
	}

	if _, err := sess.Transition(StateJoining, now); err != nil {
		return Info{}, err
	}

	info := sess.Info()
	if m.hub != nil {
		m.hub.BroadcastSessionStarted(info)
	}
	if m.bus != nil {
		m.bus.PublishSessionState(info)
	}
	return info, nil
}

// StopSession asks the provider to pull the bot out of the call. The
// session enters stopping immediately; it reaches stopped on the
// provider's acknowledgment here or on its confirmation webhook,
// whichever lands first.
func (m *Manager) StopSession(ctx context.Context, botID string) (Info, error) {
	sess, err := m.registry.Lookup(botID)
	if err != nil {
		return Info{}, err
	}

	if _, err := sess.Transition(StateStopping, time.Now()); err != nil {
		return Info{}, err
	}

	if err := m.provider.LeaveCall(ctx, botID); err != nil {
		// Leave the session in stopping: the bot may still exit on its
		// own and confirm over the webhook.
		return sess.Info(), fmt.Errorf("stop bot %s: %w: %w", botID, ErrUpstream, err)
	}

	froze, err := sess.Transition(StateStopped, time.Now())
	if err != nil {
		// A concurrent confirmation webhook won the race; that is fine.
		return sess.Info(), nil
	}

	info := sess.Info()
	if froze {
		if err := m.store.UpdateSessionState(info); err != nil {
			return info, fmt.Errorf("persist stopped session %s: %w", info.ID, err)
		}
		if m.hub != nil {
			m.hub.BroadcastSessionEnded(info)
		}
		if m.bus != nil {
			m.bus.PublishSessionState(info)
		}
		if m.archiver != nil {
			if err := m.archiver.ArchiveTranscript(info, sess.Buffer().Render()); err != nil {
				slog.Warn("archive transcript failed", "session_id", info.ID, "error", err)
			}
		}
	}
	return info, nil
}

// Status pairs a session snapshot with the provider's latest raw
// status code for the bot.
type Status struct {
	Info
	ProviderStatus string `json:"provider_status,omitempty"`
}

// RecordingState reports where a bot's recording stands right now,
// including the provider's own view of the bot when it can be reached.
func (m *Manager) RecordingState(ctx context.Context, botID string) (Status, error) {
	sess, err := m.registry.Lookup(botID)
	if err != nil {
		return Status{}, err
	}

	st := Status{Info: sess.Info()}
	code, err := m.provider.BotStatus(ctx, botID)
	if err != nil {
		slog.Warn("provider status lookup failed", "bot_id", botID, "error", err)
		return st, nil
	}
	st.ProviderStatus = code
	return st, nil
}

// Lookup resolves a bot id to its session snapshot.
func (m *Manager) Lookup(botID string) (Info, error) {
	sess, err := m.registry.Lookup(botID)
	if err != nil {
		return Info{}, err
	}
	return sess.Info(), nil
}

// SessionsForMeeting returns snapshots of every registered session for
// the meeting, live and terminal.
func (m *Manager) SessionsForMeeting(meetingID string) []Info {
	sessions := m.registry.ForMeeting(meetingID)
	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}
