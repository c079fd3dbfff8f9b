package server

import (
	"testing"
	"time"

	"github.com/momentum-hq/scribe/internal/session"
)

func sessionInfoFixture() session.Info {
	return session.Info{
		ID:        "sess_1",
		BotID:     "bot_1",
		MeetingID: "meeting_1",
		State:     session.StateJoining,
		CreatedAt: time.Now().UTC(),
	}
}

func TestNewEvent(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	evt := newEvent("session_started", ts)

	if evt.Type != "session_started" {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Version != EventVersion {
		t.Fatalf("unexpected version %d", evt.Version)
	}
	if _, err := time.Parse(time.RFC3339Nano, evt.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339Nano: %v", err)
	}
}

func TestNewEvent_ZeroTimeDefaultsToNow(t *testing.T) {
	evt := newEvent("connection", time.Time{})
	parsed, err := time.Parse(time.RFC3339Nano, evt.Timestamp)
	if err != nil {
		t.Fatalf("timestamp not RFC3339Nano: %v", err)
	}
	if time.Since(parsed) > time.Minute {
		t.Fatalf("expected a recent timestamp, got %v", parsed)
	}
}
