package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type LiveTranscriptEvent struct {
	Event
	BotID   string  `json:"bot_id"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	IsFinal bool    `json:"is_final"`
	Seq     uint64  `json:"seq"`
}

type SessionStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
	BotID     string `json:"bot_id"`
	MeetingID string `json:"meeting_id"`
	State     string `json:"state"`
}

type SessionEndedEvent struct {
	Event
	SessionID string  `json:"session_id"`
	BotID     string  `json:"bot_id"`
	MeetingID string  `json:"meeting_id"`
	State     string  `json:"state"`
	Duration  float64 `json:"duration"`
}

type SummaryReadyEvent struct {
	Event
	SessionID   string `json:"session_id"`
	BotID       string `json:"bot_id"`
	SummaryType string `json:"summary_type"`
	Content     string `json:"content"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
