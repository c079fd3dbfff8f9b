package session

import "context"

// BotProvider provisions and tears down recording bots at the external
// meeting-bot service.
type BotProvider interface {
	CreateBot(ctx context.Context, meetingURL string) (string, error)
	LeaveCall(ctx context.Context, botID string) error
	BotStatus(ctx context.Context, botID string) (string, error)
}

// Store persists session lifecycle records.
type Store interface {
	CreateSession(info Info) error
	UpdateSessionState(info Info) error
}

// Broadcaster pushes lifecycle events to connected UI clients.
type Broadcaster interface {
	BroadcastSessionStarted(info Info)
	BroadcastSessionEnded(info Info)
}

// Publisher emits lifecycle events for downstream consumers.
type Publisher interface {
	PublishSessionState(info Info)
}

// Archiver exports a finished session's rendered transcript.
type Archiver interface {
	ArchiveTranscript(info Info, rendered string) error
}
