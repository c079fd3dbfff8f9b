package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/momentum-hq/scribe/internal/session"
)

// TranscriptArchiver writes a finished session's transcript to a
// markdown file next to the database, one file per session. The archive
// is a human-readable export; the database stays the source of truth.
type TranscriptArchiver struct {
	dir string
	mu  sync.Mutex
}

func NewTranscriptArchiver(dir string) *TranscriptArchiver {
	return &TranscriptArchiver{dir: dir}
}

// ArchiveTranscript writes the rendered transcript for an ended
// session. Re-archiving the same session overwrites the previous file.
func (a *TranscriptArchiver) ArchiveTranscript(info session.Info, rendered string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", a.dir, err)
	}

	path := a.Path(info.ID)
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	header := fmt.Sprintf("# Meeting %s\n\nSession %s, bot %s, ended in state %s.\n\n",
		info.MeetingID, info.ID, info.BotID, info.State)
	if _, err := f.WriteString(header + rendered + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// Path returns where a session's archive file lives.
func (a *TranscriptArchiver) Path(sessionID string) string {
	return filepath.Join(a.dir, sessionID+".md")
}
