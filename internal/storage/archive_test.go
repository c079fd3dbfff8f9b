package storage

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/momentum-hq/scribe/internal/session"
)

func TestTranscriptArchiver_ArchiveTranscript(t *testing.T) {
	dir := t.TempDir()
	archiver := NewTranscriptArchiver(dir)

	info := session.Info{
		ID:        "sess_1",
		BotID:     "bot_1",
		MeetingID: "meeting_1",
		State:     session.StateStopped,
		CreatedAt: time.Now().UTC(),
	}
	if err := archiver.ArchiveTranscript(info, "Alice: Hello\nBob: Hi"); err != nil {
		t.Fatalf("ArchiveTranscript failed: %v", err)
	}

	data, err := os.ReadFile(archiver.Path("sess_1"))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "# Meeting meeting_1") {
		t.Fatalf("expected meeting header, got %q", content)
	}
	if !strings.Contains(content, "Alice: Hello\nBob: Hi") {
		t.Fatalf("expected transcript body, got %q", content)
	}
}

func TestTranscriptArchiver_Overwrites(t *testing.T) {
	dir := t.TempDir()
	archiver := NewTranscriptArchiver(dir)

	info := session.Info{ID: "sess_1", BotID: "bot_1", MeetingID: "meeting_1", State: session.StateError}
	if err := archiver.ArchiveTranscript(info, "first draft"); err != nil {
		t.Fatalf("ArchiveTranscript failed: %v", err)
	}
	if err := archiver.ArchiveTranscript(info, "second draft"); err != nil {
		t.Fatalf("re-archive failed: %v", err)
	}

	data, err := os.ReadFile(archiver.Path("sess_1"))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if strings.Contains(string(data), "first draft") {
		t.Fatal("expected overwrite, found stale content")
	}
	if !strings.Contains(string(data), "second draft") {
		t.Fatal("expected latest content")
	}
}
