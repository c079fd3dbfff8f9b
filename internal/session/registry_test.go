package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	s := newTestSession()

	if err := reg.Register(s); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := reg.Lookup("bot_1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.ID != s.ID {
		t.Fatalf("expected session %s, got %s", s.ID, got.ID)
	}

	if _, err := reg.Lookup("bot_unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Register_ConflictsOnLiveSession(t *testing.T) {
	reg := NewRegistry()
	first := newTestSession()

	if err := reg.Register(first); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register(newTestSession()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Once terminal, a new session for the same bot may replace it.
	if _, err := first.Transition(StateError, time.Now()); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	replacement := newTestSession()
	if err := reg.Register(replacement); err != nil {
		t.Fatalf("expected replacement to succeed, got %v", err)
	}

	got, err := reg.Lookup("bot_1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.ID != replacement.ID {
		t.Fatalf("expected replacement session, got %s", got.ID)
	}
}

func TestRegistry_Remove_OnlyWhenTerminal(t *testing.T) {
	reg := NewRegistry()
	s := newTestSession()
	if err := reg.Register(s); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := reg.Remove("bot_1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState removing live session, got %v", err)
	}

	if _, err := s.Transition(StateError, time.Now()); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if err := reg.Remove("bot_1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := reg.Remove("bot_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestRegistry_ForMeeting(t *testing.T) {
	reg := NewRegistry()

	for i := 0; i < 3; i++ {
		s := New(fmt.Sprintf("bot_%d", i), "meeting_1", "user_1", "secret", time.Now())
		if err := reg.Register(s); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	other := New("bot_other", "meeting_2", "user_1", "secret", time.Now())
	if err := reg.Register(other); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if got := len(reg.ForMeeting("meeting_1")); got != 3 {
		t.Fatalf("expected 3 sessions for meeting_1, got %d", got)
	}
	if got := len(reg.ForMeeting("meeting_2")); got != 1 {
		t.Fatalf("expected 1 session for meeting_2, got %d", got)
	}
	if got := len(reg.ForMeeting("meeting_none")); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := New(fmt.Sprintf("bot_%d", i), "meeting_1", "user_1", "secret", time.Now())
			if err := reg.Register(s); err != nil {
				t.Errorf("Register failed: %v", err)
			}
		}(i)
	}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = reg.Lookup(fmt.Sprintf("bot_%d", i))
			_ = reg.ForMeeting("meeting_1")
		}(i)
	}
	wg.Wait()

	if got := len(reg.All()); got != 32 {
		t.Fatalf("expected 32 registered sessions, got %d", got)
	}
}
