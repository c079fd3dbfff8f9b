package summary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/momentum-hq/scribe/internal/llm"
	"github.com/momentum-hq/scribe/internal/session"
	"github.com/momentum-hq/scribe/internal/transcript"
)

type mockLLMClient struct {
	calls        int
	response     string
	failures     int
	lastMessages []llm.Message
}

func (m *mockLLMClient) Complete(_ context.Context, messages []llm.Message) (string, error) {
	m.calls++
	m.lastMessages = append([]llm.Message(nil), messages...)
	if m.calls <= m.failures {
		return "", errors.New("model unavailable")
	}
	return m.response, nil
}

type artifactStoreMock struct {
	mu      sync.Mutex
	saved   []Artifact
	saveErr error
}

func (s *artifactStoreMock) SaveSummary(a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, a)
	return nil
}

func newTestDispatcher(t *testing.T, client *mockLLMClient) (*Dispatcher, *session.Session, *artifactStoreMock) {
	t.Helper()

	registry := session.NewRegistry()
	sess := session.New("bot_1", "meeting_1", "user_1", "secret", time.Now())
	if err := registry.Register(sess); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	store := &artifactStoreMock{}
	d := NewDispatcher(registry, store, func(provider, model string) (llm.Client, error) {
		if provider != "openai" {
			t.Fatalf("expected provider openai, got %q", provider)
		}
		if model != "gpt-4o-mini" {
			t.Fatalf("expected model gpt-4o-mini, got %q", model)
		}
		return client, nil
	}, "openai/gpt-4o-mini")
	d.sleep = func(time.Duration) {}
	return d, sess, store
}

func appendFinal(t *testing.T, sess *session.Session, speaker, text string) {
	t.Helper()
	u := transcript.Utterance{
		Speaker: speaker,
		Words:   []transcript.Word{{Text: text, Start: 0, End: 0.5}},
		IsFinal: true,
	}
	if _, err := sess.AppendUtterance(u, time.Now()); err != nil {
		t.Fatalf("AppendUtterance failed: %v", err)
	}
}

func TestDispatcher_Summarize(t *testing.T) {
	client := &mockLLMClient{response: "The team said hello."}
	d, sess, store := newTestDispatcher(t, client)

	appendFinal(t, sess, "Alice", "Hello")
	appendFinal(t, sess, "Bob", "team")

	artifact, err := d.Summarize(context.Background(), "bot_1", "general_summary")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if artifact.Content != "The team said hello." {
		t.Fatalf("unexpected content %q", artifact.Content)
	}
	if artifact.SessionID != sess.ID || artifact.SummaryType != "general_summary" {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected 1 stored artifact, got %d", len(store.saved))
	}

	if len(client.lastMessages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(client.lastMessages))
	}
	user := client.lastMessages[1].Content
	if !strings.Contains(user, "Alice: Hello") || !strings.Contains(user, "Bob: team") {
		t.Fatalf("expected transcript in prompt, got %q", user)
	}
	if !strings.Contains(user, "Can you summarize the meeting?") {
		t.Fatalf("expected profile question in prompt, got %q", user)
	}
}

func TestDispatcher_Summarize_DefaultsProfile(t *testing.T) {
	client := &mockLLMClient{response: "ok"}
	d, sess, _ := newTestDispatcher(t, client)
	appendFinal(t, sess, "Alice", "Hello")

	artifact, err := d.Summarize(context.Background(), "bot_1", "")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if artifact.SummaryType != DefaultProfile {
		t.Fatalf("expected default profile, got %q", artifact.SummaryType)
	}
}

func TestDispatcher_Summarize_EmptyTranscript(t *testing.T) {
	client := &mockLLMClient{response: "should not be called"}
	d, sess, _ := newTestDispatcher(t, client)

	// A partial does not count as summarizable content.
	u := transcript.Utterance{
		Speaker: "Alice",
		Words:   []transcript.Word{{Text: "Hel", Start: 0, End: 0.2}},
		IsFinal: false,
	}
	if _, err := sess.AppendUtterance(u, time.Now()); err != nil {
		t.Fatalf("AppendUtterance failed: %v", err)
	}

	_, err := d.Summarize(context.Background(), "bot_1", "general_summary")
	if !errors.Is(err, session.ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no llm calls, got %d", client.calls)
	}
}

func TestDispatcher_Summarize_UnknownBot(t *testing.T) {
	d, _, _ := newTestDispatcher(t, &mockLLMClient{})
	if _, err := d.Summarize(context.Background(), "bot_ghost", "general_summary"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatcher_Summarize_UnknownType(t *testing.T) {
	client := &mockLLMClient{response: "ok"}
	d, sess, _ := newTestDispatcher(t, client)
	appendFinal(t, sess, "Alice", "Hello")

	_, err := d.Summarize(context.Background(), "bot_1", "haiku")
	if err == nil || !strings.Contains(err.Error(), "unknown summary type") {
		t.Fatalf("expected unknown summary type error, got %v", err)
	}
}

func TestDispatcher_Summarize_RetriesOnceThenSucceeds(t *testing.T) {
	client := &mockLLMClient{response: "recovered", failures: 1}
	d, sess, _ := newTestDispatcher(t, client)
	appendFinal(t, sess, "Alice", "Hello")

	artifact, err := d.Summarize(context.Background(), "bot_1", "action_items")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if artifact.Content != "recovered" {
		t.Fatalf("unexpected content %q", artifact.Content)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 llm calls, got %d", client.calls)
	}
}

func TestDispatcher_Summarize_UpstreamAfterRetry(t *testing.T) {
	client := &mockLLMClient{failures: 2}
	d, sess, store := newTestDispatcher(t, client)
	appendFinal(t, sess, "Alice", "Hello")

	_, err := d.Summarize(context.Background(), "bot_1", "general_summary")
	if !errors.Is(err, session.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", client.calls)
	}
	if len(store.saved) != 0 {
		t.Fatal("expected no artifact stored on failure")
	}
	// The session itself is untouched by upstream failures.
	if sess.State() != session.StateCreated {
		t.Fatalf("expected session state unchanged, got %s", sess.State())
	}
}

func TestDispatcher_Summarize_MultipleTypesForOneSession(t *testing.T) {
	client := &mockLLMClient{response: "content"}
	d, sess, store := newTestDispatcher(t, client)
	appendFinal(t, sess, "Alice", "Hello")

	if _, err := sess.Transition(session.StateError, time.Now()); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	// Summaries remain available on a terminal session, once per type.
	for _, typ := range []string{"general_summary", "decisions", "key_takeaways"} {
		if _, err := d.Summarize(context.Background(), "bot_1", typ); err != nil {
			t.Fatalf("Summarize(%s) failed: %v", typ, err)
		}
	}
	if len(store.saved) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(store.saved))
	}
}

func TestProfiles_Sorted(t *testing.T) {
	got := Profiles()
	want := []string{"action_items", "decisions", "general_summary", "key_takeaways", "next_steps"}
	if len(got) != len(want) {
		t.Fatalf("expected %d profiles, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected profile %q at %d, got %q", want[i], i, got[i])
		}
	}
}
