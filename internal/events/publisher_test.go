package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/momentum-hq/scribe/internal/session"
)

type connMock struct {
	subjects []string
	payloads [][]byte
	err      error
	closed   bool
}

func (c *connMock) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *connMock) Close() {
	c.closed = true
}

func TestPublisher_PublishSessionState(t *testing.T) {
	conn := &connMock{}
	p := &Publisher{conn: conn}

	ended := time.Now().UTC()
	p.PublishSessionState(session.Info{
		ID:        "sess_1",
		BotID:     "bot_1",
		MeetingID: "meeting_1",
		State:     session.StateStopped,
		CreatedAt: ended.Add(-time.Hour),
		EndedAt:   &ended,
	})

	if len(conn.subjects) != 1 || conn.subjects[0] != SubjectSessionState {
		t.Fatalf("unexpected subjects %v", conn.subjects)
	}

	var got session.Info
	if err := json.Unmarshal(conn.payloads[0], &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.ID != "sess_1" || got.State != session.StateStopped || got.EndedAt == nil {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestPublisher_PublishFailureIsSwallowed(t *testing.T) {
	p := &Publisher{conn: &connMock{err: errors.New("nats down")}}

	// Must not panic or block.
	p.PublishSessionState(session.Info{ID: "sess_1"})
}

func TestPublisher_Close(t *testing.T) {
	conn := &connMock{}
	p := &Publisher{conn: conn}
	p.Close()
	if !conn.closed {
		t.Fatal("expected connection closed")
	}

	var nilPub *Publisher
	nilPub.Close()
}
