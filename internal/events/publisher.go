// Package events publishes session lifecycle notifications over NATS
// for downstream consumers such as CRM sync workers. The publisher is
// optional; when NATS is not configured the service runs without it.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/momentum-hq/scribe/internal/session"
)

// SubjectSessionState carries session lifecycle snapshots.
const SubjectSessionState = "scribe.session.state"

type natsConn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Publisher emits JSON events onto NATS subjects.
type Publisher struct {
	conn natsConn
}

// Connect dials the NATS server and returns a publisher bound to it.
func Connect(url string) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("scribe"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc}, nil
}

// PublishSessionState emits a session lifecycle snapshot. Publish
// failures are logged and swallowed; the bus is best effort and must
// never fail a webhook or an API call.
func (p *Publisher) PublishSessionState(info session.Info) {
	p.publish(SubjectSessionState, info)
}

func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("marshal event payload failed", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		slog.Warn("publish event failed", "subject", subject, "error", err)
	}
}

func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
