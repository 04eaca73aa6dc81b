// Package events publishes session lifecycle events to NATS so downstream
// consumers (analytics, notifications) can react without coupling to the
// service. Publishing is fire-and-forget; the session flow never waits on
// the broker.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"survey-flow-service/internal/app"
)

const (
	SubjectSessionStarted   = "survey.session.started"
	SubjectSessionCompleted = "survey.session.completed"
)

// Publisher forwards app.SessionEvent values to NATS subjects. A nil
// Publisher is valid and publishes nothing, which is how deployments
// without a broker run.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials the broker and returns a ready Publisher.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("survey-flow-service"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

func (p *Publisher) SessionStarted(_ context.Context, ev app.SessionEvent) {
	p.publish(SubjectSessionStarted, ev)
}

func (p *Publisher) SessionCompleted(_ context.Context, ev app.SessionEvent) {
	p.publish(SubjectSessionCompleted, ev)
}

func (p *Publisher) publish(subject string, ev app.SessionEvent) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("encode event failed", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("publish event failed", "subject", subject, "error", err)
	}
}

// Close flushes pending messages and releases the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("drain failed", "error", err)
	}
}
