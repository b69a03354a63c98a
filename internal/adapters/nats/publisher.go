package natsadapter

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/logger"
)

// Publisher writes change events to the stream.
type Publisher struct {
	js       nats.JetStreamContext
	settings settings
}

// NewPublisher ensures the stream exists and returns a publisher on conn.
func NewPublisher(conn *nats.Conn, opts ...Option) (*Publisher, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStream(js, &s); err != nil {
		return nil, err
	}
	return &Publisher{js: js, settings: s}, nil
}

// Subject returns the subject an operation is published on.
func (p *Publisher) Subject(op model.Operation) string {
	return p.settings.prefix + "." + string(op)
}

// Publish sends ev. A non-empty DeliveryID becomes the Nats-Msg-Id so the
// server drops duplicate publishes inside its window.
func (p *Publisher) Publish(ctx context.Context, ev model.ChangeEvent) error {
	_, err := p.Send(ctx, ev)
	return err
}

// Send is Publish that also reports whether the server dropped ev as a
// duplicate of an earlier publish with the same DeliveryID.
func (p *Publisher) Send(ctx context.Context, ev model.ChangeEvent) (bool, error) {
	if _, err := model.ParseOperation(string(ev.Operation)); err != nil {
		return false, err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("encode change: %w", err)
	}
	msg := nats.NewMsg(p.Subject(ev.Operation))
	msg.Data = data
	if ev.DeliveryID != "" {
		msg.Header.Set(nats.MsgIdHdr, ev.DeliveryID)
	}
	ack, err := p.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return false, fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	p.settings.logger.Debug(ctx, "change published",
		logger.String("subject", msg.Subject),
		logger.Uint64("seq", ack.Sequence),
		logger.Bool("duplicate", ack.Duplicate))
	return ack.Duplicate, nil
}
