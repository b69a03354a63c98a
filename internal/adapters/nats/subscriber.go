package natsadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/logger"
	"github.com/okian/nearby/pkg/metrics"
)

// Handler receives one decoded change. A non-nil error requests redelivery.
type Handler = func(ctx context.Context, ev model.ChangeEvent) error

// Subscriber consumes the change stream through a durable consumer.
type Subscriber struct {
	js       nats.JetStreamContext
	settings settings

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewSubscriber ensures the stream exists and returns a subscriber on conn.
func NewSubscriber(conn *nats.Conn, opts ...Option) (*Subscriber, error) {
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
	return &Subscriber{js: js, settings: s}, nil
}

// Start subscribes and dispatches every message to h. Callbacks run
// serially, so stream order is kept apart from redeliveries.
func (s *Subscriber) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return ErrAlreadyStarted
	}
	sub, err := s.js.Subscribe(s.settings.prefix+".>", func(msg *nats.Msg) {
		s.handle(ctx, msg, h)
	},
		nats.BindStream(s.settings.stream),
		nats.Durable(s.settings.durable),
		nats.ManualAck(),
		nats.DeliverNew(),
		nats.MaxDeliver(s.settings.maxDeliver),
		nats.AckWait(s.settings.ackWait),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.settings.prefix, err)
	}
	s.sub = sub
	s.settings.logger.Info(ctx, "change subscriber started",
		logger.String("stream", s.settings.stream),
		logger.String("durable", s.settings.durable))
	return nil
}

func (s *Subscriber) handle(ctx context.Context, msg *nats.Msg, h Handler) {
	ev, err := Decode(msg)
	if err != nil {
		// Redelivery cannot fix a bad payload.
		metrics.RecordChangeIgnored(opFromSubject(msg.Subject), "malformed_payload")
		s.settings.logger.Warn(ctx, "malformed change terminated",
			logger.String("subject", msg.Subject), logger.Error(err))
		_ = msg.Term()
		return
	}
	if err := h(ctx, ev); err != nil {
		s.settings.logger.Warn(ctx, "change handler failed, requesting redelivery",
			logger.String("subject", msg.Subject),
			logger.String("delivery_id", ev.DeliveryID),
			logger.Error(err))
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// Close drains the subscription. Messages already delivered are processed
// first.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return ErrNotStarted
	}
	err := s.sub.Drain()
	s.sub = nil
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

// Decode turns a stream message into a change event. The delivery id is the
// Nats-Msg-Id header when present, else the stream sequence, which stays the
// same across redeliveries.
func Decode(msg *nats.Msg) (model.ChangeEvent, error) {
	var ev model.ChangeEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if op := opFromSubject(msg.Subject); op != "" && op != string(ev.Operation) {
		return model.ChangeEvent{}, fmt.Errorf("%w: subject %s carries %s", ErrMalformedPayload, msg.Subject, ev.Operation)
	}
	if id := msg.Header.Get(nats.MsgIdHdr); id != "" {
		ev.DeliveryID = id
	} else if meta, err := msg.Metadata(); err == nil {
		ev.DeliveryID = "js:" + meta.Stream + ":" + strconv.FormatUint(meta.Sequence.Stream, 10)
	}
	return ev, nil
}

func opFromSubject(subject string) string {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 {
		return ""
	}
	op, err := model.ParseOperation(subject[i+1:])
	if err != nil {
		return ""
	}
	return string(op)
}
