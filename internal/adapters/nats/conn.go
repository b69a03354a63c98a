// Package natsadapter carries activity change events over NATS JetStream.
package natsadapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials NATS and keeps reconnecting in the background.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// EnsureStream creates the change stream or updates it in place.
func EnsureStream(js nats.JetStreamContext, opts ...Option) error {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return ensureStream(js, &s)
}

func ensureStream(js nats.JetStreamContext, s *settings) error {
	cfg := nats.StreamConfig{
		Name:       s.stream,
		Subjects:   []string{s.prefix + ".>"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		MaxAge:     s.maxAge,
		Duplicates: s.duplicates,
	}
	if _, err := js.StreamInfo(s.stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("stream info %s: %w", s.stream, err)
		}
		if _, err := js.AddStream(&cfg); err != nil {
			return fmt.Errorf("add stream %s: %w", s.stream, err)
		}
		return nil
	}
	if _, err := js.UpdateStream(&cfg); err != nil {
		return fmt.Errorf("update stream %s: %w", s.stream, err)
	}
	return nil
}
