package natsadapter

import (
	"time"

	"github.com/okian/nearby/pkg/logger"
)

// Defaults for the change stream.
const (
	DefaultStream        = "ACTIVITIES"
	DefaultSubjectPrefix = "activities.changes"
	DefaultDurable       = "nearby-applier"
	DefaultMaxDeliver    = 5
	DefaultAckWait       = 30 * time.Second
	DefaultMaxAge        = 72 * time.Hour
	DefaultDuplicates    = 2 * time.Minute
)

type settings struct {
	stream     string
	prefix     string
	durable    string
	maxDeliver int
	ackWait    time.Duration
	maxAge     time.Duration
	duplicates time.Duration
	logger     logger.Logger
}

func defaultSettings() settings {
	return settings{
		stream:     DefaultStream,
		prefix:     DefaultSubjectPrefix,
		durable:    DefaultDurable,
		maxDeliver: DefaultMaxDeliver,
		ackWait:    DefaultAckWait,
		maxAge:     DefaultMaxAge,
		duplicates: DefaultDuplicates,
		logger:     logger.Get().Named("changefeed"),
	}
}

// Option configures publishers and subscribers.
type Option func(*settings)

// WithStream sets the JetStream stream name.
func WithStream(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.stream = name
		}
	}
}

// WithSubjectPrefix sets the subject prefix; events go to <prefix>.<op>.
func WithSubjectPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithDurable sets the durable consumer name.
func WithDurable(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.durable = name
		}
	}
}

// WithMaxDeliver bounds redeliveries of one message.
func WithMaxDeliver(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxDeliver = n
		}
	}
}

// WithAckWait sets how long the server waits for an ack before redelivering.
func WithAckWait(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.ackWait = d
		}
	}
}

// WithMaxAge sets the stream retention.
func WithMaxAge(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
