// Package supervisor runs the long-lived parts of the process under a
// suture tree so a failed bootstrap or a crashed listener is restarted
// with backoff instead of taking the process down.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/okian/nearby/pkg/metrics"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig tunes restart behaviour for every supervisor in the tree.
type TreeConfig struct {
	// FailureThreshold is the decayed failure count that triggers backoff.
	FailureThreshold float64
	// FailureDecay is the half-life of the failure count in seconds.
	FailureDecay float64
	// FailureBackoff is how long a supervisor pauses once over threshold.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long a service may take to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns the restart policy used by cmd.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor plus one child per layer.
type Tree struct {
	root *suture.Supervisor
	data *suture.Supervisor
	api  *suture.Supervisor
}

// NewTree builds the tree. Zero fields in cfg fall back to defaults.
func NewTree(log *slog.Logger, cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay <= 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	spec := suture.Spec{
		EventHook:        countEvents((&sutureslog.Handler{Logger: log}).MustHook()),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}

	root := suture.New("nearby", spec)
	data := suture.New("data-layer", spec)
	api := suture.New("api-layer", spec)
	root.Add(data)
	root.Add(api)

	return &Tree{root: root, data: data, api: api}
}

// countEvents records each event in metrics before handing it to next.
func countEvents(next suture.EventHook) suture.EventHook {
	return func(e suture.Event) {
		switch ev := e.(type) {
		case suture.EventServiceTerminate:
			metrics.RecordSupervisorEvent(ev.ServiceName, "terminate")
		case suture.EventServicePanic:
			metrics.RecordSupervisorEvent(ev.ServiceName, "panic")
		case suture.EventStopTimeout:
			metrics.RecordSupervisorEvent(ev.ServiceName, "stop_timeout")
		case suture.EventBackoff:
			metrics.RecordSupervisorEvent(ev.SupervisorName, "backoff")
		case suture.EventResume:
			metrics.RecordSupervisorEvent(ev.SupervisorName, "resume")
		}
		next(e)
	}
}

// AddDataService supervises a service that owns activity state.
func (t *Tree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.data.Add(svc)
}

// AddAPIService supervises a network listener.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is cancelled or the tree terminates.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
