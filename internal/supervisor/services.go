package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultStopTimeout = 10 * time.Second

// HTTPServer is the subset of *http.Server the listener service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server until its context is cancelled.
type HTTPService struct {
	server      HTTPServer
	stopTimeout time.Duration
}

// NewHTTPService wraps server. A non-positive timeout uses the default.
func NewHTTPService(server HTTPServer, stopTimeout time.Duration) *HTTPService {
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &HTTPService{server: server, stopTimeout: stopTimeout}
}

// Serve implements suture.Service.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.stopTimeout)
		defer cancel()
		if err := h.server.Shutdown(sctx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// Lifecycle is a component with an explicit start and stop, such as the
// discovery service.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// LifecycleService adapts a Lifecycle to suture. A failed Start is returned
// so the supervisor retries it with backoff.
type LifecycleService struct {
	name        string
	target      Lifecycle
	stopTimeout time.Duration
}

// NewLifecycleService wraps target under name.
func NewLifecycleService(name string, target Lifecycle, stopTimeout time.Duration) *LifecycleService {
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &LifecycleService{name: name, target: target, stopTimeout: stopTimeout}
}

// Serve implements suture.Service.
func (l *LifecycleService) Serve(ctx context.Context) error {
	if err := l.target.Start(ctx); err != nil {
		return fmt.Errorf("%s start: %w", l.name, err)
	}
	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.stopTimeout)
	defer cancel()
	if err := l.target.Stop(sctx); err != nil {
		return fmt.Errorf("%s stop: %w", l.name, err)
	}
	return ctx.Err()
}

func (l *LifecycleService) String() string { return l.name }
