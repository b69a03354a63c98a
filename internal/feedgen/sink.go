package feedgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/okian/nearby/internal/domain/model"
)

// Sink delivers one change. It reports whether the receiver recognised the
// delivery as a duplicate. natsadapter.Publisher satisfies Sink.
type Sink interface {
	Send(ctx context.Context, ev model.ChangeEvent) (bool, error)
}

const (
	backpressureRetries = 5
	backpressureDelay   = 50 * time.Millisecond
)

// HTTPSink posts changes to the service webhook.
type HTTPSink struct {
	client  *http.Client
	baseURL string
}

// NewHTTPSink returns a sink posting to baseURL + "/changes".
func NewHTTPSink(baseURL string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// Send implements Sink. A 429 is retried with linear backoff.
func (s *HTTPSink) Send(ctx context.Context, ev model.ChangeEvent) (bool, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("encode change: %w", err)
	}
	for attempt := 0; ; attempt++ {
		status, err := s.post(ctx, body, ev.DeliveryID)
		if err != nil {
			return false, err
		}
		switch status {
		case http.StatusAccepted:
			return false, nil
		case http.StatusOK:
			return true, nil
		case http.StatusTooManyRequests:
			if attempt >= backpressureRetries {
				return false, fmt.Errorf("%w: backpressure after %d attempts", ErrRejected, attempt+1)
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(backpressureDelay * time.Duration(attempt+1)):
			}
		default:
			return false, fmt.Errorf("%w: status %d", ErrRejected, status)
		}
	}
}

func (s *HTTPSink) post(ctx context.Context, body []byte, key string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/changes", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post change: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
