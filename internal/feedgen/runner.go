package feedgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const pollInterval = 100 * time.Millisecond

// Run generates a plan, sends it through sink and verifies the result
// against cfg.BaseURL.
func Run(ctx context.Context, cfg Config, sink Sink) (Stats, error) {
	start := time.Now()
	log := logger.Get().Named("feedgen")
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	client := &http.Client{Timeout: cfg.Timeout}

	if err := waitReady(ctx, client, cfg); err != nil {
		return Stats{}, err
	}

	plan := Generate(cfg, time.Now())
	stats := Stats{Generated: len(plan.Events)}
	log.Info(ctx, "plan generated",
		logger.Int("events", len(plan.Events)),
		logger.Int("ids", len(plan.Final)),
		logger.Int("workers", cfg.Workers))

	sent := submit(ctx, plan, cfg.Workers, newPacer(cfg.Rate, cfg.Workers), sink)
	stats.Accepted, stats.Duplicate, stats.Failed = sent.accepted, sent.duplicate, sent.failed
	if sent.err != nil {
		return stats, sent.err
	}

	stats.Verified, stats.Mismatched = verify(ctx, client, cfg, plan.Final)
	stats.Duration = time.Since(start)
	log.Info(ctx, "run finished",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("verified", stats.Verified),
		logger.Int("mismatched", stats.Mismatched),
		logger.Duration("took", stats.Duration))

	if stats.Failed > 0 || stats.Mismatched > 0 {
		return stats, fmt.Errorf("%w: %d failed, %d mismatched", ErrMismatch, stats.Failed, stats.Mismatched)
	}
	return stats, nil
}

func waitReady(ctx context.Context, client *http.Client, cfg Config) error {
	deadline := time.Now().Add(cfg.Settle)
	for {
		status, err := getStatus(ctx, client, cfg.BaseURL+"/readyz", nil)
		if err == nil && status == http.StatusOK {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("%w: %w", ErrNotReady, err)
			}
			return fmt.Errorf("%w: status %d", ErrNotReady, status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

type sendResult struct {
	accepted, duplicate, failed int
	err                         error
}

// newPacer returns a limiter shared by all lanes, or nil when eventsPerSec
// is not positive.
func newPacer(eventsPerSec float64, burst int) *rate.Limiter {
	if eventsPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(eventsPerSec), burst)
}

// submit sends events on cfg.Workers lanes. Every event for an id goes
// through the same lane so per-id order survives the fan-out.
func submit(ctx context.Context, plan Plan, workers int, pacer *rate.Limiter, sink Sink) sendResult {
	lanes := make([][]model.ChangeEvent, workers)
	laneOf := make(map[model.FlexID]int, len(plan.Final))
	for _, ev := range plan.Events {
		l, ok := laneOf[ev.Row.ID]
		if !ok {
			l = len(laneOf) % workers
			laneOf[ev.Row.ID] = l
		}
		lanes[l] = append(lanes[l], ev)
	}

	var accepted, duplicate, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, lane := range lanes {
		g.Go(func() error {
			for _, ev := range lane {
				if pacer != nil {
					if err := pacer.Wait(gctx); err != nil {
						return err
					}
				}
				dup, err := sink.Send(gctx, ev)
				switch {
				case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
					return err
				case err != nil:
					failed.Add(1)
					logger.Get().Warn(gctx, "change not delivered",
						logger.String("id", string(ev.Row.ID)),
						logger.String("operation", string(ev.Operation)),
						logger.Error(err))
				case dup:
					duplicate.Add(1)
				default:
					accepted.Add(1)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return sendResult{
		accepted:  int(accepted.Load()),
		duplicate: int(duplicate.Load()),
		failed:    int(failed.Load()),
		err:       err,
	}
}

// verify polls each id until it matches or the settle window closes.
func verify(ctx context.Context, client *http.Client, cfg Config, final map[string]Expected) (verified, mismatched int) {
	var ok, bad atomic.Int64
	deadline := time.Now().Add(cfg.Settle)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for id, want := range final {
		g.Go(func() error {
			for {
				if matches(gctx, client, cfg.BaseURL, id, want) {
					ok.Add(1)
					return nil
				}
				if time.Now().After(deadline) || gctx.Err() != nil {
					bad.Add(1)
					logger.Get().Warn(gctx, "activity did not converge",
						logger.String("id", id),
						logger.Bool("wantDeleted", want.Deleted),
						logger.String("wantTitle", want.Title))
					return nil
				}
				select {
				case <-gctx.Done():
				case <-time.After(pollInterval):
				}
			}
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}

func matches(ctx context.Context, client *http.Client, baseURL, id string, want Expected) bool {
	var got struct {
		Title string `json:"title"`
	}
	status, err := getStatus(ctx, client, baseURL+"/activities/"+url.PathEscape(id), &got)
	if err != nil {
		return false
	}
	if want.Deleted {
		return status == http.StatusNotFound
	}
	return status == http.StatusOK && got.Title == want.Title
}

func getStatus(ctx context.Context, client *http.Client, u string, into any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", u, err)
		}
	}
	return resp.StatusCode, nil
}
