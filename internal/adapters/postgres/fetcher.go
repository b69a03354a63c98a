// Package postgres bulk-fetches activity rows from Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/logger"
	"github.com/okian/nearby/pkg/metrics"
)

const defaultTable = "activities"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`) //nolint:gochecknoglobals // compiled once

// Querier is the subset of pgxpool.Pool used by Fetcher.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Fetcher reads every activity row, newest first.
type Fetcher struct {
	db     Querier
	table  string
	limit  int
	logger logger.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTable sets the source table.
func WithTable(name string) Option {
	return func(f *Fetcher) {
		if name != "" {
			f.table = name
		}
	}
}

// WithLimit caps the number of rows fetched. Zero means no cap.
func WithLimit(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.limit = n
		}
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher validates the options and returns a Fetcher.
func NewFetcher(db Querier, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		db:     db,
		table:  defaultTable,
		logger: logger.Get().Named("postgres"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if !identifier.MatchString(f.table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, f.table)
	}
	return f, nil
}

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Query returns the SQL used by FetchAll. Each row is serialized to JSON
// so columns of any type (jsonb, text, numeric) decode uniformly.
func (f *Fetcher) Query() string {
	q := fmt.Sprintf(
		"SELECT row_to_json(a)::text FROM %s AS a ORDER BY a.created_at DESC",
		pgx.Identifier{f.table}.Sanitize())
	if f.limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.limit)
	}
	return q
}

// FetchAll returns every decodable row. Rows that fail to decode are
// skipped and logged; query and transport errors abort the fetch.
func (f *Fetcher) FetchAll(ctx context.Context) ([]model.RawActivity, error) {
	rows, err := f.db.Query(ctx, f.Query())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer rows.Close()

	out := make([]model.RawActivity, 0, 256)
	skipped := 0
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrFetch, err)
		}
		r, err := DecodeRow([]byte(body))
		if err != nil {
			skipped++
			metrics.RecordRecordSkipped()
			f.logger.Warn(ctx, "undecodable activity row skipped", logger.Error(err))
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	f.logger.Info(ctx, "bulk fetch complete",
		logger.String("table", f.table),
		logger.Int("rows", len(out)),
		logger.Int("skipped", skipped))
	return out, nil
}

// DecodeRow decodes one row_to_json document.
func DecodeRow(body []byte) (model.RawActivity, error) {
	var r model.RawActivity
	if err := json.Unmarshal(body, &r); err != nil {
		return model.RawActivity{}, fmt.Errorf("decode activity row: %w", err)
	}
	return r, nil
}
