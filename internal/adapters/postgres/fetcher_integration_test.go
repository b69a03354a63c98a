//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const schema = `CREATE TABLE activities (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	title text NOT NULL,
	category text,
	type text,
	time_start timestamptz,
	time_end timestamptz,
	price numeric,
	unit text,
	location jsonb,
	latitude double precision,
	longitude double precision,
	photos text[],
	created_at timestamptz NOT NULL DEFAULT now(),
	user_id uuid
)`

func TestFetcherAgainstPostgres(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("nearby"),
		postgrescontainer.WithUsername("nearby"),
		postgrescontainer.WithPassword("nearby"),
		postgrescontainer.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	pool, err := Connect(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	seed(t, ctx, pool)

	f, err := NewFetcher(pool)
	if err != nil {
		t.Fatalf("fetcher: %v", err)
	}
	rows, err := f.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Title != "newest" || rows[2].Title != "oldest" {
		t.Errorf("expected newest first, got %q ... %q", rows[0].Title, rows[2].Title)
	}
	if loc, err := rows[1].DecodedLocation(); err != nil || loc == nil {
		t.Errorf("expected folded latitude/longitude, got %v %v", loc, err)
	}
}

func seed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	now := time.Now().UTC()
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO activities (title, category, location, price, unit, created_at) VALUES ($1,'Meal','[25.03,121.56]'::jsonb,0,'Free',$2)`, []any{"oldest", now.Add(-2 * time.Hour)}},
		{`INSERT INTO activities (title, category, latitude, longitude, created_at) VALUES ($1,'Ride',24.8,120.9,$2)`, []any{"middle", now.Add(-time.Hour)}},
		{`INSERT INTO activities (title, category, location, created_at) VALUES ($1,'Help','"25.1,121.7"'::jsonb,$2)`, []any{"newest", now}},
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s.sql, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}
