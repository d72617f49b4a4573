// Package testutil starts a Postgres testcontainer with the jobs schema
// applied. Use NewTestClient(t) in integration tests that need a real
// database.
package testutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/f3ath/pgjobq"
)

// NewTestClient starts a Postgres testcontainer, runs Initialize, and
// returns a Client bound to the default schema and table. Container and
// pool are cleaned up via t.Cleanup.
func NewTestClient(t *testing.T, opts ...pgjobq.Option) *pgjobq.Client {
	t.Helper()
	pool := NewTestPool(t)

	client, err := pgjobq.New(pool, opts...)
	if err != nil {
		t.Fatalf("pgjobq.New: %v", err)
	}
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return client
}

// NewTestPool starts a Postgres testcontainer and returns a pgxpool
// connected to it, without applying any schema.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgCtr, err := tcpostgres.Run(ctx,
		"postgres:18-alpine",
		tcpostgres.WithDatabase("pgjobq_test"),
		tcpostgres.WithUsername("pgjobq_test"),
		tcpostgres.WithPassword("testpassword"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgCtr.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := pgCtr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
