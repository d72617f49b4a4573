package pgjobq_test

import (
	"context"
	"testing"

	"github.com/f3ath/pgjobq"
	"github.com/f3ath/pgjobq/internal/testutil"
	"github.com/f3ath/pgjobq/migrations"
)

func TestInitializeIsIdempotent(t *testing.T) {
	t.Parallel()
	c := testutil.NewTestClient(t) // NewTestClient already ran Initialize once
	ctx := context.Background()

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	version, err := c.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != migrations.Latest {
		t.Errorf("SchemaVersion = %d, want %d", version, migrations.Latest)
	}

	// The table still works after the repeat run.
	if _, err := c.Schedule(ctx, nil); err != nil {
		t.Errorf("Schedule after double Initialize: %v", err)
	}
}

func TestSchemaVersionBeforeInitialize(t *testing.T) {
	t.Parallel()
	pool := testutil.NewTestPool(t)

	c, err := pgjobq.New(pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	version, err := c.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 0 {
		t.Errorf("SchemaVersion = %d before Initialize, want 0", version)
	}
}

func TestCustomSchemaAndTable(t *testing.T) {
	t.Parallel()
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	c, err := pgjobq.New(pool,
		pgjobq.WithSchema("queue_sys"),
		pgjobq.WithTable("work_items"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	id, err := c.Schedule(ctx, map[string]any{"k": "v"}, pgjobq.WithQueue("custom"))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	job, err := c.Acquire(ctx, "custom", "w")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("Acquire = %+v, want %s", job, id)
	}
	if err := c.Complete(ctx, id, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Two Clients with distinct tables in one database stay independent.
	other, err := pgjobq.New(pool, pgjobq.WithSchema("queue_sys"), pgjobq.WithTable("other_items"))
	if err != nil {
		t.Fatalf("New(other): %v", err)
	}
	if err := other.Initialize(ctx); err != nil {
		t.Fatalf("Initialize(other): %v", err)
	}
	if got, _ := other.Fetch(ctx, id); got != nil {
		t.Error("job leaked across tables")
	}
}
