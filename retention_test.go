package pgjobq_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/f3ath/pgjobq"
	"github.com/f3ath/pgjobq/internal/testutil"
)

// finishJob drives a job to the given terminal status.
func finishJob(t *testing.T, c *pgjobq.Client, queue string, status pgjobq.Status) string {
	t.Helper()
	ctx := context.Background()
	id, err := c.Schedule(ctx, nil, pgjobq.WithQueue(queue))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := c.Acquire(ctx, queue, "w"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if status == pgjobq.StatusFailed {
		err = c.Fail(ctx, id, nil)
	} else {
		err = c.Complete(ctx, id, nil)
	}
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	return id
}

// backdate pushes a job's updated_at into the past, simulating age.
func backdate(t *testing.T, c *pgjobq.Client, id string, age time.Duration) {
	t.Helper()
	_, err := c.Pool().Exec(context.Background(),
		fmt.Sprintf("UPDATE jobs SET updated_at = now() - interval '%d seconds' WHERE id = $1", int(age.Seconds())),
		id,
	)
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}
}

func TestDeleteCompleted(t *testing.T) {
	t.Parallel()
	c := testutil.NewTestClient(t)
	ctx := context.Background()

	const ttl = time.Hour

	oldDone1 := finishJob(t, c, "q1", pgjobq.StatusCompleted)
	oldDone2 := finishJob(t, c, "q1", pgjobq.StatusCompleted)
	freshDone := finishJob(t, c, "q1", pgjobq.StatusCompleted)
	oldFailed := finishJob(t, c, "q1", pgjobq.StatusFailed)
	scheduled, err := c.Schedule(ctx, nil, pgjobq.WithQueue("q1"))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	for _, id := range []string{oldDone1, oldDone2, oldFailed, scheduled} {
		backdate(t, c, id, 2*time.Hour)
	}

	// Default: only completed jobs past the TTL go.
	n, err := c.DeleteCompleted(ctx, ttl)
	if err != nil {
		t.Fatalf("DeleteCompleted: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	for _, id := range []string{oldDone1, oldDone2} {
		if job, _ := c.Fetch(ctx, id); job != nil {
			t.Errorf("job %s survived retention", id)
		}
	}
	for _, id := range []string{freshDone, oldFailed, scheduled} {
		if job, _ := c.Fetch(ctx, id); job == nil {
			t.Errorf("job %s deleted unexpectedly", id)
		}
	}

	// IncludeFailed sweeps the old failed job too; the old scheduled job
	// is non-terminal and must never be touched.
	n, err = c.DeleteCompleted(ctx, ttl, pgjobq.IncludeFailed())
	if err != nil {
		t.Fatalf("DeleteCompleted(IncludeFailed): %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if job, _ := c.Fetch(ctx, scheduled); job == nil {
		t.Error("scheduled job deleted by retention")
	}
}

func TestDeleteCompletedLimit(t *testing.T) {
	t.Parallel()
	c := testutil.NewTestClient(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := finishJob(t, c, "bulk", pgjobq.StatusCompleted)
		backdate(t, c, id, 2*time.Hour)
	}

	n, err := c.DeleteCompleted(ctx, time.Hour, pgjobq.WithLimit(2))
	if err != nil {
		t.Fatalf("DeleteCompleted: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2 (limit)", n)
	}

	// Repeated bounded calls drain the rest.
	var total int64 = n
	for {
		n, err := c.DeleteCompleted(ctx, time.Hour, pgjobq.WithLimit(2))
		if err != nil {
			t.Fatalf("DeleteCompleted: %v", err)
		}
		total += n
		if n < 2 {
			break
		}
	}
	if total != 5 {
		t.Errorf("total deleted = %d, want 5", total)
	}
}
