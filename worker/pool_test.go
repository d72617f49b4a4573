package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/f3ath/pgjobq"
	"github.com/f3ath/pgjobq/internal/testutil"
	"github.com/f3ath/pgjobq/worker"
)

// waitForStatus polls until the job reaches status or the deadline passes.
func waitForStatus(t *testing.T, c *pgjobq.Client, id string, status pgjobq.Status) *pgjobq.Job {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		job, err := c.Fetch(context.Background(), id)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if job != nil && job.Status == status {
			return job
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, status)
	return nil
}

func TestPoolCompletesJobs(t *testing.T) {
	t.Parallel()
	c := testutil.NewTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := make([]string, 3)
	for i := range ids {
		id, err := c.Schedule(context.Background(),
			map[string]any{"n": float64(i)}, pgjobq.WithQueue("emails"))
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
		ids[i] = id
	}

	pool := worker.New(c, worker.WithPollInterval(50*time.Millisecond))
	pool.Register("emails", func(_ context.Context, job *pgjobq.Job) (map[string]any, error) {
		return map[string]any{"sent": true}, nil
	})

	done := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(done)
	}()

	for _, id := range ids {
		job := waitForStatus(t, c, id, pgjobq.StatusCompleted)
		if job.Result == nil || job.Result["sent"] != true {
			t.Errorf("job %s result = %v, want sent=true", id, job.Result)
		}
		if job.Worker == nil || *job.Worker != pool.ID() {
			t.Errorf("job %s worker = %v, want %s", id, job.Worker, pool.ID())
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

func TestPoolRecordsHandlerFailure(t *testing.T) {
	t.Parallel()
	c := testutil.NewTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := c.Schedule(context.Background(), nil, pgjobq.WithQueue("flaky"))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	pool := worker.New(c, worker.WithPollInterval(50*time.Millisecond))
	pool.Register("flaky", func(_ context.Context, _ *pgjobq.Job) (map[string]any, error) {
		return nil, errors.New("smtp unreachable")
	})
	go pool.Start(ctx)

	job := waitForStatus(t, c, id, pgjobq.StatusFailed)
	if job.Result == nil || job.Result["error"] != "smtp unreachable" {
		t.Errorf("failed job result = %v, want error message", job.Result)
	}
}

func TestPoolOnlyTouchesRegisteredQueues(t *testing.T) {
	t.Parallel()
	c := testutil.NewTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otherID, err := c.Schedule(context.Background(), nil, pgjobq.WithQueue("other"))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	workedID, err := c.Schedule(context.Background(), nil, pgjobq.WithQueue("worked"))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	pool := worker.New(c, worker.WithPollInterval(50*time.Millisecond))
	pool.Register("worked", func(_ context.Context, _ *pgjobq.Job) (map[string]any, error) {
		return nil, nil
	})
	go pool.Start(ctx)

	waitForStatus(t, c, workedID, pgjobq.StatusCompleted)

	job, err := c.Fetch(context.Background(), otherID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if job.Status != pgjobq.StatusScheduled {
		t.Errorf("unregistered-queue job status = %s, want scheduled", job.Status)
	}
}
