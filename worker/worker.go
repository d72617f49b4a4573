// Package worker provides a goroutine pool that polls one or more queues,
// claims jobs through pgjobq.Client.Acquire, and reports each outcome with
// Complete or Fail.
//
// Handlers are registered per queue name before calling Pool.Start. Each
// queue gets a dedicated polling goroutine. The engine has no automatic
// reclaim for jobs whose worker died mid-processing, so the pool goes out
// of its way to report an outcome even during shutdown.
package worker

import (
	"context"

	"github.com/f3ath/pgjobq"
)

// Handler is the function executed for each claimed job. The returned map
// is recorded as the job result on success; a non-nil error marks the job
// failed with the error message in the result document.
type Handler func(ctx context.Context, job *pgjobq.Job) (map[string]any, error)
