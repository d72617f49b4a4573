package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/f3ath/pgjobq"
)

// defaultPollInterval is how often each queue goroutine checks for new jobs
// when the previous poll came back empty.
const defaultPollInterval = 2 * time.Second

// finishTimeout bounds the Complete/Fail call made after a handler returns.
const finishTimeout = 30 * time.Second

// Pool manages one polling goroutine per registered queue. All goroutines
// share a single Client and a per-process worker id recorded in the jobs'
// worker column.
type Pool struct {
	client *pgjobq.Client
	id     string
	poll   time.Duration
	log    *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// Option configures a Pool.
type Option func(*Pool)

// WithPollInterval overrides the default 2s empty-queue poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) { p.poll = d }
}

// WithLogger sets the pool logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pool) { p.log = log }
}

// New creates a Pool backed by client. The worker id is derived from the
// hostname plus a random suffix so concurrent pools on one host stay
// distinguishable in the worker column.
func New(client *pgjobq.Client, opts ...Option) *Pool {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	p := &Pool{
		client:   client,
		id:       host + "-" + uuid.NewString()[:8],
		poll:     defaultPollInterval,
		log:      slog.Default(),
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the worker id stamped on jobs this pool acquires.
func (p *Pool) ID() string { return p.id }

// Register associates h with the named queue. Must be called before Start.
func (p *Pool) Register(queue string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[queue] = h
}

// Start launches one polling goroutine per registered queue and blocks
// until ctx is cancelled and every goroutine has exited. On cancellation,
// in-flight handlers are interrupted via ctx, but their outcome is still
// reported (see finish).
func (p *Pool) Start(ctx context.Context) {
	p.mu.RLock()
	queues := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		queues = append(queues, q)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			p.runQueue(ctx, queue)
		}(q)
	}
	wg.Wait()
	p.log.Info("worker pool stopped", "worker_id", p.id)
}

// runQueue polls queue until ctx is cancelled. After a successful claim it
// loops immediately instead of waiting for the next tick, so a backlog
// drains at full speed.
func (p *Pool) runQueue(ctx context.Context, queue string) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	p.log.Info("worker queue started", "queue", queue, "worker_id", p.id)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("worker queue stopping", "queue", queue)
			return
		case <-ticker.C:
			for p.processOne(ctx, queue) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processOne claims and executes one job. Returns true when a job was
// claimed, false when the queue was empty or claiming failed. Errors are
// logged but never stop the polling loop.
func (p *Pool) processOne(ctx context.Context, queue string) bool {
	job, err := p.client.Acquire(ctx, queue, p.id)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error("acquire error", "queue", queue, "error", err)
		}
		return false
	}
	if job == nil {
		return false // queue empty; normal case
	}
	jobsAcquired.WithLabelValues(queue).Inc()

	p.mu.RLock()
	h := p.handlers[queue]
	p.mu.RUnlock()

	p.log.Info("executing job", "queue", queue, "job_id", job.ID)
	result, err := h(ctx, job)
	if err != nil {
		p.log.Error("job handler failed", "queue", queue, "job_id", job.ID, "error", err)
		p.finish(ctx, job, pgjobq.StatusFailed, map[string]any{"error": err.Error()})
		return true
	}
	p.finish(ctx, job, pgjobq.StatusCompleted, result)
	return true
}

// finish reports the job outcome. An acquired job stays acquired forever if
// the report is lost, so the call survives cancellation of the pool
// context, bounded by finishTimeout.
func (p *Pool) finish(ctx context.Context, job *pgjobq.Job, status pgjobq.Status, result map[string]any) {
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	var err error
	if status == pgjobq.StatusFailed {
		err = p.client.Fail(finishCtx, job.ID, result)
		jobsFailed.WithLabelValues(job.Queue).Inc()
	} else {
		err = p.client.Complete(finishCtx, job.ID, result)
		jobsCompleted.WithLabelValues(job.Queue).Inc()
	}
	if err != nil {
		p.log.Error("report job outcome", "job_id", job.ID, "status", status, "error", err)
		return
	}
	p.log.Info("job finished", "queue", job.Queue, "job_id", job.ID, "status", status)
}
