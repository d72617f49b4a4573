package pgjobq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// jobColumns is the scan order used by every job-returning statement.
const jobColumns = "id, queue, payload, priority, status, worker, result, created_at, updated_at"

// ScheduleOption configures a single Schedule call.
type ScheduleOption func(*scheduleParams)

type scheduleParams struct {
	queue    string
	priority int
}

// WithQueue schedules the job into the named queue instead of DefaultQueue.
func WithQueue(queue string) ScheduleOption {
	return func(p *scheduleParams) { p.queue = queue }
}

// WithPriority sets the job priority. Higher priorities are acquired first.
// Values outside [MinPriority, MaxPriority] are rejected before any write.
func WithPriority(priority int) ScheduleOption {
	return func(p *scheduleParams) { p.priority = priority }
}

// Schedule inserts a new job with status scheduled and returns its id.
// A nil payload is stored as an empty document.
func (c *Client) Schedule(ctx context.Context, payload map[string]any, opts ...ScheduleOption) (string, error) {
	p := scheduleParams{queue: DefaultQueue}
	for _, opt := range opts {
		opt(&p)
	}
	if p.priority < MinPriority || p.priority > MaxPriority {
		return "", fmt.Errorf("%w: %d", ErrPriorityOutOfRange, p.priority)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	id := c.newID()
	query := fmt.Sprintf(
		"INSERT INTO %s (id, queue, payload, priority) VALUES ($1, $2, $3, $4)",
		c.ident,
	)
	if _, err := c.pool.Exec(ctx, query, id, p.queue, string(body), int16(p.priority)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		return "", fmt.Errorf("schedule job: %w", err)
	}
	return id, nil
}

// Fetch returns the job with the given id, or (nil, nil) when no such job
// exists. Absence is a normal outcome, not an error.
func (c *Client) Fetch(ctx context.Context, id string) (*Job, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", jobColumns, c.ident)
	job, err := scanJob(c.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch job %s: %w", id, err)
	}
	return job, nil
}

// Acquire exclusively claims the highest-priority scheduled job in the
// queue (FIFO within a priority) and transitions it to acquired, stamping
// worker and updated_at. Returns (nil, nil) when no job is eligible.
//
// The candidate row is selected with FOR UPDATE SKIP LOCKED: rows already
// locked by concurrent Acquire calls are skipped rather than waited on, so
// N callers against one queue land on N distinct jobs (or on none left)
// without head-of-line blocking. Selection and update run as one statement,
// so the row lock is held only for the instant of the transition — never
// across the caller's processing.
//
// An empty queue means DefaultQueue. An empty worker is stored as NULL.
func (c *Client) Acquire(ctx context.Context, queue, worker string) (*Job, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	var w *string
	if worker != "" {
		w = &worker
	}
	query := fmt.Sprintf(`
		WITH next AS (
			SELECT id FROM %s
			WHERE queue = $1 AND status = 'scheduled'
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %s j
		SET status = 'acquired', worker = $2, updated_at = now()
		FROM next
		WHERE j.id = next.id
		RETURNING %s`,
		c.ident, c.ident, prefixColumns("j"),
	)
	job, err := scanJob(c.pool.QueryRow(ctx, query, queue, w))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire from queue %s: %w", queue, err)
	}
	return job, nil
}

// Complete transitions an acquired job to completed and records result.
// Returns ErrNotAcquired when the job does not exist, was never acquired,
// or is already terminal.
func (c *Client) Complete(ctx context.Context, id string, result map[string]any) error {
	return c.finish(ctx, id, StatusCompleted, result)
}

// Fail transitions an acquired job to failed and records result. Same
// conflict semantics as Complete.
func (c *Client) Fail(ctx context.Context, id string, result map[string]any) error {
	return c.finish(ctx, id, StatusFailed, result)
}

// finish performs the conditional acquired → terminal update. The affected
// row count is the transition oracle: zero rows means the job was not in
// acquired state, reported as ErrNotAcquired.
func (c *Client) finish(ctx context.Context, id string, status Status, result map[string]any) error {
	if result == nil {
		result = map[string]any{}
	}
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	query := fmt.Sprintf(
		"UPDATE %s SET status = $2, result = $3, updated_at = now() WHERE id = $1 AND status = 'acquired'",
		c.ident,
	)
	tag, err := c.pool.Exec(ctx, query, id, string(status), string(body))
	if err != nil {
		return fmt.Errorf("%s job %s: %w", status, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotAcquired, id)
	}
	return nil
}

// prefixColumns qualifies jobColumns with a table alias for RETURNING.
func prefixColumns(alias string) string {
	return alias + ".id, " + alias + ".queue, " + alias + ".payload, " +
		alias + ".priority, " + alias + ".status, " + alias + ".worker, " +
		alias + ".result, " + alias + ".created_at, " + alias + ".updated_at"
}

// scanJob scans one row in jobColumns order. Payload and result arrive as
// raw jsonb bytes; result stays nil for jobs that are not yet terminal.
func scanJob(row pgx.Row) (*Job, error) {
	var (
		j       Job
		payload []byte
		result  []byte
	)
	if err := row.Scan(
		&j.ID, &j.Queue, &payload, &j.Priority, &j.Status,
		&j.Worker, &result, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &j.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if result != nil {
		if err := json.Unmarshal(result, &j.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	return &j, nil
}
