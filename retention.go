package pgjobq

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// DefaultCleanLimit caps the rows removed by one DeleteCompleted call.
const DefaultCleanLimit = 1000

// CleanOption configures a single DeleteCompleted call.
type CleanOption func(*cleanParams)

type cleanParams struct {
	includeFailed bool
	limit         int
}

// IncludeFailed extends retention to failed jobs as well as completed ones.
func IncludeFailed() CleanOption {
	return func(p *cleanParams) { p.includeFailed = true }
}

// WithLimit overrides DefaultCleanLimit for one call.
func WithLimit(limit int) CleanOption {
	return func(p *cleanParams) { p.limit = limit }
}

// DeleteCompleted removes completed jobs whose updated_at is older than
// now − ttl, at most limit rows per call so a large backlog never inflates
// a single transaction. Returns the number of rows removed. Meant to be
// invoked periodically; repeat until it returns fewer rows than the limit
// to drain a backlog.
//
// Jobs in scheduled or acquired state are never touched.
func (c *Client) DeleteCompleted(ctx context.Context, ttl time.Duration, opts ...CleanOption) (int64, error) {
	p := cleanParams{limit: DefaultCleanLimit}
	for _, opt := range opts {
		opt(&p)
	}
	statuses := []string{string(StatusCompleted)}
	if p.includeFailed {
		statuses = append(statuses, string(StatusFailed))
	}
	cutoff := time.Now().Add(-ttl)

	// Postgres DELETE has no LIMIT; bound the batch via an id subselect.
	// The subselect uses bare ? placeholders so the outer builder can
	// renumber everything into $n form in one pass.
	subQuery, subArgs, err := sq.Select("id").
		From(c.ident).
		Where(sq.Eq{"status": statuses}).
		Where(sq.Lt{"updated_at": cutoff}).
		OrderBy("updated_at ASC").
		Limit(uint64(p.limit)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("delete completed: build subquery: %w", err)
	}

	query, args, err := sq.Delete(c.ident).
		Where(sq.Expr("id IN ("+subQuery+")", subArgs...)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("delete completed: build query: %w", err)
	}

	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete completed: %w", err)
	}
	n := tag.RowsAffected()
	if n > 0 {
		c.log.Debug("deleted terminal jobs",
			"table", c.table, "count", n, "ttl", ttl, "include_failed", p.includeFailed)
	}
	return n, nil
}
