package pgjobq

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// CountByQueueByStatus returns the number of jobs in every (queue, status)
// group, shaped as an outer map keyed by queue and an inner map keyed by
// status. Queues and statuses with no jobs are simply absent. Pure read; no
// locking beyond the read's default isolation.
func (c *Client) CountByQueueByStatus(ctx context.Context) (map[string]map[Status]int64, error) {
	query, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select("queue", "status", "COUNT(*)").
		From(c.ident).
		GroupBy("queue", "status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("count jobs: build query: %w", err)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]map[Status]int64)
	for rows.Next() {
		var (
			queue  string
			status Status
			n      int64
		)
		if err := rows.Scan(&queue, &status, &n); err != nil {
			return nil, fmt.Errorf("count jobs: scan: %w", err)
		}
		if counts[queue] == nil {
			counts[queue] = make(map[Status]int64)
		}
		counts[queue][status] = n
	}
	return counts, rows.Err()
}
