package pgjobq

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/f3ath/pgjobq/migrations"
)

// Initialize brings the jobs table to the latest schema version. It is
// idempotent and safe to call on every process start: golang-migrate takes
// a session advisory lock, so concurrent or repeated calls apply each step
// exactly once. Each step runs in its own transaction together with its
// ledger entry; a failing step propagates and leaves the ledger untouched.
//
// The applied-migration ledger lives in <table>_migrations inside the
// Client's schema, separate from the jobs table, so several Clients with
// different tables can share one database.
func (c *Client) Initialize(ctx context.Context) error {
	m, closeFn, err := c.migrator(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	c.log.Info("schema initialized",
		"schema", c.schema, "table", c.table, "version", version)
	return nil
}

// SchemaVersion returns the currently applied migration version, or 0 when
// no migration has been applied yet.
func (c *Client) SchemaVersion(ctx context.Context) (uint, error) {
	m, closeFn, err := c.migrator(ctx)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	version, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// migrator builds a migrate instance over the rendered migration steps.
// The returned func closes the one-shot *sql.DB backing it.
func (c *Client) migrator(ctx context.Context) (*migrate.Migrate, func(), error) {
	fsys, err := migrations.Render(c.schema, c.table)
	if err != nil {
		return nil, nil, fmt.Errorf("render migrations: %w", err)
	}
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("migration source: %w", err)
	}

	// golang-migrate needs a *sql.DB. Reuse the pool's connection config
	// through pgx's stdlib adapter so the same driver is used module-wide.
	// Simple query protocol lets postgres run multi-statement migration
	// files natively, each statement in its own autocommit.
	connCfg := c.pool.Config().ConnConfig.Copy()
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	db := stdlib.OpenDB(*connCfg)

	// The ledger table is created by the driver before any step runs, so a
	// non-default schema must exist first. Identifier already validated.
	schemaIdent := pgx.Identifier{c.schema}.Sanitize()
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schemaIdent); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create schema %s: %w", c.schema, err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		SchemaName:            c.schema,
		MigrationsTable:       c.table + "_migrations",
		MultiStatementEnabled: true,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate init: %w", err)
	}
	return m, func() { _ = db.Close() }, nil
}
