package pgjobq

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Defaults for the identifiers a Client is bound to.
const (
	DefaultSchema = "public"
	DefaultTable  = "jobs"
)

// identPattern is the allow-list grammar for schema and table names:
// letters, digits, underscore, not starting with a digit. Checked at
// construction time, before either identifier is interpolated into any
// generated statement. Generated SQL additionally quotes identifiers, but
// the grammar check is the contract, not the quoting.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Client is the queue engine. It is a stateless façade over a pgxpool: every
// public method executes as a single statement (one implicit transaction),
// so a Client is safe for use by any number of concurrent producers and
// workers. All coordination happens in Postgres via row locks.
type Client struct {
	pool   *pgxpool.Pool
	schema string
	table  string
	// ident is the sanitized, qualified table name interpolated into SQL.
	ident string
	newID func() string
	log   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSchema binds the Client to a schema other than "public".
func WithSchema(schema string) Option {
	return func(c *Client) { c.schema = schema }
}

// WithTable binds the Client to a jobs table other than "jobs".
func WithTable(table string) Option {
	return func(c *Client) { c.table = table }
}

// WithIDGenerator replaces the default random-UUID job id generator.
// Generated ids must be globally unique; Schedule surfaces collisions as
// ErrDuplicateID.
func WithIDGenerator(gen func() string) Option {
	return func(c *Client) { c.newID = gen }
}

// WithLogger sets the logger used by Initialize and DeleteCompleted.
// Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client backed by pool. It validates the schema and table
// identifiers and returns ErrInvalidIdentifier when either fails the
// grammar check. New performs no I/O; call Initialize before first use on
// a fresh database.
func New(pool *pgxpool.Pool, opts ...Option) (*Client, error) {
	c := &Client{
		pool:   pool,
		schema: DefaultSchema,
		table:  DefaultTable,
		newID:  func() string { return uuid.NewString() },
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !identPattern.MatchString(c.schema) {
		return nil, fmt.Errorf("%w: schema %q", ErrInvalidIdentifier, c.schema)
	}
	if !identPattern.MatchString(c.table) {
		return nil, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, c.table)
	}
	c.ident = pgx.Identifier{c.schema, c.table}.Sanitize()
	return c, nil
}

// Schema returns the schema name the Client is bound to.
func (c *Client) Schema() string { return c.schema }

// Table returns the table name the Client is bound to.
func (c *Client) Table() string { return c.table }

// Pool returns the underlying pgxpool for callers that need raw access.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }
