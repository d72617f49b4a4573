// Package config parses the pgjobq CLI configuration from environment
// variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
// The process exits if any field tagged "required" is missing.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all CLI configuration sourced from environment variables.
type Config struct {
	// ── Database ─────────────────────────────────────────────────────────────────
	DatabaseURL          string        `env:"DATABASE_URL,required"`
	DBMaxConns           int32         `env:"DB_MAX_CONNS"            envDefault:"25"`
	DBMaxConnIdleTime    time.Duration `env:"DB_MAX_CONN_IDLE_TIME"   envDefault:"5m"`
	DBStatementTimeoutMS int           `env:"DB_STATEMENT_TIMEOUT_MS" envDefault:"14000"`
	// DBQueryExecMode: "extended_protocol" or "simple_protocol" (PgBouncer-compatible).
	DBQueryExecMode string `env:"DB_QUERY_EXEC_MODE" envDefault:"extended_protocol"`

	// ── Queue table ──────────────────────────────────────────────────────────────
	QueueSchema string `env:"QUEUE_SCHEMA" envDefault:"public"`
	QueueTable  string `env:"QUEUE_TABLE"  envDefault:"jobs"`
	// QueueNames are the queues the work command polls.
	QueueNames []string `env:"QUEUE_NAMES" envDefault:"default"`

	// ── Worker ───────────────────────────────────────────────────────────────────
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	// ListenAddr, when set, serves /healthz, /stats and /metrics from the
	// work command. Empty disables the HTTP listener.
	ListenAddr string `env:"LISTEN_ADDR"`

	// ── Retention ────────────────────────────────────────────────────────────────
	// RetentionEnabled makes the work command delete old terminal jobs on
	// RetentionInterval. The clean subcommand ignores this flag.
	RetentionEnabled       bool          `env:"RETENTION_ENABLED"        envDefault:"false"`
	RetentionTTL           time.Duration `env:"RETENTION_TTL"            envDefault:"168h"`
	RetentionIncludeFailed bool          `env:"RETENTION_INCLUDE_FAILED" envDefault:"false"`
	RetentionBatchSize     int           `env:"RETENTION_BATCH_SIZE"     envDefault:"1000"`
	RetentionInterval      time.Duration `env:"RETENTION_INTERVAL"       envDefault:"10m"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses and returns Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
