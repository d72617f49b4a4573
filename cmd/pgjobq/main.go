// Command pgjobq operates a pgjobq jobs table.
//
// Subcommands:
//
//	migrate   — bring the jobs table to the latest schema version and exit
//	work      — poll the configured queues with the echo handler
//	schedule  — enqueue one job from the command line
//	stats     — print job counts per queue and status
//	clean     — delete old terminal jobs and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	// Automatically sets GOMEMLIMIT from the cgroup memory limit so that
	// the Go GC triggers before the OOM killer fires in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/f3ath/pgjobq"
	"github.com/f3ath/pgjobq/internal/config"
	"github.com/f3ath/pgjobq/worker"
)

func main() {
	root := &cobra.Command{
		Use:   "pgjobq",
		Short: "pgjobq — PostgreSQL-backed job queue",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		migrateCmd(),
		workCmd(),
		scheduleCmd(),
		statsCmd(),
		cleanCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads config, wires slog, builds the pool, and constructs a Client.
// Every subcommand starts here.
func setup(ctx context.Context) (*config.Config, *pgjobq.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}

	client, err := pgjobq.New(pool,
		pgjobq.WithSchema(cfg.QueueSchema),
		pgjobq.WithTable(cfg.QueueTable),
	)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return cfg, client, nil
}

// ── migrate ───────────────────────────────────────────────────────────────────

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Pool().Close()
			return client.Initialize(cmd.Context())
		},
	}
}

// ── work ──────────────────────────────────────────────────────────────────────

func workCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Poll the configured queues and execute jobs",
		RunE:  runWork,
	}
}

func runWork(cmd *cobra.Command, _ []string) error {
	cfg, client, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Pool().Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool := worker.New(client, worker.WithPollInterval(cfg.PollInterval))
	for _, q := range cfg.QueueNames {
		pool.Register(q, echoHandler)
	}

	if cfg.RetentionEnabled {
		go runRetention(ctx, client, cfg)
	}

	serverErr := make(chan error, 1)
	if cfg.ListenAddr != "" {
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           newRouter(client),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			slog.Info("http listener started", "addr", cfg.ListenAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	done := make(chan struct{})
	go func() {
		pool.Start(ctx) // blocks until ctx cancelled, then drains in-flight jobs
		close(done)
	}()

	slog.Info("worker started", "queues", cfg.QueueNames, "worker_id", pool.ID())
	select {
	case err := <-serverErr:
		stop()
		<-done
		return fmt.Errorf("http listener: %w", err)
	case <-done:
		return nil
	}
}

// echoHandler acknowledges a job by echoing its payload into the result.
// Real deployments embed worker.Pool as a library and register their own
// handlers; the CLI worker exists for smoke tests and operations.
func echoHandler(_ context.Context, job *pgjobq.Job) (map[string]any, error) {
	slog.Info("echo job", "queue", job.Queue, "job_id", job.ID)
	return map[string]any{"echo": job.Payload}, nil
}

// runRetention deletes old terminal jobs on a fixed interval until ctx is
// cancelled. Uses time.NewTicker (not time.After) to avoid timer leaks.
func runRetention(ctx context.Context, client *pgjobq.Client, cfg *config.Config) {
	opts := []pgjobq.CleanOption{pgjobq.WithLimit(cfg.RetentionBatchSize)}
	if cfg.RetentionIncludeFailed {
		opts = append(opts, pgjobq.IncludeFailed())
	}

	ticker := time.NewTicker(cfg.RetentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := client.DeleteCompleted(ctx, cfg.RetentionTTL, opts...)
			if err != nil {
				slog.Error("retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("retention sweep", "deleted", n)
			}
		}
	}
}

// newRouter serves the operational HTTP surface of the work command.
func newRouter(client *pgjobq.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := client.Pool().Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		counts, err := client.CountByQueueByStatus(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(counts)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ── schedule ──────────────────────────────────────────────────────────────────

func scheduleCmd() *cobra.Command {
	var (
		queue    string
		priority int
	)
	cmd := &cobra.Command{
		Use:   "schedule [payload-json]",
		Short: "Enqueue one job; payload from the argument or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Pool().Close()

			raw := []byte("{}")
			if len(args) == 1 {
				raw = []byte(args[0])
			} else if stat, _ := os.Stdin.Stat(); stat != nil && stat.Mode()&os.ModeCharDevice == 0 {
				if raw, err = io.ReadAll(os.Stdin); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			var payload map[string]any
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("payload must be a JSON object: %w", err)
			}

			id, err := client.Schedule(cmd.Context(), payload,
				pgjobq.WithQueue(queue), pgjobq.WithPriority(priority))
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().StringVar(&queue, "queue", pgjobq.DefaultQueue, "queue name")
	cmd.Flags().IntVar(&priority, "priority", 0, "job priority (higher served first)")
	return cmd
}

// ── stats ─────────────────────────────────────────────────────────────────────

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print job counts grouped by queue and status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Pool().Close()

			counts, err := client.CountByQueueByStatus(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(counts)
		},
	}
}

// ── clean ─────────────────────────────────────────────────────────────────────

func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete terminal jobs older than RETENTION_TTL and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Pool().Close()

			opts := []pgjobq.CleanOption{pgjobq.WithLimit(cfg.RetentionBatchSize)}
			if cfg.RetentionIncludeFailed {
				opts = append(opts, pgjobq.IncludeFailed())
			}

			// Repeat bounded sweeps until the backlog is drained.
			var total int64
			for {
				n, err := client.DeleteCompleted(cmd.Context(), cfg.RetentionTTL, opts...)
				if err != nil {
					return err
				}
				total += n
				if n < int64(cfg.RetentionBatchSize) {
					break
				}
			}
			slog.Info("clean finished", "deleted", total)
			return nil
		},
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

// newPool creates and validates a pgxpool. Retries with linear backoff to
// ride out container-orchestration startup races where Postgres is not
// immediately ready.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// PgBouncer transaction-pooling compatibility.
	if cfg.DBQueryExecMode == "simple_protocol" {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	// Global per-query statement timeout prevents runaway queries from
	// holding connections indefinitely.
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.Itoa(cfg.DBStatementTimeoutMS)

	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime

	var (
		pool    *pgxpool.Pool
		connErr error
	)
	for attempt := 1; attempt <= 10; attempt++ {
		pool, connErr = pgxpool.NewWithConfig(ctx, poolCfg)
		if connErr == nil {
			if connErr = pool.Ping(ctx); connErr == nil {
				return pool, nil
			}
			pool.Close()
		}
		slog.Warn("database not ready, retrying", "attempt", attempt, "error", connErr)
		// time.NewTimer (not time.After) to avoid leaking the timer if ctx
		// is cancelled before the timer fires.
		timer := time.NewTimer(time.Duration(attempt) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("database unavailable after retries: %w", connErr)
}

// newLogger creates a slog.Logger based on the configured level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
