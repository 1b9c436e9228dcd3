package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/crmmock/pkg/engine"
	"github.com/getmockd/crmmock/pkg/metrics"
)

// backstopGrace is added to the shutdown timeout before a stuck shutdown is
// abandoned.
const backstopGrace = time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Fetch the schema and serve the mock GraphQL API",
		Long: `Fetch the GraphQL schema from --schema-url and serve the createUser mutation
against it until SIGINT or SIGTERM.

The schema fetch is retried with exponential backoff. If every attempt fails
the server does not start and crmmock exits 1.`,
		Example: `  # Serve the CRM schema on port 4000
  crmmock serve --schema-url https://crm.example.com/schema.graphql

  # Serve on another port and reject duplicate emails
  crmmock serve --schema-url https://crm.example.com/schema.graphql -p 8080 --track-duplicates

  # Also serve the REST API docs
  crmmock serve --schema-url https://crm.example.com/schema.graphql --openapi-url https://crm.example.com/openapi.yaml`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	addServeFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireSchemaURL(); err != nil {
		return err
	}

	log := newLogger(cfg, cmd.ErrOrStderr())
	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	srv := engine.New(engineConfig(cfg),
		engine.WithLogger(log),
		engine.WithMetrics(m),
	)

	// stop runs only on return: a second SIGINT during shutdown must not
	// kill the process.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Bootstrap(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "crmmock listening on http://%s%s\n", srv.Addr(), cfg.GraphQLPath)

	disarm := armBackstop(ctx, cfg.ShutdownTimeoutDuration()+backstopGrace, log)
	defer disarm()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// armBackstop exits the process with ExitError if it is still running after
// ctx is done and the given delay has passed. The returned func disarms it.
func armBackstop(ctx context.Context, after time.Duration, log *slog.Logger) func() {
	var (
		mu       sync.Mutex
		timer    *time.Timer
		disarmed bool
		done     = make(chan struct{})
	)

	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}

		mu.Lock()
		defer mu.Unlock()
		if disarmed {
			return
		}
		log.Debug("forced exit armed", "after", after)
		timer = time.AfterFunc(after, func() {
			log.Error("shutdown did not finish in time, forcing exit", "after", after)
			osExit(ExitError)
		})
	}()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if disarmed {
			return
		}
		disarmed = true
		close(done)
		if timer != nil {
			timer.Stop()
		}
	}
}
