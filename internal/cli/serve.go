package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/server"
)

var (
	serveAddr     string
	serveSchedule string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reconciliation over HTTP",
	Long: `Serve exposes reconciliation, persisted reports and the run summary over HTTP,
plus prometheus metrics on /metrics.

With --schedule, every claim is reconciled periodically (cron syntax).

Example:
  factgate serve --addr :8080
  factgate serve --schedule "@every 15m"`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "cron schedule for reconciling all claims")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveSchedule != "" {
		cfg.Server.Schedule = serveSchedule
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Schedule:       cfg.Server.Schedule,
		Workers:        cfg.Concurrency.Workers,
		Reconciler:     a.pipeline,
		Store:          a.pipeline.Store(),
		Claims:         a.source,
		Metrics:        a.metrics.Handler(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "✓ Serving on %s (workspace %s)\n", cfg.Server.Addr, cfg.Workspace)
	return srv.ListenAndServe(ctx)
}
