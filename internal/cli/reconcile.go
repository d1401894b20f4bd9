package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/aggregate"
	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
	"github.com/ppiankov/factgate/internal/provider"
	"github.com/ppiankov/factgate/internal/worker"
)

var (
	reconcileAll   bool
	claimsFile     string
	runID          string
	policy         string
	dryRun         bool
	workers        int
	writeMarkdown  bool
	llmProvider    string
	llmModel       string
	metricsFile    string
	publishSink    string
	noCache        bool
	failOnBlocking bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile [claim-id...]",
	Short: "Reconcile extracted facts and evaluate the quality gate",
	Long: `Reconcile merges the facts extracted from each claim's documents, records every
conflict with its provenance, and decides PASS, WARN or FAIL.

Reports are written to <workspace>/claims/<claim-id>/reconciliation/report.json
unless --dry-run is set.

Example:
  factgate reconcile CLM-1001
  factgate reconcile --all --workers 8
  factgate reconcile CLM-1001 --run-id run-2024-03-01 --dry-run
  factgate reconcile --from-file claims.txt --md --llm openai`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Selection flags
	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "reconcile every claim with extraction output")
	reconcileCmd.Flags().StringVar(&claimsFile, "from-file", "", "read claim ids from a file (one per line, # comments)")
	reconcileCmd.Flags().StringVar(&runID, "run-id", "", "only use this extraction run")
	reconcileCmd.Flags().StringVar(&policy, "policy", "", "reconciliation policy (latest-run)")

	// Behaviour flags
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute reports without writing or publishing them")
	reconcileCmd.Flags().IntVar(&workers, "workers", 0, fmt.Sprintf("concurrent claims (1-%d, default from config)", model.MaxWorkers))
	reconcileCmd.Flags().BoolVar(&writeMarkdown, "md", false, "also write report.md next to report.json")
	reconcileCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the candidate cache")
	reconcileCmd.Flags().BoolVar(&failOnBlocking, "fail-on-blocking", false, "exit non-zero when any claim's gate is FAIL")

	// Outputs
	reconcileCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics in textfile format")
	reconcileCmd.Flags().StringVar(&publishSink, "publish", "", "publish gate decisions (log, kafka, redis, mqtt, dapr)")

	// LLM flags
	reconcileCmd.Flags().StringVar(&llmProvider, "llm", "", "add a narrative summary (openai, anthropic, ollama)")
	reconcileCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyReconcileFlags(cmd, cfg)

	// Reject unimplemented policies before touching any claim
	opts := pipeline.Options{RunID: runID, Policy: model.Policy(policy), DryRun: dryRun || cfg.Output.DryRun}
	if err := aggregate.CheckPolicy(cfg.Policy); err != nil {
		return err
	}

	if err := checkSelection(args); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids, err := selectClaims(ctx, args, a.source)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintf(os.Stderr, "No claims to reconcile under %s\n", cfg.Workspace)
		return nil
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Workspace: %s\n", cfg.Workspace)
		fmt.Fprintf(os.Stderr, "Provider: %s\n", a.source.Name())
		fmt.Fprintf(os.Stderr, "Claims: %d\n", len(ids))
		fmt.Fprintf(os.Stderr, "Dry run: %v\n", opts.DryRun)
		fmt.Fprintln(os.Stderr)
	}

	batch := worker.NewBatchProcessor(a.pipeline, cfg.Concurrency.Workers)
	batch.OnResult(func(r model.ReconciliationResult) {
		fmt.Fprintln(os.Stderr, pipeline.StatusLine(r))
	})
	results := batch.ProcessClaims(ctx, ids, opts)

	tally := pipeline.Count(results)
	fmt.Fprintf(os.Stderr, "\n%s\n", tally)

	if metricsFile != "" {
		if err := a.metrics.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	return exitStatus(tally, ctx.Err())
}

// applyReconcileFlags lets explicitly set flags override the loaded config
func applyReconcileFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	if policy != "" {
		cfg.Policy = model.Policy(policy)
	}
	if writeMarkdown {
		cfg.Output.Markdown = true
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if publishSink != "" {
		cfg.Publish.Sink = publishSink
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		if llmModel != "" {
			cfg.LLM.Model = llmModel
		}
		applyEnvKeys(cfg)
	}
}

// checkSelection requires exactly one of claim ids, --from-file, or --all
func checkSelection(args []string) error {
	sources := 0
	for _, set := range []bool{len(args) > 0, claimsFile != "", reconcileAll} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return errors.NewConfigError("reconcile", "no claims given: pass claim ids, --from-file, or --all", nil)
	case sources > 1:
		return errors.NewConfigError("reconcile", "claim ids, --from-file and --all are mutually exclusive", nil)
	}
	return nil
}

// selectClaims resolves the claims to reconcile
func selectClaims(ctx context.Context, args []string, src provider.Provider) ([]string, error) {
	switch {
	case claimsFile != "":
		return worker.ReadClaimIDsFromFile(claimsFile)
	case reconcileAll:
		ids, err := src.ListClaims(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.KindProviderIO, "", "list claims", err)
		}
		return ids, nil
	default:
		return dedupe(args), nil
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// exitStatus turns a batch tally into the command's error
func exitStatus(t pipeline.Tally, interrupted error) error {
	if interrupted != nil {
		return fmt.Errorf("interrupted: %w", interrupted)
	}
	if t.Errors > 0 {
		return fmt.Errorf("%d of %d claims could not be reconciled", t.Errors, t.Total())
	}
	if failOnBlocking && t.Failed > 0 {
		return fmt.Errorf("%d of %d claims blocked by the quality gate", t.Failed, t.Total())
	}
	return nil
}
