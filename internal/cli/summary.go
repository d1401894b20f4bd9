package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/evaluate"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
)

var (
	topN          int
	summaryFormat string
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize every persisted reconciliation report",
	Long: `Summary reads the reconciliation report of every claim in the workspace and
prints pass/warn/fail counts, the most frequently missing critical facts and
the most frequently conflicting facts.

Example:
  factgate summary
  factgate summary --top-n 5
  factgate summary --format json > summary.json`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().IntVar(&topN, "top-n", 10, "entries per top list (0 lists all)")
	summaryCmd.Flags().StringVar(&summaryFormat, "format", "table", "output format (table, json)")
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reports, err := pipeline.NewReportStore(cfg.Workspace).LoadAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("load reports: %w", err)
	}
	eval := evaluate.Aggregate(reports, topN)

	if eval.Summary.TotalClaims == 0 {
		fmt.Fprintf(os.Stderr, "No reconciliation reports found under %s\n", cfg.Workspace)
	}

	switch summaryFormat {
	case "json":
		return writeSummaryJSON(cmd.OutOrStdout(), eval)
	case "table", "":
		return writeSummaryTable(cmd.OutOrStdout(), eval)
	default:
		return errors.NewConfigError("summary", fmt.Sprintf("unknown format %q (supported: table, json)", summaryFormat), nil)
	}
}

func writeSummaryJSON(w io.Writer, eval model.ReconciliationRunEval) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(eval)
}

// writeSummaryTable renders the totals, both top lists and per-claim rows
func writeSummaryTable(w io.Writer, eval model.ReconciliationRunEval) error {
	s := eval.Summary
	fmt.Fprintf(w, "Claims: %d  Pass: %d  Warn: %d  Fail: %d  Pass rate: %.1f%%\n",
		s.TotalClaims, s.Passed, s.Warned, s.Failed, s.PassRatePercent)
	fmt.Fprintf(w, "Avg facts: %.2f  Avg conflicts: %.2f  Total conflicts: %d\n\n",
		s.AvgFactCount, s.AvgConflicts, s.TotalConflicts)

	if s.TotalClaims == 0 {
		return nil
	}

	if len(eval.TopMissingFacts) > 0 {
		fmt.Fprintln(w, "Most missing critical facts:")
		if err := frequencyTable(w, eval.TopMissingFacts); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	if len(eval.TopConflicts) > 0 {
		fmt.Fprintln(w, "Most conflicting facts:")
		if err := frequencyTable(w, eval.TopConflicts); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	table := tablewriter.NewTable(w)
	table.Header("Claim", "Status", "Facts", "Conflicts", "Missing")
	for _, c := range eval.Claims {
		missing := "-"
		if len(c.MissingCriticalFacts) > 0 {
			missing = strings.Join(c.MissingCriticalFacts, ", ")
		}
		if err := table.Append(c.ClaimID, string(c.Status), strconv.Itoa(c.FactCount), strconv.Itoa(c.ConflictCount), missing); err != nil {
			return err
		}
	}
	return table.Render()
}

func frequencyTable(w io.Writer, freqs []model.FactFrequency) error {
	table := tablewriter.NewTable(w)
	table.Header("Fact", "Claims")
	for _, f := range freqs {
		if err := table.Append(f.FactName, strconv.Itoa(f.Count)); err != nil {
			return err
		}
	}
	return table.Render()
}
