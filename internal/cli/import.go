package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/provider"
)

var (
	importDriver string
	importDSN    string
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [claim-id...]",
	Short: "Copy workspace extraction outputs into a database",
	Long: `Import reads extraction outputs from the workspace layout and appends them to
the extraction_facts table, so the sqlite or postgres provider can serve them.
Rows already in the table are skipped, so re-running an import is safe.
Without claim ids every claim in the workspace is imported.

Example:
  factgate import --driver sqlite --dsn facts.db
  factgate import CLM-1001 --driver postgres --dsn "host=localhost user=factgate dbname=claims"`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importDriver, "driver", provider.DriverSQLite, "database driver (sqlite, postgres)")
	importCmd.Flags().StringVar(&importDSN, "dsn", "", "database connection string")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if importDSN == "" {
		return errors.NewConfigError("import", "--dsn is required", nil)
	}

	db, err := provider.OpenDBProvider(importDriver, importDSN)
	if err != nil {
		return errors.NewConfigError("import", "open database", err)
	}
	defer func() { _ = db.Close() }()

	src := provider.NewWorkspaceProvider(cfg.Workspace)
	ids := dedupe(args)
	if len(ids) == 0 {
		if ids, err = src.ListClaims(cmd.Context()); err != nil {
			return errors.Wrap(errors.KindProviderIO, "", "list claims", err)
		}
	}

	total := 0
	for _, id := range ids {
		candidates, err := src.Collect(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", id, err)
			return err
		}
		added, err := db.Merge(cmd.Context(), provider.RowsFromCandidates(id, candidates))
		if err != nil {
			return errors.Wrap(errors.KindProviderIO, id, "import extraction facts", err)
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d facts (%d new)\n", id, len(candidates), added)
		total += added
	}
	fmt.Fprintf(os.Stderr, "\nImported %d new facts for %d claims into %s\n", total, len(ids), importDriver)
	return nil
}
