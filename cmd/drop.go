package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-court-metrics/internal/storage"
)

var (
	dropForce bool
	dropMatch string
)

// dropCmd deletes the metrics database file.
var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the metrics database",
	Long: `Permanently delete the SQLite metrics database. All analysed matches will be
lost; re-run analyze afterwards to rebuild. With --match, only the match with
that hash prefix is removed.`,
	Args: cobra.NoArgs,
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().BoolVarP(&dropForce, "force", "f", false, "skip confirmation prompt")
	dropCmd.Flags().StringVar(&dropMatch, "match", "", "delete only the match with this hash prefix")
}

func runDrop(cmd *cobra.Command, args []string) error {
	if dropMatch != "" {
		return dropOne(dropMatch)
	}
	if !dropForce {
		fmt.Fprintf(os.Stderr, "This will permanently delete: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "Re-run with --force to confirm.\n")
		return nil
	}
	if err := os.Remove(dbPath); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(os.Stdout, "Database does not exist, nothing to drop.")
			return nil
		}
		return fmt.Errorf("remove database: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Deleted: %s\n", dbPath)
	return nil
}

func dropOne(prefix string) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	m, err := db.GetMatchByPrefix(prefix)
	if err != nil {
		return fmt.Errorf("query match: %w", err)
	}
	if m == nil {
		return fmt.Errorf("no match found with hash prefix %q", prefix)
	}
	if !dropForce {
		fmt.Fprintf(os.Stderr, "This will permanently delete match %s (%s)\n", m.MatchID, m.Hash[:12])
		fmt.Fprintf(os.Stderr, "Re-run with --force to confirm.\n")
		return nil
	}
	if err := db.DeleteMatch(m.Hash); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Deleted match %s (%s)\n", m.MatchID, m.Hash[:12])
	return nil
}
