package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pable/go-court-metrics/internal/monitoring"
)

var (
	dbPath string
	quiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "courtmetrics",
	Short: "Squash court mapping and movement analytics",
	Long: `Map pose-estimation output from a squash match video onto a flat court and
compute per-player court position, quadrant dwell times, distance covered and
a position heatmap.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			monitoring.SetLogger(nil)
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultDB := filepath.Join(mustUserHome(), ".courtmetrics", "metrics.db")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "path to SQLite database")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress diagnostic log lines")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(heatmapCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(shellCmd)
}

func mustUserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
