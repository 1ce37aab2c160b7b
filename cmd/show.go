package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-court-metrics/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <hash-prefix>",
	Short: "Show a stored match's court mapping and dwell times",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return showByHash(os.Stdout, db, args[0])
}
