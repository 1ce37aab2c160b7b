package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pable/go-court-metrics/internal/storage"
)

var sqlCSV bool

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a raw SQL query against the metrics database",
	Long: `Run an arbitrary SQL query against the metrics database and print results as a table.

Schema overview:
  matches(hash, match_id, analysed_at, native_width, native_height, point_count,
    threshold, per_identity, heatmap_radius, blur_kernel, frames, events, inliers,
    unassigned, missing_identity, missing_timestamp, malformed_timestamp,
    outside_window, below_threshold, clamped_deltas)
  court_layouts(match_hash, role, x, y)
  court_lengths(match_hash, top_width, bottom_width, left_height, right_height,
    shortline_width, tl_short_left, bl_short_left, br_short_right, tr_short_right)
  homographies(match_hash, h0 .. h8)
  dwell_times(match_hash, identity, q1, q2, q3, q4, distance, positions)
  positions(match_hash, timestamp TEXT, seconds, identity, x, y)
  heatmaps(match_hash, width, height, cells BLOB)

Court coordinates are in cm from the top-left corner (640 x 975).
Example: SELECT identity, SUM(q1), SUM(q2) FROM dwell_times GROUP BY identity`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

func init() {
	sqlCmd.Flags().BoolVar(&sqlCSV, "csv", false, "print results as CSV instead of a table")
}

func runSQL(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	cols, rows, err := db.QueryRaw(query)
	if err != nil {
		return err
	}
	if sqlCSV {
		cw := csv.NewWriter(os.Stdout)
		if err := cw.Write(cols); err != nil {
			return err
		}
		return cw.WriteAll(rows)
	}
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))

	colsAny := make([]any, len(cols))
	for i, c := range cols {
		colsAny[i] = c
	}
	table.Header(colsAny...)

	for _, row := range rows {
		rowAny := make([]any, len(row))
		for i, v := range row {
			rowAny[i] = v
		}
		table.Append(rowAny...)
	}
	table.Render()
	fmt.Fprintf(os.Stdout, "\n(%d rows)\n", len(rows))
	return nil
}

