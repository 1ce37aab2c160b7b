package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-court-metrics/internal/model"
	"github.com/pable/go-court-metrics/internal/render"
	"github.com/pable/go-court-metrics/internal/report"
	"github.com/pable/go-court-metrics/internal/storage"
)

var (
	positionsPlayer int
	positionsFrom   float64
	positionsTo     float64
	positionsOut    string
	positionsPlot   string
)

// positionsCmd exports a match's projected court positions.
var positionsCmd = &cobra.Command{
	Use:   "positions <hash-prefix>",
	Short: "Export projected court positions as CSV, or plot player trails",
	Long: `Write every projected court position of a match as CSV
(timestamp, seconds, player, x, y), in court units with the origin at the
top-left corner. --plot draws both players' trails over the court instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runPositions,
}

func init() {
	f := positionsCmd.Flags()
	f.IntVar(&positionsPlayer, "player", 0, "only player 1 or 2")
	f.Float64Var(&positionsFrom, "from", 0, "only positions at or after this many seconds")
	f.Float64Var(&positionsTo, "to", 0, "only positions at or before this many seconds")
	f.StringVarP(&positionsOut, "out", "o", "", "write CSV to this file instead of stdout")
	f.StringVar(&positionsPlot, "plot", "", "render player trails to this image file (.png, .svg, .pdf)")
}

// positionFilter builds the storage filter from --player, --from and --to.
func positionFilter(cmd *cobra.Command) (storage.PositionFilter, error) {
	var f storage.PositionFilter
	switch positionsPlayer {
	case 0:
	case 1, 2:
		f.Identity = model.Identity(positionsPlayer)
	default:
		return f, fmt.Errorf("--player must be 1 or 2, got %d", positionsPlayer)
	}
	if cmd.Flags().Changed("from") {
		f.From = &positionsFrom
	}
	if cmd.Flags().Changed("to") {
		f.To = &positionsTo
	}
	return f, nil
}

// framesFromRows regroups time-ordered rows into projected frames.
func framesFromRows(rows []storage.PositionRow) []model.ProjectedFrame {
	var out []model.ProjectedFrame
	for _, r := range rows {
		if n := len(out); n == 0 || out[n-1].Timestamp != r.Timestamp {
			out = append(out, model.ProjectedFrame{
				Timestamp: r.Timestamp,
				Seconds:   r.Seconds,
				Positions: make(map[model.Identity]model.Point, 2),
			})
		}
		out[len(out)-1].Positions[r.Identity] = r.Point
	}
	return out
}

func runPositions(cmd *cobra.Command, args []string) error {
	filter, err := positionFilter(cmd)
	if err != nil {
		return err
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	m, err := db.GetMatchByPrefix(args[0])
	if err != nil {
		return fmt.Errorf("query match: %w", err)
	}
	if m == nil {
		return fmt.Errorf("no match found with hash prefix %q", args[0])
	}

	rows, err := db.GetPositions(m.Hash, filter)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}
	if len(rows) == 0 {
		cWarn.Fprintln(os.Stderr, "no positions match the given filters")
	}

	if positionsPlot != "" {
		opts := render.Options{Title: fmt.Sprintf("%s player trails", m.MatchID)}
		if err := render.Positions(framesFromRows(rows), positionsPlot, opts); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s (%d positions)\n", positionsPlot, len(rows))
		return nil
	}

	out := os.Stdout
	if positionsOut != "" {
		f, err := os.Create(positionsOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", positionsOut, err)
		}
		defer f.Close()
		out = f
	}
	if err := report.WritePositionsCSV(out, rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
