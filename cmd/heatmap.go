package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/pable/go-court-metrics/internal/render"
	"github.com/pable/go-court-metrics/internal/storage"
)

var (
	heatmapOut   string
	heatmapCell  int
	heatmapWidth float64
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap <hash-prefix>",
	Short: "Render a match's position heatmap over the court",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeatmap,
}

func init() {
	heatmapCmd.Flags().StringVarP(&heatmapOut, "out", "o", "heatmap.png", "output image (.png, .svg, .pdf)")
	heatmapCmd.Flags().IntVar(&heatmapCell, "cell", 5, "court units per rendered cell")
	heatmapCmd.Flags().Float64Var(&heatmapWidth, "width-in", 4, "image width in inches")
}

func runHeatmap(cmd *cobra.Command, args []string) error {
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
	grid, err := db.GetHeatmap(m.Hash)
	if err != nil {
		return fmt.Errorf("get heatmap: %w", err)
	}
	if grid == nil {
		return fmt.Errorf("match %s has no stored heatmap", m.Hash[:12])
	}
	if grid.Max() == 0 {
		cWarn.Fprintln(os.Stderr, "warning: heatmap is empty, no movements were projected")
	}

	opts := render.Options{
		Title: fmt.Sprintf("%s heatmap", m.MatchID),
		Cell:  heatmapCell,
		Width: vg.Length(heatmapWidth) * vg.Inch,
	}
	if err := render.Heatmap(grid, heatmapOut, opts); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", heatmapOut)
	return nil
}
