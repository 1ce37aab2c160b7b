package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-court-metrics/internal/aggregator"
	"github.com/pable/go-court-metrics/internal/config"
	"github.com/pable/go-court-metrics/internal/model"
	"github.com/pable/go-court-metrics/internal/parser"
	"github.com/pable/go-court-metrics/internal/report"
	"github.com/pable/go-court-metrics/internal/storage"
)

var (
	analyzeBounds    string
	analyzeMatchID   string
	analyzeWidth     int
	analyzeHeight    int
	analyzeConfig    string
	analyzeThreshold float64
	analyzeStart     float64
	analyzeEnd       float64
	analyzePerID     bool
	analyzeForce     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <poses.msgpack|poses.json>",
	Short: "Analyse a match's pose stream and store the results",
	Long: `Resolve the court from its boundary points, track both players, and compute
quadrant dwell times, distance covered and a position heatmap.

Boundary points are 4 corners or 4 corners plus both short-line ends, picked
in a 1280x720 reference frame and given as a JSON array of [x, y] pairs.
--width/--height give the video's native resolution (default: the reference size).

Re-analysing identical inputs with the same resolution and tuning shows the
stored results unless --force is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeBounds, "bounds", "", "JSON file with court boundary points (required)")
	f.StringVar(&analyzeMatchID, "match", "", "match id (default: pose file name)")
	f.IntVar(&analyzeWidth, "width", 0, "native video width in pixels")
	f.IntVar(&analyzeHeight, "height", 0, "native video height in pixels")
	f.StringVar(&analyzeConfig, "config", "", "JSON tuning file")
	f.Float64Var(&analyzeThreshold, "threshold", config.DefaultMovementThreshold, "ankle movement threshold in pixels")
	f.Float64Var(&analyzeStart, "start", 0, "ignore frames before this many seconds")
	f.Float64Var(&analyzeEnd, "end", 0, "ignore frames after this many seconds")
	f.BoolVar(&analyzePerID, "per-identity-cursor", false, "track ankle movement separately per player")
	f.BoolVar(&analyzeForce, "force", false, "re-analyse even if the inputs are already stored")
	analyzeCmd.MarkFlagRequired("bounds")
}

// analysisConfig merges the tuning file with flags the user set explicitly.
func analysisConfig(cmd *cobra.Command) (*config.AnalysisConfig, error) {
	cfg := config.EmptyAnalysisConfig()
	if analyzeConfig != "" {
		loaded, err := config.LoadAnalysisConfig(analyzeConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.SetMovementThreshold(analyzeThreshold)
	}
	var start, end *float64
	if flags.Changed("start") {
		start = &analyzeStart
	}
	if flags.Changed("end") {
		end = &analyzeEnd
	}
	cfg.SetWindow(start, end)
	if flags.Changed("per-identity-cursor") {
		cfg.SetCursorPerIdentity(analyzePerID)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	posePath := args[0]

	cfg, err := analysisConfig(cmd)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	fmt.Fprintf(os.Stdout, "Reading %s...\n", posePath)
	in, err := parser.Load(posePath, analyzeBounds, analyzeMatchID)
	if err != nil {
		return fmt.Errorf("load inputs: %w", err)
	}

	width, height := analyzeWidth, analyzeHeight
	refW, refH := cfg.GetReferenceSize()
	if width == 0 {
		width = refW
	}
	if height == 0 {
		height = refH
	}

	key, err := cfg.CacheKey(in.Hash, width, height)
	if err != nil {
		return fmt.Errorf("match key: %w", err)
	}
	exists, err := db.MatchExists(key)
	if err != nil {
		return fmt.Errorf("check match: %w", err)
	}
	if exists && !analyzeForce {
		fmt.Fprintf(os.Stdout, "Match %s already stored with these settings, showing cached results.\n", key[:12])
		return showByHash(os.Stdout, db, key)
	}

	match, err := aggregator.NewMatch(in.MatchID, key, in.Bounds, width, height, cfg)
	if err != nil {
		return fmt.Errorf("map court: %w", err)
	}
	res, err := aggregator.Aggregate(match, in.Frames, cfg)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	summary := model.MatchSummary{
		Hash:          key,
		MatchID:       in.MatchID,
		AnalysedAt:    time.Now().UTC().Format(time.RFC3339),
		NativeWidth:   width,
		NativeHeight:  height,
		PointCount:    len(in.Bounds),
		Threshold:     cfg.GetMovementThreshold(),
		Frames:        len(in.Frames),
		Events:        len(res.Events),
		Inliers:       match.Homography.Inliers,
		Skips:         match.Skips,
		PerIdentity:   cfg.GetCursorPerIdentity(),
		HeatmapRadius: cfg.GetHeatmapRadius(),
		BlurKernel:    cfg.GetBlurKernel(),
	}
	rec := storage.MatchRecord{
		Summary:    summary,
		Layout:     match.Layout,
		Lengths:    match.Lengths,
		Homography: match.Homography.Matrix(),
		Dwell:      res.Dwell,
		Frames:     res.Frames,
		Heatmap:    res.Heatmap,
	}
	if err := db.SaveMatch(rec); err != nil {
		return fmt.Errorf("save match: %w", err)
	}

	if n := match.Skips.Malformed(); n > 0 {
		cWarn.Fprintf(os.Stderr, "warning: %d of %d frames skipped (see table below)\n", n, len(in.Frames))
	}
	printMatch(os.Stdout, summary, match.Layout, &match.Lengths, res.Dwell)
	return nil
}

// printMatch writes the full report for one match.
func printMatch(w io.Writer, s model.MatchSummary, layout model.CourtLayout, lengths *model.CourtLengths, dwell []model.DwellStats) {
	report.PrintMatchSummary(w, s)
	report.PrintLayoutTable(w, layout)
	if lengths != nil {
		fmt.Fprintln(w)
		report.PrintLengthsTable(w, *lengths, layout.HasShortLine())
	}
	fmt.Fprintln(w)
	if len(dwell) == 0 {
		cMuted.Fprintln(w, "No player positions were projected onto the court.")
	} else {
		report.PrintDwellTable(w, dwell)
	}
	if s.Skips != (model.SkipCounts{}) {
		fmt.Fprintln(w)
		report.PrintSkipTable(w, s.Skips)
	}
}

// showByHash prints the stored report for the match whose hash starts with prefix.
func showByHash(w io.Writer, db *storage.DB, prefix string) error {
	m, err := db.GetMatchByPrefix(prefix)
	if err != nil {
		return fmt.Errorf("query match: %w", err)
	}
	if m == nil {
		return fmt.Errorf("no match found with hash prefix %q", prefix)
	}
	layout, err := db.GetLayout(m.Hash)
	if err != nil {
		return fmt.Errorf("get layout: %w", err)
	}
	lengths, err := db.GetLengths(m.Hash)
	if err != nil {
		return fmt.Errorf("get lengths: %w", err)
	}
	dwell, err := db.GetDwell(m.Hash)
	if err != nil {
		return fmt.Errorf("get dwell: %w", err)
	}
	printMatch(w, *m, layout, lengths, dwell)
	return nil
}
