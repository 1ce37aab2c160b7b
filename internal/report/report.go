package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-court-metrics/internal/model"
	"github.com/pable/go-court-metrics/internal/storage"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// PrintMatchSummary prints a one-line summary header for the match.
func PrintMatchSummary(w io.Writer, s model.MatchSummary) {
	cursor := "shared"
	if s.PerIdentity {
		cursor = "per-identity"
	}
	fmt.Fprintf(w, "\nMatch: %s  |  Analysed: %s  |  Video: %dx%d  |  Bounds: %d pts  |  Hash: %s\n",
		s.MatchID, s.AnalysedAt, s.NativeWidth, s.NativeHeight, s.PointCount, shortHash(s.Hash))
	fmt.Fprintf(w, "Frames: %d  |  Movements: %d  |  Inliers: %d  |  Threshold: %.1fpx (%s cursor)  |  Heatmap: r=%d k=%d\n\n",
		s.Frames, s.Events, s.Inliers, s.Threshold, cursor, s.HeatmapRadius, s.BlurKernel)
}

// PrintLayoutTable prints each resolved role with its native pixel position.
func PrintLayoutTable(w io.Writer, layout model.CourtLayout) {
	table := newTable(w)
	table.Header("ROLE", "X", "Y")
	for _, r := range layout.Roles() {
		p := layout[r]
		table.Append(string(r), fmt.Sprintf("%.1f", p.X), fmt.Sprintf("%.1f", p.Y))
	}
	table.Render()
}

// PrintLengthsTable prints pixel distances between layout roles. Short-line
// rows are omitted for four-point layouts.
func PrintLengthsTable(w io.Writer, l model.CourtLengths, shortLine bool) {
	table := newTable(w)
	table.Header("SEGMENT", "PIXELS")
	rows := []struct {
		name string
		v    float64
	}{
		{"top_width", l.TopWidth},
		{"bottom_width", l.BottomWidth},
		{"left_height", l.LeftHeight},
		{"right_height", l.RightHeight},
	}
	if shortLine {
		rows = append(rows, []struct {
			name string
			v    float64
		}{
			{"shortline_width", l.ShortlineWidth},
			{"tl_short_left", l.TopLeftShort},
			{"bl_short_left", l.BotLeftShort},
			{"br_short_right", l.BotRightShort},
			{"tr_short_right", l.TopRightShort},
		}...)
	}
	for _, r := range rows {
		table.Append(r.name, fmt.Sprintf("%.1f", r.v))
	}
	table.Render()
}

// PrintDwellTable prints per-identity dwell seconds by quadrant, with each
// quadrant's share of the identity's tracked time and the distance covered.
func PrintDwellTable(w io.Writer, dwell []model.DwellStats) {
	table := newTable(w)
	table.Header("PLAYER", "Q1", "Q2", "Q3", "Q4", "TOTAL", "DIST_M", "POSITIONS")
	for _, d := range dwell {
		total := d.Quadrants.Total()
		cells := []any{d.Identity.String()}
		for _, q := range []model.Quadrant{model.Q1, model.Q2, model.Q3, model.Q4} {
			cells = append(cells, dwellCell(d.Quadrants.Get(q), total))
		}
		cells = append(cells,
			fmt.Sprintf("%.2fs", total),
			fmt.Sprintf("%.1f", d.Distance/100),
			strconv.Itoa(d.Positions),
		)
		table.Append(cells...)
	}
	table.Render()
}

func dwellCell(sec, total float64) string {
	if total <= 0 {
		return fmt.Sprintf("%.2fs", sec)
	}
	return fmt.Sprintf("%.2fs (%.0f%%)", sec, 100*sec/total)
}

// PrintSkipTable prints non-zero skip counters. Nothing is printed when
// every counter is zero.
func PrintSkipTable(w io.Writer, s model.SkipCounts) {
	rows := []struct {
		name string
		n    int
	}{
		{"unassigned frames", s.Unassigned},
		{"missing identity", s.MissingIdentity},
		{"missing timestamp", s.MissingTimestamp},
		{"malformed timestamp", s.MalformedTimestamp},
		{"outside window", s.OutsideWindow},
		{"below threshold", s.BelowThreshold},
		{"clamped deltas", s.ClampedDeltas},
	}
	var nonZero bool
	for _, r := range rows {
		nonZero = nonZero || r.n > 0
	}
	if !nonZero {
		return
	}
	table := newTable(w)
	table.Header("SKIPPED", "COUNT")
	for _, r := range rows {
		if r.n > 0 {
			table.Append(r.name, strconv.Itoa(r.n))
		}
	}
	table.Render()
}

// PrintMatchList prints one row per stored match.
func PrintMatchList(w io.Writer, matches []model.MatchSummary) {
	table := newTable(w)
	table.Header("HASH", "MATCH", "ANALYSED", "VIDEO", "PTS", "FRAMES", "MOVES", "SKIPPED")
	for _, m := range matches {
		table.Append(
			shortHash(m.Hash),
			m.MatchID,
			m.AnalysedAt,
			fmt.Sprintf("%dx%d", m.NativeWidth, m.NativeHeight),
			strconv.Itoa(m.PointCount),
			strconv.Itoa(m.Frames),
			strconv.Itoa(m.Events),
			strconv.Itoa(m.Skips.Malformed()),
		)
	}
	table.Render()
}

// PrintOverview prints the database-wide summary.
func PrintOverview(w io.Writer, ov storage.Overview) {
	fmt.Fprintf(w, "\n=== Database Summary ===\n\n")
	fmt.Fprintf(w, "  Matches stored : %d\n", ov.TotalMatches)
	fmt.Fprintf(w, "  Analysed       : %s → %s\n", ov.EarliestMatch, ov.LatestMatch)
	fmt.Fprintf(w, "  Frames         : %d (%d skipped)\n", ov.TotalFrames, ov.SkippedRecords)
	fmt.Fprintf(w, "  Movements      : %d\n", ov.TotalEvents)
	fmt.Fprintf(w, "  Positions      : %d\n", ov.TotalPositions)
	fmt.Fprintf(w, "  Distance       : %.1f m\n", ov.Distance/100)

	fmt.Fprintf(w, "\n--- Court time ---\n\n")
	table := newTable(w)
	table.Header("QUADRANT", "SECONDS", "SHARE")
	total := ov.Quadrants.Total()
	for _, q := range []model.Quadrant{model.Q1, model.Q2, model.Q3, model.Q4} {
		share := "—"
		if total > 0 {
			share = fmt.Sprintf("%.0f%%", 100*ov.Quadrants.Get(q)/total)
		}
		table.Append(q.String(), fmt.Sprintf("%.2f", ov.Quadrants.Get(q)), share)
	}
	table.Render()
}

// WritePositionsCSV writes projected positions as timestamp,seconds,player,x,y.
func WritePositionsCSV(w io.Writer, rows []storage.PositionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "seconds", "player", "x", "y"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp,
			strconv.FormatFloat(r.Seconds, 'f', 2, 64),
			r.Identity.String(),
			strconv.FormatFloat(r.Point.X, 'f', 2, 64),
			strconv.FormatFloat(r.Point.Y, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
