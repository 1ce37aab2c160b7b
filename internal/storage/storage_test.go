package storage

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pable/go-court-metrics/internal/model"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// sampleRecord builds a small but complete match record.
func sampleRecord(hash, analysedAt string) MatchRecord {
	grid := model.NewHeatmapGrid(4, 3)
	grid.Cells[5] = 2.5
	return MatchRecord{
		Summary: model.MatchSummary{
			Hash: hash, MatchID: "final", AnalysedAt: analysedAt,
			NativeWidth: 1920, NativeHeight: 1080, PointCount: 4,
			Threshold: 5, PerIdentity: true, HeatmapRadius: 5, BlurKernel: 21,
			Frames: 40, Events: 3, Inliers: 4,
			Skips: model.SkipCounts{Unassigned: 1, MalformedTimestamp: 2, BelowThreshold: 30, ClampedDeltas: 1},
		},
		Layout: model.CourtLayout{
			model.RoleTopLeft:  {X: 100, Y: 10},
			model.RoleTopRight: {X: 800, Y: 10},
			model.RoleBotRight: {X: 800, Y: 710},
			model.RoleBotLeft:  {X: 100, Y: 710},
		},
		Lengths:    model.CourtLengths{TopWidth: 700, BottomWidth: 700, LeftHeight: 700, RightHeight: 700},
		Homography: [9]float64{0.9, 0, -91, 0, 1.4, -14, 0, 0, 1},
		Dwell: []model.DwellStats{
			{MatchHash: hash, Identity: model.Identity1, Quadrants: model.QuadrantTime{1, 2, 3, 4}, Distance: 120, Positions: 2},
			{MatchHash: hash, Identity: model.Identity2, Quadrants: model.QuadrantTime{0, 0, 0.5, 0}, Distance: 0, Positions: 1},
		},
		Frames: []model.ProjectedFrame{
			{Timestamp: "0.00s", Seconds: 0, Positions: map[model.Identity]model.Point{model.Identity1: {X: 10, Y: 20}}},
			{Timestamp: "0.50s", Seconds: 0.5, Positions: map[model.Identity]model.Point{
				model.Identity1: {X: 130, Y: 20},
				model.Identity2: {X: 400, Y: 900},
			}},
		},
		Heatmap: grid,
	}
}

func TestSaveMatchAndExists(t *testing.T) {
	db := openMemDB(t)

	if err := db.SaveMatch(sampleRecord("abc123", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	exists, err := db.MatchExists("abc123")
	if err != nil {
		t.Fatalf("MatchExists: %v", err)
	}
	if !exists {
		t.Error("expected match to exist after insert")
	}

	exists2, _ := db.MatchExists("nonexistent")
	if exists2 {
		t.Error("expected non-existent match to not exist")
	}
}

func TestMatchRoundTrip(t *testing.T) {
	db := openMemDB(t)
	rec := sampleRecord("deadbeef1234", "2026-01-01T10:00:00Z")
	if err := db.SaveMatch(rec); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	s, err := db.GetMatchByPrefix("deadbeef")
	if err != nil || s == nil {
		t.Fatalf("GetMatchByPrefix: %v, %v", s, err)
	}
	if diff := cmp.Diff(rec.Summary, *s); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	layout, err := db.GetLayout(s.Hash)
	if err != nil {
		t.Fatalf("GetLayout: %v", err)
	}
	if diff := cmp.Diff(rec.Layout, layout); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}

	lengths, err := db.GetLengths(s.Hash)
	if err != nil || lengths == nil {
		t.Fatalf("GetLengths: %v, %v", lengths, err)
	}
	if *lengths != rec.Lengths {
		t.Errorf("lengths: want %+v, got %+v", rec.Lengths, *lengths)
	}

	h, err := db.GetHomography(s.Hash)
	if err != nil {
		t.Fatalf("GetHomography: %v", err)
	}
	if h != rec.Homography {
		t.Errorf("homography: want %v, got %v", rec.Homography, h)
	}

	dwell, err := db.GetDwell(s.Hash)
	if err != nil {
		t.Fatalf("GetDwell: %v", err)
	}
	if diff := cmp.Diff(rec.Dwell, dwell); diff != "" {
		t.Errorf("dwell mismatch (-want +got):\n%s", diff)
	}

	grid, err := db.GetHeatmap(s.Hash)
	if err != nil || grid == nil {
		t.Fatalf("GetHeatmap: %v, %v", grid, err)
	}
	if diff := cmp.Diff(rec.Heatmap, grid); diff != "" {
		t.Errorf("heatmap mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMatchByPrefix_NotFound(t *testing.T) {
	db := openMemDB(t)
	s, err := db.GetMatchByPrefix("zzz")
	if err != nil {
		t.Fatalf("GetMatchByPrefix: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil for unknown prefix, got %+v", s)
	}
}

func TestListMatches(t *testing.T) {
	db := openMemDB(t)
	for _, r := range []MatchRecord{
		sampleRecord("h1", "2026-01-01T10:00:00Z"),
		sampleRecord("h2", "2026-02-01T10:00:00Z"),
	} {
		if err := db.SaveMatch(r); err != nil {
			t.Fatalf("SaveMatch: %v", err)
		}
	}

	list, err := db.ListMatches()
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(list))
	}
	if list[0].Hash != "h2" {
		t.Errorf("expected h2 first (newest), got %s", list[0].Hash)
	}
}

func TestGetPositions_Filters(t *testing.T) {
	db := openMemDB(t)
	if err := db.SaveMatch(sampleRecord("pos", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	all, err := db.GetPositions("pos", PositionFilter{})
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	want := []PositionRow{
		{Timestamp: "0.00s", Seconds: 0, Identity: model.Identity1, Point: model.Point{X: 10, Y: 20}},
		{Timestamp: "0.50s", Seconds: 0.5, Identity: model.Identity1, Point: model.Point{X: 130, Y: 20}},
		{Timestamp: "0.50s", Seconds: 0.5, Identity: model.Identity2, Point: model.Point{X: 400, Y: 900}},
	}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}

	from := 0.25
	p2, err := db.GetPositions("pos", PositionFilter{Identity: model.Identity2, From: &from})
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(p2) != 1 || p2[0].Identity != model.Identity2 {
		t.Errorf("filtered positions: got %+v", p2)
	}

	to := 0.25
	early, _ := db.GetPositions("pos", PositionFilter{To: &to})
	if len(early) != 1 {
		t.Errorf("expected 1 position up to 0.25s, got %d", len(early))
	}
}

// TestSaveMatchReplaces: re-saving a hash replaces every child row rather
// than accumulating duplicates or stale positions.
func TestSaveMatchReplaces(t *testing.T) {
	db := openMemDB(t)
	rec := sampleRecord("same", "2026-01-01T10:00:00Z")
	if err := db.SaveMatch(rec); err != nil {
		t.Fatalf("first SaveMatch: %v", err)
	}

	rec.Frames = rec.Frames[:1]
	rec.Dwell = rec.Dwell[:1]
	rec.Summary.Events = 1
	if err := db.SaveMatch(rec); err != nil {
		t.Fatalf("second SaveMatch: %v", err)
	}

	positions, _ := db.GetPositions("same", PositionFilter{})
	if len(positions) != 1 {
		t.Errorf("expected 1 position after replace, got %d", len(positions))
	}
	dwell, _ := db.GetDwell("same")
	if len(dwell) != 1 {
		t.Errorf("expected 1 dwell row after replace, got %d", len(dwell))
	}
	s, _ := db.GetMatchByPrefix("same")
	if s == nil || s.Events != 1 {
		t.Errorf("summary not replaced: %+v", s)
	}
}

func TestDeleteMatch(t *testing.T) {
	db := openMemDB(t)
	if err := db.SaveMatch(sampleRecord("gone", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	if err := db.DeleteMatch("gone"); err != nil {
		t.Fatalf("DeleteMatch: %v", err)
	}
	if ok, _ := db.MatchExists("gone"); ok {
		t.Error("match still present after delete")
	}
	if g, _ := db.GetHeatmap("gone"); g != nil {
		t.Error("heatmap still present after delete")
	}
	if err := db.DeleteMatch("never-existed"); err != nil {
		t.Errorf("deleting an unknown hash: %v", err)
	}
}

func TestGetOverview(t *testing.T) {
	db := openMemDB(t)
	empty, err := db.GetOverview()
	if err != nil {
		t.Fatalf("GetOverview on empty db: %v", err)
	}
	if empty.TotalMatches != 0 {
		t.Errorf("expected 0 matches, got %d", empty.TotalMatches)
	}

	db.SaveMatch(sampleRecord("a", "2026-01-01T10:00:00Z"))
	db.SaveMatch(sampleRecord("b", "2026-03-01T10:00:00Z"))

	ov, err := db.GetOverview()
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}
	if ov.TotalMatches != 2 || ov.TotalFrames != 80 || ov.TotalEvents != 6 {
		t.Errorf("unexpected totals: %+v", ov)
	}
	if ov.EarliestMatch != "2026-01-01T10:00:00Z" || ov.LatestMatch != "2026-03-01T10:00:00Z" {
		t.Errorf("unexpected range: %s to %s", ov.EarliestMatch, ov.LatestMatch)
	}
	if ov.SkippedRecords != 6 {
		t.Errorf("expected 6 skipped records (3 per match), got %d", ov.SkippedRecords)
	}
	if ov.Quadrants.Get(model.Q3) != 7 || ov.TotalPositions != 6 || ov.Distance != 240 {
		t.Errorf("unexpected dwell totals: %+v", ov)
	}
}

func TestQueryRaw(t *testing.T) {
	db := openMemDB(t)
	db.SaveMatch(sampleRecord("q", "2026-01-01T10:00:00Z"))

	cols, rows, err := db.QueryRaw("SELECT hash, frames, NULL AS \"nothing\" FROM matches")
	if err != nil {
		t.Fatalf("QueryRaw: %v", err)
	}
	if diff := cmp.Diff([]string{"hash", "frames", "nothing"}, cols); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"q", "40", "NULL"}}, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := db.QueryRaw("SELECT * FROM no_such_table"); err == nil {
		t.Error("expected error for unknown table")
	}
}
