// Package aggregator runs the per-match analytics pipeline: identity
// resolution, movement extraction, court projection, dwell times and the
// position heatmap.
package aggregator

import (
	"fmt"

	"github.com/pable/go-court-metrics/internal/config"
	"github.com/pable/go-court-metrics/internal/court"
	"github.com/pable/go-court-metrics/internal/model"
	"github.com/pable/go-court-metrics/internal/monitoring"
	"github.com/pable/go-court-metrics/internal/tracking"
)

// Match is the per-match context passed through every stage.
type Match struct {
	ID           string
	Hash         string
	NativeWidth  int
	NativeHeight int

	Bounds     []model.Point // boundary points in native pixel space
	Layout     model.CourtLayout
	Lengths    model.CourtLengths
	Homography *court.Homography

	Skips model.SkipCounts
}

// NewMatch rescales reference-frame boundary points to the native video
// size, resolves the court layout and builds the homography. Any geometry
// failure is returned wrapping court.ErrGeometry.
func NewMatch(id, hash string, bounds []model.Point, nativeW, nativeH int, cfg *config.AnalysisConfig) (*Match, error) {
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	refW, refH := cfg.GetReferenceSize()
	native, err := court.RescaleBounds(bounds, refW, refH, nativeW, nativeH)
	if err != nil {
		return nil, fmt.Errorf("rescale bounds: %w", err)
	}
	layout, err := court.ResolveLayout(native)
	if err != nil {
		return nil, fmt.Errorf("resolve layout: %w", err)
	}
	h, err := court.BuildHomography(layout)
	if err != nil {
		return nil, fmt.Errorf("build homography: %w", err)
	}
	return &Match{
		ID:           id,
		Hash:         hash,
		NativeWidth:  nativeW,
		NativeHeight: nativeH,
		Bounds:       native,
		Layout:       layout,
		Lengths:      court.ComputeLengths(layout),
		Homography:   h,
	}, nil
}

// Result holds everything one Aggregate run produces.
type Result struct {
	Tagged  []model.TaggedFrame
	Events  []model.MovementEvent
	Frames  []model.ProjectedFrame // court-space positions by timestamp
	Dwell   []model.DwellStats
	Heatmap *model.HeatmapGrid // blurred
}

// Aggregate runs the full pipeline over one match's ordered pose frames.
// Per-record problems are counted in m.Skips and never abort the run.
func Aggregate(m *Match, frames []model.KeypointFrame, cfg *config.AnalysisConfig) (*Result, error) {
	if m == nil || m.Homography == nil {
		return nil, fmt.Errorf("match has no court mapping")
	}
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	m.Skips = model.SkipCounts{}

	// ---- Pass 1: stable identities. ----
	tagged, unassigned := tracking.NewResolver(cfg.GetLookahead()).Resolve(frames)
	m.Skips.Unassigned = unassigned

	// ---- Pass 2: significant ankle movements. ----
	events := ExtractMovements(tagged, MovementOptions{
		Threshold:         cfg.GetMovementThreshold(),
		Start:             cfg.StartTime,
		End:               cfg.EndTime,
		CursorPerIdentity: cfg.GetCursorPerIdentity(),
	}, &m.Skips)
	// Unassigned frames are already counted above.
	m.Skips.MissingIdentity -= unassigned

	// ---- Pass 3: court space. ----
	projected := court.ProjectByTimestamp(m.Homography, events)
	dwell := AccumulateDwell(projected, &m.Skips)
	for i := range dwell {
		dwell[i].MatchHash = m.Hash
	}

	raw := NewCourtHeatmap()
	Accumulate(raw, court.ProjectPoints(m.Homography, events), cfg.GetHeatmapRadius(), cfg.GetHeatmapWeight())
	heat := Blur(raw, cfg.GetBlurKernel())

	if n := m.Skips.Malformed(); n > 0 {
		monitoring.Logf("[aggregator] match %s: skipped %d records (unassigned=%d identity=%d timestamp=%d malformed=%d)",
			m.ID, n, m.Skips.Unassigned, m.Skips.MissingIdentity, m.Skips.MissingTimestamp, m.Skips.MalformedTimestamp)
	}
	if m.Skips.ClampedDeltas > 0 {
		monitoring.Logf("[aggregator] match %s: clamped %d negative timestamp deltas", m.ID, m.Skips.ClampedDeltas)
	}

	return &Result{
		Tagged:  tagged,
		Events:  events,
		Frames:  projected,
		Dwell:   dwell,
		Heatmap: heat,
	}, nil
}
