package aggregator

import (
	"github.com/pable/go-court-metrics/internal/model"
)

// Classify returns the court quadrant containing p. Points on a split line
// belong to the left or top side.
func Classify(p model.Point) model.Quadrant {
	right := p.X > model.QuadrantSplitX
	bottom := p.Y > model.QuadrantSplitY
	switch {
	case right && bottom:
		return model.Q1
	case bottom:
		return model.Q2
	case right:
		return model.Q4
	default:
		return model.Q3
	}
}

// AccumulateDwell walks projected frames in order and credits each identity
// present at a timestamp with the time elapsed since the previous timestamp,
// in that identity's current quadrant. The first frame contributes zero.
// Negative deltas are clamped to zero and counted in skips.ClampedDeltas.
//
// Distance is the court-space path length between an identity's consecutive
// projected positions.
func AccumulateDwell(frames []model.ProjectedFrame, skips *model.SkipCounts) []model.DwellStats {
	if skips == nil {
		skips = &model.SkipCounts{}
	}
	stats := make(map[model.Identity]*model.DwellStats, 2)
	lastPos := make(map[model.Identity]model.Point, 2)
	if len(frames) == 0 {
		return nil
	}

	prev := frames[0].Seconds
	for _, f := range frames {
		dt := f.Seconds - prev
		if dt < 0 {
			skips.ClampedDeltas++
			dt = 0
		}
		for _, id := range model.Identities {
			p, ok := f.Positions[id]
			if !ok {
				continue
			}
			s := stats[id]
			if s == nil {
				s = &model.DwellStats{Identity: id}
				stats[id] = s
			}
			s.Quadrants.Add(Classify(p), dt)
			if lp, seen := lastPos[id]; seen {
				s.Distance += p.Dist(lp)
			}
			lastPos[id] = p
			s.Positions++
		}
		prev = f.Seconds
	}

	out := make([]model.DwellStats, 0, len(stats))
	for _, id := range model.Identities {
		if s, ok := stats[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}
