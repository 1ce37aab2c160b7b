package court

import (
	"sort"

	"github.com/pable/go-court-metrics/internal/model"
)

// ProjectByTimestamp maps each event's midpoint into court space and groups
// the results by timestamp, ascending. A later event for the same identity
// and timestamp replaces an earlier one. Points that do not project to a
// finite position are dropped.
func ProjectByTimestamp(h *Homography, events []model.MovementEvent) []model.ProjectedFrame {
	index := make(map[string]int)
	var frames []model.ProjectedFrame
	for _, ev := range events {
		p, ok := h.Apply(ev.Midpoint)
		if !ok {
			continue
		}
		i, seen := index[ev.Timestamp]
		if !seen {
			i = len(frames)
			index[ev.Timestamp] = i
			frames = append(frames, model.ProjectedFrame{
				Timestamp: ev.Timestamp,
				Seconds:   ev.Seconds,
				Positions: make(map[model.Identity]model.Point, 2),
			})
		}
		frames[i].Positions[ev.Identity] = p
	}
	sort.SliceStable(frames, func(a, b int) bool {
		return frames[a].Seconds < frames[b].Seconds
	})
	return frames
}

// ProjectPoints maps every event's midpoint into court space as a flat list,
// for density accumulation.
func ProjectPoints(h *Homography, events []model.MovementEvent) []model.Point {
	out := make([]model.Point, 0, len(events))
	for _, ev := range events {
		if p, ok := h.Apply(ev.Midpoint); ok {
			out = append(out, p)
		}
	}
	return out
}
