package aggregator

import (
	"github.com/pable/go-court-metrics/internal/model"
)

// MovementOptions controls ExtractMovements.
type MovementOptions struct {
	Threshold float64  // total ankle displacement, in pixels, that must be exceeded
	Start     *float64 // inclusive window bounds in seconds; nil means open
	End       *float64

	// CursorPerIdentity keeps a separate last-position cursor per identity.
	// The default shares one cursor per ankle across both players.
	CursorPerIdentity bool
}

func (o MovementOptions) inWindow(sec float64) bool {
	if o.Start != nil && sec < *o.Start {
		return false
	}
	if o.End != nil && sec > *o.End {
		return false
	}
	return true
}

type cursorKey struct {
	identity model.Identity
	joint    string
}

// ExtractMovements turns tagged frames into movement events. A frame emits an
// event when the summed displacement of its ankles since the previous sighting
// of each ankle strictly exceeds opts.Threshold. The event carries the midpoint
// of the frame's detected ankles. Skipped records are tallied in skips.
func ExtractMovements(frames []model.TaggedFrame, opts MovementOptions, skips *model.SkipCounts) []model.MovementEvent {
	if skips == nil {
		skips = &model.SkipCounts{}
	}
	last := make(map[cursorKey]model.Point, 4)
	var events []model.MovementEvent

	for _, f := range frames {
		if f.Identity == model.IdentityNone {
			skips.MissingIdentity++
			continue
		}
		if f.Timestamp == "" {
			skips.MissingTimestamp++
			continue
		}
		sec, err := model.ParseTimestamp(f.Timestamp)
		if err != nil {
			skips.MalformedTimestamp++
			continue
		}
		if !opts.inWindow(sec) {
			skips.OutsideWindow++
			continue
		}

		var (
			total  float64
			sum    model.Point
			ankles int
		)
		for _, name := range model.AnkleJoints {
			p, ok := f.Keypoints[name]
			if !ok || p.IsUndetected() {
				continue
			}
			key := cursorKey{joint: name}
			if opts.CursorPerIdentity {
				key.identity = f.Identity
			}
			if prev, seen := last[key]; seen {
				total += p.Dist(prev)
			}
			last[key] = p
			sum.X += p.X
			sum.Y += p.Y
			ankles++
		}

		if ankles == 0 || !(total > opts.Threshold) {
			skips.BelowThreshold++
			continue
		}
		events = append(events, model.MovementEvent{
			Identity:  f.Identity,
			Timestamp: f.Timestamp,
			Seconds:   sec,
			Midpoint:  model.Point{X: sum.X / float64(ankles), Y: sum.Y / float64(ankles)},
		})
	}
	return events
}
