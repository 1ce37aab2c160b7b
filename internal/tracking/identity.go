// Package tracking turns the pose detector's ephemeral tracker ids into a
// stable two-player identity using spatial continuity of tracked joints.
package tracking

import (
	"math"

	"github.com/pable/go-court-metrics/internal/model"
)

// JointSet maps a tracked joint name to its pixel position.
type JointSet map[string]model.Point

// PlayerState is Unbound until the player's first valid frame, then Bound
// with the joints last attributed to that player.
type PlayerState struct {
	Bound bool
	Last  JointSet
}

// State is the resolver state for both identities.
type State struct {
	Players [2]PlayerState
}

func (s State) player(id model.Identity) PlayerState { return s.Players[id-1] }

// Observation is what the resolver sees for one frame: its own valid joints
// and, when it has none, the valid joints of the first usable frame within
// the lookahead (nil if none was found).
type Observation struct {
	Valid  JointSet
	Future JointSet
}

// ValidJoints returns the tracked joints of a frame that were detected.
func ValidJoints(f model.KeypointFrame) JointSet {
	out := make(JointSet)
	for _, name := range model.TrackedJoints {
		p, ok := f.Keypoints[name]
		if !ok || p.IsUndetected() {
			continue
		}
		out[name] = p
	}
	return out
}

// Transition advances the state by one observation and returns the identity
// it resolves to, or IdentityNone.
//
// Ties go to identity 2: identity 1 wins only when strictly closer.
func Transition(s State, obs Observation) (State, model.Identity) {
	if len(obs.Valid) == 0 {
		if len(obs.Future) == 0 {
			return s, model.IdentityNone
		}
		p1, p2 := s.player(model.Identity1), s.player(model.Identity2)
		if !p1.Bound && !p2.Bound {
			return s, model.IdentityNone
		}
		d1, d2 := math.Inf(1), math.Inf(1)
		if p1.Bound {
			d1 = closestJoint(obs.Future, p1.Last)
		}
		if p2.Bound {
			d2 = closestJoint(obs.Future, p2.Last)
		}
		// The frame itself has no geometry, so state is left as is.
		if d1 < d2 {
			return s, model.Identity1
		}
		return s, model.Identity2
	}

	next := s
	for _, id := range model.Identities {
		if !s.player(id).Bound {
			next.Players[id-1] = PlayerState{Bound: true, Last: obs.Valid}
			return next, id
		}
	}

	id := model.Identity2
	if closestJoint(obs.Valid, s.Players[0].Last) < closestJoint(obs.Valid, s.Players[1].Last) {
		id = model.Identity1
	}
	next.Players[id-1] = PlayerState{Bound: true, Last: obs.Valid}
	return next, id
}

// closestJoint is the smallest per-joint distance over joints present in
// both sets, or +Inf when they share none. A single stable joint is enough
// to keep continuity through partial occlusion.
func closestJoint(a, b JointSet) float64 {
	best := math.Inf(1)
	for _, name := range model.TrackedJoints {
		pa, okA := a[name]
		pb, okB := b[name]
		if !okA || !okB {
			continue
		}
		best = math.Min(best, pa.Dist(pb))
	}
	return best
}

// Resolver assigns identities to a complete, ordered frame sequence.
type Resolver struct {
	Lookahead int // frames scanned ahead for a frame with no valid joints
}

// NewResolver returns a resolver scanning lookahead frames ahead.
func NewResolver(lookahead int) *Resolver {
	return &Resolver{Lookahead: lookahead}
}

// Resolve tags every frame, in arrival order, with its identity. The second
// return value counts frames left unassigned.
func (r *Resolver) Resolve(frames []model.KeypointFrame) ([]model.TaggedFrame, int) {
	valid := make([]JointSet, len(frames))
	for i, f := range frames {
		valid[i] = ValidJoints(f)
	}

	var (
		state      State
		unassigned int
	)
	out := make([]model.TaggedFrame, len(frames))
	for i, f := range frames {
		obs := Observation{Valid: valid[i]}
		if len(obs.Valid) == 0 {
			for j := i + 1; j <= i+r.Lookahead && j < len(frames); j++ {
				if len(valid[j]) > 0 {
					obs.Future = valid[j]
					break
				}
			}
		}
		var id model.Identity
		state, id = Transition(state, obs)
		if id == model.IdentityNone {
			unassigned++
		}
		out[i] = model.TaggedFrame{KeypointFrame: f, Identity: id}
	}
	return out, unassigned
}
