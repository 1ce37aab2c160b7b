package tracking

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pable/go-court-metrics/internal/model"
)

// ankleFrame builds a frame with only the ankles detected around (x, y);
// every other joint carries the (0,0) sentinel.
func ankleFrame(trackID int, ts float64, x, y float64) model.KeypointFrame {
	kp := make(map[string]model.Point)
	for _, name := range model.TrackedJoints {
		kp[name] = model.Point{}
	}
	kp[model.JointNose] = model.Point{X: x, Y: y - 150}
	kp[model.JointLeftAnkle] = model.Point{X: x - 10, Y: y}
	kp[model.JointRightAnkle] = model.Point{X: x + 10, Y: y}
	return model.KeypointFrame{TrackID: trackID, Timestamp: model.FormatTimestamp(ts), Keypoints: kp}
}

// blankFrame has no detected tracked joints.
func blankFrame(trackID int, ts float64) model.KeypointFrame {
	kp := make(map[string]model.Point)
	for _, name := range model.TrackedJoints {
		kp[name] = model.Point{}
	}
	return model.KeypointFrame{TrackID: trackID, Timestamp: model.FormatTimestamp(ts), Keypoints: kp}
}

func identities(tagged []model.TaggedFrame) []model.Identity {
	out := make([]model.Identity, len(tagged))
	for i, f := range tagged {
		out[i] = f.Identity
	}
	return out
}

func TestValidJoints(t *testing.T) {
	f := ankleFrame(1, 0, 100, 200)
	got := ValidJoints(f)
	if len(got) != 2 {
		t.Fatalf("want 2 valid joints (ankles only), got %d: %v", len(got), got)
	}
	if _, ok := got[model.JointNose]; ok {
		t.Error("NOSE is not a tracked joint")
	}
	if len(ValidJoints(blankFrame(1, 0))) != 0 {
		t.Error("blank frame should have no valid joints")
	}
}

// TestResolve_TwoPlayersStayDistinct: A drifts <=5px per frame, B is 200px+
// away with its own drift, and the upstream tracker ids swap freely.
func TestResolve_TwoPlayersStayDistinct(t *testing.T) {
	var frames []model.KeypointFrame
	for i := 0; i < 40; i++ {
		ts := float64(i) * 0.04
		ax := 300 + float64(i)*4
		bx := 300 + float64(i)*3
		idA, idB := 7, 8
		if i%5 == 0 {
			idA, idB = idB, idA
		}
		frames = append(frames,
			ankleFrame(idA, ts, ax, 400),
			ankleFrame(idB, ts, bx, 650),
		)
	}

	tagged, unassigned := NewResolver(10).Resolve(frames)
	if unassigned != 0 {
		t.Fatalf("expected every frame assigned, %d unassigned", unassigned)
	}
	for i, f := range tagged {
		want := model.Identity1
		if i%2 == 1 {
			want = model.Identity2
		}
		if f.Identity != want {
			t.Fatalf("frame %d: want identity %s, got %s", i, want, f.Identity)
		}
	}
}

func TestResolve_FirstFramesBindInOrder(t *testing.T) {
	frames := []model.KeypointFrame{
		blankFrame(1, 0),
		ankleFrame(1, 0.1, 100, 100),
		ankleFrame(2, 0.1, 900, 100),
	}
	tagged, unassigned := NewResolver(10).Resolve(frames)
	// Nothing is bound when the blank frame looks ahead, so it stays unassigned.
	want := []model.Identity{model.IdentityNone, model.Identity1, model.Identity2}
	if diff := cmp.Diff(want, identities(tagged)); diff != "" {
		t.Errorf("identities mismatch (-want +got):\n%s", diff)
	}
	if unassigned != 1 {
		t.Errorf("want 1 unassigned, got %d", unassigned)
	}
}

func TestResolve_OcclusionUsesLookahead(t *testing.T) {
	frames := []model.KeypointFrame{
		ankleFrame(1, 0, 100, 100),
		ankleFrame(2, 0, 900, 100),
		blankFrame(3, 0.1), // occluded: next usable frame is near player 2
		blankFrame(3, 0.1),
		ankleFrame(4, 0.2, 905, 102),
		ankleFrame(5, 0.2, 102, 101),
	}
	tagged, unassigned := NewResolver(10).Resolve(frames)
	want := []model.Identity{
		model.Identity1, model.Identity2,
		model.Identity2, model.Identity2,
		model.Identity2, model.Identity1,
	}
	if diff := cmp.Diff(want, identities(tagged)); diff != "" {
		t.Errorf("identities mismatch (-want +got):\n%s", diff)
	}
	if unassigned != 0 {
		t.Errorf("want 0 unassigned, got %d", unassigned)
	}
}

func TestResolve_LookaheadBound(t *testing.T) {
	frames := []model.KeypointFrame{ankleFrame(1, 0, 100, 100), ankleFrame(2, 0, 900, 100)}
	for i := 0; i < 11; i++ {
		frames = append(frames, blankFrame(3, 0.1))
	}
	frames = append(frames, ankleFrame(4, 0.5, 100, 100))

	tagged, unassigned := NewResolver(10).Resolve(frames)
	// The first blank frame is 11 frames before the next usable one.
	if tagged[2].Identity != model.IdentityNone {
		t.Errorf("frame beyond lookahead: want unassigned, got %s", tagged[2].Identity)
	}
	// The last blank frame sees it and it is nearest identity 1.
	if tagged[12].Identity != model.Identity1 {
		t.Errorf("frame within lookahead: want 1, got %s", tagged[12].Identity)
	}
	if unassigned != 1 {
		t.Errorf("want 1 unassigned, got %d", unassigned)
	}
}

func TestResolve_LookaheadDoesNotUpdateState(t *testing.T) {
	frames := []model.KeypointFrame{
		ankleFrame(1, 0, 100, 100),
		ankleFrame(2, 0, 900, 100),
		blankFrame(3, 0.1),
		ankleFrame(4, 0.2, 495, 100), // slightly closer to identity 1
	}
	tagged, _ := NewResolver(10).Resolve(frames)
	if tagged[3].Identity != model.Identity1 {
		t.Errorf("want identity 1 from unchanged state, got %s", tagged[3].Identity)
	}
}

func TestTransition_TieGoesToIdentity2(t *testing.T) {
	s := State{Players: [2]PlayerState{
		{Bound: true, Last: JointSet{model.JointLeftAnkle: {X: 0, Y: 0}}},
		{Bound: true, Last: JointSet{model.JointLeftAnkle: {X: 20, Y: 0}}},
	}}
	next, id := Transition(s, Observation{Valid: JointSet{model.JointLeftAnkle: {X: 10, Y: 0}}})
	if id != model.Identity2 {
		t.Fatalf("tie: want identity 2, got %s", id)
	}
	if next.Players[1].Last[model.JointLeftAnkle] != (model.Point{X: 10, Y: 0}) {
		t.Error("winning side's last-known joints should be replaced")
	}
	if s.Players[1].Last[model.JointLeftAnkle] != (model.Point{X: 20, Y: 0}) {
		t.Error("Transition must not mutate the input state")
	}
}

func TestTransition_MinimumOverSharedJoints(t *testing.T) {
	// Player 1 is far on average but one ankle lines up exactly.
	s := State{Players: [2]PlayerState{
		{Bound: true, Last: JointSet{
			model.JointLeftAnkle:    {X: 100, Y: 100},
			model.JointLeftShoulder: {X: 900, Y: 900},
		}},
		{Bound: true, Last: JointSet{
			model.JointLeftAnkle:    {X: 130, Y: 100},
			model.JointLeftShoulder: {X: 130, Y: 10},
		}},
	}}
	obs := Observation{Valid: JointSet{
		model.JointLeftAnkle:    {X: 100, Y: 100},
		model.JointLeftShoulder: {X: 140, Y: 10},
	}}
	_, id := Transition(s, obs)
	if id != model.Identity1 {
		t.Errorf("want identity 1 (exact ankle match), got %s", id)
	}
}

func TestTransition_NoState(t *testing.T) {
	_, id := Transition(State{}, Observation{Future: JointSet{model.JointLeftAnkle: {X: 1, Y: 1}}})
	if id != model.IdentityNone {
		t.Errorf("both unbound: want unassigned, got %s", id)
	}
}

func TestResolve_SinglePlayerBindsBothIdentities(t *testing.T) {
	var frames []model.KeypointFrame
	for i := 0; i < 5; i++ {
		frames = append(frames, ankleFrame(1, float64(i), 100+float64(i), 100))
	}
	tagged, _ := NewResolver(10).Resolve(frames)
	want := []model.Identity{model.Identity1, model.Identity2, model.Identity2, model.Identity2, model.Identity2}
	if diff := cmp.Diff(want, identities(tagged)); diff != "" {
		t.Errorf("a single player binds both identities in turn (-want +got):\n%s", diff)
	}
}
