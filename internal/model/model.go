package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Canonical flat-court template, in court units (100 units = 1 m).
const (
	CourtWidth     = 640 // 6.4 m
	CourtHeight    = 975 // 9.75 m
	CourtShortLine = 426 // mid-court reference line, from the top edge

	QuadrantSplitX = CourtWidth / 2.0
	QuadrantSplitY = CourtHeight / 2.0
)

// Point is a 2D coordinate, in pixel space or court space depending on context.
type Point struct{ X, Y float64 }

// IsUndetected reports whether p is the (0,0) "not detected" sentinel.
func (p Point) IsUndetected() bool { return p.X == 0 && p.Y == 0 }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

func (p Point) String() string { return fmt.Sprintf("(%.1f, %.1f)", p.X, p.Y) }

// Role names a court corner or short-line end.
type Role string

const (
	RoleTopLeft    Role = "top_left"
	RoleTopRight   Role = "top_right"
	RoleBotLeft    Role = "bot_left"
	RoleBotRight   Role = "bot_right"
	RoleShortLeft  Role = "short_left"
	RoleShortRight Role = "short_right"
)

// CornerRoles are present in every layout; ShortRoles only in six-point layouts.
var (
	CornerRoles = []Role{RoleTopLeft, RoleTopRight, RoleBotRight, RoleBotLeft}
	ShortRoles  = []Role{RoleShortLeft, RoleShortRight}
)

// CourtLayout maps each role to a boundary point in native pixel space.
type CourtLayout map[Role]Point

// HasShortLine reports whether the layout carries the short_left/short_right pair.
func (l CourtLayout) HasShortLine() bool {
	_, okL := l[RoleShortLeft]
	_, okR := l[RoleShortRight]
	return okL && okR
}

// Roles returns the layout's roles in a stable order.
func (l CourtLayout) Roles() []Role {
	out := make([]Role, 0, len(l))
	for _, r := range append(append([]Role{}, CornerRoles...), ShortRoles...) {
		if _, ok := l[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// CourtLengths holds pixel distances between layout roles, for validation.
// The short-line fields are zero for four-point layouts.
type CourtLengths struct {
	TopWidth       float64
	BottomWidth    float64
	LeftHeight     float64
	RightHeight    float64
	ShortlineWidth float64
	TopLeftShort   float64
	BotLeftShort   float64
	BotRightShort  float64
	TopRightShort  float64
}

// Joint names emitted by the pose detector (COCO-17 order).
const (
	JointNose          = "NOSE"
	JointLeftShoulder  = "LEFT_SHOULDER"
	JointRightShoulder = "RIGHT_SHOULDER"
	JointLeftElbow     = "LEFT_ELBOW"
	JointRightElbow    = "RIGHT_ELBOW"
	JointLeftWrist     = "LEFT_WRIST"
	JointRightWrist    = "RIGHT_WRIST"
	JointLeftHip       = "LEFT_HIP"
	JointRightHip      = "RIGHT_HIP"
	JointLeftKnee      = "LEFT_KNEE"
	JointRightKnee     = "RIGHT_KNEE"
	JointLeftAnkle     = "LEFT_ANKLE"
	JointRightAnkle    = "RIGHT_ANKLE"
)

// TrackedJoints is the subset used to keep player identity continuous.
var TrackedJoints = []string{
	JointLeftAnkle, JointRightAnkle,
	JointLeftShoulder, JointRightShoulder,
	JointLeftWrist, JointRightWrist,
	JointLeftElbow, JointRightElbow,
	JointLeftKnee, JointRightKnee,
}

// AnkleJoints drive movement detection.
var AnkleJoints = []string{JointLeftAnkle, JointRightAnkle}

// KeypointFrame is one detection of one person in one video frame.
type KeypointFrame struct {
	TrackID   int    // ephemeral id from the upstream tracker
	Timestamp string // "<float>s"; empty when missing
	Keypoints map[string]Point
}

// Identity is the stable player label. IdentityNone means unassigned.
type Identity int

const (
	IdentityNone Identity = 0
	Identity1    Identity = 1
	Identity2    Identity = 2
)

// Identities lists the two assignable identities.
var Identities = []Identity{Identity1, Identity2}

func (id Identity) String() string {
	switch id {
	case Identity1:
		return "1"
	case Identity2:
		return "2"
	default:
		return "-"
	}
}

// TaggedFrame is a KeypointFrame after identity resolution.
type TaggedFrame struct {
	KeypointFrame
	Identity Identity
}

// MovementEvent is a significant ankle movement, in pixel space.
type MovementEvent struct {
	Identity  Identity
	Timestamp string
	Seconds   float64
	Midpoint  Point
}

// ProjectedFrame groups court-space positions sharing one timestamp.
type ProjectedFrame struct {
	Timestamp string
	Seconds   float64
	Positions map[Identity]Point
}

// Quadrant indexes a court quadrant, Q1..Q4.
type Quadrant int

const (
	Q1 Quadrant = iota + 1
	Q2
	Q3
	Q4
)

func (q Quadrant) String() string { return "Q" + strconv.Itoa(int(q)) }

// QuadrantTime holds cumulative dwell seconds per quadrant for one identity.
type QuadrantTime [4]float64

// Add accumulates dt seconds into quadrant q.
func (qt *QuadrantTime) Add(q Quadrant, dt float64) { qt[q-1] += dt }

// Get returns the seconds accumulated in quadrant q.
func (qt QuadrantTime) Get(q Quadrant) float64 { return qt[q-1] }

// Total returns the sum over all quadrants.
func (qt QuadrantTime) Total() float64 { return qt[0] + qt[1] + qt[2] + qt[3] }

// DwellStats is the per-identity temporal summary of a match.
type DwellStats struct {
	MatchHash string
	Identity  Identity
	Quadrants QuadrantTime
	Distance  float64 // court units travelled between consecutive projected positions
	Positions int
}

// HeatmapGrid is a row-major density grid in court space.
type HeatmapGrid struct {
	Width, Height int
	Cells         []float64
}

// NewHeatmapGrid returns a zeroed width x height grid.
func NewHeatmapGrid(width, height int) *HeatmapGrid {
	return &HeatmapGrid{Width: width, Height: height, Cells: make([]float64, width*height)}
}

// At returns the value of cell (x, y).
func (g *HeatmapGrid) At(x, y int) float64 { return g.Cells[y*g.Width+x] }

// Max returns the largest cell value, or 0 for an empty grid.
func (g *HeatmapGrid) Max() float64 {
	max := 0.0
	for _, v := range g.Cells {
		if v > max {
			max = v
		}
	}
	return max
}

// NonZero returns the number of cells with a positive value.
func (g *HeatmapGrid) NonZero() int {
	n := 0
	for _, v := range g.Cells {
		if v > 0 {
			n++
		}
	}
	return n
}

// SkipCounts tallies records dropped by non-fatal checks.
type SkipCounts struct {
	Unassigned         int // no valid keypoints and nothing resolvable in the lookahead
	MissingIdentity    int
	MissingTimestamp   int
	MalformedTimestamp int
	OutsideWindow      int
	BelowThreshold     int
	ClampedDeltas      int // negative timestamp deltas clamped to zero
}

// Malformed returns the number of records dropped for missing or unusable
// data. Window and threshold filtering are not counted.
func (s SkipCounts) Malformed() int {
	return s.Unassigned + s.MissingIdentity + s.MissingTimestamp + s.MalformedTimestamp
}

// MatchSummary is a lightweight record for list/show commands.
type MatchSummary struct {
	Hash          string
	MatchID       string
	AnalysedAt    string
	NativeWidth   int
	NativeHeight  int
	PointCount    int
	Threshold     float64
	Frames        int
	Events        int
	Inliers       int
	Skips         SkipCounts
	PerIdentity   bool
	HeatmapRadius int
	BlurKernel    int
}

// ParseTimestamp parses a "<float>s" timestamp into seconds. NaN and
// infinite values are rejected.
func ParseTimestamp(ts string) (float64, error) {
	if ts == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	v, err := strconv.ParseFloat(strings.TrimRight(ts, "s"), 64)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse timestamp %q: not a finite number", ts)
	}
	return v, nil
}

// FormatTimestamp renders seconds in the pose stream's "%.2fs" form.
func FormatTimestamp(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 2, 64) + "s"
}
