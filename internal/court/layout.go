// Package court maps user-picked court boundary points onto the canonical
// flat-court template: corner role resolution, the screen-to-court
// homography, and projection of movement events into court space.
package court

import (
	"errors"
	"fmt"
	"math"

	"github.com/pable/go-court-metrics/internal/model"
)

// ErrGeometry marks a structural failure of the court mapping. Nothing
// downstream is meaningful without a valid mapping, so callers abort the run.
var ErrGeometry = errors.New("court geometry")

// edgeTolerance is the pixel slack when picking points on the top and bottom edges.
const edgeTolerance = 10.0

// RescaleBounds converts boundary points picked in a refW x refH reference
// frame to the video's native resolution, scaling each axis independently.
func RescaleBounds(points []model.Point, refW, refH, nativeW, nativeH int) ([]model.Point, error) {
	if refW <= 0 || refH <= 0 || nativeW <= 0 || nativeH <= 0 {
		return nil, fmt.Errorf("rescale bounds: non-positive dimension (ref %dx%d, native %dx%d)", refW, refH, nativeW, nativeH)
	}
	if len(points) != 4 && len(points) != 6 {
		return nil, fmt.Errorf("rescale bounds: need 4 or 6 points, got %d", len(points))
	}
	sx := float64(nativeW) / float64(refW)
	sy := float64(nativeH) / float64(refH)
	out := make([]model.Point, len(points))
	for i, p := range points {
		out[i] = model.Point{X: p.X * sx, Y: p.Y * sy}
	}
	return out, nil
}

// ResolveLayout assigns each of 4 or 6 unordered boundary points to a court role.
func ResolveLayout(points []model.Point) (model.CourtLayout, error) {
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: boundary point %d is not finite", ErrGeometry, i)
		}
	}
	switch len(points) {
	case 6:
		return resolveSix(points)
	case 4:
		return resolveFour(points)
	default:
		return nil, fmt.Errorf("%w: need 4 or 6 boundary points, got %d", ErrGeometry, len(points))
	}
}

// resolveSix picks top_left and bot_right from the edge bands, then the
// remaining far corners by extreme y, leaving the short-line pair.
func resolveSix(points []model.Point) (model.CourtLayout, error) {
	pool := append([]model.Point(nil), points...)

	minY, maxY := pool[0].Y, pool[0].Y
	for _, p := range pool[1:] {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	layout := make(model.CourtLayout, 6)

	// top_left: smallest x among points near the top edge.
	i := pick(pool, func(p model.Point) bool { return p.Y <= minY+edgeTolerance },
		func(a, b model.Point) bool { return a.X < b.X })
	if i < 0 {
		return nil, emptyPool(model.RoleTopLeft)
	}
	layout[model.RoleTopLeft], pool = pool[i], remove(pool, i)

	// bot_right: largest x among points near the bottom edge.
	i = pick(pool, func(p model.Point) bool { return p.Y >= maxY-edgeTolerance },
		func(a, b model.Point) bool { return a.X > b.X })
	if i < 0 {
		return nil, emptyPool(model.RoleBotRight)
	}
	layout[model.RoleBotRight], pool = pool[i], remove(pool, i)

	// top_right: minimise (y, -x).
	i = pick(pool, nil, func(a, b model.Point) bool {
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X > b.X
	})
	if i < 0 {
		return nil, emptyPool(model.RoleTopRight)
	}
	layout[model.RoleTopRight], pool = pool[i], remove(pool, i)

	// bot_left: minimise (-y, x).
	i = pick(pool, nil, func(a, b model.Point) bool {
		if a.Y != b.Y {
			return a.Y > b.Y
		}
		return a.X < b.X
	})
	if i < 0 {
		return nil, emptyPool(model.RoleBotLeft)
	}
	layout[model.RoleBotLeft], pool = pool[i], remove(pool, i)

	if len(pool) != 2 {
		return nil, emptyPool(model.RoleShortLeft)
	}
	if pool[1].X < pool[0].X {
		pool[0], pool[1] = pool[1], pool[0]
	}
	layout[model.RoleShortLeft] = pool[0]
	layout[model.RoleShortRight] = pool[1]
	return layout, nil
}

// resolveFour splits points into quadrants around their centroid; each
// quadrant must hold exactly one point.
func resolveFour(points []model.Point) (model.CourtLayout, error) {
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(points))
	cy /= float64(len(points))

	buckets := make(map[model.Role][]model.Point, 4)
	for _, p := range points {
		top := p.Y < cy
		left := p.X < cx
		var r model.Role
		switch {
		case top && left:
			r = model.RoleTopLeft
		case top:
			r = model.RoleTopRight
		case left:
			r = model.RoleBotLeft
		default:
			r = model.RoleBotRight
		}
		buckets[r] = append(buckets[r], p)
	}

	layout := make(model.CourtLayout, 4)
	for _, r := range model.CornerRoles {
		if len(buckets[r]) != 1 {
			return nil, fmt.Errorf("%w: %d candidates for %s around centroid (%.1f, %.1f)",
				ErrGeometry, len(buckets[r]), r, cx, cy)
		}
		layout[r] = buckets[r][0]
	}
	return layout, nil
}

// pick returns the index of the best point passing keep (nil keeps all)
// under less, or -1 when no point qualifies. Earlier points win ties.
func pick(pool []model.Point, keep func(model.Point) bool, less func(a, b model.Point) bool) int {
	best := -1
	for i, p := range pool {
		if keep != nil && !keep(p) {
			continue
		}
		if best < 0 || less(p, pool[best]) {
			best = i
		}
	}
	return best
}

func remove(pool []model.Point, i int) []model.Point {
	out := make([]model.Point, 0, len(pool)-1)
	out = append(out, pool[:i]...)
	return append(out, pool[i+1:]...)
}

func emptyPool(r model.Role) error {
	return fmt.Errorf("%w: empty candidate pool for %s", ErrGeometry, r)
}

// ComputeLengths returns the pixel distances between layout roles.
func ComputeLengths(layout model.CourtLayout) model.CourtLengths {
	tl, tr := layout[model.RoleTopLeft], layout[model.RoleTopRight]
	bl, br := layout[model.RoleBotLeft], layout[model.RoleBotRight]
	out := model.CourtLengths{
		TopWidth:    tl.Dist(tr),
		BottomWidth: bl.Dist(br),
		LeftHeight:  tl.Dist(bl),
		RightHeight: tr.Dist(br),
	}
	if layout.HasShortLine() {
		sl, sr := layout[model.RoleShortLeft], layout[model.RoleShortRight]
		out.ShortlineWidth = sl.Dist(sr)
		out.TopLeftShort = tl.Dist(sl)
		out.BotLeftShort = bl.Dist(sl)
		out.BotRightShort = br.Dist(sr)
		out.TopRightShort = tr.Dist(sr)
	}
	return out
}
