package court

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pable/go-court-metrics/internal/model"
)

// reprojThreshold is the maximum court-space reprojection error, in court
// units, for a correspondence to count as an inlier.
const reprojThreshold = 3.0

// FlatCourt returns the canonical court-space position of each role.
func FlatCourt() map[model.Role]model.Point {
	return map[model.Role]model.Point{
		model.RoleTopLeft:    {X: 0, Y: 0},
		model.RoleTopRight:   {X: model.CourtWidth, Y: 0},
		model.RoleBotRight:   {X: model.CourtWidth, Y: model.CourtHeight},
		model.RoleBotLeft:    {X: 0, Y: model.CourtHeight},
		model.RoleShortLeft:  {X: 0, Y: model.CourtShortLine},
		model.RoleShortRight: {X: model.CourtWidth, Y: model.CourtShortLine},
	}
}

// Homography is a 3x3 projective map from screen pixels to court space.
type Homography struct {
	m       *mat.Dense
	Inliers int
}

// NewHomography wraps a row-major 3x3 matrix, e.g. one reloaded from storage.
func NewHomography(h [9]float64, inliers int) *Homography {
	return &Homography{m: mat.NewDense(3, 3, h[:]), Inliers: inliers}
}

// Matrix returns the row-major matrix entries.
func (h *Homography) Matrix() [9]float64 {
	var out [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = h.m.At(r, c)
		}
	}
	return out
}

// Apply maps one screen point into court space. ok is false when the point
// lies on the homography's line at infinity.
func (h *Homography) Apply(p model.Point) (model.Point, bool) {
	var out mat.VecDense
	out.MulVec(h.m, mat.NewVecDense(3, []float64{p.X, p.Y, 1}))
	w := out.AtVec(2)
	q := model.Point{X: out.AtVec(0) / w, Y: out.AtVec(1) / w}
	if w == 0 || !finite(q) {
		return q, false
	}
	return q, true
}

// ApplyHomography maps every point through h: homogeneous (x, y, 1),
// left-multiplied by h and divided by the third row.
func ApplyHomography(h *Homography, points []model.Point) []model.Point {
	if len(points) == 0 {
		return nil
	}
	in := mat.NewDense(3, len(points), nil)
	for i, p := range points {
		in.Set(0, i, p.X)
		in.Set(1, i, p.Y)
		in.Set(2, i, 1)
	}
	var prod mat.Dense
	prod.Mul(h.m, in)

	out := make([]model.Point, len(points))
	for i := range points {
		w := prod.At(2, i)
		out[i] = model.Point{X: prod.At(0, i) / w, Y: prod.At(1, i) / w}
	}
	return out
}

// BuildHomography solves the screen-to-court map from the layout's role
// points to the flat-court template. It fails with ErrGeometry when fewer
// than four correspondences fit or the system is singular.
func BuildHomography(layout model.CourtLayout) (*Homography, error) {
	flat := FlatCourt()
	var src, dst []model.Point
	for _, r := range layout.Roles() {
		p := layout[r]
		if !finite(p) {
			continue
		}
		src = append(src, p)
		dst = append(dst, flat[r])
	}
	if len(src) < 4 {
		return nil, fmt.Errorf("%w: fewer than 4 valid point correspondences (got %d)", ErrGeometry, len(src))
	}

	m, err := solveDLT(src, dst)
	if err != nil {
		return nil, err
	}
	h := &Homography{m: m}

	for i, p := range ApplyHomography(h, src) {
		if finite(p) && p.Dist(dst[i]) <= reprojThreshold {
			h.Inliers++
		}
	}
	if h.Inliers < 4 {
		return nil, fmt.Errorf("%w: fewer than 4 valid point correspondences (%d inliers of %d)",
			ErrGeometry, h.Inliers, len(src))
	}
	return h, nil
}

// solveDLT is the normalised direct linear transform: each correspondence
// contributes two rows of A, and h is A's right singular vector for the
// smallest singular value.
func solveDLT(src, dst []model.Point) (*mat.Dense, error) {
	tSrc, nSrc, err := normalise(src)
	if err != nil {
		return nil, err
	}
	tDst, nDst, err := normalise(dst)
	if err != nil {
		return nil, err
	}

	n := len(src)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := nSrc[i].X, nSrc[i].Y
		u, v := nDst[i].X, nDst[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, fmt.Errorf("%w: homography solve did not converge", ErrGeometry)
	}
	values := svd.Values(nil)
	// Rank below 8 leaves the solution underdetermined.
	if values[0] == 0 || values[7]/values[0] < 1e-12 {
		return nil, fmt.Errorf("%w: homography solve is singular (degenerate correspondences)", ErrGeometry)
	}
	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, mat.Col(nil, 8, &v))
	if math.Abs(mat.Det(hn)) < 1e-10 {
		return nil, fmt.Errorf("%w: homography solve is singular (collinear correspondences)", ErrGeometry)
	}

	// H = inv(tDst) * hn * tSrc
	var tmp, h mat.Dense
	tmp.Mul(invertSimilarity(tDst), hn)
	h.Mul(&tmp, tSrc)

	if w := h.At(2, 2); math.Abs(w) > 1e-15 {
		h.Scale(1/w, &h)
	}
	return &h, nil
}

// normalise translates points to their centroid and scales them so the mean
// distance from the origin is sqrt(2), returning the similarity used.
func normalise(points []model.Point) (*mat.Dense, []model.Point, error) {
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(points))
	cy /= float64(len(points))

	var mean float64
	for _, p := range points {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= float64(len(points))
	if mean == 0 {
		return nil, nil, fmt.Errorf("%w: homography solve is singular (coincident points)", ErrGeometry)
	}

	s := math.Sqrt2 / mean
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	out := make([]model.Point, len(points))
	for i, p := range points {
		out[i] = model.Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	return t, out, nil
}

// invertSimilarity inverts a matrix produced by normalise.
func invertSimilarity(t *mat.Dense) *mat.Dense {
	s := t.At(0, 0)
	return mat.NewDense(3, 3, []float64{
		1 / s, 0, -t.At(0, 2) / s,
		0, 1 / s, -t.At(1, 2) / s,
		0, 0, 1,
	})
}

func finite(p model.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
