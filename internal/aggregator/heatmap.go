package aggregator

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pable/go-court-metrics/internal/model"
)

// DefaultBlurKernel is used when Blur is given a non-positive kernel size.
const DefaultBlurKernel = 21

// NewCourtHeatmap returns a zeroed grid covering the flat court.
func NewCourtHeatmap() *model.HeatmapGrid {
	return model.NewHeatmapGrid(model.CourtWidth, model.CourtHeight)
}

// Accumulate splats weight onto the (2*radius+1)^2 square of cells around
// each point, truncated to integer coordinates. Cells outside the grid are
// skipped.
func Accumulate(grid *model.HeatmapGrid, points []model.Point, radius int, weight float64) {
	if radius < 0 {
		radius = 0
	}
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			continue
		}
		cx, cy := int(math.Trunc(p.X)), int(math.Trunc(p.Y))
		x0, x1 := max(cx-radius, 0), min(cx+radius, grid.Width-1)
		y0, y1 := max(cy-radius, 0), min(cy+radius, grid.Height-1)
		for y := y0; y <= y1; y++ {
			row := grid.Cells[y*grid.Width : (y+1)*grid.Width]
			for x := x0; x <= x1; x++ {
				row[x] += weight
			}
		}
	}
}

// Blur returns a copy of grid smoothed by a separable Gaussian of the given
// odd size. Even sizes are bumped by one; non-positive sizes fall back to
// DefaultBlurKernel. Borders reflect without repeating the edge cell.
func Blur(grid *model.HeatmapGrid, kernelSize int) *model.HeatmapGrid {
	k := GaussianKernel(kernelSize)
	half := len(k) / 2
	w, h := grid.Width, grid.Height

	tmp := make([]float64, len(grid.Cells))
	for y := 0; y < h; y++ {
		row := grid.Cells[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float64
			for i, kv := range k {
				acc += kv * row[reflect101(x+i-half, w)]
			}
			tmp[y*w+x] = acc
		}
	}

	out := model.NewHeatmapGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for i, kv := range k {
				acc += kv * tmp[reflect101(y+i-half, h)*w+x]
			}
			out.Cells[y*w+x] = acc
		}
	}
	return out
}

// GaussianKernel returns the normalised 1-D kernel Blur uses for size. Sigma
// is derived from the size as 0.3*((size-1)/2 - 1) + 0.8.
func GaussianKernel(size int) []float64 {
	if size <= 0 {
		size = DefaultBlurKernel
	}
	if size%2 == 0 {
		size++
	}
	sigma := 0.3*((float64(size)-1)*0.5-1) + 0.8
	half := size / 2
	k := make([]float64, size)
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// reflect101 maps an out-of-range index back into [0, n) as gfedcb|abcdefgh|gfedcba.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}
