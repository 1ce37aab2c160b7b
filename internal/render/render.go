// Package render draws stored match analytics as PNG images over the flat
// court template.
package render

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pable/go-court-metrics/internal/model"
)

// Options controls image output.
type Options struct {
	Title string
	Cell  int       // court units per rendered heatmap cell; <= 0 means 5
	Width vg.Length // image width; height follows the court aspect ratio. <= 0 means 4 inches
}

func (o Options) cell() int {
	if o.Cell <= 0 {
		return 5
	}
	return o.Cell
}

func (o Options) size() (vg.Length, vg.Length) {
	w := o.Width
	if w <= 0 {
		w = 4 * vg.Inch
	}
	return w, w * vg.Length(model.CourtHeight) / vg.Length(model.CourtWidth)
}

var (
	lineColor     = color.RGBA{R: 255, G: 215, A: 255}
	identityColor = map[model.Identity]color.Color{
		model.Identity1: color.RGBA{B: 220, A: 255},
		model.Identity2: color.RGBA{R: 220, A: 255},
	}
)

// courtLines returns the court outline, the short line, the half-court line
// and the service boxes, in court units.
func courtLines() []plotter.XYs {
	const (
		w     = model.CourtWidth
		h     = model.CourtHeight
		short = 549
		box   = 709
	)
	return []plotter.XYs{
		{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}, {X: 0, Y: 0}},
		{{X: 0, Y: short}, {X: w, Y: short}},
		{{X: w / 2, Y: short}, {X: w / 2, Y: h}},
		{{X: w / 4, Y: short}, {X: w / 4, Y: box}},
		{{X: 3 * w / 4, Y: short}, {X: 3 * w / 4, Y: box}},
		{{X: 0, Y: box}, {X: w / 4, Y: box}},
		{{X: 3 * w / 4, Y: box}, {X: w, Y: box}},
	}
}

// newCourtPlot returns a plot framed on the court, with y growing downward
// as it does in court space.
func newCourtPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (cm)"
	p.Y.Label.Text = "y (cm)"
	p.X.Min, p.X.Max = 0, model.CourtWidth
	p.Y.Min, p.Y.Max = 0, model.CourtHeight
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	return p
}

func addCourtLines(p *plot.Plot) error {
	for _, pts := range courtLines() {
		l, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("court line: %w", err)
		}
		l.Color = lineColor
		l.Width = vg.Points(1.5)
		p.Add(l)
	}
	return nil
}

// Normalise rescales grid values to [0, 1] by min-max. A flat grid maps to zero.
func Normalise(g *model.HeatmapGrid) *model.HeatmapGrid {
	out := model.NewHeatmapGrid(g.Width, g.Height)
	if len(g.Cells) == 0 {
		return out
	}
	lo, hi := g.Cells[0], g.Cells[0]
	for _, v := range g.Cells {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi == lo {
		return out
	}
	for i, v := range g.Cells {
		out.Cells[i] = (v - lo) / (hi - lo)
	}
	return out
}

// binnedGrid exposes a HeatmapGrid to plotter.HeatMap, averaging cell x cell
// blocks so the image stays small.
type binnedGrid struct {
	g    *model.HeatmapGrid
	cell int
}

func (b binnedGrid) Dims() (c, r int) {
	return (b.g.Width + b.cell - 1) / b.cell, (b.g.Height + b.cell - 1) / b.cell
}

func (b binnedGrid) Z(c, r int) float64 {
	var sum float64
	var n int
	for y := r * b.cell; y < min((r+1)*b.cell, b.g.Height); y++ {
		for x := c * b.cell; x < min((c+1)*b.cell, b.g.Width); x++ {
			sum += b.g.At(x, y)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (b binnedGrid) X(c int) float64 { return (float64(c) + 0.5) * float64(b.cell) }
func (b binnedGrid) Y(r int) float64 { return (float64(r) + 0.5) * float64(b.cell) }

// Heatmap renders a density grid, min-max normalised with a hot colour map,
// under the court lines and saves it to path. The file format follows the
// extension.
func Heatmap(g *model.HeatmapGrid, path string, opts Options) error {
	if g == nil || g.Width == 0 || g.Height == 0 {
		return fmt.Errorf("render heatmap: empty grid")
	}
	p := newCourtPlot(opts.Title)

	hm := plotter.NewHeatMap(binnedGrid{g: Normalise(g), cell: opts.cell()}, palette.Heat(256, 1))
	hm.Min, hm.Max = 0, 1
	p.Add(hm)
	if err := addCourtLines(p); err != nil {
		return err
	}

	w, h := opts.size()
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// Positions draws each identity's projected trail over the court lines and
// saves it to path.
func Positions(frames []model.ProjectedFrame, path string, opts Options) error {
	p := newCourtPlot(opts.Title)
	if err := addCourtLines(p); err != nil {
		return err
	}

	for _, id := range model.Identities {
		var pts plotter.XYs
		for _, f := range frames {
			if pt, ok := f.Positions[id]; ok {
				pts = append(pts, plotter.XY{X: pt.X, Y: pt.Y})
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("trail for identity %s: %w", id, err)
		}
		line.Color = identityColor[id]
		line.Width = vg.Points(1)
		points.Color = identityColor[id]
		points.Radius = vg.Points(1.5)
		p.Add(line, points)
		p.Legend.Add("player "+id.String(), line, points)
	}
	p.Legend.Top = true

	w, h := opts.size()
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	return nil
}
