package viz

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ocml-project/ocviz/grid"
	"github.com/ocml-project/ocviz/model"
)

// Trajectory is an optional scatter overlay showing where adversarial
// sampling started (Q0) and where it currently sits (Qt).
type Trajectory struct {
	Q0 [][]float64
	Qt [][]float64
}

// ContourOptions configures Contour2D.
type ContourOptions struct {
	// Histogram adds a second panel with the score histogram.
	Histogram bool

	// Trajectory overlays sampling start/end points when non-nil.
	Trajectory *Trajectory

	// Upload records the figure and weights with the tracker.
	Upload bool

	// BarHeight is the height of the margin annotations in the
	// histogram panel.
	BarHeight float64

	// Contours is the number of level-set lines.
	Contours int

	// Resolution is the grid point count per axis.
	Resolution int

	// Bins is the histogram bin count.
	Bins int
}

// DefaultContourOptions mirrors the defaults of the research workflow
// this package grew out of.
func DefaultContourOptions() ContourOptions {
	return ContourOptions{
		Histogram:  true,
		Upload:     true,
		BarHeight:  1.0,
		Contours:   20,
		Resolution: 300,
		Bins:       40,
	}
}

// Contour2D renders the model's level sets over the domain with the
// in-distribution set P scattered on top, plus an optional score
// histogram annotated with the loss margin. It persists the model
// weights, optionally records weights and figure with the tracker,
// and returns the figure path.
func Contour2D(m model.Model, loss MarginLoss, P [][]float64, domain grid.Domain, out Output, opts ContourOptions) (string, error) {
	field, err := grid.Sample2D(m, domain, opts.Resolution)
	if err != nil {
		return "", err
	}

	left, err := contourPanel(field, P, opts)
	if err != nil {
		return "", err
	}
	plots := []*plot.Plot{left}

	if opts.Histogram {
		right, err := scoreHistPanel(m, loss, P, opts)
		if err != nil {
			return "", err
		}
		plots = append(plots, right)
	}

	path := out.imagePath("contour.png")
	width := vg.Length(len(plots)) * 5 * vg.Inch
	if err := writeTiled(plots, width, 5*vg.Inch, path); err != nil {
		return "", err
	}

	if err := saveWeights(m, out, opts.Upload); err != nil {
		return "", err
	}
	if opts.Upload {
		if err := out.tracker().SaveArtifact(path); err != nil {
			return "", fmt.Errorf("track contour figure: %w", err)
		}
	}
	display(path)
	return path, nil
}

// contourPanel draws the filled field with contour lines and the
// point overlays.
func contourPanel(field *grid.Field2D, P [][]float64, opts ContourOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Level Sets"

	g := fieldGrid{f: field}
	pal := moreland.SmoothBlueRed().Palette(255)
	p.Add(plotter.NewHeatMap(g, pal))

	min, max := field.MinMax()
	if levels := contourLevels(min, max, opts.Contours); levels != nil {
		p.Add(plotter.NewContour(g, levels, moreland.BlackBody().Palette(len(levels))))
	}

	if err := addScatter(p, P, color.NRGBA{A: 255}, vg.Points(1.5), nil); err != nil {
		return nil, err
	}
	if opts.Trajectory != nil {
		red := color.NRGBA{R: 200, A: 255}
		if err := addScatter(p, opts.Trajectory.Qt, red, vg.Points(1.5), nil); err != nil {
			return nil, err
		}
		if err := addScatter(p, opts.Trajectory.Q0, red, vg.Points(1.5), draw.CrossGlyph{}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// scoreHistPanel draws overlapping score histograms with the margin
// band annotations.
func scoreHistPanel(m model.Model, loss MarginLoss, P [][]float64, opts ContourOptions) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Score Histogram"

	scores, err := m.Predict(P)
	if err != nil {
		return nil, fmt.Errorf("predict in-distribution scores: %w", err)
	}
	if err := addHist(p, scores, color.NRGBA{G: 160, A: 190}, opts.Bins); err != nil {
		return nil, err
	}

	if opts.Trajectory != nil && len(opts.Trajectory.Qt) > 0 {
		qtScores, err := m.Predict(opts.Trajectory.Qt)
		if err != nil {
			return nil, fmt.Errorf("predict trajectory scores: %w", err)
		}
		if err := addHist(p, qtScores, color.NRGBA{R: 255, G: 165, A: 190}, opts.Bins); err != nil {
			return nil, err
		}
	}

	margin := loss.Margin()
	h := opts.BarHeight

	// Shaded accept/reject bands around zero.
	if err := addBand(p, 0, margin, h, color.NRGBA{A: 77}); err != nil {
		return nil, err
	}
	if err := addBand(p, -margin, 0, h, color.NRGBA{R: 186, G: 85, B: 211, A: 77}); err != nil {
		return nil, err
	}

	// Margin boundaries and the zero level.
	for _, mark := range []struct {
		x float64
		c color.NRGBA
	}{
		{x: margin, c: color.NRGBA{B: 255, A: 255}},
		{x: 0, c: color.NRGBA{A: 255}},
		{x: -margin, c: color.NRGBA{R: 255, A: 255}},
	} {
		if err := addVLine(p, mark.x, h, mark.c, nil); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func contourLevels(min, max float64, n int) []float64 {
	if n < 1 || !(max > min) {
		return nil
	}
	levels := make([]float64, n)
	step := (max - min) / float64(n+1)
	for i := range levels {
		levels[i] = min + step*float64(i+1)
	}
	return levels
}

func addScatter(p *plot.Plot, points [][]float64, c color.Color, radius vg.Length, shape draw.GlyphDrawer) error {
	if len(points) == 0 {
		return nil
	}
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		if len(pt) < 2 {
			return fmt.Errorf("scatter point %d has %d coordinates, want 2", i, len(pt))
		}
		xys[i] = plotter.XY{X: pt[0], Y: pt[1]}
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = radius
	if shape != nil {
		s.GlyphStyle.Shape = shape
	}
	p.Add(s)
	return nil
}

// addHist draws a probability-normalized histogram. The values are
// binned here with a clamped index so a maximum sitting exactly on the
// upper edge lands in the last bin instead of overflowing.
func addHist(p *plot.Plot, scores []float64, c color.NRGBA, bins int) error {
	if len(scores) == 0 || bins < 1 {
		return fmt.Errorf("histogram needs scores and a positive bin count, got %d scores in %d bins", len(scores), bins)
	}
	lo := floats.Min(scores)
	hi := floats.Max(scores)
	if !(hi > lo) {
		hi = lo + 1
	}
	width := (hi - lo) / float64(bins)

	weights := make([]float64, bins)
	for _, v := range scores {
		weights[binIndex(v, lo, width, bins)]++
	}
	hbins := make([]plotter.HistogramBin, bins)
	for i := range hbins {
		hbins[i] = plotter.HistogramBin{
			Min:    lo + width*float64(i),
			Max:    lo + width*float64(i+1),
			Weight: weights[i],
		}
	}

	h := &plotter.Histogram{
		Bins:      hbins,
		Width:     hi - lo,
		FillColor: c,
		LineStyle: plotter.DefaultLineStyle,
	}
	h.Normalize(1)
	p.Add(h)
	return nil
}

func addBand(p *plot.Plot, x0, x1, height float64, fill color.NRGBA) error {
	poly, err := plotter.NewPolygon(plotter.XYs{
		{X: x0, Y: 0}, {X: x1, Y: 0}, {X: x1, Y: height}, {X: x0, Y: height},
	})
	if err != nil {
		return err
	}
	poly.Color = fill
	poly.LineStyle.Color = color.NRGBA{A: 255}
	poly.LineStyle.Width = vg.Points(1)
	p.Add(poly)
	return nil
}

func addVLine(p *plot.Plot, x, height float64, c color.NRGBA, dashes []vg.Length) error {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: height}})
	if err != nil {
		return err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(2)
	l.LineStyle.Dashes = dashes
	p.Add(l)
	return nil
}
