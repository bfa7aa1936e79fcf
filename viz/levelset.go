package viz

import (
	"fmt"
	"image/color"
	"log"
	"math"
	"math/rand"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/ocml-project/ocviz/evaluate"
	"github.com/ocml-project/ocviz/grid"
	"github.com/ocml-project/ocviz/model"
)

// Mode selects which part of the field becomes the point cloud.
type Mode string

const (
	// ModeSurface keeps points within a tolerance band of the level.
	ModeSurface Mode = "surface"

	// ModeVolume keeps points at or above the level.
	ModeVolume Mode = "volume"

	// ModeRatio derives level and tolerance from quantiles of the
	// reference-set scores.
	ModeRatio Mode = "ratio"
)

// Backend selects the rendering path.
type Backend string

const (
	// BackendPlot writes a static PNG with three axis-aligned
	// projections of the cloud.
	BackendPlot Backend = "plot"

	// BackendECharts writes an interactive 3D scatter as HTML.
	BackendECharts Backend = "echarts"

	// BackendMesh extracts an isosurface mesh and exports it as STL.
	BackendMesh Backend = "mesh"
)

// LevelSetOptions configures LevelSet3D.
type LevelSetOptions struct {
	// Level is the target field value. Nil derives per-mode defaults
	// from the reference-set scores.
	Level *float64

	// Tol is the selection band half-width around Level. Nil derives
	// it from the reference-set score spread.
	Tol *float64

	// Domain bounds the sampling box on all three axes.
	Domain grid.Domain

	// GridRes is the lattice resolution per axis.
	GridRes int

	// MaxCloud caps the rendered cloud size; larger selections are
	// randomly subsampled to exactly this many points.
	MaxCloud int

	// Quantile drives ModeRatio.
	Quantile *float64

	// Modes lists the selections to extract, each producing its own
	// artifact and result.
	Modes []Mode

	// Backend picks the rendering path.
	Backend Backend

	// AnchorPlot adds the origin and the domain corners as reference
	// markers.
	AnchorPlot bool

	// Upload records weights and artifacts with the tracker.
	Upload bool

	// Rand drives cloud subsampling. Nil uses the shared source.
	Rand *rand.Rand
}

// DefaultLevelSetOptions extracts the ratio-mode cloud and meshes it.
func DefaultLevelSetOptions(domain grid.Domain) LevelSetOptions {
	return LevelSetOptions{
		Domain:   domain,
		GridRes:  128,
		MaxCloud: 5000,
		Modes:    []Mode{ModeRatio},
		Backend:  BackendMesh,
		Upload:   true,
	}
}

// ModeResult reports one extracted selection.
type ModeResult struct {
	Mode      Mode
	Level     float64
	Tol       float64
	CloudSize int

	// Artifact is the rendered figure or mesh path.
	Artifact string

	// FieldHistogram is the per-mode histogram of sampled field
	// values.
	FieldHistogram string
}

// LevelSet3D samples the model over a 3D lattice, selects the points
// matching each requested mode and renders them through the chosen
// backend. One result is returned per mode.
func LevelSet3D(m model.Model, points [][]float64, out Output, cfg LevelSetOptions) ([]ModeResult, error) {
	if cfg.GridRes < 2 {
		cfg.GridRes = 128
	}
	if cfg.MaxCloud < 1 {
		cfg.MaxCloud = 5000
	}
	if len(cfg.Modes) == 0 {
		cfg.Modes = []Mode{ModeRatio}
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendMesh
	}

	var inside []float64
	var insideStats evaluate.Summary
	tol := 0.0
	if cfg.Tol != nil {
		tol = *cfg.Tol
	}

	needReference := cfg.Level == nil
	for _, mode := range cfg.Modes {
		if mode == ModeRatio {
			needReference = true
		}
	}
	if needReference {
		var err error
		inside, err = m.Predict(points)
		if err != nil {
			return nil, fmt.Errorf("predict reference set: %w", err)
		}
		insideStats = evaluate.Describe(inside)
		if cfg.Level == nil && cfg.Tol == nil {
			tol = math.Max(insideStats.Max-insideStats.Mean, insideStats.Mean-insideStats.Min)
		}
		log.Printf("[P] %s tol=%.4f", insideStats, tol)
	}

	field, err := grid.Sample3D(m, cfg.Domain, cfg.GridRes)
	if err != nil {
		return nil, err
	}
	fMin, fMax := field.MinMax()
	log.Printf("[domain] min=%.4f max=%.4f", fMin, fMax)

	if err := saveWeights(m, out, cfg.Upload); err != nil {
		return nil, err
	}

	results := make([]ModeResult, 0, len(cfg.Modes))
	for _, mode := range cfg.Modes {
		target, band := tol, tol
		var selected []int

		switch mode {
		case ModeSurface:
			target = insideStats.Mean
			if cfg.Level != nil {
				target = *cfg.Level
			}
			band = tol
			selected = selectBand(field.Values, target, band)
		case ModeVolume:
			target = insideStats.Min
			if cfg.Level != nil {
				target = *cfg.Level
			}
			selected = selectAbove(field.Values, target)
		case ModeRatio:
			if cfg.Quantile == nil {
				return nil, fmt.Errorf("ratio mode requires a quantile")
			}
			q := *cfg.Quantile
			target = evaluate.Quantile(inside, q)
			band = evaluate.Quantile(inside, math.Min(1, q*1.1)) - evaluate.Quantile(inside, q*0.9)
			selected = selectBand(field.Values, target, band)
		default:
			return nil, fmt.Errorf("unknown level-set mode %q", mode)
		}

		cloud := gatherPoints(field.Points, selected)
		log.Printf("[%s] T=%.4f tol=%.4f voxels=%d", mode, target, band, len(cloud))
		if len(cloud) > cfg.MaxCloud {
			perm := permutation(len(cloud), cfg.Rand)
			capped := make([][]float64, cfg.MaxCloud)
			for i := range capped {
				capped[i] = cloud[perm[i]]
			}
			cloud = capped
		}

		histPath := out.imagePath(fmt.Sprintf("field_hist_%s.png", mode))
		if err := writeFieldHistogram(field.Values, histPath); err != nil {
			return nil, err
		}

		res := ModeResult{
			Mode:           mode,
			Level:          target,
			Tol:            band,
			CloudSize:      len(cloud),
			FieldHistogram: histPath,
		}

		anchors := anchorPoints(cfg)
		switch cfg.Backend {
		case BackendPlot:
			res.Artifact = out.imagePath(fmt.Sprintf("cloud3d_%s.png", mode))
			err = renderCloudProjections(res.Artifact, points, cloud, anchors)
		case BackendECharts:
			res.Artifact = out.imagePath(fmt.Sprintf("cloud3d_%s.html", mode))
			err = renderCloudECharts(res.Artifact, points, cloud, anchors)
		case BackendMesh:
			q := 0.0
			if cfg.Quantile != nil {
				q = *cfg.Quantile
			}
			res.Artifact = out.meshPath(fmt.Sprintf("modelnet_%.3f.stl", q))
			err = extractMesh(res.Artifact, field, target)
		default:
			err = fmt.Errorf("unknown backend %q", cfg.Backend)
		}
		if err != nil {
			return nil, err
		}

		if cfg.Upload {
			if err := out.tracker().SaveArtifact(res.Artifact); err != nil {
				return nil, fmt.Errorf("track %s artifact: %w", mode, err)
			}
		}
		display(res.Artifact)
		results = append(results, res)
	}
	return results, nil
}

func selectBand(values []float64, target, tol float64) []int {
	var out []int
	for i, v := range values {
		if math.Abs(v-target) <= tol {
			out = append(out, i)
		}
	}
	return out
}

func selectAbove(values []float64, target float64) []int {
	var out []int
	for i, v := range values {
		if v >= target {
			out = append(out, i)
		}
	}
	return out
}

func gatherPoints(points [][]float64, indices []int) [][]float64 {
	out := make([][]float64, len(indices))
	for i, idx := range indices {
		out[i] = points[idx]
	}
	return out
}

// anchorPoints returns the origin plus the eight domain corners when
// anchor plotting is enabled.
func anchorPoints(cfg LevelSetOptions) [][]float64 {
	if !cfg.AnchorPlot {
		return nil
	}
	anchors := [][]float64{{0, 0, 0}}
	bounds := []float64{cfg.Domain.Min, cfg.Domain.Max}
	for _, x := range bounds {
		for _, y := range bounds {
			for _, z := range bounds {
				anchors = append(anchors, []float64{x, y, z})
			}
		}
	}
	return anchors
}

// writeFieldHistogram plots the distribution of the sampled field
// values.
func writeFieldHistogram(values []float64, path string) error {
	p := plot.New()
	p.Title.Text = "Field Values"
	if err := addHist(p, values, color.NRGBA{B: 200, A: 190}, 40); err != nil {
		return err
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// renderCloudProjections writes a static figure with the XY, XZ and
// YZ projections of the reference points (blue), the selected cloud
// (orange) and anchors (red).
func renderCloudProjections(path string, points, cloud, anchors [][]float64) error {
	axes := []struct {
		name string
		ix   int
		iy   int
	}{
		{name: "XY", ix: 0, iy: 1},
		{name: "XZ", ix: 0, iy: 2},
		{name: "YZ", ix: 1, iy: 2},
	}

	plots := make([]*plot.Plot, 0, len(axes))
	for _, ax := range axes {
		p := plot.New()
		p.Title.Text = ax.name
		if err := addScatter(p, project(points, ax.ix, ax.iy), color.NRGBA{B: 220, A: 255}, vg.Points(1), nil); err != nil {
			return err
		}
		if err := addScatter(p, project(cloud, ax.ix, ax.iy), color.NRGBA{R: 255, G: 165, A: 255}, vg.Points(1), nil); err != nil {
			return err
		}
		if err := addScatter(p, project(anchors, ax.ix, ax.iy), color.NRGBA{R: 220, A: 255}, vg.Points(4), nil); err != nil {
			return err
		}
		plots = append(plots, p)
	}
	return writeTiled(plots, 15*vg.Inch, 5*vg.Inch, path)
}

// renderCloudECharts writes an interactive 3D scatter.
func renderCloudECharts(path string, points, cloud, anchors [][]float64) error {
	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Level Set Cloud", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Level Set Cloud", Subtitle: fmt.Sprintf("points=%d cloud=%d", len(points), len(cloud))}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	scatter.AddSeries("points", chart3DData(points), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#4363d8"}))
	scatter.AddSeries("cloud", chart3DData(cloud), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#f58231"}))
	if len(anchors) > 0 {
		scatter.AddSeries("anchors", chart3DData(anchors), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#e6194b"}))
	}

	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

func chart3DData(points [][]float64) []opts.Chart3DData {
	data := make([]opts.Chart3DData, len(points))
	for i, pt := range points {
		data[i] = opts.Chart3DData{Value: []interface{}{pt[0], pt[1], pt[2]}}
	}
	return data
}

func project(points [][]float64, ix, iy int) [][]float64 {
	out := make([][]float64, len(points))
	for i, pt := range points {
		out[i] = []float64{pt[ix], pt[iy]}
	}
	return out
}

// fieldSolid adapts the sampled field to a model3d Solid: a point is
// inside when the nearest lattice sample is at or above the level.
type fieldSolid struct {
	field *grid.Field3D
	level float64
}

func (s fieldSolid) Min() model3d.Coord3D {
	c := s.field.Coords[0]
	return model3d.XYZ(c, c, c)
}

func (s fieldSolid) Max() model3d.Coord3D {
	c := s.field.Coords[len(s.field.Coords)-1]
	return model3d.XYZ(c, c, c)
}

func (s fieldSolid) Contains(c model3d.Coord3D) bool {
	min, max := s.Min(), s.Max()
	if c.X < min.X || c.Y < min.Y || c.Z < min.Z || c.X > max.X || c.Y > max.Y || c.Z > max.Z {
		return false
	}
	ix := s.nearest(c.X)
	iy := s.nearest(c.Y)
	iz := s.nearest(c.Z)
	return s.field.At(ix, iy, iz) >= s.level
}

func (s fieldSolid) nearest(v float64) int {
	spacing := s.field.Spacing()
	idx := int(math.Round((v - s.field.Coords[0]) / spacing))
	if idx < 0 {
		idx = 0
	}
	if idx >= s.field.Resolution {
		idx = s.field.Resolution - 1
	}
	return idx
}

// extractMesh runs marching cubes over the sampled field at the given
// level and exports the mesh as STL.
func extractMesh(path string, field *grid.Field3D, level float64) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	solid := fieldSolid{field: field, level: level}
	mesh := model3d.MarchingCubesSearch(solid, field.Spacing(), 8)
	if err := mesh.SaveGroupedSTL(path); err != nil {
		return fmt.Errorf("export mesh %s: %w", path, err)
	}
	return nil
}
