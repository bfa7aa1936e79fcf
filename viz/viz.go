// Package viz renders the figures a one-class training loop wants to
// see: 2D decision-boundary contours with score histograms, image
// grids of adversarial samples, OOD score histograms, and 3D
// level-set point clouds or meshes. Every entry point is a thin,
// synchronous orchestration over a trained model: sample, reshape,
// hand to the plotting or meshing backend, then record the artifacts
// with the configured tracker.
package viz

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/ocml-project/ocviz/grid"
	"github.com/ocml-project/ocviz/model"
	"github.com/ocml-project/ocviz/tracker"
)

// WeightsFile is the name of the persisted model weights inside the
// output directory's weights/ subdirectory.
const WeightsFile = "model_weights.bin"

// MarginLoss exposes the separation margin of the training loss, used
// to annotate score histograms.
type MarginLoss interface {
	Margin() float64
}

// Output says where artifacts land and which tracker records them.
// The directory is created on demand; weights and images within it
// are last-writer-wins.
type Output struct {
	// Dir is the root output directory. Images go to Dir/images,
	// weights to Dir/weights, meshes to Dir/mesh.
	Dir string

	// Tracker records artifacts and metrics. Nil means no tracking.
	Tracker tracker.Tracker
}

func (o Output) tracker() tracker.Tracker {
	if o.Tracker == nil {
		return tracker.Nop{}
	}
	return o.Tracker
}

func (o Output) imagePath(name string) string {
	return filepath.Join(o.Dir, "images", name)
}

func (o Output) weightsPath() string {
	return filepath.Join(o.Dir, "weights", WeightsFile)
}

func (o Output) meshPath(name string) string {
	return filepath.Join(o.Dir, "mesh", name)
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// saveWeights persists the model weights when the model exposes the
// capability and optionally records them with the tracker. Models
// without a WeightsSaver are skipped silently.
func saveWeights(m any, out Output, upload bool) error {
	saver, ok := m.(model.WeightsSaver)
	if !ok {
		return nil
	}
	path := out.weightsPath()
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := saver.SaveWeights(path); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	if upload {
		if err := out.tracker().SaveArtifact(path); err != nil {
			return fmt.Errorf("track weights: %w", err)
		}
	}
	return nil
}

// display logs the finished artifact. The library is headless: the
// written file is the figure.
func display(path string) {
	log.Printf("wrote figure %s", path)
}

// fieldGrid adapts a sampled 2D field to gonum/plot's GridXYZ.
type fieldGrid struct {
	f *grid.Field2D
}

func (g fieldGrid) Dims() (c, r int)   { return g.f.Resolution, g.f.Resolution }
func (g fieldGrid) Z(c, r int) float64 { return g.f.At(c, r) }
func (g fieldGrid) X(c int) float64    { return g.f.XCoords[c] }
func (g fieldGrid) Y(r int) float64    { return g.f.YCoords[r] }

// writeTiled lays the plots out left to right on one canvas and
// writes the result as a PNG.
func writeTiled(plots []*plot.Plot, width, height vg.Length, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(plots),
		PadX: vg.Millimeter * 2,
		PadY: vg.Millimeter * 2,
	}

	rows := [][]*plot.Plot{plots}
	canvases := plot.Align(rows, tiles, dc)
	for i, p := range plots {
		if p != nil {
			p.Draw(canvases[0][i])
		}
	}

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
