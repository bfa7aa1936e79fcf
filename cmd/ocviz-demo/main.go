// Command ocviz-demo exercises every plotter against toy data: a
// two-moons point set for the 2D contour, synthetic image batches for
// the grid/GAN/OOD plotters, and a spherical distance field for the
// 3D level-set extraction. Artifacts land under the output directory
// and are recorded with a local run tracker.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/ocml-project/ocviz/grid"
	"github.com/ocml-project/ocviz/model"
	"github.com/ocml-project/ocviz/sample"
	"github.com/ocml-project/ocviz/tracker"
	"github.com/ocml-project/ocviz/viz"
)

var (
	outDir     = flag.String("out", "ocviz-out", "Output directory for figures, weights and runs")
	configPath = flag.String("config", "", "Optional JSON plot config")
	epoch      = flag.Int("epoch", 0, "Epoch index used in artifact names")
	points     = flag.Int("points", 512, "Two-moons sample count")
	seed       = flag.Int64("seed", 1, "RNG seed")
	backend    = flag.String("backend", "plot", "3D backend: plot, echarts or mesh")
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	cfg := &viz.PlotConfig{}
	if *configPath != "" {
		var err error
		cfg, err = viz.LoadPlotConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	run, err := tracker.NewRun(filepath.Join(*outDir, "runs"))
	if err != nil {
		log.Fatalf("start run: %v", err)
	}
	defer run.Close()
	log.Printf("tracking run %s in %s", run.ID, run.Dir)

	out := viz.Output{Dir: *outDir, Tracker: run}

	moons := makeMoons(*points, rng)
	m2d := &nearestModel{points: moons, scale: 4}

	window, err := grid.DataDomain(moons, 1.1)
	if err != nil {
		log.Fatalf("contour window: %v", err)
	}
	contourOpts := cfg.ContourOptions()
	if _, err := viz.Contour2D(m2d, fixedMargin(0.25), moons, window, out, contourOpts); err != nil {
		log.Fatalf("contour: %v", err)
	}

	im := &meanModel{}
	train := noisyBatch(64, 0.8, rng)
	test := noisyBatch(64, 0.7, rng)
	ood := noisyBatch(64, -0.8, rng)

	oodOpts := viz.DefaultOODOptions()
	oodOpts.Histogram = true
	oodOpts.Rand = rng
	if _, err := viz.OODScores(*epoch, im, train, test, ood, out, oodOpts); err != nil {
		log.Fatalf("ood: %v", err)
	}

	ganOpts := viz.DefaultGANOptions()
	ganOpts.Grid = cfg.ImageGridOptions()
	ganOpts.Grid.Rand = rng
	if err := viz.GANSamples(*epoch, im, train, ood, jitterGenerator{rng: rng}, walkSampler{rng: rng}, 10, out, ganOpts); err != nil {
		log.Fatalf("gan: %v", err)
	}

	m3d := &sphereModel{radius: 1}
	lsOpts := cfg.LevelSetOptions(viz.DefaultLevelSetOptions(grid.Domain{Min: -1.5, Max: 1.5}))
	lsOpts.Backend = viz.Backend(*backend)
	lsOpts.GridRes = 48
	lsOpts.Quantile = quantileFor(lsOpts.Modes)
	lsOpts.Rand = rng
	results, err := viz.LevelSet3D(m3d, spherePoints(256, rng), out, lsOpts)
	if err != nil {
		log.Fatalf("levelset: %v", err)
	}
	for _, res := range results {
		log.Printf("mode=%s level=%.4f cloud=%d artifact=%s", res.Mode, res.Level, res.CloudSize, res.Artifact)
	}
}

func quantileFor(modes []viz.Mode) *float64 {
	for _, m := range modes {
		if m == viz.ModeRatio {
			q := 0.5
			return &q
		}
	}
	return nil
}

// makeMoons samples n points from two interleaved half circles,
// modeled after scikit-learn's make_moons.
func makeMoons(n int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		angle := rng.Float64() * math.Pi
		x, y := math.Cos(angle), math.Sin(angle)
		if rng.Float64() < 0.5 {
			x, y = 1-x, 0.5-y
		}
		out[i] = []float64{x + rng.NormFloat64()*0.05, y + rng.NormFloat64()*0.05}
	}
	return out
}

// nearestModel scores a point by its distance to the closest training
// point, scaled so points on the data sit near zero.
type nearestModel struct {
	points [][]float64
	scale  float64
}

func (m *nearestModel) Predict(batch [][]float64) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, p := range batch {
		best := math.Inf(1)
		for _, q := range m.points {
			dx, dy := p[0]-q[0], p[1]-q[1]
			if d := dx*dx + dy*dy; d < best {
				best = d
			}
		}
		out[i] = 0.5 - m.scale*math.Sqrt(best)
	}
	return out, nil
}

// sphereModel is a signed-distance-like field positive inside a
// sphere around the origin.
type sphereModel struct {
	radius float64
}

func (m *sphereModel) Predict(batch [][]float64) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, p := range batch {
		sum := 0.0
		for _, v := range p {
			sum += v * v
		}
		out[i] = m.radius - math.Sqrt(sum)
	}
	return out, nil
}

func spherePoints(n int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		v := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		for j := range v {
			v[j] /= norm
		}
		out[i] = v
	}
	return out
}

// meanModel scores an image by its mean pixel value.
type meanModel struct{}

func (meanModel) PredictImages(batch []model.Image) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, img := range batch {
		sum := 0.0
		for _, v := range img.Pix {
			sum += v
		}
		out[i] = sum / float64(len(img.Pix))
	}
	return out, nil
}

func noisyBatch(n int, center float64, rng *rand.Rand) []model.Image {
	batch := make([]model.Image, n)
	for i := range batch {
		img := model.NewImage(8, 8, 3)
		for j := range img.Pix {
			img.Pix[j] = clamp(center+rng.NormFloat64()*0.1, -1, 1)
		}
		batch[i] = img
	}
	return batch
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fixedMargin is a stand-in loss exposing a constant margin.
type fixedMargin float64

func (m fixedMargin) Margin() float64 { return float64(m) }

// jitterGenerator perturbs each pixel with Gaussian noise.
type jitterGenerator struct {
	rng *rand.Rand
}

func (g jitterGenerator) Perturb(batch []model.Image) []model.Image {
	out := make([]model.Image, len(batch))
	for i, img := range batch {
		cp := img.Clone()
		for j := range cp.Pix {
			cp.Pix[j] += g.rng.NormFloat64() * 0.02
		}
		out[i] = cp
	}
	return out
}

// walkSampler is a toy stand-in for the Newton-Raphson iterator: it
// accepts perturbations that move the batch score toward the target
// level.
type walkSampler struct {
	rng *rand.Rand
}

func (s walkSampler) Sample(m model.ImageModel, seeds []model.Image, gen sample.Generator, maxIter int, o sample.Options) ([]model.Image, error) {
	target := 0.0
	if o.LevelSet != nil {
		target = *o.LevelSet
	}

	current := make([]model.Image, len(seeds))
	for i, img := range seeds {
		current[i] = img.Clone()
	}
	scores, err := m.PredictImages(current)
	if err != nil {
		return nil, err
	}

	for iter := 0; iter < maxIter; iter++ {
		candidate := gen.Perturb(current)
		candScores, err := m.PredictImages(candidate)
		if err != nil {
			return nil, err
		}
		for i := range current {
			if math.Abs(candScores[i]-target) < math.Abs(scores[i]-target) {
				current[i] = candidate[i]
				scores[i] = candScores[i]
			}
		}
	}
	return current, nil
}
