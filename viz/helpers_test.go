package viz

import (
	"errors"
	"math"
	"os"
	"sync"

	"github.com/ocml-project/ocviz/model"
	"github.com/ocml-project/ocviz/sample"
)

// fakeModel scores points with a function and records weight saves.
type fakeModel struct {
	score func(p []float64) float64
	fail  bool

	mu    sync.Mutex
	saved []string
}

func (m *fakeModel) Predict(points [][]float64) ([]float64, error) {
	if m.fail {
		return nil, errors.New("predict failed")
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = m.score(p)
	}
	return out, nil
}

func (m *fakeModel) SaveWeights(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, path)
	return os.WriteFile(path, []byte("weights"), 0644)
}

// sphereModel returns radius minus distance from origin, a simple
// signed-distance-like field positive inside the sphere.
func sphereModel(radius float64) *fakeModel {
	return &fakeModel{score: func(p []float64) float64 {
		sum := 0.0
		for _, v := range p {
			sum += v * v
		}
		return radius - math.Sqrt(sum)
	}}
}

// fakeImageModel scores images by their mean pixel value plus a bias.
type fakeImageModel struct {
	bias  func(model.Image) float64
	saved []string
}

func (m *fakeImageModel) PredictImages(batch []model.Image) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, img := range batch {
		sum := 0.0
		for _, v := range img.Pix {
			sum += v
		}
		out[i] = sum / float64(len(img.Pix))
		if m.bias != nil {
			out[i] += m.bias(img)
		}
	}
	return out, nil
}

func (m *fakeImageModel) SaveWeights(path string) error {
	m.saved = append(m.saved, path)
	return os.WriteFile(path, []byte("weights"), 0644)
}

// recordTracker captures artifacts and metrics in memory.
type recordTracker struct {
	artifacts []string
	metrics   []map[string]float64
}

func (t *recordTracker) SaveArtifact(path string) error {
	t.artifacts = append(t.artifacts, path)
	return nil
}

func (t *recordTracker) Log(m map[string]float64) error {
	cp := make(map[string]float64, len(m))
	for k, v := range m {
		cp[k] = v
	}
	t.metrics = append(t.metrics, cp)
	return nil
}

func (t *recordTracker) logged(name string) (float64, bool) {
	for _, m := range t.metrics {
		if v, ok := m[name]; ok {
			return v, true
		}
	}
	return 0, false
}

// fixedMargin is a MarginLoss with a constant margin.
type fixedMargin float64

func (m fixedMargin) Margin() float64 { return float64(m) }

// fakeSampler records its calls and returns the seeds untouched.
type fakeSampler struct {
	calls []samplerCall
}

type samplerCall struct {
	maxIter int
	opts    sample.Options
}

func (s *fakeSampler) Sample(_ model.ImageModel, seeds []model.Image, _ sample.Generator, maxIter int, o sample.Options) ([]model.Image, error) {
	s.calls = append(s.calls, samplerCall{maxIter: maxIter, opts: o})
	return seeds, nil
}

// nopGenerator leaves batches alone.
type nopGenerator struct{}

func (nopGenerator) Perturb(batch []model.Image) []model.Image { return batch }

// constImage builds an image filled with a single value.
func constImage(w, h, c int, v float64) model.Image {
	img := model.NewImage(w, h, c)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// constBatch builds n identical images.
func constBatch(n, w, h, c int, v float64) []model.Image {
	batch := make([]model.Image, n)
	for i := range batch {
		batch[i] = constImage(w, h, c, v)
	}
	return batch
}
