package viz

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"

	"github.com/ocml-project/ocviz/grid"
)

func testContourOptions() ContourOptions {
	opts := DefaultContourOptions()
	opts.Resolution = 24
	opts.Upload = false
	return opts
}

func TestContour2DWritesFigure(t *testing.T) {
	t.Parallel()

	m := sphereModel(1.0)
	out := Output{Dir: t.TempDir()}
	P := [][]float64{{0, 0}, {0.1, 0.2}, {-0.3, 0.4}}

	path, err := Contour2D(m, fixedMargin(0.5), P, grid.Domain{Min: -2, Max: 2}, out, testContourOptions())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out.Dir, "images", "contour.png"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	// The model carries the weights capability, so weights land next
	// to the images.
	assert.FileExists(t, filepath.Join(out.Dir, "weights", WeightsFile))
	assert.Equal(t, []string{filepath.Join(out.Dir, "weights", WeightsFile)}, m.saved)
}

func TestContour2DWithoutHistogram(t *testing.T) {
	t.Parallel()

	opts := testContourOptions()
	opts.Histogram = false

	out := Output{Dir: t.TempDir()}
	_, err := Contour2D(sphereModel(1.0), fixedMargin(0.5), [][]float64{{0, 0}}, grid.Domain{Min: -1, Max: 1}, out, opts)
	require.NoError(t, err)
}

func TestContour2DTrajectoryOverlay(t *testing.T) {
	t.Parallel()

	opts := testContourOptions()
	opts.Trajectory = &Trajectory{
		Q0: [][]float64{{1.5, 1.5}, {-1.5, -1.5}},
		Qt: [][]float64{{0.9, 0.1}, {-0.2, 0.8}},
	}

	out := Output{Dir: t.TempDir()}
	_, err := Contour2D(sphereModel(1.0), fixedMargin(0.5), [][]float64{{0, 0}}, grid.Domain{Min: -2, Max: 2}, out, opts)
	require.NoError(t, err)
}

func TestContour2DUploadsArtifacts(t *testing.T) {
	t.Parallel()

	tr := &recordTracker{}
	out := Output{Dir: t.TempDir(), Tracker: tr}

	opts := testContourOptions()
	opts.Upload = true

	path, err := Contour2D(sphereModel(1.0), fixedMargin(0.5), [][]float64{{0, 0}}, grid.Domain{Min: -1, Max: 1}, out, opts)
	require.NoError(t, err)

	// Weights first, then the figure.
	require.Len(t, tr.artifacts, 2)
	assert.Equal(t, filepath.Join(out.Dir, "weights", WeightsFile), tr.artifacts[0])
	assert.Equal(t, path, tr.artifacts[1])
}

func TestContour2DModelErrorPropagates(t *testing.T) {
	t.Parallel()

	m := &fakeModel{fail: true, score: func([]float64) float64 { return 0 }}
	out := Output{Dir: t.TempDir()}
	_, err := Contour2D(m, fixedMargin(0.5), [][]float64{{0, 0}}, grid.Domain{Min: -1, Max: 1}, out, testContourOptions())
	assert.Error(t, err)
}

func TestContourLevels(t *testing.T) {
	t.Parallel()

	levels := contourLevels(0, 1, 4)
	require.Len(t, levels, 4)
	assert.InDelta(t, 0.2, levels[0], 1e-12)
	assert.InDelta(t, 0.8, levels[3], 1e-12)

	assert.Nil(t, contourLevels(1, 1, 4))
	assert.Nil(t, contourLevels(0, 1, 0))
}

func TestAddHistUpperEdgeValue(t *testing.T) {
	t.Parallel()

	// Float rounding can place the maximum score exactly on the upper
	// edge of the last bin; the clamped binning must keep it in range
	// instead of overflowing.
	lo, hi := -0.7320508075688772, 0.7525641703473034
	scores := make([]float64, 0, 41)
	for i := 0; i < 40; i++ {
		scores = append(scores, lo+(hi-lo)*float64(i)/39)
	}
	scores = append(scores, hi)

	p := plot.New()
	require.NoError(t, addHist(p, scores, color.NRGBA{B: 200, A: 190}, 40))
}

func TestAddHistDegenerateInputs(t *testing.T) {
	t.Parallel()

	// A constant population has zero spread; it still gets one bin.
	p := plot.New()
	require.NoError(t, addHist(p, []float64{0.5, 0.5, 0.5}, color.NRGBA{G: 160, A: 190}, 10))

	assert.Error(t, addHist(p, nil, color.NRGBA{A: 190}, 10))
	assert.Error(t, addHist(p, []float64{1}, color.NRGBA{A: 190}, 0))
}
