package viz

import (
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocml-project/ocviz/grid"
)

func testLevelSetOptions(domain grid.Domain) LevelSetOptions {
	opts := DefaultLevelSetOptions(domain)
	opts.GridRes = 10
	opts.Backend = BackendPlot
	opts.Upload = false
	opts.Rand = rand.New(rand.NewSource(5))
	return opts
}

func refPoints() [][]float64 {
	return [][]float64{{0, 0, 0}, {0.2, 0, 0}, {0, 0.3, 0}, {0, 0, 0.4}}
}

func TestSelectAboveMonotoneInThreshold(t *testing.T) {
	t.Parallel()

	values := []float64{-2, -1, 0, 0.5, 1, 2, 3}
	prev := len(values) + 1
	for _, threshold := range []float64{-3, -1, 0, 1, 2.5, 4} {
		n := len(selectAbove(values, threshold))
		assert.LessOrEqual(t, n, prev, "raising the threshold must not select more points")
		prev = n
	}
}

func TestSelectBandShrinksWithTolerance(t *testing.T) {
	t.Parallel()

	values := []float64{-2, -1, -0.5, 0, 0.5, 1, 2}
	prev := len(values) + 1
	for _, tol := range []float64{3, 1, 0.5, 0.1, 0} {
		n := len(selectBand(values, 0, tol))
		assert.LessOrEqual(t, n, prev, "shrinking the tolerance must not grow the band")
		prev = n
	}
	assert.Equal(t, 1, len(selectBand(values, 0, 0)))
}

func TestLevelSet3DCloudCap(t *testing.T) {
	t.Parallel()

	// A volume selection far below the field minimum matches all
	// 1000 grid points; the cap must trim the cloud to exactly 5.
	m := sphereModel(1.0)
	opts := testLevelSetOptions(grid.Domain{Min: -1, Max: 1})
	opts.Modes = []Mode{ModeVolume}
	opts.Level = floatPtr(-100)
	opts.MaxCloud = 5

	out := Output{Dir: t.TempDir()}
	results, err := LevelSet3D(m, refPoints(), out, opts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 5, results[0].CloudSize)
}

func TestLevelSet3DCloudBelowCapUnchanged(t *testing.T) {
	t.Parallel()

	m := sphereModel(1.0)
	opts := testLevelSetOptions(grid.Domain{Min: -1, Max: 1})
	opts.Modes = []Mode{ModeVolume}
	opts.Level = floatPtr(-100)
	opts.MaxCloud = 100000

	out := Output{Dir: t.TempDir()}
	results, err := LevelSet3D(m, refPoints(), out, opts)
	require.NoError(t, err)
	assert.Equal(t, 10*10*10, results[0].CloudSize)
}

func TestLevelSet3DOneResultPerMode(t *testing.T) {
	t.Parallel()

	m := sphereModel(1.0)
	opts := testLevelSetOptions(grid.Domain{Min: -1, Max: 1})
	opts.Modes = []Mode{ModeSurface, ModeVolume, ModeRatio}
	opts.Quantile = floatPtr(0.5)

	out := Output{Dir: t.TempDir()}
	results, err := LevelSet3D(m, refPoints(), out, opts)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, ModeSurface, results[0].Mode)
	assert.Equal(t, ModeVolume, results[1].Mode)
	assert.Equal(t, ModeRatio, results[2].Mode)
	for _, res := range results {
		assert.FileExists(t, res.Artifact)
		assert.FileExists(t, res.FieldHistogram)
		assert.True(t, strings.HasSuffix(res.Artifact, ".png"))
	}
}

func TestLevelSet3DRatioRequiresQuantile(t *testing.T) {
	t.Parallel()

	opts := testLevelSetOptions(grid.Domain{Min: -1, Max: 1})
	opts.Modes = []Mode{ModeRatio}
	opts.Quantile = nil

	out := Output{Dir: t.TempDir()}
	_, err := LevelSet3D(sphereModel(1.0), refPoints(), out, opts)
	assert.Error(t, err)
}

func TestLevelSet3DEChartsBackend(t *testing.T) {
	t.Parallel()

	opts := testLevelSetOptions(grid.Domain{Min: -1, Max: 1})
	opts.Backend = BackendECharts
	opts.Modes = []Mode{ModeSurface}
	opts.AnchorPlot = true

	out := Output{Dir: t.TempDir()}
	results, err := LevelSet3D(sphereModel(1.0), refPoints(), out, opts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, strings.HasSuffix(results[0].Artifact, ".html"))
	assert.FileExists(t, results[0].Artifact)
}

func TestLevelSet3DMeshBackend(t *testing.T) {
	t.Parallel()

	opts := testLevelSetOptions(grid.Domain{Min: -1, Max: 1})
	opts.Backend = BackendMesh
	opts.Modes = []Mode{ModeRatio}
	opts.Quantile = floatPtr(0.5)
	opts.GridRes = 8

	tr := &recordTracker{}
	out := Output{Dir: t.TempDir(), Tracker: tr}
	opts.Upload = true

	results, err := LevelSet3D(sphereModel(1.0), refPoints(), out, opts)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, filepath.Join(out.Dir, "mesh", "modelnet_0.500.stl"), results[0].Artifact)
	assert.FileExists(t, results[0].Artifact)
	assert.Contains(t, tr.artifacts, results[0].Artifact)
}

func TestLevelSet3DUpload(t *testing.T) {
	t.Parallel()

	tr := &recordTracker{}
	out := Output{Dir: t.TempDir(), Tracker: tr}

	opts := testLevelSetOptions(grid.Domain{Min: -1, Max: 1})
	opts.Upload = true
	opts.Modes = []Mode{ModeVolume}
	opts.Level = floatPtr(0)

	m := sphereModel(1.0)
	results, err := LevelSet3D(m, refPoints(), out, opts)
	require.NoError(t, err)

	// Weights then the per-mode artifact.
	require.NotEmpty(t, m.saved)
	assert.Contains(t, tr.artifacts, results[0].Artifact)
}

func floatPtr(v float64) *float64 { return &v }
