package viz

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocml-project/ocviz/model"
)

func TestDenormalizeMNISTBranch(t *testing.T) {
	t.Parallel()

	img := constImage(28, 28, 1, 0.5)
	out := Denormalize(img)

	require.Equal(t, 3, out.Channels)
	require.Equal(t, 28, out.Width)
	require.Equal(t, 28, out.Height)
	for _, v := range out.Pix {
		assert.Equal(t, 127.5, v)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 255.0)
	}
}

func TestDenormalizeNormalizedBatchSkipsMeanStd(t *testing.T) {
	t.Parallel()

	// Values inside [-1, 1]: the mean/std step must be skipped, so
	// the output is exactly v*255*2 - 255.
	img := constImage(8, 8, 3, 0.5)
	out := Denormalize(img)
	for _, v := range out.Pix {
		assert.InDelta(t, 0.5*255*2-255, v, 1e-12)
	}
}

func TestDenormalizeStandardizedBatch(t *testing.T) {
	t.Parallel()

	// Values outside [-1, 1] trigger the per-channel mean/std path.
	img := constImage(8, 8, 3, 2.0)
	out := Denormalize(img)

	for i := 0; i < 3; i++ {
		want := (2.0*denormStd[i]+denormMean[i])*255*2 - 255
		assert.InDelta(t, want, out.Pix[i], 1e-12)
	}
}

func TestImageGridWritesMontage(t *testing.T) {
	t.Parallel()

	out := Output{Dir: t.TempDir()}
	batch := constBatch(20, 8, 8, 3, 0.25)

	opts := DefaultImageGridOptions()
	opts.Upload = false
	opts.Rand = rand.New(rand.NewSource(7))

	path, err := ImageGrid(batch, "Q0_3.png", out, opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out.Dir, "images", "Q0_3.png"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestImageGridUnderFullBatch(t *testing.T) {
	t.Parallel()

	out := Output{Dir: t.TempDir()}
	// 3 images into a 2x8 grid: trailing cells stay blank.
	batch := constBatch(3, 4, 4, 3, 0.0)

	opts := DefaultImageGridOptions()
	opts.Upload = false

	_, err := ImageGrid(batch, "small.png", out, opts)
	require.NoError(t, err)
}

func TestImageGridUpload(t *testing.T) {
	t.Parallel()

	tr := &recordTracker{}
	out := Output{Dir: t.TempDir(), Tracker: tr}

	opts := DefaultImageGridOptions()
	path, err := ImageGrid(constBatch(2, 4, 4, 3, 0.1), "up.png", out, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, tr.artifacts)
}

func TestImageGridRejectsBadShape(t *testing.T) {
	t.Parallel()

	out := Output{Dir: t.TempDir()}
	bad := model.Image{Width: 4, Height: 4, Channels: 3, Pix: make([]float64, 5)}

	opts := DefaultImageGridOptions()
	opts.Upload = false
	_, err := ImageGrid([]model.Image{bad}, "bad.png", out, opts)
	assert.Error(t, err)

	_, err = ImageGrid(nil, "dims.png", out, ImageGridOptions{Rows: 0, Cols: 8})
	assert.Error(t, err)
}

func TestToByteClamps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0), toByte(-300))
	assert.Equal(t, uint8(0), toByte(-255))
	assert.Equal(t, uint8(255), toByte(255))
	assert.Equal(t, uint8(255), toByte(400))
	assert.Equal(t, uint8(127), toByte(0))
}
