package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/ocml-project/ocviz/model"
)

// Per-channel denormalization constants for batches carrying
// standardized CIFAR-style values.
var (
	denormStd  = [3]float64{0.24703233, 0.24348505, 0.26158768}
	denormMean = [3]float64{0.49139968, 0.48215841, 0.44653091}
)

// ImageGridOptions configures ImageGrid.
type ImageGridOptions struct {
	// Rows and Cols shape the montage. At most Rows*Cols images are
	// drawn; a smaller batch leaves trailing cells blank.
	Rows int
	Cols int

	// CellSize is the pixel edge length each image is scaled to.
	CellSize int

	// Upload records the figure with the tracker.
	Upload bool

	// Rand drives the batch shuffle. Nil uses the shared source.
	Rand *rand.Rand
}

// DefaultImageGridOptions returns the 2×8 montage used after each
// training epoch.
func DefaultImageGridOptions() ImageGridOptions {
	return ImageGridOptions{Rows: 2, Cols: 8, CellSize: 64, Upload: true}
}

// ImageGrid shuffles the batch, takes the first Rows*Cols images,
// denormalizes each and tiles them into a single PNG under the output
// images directory. It returns the figure path.
func ImageGrid(batch []model.Image, filename string, out Output, opts ImageGridOptions) (string, error) {
	if opts.Rows < 1 || opts.Cols < 1 {
		return "", fmt.Errorf("image grid needs positive dimensions, got %dx%d", opts.Rows, opts.Cols)
	}
	if opts.CellSize < 1 {
		opts.CellSize = 64
	}

	// Shuffle before plotting so the montage shows batch diversity.
	perm := permutation(len(batch), opts.Rand)
	n := opts.Rows * opts.Cols
	if len(batch) < n {
		n = len(batch)
	}

	cell := opts.CellSize
	dst := image.NewRGBA(image.Rect(0, 0, opts.Cols*cell, opts.Rows*cell))
	fillBackground(dst, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	for i := 0; i < n; i++ {
		img := batch[perm[i]]
		if err := img.Validate(); err != nil {
			return "", fmt.Errorf("image %d: %w", perm[i], err)
		}
		tile := rasterize(Denormalize(img))

		row := i / opts.Cols
		col := i % opts.Cols
		target := image.Rect(col*cell, row*cell, (col+1)*cell, (row+1)*cell)
		xdraw.NearestNeighbor.Scale(dst, target, tile, tile.Bounds(), xdraw.Src, nil)
	}

	path := out.imagePath(filename)
	if err := ensureParent(path); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, dst); err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}

	if opts.Upload {
		if err := out.tracker().SaveArtifact(path); err != nil {
			return "", fmt.Errorf("track image grid: %w", err)
		}
	}
	display(path)
	return path, nil
}

// Denormalize maps an image onto the signed display range the raster
// step expects.
//
// Single-channel 28×28 images are replicated to 3 channels and scaled
// to [0, 255]. Everything else is assumed normalized: values outside
// [-1, 1] get the per-channel mean/std denormalization first, then
// the batch is rescaled from [0, 1] through [0, 255] to the signed
// [-255, 255] representation.
func Denormalize(img model.Image) model.Image {
	if img.Width == 28 && img.Height == 28 && img.Channels == 1 {
		out := model.NewImage(28, 28, 3)
		for y := 0; y < 28; y++ {
			for x := 0; x < 28; x++ {
				v := img.At(x, y, 0) * 255
				for c := 0; c < 3; c++ {
					out.Set(x, y, c, v)
				}
			}
		}
		return out
	}

	out := img.Clone()
	min, max := img.MinMax()
	if min < -1 || max > 1 {
		for i := range out.Pix {
			c := i % out.Channels
			out.Pix[i] = out.Pix[i]*denormStd[c%3] + denormMean[c%3]
		}
	}
	for i := range out.Pix {
		out.Pix[i] = out.Pix[i]*255*2 - 255
	}
	return out
}

// rasterize converts a denormalized image to an 8-bit RGBA raster
// using the shared signed [-255, 255] value range.
func rasterize(img model.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			var rgb [3]uint8
			for c := 0; c < 3; c++ {
				ch := c
				if ch >= img.Channels {
					ch = img.Channels - 1
				}
				rgb[c] = toByte(img.At(x, y, ch))
			}
			out.SetRGBA(x, y, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255})
		}
	}
	return out
}

// toByte maps the signed display range [-255, 255] onto [0, 255].
func toByte(v float64) uint8 {
	b := (v + 255) / 2
	if b < 0 {
		b = 0
	}
	if b > 255 {
		b = 255
	}
	return uint8(b)
}

func permutation(n int, r *rand.Rand) []int {
	if r != nil {
		return r.Perm(n)
	}
	return rand.Perm(n)
}

func fillBackground(img *image.RGBA, c color.RGBA) {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}
