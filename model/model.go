// Package model defines the capabilities ocviz expects from a trained
// one-class scorer. Implementations live outside this module; the
// plotters treat them as black boxes that map batches to scalar scores.
package model

import "fmt"

// Model scores a batch of coordinate points. The returned slice must
// have one score per input point.
type Model interface {
	Predict(points [][]float64) ([]float64, error)
}

// ImageModel scores a batch of images.
type ImageModel interface {
	PredictImages(batch []Image) ([]float64, error)
}

// WeightsSaver is an optional capability: models that can persist
// their weights implement it. Plotters probe for it with a type
// assertion and skip persistence when it is absent.
type WeightsSaver interface {
	SaveWeights(path string) error
}

// Image is a dense H×W×C raster with float64 samples, row-major with
// channels interleaved: index = (y*Width+x)*Channels + c.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []float64
}

// NewImage allocates a zeroed image of the given shape.
func NewImage(w, h, c int) Image {
	return Image{Width: w, Height: h, Channels: c, Pix: make([]float64, w*h*c)}
}

// At returns the sample at (x, y, c).
func (im Image) At(x, y, c int) float64 {
	return im.Pix[(y*im.Width+x)*im.Channels+c]
}

// Set assigns the sample at (x, y, c).
func (im *Image) Set(x, y, c int, v float64) {
	im.Pix[(y*im.Width+x)*im.Channels+c] = v
}

// Validate checks that the pixel buffer matches the declared shape.
func (im Image) Validate() error {
	if want := im.Width * im.Height * im.Channels; len(im.Pix) != want {
		return fmt.Errorf("image pix length %d does not match %dx%dx%d", len(im.Pix), im.Width, im.Height, im.Channels)
	}
	return nil
}

// MinMax returns the smallest and largest sample values. An empty
// image returns (0, 0).
func (im Image) MinMax() (min, max float64) {
	if len(im.Pix) == 0 {
		return 0, 0
	}
	min, max = im.Pix[0], im.Pix[0]
	for _, v := range im.Pix[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Clone returns a deep copy of the image.
func (im Image) Clone() Image {
	out := im
	out.Pix = make([]float64, len(im.Pix))
	copy(out.Pix, im.Pix)
	return out
}
