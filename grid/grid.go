// Package grid samples a model over regular 2D and 3D lattices.
//
// A field is built in three steps: lay out a Cartesian product of
// per-axis linear spacings over an axis-aligned box, evaluate the
// model once on the flattened point batch, then index the returned
// scores by lattice position. Errors from the model propagate
// unchanged.
package grid

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ocml-project/ocviz/model"
)

// Domain is a scalar interval applied to every axis of a field.
type Domain struct {
	Min float64
	Max float64
}

// Validate rejects empty or inverted domains.
func (d Domain) Validate() error {
	if !(d.Min < d.Max) {
		return fmt.Errorf("domain min %v must be less than max %v", d.Min, d.Max)
	}
	return nil
}

// Linspace returns n evenly spaced, strictly increasing values from
// d.Min to d.Max inclusive.
func (d Domain) Linspace(n int) []float64 {
	return floats.Span(make([]float64, n), d.Min, d.Max)
}

// DataDomain derives a plotting window from the data extent, scaled by
// coeff so the window is not flush with the outermost points. A
// degenerate extent falls back to unit padding.
func DataDomain(points [][]float64, coeff float64) (Domain, error) {
	if len(points) == 0 {
		return Domain{}, fmt.Errorf("data domain needs at least one point")
	}
	min, max := points[0][0], points[0][0]
	for _, p := range points {
		for _, v := range p {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	d := Domain{Min: min * coeff, Max: max * coeff}
	if !(d.Min < d.Max) {
		d = Domain{Min: min - 1, Max: max + 1}
	}
	return d, nil
}

// Field2D holds model scores sampled over a res×res lattice.
type Field2D struct {
	Resolution int
	XCoords    []float64
	YCoords    []float64

	// Points is the flattened lattice, one {x, y} row per cell,
	// ordered by Y then X (Y varies slowest).
	Points [][]float64

	// Values holds one score per row of Points.
	Values []float64
}

// At returns the score at lattice position (ix, iy).
func (f *Field2D) At(ix, iy int) float64 {
	return f.Values[iy*f.Resolution+ix]
}

// MinMax returns the extremes of the sampled scores.
func (f *Field2D) MinMax() (float64, float64) {
	return floats.Min(f.Values), floats.Max(f.Values)
}

// Field3D holds model scores sampled over a res×res×res lattice.
type Field3D struct {
	Resolution int
	Coords     []float64

	// Points is the flattened lattice, one {x, y, z} row per cell,
	// ordered with Z varying fastest.
	Points [][]float64

	// Values holds one score per row of Points.
	Values []float64
}

// At returns the score at lattice position (ix, iy, iz).
func (f *Field3D) At(ix, iy, iz int) float64 {
	return f.Values[(ix*f.Resolution+iy)*f.Resolution+iz]
}

// MinMax returns the extremes of the sampled scores.
func (f *Field3D) MinMax() (float64, float64) {
	return floats.Min(f.Values), floats.Max(f.Values)
}

// Spacing returns the distance between adjacent lattice points.
func (f *Field3D) Spacing() float64 {
	if len(f.Coords) < 2 {
		return 0
	}
	return f.Coords[1] - f.Coords[0]
}

// Sample2D evaluates m over a resolution×resolution lattice covering
// domain on both axes. The model is called once with the full batch.
func Sample2D(m model.Model, domain Domain, resolution int) (*Field2D, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	if resolution < 2 {
		return nil, fmt.Errorf("resolution %d too small for a 2D field", resolution)
	}

	coords := domain.Linspace(resolution)
	points := make([][]float64, 0, resolution*resolution)
	for _, y := range coords {
		for _, x := range coords {
			points = append(points, []float64{x, y})
		}
	}

	values, err := m.Predict(points)
	if err != nil {
		return nil, fmt.Errorf("predict 2D grid: %w", err)
	}
	if len(values) != len(points) {
		return nil, fmt.Errorf("model returned %d scores for %d grid points", len(values), len(points))
	}

	return &Field2D{
		Resolution: resolution,
		XCoords:    coords,
		YCoords:    append([]float64(nil), coords...),
		Points:     points,
		Values:     values,
	}, nil
}

// Sample3D evaluates m over a resolution³ lattice covering domain on
// all three axes.
func Sample3D(m model.Model, domain Domain, resolution int) (*Field3D, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	if resolution < 2 {
		return nil, fmt.Errorf("resolution %d too small for a 3D field", resolution)
	}

	coords := domain.Linspace(resolution)
	points := make([][]float64, 0, resolution*resolution*resolution)
	for _, x := range coords {
		for _, y := range coords {
			for _, z := range coords {
				points = append(points, []float64{x, y, z})
			}
		}
	}

	values, err := m.Predict(points)
	if err != nil {
		return nil, fmt.Errorf("predict 3D grid: %w", err)
	}
	if len(values) != len(points) {
		return nil, fmt.Errorf("model returned %d scores for %d grid points", len(values), len(points))
	}

	return &Field3D{
		Resolution: resolution,
		Coords:     coords,
		Points:     points,
		Values:     values,
	}, nil
}
