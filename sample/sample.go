// Package sample declares the adversarial sampling collaborators the
// GAN plotter drives. The Newton-Raphson style iterator itself lives
// outside this module; callers hand in an implementation together
// with a perturbation generator.
package sample

import "github.com/ocml-project/ocviz/model"

// Generator perturbs a batch of samples between sampler iterations.
type Generator interface {
	Perturb(batch []model.Image) []model.Image
}

// Sampler iterates seed samples toward a level set of the model.
type Sampler interface {
	Sample(m model.ImageModel, seeds []model.Image, gen Generator, maxIter int, opts Options) ([]model.Image, error)
}

// Options configures a sampling run. Nil fields are unset and the
// sampler applies its own defaults, mirroring how runtime tuning
// parameters are expressed elsewhere in this codebase.
type Options struct {
	// Deterministic disables the stochastic part of the update rule.
	Deterministic *bool

	// LevelSet is the target score the iterates should converge to.
	LevelSet *float64

	// OvershootBoundary permits iterates to cross the target level
	// instead of clamping at it.
	OvershootBoundary *bool

	// Eta scales the update step.
	Eta *float64

	// Domain clips iterates to [Domain[0], Domain[1]] per coordinate.
	Domain *[2]float64
}

// Clone returns a copy of the options with freshly allocated fields,
// so overriding one run's settings cannot leak into another's.
func (o Options) Clone() Options {
	out := Options{}
	if o.Deterministic != nil {
		v := *o.Deterministic
		out.Deterministic = &v
	}
	if o.LevelSet != nil {
		v := *o.LevelSet
		out.LevelSet = &v
	}
	if o.OvershootBoundary != nil {
		v := *o.OvershootBoundary
		out.OvershootBoundary = &v
	}
	if o.Eta != nil {
		v := *o.Eta
		out.Eta = &v
	}
	if o.Domain != nil {
		v := *o.Domain
		out.Domain = &v
	}
	return out
}

// Bool, Float64 and Span are pointer helpers for building Options.
func Bool(v bool) *bool          { return &v }
func Float64(v float64) *float64 { return &v }
func Span(lo, hi float64) *[2]float64 {
	v := [2]float64{lo, hi}
	return &v
}
