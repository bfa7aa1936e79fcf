package viz

import (
	"fmt"
	"log"

	"github.com/ocml-project/ocviz/evaluate"
	"github.com/ocml-project/ocviz/model"
	"github.com/ocml-project/ocviz/sample"
)

// GANOptions configures GANSamples.
type GANOptions struct {
	// Sample is forwarded to the sampler for the intermediate run.
	// The converged run reuses Eta and Domain but forces the
	// deterministic, overshooting update toward the target quantile.
	Sample sample.Options

	// TargetQuantile of the in-distribution scores is the level set
	// the converged run aims for.
	TargetQuantile float64

	// Grid shapes the rendered montages.
	Grid ImageGridOptions
}

// DefaultGANOptions targets the median in-distribution score.
func DefaultGANOptions() GANOptions {
	return GANOptions{TargetQuantile: 0.5, Grid: DefaultImageGridOptions()}
}

// GANSamples drives the adversarial sampler from the seed set Q0 and
// renders the seeds, an intermediate sample set Qt (maxIter
// iterations) and a converged set Qinf (50× more iterations with a
// deterministic, overshooting update aimed at the target quantile of
// the in-distribution scores). Mean scores for all four sets are
// logged.
func GANSamples(epoch int, m model.ImageModel, P, Q0 []model.Image, gen sample.Generator, smp sample.Sampler, maxIter int, out Output, opts GANOptions) error {
	yP, err := m.PredictImages(P)
	if err != nil {
		return fmt.Errorf("predict P: %w", err)
	}
	target := evaluate.Quantile(yP, opts.TargetQuantile)

	Qt, err := smp.Sample(m, Q0, gen, maxIter, opts.Sample)
	if err != nil {
		return fmt.Errorf("sample Qt: %w", err)
	}

	converged := opts.Sample.Clone()
	converged.LevelSet = sample.Float64(target)
	converged.Deterministic = sample.Bool(true)
	converged.OvershootBoundary = sample.Bool(true)
	Qinf, err := smp.Sample(m, Q0, gen, maxIter*50, converged)
	if err != nil {
		return fmt.Errorf("sample Qinf: %w", err)
	}

	yQ0, err := m.PredictImages(Q0)
	if err != nil {
		return fmt.Errorf("predict Q0: %w", err)
	}
	yQt, err := m.PredictImages(Qt)
	if err != nil {
		return fmt.Errorf("predict Qt: %w", err)
	}
	yQinf, err := m.PredictImages(Qinf)
	if err != nil {
		return fmt.Errorf("predict Qinf: %w", err)
	}

	log.Printf("epoch %d: P=%.4f Q0=%.4f Qt=%.4f Qinf=%.4f",
		epoch,
		evaluate.Describe(yP).Mean,
		evaluate.Describe(yQ0).Mean,
		evaluate.Describe(yQt).Mean,
		evaluate.Describe(yQinf).Mean)

	for _, set := range []struct {
		name  string
		batch []model.Image
	}{
		{name: fmt.Sprintf("Q0_%d.png", epoch), batch: Q0},
		{name: fmt.Sprintf("Qt_%d.png", epoch), batch: Qt},
		{name: fmt.Sprintf("Qinf_%d.png", epoch), batch: Qinf},
	} {
		if _, err := ImageGrid(set.batch, set.name, out, opts.Grid); err != nil {
			return fmt.Errorf("render %s: %w", set.name, err)
		}
	}
	return nil
}
