package viz

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ocml-project/ocviz/evaluate"
	"github.com/ocml-project/ocviz/model"
)

// maxHistogramRows caps how many scores feed the OOD histogram; the
// combined populations are uniformly subsampled above it.
const maxHistogramRows = 1000

// OODOptions configures OODScores.
type OODOptions struct {
	// Histogram renders the combined score histogram.
	Histogram bool

	// Upload records weights and figures with the tracker.
	Upload bool

	// Threshold forces both histogram threshold markers to a fixed
	// value instead of the calibrated ones.
	Threshold *float64

	// Calibrate picks the decision thresholds. Nil uses
	// evaluate.CalibrateAccuracy.
	Calibrate evaluate.Calibrator

	// Bins is the histogram bin count.
	Bins int

	// Rand drives the histogram subsample. Nil uses the shared source.
	Rand *rand.Rand
}

// DefaultOODOptions calibrates and logs but skips the histogram.
func DefaultOODOptions() OODOptions {
	return OODOptions{Upload: true, Bins: 40}
}

// OODReport collects everything OODScores computes.
type OODReport struct {
	Train evaluate.Summary
	Test  evaluate.Summary
	OOD   evaluate.Summary

	TrainThreshold float64
	TrainAccuracy  float64
	TrainAUROC     float64
	TestThreshold  float64
	TestAccuracy   float64
	TestAUROC      float64

	// SampleFraction is the uniform fraction of rows kept for the
	// histogram (1 when no subsampling occurred or no histogram was
	// drawn).
	SampleFraction float64

	// HistogramPath is the rendered figure, empty when disabled.
	HistogramPath string
}

// OODScores scores the train, test and out-of-distribution batches,
// calibrates thresholds for the (train, ood) and (test, ood) pairs,
// persists weights, logs the metrics with the tracker and optionally
// renders a combined score histogram with threshold markers.
func OODScores(epoch int, m model.ImageModel, train, test, ood []model.Image, out Output, cfg OODOptions) (*OODReport, error) {
	calibrate := cfg.Calibrate
	if calibrate == nil {
		calibrate = evaluate.CalibrateAccuracy
	}
	if cfg.Bins < 1 {
		cfg.Bins = 40
	}

	yTrain, err := m.PredictImages(train)
	if err != nil {
		return nil, fmt.Errorf("predict train: %w", err)
	}
	yTest, err := m.PredictImages(test)
	if err != nil {
		return nil, fmt.Errorf("predict test: %w", err)
	}
	yOOD, err := m.PredictImages(ood)
	if err != nil {
		return nil, fmt.Errorf("predict ood: %w", err)
	}

	report := &OODReport{
		Train:          evaluate.Describe(yTrain),
		Test:           evaluate.Describe(yTest),
		OOD:            evaluate.Describe(yOOD),
		SampleFraction: 1,
	}
	log.Printf("train examples %s", report.Train)
	log.Printf("test examples %s", report.Test)
	log.Printf("ood examples %s", report.OOD)

	report.TrainThreshold, report.TrainAccuracy, report.TrainAUROC, err = calibrate(yTrain, yOOD)
	if err != nil {
		return nil, fmt.Errorf("calibrate train/ood: %w", err)
	}
	report.TestThreshold, report.TestAccuracy, report.TestAUROC, err = calibrate(yTest, yOOD)
	if err != nil {
		return nil, fmt.Errorf("calibrate test/ood: %w", err)
	}

	log.Printf("[train/ood] avg dist=%.3f T=%.3f acc=%.2f%% auroc=%.3f",
		report.Train.Mean-report.OOD.Mean, report.TrainThreshold, report.TrainAccuracy, report.TrainAUROC)
	log.Printf("[test /ood] avg dist=%.3f T=%.3f acc=%.2f%% auroc=%.3f",
		report.Test.Mean-report.OOD.Mean, report.TestThreshold, report.TestAccuracy, report.TestAUROC)

	if err := saveWeights(m, out, cfg.Upload); err != nil {
		return nil, err
	}
	tr := out.tracker()
	if err := tr.Log(map[string]float64{"roc_auc_train": report.TrainAUROC, "T_acc_train": report.TrainAccuracy}); err != nil {
		return nil, fmt.Errorf("log train metrics: %w", err)
	}
	if err := tr.Log(map[string]float64{"roc_auc_test": report.TestAUROC, "T_acc_test": report.TestAccuracy}); err != nil {
		return nil, fmt.Errorf("log test metrics: %w", err)
	}

	if !cfg.Histogram {
		return report, nil
	}

	tTrain, tTest := report.TrainThreshold, report.TestThreshold
	if cfg.Threshold != nil {
		tTrain, tTest = *cfg.Threshold, *cfg.Threshold
	}

	path := out.imagePath(fmt.Sprintf("ood_histogram_%d.html", epoch))
	frac, err := renderOODHistogram(path, yTrain, yTest, yOOD, tTrain, tTest, cfg)
	if err != nil {
		return nil, err
	}
	report.SampleFraction = frac
	report.HistogramPath = path

	if cfg.Upload {
		if err := tr.SaveArtifact(path); err != nil {
			return nil, fmt.Errorf("track ood histogram: %w", err)
		}
	}
	display(path)
	return report, nil
}

// histogramFraction returns the uniform subsample fraction for n
// combined rows.
func histogramFraction(n int) float64 {
	if n >= maxHistogramRows {
		return float64(maxHistogramRows) / float64(n)
	}
	return 1.0
}

// subsample keeps round(frac*len) uniformly chosen scores.
func subsample(scores []float64, frac float64, r *rand.Rand) []float64 {
	if frac >= 1 {
		return scores
	}
	keep := int(math.Round(frac * float64(len(scores))))
	perm := permutation(len(scores), r)
	out := make([]float64, 0, keep)
	for _, idx := range perm[:keep] {
		out = append(out, scores[idx])
	}
	return out
}

// renderOODHistogram writes the combined density histogram as an HTML
// chart and returns the subsample fraction used.
func renderOODHistogram(path string, yTrain, yTest, yOOD []float64, tTrain, tTest float64, cfg OODOptions) (float64, error) {
	frac := histogramFraction(len(yTrain) + len(yTest) + len(yOOD))
	yTrain = subsample(yTrain, frac, cfg.Rand)
	yTest = subsample(yTest, frac, cfg.Rand)
	yOOD = subsample(yOOD, frac, cfg.Rand)

	lo, hi := combinedRange(yTrain, yTest, yOOD)
	if !(hi > lo) {
		hi = lo + 1
	}
	binWidth := (hi - lo) / float64(cfg.Bins)

	labels := make([]string, cfg.Bins)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.3f", lo+binWidth*(float64(i)+0.5))
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "OOD Score Histogram", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "OOD Score Histogram", Subtitle: fmt.Sprintf("rows=%d fraction=%.3f", len(yTrain)+len(yTest)+len(yOOD), frac)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels)

	overlay := charts.WithBarChartOpts(opts.BarChart{BarGap: "-100%"})
	bar.AddSeries("train", densityBars(yTrain, lo, binWidth, cfg.Bins), overlay,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#4363d8", Opacity: opts.Float(0.75)}))
	bar.AddSeries("test", densityBars(yTest, lo, binWidth, cfg.Bins), overlay,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#3cb44b", Opacity: opts.Float(0.75)}))
	bar.AddSeries("ood", densityBars(yOOD, lo, binWidth, cfg.Bins), overlay,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#e6194b", Opacity: opts.Float(0.75)}),
		charts.WithMarkLineNameXAxisItemOpts(
			opts.MarkLineNameXAxisItem{Name: "T (test)", XAxis: binIndex(tTest, lo, binWidth, cfg.Bins)},
			opts.MarkLineNameXAxisItem{Name: "T (train)", XAxis: binIndex(tTrain, lo, binWidth, cfg.Bins)},
		))

	if err := ensureParent(path); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := bar.Render(f); err != nil {
		return 0, fmt.Errorf("render %s: %w", path, err)
	}
	return frac, nil
}

func combinedRange(sets ...[]float64) (lo, hi float64) {
	first := true
	for _, set := range sets {
		for _, v := range set {
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

// densityBars bins the scores and normalizes counts to a density.
func densityBars(scores []float64, lo, binWidth float64, bins int) []opts.BarData {
	counts := make([]float64, bins)
	for _, v := range scores {
		counts[binIndex(v, lo, binWidth, bins)]++
	}
	total := float64(len(scores))
	data := make([]opts.BarData, bins)
	for i, c := range counts {
		d := 0.0
		if total > 0 {
			d = c / (total * binWidth)
		}
		data[i] = opts.BarData{Value: d}
	}
	return data
}

func binIndex(v, lo, binWidth float64, bins int) int {
	idx := int((v - lo) / binWidth)
	if idx < 0 {
		idx = 0
	}
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}
