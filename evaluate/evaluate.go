// Package evaluate provides the score statistics and threshold
// calibration the plotters report alongside their figures.
package evaluate

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Summary captures the descriptive statistics of a score population.
type Summary struct {
	Count    int
	Mean     float64
	Variance float64
	Min      float64
	Max      float64
}

// String renders the summary in a compact single-line form for logs.
func (s Summary) String() string {
	return fmt.Sprintf("n=%d mean=%.4f var=%.4f min=%.4f max=%.4f", s.Count, s.Mean, s.Variance, s.Min, s.Max)
}

// Describe computes count, mean, variance and extremes of scores.
func Describe(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	min, max := scores[0], scores[0]
	for _, v := range scores[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return Summary{
		Count:    len(scores),
		Mean:     stat.Mean(scores, nil),
		Variance: stat.Variance(scores, nil),
		Min:      min,
		Max:      max,
	}
}

// Quantile returns the empirical q-quantile of scores. The input is
// not modified.
func Quantile(scores []float64, q float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// Calibrator chooses a decision threshold between an in-distribution
// score population and an out-of-distribution one, returning the
// threshold, the classification accuracy it achieves (percent) and
// the AUROC of the score ordering.
type Calibrator func(inScores, oodScores []float64) (threshold, accuracy, auroc float64, err error)

// CalibrateAccuracy is the default Calibrator. It sweeps every
// observed score as a candidate threshold, classifying points with
// score >= T as in-distribution, and keeps the T with the best
// accuracy. AUROC comes from the ROC curve of the pooled scores.
func CalibrateAccuracy(inScores, oodScores []float64) (threshold, accuracy, auroc float64, err error) {
	if len(inScores) == 0 || len(oodScores) == 0 {
		return 0, 0, 0, fmt.Errorf("calibrate: need scores from both populations (got %d in, %d ood)", len(inScores), len(oodScores))
	}

	in := append([]float64(nil), inScores...)
	ood := append([]float64(nil), oodScores...)
	sort.Float64s(in)
	sort.Float64s(ood)

	total := float64(len(in) + len(ood))
	candidates := append(append([]float64(nil), in...), ood...)
	sort.Float64s(candidates)

	bestT, bestAcc := candidates[0], -1.0
	for _, t := range candidates {
		// in-distribution correct: score >= t.
		inCorrect := len(in) - sort.SearchFloat64s(in, t)
		// ood correct: score < t.
		oodCorrect := sort.SearchFloat64s(ood, t)
		acc := float64(inCorrect+oodCorrect) / total
		if acc > bestAcc {
			bestAcc = acc
			bestT = t
		}
	}

	return bestT, bestAcc * 100, rocAUC(in, ood), nil
}

// rocAUC computes the area under the ROC curve for the pooled,
// labelled scores, treating in-distribution as the positive class.
// Both inputs must be sorted ascending.
func rocAUC(in, ood []float64) float64 {
	n := len(in) + len(ood)
	y := make([]float64, 0, n)
	classes := make([]bool, 0, n)

	// Merge the two sorted populations so stat.ROC sees ascending y.
	i, j := 0, 0
	for i < len(in) || j < len(ood) {
		if j >= len(ood) || (i < len(in) && in[i] <= ood[j]) {
			y = append(y, in[i])
			classes = append(classes, true)
			i++
		} else {
			y = append(y, ood[j])
			classes = append(classes, false)
			j++
		}
	}

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
