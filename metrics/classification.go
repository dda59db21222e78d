// Package metrics implements classification metrics over gonum column
// vectors.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Labels converts an n×1 matrix of integer-valued labels to ints.
func Labels(op string, y mat.Matrix) ([]int, error) {
	if y == nil {
		return nil, errors.NewValueError(op, "empty label vector")
	}
	r, c := y.Dims()
	if r == 0 {
		return nil, errors.NewValueError(op, "empty label vector")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "labels must be a column vector (n×1 matrix)")
	}

	out := make([]int, r)
	for i := 0; i < r; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || v != math.Trunc(v) {
			return nil, errors.NewValueError(op, fmt.Sprintf("label at row %d is not an integer: %v", i, v))
		}
		out[i] = int(v)
	}
	return out, nil
}

func labelPair(op string, yTrue, yPred mat.Matrix) ([]int, []int, error) {
	t, err := Labels(op, yTrue)
	if err != nil {
		return nil, nil, err
	}
	p, err := Labels(op, yPred)
	if err != nil {
		return nil, nil, err
	}
	if len(t) != len(p) {
		return nil, nil, errors.NewDimensionError(op, len(t), len(p), 0)
	}
	return t, p, nil
}

// uniqueLabels returns the sorted union of labels in both slices.
func uniqueLabels(a, b []int) []int {
	set := make(map[int]struct{}, 4)
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// AccuracyScore returns the fraction of rows where yPred equals yTrue.
func AccuracyScore(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := labelPair("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range t {
		if t[i] == p[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(t)), nil
}

// ConfusionMatrix returns C where C[i][j] counts rows whose true label is
// labels[i] and whose predicted label is labels[j]. labels is the sorted
// union of both inputs.
func ConfusionMatrix(yTrue, yPred mat.Matrix) (*mat.Dense, []int, error) {
	t, p, err := labelPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	labels := uniqueLabels(t, p)
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := range t {
		r, c := index[t[i]], index[p[i]]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}

// ClassScores holds per-class precision, recall, F1 and support.
type ClassScores struct {
	Labels    []int
	Precision []float64
	Recall    []float64
	F1        []float64
	Support   []int
}

// PrecisionRecallFScoreSupport computes per-class scores. A zero
// denominator yields 0 and emits an UndefinedMetricWarning.
func PrecisionRecallFScoreSupport(yTrue, yPred mat.Matrix) (*ClassScores, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	k := len(labels)
	s := &ClassScores{
		Labels:    labels,
		Precision: make([]float64, k),
		Recall:    make([]float64, k),
		F1:        make([]float64, k),
		Support:   make([]int, k),
	}

	for i := 0; i < k; i++ {
		tp := cm.At(i, i)
		predicted := mat.Sum(cm.ColView(i))
		actual := mat.Sum(cm.RowView(i))
		s.Support[i] = int(actual)

		if predicted == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision",
				"no predicted samples for label "+strconv.Itoa(labels[i]), 0))
		} else {
			s.Precision[i] = tp / predicted
		}
		if actual == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("recall",
				"no true samples for label "+strconv.Itoa(labels[i]), 0))
		} else {
			s.Recall[i] = tp / actual
		}
		if pr := s.Precision[i] + s.Recall[i]; pr > 0 {
			s.F1[i] = 2 * s.Precision[i] * s.Recall[i] / pr
		}
	}
	return s, nil
}

// Average holds an aggregate row of a classification report.
type Average struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassificationReport is the per-class summary printed by the experiment.
type ClassificationReport struct {
	Scores      *ClassScores
	Accuracy    float64
	Total       int
	MacroAvg    Average
	WeightedAvg Average
}

// NewClassificationReport builds a report for yTrue against yPred.
func NewClassificationReport(yTrue, yPred mat.Matrix) (*ClassificationReport, error) {
	scores, err := PrecisionRecallFScoreSupport(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	acc, err := AccuracyScore(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	rep := &ClassificationReport{Scores: scores, Accuracy: acc}
	k := float64(len(scores.Labels))
	for i := range scores.Labels {
		sup := float64(scores.Support[i])
		rep.Total += scores.Support[i]
		rep.MacroAvg.Precision += scores.Precision[i] / k
		rep.MacroAvg.Recall += scores.Recall[i] / k
		rep.MacroAvg.F1 += scores.F1[i] / k
		rep.WeightedAvg.Precision += scores.Precision[i] * sup
		rep.WeightedAvg.Recall += scores.Recall[i] * sup
		rep.WeightedAvg.F1 += scores.F1[i] * sup
	}
	rep.MacroAvg.Support = rep.Total
	rep.WeightedAvg.Support = rep.Total
	if rep.Total > 0 {
		n := float64(rep.Total)
		rep.WeightedAvg.Precision /= n
		rep.WeightedAvg.Recall /= n
		rep.WeightedAvg.F1 /= n
	}
	return rep, nil
}

// String renders the report in the scikit-learn text layout.
func (r *ClassificationReport) String() string {
	const lastLine = "weighted avg"
	width := len(lastLine)
	for _, l := range r.Scores.Labels {
		if n := len(strconv.Itoa(l)); n > width {
			width = n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for i, l := range r.Scores.Labels {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, strconv.Itoa(l),
			r.Scores.Precision[i], r.Scores.Recall[i], r.Scores.F1[i], r.Scores.Support[i])
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, "macro avg",
		r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, lastLine,
		r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)
	return b.String()
}
