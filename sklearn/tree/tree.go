// Package tree implements a CART decision tree classifier.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node

	// proba holds class frequencies at the node; only read at leaves.
	proba []float64
}

func (n *node) isLeaf() bool { return n.left == nil }

// DecisionTreeClassifier is a binary-split CART classifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means every feature
	randomState     uint64

	root                *node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure, "gini" or "entropy".
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many randomly chosen features are examined at
// each split. 0 examines every feature.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a tree with gini impurity, unlimited
// depth, min_samples_split=2 and min_samples_leaf=1.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	switch {
	case dt.criterion != CriterionGini && dt.criterion != CriterionEntropy:
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	case dt.maxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", dt.maxDepth)
	case dt.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	case dt.maxFeatures < 0:
		return errors.NewValidationError("max_features", "must be >= 0", dt.maxFeatures)
	}
	return nil
}

// Fit grows the tree on every row of X.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	labels, err := metrics.Labels("DecisionTreeClassifier.Fit", y)
	if err != nil {
		return err
	}
	indices := make([]int, len(labels))
	for i := range indices {
		indices[i] = i
	}
	return dt.FitSubset(X, y, indices, UniqueClasses(labels))
}

// FitSubset grows the tree on the rows of X listed in indices, which may
// repeat. classes fixes the class order of PredictProba so that trees
// fitted on different bootstrap samples agree.
func (dt *DecisionTreeClassifier) FitSubset(X, y mat.Matrix, indices []int, classes []int) error {
	if err := dt.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 || len(indices) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	labels, err := metrics.Labels("DecisionTreeClassifier.Fit", y)
	if err != nil {
		return err
	}
	if len(labels) != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, len(labels), 0)
	}
	if len(classes) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "no classes")
	}

	classIndex := make(map[int]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}
	target := make([]int, rows)
	for i, l := range labels {
		ci, ok := classIndex[l]
		if !ok {
			return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("label %d is not in classes %v", l, classes))
		}
		target[i] = ci
	}

	dt.classes_ = append([]int(nil), classes...)
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = cols
	dt.featureImportances_ = make([]float64, cols)

	b := &builder{
		dt:      dt,
		X:       mat.DenseCopyOf(X),
		y:       target,
		rng:     rand.New(rand.NewPCG(dt.randomState, dt.randomState)),
		nTotal:  float64(len(indices)),
		scratch: make([]float64, dt.nClasses_),
	}
	dt.root = b.grow(append([]int(nil), indices...), 0)

	if total := floats.Sum(dt.featureImportances_); total > 0 {
		floats.Scale(1/total, dt.featureImportances_)
	}

	dt.state.SetDimensions(cols, len(indices))
	dt.state.SetFitted()
	return nil
}

// UniqueClasses returns the sorted distinct labels.
func UniqueClasses(labels []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

type builder struct {
	dt      *DecisionTreeClassifier
	X       *mat.Dense
	y       []int
	rng     *rand.Rand
	nTotal  float64
	scratch []float64
}

func (b *builder) counts(indices []int) []float64 {
	c := make([]float64, b.dt.nClasses_)
	for _, i := range indices {
		c[b.y[i]]++
	}
	return c
}

func (b *builder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	var imp float64
	switch b.dt.criterion {
	case CriterionEntropy:
		for _, c := range counts {
			if c > 0 {
				p := c / n
				imp -= p * math.Log2(p)
			}
		}
	default:
		imp = 1
		for _, c := range counts {
			p := c / n
			imp -= p * p
		}
	}
	return imp
}

func (b *builder) leaf(counts []float64, n float64) *node {
	proba := make([]float64, len(counts))
	for i, c := range counts {
		proba[i] = c / n
	}
	return &node{feature: -1, proba: proba}
}

func (b *builder) candidateFeatures() []int {
	d := b.dt.nFeatures_
	k := b.dt.maxFeatures
	if k <= 0 || k >= d {
		features := make([]int, d)
		for i := range features {
			features[i] = i
		}
		return features
	}
	return b.rng.Perm(d)[:k]
}

func (b *builder) grow(indices []int, depth int) *node {
	dt := b.dt
	n := float64(len(indices))
	counts := b.counts(indices)
	parentImpurity := b.impurity(counts, n)

	if parentImpurity == 0 ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		len(indices) < dt.minSamplesSplit ||
		len(indices) < 2*dt.minSamplesLeaf {
		return b.leaf(counts, n)
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := math.Inf(-1)
	var bestLeftImp, bestRightImp float64
	bestNLeft := 0

	left := b.scratch
	for _, f := range b.candidateFeatures() {
		sort.Slice(indices, func(a, c int) bool {
			return b.X.At(indices[a], f) < b.X.At(indices[c], f)
		})
		for i := range left {
			left[i] = 0
		}
		right := append([]float64(nil), counts...)

		for pos := 0; pos < len(indices)-1; pos++ {
			ci := b.y[indices[pos]]
			left[ci]++
			right[ci]--

			v, next := b.X.At(indices[pos], f), b.X.At(indices[pos+1], f)
			if v == next {
				continue
			}
			nLeft := pos + 1
			nRight := len(indices) - nLeft
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			li := b.impurity(left, float64(nLeft))
			ri := b.impurity(right, float64(nRight))
			gain := parentImpurity - (float64(nLeft)*li+float64(nRight)*ri)/n
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = v + (next-v)/2
				bestLeftImp, bestRightImp = li, ri
				bestNLeft = nLeft
			}
		}
	}

	if bestFeature < 0 {
		return b.leaf(counts, n)
	}

	nLeft := float64(bestNLeft)
	dt.featureImportances_[bestFeature] += (n*parentImpurity - nLeft*bestLeftImp - (n-nLeft)*bestRightImp) / b.nTotal

	var leftIdx, rightIdx []int
	for _, i := range indices {
		if b.X.At(i, bestFeature) <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      b.grow(leftIdx, depth+1),
		right:     b.grow(rightIdx, depth+1),
	}
}

func (dt *DecisionTreeClassifier) leafFor(X mat.Matrix, row int) *node {
	n := dt.root
	for !n.isLeaf() {
		if X.At(row, n.feature) <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n
}

// PredictProba returns an n×k matrix of class frequencies at each row's leaf.
// Columns follow Classes().
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, dt.nClasses_, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, dt.leafFor(X, i).proba)
	}
	return out, nil
}

// Predict returns the most frequent class at each row's leaf. Ties go to
// the smaller label.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "Predict"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(dt.classes_[floats.MaxIdx(dt.leafFor(X, i).proba)]))
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y), or 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.AccuracyScore(y, pred)
	if err != nil {
		return 0
	}
	return acc
}

// Classes returns the sorted class labels.
func (dt *DecisionTreeClassifier) Classes() []int {
	return dt.classes_
}

// GetFeatureImportances returns the normalized total impurity decrease per
// feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree. A single leaf has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int {
	var depth func(n *node) int
	depth = func(n *node) int {
		if n == nil || n.isLeaf() {
			return 0
		}
		return 1 + max(depth(n.left), depth(n.right))
	}
	return depth(dt.root)
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	var leaves func(n *node) int
	leaves = func(n *node) int {
		if n == nil {
			return 0
		}
		if n.isLeaf() {
			return 1
		}
		return leaves(n.left) + leaves(n.right)
	}
	return leaves(dt.root)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates the hyperparameters and resets the fitted state.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.criterion, ok = value.(string)
		case "max_depth":
			dt.maxDepth, ok = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.maxFeatures, ok = value.(int)
		case "random_state":
			dt.randomState, ok = value.(uint64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	dt.state.Reset()
	return dt.validate()
}
