// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/core/parallel"
	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
	"github.com/YuminosukeSato/randsearch/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of decision
// trees grown on bootstrap samples with random feature subsets.
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means floor(sqrt(n_features))
	bootstrap       bool
	randomState     uint64
	nJobs           int

	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int
	nFeatures_  int

	logger log.Logger
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithMaxFeatures sets the number of features examined per split. 0 uses
// floor(sqrt(n_features)).
func WithMaxFeatures(n int) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithMaxDepth limits the depth of every tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split of every tree.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithBootstrap toggles bootstrap sampling. Without it every tree sees all
// rows.
func WithBootstrap(bootstrap bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = bootstrap }
}

// WithRandomState seeds the per-tree seeds.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs sets how many trees are grown concurrently. 0 uses every core.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(rf *RandomForestClassifier) { rf.logger = logger }
}

// NewRandomForestClassifier creates a forest of 100 gini trees with
// bootstrap sampling and sqrt feature sampling.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
		nJobs:           1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	if rf.logger == nil {
		rf.logger = log.GetLoggerWithName("RandomForestClassifier")
	}
	return rf
}

func (rf *RandomForestClassifier) resolveMaxFeatures(nFeatures int) (int, error) {
	switch {
	case rf.maxFeatures < 0:
		return 0, errors.NewValidationError("max_features", "must be >= 0", rf.maxFeatures)
	case rf.maxFeatures > nFeatures:
		return 0, errors.NewValidationError("max_features",
			"must not exceed the number of features", rf.maxFeatures)
	case rf.maxFeatures == 0:
		return max(1, int(math.Sqrt(float64(nFeatures)))), nil
	}
	return rf.maxFeatures, nil
}

// Fit grows the trees. Tree seeds are drawn sequentially from random_state
// before any tree is grown, so the result does not depend on n_jobs.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	labels, err := metrics.Labels("RandomForestClassifier.Fit", y)
	if err != nil {
		return err
	}
	if len(labels) != rows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", rows, len(labels), 0)
	}
	maxFeatures, err := rf.resolveMaxFeatures(cols)
	if err != nil {
		return err
	}

	start := time.Now()
	classes := tree.UniqueClasses(labels)
	Xd := mat.DenseCopyOf(X)

	rng := rand.New(rand.NewPCG(rf.randomState, rf.randomState))
	seeds := make([]uint64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.ParallelizeWithJobs(rf.nEstimators, rf.nJobs, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			trees[i], errs[i] = rf.growTree(Xd, y, rows, classes, maxFeatures, seeds[i])
		}
	})
	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err, "RandomForestClassifier.Fit")
		}
	}

	rf.estimators_ = trees
	rf.classes_ = classes
	rf.nFeatures_ = cols
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()

	rf.logger.Debug("Forest fitted",
		log.OperationKey, log.OperationFit,
		"n_estimators", rf.nEstimators,
		"max_features", maxFeatures,
		log.SamplesKey, rows,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (rf *RandomForestClassifier) growTree(X *mat.Dense, y mat.Matrix, rows int, classes []int, maxFeatures int, seed uint64) (*tree.DecisionTreeClassifier, error) {
	indices := make([]int, rows)
	if rf.bootstrap {
		rng := rand.New(rand.NewPCG(seed, ^seed))
		for i := range indices {
			indices[i] = rng.IntN(rows)
		}
	} else {
		for i := range indices {
			indices[i] = i
		}
	}

	dt := tree.NewDecisionTreeClassifier(
		tree.WithCriterion(rf.criterion),
		tree.WithMaxDepth(rf.maxDepth),
		tree.WithMinSamplesSplit(rf.minSamplesSplit),
		tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
		tree.WithMaxFeatures(maxFeatures),
		tree.WithRandomState(seed),
	)
	err := errors.SafeExecute("RandomForestClassifier.growTree", func() error {
		return dt.FitSubset(X, y, indices, classes)
	})
	return dt, err
}

// PredictProba averages the tree probabilities. Columns follow Classes().
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := rf.state.CheckFeatures("RandomForestClassifier.PredictProba", X); err != nil {
		return nil, err
	}

	r, _ := X.Dims()
	sum := mat.NewDense(r, len(rf.classes_), nil)
	for _, t := range rf.estimators_ {
		p, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.estimators_)), sum)
	return sum, nil
}

// Predict returns the class with the highest averaged probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(rf.classes_[floats.MaxIdx(mat.Row(nil, i, proba))]))
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y), or 0 when prediction fails.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
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
func (rf *RandomForestClassifier) Classes() []int {
	return rf.classes_
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.estimators_
}

// GetFeatureImportances returns the mean of the tree importances.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, rf.nFeatures_)
	if len(rf.estimators_) == 0 {
		return out
	}
	for _, t := range rf.estimators_ {
		floats.Add(out, t.GetFeatureImportances())
	}
	floats.Scale(1/float64(len(rf.estimators_)), out)
	return out
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams updates the hyperparameters and resets the fitted state.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			rf.nEstimators, ok = value.(int)
		case "criterion":
			rf.criterion, ok = value.(string)
		case "max_depth":
			rf.maxDepth, ok = value.(int)
		case "min_samples_split":
			rf.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			rf.minSamplesLeaf, ok = value.(int)
		case "max_features":
			rf.maxFeatures, ok = value.(int)
		case "bootstrap":
			rf.bootstrap, ok = value.(bool)
		case "random_state":
			rf.randomState, ok = value.(uint64)
		case "n_jobs":
			rf.nJobs, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	rf.state.Reset()
	rf.estimators_ = nil
	return nil
}
