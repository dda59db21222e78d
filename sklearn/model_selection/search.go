package model_selection

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
)

// TrialResult is the cross-validated evaluation of one combination.
type TrialResult struct {
	// Trial is the 0-based evaluation order.
	Trial      int
	Params     Params
	FoldScores []float64
	MeanScore  float64
	StdScore   float64
	FitTime    time.Duration
	// Rank is 1 for the best mean score; equal scores share a rank.
	Rank int
}

type searchConfig struct {
	cv          Splitter
	scorer      Scorer
	randomState uint64
	refit       bool
	logger      log.Logger
	progress    chan<- TrialResult
	modelName   string
}

// SearchOption configures RandomizedSearchCV and GridSearchCV.
type SearchOption func(*searchConfig)

// WithCV sets the cross-validation splitter. The default is a
// non-shuffled 5-fold StratifiedKFold.
func WithCV(cv Splitter) SearchOption {
	return func(c *searchConfig) { c.cv = cv }
}

// WithScorer sets the scoring function. The default is accuracy.
func WithScorer(scorer Scorer) SearchOption {
	return func(c *searchConfig) { c.scorer = scorer }
}

// WithRandomState seeds the choice of combinations.
func WithRandomState(seed uint64) SearchOption {
	return func(c *searchConfig) { c.randomState = seed }
}

// WithRefit controls whether the best combination is refitted on the full
// data. It is on by default.
func WithRefit(refit bool) SearchOption {
	return func(c *searchConfig) { c.refit = refit }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) SearchOption {
	return func(c *searchConfig) { c.logger = logger }
}

// WithProgress receives every TrialResult as soon as it is scored. Sends
// block until received or the context is done; the channel is never closed
// by the search.
func WithProgress(ch chan<- TrialResult) SearchOption {
	return func(c *searchConfig) { c.progress = ch }
}

// WithModelName labels log records.
func WithModelName(name string) SearchOption {
	return func(c *searchConfig) { c.modelName = name }
}

func newSearchConfig(opts []SearchOption) searchConfig {
	c := searchConfig{
		cv:        NewStratifiedKFold(5, false, 0),
		scorer:    AccuracyScorer,
		refit:     true,
		modelName: "estimator",
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("model_selection")
	}
	c.logger = c.logger.With(log.ModelNameKey, c.modelName)
	return c
}

// searchState holds what both searches produce.
type searchState struct {
	factory Factory
	space   ParamSpace
	cfg     searchConfig

	results       []TrialResult
	bestIndex     int
	bestEstimator model.Classifier
}

func (s *searchState) run(ctx context.Context, strategy string, combos []Params, X, y mat.Matrix) error {
	s.results = nil
	s.bestIndex = -1
	s.bestEstimator = nil

	start := time.Now()
	rows, _ := X.Dims()
	logger := s.cfg.logger.With(log.StrategyKey, strategy)
	logger.Info("Search started",
		log.OperationKey, log.OperationSearch,
		log.SearchIterKey, len(combos),
		log.CombinationsKey, s.space.Size(),
		log.DistinctKey, s.space.DistinctSize(),
		log.NSplitsKey, s.cfg.cv.GetNSplits(),
		log.SamplesKey, rows,
	)

	results := make([]TrialResult, 0, len(combos))
	for i, params := range combos {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "search interrupted after %d of %d trials", i, len(combos))
		}

		trialStart := time.Now()
		scores, err := CrossValScore(s.factory, params, X, y, s.cfg.cv, s.cfg.scorer)
		if err != nil {
			logger.Error("Trial failed", log.SearchTrialKey, i, log.ParamsKey, params.String(), log.ErrAttrKey, err)
			return err
		}
		mean, std := stat.PopMeanStdDev(scores, nil)
		tr := TrialResult{
			Trial:      i,
			Params:     params,
			FoldScores: scores,
			MeanScore:  mean,
			StdScore:   std,
			FitTime:    time.Since(trialStart),
		}
		results = append(results, tr)

		logger.Debug("Trial finished",
			log.SearchTrialKey, i,
			log.ParamsKey, params.String(),
			log.MeanScoreKey, mean,
			log.StdScoreKey, std,
			log.DurationMsKey, tr.FitTime.Milliseconds(),
		)

		if s.cfg.progress != nil {
			select {
			case s.cfg.progress <- tr:
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "search interrupted while reporting progress")
			}
		}
	}

	best := 0
	for i := range results {
		if results[i].MeanScore > results[best].MeanScore {
			best = i
		}
	}
	rank(results)
	s.results = results
	s.bestIndex = best

	if s.cfg.refit {
		est, err := s.factory(results[best].Params)
		if err != nil {
			return err
		}
		err = errors.SafeExecute("refit", func() error { return est.Fit(X, y) })
		if err != nil {
			return errors.Wrapf(err, "refit with %s", results[best].Params)
		}
		s.bestEstimator = est
	}

	logger.Info("Search finished",
		log.ParamsKey, results[best].Params.String(),
		log.MeanScoreKey, results[best].MeanScore,
		log.StdScoreKey, results[best].StdScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// rank assigns 1-based ranks by descending mean score; ties share the
// smallest rank.
func rank(results []TrialResult) {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].MeanScore > results[order[b]].MeanScore
	})
	for pos, i := range order {
		if pos > 0 && results[i].MeanScore == results[order[pos-1]].MeanScore {
			results[i].Rank = results[order[pos-1]].Rank
			continue
		}
		results[i].Rank = pos + 1
	}
}

func (s *searchState) validate() error {
	if s.factory == nil {
		return errors.NewValidationError("estimator", "factory is required", nil)
	}
	if len(s.space) == 0 {
		return errors.NewValidationError("param_distributions", "at least one parameter is required", nil)
	}
	if err := s.space.Validate(); err != nil {
		return err
	}
	if s.cfg.cv == nil {
		return errors.NewValidationError("cv", "splitter is required", nil)
	}
	if s.cfg.scorer == nil {
		return errors.NewValidationError("scoring", "scorer is required", nil)
	}
	return nil
}

func (s *searchState) requireFitted(method string) error {
	if s.bestIndex < 0 || s.results == nil {
		return errors.NewNotFittedError("search", method)
	}
	return nil
}

// BestParams returns the combination with the highest mean score. Ties
// go to the combination evaluated first.
func (s *searchState) BestParams() Params {
	if s.requireFitted("BestParams") != nil {
		return nil
	}
	return s.results[s.bestIndex].Params.Clone()
}

// BestScore returns the mean cross-validated score of BestParams.
func (s *searchState) BestScore() float64 {
	if s.requireFitted("BestScore") != nil {
		return 0
	}
	return s.results[s.bestIndex].MeanScore
}

// BestIndex returns the trial index of BestParams, or -1 before Fit.
func (s *searchState) BestIndex() int {
	return s.bestIndex
}

// BestEstimator returns the classifier refitted on the full data with
// BestParams.
func (s *searchState) BestEstimator() (model.Classifier, error) {
	if err := s.requireFitted("BestEstimator"); err != nil {
		return nil, err
	}
	if s.bestEstimator == nil {
		return nil, errors.NewValueError("BestEstimator", "search was run with refit disabled")
	}
	return s.bestEstimator, nil
}

// Results returns every trial in evaluation order.
func (s *searchState) Results() []TrialResult {
	out := make([]TrialResult, len(s.results))
	copy(out, s.results)
	return out
}

// Predict predicts with BestEstimator.
func (s *searchState) Predict(X mat.Matrix) (mat.Matrix, error) {
	est, err := s.BestEstimator()
	if err != nil {
		return nil, err
	}
	return est.Predict(X)
}

// RandomizedSearchCV evaluates NIter distinct combinations drawn without
// replacement from the candidate cross product.
type RandomizedSearchCV struct {
	searchState
	nIter int
}

// NewRandomizedSearchCV creates a randomized search over space.
func NewRandomizedSearchCV(factory Factory, space ParamSpace, nIter int, opts ...SearchOption) *RandomizedSearchCV {
	return &RandomizedSearchCV{
		searchState: searchState{factory: factory, space: space, cfg: newSearchConfig(opts), bestIndex: -1},
		nIter:       nIter,
	}
}

// Fit runs the search with a background context.
func (s *RandomizedSearchCV) Fit(X, y mat.Matrix) error {
	return s.FitContext(context.Background(), X, y)
}

// FitContext runs the search. The budget is checked before anything is
// fitted: an NIter above the number of distinct combinations fails with a
// SearchBudgetError. Repeated candidate values are evaluated once.
func (s *RandomizedSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := s.validate(); err != nil {
		return err
	}
	if s.nIter < 1 {
		return errors.NewValidationError("n_iter", "must be >= 1", s.nIter)
	}
	space := s.space.Distinct()
	size := space.Size()
	if s.nIter > size {
		err := errors.NewSearchBudgetError(s.nIter, size)
		s.cfg.logger.Error("Search budget rejected",
			log.StrategyKey, log.StrategyRandom,
			log.SearchIterKey, s.nIter,
			log.CombinationsKey, s.space.Size(),
			log.DistinctKey, size,
			log.ErrorCodeKey, log.ErrorInvalidBudget,
			log.SuggestionKey, "lower n_iter, draw more candidates or use GridSearchCV",
			log.ErrAttrKey, err,
		)
		return err
	}

	rng := NewSource(s.cfg.randomState)
	combos := make([]Params, s.nIter)
	for i, idx := range sampleIndices(rng, size, s.nIter) {
		combos[i] = space.At(idx)
	}
	return s.run(ctx, log.StrategyRandom, combos, X, y)
}

// NIter returns the number of combinations evaluated per Fit.
func (s *RandomizedSearchCV) NIter() int {
	return s.nIter
}

// GridSearchCV evaluates every distinct combination in index order.
type GridSearchCV struct {
	searchState
}

// NewGridSearchCV creates an exhaustive search over space.
func NewGridSearchCV(factory Factory, space ParamSpace, opts ...SearchOption) *GridSearchCV {
	return &GridSearchCV{
		searchState: searchState{factory: factory, space: space, cfg: newSearchConfig(opts), bestIndex: -1},
	}
}

// Fit runs the search with a background context.
func (s *GridSearchCV) Fit(X, y mat.Matrix) error {
	return s.FitContext(context.Background(), X, y)
}

// FitContext runs the search.
func (s *GridSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := s.validate(); err != nil {
		return err
	}
	space := s.space.Distinct()
	size := space.Size()
	if size == 0 {
		return errors.NewValidationError("param_grid", "every parameter needs at least one value", s.space)
	}
	combos := make([]Params, size)
	for i := range combos {
		combos[i] = space.At(i)
	}
	return s.run(ctx, log.StrategyGrid, combos, X, y)
}
