package model_selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
)

// stump predicts 1 when the first feature exceeds threshold.
type stump struct {
	threshold float64
	fitted    bool
}

func (s *stump) Fit(X, y mat.Matrix) error {
	s.fitted = true
	return nil
}

func (s *stump) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !s.fitted {
		return nil, errors.NewNotFittedError("stump", "Predict")
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if X.At(i, 0) > s.threshold {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

func (s *stump) Classes() []int { return []int{0, 1} }

// stumpData has rows 0..19 with label 1 from row 10 on.
func stumpData() (*mat.Dense, *mat.Dense) {
	return rangeData(20, func(i int) bool { return i >= 10 })
}

type countingFactory struct {
	calls int
}

func (c *countingFactory) build(p Params) (model.Classifier, error) {
	c.calls++
	return &stump{threshold: p.Float("threshold")}, nil
}

func stumpSpace() ParamSpace {
	return ParamSpace{
		FloatParam("threshold", []float64{2, 5, 9.5, 12, 15}),
		IntParam("noise", []int{0, 1, 2, 3, 4}),
	}
}

func TestRandomizedSearchCV_RejectsBudgetBeforeFitting(t *testing.T) {
	X, y := stumpData()
	f := &countingFactory{}
	logger, _ := log.NewTestLogger(log.LevelDebug)

	search := NewRandomizedSearchCV(f.build, stumpSpace(), 30, WithLogger(logger))
	err := search.Fit(X, y)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSearchBudget))

	var be *errors.SearchBudgetError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 30, be.Requested)
	assert.Equal(t, 25, be.Combinations)
	assert.Zero(t, f.calls)
	assert.True(t, logger.ContainsMessage("Search budget rejected"))

	assert.Equal(t, -1, search.BestIndex())
	_, err = search.BestEstimator()
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestRandomizedSearchCV_BudgetCountsDistinctCombinations(t *testing.T) {
	X, y := stumpData()
	// 25 positional combinations but only 3x3 distinct ones
	space := ParamSpace{
		FloatParam("threshold", []float64{2, 9.5, 9.5, 9.5, 15}),
		IntParam("noise", []int{0, 0, 1, 1, 2}),
	}
	require.Equal(t, 25, space.Size())

	f := &countingFactory{}
	err := NewRandomizedSearchCV(f.build, space, 10).Fit(X, y)
	var be *errors.SearchBudgetError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 10, be.Requested)
	assert.Equal(t, 9, be.Combinations)
	assert.Zero(t, f.calls)

	search := NewRandomizedSearchCV(f.build, space, 9, WithRandomState(5))
	require.NoError(t, search.Fit(X, y))
	results := search.Results()
	require.Len(t, results, 9)
	assert.Equal(t, 9*5+1, f.calls)

	seen := make(map[string]bool)
	for _, r := range results {
		assert.True(t, space.Contains(r.Params))
		assert.False(t, seen[r.Params.String()], "combination %s evaluated twice", r.Params)
		seen[r.Params.String()] = true
	}
	assert.Equal(t, 9.5, search.BestParams().Float("threshold"))

	grid := NewGridSearchCV((&countingFactory{}).build, space)
	require.NoError(t, grid.Fit(X, y))
	assert.Len(t, grid.Results(), 9)
}

func TestRandomizedSearchCV_Fit(t *testing.T) {
	X, y := stumpData()
	f := &countingFactory{}
	logger, _ := log.NewTestLogger(log.LevelDebug)

	search := NewRandomizedSearchCV(f.build, stumpSpace(), 20,
		WithRandomState(42), WithLogger(logger), WithModelName("stump"))
	require.NoError(t, search.Fit(X, y))

	results := search.Results()
	require.Len(t, results, 20)
	assert.Equal(t, 20*5+1, f.calls)

	seen := make(map[string]bool)
	best := results[0].MeanScore
	for i, r := range results {
		assert.Equal(t, i, r.Trial)
		assert.True(t, stumpSpace().Contains(r.Params), "params %s", r.Params)
		assert.False(t, seen[r.Params.String()], "combination %s evaluated twice", r.Params)
		seen[r.Params.String()] = true
		assert.Len(t, r.FoldScores, 5)
		if r.MeanScore > best {
			best = r.MeanScore
		}
	}

	firstBest := -1
	for i, r := range results {
		if r.MeanScore == best {
			firstBest = i
			break
		}
	}
	assert.Equal(t, firstBest, search.BestIndex())
	assert.Equal(t, best, search.BestScore())
	assert.Equal(t, results[firstBest].Params, search.BestParams())
	assert.Equal(t, 1, results[firstBest].Rank)

	est, err := search.BestEstimator()
	require.NoError(t, err)
	assert.Equal(t, search.BestParams().Float("threshold"), est.(*stump).threshold)

	pred, err := search.Predict(X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 20, r)

	assert.True(t, logger.ContainsMessage("Search started"))
	assert.True(t, logger.ContainsMessage("Trial finished"))
	assert.True(t, logger.ContainsMessage("Search finished"))
}

func TestRandomizedSearchCV_Reproducible(t *testing.T) {
	X, y := stumpData()
	run := func(seed uint64) []Params {
		f := &countingFactory{}
		s := NewRandomizedSearchCV(f.build, stumpSpace(), 8, WithRandomState(seed))
		require.NoError(t, s.Fit(X, y))
		out := make([]Params, 0, 8)
		for _, r := range s.Results() {
			out = append(out, r.Params)
		}
		return out
	}
	assert.Equal(t, run(3), run(3))
	assert.NotEqual(t, run(3), run(4))
}

func TestRandomizedSearchCV_TieGoesToFirstTrial(t *testing.T) {
	X, y := stumpData()
	constant := func(Params) (model.Classifier, error) {
		return &stump{threshold: 100}, nil
	}
	search := NewRandomizedSearchCV(constant, stumpSpace(), 6, WithRandomState(1))
	require.NoError(t, search.Fit(X, y))

	assert.Equal(t, 0, search.BestIndex())
	assert.Equal(t, search.Results()[0].Params, search.BestParams())
	for _, r := range search.Results() {
		assert.Equal(t, 1, r.Rank)
		assert.InDelta(t, 0.5, r.MeanScore, 1e-12)
		assert.InDelta(t, 0.0, r.StdScore, 1e-12)
	}
}

func TestRandomizedSearchCV_Validation(t *testing.T) {
	X, y := stumpData()
	f := &countingFactory{}
	var ve *errors.ValidationError

	assert.True(t, errors.As(NewRandomizedSearchCV(nil, stumpSpace(), 3).Fit(X, y), &ve))
	assert.True(t, errors.As(NewRandomizedSearchCV(f.build, nil, 3).Fit(X, y), &ve))
	assert.True(t, errors.As(NewRandomizedSearchCV(f.build, stumpSpace(), 0).Fit(X, y), &ve))

	empty := ParamSpace{FloatParam("threshold", []float64{})}
	err := NewRandomizedSearchCV(f.build, empty, 1).Fit(X, y)
	assert.True(t, errors.Is(err, errors.ErrInvalidSearchBudget))
	assert.Zero(t, f.calls)
}

func TestRandomizedSearchCV_Progress(t *testing.T) {
	X, y := stumpData()
	f := &countingFactory{}
	progress := make(chan TrialResult, 10)

	search := NewRandomizedSearchCV(f.build, stumpSpace(), 10, WithProgress(progress))
	require.NoError(t, search.Fit(X, y))
	require.Len(t, progress, 10)
	for i := 0; i < 10; i++ {
		tr := <-progress
		assert.Equal(t, i, tr.Trial)
	}
}

func TestRandomizedSearchCV_Cancelled(t *testing.T) {
	X, y := stumpData()
	f := &countingFactory{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRandomizedSearchCV(f.build, stumpSpace(), 5).FitContext(ctx, X, y)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, f.calls)
}

func TestRandomizedSearchCV_NoRefit(t *testing.T) {
	X, y := stumpData()
	f := &countingFactory{}

	search := NewRandomizedSearchCV(f.build, stumpSpace(), 4, WithRefit(false))
	require.NoError(t, search.Fit(X, y))
	assert.Equal(t, 4*5, f.calls)

	_, err := search.BestEstimator()
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))
}

func TestGridSearchCV(t *testing.T) {
	X, y := stumpData()
	f := &countingFactory{}

	search := NewGridSearchCV(f.build, stumpSpace(), WithCV(NewKFold(4, true, 2)))
	require.NoError(t, search.Fit(X, y))

	results := search.Results()
	require.Len(t, results, 25)
	for i, r := range results {
		assert.Equal(t, stumpSpace().At(i), r.Params)
		assert.Len(t, r.FoldScores, 4)
	}

	// threshold 9.5 separates the data; noise 0 is the first such combination
	assert.Equal(t, 10, search.BestIndex())
	assert.Equal(t, 1.0, search.BestScore())
	assert.Equal(t, Params{"threshold": 9.5, "noise": 0}, search.BestParams())
}

func TestCrossValScore(t *testing.T) {
	X, y := stumpData()
	f := &countingFactory{}

	scores, err := CrossValScore(f.build, Params{"threshold": 4.5}, X, y, NewKFold(2, false, 0), nil)
	require.NoError(t, err)
	// fold 0 holds rows 0..9, fold 1 rows 10..19
	assert.InDeltaSlice(t, []float64{0.5, 1.0}, scores, 1e-12)

	panicky := func(Params) (model.Classifier, error) { panic("boom") }
	_, err = CrossValScore(panicky, Params{}, X, y, nil, nil)
	var pe *errors.PanicError
	assert.True(t, errors.As(err, &pe))
}
