package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/internal/experiment"
	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	ms "github.com/YuminosukeSato/randsearch/sklearn/model_selection"
)

func outcomes(t *testing.T) []experiment.Outcome {
	t.Helper()
	yTrue := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	yPred := mat.NewDense(4, 1, []float64{0, 1, 1, 1})
	rep, err := metrics.NewClassificationReport(yTrue, yPred)
	require.NoError(t, err)

	space := ms.ParamSpace{ms.IntParam("n_estimators", []int{70, 75})}
	return []experiment.Outcome{
		{
			Model:    experiment.FamilyForest,
			Strategy: "random",
			Space:    space,
			Trials: []ms.TrialResult{
				{Trial: 0, Params: ms.Params{"n_estimators": 75}, MeanScore: 0.7},
				{Trial: 1, Params: ms.Params{"n_estimators": 70}, MeanScore: 0.8},
			},
			BestParams:   ms.Params{"n_estimators": 70},
			BestScore:    0.8,
			TestAccuracy: 0.75,
			Report:       rep,
			Duration:     1500 * time.Millisecond,
		},
		{
			Model:        experiment.FamilyLogistic,
			Strategy:     "grid",
			Space:        ms.ParamSpace{ms.FloatParam("C", []float64{0.5})},
			Trials:       []ms.TrialResult{{Trial: 0, Params: ms.Params{"C": 0.5}, MeanScore: 0.6}},
			BestParams:   ms.Params{"C": 0.5},
			BestScore:    0.6,
			TestAccuracy: 0.5,
		},
	}
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, outcomes(t)))
	out := buf.String()

	assert.Contains(t, out, "== random_forest (random search, 2 trials over 2 distinct combinations) ==")
	assert.Contains(t, out, "best params:   {n_estimators: 70}")
	assert.Contains(t, out, "cv accuracy:   0.8000")
	assert.Contains(t, out, "test accuracy: 0.7500")
	assert.Contains(t, out, "elapsed:       1.5s")
	assert.Contains(t, out, "precision")
	assert.Contains(t, out, "== logistic_regression (grid search, 1 trials over 1 distinct combinations) ==")
}

func TestSummary_Rejected(t *testing.T) {
	all := append(outcomes(t), experiment.Outcome{
		Model:    experiment.FamilySVM,
		Strategy: "random",
		Rejected: errors.NewSearchBudgetError(20, 16),
	})

	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, all))
	assert.Contains(t, buf.String(), "== svm (random search rejected) ==")
	assert.Contains(t, buf.String(), "== random_forest (random search, 2 trials")

	path := filepath.Join(t.TempDir(), "trials.png")
	require.NoError(t, PlotTrials(all, path))
}

func TestPlotTrials(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"trials.png", "trials.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, PlotTrials(outcomes(t), path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	var ve *errors.ValueError
	assert.True(t, errors.As(PlotTrials(nil, filepath.Join(dir, "x.png")), &ve))

	var vErr *errors.ValidationError
	assert.True(t, errors.As(PlotTrials(outcomes(t), filepath.Join(dir, "noext")), &vErr))
}
