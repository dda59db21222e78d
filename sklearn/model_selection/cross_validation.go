package model_selection

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Factory builds an unfitted classifier for one hyperparameter combination.
type Factory func(params Params) (model.Classifier, error)

// Scorer scores a fitted classifier on (X, y). Higher is better.
type Scorer func(est model.Classifier, X, y mat.Matrix) (float64, error)

// AccuracyScorer scores by mean accuracy.
func AccuracyScorer(est model.Classifier, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(y, pred)
}

// CrossValScore fits a fresh classifier per fold and returns the fold
// scores in fold order. Panics inside Fit are returned as errors.
func CrossValScore(factory Factory, params Params, X, y mat.Matrix, cv Splitter, scorer Scorer) ([]float64, error) {
	if factory == nil {
		return nil, errors.NewValidationError("estimator", "factory is required", nil)
	}
	if cv == nil {
		cv = NewStratifiedKFold(5, false, 0)
	}
	if scorer == nil {
		scorer = AccuracyScorer
	}

	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	for i, fold := range folds {
		XTrain, yTrain := Subset(X, y, fold.Train)
		XTest, yTest := Subset(X, y, fold.Test)

		op := fmt.Sprintf("CrossValScore fold %d", i)
		err := errors.SafeExecute(op, func() error {
			est, err := factory(params)
			if err != nil {
				return err
			}
			if err := est.Fit(XTrain, yTrain); err != nil {
				return err
			}
			scores[i], err = scorer(est, XTest, yTest)
			return err
		})
		if err != nil {
			return nil, errors.Wrapf(err, "params %s", params)
		}
	}
	return scores, nil
}
