// Package model defines the estimator interfaces shared by every classifier,
// transformer and search routine.
package model

import "gonum.org/v1/gonum/mat"

// Fitter is a model that learns from (X, y).
type Fitter interface {
	// Fit trains the model. y is an n×1 column of labels.
	Fit(X, y mat.Matrix) error
}

// Predictor is a model that produces an n×1 column of predictions.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is a supervised model.
type Estimator interface {
	Fitter
	Predictor
}

// Classifier is an Estimator over integer class labels.
type Classifier interface {
	Estimator

	// Classes returns the sorted class labels seen during Fit.
	Classes() []int
}

// ProbabilisticClassifier also estimates class membership probabilities.
// Columns follow the order of Classes().
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Transformer learns a feature transformation.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes hyperparameters using scikit-learn names.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter updates hyperparameters using scikit-learn names.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
