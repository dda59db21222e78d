// Package linear_model implements regularized logistic regression.
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
	"github.com/YuminosukeSato/randsearch/sklearn/tree"
)

const (
	PenaltyL2   = "l2"
	PenaltyNone = "none"

	SolverNewton = "newton"
	SolverGD     = "gd"
)

// LogisticRegression minimizes
//
//	1/n * sum(log_loss) + 1/(2*C*n) * ||w||^2
//
// which has the same minimizer as scikit-learn's C * sum(log_loss) + ||w||^2/2.
// The intercept is not penalized. More than two classes are fitted
// one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager

	penalty      string
	C            float64
	fitIntercept bool
	solver       string
	maxIter      int
	tol          float64

	coef_      [][]float64 // 1 x n_features for two classes, n_classes x n_features otherwise
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nIter_     []int

	logger log.Logger
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates an l2 model with C=1, the newton solver,
// max_iter=100 and tol=1e-4.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      PenaltyL2,
		C:            1.0,
		fitIntercept: true,
		solver:       SolverNewton,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	if lr.logger == nil {
		lr.logger = log.GetLoggerWithName("LogisticRegression")
	}
	return lr
}

// WithLRPenalty sets the penalty, "l2" or "none".
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether an intercept is fitted.
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRSolver sets the solver, "newton" or "gd".
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.solver = solver }
}

// WithLRMaxIter sets the maximum number of solver iterations.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the tolerance on the largest gradient component.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRLogger sets the logger.
func WithLRLogger(logger log.Logger) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.logger = logger }
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.penalty != PenaltyL2 && lr.penalty != PenaltyNone:
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.penalty)
	case !(lr.C > 0) || math.IsInf(lr.C, 0):
		return errors.NewValidationError("C", "must be a finite value > 0", lr.C)
	case lr.solver != SolverNewton && lr.solver != SolverGD:
		return errors.NewValidationError("solver", "must be 'newton' or 'gd'", lr.solver)
	case lr.maxIter < 1:
		return errors.NewValidationError("max_iter", "must be >= 1", lr.maxIter)
	case !(lr.tol > 0):
		return errors.NewValidationError("tol", "must be > 0", lr.tol)
	}
	return nil
}

// Fit trains the model.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	labels, err := metrics.Labels("LogisticRegression.Fit", y)
	if err != nil {
		return err
	}
	if len(labels) != nSamples {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, len(labels), 0)
	}
	classes := tree.UniqueClasses(labels)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs samples of at least 2 classes, got %d", len(classes)))
	}

	// design matrix with a trailing column of ones for the intercept
	A := mat.NewDense(nSamples, nFeatures+1, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			A.Set(i, j, X.At(i, j))
		}
		if lr.fitIntercept {
			A.Set(i, nFeatures, 1)
		}
	}

	positives := classes[1:]
	if len(classes) > 2 {
		positives = classes
	}

	lr.coef_ = make([][]float64, len(positives))
	lr.intercept_ = make([]float64, len(positives))
	lr.nIter_ = make([]int, len(positives))
	for k, positive := range positives {
		target := make([]float64, nSamples)
		for i, l := range labels {
			if l == positive {
				target[i] = 1
			}
		}
		w, iters, err := lr.fitBinary(A, target)
		if err != nil {
			return err
		}
		lr.coef_[k] = w[:nFeatures]
		lr.intercept_[k] = w[nFeatures]
		lr.nIter_[k] = iters
	}

	lr.classes_ = classes
	lr.nClasses_ = len(classes)
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

type objective struct {
	A      *mat.Dense
	y      []float64
	lambda float64
	n      float64
	d      int // penalized coefficients, the intercept column is excluded
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + errors.StabilizeExp(-z))
	}
	e := errors.StabilizeExp(z)
	return e / (1 + e)
}

func (o *objective) value(w []float64) float64 {
	r, _ := o.A.Dims()
	var loss float64
	for i := 0; i < r; i++ {
		z := floats.Dot(o.A.RawRowView(i), w)
		loss += math.Log1p(errors.StabilizeExp(-math.Abs(z))) + math.Max(z, 0) - o.y[i]*z
	}
	return loss/o.n + 0.5*o.lambda*floats.Dot(w[:o.d], w[:o.d])
}

// gradient fills g and, when h is not nil, the Hessian.
func (o *objective) gradient(w, g []float64, h *mat.SymDense) {
	r, c := o.A.Dims()
	for j := range g {
		g[j] = 0
	}
	if h != nil {
		h.Zero()
	}
	for i := 0; i < r; i++ {
		row := o.A.RawRowView(i)
		p := sigmoid(floats.Dot(row, w))
		floats.AddScaled(g, (p-o.y[i])/o.n, row)
		if h != nil {
			s := p * (1 - p) / o.n
			for a := 0; a < c; a++ {
				if row[a] == 0 {
					continue
				}
				for b := a; b < c; b++ {
					h.SetSym(a, b, h.At(a, b)+s*row[a]*row[b])
				}
			}
		}
	}
	for j := 0; j < o.d; j++ {
		g[j] += o.lambda * w[j]
		if h != nil {
			h.SetSym(j, j, h.At(j, j)+o.lambda)
		}
	}
}

func (lr *LogisticRegression) fitBinary(A *mat.Dense, y []float64) ([]float64, int, error) {
	n, c := A.Dims()
	o := &objective{A: A, y: y, n: float64(n), d: c - 1}
	if lr.penalty == PenaltyL2 {
		o.lambda = 1 / (lr.C * float64(n))
	}

	w := make([]float64, c)
	g := make([]float64, c)

	var step func(iter int) error
	switch lr.solver {
	case SolverGD:
		// 1/L with L bounding the largest Hessian eigenvalue by its trace
		var sq float64
		for i := 0; i < n; i++ {
			row := A.RawRowView(i)
			sq += floats.Dot(row, row)
		}
		rate := 1 / (0.25*sq/float64(n) + o.lambda)
		step = func(int) error {
			floats.AddScaled(w, -rate, g)
			return nil
		}
	default:
		h := mat.NewSymDense(c, nil)
		dir := mat.NewVecDense(c, nil)
		candidate := make([]float64, c)
		step = func(iter int) error {
			o.gradient(w, g, h)
			for j := 0; j < c; j++ {
				h.SetSym(j, j, h.At(j, j)+1e-8)
			}
			var chol mat.Cholesky
			if !chol.Factorize(h) || chol.SolveVecTo(dir, mat.NewVecDense(c, g)) != nil {
				dir.CopyVec(mat.NewVecDense(c, g))
			}
			f0 := o.value(w)
			if err := errors.CheckScalar("LogisticRegression.newton_loss", f0, iter); err != nil {
				return err
			}
			t := 1.0
			for k := 0; k < 30; k++ {
				copy(candidate, w)
				floats.AddScaled(candidate, -t, dir.RawVector().Data)
				if o.value(candidate) <= f0 {
					break
				}
				t /= 2
			}
			copy(w, candidate)
			return nil
		}
	}

	for iter := 0; iter < lr.maxIter; iter++ {
		o.gradient(w, g, nil)
		if err := errors.CheckNumericalStability("LogisticRegression.gradient", g, iter); err != nil {
			return nil, iter, err
		}
		if floats.Norm(g, math.Inf(1)) < lr.tol {
			return w, iter, nil
		}
		if err := step(iter); err != nil {
			return nil, iter, err
		}
		if err := errors.CheckNumericalStability("LogisticRegression."+lr.solver+"_step", w, iter); err != nil {
			return nil, iter, err
		}
	}

	errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
		fmt.Sprintf("%s solver did not reach tol=%g", lr.solver, lr.tol)))
	lr.logger.Debug("Solver stopped at max_iter",
		log.IterationKey, lr.maxIter,
		"solver", lr.solver,
	)
	return w, lr.maxIter, nil
}

// DecisionFunction returns the linear scores: n×1 for two classes, n×k
// otherwise.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := lr.state.CheckFeatures("LogisticRegression.DecisionFunction", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, len(lr.coef_), nil)
	row := make([]float64, len(lr.coef_[0]))
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		for k, w := range lr.coef_ {
			out.Set(i, k, floats.Dot(row, w)+lr.intercept_[k])
		}
	}
	return out, nil
}

// PredictProba returns an n×n_classes matrix. One-vs-rest probabilities are
// normalized to sum to 1.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	dec, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	r, _ := dec.Dims()
	out := mat.NewDense(r, lr.nClasses_, nil)
	for i := 0; i < r; i++ {
		if lr.nClasses_ == 2 {
			p := sigmoid(dec.At(i, 0))
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		var sum float64
		for k := 0; k < lr.nClasses_; k++ {
			p := sigmoid(dec.At(i, k))
			out.Set(i, k, p)
			sum += p
		}
		for k := 0; k < lr.nClasses_; k++ {
			out.Set(i, k, errors.SafeDivide(out.At(i, k), sum))
		}
	}
	return out, nil
}

// Predict returns the class with the highest probability.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(lr.classes_[floats.MaxIdx(mat.Row(nil, i, proba))]))
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y), or 0 when prediction fails.
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	pred, err := lr.Predict(X)
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
func (lr *LogisticRegression) Classes() []int {
	return lr.classes_
}

// Coef returns a copy of the fitted coefficients.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, w := range lr.coef_ {
		out[k] = append([]float64(nil), w...)
	}
	return out
}

// Intercept returns a copy of the fitted intercepts.
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter returns the solver iterations used per binary problem.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams updates the hyperparameters and resets the fitted state.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "solver":
			lr.solver, ok = value.(string)
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	lr.state.Reset()
	return lr.validate()
}
