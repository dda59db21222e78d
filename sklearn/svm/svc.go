// Package svm implements a support vector classifier trained with SMO.
package svm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
	"github.com/YuminosukeSato/randsearch/sklearn/tree"
)

const (
	KernelRBF    = "rbf"
	KernelLinear = "linear"
)

// GammaScale selects gamma = 1 / (n_features * X.var()).
const GammaScale = 0.0

// SVC is a C-support vector classifier. More than two classes are handled
// one-vs-rest.
type SVC struct {
	state *model.StateManager

	c       float64
	kernel  string
	gamma   float64 // <= 0 means GammaScale
	tol     float64
	maxIter int // <= 0 means max(10_000_000, 100*n_samples)

	classes_  []int
	gamma_    float64
	machines_ []*binaryMachine

	logger log.Logger
}

type binaryMachine struct {
	supportVectors *mat.Dense
	dualCoef       []float64 // alpha_i * y_i
	rho            float64
	iterations     int
}

// Option configures an SVC.
type Option func(*SVC)

// WithC sets the regularization parameter. It must be positive.
func WithC(c float64) Option {
	return func(s *SVC) { s.c = c }
}

// WithKernel sets the kernel, "rbf" or "linear".
func WithKernel(kernel string) Option {
	return func(s *SVC) { s.kernel = kernel }
}

// WithGamma sets the rbf kernel coefficient. Values <= 0 select GammaScale.
func WithGamma(gamma float64) Option {
	return func(s *SVC) { s.gamma = gamma }
}

// WithTol sets the stopping tolerance on the KKT violation.
func WithTol(tol float64) Option {
	return func(s *SVC) { s.tol = tol }
}

// WithMaxIter caps the number of SMO iterations.
func WithMaxIter(n int) Option {
	return func(s *SVC) { s.maxIter = n }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *SVC) { s.logger = logger }
}

// NewSVC creates an rbf SVC with C=1, gamma="scale" and tol=1e-3.
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		state:  model.NewStateManager(),
		c:      1.0,
		kernel: KernelRBF,
		gamma:  GammaScale,
		tol:    1e-3,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("SVC")
	}
	return s
}

func (s *SVC) validate() error {
	switch {
	case !(s.c > 0) || math.IsInf(s.c, 0):
		return errors.NewValidationError("C", "must be a finite value > 0", s.c)
	case s.kernel != KernelRBF && s.kernel != KernelLinear:
		return errors.NewValidationError("kernel", "must be 'rbf' or 'linear'", s.kernel)
	case !(s.tol > 0):
		return errors.NewValidationError("tol", "must be > 0", s.tol)
	}
	return nil
}

func (s *SVC) kernelFunc(a, b []float64) float64 {
	if s.kernel == KernelLinear {
		return floats.Dot(a, b)
	}
	d := floats.Distance(a, b, 2)
	return errors.StabilizeExp(-s.gamma_ * d * d)
}

// Fit solves the dual problem for every binary sub-problem.
func (s *SVC) Fit(X, y mat.Matrix) error {
	if err := s.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("SVC.Fit", "empty data", errors.ErrEmptyData)
	}
	labels, err := metrics.Labels("SVC.Fit", y)
	if err != nil {
		return err
	}
	if len(labels) != rows {
		return errors.NewDimensionError("SVC.Fit", rows, len(labels), 0)
	}
	classes := tree.UniqueClasses(labels)
	if len(classes) < 2 {
		return errors.NewValueError("SVC.Fit", fmt.Sprintf("needs samples of at least 2 classes, got %d", len(classes)))
	}

	Xd := mat.DenseCopyOf(X)
	s.gamma_ = s.gamma
	if s.gamma_ <= 0 {
		_, std := stat.PopMeanStdDev(Xd.RawMatrix().Data, nil)
		variance := std * std
		s.gamma_ = 1.0
		if variance > 0 {
			s.gamma_ = 1 / (float64(cols) * variance)
		}
	}

	gram := s.gram(Xd)

	var targets [][]float64
	if len(classes) == 2 {
		targets = [][]float64{signs(labels, classes[1])}
	} else {
		for _, c := range classes {
			targets = append(targets, signs(labels, c))
		}
	}

	machines := make([]*binaryMachine, len(targets))
	for k, t := range targets {
		m, err := s.solve(Xd, gram, t)
		if err != nil {
			return err
		}
		machines[k] = m
	}

	s.classes_ = classes
	s.machines_ = machines
	s.state.SetDimensions(cols, rows)
	s.state.SetFitted()
	return nil
}

func signs(labels []int, positive int) []float64 {
	out := make([]float64, len(labels))
	for i, l := range labels {
		out[i] = -1
		if l == positive {
			out[i] = 1
		}
	}
	return out
}

func (s *SVC) gram(X *mat.Dense) *mat.SymDense {
	n, _ := X.Dims()
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		xi := X.RawRowView(i)
		for j := i; j < n; j++ {
			k.SetSym(i, j, s.kernelFunc(xi, X.RawRowView(j)))
		}
	}
	return k
}

// stabilityCheckEvery is how often SMO scans the gradient for NaN or Inf.
const stabilityCheckEvery = 1000

// solve runs SMO with maximal violating pair selection on
//
//	min 1/2 a'Qa - e'a  s.t.  0 <= a <= C, y'a = 0,  Q_ij = y_i y_j K_ij.
func (s *SVC) solve(X *mat.Dense, K *mat.SymDense, y []float64) (*binaryMachine, error) {
	n := len(y)
	C := s.c
	alpha := make([]float64, n)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}

	maxIter := s.maxIter
	if maxIter <= 0 {
		maxIter = max(10_000_000, 100*n)
	}

	up := func(t int) bool { return (y[t] > 0 && alpha[t] < C) || (y[t] < 0 && alpha[t] > 0) }
	low := func(t int) bool { return (y[t] > 0 && alpha[t] > 0) || (y[t] < 0 && alpha[t] < C) }

	iter := 0
	for ; iter < maxIter; iter++ {
		i, j := -1, -1
		gMax, gMin := math.Inf(-1), math.Inf(1)
		for t := 0; t < n; t++ {
			v := -y[t] * grad[t]
			if up(t) && v > gMax {
				gMax, i = v, t
			}
			if low(t) && v < gMin {
				gMin, j = v, t
			}
		}
		if i < 0 || j < 0 || gMax-gMin < s.tol {
			break
		}

		a := K.At(i, i) + K.At(j, j) - 2*K.At(i, j)
		if a <= 0 {
			a = 1e-12
		}
		d := (gMax - gMin) / a

		// keep both multipliers inside [0, C]
		if y[i] > 0 {
			d = math.Min(d, C-alpha[i])
		} else {
			d = math.Min(d, alpha[i])
		}
		if y[j] > 0 {
			d = math.Min(d, alpha[j])
		} else {
			d = math.Min(d, C-alpha[j])
		}

		alpha[i] = errors.ClipValue(alpha[i]+y[i]*d, 0, C)
		alpha[j] = errors.ClipValue(alpha[j]-y[j]*d, 0, C)
		for t := 0; t < n; t++ {
			grad[t] += y[t] * d * (K.At(t, i) - K.At(t, j))
		}
		if iter%stabilityCheckEvery == 0 {
			if err := errors.CheckNumericalStability("SVC.smo_gradient", grad, iter); err != nil {
				return nil, err
			}
		}
	}
	if err := errors.CheckNumericalStability("SVC.smo_gradient", grad, iter); err != nil {
		return nil, err
	}

	if iter >= maxIter {
		errors.Warn(errors.NewConvergenceWarning("SVC", iter, "SMO stopped at max_iter before reaching tol"))
	}

	m := &binaryMachine{rho: rho(alpha, grad, y, C), iterations: iter}
	var sv []int
	for t := 0; t < n; t++ {
		if alpha[t] > 0 {
			sv = append(sv, t)
			m.dualCoef = append(m.dualCoef, alpha[t]*y[t])
		}
	}
	_, cols := X.Dims()
	if len(sv) > 0 {
		m.supportVectors = mat.NewDense(len(sv), cols, nil)
		for r, t := range sv {
			m.supportVectors.SetRow(r, X.RawRowView(t))
		}
	}

	s.logger.Debug("SMO finished",
		log.IterationKey, iter,
		"n_support", len(sv),
		"rho", m.rho,
	)
	return m, nil
}

// rho is the mean of y_i*G_i over free multipliers, or the midpoint of the
// feasible interval when every multiplier is at a bound.
func rho(alpha, grad, y []float64, C float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var sum float64
	free := 0
	for t := range alpha {
		yG := y[t] * grad[t]
		switch {
		case alpha[t] >= C:
			if y[t] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case alpha[t] <= 0:
			if y[t] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			free++
			sum += yG
		}
	}
	if free > 0 {
		return sum / float64(free)
	}
	return (ub + lb) / 2
}

func (m *binaryMachine) decision(s *SVC, x []float64) float64 {
	v := -m.rho
	if m.supportVectors == nil {
		return v
	}
	for r, coef := range m.dualCoef {
		v += coef * s.kernelFunc(m.supportVectors.RawRowView(r), x)
	}
	return v
}

// DecisionFunction returns the signed distance to the separating surface:
// n×1 for two classes (positive favours Classes()[1]), n×k otherwise.
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("SVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("SVC.DecisionFunction", X); err != nil {
		return nil, err
	}

	Xd := mat.DenseCopyOf(X)
	r, _ := Xd.Dims()
	out := mat.NewDense(r, len(s.machines_), nil)
	for i := 0; i < r; i++ {
		x := Xd.RawRowView(i)
		for k, m := range s.machines_ {
			out.Set(i, k, m.decision(s, x))
		}
	}
	return out, nil
}

// Predict returns the predicted class labels.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	r, _ := dec.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		var label int
		if len(s.machines_) == 1 {
			label = s.classes_[0]
			if dec.At(i, 0) > 0 {
				label = s.classes_[1]
			}
		} else {
			label = s.classes_[floats.MaxIdx(mat.Row(nil, i, dec))]
		}
		out.Set(i, 0, float64(label))
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y), or 0 when prediction fails.
func (s *SVC) Score(X, y mat.Matrix) float64 {
	pred, err := s.Predict(X)
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
func (s *SVC) Classes() []int {
	return s.classes_
}

// NSupport returns the number of support vectors of each binary machine.
func (s *SVC) NSupport() []int {
	out := make([]int, len(s.machines_))
	for k, m := range s.machines_ {
		out[k] = len(m.dualCoef)
	}
	return out
}

// Gamma returns the kernel coefficient used by the last Fit.
func (s *SVC) Gamma() float64 {
	return s.gamma_
}

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":        s.c,
		"kernel":   s.kernel,
		"gamma":    s.gamma,
		"tol":      s.tol,
		"max_iter": s.maxIter,
	}
}

// SetParams updates the hyperparameters and resets the fitted state.
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "C":
			s.c, ok = value.(float64)
		case "kernel":
			s.kernel, ok = value.(string)
		case "gamma":
			s.gamma, ok = value.(float64)
		case "tol":
			s.tol, ok = value.(float64)
		case "max_iter":
			s.maxIter, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	s.state.Reset()
	return s.validate()
}
