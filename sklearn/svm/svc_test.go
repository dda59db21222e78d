package svm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

func TestSVC_LinearMaximumMargin(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		3, 3,
		4, 3,
		3, 4,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	svc := NewSVC(WithKernel(KernelLinear), WithC(10))
	require.NoError(t, svc.Fit(X, y))
	assert.Equal(t, 1.0, svc.Score(X, y))
	assert.Equal(t, []int{3}, svc.NSupport())

	// the separating line is x0 + x1 = 3.5 with w = (0.4, 0.4)
	dec, err := svc.DecisionFunction(mat.NewDense(2, 2, []float64{2, 2, 1.75, 1.75}))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, dec.At(0, 0), 1e-3)
	assert.InDelta(t, 0.0, dec.At(1, 0), 1e-3)
}

func TestSVC_RBFSeparatesXOR(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		1, 1,
		0, 1,
		1, 0,
		0.1, 0.1,
		0.9, 0.9,
		0.1, 0.9,
		0.9, 0.1,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 0, 0, 1, 1})

	svc := NewSVC(WithC(10), WithGamma(2))
	require.NoError(t, svc.Fit(X, y))
	assert.Equal(t, 1.0, svc.Score(X, y))
	assert.Equal(t, 2.0, svc.Gamma())
}

func TestSVC_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		5, 5,
		5, 6,
		6, 5,
		10, 0,
		10, 1,
		11, 0,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	svc := NewSVC(WithC(10))
	require.NoError(t, svc.Fit(X, y))
	assert.Equal(t, []int{0, 1, 2}, svc.Classes())
	assert.Equal(t, 1.0, svc.Score(X, y))

	dec, err := svc.DecisionFunction(X)
	require.NoError(t, err)
	_, cols := dec.Dims()
	assert.Equal(t, 3, cols)
}

func TestSVC_GammaScale(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		3, 3,
		4, 3,
		3, 4,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	svc := NewSVC()
	require.NoError(t, svc.Fit(X, y))
	// 1 / (n_features * population variance of X) = 1 / (2 * 89/36)
	assert.InDelta(t, 18.0/89.0, svc.Gamma(), 1e-12)
}

func TestSVC_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X := mat.NewDense(4, 1, []float64{0, 1, 3, 4})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	svc := NewSVC(WithKernel(KernelLinear), WithMaxIter(1))
	require.NoError(t, svc.Fit(X, y))

	require.Len(t, warnings, 1)
	var cw *errors.ConvergenceWarning
	require.True(t, errors.As(warnings[0], &cw))
	assert.Equal(t, "SVC", cw.Algorithm)
}

func TestSVC_NumericalInstability(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, math.NaN(), 4})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	for _, kernel := range []string{KernelLinear, KernelRBF} {
		err := NewSVC(WithKernel(kernel), WithGamma(0.5)).Fit(X, y)
		var ne *errors.NumericalInstabilityError
		require.True(t, errors.As(err, &ne), "kernel %s: %v", kernel, err)
		assert.Equal(t, "SVC.smo_gradient", ne.Operation)
	}
}

func TestSVC_Validation(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewSVC(WithC(0)).Fit(X, y), &ve))
	assert.True(t, errors.As(NewSVC(WithC(-1)).Fit(X, y), &ve))
	assert.True(t, errors.As(NewSVC(WithKernel("poly")).Fit(X, y), &ve))

	var valErr *errors.ValueError
	assert.True(t, errors.As(NewSVC().Fit(X, mat.NewDense(2, 1, []float64{1, 1})), &valErr))

	_, err := NewSVC().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestSVC_SetParams(t *testing.T) {
	svc := NewSVC()
	require.NoError(t, svc.SetParams(map[string]interface{}{"C": 0.5, "gamma": 0.1}))
	assert.Equal(t, 0.5, svc.GetParams()["C"])
	assert.Equal(t, 0.1, svc.GetParams()["gamma"])

	var ve *errors.ValidationError
	assert.True(t, errors.As(svc.SetParams(map[string]interface{}{"C": -2.0}), &ve))
}
