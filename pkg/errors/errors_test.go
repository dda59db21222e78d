package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "randsearch: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "randsearch: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 11, 12, 1)
	assert.Equal(t, "randsearch: Predict: dimension mismatch on axis 1 (features). Expected 11, got 12", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 11, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("SVC", "Predict")
	assert.Equal(t, "randsearch: SVC: this model is not fitted yet. Call Fit() before using Predict()", err.Error())

	var notFitted *NotFittedError
	assert.True(t, As(err, &notFitted))
}

func TestSearchBudgetError(t *testing.T) {
	err := NewSearchBudgetError(30, 25)

	assert.True(t, Is(err, ErrInvalidSearchBudget))
	assert.True(t, stderrors.Is(err, ErrInvalidSearchBudget))
	assert.False(t, Is(err, ErrData))
	assert.Contains(t, err.Error(), "n_iter=30")
	assert.Contains(t, err.Error(), "25 distinct")

	var budget *SearchBudgetError
	require.True(t, As(Wrap(err, "random forest search"), &budget))
	assert.Equal(t, 30, budget.Requested)
	assert.Equal(t, 25, budget.Combinations)
}

func TestDataError(t *testing.T) {
	cause := fmt.Errorf("strconv.ParseFloat: parsing \"abc\": invalid syntax")
	err := NewDataError("winequality-red.csv", 17, cause)

	assert.True(t, Is(err, ErrData))
	assert.Equal(t, "randsearch: data error in winequality-red.csv at line 17: "+cause.Error(), err.Error())

	noLine := NewDataError("http://example.invalid", 0, cause)
	assert.NotContains(t, noLine.Error(), "line")
}

func TestDomainError(t *testing.T) {
	err := NewDomainError("max_features", "floor 12 is above max 11")
	assert.Equal(t, "randsearch: inconsistent domain for 'max_features': floor 12 is above max 11", err.Error())

	var domErr *DomainError
	assert.True(t, As(err, &domErr))
}

func TestWarnings(t *testing.T) {
	warn := NewConvergenceWarning("SVC", 200, "")
	assert.True(t, strings.HasPrefix(warn.Error(), "SVC failed to converge after 200 iterations."))

	undefined := NewUndefinedMetricWarning("precision", "no predicted samples", 0)
	assert.Equal(t, "'precision' is ill-defined and being set to 0.000000 due to no predicted samples.", undefined.Error())
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewConvergenceWarning("LogisticRegression", 100, ""))
	require.Len(t, got, 1)

	var zl []error
	SetZerologWarnFunc(func(w error) { zl = append(zl, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("recall", "no true samples", 0))
	assert.Len(t, got, 1)
	assert.Len(t, zl, 1)
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows", "Fit", 10)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Fit: expected 10 rows")
}

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("ok", []float64{1, 2, 3}, 0))

	err := CheckScalar("gradient_update", 1.0/zero(), 7)
	require.Error(t, err)
	var inst *NumericalInstabilityError
	require.True(t, As(err, &inst))
	assert.Equal(t, 7, inst.Iteration)
}

func TestRecover(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "trial 3")
		panic("index out of range")
	}

	err := fn()
	require.Error(t, err)
	var panicErr *PanicError
	require.True(t, stderrors.As(err, &panicErr))
	assert.Equal(t, "trial 3", panicErr.Operation)
	assert.Equal(t, "panic in trial 3: index out of range", panicErr.Error())
	assert.NotEmpty(t, panicErr.StackTrace)
}

func TestSafeExecute(t *testing.T) {
	assert.NoError(t, SafeExecute("noop", func() error { return nil }))

	sentinel := fmt.Errorf("fit failed")
	assert.Equal(t, sentinel, SafeExecute("fit", func() error { return sentinel }))

	err := SafeExecute("fit", func() error {
		var m map[string]int
		m["boom"] = 1
		return nil
	})
	var panicErr *PanicError
	assert.True(t, stderrors.As(err, &panicErr))
}

func zero() float64 { return 0 }
