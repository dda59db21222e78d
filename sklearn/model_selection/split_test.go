package model_selection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

func rangeData(n int, positive func(i int) bool) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		if positive(i) {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func assertPartition(t *testing.T, folds []Fold, n int) {
	t.Helper()
	counts := make([]int, n)
	for _, f := range folds {
		assert.Equal(t, n, len(f.Train)+len(f.Test))
		for _, i := range f.Test {
			counts[i]++
		}
		inTest := make(map[int]bool)
		for _, i := range f.Test {
			inTest[i] = true
		}
		for _, i := range f.Train {
			assert.False(t, inTest[i])
		}
	}
	for i, c := range counts {
		assert.Equal(t, 1, c, "row %d", i)
	}
}

func TestKFold(t *testing.T) {
	X, y := rangeData(10, func(i int) bool { return i%2 == 0 })

	folds, err := NewKFold(3, false, 0).Split(X, y)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].Test)
	assert.Equal(t, []int{4, 5, 6}, folds[1].Test)
	assert.Equal(t, []int{7, 8, 9}, folds[2].Test)
	assertPartition(t, folds, 10)

	shuffled, err := NewKFold(3, true, 5).Split(X, y)
	require.NoError(t, err)
	assertPartition(t, shuffled, 10)
	again, err := NewKFold(3, true, 5).Split(X, y)
	require.NoError(t, err)
	assert.Equal(t, shuffled, again)
}

func TestStratifiedKFold(t *testing.T) {
	X, y := rangeData(20, func(i int) bool { return i >= 12 })

	for _, shuffle := range []bool{false, true} {
		folds, err := NewStratifiedKFold(4, shuffle, 9).Split(X, y)
		require.NoError(t, err)
		require.Len(t, folds, 4)
		assertPartition(t, folds, 20)

		for _, f := range folds {
			assert.True(t, sort.IntsAreSorted(f.Test))
			positives := 0
			for _, i := range f.Test {
				if i >= 12 {
					positives++
				}
			}
			assert.Equal(t, 2, positives)
			assert.Len(t, f.Test, 5)
		}
	}
}

func TestSplitterErrors(t *testing.T) {
	X, y := rangeData(4, func(i int) bool { return i > 1 })

	var ve *errors.ValidationError
	_, err := NewKFold(1, false, 0).Split(X, y)
	assert.True(t, errors.As(err, &ve))

	var valErr *errors.ValueError
	_, err = NewStratifiedKFold(5, false, 0).Split(X, y)
	assert.True(t, errors.As(err, &valErr))
}

func TestTrainTestSplit(t *testing.T) {
	X, y := rangeData(1599, func(i int) bool { return i%2 == 0 })

	s, err := TrainTestSplit(X, y, 0.25, 123)
	require.NoError(t, err)
	rows, _ := s.XTrain.Dims()
	assert.Equal(t, 1199, rows)
	rows, _ = s.XTest.Dims()
	assert.Equal(t, 400, rows)
	assert.Len(t, s.TrainIndices, 1199)
	assert.Len(t, s.TestIndices, 400)

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), s.TrainIndices...), s.TestIndices...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, 1599)

	for r, i := range s.TestIndices {
		assert.Equal(t, float64(i), s.XTest.At(r, 0))
		assert.Equal(t, y.At(i, 0), s.YTest.At(r, 0))
	}

	again, err := TrainTestSplit(X, y, 0.25, 123)
	require.NoError(t, err)
	assert.Equal(t, s.TestIndices, again.TestIndices)
}

func TestTrainTestSplit_Errors(t *testing.T) {
	X, y := rangeData(10, func(i int) bool { return i > 4 })

	var ve *errors.ValidationError
	for _, size := range []float64{0, 1, -0.2, 1.5} {
		_, err := TrainTestSplit(X, y, size, 0)
		assert.True(t, errors.As(err, &ve), "test_size %g", size)
	}

	var de *errors.DimensionError
	_, err := TrainTestSplit(X, mat.NewDense(9, 1, nil), 0.25, 0)
	assert.True(t, errors.As(err, &de))
}
