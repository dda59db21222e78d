package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Fold holds the row indices of one train/test split.
type Fold struct {
	Train []int
	Test  []int
}

// Splitter generates cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// KFold splits rows into NSplits consecutive folds. The first
// n_samples % NSplits folds get one extra row.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a KFold splitter.
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

func checkSplits(op string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewValidationError("n_splits", "must be >= 2", nSplits)
	}
	if nSplits > nSamples {
		return errors.NewValueError(op, fmt.Sprintf("cannot have n_splits=%d greater than the number of samples %d", nSplits, nSamples))
	}
	return nil
}

// Split returns the folds in order.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("KFold.Split", kf.NSplits, nSamples); err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := NewSource(kf.RandomSeed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	start := 0
	for i := range folds {
		size := foldSize
		if i < remainder {
			size++
		}
		folds[i] = complement(indices[start:start+size], nSamples)
		start += size
	}
	return folds, nil
}

// StratifiedKFold splits rows into NSplits folds that preserve the class
// proportions. Rows of each class, taken in sorted label order, are dealt
// round-robin over the folds.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewStratifiedKFold creates a StratifiedKFold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed uint64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split returns the folds in order.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("StratifiedKFold.Split", skf.NSplits, nSamples); err != nil {
		return nil, err
	}
	labels, err := metrics.Labels("StratifiedKFold.Split", y)
	if err != nil {
		return nil, err
	}
	if len(labels) != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, len(labels), 0)
	}

	byClass := make(map[int][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	var r *rand.Rand
	if skf.Shuffle {
		r = NewSource(skf.RandomSeed)
	}

	tests := make([][]int, skf.NSplits)
	next := 0
	for _, c := range classes {
		idx := byClass[c]
		if r != nil {
			r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
		for _, i := range idx {
			tests[next%skf.NSplits] = append(tests[next%skf.NSplits], i)
			next++
		}
	}

	folds := make([]Fold, skf.NSplits)
	for i, test := range tests {
		sort.Ints(test)
		folds[i] = complement(test, nSamples)
	}
	return folds, nil
}

// complement builds the fold whose test rows are test.
func complement(test []int, nSamples int) Fold {
	inTest := make([]bool, nSamples)
	for _, i := range test {
		inTest[i] = true
	}
	train := make([]int, 0, nSamples-len(test))
	for i := 0; i < nSamples; i++ {
		if !inTest[i] {
			train = append(train, i)
		}
	}
	return Fold{Train: train, Test: append([]int(nil), test...)}
}

// Subset copies the listed rows of X and y, in the given order.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()
	_, yCols := y.Dims()
	xs := mat.NewDense(len(indices), xCols, nil)
	ys := mat.NewDense(len(indices), yCols, nil)
	for r, i := range indices {
		for j := 0; j < xCols; j++ {
			xs.Set(r, j, X.At(i, j))
		}
		for j := 0; j < yCols; j++ {
			ys.Set(r, j, y.At(i, j))
		}
	}
	return xs, ys
}

// Split is the result of TrainTestSplit.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense
	TrainIndices  []int
	TestIndices   []int
}

// TrainTestSplit shuffles the rows with seed and holds out
// ceil(testSize * n_samples) of them as the test set.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed uint64) (*Split, error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nSamples, _ := X.Dims()
	yRows, _ := y.Dims()
	if nSamples != yRows {
		return nil, errors.NewDimensionError("TrainTestSplit", nSamples, yRows, 0)
	}
	nTest := int(math.Ceil(testSize * float64(nSamples)))
	nTrain := nSamples - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size=%g with %d samples leaves an empty train or test set", testSize, nSamples))
	}

	perm := NewSource(seed).Perm(nSamples)
	s := &Split{
		TestIndices:  perm[:nTest],
		TrainIndices: perm[nTest:],
	}
	s.XTrain, s.YTrain = Subset(X, y, s.TrainIndices)
	s.XTest, s.YTest = Subset(X, y, s.TestIndices)
	return s, nil
}
