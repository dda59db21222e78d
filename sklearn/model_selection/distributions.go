// Package model_selection implements hyperparameter candidate generation,
// cross-validation splitters and the randomized and exhaustive searches.
package model_selection

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Distribution is a continuous distribution that candidate values are drawn
// from.
type Distribution interface {
	// Sample draws k independent values from src, in draw order.
	Sample(src rand.Source, k int) []float64
	// Validate reports whether the parameters describe a proper
	// distribution.
	Validate() error
	fmt.Stringer
}

// NewSource returns the PCG source used for every sampling call. Passing
// the same seed reproduces the same draws.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// DeriveSeed mixes label into seed so that independent consumers of one
// configured seed draw from unrelated streams.
func DeriveSeed(seed uint64, label string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(label))
	return seed ^ h.Sum64()
}

// Uniform is the continuous uniform distribution on [Low, High).
type Uniform struct {
	Low  float64
	High float64
}

// Validate checks Low < High and both finite.
func (u Uniform) Validate() error {
	if math.IsNaN(u.Low) || math.IsNaN(u.High) || math.IsInf(u.Low, 0) || math.IsInf(u.High, 0) {
		return errors.NewValidationError("uniform", "bounds must be finite", u)
	}
	if !(u.Low < u.High) {
		return errors.NewValidationError("uniform", "low must be smaller than high", u)
	}
	return nil
}

// Sample draws k values.
func (u Uniform) Sample(src rand.Source, k int) []float64 {
	d := distuv.Uniform{Min: u.Low, Max: u.High, Src: src}
	out := make([]float64, k)
	for i := range out {
		out[i] = d.Rand()
	}
	return out
}

func (u Uniform) String() string {
	return fmt.Sprintf("uniform(%g, %g)", u.Low, u.High)
}

// Normal is the normal distribution with mean Mean and standard deviation
// Std.
type Normal struct {
	Mean float64
	Std  float64
}

// Validate checks a finite mean and a finite positive standard deviation.
func (n Normal) Validate() error {
	if math.IsNaN(n.Mean) || math.IsInf(n.Mean, 0) {
		return errors.NewValidationError("normal", "mean must be finite", n)
	}
	if !(n.Std > 0) || math.IsInf(n.Std, 0) {
		return errors.NewValidationError("normal", "std must be a finite value > 0", n)
	}
	return nil
}

// Sample draws k values.
func (n Normal) Sample(src rand.Source, k int) []float64 {
	d := distuv.Normal{Mu: n.Mean, Sigma: n.Std, Src: src}
	out := make([]float64, k)
	for i := range out {
		out[i] = d.Rand()
	}
	return out
}

func (n Normal) String() string {
	return fmt.Sprintf("normal(%g, %g)", n.Mean, n.Std)
}
