package model_selection

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Number is a hyperparameter value type.
type Number interface {
	constraints.Integer | constraints.Float
}

// Domain is the set of admissible values of one hyperparameter. A value
// below the lower bound (or equal to it, when the bound is strict) is
// replaced by the floor; a value above the upper bound is replaced by the
// upper bound.
type Domain[T Number] struct {
	Name string

	lower    T
	hasLower bool
	strict   bool
	floor    T

	upper    T
	hasUpper bool
}

// Unbounded returns a domain that admits every value.
func Unbounded[T Number](name string) Domain[T] {
	return Domain[T]{Name: name}
}

// AtLeast returns the domain [min, +inf) with floor min.
func AtLeast[T Number](name string, min T) Domain[T] {
	return Domain[T]{Name: name, lower: min, hasLower: true, floor: min}
}

// GreaterThan returns the domain (bound, +inf). Violating values are
// replaced by floor, which must itself be greater than bound.
func GreaterThan[T Number](name string, bound, floor T) (Domain[T], error) {
	d := Domain[T]{Name: name, lower: bound, hasLower: true, strict: true, floor: floor}
	return d, d.check()
}

// Positive returns the domain (0, +inf) with the given floor.
func Positive[T Number](name string, floor T) (Domain[T], error) {
	return GreaterThan(name, 0, floor)
}

// Closed returns the domain [min, max] with floor min.
func Closed[T Number](name string, min, max T) (Domain[T], error) {
	return AtLeast(name, min).WithMax(max)
}

// WithMax adds an inclusive upper bound.
func (d Domain[T]) WithMax(max T) (Domain[T], error) {
	d.upper = max
	d.hasUpper = true
	return d, d.check()
}

// WithFloor replaces the value substituted for lower-bound violations.
func (d Domain[T]) WithFloor(floor T) (Domain[T], error) {
	d.floor = floor
	return d, d.check()
}

func (d Domain[T]) check() error {
	if !d.hasLower {
		return nil
	}
	if d.belowLower(d.floor) {
		return errors.NewDomainError(d.Name, fmt.Sprintf("floor %v violates the lower bound %v", d.floor, d.lower))
	}
	if d.hasUpper && d.floor > d.upper {
		return errors.NewDomainError(d.Name, fmt.Sprintf("floor %v exceeds the upper bound %v", d.floor, d.upper))
	}
	return nil
}

func (d Domain[T]) belowLower(v T) bool {
	if !d.hasLower {
		return false
	}
	if d.strict {
		return v <= d.lower
	}
	return v < d.lower
}

// Contains reports whether v is admissible.
func (d Domain[T]) Contains(v T) bool {
	if d.belowLower(v) {
		return false
	}
	return !d.hasUpper || v <= d.upper
}

// Clamp maps v into the domain.
func (d Domain[T]) Clamp(v T) T {
	if d.belowLower(v) {
		return d.floor
	}
	if d.hasUpper && v > d.upper {
		return d.upper
	}
	return v
}

// clampFloat applies Clamp to a raw draw before converting it to T, so
// that out-of-range draws never overflow an integer T.
func (d Domain[T]) clampFloat(x float64) T {
	switch {
	case d.hasUpper && x > float64(d.upper):
		return d.upper
	case d.hasLower && x < float64(d.lower):
		return d.floor
	}
	return d.Clamp(T(x))
}

func (d Domain[T]) String() string {
	lo, hi := "-inf", "+inf"
	open := "("
	if d.hasLower {
		lo = fmt.Sprint(d.lower)
		if !d.strict {
			open = "["
		}
	}
	closing := ")"
	if d.hasUpper {
		hi = fmt.Sprint(d.upper)
		closing = "]"
	}
	return fmt.Sprintf("%s in %s%s, %s%s", d.Name, open, lo, hi, closing)
}

func isInteger[T Number]() bool {
	half := 0.5
	return T(half) == 0
}
