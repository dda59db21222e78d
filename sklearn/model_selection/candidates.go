package model_selection

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Candidates draws k values from dist using src and maps each into domain.
// Integer types truncate draws toward zero before clamping. Draws are never
// rejected or redrawn, so the result keeps draw order, has exactly k
// values, and may repeat boundary values.
func Candidates[T Number](dist Distribution, k int, domain Domain[T], src rand.Source) ([]T, error) {
	if k < 0 {
		return nil, errors.NewValidationError(domain.Name, "sample count must be >= 0", k)
	}
	if dist == nil {
		return nil, errors.NewValidationError(domain.Name, "distribution is required", nil)
	}
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	if err := domain.check(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.NewValidationError(domain.Name, "random source is required", nil)
	}

	out := make([]T, k)
	if k == 0 {
		return out, nil
	}
	integer := isInteger[T]()
	for i, x := range dist.Sample(src, k) {
		if integer {
			x = math.Trunc(x)
		}
		out[i] = domain.clampFloat(x)
	}
	return out, nil
}
