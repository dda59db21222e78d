package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Param is a hyperparameter name with its ordered candidate values.
type Param struct {
	Name    string
	Values  []float64
	Integer bool
}

// IntParam builds a Param from integer candidates.
func IntParam[T constraints.Integer](name string, values []T) Param {
	p := Param{Name: name, Values: make([]float64, len(values)), Integer: true}
	for i, v := range values {
		p.Values[i] = float64(v)
	}
	return p
}

// FloatParam builds a Param from floating point candidates.
func FloatParam[T constraints.Float](name string, values []T) Param {
	p := Param{Name: name, Values: make([]float64, len(values))}
	for i, v := range values {
		p.Values[i] = float64(v)
	}
	return p
}

// ParamSpace is the cross product of the candidate sequences of its
// params. Size and At address combinations positionally; Distinct drops
// repeated candidates so every combination is unique.
type ParamSpace []Param

// Validate rejects empty or duplicate names.
func (s ParamSpace) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for _, p := range s {
		if p.Name == "" {
			return errors.NewValidationError("param_distributions", "parameter name must not be empty", p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return errors.NewValidationError("param_distributions", "duplicate parameter name", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// Size returns the number of combinations, the product of the sequence
// lengths. It saturates at math.MaxInt.
func (s ParamSpace) Size() int {
	if len(s) == 0 {
		return 0
	}
	size := 1
	for _, p := range s {
		n := len(p.Values)
		if n == 0 {
			return 0
		}
		if size > math.MaxInt/n {
			return math.MaxInt
		}
		size *= n
	}
	return size
}

// DistinctSize returns the number of unique combinations, ignoring
// repeated candidates such as clamped boundary values.
func (s ParamSpace) DistinctSize() int {
	return s.Distinct().Size()
}

// Distinct returns a copy of s in which every candidate sequence keeps
// only the first occurrence of each value.
func (s ParamSpace) Distinct() ParamSpace {
	out := make(ParamSpace, len(s))
	for i, p := range s {
		seen := make(map[float64]struct{}, len(p.Values))
		values := make([]float64, 0, len(p.Values))
		for _, v := range p.Values {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
		out[i] = Param{Name: p.Name, Values: values, Integer: p.Integer}
	}
	return out
}

// At decodes combination index into Params. The last param varies
// fastest.
func (s ParamSpace) At(index int) Params {
	out := make(Params, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		n := len(s[i].Values)
		out[s[i].Name] = s[i].Values[index%n]
		index /= n
	}
	return out
}

// Contains reports whether every value of p comes from the matching
// candidate sequence.
func (s ParamSpace) Contains(p Params) bool {
	if len(p) != len(s) {
		return false
	}
	for _, param := range s {
		v, ok := p[param.Name]
		if !ok {
			return false
		}
		found := false
		for _, c := range param.Values {
			if c == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sampleIndices draws n distinct indices from [0, size) in random order
// with a sparse partial Fisher-Yates shuffle.
func sampleIndices(rng *rand.Rand, size, n int) []int {
	swapped := make(map[int]int, n)
	get := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		j := i + rng.IntN(size-i)
		out[i] = get(j)
		swapped[j] = get(i)
	}
	return out
}

// Params is one hyperparameter combination.
type Params map[string]float64

// Get returns the value of name.
func (p Params) Get(name string) (float64, bool) {
	v, ok := p[name]
	return v, ok
}

// Float returns the value of name, or 0 when absent.
func (p Params) Float(name string) float64 {
	return p[name]
}

// Int returns the value of name truncated to int, or 0 when absent.
func (p Params) Int(name string) int {
	return int(p[name])
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String renders the combination as {a: 1, b: 0.5} with sorted names.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Names() {
		parts = append(parts, k+": "+strconv.FormatFloat(p[k], 'g', -1, 64))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
