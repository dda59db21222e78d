package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

func TestParamSpace_SizeAndAt(t *testing.T) {
	space := ParamSpace{
		IntParam("n_estimators", []int{10, 20, 30}),
		FloatParam("C", []float64{0.1, 1}),
	}
	require.NoError(t, space.Validate())
	assert.Equal(t, 6, space.Size())

	assert.Equal(t, Params{"n_estimators": 10, "C": 0.1}, space.At(0))
	assert.Equal(t, Params{"n_estimators": 10, "C": 1}, space.At(1))
	assert.Equal(t, Params{"n_estimators": 30, "C": 1}, space.At(5))

	for i := 0; i < space.Size(); i++ {
		assert.True(t, space.Contains(space.At(i)))
	}
	assert.False(t, space.Contains(Params{"n_estimators": 15, "C": 0.1}))
	assert.False(t, space.Contains(Params{"n_estimators": 10}))
}

func TestParamSpace_DistinctDropsRepeatedCandidates(t *testing.T) {
	space := ParamSpace{
		IntParam("n", []int{4, 1, 1, 4, 5}),
		IntParam("m", []int{1, 2, 3, 4, 5}),
	}
	assert.Equal(t, 25, space.Size())
	assert.Equal(t, 15, space.DistinctSize())

	distinct := space.Distinct()
	assert.Equal(t, []float64{4, 1, 5}, distinct[0].Values)
	assert.True(t, distinct[0].Integer)
	assert.Equal(t, space[1].Values, distinct[1].Values)
	assert.Equal(t, []float64{4, 1, 1, 4, 5}, space[0].Values, "receiver must not change")

	seen := make(map[string]bool)
	for i := 0; i < distinct.Size(); i++ {
		p := distinct.At(i)
		assert.True(t, space.Contains(p))
		assert.False(t, seen[p.String()], "combination %s repeated", p)
		seen[p.String()] = true
	}

	assert.Equal(t, 0, ParamSpace{IntParam("n", []int{})}.Size())
	assert.Equal(t, 0, ParamSpace{}.Size())
	assert.Equal(t, 0, ParamSpace{}.DistinctSize())
}

func TestParamSpace_Validate(t *testing.T) {
	var ve *errors.ValidationError
	dup := ParamSpace{IntParam("n", []int{1}), IntParam("n", []int{2})}
	assert.True(t, errors.As(dup.Validate(), &ve))
	unnamed := ParamSpace{IntParam("", []int{1})}
	assert.True(t, errors.As(unnamed.Validate(), &ve))
}

func TestSampleIndices(t *testing.T) {
	rng := NewSource(11)
	got := sampleIndices(rng, 25, 20)
	require.Len(t, got, 20)

	seen := make(map[int]bool)
	for _, i := range got {
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 25)
		assert.False(t, seen[i], "index %d drawn twice", i)
		seen[i] = true
	}

	all := sampleIndices(NewSource(11), 10, 10)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)
	assert.Equal(t, got, sampleIndices(NewSource(11), 25, 20))
}

func TestParams(t *testing.T) {
	p := Params{"max_features": 3, "C": 0.5}
	assert.Equal(t, "{C: 0.5, max_features: 3}", p.String())
	assert.Equal(t, []string{"C", "max_features"}, p.Names())
	assert.Equal(t, 3, p.Int("max_features"))
	assert.Equal(t, 0.5, p.Float("C"))

	_, ok := p.Get("gamma")
	assert.False(t, ok)

	c := p.Clone()
	c["C"] = 9
	assert.Equal(t, 0.5, p["C"])
}
