package experiment

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/randsearch/internal/config"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	ms "github.com/YuminosukeSato/randsearch/sklearn/model_selection"
)

// Floors substituted for non-positive draws.
const (
	CFloor     = 1e-3
	GammaFloor = 1e-4
)

// ForestCandidates are the sampled random forest hyperparameters.
type ForestCandidates struct {
	NEstimators []int
	MaxFeatures []int
}

// Space returns the search space.
func (c ForestCandidates) Space() ms.ParamSpace {
	return ms.ParamSpace{
		ms.IntParam("n_estimators", c.NEstimators),
		ms.IntParam("max_features", c.MaxFeatures),
	}
}

// SVMCandidates are the sampled SVC hyperparameters.
type SVMCandidates struct {
	C     []float64
	Gamma []float64
}

// Space returns the search space.
func (c SVMCandidates) Space() ms.ParamSpace {
	return ms.ParamSpace{
		ms.FloatParam("C", c.C),
		ms.FloatParam("gamma", c.Gamma),
	}
}

// LogisticCandidates are the sampled logistic regression hyperparameters.
type LogisticCandidates struct {
	C []float64
}

// Space returns the search space.
func (c LogisticCandidates) Space() ms.ParamSpace {
	return ms.ParamSpace{ms.FloatParam("C", c.C)}
}

func draw[T ms.Number](spec config.DistributionSpec, domain ms.Domain[T], src rand.Source) ([]T, error) {
	dist, err := spec.Distribution()
	if err != nil {
		return nil, errors.Wrapf(err, "%s", domain.Name)
	}
	return ms.Candidates(dist, spec.Samples, domain, src)
}

// SampleForest draws n_estimators >= 1 and max_features in [1, nFeatures].
func SampleForest(cfg config.ForestSearch, nFeatures int, src rand.Source) (ForestCandidates, error) {
	maxFeatures, err := ms.Closed("max_features", 1, nFeatures)
	if err != nil {
		return ForestCandidates{}, err
	}
	nEstimators, err := draw(cfg.NEstimators, ms.AtLeast("n_estimators", 1), src)
	if err != nil {
		return ForestCandidates{}, err
	}
	features, err := draw(cfg.MaxFeatures, maxFeatures, src)
	if err != nil {
		return ForestCandidates{}, err
	}
	return ForestCandidates{NEstimators: nEstimators, MaxFeatures: features}, nil
}

// SampleSVM draws C > 0 and gamma > 0.
func SampleSVM(cfg config.SVMSearch, src rand.Source) (SVMCandidates, error) {
	cDomain, err := ms.Positive("C", CFloor)
	if err != nil {
		return SVMCandidates{}, err
	}
	gammaDomain, err := ms.Positive("gamma", GammaFloor)
	if err != nil {
		return SVMCandidates{}, err
	}
	c, err := draw(cfg.C, cDomain, src)
	if err != nil {
		return SVMCandidates{}, err
	}
	gamma, err := draw(cfg.Gamma, gammaDomain, src)
	if err != nil {
		return SVMCandidates{}, err
	}
	return SVMCandidates{C: c, Gamma: gamma}, nil
}

// SampleLogistic draws C > 0.
func SampleLogistic(cfg config.LogisticSearch, src rand.Source) (LogisticCandidates, error) {
	cDomain, err := ms.Positive("C", CFloor)
	if err != nil {
		return LogisticCandidates{}, err
	}
	c, err := draw(cfg.C, cDomain, src)
	if err != nil {
		return LogisticCandidates{}, err
	}
	return LogisticCandidates{C: c}, nil
}
