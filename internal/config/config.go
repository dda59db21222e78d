// Package config loads the winesearch run configuration.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/randsearch/datasets"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
	"github.com/YuminosukeSato/randsearch/sklearn/model_selection"
	"github.com/YuminosukeSato/randsearch/sklearn/svm"
)

// Config is the complete run configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Split    SplitConfig    `yaml:"split"`
	Search   SearchConfig   `yaml:"search"`
	Forest   ForestSearch   `yaml:"forest"`
	SVM      SVMSearch      `yaml:"svm"`
	Logistic LogisticSearch `yaml:"logistic"`
	Output   OutputConfig   `yaml:"output"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DatasetConfig locates the wine table.
type DatasetConfig struct {
	URL       string `yaml:"url"`
	CachePath string `yaml:"cachePath"`
}

// SplitConfig controls the train/test partition.
type SplitConfig struct {
	TestSize float64 `yaml:"testSize"`
	Seed     uint64  `yaml:"seed"`
}

// Scaler names accepted by SearchConfig.Scaler.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
	ScalerNone     = "none"
)

// SearchConfig holds the settings shared by every family.
type SearchConfig struct {
	// Seed drives candidate sampling and combination choice.
	Seed    uint64 `yaml:"seed"`
	Folds   int    `yaml:"folds"`
	Shuffle bool   `yaml:"shuffle"`
	// Grid also runs an exhaustive search over the same candidates.
	Grid bool `yaml:"grid"`
	// Scaler is applied in front of the SVM and the logistic regression.
	Scaler string `yaml:"scaler"`
}

// Distribution kinds.
const (
	KindUniform = "uniform"
	KindNormal  = "normal"
)

// DistributionSpec describes one hyperparameter's candidate draw.
type DistributionSpec struct {
	Kind    string  `yaml:"kind"`
	Low     float64 `yaml:"low,omitempty"`
	High    float64 `yaml:"high,omitempty"`
	Mean    float64 `yaml:"mean,omitempty"`
	Std     float64 `yaml:"std,omitempty"`
	Samples int     `yaml:"samples"`
}

// Distribution returns the sampling distribution.
func (d DistributionSpec) Distribution() (model_selection.Distribution, error) {
	var dist model_selection.Distribution
	switch d.Kind {
	case KindUniform:
		dist = model_selection.Uniform{Low: d.Low, High: d.High}
	case KindNormal:
		dist = model_selection.Normal{Mean: d.Mean, Std: d.Std}
	default:
		return nil, errors.NewValidationError("kind", "must be uniform or normal", d.Kind)
	}
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return dist, nil
}

func (d DistributionSpec) validate(name string) error {
	if _, err := d.Distribution(); err != nil {
		return errors.Wrapf(err, "%s", name)
	}
	if d.Samples < 0 {
		return errors.NewValidationError(name+".samples", "must be >= 0", d.Samples)
	}
	return nil
}

// ForestSearch configures the random forest search.
type ForestSearch struct {
	Enabled     bool             `yaml:"enabled"`
	NIter       int              `yaml:"nIter"`
	NJobs       int              `yaml:"nJobs"`
	NEstimators DistributionSpec `yaml:"nEstimators"`
	MaxFeatures DistributionSpec `yaml:"maxFeatures"`
}

// SVMSearch configures the support vector classifier search.
type SVMSearch struct {
	Enabled bool             `yaml:"enabled"`
	NIter   int              `yaml:"nIter"`
	Kernel  string           `yaml:"kernel"`
	C       DistributionSpec `yaml:"c"`
	Gamma   DistributionSpec `yaml:"gamma"`
}

// LogisticSearch configures the logistic regression search.
type LogisticSearch struct {
	Enabled bool             `yaml:"enabled"`
	NIter   int              `yaml:"nIter"`
	MaxIter int              `yaml:"maxIter"`
	C       DistributionSpec `yaml:"c"`
}

// OutputConfig names optional artifacts. Empty paths disable them.
type OutputConfig struct {
	MetricsPath string `yaml:"metricsPath"`
	PlotPath    string `yaml:"plotPath"`
}

// Load initialises Config from defaults, an optional YAML file and
// WINESEARCH_* environment overrides, then validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("WINESEARCH_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrapf(err, "config file %s not found", path)
			}
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration of the reference run: a 75/25 split
// with seed 1, 5-fold stratified cross-validation and 5x5 candidate sets
// for the forest.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Dataset: DatasetConfig{
			URL:       datasets.WineQualityRedURL,
			CachePath: "data/winequality-red.csv",
		},
		Split:  SplitConfig{TestSize: 0.25, Seed: 1},
		Search: SearchConfig{Seed: 1, Folds: 5, Scaler: ScalerStandard},
		Forest: ForestSearch{
			Enabled:     true,
			NIter:       20,
			NJobs:       0,
			NEstimators: DistributionSpec{Kind: KindUniform, Low: 70, High: 80, Samples: 5},
			MaxFeatures: DistributionSpec{Kind: KindUniform, Low: 1, High: 11, Samples: 5},
		},
		SVM: SVMSearch{
			Enabled: true,
			NIter:   20,
			Kernel:  svm.KernelRBF,
			C:       DistributionSpec{Kind: KindUniform, Low: 0.1, High: 10, Samples: 5},
			Gamma:   DistributionSpec{Kind: KindNormal, Mean: 0.1, Std: 0.05, Samples: 5},
		},
		Logistic: LogisticSearch{
			Enabled: true,
			NIter:   10,
			MaxIter: 200,
			C:       DistributionSpec{Kind: KindNormal, Mean: 1, Std: 0.5, Samples: 10},
		},
	}
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(strings.ToLower(c.Logging.Level)); !ok {
		return errors.NewValidationError("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	if c.Dataset.CachePath == "" {
		return errors.NewValidationError("dataset.cachePath", "must not be empty", c.Dataset.CachePath)
	}
	if !(c.Split.TestSize > 0 && c.Split.TestSize < 1) {
		return errors.NewValidationError("split.testSize", "must be in (0, 1)", c.Split.TestSize)
	}
	if c.Search.Folds < 2 {
		return errors.NewValidationError("search.folds", "must be >= 2", c.Search.Folds)
	}
	switch c.Search.Scaler {
	case ScalerStandard, ScalerMinMax, ScalerNone:
	default:
		return errors.NewValidationError("search.scaler", "must be standard, minmax or none", c.Search.Scaler)
	}

	if c.Forest.Enabled {
		if c.Forest.NIter < 1 {
			return errors.NewValidationError("forest.nIter", "must be >= 1", c.Forest.NIter)
		}
		if err := c.Forest.NEstimators.validate("forest.nEstimators"); err != nil {
			return err
		}
		if err := c.Forest.MaxFeatures.validate("forest.maxFeatures"); err != nil {
			return err
		}
	}
	if c.SVM.Enabled {
		if c.SVM.NIter < 1 {
			return errors.NewValidationError("svm.nIter", "must be >= 1", c.SVM.NIter)
		}
		if c.SVM.Kernel != svm.KernelRBF && c.SVM.Kernel != svm.KernelLinear {
			return errors.NewValidationError("svm.kernel", "must be rbf or linear", c.SVM.Kernel)
		}
		if err := c.SVM.C.validate("svm.c"); err != nil {
			return err
		}
		if err := c.SVM.Gamma.validate("svm.gamma"); err != nil {
			return err
		}
	}
	if c.Logistic.Enabled {
		if c.Logistic.NIter < 1 {
			return errors.NewValidationError("logistic.nIter", "must be >= 1", c.Logistic.NIter)
		}
		if c.Logistic.MaxIter < 1 {
			return errors.NewValidationError("logistic.maxIter", "must be >= 1", c.Logistic.MaxIter)
		}
		if err := c.Logistic.C.validate("logistic.c"); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("WINESEARCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WINESEARCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("WINESEARCH_DATASET_URL"); v != "" {
		cfg.Dataset.URL = v
	}
	if v := os.Getenv("WINESEARCH_CACHE_PATH"); v != "" {
		cfg.Dataset.CachePath = v
	}
	if v := os.Getenv("WINESEARCH_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "WINESEARCH_SEED")
		}
		cfg.Split.Seed = seed
		cfg.Search.Seed = seed
	}
	if v := os.Getenv("WINESEARCH_FOLDS"); v != "" {
		folds, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "WINESEARCH_FOLDS")
		}
		cfg.Search.Folds = folds
	}
	if v := os.Getenv("WINESEARCH_GRID"); v != "" {
		cfg.Search.Grid = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("WINESEARCH_SCALER"); v != "" {
		cfg.Search.Scaler = strings.ToLower(v)
	}
	if v := os.Getenv("WINESEARCH_METRICS_PATH"); v != "" {
		cfg.Output.MetricsPath = v
	}
	if v := os.Getenv("WINESEARCH_PLOT_PATH"); v != "" {
		cfg.Output.PlotPath = v
	}
	return nil
}
