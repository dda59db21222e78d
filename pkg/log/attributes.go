package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "SVC".
	ModelNameKey = "model.name"

	// OperationKey is the ML operation: "fit", "predict", "score", "search".
	OperationKey = "ml.operation"

	// ComponentKey is the package doing the work, e.g. "model_selection".
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: "training", "validation", "testing".
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	ClassesKey   = "data.classes"
	SourceKey    = "data.source"
	PositivesKey = "data.positives"
	BytesKey     = "data.bytes"
)

// Search progress and results.
const (
	// StrategyKey is "random" or "grid".
	StrategyKey = "search.strategy"

	// SearchIterKey is the requested number of trials.
	SearchIterKey = "search.n_iter"

	// CombinationsKey is the size of the candidate cross product.
	CombinationsKey = "search.combinations"

	// SearchTrialKey is the zero-based trial index.
	SearchTrialKey = "search.trial"

	// DistinctKey counts combinations with distinct values.
	DistinctKey = "search.distinct_combinations"

	// FoldKey is the zero-based cross-validation fold.
	FoldKey = "search.fold"

	// NSplitsKey is the number of cross-validation folds.
	NSplitsKey = "search.n_splits"

	// ParamsKey holds a hyperparameter combination.
	ParamsKey = "search.params"

	// MeanScoreKey is the mean cross-validated score of a trial.
	MeanScoreKey = "search.mean_score"

	// StdScoreKey is the standard deviation of the fold scores.
	StdScoreKey = "search.std_score"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	IterationKey  = "training.iteration"
)

// Configuration and errors.
const (
	RandomSeedKey = "config.random_seed"
	ErrorCodeKey  = "error.code"
	SuggestionKey = "error.suggestion"
)

// Standard values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationSearch  = "search"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"

	StrategyRandom = "random"
	StrategyGrid   = "grid"

	ErrorInvalidBudget = "INVALID_SEARCH_BUDGET"
	ErrorDataSource    = "DATA_SOURCE"
	ErrorConvergence   = "CONVERGENCE_FAILURE"
)
