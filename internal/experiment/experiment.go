// Package experiment runs the wine quality hyperparameter search for the
// random forest, the SVM and the logistic regression.
package experiment

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/internal/config"
	"github.com/YuminosukeSato/randsearch/internal/telemetry"
	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
	"github.com/YuminosukeSato/randsearch/preprocessing"
	"github.com/YuminosukeSato/randsearch/sklearn/ensemble"
	"github.com/YuminosukeSato/randsearch/sklearn/linear_model"
	ms "github.com/YuminosukeSato/randsearch/sklearn/model_selection"
	"github.com/YuminosukeSato/randsearch/sklearn/pipeline"
	"github.com/YuminosukeSato/randsearch/sklearn/svm"
)

// Model family names, also used as metric labels.
const (
	FamilyForest   = "random_forest"
	FamilySVM      = "svm"
	FamilyLogistic = "logistic_regression"
)

// Outcome is the result of one search of one family.
type Outcome struct {
	Model    string
	Strategy string
	Space    ms.ParamSpace
	Trials   []ms.TrialResult

	BestParams   ms.Params
	BestScore    float64
	TestAccuracy float64
	Report       *metrics.ClassificationReport
	Duration     time.Duration

	// Rejected is set when the search refused its budget; nothing was
	// fitted and the result fields are zero.
	Rejected error
}

// family is one searchable model family.
type family struct {
	name    string
	nIter   int
	space   ms.ParamSpace
	factory ms.Factory
}

// Runner runs the configured searches.
type Runner struct {
	cfg      *config.Config
	logger   log.Logger
	recorder *telemetry.Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithRecorder records trials and results as metrics.
func WithRecorder(recorder *telemetry.Recorder) Option {
	return func(r *Runner) { r.recorder = recorder }
}

// NewRunner creates a Runner for cfg.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("experiment")
	}
	if r.recorder == nil {
		r.recorder = telemetry.NewRecorder()
	}
	return r
}

// Recorder returns the metrics recorder.
func (r *Runner) Recorder() *telemetry.Recorder {
	return r.recorder
}

// Run searches every enabled family on the training split and scores the
// refitted winners on the test split. Families run one after another. A
// search whose budget exceeds its distinct combinations is recorded as a
// rejected Outcome; any other failure aborts the run.
func (r *Runner) Run(ctx context.Context, split *ms.Split) ([]Outcome, error) {
	families, err := r.families(split.XTrain)
	if err != nil {
		return nil, err
	}
	if len(families) == 0 {
		return nil, errors.NewValidationError("families", "no model family is enabled", nil)
	}

	var outcomes []Outcome
	for _, f := range families {
		strategies := []string{log.StrategyRandom}
		if r.cfg.Search.Grid {
			strategies = append(strategies, log.StrategyGrid)
		}
		for _, strategy := range strategies {
			out, err := r.search(ctx, f, strategy, split)
			if errors.Is(err, errors.ErrInvalidSearchBudget) {
				r.recorder.ObserveRejection(f.name, strategy)
				outcomes = append(outcomes, Outcome{Model: f.name, Strategy: strategy, Space: f.space, Rejected: err})
				continue
			}
			if err != nil {
				return nil, errors.Wrapf(err, "%s %s search", f.name, strategy)
			}
			outcomes = append(outcomes, *out)
		}
	}
	return outcomes, nil
}

func (r *Runner) families(X mat.Matrix) ([]family, error) {
	_, nFeatures := X.Dims()
	var out []family

	if c := r.cfg.Forest; c.Enabled {
		cands, err := SampleForest(c, nFeatures, r.source(FamilyForest))
		if err != nil {
			return nil, err
		}
		out = append(out, family{name: FamilyForest, nIter: c.NIter, space: cands.Space(), factory: r.forestFactory()})
	}
	if c := r.cfg.SVM; c.Enabled {
		cands, err := SampleSVM(c, r.source(FamilySVM))
		if err != nil {
			return nil, err
		}
		out = append(out, family{name: FamilySVM, nIter: c.NIter, space: cands.Space(), factory: r.svmFactory()})
	}
	if c := r.cfg.Logistic; c.Enabled {
		cands, err := SampleLogistic(c, r.source(FamilyLogistic))
		if err != nil {
			return nil, err
		}
		out = append(out, family{name: FamilyLogistic, nIter: c.NIter, space: cands.Space(), factory: r.logisticFactory()})
	}

	for _, f := range out {
		r.logger.Info("Candidates sampled",
			log.ModelNameKey, f.name,
			log.ParamsKey, describe(f.space),
			log.CombinationsKey, f.space.Size(),
			log.DistinctKey, f.space.DistinctSize(),
		)
	}
	return out, nil
}

// source returns the candidate source of one family. Families share the
// configured seed but draw from separate streams.
func (r *Runner) source(family string) *rand.Rand {
	return ms.NewSource(ms.DeriveSeed(r.cfg.Search.Seed, family))
}

func describe(space ms.ParamSpace) map[string][]float64 {
	out := make(map[string][]float64, len(space))
	for _, p := range space {
		out[p.Name] = p.Values
	}
	return out
}

func (r *Runner) forestFactory() ms.Factory {
	return func(p ms.Params) (model.Classifier, error) {
		return ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(p.Int("n_estimators")),
			ensemble.WithMaxFeatures(p.Int("max_features")),
			ensemble.WithRandomState(r.cfg.Search.Seed),
			ensemble.WithNJobs(r.cfg.Forest.NJobs),
		), nil
	}
}

func (r *Runner) svmFactory() ms.Factory {
	return func(p ms.Params) (model.Classifier, error) {
		clf := svm.NewSVC(
			svm.WithC(p.Float("C")),
			svm.WithGamma(p.Float("gamma")),
			svm.WithKernel(r.cfg.SVM.Kernel),
		)
		return r.scaled(clf), nil
	}
}

func (r *Runner) logisticFactory() ms.Factory {
	return func(p ms.Params) (model.Classifier, error) {
		clf := linear_model.NewLogisticRegression(
			linear_model.WithLRC(p.Float("C")),
			linear_model.WithLRMaxIter(r.cfg.Logistic.MaxIter),
		)
		return r.scaled(clf), nil
	}
}

// scaled puts the configured scaler in front of clf.
func (r *Runner) scaled(clf model.Classifier) model.Classifier {
	switch r.cfg.Search.Scaler {
	case config.ScalerStandard:
		return pipeline.NewPipeline(clf, pipeline.Step{Name: "scaler", Transformer: preprocessing.NewStandardScalerDefault()})
	case config.ScalerMinMax:
		return pipeline.NewPipeline(clf, pipeline.Step{Name: "scaler", Transformer: preprocessing.NewMinMaxScalerDefault()})
	default:
		return clf
	}
}

type searcher interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
	BestParams() ms.Params
	BestScore() float64
	BestEstimator() (model.Classifier, error)
	Results() []ms.TrialResult
}

var tracer = otel.Tracer("github.com/YuminosukeSato/randsearch/internal/experiment")

func (r *Runner) search(ctx context.Context, f family, strategy string, split *ms.Split) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "search "+f.name)
	span.SetAttributes(
		attribute.String(log.ModelNameKey, f.name),
		attribute.String(log.StrategyKey, strategy),
		attribute.Int(log.CombinationsKey, f.space.Size()),
		attribute.Int(log.DistinctKey, f.space.DistinctSize()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Float64(log.MeanScoreKey, out.BestScore))
		}
		span.End()
	}()

	start := time.Now()
	progress := make(chan ms.TrialResult)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for tr := range progress {
			r.recorder.ObserveTrial(f.name, strategy, tr.FitTime)
		}
	}()

	opts := []ms.SearchOption{
		ms.WithCV(ms.NewStratifiedKFold(r.cfg.Search.Folds, r.cfg.Search.Shuffle, r.cfg.Search.Seed)),
		ms.WithRandomState(r.cfg.Search.Seed),
		ms.WithLogger(r.logger),
		ms.WithProgress(progress),
		ms.WithModelName(f.name),
	}
	var s searcher
	if strategy == log.StrategyGrid {
		s = ms.NewGridSearchCV(f.factory, f.space, opts...)
	} else {
		s = ms.NewRandomizedSearchCV(f.factory, f.space, f.nIter, opts...)
	}

	err = s.FitContext(ctx, split.XTrain, split.YTrain)
	close(progress)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	best, err := s.BestEstimator()
	if err != nil {
		return nil, err
	}
	pred, err := best.Predict(split.XTest)
	if err != nil {
		return nil, err
	}
	accuracy, err := metrics.AccuracyScore(split.YTest, pred)
	if err != nil {
		return nil, err
	}
	report, err := metrics.NewClassificationReport(split.YTest, pred)
	if err != nil {
		return nil, err
	}

	r.recorder.SetBestScore(f.name, strategy, s.BestScore())
	if strategy == log.StrategyRandom {
		r.recorder.SetTestAccuracy(f.name, accuracy)
	}

	out = &Outcome{
		Model:        f.name,
		Strategy:     strategy,
		Space:        f.space,
		Trials:       s.Results(),
		BestParams:   s.BestParams(),
		BestScore:    s.BestScore(),
		TestAccuracy: accuracy,
		Report:       report,
		Duration:     time.Since(start),
	}
	r.logger.Info("Model evaluated",
		log.ModelNameKey, f.name,
		log.StrategyKey, strategy,
		log.ParamsKey, out.BestParams.String(),
		log.MeanScoreKey, out.BestScore,
		log.AccuracyKey, accuracy,
		log.DurationMsKey, out.Duration.Milliseconds(),
	)
	return out, nil
}
