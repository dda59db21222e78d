// Package pipeline chains feature transformers in front of a classifier.
package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/core/model"
	"github.com/YuminosukeSato/randsearch/metrics"
	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Step is a named transformer.
type Step struct {
	Name        string
	Transformer model.Transformer
}

// Pipeline fits its transformers in order on the training data, then fits
// the final classifier on the transformed data. At prediction time the
// fitted transformers are applied before the classifier.
type Pipeline struct {
	steps []Step
	final model.Classifier
	state *model.StateManager
}

// NewPipeline creates a Pipeline ending in final.
func NewPipeline(final model.Classifier, steps ...Step) *Pipeline {
	return &Pipeline{
		steps: steps,
		final: final,
		state: model.NewStateManager(),
	}
}

// Fit fits every transformer and then the final classifier.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	if p.final == nil {
		return errors.NewValueError("Pipeline.Fit", "no final estimator")
	}
	Xt := X
	for _, s := range p.steps {
		var err error
		Xt, err = s.Transformer.FitTransform(Xt)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", s.Name)
		}
	}
	if err := p.final.Fit(Xt, y); err != nil {
		return err
	}
	rows, cols := X.Dims()
	p.state.SetDimensions(cols, rows)
	p.state.SetFitted()
	return nil
}

func (p *Pipeline) transform(method string, X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", method); err != nil {
		return nil, err
	}
	Xt := X
	for _, s := range p.steps {
		var err error
		Xt, err = s.Transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", s.Name)
		}
	}
	return Xt, nil
}

// Predict transforms X and predicts with the final classifier.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.transform("Predict", X)
	if err != nil {
		return nil, err
	}
	return p.final.Predict(Xt)
}

// PredictProba transforms X and returns the final classifier's
// probabilities. It fails when the classifier has no PredictProba.
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pc, ok := p.final.(model.ProbabilisticClassifier)
	if !ok {
		return nil, errors.NewValueError("Pipeline.PredictProba",
			fmt.Sprintf("final estimator %T has no PredictProba", p.final))
	}
	Xt, err := p.transform("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return pc.PredictProba(Xt)
}

// Score returns the mean accuracy on (X, y), or 0 when prediction fails.
func (p *Pipeline) Score(X, y mat.Matrix) float64 {
	pred, err := p.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.AccuracyScore(y, pred)
	if err != nil {
		return 0
	}
	return acc
}

// Classes returns the final classifier's classes.
func (p *Pipeline) Classes() []int {
	return p.final.Classes()
}

// Final returns the final classifier.
func (p *Pipeline) Final() model.Classifier {
	return p.final
}

// Steps returns the transformer steps.
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// GetParams returns the final classifier's parameters prefixed with
// "clf__", scikit-learn style.
func (p *Pipeline) GetParams() map[string]interface{} {
	out := map[string]interface{}{}
	if g, ok := p.final.(model.ParameterGetter); ok {
		for k, v := range g.GetParams() {
			out["clf__"+k] = v
		}
	}
	return out
}

func (p *Pipeline) String() string {
	names := make([]string, 0, len(p.steps)+1)
	for _, s := range p.steps {
		names = append(names, s.Name)
	}
	names = append(names, fmt.Sprintf("clf=%T", p.final))
	return "Pipeline(" + strings.Join(names, ", ") + ")"
}
