// Package telemetry records search progress as Prometheus metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

const namespace = "randsearch"

// Recorder owns a private registry with the search collectors.
type Recorder struct {
	registry *prometheus.Registry

	trialsTotal     *prometheus.CounterVec
	rejectedTotal   *prometheus.CounterVec
	trialFitSeconds *prometheus.HistogramVec
	bestCVScore     *prometheus.GaugeVec
	testAccuracy    *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with every collector registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		trialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trials_total",
				Help:      "Cross-validated trials evaluated, partitioned by model and strategy.",
			},
			[]string{"model", "strategy"},
		),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_rejected_total",
				Help:      "Searches rejected before fitting because the budget exceeded the distinct combinations.",
			},
			[]string{"model", "strategy"},
		),
		trialFitSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trial_fit_seconds",
				Help:      "Wall time of one cross-validated trial in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"model"},
		),
		bestCVScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "best_cv_score",
				Help:      "Mean cross-validated score of the selected combination.",
			},
			[]string{"model", "strategy"},
		),
		testAccuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "test_accuracy",
				Help:      "Held-out accuracy of the refitted best model.",
			},
			[]string{"model"},
		),
	}
	r.registry.MustRegister(r.trialsTotal, r.rejectedTotal, r.trialFitSeconds, r.bestCVScore, r.testAccuracy)
	return r
}

// Registry exposes the registry, e.g. for promhttp.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveTrial counts one trial and records its duration.
func (r *Recorder) ObserveTrial(model, strategy string, duration time.Duration) {
	r.trialsTotal.WithLabelValues(model, strategy).Inc()
	if duration < 0 {
		duration = 0
	}
	r.trialFitSeconds.WithLabelValues(model).Observe(duration.Seconds())
}

// ObserveRejection counts a search rejected for its budget.
func (r *Recorder) ObserveRejection(model, strategy string) {
	r.rejectedTotal.WithLabelValues(model, strategy).Inc()
}

// SetBestScore records the winning mean cross-validated score.
func (r *Recorder) SetBestScore(model, strategy string, score float64) {
	r.bestCVScore.WithLabelValues(model, strategy).Set(score)
}

// SetTestAccuracy records the held-out accuracy.
func (r *Recorder) SetTestAccuracy(model string, accuracy float64) {
	r.testAccuracy.WithLabelValues(model).Set(accuracy)
}

// WriteTextfile writes every metric in the text exposition format, for the
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
