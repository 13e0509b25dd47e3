// Package metrics counts gait evaluations and exposes them in the
// Prometheus exposition format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quadcpg/internal/model"
)

const namespace = "quadcpg"

const (
	OutcomeOK         = "ok"
	OutcomeDegenerate = "degenerate"
	OutcomeError      = "error"
)

// Recorder holds one registry per client. A nil *Recorder records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	seconds     *prometheus.HistogramVec
	fitness     *prometheus.HistogramVec
	bestError   *prometheus.GaugeVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Scored simulations by scape and outcome.",
		}, []string{"scape", "outcome"}),
		seconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_seconds",
			Help:      "Wall time of one simulate-and-score evaluation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"scape"}),
		fitness: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fitness_error",
			Help:      "Total gait error of non-degenerate evaluations.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 50, 70},
		}, []string{"scape"}),
		bestError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_best_error",
			Help:      "Best total error reached by a tuning run.",
		}, []string{"run_id", "scape"}),
	}
	r.registry.MustRegister(r.evaluations, r.seconds, r.fitness, r.bestError)
	return r
}

// Outcome classifies one evaluation result.
func Outcome(report model.FitnessReport, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case report.Degenerate:
		return OutcomeDegenerate
	default:
		return OutcomeOK
	}
}

// ObserveEvaluation records one evaluation of the named scape.
func (r *Recorder) ObserveEvaluation(scape string, report model.FitnessReport, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := Outcome(report, err)
	r.evaluations.WithLabelValues(scape, outcome).Inc()
	r.seconds.WithLabelValues(scape).Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		r.fitness.WithLabelValues(scape).Observe(report.Error)
	}
}

func (r *Recorder) SetBest(runID, scape string, value float64) {
	if r == nil {
		return
	}
	r.bestError.WithLabelValues(runID, scape).Set(value)
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Handler serves the registry on a /metrics endpoint.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// WriteFile writes the current values in the text format, for collection
// by a node exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.Gatherer())
}
