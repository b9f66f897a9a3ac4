// Package metrics exposes Prometheus collectors for key generation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for RecordsTotal.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Recorder holds the key generation collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	records    *prometheus.CounterVec   // By component and outcome
	pathMisses *prometheus.CounterVec   // By component
	duration   *prometheus.HistogramVec // By component
	published  *prometheus.CounterVec   // By component and destination
	component  string
}

// NewRecorder creates the collectors and registers them with registry.
// A nil registry disables metrics and returns a nil Recorder.
func NewRecorder(registry prometheus.Registerer, component string) (*Recorder, error) {
	if registry == nil {
		return nil, nil
	}

	r := &Recorder{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygen",
			Subsystem: "transform",
			Name:      "records_total",
			Help:      "Records processed by the key generator, by outcome",
		}, []string{"component", "outcome"}),

		pathMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygen",
			Subsystem: "transform",
			Name:      "path_misses_total",
			Help:      "Configured lookup paths that resolved to nothing",
		}, []string{"component"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keygen",
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Time spent transforming a single record",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"component"}),

		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keygen",
			Subsystem: "stream",
			Name:      "published_total",
			Help:      "Records written to the transport, by destination",
		}, []string{"component", "destination"}),

		component: component,
	}

	for _, c := range []prometheus.Collector{r.records, r.pathMisses, r.duration, r.published} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveTransform records one transformed record.
func (r *Recorder) ObserveTransform(elapsed time.Duration, misses int, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	r.records.WithLabelValues(r.component, outcome).Inc()
	r.duration.WithLabelValues(r.component).Observe(elapsed.Seconds())
	if misses > 0 {
		r.pathMisses.WithLabelValues(r.component).Add(float64(misses))
	}
}

// ObservePublish records a record written to destination (subject or topic).
func (r *Recorder) ObservePublish(destination string) {
	if r == nil {
		return
	}
	r.published.WithLabelValues(r.component, destination).Inc()
}
