// Package metrics records generation metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hh_artifacts"

// Generation outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeNotFound   = "not_found"
	OutcomeInvalid    = "invalid"
	OutcomeConstruct  = "registration"
	OutcomeGeneration = "generation"
)

// Sink receives generation events.
type Sink interface {
	RecordGeneration(feature, version, outcome string, took time.Duration)
	SetRegisteredFeatures(n int)
}

// Nop discards every event.
type Nop struct{}

func (Nop) RecordGeneration(string, string, string, time.Duration) {}

func (Nop) SetRegisteredFeatures(int) {}

// PromSink records events in Prometheus metrics.
type PromSink struct {
	generations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	registered  prometheus.Gauge
}

// NewPromSink registers the metrics on reg. A nil registerer defaults to the
// global Prometheus registerer. Metrics registered earlier are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Total number of feature generations by outcome",
	}, []string{"feature", "version", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Time spent generating a feature artifact",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"feature", "version"})
	registered := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "registered_features",
		Help:      "Number of registered feature versions",
	})

	if err := reg.Register(generations); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		generations = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	if err := reg.Register(registered); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		registered = are.ExistingCollector.(prometheus.Gauge)
	}

	return &PromSink{generations: generations, duration: duration, registered: registered}, nil
}

func (s *PromSink) RecordGeneration(feature, version, outcome string, took time.Duration) {
	s.generations.WithLabelValues(feature, version, outcome).Inc()
	if outcome == OutcomeSuccess {
		s.duration.WithLabelValues(feature, version).Observe(took.Seconds())
	}
}

func (s *PromSink) SetRegisteredFeatures(n int) {
	s.registered.Set(float64(n))
}
