// Package metrics defines the Prometheus collectors shared across the
// service: request outcomes, quiz generation results and latency, and
// background delivery outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcome label values.
const (
	RequestContinue = "continue"
	RequestEnd      = "end"
	RequestError    = "error"
)

// Generation result label values.
const (
	GenerationGenerated    = "generated"
	GenerationDisabled     = "static_disabled"
	GenerationTimeout      = "static_timeout"
	GenerationFailed       = "static_failed"
	GenerationInsufficient = "static_insufficient"
)

// Delivery outcome label values.
const (
	DeliveryOK      = "ok"
	DeliveryError   = "error"
	DeliveryDropped = "dropped"
)

// Metrics bundles the service collectors. Components that accept a nil
// *Metrics simply skip instrumentation.
type Metrics struct {
	// Requests counts handled gateway round trips by result.
	Requests *prometheus.CounterVec
	// Restarts counts dialogs restarted after session expiry.
	Restarts prometheus.Counter
	// Generation counts quiz content resolutions by result.
	Generation *prometheus.CounterVec
	// GenerationSeconds observes the latency of generator calls,
	// successful or not.
	GenerationSeconds prometheus.Histogram
	// Deliveries counts background deliveries by kind and outcome.
	Deliveries *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edubot",
			Name:      "requests_total",
			Help:      "USSD round trips handled, by result.",
		}, []string{"result"}),
		Restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "edubot",
			Name:      "session_restarts_total",
			Help:      "Dialogs restarted at the main menu after session expiry.",
		}),
		Generation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edubot",
			Name:      "quiz_generation_total",
			Help:      "Quiz content resolutions, by result.",
		}, []string{"result"}),
		GenerationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edubot",
			Name:      "quiz_generation_duration_seconds",
			Help:      "Duration of question generator calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 10, 15},
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edubot",
			Name:      "deliveries_total",
			Help:      "Background deliveries, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(m.Requests, m.Restarts, m.Generation, m.GenerationSeconds, m.Deliveries)
	return m
}
