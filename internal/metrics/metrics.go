// Package metrics exposes the service's Prometheus collectors. Collectors
// register on the default registry at init, matching what the /metrics
// endpoint serves.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survey_sessions_started_total",
		Help: "Number of response sessions created.",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survey_sessions_completed_total",
		Help: "Number of response sessions completed and archived.",
	})

	AnswersRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "survey_answers_recorded_total",
		Help: "Number of answers accepted across all sessions.",
	})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "survey_evaluation_duration_seconds",
		Help:    "Time spent re-evaluating visibility and piping after an answer.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
