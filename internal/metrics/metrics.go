// Package metrics registers the Prometheus instruments the service exports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActionsTotal counts dispatched commands by kind and terminal status.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stormdesk_actions_total",
		Help: "Commands dispatched, by kind and terminal status.",
	}, []string{"kind", "status"})

	// PendingActions tracks commands held for operator approval.
	PendingActions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stormdesk_pending_actions",
		Help: "Commands currently awaiting approval.",
	})

	// RoundsTotal counts completed collaboration rounds.
	RoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stormdesk_collab_rounds_total",
		Help: "Collaboration rounds completed.",
	})

	// RoundDuration observes wall time per collaboration round.
	RoundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stormdesk_collab_round_duration_seconds",
		Help:    "Wall time per collaboration round.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// InferenceRequests counts inference calls by role and outcome.
	InferenceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stormdesk_inference_requests_total",
		Help: "Inference service calls, by role and outcome.",
	}, []string{"role", "outcome"})

	// InferenceTokens counts tokens consumed by inference calls.
	InferenceTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stormdesk_inference_tokens_total",
		Help: "Tokens consumed by inference calls, by role.",
	}, []string{"role"})

	// ConnectedObservers tracks live broadcast connections.
	ConnectedObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stormdesk_connected_observers",
		Help: "Observers currently registered for broadcast.",
	})

	// EventsPublished counts events handed to the broadcast hub.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stormdesk_events_published_total",
		Help: "Events published to the broadcast hub, by type.",
	}, []string{"type"})

	// EventsDropped counts events discarded because the hub queue was full.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stormdesk_events_dropped_total",
		Help: "Events dropped at the broadcast hub.",
	})
)

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
