// Package metrics holds the Prometheus collectors of the transport and
// realtime layers.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the client's collectors.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shiftdesk",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests issued by the transport.",
		},
		[]string{"method", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shiftdesk",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP round trips.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method"},
	)

	Refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shiftdesk",
			Subsystem: "transport",
			Name:      "credential_refreshes_total",
			Help:      "Credential refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	QueuedRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shiftdesk",
			Subsystem: "transport",
			Name:      "refresh_queue_length",
			Help:      "Requests waiting for an in-flight credential refresh.",
		},
	)

	ConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "shiftdesk",
			Subsystem: "realtime",
			Name:      "connection_state",
			Help:      "1 for the current realtime connection state, 0 otherwise.",
		},
		[]string{"state"},
	)

	ReconnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shiftdesk",
			Subsystem: "realtime",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of realtime reconnection attempts.",
		},
	)

	HealthCheckMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shiftdesk",
			Subsystem: "realtime",
			Name:      "health_check_misses_total",
			Help:      "Pings that did not get a pong within the timeout.",
		},
	)

	RelayedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shiftdesk",
			Subsystem: "realtime",
			Name:      "relayed_events_total",
			Help:      "Server-pushed events re-dispatched as local events.",
		},
		[]string{"event"},
	)
)

func init() {
	Registry.MustRegister(
		HTTPRequests,
		HTTPDuration,
		Refreshes,
		QueuedRequests,
		ConnectionState,
		ReconnectAttempts,
		HealthCheckMisses,
		RelayedEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// StatusClass buckets an HTTP status code as "2xx", "4xx", ...; zero means
// the request never got a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "network_error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// SetConnectionState marks state as the only active realtime state.
func SetConnectionState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		ConnectionState.WithLabelValues(s).Set(v)
	}
}
