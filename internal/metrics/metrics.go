// Package metrics provides Prometheus instrumentation for the Tropo bridge.
// It exposes counters for webhook traffic and call lifecycle, a gauge for
// calls in progress and live feed clients, and a latency histogram.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookRequests counts webhook requests, labeled by payload kind:
	// "session", "result" or "invalid".
	WebhookRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tropo_webhook_requests_total",
		Help: "Total number of Tropo webhook requests",
	}, []string{"kind"})

	// WebhookErrors counts failed webhook requests by HTTP status code.
	WebhookErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tropo_webhook_errors_total",
		Help: "Total number of failed Tropo webhook requests",
	}, []string{"code"})

	// WebhookLatency records webhook handling latency in seconds.
	WebhookLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tropo_webhook_latency_seconds",
		Help:    "Tropo webhook handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// CallsStarted counts calls created from session payloads.
	CallsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tropo_calls_started_total",
		Help: "Total number of calls started",
	})

	// CallsEnded counts calls cleaned up.
	CallsEnded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tropo_calls_ended_total",
		Help: "Total number of calls cleaned up",
	})

	// FeedConnections tracks the current number of live feed clients.
	FeedConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tropo_feed_connections",
		Help: "Current number of live feed WebSocket connections",
	})

	// RateLimited counts webhook requests rejected by the rate limiter.
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tropo_webhook_rate_limited_total",
		Help: "Total number of webhook requests rejected by rate limiting",
	})
)

func init() {
	prometheus.MustRegister(
		WebhookRequests,
		WebhookErrors,
		WebhookLatency,
		CallsStarted,
		CallsEnded,
		FeedConnections,
		RateLimited,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
