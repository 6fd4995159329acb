// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registration metrics
	RegistrationAttempts *prometheus.CounterVec
	RegisteredDomains    prometheus.Gauge
	AvailabilityChecks   *prometheus.CounterVec

	// Payment metrics
	PaymentVerifications *prometheus.CounterVec
	PaymentPolls         *prometheus.CounterVec
	PollDuration         prometheus.Histogram

	// Chain metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Notification metrics
	Notifications *prometheus.CounterVec

	// Feed metrics
	FeedSubscribers prometheus.Gauge

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pepu_name_service"
	}

	return &Metrics{
		RegistrationAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registration_attempts_total",
			Help:      "Total number of registration attempts by outcome",
		}, []string{"outcome"}),
		RegisteredDomains: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registered_domains",
			Help:      "Number of paid domain records",
		}),
		AvailabilityChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "availability_checks_total",
			Help:      "Total number of availability lookups by result",
		}, []string{"result"}),

		PaymentVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "verifications_total",
			Help:      "Total number of payment verifications by strategy and reason",
		}, []string{"strategy", "reason"}),
		PaymentPolls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "polls_total",
			Help:      "Total number of payment polling sessions by result",
		}, []string{"result"}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "poll_duration_seconds",
			Help:      "Time spent polling for a payment",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed JSON-RPC calls",
		}, []string{"method"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of name cache lookups by backend and result",
		}, []string{"backend", "result"}),

		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of registration notifications by channel and result",
		}, []string{"channel", "result"}),

		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of WebSocket feed subscribers",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRegistration records the outcome of a registration attempt.
func RecordRegistration(outcome string) {
	DefaultMetrics.RegistrationAttempts.WithLabelValues(outcome).Inc()
}

// SetRegisteredDomains updates the paid record gauge.
func SetRegisteredDomains(n int64) {
	DefaultMetrics.RegisteredDomains.Set(float64(n))
}

// RecordAvailabilityCheck records an availability lookup.
func RecordAvailabilityCheck(taken bool) {
	result := "available"
	if taken {
		result = "taken"
	}
	DefaultMetrics.AvailabilityChecks.WithLabelValues(result).Inc()
}

// RecordVerification records a payment verification result.
func RecordVerification(strategy, reason string) {
	DefaultMetrics.PaymentVerifications.WithLabelValues(strategy, reason).Inc()
}

// RecordPoll records a finished payment polling session.
func RecordPoll(result string, seconds float64) {
	DefaultMetrics.PaymentPolls.WithLabelValues(result).Inc()
	DefaultMetrics.PollDuration.Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records a failed RPC call.
func RecordRPCError(method string) {
	DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordCacheLookup records a name cache hit or miss.
func RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(backend, result).Inc()
}

// RecordNotification records a notification attempt.
func RecordNotification(channel string, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	DefaultMetrics.Notifications.WithLabelValues(channel, result).Inc()
}

// SetFeedSubscribers updates the feed subscriber gauge.
func SetFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
