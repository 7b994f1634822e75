// Package metrics registers the Prometheus collectors for the feed, the
// backend gateway and the pollers, and serves them over HTTP.
//
// Every method is safe on a nil *Metrics so components can run without
// instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradedesk"

// Metrics holds the process collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	feedState        prometheus.Gauge
	feedReconnects   prometheus.Counter
	feedMessages     *prometheus.CounterVec
	feedDecodeErrors prometheus.Counter
	feedPings        prometheus.Counter
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	pollRuns         *prometheus.CounterVec
}

// New creates the collectors and registers them, plus the go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		feedState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_state",
			Help:      "Live feed connection state (0 idle, 1 connecting, 2 open, 3 closing, 4 closed)",
		}),
		feedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_reconnects_scheduled_total",
			Help:      "Number of reconnection attempts scheduled after a close",
		}),
		feedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_messages_total",
			Help:      "Stream messages received, by type",
		}, []string{"type"}),
		feedDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_decode_errors_total",
			Help:      "Malformed stream messages discarded",
		}),
		feedPings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_pings_total",
			Help:      "Heartbeat pings sent",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend REST requests, by operation and status code (0 when no response)",
		}, []string{"op", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend REST request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		pollRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_runs_total",
			Help:      "Periodic refreshes, by task and result",
		}, []string{"task", "result"}),
	}

	m.registry.MustRegister(
		m.feedState,
		m.feedReconnects,
		m.feedMessages,
		m.feedDecodeErrors,
		m.feedPings,
		m.requests,
		m.requestDuration,
		m.pollRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetFeedState records the current feed connection state.
func (m *Metrics) SetFeedState(s domain.ConnState) {
	if m == nil {
		return
	}
	m.feedState.Set(float64(s))
}

// IncReconnect counts a scheduled reconnection.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.feedReconnects.Inc()
}

// messageTypes are the stream types counted under their own label. The type
// comes from the server, so anything else shares "other".
var messageTypes = map[string]bool{
	"pong":            true,
	"price_update":    true,
	"order_completed": true,
}

// IncMessage counts a decoded stream message.
func (m *Metrics) IncMessage(msgType string) {
	if m == nil {
		return
	}
	switch {
	case msgType == "":
		msgType = "unknown"
	case !messageTypes[msgType]:
		msgType = "other"
	}
	m.feedMessages.WithLabelValues(msgType).Inc()
}

// IncDecodeError counts a discarded malformed message.
func (m *Metrics) IncDecodeError() {
	if m == nil {
		return
	}
	m.feedDecodeErrors.Inc()
}

// IncPing counts a heartbeat sent.
func (m *Metrics) IncPing() {
	if m == nil {
		return
	}
	m.feedPings.Inc()
}

// ObserveRequest records one backend request.
func (m *Metrics) ObserveRequest(op string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObservePoll records one periodic refresh.
func (m *Metrics) ObservePoll(task string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pollRuns.WithLabelValues(task, result).Inc()
}
