package httpx

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request surfaces. Internal trigger calls and long-lived streams are kept
// apart from the public API so scheduler traffic and open streams do not skew
// user-facing latency.
const (
	surfaceAPI      = "api"
	surfaceInternal = "internal"
	surfaceStream   = "stream"
	surfaceSystem   = "system"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

func surfaceFor(route string) string {
	switch {
	case strings.HasPrefix(route, "/internal/"):
		return surfaceInternal
	case strings.HasPrefix(route, "/ws/"), strings.HasSuffix(route, "/events"):
		return surfaceStream
	case strings.HasPrefix(route, "/api/"):
		return surfaceAPI
	default:
		return surfaceSystem
	}
}

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = registerOrReuse(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "HTTP requests by surface, route and status.",
		}, []string{"surface", "method", "route", "status"}))

		// Streams are excluded: their duration is the connection lifetime.
		r.requestLatency = registerOrReuse(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dashboard",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Handler latency for API, internal trigger and system routes.",
			Buckets:   histogramBuckets,
		}, []string{"surface", "method", "route"}))

		r.rateLimitHits = registerOrReuse(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter, by route and key kind (ip, user).",
		}, []string{"route", "key"}))

		r.streamConnections = registerOrReuse(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "stream",
			Name:      "open_connections",
			Help:      "Open status stream subscribers by transport (ws, sse).",
		}, []string{"transport"}))

		r.metricsInitialized = true
	})
}

// registerOrReuse registers c on the default registry. When an equivalent
// collector already exists, as with several routers in one process, the
// existing one is returned.
func registerOrReuse[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	surface := surfaceFor(route)
	r.requestTotal.WithLabelValues(surface, method, route, strconv.Itoa(status)).Inc()
	if surface != surfaceStream {
		r.requestLatency.WithLabelValues(surface, method, route).Observe(duration.Seconds())
	}
}

func (r *Router) recordRateLimitHit(route, key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.WithLabelValues(route, key).Inc()
}

// trackStream counts an open subscriber and returns the matching release.
func (r *Router) trackStream(transport string) func() {
	if !r.metricsInitialized {
		return func() {}
	}
	gauge := r.streamConnections.WithLabelValues(transport)
	gauge.Inc()
	return gauge.Dec
}
