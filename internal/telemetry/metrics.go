// Package telemetry exposes Prometheus collectors for the background passes.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Per-service outcomes of a sync pass.
const (
	OutcomeUpdated = "updated"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	syncPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Sync passes executed, partitioned by pass.",
		},
		[]string{"pass"},
	)

	syncServiceResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "sync",
			Name:      "service_results_total",
			Help:      "Per-service sync outcomes.",
		},
		[]string{"pass", "provider", "outcome"},
	)

	syncPassDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dashboard",
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Sync pass latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"pass"},
	)

	webhookReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "automation",
			Name:      "webhook_reports_total",
			Help:      "Automation webhook reports, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	staleServicesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "automation",
			Name:      "stale_marked_total",
			Help:      "Automation services escalated to stale.",
		},
	)

	streamEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "stream",
			Name:      "events_dropped_total",
			Help:      "Status events dropped because the stream queue was full.",
		},
	)

	metricsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "metrics",
			Name:      "pruned_total",
			Help:      "Metric samples removed by retention.",
		},
	)
)

// Register attaches the dashboard collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		syncPassesTotal,
		syncServiceResultsTotal,
		syncPassDurationSeconds,
		webhookReportsTotal,
		staleServicesTotal,
		metricsPrunedTotal,
		streamEventsDroppedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePass records one completed pass.
func ObservePass(pass string, duration time.Duration) {
	syncPassesTotal.WithLabelValues(pass).Inc()
	if duration < 0 {
		duration = 0
	}
	syncPassDurationSeconds.WithLabelValues(pass).Observe(duration.Seconds())
}

// ObserveService records the outcome for one service within a pass.
func ObserveService(pass, provider, outcome string) {
	syncServiceResultsTotal.WithLabelValues(pass, provider, outcome).Inc()
}

// ObserveWebhook records a webhook report outcome (applied, unknown, invalid).
func ObserveWebhook(outcome string) {
	webhookReportsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStale counts services escalated to stale.
func ObserveStale(n int) {
	if n > 0 {
		staleServicesTotal.Add(float64(n))
	}
}

// ObservePruned counts metric samples removed by retention.
func ObservePruned(n int64) {
	if n > 0 {
		metricsPrunedTotal.Add(float64(n))
	}
}

// ObserveDroppedEvent counts a status event that never reached the stream.
func ObserveDroppedEvent() {
	streamEventsDroppedTotal.Inc()
}
