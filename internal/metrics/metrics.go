// internal/metrics/metrics.go

// Package metrics defines the Prometheus instrumentation for the radar.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	EventsIngested  *prometheus.CounterVec
	EventsRejected  *prometheus.CounterVec
	PassDuration    prometheus.Histogram
	PassesSkipped   prometheus.Counter
	PassFailures    prometheus.Counter
	WindowsFlushed  prometheus.Counter
	CandidatesFound prometheus.Gauge
	Suppressed      prometheus.Gauge
}

// New registers the radar's collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_events_ingested_total",
			Help: "Collector events accepted into the aggregator.",
		}, []string{"platform", "kind"}),
		EventsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_events_rejected_total",
			Help: "Collector events rejected during validation.",
		}, []string{"reason"}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "radar_pass_duration_seconds",
			Help:    "Wall time of completed analysis passes.",
			Buckets: prometheus.DefBuckets,
		}),
		PassesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "radar_passes_skipped_total",
			Help: "Scheduled passes skipped because a pass was already running.",
		}),
		PassFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "radar_pass_failures_total",
			Help: "Analysis passes aborted by an error.",
		}),
		WindowsFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "radar_windows_flushed_total",
			Help: "Finalized window stats persisted.",
		}),
		CandidatesFound: factory.NewGauge(prometheus.GaugeOpts{
			Name: "radar_trend_candidates",
			Help: "Candidates produced by the most recent pass.",
		}),
		Suppressed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "radar_candidates_suppressed",
			Help: "Raw candidates suppressed by noise filtering in the most recent pass.",
		}),
	}
}
