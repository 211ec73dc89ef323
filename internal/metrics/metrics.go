// Package metrics exposes the Prometheus counters and histograms the
// pipeline and alerter update each tick. They're registered against
// the default registry so the API server's /metrics handler picks
// them up without any wiring beyond importing this package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "spectre_tick_duration_seconds",
		Help: "Duration of a single scheduler tick.",
		Buckets: prometheus.DefBuckets,
	})

	LogsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectre_logs_processed_total",
		Help: "Total log records processed across all ticks.",
	})

	AnomaliesFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectre_anomalies_found_total",
		Help: "Total records flagged as anomalous.",
	})

	TemplatesMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectre_templates_minted_total",
		Help: "Total new event templates added to the catalog.",
	})

	WebhooksFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectre_alert_webhooks_fired_total",
		Help: "Total webhook notifications successfully delivered.",
	})

	WebhooksSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectre_alert_webhooks_suppressed_total",
		Help: "Total alert checks that crossed threshold but were suppressed by cooldown.",
	})

	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spectre_backend_request_duration_seconds",
		Help:    "Duration of search backend requests, by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
