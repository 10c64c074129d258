// Package metrics exposes Prometheus collectors for the notification pipeline
// and the HTTP API:
//   - drugscreen_notification_stage_total: stage evaluations by stage and outcome
//   - drugscreen_email_send_total: per-recipient sends by audience and result
//   - drugscreen_alerts_total: admin alerts by severity
//   - drugscreen_outbox_pending: outbox rows seen by the last worker poll
//   - drugscreen_http_request_total / _duration_seconds / _in_flight
//
// All collectors are registered with the default registry at init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	NotificationStageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drugscreen_notification_stage_total",
			Help: "Notification stage evaluations",
		},
		[]string{"stage", "outcome"},
	)

	EmailSendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drugscreen_email_send_total",
			Help: "Email sends per recipient",
		},
		[]string{"audience", "result"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drugscreen_alerts_total",
			Help: "Admin alerts raised",
		},
		[]string{"severity"},
	)

	OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drugscreen_outbox_pending",
			Help: "Outbox entries returned by the last worker poll",
		},
	)

	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drugscreen_http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drugscreen_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drugscreen_http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)
)

func init() {
	prometheus.MustRegister(NotificationStageTotal)
	prometheus.MustRegister(EmailSendTotal)
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(OutboxPending)
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
}
