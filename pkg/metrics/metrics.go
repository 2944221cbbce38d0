package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PushDeliveries records individual push delivery attempts by result (sent|failed).
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcast_push_deliveries_total",
			Help: "Total number of push delivery attempts",
		},
		[]string{"result"},
	)

	// CampaignSends counts campaign fan-outs and their outcome (completed|error).
	CampaignSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushcast_campaign_sends_total",
			Help: "Total number of campaign fan-outs",
		},
		[]string{"outcome"},
	)

	// CampaignSendDuration measures how long a full campaign fan-out takes.
	CampaignSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pushcast_campaign_send_duration_seconds",
			Help:    "Campaign fan-out duration from resolve to finalize",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// Subscribers tracks registered subscribers per website.
	Subscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pushcast_subscribers",
			Help: "Number of registered subscribers",
		},
		[]string{"website_id"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushcast_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
