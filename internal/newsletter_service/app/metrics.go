package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	issuesPublishedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsletter",
			Name:      "issues_published_total",
			Help:      "Total newsletter issues published (first-time commands only).",
		},
	)

	publishReplaysCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsletter",
			Name:      "publish_replays_total",
			Help:      "Total publish commands answered by replaying a saved response.",
		},
	)

	deliveriesProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsletter",
			Name:      "deliveries_processed_total",
			Help:      "Total delivery tasks retired, by terminal outcome.",
		},
		[]string{"outcome"}, // delivered, send_error, bad_email, missing_issue
	)

	deliverySendDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "newsletter",
			Name:      "delivery_send_duration_seconds",
			Help:      "Duration of provider send calls.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	subscriptionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsletter",
			Name:      "subscriptions_total",
			Help:      "Total subscription requests, by result.",
		},
		[]string{"result"}, // accepted, duplicate, invalid
	)
)
