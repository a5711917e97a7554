// Package metrics holds the prometheus collectors shared by the web page,
// the upstream HTTP client and the insight pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "token_insight"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Web requests by route and status code.",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Web request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_duration_seconds",
		Help:      "Latency of market-data API calls by endpoint.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
	}, []string{"endpoint"})

	insightsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "insights_total",
		Help:      "Finished insight runs by outcome.",
	}, []string{"outcome"})
)

func RecordRequest(route, status string, elapsed time.Duration) {
	requestsTotal.WithLabelValues(route, status).Inc()
	requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func RecordUpstream(endpoint string, elapsed time.Duration) {
	upstreamDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func RecordInsight(outcome string) {
	insightsTotal.WithLabelValues(outcome).Inc()
}
