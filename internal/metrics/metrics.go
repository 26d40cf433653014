package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parliament",
		Subsystem: "ingestion",
		Name:      "runs_total",
		Help:      "Ingestion runs broken down by result.",
	}, []string{"result"})

	ingestionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "parliament",
		Subsystem: "ingestion",
		Name:      "duration_seconds",
		Help:      "Wall time of complete ingestion runs.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	membersImported = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parliament",
		Subsystem: "ingestion",
		Name:      "members_imported",
		Help:      "Members written by the last successful run.",
	})

	detailFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parliament",
		Subsystem: "enrichment",
		Name:      "detail_fetches_total",
		Help:      "Member detail fetches broken down by result.",
	}, []string{"result"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parliament",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests broken down by route and status class.",
	}, []string{"route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "parliament",
		Subsystem: "api",
		Name:      "latency_seconds",
		Help:      "Latency distribution for HTTP requests.",
		Buckets: []float64{
			0.001, 0.005, 0.01, 0.05,
			0.1, 0.5, 1, 5, 30, 120,
		},
	}, []string{"route"})
)

// RunFinished records the outcome of one ingestion run
func RunFinished(result string, took time.Duration, members int) {
	ingestionRuns.WithLabelValues(result).Inc()
	if result == "completed" {
		ingestionDuration.Observe(took.Seconds())
		membersImported.Set(float64(members))
	}
}

// DetailFetched counts one enrichment item; result is "ok", "failed" or "skipped"
func DetailFetched(result string) {
	detailFetches.WithLabelValues(result).Inc()
}

// Request records one served HTTP request
func Request(route string, status int, took time.Duration) {
	httpRequests.WithLabelValues(route, statusClass(status)).Inc()
	httpLatency.WithLabelValues(route).Observe(took.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
