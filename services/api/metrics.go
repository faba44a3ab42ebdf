package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type metrics struct {
	registry           *prometheus.Registry
	reports            *prometheus.CounterVec
	packages           prometheus.Counter
	duration           prometheus.Histogram
	sideEffectFailures *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmgmt_ingest_reports_total",
			Help: "Update reports received, by outcome.",
		}, []string{"result"}),
		packages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pmgmt_ingest_packages_total",
			Help: "Package updates stored from accepted reports.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pmgmt_ingest_duration_seconds",
			Help:    "Time spent normalizing and persisting a report.",
			Buckets: prometheus.DefBuckets,
		}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmgmt_side_effect_failures_total",
			Help: "Post-commit archive and publish failures.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reports,
		m.packages,
		m.duration,
		m.sideEffectFailures,
	)
	return m
}
