// Package metrics defines the Prometheus collectors the pipeline and
// sweeper update, served at /metrics by promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nimbusd_jobs_total",
		Help: "Total number of jobs by terminal status.",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nimbusd_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"stage"})

	SweepReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nimbusd_sweep_reclaimed_total",
		Help: "Total number of jobs reclaimed by the cleanup sweeper.",
	})

	SweepErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nimbusd_sweep_errors_total",
		Help: "Total number of per-row sweeper errors by stage.",
	}, []string{"stage"})
)
