package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exposed on the default registry; the CLI serves them via
// promhttp when a listen address is configured.
var (
	jobsAcquired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgjobq",
		Subsystem: "worker",
		Name:      "jobs_acquired_total",
		Help:      "Jobs claimed from the queue.",
	}, []string{"queue"})

	jobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgjobq",
		Subsystem: "worker",
		Name:      "jobs_completed_total",
		Help:      "Jobs finished successfully.",
	}, []string{"queue"})

	jobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pgjobq",
		Subsystem: "worker",
		Name:      "jobs_failed_total",
		Help:      "Jobs finished with a handler error.",
	}, []string{"queue"})
)
