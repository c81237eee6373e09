package run

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docuflow",
		Subsystem: "run",
		Name:      "started_total",
		Help:      "Plan runs started.",
	})

	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Subsystem: "run",
		Name:      "finished_total",
		Help:      "Plan runs finished, labeled by terminal event.",
	}, []string{"outcome"})

	docsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docuflow",
		Subsystem: "run",
		Name:      "docs_completed_total",
		Help:      "Documents generated and stored.",
	})

	docsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docuflow",
		Subsystem: "run",
		Name:      "docs_failed_total",
		Help:      "Documents denied admission or failed in generation.",
	})

	decisionsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuflow",
		Subsystem: "run",
		Name:      "decisions_total",
		Help:      "User decisions received at step gates.",
	}, []string{"type"})
)
