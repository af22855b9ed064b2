package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "void_moderation_transitions_total",
	Help: "Infraction lifecycle outcomes, by kind and outcome",
}, []string{"kind", "outcome"})

var enforcementFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "void_moderation_enforcement_failures_total",
	Help: "Platform enforcement calls that failed after persistence, by kind and operation",
}, []string{"kind", "op"})

var notificationFailureCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "void_moderation_notification_failures_total",
	Help: "Log channel notifications that could not be delivered",
})

var sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "void_moderation_sweep_duration_sec",
	Help:    "Duration of expiry reconciler sweeps",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
})

var sweepItemCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "void_moderation_sweep_items_total",
	Help: "Infractions handled by the reconciler, by result",
}, []string{"result"})

var sweepErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "void_moderation_sweep_errors_total",
	Help: "Reconciler sweeps that could not query the store",
})
