package services

import "github.com/prometheus/client_golang/prometheus"

var (
	contextUpdateConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "daily_context_cas_conflicts_total",
			Help: "Optimistic-lock conflicts observed while updating daily contexts",
		},
	)
	contextRebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daily_context_rebuilds_total",
			Help: "Daily context rebuilds from the activity store",
		},
		[]string{"reason"}, // "drift", "admin", "fallback"
	)
	weeklyGenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weekly_context_generations_total",
			Help: "Weekly context documents materialized from source",
		},
	)
)

// InitMetrics registers the aggregation counters. Call this from main.go
// alongside middleware.InitPrometheus.
func InitMetrics() {
	prometheus.MustRegister(contextUpdateConflicts)
	prometheus.MustRegister(contextRebuilds)
	prometheus.MustRegister(weeklyGenerations)
}
