// Package metrics exposes Prometheus instrumentation for chronos processors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsConsumed counts envelopes consumed per topic.
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_events_consumed_total",
		Help: "Number of events consumed, by topic.",
	}, []string{"topic"})

	// PlansGenerated counts recovery plans generated per strategy.
	PlansGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_plans_generated_total",
		Help: "Number of recovery plans generated, by strategy.",
	}, []string{"strategy"})

	// PlansSuppressed counts plans skipped by the idempotency ledger.
	PlansSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_plans_suppressed_total",
		Help: "Number of plan publications suppressed as duplicates.",
	})

	// StrategyFallbacks counts falls through the strategy chain.
	StrategyFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_strategy_fallbacks_total",
		Help: "Number of strategy failures that fell back, by failed strategy.",
	}, []string{"strategy"})

	// TasksDispatched counts task assignments fanned out to agents.
	TasksDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_tasks_dispatched_total",
		Help: "Number of task assignments dispatched, by task type.",
	}, []string{"type"})

	// MergesCompleted counts partial-solution merges.
	MergesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_merges_completed_total",
		Help: "Number of partial-solution sets merged into final solutions.",
	})

	// AnalysesCompleted counts trajectory batch analyses.
	AnalysesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronos_analyses_completed_total",
		Help: "Number of trajectory batch analyses completed.",
	})

	// AnalysisDuration observes how long batch analyses take.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chronos_analysis_duration_seconds",
		Help:    "Duration of trajectory batch analyses.",
		Buckets: prometheus.DefBuckets,
	})

	// LLMRequests counts generative-model calls by outcome.
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_llm_requests_total",
		Help: "Number of generative-model requests, by outcome.",
	}, []string{"outcome"})
)
