// Package metrics declares the Prometheus collectors of the search and chat paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kunskapsportal"

var (
	// SearchDuration tracks search latency.
	// Labels: mode (exact, semantic, hybrid), phase (exact, semantic, total)
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Duration of search sub-phases in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode", "phase"},
	)

	// SemanticDegraded counts semantic searches that fell back to empty results.
	// Labels: source (internal or external source id)
	SemanticDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "semantic_degraded_total",
			Help:      "Semantic searches that degraded to an empty result set",
		},
		[]string{"source"},
	)

	// ChatRequests counts chat orchestrations by outcome (answered, fallback, failed)
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat orchestrations by outcome",
		},
		[]string{"outcome"},
	)

	// ChatSearchTurns observes how many knowledge searches a chat request used
	ChatSearchTurns = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "search_turns",
			Help:      "Knowledge search tool calls per chat request",
			Buckets:   []float64{0, 1, 2, 3, 5},
		},
	)

	// ToolCalls counts knowledge tool executions by result (ok, empty, error, rejected)
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "tool_calls_total",
			Help:      "Knowledge search tool executions by result",
		},
		[]string{"result"},
	)

	// GroundingCalls counts web grounding calls by result (enhanced, unchanged, error)
	GroundingCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "grounding_calls_total",
			Help:      "Web grounding calls by result",
		},
		[]string{"result"},
	)
)
