// Package metrics exposes prometheus counters for the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModelCalls counts model round trips by outcome ("ok", "error").
	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgpilot_model_calls_total",
		Help: "Model chat-completion calls by outcome.",
	}, []string{"outcome"})

	// ToolRuns counts tool dispatches by tool name.
	ToolRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgpilot_tool_runs_total",
		Help: "Tool dispatches by tool name.",
	}, []string{"tool"})

	// DeliveriesSent counts scheduled deliveries that reached the bridge.
	DeliveriesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgpilot_deliveries_sent_total",
		Help: "Scheduled deliveries marked sent.",
	})

	// DeliveriesFailed counts scheduled deliveries that failed terminally.
	DeliveriesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgpilot_deliveries_failed_total",
		Help: "Scheduled deliveries marked failed.",
	})

	// WorkerTicks counts delivery worker poll cycles.
	WorkerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgpilot_worker_ticks_total",
		Help: "Delivery worker poll cycles.",
	})
)
