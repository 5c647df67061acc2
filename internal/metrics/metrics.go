// Package metrics exposes dispatchd's runtime counters to Prometheus. A
// full metrics product (dashboards, alerting) is out of scope, but an
// operable server still needs a plain /metrics endpoint regardless.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector dispatchd exposes, registered once at
// startup against a single prometheus.Registerer.
type Registry struct {
	CommandsDispatched prometheus.Counter
	CommandsCompleted  *prometheus.CounterVec // labeled by terminal status
	AssignTickDuration  prometheus.Histogram
	PersistTickDuration prometheus.Histogram
	AssignTickErrors    prometheus.Counter
	PersistTickErrors   prometheus.Counter
	TreeTasks           prometheus.Gauge
	TreeCommands        prometheus.Gauge
	RenderNodesUp       prometheus.Gauge
	LicenceTokensInUse  *prometheus.GaugeVec // labeled by licence name
}

// New builds and registers every collector against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CommandsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dispatchd", Name: "commands_dispatched_total",
			Help: "Commands handed to a RenderNode by the assignment loop.",
		}),
		CommandsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatchd", Name: "commands_completed_total",
			Help: "Commands that reached a terminal status, labeled by status.",
		}, []string{"status"}),
		AssignTickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dispatchd", Name: "assign_tick_duration_seconds",
			Help: "Wall-clock duration of one assignment-loop tick.",
		}),
		PersistTickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dispatchd", Name: "persist_tick_duration_seconds",
			Help: "Wall-clock duration of one persistence-flush tick.",
		}),
		AssignTickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dispatchd", Name: "assign_tick_errors_total",
			Help: "Assignment-loop ticks that returned an error.",
		}),
		PersistTickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dispatchd", Name: "persist_tick_errors_total",
			Help: "Persistence-flush ticks that returned an error.",
		}),
		TreeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dispatchd", Name: "tree_tasks",
			Help: "Current number of task nodes in the dispatch tree.",
		}),
		TreeCommands: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dispatchd", Name: "tree_commands",
			Help: "Current number of commands in the dispatch tree.",
		}),
		RenderNodesUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dispatchd", Name: "render_nodes_up",
			Help: "RenderNodes currently reporting RenderNodeUp.",
		}),
		LicenceTokensInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dispatchd", Name: "licence_tokens_in_use",
			Help: "Licence tokens currently held, labeled by licence name.",
		}, []string{"licence"}),
	}

	reg.MustRegister(
		r.CommandsDispatched, r.CommandsCompleted,
		r.AssignTickDuration, r.PersistTickDuration,
		r.AssignTickErrors, r.PersistTickErrors,
		r.TreeTasks, r.TreeCommands, r.RenderNodesUp, r.LicenceTokensInUse,
	)
	return r
}
