// Package metrics defines and registers all custom Prometheus metrics for
// the donation coordinator. It is the single source of truth for metric
// names, labels, and help strings; metrics register themselves with the
// default registry at package init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "donation"

// ── Coordinator metrics ───────────────────────────────────────────────────────

// OperationsTotal counts coordinator operations by final outcome.
// Labels:
//   - action: submit, edit, delete, claim, exit, confirm
//   - outcome: ok, forbidden, invalid_transition, not_found, contested, error
var OperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of coordinator operations, by action and outcome.",
	},
	[]string{"action", "outcome"},
)

// ConflictsTotal counts conditional-update conflicts that triggered a retry.
// Label:
//   - action: the operation that observed the conflict
var ConflictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "write_conflicts_total",
		Help:      "Total number of compare-and-swap conflicts observed by the coordinator.",
	},
	[]string{"action"},
)

// ── Notifier metrics ──────────────────────────────────────────────────────────

// NotifierDeliveriesTotal counts changes enqueued to subscriber channels.
var NotifierDeliveriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifier_deliveries_total",
		Help:      "Total number of change deliveries enqueued to subscribers.",
	},
)

// NotifierDroppedTotal counts deliveries shed because a subscriber lagged
// beyond its backlog.
var NotifierDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifier_dropped_total",
		Help:      "Total number of change deliveries dropped due to subscriber backlog overflow.",
	},
)

// NotifierStaleTotal counts publishes discarded because a later commit of
// the same record was already fanned out.
var NotifierStaleTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifier_stale_dropped_total",
		Help:      "Total number of changes discarded for arriving after a later commit of the same record.",
	},
)

// NotifierSubscribers tracks the current number of live subscriptions.
var NotifierSubscribers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notifier_subscribers",
		Help:      "Current number of live change subscriptions.",
	},
)
