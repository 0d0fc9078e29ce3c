// Package metrics defines and registers the custom Prometheus metrics of the
// access-core service. It is the single source of truth for metric names,
// labels and help strings.
//
// Metrics are registered with the default registry through promauto when the
// package is first imported.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "access"

// ── Authorization metrics ────────────────────────────────────────────────────

// DecisionsTotal counts authorization decisions.
// Labels:
//   - check: "permission", "role", "entitlement" or "composite"
//   - outcome: "granted", "denied" or "indeterminate"
var DecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Total number of authorization decisions, by check kind and outcome.",
	},
	[]string{"check", "outcome"},
)

// DecisionDuration measures a single decision, store reads included.
var DecisionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "decision_duration_seconds",
		Help:      "Duration of authorization decisions.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"check"},
)

// CredentialsTotal counts credential operations.
// Labels:
//   - op: "issue" or "validate"
//   - result: "ok", "invalid", "expired" or "error"
var CredentialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credentials_total",
		Help:      "Total number of credential operations, by operation and result.",
	},
	[]string{"op", "result"},
)

// ── Dispatch metrics ─────────────────────────────────────────────────────────

// DispatchTotal counts dispatched requests.
// Labels:
//   - request: the Go type name of the request (e.g. "usecase.AssignRole")
//   - outcome: "ok", "error" or "not_found"
var DispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_total",
		Help:      "Total number of dispatched commands and queries.",
	},
	[]string{"request", "outcome"},
)

// DispatchDuration measures handler execution time per request type.
var DispatchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of handler execution, by request type.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"request"},
)

// ── Cache metrics ────────────────────────────────────────────────────────────

// CacheLookupsTotal counts cache lookups.
// Labels:
//   - cache: "permissions", "roles" or "menu"
//   - result: "hit" or "miss"
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of cache lookups, labelled by cache and result (hit/miss).",
	},
	[]string{"cache", "result"},
)

// ── Queue metrics ────────────────────────────────────────────────────────────

// QueueDepth tracks the number of commands waiting in each worker channel.
var QueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of commands pending in each worker channel.",
	},
	[]string{"worker_id"},
)

// QueueDedupTotal counts deduplication decisions on queued commands.
var QueueDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_dedup_total",
		Help:      "Total number of deduplication checks on queued commands, by result (hit/miss).",
	},
	[]string{"result"},
)

// BillingEventsTotal counts consumed billing messages.
// Labels:
//   - routing_key: e.g. "subscription.activated"
//   - result: "enqueued" or "rejected"
var BillingEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "billing_events_total",
		Help:      "Total number of billing events consumed, by routing key and result.",
	},
	[]string{"routing_key", "result"},
)
