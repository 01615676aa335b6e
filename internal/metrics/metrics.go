// Package metrics provides Prometheus metrics for the chat node: connections,
// messages, parse failures, probes and membership churn.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Listener ───────────────────────────────────────────────────────────────

// ConnectionsAccepted counts inbound connections handed to the handler.
var ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "p2pchat",
	Name:      "connections_accepted_total",
	Help:      "Inbound connections accepted by the listener.",
})

// AcceptErrors counts accept failures while the node was running.
var AcceptErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "p2pchat",
	Name:      "accept_errors_total",
	Help:      "Accept failures observed while running.",
})

// ─── Messages ───────────────────────────────────────────────────────────────

// MessagesReceived counts inbound messages that parsed successfully.
var MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "p2pchat",
	Name:      "messages_received_total",
	Help:      "Inbound messages delivered to subscribers.",
})

// ParseErrors counts discarded inbound messages by reason.
var ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "p2pchat",
	Name:      "parse_errors_total",
	Help:      "Inbound messages discarded as malformed.",
}, []string{"reason"})

// MessagesSent counts outbound sends by result (ok, unreachable, timeout, other).
var MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "p2pchat",
	Name:      "messages_sent_total",
	Help:      "Outbound messages by result.",
}, []string{"result"})

// SendLatency tracks dial+write duration in seconds.
var SendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "p2pchat",
	Name:      "send_latency_seconds",
	Help:      "Time to dial a peer and write one message.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3},
})

// ─── Peers ──────────────────────────────────────────────────────────────────

// PeersKnown tracks the size of the peer set.
var PeersKnown = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "p2pchat",
	Name:      "peers_known",
	Help:      "Number of peers in the membership list.",
})

// Probes counts liveness probes by result (reachable, unreachable).
var Probes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "p2pchat",
	Name:      "probes_total",
	Help:      "Liveness probes by result.",
}, []string{"result"})

// PeersEvicted counts peers removed after a failed probe.
var PeersEvicted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "p2pchat",
	Name:      "peers_evicted_total",
	Help:      "Peers evicted by the maintenance loop.",
})

// EventsDropped counts notifications not delivered because a subscriber was full.
var EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "p2pchat",
	Name:      "events_dropped_total",
	Help:      "Events dropped because a subscriber buffer was full.",
})
