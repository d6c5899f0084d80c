package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay-wide collectors, registered on the default registry and exposed
// by the HTTP server at /metrics.
var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_active",
		Help: "Number of live WebSocket connections.",
	})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "Number of rooms with at least one joined connection.",
	})

	MessagesRouted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_routed_total",
		Help: "Chat messages accepted and fanned out.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_outbound_events_dropped_total",
		Help: "Outbound events dropped because a connection's queue overflowed.",
	})

	JoinsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_joins_rejected_total",
		Help: "Join attempts refused by the authorization re-check.",
	})
)
