// Package metrics exposes Prometheus collectors for the realtime layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_active_connections",
		Help: "Number of live WebSocket connections.",
	})

	ActiveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_active_channels",
		Help: "Number of channels with at least one subscriber.",
	})

	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_messages_sent_total",
		Help: "Envelopes enqueued to client send buffers.",
	})

	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_broadcasts_total",
		Help: "Broadcast calls by target kind.",
	}, []string{"target"})

	SlowClientsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_slow_clients_evicted_total",
		Help: "Clients torn down because their send buffer was full.",
	})

	LivenessEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_liveness_evictions_total",
		Help: "Clients evicted by the heartbeat monitor.",
	})

	AuthFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_auth_failures_total",
		Help: "Rejected auth handshakes.",
	})

	ProtocolErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_protocol_errors_total",
		Help: "Malformed or unrecognized inbound envelopes.",
	})

	SubscribeDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_subscribe_denied_total",
		Help: "Subscribe requests rejected by the authorization policy.",
	})
)
