package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "deepstream"
	metricsSubsystem = "connection_endpoint"
)

type metrics struct {
	connectionsAccepted prometheus.Counter
	connectionsActive   prometheus.Gauge
	messagesReceived    prometheus.Counter
	pingFrames          prometheus.Counter
	pongFrames          prometheus.Counter
	upgradesRejected    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &metrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by the endpoint.",
		}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connections_active",
			Help:      "Currently live connections.",
		}),
		messagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "messages_received_total",
			Help:      "Raw messages received from peers.",
		}),
		pingFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "ping_frames_total",
			Help:      "Ping control frames received from peers.",
		}),
		pongFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pong_frames_total",
			Help:      "Pong control frames received from peers.",
		}),
		upgradesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "upgrades_rejected_total",
			Help:      "Upgrade requests rejected during handshake validation.",
		}, []string{"reason"}),
	}
}
