package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all loop-level metrics (not agent-specific)
type Metrics struct {
	// Agent metrics
	AgentStatus         *prometheus.GaugeVec
	MessagesConsumed    *prometheus.CounterVec
	MessagesPublished   *prometheus.CounterVec
	MessagesSkipped     *prometheus.CounterVec
	DuplicatesDiscarded *prometheus.CounterVec
	SequenceGaps        *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
	HealthCheckStatus   *prometheus.GaugeVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all loop metrics
func NewMetrics() *Metrics {
	return &Metrics{
		AgentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cstrloop",
				Subsystem: "agent",
				Name:      "status",
				Help:      "Agent state (0=initializing, 1=running, 2=degraded, 3=fault, 4=unarmed, 5=armed)",
			},
			[]string{"agent"},
		),

		MessagesConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cstrloop",
				Subsystem: "messages",
				Name:      "consumed_total",
				Help:      "Total number of messages consumed from a stream",
			},
			[]string{"agent", "stream"},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cstrloop",
				Subsystem: "messages",
				Name:      "published_total",
				Help:      "Total number of messages published to a stream",
			},
			[]string{"agent", "stream"},
		),

		MessagesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cstrloop",
				Subsystem: "messages",
				Name:      "skipped_total",
				Help:      "Total number of malformed messages acknowledged and skipped",
			},
			[]string{"agent", "stream"},
		),

		DuplicatesDiscarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cstrloop",
				Subsystem: "messages",
				Name:      "duplicates_total",
				Help:      "Total number of duplicate sequence numbers discarded",
			},
			[]string{"agent", "stream"},
		),

		SequenceGaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cstrloop",
				Subsystem: "messages",
				Name:      "sequence_gaps_total",
				Help:      "Total number of sequence gaps observed",
			},
			[]string{"agent", "stream"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cstrloop",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"agent", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cstrloop",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cstrloop",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cstrloop",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cstrloop",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// RecordAgentStatus updates the agent state gauge
func (c *Metrics) RecordAgentStatus(agent string, status int) {
	c.AgentStatus.WithLabelValues(agent).Set(float64(status))
}

// RecordMessageConsumed increments the consumed message counter
func (c *Metrics) RecordMessageConsumed(agent, stream string) {
	c.MessagesConsumed.WithLabelValues(agent, stream).Inc()
}

// RecordMessagePublished increments the published message counter
func (c *Metrics) RecordMessagePublished(agent, stream string) {
	c.MessagesPublished.WithLabelValues(agent, stream).Inc()
}

// RecordMessageSkipped increments the skipped message counter
func (c *Metrics) RecordMessageSkipped(agent, stream string) {
	c.MessagesSkipped.WithLabelValues(agent, stream).Inc()
}

// RecordDuplicate increments the discarded duplicate counter
func (c *Metrics) RecordDuplicate(agent, stream string) {
	c.DuplicatesDiscarded.WithLabelValues(agent, stream).Inc()
}

// RecordSequenceGap increments the sequence gap counter
func (c *Metrics) RecordSequenceGap(agent, stream string) {
	c.SequenceGaps.WithLabelValues(agent, stream).Inc()
}

// RecordError increments the error counter
func (c *Metrics) RecordError(agent, errorType string) {
	c.ErrorsTotal.WithLabelValues(agent, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments the reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
