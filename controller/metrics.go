package controller

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/cstrloop/metric"
)

// Metrics holds Prometheus metrics for the PID agent
type Metrics struct {
	output        prometheus.Gauge
	controlError  prometheus.Gauge
	integral      prometheus.Gauge
	commandsTotal prometheus.Counter
}

// newMetrics creates and registers PID agent metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		output: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cstrloop",
			Subsystem: "controller",
			Name:      "output_kelvin",
			Help:      "Last published cooling jacket command",
		}),
		controlError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cstrloop",
			Subsystem: "controller",
			Name:      "error_kelvin",
			Help:      "Setpoint minus last measured temperature",
		}),
		integral: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cstrloop",
			Subsystem: "controller",
			Name:      "integral_term",
			Help:      "Clamped integral accumulator",
		}),
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cstrloop",
			Subsystem: "controller",
			Name:      "commands_total",
			Help:      "Total control commands published",
		}),
	}

	registry.RegisterGauge("controller", "output", metrics.output)
	registry.RegisterGauge("controller", "error", metrics.controlError)
	registry.RegisterGauge("controller", "integral", metrics.integral)
	registry.RegisterCounter("controller", "commands", metrics.commandsTotal)

	return metrics
}

func (m *Metrics) recordCommand(output, controlError, integral float64) {
	if m == nil {
		return
	}
	m.output.Set(output)
	m.controlError.Set(controlError)
	m.integral.Set(integral)
	m.commandsTotal.Inc()
}
