package reactor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/cstrloop/metric"
)

// Metrics holds Prometheus metrics for the simulation agent
type Metrics struct {
	temperature   prometheus.Gauge
	concentration prometheus.Gauge
	coolingTemp   prometheus.Gauge
	simulatedTime prometheus.Gauge
	ticksTotal    prometheus.Counter
	staleTicks    prometheus.Counter
}

// newMetrics creates and registers simulation agent metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cstrloop",
			Subsystem: "reactor",
			Name:      "temperature_kelvin",
			Help:      "Current integrated reactor temperature",
		}),
		concentration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cstrloop",
			Subsystem: "reactor",
			Name:      "concentration_mol_m3",
			Help:      "Current integrated concentration of A",
		}),
		coolingTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cstrloop",
			Subsystem: "reactor",
			Name:      "cooling_temp_kelvin",
			Help:      "Cooling jacket temperature currently applied",
		}),
		simulatedTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cstrloop",
			Subsystem: "reactor",
			Name:      "simulated_minutes",
			Help:      "Simulated time since start",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cstrloop",
			Subsystem: "reactor",
			Name:      "ticks_total",
			Help:      "Total publish ticks completed",
		}),
		staleTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cstrloop",
			Subsystem: "reactor",
			Name:      "stale_ticks_total",
			Help:      "Ticks integrated on the safe cooling value",
		}),
	}

	registry.RegisterGauge("reactor", "temperature", metrics.temperature)
	registry.RegisterGauge("reactor", "concentration", metrics.concentration)
	registry.RegisterGauge("reactor", "cooling_temp", metrics.coolingTemp)
	registry.RegisterGauge("reactor", "simulated_time", metrics.simulatedTime)
	registry.RegisterCounter("reactor", "ticks", metrics.ticksTotal)
	registry.RegisterCounter("reactor", "stale_ticks", metrics.staleTicks)

	return metrics
}

func (m *Metrics) recordState(s State, u float64) {
	if m == nil {
		return
	}
	m.temperature.Set(s.Temp)
	m.concentration.Set(s.Ca)
	m.coolingTemp.Set(u)
	m.simulatedTime.Set(s.Time)
	m.ticksTotal.Inc()
}

func (m *Metrics) recordStale() {
	if m == nil {
		return
	}
	m.staleTicks.Inc()
}
