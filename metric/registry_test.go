package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry_CoreMetricsRegistered(t *testing.T) {
	r := NewMetricsRegistry()
	require.NotNil(t, r.CoreMetrics())

	r.Metrics.RecordAgentStatus("reactor", 1)
	r.Metrics.RecordMessagePublished("reactor", "CSTR_SENSOR")
	r.Metrics.RecordNATSStatus(true)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["cstrloop_agent_status"])
	assert.True(t, names["cstrloop_messages_published_total"])
	assert.True(t, names["cstrloop_nats_connected"])
}

func TestRegisterGauge_RejectsDuplicate(t *testing.T) {
	r := NewMetricsRegistry()

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cstrloop",
		Subsystem: "reactor",
		Name:      "temperature_kelvin",
		Help:      "Current reactor temperature",
	})

	require.NoError(t, r.RegisterGauge("reactor", "temperature_kelvin", g))
	assert.Error(t, r.RegisterGauge("reactor", "temperature_kelvin", g))
}

func TestUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cstrloop",
		Subsystem: "controller",
		Name:      "commands_total",
		Help:      "Commands emitted",
	})
	require.NoError(t, r.RegisterCounter("controller", "commands_total", c))

	assert.True(t, r.Unregister("controller", "commands_total"))
	assert.False(t, r.Unregister("controller", "commands_total"))

	// Re-registration works after unregister
	require.NoError(t, r.RegisterCounter("controller", "commands_total", c))
}

func TestMetrics_CounterSemantics(t *testing.T) {
	m := NewMetrics()

	m.RecordDuplicate("reactor", "CSTR_CONTROL")
	m.RecordDuplicate("reactor", "CSTR_CONTROL")
	m.RecordSequenceGap("controller", "CSTR_SENSOR")

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.DuplicatesDiscarded.WithLabelValues("reactor", "CSTR_CONTROL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.SequenceGaps.WithLabelValues("controller", "CSTR_SENSOR")))
}
