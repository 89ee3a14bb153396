package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"nats": {"url": "nats://broker:4222"},
		"reactor": {"tick_period": "250ms", "initial_temp": 340},
		"controller": {"setpoint": 330, "kp": 1.5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Reactor.TickPeriod.Duration)
	assert.Equal(t, 340.0, cfg.Reactor.InitialTemp)
	require.NotNil(t, cfg.Controller.Setpoint)
	assert.Equal(t, 330.0, *cfg.Controller.Setpoint)
	assert.Equal(t, 1.5, cfg.Controller.Kp)

	// Untouched fields keep defaults
	assert.Equal(t, 0.005, cfg.Reactor.StepSize)
	assert.Equal(t, 350.0, cfg.Controller.OutputMax)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Nil(t, cfg.Controller.Setpoint)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty nats url", func(c *Config) { c.NATS.URL = "" }},
		{"zero step size", func(c *Config) { c.Reactor.StepSize = 0 }},
		{"negative step size", func(c *Config) { c.Reactor.StepSize = -0.01 }},
		{"zero tick period", func(c *Config) { c.Reactor.TickPeriod = Duration{} }},
		{"inverted temp bounds", func(c *Config) { c.Reactor.MinTemp = 600 }},
		{"initial temp out of bounds", func(c *Config) { c.Reactor.InitialTemp = 700 }},
		{"negative initial ca", func(c *Config) { c.Reactor.InitialCa = -1 }},
		{"inverted output bounds", func(c *Config) { c.Controller.OutputMin = 400 }},
		{"inverted integral bounds", func(c *Config) { c.Controller.IntegralMin = 400 }},
		{"negative gain", func(c *Config) { c.Controller.Kp = -1 }},
		{"safe cooling outside output bounds", func(c *Config) { c.Reactor.SafeCoolingTemp = 240 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDuration_UnmarshalForms(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalJSON([]byte(`5000000000`)))
	assert.Equal(t, 5*time.Second, d.Duration)

	assert.Error(t, d.UnmarshalJSON([]byte(`"fast"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
