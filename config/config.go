// Package config defines the typed JSON configuration for the control loop
// agents and its validation rules.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/c360/cstrloop/errors"
)

// Duration wraps time.Duration so JSON configs can use strings like "2s".
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts either a duration string or nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// Config is the complete application configuration. One config file serves
// both agents; the -agent flag selects which one a process runs.
type Config struct {
	NATS       NATSConfig       `json:"nats"`
	Reactor    ReactorConfig    `json:"reactor"`
	Controller ControllerConfig `json:"controller"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
}

// NATSConfig holds broker connection and stream settings.
type NATSConfig struct {
	URL            string   `json:"url"`
	Name           string   `json:"name,omitempty"`
	ConnectTimeout Duration `json:"connect_timeout,omitempty"`
	MaxReconnects  int      `json:"max_reconnects,omitempty"`
	ReconnectWait  Duration `json:"reconnect_wait,omitempty"`
}

// ReactorConfig holds simulation agent settings.
type ReactorConfig struct {
	// InitialCa and InitialTemp seed the integrated state.
	InitialCa   float64 `json:"initial_ca"`
	InitialTemp float64 `json:"initial_temp"`

	// StepSize is the integrator step in simulated minutes.
	StepSize float64 `json:"step_size"`
	// StepsPerTick is how many integrator steps run per publish tick.
	StepsPerTick int `json:"steps_per_tick"`
	// TickPeriod is the wall-clock publish cadence.
	TickPeriod Duration `json:"tick_period"`

	// StaleAfter is how long without a fresh command before the agent
	// degrades to the safe cooling value.
	StaleAfter Duration `json:"stale_after"`
	// SafeCoolingTemp is the actuation applied while no fresh command
	// is available. Must lie within the controller output bounds.
	SafeCoolingTemp float64 `json:"safe_cooling_temp"`

	// MaxTemp and MinTemp bound the integrated temperature; crossing
	// either is a divergence fault.
	MaxTemp float64 `json:"max_temp"`
	MinTemp float64 `json:"min_temp"`

	// CommandBuffer bounds the queue of pending control deliveries.
	CommandBuffer int `json:"command_buffer,omitempty"`
}

// ControllerConfig holds PID agent settings.
type ControllerConfig struct {
	// Setpoint is the target reactor temperature. A controller started
	// without one cannot arm and exits with a configuration error.
	Setpoint *float64 `json:"setpoint,omitempty"`

	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`

	// OutputMin and OutputMax clamp the cooling jacket command.
	OutputMin float64 `json:"output_min"`
	OutputMax float64 `json:"output_max"`

	// IntegralMin and IntegralMax bound the windup guard term.
	IntegralMin float64 `json:"integral_min"`
	IntegralMax float64 `json:"integral_max"`

	// MaxWait bounds each blocking read of the sensor stream.
	MaxWait Duration `json:"max_wait,omitempty"`
}

// TelemetryConfig holds the metrics and health HTTP endpoint settings.
type TelemetryConfig struct {
	// Addr is the listen address for /metrics and /healthz. Empty
	// disables the endpoint.
	Addr string `json:"addr,omitempty"`
	// HealthFile, when set, is touched every loop iteration so container
	// orchestrators can probe liveness without the HTTP endpoint.
	HealthFile string `json:"health_file,omitempty"`
}

// Default returns a configuration with working defaults for a local loop.
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			ConnectTimeout: Duration{10 * time.Second},
			MaxReconnects:  -1,
			ReconnectWait:  Duration{2 * time.Second},
		},
		Reactor: ReactorConfig{
			InitialCa:       0.5,
			InitialTemp:     350.0,
			StepSize:        0.005,
			StepsPerTick:    10,
			TickPeriod:      Duration{100 * time.Millisecond},
			StaleAfter:      Duration{2 * time.Second},
			SafeCoolingTemp: 290.0,
			MaxTemp:         500.0,
			MinTemp:         200.0,
			CommandBuffer:   64,
		},
		Controller: ControllerConfig{
			Kp:          3.0,
			Ki:          8.0,
			Kd:          0.2,
			OutputMin:   250.0,
			OutputMax:   350.0,
			IntegralMin: 0.0,
			IntegralMax: 350.0,
			MaxWait:     Duration{5 * time.Second},
		},
		Telemetry: TelemetryConfig{
			Addr: ":9090",
		},
	}
}

// Load reads a JSON config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load", "read file")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load", "parse file")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return invalid("nats.url is required")
	}

	r := &c.Reactor
	if r.StepSize <= 0 {
		return invalid("reactor.step_size must be positive")
	}
	if r.StepsPerTick <= 0 {
		return invalid("reactor.steps_per_tick must be positive")
	}
	if r.TickPeriod.Duration <= 0 {
		return invalid("reactor.tick_period must be positive")
	}
	if r.StaleAfter.Duration <= 0 {
		return invalid("reactor.stale_after must be positive")
	}
	if r.MinTemp >= r.MaxTemp {
		return invalid("reactor.min_temp must be below reactor.max_temp")
	}
	if r.InitialTemp <= r.MinTemp || r.InitialTemp >= r.MaxTemp {
		return invalid("reactor.initial_temp must lie within the divergence bounds")
	}
	if r.InitialCa < 0 {
		return invalid("reactor.initial_ca must be non-negative")
	}
	if r.CommandBuffer <= 0 {
		return invalid("reactor.command_buffer must be positive")
	}

	ctl := &c.Controller
	if ctl.OutputMin >= ctl.OutputMax {
		return invalid("controller.output_min must be below controller.output_max")
	}
	if ctl.IntegralMin >= ctl.IntegralMax {
		return invalid("controller.integral_min must be below controller.integral_max")
	}
	if ctl.Kp < 0 || ctl.Ki < 0 || ctl.Kd < 0 {
		return invalid("controller gains must be non-negative")
	}
	if ctl.MaxWait.Duration <= 0 {
		return invalid("controller.max_wait must be positive")
	}

	if r.SafeCoolingTemp < ctl.OutputMin || r.SafeCoolingTemp > ctl.OutputMax {
		return invalid("reactor.safe_cooling_temp must lie within the controller output bounds")
	}

	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", msg)
}
