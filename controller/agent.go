package controller

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/cstrloop/bus"
	"github.com/c360/cstrloop/config"
	"github.com/c360/cstrloop/errors"
	"github.com/c360/cstrloop/health"
	"github.com/c360/cstrloop/message"
	"github.com/c360/cstrloop/metric"
)

// AgentState is the lifecycle state of the PID agent.
type AgentState int

// PID agent states. The values extend the reactor's range so the shared
// status gauge stays unambiguous.
const (
	StateUnarmed AgentState = 4
	StateArmed   AgentState = 5
)

// String returns the string representation of AgentState
func (s AgentState) String() string {
	switch s {
	case StateUnarmed:
		return "unarmed"
	case StateArmed:
		return "armed"
	default:
		return "unknown"
	}
}

// MeasurementSource supplies sensor deliveries, blocking up to maxWait.
// *bus.Consumer satisfies it.
type MeasurementSource interface {
	Next(ctx context.Context, maxWait time.Duration) (bus.Delivery, error)
}

// Publisher writes control payloads to the bus. *bus.Publisher satisfies it.
type Publisher interface {
	PublishWith(ctx context.Context, data []byte, o bus.PublishOptions) error
}

// Agent consumes sensor readings and publishes exactly one bounded cooling
// command per fresh measurement. Internal PID state lives only in memory:
// a restarted agent re-primes from the next reading it sees.
type Agent struct {
	cfg      config.ControllerConfig
	pid      *PID
	source   MeasurementSource
	pub      Publisher
	logger   *slog.Logger
	core     *metric.Metrics
	metrics  *Metrics
	monitor  *health.Monitor
	probe    *health.FileProbe
	maxWait  time.Duration
	setpoint float64

	mu        sync.RWMutex
	seq       uint64
	watermark message.Watermark
	lastRunID string
	state     AgentState
	runErr    error

	startOnce sync.Once
	stopOnce  sync.Once
	shutdown  chan struct{}
	done      chan struct{}
}

// Option configures an Agent.
type Option func(*Agent)

// WithMetricsRegistry wires agent and core metrics.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(a *Agent) {
		if registry != nil {
			a.metrics = newMetrics(registry)
			a.core = registry.CoreMetrics()
		}
	}
}

// WithHealthMonitor wires the health monitor.
func WithHealthMonitor(m *health.Monitor) Option {
	return func(a *Agent) { a.monitor = m }
}

// WithFileProbe wires the liveness file probe.
func WithFileProbe(p *health.FileProbe) Option {
	return func(a *Agent) { a.probe = p }
}

// New creates a PID agent. A missing setpoint is a configuration error:
// the agent cannot arm and the process should exit rather than publish
// uncontrolled commands.
func New(cfg config.ControllerConfig, source MeasurementSource, pub Publisher,
	logger *slog.Logger, opts ...Option) (*Agent, error) {
	if cfg.Setpoint == nil {
		return nil, errors.WrapFatal(errors.ErrUnarmed, "Agent", "New", "check setpoint")
	}

	a := &Agent{
		cfg:      cfg,
		source:   source,
		pub:      pub,
		logger:   logger,
		maxWait:  cfg.MaxWait.Duration,
		setpoint: *cfg.Setpoint,
		state:    StateUnarmed,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	a.pid = NewPID(PIDConfig{
		Setpoint:    a.setpoint,
		Kp:          cfg.Kp,
		Ki:          cfg.Ki,
		Kd:          cfg.Kd,
		OutputMin:   cfg.OutputMin,
		OutputMax:   cfg.OutputMax,
		IntegralMin: cfg.IntegralMin,
		IntegralMax: cfg.IntegralMax,
	})

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Start launches the control loop.
func (a *Agent) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.setAgentState(StateArmed)
		go a.run(ctx)
	})
}

// Stop requests shutdown and waits up to timeout for the loop to exit.
func (a *Agent) Stop(timeout time.Duration) error {
	a.stopOnce.Do(func() { close(a.shutdown) })

	select {
	case <-a.done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("loop did not exit within %v", timeout),
			"Agent", "Stop", "wait for shutdown")
	}
}

// Done is closed when the control loop has exited.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// Err returns the terminal error, if any, after Done is closed.
func (a *Agent) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runErr
}

// Status returns the current lifecycle state.
func (a *Agent) Status() AgentState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)

	a.logger.Info("control agent armed",
		"setpoint", a.setpoint,
		"kp", a.cfg.Kp, "ki", a.cfg.Ki, "kd", a.cfg.Kd,
		"output_min", a.cfg.OutputMin, "output_max", a.cfg.OutputMax)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("control agent stopping", "reason", "context cancelled")
			return
		case <-a.shutdown:
			a.logger.Info("control agent stopping", "reason", "stop requested")
			return
		default:
		}

		if err := a.step(ctx); err != nil {
			a.mu.Lock()
			a.runErr = err
			a.mu.Unlock()
			return
		}
	}
}

// step consumes one sensor delivery and answers it. Silence within maxWait
// is not an error; the loop just waits again.
func (a *Agent) step(ctx context.Context) error {
	d, err := a.source.Next(ctx, a.maxWait)
	if err != nil {
		if stderrors.Is(err, bus.ErrNoMessage) {
			a.logger.Debug("no sensor reading", "max_wait", a.maxWait)
			if a.monitor != nil {
				a.monitor.UpdateDegraded("controller", "sensor stream silent")
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		return errors.WrapFatal(err, "Agent", "step", "read sensor stream")
	}

	return a.handle(ctx, d)
}

func (a *Agent) handle(ctx context.Context, d bus.Delivery) error {
	if d.Fault {
		marker, err := message.DecodeFaultMarker(d.Data)
		reason := "unknown"
		if err == nil {
			reason = marker.Reason
		}
		a.logger.Error("reactor reported fault, no further commands for this run",
			"reason", reason)
		if a.monitor != nil {
			a.monitor.UpdateDegraded("controller", "reactor faulted")
		}
		return a.ack(d)
	}

	reading, err := message.DecodeSensorReading(d.Data)
	if err != nil {
		a.logger.Warn("skipping malformed sensor reading", "error", err)
		if termErr := d.Term(); termErr != nil {
			a.logger.Warn("term failed", "error", termErr)
		}
		if a.core != nil {
			a.core.RecordMessageSkipped("controller", bus.SensorStream)
		}
		return nil
	}

	a.mu.Lock()
	// A new run ID means the reactor restarted and numbers from zero again;
	// judging its readings against the old incarnation's watermark would
	// discard them all as duplicates.
	restarted := d.RunID != a.lastRunID && a.lastRunID != ""
	if restarted {
		a.watermark.Reset()
	}
	a.lastRunID = d.RunID
	result := a.watermark.Observe(reading.Seq)
	a.mu.Unlock()

	if restarted {
		a.logger.Info("sensor writer restarted, watermark reset", "run_id", d.RunID)
	}

	switch result {
	case message.SeqDuplicate:
		if a.core != nil {
			a.core.RecordDuplicate("controller", bus.SensorStream)
		}
		// Already answered; re-answering would double-act
		return a.ack(d)
	case message.SeqGap:
		a.logger.Warn("sequence gap on sensor stream", "seq", reading.Seq)
		if a.core != nil {
			a.core.RecordSequenceGap("controller", bus.SensorStream)
		}
	case message.SeqNext:
	}

	output := a.pid.Update(reading.Temp, reading.Timestamp)

	a.mu.RLock()
	seq := a.seq
	a.mu.RUnlock()

	cmd := &message.ControlCommand{
		CoolingFlow: output,
		Timestamp:   reading.Timestamp,
		Seq:         seq,
	}
	data, err := cmd.Marshal()
	if err != nil {
		return errors.WrapFatal(err, "Agent", "handle", "marshal control command")
	}

	if err := a.pub.PublishWith(ctx, data, bus.PublishOptions{ReplyTo: reading.Seq}); err != nil {
		// Persistent retries are already exhausted at this point. The
		// reading stays unacked so a restart re-answers it.
		return errors.WrapFatal(err, "Agent", "handle", "publish control command")
	}

	a.mu.Lock()
	a.seq++
	a.watermark.Advance(reading.Seq)
	a.mu.Unlock()

	if err := a.ack(d); err != nil {
		return err
	}

	a.metrics.recordCommand(output, a.setpoint-reading.Temp, a.pid.Integral())
	if a.monitor != nil {
		a.monitor.UpdateHealthy("controller", "answering sensor readings")
	}
	if err := a.probe.Touch(); err != nil {
		a.logger.Warn("liveness probe write failed", "error", err)
	}

	a.logger.Debug("command published",
		"measurement_seq", reading.Seq,
		"command_seq", seq,
		"temperature", reading.Temp,
		"output", output)
	return nil
}

func (a *Agent) ack(d bus.Delivery) error {
	if err := d.Ack(); err != nil {
		a.logger.Warn("ack failed", "error", err)
	}
	return nil
}

func (a *Agent) setAgentState(s AgentState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()

	if a.core != nil {
		a.core.RecordAgentStatus("controller", int(s))
	}
	if a.monitor != nil {
		switch s {
		case StateArmed:
			a.monitor.UpdateHealthy("controller", "armed")
		case StateUnarmed:
			a.monitor.UpdateUnhealthy("controller", "no setpoint configured")
		}
	}
}
