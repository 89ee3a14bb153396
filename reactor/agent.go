package reactor

import (
	"context"
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

// AgentState is the lifecycle state of the simulation agent.
type AgentState int

// Simulation agent states. Fault is terminal.
const (
	StateInitializing AgentState = iota
	StateRunning
	StateDegraded
	StateFault
)

// String returns the string representation of AgentState
func (s AgentState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateDegraded:
		return "degraded"
	case StateFault:
		return "fault"
	default:
		return "unknown"
	}
}

// CommandSource supplies pending control deliveries without blocking.
// *bus.Consumer satisfies it.
type CommandSource interface {
	Drain(max int) []bus.Delivery
}

// Publisher writes sensor payloads to the bus. *bus.Publisher satisfies it.
type Publisher interface {
	PublishWith(ctx context.Context, data []byte, o bus.PublishOptions) error
}

// Agent integrates the reactor model on a fixed wall-clock tick. Each tick
// it applies the freshest pending command, advances the model, and publishes
// one sensor reading. Without a fresh command it falls back to the safe
// cooling value and degrades rather than integrating stale actuation.
type Agent struct {
	cfg       config.ReactorConfig
	params    Params
	publisher Publisher
	commands  CommandSource
	logger    *slog.Logger

	core    *metric.Metrics
	metrics *Metrics
	monitor *health.Monitor
	probe   *health.FileProbe

	mu            sync.RWMutex
	state         State
	u             float64
	agentState    AgentState
	lastCommandAt time.Time
	watermark     message.Watermark
	lastRunID     string

	startOnce sync.Once
	stopOnce  sync.Once
	shutdown  chan struct{}
	done      chan struct{}
	runErr    error
}

// Option configures an Agent.
type Option func(*Agent)

// WithParams overrides the model constants.
func WithParams(p Params) Option {
	return func(a *Agent) { a.params = p }
}

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

// New creates a simulation agent. The integrated state starts at the
// configured initial condition with the safe cooling value applied.
func New(cfg config.ReactorConfig, publisher Publisher, commands CommandSource,
	logger *slog.Logger, opts ...Option) *Agent {
	a := &Agent{
		cfg:       cfg,
		params:    DefaultParams(),
		publisher: publisher,
		commands:  commands,
		logger:    logger,
		state: State{
			Ca:   cfg.InitialCa,
			Temp: cfg.InitialTemp,
		},
		u:          cfg.SafeCoolingTemp,
		agentState: StateInitializing,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the tick loop. The loop exits on context cancellation,
// Stop, or a fault.
func (a *Agent) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.setAgentState(StateInitializing)
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

// Done is closed when the tick loop has exited.
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
	return a.agentState
}

// Snapshot returns the current integrated state and applied cooling value.
func (a *Agent) Snapshot() (State, float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.u
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.cfg.TickPeriod.Duration)
	defer ticker.Stop()

	a.logger.Info("simulation agent started",
		"initial_ca", a.cfg.InitialCa,
		"initial_temp", a.cfg.InitialTemp,
		"step_size", a.cfg.StepSize,
		"steps_per_tick", a.cfg.StepsPerTick)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("simulation agent stopping", "reason", "context cancelled")
			return
		case <-a.shutdown:
			a.logger.Info("simulation agent stopping", "reason", "stop requested")
			return
		case <-ticker.C:
			if err := a.tick(ctx); err != nil {
				a.mu.Lock()
				a.runErr = err
				a.mu.Unlock()
				return
			}
		}
	}
}

// tick runs one publish cycle: apply commands, check staleness, integrate,
// publish.
func (a *Agent) tick(ctx context.Context) error {
	now := time.Now()
	a.processCommands(now)
	a.checkStaleness(now)

	a.mu.Lock()
	state := a.state
	u := a.u
	a.mu.Unlock()

	for i := 0; i < a.cfg.StepsPerTick; i++ {
		state = a.params.Step(state, u, a.cfg.StepSize)
		if err := state.Valid(a.cfg.MinTemp, a.cfg.MaxTemp); err != nil {
			return a.fault(ctx, state, err)
		}
	}

	a.mu.Lock()
	a.state = state
	a.mu.Unlock()

	reading := &message.SensorReading{
		Ca:        state.Ca,
		Temp:      state.Temp,
		Timestamp: state.Time,
		Seq:       state.Seq,
	}
	data, err := reading.Marshal()
	if err != nil {
		// Valid() above makes this unreachable for finite states
		return a.fault(ctx, state, err)
	}

	if err := a.publisher.PublishWith(ctx, data, bus.PublishOptions{}); err != nil {
		// Persistent retries are already exhausted at this point
		return errors.WrapFatal(err, "Agent", "tick", "publish sensor reading")
	}

	a.mu.Lock()
	a.state.Seq++
	a.mu.Unlock()

	a.metrics.recordState(state, u)
	if err := a.probe.Touch(); err != nil {
		a.logger.Warn("liveness probe write failed", "error", err)
	}
	return nil
}

// processCommands applies pending control deliveries in arrival order.
// Duplicates are acked and discarded without refreshing the staleness
// timer; malformed payloads are terminated so the broker never redelivers
// them.
func (a *Agent) processCommands(now time.Time) {
	deliveries := a.commands.Drain(a.cfg.CommandBuffer)
	for _, d := range deliveries {
		cmd, err := message.DecodeControlCommand(d.Data)
		if err != nil {
			a.logger.Warn("skipping malformed control command", "error", err)
			if termErr := d.Term(); termErr != nil {
				a.logger.Warn("term failed", "error", termErr)
			}
			if a.core != nil {
				a.core.RecordMessageSkipped("reactor", bus.ControlStream)
			}
			continue
		}

		// A new run ID means the controller restarted and numbers from
		// zero again; its fresh commands must not be judged duplicates of
		// the old incarnation's.
		if d.RunID != a.lastRunID {
			if a.lastRunID != "" {
				a.watermark.Reset()
				a.logger.Info("command writer restarted, watermark reset", "run_id", d.RunID)
			}
			a.lastRunID = d.RunID
		}

		switch a.watermark.Observe(cmd.Seq) {
		case message.SeqDuplicate:
			if ackErr := d.Ack(); ackErr != nil {
				a.logger.Warn("ack failed", "error", ackErr)
			}
			if a.core != nil {
				a.core.RecordDuplicate("reactor", bus.ControlStream)
			}
			continue
		case message.SeqGap:
			a.logger.Warn("sequence gap on control stream", "seq", cmd.Seq)
			if a.core != nil {
				a.core.RecordSequenceGap("reactor", bus.ControlStream)
			}
		case message.SeqNext:
		}

		a.mu.Lock()
		a.u = cmd.CoolingFlow
		a.lastCommandAt = now
		a.mu.Unlock()

		a.watermark.Advance(cmd.Seq)
		if ackErr := d.Ack(); ackErr != nil {
			a.logger.Warn("ack failed", "error", ackErr)
		}

		if s := a.Status(); s == StateInitializing || s == StateDegraded {
			a.setAgentState(StateRunning)
			a.logger.Info("fresh control command, loop closed",
				"seq", cmd.Seq, "cooling_temp", cmd.CoolingFlow)
		}
	}
}

// checkStaleness degrades to the safe cooling value when no fresh command
// arrived within the configured window.
func (a *Agent) checkStaleness(now time.Time) {
	a.mu.Lock()
	stale := a.agentState == StateRunning &&
		now.Sub(a.lastCommandAt) > a.cfg.StaleAfter.Duration
	if stale {
		a.u = a.cfg.SafeCoolingTemp
	}
	current := a.agentState
	a.mu.Unlock()

	if stale {
		a.setAgentState(StateDegraded)
		a.logger.Warn("control input stale, applying safe cooling value",
			"stale_after", a.cfg.StaleAfter.Duration,
			"safe_cooling_temp", a.cfg.SafeCoolingTemp)
		if a.core != nil {
			a.core.RecordError("reactor", "stale_control")
		}
		current = StateDegraded
	}

	if current == StateDegraded || current == StateInitializing {
		a.metrics.recordStale()
	}
}

// fault publishes a terminal fault marker and moves the agent to the
// terminal state. The marker publish is best effort; the fault stands
// regardless.
func (a *Agent) fault(ctx context.Context, state State, cause error) error {
	a.setAgentState(StateFault)
	a.logger.Error("simulation diverged, entering fault state",
		"ca", state.Ca, "temp", state.Temp, "time", state.Time, "error", cause)

	marker := &message.FaultMarker{
		Reason:    cause.Error(),
		Seq:       state.Seq,
		Timestamp: state.Time,
	}
	if data, err := marker.Marshal(); err == nil {
		if pubErr := a.publisher.PublishWith(ctx, data, bus.PublishOptions{Fault: true}); pubErr != nil {
			a.logger.Error("fault marker publish failed", "error", pubErr)
		}
	}

	if a.core != nil {
		a.core.RecordError("reactor", "divergence")
	}

	return errors.WrapFatal(cause, "Agent", "tick", "integrated state invalid")
}

func (a *Agent) setAgentState(s AgentState) {
	a.mu.Lock()
	// Fault is terminal
	if a.agentState == StateFault && s != StateFault {
		a.mu.Unlock()
		return
	}
	a.agentState = s
	a.mu.Unlock()

	if a.core != nil {
		a.core.RecordAgentStatus("reactor", int(s))
	}
	if a.monitor != nil {
		switch s {
		case StateRunning:
			a.monitor.UpdateHealthy("reactor", "closed loop running")
		case StateDegraded:
			a.monitor.UpdateDegraded("reactor", "control input stale, safe cooling applied")
		case StateFault:
			a.monitor.UpdateUnhealthy("reactor", "simulation diverged")
		case StateInitializing:
			a.monitor.UpdateDegraded("reactor", "waiting for first control command")
		}
	}
}
