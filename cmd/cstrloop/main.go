// Package main implements the entry point for the cstrloop agents. One
// binary runs either side of the loop: the reactor simulation agent or the
// PID controller agent, selected with the -agent flag. Both sides talk
// through durable JetStream streams, so either process can restart without
// losing the other.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/cstrloop/bus"
	"github.com/c360/cstrloop/config"
	"github.com/c360/cstrloop/controller"
	"github.com/c360/cstrloop/errors"
	"github.com/c360/cstrloop/health"
	"github.com/c360/cstrloop/metric"
	"github.com/c360/cstrloop/natsclient"
	"github.com/c360/cstrloop/reactor"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "cstrloop"
)

// Process exit codes. A fault exit tells the supervisor the simulation
// diverged and a plain restart will not help without operator attention.
const (
	exitOK    = 0
	exitError = 1
	exitFault = 3
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		code := exitError
		if stderrors.Is(err, errors.ErrStateDiverged) || stderrors.Is(err, errors.ErrNonFiniteValue) {
			code = exitFault
		}
		slog.Error("Application failed", "error", err, "exit_code", code)
		os.Exit(code)
	}
	os.Exit(exitOK)
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat, cliCfg.Agent)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("Starting cstrloop agent",
		"agent", cliCfg.Agent,
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	ctx := context.Background()
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	client, err := connectNATS(signalCtx, cfg, cliCfg.Agent, registry.CoreMetrics(), logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := client.Close(closeCtx); closeErr != nil {
			slog.Warn("NATS close failed", "error", closeErr)
		}
	}()

	if err := bus.EnsureStreams(signalCtx, client, bus.DefaultTopology(), logger); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	probe := health.NewFileProbe(cfg.Telemetry.HealthFile)
	defer probe.Remove()

	telemetry := startTelemetry(cfg, registry, monitor)
	if telemetry != nil {
		defer func() {
			if stopErr := telemetry.Stop(); stopErr != nil {
				slog.Warn("telemetry stop failed", "error", stopErr)
			}
		}()
	}

	switch cliCfg.Agent {
	case agentReactor:
		return runReactor(signalCtx, cfg, client, registry, monitor, probe, logger, cliCfg.ShutdownTimeout)
	case agentController:
		return runController(signalCtx, cfg, client, registry, monitor, probe, logger, cliCfg.ShutdownTimeout)
	default:
		return fmt.Errorf("unknown agent %q", cliCfg.Agent)
	}
}

// connectNATS creates the broker client and waits for it to be ready.
func connectNATS(ctx context.Context, cfg *config.Config, agent string,
	core *metric.Metrics, logger *slog.Logger) (*natsclient.Client, error) {
	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(appName+"-"+agent),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Duration),
		natsclient.WithTimeout(cfg.NATS.ConnectTimeout.Duration),
		natsclient.WithLogger(slogAdapter{logger}),
		natsclient.WithHealthChangeCallback(core.RecordNATSStatus),
		natsclient.WithReconnectCallback(core.RecordNATSReconnect),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, cfg.NATS.ConnectTimeout.Duration)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	return client, nil
}

// startTelemetry launches the metrics and health endpoint when configured.
func startTelemetry(cfg *config.Config, registry *metric.MetricsRegistry, monitor *health.Monitor) *metric.Server {
	if cfg.Telemetry.Addr == "" {
		return nil
	}

	server := metric.NewServer(cfg.Telemetry.Addr, "/metrics", registry, health.Handler(monitor, appName))
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("telemetry server failed", "error", err)
		}
	}()
	slog.Info("telemetry endpoint started", "addr", cfg.Telemetry.Addr)
	return server
}

// runReactor wires and runs the simulation agent until shutdown or fault.
func runReactor(ctx context.Context, cfg *config.Config, client *natsclient.Client,
	registry *metric.MetricsRegistry, monitor *health.Monitor, probe *health.FileProbe,
	logger *slog.Logger, shutdownTimeout time.Duration) error {

	publisher := bus.NewPublisher(client, bus.SensorStream, bus.SensorSubject, "reactor", logger,
		bus.WithPublisherMetrics(registry.CoreMetrics()))

	commands, err := bus.NewConsumer(client, bus.ControlStream, bus.ControlSubject,
		"reactor-commands", "reactor", logger,
		bus.WithBufferSize(cfg.Reactor.CommandBuffer),
		bus.WithConsumerMetrics(registry.CoreMetrics()))
	if err != nil {
		return fmt.Errorf("create command consumer: %w", err)
	}
	if err := commands.Start(ctx); err != nil {
		return fmt.Errorf("start command consumer: %w", err)
	}
	defer commands.Stop()

	agent := reactor.New(cfg.Reactor, publisher, commands, logger,
		reactor.WithMetricsRegistry(registry),
		reactor.WithHealthMonitor(monitor),
		reactor.WithFileProbe(probe))

	agent.Start(ctx)
	slog.Info("reactor agent running", "run_id", publisher.RunID())

	<-waitDone(ctx, agent.Done())
	if err := agent.Stop(shutdownTimeout); err != nil {
		slog.Warn("reactor stop timed out", "error", err)
	}

	if err := agent.Err(); err != nil {
		return err
	}
	slog.Info("reactor agent shutdown complete")
	return nil
}

// runController wires and runs the PID agent until shutdown.
func runController(ctx context.Context, cfg *config.Config, client *natsclient.Client,
	registry *metric.MetricsRegistry, monitor *health.Monitor, probe *health.FileProbe,
	logger *slog.Logger, shutdownTimeout time.Duration) error {

	publisher := bus.NewPublisher(client, bus.ControlStream, bus.ControlSubject, "controller", logger,
		bus.WithPublisherMetrics(registry.CoreMetrics()))

	readings, err := bus.NewConsumer(client, bus.SensorStream, bus.SensorSubject,
		"controller-readings", "controller", logger,
		bus.WithConsumerMetrics(registry.CoreMetrics()))
	if err != nil {
		return fmt.Errorf("create sensor consumer: %w", err)
	}
	if err := readings.Start(ctx); err != nil {
		return fmt.Errorf("start sensor consumer: %w", err)
	}
	defer readings.Stop()

	agent, err := controller.New(cfg.Controller, readings, publisher, logger,
		controller.WithMetricsRegistry(registry),
		controller.WithHealthMonitor(monitor),
		controller.WithFileProbe(probe))
	if err != nil {
		return fmt.Errorf("create controller agent: %w", err)
	}

	agent.Start(ctx)
	slog.Info("controller agent running", "run_id", publisher.RunID())

	<-waitDone(ctx, agent.Done())
	if err := agent.Stop(shutdownTimeout); err != nil {
		slog.Warn("controller stop timed out", "error", err)
	}

	if err := agent.Err(); err != nil {
		return err
	}
	slog.Info("controller agent shutdown complete")
	return nil
}

// waitDone returns a channel closed when either the context is cancelled or
// the agent loop exits on its own, whichever happens first.
func waitDone(ctx context.Context, done <-chan struct{}) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
		case <-done:
		}
	}()
	return out
}

// slogAdapter bridges *slog.Logger to the natsclient logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, v ...any) { s.logger.Info(fmt.Sprintf(format, v...)) }
func (s slogAdapter) Errorf(format string, v ...any) { s.logger.Error(fmt.Sprintf(format, v...)) }
func (s slogAdapter) Debugf(format string, v ...any) { s.logger.Debug(fmt.Sprintf(format, v...)) }
