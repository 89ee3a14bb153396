package reactor

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cstrloop/bus"
	"github.com/c360/cstrloop/config"
	"github.com/c360/cstrloop/errors"
	"github.com/c360/cstrloop/message"
)

type pubCall struct {
	data []byte
	opts bus.PublishOptions
}

type fakePublisher struct {
	calls []pubCall
	err   error
}

func (f *fakePublisher) PublishWith(_ context.Context, data []byte, o bus.PublishOptions) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, pubCall{data: data, opts: o})
	return nil
}

type fakeCommands struct {
	pending []bus.Delivery
}

func (f *fakeCommands) Drain(_ int) []bus.Delivery {
	d := f.pending
	f.pending = nil
	return d
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func commandFrom(t *testing.T, runID string, seq uint64, flow float64, ack, term func() error) bus.Delivery {
	t.Helper()
	cmd := message.ControlCommand{CoolingFlow: flow, Timestamp: float64(seq) * 0.05, Seq: seq}
	data, err := cmd.Marshal()
	require.NoError(t, err)
	return bus.NewDelivery(data, runID, false, ack, term)
}

func commandDelivery(t *testing.T, seq uint64, flow float64, ack, term func() error) bus.Delivery {
	t.Helper()
	return commandFrom(t, "run-b", seq, flow, ack, term)
}

func TestAgent_InitializingPublishesWithSafeCooling(t *testing.T) {
	cfg := config.Default().Reactor
	pub := &fakePublisher{}
	agent := New(cfg, pub, &fakeCommands{}, testLogger())

	require.NoError(t, agent.tick(context.Background()))
	require.NoError(t, agent.tick(context.Background()))

	require.Len(t, pub.calls, 2)
	first, err := message.DecodeSensorReading(pub.calls[0].data)
	require.NoError(t, err)
	second, err := message.DecodeSensorReading(pub.calls[1].data)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first.Seq)
	assert.Equal(t, uint64(1), second.Seq)
	assert.InDelta(t, 0.05, first.Timestamp, 1e-9)
	assert.InDelta(t, 0.10, second.Timestamp, 1e-9)

	_, u := agent.Snapshot()
	assert.Equal(t, cfg.SafeCoolingTemp, u)
	assert.Equal(t, StateInitializing, agent.Status())
}

func TestAgent_FirstCommandClosesLoop(t *testing.T) {
	cfg := config.Default().Reactor
	pub := &fakePublisher{}
	acked := false
	commands := &fakeCommands{pending: []bus.Delivery{
		commandDelivery(t, 0, 300.0, func() error { acked = true; return nil }, nil),
	}}
	agent := New(cfg, pub, commands, testLogger())

	require.NoError(t, agent.tick(context.Background()))

	assert.Equal(t, StateRunning, agent.Status())
	assert.True(t, acked)
	_, u := agent.Snapshot()
	assert.Equal(t, 300.0, u)
}

func TestAgent_DuplicateCommandIdempotent(t *testing.T) {
	cfg := config.Default().Reactor
	commands := &fakeCommands{}
	agent := New(cfg, &fakePublisher{}, commands, testLogger())

	firstAt := time.Now().Add(-time.Minute)
	commands.pending = []bus.Delivery{commandDelivery(t, 0, 300.0, nil, nil)}
	agent.processCommands(firstAt)
	require.Equal(t, firstAt, agent.lastCommandAt)

	// A redelivered command is acked away: the cooling value and the
	// staleness timer stay exactly as the first delivery left them.
	acked := false
	commands.pending = []bus.Delivery{
		commandDelivery(t, 0, 280.0, func() error { acked = true; return nil }, nil),
	}
	agent.processCommands(time.Now())

	assert.True(t, acked)
	assert.Equal(t, firstAt, agent.lastCommandAt)
	_, u := agent.Snapshot()
	assert.Equal(t, 300.0, u)
}

func TestAgent_MalformedCommandTerminated(t *testing.T) {
	cfg := config.Default().Reactor
	commands := &fakeCommands{}
	agent := New(cfg, &fakePublisher{}, commands, testLogger())

	termed := false
	commands.pending = []bus.Delivery{
		bus.NewDelivery([]byte("{broken"), "run-b", false, nil, func() error {
			termed = true
			return nil
		}),
	}
	agent.processCommands(time.Now())

	assert.True(t, termed)
	_, u := agent.Snapshot()
	assert.Equal(t, cfg.SafeCoolingTemp, u)
	assert.Equal(t, StateInitializing, agent.Status())
}

func TestAgent_SequenceGapStillApplied(t *testing.T) {
	cfg := config.Default().Reactor
	commands := &fakeCommands{}
	agent := New(cfg, &fakePublisher{}, commands, testLogger())

	commands.pending = []bus.Delivery{commandDelivery(t, 0, 300.0, nil, nil)}
	agent.processCommands(time.Now())
	commands.pending = []bus.Delivery{commandDelivery(t, 5, 310.0, nil, nil)}
	agent.processCommands(time.Now())

	_, u := agent.Snapshot()
	assert.Equal(t, 310.0, u)
}

func TestAgent_CommandWriterRestartAccepted(t *testing.T) {
	cfg := config.Default().Reactor
	commands := &fakeCommands{}
	agent := New(cfg, &fakePublisher{}, commands, testLogger())

	for seq := uint64(0); seq < 3; seq++ {
		commands.pending = []bus.Delivery{commandFrom(t, "run-b", seq, 300.0, nil, nil)}
		agent.processCommands(time.Now())
	}
	_, u := agent.Snapshot()
	require.Equal(t, 300.0, u)

	// A restarted controller numbers from zero under a fresh run ID. Its
	// first command must be applied, not discarded as a replay of the old
	// seq 0.
	commands.pending = []bus.Delivery{commandFrom(t, "run-c", 0, 320.0, nil, nil)}
	agent.processCommands(time.Now())

	_, u = agent.Snapshot()
	assert.Equal(t, 320.0, u)

	// Dedup still holds within the new incarnation
	commands.pending = []bus.Delivery{commandFrom(t, "run-c", 0, 280.0, nil, nil)}
	agent.processCommands(time.Now())
	_, u = agent.Snapshot()
	assert.Equal(t, 320.0, u)
}

func TestAgent_StalenessEntersDegraded(t *testing.T) {
	cfg := config.Default().Reactor
	commands := &fakeCommands{}
	agent := New(cfg, &fakePublisher{}, commands, testLogger())

	commands.pending = []bus.Delivery{commandDelivery(t, 0, 320.0, nil, nil)}
	agent.processCommands(time.Now().Add(-cfg.StaleAfter.Duration - time.Second))
	require.Equal(t, StateRunning, agent.Status())

	agent.checkStaleness(time.Now())
	assert.Equal(t, StateDegraded, agent.Status())
	_, u := agent.Snapshot()
	assert.Equal(t, cfg.SafeCoolingTemp, u)

	// A fresh command recovers the loop
	commands.pending = []bus.Delivery{commandDelivery(t, 1, 305.0, nil, nil)}
	agent.processCommands(time.Now())
	assert.Equal(t, StateRunning, agent.Status())
	_, u = agent.Snapshot()
	assert.Equal(t, 305.0, u)
}

func TestAgent_DivergenceFaults(t *testing.T) {
	// Bounds drawn tight around the initial condition so the safe cooling
	// value drives the temperature out within one tick.
	cfg := config.Default().Reactor
	cfg.MinTemp = 340.0
	cfg.MaxTemp = 351.0
	cfg.StepsPerTick = 2000

	pub := &fakePublisher{}
	agent := New(cfg, pub, &fakeCommands{}, testLogger())

	err := agent.tick(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.True(t, stderrors.Is(err, errors.ErrStateDiverged))
	assert.Equal(t, StateFault, agent.Status())

	require.Len(t, pub.calls, 1)
	assert.True(t, pub.calls[0].opts.Fault)
	marker, err := message.DecodeFaultMarker(pub.calls[0].data)
	require.NoError(t, err)
	assert.True(t, marker.Fault)
	assert.NotEmpty(t, marker.Reason)

	// Fault is terminal
	agent.setAgentState(StateRunning)
	assert.Equal(t, StateFault, agent.Status())
}

func TestAgent_NonFiniteStateFaults(t *testing.T) {
	cfg := config.Default().Reactor
	pub := &fakePublisher{}
	agent := New(cfg, pub, &fakeCommands{}, testLogger())

	agent.mu.Lock()
	agent.state.Temp = math.NaN()
	agent.mu.Unlock()

	err := agent.tick(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNonFiniteValue))
	assert.Equal(t, StateFault, agent.Status())
}

func TestAgent_PublishFailureIsFatal(t *testing.T) {
	cfg := config.Default().Reactor
	pub := &fakePublisher{err: errors.WrapTransient(assert.AnError, "Publisher", "PublishWith", "publish")}
	agent := New(cfg, pub, &fakeCommands{}, testLogger())

	err := agent.tick(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	// Seq was not consumed; a retry republishes the same reading
	state, _ := agent.Snapshot()
	assert.Equal(t, uint64(0), state.Seq)
}

func TestAgent_RestartResetsState(t *testing.T) {
	cfg := config.Default().Reactor
	first := &fakePublisher{}
	agent := New(cfg, first, &fakeCommands{}, testLogger())
	for i := 0; i < 5; i++ {
		require.NoError(t, agent.tick(context.Background()))
	}

	// A fresh process starts over from the initial condition and seq 0
	second := &fakePublisher{}
	restarted := New(cfg, second, &fakeCommands{}, testLogger())
	require.NoError(t, restarted.tick(context.Background()))

	orig, err := message.DecodeSensorReading(first.calls[0].data)
	require.NoError(t, err)
	fresh, err := message.DecodeSensorReading(second.calls[0].data)
	require.NoError(t, err)
	assert.Equal(t, orig.Seq, fresh.Seq)
	assert.Equal(t, orig.Ca, fresh.Ca)
	assert.Equal(t, orig.Temp, fresh.Temp)
}

func TestAgent_StartStopLifecycle(t *testing.T) {
	cfg := config.Default().Reactor
	agent := New(cfg, &fakePublisher{}, &fakeCommands{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agent.Start(ctx)
	require.NoError(t, agent.Stop(time.Second))
	select {
	case <-agent.Done():
	default:
		t.Fatal("done channel not closed after stop")
	}
	assert.NoError(t, agent.Err())
}

func TestAgentState_String(t *testing.T) {
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "degraded", StateDegraded.String())
	assert.Equal(t, "fault", StateFault.String())
	assert.Equal(t, "unknown", AgentState(99).String())
}
