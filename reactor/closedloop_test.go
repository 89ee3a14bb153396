package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cstrloop/controller"
)

// Drives the model and the PID against each other in-process, one command
// per integration step, and checks the loop settles on the setpoint.
func TestClosedLoop_ConvergesToSetpoint(t *testing.T) {
	params := DefaultParams()
	state := State{Ca: 0.5, Temp: 350.0}
	u := 290.0

	pid := controller.NewPID(controller.PIDConfig{
		Setpoint:    350.0,
		Kp:          3.0,
		Ki:          8.0,
		Kd:          0.2,
		OutputMin:   250.0,
		OutputMax:   350.0,
		IntegralMin: 0.0,
		IntegralMax: 350.0,
	})

	for i := 0; i < 8000; i++ {
		state = params.Step(state, u, 0.005)
		u = pid.Update(state.Temp, state.Time)
		require.GreaterOrEqual(t, u, 250.0, "step %d", i)
		require.LessOrEqual(t, u, 350.0, "step %d", i)
	}

	assert.InDelta(t, 350.0, state.Temp, 1e-6)
	assert.Greater(t, state.Ca, 0.0)
}

// A disturbed loop returns to the setpoint after the disturbance clears.
func TestClosedLoop_RecoversFromDisturbance(t *testing.T) {
	params := DefaultParams()
	state := State{Ca: 0.5, Temp: 350.0}
	u := 290.0

	pid := controller.NewPID(controller.PIDConfig{
		Setpoint:    350.0,
		Kp:          3.0,
		Ki:          8.0,
		Kd:          0.2,
		OutputMin:   250.0,
		OutputMax:   350.0,
		IntegralMin: 0.0,
		IntegralMax: 350.0,
	})

	for i := 0; i < 8000; i++ {
		state = params.Step(state, u, 0.005)
		u = pid.Update(state.Temp, state.Time)
	}
	require.InDelta(t, 350.0, state.Temp, 1e-6)

	// Kick the temperature off the setpoint
	state.Temp += 5.0
	for i := 0; i < 8000; i++ {
		state = params.Step(state, u, 0.005)
		u = pid.Update(state.Temp, state.Time)
	}

	assert.InDelta(t, 350.0, state.Temp, 1e-6)
}
