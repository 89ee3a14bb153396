package reactor

import (
	"fmt"
	"math"

	"github.com/c360/cstrloop/errors"
)

// Params holds the physical constants of the reactor model.
type Params struct {
	FlowRate          float64 // q, volumetric flow (m^3/min)
	Volume            float64 // V, reactor volume (m^3)
	Density           float64 // rho (kg/m^3)
	HeatCapacity      float64 // Cp (J/kg-K)
	ReactionHeat      float64 // -dH (J/mol)
	ActivationTemp    float64 // E/R (K)
	RateConstant      float64 // k0, pre-exponential factor (1/min)
	HeatTransfer      float64 // UA (W/K)
	FeedTemp          float64 // Tf (K)
	FeedConcentration float64 // Caf (mol/m^3)
}

// DefaultParams returns the standard exothermic CSTR benchmark constants.
func DefaultParams() Params {
	return Params{
		FlowRate:          100.0,
		Volume:            100.0,
		Density:           1000.0,
		HeatCapacity:      0.239,
		ReactionHeat:      5e4,
		ActivationTemp:    8750.0,
		RateConstant:      7.2e10,
		HeatTransfer:      5e4,
		FeedTemp:          350.0,
		FeedConcentration: 1.0,
	}
}

// State is the integrated reactor state at one point in simulated time.
type State struct {
	Ca   float64 // concentration of A (mol/m^3)
	Temp float64 // reactor temperature (K)
	Time float64 // simulated minutes since start
	Seq  uint64  // next reading sequence number
}

// Valid checks the state is finite and within the divergence bounds.
func (s State) Valid(minTemp, maxTemp float64) error {
	if math.IsNaN(s.Ca) || math.IsInf(s.Ca, 0) ||
		math.IsNaN(s.Temp) || math.IsInf(s.Temp, 0) {
		return errors.WrapFatal(errors.ErrNonFiniteValue,
			"State", "Valid", "finite check")
	}
	if s.Temp <= minTemp || s.Temp >= maxTemp {
		return errors.WrapFatal(
			fmt.Errorf("%w: T=%.2fK outside (%.0f, %.0f)",
				errors.ErrStateDiverged, s.Temp, minTemp, maxTemp),
			"State", "Valid", "bounds check")
	}
	if s.Ca < 0 {
		return errors.WrapFatal(
			fmt.Errorf("%w: Ca=%g negative", errors.ErrStateDiverged, s.Ca),
			"State", "Valid", "bounds check")
	}
	return nil
}

// derivatives evaluates the reactor ODEs at (ca, temp) under cooling
// jacket temperature u.
func (p Params) derivatives(ca, temp, u float64) (dCa, dTemp float64) {
	rA := p.RateConstant * math.Exp(-p.ActivationTemp/temp) * ca

	dCa = p.FlowRate/p.Volume*(p.FeedConcentration-ca) - rA
	dTemp = p.FlowRate/p.Volume*(p.FeedTemp-temp) +
		p.ReactionHeat/(p.Density*p.HeatCapacity)*rA +
		p.HeatTransfer/p.Volume/p.Density/p.HeatCapacity*(u-temp)
	return dCa, dTemp
}

// Step advances the state by one fixed step dt (minutes) under cooling
// jacket temperature u, using classical fourth-order Runge-Kutta. The
// sequence number is untouched; it belongs to the publish cadence, not the
// integration cadence.
func (p Params) Step(s State, u, dt float64) State {
	k1ca, k1t := p.derivatives(s.Ca, s.Temp, u)
	k2ca, k2t := p.derivatives(s.Ca+dt/2*k1ca, s.Temp+dt/2*k1t, u)
	k3ca, k3t := p.derivatives(s.Ca+dt/2*k2ca, s.Temp+dt/2*k2t, u)
	k4ca, k4t := p.derivatives(s.Ca+dt*k3ca, s.Temp+dt*k3t, u)

	return State{
		Ca:   s.Ca + dt/6*(k1ca+2*k2ca+2*k3ca+k4ca),
		Temp: s.Temp + dt/6*(k1t+2*k2t+2*k3t+k4t),
		Time: s.Time + dt,
		Seq:  s.Seq,
	}
}
