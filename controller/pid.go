package controller

// PIDConfig holds the tuning and bounds of one PID instance.
type PIDConfig struct {
	Setpoint    float64
	Kp          float64
	Ki          float64
	Kd          float64
	OutputMin   float64
	OutputMax   float64
	IntegralMin float64
	IntegralMax float64
}

// PID is a discrete PID controller with a clamped integral term and
// conditional integration. When the raw output saturates in the direction
// the integral increment is pushing, the increment is discarded for that
// step; an increment pulling back out of saturation is always applied, so
// the controller can unwind instead of locking up against a bound.
//
// Not safe for concurrent use; the agent owns one instance.
type PID struct {
	cfg PIDConfig

	integral float64
	prevErr  float64
	prevTime float64
	primed   bool
}

// NewPID creates a controller with zeroed internal state.
func NewPID(cfg PIDConfig) *PID {
	return &PID{cfg: cfg}
}

// Update computes the next output from a measurement taken at simulated
// time t. The first call is proportional-only; integral and derivative
// terms need a previous sample.
func (p *PID) Update(measured, t float64) float64 {
	err := p.cfg.Setpoint - measured

	if !p.primed {
		p.primed = true
		p.prevErr = err
		p.prevTime = t
		return clamp(p.cfg.Kp*err, p.cfg.OutputMin, p.cfg.OutputMax)
	}

	dt := t - p.prevTime
	var deriv float64
	if dt > 0 {
		deriv = (err - p.prevErr) / dt
	}

	inc := p.cfg.Ki * err * dt
	cand := clamp(p.integral+inc, p.cfg.IntegralMin, p.cfg.IntegralMax)
	raw := p.cfg.Kp*err + cand + p.cfg.Kd*deriv

	var out float64
	if (raw > p.cfg.OutputMax && inc > 0) || (raw < p.cfg.OutputMin && inc < 0) {
		// Saturated in the increment's direction: hold the integral
		out = clamp(p.cfg.Kp*err+p.integral+p.cfg.Kd*deriv, p.cfg.OutputMin, p.cfg.OutputMax)
	} else {
		p.integral = cand
		out = clamp(raw, p.cfg.OutputMin, p.cfg.OutputMax)
	}

	p.prevErr = err
	p.prevTime = t
	return out
}

// Reset clears the internal state, as after a process restart.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.prevTime = 0
	p.primed = false
}

// Integral exposes the windup guard term for observability.
func (p *PID) Integral() float64 {
	return p.integral
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
