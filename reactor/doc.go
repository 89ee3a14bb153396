// Package reactor implements the simulation agent: a continuous stirred
// tank reactor model integrated on a fixed tick, publishing sensor readings
// and consuming cooling jacket commands.
package reactor
