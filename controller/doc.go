// Package controller implements the PID agent: it consumes sensor readings,
// computes a bounded cooling jacket command, and publishes exactly one
// command per fresh measurement.
package controller
