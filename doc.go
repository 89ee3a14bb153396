// Package cstrloop implements a closed-loop process control system for an
// exothermic continuous stirred-tank reactor (CSTR), split into two agents
// that communicate only through durable JetStream streams.
//
// # Architecture
//
//	┌──────────────┐  cstr.sensor   ┌──────────────┐
//	│   reactor    │ ─────────────▶ │  controller  │
//	│  simulation  │                │     PID      │
//	│    agent     │ ◀───────────── │    agent     │
//	└──────────────┘  cstr.control  └──────────────┘
//
// The reactor agent integrates the CSTR dynamics with fourth-order
// Runge-Kutta on a fixed wall-clock tick and publishes one sensor reading
// per tick. The controller agent answers every fresh reading with exactly
// one bounded cooling jacket command. Both streams are file-backed and the
// consumers are durable, so either process can crash and restart without
// losing the loop: the broker replays unacknowledged messages and each
// agent discards the duplicates it has already handled.
//
// The reactor protects itself when the control side goes quiet: after a
// staleness window it falls back to a safe cooling value and degrades
// rather than integrating on stale actuation. A diverged or non-finite
// simulation state is a terminal fault; the agent publishes a fault marker
// and exits with a distinct exit code.
//
// # Packages
//
//   - message: wire payloads, header keys, and sequence watermarking
//   - bus: JetStream topology, publisher, and buffered durable consumer
//   - reactor: the simulation model and its agent loop
//   - controller: the PID algorithm and its agent loop
//   - natsclient: broker client with reconnect handling and circuit breaker
//   - config, metric, health, errors: shared infrastructure
//
// The cstrloop binary under cmd/cstrloop runs either agent, selected with
// the -agent flag.
package cstrloop
