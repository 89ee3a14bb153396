// Package errors provides standardized error handling for the control loop.
//
// Errors are classified as transient (retry the bus operation), invalid
// (skip the message, keep the loop running), or fatal (the agent must stop,
// e.g. a diverged reactor state). Helpers wrap errors with component and
// operation context following the pattern "component.method: action failed".
package errors
