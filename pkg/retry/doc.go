// Package retry provides exponential backoff retry logic for bus operations.
//
// The two agents use retry in two situations: provisioning streams at
// startup (Quick profile) and publishing while the broker is unreachable
// (Persistent profile). Errors wrapped with NonRetryable abort immediately.
package retry
