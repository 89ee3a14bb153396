// Package bus binds the agents to JetStream: stream topology, an
// acknowledged publisher, and a durable pull-style consumer.
//
// Each stream is single-subject, so the broker preserves publish order and
// every consumer sees the same sequence. Acknowledgments are explicit: an
// agent acks a delivery only after local processing succeeds, so the durable
// consumer's ack floor is its committed position and a restart resumes from
// the first unprocessed message.
package bus
