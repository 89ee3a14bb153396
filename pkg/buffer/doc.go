// Package buffer provides a bounded single-producer/single-consumer queue
// used to feed an agent's event loop from asynchronous bus deliveries.
//
// The queue never blocks the producer: when full it evicts the oldest item
// (DropOldest), which matches the latest-value semantics of the control
// stream, where a superseded command is worthless once a newer one exists.
// An optional eviction callback lets the owner acknowledge dropped
// deliveries so the broker does not redeliver them.
package buffer
