// Package message defines the wire schemas exchanged over the sensor and
// control streams, plus the sequence watermark used for deduplication.
//
// The JSON field names (Ca, Reactor_Temperature, timestamp, seq,
// cooling_flow) are the compatibility boundary with external consumers such
// as the metrics sink and must not change. Transport metadata that is not
// part of that boundary (writer run ID, fault flag) travels in broker
// headers, not in the payload.
package message
