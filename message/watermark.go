package message

// SeqResult classifies an observed sequence number against the watermark.
type SeqResult int

const (
	// SeqNext is a sequence number strictly above the watermark.
	SeqNext SeqResult = iota
	// SeqDuplicate is a sequence number at or below the watermark.
	SeqDuplicate
	// SeqGap is a next sequence that skips at least one value. The message
	// is still processable; the gap count is surfaced for observability.
	SeqGap
)

// Watermark tracks the highest application sequence number successfully
// processed from a stream. Consumers use it to discard duplicates after a
// redelivery or writer restart without relying on broker offsets.
//
// Not safe for concurrent use; each consumer owns one watermark.
type Watermark struct {
	highest uint64
	started bool

	duplicates uint64
	gaps       uint64
}

// Observe classifies seq without advancing the watermark. Callers advance
// only after the message is fully processed, so a failure in between leaves
// the watermark untouched and a redelivery is classified the same way.
func (w *Watermark) Observe(seq uint64) SeqResult {
	if w.started && seq <= w.highest {
		w.duplicates++
		return SeqDuplicate
	}
	if w.started && seq > w.highest+1 {
		w.gaps++
		return SeqGap
	}
	if !w.started && seq > 0 {
		// First observation after a restart may land mid-stream.
		w.gaps++
		return SeqGap
	}
	return SeqNext
}

// Reset clears the position for a new writer incarnation, whose sequence
// numbers start over from zero. Cumulative duplicate and gap counts are
// retained.
func (w *Watermark) Reset() {
	w.highest = 0
	w.started = false
}

// Advance records seq as processed. Regressions are ignored.
func (w *Watermark) Advance(seq uint64) {
	if !w.started || seq > w.highest {
		w.highest = seq
		w.started = true
	}
}

// Highest returns the current watermark and whether any value was recorded.
func (w *Watermark) Highest() (uint64, bool) {
	return w.highest, w.started
}

// Counts returns cumulative duplicate and gap observations.
func (w *Watermark) Counts() (duplicates, gaps uint64) {
	return w.duplicates, w.gaps
}
