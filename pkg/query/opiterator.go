package query

// OpIterator is the lifecycle and pull-protocol every physical operator
// implements: configure, then open, then a sequence of next calls
// (optionally interleaved with rewind), then close. An operator may be
// reopened after close.
type OpIterator interface {
	// Configure is called exactly once before Open. willRewind propagates
	// an optimization hint to child operators indicating whether the
	// caller might invoke Rewind later.
	Configure(willRewind bool)

	// Open idempotently transitions to the open state, acquiring child
	// state and performing any one-shot buffering (Aggregate, HashEqJoin).
	Open() error

	// Next produces the next result tuple, or (Tuple{}, false, nil) at
	// end of stream. Calling Next before Open is a contract violation
	// and panics.
	Next() (Tuple, bool, error)

	// Close releases and clears all transient state and closes children.
	Close() error

	// Rewind resets the producer position to the start without closing.
	// Panics if the operator is not open.
	Rewind() error

	// Schema returns the operator's output schema.
	Schema() TableSchema
}

const notOpenMsg = "query: operator is not open"
