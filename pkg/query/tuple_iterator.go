package query

// TupleIterator serves tuples from an in-memory slice. Used directly by
// tests and indirectly as the building block other sources (HeapScan)
// mimic for the OpIterator lifecycle.
type TupleIterator struct {
	tuples []Tuple
	schema TableSchema
	open   bool
	cursor int
}

// NewTupleIterator wraps an in-memory slice of tuples as an OpIterator.
func NewTupleIterator(tuples []Tuple, schema TableSchema) *TupleIterator {
	return &TupleIterator{tuples: tuples, schema: schema}
}

// Configure has nothing to propagate: a TupleIterator has no children.
func (it *TupleIterator) Configure(willRewind bool) {}

// Open resets the read cursor to the start.
func (it *TupleIterator) Open() error {
	it.open = true
	it.cursor = 0
	return nil
}

// Next returns the next buffered tuple.
func (it *TupleIterator) Next() (Tuple, bool, error) {
	if !it.open {
		panic(notOpenMsg)
	}
	if it.cursor >= len(it.tuples) {
		return Tuple{}, false, nil
	}
	t := it.tuples[it.cursor]
	it.cursor++
	return t, true, nil
}

// Close marks the iterator closed; Open may be called again to restart.
func (it *TupleIterator) Close() error {
	it.open = false
	it.cursor = 0
	return nil
}

// Rewind resets the cursor to the start without closing.
func (it *TupleIterator) Rewind() error {
	if !it.open {
		panic(notOpenMsg)
	}
	it.cursor = 0
	return nil
}

// Schema returns the iterator's tuple schema.
func (it *TupleIterator) Schema() TableSchema {
	return it.schema
}
