package query

import "github.com/adrienmorel/corvusdb/pkg/metrics"

// HashEqJoin performs an equi-join by hashing the left child into a
// key-to-tuple-list multimap during Open, then probing it with each right
// tuple during Next.
type HashEqJoin struct {
	schema    TableSchema
	leftExpr  Expr
	rightExpr Expr
	left      OpIterator
	right     OpIterator
	metrics   *metrics.MetricsCollector

	open         bool
	buckets      map[string][]Tuple
	currentRight Tuple
	fanout       []Tuple // pending matches for the current right tuple, cursor 0
	fanIdx       int
	fanEmpty     bool
}

// NewHashEqJoin builds a HashEqJoin operator.
func NewHashEqJoin(schema TableSchema, leftExpr, rightExpr Expr, left, right OpIterator) *HashEqJoin {
	return &HashEqJoin{schema: schema, leftExpr: leftExpr, rightExpr: rightExpr, left: left, right: right}
}

// WithMetrics attaches a metrics collector that records one "hash_eq_join"
// sample per Next call. Optional; nil disables recording.
func (hj *HashEqJoin) WithMetrics(mc *metrics.MetricsCollector) *HashEqJoin {
	hj.metrics = mc
	return hj
}

// Configure propagates willRewind to both children: the left hash table,
// once built, survives a rewind without rebuilding, so a rewind of this
// operator never needs to re-open the left child from scratch — but the
// child itself still receives the hint in case it needs it independently.
func (hj *HashEqJoin) Configure(willRewind bool) {
	hj.left.Configure(willRewind)
	hj.right.Configure(willRewind)
}

// Open drains the left child into a hash multimap keyed by leftExpr.
func (hj *HashEqJoin) Open() error {
	if hj.open {
		return nil
	}
	if err := hj.left.Open(); err != nil {
		return err
	}
	if err := hj.right.Open(); err != nil {
		return err
	}
	hj.open = true
	hj.buckets = make(map[string][]Tuple)

	for {
		t, ok, err := hj.left.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key := fieldKeyString([]Field{hj.leftExpr.Eval(t)})
		hj.buckets[key] = append(hj.buckets[key], t)
	}
	return nil
}

// Next resumes a pending fan-out for the current right tuple if one
// exists, then pulls right tuples until a matching bucket is found.
func (hj *HashEqJoin) Next() (Tuple, bool, error) {
	if !hj.open {
		panic(notOpenMsg)
	}
	if hj.metrics != nil {
		hj.metrics.RecordOperatorNext("hash_eq_join")
	}

	if !hj.fanEmpty && hj.fanIdx < len(hj.fanout) {
		left := hj.fanout[hj.fanIdx]
		right := hj.currentRight
		hj.fanIdx++
		if hj.fanIdx >= len(hj.fanout) {
			hj.fanEmpty = true
		}
		return left.Merge(right), true, nil
	}

	for {
		right, ok, err := hj.right.Next()
		if err != nil {
			return Tuple{}, false, err
		}
		if !ok {
			return Tuple{}, false, nil
		}
		key := fieldKeyString([]Field{hj.rightExpr.Eval(right)})
		matches, found := hj.buckets[key]
		if !found {
			continue
		}
		hj.currentRight = right
		hj.fanout = matches
		hj.fanIdx = 1
		hj.fanEmpty = len(matches) <= 1
		return matches[0].Merge(right), true, nil
	}
}

// Close clears the hash table and fan-out state, then closes both children.
func (hj *HashEqJoin) Close() error {
	hj.buckets = nil
	hj.fanout = nil
	hj.fanIdx = 0
	hj.fanEmpty = false
	hj.open = false
	if err := hj.left.Close(); err != nil {
		return err
	}
	return hj.right.Close()
}

// Rewind resets both children and the fan-out continuation. The left
// hash table is kept rather than rebuilt: cheaper, and it is unaffected
// by the right child's or the left child's own rewind.
func (hj *HashEqJoin) Rewind() error {
	if !hj.open {
		panic(notOpenMsg)
	}
	if err := hj.left.Rewind(); err != nil {
		return err
	}
	if err := hj.right.Rewind(); err != nil {
		return err
	}
	hj.fanout = nil
	hj.fanIdx = 0
	hj.fanEmpty = false
	return nil
}

// Schema returns the concatenated left‖right output schema.
func (hj *HashEqJoin) Schema() TableSchema {
	return hj.schema
}
