package query

import "github.com/adrienmorel/corvusdb/pkg/metrics"

// NestedLoopJoin computes the Cartesian product of its children, filtered
// by cmp(leftExpr(left), rightExpr(right), op), holding one left tuple at
// a time and stepping the right child underneath it.
type NestedLoopJoin struct {
	schema    TableSchema
	op        CompareOp
	leftExpr  Expr
	rightExpr Expr
	left      OpIterator
	right     OpIterator
	metrics   *metrics.MetricsCollector

	open        bool
	currentLeft Tuple
	haveLeft    bool
}

// NewNestedLoopJoin builds a NestedLoopJoin operator.
func NewNestedLoopJoin(op CompareOp, leftExpr, rightExpr Expr, left, right OpIterator, schema TableSchema) *NestedLoopJoin {
	return &NestedLoopJoin{schema: schema, op: op, leftExpr: leftExpr, rightExpr: rightExpr, left: left, right: right}
}

// WithMetrics attaches a metrics collector that records one
// "nested_loop_join" sample per Next call. Optional; nil disables recording.
func (nlj *NestedLoopJoin) WithMetrics(mc *metrics.MetricsCollector) *NestedLoopJoin {
	nlj.metrics = mc
	return nlj
}

// Configure propagates willRewind to the left child as given, but always
// configures the right child with willRewind=true: it is rewound once per
// left row regardless of whether the join itself is rewound.
func (nlj *NestedLoopJoin) Configure(willRewind bool) {
	nlj.left.Configure(willRewind)
	nlj.right.Configure(true)
}

// Open opens both children and pulls the first left tuple.
func (nlj *NestedLoopJoin) Open() error {
	if nlj.open {
		return nil
	}
	if err := nlj.left.Open(); err != nil {
		return err
	}
	if err := nlj.right.Open(); err != nil {
		return err
	}
	t, ok, err := nlj.left.Next()
	if err != nil {
		return err
	}
	nlj.currentLeft = t
	nlj.haveLeft = ok
	nlj.open = true
	return nil
}

// Next advances the right child under the held left tuple, restarting the
// right child and advancing the left tuple whenever the right child is
// exhausted, until a match is found or the left child is exhausted.
func (nlj *NestedLoopJoin) Next() (Tuple, bool, error) {
	if !nlj.open {
		panic(notOpenMsg)
	}
	if nlj.metrics != nil {
		nlj.metrics.RecordOperatorNext("nested_loop_join")
	}
	for nlj.haveLeft {
		leftField := nlj.leftExpr.Eval(nlj.currentLeft)
		right, ok, err := nlj.right.Next()
		if err != nil {
			return Tuple{}, false, err
		}
		if ok {
			rightField := nlj.rightExpr.Eval(right)
			if CompareFields(nlj.op, leftField, rightField) {
				return nlj.currentLeft.Merge(right), true, nil
			}
			continue
		}

		if err := nlj.right.Rewind(); err != nil {
			return Tuple{}, false, err
		}
		t, ok, err := nlj.left.Next()
		if err != nil {
			return Tuple{}, false, err
		}
		nlj.currentLeft = t
		nlj.haveLeft = ok
	}
	return Tuple{}, false, nil
}

// Close closes both children.
func (nlj *NestedLoopJoin) Close() error {
	nlj.open = false
	nlj.haveLeft = false
	if err := nlj.left.Close(); err != nil {
		return err
	}
	return nlj.right.Close()
}

// Rewind resets both children and re-primes the held left tuple.
func (nlj *NestedLoopJoin) Rewind() error {
	if !nlj.open {
		panic(notOpenMsg)
	}
	if err := nlj.left.Rewind(); err != nil {
		return err
	}
	if err := nlj.right.Rewind(); err != nil {
		return err
	}
	t, ok, err := nlj.left.Next()
	if err != nil {
		return err
	}
	nlj.currentLeft = t
	nlj.haveLeft = ok
	return nil
}

// Schema returns the concatenated left‖right output schema.
func (nlj *NestedLoopJoin) Schema() TableSchema {
	return nlj.schema
}
