package query

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/adrienmorel/corvusdb/pkg/metrics"
)

// AggOp names one aggregate operation.
type AggOp int

const (
	AggMin AggOp = iota
	AggMax
	AggCount
	AggSum
	AggAvg
)

// aggState accumulates one aggregate's running value for one group. Avg
// is the only operation that needs two fields (count, sum); every other
// operation uses only scalar.
type aggState struct {
	scalar Field
	count  int64
	sum    Field
	seeded bool
}

// Aggregate groups its child's tuples by a vector of group-by expressions
// and computes one or more aggregates per group.
type Aggregate struct {
	groupByExpr ExprList
	aggExpr     ExprList
	ops         []AggOp
	schema      TableSchema
	child       OpIterator
	metrics     *metrics.MetricsCollector

	open   bool
	groups map[string][]Field // group key fields rendered to a comparable string
	order  map[string][]aggState
	cursor int
	keys   []string // snapshot of group keys in enumeration order, fixed at open
}

// WithMetrics attaches a metrics collector that records one "aggregate"
// sample per Next call. Optional; nil disables recording.
func (a *Aggregate) WithMetrics(mc *metrics.MetricsCollector) *Aggregate {
	a.metrics = mc
	return a
}

// NewAggregate builds an Aggregate operator. len(aggExpr) must equal len(ops).
func NewAggregate(groupByExpr, aggExpr ExprList, ops []AggOp, schema TableSchema, child OpIterator) *Aggregate {
	if len(aggExpr) != len(ops) {
		panic("query: aggregate expression count must match operation count")
	}
	return &Aggregate{
		groupByExpr: groupByExpr,
		aggExpr:     aggExpr,
		ops:         ops,
		schema:      schema,
		child:       child,
	}
}

// Configure always configures the child with willRewind=false: Aggregate
// fully drains its child into the group map during Open, so the child is
// never itself rewound.
func (a *Aggregate) Configure(willRewind bool) {
	a.child.Configure(false)
}

// Open drains the child, accumulating per-group aggregate state.
func (a *Aggregate) Open() error {
	if a.open {
		return nil
	}
	if err := a.child.Open(); err != nil {
		return err
	}
	a.open = true
	a.groups = make(map[string][]Field)
	a.order = make(map[string][]aggState)
	a.keys = nil

	for {
		t, ok, err := a.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := a.mergeTuple(t); err != nil {
			return err
		}
	}

	// A child with zero tuples and zero group-by expressions still
	// collapses to one output row (there is exactly one group: the
	// empty key), with Count at 0 and every other aggregate Null.
	if len(a.groups) == 0 && len(a.groupByExpr) == 0 {
		key := fieldKeyString(nil)
		a.groups[key] = nil
		a.order[key] = make([]aggState, len(a.ops))
		for i, op := range a.ops {
			if op == AggCount {
				a.order[key][i] = aggState{scalar: IntField(0), seeded: true}
			}
		}
	}

	a.keys = lo.Keys(a.groups)
	a.cursor = 0
	return nil
}

func (a *Aggregate) mergeTuple(t Tuple) error {
	groupKey := a.groupByExpr.Eval(t)
	key := fieldKeyString(groupKey)

	states, seen := a.order[key]
	if !seen {
		a.groups[key] = groupKey
		states = make([]aggState, len(a.ops))
	}

	for i, expr := range a.aggExpr {
		v := expr.Eval(t)
		switch a.ops[i] {
		case AggMin:
			if !states[i].seeded {
				states[i].scalar = v
				states[i].seeded = true
			} else if Compare(v, states[i].scalar) < 0 {
				states[i].scalar = v
			}
		case AggMax:
			if !states[i].seeded {
				states[i].scalar = v
				states[i].seeded = true
			} else if Compare(v, states[i].scalar) > 0 {
				states[i].scalar = v
			}
		case AggCount:
			if !states[i].seeded {
				states[i].scalar = IntField(0)
				states[i].seeded = true
			}
			if states[i].scalar.Kind != KindInt {
				panic("query: count state did not evaluate to an Int")
			}
			states[i].scalar = IntField(states[i].scalar.IntVal + 1)
		case AggSum:
			if !states[i].seeded {
				states[i].scalar = v
				states[i].seeded = true
			} else {
				sum, err := states[i].scalar.Add(v)
				if err != nil {
					return fmt.Errorf("query: sum aggregate: %w", err)
				}
				states[i].scalar = sum
			}
		case AggAvg:
			if !states[i].seeded {
				states[i].count = 1
				states[i].sum = v
				states[i].seeded = true
			} else {
				states[i].count++
				sum, err := states[i].sum.Add(v)
				if err != nil {
					return fmt.Errorf("query: avg aggregate: %w", err)
				}
				states[i].sum = sum
			}
		default:
			panic(fmt.Sprintf("query: unknown aggregate op %d", a.ops[i]))
		}
	}

	a.order[key] = states
	return nil
}

// fieldKeyString renders a group-key vector to a string usable as a Go map
// key; fields carry heterogeneous Go types so the vector itself can't be a
// map key directly once it mixes kinds across groups evaluated from
// different rows.
func fieldKeyString(fields []Field) string {
	var b []byte
	for _, f := range fields {
		b = append(b, byte(f.Kind))
		b = f.appendKeyBytes(b)
		b = append(b, 0xff)
	}
	return string(b)
}

func (f Field) appendKeyBytes(b []byte) []byte {
	switch f.Kind {
	case KindInt:
		return append(b, []byte(fmt.Sprintf("%d", f.IntVal))...)
	case KindDecimal:
		return append(b, []byte(fmt.Sprintf("%g", f.DecVal))...)
	case KindString:
		return append(b, []byte(f.StrVal)...)
	default:
		return b
	}
}

// Next emits one result tuple per group, in whatever order the internal
// group map was snapshotted at Open. Order across groups is NOT
// guaranteed.
func (a *Aggregate) Next() (Tuple, bool, error) {
	if !a.open {
		panic(notOpenMsg)
	}
	if a.metrics != nil {
		a.metrics.RecordOperatorNext("aggregate")
	}
	if a.cursor >= len(a.keys) {
		return Tuple{}, false, nil
	}
	key := a.keys[a.cursor]
	a.cursor++

	groupKey := a.groups[key]
	states := a.order[key]

	fields := make([]Field, 0, len(groupKey)+len(states))
	fields = append(fields, groupKey...)
	for i, st := range states {
		if !st.seeded {
			fields = append(fields, NullField())
			continue
		}
		if a.ops[i] == AggAvg {
			avg, err := st.sum.AsDecimal().Divide(DecimalField(float64(st.count)))
			if err != nil {
				return Tuple{}, false, fmt.Errorf("query: avg aggregate: %w", err)
			}
			fields = append(fields, avg)
		} else {
			fields = append(fields, st.scalar)
		}
	}
	return Tuple{Fields: fields}, true, nil
}

// Close clears the group map and output cursor, then closes the child.
func (a *Aggregate) Close() error {
	a.groups = nil
	a.order = nil
	a.keys = nil
	a.cursor = 0
	a.open = false
	return a.child.Close()
}

// Rewind restarts the output cursor at the start of group enumeration; it
// does not re-aggregate the child.
func (a *Aggregate) Rewind() error {
	if !a.open {
		panic(notOpenMsg)
	}
	a.cursor = 0
	return nil
}

// Schema returns [group-by fields…, aggregate-result fields…].
func (a *Aggregate) Schema() TableSchema {
	return a.schema
}
