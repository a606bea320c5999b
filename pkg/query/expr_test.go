package query

import "testing"

func TestFieldExprEval(t *testing.T) {
	tup := NewTuple(IntField(10), StringField("x"))
	if got := ColExpr(0).Eval(tup); got != IntField(10) {
		t.Errorf("expected 10, got %+v", got)
	}
	if got := ColExpr(1).Eval(tup); got != StringField("x") {
		t.Errorf("expected x, got %+v", got)
	}
}

func TestFieldExprOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range column index")
		}
	}()
	ColExpr(5).Eval(NewTuple(IntField(1)))
}

func TestAddExprEval(t *testing.T) {
	tup := NewTuple(IntField(2), IntField(3))
	expr := AddExpr{Left: ColExpr(0), Right: ColExpr(1)}
	if got := expr.Eval(tup); got != IntField(5) {
		t.Errorf("expected 5, got %+v", got)
	}
}

func TestEmptyExprPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic evaluating an empty expression")
		}
	}()
	EmptyExpr{}.Eval(NewTuple())
}

func TestCompareFields(t *testing.T) {
	cases := []struct {
		op       CompareOp
		a, b     Field
		expected bool
	}{
		{OpEq, IntField(1), IntField(1), true},
		{OpNe, IntField(1), IntField(2), true},
		{OpLt, IntField(1), IntField(2), true},
		{OpLe, IntField(2), IntField(2), true},
		{OpGt, IntField(3), IntField(2), true},
		{OpGe, IntField(2), IntField(2), true},
		{OpGt, IntField(1), IntField(2), false},
	}
	for _, c := range cases {
		if got := CompareFields(c.op, c.a, c.b); got != c.expected {
			t.Errorf("CompareFields(%v, %+v, %+v) = %v, want %v", c.op, c.a, c.b, got, c.expected)
		}
	}
}

func TestExprListEvalEmptyIsValid(t *testing.T) {
	var exprs ExprList
	got := exprs.Eval(NewTuple(IntField(1)))
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}
