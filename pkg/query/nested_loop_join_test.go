package query

import "testing"

func TestNestedLoopJoinSelfJoinOnIDPlusAEqualsB(t *testing.T) {
	left := NewTupleIterator(fixtureRows(), schemaFixture())
	right := NewTupleIterator(fixtureRows(), schemaFixture())
	leftExpr := AddExpr{Left: ColExpr(0), Right: ColExpr(1)}
	rightExpr := ColExpr(2)

	join := NewNestedLoopJoin(OpEq, leftExpr, rightExpr, left, right, selfJoinSchema())
	if err := join.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer join.Close()

	var results []Tuple
	for {
		tup, ok, err := join.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		results = append(results, tup)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 joined rows, got %d", len(results))
	}
	for _, r := range results {
		leftID, rightB := r.Fields[0].IntVal+r.Fields[1].IntVal, r.Fields[6].IntVal
		if leftID != rightB {
			t.Errorf("joined row violates predicate: id+a=%d, b=%d, row=%+v", leftID, rightB, r)
		}
	}
}

func TestNestedLoopJoinMatchesHashEqJoin(t *testing.T) {
	leftExpr := AddExpr{Left: ColExpr(0), Right: ColExpr(1)}
	rightExpr := ColExpr(2)

	hashJoin := NewHashEqJoin(
		selfJoinSchema(), leftExpr, rightExpr,
		NewTupleIterator(fixtureRows(), schemaFixture()),
		NewTupleIterator(fixtureRows(), schemaFixture()),
	)
	nestedJoin := NewNestedLoopJoin(
		OpEq, leftExpr, rightExpr,
		NewTupleIterator(fixtureRows(), schemaFixture()),
		NewTupleIterator(fixtureRows(), schemaFixture()),
		selfJoinSchema(),
	)

	hashResults := drainJoin(t, hashJoin)
	nestedResults := drainJoin(t, nestedJoin)

	if len(hashResults) != len(nestedResults) {
		t.Fatalf("expected equal row counts: hash=%d nested=%d", len(hashResults), len(nestedResults))
	}
	for _, hr := range hashResults {
		found := false
		for i, nr := range nestedResults {
			if hr.Equal(nr) {
				nestedResults = append(nestedResults[:i], nestedResults[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			t.Errorf("hash join row %+v has no matching nested loop join row", hr)
		}
	}
}

func drainJoin(t *testing.T, join OpIterator) []Tuple {
	t.Helper()
	if err := join.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer join.Close()

	var results []Tuple
	for {
		tup, ok, err := join.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		results = append(results, tup)
	}
	return results
}

func TestNestedLoopJoinNotOpenPanics(t *testing.T) {
	left := NewTupleIterator(fixtureRows(), schemaFixture())
	right := NewTupleIterator(fixtureRows(), schemaFixture())
	join := NewNestedLoopJoin(OpEq, ColExpr(0), ColExpr(0), left, right, selfJoinSchema())
	defer func() {
		if recover() == nil {
			t.Error("expected panic calling Next before Open")
		}
	}()
	join.Next()
}

func TestNestedLoopJoinRewind(t *testing.T) {
	left := NewTupleIterator(fixtureRows(), schemaFixture())
	right := NewTupleIterator(fixtureRows(), schemaFixture())
	leftExpr := AddExpr{Left: ColExpr(0), Right: ColExpr(1)}
	rightExpr := ColExpr(2)

	join := NewNestedLoopJoin(OpEq, leftExpr, rightExpr, left, right, selfJoinSchema())
	if err := join.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer join.Close()

	first := drainRemaining(t, join)

	if err := join.Rewind(); err != nil {
		t.Fatalf("rewind: %v", err)
	}
	second := drainRemaining(t, join)
	if first != second {
		t.Errorf("expected rewind to replay %d rows, got %d", first, second)
	}
}

func drainRemaining(t *testing.T, join OpIterator) int {
	t.Helper()
	var n int
	for {
		_, ok, err := join.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		n++
	}
	return n
}
