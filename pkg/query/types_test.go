package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFieldAddInt(t *testing.T) {
	sum, err := IntField(2).Add(IntField(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != IntField(5) {
		t.Errorf("expected 5, got %+v", sum)
	}
}

func TestFieldAddStringConcatenates(t *testing.T) {
	sum, err := StringField("foo").Add(StringField("bar"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != StringField("foobar") {
		t.Errorf("expected foobar, got %+v", sum)
	}
}

func TestFieldAddMixedNumericPromotesDecimal(t *testing.T) {
	sum, err := IntField(2).Add(DecimalField(1.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != DecimalField(3.5) {
		t.Errorf("expected 3.5, got %+v", sum)
	}
}

func TestFieldAddIncompatibleErrors(t *testing.T) {
	_, err := IntField(1).Add(StringField("x"))
	if err == nil {
		t.Fatal("expected error adding Int to String")
	}
}

func TestFieldDivide(t *testing.T) {
	q, err := DecimalField(9).Divide(DecimalField(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != DecimalField(4.5) {
		t.Errorf("expected 4.5, got %+v", q)
	}

	if _, err := DecimalField(1).Divide(DecimalField(0)); err == nil {
		t.Error("expected division-by-zero error")
	}
}

func TestCompareOrdersWithinKind(t *testing.T) {
	if Compare(IntField(1), IntField(2)) >= 0 {
		t.Error("expected 1 < 2")
	}
	if Compare(StringField("a"), StringField("b")) >= 0 {
		t.Error("expected a < b")
	}
	if Compare(DecimalField(1.5), DecimalField(1.5)) != 0 {
		t.Error("expected equal decimals to compare 0")
	}
}

func TestComparePanicsOnMismatchedKinds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic comparing Int to String")
		}
	}()
	Compare(IntField(1), StringField("1"))
}

func TestTupleEncodeDecodeRoundTrip(t *testing.T) {
	schema := NewTableSchema(
		ColumnDescriptor{Name: "id", Kind: KindInt},
		ColumnDescriptor{Name: "name", Kind: KindString},
		ColumnDescriptor{Name: "score", Kind: KindDecimal},
		ColumnDescriptor{Name: "note", Kind: KindNull},
	)
	in := NewTuple(IntField(42), StringField("hello"), DecimalField(3.25), NullField())

	encoded := in.Encode()
	out, n, err := DecodeTuple(encoded, schema)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != len(encoded) {
		t.Errorf("expected to consume %d bytes, consumed %d", len(encoded), n)
	}
	if !in.Equal(out) {
		t.Errorf("round trip mismatch: %s", cmp.Diff(in, out))
	}
}

func TestDecodeTupleTruncated(t *testing.T) {
	schema := NewTableSchema(ColumnDescriptor{Name: "id", Kind: KindInt})
	if _, _, err := DecodeTuple([]byte{tagInt, 1, 2}, schema); err == nil {
		t.Error("expected error decoding truncated int field")
	}
}

func TestTupleMerge(t *testing.T) {
	left := NewTuple(IntField(1), StringField("a"))
	right := NewTuple(IntField(2), StringField("b"))
	merged := left.Merge(right)
	want := NewTuple(IntField(1), StringField("a"), IntField(2), StringField("b"))
	if !merged.Equal(want) {
		t.Errorf("merge mismatch: %s", cmp.Diff(want, merged))
	}
}
