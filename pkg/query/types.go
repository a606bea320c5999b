// Package query implements the pull-based iterator-protocol query engine:
// tuples, field values, and the physical operators (heap scan, aggregate,
// hash-equi-join, nested-loop join) that consume them.
package query

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// FieldKind tags the dynamic type carried by a Field.
type FieldKind int

const (
	KindNull FieldKind = iota
	KindInt
	KindString
	KindDecimal
)

func (k FieldKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// Field is a tagged value: Int(int64), String(utf-8), Decimal(float64), or
// Null. Ordering is only defined within one kind; Add also combines Int
// with Decimal.
type Field struct {
	Kind   FieldKind
	IntVal int64
	StrVal string
	DecVal float64
}

// IntField constructs an Int field.
func IntField(v int64) Field { return Field{Kind: KindInt, IntVal: v} }

// StringField constructs a String field.
func StringField(v string) Field { return Field{Kind: KindString, StrVal: v} }

// DecimalField constructs a Decimal field.
func DecimalField(v float64) Field { return Field{Kind: KindDecimal, DecVal: v} }

// NullField constructs a Null field.
func NullField() Field { return Field{Kind: KindNull} }

// AsDecimal promotes an Int or Decimal field to a Decimal field. Panics on
// any other kind; Aggregate's Avg emission calls it on the accumulated
// sum, so an Avg over a String column panics here.
func (f Field) AsDecimal() Field {
	switch f.Kind {
	case KindDecimal:
		return f
	case KindInt:
		return DecimalField(float64(f.IntVal))
	default:
		panic(fmt.Sprintf("query: cannot promote %s field to decimal", f.Kind))
	}
}

// Add returns f+other. Int+Int stays Int, any combination involving a
// Decimal promotes to Decimal, and String+String concatenates. Any other
// combination is not addable and returns an error (a planner bug surfaced
// through Sum/Avg aggregate evaluation).
func (f Field) Add(other Field) (Field, error) {
	switch {
	case f.Kind == KindInt && other.Kind == KindInt:
		return IntField(f.IntVal + other.IntVal), nil
	case f.Kind == KindString && other.Kind == KindString:
		return StringField(f.StrVal + other.StrVal), nil
	case isNumeric(f.Kind) && isNumeric(other.Kind):
		return DecimalField(numericValue(f) + numericValue(other)), nil
	default:
		return Field{}, fmt.Errorf("query: field of kind %s is not addable to field of kind %s", f.Kind, other.Kind)
	}
}

// Divide returns f/other as a Decimal. Both operands must be numeric.
func (f Field) Divide(other Field) (Field, error) {
	if !isNumeric(f.Kind) || !isNumeric(other.Kind) {
		return Field{}, fmt.Errorf("query: field of kind %s is not divisible by field of kind %s", f.Kind, other.Kind)
	}
	denom := numericValue(other)
	if denom == 0 {
		return Field{}, fmt.Errorf("query: division by zero")
	}
	return DecimalField(numericValue(f) / denom), nil
}

func isNumeric(k FieldKind) bool { return k == KindInt || k == KindDecimal }

func numericValue(f Field) float64 {
	if f.Kind == KindInt {
		return float64(f.IntVal)
	}
	return f.DecVal
}

// Compare returns -1, 0, or 1 comparing a against b under the total order
// for their (shared) kind. Panics when the kinds differ, Null included —
// comparing heterogeneous fields is a planner bug.
func Compare(a, b Field) int {
	if a.Kind != b.Kind {
		panic(fmt.Sprintf("query: cannot compare field of kind %s with field of kind %s", a.Kind, b.Kind))
	}
	switch a.Kind {
	case KindNull:
		return 0
	case KindInt:
		switch {
		case a.IntVal < b.IntVal:
			return -1
		case a.IntVal > b.IntVal:
			return 1
		default:
			return 0
		}
	case KindDecimal:
		switch {
		case a.DecVal < b.DecVal:
			return -1
		case a.DecVal > b.DecVal:
			return 1
		default:
			return 0
		}
	case KindString:
		return strings.Compare(a.StrVal, b.StrVal)
	default:
		panic(fmt.Sprintf("query: unknown field kind %d", a.Kind))
	}
}

// Equal reports whether a and b are the same kind and value. Join and
// group-by hashing do not key maps by Field; they use fieldKeyString.
func (f Field) Equal(other Field) bool {
	return f == other
}

// ColumnDescriptor names one column of a TableSchema.
type ColumnDescriptor struct {
	Name string
	Kind FieldKind
}

// TableSchema is an ordered sequence of column descriptors, carried by
// operators for type propagation and used by the Tuple wire codec.
type TableSchema struct {
	Columns []ColumnDescriptor
}

// NewTableSchema builds a schema from column descriptors.
func NewTableSchema(columns ...ColumnDescriptor) TableSchema {
	return TableSchema{Columns: columns}
}

// Concat returns the schema formed by concatenating s with other, the
// output schema of a join.
func (s TableSchema) Concat(other TableSchema) TableSchema {
	cols := make([]ColumnDescriptor, 0, len(s.Columns)+len(other.Columns))
	cols = append(cols, s.Columns...)
	cols = append(cols, other.Columns...)
	return TableSchema{Columns: cols}
}

// Tuple is an ordered sequence of Field values.
type Tuple struct {
	Fields []Field
}

// NewTuple constructs a Tuple from fields.
func NewTuple(fields ...Field) Tuple {
	return Tuple{Fields: fields}
}

// Merge concatenates t with other, producing the tuple emitted by a join.
func (t Tuple) Merge(other Tuple) Tuple {
	fields := make([]Field, 0, len(t.Fields)+len(other.Fields))
	fields = append(fields, t.Fields...)
	fields = append(fields, other.Fields...)
	return Tuple{Fields: fields}
}

// Equal reports whether t and other carry the same fields in the same order.
func (t Tuple) Equal(other Tuple) bool {
	if len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

const (
	tagNull    byte = 0x00
	tagInt     byte = 0x01
	tagString  byte = 0x02
	tagDecimal byte = 0x03
)

// Encode serializes t to its wire form: one tag byte per field followed by
// the field's fixed or length-prefixed payload, fields in schema order.
// This encoding is local to HeapScan's Page-payload round trip, not an
// external wire format.
func (t Tuple) Encode() []byte {
	var buf []byte
	for _, f := range t.Fields {
		switch f.Kind {
		case KindNull:
			buf = append(buf, tagNull)
		case KindInt:
			var tmp [8]byte
			binary.LittleEndian.PutUint64(tmp[:], uint64(f.IntVal))
			buf = append(buf, tagInt)
			buf = append(buf, tmp[:]...)
		case KindDecimal:
			var tmp [8]byte
			binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(f.DecVal))
			buf = append(buf, tagDecimal)
			buf = append(buf, tmp[:]...)
		case KindString:
			var lenBuf [4]byte
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(f.StrVal)))
			buf = append(buf, tagString)
			buf = append(buf, lenBuf[:]...)
			buf = append(buf, f.StrVal...)
		}
	}
	return buf
}

// DecodeTuple reads len(schema.Columns) fields from data, returning the
// tuple and the number of bytes consumed.
func DecodeTuple(data []byte, schema TableSchema) (Tuple, int, error) {
	fields := make([]Field, 0, len(schema.Columns))
	pos := 0
	for range schema.Columns {
		if pos >= len(data) {
			return Tuple{}, 0, fmt.Errorf("query: truncated tuple encoding")
		}
		tag := data[pos]
		pos++
		switch tag {
		case tagNull:
			fields = append(fields, NullField())
		case tagInt:
			if pos+8 > len(data) {
				return Tuple{}, 0, fmt.Errorf("query: truncated int field")
			}
			v := int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
			fields = append(fields, IntField(v))
			pos += 8
		case tagDecimal:
			if pos+8 > len(data) {
				return Tuple{}, 0, fmt.Errorf("query: truncated decimal field")
			}
			v := math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))
			fields = append(fields, DecimalField(v))
			pos += 8
		case tagString:
			if pos+4 > len(data) {
				return Tuple{}, 0, fmt.Errorf("query: truncated string length")
			}
			n := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
			pos += 4
			if pos+n > len(data) {
				return Tuple{}, 0, fmt.Errorf("query: truncated string field")
			}
			fields = append(fields, StringField(string(data[pos:pos+n])))
			pos += n
		default:
			return Tuple{}, 0, fmt.Errorf("query: unknown field tag %d", tag)
		}
	}
	return Tuple{Fields: fields}, pos, nil
}
