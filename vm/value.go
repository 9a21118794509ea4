package vm

import (
	"fmt"
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Value: tagged runtime value
// ---------------------------------------------------------------------------

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindChar
	KindRef
)

var kindNames = [...]string{
	KindNull:  "null",
	KindBool:  "bool",
	KindInt:   "int",
	KindFloat: "float",
	KindChar:  "char",
	KindRef:   "ref",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a small copyable tagged union. The payload is stored in a single
// word: int64 bits, float64 bits, a rune, a bool, or a packed HeapRef.
// The zero Value is Null.
type Value struct {
	kind Kind
	bits uint64
}

// Null is the null value.
var Null = Value{}

// Bool returns a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

// Int returns a 64-bit signed integer value.
func Int(i int64) Value {
	return Value{kind: KindInt, bits: uint64(i)}
}

// Float returns a 64-bit floating point value.
func Float(f float64) Value {
	return Value{kind: KindFloat, bits: math.Float64bits(f)}
}

// Char returns a character value.
func Char(r rune) Value {
	return Value{kind: KindChar, bits: uint64(uint32(r))}
}

// Ref returns a value referring to a heap object.
func Ref(h HeapRef) Value {
	return Value{kind: KindRef, bits: uint64(h.Index)<<32 | uint64(h.Gen)}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsBool() bool { return v.kind == KindBool }
func (v Value) IsInt() bool  { return v.kind == KindInt }
func (v Value) IsFloat() bool {
	return v.kind == KindFloat
}
func (v Value) IsChar() bool { return v.kind == KindChar }
func (v Value) IsRef() bool  { return v.kind == KindRef }

// IsNumber reports whether v is an Int or a Float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsBool returns the boolean payload. Only meaningful for KindBool.
func (v Value) AsBool() bool { return v.bits != 0 }

// AsInt returns the integer payload. Only meaningful for KindInt.
func (v Value) AsInt() int64 { return int64(v.bits) }

// AsFloat returns the float payload. Only meaningful for KindFloat.
func (v Value) AsFloat() float64 { return math.Float64frombits(v.bits) }

// AsChar returns the character payload. Only meaningful for KindChar.
func (v Value) AsChar() rune { return rune(uint32(v.bits)) }

// AsRef returns the heap reference payload. Only meaningful for KindRef.
func (v Value) AsRef() HeapRef {
	return HeapRef{Index: uint32(v.bits >> 32), Gen: uint32(v.bits)}
}

// toFloat promotes a numeric value to float64.
func (v Value) toFloat() float64 {
	if v.kind == KindInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// Truthy reports whether v counts as true in a condition: every value
// except Null and Bool(false).
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.AsBool()
	}
	return true
}

// Equal reports structural equality per variant. Values of different
// variants are never equal, so Int(1) does not equal Float(1.0).
// References compare by identity: two separately allocated strings with the
// same contents are distinct.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindFloat {
		return v.AsFloat() == o.AsFloat()
	}
	return v.bits == o.bits
}

// String renders v without consulting a heap. References render as an
// opaque slot tag; use Heap.Display to see the payload.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case KindFloat:
		return formatFloat(v.AsFloat())
	case KindChar:
		return strconv.QuoteRune(v.AsChar())
	case KindRef:
		return fmt.Sprintf("<ref #%d>", v.AsRef().Index)
	}
	return "<invalid>"
}

// formatFloat prints floats so that integral values keep a fractional part.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return s
		}
	}
	return s + ".0"
}
