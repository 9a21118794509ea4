package vm

import "math"

// ---------------------------------------------------------------------------
// Numeric coercion
// ---------------------------------------------------------------------------
//
// Int op Int stays Int. Any mix of Int and Float promotes the Int to Float,
// whichever side it is on. Integer division and remainder by zero fault;
// float division follows IEEE 754. Integer overflow wraps.

func arithmetic(op Opcode, a, b Value) (Value, *RuntimeFault) {
	if a.IsInt() && b.IsInt() {
		return intArithmetic(op, a.AsInt(), b.AsInt())
	}
	if a.IsNumber() && b.IsNumber() {
		return Float(floatArithmetic(op, a.toFloat(), b.toFloat())), nil
	}
	return Null, faultf(FaultTypeMismatch, "cannot apply %s to %s and %s", op, a.Kind(), b.Kind())
}

func intArithmetic(op Opcode, x, y int64) (Value, *RuntimeFault) {
	switch op {
	case OpAdd:
		return Int(x + y), nil
	case OpSub:
		return Int(x - y), nil
	case OpMul:
		return Int(x * y), nil
	case OpDiv:
		if y == 0 {
			return Null, faultf(FaultDivisionByZero, "%d / 0", x)
		}
		return Int(x / y), nil
	case OpRem:
		if y == 0 {
			return Null, faultf(FaultDivisionByZero, "%d %% 0", x)
		}
		return Int(x % y), nil
	case OpPow:
		if y < 0 {
			return Float(math.Pow(float64(x), float64(y))), nil
		}
		return Int(ipow(x, y)), nil
	}
	return Null, faultf(FaultInvalidOpcode, "%s is not arithmetic", op)
}

func floatArithmetic(op Opcode, x, y float64) float64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	case OpRem:
		return math.Mod(x, y)
	case OpPow:
		return math.Pow(x, y)
	}
	return math.NaN()
}

// ipow computes x^y for y >= 0 by square-and-multiply, wrapping on overflow.
func ipow(x, y int64) int64 {
	result := int64(1)
	for y > 0 {
		if y&1 == 1 {
			result *= x
		}
		x *= x
		y >>= 1
	}
	return result
}

// compare evaluates an ordering opcode. Numbers compare with the same
// promotion as arithmetic; characters compare by code point.
func compare(op Opcode, a, b Value) (Value, *RuntimeFault) {
	var c int
	switch {
	case a.IsInt() && b.IsInt():
		c = cmpOrdered(a.AsInt(), b.AsInt())
	case a.IsNumber() && b.IsNumber():
		x, y := a.toFloat(), b.toFloat()
		if math.IsNaN(x) || math.IsNaN(y) {
			return Bool(false), nil
		}
		c = cmpOrdered(x, y)
	case a.IsChar() && b.IsChar():
		c = cmpOrdered(a.AsChar(), b.AsChar())
	default:
		return Null, faultf(FaultTypeMismatch, "cannot compare %s and %s with %s", a.Kind(), b.Kind(), op)
	}
	switch op {
	case OpLt:
		return Bool(c < 0), nil
	case OpGt:
		return Bool(c > 0), nil
	case OpLtEq:
		return Bool(c <= 0), nil
	case OpGtEq:
		return Bool(c >= 0), nil
	}
	return Null, faultf(FaultInvalidOpcode, "%s is not a comparison", op)
}

func cmpOrdered[T int64 | float64 | rune](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func negate(v Value) (Value, *RuntimeFault) {
	switch v.Kind() {
	case KindInt:
		return Int(-v.AsInt()), nil
	case KindFloat:
		return Float(-v.AsFloat()), nil
	}
	return Null, faultf(FaultTypeMismatch, "cannot negate %s", v.Kind())
}
