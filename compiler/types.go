package compiler

// Type is a checker-level type used by annotations and hover information.
// The VM itself is dynamically typed.
type Type int

const (
	TypeUnknown Type = iota
	TypeAny
	TypeInt
	TypeFloat
	TypeBool
	TypeStr
	TypeChar
	TypeFn
	TypeNull
)

var typeStrings = [...]string{
	TypeUnknown: "unknown",
	TypeAny:     "any",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeStr:     "str",
	TypeChar:    "char",
	TypeFn:      "fn",
	TypeNull:    "null",
}

func (t Type) String() string {
	if int(t) < len(typeStrings) {
		return typeStrings[t]
	}
	return "invalid"
}

// accepts reports whether a slot declared as t can hold a value of type v.
func (t Type) accepts(v Type) bool {
	switch {
	case t == TypeAny || t == TypeUnknown:
		return true
	case v == TypeAny || v == TypeUnknown || v == TypeNull:
		return true
	}
	return t == v
}
