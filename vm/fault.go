package vm

import (
	"errors"
	"fmt"
)

// FaultKind classifies a RuntimeFault.
type FaultKind int

const (
	FaultStackUnderflow FaultKind = iota + 1
	FaultIndexOutOfRange
	FaultCallOnNonCallable
	FaultTypeMismatch
	FaultDivisionByZero
	FaultStackOverflow
	FaultNoMatchingArm
	FaultInvalidOpcode
)

var faultNames = map[FaultKind]string{
	FaultStackUnderflow:    "stack underflow",
	FaultIndexOutOfRange:   "index out of range",
	FaultCallOnNonCallable: "call on non-callable",
	FaultTypeMismatch:      "type mismatch",
	FaultDivisionByZero:    "division by zero",
	FaultStackOverflow:     "stack overflow",
	FaultNoMatchingArm:     "no matching arm",
	FaultInvalidOpcode:     "invalid opcode",
}

func (k FaultKind) String() string {
	if name, ok := faultNames[k]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// RuntimeFault halts execution. It records where the faulting instruction
// was: the block name, program counter, opcode and source position if the
// block carries one.
type RuntimeFault struct {
	Kind  FaultKind
	Msg   string
	Block string
	PC    int
	Op    Opcode
	Pos   SourcePos
}

func (f *RuntimeFault) Error() string {
	msg := f.Kind.String()
	if f.Msg != "" {
		msg += ": " + f.Msg
	}
	if f.Pos.IsKnown() {
		return fmt.Sprintf("line %d, column %d: %s", f.Pos.Line, f.Pos.Column, msg)
	}
	if f.Block != "" {
		return fmt.Sprintf("%s (in %s at %d, %s)", msg, f.Block, f.PC, f.Op)
	}
	return msg
}

// Is matches another RuntimeFault of the same kind, so
// errors.Is(err, &RuntimeFault{Kind: FaultDivisionByZero}) works.
func (f *RuntimeFault) Is(target error) bool {
	t, ok := target.(*RuntimeFault)
	return ok && t.Kind == f.Kind
}

// FaultKindOf extracts the fault kind from err.
func FaultKindOf(err error) (FaultKind, bool) {
	var f *RuntimeFault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

func faultf(kind FaultKind, format string, args ...interface{}) *RuntimeFault {
	return &RuntimeFault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
