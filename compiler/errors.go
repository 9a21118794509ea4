package compiler

import "fmt"

// ErrorKind classifies a CompileError.
type ErrorKind int

const (
	ErrLocalOverflow ErrorKind = iota + 1
	ErrRedeclaredLocal
	ErrUndeclaredLocal
	ErrConstantOverflow
	ErrBranchTooFar
)

var errorKindNames = map[ErrorKind]string{
	ErrLocalOverflow:    "LocalOverflow",
	ErrRedeclaredLocal:  "RedeclaredLocal",
	ErrUndeclaredLocal:  "UndeclaredLocal",
	ErrConstantOverflow: "ConstantOverflow",
	ErrBranchTooFar:     "BranchTooFar",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// CompileError aborts compilation of a unit. Pos is zero when no source
// position applies.
type CompileError struct {
	Kind ErrorKind
	Name string
	Pos  Position
	Msg  string
}

func (e *CompileError) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Pos.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, msg)
	}
	return msg
}

// Is matches any *CompileError of the same kind, so errors.Is works with
// a kind-only target such as &CompileError{Kind: ErrBranchTooFar}.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	return ok && t.Kind == e.Kind
}
