package vm

// SourcePos is a 1-based line and column in the source text. The zero value
// means unknown.
type SourcePos struct {
	Line   int `cbor:"1,keyasint"`
	Column int `cbor:"2,keyasint"`
}

// IsKnown reports whether the position refers to real source.
func (p SourcePos) IsKnown() bool { return p.Line > 0 }

// CaptureDescriptor says where a closure cell comes from when MakeClosure
// runs: a local slot of the creating frame, or one of the creating frame's
// own cells.
type CaptureDescriptor struct {
	Name        string `cbor:"1,keyasint"`
	FromCapture bool   `cbor:"2,keyasint,omitempty"`
	Index       uint16 `cbor:"3,keyasint"`
}

// CompiledBlock is an immutable unit of compiled code. Constants may repeat;
// Locals names each local slot and sizes the frame's locals array; Positions,
// when present, runs parallel to Code.
//
// A Dispatch block selects a function arm from its arguments. It accepts any
// argument count, binds as many arguments as it has locals, and hands the
// call to the chosen arm in place of its own frame.
type CompiledBlock struct {
	Name      string
	Code      []Instruction
	Constants []Value
	Locals    []string
	Captures  []CaptureDescriptor
	Positions []SourcePos
	Dispatch  bool
}

// NumLocals returns the size of a frame's locals array for this block.
func (b *CompiledBlock) NumLocals() int {
	return len(b.Locals)
}

// PositionAt returns the source position of the instruction at pc.
func (b *CompiledBlock) PositionAt(pc int) SourcePos {
	if pc < 0 || pc >= len(b.Positions) {
		return SourcePos{}
	}
	return b.Positions[pc]
}
