package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Arithmetic
const (
	OpAdd Opcode = 0x00 // pop b, pop a, push a + b
	OpSub Opcode = 0x01 // pop b, pop a, push a - b
	OpMul Opcode = 0x02 // pop b, pop a, push a * b
	OpDiv Opcode = 0x03 // pop b, pop a, push a / b
	OpRem Opcode = 0x04 // pop b, pop a, push a % b
	OpPow Opcode = 0x05 // pop b, pop a, push a ^ b
	OpNeg Opcode = 0x06 // negate top of stack
)

// Comparison
const (
	OpLt    Opcode = 0x10 // pop b, pop a, push a < b
	OpGt    Opcode = 0x11 // pop b, pop a, push a > b
	OpLtEq  Opcode = 0x12 // pop b, pop a, push a <= b
	OpGtEq  Opcode = 0x13 // pop b, pop a, push a >= b
	OpEq    Opcode = 0x14 // pop two, push structural equality
	OpNotEq Opcode = 0x15 // pop two, push structural inequality
)

// Constants and variables
const (
	OpLoadConst    Opcode = 0x20 // push consts[u16]
	OpLoadLocal    Opcode = 0x21 // push locals[u16]
	OpStoreLocal   Opcode = 0x22 // locals[u16] = pop
	OpLoadCapture  Opcode = 0x23 // push *cells[u16]
	OpStoreCapture Opcode = 0x24 // *cells[u16] = pop
)

// Control flow. Displacements are relative to the branch's own index.
const (
	OpBranchTrue  Opcode = 0x30 // pop; if truthy pc += i16
	OpBranchFalse Opcode = 0x31 // pop; if falsy pc += i16
	OpJump        Opcode = 0x32 // pc += i16
)

// Stack, calls and I/O
const (
	OpPop         Opcode = 0x40 // discard top of stack
	OpReturn      Opcode = 0x41 // return top of stack to the caller
	OpCall        Opcode = 0x42 // call callee below u8 arguments
	OpMakeClosure Opcode = 0x43 // bind consts[u16] to cells of the current frame
	OpArgCount    Opcode = 0x44 // push the current frame's argument count
	OpNoMatch     Opcode = 0x45 // fault: no function arm accepted the arguments
	OpPrint       Opcode = 0x46 // pop and print
)

// OperandKind describes how an instruction's operand is interpreted.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandU16
	OperandI16
	OperandU8
)

// OpcodeInfo contains metadata about an opcode. StackPop of -1 means the
// count depends on the operand.
type OpcodeInfo struct {
	Name      string
	StackPop  int
	StackPush int
	Operand   OperandKind
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpAdd: {"Add", 2, 1, OperandNone},
	OpSub: {"Sub", 2, 1, OperandNone},
	OpMul: {"Mul", 2, 1, OperandNone},
	OpDiv: {"Div", 2, 1, OperandNone},
	OpRem: {"Rem", 2, 1, OperandNone},
	OpPow: {"Pow", 2, 1, OperandNone},
	OpNeg: {"Neg", 1, 1, OperandNone},

	OpLt:    {"Lt", 2, 1, OperandNone},
	OpGt:    {"Gt", 2, 1, OperandNone},
	OpLtEq:  {"LtEq", 2, 1, OperandNone},
	OpGtEq:  {"GtEq", 2, 1, OperandNone},
	OpEq:    {"Eq", 2, 1, OperandNone},
	OpNotEq: {"NotEq", 2, 1, OperandNone},

	OpLoadConst:    {"LoadConst", 0, 1, OperandU16},
	OpLoadLocal:    {"LoadLocal", 0, 1, OperandU16},
	OpStoreLocal:   {"StoreLocal", 1, 0, OperandU16},
	OpLoadCapture:  {"LoadCapture", 0, 1, OperandU16},
	OpStoreCapture: {"StoreCapture", 1, 0, OperandU16},

	OpBranchTrue:  {"BranchTrue", 1, 0, OperandI16},
	OpBranchFalse: {"BranchFalse", 1, 0, OperandI16},
	OpJump:        {"Jump", 0, 0, OperandI16},

	OpPop:         {"Pop", 1, 0, OperandNone},
	OpReturn:      {"Return", 1, 0, OperandNone},
	OpCall:        {"Call", -1, 1, OperandU8},
	OpMakeClosure: {"MakeClosure", 0, 1, OperandU16},
	OpArgCount:    {"ArgCount", 0, 1, OperandNone},
	OpNoMatch:     {"NoMatch", 0, 0, OperandNone},
	OpPrint:       {"Print", 1, 0, OperandNone},
}

// GetOpcodeInfo returns metadata for an opcode.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	if !ok {
		return OpcodeInfo{Name: fmt.Sprintf("Unknown(0x%02X)", byte(op))}, false
	}
	return info, true
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	info, _ := GetOpcodeInfo(op)
	return info.Name
}

// IsBranch reports whether op carries a signed displacement.
func (op Opcode) IsBranch() bool {
	return op == OpBranchTrue || op == OpBranchFalse || op == OpJump
}

// AllOpcodes returns every defined opcode.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		ops = append(ops, op)
	}
	return ops
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one fixed-size ISA instruction: an opcode and a 16-bit
// operand slot, interpreted per the opcode's OperandKind.
type Instruction struct {
	Op  Opcode `cbor:"1,keyasint"`
	Arg uint16 `cbor:"2,keyasint,omitempty"`
}

// Simple builds an instruction without an operand.
func Simple(op Opcode) Instruction { return Instruction{Op: op} }

// WithIndex builds an instruction with an unsigned 16-bit operand.
func WithIndex(op Opcode, idx uint16) Instruction { return Instruction{Op: op, Arg: idx} }

// WithDisp builds a branch instruction with a signed displacement.
func WithDisp(op Opcode, d int16) Instruction { return Instruction{Op: op, Arg: uint16(d)} }

// CallN builds a call instruction for n arguments.
func CallN(n uint8) Instruction { return Instruction{Op: OpCall, Arg: uint16(n)} }

// Disp returns the signed branch displacement.
func (in Instruction) Disp() int16 { return int16(in.Arg) }

// ArgCount returns the call argument count.
func (in Instruction) ArgCount() int { return int(uint8(in.Arg)) }

func (in Instruction) String() string {
	info, _ := GetOpcodeInfo(in.Op)
	switch info.Operand {
	case OperandU16:
		return fmt.Sprintf("%s %d", info.Name, in.Arg)
	case OperandI16:
		return fmt.Sprintf("%s %+d", info.Name, in.Disp())
	case OperandU8:
		return fmt.Sprintf("%s %d", info.Name, in.ArgCount())
	}
	return info.Name
}
