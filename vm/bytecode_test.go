package vm

import (
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op      Opcode
		name    string
		pop     int
		push    int
		operand OperandKind
	}{
		{OpAdd, "Add", 2, 1, OperandNone},
		{OpNeg, "Neg", 1, 1, OperandNone},
		{OpEq, "Eq", 2, 1, OperandNone},
		{OpLoadConst, "LoadConst", 0, 1, OperandU16},
		{OpStoreLocal, "StoreLocal", 1, 0, OperandU16},
		{OpLoadCapture, "LoadCapture", 0, 1, OperandU16},
		{OpBranchFalse, "BranchFalse", 1, 0, OperandI16},
		{OpJump, "Jump", 0, 0, OperandI16},
		{OpCall, "Call", -1, 1, OperandU8},
		{OpReturn, "Return", 1, 0, OperandNone},
		{OpMakeClosure, "MakeClosure", 0, 1, OperandU16},
		{OpArgCount, "ArgCount", 0, 1, OperandNone},
		{OpNoMatch, "NoMatch", 0, 0, OperandNone},
		{OpPrint, "Print", 1, 0, OperandNone},
	}

	for _, tt := range tests {
		info, ok := GetOpcodeInfo(tt.op)
		if !ok {
			t.Errorf("%s: no info", tt.name)
			continue
		}
		if info.Name != tt.name || info.StackPop != tt.pop || info.StackPush != tt.push || info.Operand != tt.operand {
			t.Errorf("%s: info = %+v", tt.name, info)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	if got := OpStoreCapture.String(); got != "StoreCapture" {
		t.Errorf("String = %q", got)
	}
	if got := Opcode(0xEE).String(); got != "Unknown(0xEE)" {
		t.Errorf("unknown opcode String = %q", got)
	}
}

func TestIsBranch(t *testing.T) {
	for _, op := range AllOpcodes() {
		info, _ := GetOpcodeInfo(op)
		if op.IsBranch() != (info.Operand == OperandI16) {
			t.Errorf("%s: IsBranch = %v with operand kind %d", op, op.IsBranch(), info.Operand)
		}
	}
}

// ---------------------------------------------------------------------------
// Instruction encoding tests
// ---------------------------------------------------------------------------

func TestInstructionDisplacementRoundTrip(t *testing.T) {
	for _, d := range []int16{0, 1, -1, 42, -42, math.MaxInt16, math.MinInt16} {
		in := WithDisp(OpJump, d)
		if in.Disp() != d {
			t.Errorf("WithDisp(%d).Disp() = %d", d, in.Disp())
		}
	}
}

func TestInstructionOperands(t *testing.T) {
	if in := WithIndex(OpLoadLocal, math.MaxUint16); in.Arg != math.MaxUint16 {
		t.Errorf("u16 operand = %d", in.Arg)
	}
	if in := CallN(255); in.Op != OpCall || in.ArgCount() != 255 {
		t.Errorf("CallN(255) = %+v, argc %d", in, in.ArgCount())
	}
	if in := Simple(OpPop); in.Arg != 0 {
		t.Errorf("Simple carries operand %d", in.Arg)
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		in   Instruction
		want string
	}{
		{Simple(OpAdd), "Add"},
		{WithIndex(OpLoadConst, 7), "LoadConst 7"},
		{WithDisp(OpBranchFalse, -3), "BranchFalse -3"},
		{WithDisp(OpJump, 4), "Jump +4"},
		{CallN(2), "Call 2"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String = %q, want %q", got, tt.want)
		}
	}
}
