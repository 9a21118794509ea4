package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/chazu/sloth/vm"
)

// run compiles src through every stage and executes it on a fresh VM.
func run(t *testing.T, src string) (vm.Value, string, error) {
	t.Helper()
	var out bytes.Buffer
	machine := vm.NewVM(vm.WithOutput(&out))
	unit, err := CompileSource(src, machine)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	result, err := machine.Execute(unit.Main)
	return result, out.String(), err
}

func runValue(t *testing.T, src string) vm.Value {
	t.Helper()
	v, _, err := run(t, src)
	if err != nil {
		t.Fatalf("execute %q: %v", src, err)
	}
	return v
}

func expectFault(t *testing.T, src string, want vm.FaultKind) *vm.RuntimeFault {
	t.Helper()
	_, _, err := run(t, src)
	var f *vm.RuntimeFault
	if !errors.As(err, &f) {
		t.Fatalf("%q: got %v, want %s fault", src, err, want)
	}
	if f.Kind != want {
		t.Fatalf("%q: fault %s, want %s", src, f.Kind, want)
	}
	return f
}

// compileOnly skips the checker so compiler errors surface directly.
func compileOnly(t *testing.T, src string) (*vm.CompiledBlock, error) {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return New(vm.NewHeap()).Compile(prog)
}

func expectCompileError(t *testing.T, src string, kind ErrorKind) *CompileError {
	t.Helper()
	_, err := compileOnly(t, src)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("%q: got %v, want %s", src, err, kind)
	}
	if !errors.Is(err, &CompileError{Kind: kind}) {
		t.Fatalf("%q: got %s, want %s", src, ce.Kind, kind)
	}
	return ce
}

// ---------------------------------------------------------------------------
// Literal arithmetic
// ---------------------------------------------------------------------------

func TestCompileArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want vm.Value
	}{
		{"42", vm.Int(42)},
		{"-5", vm.Int(-5)},
		{"1 + 2", vm.Int(3)},
		{"1.0 + 2", vm.Float(3)},
		{"1 + 2.0", vm.Float(3)},
		{"10 - 4 - 3", vm.Int(3)},
		{"2 + 3 * 4", vm.Int(14)},
		{"(2 + 3) * 4", vm.Int(20)},
		{"7 / 2", vm.Int(3)},
		{"-7 / 2", vm.Int(-3)},
		{"7 % 3", vm.Int(1)},
		{"7.5 % 2", vm.Float(1.5)},
		{"1 / 4.0", vm.Float(0.25)},
		{"2 ^ 10", vm.Int(1024)},
		{"2 ^ 3 ^ 2", vm.Int(512)},
		{"2 ^ -1", vm.Float(0.5)},
		{"-(3 - 5)", vm.Int(2)},
		{"9223372036854775807 + 1", vm.Int(math.MinInt64)},
		{"1 < 2", vm.Bool(true)},
		{"2 <= 1.5", vm.Bool(false)},
		{"1.5 > 1", vm.Bool(true)},
		{"3 >= 3", vm.Bool(true)},
		{"'a' < 'b'", vm.Bool(true)},
		{"1 == 1", vm.Bool(true)},
		{"1 == 1.0", vm.Bool(false)},
		{"1 != 2", vm.Bool(true)},
		{"null == null", vm.Bool(true)},
		{"true == 1", vm.Bool(false)},
	}
	for _, tt := range tests {
		got := runValue(t, tt.src)
		if !got.Equal(tt.want) || got.Kind() != tt.want.Kind() {
			t.Errorf("%s = %v (%s), want %v (%s)", tt.src, got, got.Kind(), tt.want, tt.want.Kind())
		}
	}
}

func TestCompileArithmeticProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	eval := func(src string) vm.Value {
		machine := vm.NewVM()
		unit, err := CompileSource(src, machine)
		if err != nil {
			return vm.Null
		}
		v, err := machine.Execute(unit.Main)
		if err != nil {
			return vm.Null
		}
		return v
	}
	lit := func(f float64) string { return strconv.FormatFloat(f, 'e', -1, 64) }

	properties.Property("int + int wraps like int64", prop.ForAll(
		func(a, b int64) bool {
			return eval(fmt.Sprintf("%d + %d", a, b)).Equal(vm.Int(a + b))
		},
		gen.Int64(), gen.Int64(),
	))

	properties.Property("int * int - int follows int64", prop.ForAll(
		func(a, b, c int64) bool {
			return eval(fmt.Sprintf("%d * %d - %d", a, b, c)).Equal(vm.Int(a*b - c))
		},
		gen.Int64Range(-1<<20, 1<<20), gen.Int64Range(-1<<20, 1<<20), gen.Int64(),
	))

	properties.Property("int + float promotes either way round", prop.ForAll(
		func(a int64, b float64) bool {
			want := vm.Float(float64(a) + b)
			return eval(fmt.Sprintf("%d + %s", a, lit(b))).Equal(want) &&
				eval(fmt.Sprintf("%s + %d", lit(b), a)).Equal(want)
		},
		gen.Int64Range(-1<<40, 1<<40), gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("int comparison agrees with Go", prop.ForAll(
		func(a, b int64) bool {
			return eval(fmt.Sprintf("%d < %d", a, b)).Equal(vm.Bool(a < b))
		},
		gen.Int64(), gen.Int64(),
	))

	properties.TestingRun(t)
}

// ---------------------------------------------------------------------------
// Blocks, locals and output
// ---------------------------------------------------------------------------

func TestCompileEmptyProgram(t *testing.T) {
	for _, src := range []string{"", "\n", "# nothing\n"} {
		v, out, err := run(t, src)
		if err != nil || !v.IsNull() || out != "" {
			t.Errorf("%q: got %v, %q, %v; want null, no output", src, v, out, err)
		}
	}

	b, err := compileOnly(t, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Code) != 2 || b.Code[0].Op != vm.OpLoadConst || b.Code[1].Op != vm.OpReturn {
		t.Errorf("empty program code = %v", b.Code)
	}
}

func TestCompileBlockValue(t *testing.T) {
	tests := []struct {
		src  string
		want vm.Value
	}{
		{"x := 1", vm.Null},
		{"x := 1\nx + 1", vm.Int(2)},
		{"x := 1; x = x + 41; x", vm.Int(42)},
		{"x := 1; x = 5", vm.Null},
		{"y: int\ny", vm.Null},
		{"do a := 2; a * 3 end", vm.Int(6)},
		{"do a := 1 end\na", vm.Int(1)},
		{"do end", vm.Null},
		{"if 1 < 2 then 10 else 20 end", vm.Int(10)},
		{"if null then 10 else 20 end", vm.Int(20)},
		{"if false then 1 end", vm.Null},
		{"if 0 then 1 end", vm.Int(1)},
	}
	for _, tt := range tests {
		if got := runValue(t, tt.src); !got.Equal(tt.want) {
			t.Errorf("%q = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestCompileLogic(t *testing.T) {
	tests := []struct {
		src  string
		want vm.Value
	}{
		{"1 and 2", vm.Int(2)},
		{"null and 2", vm.Bool(false)},
		{"false or 5", vm.Int(5)},
		{"0 or 5", vm.Bool(true)},
		{"not null", vm.Bool(true)},
		{"not 0", vm.Bool(false)},
		{"1 < 2 and 2 < 3", vm.Bool(true)},
	}
	for _, tt := range tests {
		if got := runValue(t, tt.src); !got.Equal(tt.want) {
			t.Errorf("%q = %v, want %v", tt.src, got, tt.want)
		}
	}

	// The right operand is not evaluated when the left decides.
	_, out, err := run(t, "false and print 1\ntrue or print 2")
	if err != nil || out != "" {
		t.Errorf("short circuit printed %q, err %v", out, err)
	}
}

func TestCompilePrint(t *testing.T) {
	v, out, err := run(t, "print 1 + 2\nprint \"hello\"\nprint 2.0\nprint 'c'\nprint null")
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNull() {
		t.Errorf("print evaluates to %v, want null", v)
	}
	if want := "3\nhello\n2.0\nc\nnull\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestCompileStringIdentity(t *testing.T) {
	if got := runValue(t, `s := "a"; s == s`); !got.Equal(vm.Bool(true)) {
		t.Errorf("a reference should equal itself")
	}
	if got := runValue(t, `"a" == "a"`); !got.Equal(vm.Bool(false)) {
		t.Errorf("separately boxed strings compare by identity")
	}
}

// ---------------------------------------------------------------------------
// Compile errors
// ---------------------------------------------------------------------------

func TestCompileRedeclaredLocal(t *testing.T) {
	ce := expectCompileError(t, "x := 1\nx := 2", ErrRedeclaredLocal)
	if ce.Name != "x" || ce.Pos.Line != 2 || ce.Pos.Column != 1 {
		t.Errorf("error = %+v", ce)
	}
	expectCompileError(t, "f := {|a, a| a}", ErrRedeclaredLocal)
}

func TestCompileUndeclaredLocal(t *testing.T) {
	ce := expectCompileError(t, "x := 1\ny + x", ErrUndeclaredLocal)
	if ce.Name != "y" || ce.Pos.Line != 2 {
		t.Errorf("error = %+v", ce)
	}
	expectCompileError(t, "y = 1", ErrUndeclaredLocal)
	expectCompileError(t, "x := x", ErrUndeclaredLocal)
	// Arms see only the names declared before the literal.
	expectCompileError(t, "f := {|| later}\nlater := 1", ErrUndeclaredLocal)
}

func TestCompileBranchTooFar(t *testing.T) {
	far := "if true then\n" + strings.Repeat("1\n", 20000) + "end"
	ce := expectCompileError(t, far, ErrBranchTooFar)
	if ce.Pos.Line != 1 {
		t.Errorf("error at line %d, want the if on line 1", ce.Pos.Line)
	}

	near := "if true then\n" + strings.Repeat("1\n", 16000) + "end"
	if _, err := compileOnly(t, near); err != nil {
		t.Errorf("%d-instruction branch should compile: %v", 32000, err)
	}
}

func TestPatchJumpLimit(t *testing.T) {
	c := New(vm.NewHeap())
	c.push("t")
	ok := c.emitJump(vm.OpJump)
	for range math.MaxInt16 - 1 {
		c.emit(vm.Simple(vm.OpPop))
	}
	if err := c.patchJump(ok); err != nil {
		t.Fatalf("displacement %d should fit: %v", math.MaxInt16, err)
	}
	if d := c.u.block.Code[ok].Disp(); d != math.MaxInt16 {
		t.Errorf("displacement = %d, want %d", d, math.MaxInt16)
	}

	far := c.emitJump(vm.OpJump)
	for range math.MaxInt16 {
		c.emit(vm.Simple(vm.OpPop))
	}
	err := c.patchJump(far)
	if !errors.Is(err, &CompileError{Kind: ErrBranchTooFar}) {
		t.Errorf("got %v, want BranchTooFar", err)
	}
}

func TestPatchJumpDisplacementProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("displacement counts from the branch itself", prop.ForAll(
		func(before, between int) bool {
			c := New(vm.NewHeap())
			c.push("t")
			for range before {
				c.emit(vm.Simple(vm.OpPop))
			}
			site := c.emitJump(vm.OpBranchFalse)
			for range between {
				c.emit(vm.Simple(vm.OpPop))
			}
			if err := c.patchJump(site); err != nil {
				return false
			}
			in := c.u.block.Code[site]
			return site == before && in.Op == vm.OpBranchFalse &&
				int(in.Disp()) == between+1 && site+int(in.Disp()) == len(c.u.block.Code)
		},
		gen.IntRange(0, 200), gen.IntRange(0, 2000),
	))

	properties.TestingRun(t)
}

func TestCompileConstantOverflow(t *testing.T) {
	src := strings.Repeat("1\n", MaxConstants+1)
	expectCompileError(t, src, ErrConstantOverflow)

	if _, err := compileOnly(t, strings.Repeat("1\n", MaxConstants)); err != nil {
		t.Errorf("%d constants should fit: %v", MaxConstants, err)
	}
}

func TestCompileLocalOverflow(t *testing.T) {
	c := New(vm.NewHeap())
	c.push("t")
	for i := range MaxLocals {
		if _, err := c.declareSlot("v" + strconv.Itoa(i)); err != nil {
			t.Fatalf("slot %d: %v", i, err)
		}
	}
	_, err := c.declareLocal(&Identifier{Name: "one_more", SpanVal: Span{Start: Position{Line: 3, Column: 2}}})
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Kind != ErrLocalOverflow {
		t.Fatalf("got %v, want LocalOverflow", err)
	}
	if ce.Pos.Line != 3 {
		t.Errorf("position = %v", ce.Pos)
	}
}

func TestCompileCallArityLimit(t *testing.T) {
	call := &CallExpr{
		SpanVal: Span{Start: Position{Line: 4, Column: 7}},
		Callee:  &Identifier{Name: "f"},
	}
	for range MaxArity + 1 {
		call.Args = append(call.Args, &IntLiteral{Value: 1})
	}
	c := New(vm.NewHeap())
	c.push("t")
	if _, err := c.declareSlot("f"); err != nil {
		t.Fatal(err)
	}

	err := c.compileCall(call)
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Kind != ErrLocalOverflow {
		t.Fatalf("got %v, want LocalOverflow", err)
	}
	if ce.Pos.Line != 4 || ce.Pos.Column != 7 {
		t.Errorf("position = %v, want 4:7", ce.Pos)
	}
	if _, ok := DiagnosticOf(err); !ok {
		t.Errorf("%v is not reported as a diagnostic", err)
	}
}

// ---------------------------------------------------------------------------
// Code shape
// ---------------------------------------------------------------------------

func TestCompileCodeShape(t *testing.T) {
	b, err := compileOnly(t, "1 + 2")
	if err != nil {
		t.Fatal(err)
	}
	want := []vm.Instruction{
		vm.WithIndex(vm.OpLoadConst, 0),
		vm.WithIndex(vm.OpLoadConst, 1),
		vm.Simple(vm.OpAdd),
		vm.Simple(vm.OpReturn),
	}
	if len(b.Code) != len(want) {
		t.Fatalf("code = %v, want %v", b.Code, want)
	}
	for i := range want {
		if b.Code[i] != want[i] {
			t.Errorf("code[%d] = %v, want %v", i, b.Code[i], want[i])
		}
	}
	if len(b.Positions) != len(b.Code) {
		t.Errorf("%d positions for %d instructions", len(b.Positions), len(b.Code))
	}
	if p := b.PositionAt(2); p.Line != 1 || p.Column != 3 {
		t.Errorf("Add at %v, want 1:3", p)
	}
}

func TestCompileRepeatedLiteralsNotPooled(t *testing.T) {
	b, err := compileOnly(t, "1 + 1")
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Constants) != 2 {
		t.Errorf("got %d constants, want 2", len(b.Constants))
	}
}

func TestCompileCallCarriesArgCount(t *testing.T) {
	b, err := compileOnly(t, "f := {|a, b| a}\nf(1, 2)")
	if err != nil {
		t.Fatal(err)
	}
	// f, 1, 2, Call 2, Return: nothing else is pushed for the call.
	n := len(b.Code)
	call := b.Code[n-2]
	if call.Op != vm.OpCall || call.ArgCount() != 2 {
		t.Fatalf("code[%d] = %v, want Call 2", n-2, call)
	}
	for i, op := range []vm.Opcode{vm.OpLoadLocal, vm.OpLoadConst, vm.OpLoadConst} {
		if got := b.Code[n-5+i].Op; got != op {
			t.Errorf("code[%d] = %v, want %v", n-5+i, got, op)
		}
	}
}

func TestCompileLocalsTable(t *testing.T) {
	b, err := compileOnly(t, "a := 1\nb: int\nc := {|x| x}")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(b.Locals, ",") != "a,b,c" {
		t.Errorf("locals = %v", b.Locals)
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func TestCompileFunctions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want vm.Value
	}{
		{"identity", "f := {|x| x}\nf(42)", vm.Int(42)},
		{"two params", "f := {|a, b| a - b}\nf(10, 3)", vm.Int(7)},
		{"nullary", "f := {|| 7}\nf()", vm.Int(7)},
		{"immediate", "{|x| x * 2}(21)", vm.Int(42)},
		{"recursion", "fact: fn\nfact = {|0| 1, |n| n * fact(n - 1)}\nfact(10)", vm.Int(3628800)},
		{"fibonacci", "fib: fn\nfib = {\n  |0| 0\n  |1| 1\n  |n| fib(n - 1) + fib(n - 2)\n}\nfib(15)", vm.Int(610)},
		{"arity dispatch", "g := {|x| 1, |x, y| 2}\ng(0) * 10 + g(0, 0)", vm.Int(12)},
		{"literal kinds", "b := {|true| 1, |false| 2, |null| 3, |'c'| 4}\nb(false) * 100 + b(null) * 10 + b('c')", vm.Int(234)},
		{"float pattern is not int", "k := {|1.0| 1, |x| 2}\nk(1) * 10 + k(1.0)", vm.Int(21)},
		{"negative pattern", "s := {|-1| 0, |n| n}\ns(-1)", vm.Int(0)},
		{"mixed pattern", "m := {|0, y| y, |x, y| x}\nm(0, 5) + m(3, 5)", vm.Int(8)},
		{"shadowing", "x := 1\nf := {|x| x + 1}\nf(10) + x", vm.Int(12)},
		{"capture read", "base := 100\nf := {|x| base + x}\nf(5)", vm.Int(105)},
		{"capture write", "n := 0\ninc := {|| do n = n + 1 end}\ninc()\ninc()\nn", vm.Int(2)},
		{"adder", "make := {|x| {|y| x + y}}\nadd2 := make(2)\nadd2(40)", vm.Int(42)},
		{"nested capture chain", "a := 1\nf := {|| {|| {|| a + 1}}}\nf()()()", vm.Int(2)},
		{"function as argument", "twice := {|g, x| g(g(x))}\ntwice({|v| v * 3}, 2)", vm.Int(18)},
		{"arm body block", "f := {|x| do y := x * 2; y + 1 end}\nf(4)", vm.Int(9)},
		{"if in arm", "abs := {|x| if x < 0 then -x else x end}\nabs(-3) + abs(4)", vm.Int(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runValue(t, tt.src); !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileArityMismatchFaults(t *testing.T) {
	tests := []struct {
		src  string
		line int
		col  int
	}{
		{"f := {|x| x}\nf(1, 2)", 2, 1},
		{"f := {|x| x}\nf()", 2, 1},
		{"{|| 1}(5)", 1, 1},
		{"f := {|x| x, |x, y| y}\n\nf(1, 2, 3)", 3, 1},
	}
	for _, tt := range tests {
		f := expectFault(t, tt.src, vm.FaultNoMatchingArm)
		if f.Pos.Line != tt.line || f.Pos.Column != tt.col {
			t.Errorf("%q: fault at %d:%d, want the call at %d:%d", tt.src, f.Pos.Line, f.Pos.Column, tt.line, tt.col)
		}
	}
}

func TestCompileRecursionDepth(t *testing.T) {
	src := "sum: fn\nsum = {|0| 0, |n| n + sum(n - 1)}\nsum(1000)"
	if got := runValue(t, src); !got.Equal(vm.Int(500500)) {
		t.Errorf("got %v, want 500500", got)
	}
}

func TestCompileClosuresShareCells(t *testing.T) {
	src := `count := 0
inc := {|| do count = count + 1 end}
get := {|| count}
inc()
inc()
inc()
get()`
	if got := runValue(t, src); !got.Equal(vm.Int(3)) {
		t.Errorf("got %v, want 3", got)
	}
}

func TestCompileCallDeterministic(t *testing.T) {
	machine := vm.NewVM()
	unit, err := CompileSource("f := {|x, y| x * x + y}\nf", machine)
	if err != nil {
		t.Fatal(err)
	}
	f, err := machine.Execute(unit.Main)
	if err != nil {
		t.Fatal(err)
	}
	first, err := machine.Invoke(f, vm.Int(7), vm.Int(1))
	if err != nil {
		t.Fatal(err)
	}
	heapBefore := machine.Heap.Len()
	second, err := machine.Invoke(f, vm.Int(7), vm.Int(1))
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(vm.Int(50)) || !second.Equal(first) {
		t.Errorf("calls yielded %v and %v, want 50 twice", first, second)
	}
	if machine.Heap.Len() != heapBefore {
		t.Errorf("second call allocated %d objects", machine.Heap.Len()-heapBefore)
	}
}

func TestCompileDisassembly(t *testing.T) {
	heap := vm.NewHeap()
	prog, err := Parse("f := {|0| 1, |n| n}")
	if err != nil {
		t.Fatal(err)
	}
	main, err := New(heap).Compile(prog)
	if err != nil {
		t.Fatal(err)
	}
	listing := main.Disassemble(heap)
	for _, want := range []string{"; === main ===", "; === f ===", "; === f/1 ===", "; === f/2 ===", "ArgCount", "NoMatch", "Call 1"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

// ---------------------------------------------------------------------------
// Runtime faults from compiled code
// ---------------------------------------------------------------------------

func TestCompiledFaults(t *testing.T) {
	tests := []struct {
		src  string
		want vm.FaultKind
	}{
		{"1 / 0", vm.FaultDivisionByZero},
		{"5 % 0", vm.FaultDivisionByZero},
		{"x := 0\n10 / x", vm.FaultDivisionByZero},
		{`1 + "a"`, vm.FaultTypeMismatch},
		{`"a" < "b"`, vm.FaultTypeMismatch},
		{"-true", vm.FaultTypeMismatch},
		{"x := 1\nx(2)", vm.FaultCallOnNonCallable},
		{`"f"()`, vm.FaultCallOnNonCallable},
		{"h := {|1| 1}\nh(2)", vm.FaultNoMatchingArm},
		{"h := {|x| 1}\nh()", vm.FaultNoMatchingArm},
		{"h := {|x| 1}\nh(1, 2)", vm.FaultNoMatchingArm},
		{"loop: fn\nloop = {|n| loop(n + 1)}\nloop(0)", vm.FaultStackOverflow},
	}
	for _, tt := range tests {
		expectFault(t, tt.src, tt.want)
	}
}

func TestFloatDivisionByZeroIsIEEE(t *testing.T) {
	v := runValue(t, "1.0 / 0")
	if !v.IsFloat() || !math.IsInf(v.AsFloat(), 1) {
		t.Errorf("1.0 / 0 = %v, want +Inf", v)
	}
}

func TestCompiledFaultPosition(t *testing.T) {
	f := expectFault(t, "x := 1\ny := x / 0", vm.FaultDivisionByZero)
	if f.Pos.Line != 2 || f.Pos.Column != 8 {
		t.Errorf("fault at %d:%d, want 2:8", f.Pos.Line, f.Pos.Column)
	}

	f = expectFault(t, "f := {|x| x / 0}\n\nf(1)", vm.FaultDivisionByZero)
	if f.Pos.Line != 1 || f.Block != "f" {
		t.Errorf("fault in %q at line %d, want f at line 1", f.Block, f.Pos.Line)
	}
}
