package compiler

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
)

func parseOK(t *testing.T, src string) *Block {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return prog
}

// exprOf returns the expression of the only statement in src.
func exprOf(t *testing.T, src string) Expr {
	t.Helper()
	prog := parseOK(t, src)
	if len(prog.Statements) != 1 {
		t.Fatalf("%q: got %d statements, want 1", src, len(prog.Statements))
	}
	stmt, ok := prog.Statements[0].(*ExprStmt)
	if !ok {
		t.Fatalf("%q: statement is %T, want *ExprStmt", src, prog.Statements[0])
	}
	return stmt.X
}

// render prints an expression fully parenthesized.
func render(e Expr) string {
	switch e := e.(type) {
	case *IntLiteral:
		return strconv.FormatInt(e.Value, 10)
	case *FloatLiteral:
		return "f"
	case *Identifier:
		return e.Name
	case *BinaryExpr:
		return "(" + render(e.Left) + " " + e.Op.String() + " " + render(e.Right) + ")"
	case *NegateExpr:
		return "(-" + render(e.Operand) + ")"
	case *NotExpr:
		return "(not " + render(e.Operand) + ")"
	case *LogicalExpr:
		op := "or"
		if e.And {
			op = "and"
		}
		return "(" + render(e.Left) + " " + op + " " + render(e.Right) + ")"
	case *CallExpr:
		var args []string
		for _, a := range e.Args {
			args = append(args, render(a))
		}
		return render(e.Callee) + "(" + strings.Join(args, ", ") + ")"
	case *PrintExpr:
		return "(print " + render(e.Operand) + ")"
	}
	return "?"
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"2 ^ 3 ^ 2", "(2 ^ (3 ^ 2))"},
		{"2 * 3 ^ 2", "(2 * (3 ^ 2))"},
		{"a < b + 1", "(a < (b + 1))"},
		{"a == b != c", "((a == b) != c)"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"-x * 2", "((-x) * 2)"},
		{"- -x", "(-(-x))"},
		{"a or b and c", "(a or (b and c))"},
		{"not a and b", "((not a) and b)"},
		{"not a == b", "(not (a == b))"},
		{"f(1, 2 + 3)", "f(1, (2 + 3))"},
		{"f(1)(2)", "f(1)(2)"},
		{"f()", "f()"},
		{"print 1 + 2", "(print (1 + 2))"},
		{"x % 2 == 0", "((x % 2) == 0)"},
	}
	for _, tt := range tests {
		if got := render(exprOf(t, tt.input)); got != tt.want {
			t.Errorf("%q: got %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseNegativeLiteralsFold(t *testing.T) {
	lit, ok := exprOf(t, "-5").(*IntLiteral)
	if !ok || lit.Value != -5 {
		t.Fatalf("-5 parsed as %#v", exprOf(t, "-5"))
	}

	lo, ok := exprOf(t, "-9223372036854775808").(*IntLiteral)
	if !ok || lo.Value != math.MinInt64 {
		t.Errorf("most negative int parsed as %#v", lo)
	}

	f, ok := exprOf(t, "-2.5").(*FloatLiteral)
	if !ok || f.Value != -2.5 {
		t.Errorf("-2.5 parsed as %#v", f)
	}
}

func TestParseStatements(t *testing.T) {
	prog := parseOK(t, "x := 1\ny: int\nz: float = 2.0; x = 3\n\nprint x")
	if len(prog.Statements) != 5 {
		t.Fatalf("got %d statements, want 5", len(prog.Statements))
	}

	def, ok := prog.Statements[0].(*Definition)
	if !ok || def.Name.Name != "x" || def.Type != TypeUnknown || def.Value == nil {
		t.Errorf("statement 0 = %#v", prog.Statements[0])
	}
	typed, ok := prog.Statements[1].(*Definition)
	if !ok || typed.Type != TypeInt || typed.Value != nil {
		t.Errorf("statement 1 = %#v", prog.Statements[1])
	}
	init, ok := prog.Statements[2].(*Definition)
	if !ok || init.Type != TypeFloat || init.Value == nil {
		t.Errorf("statement 2 = %#v", prog.Statements[2])
	}
	assign, ok := prog.Statements[3].(*Assignment)
	if !ok || assign.Name.Name != "x" {
		t.Errorf("statement 3 = %#v", prog.Statements[3])
	}
	if _, ok := prog.Statements[4].(*ExprStmt); !ok {
		t.Errorf("statement 4 = %T", prog.Statements[4])
	}
}

func TestParseEmptyProgram(t *testing.T) {
	for _, src := range []string{"", "\n\n", "# only a comment\n", ";;"} {
		if prog := parseOK(t, src); len(prog.Statements) != 0 {
			t.Errorf("%q: got %d statements", src, len(prog.Statements))
		}
	}
}

func TestParseFunctionLiteral(t *testing.T) {
	src := `{
  |0| 1,
  |n, 'c', -1| n
  |true, null, 2.5| 0
}`
	fn, ok := exprOf(t, src).(*FunctionLiteral)
	if !ok {
		t.Fatalf("got %T, want *FunctionLiteral", exprOf(t, src))
	}
	if len(fn.Arms) != 3 {
		t.Fatalf("got %d arms, want 3", len(fn.Arms))
	}
	if len(fn.Arms[0].Params) != 1 {
		t.Errorf("arm 0 has %d params", len(fn.Arms[0].Params))
	}
	if _, ok := fn.Arms[0].Params[0].(*IntLiteral); !ok {
		t.Errorf("arm 0 pattern is %T", fn.Arms[0].Params[0])
	}
	p := fn.Arms[1].Params
	if _, ok := p[0].(*Identifier); !ok {
		t.Errorf("arm 1 pattern 0 is %T", p[0])
	}
	if c, ok := p[1].(*CharLiteral); !ok || c.Value != 'c' {
		t.Errorf("arm 1 pattern 1 is %#v", p[1])
	}
	if n, ok := p[2].(*IntLiteral); !ok || n.Value != -1 {
		t.Errorf("arm 1 pattern 2 is %#v", p[2])
	}
	for _, pat := range fn.Arms[2].Params {
		if !IsPattern(pat) {
			t.Errorf("%T is not a pattern", pat)
		}
	}
}

func TestParseNullaryArm(t *testing.T) {
	fn := exprOf(t, "{ || 42 }").(*FunctionLiteral)
	if len(fn.Arms) != 1 || len(fn.Arms[0].Params) != 0 {
		t.Errorf("got %d arms, %d params", len(fn.Arms), len(fn.Arms[0].Params))
	}
}

func TestParseIfAndDo(t *testing.T) {
	e, ok := exprOf(t, "if x > 1 then\n  y := 2\n  y\nelse 3 end").(*IfExpr)
	if !ok {
		t.Fatal("expected *IfExpr")
	}
	if len(e.Then.Statements) != 2 || e.Else == nil || len(e.Else.Statements) != 1 {
		t.Errorf("then %d, else %v", len(e.Then.Statements), e.Else)
	}

	noElse := exprOf(t, "if a then b end").(*IfExpr)
	if noElse.Else != nil {
		t.Error("missing else should be nil")
	}

	blk, ok := exprOf(t, "do a := 1; a + 1 end").(*Block)
	if !ok || len(blk.Statements) != 2 {
		t.Errorf("do block = %#v", exprOf(t, "do a := 1; a + 1 end"))
	}
}

func TestParseMultilineContinuation(t *testing.T) {
	got := render(exprOf(t, "1 +\n  2 *\n  3"))
	if got != "(1 + (2 * 3))" {
		t.Errorf("got %s", got)
	}
	call := exprOf(t, "f(\n  1,\n  2\n)").(*CallExpr)
	if len(call.Args) != 2 {
		t.Errorf("got %d args", len(call.Args))
	}
}

func TestParseSpans(t *testing.T) {
	bin := exprOf(t, "ab + 12").(*BinaryExpr)
	if bin.SpanVal.Start.Column != 1 || bin.SpanVal.End.Column != 8 {
		t.Errorf("span = %v..%v", bin.SpanVal.Start, bin.SpanVal.End)
	}
	if bin.OpPos.Column != 4 {
		t.Errorf("operator at column %d, want 4", bin.OpPos.Column)
	}
	id := bin.Left.(*Identifier)
	if id.SpanVal.End.Column != 3 {
		t.Errorf("identifier ends at %v", id.SpanVal.End)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		line  int
		col   int
		msg   string
	}{
		{"1 +", 1, 4, "expected expression"},
		{"x := ", 1, 6, "expected expression"},
		{"(1 + 2", 1, 7, "expected )"},
		{"1 2", 1, 3, "expected end of statement"},
		{"x: banana", 1, 4, "expected type name"},
		{"{ |\"s\"| 1 }", 1, 4, "string patterns are not supported"},
		{"{ |x + 1| 1 }", 1, 6, "expected |"},
		{"{ }", 1, 1, "at least one arm"},
		{"{ |x| x", 1, 8, "expected ',' or '}'"},
		{"do 1", 1, 5, "expected end"},
		{"if x 1 end", 1, 6, "expected then"},
		{"\n  @", 2, 3, "unexpected character @"},
		{`"open`, 1, 1, "unterminated string"},
		{"99999999999999999999", 1, 1, "out of range"},
		{"end", 1, 1, "expected expression"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.input)
		var syn *SyntaxError
		if !errors.As(err, &syn) {
			t.Errorf("%q: got %v, want *SyntaxError", tt.input, err)
			continue
		}
		if syn.Pos.Line != tt.line || syn.Pos.Column != tt.col || !strings.Contains(syn.Msg, tt.msg) {
			t.Errorf("%q: got %d:%d %q, want %d:%d containing %q",
				tt.input, syn.Pos.Line, syn.Pos.Column, syn.Msg, tt.line, tt.col, tt.msg)
		}
	}
}

func TestParseTooManyArguments(t *testing.T) {
	args := strings.TrimSuffix(strings.Repeat("1,", MaxArity+1), ",")
	_, err := Parse("f(" + args + ")")
	if err == nil || !strings.Contains(err.Error(), "too many arguments") {
		t.Errorf("got %v, want too many arguments", err)
	}

	ok := strings.TrimSuffix(strings.Repeat("1,", MaxArity), ",")
	if _, err := Parse("f(" + ok + ")"); err != nil {
		t.Errorf("%d arguments should parse: %v", MaxArity, err)
	}
}
