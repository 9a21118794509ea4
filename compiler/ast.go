package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes. Nodes are immutable
// after parsing, so subtrees may be shared freely.
type Node interface {
	Span() Span
	node()
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr()
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt()
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// CharLiteral represents a character literal.
type CharLiteral struct {
	SpanVal Span
	Value   rune
}

func (n *CharLiteral) Span() Span { return n.SpanVal }
func (n *CharLiteral) node()      {}
func (n *CharLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// NullLiteral represents null.
type NullLiteral struct {
	SpanVal Span
}

func (n *NullLiteral) Span() Span { return n.SpanVal }
func (n *NullLiteral) node()      {}
func (n *NullLiteral) expr()      {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Identifier is a reference to a named local.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// Operator is a binary arithmetic or comparison operator.
type Operator int

const (
	OpPlus Operator = iota
	OpMinus
	OpTimes
	OpDivide
	OpModulo
	OpPower
	OpEqual
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
)

var operatorNames = [...]string{
	OpPlus:         "+",
	OpMinus:        "-",
	OpTimes:        "*",
	OpDivide:       "/",
	OpModulo:       "%",
	OpPower:        "^",
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpLess:         "<",
	OpGreater:      ">",
	OpLessEqual:    "<=",
	OpGreaterEqual: ">=",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsComparison reports whether the operator yields a bool.
func (o Operator) IsComparison() bool {
	return o >= OpEqual
}

// BinaryExpr applies an operator to two operands.
type BinaryExpr struct {
	SpanVal Span
	OpPos   Position
	Op      Operator
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// NegateExpr is arithmetic negation.
type NegateExpr struct {
	SpanVal Span
	Operand Expr
}

func (n *NegateExpr) Span() Span { return n.SpanVal }
func (n *NegateExpr) node()      {}
func (n *NegateExpr) expr()      {}

// NotExpr is logical negation by truthiness.
type NotExpr struct {
	SpanVal Span
	Operand Expr
}

func (n *NotExpr) Span() Span { return n.SpanVal }
func (n *NotExpr) node()      {}
func (n *NotExpr) expr()      {}

// LogicalExpr is a short-circuit and/or.
type LogicalExpr struct {
	SpanVal Span
	And     bool
	Left    Expr
	Right   Expr
}

func (n *LogicalExpr) Span() Span { return n.SpanVal }
func (n *LogicalExpr) node()      {}
func (n *LogicalExpr) expr()      {}

// CallExpr calls a callee with positional arguments.
type CallExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// PrintExpr prints its operand and evaluates to null.
type PrintExpr struct {
	SpanVal Span
	Operand Expr
}

func (n *PrintExpr) Span() Span { return n.SpanVal }
func (n *PrintExpr) node()      {}
func (n *PrintExpr) expr()      {}

// IfExpr evaluates Then or Else by the truthiness of Cond. A missing Else
// evaluates to null.
type IfExpr struct {
	SpanVal Span
	Cond    Expr
	Then    *Block
	Else    *Block
}

func (n *IfExpr) Span() Span { return n.SpanVal }
func (n *IfExpr) node()      {}
func (n *IfExpr) expr()      {}

// Block is a statement sequence. It is both the program root and a
// do ... end expression; its value is that of its last expression statement.
type Block struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) expr()      {}

// FunctionLiteral is a set of guarded arms tried in order at call time.
type FunctionLiteral struct {
	SpanVal Span
	Arms    []*Arm
}

func (n *FunctionLiteral) Span() Span { return n.SpanVal }
func (n *FunctionLiteral) node()      {}
func (n *FunctionLiteral) expr()      {}

// Arm is one clause of a function literal. Each parameter is a pattern:
// an *Identifier binds the argument, a literal must equal it.
type Arm struct {
	SpanVal Span
	Params  []Expr
	Body    Expr
}

func (n *Arm) Span() Span { return n.SpanVal }
func (n *Arm) node()      {}

// IsPattern reports whether e may appear as an arm parameter.
func IsPattern(e Expr) bool {
	switch e.(type) {
	case *Identifier, *IntLiteral, *FloatLiteral, *CharLiteral, *BoolLiteral, *NullLiteral:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// Definition declares a local, optionally typed and initialized.
type Definition struct {
	SpanVal Span
	Name    *Identifier
	Type    Type // TypeUnknown when not annotated
	Value   Expr // nil when not initialized
}

func (n *Definition) Span() Span { return n.SpanVal }
func (n *Definition) node()      {}
func (n *Definition) stmt()      {}

// Assignment stores into an existing local.
type Assignment struct {
	SpanVal Span
	Name    *Identifier
	Value   Expr
}

func (n *Assignment) Span() Span { return n.SpanVal }
func (n *Assignment) node()      {}
func (n *Assignment) stmt()      {}
