package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Checker: scope and type validation before codegen
// ---------------------------------------------------------------------------

// SymbolTable maps names to dense slots within one scope and chains to the
// enclosing scope. Function arms open a child scope; do and if blocks share
// the scope of the function they appear in.
type SymbolTable struct {
	Parent *SymbolTable
	slots  map[string]int
	names  []string
}

// NewSymbolTable creates a scope nested in parent (nil for the root).
func NewSymbolTable(parent *SymbolTable) *SymbolTable {
	return &SymbolTable{Parent: parent, slots: make(map[string]int)}
}

// Declare adds name to this scope. It reports false if the scope already
// has it.
func (s *SymbolTable) Declare(name string) (int, bool) {
	if _, ok := s.slots[name]; ok {
		return 0, false
	}
	slot := len(s.names)
	s.slots[name] = slot
	s.names = append(s.names, name)
	return slot, true
}

// Resolve finds name in this scope or an enclosing one, returning the
// scope that owns it.
func (s *SymbolTable) Resolve(name string) (*SymbolTable, int, bool) {
	for scope := s; scope != nil; scope = scope.Parent {
		if slot, ok := scope.slots[name]; ok {
			return scope, slot, true
		}
	}
	return nil, 0, false
}

// Names returns the declared names in slot order.
func (s *SymbolTable) Names() []string {
	return append([]string(nil), s.names...)
}

// TypeTable runs parallel to a SymbolTable, mapping slots to types. A slot
// is fixed when its type came from an annotation; inferred types are only
// informational.
type TypeTable struct {
	Parent *TypeTable
	types  []Type
	fixed  []bool
}

// NewTypeTable creates a type table nested in parent.
func NewTypeTable(parent *TypeTable) *TypeTable {
	return &TypeTable{Parent: parent}
}

// Set records the type of slot.
func (t *TypeTable) Set(slot int, typ Type, fixed bool) {
	for len(t.types) <= slot {
		t.types = append(t.types, TypeUnknown)
		t.fixed = append(t.fixed, false)
	}
	t.types[slot] = typ
	t.fixed[slot] = fixed
}

// Get returns the type of slot, or TypeUnknown.
func (t *TypeTable) Get(slot int) Type {
	if slot < 0 || slot >= len(t.types) {
		return TypeUnknown
	}
	return t.types[slot]
}

// Fixed reports whether slot was annotated.
func (t *TypeTable) Fixed(slot int) bool {
	return slot >= 0 && slot < len(t.fixed) && t.fixed[slot]
}

// Symbol is one declaration seen by the checker.
type Symbol struct {
	Name  string
	Type  Type
	Span  Span // the declaring identifier
	Scope Span // where the name is visible
	Depth int  // 0 for top level, +1 per enclosing arm
}

// CheckError is the first scope or type error found.
type CheckError struct {
	Pos  Position
	Name string
	Msg  string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// CheckResult holds the root tables and every declaration, for tooling.
type CheckResult struct {
	Symbols *SymbolTable
	Types   *TypeTable
	Defs    []Symbol
}

// Lookup returns the innermost declaration of name visible at pos.
func (r *CheckResult) Lookup(name string, pos Position) (Symbol, bool) {
	var found Symbol
	ok := false
	for _, d := range r.Defs {
		if d.Name != name || d.Span.Start.Offset > pos.Offset {
			continue
		}
		if pos.Offset < d.Scope.Start.Offset || pos.Offset > d.Scope.End.Offset {
			continue
		}
		if !ok || d.Depth >= found.Depth {
			found, ok = d, true
		}
	}
	return found, ok
}

type checker struct {
	symbols *SymbolTable
	types   *TypeTable
	depth   int
	scope   Span
	defs    []Symbol
	err     *CheckError
}

// Check validates identifier use and declared types in prog. It leaves the
// AST unchanged.
func Check(prog *Block) (*CheckResult, error) {
	c := &checker{symbols: NewSymbolTable(nil), types: NewTypeTable(nil), scope: prog.SpanVal}
	c.block(prog.Statements)
	if c.err != nil {
		return nil, c.err
	}
	return &CheckResult{Symbols: c.symbols, Types: c.types, Defs: c.defs}, nil
}

func (c *checker) errorf(id *Identifier, format string, args ...interface{}) {
	if c.err == nil {
		c.err = &CheckError{Pos: id.SpanVal.Start, Name: id.Name, Msg: fmt.Sprintf(format, args...)}
	}
}

func (c *checker) declare(id *Identifier, typ Type, fixed bool) {
	slot, ok := c.symbols.Declare(id.Name)
	if !ok {
		c.errorf(id, "unexpected declaration: %s is already declared in this scope", id.Name)
		return
	}
	c.types.Set(slot, typ, fixed)
	c.defs = append(c.defs, Symbol{Name: id.Name, Type: typ, Span: id.SpanVal, Scope: c.scope, Depth: c.depth})
}

// typeOf returns the type of a visible name and whether it is fixed.
func (c *checker) typeOf(name string) (Type, bool, bool) {
	for s, t := c.symbols, c.types; s != nil; s, t = s.Parent, t.Parent {
		if slot, ok := s.slots[name]; ok {
			return t.Get(slot), t.Fixed(slot), true
		}
	}
	return TypeUnknown, false, false
}

func (c *checker) block(stmts []Stmt) {
	for _, s := range stmts {
		if c.err != nil {
			return
		}
		c.stmt(s)
	}
}

func (c *checker) stmt(s Stmt) {
	switch s := s.(type) {
	case *ExprStmt:
		c.expr(s.X)

	case *Definition:
		typ := s.Type
		if s.Value != nil {
			c.expr(s.Value)
			found := c.infer(s.Value)
			if !typ.accepts(found) {
				c.errorf(s.Name, "mismatched types: %s declared %s, initialized with %s", s.Name.Name, typ, found)
				return
			}
			if typ == TypeUnknown {
				typ = found
			}
		}
		if typ == TypeUnknown {
			typ = TypeAny
		}
		c.declare(s.Name, typ, s.Type != TypeUnknown)

	case *Assignment:
		declared, fixed, ok := c.typeOf(s.Name.Name)
		if !ok {
			c.errorf(s.Name, "can't get type of undeclared: %s", s.Name.Name)
			return
		}
		c.expr(s.Value)
		if found := c.infer(s.Value); fixed && !declared.accepts(found) {
			c.errorf(s.Name, "mismatched types: %s declared %s, assigned %s", s.Name.Name, declared, found)
		}
	}
}

func (c *checker) expr(e Expr) {
	if c.err != nil || e == nil {
		return
	}
	switch e := e.(type) {
	case *Identifier:
		if _, _, ok := c.symbols.Resolve(e.Name); !ok {
			c.errorf(e, "undeclared use: %s", e.Name)
		}
	case *BinaryExpr:
		c.expr(e.Left)
		c.expr(e.Right)
	case *NegateExpr:
		c.expr(e.Operand)
	case *NotExpr:
		c.expr(e.Operand)
	case *LogicalExpr:
		c.expr(e.Left)
		c.expr(e.Right)
	case *CallExpr:
		c.expr(e.Callee)
		for _, a := range e.Args {
			c.expr(a)
		}
	case *PrintExpr:
		c.expr(e.Operand)
	case *IfExpr:
		c.expr(e.Cond)
		c.block(e.Then.Statements)
		if e.Else != nil {
			c.block(e.Else.Statements)
		}
	case *Block:
		c.block(e.Statements)
	case *FunctionLiteral:
		for _, arm := range e.Arms {
			c.arm(arm)
		}
	}
}

func (c *checker) arm(arm *Arm) {
	c.symbols = NewSymbolTable(c.symbols)
	c.types = NewTypeTable(c.types)
	c.depth++
	outer := c.scope
	c.scope = arm.SpanVal
	defer func() {
		c.symbols = c.symbols.Parent
		c.types = c.types.Parent
		c.depth--
		c.scope = outer
	}()

	for _, p := range arm.Params {
		if id, ok := p.(*Identifier); ok {
			c.declare(id, TypeAny, false)
		}
	}
	c.expr(arm.Body)
}

// infer returns the static type of e where it is evident without flow
// analysis, else TypeAny.
func (c *checker) infer(e Expr) Type {
	switch e := e.(type) {
	case *IntLiteral:
		return TypeInt
	case *FloatLiteral:
		return TypeFloat
	case *StringLiteral:
		return TypeStr
	case *CharLiteral:
		return TypeChar
	case *BoolLiteral, *NotExpr:
		return TypeBool
	case *NullLiteral, *PrintExpr:
		return TypeNull
	case *FunctionLiteral:
		return TypeFn
	case *Identifier:
		if t, _, ok := c.typeOf(e.Name); ok && t != TypeUnknown {
			return t
		}
	case *NegateExpr:
		if t := c.infer(e.Operand); t == TypeInt || t == TypeFloat {
			return t
		}
	case *BinaryExpr:
		if e.Op.IsComparison() {
			return TypeBool
		}
		l, r := c.infer(e.Left), c.infer(e.Right)
		switch {
		case l == TypeInt && r == TypeInt:
			return TypeInt
		case (l == TypeFloat || l == TypeInt) && (r == TypeFloat || r == TypeInt):
			return TypeFloat
		}
	}
	return TypeAny
}
