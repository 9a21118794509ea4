package compiler

import (
	"fmt"
	"math"

	"github.com/tliron/commonlog"

	"github.com/chazu/sloth/vm"
)

var log = commonlog.GetLogger("sloth.compiler")

// Limits of one compile unit, set by the 16-bit operands.
const (
	MaxLocals    = 1 << 16
	MaxConstants = 1 << 16
	MaxCaptures  = 1 << 16
)

// ---------------------------------------------------------------------------
// Codegen: compile a checked AST to bytecode
// ---------------------------------------------------------------------------

// Allocator boxes compile-time constants on the heap of the VM that will run
// the code. *vm.VM and *vm.Heap both satisfy it.
type Allocator interface {
	AllocString(s string) vm.Value
	AllocBlock(b *vm.CompiledBlock) vm.Value
}

// unit is the state of one CompiledBlock under construction.
type unit struct {
	block     *vm.CompiledBlock
	locals    map[string]uint16
	captures  map[string]uint16
	enclosing *unit
	pos       vm.SourcePos
}

// varRef is a resolved name: a local slot of the current unit or one of its
// captures.
type varRef struct {
	capture bool
	index   uint16
}

// Compiler compiles AST nodes to bytecode. A Compiler may be reused; each
// Compile call starts from an empty scope.
type Compiler struct {
	alloc Allocator
	u     *unit
}

// New creates a compiler that boxes strings and callables with alloc.
func New(alloc Allocator) *Compiler {
	return &Compiler{alloc: alloc}
}

// Compile compiles prog into the main block. The block returns the value of
// the program's last expression statement, or null.
func (c *Compiler) Compile(prog *Block) (*vm.CompiledBlock, error) {
	c.u = nil
	c.push("main")
	c.at(prog.SpanVal.Start)
	if err := c.compileBody(prog.Statements); err != nil {
		return nil, err
	}
	c.at(prog.SpanVal.End)
	c.emit(vm.Simple(vm.OpReturn))
	return c.pop(), nil
}

func (c *Compiler) push(name string) {
	c.u = &unit{
		block:     &vm.CompiledBlock{Name: name},
		locals:    make(map[string]uint16),
		captures:  make(map[string]uint16),
		enclosing: c.u,
	}
	if c.u.enclosing != nil {
		c.u.pos = c.u.enclosing.pos
	}
}

func (c *Compiler) pop() *vm.CompiledBlock {
	b := c.u.block
	c.u = c.u.enclosing
	log.Debugf("compiled %q: %d instructions, %d constants, %d locals, %d captures",
		b.Name, len(b.Code), len(b.Constants), len(b.Locals), len(b.Captures))
	return b
}

// at sets the source position recorded for subsequently emitted instructions.
func (c *Compiler) at(p Position) {
	if p.Line > 0 {
		c.u.pos = vm.SourcePos{Line: p.Line, Column: p.Column}
	}
}

func (c *Compiler) emit(in vm.Instruction) int {
	b := c.u.block
	b.Code = append(b.Code, in)
	b.Positions = append(b.Positions, c.u.pos)
	return len(b.Code) - 1
}

// ---------------------------------------------------------------------------
// Locals and captures
// ---------------------------------------------------------------------------

// declareLocal adds id to the current unit.
func (c *Compiler) declareLocal(id *Identifier) (uint16, error) {
	if _, ok := c.u.locals[id.Name]; ok {
		return 0, &CompileError{Kind: ErrRedeclaredLocal, Name: id.Name, Pos: id.SpanVal.Start,
			Msg: fmt.Sprintf("%s is already declared in this scope", id.Name)}
	}
	slot, err := c.declareSlot(id.Name)
	if err != nil {
		err.(*CompileError).Pos = id.SpanVal.Start
	}
	return slot, err
}

// declareSlot appends a slot for name without a redeclaration check.
func (c *Compiler) declareSlot(name string) (uint16, error) {
	b := c.u.block
	if len(b.Locals) >= MaxLocals {
		return 0, &CompileError{Kind: ErrLocalOverflow, Name: name,
			Msg: fmt.Sprintf("more than %d locals in %s", MaxLocals, blockName(b))}
	}
	slot := uint16(len(b.Locals))
	b.Locals = append(b.Locals, name)
	c.u.locals[name] = slot
	return slot, nil
}

// fetchLocal resolves id in the current unit, then in enclosing units
// through captures.
func (c *Compiler) fetchLocal(id *Identifier) (varRef, error) {
	if slot, ok := c.u.locals[id.Name]; ok {
		return varRef{index: slot}, nil
	}
	idx, ok, err := c.resolveCapture(c.u, id.Name)
	if err != nil {
		err.(*CompileError).Pos = id.SpanVal.Start
		return varRef{}, err
	}
	if !ok {
		return varRef{}, &CompileError{Kind: ErrUndeclaredLocal, Name: id.Name, Pos: id.SpanVal.Start,
			Msg: fmt.Sprintf("%s is not declared", id.Name)}
	}
	return varRef{capture: true, index: idx}, nil
}

// resolveCapture finds name in the units enclosing u and threads a capture
// through every unit in between.
func (c *Compiler) resolveCapture(u *unit, name string) (uint16, bool, error) {
	if idx, ok := u.captures[name]; ok {
		return idx, true, nil
	}
	outer := u.enclosing
	if outer == nil {
		return 0, false, nil
	}
	desc := vm.CaptureDescriptor{Name: name}
	if slot, ok := outer.locals[name]; ok {
		desc.Index = slot
	} else {
		idx, ok, err := c.resolveCapture(outer, name)
		if err != nil || !ok {
			return 0, ok, err
		}
		desc.FromCapture = true
		desc.Index = idx
	}

	b := u.block
	if len(b.Captures) >= MaxCaptures {
		return 0, false, &CompileError{Kind: ErrLocalOverflow, Name: name,
			Msg: fmt.Sprintf("more than %d captures in %s", MaxCaptures, blockName(b))}
	}
	idx := uint16(len(b.Captures))
	b.Captures = append(b.Captures, desc)
	u.captures[name] = idx
	return idx, true, nil
}

func (c *Compiler) emitLoad(ref varRef) {
	if ref.capture {
		c.emit(vm.WithIndex(vm.OpLoadCapture, ref.index))
	} else {
		c.emit(vm.WithIndex(vm.OpLoadLocal, ref.index))
	}
}

func (c *Compiler) emitStore(ref varRef) {
	if ref.capture {
		c.emit(vm.WithIndex(vm.OpStoreCapture, ref.index))
	} else {
		c.emit(vm.WithIndex(vm.OpStoreLocal, ref.index))
	}
}

// ---------------------------------------------------------------------------
// Constants and jumps
// ---------------------------------------------------------------------------

// addConstant appends v to the pool. Repeated values get separate slots.
func (c *Compiler) addConstant(v vm.Value) (uint16, error) {
	b := c.u.block
	if len(b.Constants) >= MaxConstants {
		return 0, &CompileError{Kind: ErrConstantOverflow, Pos: c.position(),
			Msg: fmt.Sprintf("more than %d constants in %s", MaxConstants, blockName(b))}
	}
	b.Constants = append(b.Constants, v)
	return uint16(len(b.Constants) - 1), nil
}

func (c *Compiler) emitLoadConst(v vm.Value) error {
	idx, err := c.addConstant(v)
	if err != nil {
		return err
	}
	c.emit(vm.WithIndex(vm.OpLoadConst, idx))
	return nil
}

// emitCallable boxes b and loads it, binding captures with MakeClosure when
// it has any.
func (c *Compiler) emitCallable(b *vm.CompiledBlock) error {
	idx, err := c.addConstant(c.alloc.AllocBlock(b))
	if err != nil {
		return err
	}
	if len(b.Captures) > 0 {
		c.emit(vm.WithIndex(vm.OpMakeClosure, idx))
	} else {
		c.emit(vm.WithIndex(vm.OpLoadConst, idx))
	}
	return nil
}

// emitJump emits a branch with a placeholder displacement and returns its
// index for patchJump.
func (c *Compiler) emitJump(op vm.Opcode) int {
	return c.emit(vm.WithDisp(op, 0))
}

// patchJump points the branch at site to the next instruction to be
// emitted. The displacement is relative to the branch itself.
func (c *Compiler) patchJump(site int) error {
	disp := len(c.u.block.Code) - site
	if disp > math.MaxInt16 || disp < math.MinInt16 {
		return &CompileError{Kind: ErrBranchTooFar, Pos: c.positionOf(site),
			Msg: fmt.Sprintf("displacement %d does not fit 16 bits", disp)}
	}
	c.u.block.Code[site].Arg = uint16(int16(disp))
	return nil
}

func (c *Compiler) position() Position {
	return Position{Line: c.u.pos.Line, Column: c.u.pos.Column}
}

func (c *Compiler) positionOf(pc int) Position {
	p := c.u.block.PositionAt(pc)
	return Position{Line: p.Line, Column: p.Column}
}

func blockName(b *vm.CompiledBlock) string {
	if b.Name == "" {
		return "<anonymous>"
	}
	return b.Name
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// compileBody compiles stmts leaving exactly one value on the stack: the
// last statement's value if it is an expression, else null.
func (c *Compiler) compileBody(stmts []Stmt) error {
	for i, s := range stmts {
		last := i == len(stmts)-1
		c.at(s.Span().Start)
		switch s := s.(type) {
		case *ExprStmt:
			if err := c.compileExpr(s.X); err != nil {
				return err
			}
			if !last {
				c.emit(vm.Simple(vm.OpPop))
			}
		case *Definition:
			if err := c.compileDefinition(s); err != nil {
				return err
			}
		case *Assignment:
			if err := c.compileAssignment(s); err != nil {
				return err
			}
		default:
			return fmt.Errorf("cannot compile statement %T", s)
		}
	}
	if n := len(stmts); n == 0 {
		return c.emitLoadConst(vm.Null)
	} else if _, ok := stmts[n-1].(*ExprStmt); !ok {
		return c.emitLoadConst(vm.Null)
	}
	return nil
}

func (c *Compiler) compileDefinition(d *Definition) error {
	if d.Value == nil {
		_, err := c.declareLocal(d.Name)
		return err
	}
	if err := c.compileValue(d.Value, d.Name.Name); err != nil {
		return err
	}
	slot, err := c.declareLocal(d.Name)
	if err != nil {
		return err
	}
	c.at(d.Name.SpanVal.Start)
	c.emit(vm.WithIndex(vm.OpStoreLocal, slot))
	return nil
}

func (c *Compiler) compileAssignment(a *Assignment) error {
	if err := c.compileValue(a.Value, a.Name.Name); err != nil {
		return err
	}
	ref, err := c.fetchLocal(a.Name)
	if err != nil {
		return err
	}
	c.at(a.Name.SpanVal.Start)
	c.emitStore(ref)
	return nil
}

// compileValue compiles the right side of a binding, naming function
// literals after the bound name.
func (c *Compiler) compileValue(e Expr, name string) error {
	if fn, ok := e.(*FunctionLiteral); ok {
		c.at(fn.SpanVal.Start)
		return c.compileFunction(fn, name)
	}
	return c.compileExpr(e)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOpcodes = map[Operator]vm.Opcode{
	OpPlus:         vm.OpAdd,
	OpMinus:        vm.OpSub,
	OpTimes:        vm.OpMul,
	OpDivide:       vm.OpDiv,
	OpModulo:       vm.OpRem,
	OpPower:        vm.OpPow,
	OpEqual:        vm.OpEq,
	OpNotEqual:     vm.OpNotEq,
	OpLess:         vm.OpLt,
	OpGreater:      vm.OpGt,
	OpLessEqual:    vm.OpLtEq,
	OpGreaterEqual: vm.OpGtEq,
}

func (c *Compiler) compileExpr(e Expr) error {
	c.at(e.Span().Start)
	switch e := e.(type) {
	case *IntLiteral:
		return c.emitLoadConst(vm.Int(e.Value))
	case *FloatLiteral:
		return c.emitLoadConst(vm.Float(e.Value))
	case *CharLiteral:
		return c.emitLoadConst(vm.Char(e.Value))
	case *BoolLiteral:
		return c.emitLoadConst(vm.Bool(e.Value))
	case *NullLiteral:
		return c.emitLoadConst(vm.Null)
	case *StringLiteral:
		return c.emitLoadConst(c.alloc.AllocString(e.Value))

	case *Identifier:
		ref, err := c.fetchLocal(e)
		if err != nil {
			return err
		}
		c.emitLoad(ref)
		return nil

	case *BinaryExpr:
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.at(e.OpPos)
		c.emit(vm.Simple(binaryOpcodes[e.Op]))
		return nil

	case *NegateExpr:
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		c.at(e.SpanVal.Start)
		c.emit(vm.Simple(vm.OpNeg))
		return nil

	case *NotExpr:
		return c.compileNot(e)
	case *LogicalExpr:
		return c.compileLogical(e)
	case *CallExpr:
		return c.compileCall(e)

	case *PrintExpr:
		if err := c.compileExpr(e.Operand); err != nil {
			return err
		}
		c.at(e.SpanVal.Start)
		c.emit(vm.Simple(vm.OpPrint))
		return c.emitLoadConst(vm.Null)

	case *IfExpr:
		return c.compileIf(e)
	case *Block:
		return c.compileBody(e.Statements)
	case *FunctionLiteral:
		return c.compileFunction(e, "")
	}
	return fmt.Errorf("cannot compile expression %T", e)
}

func (c *Compiler) compileCall(call *CallExpr) error {
	if len(call.Args) > MaxArity {
		return &CompileError{
			Kind: ErrLocalOverflow,
			Pos:  call.SpanVal.Start,
			Msg:  fmt.Sprintf("%d call arguments exceed %d", len(call.Args), MaxArity),
		}
	}
	if err := c.compileExpr(call.Callee); err != nil {
		return err
	}
	for _, a := range call.Args {
		if err := c.compileExpr(a); err != nil {
			return err
		}
	}
	c.at(call.SpanVal.Start)
	c.emit(vm.CallN(uint8(len(call.Args))))
	return nil
}

// compileNot yields true for a falsy operand and false otherwise.
func (c *Compiler) compileNot(e *NotExpr) error {
	if err := c.compileExpr(e.Operand); err != nil {
		return err
	}
	c.at(e.SpanVal.Start)
	return c.compileChoice(vm.OpBranchFalse, vm.Bool(false), vm.Bool(true))
}

// compileChoice consumes the value on the stack and pushes taken when the
// branch op jumps and notTaken otherwise.
func (c *Compiler) compileChoice(op vm.Opcode, notTaken, taken vm.Value) error {
	site := c.emitJump(op)
	if err := c.emitLoadConst(notTaken); err != nil {
		return err
	}
	end := c.emitJump(vm.OpJump)
	if err := c.patchJump(site); err != nil {
		return err
	}
	if err := c.emitLoadConst(taken); err != nil {
		return err
	}
	return c.patchJump(end)
}

// compileLogical compiles `a and b` as false when a is falsy, else b, and
// `a or b` as true when a is truthy, else b.
func (c *Compiler) compileLogical(e *LogicalExpr) error {
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	op, short := vm.OpBranchTrue, vm.Bool(true)
	if e.And {
		op, short = vm.OpBranchFalse, vm.Bool(false)
	}
	site := c.emitJump(op)
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	end := c.emitJump(vm.OpJump)
	if err := c.patchJump(site); err != nil {
		return err
	}
	if err := c.emitLoadConst(short); err != nil {
		return err
	}
	return c.patchJump(end)
}

func (c *Compiler) compileIf(e *IfExpr) error {
	if err := c.compileExpr(e.Cond); err != nil {
		return err
	}
	c.at(e.SpanVal.Start)
	elseSite := c.emitJump(vm.OpBranchFalse)
	if err := c.compileBody(e.Then.Statements); err != nil {
		return err
	}
	end := c.emitJump(vm.OpJump)
	if err := c.patchJump(elseSite); err != nil {
		return err
	}
	var els []Stmt
	if e.Else != nil {
		els = e.Else.Statements
	}
	if err := c.compileBody(els); err != nil {
		return err
	}
	return c.patchJump(end)
}

// ---------------------------------------------------------------------------
// Function literals
// ---------------------------------------------------------------------------

// compileFunction compiles a function literal to a dispatcher block. For
// each arm in order the dispatcher tests the argument count and every
// literal pattern, and on a match calls the arm's own block with the
// arguments. If no arm matches it executes NoMatch.
func (c *Compiler) compileFunction(fn *FunctionLiteral, name string) error {
	c.push(name)
	c.u.block.Dispatch = true
	arity := 0
	for _, arm := range fn.Arms {
		arity = max(arity, len(arm.Params))
	}
	for i := range arity {
		if _, err := c.declareSlot(fmt.Sprintf("$%d", i)); err != nil {
			return err
		}
	}

	for i, arm := range fn.Arms {
		c.at(arm.SpanVal.Start)
		n := len(arm.Params)
		c.emit(vm.Simple(vm.OpArgCount))
		if err := c.emitLoadConst(vm.Int(int64(n))); err != nil {
			return err
		}
		c.emit(vm.Simple(vm.OpEq))
		next := []int{c.emitJump(vm.OpBranchFalse)}

		for j, p := range arm.Params {
			lit, ok := patternValue(p)
			if !ok {
				continue
			}
			c.at(p.Span().Start)
			c.emit(vm.WithIndex(vm.OpLoadLocal, uint16(j)))
			if err := c.emitLoadConst(lit); err != nil {
				return err
			}
			c.emit(vm.Simple(vm.OpEq))
			next = append(next, c.emitJump(vm.OpBranchFalse))
		}

		armBlock, err := c.compileArm(arm, armName(name, i, len(fn.Arms)))
		if err != nil {
			return err
		}
		c.at(arm.SpanVal.Start)
		if err := c.emitCallable(armBlock); err != nil {
			return err
		}
		for j := range n {
			c.emit(vm.WithIndex(vm.OpLoadLocal, uint16(j)))
		}
		c.emit(vm.CallN(uint8(n)))
		c.emit(vm.Simple(vm.OpReturn))

		for _, site := range next {
			if err := c.patchJump(site); err != nil {
				return err
			}
		}
	}
	c.at(fn.SpanVal.Start)
	c.emit(vm.Simple(vm.OpNoMatch))

	return c.emitCallable(c.pop())
}

// compileArm compiles one arm body. Parameters occupy the first slots in
// order, as filled by Call; literal patterns get placeholder slots.
func (c *Compiler) compileArm(arm *Arm, name string) (*vm.CompiledBlock, error) {
	c.push(name)
	for j, p := range arm.Params {
		var err error
		if id, ok := p.(*Identifier); ok {
			_, err = c.declareLocal(id)
		} else {
			_, err = c.declareSlot(fmt.Sprintf("$%d", j))
		}
		if err != nil {
			return nil, err
		}
	}
	if err := c.compileExpr(arm.Body); err != nil {
		return nil, err
	}
	c.emit(vm.Simple(vm.OpReturn))
	return c.pop(), nil
}

func armName(fn string, i, n int) string {
	switch {
	case fn == "":
		return ""
	case n == 1:
		return fn
	}
	return fmt.Sprintf("%s/%d", fn, i+1)
}

// patternValue returns the value a literal pattern must equal. It reports
// false for binding patterns.
func patternValue(p Expr) (vm.Value, bool) {
	switch p := p.(type) {
	case *IntLiteral:
		return vm.Int(p.Value), true
	case *FloatLiteral:
		return vm.Float(p.Value), true
	case *CharLiteral:
		return vm.Char(p.Value), true
	case *BoolLiteral:
		return vm.Bool(p.Value), true
	case *NullLiteral:
		return vm.Null, true
	}
	return vm.Null, false
}
