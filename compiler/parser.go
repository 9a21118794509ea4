package compiler

import (
	"fmt"
	"strconv"
)

// MaxArity bounds both call arguments and arm parameters; Call encodes the
// count in one byte.
const MaxArity = 255

// SyntaxError is the first error found while parsing.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for sloth
// ---------------------------------------------------------------------------

// Parser parses sloth source code into an AST. Parsing stops at the first
// error.
type Parser struct {
	lexer   *Lexer
	cur     Token
	peek    Token
	prevEnd Position // end of the last consumed token
	err     *SyntaxError
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill cur and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program.
func Parse(input string) (*Block, error) {
	return NewParser(input).ParseProgram()
}

func (p *Parser) nextToken() {
	p.prevEnd = p.cur.End
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) curIs(t TokenType) bool {
	return p.cur.Type == t
}

func (p *Parser) curIsAny(ts []TokenType) bool {
	for _, t := range ts {
		if p.cur.Type == t {
			return true
		}
	}
	return false
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curIs(t) {
		p.nextToken()
		return true
	}
	p.unexpected("expected " + t.String())
	return false
}

func (p *Parser) errorf(pos Position, format string, args ...interface{}) {
	if p.err == nil {
		p.err = &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
	}
}

// unexpected reports the current token, preferring the lexer's message for
// illegal tokens.
func (p *Parser) unexpected(context string) {
	if p.curIs(TokenIllegal) {
		p.errorf(p.cur.Pos, "%s", p.cur.Literal)
		return
	}
	p.errorf(p.cur.Pos, "%s, found %s", context, p.cur)
}

func (p *Parser) skipNewlines() {
	for p.curIs(TokenNewline) {
		p.nextToken()
	}
}

func (p *Parser) skipSeparators() {
	for p.curIs(TokenNewline) || p.curIs(TokenSemicolon) {
		p.nextToken()
	}
}

func (p *Parser) spanFrom(start Position) Span {
	return Span{Start: start, End: p.prevEnd}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses statements up to EOF.
func (p *Parser) ParseProgram() (*Block, error) {
	start := p.cur.Pos
	stmts := p.parseStatements()
	if p.err != nil {
		return nil, p.err
	}
	return &Block{SpanVal: Span{Start: start, End: p.cur.End}, Statements: stmts}, nil
}

// parseStatements parses separated statements until EOF or one of the
// terminators, which is left unconsumed.
func (p *Parser) parseStatements(terminators ...TokenType) []Stmt {
	var stmts []Stmt
	for {
		p.skipSeparators()
		if p.curIs(TokenEOF) || p.curIsAny(terminators) {
			return stmts
		}
		s := p.parseStatement()
		if p.err != nil {
			return nil
		}
		stmts = append(stmts, s)
		switch {
		case p.curIs(TokenNewline), p.curIs(TokenSemicolon), p.curIs(TokenEOF), p.curIsAny(terminators):
		default:
			p.unexpected("expected end of statement")
			return nil
		}
	}
}

func (p *Parser) parseStatement() Stmt {
	if p.curIs(TokenIdent) {
		switch p.peek.Type {
		case TokenDefine, TokenColon:
			return p.parseDefinition()
		case TokenAssign:
			return p.parseAssignment()
		}
	}
	start := p.cur.Pos
	x := p.parseExpr()
	return &ExprStmt{SpanVal: p.spanFrom(start), X: x}
}

func (p *Parser) parseName() *Identifier {
	id := &Identifier{SpanVal: Span{Start: p.cur.Pos, End: p.cur.End}, Name: p.cur.Literal}
	p.nextToken()
	return id
}

// parseDefinition parses `x := e`, `x: T` and `x: T = e`.
func (p *Parser) parseDefinition() Stmt {
	start := p.cur.Pos
	def := &Definition{Name: p.parseName()}
	if p.curIs(TokenDefine) {
		p.nextToken()
		p.skipNewlines()
		def.Value = p.parseExpr()
		def.SpanVal = p.spanFrom(start)
		return def
	}
	p.nextToken() // ':'
	if !p.curIs(TokenTypeName) {
		p.unexpected("expected type name")
		return def
	}
	def.Type = typeNames[p.cur.Literal]
	p.nextToken()
	if p.curIs(TokenAssign) {
		p.nextToken()
		p.skipNewlines()
		def.Value = p.parseExpr()
	}
	def.SpanVal = p.spanFrom(start)
	return def
}

func (p *Parser) parseAssignment() Stmt {
	start := p.cur.Pos
	name := p.parseName()
	p.nextToken() // '='
	p.skipNewlines()
	value := p.parseExpr()
	return &Assignment{SpanVal: p.spanFrom(start), Name: name, Value: value}
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

func (p *Parser) parseExpr() Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() Expr {
	start := p.cur.Pos
	left := p.parseAnd()
	for p.err == nil && p.curIs(TokenOr) {
		p.nextToken()
		p.skipNewlines()
		right := p.parseAnd()
		left = &LogicalExpr{SpanVal: p.spanFrom(start), Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	start := p.cur.Pos
	left := p.parseNot()
	for p.err == nil && p.curIs(TokenAnd) {
		p.nextToken()
		p.skipNewlines()
		right := p.parseNot()
		left = &LogicalExpr{SpanVal: p.spanFrom(start), And: true, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseNot() Expr {
	if p.curIs(TokenNot) {
		start := p.cur.Pos
		p.nextToken()
		operand := p.parseNot()
		return &NotExpr{SpanVal: p.spanFrom(start), Operand: operand}
	}
	return p.parseComparison()
}

var comparisonOps = map[TokenType]Operator{
	TokenEq:    OpEqual,
	TokenNotEq: OpNotEqual,
	TokenLt:    OpLess,
	TokenGt:    OpGreater,
	TokenLtEq:  OpLessEqual,
	TokenGtEq:  OpGreaterEqual,
}

var additiveOps = map[TokenType]Operator{
	TokenPlus:  OpPlus,
	TokenMinus: OpMinus,
}

var multiplicativeOps = map[TokenType]Operator{
	TokenStar:    OpTimes,
	TokenSlash:   OpDivide,
	TokenPercent: OpModulo,
}

// parseBinary parses a left-associative level of the operator table.
func (p *Parser) parseBinary(ops map[TokenType]Operator, next func() Expr) Expr {
	start := p.cur.Pos
	left := next()
	for p.err == nil {
		op, ok := ops[p.cur.Type]
		if !ok {
			return left
		}
		opPos := p.cur.Pos
		p.nextToken()
		p.skipNewlines()
		right := next()
		left = &BinaryExpr{SpanVal: p.spanFrom(start), OpPos: opPos, Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseComparison() Expr {
	return p.parseBinary(comparisonOps, p.parseAdditive)
}

func (p *Parser) parseAdditive() Expr {
	return p.parseBinary(additiveOps, p.parseTerm)
}

func (p *Parser) parseTerm() Expr {
	return p.parseBinary(multiplicativeOps, p.parsePower)
}

// parsePower parses right-associative exponentiation.
func (p *Parser) parsePower() Expr {
	start := p.cur.Pos
	left := p.parseUnary()
	if p.err != nil || !p.curIs(TokenCaret) {
		return left
	}
	opPos := p.cur.Pos
	p.nextToken()
	p.skipNewlines()
	right := p.parsePower()
	return &BinaryExpr{SpanVal: p.spanFrom(start), OpPos: opPos, Op: OpPower, Left: left, Right: right}
}

// parseUnary parses negation. A minus directly before a number literal is
// folded into the literal, so the most negative int is expressible.
func (p *Parser) parseUnary() Expr {
	if !p.curIs(TokenMinus) {
		return p.parsePostfix()
	}
	start := p.cur.Pos
	p.nextToken()
	if p.curIs(TokenInt) || p.curIs(TokenFloat) {
		lit := p.parseNumber(start, "-")
		return p.parseCalls(start, lit)
	}
	operand := p.parseUnary()
	return &NegateExpr{SpanVal: p.spanFrom(start), Operand: operand}
}

func (p *Parser) parsePostfix() Expr {
	start := p.cur.Pos
	return p.parseCalls(start, p.parsePrimary())
}

// parseCalls parses any call suffixes after callee. The '(' must be on the
// same line as the callee.
func (p *Parser) parseCalls(start Position, callee Expr) Expr {
	for p.err == nil && p.curIs(TokenLParen) {
		open := p.cur.Pos
		p.nextToken()
		p.skipNewlines()
		var args []Expr
		for p.err == nil && !p.curIs(TokenRParen) {
			args = append(args, p.parseExpr())
			p.skipNewlines()
			if !p.curIs(TokenComma) {
				break
			}
			p.nextToken()
			p.skipNewlines()
		}
		if !p.expect(TokenRParen) {
			return callee
		}
		if len(args) > MaxArity {
			p.errorf(open, "too many arguments (%d, max %d)", len(args), MaxArity)
			return callee
		}
		callee = &CallExpr{SpanVal: p.spanFrom(start), Callee: callee, Args: args}
	}
	return callee
}

func (p *Parser) parsePrimary() Expr {
	start := p.cur.Pos
	switch p.cur.Type {
	case TokenInt, TokenFloat:
		return p.parseNumber(start, "")
	case TokenString:
		lit := &StringLiteral{SpanVal: Span{Start: start, End: p.cur.End}, Value: p.cur.Literal}
		p.nextToken()
		return lit
	case TokenChar:
		r := []rune(p.cur.Literal)[0]
		lit := &CharLiteral{SpanVal: Span{Start: start, End: p.cur.End}, Value: r}
		p.nextToken()
		return lit
	case TokenTrue, TokenFalse:
		lit := &BoolLiteral{SpanVal: Span{Start: start, End: p.cur.End}, Value: p.curIs(TokenTrue)}
		p.nextToken()
		return lit
	case TokenNull:
		lit := &NullLiteral{SpanVal: Span{Start: start, End: p.cur.End}}
		p.nextToken()
		return lit
	case TokenIdent:
		return p.parseName()
	case TokenLParen:
		p.nextToken()
		p.skipNewlines()
		x := p.parseExpr()
		p.skipNewlines()
		p.expect(TokenRParen)
		return x
	case TokenPrint:
		p.nextToken()
		operand := p.parseExpr()
		return &PrintExpr{SpanVal: p.spanFrom(start), Operand: operand}
	case TokenDo:
		p.nextToken()
		stmts := p.parseStatements(TokenEnd)
		p.expect(TokenEnd)
		return &Block{SpanVal: p.spanFrom(start), Statements: stmts}
	case TokenIf:
		return p.parseIf()
	case TokenLBrace:
		return p.parseFunction()
	}
	p.unexpected("expected expression")
	return &NullLiteral{SpanVal: Span{Start: start, End: start}}
}

// parseNumber parses the current int or float token, with sign prepended
// to the literal text.
func (p *Parser) parseNumber(start Position, sign string) Expr {
	tok := p.cur
	p.nextToken()
	span := Span{Start: start, End: tok.End}
	if tok.Type == TokenFloat {
		f, err := strconv.ParseFloat(sign+tok.Literal, 64)
		if err != nil {
			p.errorf(tok.Pos, "float literal %s%s out of range", sign, tok.Literal)
		}
		return &FloatLiteral{SpanVal: span, Value: f}
	}
	i, err := strconv.ParseInt(sign+tok.Literal, 10, 64)
	if err != nil {
		p.errorf(tok.Pos, "integer literal %s%s out of range", sign, tok.Literal)
	}
	return &IntLiteral{SpanVal: span, Value: i}
}

// parseIf parses `if c then ... [else ...] end`.
func (p *Parser) parseIf() Expr {
	start := p.cur.Pos
	p.nextToken()
	cond := p.parseExpr()
	p.skipNewlines()
	if !p.expect(TokenThen) {
		return cond
	}
	thenStart := p.prevEnd
	then := &Block{Statements: p.parseStatements(TokenElse, TokenEnd)}
	then.SpanVal = Span{Start: thenStart, End: p.cur.Pos}
	var els *Block
	if p.curIs(TokenElse) {
		p.nextToken()
		elseStart := p.prevEnd
		els = &Block{Statements: p.parseStatements(TokenEnd)}
		els.SpanVal = Span{Start: elseStart, End: p.cur.Pos}
	}
	p.expect(TokenEnd)
	return &IfExpr{SpanVal: p.spanFrom(start), Cond: cond, Then: then, Else: els}
}

// parseFunction parses `{ |pats| body, |pats| body }`. Arms are separated
// by commas or line breaks.
func (p *Parser) parseFunction() Expr {
	start := p.cur.Pos
	p.nextToken() // '{'
	fn := &FunctionLiteral{}
	for p.err == nil {
		p.skipSeparators()
		if p.curIs(TokenRBrace) {
			break
		}
		arm := p.parseArm()
		if p.err != nil {
			break
		}
		fn.Arms = append(fn.Arms, arm)
		sep := p.curIs(TokenNewline) || p.curIs(TokenSemicolon)
		p.skipSeparators()
		if p.curIs(TokenComma) {
			p.nextToken()
			continue
		}
		if !sep && !p.curIs(TokenRBrace) {
			p.unexpected("expected ',' or '}' after arm")
		}
	}
	p.expect(TokenRBrace)
	if p.err == nil && len(fn.Arms) == 0 {
		p.errorf(start, "function literal needs at least one arm")
	}
	fn.SpanVal = p.spanFrom(start)
	return fn
}

func (p *Parser) parseArm() *Arm {
	start := p.cur.Pos
	if !p.expect(TokenBar) {
		return nil
	}
	arm := &Arm{}
	p.skipNewlines()
	for p.err == nil && !p.curIs(TokenBar) {
		arm.Params = append(arm.Params, p.parsePattern())
		p.skipNewlines()
		if !p.curIs(TokenComma) {
			break
		}
		p.nextToken()
		p.skipNewlines()
	}
	if !p.expect(TokenBar) {
		return nil
	}
	if len(arm.Params) > MaxArity {
		p.errorf(start, "too many parameters (%d, max %d)", len(arm.Params), MaxArity)
		return nil
	}
	p.skipNewlines()
	arm.Body = p.parseExpr()
	arm.SpanVal = p.spanFrom(start)
	return arm
}

// parsePattern parses a binding name or a literal to match.
func (p *Parser) parsePattern() Expr {
	switch p.cur.Type {
	case TokenString:
		p.errorf(p.cur.Pos, "string patterns are not supported")
		return nil
	case TokenIdent, TokenInt, TokenFloat, TokenChar, TokenTrue, TokenFalse, TokenNull:
		return p.parsePrimary()
	case TokenMinus:
		if p.peek.Type == TokenInt || p.peek.Type == TokenFloat {
			start := p.cur.Pos
			p.nextToken()
			return p.parseNumber(start, "-")
		}
	}
	p.unexpected("expected pattern")
	return nil
}
