package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for sloth source
// ---------------------------------------------------------------------------

// Lexer tokenizes sloth source code.
type Lexer struct {
	input   string
	pos     int  // offset of ch
	readPos int  // offset after ch
	ch      rune // current character, 0 at end of input
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// readChar advances to the next character, keeping line and column in step.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		l.readPos = len(l.input) + 1
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// NextToken returns the next token. After the input is exhausted it keeps
// returning EOF.
func (l *Lexer) NextToken() Token {
	tok := l.scan()
	tok.End = l.position()
	return tok
}

func (l *Lexer) scan() Token {
	l.skipSpaceAndComments()

	pos := l.position()
	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}
	}

	simple := func(tt TokenType, lit string) Token {
		for range utf8.RuneCountInString(lit) {
			l.readChar()
		}
		return Token{Type: tt, Literal: lit, Pos: pos}
	}

	switch ch := l.ch; {
	case ch == '\n':
		return simple(TokenNewline, "\n")
	case ch == '"':
		return l.readString(pos)
	case ch == '\'':
		return l.readCharLit(pos)
	case isDigit(ch):
		return l.readNumber(pos)
	case isLetter(ch):
		return l.readIdentifier(pos)
	case ch == '+':
		return simple(TokenPlus, "+")
	case ch == '-':
		return simple(TokenMinus, "-")
	case ch == '*':
		return simple(TokenStar, "*")
	case ch == '/':
		return simple(TokenSlash, "/")
	case ch == '%':
		return simple(TokenPercent, "%")
	case ch == '^':
		return simple(TokenCaret, "^")
	case ch == '=':
		if l.peekChar() == '=' {
			return simple(TokenEq, "==")
		}
		return simple(TokenAssign, "=")
	case ch == '!':
		if l.peekChar() == '=' {
			return simple(TokenNotEq, "!=")
		}
		return l.illegal(pos, "unexpected character '!'")
	case ch == '<':
		if l.peekChar() == '=' {
			return simple(TokenLtEq, "<=")
		}
		return simple(TokenLt, "<")
	case ch == '>':
		if l.peekChar() == '=' {
			return simple(TokenGtEq, ">=")
		}
		return simple(TokenGt, ">")
	case ch == ':':
		if l.peekChar() == '=' {
			return simple(TokenDefine, ":=")
		}
		return simple(TokenColon, ":")
	case ch == '(':
		return simple(TokenLParen, "(")
	case ch == ')':
		return simple(TokenRParen, ")")
	case ch == '{':
		return simple(TokenLBrace, "{")
	case ch == '}':
		return simple(TokenRBrace, "}")
	case ch == '|':
		return simple(TokenBar, "|")
	case ch == ',':
		return simple(TokenComma, ",")
	case ch == ';':
		return simple(TokenSemicolon, ";")
	}
	return l.illegal(pos, "unexpected character "+string(l.ch))
}

func (l *Lexer) illegal(pos Position, msg string) Token {
	l.readChar()
	return Token{Type: TokenIllegal, Literal: msg, Pos: pos}
}

// skipSpaceAndComments skips blanks and # comments, but not newlines.
func (l *Lexer) skipSpaceAndComments() {
	for !l.atEOF() {
		switch {
		case l.ch == '#':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		case l.ch != '\n' && unicode.IsSpace(l.ch):
			l.readChar()
		default:
			return
		}
	}
}

// readNumber reads an integer or float: digits, optional fraction, optional
// exponent.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return Token{Type: TokenIllegal, Literal: "malformed exponent", Pos: pos}
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	lit := l.input[start:l.pos]
	if isFloat {
		return Token{Type: TokenFloat, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenInt, Literal: lit, Pos: pos}
}

func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return Token{Type: lookupIdent(lit), Literal: lit, Pos: pos}
}

// readString reads a double-quoted string. The token literal holds the
// unescaped contents.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // opening quote
	var sb strings.Builder
	for {
		switch {
		case l.atEOF() || l.ch == '\n':
			return Token{Type: TokenIllegal, Literal: "unterminated string", Pos: pos}
		case l.ch == '"':
			l.readChar()
			return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
		case l.ch == '\\':
			l.readChar()
			r, ok := unescape(l.ch)
			if !ok {
				return l.illegal(pos, "unknown escape \\"+string(l.ch))
			}
			sb.WriteRune(r)
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readCharLit reads a single-quoted character literal.
func (l *Lexer) readCharLit(pos Position) Token {
	l.readChar() // opening quote
	r := l.ch
	switch {
	case l.atEOF() || r == '\n' || r == '\'':
		return Token{Type: TokenIllegal, Literal: "empty character literal", Pos: pos}
	case r == '\\':
		l.readChar()
		var ok bool
		if r, ok = unescape(l.ch); !ok {
			return l.illegal(pos, "unknown escape \\"+string(l.ch))
		}
	}
	l.readChar()
	if l.ch != '\'' {
		return Token{Type: TokenIllegal, Literal: "unterminated character literal", Pos: pos}
	}
	l.readChar()
	return Token{Type: TokenChar, Literal: string(r), Pos: pos}
}

func unescape(ch rune) (rune, bool) {
	switch ch {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\', '"', '\'':
		return ch, true
	}
	return 0, false
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

// Tokenize returns every token of input up to and including EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
