package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal
	TokenNewline

	// Literals
	TokenInt      // 42
	TokenFloat    // 3.14, 1.5e10
	TokenString   // "hello"
	TokenChar     // 'c'
	TokenIdent    // foo
	TokenTypeName // int, float, ...

	// Keywords
	TokenPrint
	TokenTrue
	TokenFalse
	TokenNull
	TokenDo
	TokenEnd
	TokenIf
	TokenThen
	TokenElse
	TokenAnd
	TokenOr
	TokenNot

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenCaret   // ^
	TokenEq      // ==
	TokenNotEq   // !=
	TokenLt      // <
	TokenGt      // >
	TokenLtEq    // <=
	TokenGtEq    // >=
	TokenAssign  // =
	TokenDefine  // :=

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenBar       // |
	TokenComma     // ,
	TokenColon     // :
	TokenSemicolon // ;
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIllegal:   "ILLEGAL",
	TokenNewline:   "NEWLINE",
	TokenInt:       "INT",
	TokenFloat:     "FLOAT",
	TokenString:    "STRING",
	TokenChar:      "CHAR",
	TokenIdent:     "IDENT",
	TokenTypeName:  "TYPE",
	TokenPrint:     "print",
	TokenTrue:      "true",
	TokenFalse:     "false",
	TokenNull:      "null",
	TokenDo:        "do",
	TokenEnd:       "end",
	TokenIf:        "if",
	TokenThen:      "then",
	TokenElse:      "else",
	TokenAnd:       "and",
	TokenOr:        "or",
	TokenNot:       "not",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenCaret:     "^",
	TokenEq:        "==",
	TokenNotEq:     "!=",
	TokenLt:        "<",
	TokenGt:        ">",
	TokenLtEq:      "<=",
	TokenGtEq:      ">=",
	TokenAssign:    "=",
	TokenDefine:    ":=",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenBar:       "|",
	TokenComma:     ",",
	TokenColon:     ":",
	TokenSemicolon: ";",
}

// String returns the string representation of a token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	End     Position // exclusive
}

// String returns a string representation of the token.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenNewline:
		return "newline"
	case TokenString:
		return fmt.Sprintf("%q", t.Literal)
	}
	return t.Literal
}

var keywords = map[string]TokenType{
	"print": TokenPrint,
	"true":  TokenTrue,
	"false": TokenFalse,
	"null":  TokenNull,
	"do":    TokenDo,
	"end":   TokenEnd,
	"if":    TokenIf,
	"then":  TokenThen,
	"else":  TokenElse,
	"and":   TokenAnd,
	"or":    TokenOr,
	"not":   TokenNot,
}

// typeNames maps annotation keywords to checker types.
var typeNames = map[string]Type{
	"int":   TypeInt,
	"float": TypeFloat,
	"bool":  TypeBool,
	"str":   TypeStr,
	"char":  TypeChar,
	"fn":    TypeFn,
	"any":   TypeAny,
}

// lookupIdent classifies an identifier as keyword, type name or plain name.
func lookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	if _, ok := typeNames[ident]; ok {
		return TokenTypeName
	}
	return TokenIdent
}

// Keywords returns the reserved words, including type names, sorted.
func Keywords() []string {
	words := make([]string, 0, len(keywords)+len(typeNames))
	for w := range keywords {
		words = append(words, w)
	}
	for w := range typeNames {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
