// File: lexer.go
// Title: Formula Lexical Analyzer (Tokenizer)
// Description: Converts formula expression strings into streams of tokens
//              for the parser. Handles literals, identifiers, keyword and
//              symbolic operators and keeps position information for
//              error reporting.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial lexer implementation
// - 2026-10-19 v0.2.0: Arithmetic and symbolic boolean operators, string
//                      escapes, dropped command delimiters

package parser

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Identifiers and literals
	TokenIdentifier // _this, amount, name
	TokenString     // "string literal", 'string literal'
	TokenNumber     // 123, 123.45
	TokenBoolean    // true, false
	TokenNull       // null

	// Operators
	TokenDot       // .
	TokenEquals    // = ==
	TokenNotEquals // != <>
	TokenLess      // <
	TokenLessEq    // <=
	TokenGreater   // >
	TokenGreaterEq // >=
	TokenAnd       // AND &&
	TokenOr        // OR ||
	TokenNot       // NOT !
	TokenLike      // LIKE
	TokenIn        // IN
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %

	// Delimiters
	TokenLeftBracket  // [
	TokenRightBracket // ]
	TokenLeftParen    // (
	TokenRightParen   // )
	TokenComma        // ,
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenIllegal:      "ILLEGAL",
	TokenIdentifier:   "IDENTIFIER",
	TokenString:       "STRING",
	TokenNumber:       "NUMBER",
	TokenBoolean:      "BOOLEAN",
	TokenNull:         "NULL",
	TokenDot:          "DOT",
	TokenEquals:       "EQUALS",
	TokenNotEquals:    "NOT_EQUALS",
	TokenLess:         "LESS",
	TokenLessEq:       "LESS_EQ",
	TokenGreater:      "GREATER",
	TokenGreaterEq:    "GREATER_EQ",
	TokenAnd:          "AND",
	TokenOr:           "OR",
	TokenNot:          "NOT",
	TokenLike:         "LIKE",
	TokenIn:           "IN",
	TokenPlus:         "PLUS",
	TokenMinus:        "MINUS",
	TokenStar:         "STAR",
	TokenSlash:        "SLASH",
	TokenPercent:      "PERCENT",
	TokenLeftBracket:  "LEFT_BRACKET",
	TokenRightBracket: "RIGHT_BRACKET",
	TokenLeftParen:    "LEFT_PAREN",
	TokenRightParen:   "RIGHT_PAREN",
	TokenComma:        "COMMA",
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token with position information
type Token struct {
	Type     TokenType // Token type
	Value    string    // Token text (unescaped for strings)
	Position int       // Byte position in input
	Line     int       // Line number (1-based)
	Column   int       // Column number (1-based)
}

// String returns a string representation of the token
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenIllegal:
		return fmt.Sprintf("ILLEGAL(%s)", t.Value)
	default:
		return fmt.Sprintf("%s(%s)", t.Type.String(), t.Value)
	}
}

// Lexer performs lexical analysis of formula input
type Lexer struct {
	input    string // Input string
	position int    // Current position in input (points to current char)
	readPos  int    // Current reading position (after current char)
	ch       byte   // Current char under examination
	line     int    // Current line number (1-based)
	column   int    // Current column number (1-based)
}

// NewLexer creates a new lexer for the given input
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos, line, column := l.position, l.line, l.column
	tok := func(tt TokenType, value string) Token {
		return Token{Type: tt, Value: value, Position: pos, Line: line, Column: column}
	}
	two := func(tt TokenType) Token {
		value := string(l.ch) + string(l.peekChar())
		l.readChar()
		l.readChar()
		return tok(tt, value)
	}
	one := func(tt TokenType) Token {
		value := string(l.ch)
		l.readChar()
		return tok(tt, value)
	}

	switch l.ch {
	case 0:
		return tok(TokenEOF, "")
	case '=':
		if l.peekChar() == '=' {
			return two(TokenEquals)
		}
		return one(TokenEquals)
	case '!':
		if l.peekChar() == '=' {
			return two(TokenNotEquals)
		}
		return one(TokenNot)
	case '<':
		switch l.peekChar() {
		case '=':
			return two(TokenLessEq)
		case '>':
			return two(TokenNotEquals)
		}
		return one(TokenLess)
	case '>':
		if l.peekChar() == '=' {
			return two(TokenGreaterEq)
		}
		return one(TokenGreater)
	case '&':
		if l.peekChar() == '&' {
			return two(TokenAnd)
		}
		return one(TokenIllegal)
	case '|':
		if l.peekChar() == '|' {
			return two(TokenOr)
		}
		return one(TokenIllegal)
	case '.':
		return one(TokenDot)
	case '+':
		return one(TokenPlus)
	case '-':
		return one(TokenMinus)
	case '*':
		return one(TokenStar)
	case '/':
		return one(TokenSlash)
	case '%':
		return one(TokenPercent)
	case '[':
		return one(TokenLeftBracket)
	case ']':
		return one(TokenRightBracket)
	case '(':
		return one(TokenLeftParen)
	case ')':
		return one(TokenRightParen)
	case ',':
		return one(TokenComma)
	case '"', '\'':
		value, ok := l.readString(l.ch)
		if !ok {
			return tok(TokenIllegal, "unterminated string")
		}
		return tok(TokenString, value)
	}

	if isLetter(l.ch) {
		value := l.readIdentifier()
		return tok(lookupIdent(value), value)
	}
	if isDigit(l.ch) {
		return tok(TokenNumber, l.readNumber())
	}
	return one(TokenIllegal)
}

// Tokenize returns all tokens from the input as a slice
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
		if tok.Type == TokenIllegal {
			return tokens, fmt.Errorf("illegal input '%s' at line %d, column %d (position %d)",
				tok.Value, tok.Line, tok.Column, tok.Position)
		}
	}
}

// readChar reads the next character and advances position
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL represents EOF
	} else {
		l.ch = l.input[l.readPos]
	}

	l.position = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber reads an integer or decimal literal
func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.position]
}

// readString reads a quoted literal and resolves escape sequences. The
// closing quote is consumed.
func (l *Lexer) readString(quote byte) (string, bool) {
	var sb strings.Builder
	for {
		l.readChar()
		switch l.ch {
		case 0:
			return sb.String(), false
		case quote:
			l.readChar()
			return sb.String(), true
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 0:
				return sb.String(), false
			default:
				sb.WriteByte(l.ch)
			}
		default:
			sb.WriteByte(l.ch)
		}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// isLetter checks if the character may start an identifier
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$' || ch > 127
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// keywords are matched case-insensitively
var keywords = map[string]TokenType{
	"AND":   TokenAnd,
	"OR":    TokenOr,
	"NOT":   TokenNot,
	"LIKE":  TokenLike,
	"IN":    TokenIn,
	"TRUE":  TokenBoolean,
	"FALSE": TokenBoolean,
	"NULL":  TokenNull,
	"NIL":   TokenNull,
}

// lookupIdent determines if an identifier is a keyword or regular identifier
func lookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToUpper(ident)]; ok {
		return tok
	}
	return TokenIdentifier
}

// IsKeyword checks if a string is a formula keyword
func IsKeyword(s string) bool {
	_, ok := keywords[strings.ToUpper(s)]
	return ok
}

// TokenizeInput tokenizes input and returns tokens or error
func TokenizeInput(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}
