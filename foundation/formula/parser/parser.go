// File: parser.go
// Title: Formula Recursive Descent Parser
// Description: Converts token streams into expression ASTs using recursive
//              descent parsing with operator precedence:
//              OR < AND < equality < comparison < additive <
//              multiplicative < unary < postfix (member, index, call).
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial parser implementation
// - 2026-10-19 v0.2.0: Expression-only grammar with arithmetic, member
//                      access, indexing and method calls

package parser

import (
	"fmt"
	"strconv"
	"strings"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
	mdwast "github.com/msto63/guardian/foundation/formula/ast"
)

// Parser implements recursive descent parsing for formula expressions.
// A Parser is not safe for concurrent use; create one per goroutine or use
// the package-level Parse function.
type Parser struct {
	lexer    *Lexer
	current  Token // Current token
	previous Token // Previous token
	logger   *mdwlog.Logger
	options  Options
}

// Options configures parser behavior
type Options struct {
	Logger         *mdwlog.Logger
	MaxInputLength int
}

// ParseError represents a parsing error with position information
type ParseError struct {
	Message  string
	Position int
	Line     int
	Column   int
	Token    Token
}

func (pe *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s (near '%s')",
		pe.Line, pe.Column, pe.Message, pe.Token.Value)
}

// New creates a new parser with the given options
func New(opts Options) *Parser {
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.MaxInputLength == 0 {
		opts.MaxInputLength = 4096
	}
	return &Parser{
		logger:  opts.Logger.WithField("component", "formula-parser"),
		options: opts,
	}
}

// Parse parses a single expression with default options
func Parse(input string) (mdwast.Expr, error) {
	return New(Options{}).Parse(input)
}

// Parse parses an expression string and returns its AST
func (p *Parser) Parse(input string) (mdwast.Expr, error) {
	if len(input) > p.options.MaxInputLength {
		return nil, &ParseError{
			Message: fmt.Sprintf("input exceeds maximum length: %d > %d", len(input), p.options.MaxInputLength),
			Line:    1,
			Column:  1,
		}
	}
	if strings.TrimSpace(input) == "" {
		return nil, &ParseError{Message: "empty expression", Line: 1, Column: 1}
	}

	p.lexer = NewLexer(input)
	p.advance()

	expr, err := p.parseExpression()
	if err == nil && p.current.Type != TokenEOF {
		err = p.parseError(fmt.Sprintf("unexpected token after expression: %s", p.current.Value))
	}
	if err != nil {
		p.logger.Debug("Formula parsing failed", mdwlog.Fields{
			"input": input,
			"error": err.Error(),
		})
		return nil, err
	}

	p.logger.Trace("Formula parsed", mdwlog.Fields{"input": input})
	return expr, nil
}

func (p *Parser) parseExpression() (mdwast.Expr, error) {
	return p.parseOrExpression()
}

// binaryLevel parses a left-associative chain of operators of one
// precedence level.
func (p *Parser) binaryLevel(next func() (mdwast.Expr, error), ops map[TokenType]string) (mdwast.Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[p.current.Type]
		if !ok {
			return left, nil
		}
		pos := p.currentPosition()
		p.advance()

		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &mdwast.BinaryExpr{Left: left, Op: op, Right: right, Pos: pos}
	}
}

var (
	orOps             = map[TokenType]string{TokenOr: "OR"}
	andOps            = map[TokenType]string{TokenAnd: "AND"}
	equalityOps       = map[TokenType]string{TokenEquals: "=", TokenNotEquals: "!="}
	comparisonOps     = map[TokenType]string{TokenLess: "<", TokenLessEq: "<=", TokenGreater: ">", TokenGreaterEq: ">=", TokenLike: "LIKE", TokenIn: "IN"}
	additiveOps       = map[TokenType]string{TokenPlus: "+", TokenMinus: "-"}
	multiplicativeOps = map[TokenType]string{TokenStar: "*", TokenSlash: "/", TokenPercent: "%"}
)

// parseOrExpression parses OR expressions (lowest precedence)
func (p *Parser) parseOrExpression() (mdwast.Expr, error) {
	return p.binaryLevel(p.parseAndExpression, orOps)
}

func (p *Parser) parseAndExpression() (mdwast.Expr, error) {
	return p.binaryLevel(p.parseEqualityExpression, andOps)
}

func (p *Parser) parseEqualityExpression() (mdwast.Expr, error) {
	return p.binaryLevel(p.parseComparisonExpression, equalityOps)
}

// parseComparisonExpression parses comparison expressions (<, >, <=, >=, LIKE, IN)
func (p *Parser) parseComparisonExpression() (mdwast.Expr, error) {
	return p.binaryLevel(p.parseAdditiveExpression, comparisonOps)
}

func (p *Parser) parseAdditiveExpression() (mdwast.Expr, error) {
	return p.binaryLevel(p.parseMultiplicativeExpression, additiveOps)
}

func (p *Parser) parseMultiplicativeExpression() (mdwast.Expr, error) {
	return p.binaryLevel(p.parseUnaryExpression, multiplicativeOps)
}

// parseUnaryExpression parses unary expressions (NOT, !, -)
func (p *Parser) parseUnaryExpression() (mdwast.Expr, error) {
	var op string
	switch p.current.Type {
	case TokenNot:
		op = "NOT"
	case TokenMinus:
		op = "-"
	default:
		return p.parsePostfixExpression()
	}

	pos := p.currentPosition()
	p.advance()
	expr, err := p.parseUnaryExpression()
	if err != nil {
		return nil, err
	}
	return &mdwast.UnaryExpr{Op: op, Expr: expr, Pos: pos}, nil
}

// parsePostfixExpression parses member access, indexing and method calls
func (p *Parser) parsePostfixExpression() (mdwast.Expr, error) {
	expr, err := p.parsePrimaryExpression()
	if err != nil {
		return nil, err
	}

	for {
		pos := p.currentPosition()
		switch p.current.Type {
		case TokenDot:
			p.advance()
			if p.current.Type != TokenIdentifier && !IsKeyword(p.current.Value) {
				return nil, p.parseError("expected member name after '.'")
			}
			name := p.current.Value
			p.advance()
			if p.current.Type == TokenLeftParen {
				args, err := p.parseArguments()
				if err != nil {
					return nil, err
				}
				expr = &mdwast.MethodCallExpr{Object: expr, Name: name, Args: args, Pos: pos}
				continue
			}
			expr = &mdwast.MemberExpr{Object: expr, Name: name, Pos: pos}

		case TokenLeftBracket:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if p.current.Type != TokenRightBracket {
				return nil, p.parseError("expected ']' after index")
			}
			p.advance()
			expr = &mdwast.IndexExpr{Object: expr, Index: index, Pos: pos}

		default:
			return expr, nil
		}
	}
}

// parsePrimaryExpression parses literals, identifiers, function calls,
// parentheses and arrays
func (p *Parser) parsePrimaryExpression() (mdwast.Expr, error) {
	pos := p.currentPosition()

	switch p.current.Type {
	case TokenIdentifier:
		name := p.current.Value
		p.advance()
		if p.current.Type == TokenLeftParen {
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			return &mdwast.FunctionCallExpr{Name: name, Args: args, Pos: pos}, nil
		}
		return &mdwast.IdentifierExpr{Name: name, Pos: pos}, nil

	case TokenString, TokenNumber, TokenBoolean, TokenNull:
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &mdwast.LiteralExpr{Value: value, Pos: pos}, nil

	case TokenLeftParen:
		p.advance() // consume '('
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRightParen {
			return nil, p.parseError("expected ')' after expression")
		}
		p.advance() // consume ')'
		return expr, nil

	case TokenLeftBracket:
		return p.parseArrayExpression()

	case TokenIllegal:
		return nil, p.parseError(fmt.Sprintf("illegal input: %s", p.current.Value))

	default:
		return nil, p.parseError(fmt.Sprintf("unexpected token in expression: %s", p.current.Type.String()))
	}
}

// parseArguments parses a parenthesized, comma separated argument list
func (p *Parser) parseArguments() ([]mdwast.Expr, error) {
	p.advance() // consume '('

	var args []mdwast.Expr
	if p.current.Type != TokenRightParen {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.current.Type != TokenComma {
				break
			}
			p.advance() // consume ','
		}
	}

	if p.current.Type != TokenRightParen {
		return nil, p.parseError("expected ')' after arguments")
	}
	p.advance() // consume ')'
	return args, nil
}

// parseArrayExpression parses an array literal [elem1, elem2, ...]
func (p *Parser) parseArrayExpression() (mdwast.Expr, error) {
	pos := p.currentPosition()
	p.advance() // consume '['

	var elements []mdwast.Expr
	if p.current.Type != TokenRightBracket {
		for {
			elem, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			elements = append(elements, elem)
			if p.current.Type != TokenComma {
				break
			}
			p.advance() // consume ','
		}
	}

	if p.current.Type != TokenRightBracket {
		return nil, p.parseError("expected ']' after array elements")
	}
	p.advance() // consume ']'

	return &mdwast.ArrayExpr{Elements: elements, Pos: pos}, nil
}

// parseValue converts the current literal token into a Go value
func (p *Parser) parseValue() (interface{}, error) {
	tok := p.current
	p.advance()

	switch tok.Type {
	case TokenString:
		return tok.Value, nil
	case TokenNumber:
		if strings.Contains(tok.Value, ".") {
			f, err := strconv.ParseFloat(tok.Value, 64)
			if err != nil {
				return nil, p.tokenError(tok, "invalid number")
			}
			return f, nil
		}
		i, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(tok.Value, 64)
			if ferr != nil {
				return nil, p.tokenError(tok, "invalid number")
			}
			return f, nil
		}
		return i, nil
	case TokenBoolean:
		return strings.EqualFold(tok.Value, "true"), nil
	case TokenNull:
		return nil, nil
	default:
		return nil, p.tokenError(tok, fmt.Sprintf("expected value, got %s", tok.Type.String()))
	}
}

// Utility methods

// advance moves to the next token
func (p *Parser) advance() {
	p.previous = p.current
	p.current = p.lexer.NextToken()
}

// currentPosition returns the current AST position
func (p *Parser) currentPosition() mdwast.Position {
	return mdwast.Position{
		Line:   p.current.Line,
		Column: p.current.Column,
		Offset: p.current.Position,
	}
}

// parseError creates a parse error at the current token
func (p *Parser) parseError(message string) error {
	return p.tokenError(p.current, message)
}

func (p *Parser) tokenError(tok Token, message string) error {
	return &ParseError{
		Message:  message,
		Position: tok.Position,
		Line:     tok.Line,
		Column:   tok.Column,
		Token:    tok,
	}
}
