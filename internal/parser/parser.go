// internal/parser/parser.go
package parser

import (
	"strings"

	"adv/internal/errors"
	"adv/internal/lexer"
)

type Parser struct {
	tokens  []lexer.Token
	current int
	file    string
}

func NewParser(file string, tokens []lexer.Token) *Parser {
	return &Parser{
		tokens: tokens,
		file:   file,
	}
}

// Parse reads the metadata header and every class declaration in the
// token stream, and checks the target version.
func (p *Parser) Parse() (Metadata, []Class, error) {
	metadata, err := p.metadata()
	if err != nil {
		return Metadata{}, nil, err
	}
	if metadata.Target != CurrentVersion {
		return Metadata{}, nil, errors.New(errors.VersionMismatch,
			"program targets '%s', running '%s'", metadata.Target, CurrentVersion)
	}

	var classes []Class
	for !p.isAtEnd() {
		class, err := p.class()
		if err != nil {
			return Metadata{}, nil, err
		}
		classes = append(classes, class)
	}
	return metadata, classes, nil
}

// metadata parses the "name: value" header entries that precede the
// first class declaration.
func (p *Parser) metadata() (Metadata, error) {
	result := DefaultMetadata()
	for p.check(lexer.TokenIdentifier) {
		name := p.advance().Lexeme
		if _, err := p.consume(lexer.TokenBlockStart, "expected ':' after metadata entry name"); err != nil {
			return Metadata{}, err
		}
		valueTok, err := p.consume(lexer.TokenIdentifier, "expected a value after ':'")
		if err != nil {
			return Metadata{}, err
		}
		value := stripQuotes(valueTok.Lexeme)
		switch name {
		case "target":
			result.Target = value
		case "import":
			result.Imports = append(result.Imports, value)
		case "entrypoint":
			result.Entrypoints = append(result.Entrypoints, value)
		default:
			return Metadata{}, errors.NewAt(errors.UnexpectedToken, p.location(valueTok),
				"'%s' is not a valid metadata entry", name)
		}
	}
	return result, nil
}

func (p *Parser) class() (Class, error) {
	if _, err := p.consume(lexer.TokenClass, "expected a class declaration"); err != nil {
		return Class{}, err
	}
	nameTok, err := p.consume(lexer.TokenIdentifier, "expected a class name")
	if err != nil {
		return Class{}, err
	}
	if _, err := p.consume(lexer.TokenExtends, "expected 'extends'"); err != nil {
		return Class{}, err
	}
	parentTok, err := p.consume(lexer.TokenIdentifier, "expected a parent class name")
	if err != nil {
		return Class{}, err
	}
	if _, err := p.consume(lexer.TokenBlockStart, "expected ':' after class header"); err != nil {
		return Class{}, err
	}

	result := Class{Name: nameTok.Lexeme, Parent: parentTok.Lexeme}
	for {
		switch {
		case p.match(lexer.TokenField):
			fieldTok, err := p.consume(lexer.TokenIdentifier, "expected a field name")
			if err != nil {
				return Class{}, err
			}
			result.OwnFields = append(result.OwnFields, fieldTok.Lexeme)
		case p.match(lexer.TokenMethod):
			method, err := p.method()
			if err != nil {
				return Class{}, err
			}
			result.OwnMethods = append(result.OwnMethods, method)
		case p.match(lexer.TokenEnd):
			return result, nil
		default:
			return Class{}, p.unexpected("expected 'field', 'method' or 'end'")
		}
	}
}

func (p *Parser) method() (Method, error) {
	nameTok, err := p.consume(lexer.TokenIdentifier, "expected a method name")
	if err != nil {
		return Method{}, err
	}
	params, err := p.identifierList()
	if err != nil {
		return Method{}, err
	}
	result := Method{Name: nameTok.Lexeme, Params: params}
	if p.check(lexer.TokenBlockStart) {
		body, err := p.block()
		if err != nil {
			return Method{}, err
		}
		result.Body = body
		result.HasBody = true
	}
	return result, nil
}

func (p *Parser) block() ([]Stmt, error) {
	if _, err := p.consume(lexer.TokenBlockStart, "expected ':' before a block"); err != nil {
		return nil, err
	}
	stmts := []Stmt{}
	for !p.match(lexer.TokenEnd) {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *Parser) statement() (Stmt, error) {
	if p.match(lexer.TokenReturn) {
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: value}, nil
	}
	if p.match(lexer.TokenIf) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return &IfStmt{Condition: cond, Body: body}, nil
	}
	if p.match(lexer.TokenWhile) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Condition: cond, Body: body}, nil
	}

	// Anything else is an expression read back as a statement: an
	// equality at statement level is an assignment, a call is a call.
	tok := p.peek()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	switch e := expr.(type) {
	case *EqualsExpr:
		switch target := e.Left.(type) {
		case *GetExpr:
			return &SetVarStmt{Name: target.Name, Value: e.Right}, nil
		case *GetFieldExpr:
			return &SetFieldStmt{Object: target.Object, Name: target.Name, Value: e.Right}, nil
		default:
			return nil, errors.NewAt(errors.IllegalAssignmentTarget, p.location(tok),
				"only variables and fields can be assigned to")
		}
	case *CallExpr:
		return &CallStmt{Object: e.Object, Method: e.Method, Args: e.Args}, nil
	default:
		return nil, errors.NewAt(errors.UnexpectedToken, p.location(tok),
			"expected a statement, got an expression")
	}
}

func (p *Parser) expression() (Expr, error) {
	var result Expr
	switch {
	case p.check(lexer.TokenIdentifier):
		result = &GetExpr{Name: p.advance().Lexeme}
	case p.match(lexer.TokenLParen):
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRParen, "expected ')'"); err != nil {
			return nil, err
		}
		result = inner
	default:
		return nil, p.unexpected("expected an expression")
	}
	return p.expressionFurther(result)
}

// expressionFurther extends an expression with postfix chains:
// .field, .method(args), "is Class", and "= other".
func (p *Parser) expressionFurther(expr Expr) (Expr, error) {
	for {
		switch {
		case p.match(lexer.TokenDot):
			nameTok, err := p.consume(lexer.TokenIdentifier, "expected a member name after '.'")
			if err != nil {
				return nil, err
			}
			if p.check(lexer.TokenLParen) {
				args, err := p.expressionList()
				if err != nil {
					return nil, err
				}
				expr = &CallExpr{Object: expr, Method: nameTok.Lexeme, Args: args}
			} else {
				expr = &GetFieldExpr{Object: expr, Name: nameTok.Lexeme}
			}
		case p.match(lexer.TokenIs):
			classTok, err := p.consume(lexer.TokenIdentifier, "expected a class name after 'is'")
			if err != nil {
				return nil, err
			}
			expr = &IsExpr{Object: expr, Class: classTok.Lexeme}
		case p.match(lexer.TokenEqualsSign):
			right, err := p.expression()
			if err != nil {
				return nil, err
			}
			return &EqualsExpr{Left: expr, Right: right}, nil
		default:
			return expr, nil
		}
	}
}

func (p *Parser) expressionList() ([]Expr, error) {
	if _, err := p.consume(lexer.TokenLParen, "expected '('"); err != nil {
		return nil, err
	}
	elements := []Expr{}
	if p.match(lexer.TokenRParen) {
		return elements, nil
	}
	for {
		element, err := p.expression()
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
		if p.match(lexer.TokenRParen) {
			return elements, nil
		}
		if _, err := p.consume(lexer.TokenComma, "expected ',' or ')'"); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) identifierList() ([]string, error) {
	if _, err := p.consume(lexer.TokenLParen, "expected '('"); err != nil {
		return nil, err
	}
	names := []string{}
	if p.match(lexer.TokenRParen) {
		return names, nil
	}
	for {
		tok, err := p.consume(lexer.TokenIdentifier, "expected a name")
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Lexeme)
		if p.match(lexer.TokenRParen) {
			return names, nil
		}
		if _, err := p.consume(lexer.TokenComma, "expected ',' or ')'"); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.current++
		return true
	}
	return false
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) consume(t lexer.TokenType, msg string) (lexer.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return lexer.Token{}, p.unexpected(msg)
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}

func (p *Parser) unexpected(msg string) error {
	tok := p.peek()
	if tok.Type == lexer.TokenEOF {
		return errors.NewAt(errors.UnexpectedEOF, p.location(tok), "%s, found end of file", msg)
	}
	return errors.NewAt(errors.UnexpectedToken, p.location(tok), "%s, got %s", msg, tok)
}

func (p *Parser) location(tok lexer.Token) errors.SourceLocation {
	return errors.SourceLocation{File: p.file, Line: tok.Line, Column: tok.Column}
}

// stripQuotes removes one pair of surrounding single quotes from a
// metadata value, so target: 'indev' and target: indev read the same.
func stripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return s[1 : len(s)-1]
	}
	return s
}
