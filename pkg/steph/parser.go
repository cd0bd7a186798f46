package steph

import (
	"errors"
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/vito/steph/pkg/types"
)

var keywords = map[string]bool{
	"let":    true,
	"return": true,
	"if":     true,
	"else":   true,
	"true":   true,
	"false":  true,
}

// Parse parses a single expression from source.
func Parse(g *Grammar, filename, source string) (Node, error) {
	p, err := newParser(g, filename, source)
	if err != nil {
		return nil, err
	}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.peek().EOF() {
		return nil, p.unexpected("end of input")
	}
	return n, nil
}

// ParseType parses a type annotation such as "Number", "List(String)" or
// "(Number, Number) => Boolean".
func ParseType(g *Grammar, source string) (types.Type, error) {
	p, err := newParser(g, "", source)
	if err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.peek().EOF() {
		return nil, p.unexpected("end of type")
	}
	return t, nil
}

type parser struct {
	g    *Grammar
	toks []lexer.Token
	pos  int
}

func newParser(g *Grammar, filename, source string) (*parser, error) {
	toks, err := g.tokenize(filename, source)
	if err != nil {
		var lexErr *lexer.Error
		if errors.As(err, &lexErr) {
			return nil, NewParseError(location(lexErr.Pos, 1), "%s", lexErr.Msg)
		}
		return nil, NewParseError(&SourceLocation{Filename: filename}, "%s", err)
	}
	return &parser{g: g, toks: toks}, nil
}

func location(pos lexer.Position, length int) *SourceLocation {
	return &SourceLocation{
		Filename: pos.Filename,
		Line:     pos.Line,
		Column:   pos.Column,
		Length:   length,
	}
}

func (p *parser) peek() lexer.Token {
	return p.peekAt(p.pos)
}

func (p *parser) peekAt(i int) lexer.Token {
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *parser) next() lexer.Token {
	tok := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) loc(tok lexer.Token) *SourceLocation {
	return location(tok.Pos, max(1, len(tok.Value)))
}

func (p *parser) isOp(tok lexer.Token, ops ...string) bool {
	if tok.Type != p.g.operator {
		return false
	}
	for _, op := range ops {
		if tok.Value == op {
			return true
		}
	}
	return false
}

func (p *parser) isKeyword(tok lexer.Token, kw string) bool {
	return tok.Type == p.g.ident && tok.Value == kw
}

func (p *parser) expectOp(op string) (lexer.Token, error) {
	tok := p.peek()
	if !p.isOp(tok, op) {
		return tok, p.unexpected(strconv.Quote(op))
	}
	return p.next(), nil
}

func (p *parser) expectKeyword(kw string) (lexer.Token, error) {
	tok := p.peek()
	if !p.isKeyword(tok, kw) {
		return tok, p.unexpected(strconv.Quote(kw))
	}
	return p.next(), nil
}

func (p *parser) expectIdent() (lexer.Token, error) {
	tok := p.peek()
	if tok.Type != p.g.ident || keywords[tok.Value] {
		return tok, p.unexpected("a name")
	}
	return p.next(), nil
}

func (p *parser) unexpected(want string) error {
	tok := p.peek()
	if tok.EOF() {
		return NewParseError(p.loc(tok), "unexpected end of input, expected %s", want)
	}
	return NewParseError(p.loc(tok), "unexpected %q, expected %s", tok.Value, want)
}

func (p *parser) parseExpr() (Node, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Node, error) {
	return p.parseLeftAssoc(p.parseAnd, "||")
}

func (p *parser) parseAnd() (Node, error) {
	return p.parseLeftAssoc(p.parseComparison, "&&")
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if !p.isOp(tok, "==", "!=", "<", ">", "<=", ">=") {
		return left, nil
	}
	p.next()
	op, _ := types.LookupOperator(tok.Value, 2)
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.isOp(p.peek(), "==", "!=", "<", ">", "<=", ">=") {
		return nil, NewParseError(p.loc(p.peek()), "comparisons cannot be chained")
	}
	return NewComparison(p.loc(tok), op, left, right), nil
}

func (p *parser) parseAdditive() (Node, error) {
	return p.parseLeftAssoc(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (Node, error) {
	return p.parseLeftAssoc(p.parseUnary, "*", "/")
}

func (p *parser) parseLeftAssoc(operand func() (Node, error), ops ...string) (Node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for p.isOp(p.peek(), ops...) {
		tok := p.next()
		op, ok := types.LookupOperator(tok.Value, 2)
		if !ok {
			return nil, NewParseError(p.loc(tok), "unknown operator %s", tok.Value)
		}
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = NewArithmeticOperator(p.loc(tok), op, left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.peek()
	if p.isOp(tok, "-") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NewNegate(p.loc(tok), operand), nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isOp(p.peek(), "(") {
		p.next()
		args, err := p.parseList(")")
		if err != nil {
			return nil, err
		}
		n = NewFunctionCall(n.GetSourceLocation(), n, args...)
	}
	return n, nil
}

// parseList parses comma-separated expressions up to and including the
// closing token.
func (p *parser) parseList(closing string) ([]Node, error) {
	var elems []Node
	if p.isOp(p.peek(), closing) {
		p.next()
		return elems, nil
	}
	for {
		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		if p.isOp(p.peek(), ",") {
			p.next()
			continue
		}
		if _, err := p.expectOp(closing); err != nil {
			return nil, err
		}
		return elems, nil
	}
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.peek()
	switch {
	case tok.Type == p.g.number:
		p.next()
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, NewParseError(p.loc(tok), "malformed number literal %s", tok.Value)
		}
		return NewLiteral(p.loc(tok), types.NumberValue{Val: n}), nil

	case tok.Type == p.g.str:
		p.next()
		s, err := strconv.Unquote(tok.Value)
		if err != nil {
			return nil, NewParseError(p.loc(tok), "malformed string literal %s", tok.Value)
		}
		return NewLiteral(p.loc(tok), types.StringValue{Val: s}), nil

	case p.isKeyword(tok, "true"), p.isKeyword(tok, "false"):
		p.next()
		return NewLiteral(p.loc(tok), types.BooleanValue{Val: tok.Value == "true"}), nil

	case p.isKeyword(tok, "if"):
		return p.parseIfElse()

	case tok.Type == p.g.ident && !keywords[tok.Value]:
		p.next()
		return NewReference(p.loc(tok), tok.Value), nil

	case p.isOp(tok, "["):
		p.next()
		elems, err := p.parseList("]")
		if err != nil {
			return nil, err
		}
		return NewList(p.loc(tok), elems...), nil

	case p.isOp(tok, "{"):
		return p.parseBlock()

	case p.isOp(tok, "("):
		if p.atClauseHead(p.pos) {
			return p.parseFunction()
		}
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	return nil, p.unexpected("an expression")
}

func (p *parser) parseIfElse() (Node, error) {
	ifTok, err := p.expectKeyword("if")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return NewIfElse(p.loc(ifTok), cond, then, els), nil
}

func (p *parser) parseBlock() (Node, error) {
	open, err := p.expectOp("{")
	if err != nil {
		return nil, err
	}

	var lets []*Let
	for p.isKeyword(p.peek(), "let") {
		let, err := p.parseLet()
		if err != nil {
			return nil, err
		}
		lets = append(lets, let)
	}

	if _, err := p.expectKeyword("return"); err != nil {
		return nil, err
	}
	result, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.isOp(p.peek(), ";") {
		p.next()
	}
	if _, err := p.expectOp("}"); err != nil {
		return nil, err
	}

	return NewBlock(p.loc(open), lets, result)
}

func (p *parser) parseLet() (*Let, error) {
	if _, err := p.expectKeyword("let"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var declared types.Type
	if p.isOp(p.peek(), ":") {
		p.next()
		declared, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expectOp("="); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(";"); err != nil {
		return nil, err
	}

	return NewLet(p.loc(name), name.Value, declared, value)
}

// atClauseHead reports whether the "(" at i closes with ")" immediately
// followed by "=>".
func (p *parser) atClauseHead(i int) bool {
	if !p.isOp(p.peekAt(i), "(") {
		return false
	}
	depth := 0
	for ; i < len(p.toks); i++ {
		tok := p.toks[i]
		switch {
		case p.isOp(tok, "(", "[", "{"):
			depth++
		case p.isOp(tok, ")", "]", "}"):
			depth--
			if depth == 0 {
				return p.isOp(p.peekAt(i+1), "=>")
			}
		case tok.EOF():
			return false
		}
	}
	return false
}

// parseFunction parses one or more comma-separated clauses. A comma after a
// clause body continues the function only if another clause head follows.
func (p *parser) parseFunction() (Node, error) {
	start := p.peek()
	var pieces []*FunctionPiece
	for {
		piece, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, piece)
		if p.isOp(p.peek(), ",") && p.atClauseHead(p.pos+1) {
			p.next()
			continue
		}
		return NewFunction(p.loc(start), pieces...), nil
	}
}

func (p *parser) parseClause() (*FunctionPiece, error) {
	open, err := p.expectOp("(")
	if err != nil {
		return nil, err
	}

	var args []FunctionArgument
	if !p.isOp(p.peek(), ")") {
		for {
			arg, err := p.parseArgument()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.isOp(p.peek(), ",") {
				break
			}
			p.next()
		}
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectOp("=>"); err != nil {
		return nil, err
	}

	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return NewFunctionPiece(p.loc(open), args, body)
}

func (p *parser) parseArgument() (FunctionArgument, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	switch {
	case p.isOp(tok, ":"):
		p.next()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &TypedArgument{Name: name.Value, Type: t, Loc: p.loc(name)}, nil

	case p.isOp(tok, "==", "!=", "<", ">", "<=", ">="):
		p.next()
		op, _ := types.LookupOperator(tok.Value, 2)
		guard, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &PatternArgument{Name: name.Value, Op: op, Guard: guard, Loc: p.loc(name)}, nil
	}

	return nil, p.unexpected(`":" or a comparison`)
}

func (p *parser) parseType() (types.Type, error) {
	tok := p.peek()

	if p.isOp(tok, "(") {
		p.next()
		var args []types.Type
		if !p.isOp(p.peek(), ")") {
			for {
				arg, err := p.parseType()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.isOp(p.peek(), ",") {
					break
				}
				p.next()
			}
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		if _, err := p.expectOp("=>"); err != nil {
			return nil, err
		}
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return types.NewFunctionType(args, ret), nil
	}

	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if name.Value == "List" {
		if _, err := p.expectOp("("); err != nil {
			return nil, err
		}
		item, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return types.NewListType(item), nil
	}
	t, ok := p.g.typeNames[name.Value]
	if !ok {
		return nil, NewParseError(p.loc(name), "unknown type %s", name.Value)
	}
	return t, nil
}
