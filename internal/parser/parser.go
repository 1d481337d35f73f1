// Package parser implements the hand-written recursive-descent parser that
// turns a token.Token stream into an *ast.Node tree. There is no grammar
// generator here: every precedence level is its own method, in the same
// style as the language's own original parser.
package parser

import (
	"fmt"
	"strconv"

	"otusc/internal/ast"
	"otusc/internal/token"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Parser consumes a fixed token slice and builds the expression tree.
type Parser struct {
	toks []token.Token
	cur  int
}

// SyntaxError reports a parse failure at a specific token position.
type SyntaxError struct {
	Line, Pos int
	Msg       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Pos, e.Msg)
}

// ---------------------
// ----- functions -----
// ---------------------

// New returns a Parser over toks.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// ParseAll parses every top-level expression in toks until EOF, the same
// entry point as the original source's parse_all.
func ParseAll(toks []token.Token) ([]*ast.Node, error) {
	p := New(toks)
	var nodes []*ast.Node
	for !p.match(token.EOF) {
		n, err := p.toplevelExpr()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (p *Parser) curr() token.Token {
	if p.cur >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.cur]
}

func (p *Parser) peek(offset int) token.Token {
	i := p.cur + offset
	if i >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[i]
}

func (p *Parser) eat() token.Token {
	t := p.curr()
	if p.cur < len(p.toks) {
		p.cur++
	}
	return t
}

func (p *Parser) match(k token.Kind) bool {
	return p.curr().Kind == k
}

func (p *Parser) peekMatch(offset int, k token.Kind) bool {
	return p.peek(offset).Kind == k
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.curr().Kind != k {
		return token.Token{}, p.errf("expected %s but got %s", k, p.curr().Kind)
	}
	return p.eat(), nil
}

func (p *Parser) errf(format string, args ...any) error {
	c := p.curr()
	return &SyntaxError{Line: c.Line, Pos: c.Pos, Msg: fmt.Sprintf(format, args...)}
}

// typeSpecifier parses `(name: type)`, used by let-fun parameters and
// extern argument lists.
func (p *Parser) typeSpecifier() (string, *ast.Type, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return "", nil, err
	}
	id, err := p.expect(token.IDENT)
	if err != nil {
		return "", nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return "", nil, err
	}
	tyTok, err := p.expect(token.IDENT)
	if err != nil {
		return "", nil, err
	}
	ty, err := ast.FromName(tyTok.Text)
	if err != nil {
		return "", nil, p.errf("%s", err)
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return "", nil, err
	}
	return id.Text, ty, nil
}

// argument parses a single let-fun parameter: either a bare, unannotated
// identifier or a parenthesized type specifier.
func (p *Parser) argument() (string, *ast.Type, error) {
	if p.match(token.LPAREN) {
		return p.typeSpecifier()
	}
	id, err := p.expect(token.IDENT)
	if err != nil {
		return "", nil, err
	}
	return id.Text, ast.NewPrimitive(ast.TyUnknown), nil
}

// primaryExpr parses literals, variables, applications, parenthesized
// expressions, and boolean literals — the bottom of the precedence ladder.
func (p *Parser) primaryExpr() (*ast.Node, error) {
	switch {
	case p.match(token.INT):
		tok := p.eat()
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Line: tok.Line, Pos: tok.Pos, Msg: err.Error()}
		}
		return ast.NewNumber(v), nil

	case p.match(token.FLOAT):
		tok := p.eat()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, &SyntaxError{Line: tok.Line, Pos: tok.Pos, Msg: err.Error()}
		}
		return ast.NewFloat(v), nil

	case p.match(token.STRING):
		return ast.NewString(p.eat().Text), nil

	case p.match(token.IDENT):
		if p.peekMatch(1, token.LPAREN) {
			name := p.eat().Text
			if _, err := p.expect(token.LPAREN); err != nil {
				return nil, err
			}
			var args []*ast.Node
			for !p.match(token.RPAREN) {
				a, err := p.expr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.match(token.RPAREN) {
					break
				} else if p.match(token.COMMA) {
					p.eat()
					continue
				}
				return nil, p.errf("expected ) or , but got %s", p.curr().Kind)
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			return ast.NewApp(name, args), nil
		}
		return ast.NewVarNode(p.eat().Text), nil

	case p.match(token.LPAREN):
		p.eat()
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil

	case p.match(token.TRUE):
		p.eat()
		return ast.NewBool(true), nil

	case p.match(token.FALSE):
		p.eat()
		return ast.NewBool(false), nil

	default:
		return nil, p.errf("unknown token: %s", p.curr().Kind)
	}
}

// unaryExpr handles the prefix `#` (deref) and `!` (not) operators.
func (p *Parser) unaryExpr() (*ast.Node, error) {
	switch {
	case p.match(token.SHARP):
		p.eat()
		e, err := p.primaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(ast.OpDeref, e), nil
	case p.match(token.NOT):
		p.eat()
		e, err := p.primaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(ast.OpNot, e), nil
	default:
		return p.primaryExpr()
	}
}

// binaryLevel is the shared shape of every left-associative binary
// precedence level: parse one operand via next, then fold in every
// operator in ops found at the current position.
func (p *Parser) binaryLevel(next func() (*ast.Node, error), ops map[token.Kind]ast.Op) (*ast.Node, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[p.curr().Kind]
		if !ok {
			return lhs, nil
		}
		p.eat()
		rhs, err := next()
		if err != nil {
			return nil, err
		}
		lhs = ast.NewBinary(op, lhs, rhs)
	}
}

func (p *Parser) mulExpr() (*ast.Node, error) {
	return p.binaryLevel(p.unaryExpr, map[token.Kind]ast.Op{
		token.STAR: ast.OpMul, token.SLASH: ast.OpDiv, token.PERCENT: ast.OpMod,
		token.STARF: ast.OpMulF, token.SLASHF: ast.OpDivF, token.PERCENTF: ast.OpModF,
	})
}

func (p *Parser) addExpr() (*ast.Node, error) {
	return p.binaryLevel(p.mulExpr, map[token.Kind]ast.Op{
		token.PLUS: ast.OpAdd, token.MINUS: ast.OpSub,
		token.PLUSF: ast.OpAddF, token.MINUSF: ast.OpSubF,
	})
}

func (p *Parser) relExpr() (*ast.Node, error) {
	return p.binaryLevel(p.addExpr, map[token.Kind]ast.Op{
		token.GT: ast.OpGt, token.LT: ast.OpLt, token.GE: ast.OpGe, token.LE: ast.OpLe,
	})
}

func (p *Parser) equalExpr() (*ast.Node, error) {
	return p.binaryLevel(p.relExpr, map[token.Kind]ast.Op{
		token.EQ: ast.OpEq, token.NE: ast.OpNe,
	})
}

func (p *Parser) bitwiseAndExpr() (*ast.Node, error) {
	return p.binaryLevel(p.equalExpr, map[token.Kind]ast.Op{token.BITAND: ast.OpBitAnd})
}

func (p *Parser) bitwiseXorExpr() (*ast.Node, error) {
	return p.binaryLevel(p.bitwiseAndExpr, map[token.Kind]ast.Op{token.BITXOR: ast.OpBitXor})
}

func (p *Parser) bitwiseOrExpr() (*ast.Node, error) {
	return p.binaryLevel(p.bitwiseXorExpr, map[token.Kind]ast.Op{token.BITOR: ast.OpBitOr})
}

func (p *Parser) logicalAndExpr() (*ast.Node, error) {
	return p.binaryLevel(p.bitwiseOrExpr, map[token.Kind]ast.Op{token.LOGAND: ast.OpLogAnd})
}

func (p *Parser) logicalOrExpr() (*ast.Node, error) {
	return p.binaryLevel(p.logicalAndExpr, map[token.Kind]ast.Op{token.LOGOR: ast.OpLogOr})
}

func (p *Parser) assignExpr() (*ast.Node, error) {
	return p.binaryLevel(p.logicalOrExpr, map[token.Kind]ast.Op{token.PTRASSIGN: ast.OpPtrAssign})
}

func (p *Parser) ifExpr() (*ast.Node, error) {
	if _, err := p.expect(token.IF); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.THEN); err != nil {
		return nil, err
	}
	then, err := p.toplevelExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ELSE); err != nil {
		return nil, err
	}
	els, err := p.toplevelExpr()
	if err != nil {
		return nil, err
	}
	return ast.NewIf(cond, then, els), nil
}

func (p *Parser) letFun(name string) (*ast.Node, error) {
	var args []string
	var types []*ast.Type
	for !p.match(token.ASSIGN) {
		n, ty, err := p.argument()
		if err != nil {
			return nil, err
		}
		args = append(args, n)
		types = append(types, ty)
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	body, err := p.expr()
	if err != nil {
		return nil, err
	}
	return ast.NewLetFun(name, args, types, body), nil
}

func (p *Parser) letExtern() (*ast.Node, error) {
	if _, err := p.expect(token.EXTERN); err != nil {
		return nil, err
	}
	id, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	var args []string
	var types []*ast.Type
	for p.match(token.LPAREN) {
		n, ty, err := p.typeSpecifier()
		if err != nil {
			return nil, err
		}
		args = append(args, n)
		types = append(types, ty)
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	retTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	retType, err := ast.FromName(retTok.Text)
	if err != nil {
		return nil, p.errf("%s", err)
	}
	return ast.NewLetExtern(id.Text, args, types, retType), nil
}

func (p *Parser) letIn() (*ast.Node, error) {
	if _, err := p.expect(token.LET); err != nil {
		return nil, err
	}
	if p.match(token.EXTERN) {
		return p.letExtern()
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if !p.match(token.ASSIGN) {
		return p.letFun(name.Text)
	}
	p.eat()
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}
	body, err := p.expr()
	if err != nil {
		return nil, err
	}
	return ast.NewLetIn(name.Text, value, body), nil
}

func (p *Parser) compound() (*ast.Node, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var exprs []*ast.Node
	for !p.match(token.RBRACE) {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if p.match(token.SEMICOLON) {
			p.eat()
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return ast.NewCompound(exprs), nil
}

func (p *Parser) newExpr() (*ast.Node, error) {
	if _, err := p.expect(token.NEW); err != nil {
		return nil, err
	}
	tyTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	elem, err := ast.FromName(tyTok.Text)
	if err != nil {
		return nil, p.errf("%s", err)
	}
	return ast.NewNew(ast.NewPtr(elem)), nil
}

// expr parses a single expression, dispatching to the keyword-led forms
// before falling through to the operator-precedence ladder.
func (p *Parser) expr() (*ast.Node, error) {
	switch {
	case p.match(token.IF):
		return p.ifExpr()
	case p.match(token.LET):
		return p.letIn()
	case p.match(token.LBRACE):
		return p.compound()
	case p.match(token.NEW):
		return p.newExpr()
	default:
		return p.assignExpr()
	}
}

// toplevelExpr folds `;`-separated expressions into left-nested Binary
// OpSeq nodes, the loosest-binding level of the grammar.
func (p *Parser) toplevelExpr() (*ast.Node, error) {
	lhs, err := p.expr()
	if err != nil {
		return nil, err
	}
	for p.match(token.SEMICOLON) {
		p.eat()
		rhs, err := p.expr()
		if err != nil {
			return nil, err
		}
		lhs = ast.NewBinary(ast.OpSeq, lhs, rhs)
	}
	return lhs, nil
}
