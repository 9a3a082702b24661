package expr

import "fmt"

// ParseError reports where in the code string parsing failed. The lowering
// phase wraps these into BadExpression placeholders; they never abort a
// template.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Pos, e.Msg)
}

// Parse parses one binding expression of the given kind.
func Parse(code string, kind Kind) (Node, error) {
	p, err := newParser(code)
	if err != nil {
		return nil, err
	}
	if kind == KindIterator {
		return p.parseForOf()
	}
	n, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokEOF {
		return nil, &ParseError{Pos: p.cur.start, Msg: "unexpected trailing input " + p.cur.text}
	}
	return n, nil
}

type parser struct {
	lex *lexer
	cur token
}

func newParser(code string) (*parser, error) {
	p := &parser{lex: &lexer{src: code}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) expectOp(op string) (token, error) {
	if p.cur.typ != tokOp || p.cur.text != op {
		return token{}, &ParseError{Pos: p.cur.start, Msg: fmt.Sprintf("expected %q, found %q", op, p.cur.text)}
	}
	tok := p.cur
	return tok, p.advance()
}

func (p *parser) isOp(op string) bool {
	return p.cur.typ == tokOp && p.cur.text == op
}

// parseForOf parses the iterator form `local of iterable`.
func (p *parser) parseForOf() (Node, error) {
	if p.cur.typ != tokIdent {
		return nil, &ParseError{Pos: p.cur.start, Msg: "iterator must start with a local name"}
	}
	decl := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.typ != tokIdent || p.cur.text != "of" {
		return nil, &ParseError{Pos: p.cur.start, Msg: "expected 'of' in iterator expression"}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	iterable, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokEOF {
		return nil, &ParseError{Pos: p.cur.start, Msg: "unexpected trailing input after iterator"}
	}
	return &ForOf{
		DeclName: decl.text,
		DeclLoc:  Range{decl.start, decl.end},
		Iterable: iterable,
		Loc:      Range{decl.start, iterable.Span().End},
	}, nil
}

func (p *parser) parseConditional() (Node, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if !p.isOp("?") {
		return cond, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	yes, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	no, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	return &Conditional{Cond: cond, Yes: yes, No: no, Loc: Range{cond.Span().Start, no.Span().End}}, nil
}

var binaryPrecedence = map[string]int{
	"??": 1,
	"||": 2,
	"&&": 3,
	"==": 4, "!=": 4, "===": 4, "!==": 4,
	"<": 5, ">": 5, "<=": 5, ">=": 5,
	"+": 6, "-": 6,
	"*": 7, "/": 7, "%": 7,
}

func (p *parser) parseBinary(minPrec int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.typ == tokOp {
		prec, ok := binaryPrecedence[p.cur.text]
		if !ok || prec < minPrec {
			break
		}
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right, Loc: Range{left.Span().Start, right.Span().End}}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.cur.typ == tokOp && (p.cur.text == "!" || p.cur.text == "-") {
		op := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op.text, Operand: operand, Loc: Range{op.start, operand.Span().End}}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp(".") || p.isOp("?."):
			optional := p.cur.text == "?."
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.typ != tokIdent {
				return nil, &ParseError{Pos: p.cur.start, Msg: "expected member name"}
			}
			name := p.cur
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.isOp("(") {
				args, end, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				base = &Call{Base: base, Name: name.text, Optional: optional, Args: args, Loc: Range{base.Span().Start, end}}
				continue
			}
			base = &AccessMember{
				Base:     base,
				Name:     name.text,
				Optional: optional,
				Loc:      Range{base.Span().Start, name.end},
				LinkLoc:  Range{base.Span().End, name.end},
			}

		case p.isOp("[") || p.isOp("?.["):
			optional := p.cur.text == "?.["
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.parseConditional()
			if err != nil {
				return nil, err
			}
			close, err := p.expectOp("]")
			if err != nil {
				return nil, err
			}
			base = &AccessKeyed{
				Base:     base,
				Key:      key,
				Optional: optional,
				Loc:      Range{base.Span().Start, close.end},
				LinkLoc:  Range{base.Span().End, close.end},
			}

		case p.isOp("("):
			args, end, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			switch b := base.(type) {
			case *AccessScope:
				base = &Call{Name: b.Name, Args: args, Loc: Range{b.Loc.Start, end}}
			case *AccessMember:
				base = &Call{Base: b.Base, Name: b.Name, Optional: b.Optional, Args: args, Loc: Range{b.Loc.Start, end}}
			default:
				return nil, &ParseError{Pos: p.cur.start, Msg: "call target must be a name or member"}
			}

		default:
			return base, nil
		}
	}
}

func (p *parser) parseArgs() ([]Node, int, error) {
	open, err := p.expectOp("(")
	if err != nil {
		return nil, 0, err
	}
	_ = open
	var args []Node
	if p.isOp(")") {
		end := p.cur.end
		return args, end, p.advance()
	}
	for {
		arg, err := p.parseConditional()
		if err != nil {
			return nil, 0, err
		}
		args = append(args, arg)
		if p.isOp(",") {
			if err := p.advance(); err != nil {
				return nil, 0, err
			}
			continue
		}
		close, err := p.expectOp(")")
		if err != nil {
			return nil, 0, err
		}
		return args, close.end, nil
	}
}

func (p *parser) parsePrimary() (Node, error) {
	switch p.cur.typ {
	case tokIdent:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch tok.text {
		case "true", "false":
			return &Literal{Kind: LitBool, Raw: tok.text, Loc: Range{tok.start, tok.end}}, nil
		case "null":
			return &Literal{Kind: LitNull, Raw: tok.text, Loc: Range{tok.start, tok.end}}, nil
		case "undefined":
			return &Literal{Kind: LitUndefined, Raw: tok.text, Loc: Range{tok.start, tok.end}}, nil
		}
		return &AccessScope{Name: tok.text, Loc: Range{tok.start, tok.end}}, nil

	case tokNumber:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{Kind: LitNumber, Raw: tok.text, Loc: Range{tok.start, tok.end}}, nil

	case tokString:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{Kind: LitString, Raw: tok.text, Loc: Range{tok.start, tok.end}}, nil

	case tokOp:
		if p.cur.text == "(" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			inner, err := p.parseConditional()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, &ParseError{Pos: p.cur.start, Msg: "expected expression, found " + p.cur.text}
}
