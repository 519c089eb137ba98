package parser

import (
	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/source"
)

// exprParser parses one value expression. Newlines terminate the expression
// at bracket depth zero and are skipped inside brackets, so list and mapping
// literals may span lines.
type exprParser struct {
	lx    *lexer
	depth int
}

// next consumes the next significant token.
func (p *exprParser) next() (token, *diag.Diagnostic) {
	for {
		t, err := p.lx.next()
		if err != nil {
			return token{}, err
		}
		if t.kind == tkNewline && p.depth > 0 {
			continue
		}
		return t, nil
	}
}

// peek looks ahead one significant token.
func (p *exprParser) peek() (token, *diag.Diagnostic) {
	for n := 1; ; n++ {
		t, err := p.lx.peek(n)
		if err != nil {
			return token{}, err
		}
		if t.kind == tkNewline && p.depth > 0 {
			continue
		}
		return t, nil
	}
}

// peek2 looks ahead two significant tokens.
func (p *exprParser) peek2() (token, token, *diag.Diagnostic) {
	var first token
	found := 0
	for n := 1; ; n++ {
		t, err := p.lx.peek(n)
		if err != nil {
			return token{}, token{}, err
		}
		if t.kind == tkNewline && p.depth > 0 {
			continue
		}
		found++
		if found == 1 {
			first = t
			if t.kind == tkEOF {
				return first, t, nil
			}
			continue
		}
		return first, t, nil
	}
}

// parseExpr parses a primary expression followed by zero or more |> steps.
func (p *exprParser) parseExpr() (ast.Expr, *diag.Diagnostic) {
	head, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	var steps []*ast.LensCall
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind != tkPipe {
			break
		}
		if _, err := p.next(); err != nil {
			return nil, err
		}
		step, err := p.parseLensCall()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return head, nil
	}
	pipe := &ast.Pipeline{Head: head, Steps: steps}
	pipe.SetSpan(source.Span{
		Start: head.Span().Start,
		End:   steps[len(steps)-1].Span().End,
	})
	return pipe, nil
}

// parseLensCall parses lens_name(args?) after a consumed |>.
func (p *exprParser) parseLensCall() (*ast.LensCall, *diag.Diagnostic) {
	nameTok, err := p.next()
	if err != nil {
		return nil, err
	}
	if nameTok.kind != tkIdent {
		return nil, diag.At(diag.ParseUnexpected, nameTok.span,
			"expected a lens name after '|>', found %s", nameTok.kind)
	}
	open, err := p.next()
	if err != nil {
		return nil, err
	}
	if open.kind != tkLParen {
		return nil, diag.At(diag.ParseUnexpected, open.span,
			"expected '(' after lens name %q", nameTok.text)
	}
	call := &ast.LensCall{Name: nameTok.text}
	closeSpan, err := p.parseArgs(call)
	if err != nil {
		return nil, err
	}
	call.SetSpan(source.Span{Start: nameTok.span.Start, End: closeSpan.End})
	return call, nil
}

// parseArgs parses the comma-separated argument list up to ')'. Positional
// arguments must precede named arguments.
func (p *exprParser) parseArgs(call *ast.LensCall) (source.Span, *diag.Diagnostic) {
	p.depth++
	defer func() { p.depth-- }()

	t, err := p.peek()
	if err != nil {
		return source.Span{}, err
	}
	if t.kind == tkRParen {
		closer, _ := p.next()
		return closer.span, nil
	}

	for {
		first, second, err := p.peek2()
		if err != nil {
			return source.Span{}, err
		}
		if first.kind == tkIdent && second.kind == tkEquals && !isKeyword(first.text) {
			// Named argument.
			p.next() // name
			p.next() // '='
			val, err := p.parseExpr()
			if err != nil {
				return source.Span{}, err
			}
			call.Named = append(call.Named, &ast.NamedArg{
				Name:  first.text,
				Value: val,
				Span:  source.Span{Start: first.span.Start, End: val.Span().End},
			})
		} else {
			if len(call.Named) > 0 {
				return source.Span{}, diag.At(diag.ParseUnexpected, first.span,
					"positional argument after named argument")
			}
			val, err := p.parseExpr()
			if err != nil {
				return source.Span{}, err
			}
			call.Positional = append(call.Positional, val)
		}

		sep, err := p.next()
		if err != nil {
			return source.Span{}, err
		}
		switch sep.kind {
		case tkComma:
			continue
		case tkRParen:
			return sep.span, nil
		case tkEOF:
			return source.Span{}, diag.At(diag.ParseUnclosed, sep.span,
				"argument list not closed before end of file")
		default:
			return source.Span{}, diag.At(diag.ParseUnexpected, sep.span,
				"expected ',' or ')' in argument list, found %s", sep.kind)
		}
	}
}

// parsePrimary parses a scalar, composite, reference, or directive form.
func (p *exprParser) parsePrimary() (ast.Expr, *diag.Diagnostic) {
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case tkString:
		lit := &ast.StringLit{Value: t.str}
		lit.SetSpan(t.span)
		return lit, nil
	case tkInt:
		lit := &ast.IntLit{Value: t.i}
		lit.SetSpan(t.span)
		return lit, nil
	case tkFloat:
		lit := &ast.FloatLit{Value: t.f}
		lit.SetSpan(t.span)
		return lit, nil
	case tkVar:
		ref := &ast.VarRef{Name: t.text, Braced: t.braced}
		ref.SetSpan(t.span)
		return ref, nil
	case tkIdent:
		switch t.text {
		case "true", "false":
			lit := &ast.BoolLit{Value: t.text == "true"}
			lit.SetSpan(t.span)
			return lit, nil
		case "null":
			lit := &ast.NullLit{}
			lit.SetSpan(t.span)
			return lit, nil
		}
		return p.parseDirective(t)
	case tkLBracket:
		return p.parseList(t)
	case tkLBrace:
		return p.parseInlineMap(t)
	case tkEOF, tkNewline:
		return nil, diag.At(diag.ParseUnexpected, t.span, "expected a value expression")
	default:
		return nil, diag.At(diag.ParseUnexpected, t.span,
			"expected a value expression, found %s", t.kind)
	}
}

// knownDirectives is the closed set of directive forms the grammar admits.
var knownDirectives = map[string]bool{
	"input": true,
}

// parseDirective parses name(attr=value, ...) for a known directive name.
func (p *exprParser) parseDirective(nameTok token) (ast.Expr, *diag.Diagnostic) {
	if !knownDirectives[nameTok.text] {
		return nil, diag.At(diag.ParseUnexpected, nameTok.span,
			"unexpected identifier %q in value position", nameTok.text)
	}
	open, err := p.next()
	if err != nil {
		return nil, err
	}
	if open.kind != tkLParen {
		return nil, diag.At(diag.ParseUnexpected, open.span,
			"expected '(' after directive %q", nameTok.text)
	}

	dir := &ast.Directive{Name: nameTok.text}

	p.depth++
	defer func() { p.depth-- }()

	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tkRParen {
		closer, _ := p.next()
		dir.SetSpan(source.Span{Start: nameTok.span.Start, End: closer.span.End})
		return dir, nil
	}
	for {
		attrTok, err := p.next()
		if err != nil {
			return nil, err
		}
		if attrTok.kind != tkIdent {
			return nil, diag.At(diag.ParseUnexpected, attrTok.span,
				"expected an attribute name in directive %q, found %s", nameTok.text, attrTok.kind)
		}
		eq, err := p.next()
		if err != nil {
			return nil, err
		}
		if eq.kind != tkEquals {
			return nil, diag.At(diag.ParseUnexpected, eq.span,
				"expected '=' after attribute %q", attrTok.text)
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		dir.Attrs = append(dir.Attrs, &ast.NamedArg{
			Name:  attrTok.text,
			Value: val,
			Span:  source.Span{Start: attrTok.span.Start, End: val.Span().End},
		})

		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		switch sep.kind {
		case tkComma:
			continue
		case tkRParen:
			dir.SetSpan(source.Span{Start: nameTok.span.Start, End: sep.span.End})
			return dir, nil
		case tkEOF:
			return nil, diag.At(diag.ParseUnclosed, sep.span,
				"directive not closed before end of file")
		default:
			return nil, diag.At(diag.ParseUnexpected, sep.span,
				"expected ',' or ')' in directive, found %s", sep.kind)
		}
	}
}

// parseList parses [elem, ...] after a consumed '['.
func (p *exprParser) parseList(open token) (ast.Expr, *diag.Diagnostic) {
	p.depth++
	defer func() { p.depth-- }()

	list := &ast.ListLit{}
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tkRBracket {
		closer, _ := p.next()
		list.SetSpan(source.Span{Start: open.span.Start, End: closer.span.End})
		return list, nil
	}
	for {
		el, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list.Elems = append(list.Elems, el)

		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		switch sep.kind {
		case tkComma:
			continue
		case tkRBracket:
			list.SetSpan(source.Span{Start: open.span.Start, End: sep.span.End})
			return list, nil
		case tkEOF:
			return nil, diag.At(diag.ParseUnclosed, sep.span,
				"list literal not closed before end of file")
		default:
			return nil, diag.At(diag.ParseUnexpected, sep.span,
				"expected ',' or ']' in list literal, found %s", sep.kind)
		}
	}
}

// parseInlineMap parses {key: value, ...} after a consumed '{'. Keys are
// bare identifiers or string literals.
func (p *exprParser) parseInlineMap(open token) (ast.Expr, *diag.Diagnostic) {
	p.depth++
	defer func() { p.depth-- }()

	m := &ast.MapLit{}
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tkRBrace {
		closer, _ := p.next()
		m.SetSpan(source.Span{Start: open.span.Start, End: closer.span.End})
		return m, nil
	}
	for {
		keyTok, err := p.next()
		if err != nil {
			return nil, err
		}
		var key string
		switch keyTok.kind {
		case tkIdent:
			key = keyTok.text
		case tkString:
			key = keyTok.str
		default:
			return nil, diag.At(diag.ParseUnexpected, keyTok.span,
				"expected a mapping key, found %s", keyTok.kind)
		}
		colon, err := p.next()
		if err != nil {
			return nil, err
		}
		if colon.kind != tkColon {
			return nil, diag.At(diag.ParseUnexpected, colon.span,
				"expected ':' after mapping key %q", key)
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, &ast.Entry{
			Key:   key,
			Value: val,
			Span:  source.Span{Start: keyTok.span.Start, End: val.Span().End},
		})

		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		switch sep.kind {
		case tkComma:
			continue
		case tkRBrace:
			m.SetSpan(source.Span{Start: open.span.Start, End: sep.span.End})
			return m, nil
		case tkEOF:
			return nil, diag.At(diag.ParseUnclosed, sep.span,
				"mapping literal not closed before end of file")
		default:
			return nil, diag.At(diag.ParseUnexpected, sep.span,
				"expected ',' or '}' in mapping literal, found %s", sep.kind)
		}
	}
}

func isKeyword(name string) bool {
	return name == "true" || name == "false" || name == "null"
}
