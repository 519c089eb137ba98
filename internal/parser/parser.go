// Package parser turns UTF-8 source text into a Document tree. The grammar is
// indentation-sensitive: two spaces per level, tabs rejected, block openers at
// column zero. The parser halts at the first structural failure and reports it
// with a span.
package parser

import (
	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/source"
)

// Parse normalizes raw text and parses it into a Document.
func Parse(name, raw string) (*ast.Document, *diag.Diagnostic) {
	return ParseFile(source.New(name, raw))
}

// ParseFile parses an already-normalized file.
func ParseFile(f *source.File) (*ast.Document, *diag.Diagnostic) {
	p := &fileParser{
		file: f,
		idx:  newLineIndex(f.Text),
	}
	return p.parse()
}

// container is one level of the open-mapping stack: the block's entry list at
// depth 1, block-form mappings below it.
type container struct {
	target  *[]*ast.Entry
	mapNode *ast.MapLit
}

type fileParser struct {
	file *source.File
	idx  *lineIndex
}

func (p *fileParser) parse() (*ast.Document, *diag.Diagnostic) {
	src := p.file.Text
	doc := &ast.Document{
		Name: p.file.Name,
		Span: p.idx.spanAt(0, len(src)),
	}

	var cur *ast.Block
	var stack []container

	pos := 0
	for pos < len(src) {
		lineStart := pos

		// Measure leading whitespace.
		i := pos
		spaces := 0
		for i < len(src) {
			if src[i] == ' ' {
				spaces++
				i++
				continue
			}
			if src[i] == '\t' {
				return nil, diag.At(diag.ParseTab, source.At(p.idx.posAt(i)),
					"tab character in leading whitespace")
			}
			break
		}
		if i >= len(src) {
			break
		}

		// Blank and comment lines do not affect indentation state.
		if src[i] == '\n' {
			pos = i + 1
			continue
		}
		if src[i] == '#' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			pos = i + 1
			continue
		}

		if spaces%2 != 0 {
			return nil, diag.At(diag.ParseIndent, source.At(p.idx.posAt(lineStart)),
				"indentation of %d spaces is not a multiple of two", spaces)
		}
		depth := spaces / 2

		if depth == 0 {
			blk, next, err := p.parseBlockOpener(i)
			if err != nil {
				return nil, err
			}
			doc.Blocks = append(doc.Blocks, blk)
			cur = blk
			stack = []container{{target: &blk.Entries}}
			pos = next
			continue
		}

		if cur == nil {
			return nil, diag.At(diag.ParseUnexpected, source.At(p.idx.posAt(i)),
				"indented line outside any block")
		}

		if cur.Kind == ast.BlockImport {
			next, err := p.parseImportBody(cur, i, depth)
			if err != nil {
				return nil, err
			}
			pos = next
			continue
		}

		if depth > len(stack) {
			return nil, diag.At(diag.ParseIndent, source.At(p.idx.posAt(lineStart)),
				"indentation jumps from level %d to level %d", len(stack), depth)
		}
		stack = stack[:depth]
		parent := stack[len(stack)-1]

		entry, opened, next, err := p.parseEntry(i)
		if err != nil {
			return nil, err
		}
		*parent.target = append(*parent.target, entry)
		if parent.mapNode != nil {
			parent.mapNode.ExtendTo(entry.Span.End)
		}
		if opened != nil {
			stack = append(stack, container{target: &opened.Entries, mapNode: opened})
		}
		pos = next
	}

	return doc, nil
}

// parseBlockOpener parses "@tag" at column zero. Nothing else may follow the
// tag on the line.
func (p *fileParser) parseBlockOpener(off int) (*ast.Block, int, *diag.Diagnostic) {
	if p.file.Text[off] != '@' {
		return nil, 0, diag.At(diag.ParseUnexpected, source.At(p.idx.posAt(off)),
			"expected a block opener ('@tag') at column zero")
	}
	lx := newLexer(p.idx, off, false)
	if _, err := lx.next(); err != nil { // '@'
		return nil, 0, err
	}
	nameTok, err := lx.next()
	if err != nil {
		return nil, 0, err
	}
	if nameTok.kind != tkIdent {
		return nil, 0, diag.At(diag.ParseUnexpected, nameTok.span,
			"expected block tag after '@', found %s", nameTok.kind)
	}
	kind, ok := ast.KindOf(nameTok.text)
	if !ok {
		return nil, 0, diag.At(diag.ParseUnexpected, nameTok.span,
			"unknown block tag @%s", nameTok.text)
	}
	end, err := p.expectLineEnd(lx)
	if err != nil {
		return nil, 0, err
	}
	blk := &ast.Block{
		Kind: kind,
		Span: source.Span{Start: p.idx.posAt(off), End: nameTok.span.End},
	}
	return blk, end, nil
}

// parseImportBody parses the single string-literal path of an @import block.
func (p *fileParser) parseImportBody(blk *ast.Block, off, depth int) (int, *diag.Diagnostic) {
	if depth != 1 {
		return 0, diag.At(diag.ParseIndent, source.At(p.idx.posAt(off)),
			"import path must be indented exactly one level")
	}
	if blk.ImportPath != "" {
		return 0, diag.At(diag.ParseUnexpected, source.At(p.idx.posAt(off)),
			"@import takes a single path")
	}
	lx := newLexer(p.idx, off, false)
	t, err := lx.next()
	if err != nil {
		return 0, err
	}
	if t.kind != tkString {
		return 0, diag.At(diag.ParseUnexpected, t.span,
			"expected a string literal import path, found %s", t.kind)
	}
	if t.str == "" {
		return 0, diag.At(diag.ParseUnexpected, t.span, "import path must not be empty")
	}
	end, err := p.expectLineEnd(lx)
	if err != nil {
		return 0, err
	}
	blk.ImportPath = t.str
	blk.Span.End = t.span.End
	return end, nil
}

// parseEntry parses "key: value" or "key = value". When the value is empty,
// a block-form mapping opens and is returned as opened.
func (p *fileParser) parseEntry(off int) (entry *ast.Entry, opened *ast.MapLit, next int, derr *diag.Diagnostic) {
	lx := newLexer(p.idx, off, false)
	keyTok, err := lx.next()
	if err != nil {
		return nil, nil, 0, err
	}
	if keyTok.kind != tkIdent {
		return nil, nil, 0, diag.At(diag.ParseUnexpected, keyTok.span,
			"expected an entry key, found %s", keyTok.kind)
	}
	sep, err := lx.next()
	if err != nil {
		return nil, nil, 0, err
	}
	if sep.kind != tkColon && sep.kind != tkEquals {
		return nil, nil, 0, diag.At(diag.ParseUnexpected, sep.span,
			"expected ':' or '=' after entry key, found %s", sep.kind)
	}

	la, err := lx.peek(1)
	if err != nil {
		return nil, nil, 0, err
	}
	if la.kind == tkNewline || la.kind == tkEOF {
		// Empty value: a block-form mapping follows on deeper lines.
		m := &ast.MapLit{}
		m.SetSpan(source.Span{Start: keyTok.span.Start, End: sep.span.End})
		end, err := p.expectLineEnd(lx)
		if err != nil {
			return nil, nil, 0, err
		}
		entry := &ast.Entry{
			Key:   keyTok.text,
			Value: m,
			Span:  source.Span{Start: keyTok.span.Start, End: sep.span.End},
		}
		return entry, m, end, nil
	}

	ep := &exprParser{lx: lx}
	expr, err := ep.parseExpr()
	if err != nil {
		return nil, nil, 0, err
	}
	end, err := p.expectLineEnd(lx)
	if err != nil {
		return nil, nil, 0, err
	}
	entry = &ast.Entry{
		Key:   keyTok.text,
		Value: expr,
		Span:  source.Span{Start: keyTok.span.Start, End: expr.Span().End},
	}
	return entry, nil, end, nil
}

// expectLineEnd consumes the newline (or EOF) terminating the current line
// and returns the offset where scanning resumes.
func (p *fileParser) expectLineEnd(lx *lexer) (int, *diag.Diagnostic) {
	t, err := lx.next()
	if err != nil {
		return 0, err
	}
	if t.kind != tkNewline && t.kind != tkEOF {
		return 0, diag.At(diag.ParseUnexpected, t.span,
			"unexpected %s after end of value", t.kind)
	}
	return lx.offset(), nil
}
