package parser

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"facet/internal/diag"
	"facet/internal/source"
)

// lineIndex maps byte offsets in normalized source to line/column positions.
type lineIndex struct {
	src    string
	starts []int // byte offset of each line start
}

func newLineIndex(src string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

// posAt converts a byte offset to a Position. Columns count runes.
func (li *lineIndex) posAt(off int) source.Position {
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > off }) - 1
	col := utf8.RuneCountInString(li.src[li.starts[line]:off]) + 1
	return source.Position{Offset: off, Line: line + 1, Column: col}
}

func (li *lineIndex) spanAt(start, end int) source.Span {
	return source.Span{Start: li.posAt(start), End: li.posAt(end)}
}

// lexer scans expression tokens. Newlines are significant tokens; the parser
// decides whether to skip them based on bracket depth. A '#' at the start of
// a line (only whitespace before it) comments out the rest of that line.
type lexer struct {
	idx *lineIndex
	src string
	off int

	// atLineStart is true while only whitespace has been seen since the
	// last newline; it gates comment-line and leading-tab handling.
	atLineStart bool

	buf []token
}

func newLexer(idx *lineIndex, off int, atLineStart bool) *lexer {
	return &lexer{idx: idx, src: idx.src, off: off, atLineStart: atLineStart}
}

// offset returns the byte offset where scanning would resume after the last
// consumed token, accounting for lookahead.
func (lx *lexer) offset() int {
	if len(lx.buf) > 0 {
		return lx.buf[0].span.Start.Offset
	}
	return lx.off
}

// next consumes the next token.
func (lx *lexer) next() (token, *diag.Diagnostic) {
	if len(lx.buf) > 0 {
		t := lx.buf[0]
		lx.buf = lx.buf[1:]
		return t, nil
	}
	return lx.scan()
}

// peek looks ahead n tokens (n >= 1) without consuming.
func (lx *lexer) peek(n int) (token, *diag.Diagnostic) {
	for len(lx.buf) < n {
		t, err := lx.scan()
		if err != nil {
			return token{}, err
		}
		lx.buf = append(lx.buf, t)
	}
	return lx.buf[n-1], nil
}

func (lx *lexer) errAt(off int, code diag.Code, format string, args ...interface{}) *diag.Diagnostic {
	return diag.At(code, source.At(lx.idx.posAt(off)), format, args...)
}

func (lx *lexer) scan() (token, *diag.Diagnostic) {
	// Skip horizontal whitespace and comment lines.
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		switch {
		case c == ' ':
			lx.off++
		case c == '\t':
			if lx.atLineStart {
				return token{}, lx.errAt(lx.off, diag.ParseTab, "tab character in leading whitespace")
			}
			lx.off++
		case c == '#' && lx.atLineStart:
			for lx.off < len(lx.src) && lx.src[lx.off] != '\n' {
				lx.off++
			}
		default:
			goto scanned
		}
	}
scanned:
	if lx.off >= len(lx.src) {
		return token{kind: tkEOF, span: source.At(lx.idx.posAt(lx.off))}, nil
	}

	start := lx.off
	c := lx.src[lx.off]

	if c == '\n' {
		lx.off++
		lx.atLineStart = true
		return token{kind: tkNewline, span: lx.idx.spanAt(start, lx.off)}, nil
	}
	lx.atLineStart = false

	switch {
	case c == '@':
		lx.off++
		return token{kind: tkAt, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == '"':
		return lx.scanString()
	case c == '$':
		return lx.scanVar()
	case c == '|':
		if lx.off+1 < len(lx.src) && lx.src[lx.off+1] == '>' {
			lx.off += 2
			return token{kind: tkPipe, span: lx.idx.spanAt(start, lx.off)}, nil
		}
		return token{}, lx.errAt(start, diag.ParseUnexpected, "expected '|>'")
	case c == '[':
		lx.off++
		return token{kind: tkLBracket, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == ']':
		lx.off++
		return token{kind: tkRBracket, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == '{':
		lx.off++
		return token{kind: tkLBrace, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == '}':
		lx.off++
		return token{kind: tkRBrace, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == '(':
		lx.off++
		return token{kind: tkLParen, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == ')':
		lx.off++
		return token{kind: tkRParen, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == ',':
		lx.off++
		return token{kind: tkComma, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == ':':
		lx.off++
		return token{kind: tkColon, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == '=':
		lx.off++
		return token{kind: tkEquals, span: lx.idx.spanAt(start, lx.off)}, nil
	case c == '-' || c == '+' || isDigit(c):
		return lx.scanNumber()
	case isIdentStart(c):
		return lx.scanIdent()
	}

	r, _ := utf8.DecodeRuneInString(lx.src[lx.off:])
	return token{}, lx.errAt(start, diag.ParseUnexpected, "unexpected character %q", r)
}

func (lx *lexer) scanIdent() (token, *diag.Diagnostic) {
	start := lx.off
	for lx.off < len(lx.src) && isIdentPart(lx.src[lx.off]) {
		lx.off++
	}
	return token{
		kind: tkIdent,
		text: lx.src[start:lx.off],
		span: lx.idx.spanAt(start, lx.off),
	}, nil
}

func (lx *lexer) scanVar() (token, *diag.Diagnostic) {
	start := lx.off
	lx.off++ // consume '$'
	braced := false
	if lx.off < len(lx.src) && lx.src[lx.off] == '{' {
		braced = true
		lx.off++
	}
	nameStart := lx.off
	for lx.off < len(lx.src) && isIdentPart(lx.src[lx.off]) {
		lx.off++
	}
	name := lx.src[nameStart:lx.off]
	if name == "" || isDigit(name[0]) {
		return token{}, lx.errAt(start, diag.ParseUnexpected, "expected variable name after '$'")
	}
	if braced {
		if lx.off >= len(lx.src) || lx.src[lx.off] != '}' {
			return token{}, lx.errAt(start, diag.ParseUnclosed, "unclosed '${' reference")
		}
		lx.off++
	}
	return token{
		kind:   tkVar,
		text:   name,
		braced: braced,
		span:   lx.idx.spanAt(start, lx.off),
	}, nil
}

func (lx *lexer) scanString() (token, *diag.Diagnostic) {
	start := lx.off
	lx.off++ // consume opening quote
	var b strings.Builder
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		switch c {
		case '"':
			lx.off++
			return token{
				kind: tkString,
				str:  b.String(),
				span: lx.idx.spanAt(start, lx.off),
			}, nil
		case '\n':
			return token{}, lx.errAt(start, diag.ParseUnclosed, "string literal not closed before end of line")
		case '\\':
			lx.off++
			if lx.off >= len(lx.src) {
				return token{}, lx.errAt(start, diag.ParseUnclosed, "string literal not closed before end of file")
			}
			esc := lx.src[lx.off]
			switch esc {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'u':
				if lx.off+4 >= len(lx.src) {
					return token{}, lx.errAt(lx.off, diag.ParseUnexpected, "truncated \\u escape")
				}
				hex := lx.src[lx.off+1 : lx.off+5]
				n, err := strconv.ParseUint(hex, 16, 32)
				if err != nil {
					return token{}, lx.errAt(lx.off, diag.ParseUnexpected, "invalid \\u escape %q", hex)
				}
				b.WriteRune(rune(n))
				lx.off += 4
			default:
				return token{}, lx.errAt(lx.off, diag.ParseUnexpected, "invalid escape '\\%c'", esc)
			}
			lx.off++
		default:
			_, size := utf8.DecodeRuneInString(lx.src[lx.off:])
			b.WriteString(lx.src[lx.off : lx.off+size])
			lx.off += size
		}
	}
	return token{}, lx.errAt(start, diag.ParseUnclosed, "string literal not closed before end of file")
}

func (lx *lexer) scanNumber() (token, *diag.Diagnostic) {
	start := lx.off
	if lx.src[lx.off] == '-' || lx.src[lx.off] == '+' {
		lx.off++
	}
	digitStart := lx.off
	for lx.off < len(lx.src) && isDigit(lx.src[lx.off]) {
		lx.off++
	}
	if lx.off == digitStart {
		return token{}, lx.errAt(start, diag.ParseUnexpected, "expected digits in numeric literal")
	}
	isFloat := false
	if lx.off < len(lx.src) && lx.src[lx.off] == '.' {
		isFloat = true
		lx.off++
		fracStart := lx.off
		for lx.off < len(lx.src) && isDigit(lx.src[lx.off]) {
			lx.off++
		}
		if lx.off == fracStart {
			return token{}, lx.errAt(start, diag.ParseUnexpected, "expected digits after decimal point")
		}
	}
	if lx.off < len(lx.src) && (lx.src[lx.off] == 'e' || lx.src[lx.off] == 'E') {
		isFloat = true
		lx.off++
		if lx.off < len(lx.src) && (lx.src[lx.off] == '+' || lx.src[lx.off] == '-') {
			lx.off++
		}
		expStart := lx.off
		for lx.off < len(lx.src) && isDigit(lx.src[lx.off]) {
			lx.off++
		}
		if lx.off == expStart {
			return token{}, lx.errAt(start, diag.ParseUnexpected, "expected digits in exponent")
		}
	}
	text := lx.src[start:lx.off]
	span := lx.idx.spanAt(start, lx.off)
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, lx.errAt(start, diag.ParseUnexpected, "invalid float literal %q", text)
		}
		return token{kind: tkFloat, f: f, span: span}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, lx.errAt(start, diag.ParseUnexpected, "integer literal %q out of range", text)
	}
	return token{kind: tkInt, i: i, span: span}, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
