package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facet/internal/ast"
	"facet/internal/diag"
)

func mustParse(t *testing.T, src string) *ast.Document {
	t.Helper()
	doc, err := Parse("<input>", src)
	require.Nil(t, err, "unexpected parse error: %v", err)
	return doc
}

func parseErr(t *testing.T, src string) *diag.Diagnostic {
	t.Helper()
	_, err := Parse("<input>", src)
	require.NotNil(t, err, "expected a parse error")
	return err
}

func varsEntries(t *testing.T, doc *ast.Document) []*ast.Entry {
	t.Helper()
	blocks := doc.BlocksOf(ast.BlockVars)
	require.Len(t, blocks, 1)
	return blocks[0].Entries
}

func TestParse_ScalarLiterals(t *testing.T) {
	doc := mustParse(t, `@vars
  s: "hello"
  i: 42
  neg: -7
  f: 3.14
  exp: 1.5e3
  b: true
  n: null
`)
	entries := varsEntries(t, doc)
	require.Len(t, entries, 7)

	assert.Equal(t, "hello", entries[0].Value.(*ast.StringLit).Value)
	assert.Equal(t, int64(42), entries[1].Value.(*ast.IntLit).Value)
	assert.Equal(t, int64(-7), entries[2].Value.(*ast.IntLit).Value)
	assert.Equal(t, 3.14, entries[3].Value.(*ast.FloatLit).Value)
	assert.Equal(t, 1500.0, entries[4].Value.(*ast.FloatLit).Value)
	assert.Equal(t, true, entries[5].Value.(*ast.BoolLit).Value)
	assert.IsType(t, &ast.NullLit{}, entries[6].Value)
}

func TestParse_StringEscapes(t *testing.T) {
	doc := mustParse(t, `@vars
  s: "a\"b\\c\nd\te\rf\u0041"
`)
	entries := varsEntries(t, doc)
	assert.Equal(t, "a\"b\\c\nd\te\rfA", entries[0].Value.(*ast.StringLit).Value)
}

func TestParse_EqualsSeparator(t *testing.T) {
	doc := mustParse(t, `@vars
  x = 1
  y: 2
`)
	entries := varsEntries(t, doc)
	require.Len(t, entries, 2)
	assert.Equal(t, "x", entries[0].Key)
	assert.Equal(t, "y", entries[1].Key)
}

func TestParse_ListAndInlineMap(t *testing.T) {
	doc := mustParse(t, `@vars
  xs: [1, "two", true]
  m: {a: 1, "b c": 2}
  empty: []
  none: {}
`)
	entries := varsEntries(t, doc)

	list := entries[0].Value.(*ast.ListLit)
	require.Len(t, list.Elems, 3)
	assert.Equal(t, int64(1), list.Elems[0].(*ast.IntLit).Value)
	assert.Equal(t, "two", list.Elems[1].(*ast.StringLit).Value)

	m := entries[1].Value.(*ast.MapLit)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, "a", m.Entries[0].Key)
	assert.Equal(t, "b c", m.Entries[1].Key)

	assert.Empty(t, entries[2].Value.(*ast.ListLit).Elems)
	assert.Empty(t, entries[3].Value.(*ast.MapLit).Entries)
}

func TestParse_MultilineList(t *testing.T) {
	doc := mustParse(t, `@vars
  xs: [
    1,
    # a comment inside the literal
    2,
    3
  ]
`)
	entries := varsEntries(t, doc)
	list := entries[0].Value.(*ast.ListLit)
	require.Len(t, list.Elems, 3)
}

func TestParse_BlockFormMapping(t *testing.T) {
	doc := mustParse(t, `@vars
  obj:
    x: 1
    nested:
      y: 2
  after: 3
`)
	entries := varsEntries(t, doc)
	require.Len(t, entries, 2)

	obj := entries[0].Value.(*ast.MapLit)
	require.Len(t, obj.Entries, 2)
	assert.Equal(t, "x", obj.Entries[0].Key)

	nested := obj.Entries[1].Value.(*ast.MapLit)
	require.Len(t, nested.Entries, 1)
	assert.Equal(t, "y", nested.Entries[0].Key)

	assert.Equal(t, "after", entries[1].Key)
}

func TestParse_VariableReferences(t *testing.T) {
	doc := mustParse(t, `@vars
  a: $b
  c: ${d}
`)
	entries := varsEntries(t, doc)
	ref := entries[0].Value.(*ast.VarRef)
	assert.Equal(t, "b", ref.Name)
	assert.False(t, ref.Braced)

	braced := entries[1].Value.(*ast.VarRef)
	assert.Equal(t, "d", braced.Name)
	assert.True(t, braced.Braced)
}

func TestParse_Pipeline(t *testing.T) {
	doc := mustParse(t, `@vars
  out: $raw |> trim() |> substring(0, 5) |> template(name="x", id=2)
`)
	entries := varsEntries(t, doc)
	pipe := entries[0].Value.(*ast.Pipeline)
	require.Len(t, pipe.Steps, 3)

	assert.Equal(t, "raw", pipe.Head.(*ast.VarRef).Name)
	assert.Equal(t, "trim", pipe.Steps[0].Name)
	assert.Empty(t, pipe.Steps[0].Positional)

	sub := pipe.Steps[1]
	assert.Equal(t, "substring", sub.Name)
	require.Len(t, sub.Positional, 2)
	assert.Equal(t, int64(0), sub.Positional[0].(*ast.IntLit).Value)

	tpl := pipe.Steps[2]
	require.Len(t, tpl.Named, 2)
	assert.Equal(t, "name", tpl.Named[0].Name)
	assert.Equal(t, "id", tpl.Named[1].Name)
}

func TestParse_InputDirective(t *testing.T) {
	doc := mustParse(t, `@vars
  query: input(type="string", default="hi")
`)
	entries := varsEntries(t, doc)
	dir := entries[0].Value.(*ast.Directive)
	assert.Equal(t, "input", dir.Name)
	require.Len(t, dir.Attrs, 2)
	assert.Equal(t, "string", dir.Attr("type").(*ast.StringLit).Value)
}

func TestParse_ImportBlock(t *testing.T) {
	doc := mustParse(t, `@import
  "common.facet"
@vars
  x: 1
`)
	imports := doc.BlocksOf(ast.BlockImport)
	require.Len(t, imports, 1)
	assert.Equal(t, "common.facet", imports[0].ImportPath)
}

func TestParse_BlocksAndComments(t *testing.T) {
	doc := mustParse(t, `# leading comment

@meta
  budget: 1000

@system
  role: "assistant"

# between blocks
@user
  msg: "hi"
`)
	require.Len(t, doc.Blocks, 3)
	assert.Equal(t, ast.BlockMeta, doc.Blocks[0].Kind)
	assert.Equal(t, ast.BlockSystem, doc.Blocks[1].Kind)
	assert.Equal(t, ast.BlockUser, doc.Blocks[2].Kind)
}

func TestParse_CRLFAndBOM(t *testing.T) {
	doc := mustParse(t, "\uFEFF@vars\r\n  x: 1\r\n")
	entries := varsEntries(t, doc)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Key)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
	}{
		{"tab in leading whitespace", "@vars\n\tx: 1\n", diag.ParseTab},
		{"odd indentation", "@vars\n   x: 1\n", diag.ParseIndent},
		{"indentation jump", "@vars\n  a: 1\n      b: 2\n", diag.ParseIndent},
		{"unclosed string", "@vars\n  x: \"abc\n", diag.ParseUnclosed},
		{"unclosed string at eof", "@vars\n  x: \"abc", diag.ParseUnclosed},
		{"unclosed list", "@vars\n  x: [1, 2\n", diag.ParseUnclosed},
		{"unclosed brace reference", "@vars\n  x: ${name\n", diag.ParseUnclosed},
		{"unknown block tag", "@bogus\n  x: 1\n", diag.ParseUnexpected},
		{"content before any block", "x: 1\n", diag.ParseUnexpected},
		{"trailing token after value", "@vars\n  x: 1 2\n", diag.ParseUnexpected},
		{"bare identifier value", "@vars\n  x: foo\n", diag.ParseUnexpected},
		{"positional after named", "@vars\n  x: \"s\" |> template(a=1, 2)\n", diag.ParseUnexpected},
		{"pipe without parens", "@vars\n  x: \"s\" |> trim\n", diag.ParseUnexpected},
		{"second import path", "@import\n  \"a\"\n  \"b\"\n", diag.ParseUnexpected},
		{"trailing comment after value", "@vars\n  x: 1 # no\n", diag.ParseUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseErr(t, tt.src)
			assert.Equal(t, tt.code, err.Code, "got %v", err)
		})
	}
}

func TestParse_SpansPointAtSource(t *testing.T) {
	src := "@vars\n  x: \"abc\"\n"
	doc := mustParse(t, src)
	entry := varsEntries(t, doc)[0]

	assert.Equal(t, 2, entry.Span.Start.Line)
	assert.Equal(t, 3, entry.Span.Start.Column)

	lit := entry.Value.(*ast.StringLit)
	assert.Equal(t, 2, lit.Span().Start.Line)
	assert.Equal(t, 6, lit.Span().Start.Column)
}

func TestParse_TabErrorPosition(t *testing.T) {
	err := parseErr(t, "@vars\n  a: 1\n\tb: 2\n")
	assert.Equal(t, diag.ParseTab, err.Code)
	require.NotNil(t, err.Span)
	assert.Equal(t, 3, err.Span.Start.Line)
}
