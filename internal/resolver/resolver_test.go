package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/parser"
)

func resolve(t *testing.T, files map[string]string, entry string) (*Result, *diag.Diagnostic) {
	t.Helper()
	doc, perr := parser.Parse(entry, files[entry])
	require.Nil(t, perr, "parse error: %v", perr)
	return New(&MemLoader{Files: files}).Resolve(doc, entry)
}

func varsOf(t *testing.T, res *Result) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, blk := range res.Doc.BlocksOf(ast.BlockVars) {
		for _, e := range blk.Entries {
			if s, ok := e.Value.(*ast.StringLit); ok {
				out[e.Key] = s.Value
			}
		}
	}
	return out
}

func TestResolve_NoImports(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"main.facet": "@vars\n  x: \"1\"\n",
	}, "main.facet")
	require.Nil(t, err)
	assert.Empty(t, res.Doc.BlocksOf(ast.BlockImport))
	assert.Equal(t, map[string]string{"x": "1"}, varsOf(t, res))
}

func TestResolve_ImporterWins(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"main.facet": "@import\n  \"base.facet\"\n@vars\n  x: \"main\"\n",
		"base.facet": "@vars\n  x: \"base\"\n  y: \"base\"\n",
	}, "main.facet")
	require.Nil(t, err)
	assert.Equal(t, map[string]string{"x": "main", "y": "base"}, varsOf(t, res))
}

func TestResolve_ImporterWinsRegardlessOfBlockOrder(t *testing.T) {
	// The importing file's own declarations take precedence even when the
	// import block appears after them in the file.
	res, err := resolve(t, map[string]string{
		"main.facet": "@vars\n  x: \"main\"\n@import\n  \"base.facet\"\n",
		"base.facet": "@vars\n  x: \"base\"\n",
	}, "main.facet")
	require.Nil(t, err)
	assert.Equal(t, map[string]string{"x": "main"}, varsOf(t, res))
}

func TestResolve_LastBlockWinsForSingletons(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"main.facet": "@import\n  \"base.facet\"\n@system\n  role: \"override\"\n",
		"base.facet": "@system\n  role: \"base\"\n  extra: \"gone\"\n",
	}, "main.facet")
	require.Nil(t, err)

	systems := res.Doc.BlocksOf(ast.BlockSystem)
	require.Len(t, systems, 1)
	require.Len(t, systems[0].Entries, 1)
	assert.Equal(t, "override", systems[0].Entries[0].Value.(*ast.StringLit).Value)
}

func TestResolve_ContextAppends(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"main.facet": "@import\n  \"base.facet\"\n@context\n  doc: \"second\"\n",
		"base.facet": "@context\n  doc: \"first\"\n",
	}, "main.facet")
	require.Nil(t, err)

	contexts := res.Doc.BlocksOf(ast.BlockContext)
	require.Len(t, contexts, 2)
	assert.Equal(t, "first", contexts[0].Entries[0].Value.(*ast.StringLit).Value)
	assert.Equal(t, "second", contexts[1].Entries[0].Value.(*ast.StringLit).Value)
}

func TestResolve_TransitiveImports(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"main.facet": "@import\n  \"mid.facet\"\n@vars\n  c: \"main\"\n",
		"mid.facet":  "@import\n  \"leaf.facet\"\n@vars\n  b: \"mid\"\n",
		"leaf.facet": "@vars\n  a: \"leaf\"\n",
	}, "main.facet")
	require.Nil(t, err)
	assert.Equal(t, map[string]string{"a": "leaf", "b": "mid", "c": "main"}, varsOf(t, res))
}

func TestResolve_RelativePaths(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"dir/main.facet":      "@import\n  \"sub/child.facet\"\n",
		"dir/sub/child.facet": "@import\n  \"../sibling.facet\"\n@vars\n  a: \"child\"\n",
		"dir/sibling.facet":   "@vars\n  b: \"sibling\"\n",
	}, "dir/main.facet")
	require.Nil(t, err)
	assert.Equal(t, map[string]string{"a": "child", "b": "sibling"}, varsOf(t, res))
}

func TestResolve_ImportCycle(t *testing.T) {
	_, err := resolve(t, map[string]string{
		"a.facet": "@import\n  \"b.facet\"\n",
		"b.facet": "@import\n  \"a.facet\"\n",
	}, "a.facet")
	require.NotNil(t, err)
	assert.Equal(t, diag.ResolveCycle, err.Code)
	assert.Contains(t, err.Message, "a.facet → b.facet → a.facet")
}

func TestResolve_SelfImport(t *testing.T) {
	_, err := resolve(t, map[string]string{
		"a.facet": "@import\n  \"a.facet\"\n",
	}, "a.facet")
	require.NotNil(t, err)
	assert.Equal(t, diag.ResolveCycle, err.Code)
}

func TestResolve_DepthLimit(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 12; i++ {
		files[fileN(i)] = "@import\n  \"" + fileN(i+1) + "\"\n"
	}
	files[fileN(12)] = "@vars\n  x: \"leaf\"\n"

	_, err := resolve(t, files, fileN(0))
	require.NotNil(t, err)
	assert.Equal(t, diag.ResolveDepth, err.Code)
}

func fileN(i int) string {
	return "f" + string(rune('a'+i)) + ".facet"
}

func TestResolve_NotFound(t *testing.T) {
	_, err := resolve(t, map[string]string{
		"main.facet": "@import\n  \"missing.facet\"\n",
	}, "main.facet")
	require.NotNil(t, err)
	assert.Equal(t, diag.ResolveNotFound, err.Code)
	require.NotNil(t, err.Span)
}

func TestResolve_PathEscape(t *testing.T) {
	_, err := resolve(t, map[string]string{
		"main.facet": "@import\n  \"../../etc/secrets\"\n",
	}, "main.facet")
	require.NotNil(t, err)
	assert.Equal(t, diag.ResolvePath, err.Code)
}

func TestResolve_DuplicateKeysFlagged(t *testing.T) {
	res, err := resolve(t, map[string]string{
		"main.facet": "@vars\n  x: \"1\"\n  x: \"2\"\n",
	}, "main.facet")
	require.Nil(t, err)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, diag.ValidateDup, res.Duplicates[0].Code)
}

func TestResolve_MergeAssociativityForDisjointKeys(t *testing.T) {
	// A∪B∪C flattened in one chain must equal A∪(B∪C) via a middle file,
	// when key sets are pairwise disjoint.
	flat, err := resolve(t, map[string]string{
		"main.facet": "@import\n  \"a.facet\"\n@import\n  \"b.facet\"\n@import\n  \"c.facet\"\n",
		"a.facet":    "@vars\n  a: \"1\"\n",
		"b.facet":    "@vars\n  b: \"2\"\n",
		"c.facet":    "@vars\n  c: \"3\"\n",
	}, "main.facet")
	require.Nil(t, err)

	nested, err := resolve(t, map[string]string{
		"main.facet": "@import\n  \"a.facet\"\n@import\n  \"bc.facet\"\n",
		"a.facet":    "@vars\n  a: \"1\"\n",
		"bc.facet":   "@import\n  \"b.facet\"\n@import\n  \"c.facet\"\n",
		"b.facet":    "@vars\n  b: \"2\"\n",
		"c.facet":    "@vars\n  c: \"3\"\n",
	}, "main.facet")
	require.Nil(t, err)

	if diff := cmp.Diff(varsOf(t, flat), varsOf(t, nested)); diff != "" {
		t.Errorf("merge mismatch (-flat +nested):\n%s", diff)
	}
}
