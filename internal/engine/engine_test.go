package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/parser"
	"facet/internal/resolver"
	"facet/internal/validator"
	"facet/internal/value"
)

func checked(t *testing.T, src string) *validator.Checked {
	t.Helper()
	doc, perr := parser.Parse("<input>", src)
	require.Nil(t, perr, "parse error: %v", perr)
	res, rerr := resolver.New(&resolver.MemLoader{Files: map[string]string{}}).Resolve(doc, "<input>")
	require.Nil(t, rerr)
	ch, verrs := validator.Validate(res)
	require.Empty(t, verrs, "validation errors: %v", verrs)
	return ch
}

func evaluate(t *testing.T, src string, opts Options) (*Result, error) {
	t.Helper()
	return New(checked(t, src), opts).Evaluate()
}

func mustEvaluate(t *testing.T, src string, opts Options) *Result {
	t.Helper()
	res, err := evaluate(t, src, opts)
	require.NoError(t, err)
	return res
}

func TestEvaluate_TrimAndUpper(t *testing.T) {
	res := mustEvaluate(t, `@vars
  raw: "  hi  "
  out: $raw |> trim() |> uppercase()
@user
  msg: $out
`, Options{})

	assert.Equal(t, "HI", res.Env["out"].AsString())

	require.Len(t, res.Blocks, 1)
	user := res.Blocks[0]
	assert.Equal(t, ast.BlockUser, user.Kind)
	require.Len(t, user.Entries, 1)
	assert.Equal(t, "HI", user.Entries[0].Val.AsString())

	// trim charges 1 + 6 code points, uppercase 1 + 2.
	assert.Equal(t, int64(10), res.GasUsed)
}

func TestEvaluate_DirectCycle(t *testing.T) {
	_, err := evaluate(t, "@vars\n  a: $b\n  b: $a\n", Options{})
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, diag.EngineCycle, d.Code)
	assert.Contains(t, d.Message, "a → b → a")
}

func TestEvaluate_LongerCycleNamesMembers(t *testing.T) {
	_, err := evaluate(t, "@vars\n  a: $b\n  b: $c\n  c: $a\n", Options{})
	require.Error(t, err)
	d := err.(*diag.Diagnostic)
	assert.Equal(t, diag.EngineCycle, d.Code)
	assert.Contains(t, d.Message, "a → b → c → a")
}

func TestEvaluate_TopologicalOrder(t *testing.T) {
	res := mustEvaluate(t, `@vars
  c: $b
  b: $a
  a: 1
`, Options{})
	assert.Equal(t, []string{"a", "b", "c"}, res.Order)
	assert.Equal(t, int64(1), res.Env["c"].AsInt())
}

func TestEvaluate_DeclarationOrderBreaksTies(t *testing.T) {
	res := mustEvaluate(t, `@vars
  z: 1
  m: 2
  a: 3
`, Options{})
	// Independent bindings evaluate in first-declaration order.
	assert.Equal(t, []string{"z", "m", "a"}, res.Order)
}

func TestEvaluate_ReferencesInsideComposites(t *testing.T) {
	res := mustEvaluate(t, `@vars
  name: "ada"
  profile: {user: $name, tags: [$name, "x"]}
`, Options{})
	assert.Equal(t, `{"tags":["ada","x"],"user":"ada"}`, res.Env["profile"].Canonical())
}

func TestEvaluate_LensArgsMayReference(t *testing.T) {
	res := mustEvaluate(t, `@vars
  sep: "-"
  joined: ["a", "b"] |> join($sep)
`, Options{})
	assert.Equal(t, "a-b", res.Env["joined"].AsString())
}

func TestEvaluate_GasExhaustion(t *testing.T) {
	_, err := evaluate(t, `@vars
  out: "0123456789" |> trim() |> trim() |> trim()
`, Options{GasLimit: 20})
	require.Error(t, err)
	d := err.(*diag.Diagnostic)
	assert.Equal(t, diag.EngineGas, d.Code)
}

func TestEvaluate_GasChargesAtLeastOnePerInvocation(t *testing.T) {
	res := mustEvaluate(t, `@vars
  a: "" |> trim()
`, Options{})
	assert.Equal(t, int64(1), res.GasUsed)
}

func TestEvaluate_LensRuntimeFailure(t *testing.T) {
	_, err := evaluate(t, "@vars\n  x: [] |> first()\n", Options{})
	require.Error(t, err)
	d := err.(*diag.Diagnostic)
	assert.Equal(t, diag.EngineLens, d.Code)
	require.NotNil(t, d.Span)
}

func TestEvaluate_DeferredConstraints(t *testing.T) {
	_, err := evaluate(t, `@var_types
  n: { type: "int", max: 2 }
@vars
  xs: [1, 2, 3]
  n: $xs |> length()
`, Options{})
	require.Error(t, err)
	list, ok := err.(diag.List)
	require.True(t, ok)
	assert.Equal(t, diag.ValidateConstraint, list[0].Code)
}

func TestEvaluate_DeferredConstraintPasses(t *testing.T) {
	res := mustEvaluate(t, `@var_types
  n: { type: "int", max: 5 }
@vars
  xs: [1, 2, 3]
  n: $xs |> length()
`, Options{})
	assert.Equal(t, int64(3), res.Env["n"].AsInt())
}

func TestEvaluate_InputDirective(t *testing.T) {
	src := `@vars
  q: input(type="string", default="fallback")
`
	t.Run("host value wins", func(t *testing.T) {
		res := mustEvaluate(t, src, Options{
			Inputs: map[string]value.Value{"q": value.Str("supplied")},
		})
		assert.Equal(t, "supplied", res.Env["q"].AsString())
	})
	t.Run("default applies", func(t *testing.T) {
		res := mustEvaluate(t, src, Options{})
		assert.Equal(t, "fallback", res.Env["q"].AsString())
	})
	t.Run("null without default", func(t *testing.T) {
		res := mustEvaluate(t, "@vars\n  q: input(type=\"string\")\n", Options{})
		assert.True(t, res.Env["q"].IsNull())
	})
}

func TestEvaluate_ExternalLensNeedsMock(t *testing.T) {
	src := `@vars
  ans: "prompt" |> llm()
`
	_, err := evaluate(t, src, Options{})
	require.Error(t, err)
	assert.Equal(t, diag.EngineLens, err.(*diag.Diagnostic).Code)

	res := mustEvaluate(t, src, Options{
		Mocks: map[string]value.Value{"llm": value.Str("canned answer")},
	})
	assert.Equal(t, "canned answer", res.Env["ans"].AsString())
}

func TestEvaluate_MetaBlockEvaluatesButStaysInternal(t *testing.T) {
	res := mustEvaluate(t, `@meta
  budget: 1000
@vars
  x: 1
`, Options{})
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, ast.BlockMeta, res.Blocks[0].Kind)
}

func TestEvaluate_Determinism(t *testing.T) {
	src := `@vars
  xs: ["b", "a", "c"]
  sorted: $xs |> sort_by()
  out: $sorted |> join(",")
`
	a := mustEvaluate(t, src, Options{})
	b := mustEvaluate(t, src, Options{})
	assert.Equal(t, a.Env["out"].Canonical(), b.Env["out"].Canonical())
	assert.Equal(t, a.Order, b.Order)
	assert.Equal(t, a.GasUsed, b.GasUsed)
}

func TestTrials_ExtractAndApply(t *testing.T) {
	ch := checked(t, `@vars
  x: 1
  y: 2
@test
  smoke:
    description: "swap x"
    overrides: { x: 9 }
    mocks: { "llm": "canned" }
`)
	trials, errs := Trials(ch)
	require.Empty(t, errs)
	require.Len(t, trials, 1)

	trial := trials[0]
	assert.Equal(t, "smoke", trial.Name)
	assert.Equal(t, "swap x", trial.Description)

	res, err := New(ch, Options{}).Evaluate()
	require.NoError(t, err)

	env := ApplyOverrides(res.Env, trial)
	assert.Equal(t, int64(9), env["x"].AsInt())
	assert.Equal(t, int64(2), env["y"].AsInt())
	// The original environment is untouched.
	assert.Equal(t, int64(1), res.Env["x"].AsInt())

	mock, ok := trial.MockFor("llm")
	require.True(t, ok)
	assert.Equal(t, "canned", mock.AsString())
}
