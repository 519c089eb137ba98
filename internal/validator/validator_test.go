package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/parser"
	"facet/internal/resolver"
)

func check(t *testing.T, src string) (*Checked, diag.List) {
	t.Helper()
	doc, perr := parser.Parse("<input>", src)
	require.Nil(t, perr, "parse error: %v", perr)
	res, rerr := resolver.New(&resolver.MemLoader{Files: map[string]string{}}).Resolve(doc, "<input>")
	require.Nil(t, rerr, "resolve error: %v", rerr)
	return Validate(res)
}

func mustCheck(t *testing.T, src string) *Checked {
	t.Helper()
	checked, errs := check(t, src)
	require.Empty(t, errs, "unexpected validation errors: %v", errs)
	return checked
}

func firstCode(t *testing.T, errs diag.List) diag.Code {
	t.Helper()
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func TestValidate_InfersLiteralTypes(t *testing.T) {
	checked := mustCheck(t, `@vars
  s: "x"
  i: 1
  f: 1.5
  b: false
  n: null
`)
	assert.Equal(t, "string", checked.ByName["s"].Inferred.String())
	assert.Equal(t, "int", checked.ByName["i"].Inferred.String())
	assert.Equal(t, "float", checked.ByName["f"].Inferred.String())
	assert.Equal(t, "bool", checked.ByName["b"].Inferred.String())
	assert.Equal(t, "null", checked.ByName["n"].Inferred.String())
}

func TestValidate_InfersContainers(t *testing.T) {
	checked := mustCheck(t, `@vars
  homogeneous: [1, 2, 3]
  mixed: [1, "two"]
  uniform_map: {a: 1, b: 2}
  record: {name: "x", count: 3}
`)
	assert.Equal(t, "list<int>", checked.ByName["homogeneous"].Inferred.String())
	assert.Equal(t, "list<union{int | string}>", checked.ByName["mixed"].Inferred.String())
	assert.Equal(t, "map<int>", checked.ByName["uniform_map"].Inferred.String())
	assert.Equal(t, "struct{name: string, count: int}", checked.ByName["record"].Inferred.String())
}

func TestValidate_InfersPipelineTypes(t *testing.T) {
	checked := mustCheck(t, `@vars
  raw: "  a,b  "
  parts: $raw |> trim() |> split(",")
  n: $parts |> length()
  joined: $parts |> join("-")
`)
	assert.Equal(t, "list<string>", checked.ByName["parts"].Inferred.String())
	assert.Equal(t, "int", checked.ByName["n"].Inferred.String())
	assert.Equal(t, "string", checked.ByName["joined"].Inferred.String())
}

func TestValidate_ReferenceTypePropagates(t *testing.T) {
	checked := mustCheck(t, `@vars
  a: 42
  b: $a
`)
	assert.Equal(t, "int", checked.ByName["b"].Inferred.String())
}

func TestValidate_DeclaredTypes(t *testing.T) {
	t.Run("matching declaration passes", func(t *testing.T) {
		checked := mustCheck(t, `@var_types
  age: { type: "int", min: 0, max: 120 }
@vars
  age: 42
`)
		require.NotNil(t, checked.ByName["age"].Decl)
	})

	t.Run("int widens to float", func(t *testing.T) {
		mustCheck(t, `@var_types
  ratio: "float"
@vars
  ratio: 1
`)
	})

	t.Run("unmatched declaration is permitted", func(t *testing.T) {
		checked := mustCheck(t, `@var_types
  unused: "string"
@vars
  x: 1
`)
		_, declared := checked.Types["unused"]
		assert.True(t, declared)
	})

	t.Run("literal type mismatch", func(t *testing.T) {
		_, errs := check(t, `@var_types
  age: "int"
@vars
  age: "not a number"
`)
		assert.Equal(t, diag.ValidateType, firstCode(t, errs))
	})
}

func TestValidate_ConstraintViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"numeric max", "@var_types\n  age: { type: \"int\", min: 0, max: 120 }\n@vars\n  age: 150\n"},
		{"numeric min", "@var_types\n  age: { type: \"int\", min: 0 }\n@vars\n  age: -1\n"},
		{"string min_length", "@var_types\n  id: { type: \"string\", min_length: 3 }\n@vars\n  id: \"ab\"\n"},
		{"string max_length", "@var_types\n  id: { type: \"string\", max_length: 2 }\n@vars\n  id: \"abc\"\n"},
		{"pattern full match", "@var_types\n  id: { type: \"string\", pattern: \"[a-z]+\" }\n@vars\n  id: \"abc1\"\n"},
		{"enum membership", "@var_types\n  mode: { type: \"string\", enum: [\"fast\", \"slow\"] }\n@vars\n  mode: \"medium\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := check(t, tt.src)
			assert.Equal(t, diag.ValidateConstraint, firstCode(t, errs))
		})
	}
}

func TestValidate_ConstraintSatisfied(t *testing.T) {
	mustCheck(t, `@var_types
  id: { type: "string", min_length: 2, max_length: 5, pattern: "[a-z]+" }
  mode: { type: "string", enum: ["fast", "slow"] }
@vars
  id: "abc"
  mode: "fast"
`)
}

func TestValidate_UndefinedReference(t *testing.T) {
	t.Run("in vars", func(t *testing.T) {
		_, errs := check(t, "@vars\n  a: $missing\n")
		assert.Equal(t, diag.ValidateUndef, firstCode(t, errs))
	})
	t.Run("in consumer block", func(t *testing.T) {
		_, errs := check(t, "@user\n  msg: $missing\n")
		assert.Equal(t, diag.ValidateUndef, firstCode(t, errs))
	})
}

func TestValidate_SelfReference(t *testing.T) {
	_, errs := check(t, "@vars\n  a: $a\n")
	assert.Equal(t, diag.ValidateFwd, firstCode(t, errs))
}

func TestValidate_IndirectCycleDeferredToEngine(t *testing.T) {
	// Name-level cycles across bindings validate cleanly; the engine owns
	// the final cycle report.
	checked := mustCheck(t, "@vars\n  a: $b\n  b: $a\n")
	require.NotNil(t, checked)
}

func TestValidate_LensErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
	}{
		{"unknown lens", "@vars\n  x: \"s\" |> nope()\n", diag.ValidateLens},
		{"too few positional", "@vars\n  x: \"s\" |> substring()\n", diag.ValidateLens},
		{"too many positional", "@vars\n  x: \"s\" |> trim(1)\n", diag.ValidateLens},
		{"unknown named argument", "@vars\n  x: \"s\" |> hash(alg=\"sha256\")\n", diag.ValidateLens},
		{"input kind mismatch", "@vars\n  x: 1 |> trim()\n", diag.ValidateType},
		{"list lens on string", "@vars\n  x: \"s\" |> first()\n", diag.ValidateType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := check(t, tt.src)
			assert.Equal(t, tt.code, firstCode(t, errs))
		})
	}
}

func TestValidate_InputDirective(t *testing.T) {
	t.Run("missing type attribute", func(t *testing.T) {
		_, errs := check(t, "@vars\n  q: input(default=\"x\")\n")
		assert.Equal(t, diag.ValidateInput, firstCode(t, errs))
	})
	t.Run("unknown attribute", func(t *testing.T) {
		_, errs := check(t, "@vars\n  q: input(type=\"string\", shape=\"round\")\n")
		assert.Equal(t, diag.ValidateInput, firstCode(t, errs))
	})
	t.Run("type attribute drives inference", func(t *testing.T) {
		checked := mustCheck(t, "@vars\n  q: input(type=\"string\", description=\"user query\")\n")
		assert.Equal(t, "string", checked.ByName["q"].Inferred.String())
	})
	t.Run("default must satisfy the type", func(t *testing.T) {
		_, errs := check(t, "@vars\n  q: input(type=\"int\", default=\"oops\")\n")
		assert.Equal(t, diag.ValidateType, firstCode(t, errs))
	})
}

func TestValidate_DuplicateDeclaration(t *testing.T) {
	_, errs := check(t, "@vars\n  x: 1\n  x: 2\n")
	assert.Equal(t, diag.ValidateDup, firstCode(t, errs))
}

func TestValidate_BatchesIndependentErrors(t *testing.T) {
	_, errs := check(t, `@vars
  a: $missing_one
  b: $missing_two
  c: "s" |> nope()
`)
	require.Len(t, errs, 3)
}

func TestValidate_MockTargets(t *testing.T) {
	t.Run("external lens and interface method accepted", func(t *testing.T) {
		mustCheck(t, `@interface
  search:
    query: { returns: "list<string>" }
@vars
  x: 1
@test
  smoke:
    overrides: { x: 2 }
    mocks: { "llm": "canned", "search.query": ["doc"] }
`)
	})
	t.Run("unknown mock target", func(t *testing.T) {
		_, errs := check(t, `@vars
  x: 1
@test
  smoke:
    mocks: { "nope.method": 1 }
`)
		assert.Equal(t, diag.ValidateLens, firstCode(t, errs))
	})
	t.Run("pure lens cannot be mocked", func(t *testing.T) {
		_, errs := check(t, `@vars
  x: 1
@test
  smoke:
    mocks: { "trim": "zzz" }
`)
		assert.Equal(t, diag.ValidateLens, firstCode(t, errs))
	})
	t.Run("override must target a binding", func(t *testing.T) {
		_, errs := check(t, `@vars
  x: 1
@test
  smoke:
    overrides: { ghost: 2 }
`)
		assert.Equal(t, diag.ValidateUndef, firstCode(t, errs))
	})
}

func TestValidate_UnionDeclarations(t *testing.T) {
	mustCheck(t, `@var_types
  id: { any_of: ["int", "string"] }
@vars
  id: "abc"
`)
	_, errs := check(t, `@var_types
  id: { any_of: ["int", "string"] }
@vars
  id: true
`)
	assert.Equal(t, diag.ValidateType, firstCode(t, errs))
}

func TestValidate_TypeNameParsing(t *testing.T) {
	checked := mustCheck(t, `@var_types
  tags: "list<string>"
  weights: "map<float>"
  vec: { type: "embedding", size: 512 }
@vars
  tags: ["a"]
  weights: {w: 0.5}
`)
	assert.Equal(t, "list<string>", checked.Types["tags"].String())
	assert.Equal(t, "map<float>", checked.Types["weights"].String())
	assert.Equal(t, ast.TypeEmbedding, checked.Types["vec"].Kind)
	assert.Equal(t, 512, checked.Types["vec"].EmbedSize)
}
