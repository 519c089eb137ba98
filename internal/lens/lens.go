// Package lens is the pure function library invoked from pipeline steps.
// Lenses are values in a dispatch table keyed by name, each carrying a typed
// signature, a cost function for gas accounting, and a pure callable. Lenses
// are deterministic, never suspend, never perform I/O, and retain no state
// between invocations. Adding a lens is a table entry.
package lens

import (
	"fmt"
	"sort"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/value"
)

// InputKind constrains what a lens accepts as pipeline input.
type InputKind int

const (
	InAny InputKind = iota
	InString
	InList
	InMap
	InListOrString
)

// Admits reports whether a statically inferred input type can satisfy the
// constraint. Unions and any never reject statically; the runtime check in
// Apply has the final word.
func (k InputKind) Admits(t *ast.TypeDesc) bool {
	if t == nil || t.Kind == ast.TypeAny || t.Kind == ast.TypeUnion || t.Kind == ast.TypeNull {
		return true
	}
	switch k {
	case InAny:
		return true
	case InString:
		return t.Kind == ast.TypeString
	case InList:
		return t.Kind == ast.TypeList
	case InMap:
		return t.Kind == ast.TypeMap || t.Kind == ast.TypeStruct
	case InListOrString:
		return t.Kind == ast.TypeList || t.Kind == ast.TypeString
	}
	return true
}

// String names the constraint for diagnostics.
func (k InputKind) String() string {
	switch k {
	case InString:
		return "string"
	case InList:
		return "list"
	case InMap:
		return "map"
	case InListOrString:
		return "list or string"
	default:
		return "any"
	}
}

// Lens is one dispatch-table entry.
type Lens struct {
	Name  string
	Input InputKind

	// Positional arity bounds and the closed set of accepted named args.
	// OpenNamed lifts the closed set for lenses like template, whose named
	// arguments are data rather than options.
	MinPos    int
	MaxPos    int
	Named     map[string]bool
	OpenNamed bool

	// External marks a Level-1 bounded lens (LLM, embedding, RAG). The core
	// never executes these; their values come from a mock registry.
	External bool

	// Cost is the gas charge beyond the base unit, proportional to the
	// operation's natural complexity. Nil means base cost only.
	Cost func(in value.Value, pos []value.Value) int64

	// Apply executes the lens. Nil for external lenses.
	Apply func(in value.Value, pos []value.Value, named map[string]value.Value) (value.Value, *diag.Diagnostic)

	// Result infers the output type from the input type and the call site.
	Result func(in *ast.TypeDesc, call *ast.LensCall) *ast.TypeDesc
}

var registry = map[string]*Lens{}

func register(l *Lens) {
	if _, dup := registry[l.Name]; dup {
		panic(fmt.Sprintf("lens %q registered twice", l.Name))
	}
	registry[l.Name] = l
}

// Get looks up a lens by name.
func Get(name string) (*Lens, bool) {
	l, ok := registry[name]
	return l, ok
}

// Names returns all registered lens names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// failf builds an E-LENS diagnostic carrying the lens name, input kind, and
// a short reason.
func failf(name string, in value.Value, format string, args ...interface{}) *diag.Diagnostic {
	reason := fmt.Sprintf(format, args...)
	return diag.New(diag.EngineLens, "lens %q on %s input: %s", name, in.Kind(), reason)
}

// wantString unwraps a string input or fails.
func wantString(name string, in value.Value) (string, *diag.Diagnostic) {
	if in.Kind() != value.KindString {
		return "", failf(name, in, "expected string input")
	}
	return in.AsString(), nil
}

// wantList unwraps a list input or fails.
func wantList(name string, in value.Value) ([]value.Value, *diag.Diagnostic) {
	if in.Kind() != value.KindList {
		return nil, failf(name, in, "expected list input")
	}
	return in.Elems(), nil
}

// strArg unwraps a string argument or fails.
func strArg(name string, v value.Value, what string) (string, *diag.Diagnostic) {
	if v.Kind() != value.KindString {
		return "", failf(name, v, "argument %s must be a string", what)
	}
	return v.AsString(), nil
}

// intArg unwraps an integer argument or fails.
func intArg(name string, v value.Value, what string) (int64, *diag.Diagnostic) {
	if v.Kind() != value.KindInt {
		return 0, failf(name, v, "argument %s must be an integer", what)
	}
	return v.AsInt(), nil
}

// inputCost charges by payload size: rune count for strings, element count
// for lists and maps.
func inputCost(in value.Value, _ []value.Value) int64 {
	return int64(in.Len())
}

func strType(*ast.TypeDesc, *ast.LensCall) *ast.TypeDesc { return ast.Prim(ast.TypeString) }
func intType(*ast.TypeDesc, *ast.LensCall) *ast.TypeDesc { return ast.Prim(ast.TypeInt) }
func anyType(*ast.TypeDesc, *ast.LensCall) *ast.TypeDesc { return ast.Prim(ast.TypeAny) }

// sameType preserves the input type, for list transforms.
func sameType(in *ast.TypeDesc, _ *ast.LensCall) *ast.TypeDesc {
	if in == nil {
		return ast.Prim(ast.TypeAny)
	}
	return in
}

// elemType projects a list input's element type.
func elemType(in *ast.TypeDesc, _ *ast.LensCall) *ast.TypeDesc {
	if in != nil && in.Kind == ast.TypeList && in.Elem != nil {
		return in.Elem
	}
	return ast.Prim(ast.TypeAny)
}
