package lens

import (
	"sort"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/value"
)

func init() {
	register(&Lens{
		Name:  "keys",
		Input: InMap,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			fields, err := wantMap("keys", in)
			if err != nil {
				return value.Null(), err
			}
			keys := sortedKeys(fields)
			out := make([]value.Value, len(keys))
			for i, k := range keys {
				out[i] = value.Str(k)
			}
			return value.List(out), nil
		},
		Result: func(*ast.TypeDesc, *ast.LensCall) *ast.TypeDesc {
			return ast.ListOf(ast.Prim(ast.TypeString))
		},
	})

	register(&Lens{
		Name:  "values",
		Input: InMap,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			fields, err := wantMap("values", in)
			if err != nil {
				return value.Null(), err
			}
			byKey := map[string]value.Value{}
			for _, f := range fields {
				byKey[f.Key] = f.Val
			}
			keys := sortedKeys(fields)
			out := make([]value.Value, len(keys))
			for i, k := range keys {
				out[i] = byKey[k]
			}
			return value.List(out), nil
		},
		Result: func(in *ast.TypeDesc, _ *ast.LensCall) *ast.TypeDesc {
			if in != nil && in.Kind == ast.TypeMap && in.Elem != nil {
				return ast.ListOf(in.Elem)
			}
			return ast.ListOf(ast.Prim(ast.TypeAny))
		},
	})

	register(&Lens{
		Name:   "default",
		Input:  InAny,
		MinPos: 1,
		MaxPos: 1,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			if in.IsNull() {
				return pos[0], nil
			}
			return in, nil
		},
		Result: func(in *ast.TypeDesc, _ *ast.LensCall) *ast.TypeDesc {
			if in == nil || in.Kind == ast.TypeNull {
				return ast.Prim(ast.TypeAny)
			}
			return in
		},
	})
}

func wantMap(name string, in value.Value) ([]value.Field, *diag.Diagnostic) {
	if in.Kind() != value.KindMap {
		return nil, failf(name, in, "expected map input")
	}
	return in.Fields(), nil
}

// sortedKeys returns the map's distinct keys in lexicographic order.
func sortedKeys(fields []value.Field) []string {
	seen := map[string]bool{}
	var keys []string
	for _, f := range fields {
		if !seen[f.Key] {
			seen[f.Key] = true
			keys = append(keys, f.Key)
		}
	}
	sort.Strings(keys)
	return keys
}
