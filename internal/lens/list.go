package lens

import (
	"sort"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/value"
)

func init() {
	register(&Lens{
		Name:  "first",
		Input: InList,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			elems, err := wantList("first", in)
			if err != nil {
				return value.Null(), err
			}
			if len(elems) == 0 {
				return value.Null(), failf("first", in, "empty list")
			}
			return elems[0], nil
		},
		Result: elemType,
	})

	register(&Lens{
		Name:  "last",
		Input: InList,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			elems, err := wantList("last", in)
			if err != nil {
				return value.Null(), err
			}
			if len(elems) == 0 {
				return value.Null(), failf("last", in, "empty list")
			}
			return elems[len(elems)-1], nil
		},
		Result: elemType,
	})

	register(&Lens{
		Name:   "nth",
		Input:  InList,
		MinPos: 1,
		MaxPos: 1,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			elems, err := wantList("nth", in)
			if err != nil {
				return value.Null(), err
			}
			i, err := intArg("nth", pos[0], "i")
			if err != nil {
				return value.Null(), err
			}
			if i < 0 || i >= int64(len(elems)) {
				return value.Null(), failf("nth", in, "index %d out of bounds for %d elements", i, len(elems))
			}
			return elems[i], nil
		},
		Result: elemType,
	})

	register(&Lens{
		Name:   "slice",
		Input:  InList,
		MinPos: 1,
		MaxPos: 2,
		Cost:   inputCost,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			elems, err := wantList("slice", in)
			if err != nil {
				return value.Null(), err
			}
			start, err := intArg("slice", pos[0], "start")
			if err != nil {
				return value.Null(), err
			}
			end := int64(len(elems))
			if len(pos) > 1 {
				end, err = intArg("slice", pos[1], "end")
				if err != nil {
					return value.Null(), err
				}
			}
			lo, hi, derr := clampRange("slice", in, start, end, int64(len(elems)))
			if derr != nil {
				return value.Null(), derr
			}
			out := make([]value.Value, hi-lo)
			copy(out, elems[lo:hi])
			return value.List(out), nil
		},
		Result: sameType,
	})

	register(&Lens{
		Name:  "length",
		Input: InListOrString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			switch in.Kind() {
			case value.KindList, value.KindString:
				return value.Int(int64(in.Len())), nil
			}
			return value.Null(), failf("length", in, "expected list or string input")
		},
		Result: intType,
	})

	register(&Lens{
		Name:  "unique",
		Input: InList,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			elems, err := wantList("unique", in)
			if err != nil {
				return value.Null(), err
			}
			seen := map[string]bool{}
			out := make([]value.Value, 0, len(elems))
			for _, el := range elems {
				key := el.Canonical()
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, el)
			}
			return value.List(out), nil
		},
		Result: sameType,
	})

	register(&Lens{
		Name:   "sort_by",
		Input:  InList,
		MaxPos: 1,
		Cost:   inputCost,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			elems, err := wantList("sort_by", in)
			if err != nil {
				return value.Null(), err
			}
			order := "asc"
			if len(pos) > 0 {
				order, err = strArg("sort_by", pos[0], "order")
				if err != nil {
					return value.Null(), err
				}
			}
			if order != "asc" && order != "desc" {
				return value.Null(), failf("sort_by", in, "order must be \"asc\" or \"desc\", got %q", order)
			}
			out := make([]value.Value, len(elems))
			copy(out, elems)
			sort.SliceStable(out, func(i, j int) bool {
				c := value.Compare(out[i], out[j])
				if order == "desc" {
					return c > 0
				}
				return c < 0
			})
			return value.List(out), nil
		},
		Result: sameType,
	})

	register(&Lens{
		Name:   "filter",
		Input:  InList,
		MinPos: 1,
		MaxPos: 1,
		Cost:   inputCost,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			elems, err := wantList("filter", in)
			if err != nil {
				return value.Null(), err
			}
			cond, err := strArg("filter", pos[0], "cond")
			if err != nil {
				return value.Null(), err
			}
			var keep func(value.Value) bool
			switch cond {
			case "non_null":
				keep = func(v value.Value) bool { return !v.IsNull() }
			case "non_empty":
				keep = func(v value.Value) bool {
					if v.IsNull() {
						return false
					}
					switch v.Kind() {
					case value.KindString, value.KindList, value.KindMap:
						return v.Len() > 0
					}
					return true
				}
			default:
				return value.Null(), failf("filter", in, "cond must be \"non_null\" or \"non_empty\", got %q", cond)
			}
			out := make([]value.Value, 0, len(elems))
			for _, el := range elems {
				if keep(el) {
					out = append(out, el)
				}
			}
			return value.List(out), nil
		},
		Result: sameType,
	})

	register(&Lens{
		Name:   "map",
		Input:  InList,
		MinPos: 1,
		MaxPos: 1,
		Cost:   inputCost,
		Apply:  applyMapOp,
		Result: mapOpResult,
	})

	register(&Lens{
		Name:  "ensure_list",
		Input: InAny,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			if in.Kind() == value.KindList {
				return in, nil
			}
			return value.List([]value.Value{in}), nil
		},
		Result: func(in *ast.TypeDesc, _ *ast.LensCall) *ast.TypeDesc {
			if in != nil && in.Kind == ast.TypeList {
				return in
			}
			return ast.ListOf(in)
		},
	})

	register(&Lens{
		Name:   "join",
		Input:  InList,
		MaxPos: 1,
		Cost:   inputCost,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			elems, err := wantList("join", in)
			if err != nil {
				return value.Null(), err
			}
			sep := ""
			if len(pos) > 0 {
				sep, err = strArg("join", pos[0], "sep")
				if err != nil {
					return value.Null(), err
				}
			}
			var b []byte
			for i, el := range elems {
				if i > 0 {
					b = append(b, sep...)
				}
				b = append(b, el.Stringify()...)
			}
			return value.Str(string(b)), nil
		},
		Result: strType,
	})
}

// mapOps is the closed operation set the map lens accepts. Each op applies
// element-wise; string ops fail on non-string elements.
var mapOps = map[string]func(value.Value) (value.Value, *diag.Diagnostic){
	"trim":       mapStringOp("trim"),
	"lowercase":  mapStringOp("lowercase"),
	"uppercase":  mapStringOp("uppercase"),
	"capitalize": mapStringOp("capitalize"),
	"reverse":    mapStringOp("reverse"),
	"length": func(v value.Value) (value.Value, *diag.Diagnostic) {
		switch v.Kind() {
		case value.KindString, value.KindList:
			return value.Int(int64(v.Len())), nil
		}
		return value.Null(), failf("map", v, "op \"length\" expects string or list elements")
	},
	"stringify": func(v value.Value) (value.Value, *diag.Diagnostic) {
		return value.Str(v.Stringify()), nil
	},
}

func mapStringOp(op string) func(value.Value) (value.Value, *diag.Diagnostic) {
	return func(v value.Value) (value.Value, *diag.Diagnostic) {
		if v.Kind() != value.KindString {
			return value.Null(), failf("map", v, "op %q expects string elements", op)
		}
		inner, _ := Get(op)
		return inner.Apply(v, nil, nil)
	}
}

func applyMapOp(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
	elems, err := wantList("map", in)
	if err != nil {
		return value.Null(), err
	}
	op, err := strArg("map", pos[0], "op")
	if err != nil {
		return value.Null(), err
	}
	fn, ok := mapOps[op]
	if !ok {
		return value.Null(), failf("map", in, "unknown op %q", op)
	}
	out := make([]value.Value, len(elems))
	for i, el := range elems {
		v, derr := fn(el)
		if derr != nil {
			return value.Null(), derr
		}
		out[i] = v
	}
	return value.List(out), nil
}

func mapOpResult(_ *ast.TypeDesc, call *ast.LensCall) *ast.TypeDesc {
	if len(call.Positional) == 1 {
		if lit, ok := call.Positional[0].(*ast.StringLit); ok {
			switch lit.Value {
			case "length":
				return ast.ListOf(ast.Prim(ast.TypeInt))
			case "trim", "lowercase", "uppercase", "capitalize", "reverse", "stringify":
				return ast.ListOf(ast.Prim(ast.TypeString))
			}
		}
	}
	return ast.ListOf(ast.Prim(ast.TypeAny))
}
