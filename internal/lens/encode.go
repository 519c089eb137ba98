package lens

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/value"
)

func init() {
	register(&Lens{
		Name:  "json",
		Input: InAny,
		Named: map[string]bool{"indent": true},
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, named map[string]value.Value) (value.Value, *diag.Diagnostic) {
			indent := -1
			if v, ok := named["indent"]; ok {
				n, err := intArg("json", v, "indent")
				if err != nil {
					return value.Null(), err
				}
				if n < 0 {
					return value.Null(), failf("json", in, "indent must not be negative")
				}
				indent = int(n)
			}
			return value.Str(in.EncodeJSON(indent)), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:  "json_parse",
		Input: InString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("json_parse", in)
			if err != nil {
				return value.Null(), err
			}
			v, derr := decodeJSON(s)
			if derr != nil {
				return value.Null(), derr
			}
			return v, nil
		},
		Result: anyType,
	})

	register(&Lens{
		Name:  "url_encode",
		Input: InString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("url_encode", in)
			if err != nil {
				return value.Null(), err
			}
			return value.Str(url.QueryEscape(s)), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:  "url_decode",
		Input: InString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("url_decode", in)
			if err != nil {
				return value.Null(), err
			}
			decoded, uerr := url.QueryUnescape(s)
			if uerr != nil {
				return value.Null(), failf("url_decode", in, "invalid percent-encoding: %v", uerr)
			}
			return value.Str(decoded), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:   "hash",
		Input:  InString,
		MaxPos: 1,
		Cost:   inputCost,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("hash", in)
			if err != nil {
				return value.Null(), err
			}
			alg := "sha256"
			if len(pos) > 0 {
				alg, err = strArg("hash", pos[0], "alg")
				if err != nil {
					return value.Null(), err
				}
			}
			var sum []byte
			switch alg {
			case "sha256":
				h := sha256.Sum256([]byte(s))
				sum = h[:]
			case "sha512":
				h := sha512.Sum512([]byte(s))
				sum = h[:]
			case "md5":
				h := md5.Sum([]byte(s))
				sum = h[:]
			default:
				return value.Null(), failf("hash", in, "unknown algorithm %q", alg)
			}
			return value.Str(hex.EncodeToString(sum)), nil
		},
		Result: strType,
	})

	// Level-1 bounded lenses: interface only. Values come from the trial
	// mock registry; the core never executes them.
	register(&Lens{
		Name:     "llm",
		Input:    InString,
		MaxPos:   1,
		External: true,
		Result:   strType,
	})
	register(&Lens{
		Name:     "embed",
		Input:    InString,
		External: true,
		Result: func(*ast.TypeDesc, *ast.LensCall) *ast.TypeDesc {
			return ast.ListOf(ast.Prim(ast.TypeFloat))
		},
	})
	register(&Lens{
		Name:     "rag",
		Input:    InString,
		MaxPos:   1,
		External: true,
		Result: func(*ast.TypeDesc, *ast.LensCall) *ast.TypeDesc {
			return ast.ListOf(ast.Prim(ast.TypeString))
		},
	})
}

// decodeJSON converts JSON text to a runtime value, keeping the int/float
// distinction via json.Number.
func decodeJSON(s string) (value.Value, *diag.Diagnostic) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return value.Null(), diag.New(diag.EngineLens, "lens \"json_parse\": malformed JSON: %v", err)
	}
	// Trailing garbage after the first value is malformed input too.
	if dec.More() {
		return value.Null(), diag.New(diag.EngineLens, "lens \"json_parse\": trailing content after JSON value")
	}
	return fromJSON(raw)
}

func fromJSON(raw interface{}) (value.Value, *diag.Diagnostic) {
	switch x := raw.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(x), nil
	case string:
		return value.Str(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil && !strings.ContainsAny(x.String(), ".eE") {
			return value.Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return value.Null(), diag.New(diag.EngineLens, "lens \"json_parse\": number %q out of range", x.String())
		}
		return value.Float(f), nil
	case []interface{}:
		elems := make([]value.Value, len(x))
		for i, el := range x {
			v, err := fromJSON(el)
			if err != nil {
				return value.Null(), err
			}
			elems[i] = v
		}
		return value.List(elems), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		// Go maps are unordered; sort for a deterministic field order.
		sort.Strings(keys)
		fields := make([]value.Field, len(keys))
		for i, k := range keys {
			v, err := fromJSON(x[k])
			if err != nil {
				return value.Null(), err
			}
			fields[i] = value.Field{Key: k, Val: v}
		}
		return value.Map(fields), nil
	}
	return value.Null(), diag.Internalf("engine", "json_parse", "unhandled JSON shape %T", raw)
}
