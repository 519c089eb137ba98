package lens

import (
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/value"
)

// capitalize derives a fresh caser per call; cases.Caser values carry
// state and must not be shared.
var titleLang = language.Und

func init() {
	register(&Lens{
		Name:  "trim",
		Input: InString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("trim", in)
			if err != nil {
				return value.Null(), err
			}
			return value.Str(strings.TrimSpace(s)), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:  "lowercase",
		Input: InString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("lowercase", in)
			if err != nil {
				return value.Null(), err
			}
			return value.Str(strings.ToLower(s)), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:  "uppercase",
		Input: InString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("uppercase", in)
			if err != nil {
				return value.Null(), err
			}
			return value.Str(strings.ToUpper(s)), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:  "capitalize",
		Input: InString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("capitalize", in)
			if err != nil {
				return value.Null(), err
			}
			return value.Str(capitalize(s)), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:  "reverse",
		Input: InString,
		Cost:  inputCost,
		Apply: func(in value.Value, _ []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("reverse", in)
			if err != nil {
				return value.Null(), err
			}
			return value.Str(reverseGraphemes(s)), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:   "substring",
		Input:  InString,
		MinPos: 1,
		MaxPos: 2,
		Cost:   inputCost,
		Apply:  applySubstring,
		Result: strType,
	})

	register(&Lens{
		Name:   "replace",
		Input:  InString,
		MinPos: 2,
		MaxPos: 2,
		Cost:   inputCost,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("replace", in)
			if err != nil {
				return value.Null(), err
			}
			pat, err := strArg("replace", pos[0], "pat")
			if err != nil {
				return value.Null(), err
			}
			rep, err := strArg("replace", pos[1], "rep")
			if err != nil {
				return value.Null(), err
			}
			if pat == "" {
				return value.Str(s), nil
			}
			return value.Str(strings.ReplaceAll(s, pat, rep)), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:   "split",
		Input:  InString,
		MinPos: 1,
		MaxPos: 1,
		Cost:   inputCost,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("split", in)
			if err != nil {
				return value.Null(), err
			}
			sep, err := strArg("split", pos[0], "sep")
			if err != nil {
				return value.Null(), err
			}
			parts := strings.Split(s, sep)
			elems := make([]value.Value, len(parts))
			for i, p := range parts {
				elems[i] = value.Str(p)
			}
			return value.List(elems), nil
		},
		Result: func(*ast.TypeDesc, *ast.LensCall) *ast.TypeDesc {
			return ast.ListOf(ast.Prim(ast.TypeString))
		},
	})

	register(&Lens{
		Name:   "indent",
		Input:  InString,
		MaxPos: 1,
		Cost:   inputCost,
		Apply: func(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("indent", in)
			if err != nil {
				return value.Null(), err
			}
			n := int64(2)
			if len(pos) > 0 {
				n, err = intArg("indent", pos[0], "n")
				if err != nil {
					return value.Null(), err
				}
			}
			if n < 0 {
				return value.Null(), failf("indent", in, "indent width must not be negative")
			}
			pad := strings.Repeat(" ", int(n))
			lines := strings.Split(s, "\n")
			for i, l := range lines {
				lines[i] = pad + l
			}
			return value.Str(strings.Join(lines, "\n")), nil
		},
		Result: strType,
	})

	register(&Lens{
		Name:      "template",
		Input:     InString,
		OpenNamed: true, // any named argument is a substitution
		Cost:      inputCost,
		Apply: func(in value.Value, _ []value.Value, named map[string]value.Value) (value.Value, *diag.Diagnostic) {
			s, err := wantString("template", in)
			if err != nil {
				return value.Null(), err
			}
			return value.Str(expandTemplate(s, named)), nil
		},
		Result: strType,
	})
}

func applySubstring(in value.Value, pos []value.Value, _ map[string]value.Value) (value.Value, *diag.Diagnostic) {
	s, err := wantString("substring", in)
	if err != nil {
		return value.Null(), err
	}
	start, err := intArg("substring", pos[0], "start")
	if err != nil {
		return value.Null(), err
	}
	runes := []rune(s)
	end := int64(len(runes))
	if len(pos) > 1 {
		end, err = intArg("substring", pos[1], "end")
		if err != nil {
			return value.Null(), err
		}
	}
	lo, hi, derr := clampRange("substring", in, start, end, int64(len(runes)))
	if derr != nil {
		return value.Null(), derr
	}
	return value.Str(string(runes[lo:hi])), nil
}

// clampRange validates a half-open [start, end) request over n items.
// Negative indices fail; out-of-range bounds clamp to [0, n].
func clampRange(name string, in value.Value, start, end, n int64) (int64, int64, *diag.Diagnostic) {
	if start < 0 || end < 0 {
		return 0, 0, failf(name, in, "negative index")
	}
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	return start, end, nil
}

// reverseGraphemes reverses by grapheme cluster so combining sequences and
// emoji survive intact.
func reverseGraphemes(s string) string {
	var clusters []string
	state := -1
	for len(s) > 0 {
		var cluster string
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		clusters = append(clusters, cluster)
	}
	var b strings.Builder
	for i := len(clusters) - 1; i >= 0; i-- {
		b.WriteString(clusters[i])
	}
	return b.String()
}

func capitalize(s string) string {
	return cases.Title(titleLang).String(s)
}

// expandTemplate replaces {{name}} tokens with stringified kwargs. Tokens
// with no matching kwarg pass through untouched.
func expandTemplate(s string, named map[string]value.Value) string {
	var b strings.Builder
	for {
		open := strings.Index(s, "{{")
		if open < 0 {
			b.WriteString(s)
			return b.String()
		}
		closing := strings.Index(s[open:], "}}")
		if closing < 0 {
			b.WriteString(s)
			return b.String()
		}
		closing += open
		name := strings.TrimSpace(s[open+2 : closing])
		if v, ok := named[name]; ok {
			b.WriteString(s[:open])
			b.WriteString(v.Stringify())
		} else {
			b.WriteString(s[:closing+2])
		}
		s = s[closing+2:]
	}
}
