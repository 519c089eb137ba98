package engine

import (
	"strings"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/validator"
	"facet/internal/value"
)

// Trial is one @test configuration: named overrides replacing evaluated
// bindings and a mock registry for external lenses and interface calls.
// Running trials and asserting on their output is a host concern; the core
// only extracts configurations and produces modified environments.
type Trial struct {
	Name        string
	Description string
	Overrides   []value.Field
	Mocks       map[string]value.Value
}

// Trials extracts trial configurations from the checked document's @test
// blocks, in resolution order.
func Trials(checked *validator.Checked) ([]*Trial, diag.List) {
	var out []*Trial
	var errs diag.List
	for _, blk := range checked.Doc.BlocksOf(ast.BlockTest) {
		for _, entry := range blk.Entries {
			body, ok := entry.Value.(*ast.MapLit)
			if !ok {
				// The validator already flagged the shape; skip quietly.
				continue
			}
			t := &Trial{Name: entry.Key, Mocks: map[string]value.Value{}}
			for _, e := range body.Entries {
				switch e.Key {
				case "description":
					if s, ok := e.Value.(*ast.StringLit); ok {
						t.Description = s.Value
					}
				case "overrides":
					m, ok := e.Value.(*ast.MapLit)
					if !ok {
						continue
					}
					for _, ov := range m.Entries {
						v, ok := validator.LiteralValue(ov.Value)
						if !ok {
							errs = append(errs, diag.At(diag.ValidateType, ov.Span,
								"test %q: override %q must be a literal", entry.Key, ov.Key))
							continue
						}
						t.Overrides = append(t.Overrides, value.Field{Key: ov.Key, Val: v})
					}
				case "mocks":
					m, ok := e.Value.(*ast.MapLit)
					if !ok {
						continue
					}
					for _, mock := range m.Entries {
						v, ok := validator.LiteralValue(mock.Value)
						if !ok {
							errs = append(errs, diag.At(diag.ValidateType, mock.Span,
								"test %q: mock %q must be a literal", entry.Key, mock.Key))
							continue
						}
						t.Mocks[mock.Key] = v
					}
				}
			}
			out = append(out, t)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ApplyOverrides produces a copy of the environment with the trial's
// overrides in place of the evaluated bindings. The input environment is
// not mutated.
func ApplyOverrides(env map[string]value.Value, t *Trial) map[string]value.Value {
	out := make(map[string]value.Value, len(env))
	for k, v := range env {
		out[k] = v
	}
	for _, ov := range t.Overrides {
		out[ov.Key] = ov.Val
	}
	return out
}

// MockFor resolves a mock by lens name or interface.method key.
func (t *Trial) MockFor(name string) (value.Value, bool) {
	v, ok := t.Mocks[name]
	return v, ok
}

// InterfaceMocks returns the trial's interface-call mocks, keyed by
// interface.method.
func (t *Trial) InterfaceMocks() map[string]value.Value {
	out := map[string]value.Value{}
	for k, v := range t.Mocks {
		if strings.Contains(k, ".") {
			out[k] = v
		}
	}
	return out
}
