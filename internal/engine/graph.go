package engine

import (
	"strings"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/validator"
)

// depsOf returns the distinct vars-to-vars dependencies of a binding in
// source order. References to non-binding names were rejected by the
// validator and cannot appear here.
func depsOf(b *validator.Binding, byName map[string]*validator.Binding) []*validator.Binding {
	var out []*validator.Binding
	seen := map[string]bool{}
	ast.WalkRefs(b.Expr, func(r *ast.VarRef) {
		if seen[r.Name] {
			return
		}
		seen[r.Name] = true
		if dep, ok := byName[r.Name]; ok {
			out = append(out, dep)
		}
	})
	return out
}

const (
	colorUnvisited = iota
	colorOnStack
	colorFinished
)

// evalOrder orders bindings so every dependency precedes its dependents,
// via depth-first search with three-color marking. Roots are visited in
// first-declaration order, which fixes the order among independent
// bindings. An on-stack node reached during descent is a cycle; the error
// payload prints the stack slice forming it.
func evalOrder(bindings []*validator.Binding, byName map[string]*validator.Binding) ([]*validator.Binding, *diag.Diagnostic) {
	color := make(map[string]int, len(bindings))
	var stack []string
	var order []*validator.Binding

	var visit func(b *validator.Binding) *diag.Diagnostic
	visit = func(b *validator.Binding) *diag.Diagnostic {
		color[b.Name] = colorOnStack
		stack = append(stack, b.Name)
		for _, dep := range depsOf(b, byName) {
			switch color[dep.Name] {
			case colorOnStack:
				return cycleError(stack, dep.Name)
			case colorUnvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[b.Name] = colorFinished
		order = append(order, b)
		return nil
	}

	for _, b := range bindings {
		if color[b.Name] == colorUnvisited {
			if err := visit(b); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// cycleError formats the cycle as the stack slice from the re-entered node,
// nodes joined by arrows.
func cycleError(stack []string, reentered string) *diag.Diagnostic {
	start := 0
	for i, name := range stack {
		if name == reentered {
			start = i
			break
		}
	}
	chain := append(append([]string{}, stack[start:]...), reentered)
	return diag.New(diag.EngineCycle,
		"dependency cycle: %s", strings.Join(chain, " → "))
}
