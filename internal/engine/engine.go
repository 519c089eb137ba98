// Package engine evaluates the typed document: it orders bindings over the
// dependency graph, executes lens pipelines under the gas counter, and
// substitutes evaluated values into the consumer blocks. Evaluation is
// halt-first; a failed run discards the partial environment.
package engine

import (
	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/lens"
	"facet/internal/source"
	"facet/internal/validator"
	"facet/internal/value"
)

// Options configure one evaluation run.
type Options struct {
	// GasLimit bounds total synthetic cost; zero means the default.
	GasLimit int64

	// Inputs supplies values for input directives, keyed by entry name.
	Inputs map[string]value.Value

	// Mocks supplies values for external lenses and interface calls,
	// consulted before the dispatch table. Read-only.
	Mocks map[string]value.Value
}

// EvaluatedBlock is a consumer block after substitution, ready for the
// allocator.
type EvaluatedBlock struct {
	Kind    ast.BlockKind
	Ordinal int
	Entries []value.Field
	Span    source.Span
}

// Result carries the evaluated environment and substituted blocks.
type Result struct {
	// Env maps binding name → evaluated value.
	Env map[string]value.Value

	// Order lists binding names in evaluation order.
	Order []string

	// Blocks are the evaluated meta/system/user/assistant/context blocks
	// in document order.
	Blocks []*EvaluatedBlock

	// GasUsed is the final counter reading.
	GasUsed int64
}

// Engine evaluates one checked document.
type Engine struct {
	checked *validator.Checked
	opts    Options
	gas     *Gas
}

// New builds an engine over a validated document.
func New(checked *validator.Checked, opts Options) *Engine {
	return &Engine{
		checked: checked,
		opts:    opts,
		gas:     NewGas(opts.GasLimit),
	}
}

// Evaluate runs the full pass: ordering, binding evaluation, deferred
// constraint checks, and consumer-block substitution.
func (e *Engine) Evaluate() (*Result, error) {
	order, derr := evalOrder(e.checked.Bindings, e.checked.ByName)
	if derr != nil {
		return nil, derr
	}

	env := make(map[string]value.Value, len(order))
	names := make([]string, 0, len(order))
	for _, b := range order {
		v, err := e.evalExpr(b.Expr, env, b.Name)
		if err != nil {
			if err.Span == nil {
				err.Span = &b.Span
			}
			return nil, err
		}
		env[b.Name] = v
		names = append(names, b.Name)
	}

	// Constraints deferred past evaluation: non-literal bindings with a
	// declared type are checked against their computed value.
	var deferred diag.List
	for _, b := range e.checked.Bindings {
		if b.Decl == nil || ast.IsLiteral(b.Expr) {
			continue
		}
		deferred = append(deferred, validator.CheckValue(b.Name, b.Decl, env[b.Name], b.Span)...)
	}
	if len(deferred) > 0 {
		return nil, deferred
	}

	blocks, err := e.substitute(env)
	if err != nil {
		return nil, err
	}

	return &Result{
		Env:     env,
		Order:   names,
		Blocks:  blocks,
		GasUsed: e.gas.Used(),
	}, nil
}

// substitute walks the consumer blocks once more, replacing references with
// evaluated values. Substituted values are not retained as bindings.
func (e *Engine) substitute(env map[string]value.Value) ([]*EvaluatedBlock, *diag.Diagnostic) {
	var out []*EvaluatedBlock
	ordinals := map[ast.BlockKind]int{}
	for _, blk := range e.checked.Doc.Blocks {
		switch blk.Kind {
		case ast.BlockMeta, ast.BlockSystem, ast.BlockUser, ast.BlockAssistant, ast.BlockContext:
		default:
			continue
		}
		eb := &EvaluatedBlock{
			Kind:    blk.Kind,
			Ordinal: ordinals[blk.Kind],
			Span:    blk.Span,
		}
		ordinals[blk.Kind]++
		for _, entry := range blk.Entries {
			v, err := e.evalExpr(entry.Value, env, entry.Key)
			if err != nil {
				if err.Span == nil {
					err.Span = &entry.Span
				}
				return nil, err
			}
			eb.Entries = append(eb.Entries, value.Field{Key: entry.Key, Val: v})
		}
		out = append(out, eb)
	}
	return out, nil
}

// evalExpr resolves an expression against the environment. name is the
// enclosing entry key, used to look up input-directive values.
func (e *Engine) evalExpr(expr ast.Expr, env map[string]value.Value, name string) (value.Value, *diag.Diagnostic) {
	switch n := expr.(type) {
	case *ast.StringLit:
		return value.Str(n.Value), nil
	case *ast.IntLit:
		return value.Int(n.Value), nil
	case *ast.FloatLit:
		return value.Float(n.Value), nil
	case *ast.BoolLit:
		return value.Bool(n.Value), nil
	case *ast.NullLit:
		return value.Null(), nil
	case *ast.ListLit:
		elems := make([]value.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := e.evalExpr(el, env, "")
			if err != nil {
				return value.Null(), err
			}
			elems[i] = v
		}
		return value.List(elems), nil
	case *ast.MapLit:
		fields := make([]value.Field, len(n.Entries))
		for i, entry := range n.Entries {
			v, err := e.evalExpr(entry.Value, env, entry.Key)
			if err != nil {
				return value.Null(), err
			}
			fields[i] = value.Field{Key: entry.Key, Val: v}
		}
		return value.Map(fields), nil
	case *ast.VarRef:
		v, ok := env[n.Name]
		if !ok {
			// Topological ordering populates every dependency first.
			return value.Null(), diag.Internalf("engine", "var-ref",
				"binding %q evaluated before its dependency %q", name, n.Name)
		}
		return v, nil
	case *ast.Pipeline:
		return e.evalPipeline(n, env, name)
	case *ast.Directive:
		return e.evalDirective(n, env, name)
	}
	return value.Null(), diag.Internalf("engine", "expr", "unhandled expression node %T", expr)
}

func (e *Engine) evalPipeline(p *ast.Pipeline, env map[string]value.Value, name string) (value.Value, *diag.Diagnostic) {
	v, err := e.evalExpr(p.Head, env, name)
	if err != nil {
		return value.Null(), err
	}
	for _, step := range p.Steps {
		v, err = e.evalStep(v, step, env)
		if err != nil {
			if err.Span == nil {
				span := step.Span()
				err.Span = &span
			}
			return value.Null(), err
		}
	}
	return v, nil
}

func (e *Engine) evalStep(in value.Value, step *ast.LensCall, env map[string]value.Value) (value.Value, *diag.Diagnostic) {
	pos := make([]value.Value, len(step.Positional))
	for i, arg := range step.Positional {
		v, err := e.evalExpr(arg, env, "")
		if err != nil {
			return value.Null(), err
		}
		pos[i] = v
	}
	var named map[string]value.Value
	if len(step.Named) > 0 {
		named = make(map[string]value.Value, len(step.Named))
		for _, arg := range step.Named {
			v, err := e.evalExpr(arg.Value, env, "")
			if err != nil {
				return value.Null(), err
			}
			named[arg.Name] = v
		}
	}

	l, ok := lens.Get(step.Name)
	if !ok {
		return value.Null(), diag.Internalf("engine", "lens",
			"unvalidated lens %q reached evaluation", step.Name)
	}

	// Mocks shadow the dispatch table, and external lenses exist only
	// through them.
	if v, mocked := e.opts.Mocks[step.Name]; mocked {
		if err := e.gas.Charge(1); err != nil {
			return value.Null(), err
		}
		return v, nil
	}
	if l.External {
		return value.Null(), diag.New(diag.EngineLens,
			"lens %q is external and requires a mock value", step.Name)
	}

	var cost int64 = 1
	if l.Cost != nil {
		cost += l.Cost(in, pos)
	}
	if err := e.gas.Charge(cost); err != nil {
		return value.Null(), err
	}
	return l.Apply(in, pos, named)
}

// evalDirective resolves input(...) forms: host-supplied value first, the
// declared default second, null last.
func (e *Engine) evalDirective(d *ast.Directive, env map[string]value.Value, name string) (value.Value, *diag.Diagnostic) {
	if d.Name != "input" {
		return value.Null(), diag.Internalf("engine", "directive",
			"unknown directive %q reached evaluation", d.Name)
	}
	if v, ok := e.opts.Inputs[name]; ok {
		return v, nil
	}
	if def := d.Attr("default"); def != nil {
		return e.evalExpr(def, env, "")
	}
	return value.Null(), nil
}
