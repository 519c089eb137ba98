package validator

import (
	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/lens"
)

// lensGet indirects the lens registry lookup so tests can enumerate the
// validator's view of the table.
var lensGet = lens.Get

// inferBinding memoizes type inference per binding. References to a binding
// still being inferred resolve to any: name-level cycles are the engine's to
// report, and inference must not loop.
func (c *checker) inferBinding(b *Binding) *ast.TypeDesc {
	if b.Inferred != nil {
		return b.Inferred
	}
	if c.inFlight[b.Name] {
		return ast.Prim(ast.TypeAny)
	}
	c.inFlight[b.Name] = true
	b.Inferred = c.inferExpr(b.Expr)
	delete(c.inFlight, b.Name)
	return b.Inferred
}

// inferExpr infers an expression's type, recording V-* findings as it goes.
func (c *checker) inferExpr(e ast.Expr) *ast.TypeDesc {
	switch n := e.(type) {
	case *ast.StringLit:
		return ast.Prim(ast.TypeString)
	case *ast.IntLit:
		return ast.Prim(ast.TypeInt)
	case *ast.FloatLit:
		return ast.Prim(ast.TypeFloat)
	case *ast.BoolLit:
		return ast.Prim(ast.TypeBool)
	case *ast.NullLit:
		return ast.Prim(ast.TypeNull)
	case *ast.ListLit:
		if len(n.Elems) == 0 {
			return &ast.TypeDesc{Kind: ast.TypeList}
		}
		members := make([]*ast.TypeDesc, len(n.Elems))
		for i, el := range n.Elems {
			members[i] = c.inferExpr(el)
		}
		return ast.ListOf(ast.UnionOf(members...))
	case *ast.MapLit:
		if len(n.Entries) == 0 {
			return &ast.TypeDesc{Kind: ast.TypeMap}
		}
		var members []*ast.TypeDesc
		fields := make([]ast.StructField, len(n.Entries))
		for i, entry := range n.Entries {
			ft := c.inferExpr(entry.Value)
			members = append(members, ft)
			fields[i] = ast.StructField{Name: entry.Key, Type: ft}
		}
		merged := ast.UnionOf(members...)
		if merged.Kind != ast.TypeUnion {
			return ast.MapOf(merged)
		}
		return &ast.TypeDesc{Kind: ast.TypeStruct, Fields: fields}
	case *ast.VarRef:
		b, ok := c.byName[n.Name]
		if !ok {
			c.errorf(diag.ValidateUndef, n.Span(),
				"reference to undefined variable $%s", n.Name)
			return ast.Prim(ast.TypeAny)
		}
		return c.inferBinding(b)
	case *ast.Pipeline:
		t := c.inferExpr(n.Head)
		for _, step := range n.Steps {
			t = c.inferStep(t, step)
		}
		return t
	case *ast.Directive:
		return c.inferDirective(n)
	}
	return ast.Prim(ast.TypeAny)
}

// inferStep checks one lens invocation against its signature and projects
// the output type.
func (c *checker) inferStep(in *ast.TypeDesc, step *ast.LensCall) *ast.TypeDesc {
	// Argument expressions are checked regardless of whether the lens
	// itself resolves.
	for _, arg := range step.Positional {
		c.inferExpr(arg)
	}
	for _, arg := range step.Named {
		c.inferExpr(arg.Value)
	}

	l, ok := lensGet(step.Name)
	if !ok {
		c.errorf(diag.ValidateLens, step.Span(), "unknown lens %q", step.Name)
		return ast.Prim(ast.TypeAny)
	}
	if got := len(step.Positional); got < l.MinPos || got > l.MaxPos {
		switch {
		case l.MinPos == l.MaxPos:
			c.errorf(diag.ValidateLens, step.Span(),
				"lens %q takes %d positional argument(s), got %d", l.Name, l.MinPos, got)
		default:
			c.errorf(diag.ValidateLens, step.Span(),
				"lens %q takes %d to %d positional arguments, got %d", l.Name, l.MinPos, l.MaxPos, got)
		}
	}
	if !l.OpenNamed {
		for _, arg := range step.Named {
			if !l.Named[arg.Name] {
				c.errorf(diag.ValidateLens, arg.Span,
					"lens %q has no named argument %q", l.Name, arg.Name)
			}
		}
	}
	if !l.Input.Admits(in) {
		c.errorf(diag.ValidateType, step.Span(),
			"lens %q expects %s input, got %s", l.Name, l.Input, in)
	}
	if l.Result == nil {
		return ast.Prim(ast.TypeAny)
	}
	return l.Result(in, step)
}

// inferDirective checks the input(...) form: a mandatory type attribute, a
// closed attribute set, and a literal default conforming to the type.
func (c *checker) inferDirective(d *ast.Directive) *ast.TypeDesc {
	if d.Name != "input" {
		// The parser only admits known directives; anything else is a bug.
		c.errs = append(c.errs, diag.Internalf("validator", "directive",
			"unknown directive %q reached validation", d.Name))
		return ast.Prim(ast.TypeAny)
	}
	for _, a := range d.Attrs {
		switch a.Name {
		case "type", "default", "description":
		default:
			c.errorf(diag.ValidateInput, a.Span,
				"input directive has no attribute %q", a.Name)
		}
	}
	typeAttr := d.Attr("type")
	if typeAttr == nil {
		c.errorf(diag.ValidateInput, d.Span(),
			"input directive requires a \"type\" attribute")
		return ast.Prim(ast.TypeAny)
	}
	desc, err := typeFromExpr(typeAttr)
	if err != nil {
		c.errs = append(c.errs, err)
		return ast.Prim(ast.TypeAny)
	}
	if def := d.Attr("default"); def != nil {
		v, ok := LiteralValue(def)
		if !ok {
			c.errorf(diag.ValidateInput, def.Span(),
				"input default must be a literal")
		} else {
			c.errs = append(c.errs, CheckValue("default", desc, v, def.Span())...)
		}
	}
	return desc
}
