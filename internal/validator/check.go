package validator

import (
	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/source"
	"facet/internal/value"
)

// TypeOfValue infers the descriptor of an evaluated value.
func TypeOfValue(v value.Value) *ast.TypeDesc {
	switch v.Kind() {
	case value.KindNull:
		return ast.Prim(ast.TypeNull)
	case value.KindBool:
		return ast.Prim(ast.TypeBool)
	case value.KindInt:
		return ast.Prim(ast.TypeInt)
	case value.KindFloat:
		return ast.Prim(ast.TypeFloat)
	case value.KindString:
		return ast.Prim(ast.TypeString)
	case value.KindList:
		elems := v.Elems()
		if len(elems) == 0 {
			return &ast.TypeDesc{Kind: ast.TypeList}
		}
		members := make([]*ast.TypeDesc, len(elems))
		for i, el := range elems {
			members[i] = TypeOfValue(el)
		}
		return ast.ListOf(ast.UnionOf(members...))
	case value.KindMap:
		fields := v.Fields()
		if len(fields) == 0 {
			return &ast.TypeDesc{Kind: ast.TypeMap}
		}
		var members []*ast.TypeDesc
		structFields := make([]ast.StructField, len(fields))
		for i, f := range fields {
			ft := TypeOfValue(f.Val)
			members = append(members, ft)
			structFields[i] = ast.StructField{Name: f.Key, Type: ft}
		}
		merged := ast.UnionOf(members...)
		if merged.Kind != ast.TypeUnion {
			return ast.MapOf(merged)
		}
		return &ast.TypeDesc{Kind: ast.TypeStruct, Fields: structFields}
	}
	return ast.Prim(ast.TypeAny)
}

// CheckValue verifies an evaluated value against a declared descriptor:
// structural type conformance (V-TYPE) and attached constraints
// (V-CONSTRAINT). The engine calls this for bindings whose constraint check
// was deferred past evaluation.
func CheckValue(name string, desc *ast.TypeDesc, v value.Value, span source.Span) diag.List {
	if desc == nil || desc.Kind == ast.TypeAny {
		return nil
	}
	if desc.Kind == ast.TypeUnion {
		// A union admits the value when any member does.
		for _, m := range desc.Members {
			if len(CheckValue(name, m, v, span)) == 0 {
				return nil
			}
		}
		return diag.List{diag.At(diag.ValidateType, span,
			"%s: value of type %s does not match %s", name, TypeOfValue(v), desc)}
	}

	var out diag.List
	if !typeConforms(desc, v) {
		return diag.List{diag.At(diag.ValidateType, span,
			"%s: value of type %s does not match declared type %s", name, TypeOfValue(v), desc)}
	}
	if d := checkConstraints(name, desc.Constraints, v, span); d != nil {
		out = append(out, d)
	}

	switch desc.Kind {
	case ast.TypeList:
		if desc.Elem != nil {
			for _, el := range v.Elems() {
				out = append(out, CheckValue(name, desc.Elem, el, span)...)
			}
		}
	case ast.TypeMap:
		if desc.Elem != nil {
			for _, f := range v.Fields() {
				out = append(out, CheckValue(name+"."+f.Key, desc.Elem, f.Val, span)...)
			}
		}
	case ast.TypeStruct:
		for _, sf := range desc.Fields {
			fv, ok := v.Get(sf.Name)
			if !ok {
				if !sf.Optional {
					out = append(out, diag.At(diag.ValidateType, span,
						"%s: missing required field %q", name, sf.Name))
				}
				continue
			}
			out = append(out, CheckValue(name+"."+sf.Name, sf.Type, fv, span)...)
		}
	}
	return out
}

// typeConforms checks the top-level shape only; nested shapes are walked by
// CheckValue.
func typeConforms(desc *ast.TypeDesc, v value.Value) bool {
	switch desc.Kind {
	case ast.TypeString:
		return v.Kind() == value.KindString
	case ast.TypeInt:
		return v.Kind() == value.KindInt
	case ast.TypeFloat:
		return v.Kind() == value.KindFloat || v.Kind() == value.KindInt
	case ast.TypeBool:
		return v.Kind() == value.KindBool
	case ast.TypeNull:
		return v.IsNull()
	case ast.TypeList, ast.TypeEmbedding:
		return v.Kind() == value.KindList
	case ast.TypeMap, ast.TypeStruct, ast.TypeImage, ast.TypeAudio:
		return v.Kind() == value.KindMap || (desc.Kind != ast.TypeStruct && v.Kind() == value.KindString)
	}
	return true
}

func checkConstraints(name string, c *ast.Constraints, v value.Value, span source.Span) *diag.Diagnostic {
	if c == nil {
		return nil
	}
	if len(c.Enum) > 0 {
		canon := v.Canonical()
		found := false
		for _, member := range c.Enum {
			if member == canon {
				found = true
				break
			}
		}
		if !found {
			return diag.At(diag.ValidateConstraint, span,
				"%s: value %s is not a member of the declared enumeration", name, canon)
		}
	}
	switch v.Kind() {
	case value.KindInt, value.KindFloat:
		n := v.AsFloat()
		if c.Min != nil && n < *c.Min {
			return diag.At(diag.ValidateConstraint, span,
				"%s: value %s is below the declared minimum %v", name, v.Canonical(), *c.Min)
		}
		if c.Max != nil && n > *c.Max {
			return diag.At(diag.ValidateConstraint, span,
				"%s: value %s exceeds the declared maximum %v", name, v.Canonical(), *c.Max)
		}
	case value.KindString:
		length := v.Len()
		if c.MinLength != nil && length < *c.MinLength {
			return diag.At(diag.ValidateConstraint, span,
				"%s: string length %d is below min_length %d", name, length, *c.MinLength)
		}
		if c.MaxLength != nil && length > *c.MaxLength {
			return diag.At(diag.ValidateConstraint, span,
				"%s: string length %d exceeds max_length %d", name, length, *c.MaxLength)
		}
		if c.Pattern != "" {
			re, err := c.CompilePattern()
			if err != nil {
				return diag.At(diag.ValidateConstraint, span,
					"%s: invalid pattern %q: %v", name, c.Pattern, err)
			}
			if !re.MatchString(v.AsString()) {
				return diag.At(diag.ValidateConstraint, span,
					"%s: string does not match pattern %q", name, c.Pattern)
			}
		}
	}
	return nil
}
