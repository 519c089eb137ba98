package validator

import (
	"strings"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/value"
)

// typeFromExpr interprets a @var_types entry value as a type descriptor.
// Three source forms are accepted: a type-name string ("int",
// "list<string>"), a mapping with a "type" key plus constraint and shape
// attributes, and a bare list as union shorthand.
func typeFromExpr(e ast.Expr) (*ast.TypeDesc, *diag.Diagnostic) {
	switch n := e.(type) {
	case *ast.StringLit:
		desc, err := parseTypeName(n.Value)
		if err != nil {
			return nil, diag.At(diag.ValidateType, n.Span(), "%s", err.Message)
		}
		return desc, nil
	case *ast.ListLit:
		members := make([]*ast.TypeDesc, 0, len(n.Elems))
		for _, el := range n.Elems {
			m, err := typeFromExpr(el)
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		if len(members) == 0 {
			return nil, diag.At(diag.ValidateType, n.Span(), "union shorthand must not be empty")
		}
		return ast.UnionOf(members...), nil
	case *ast.MapLit:
		return typeFromMap(n)
	default:
		return nil, diag.At(diag.ValidateType, e.Span(),
			"expected a type descriptor (string, mapping, or union list)")
	}
}

func typeFromMap(m *ast.MapLit) (*ast.TypeDesc, *diag.Diagnostic) {
	get := func(key string) ast.Expr {
		for _, e := range m.Entries {
			if e.Key == key {
				return e.Value
			}
		}
		return nil
	}

	if anyOf := get("any_of"); anyOf != nil {
		list, ok := anyOf.(*ast.ListLit)
		if !ok {
			return nil, diag.At(diag.ValidateType, anyOf.Span(), "any_of must be a list of type descriptors")
		}
		members := make([]*ast.TypeDesc, 0, len(list.Elems))
		for _, el := range list.Elems {
			member, err := typeFromExpr(el)
			if err != nil {
				return nil, err
			}
			members = append(members, member)
		}
		if len(members) == 0 {
			return nil, diag.At(diag.ValidateType, anyOf.Span(), "any_of must not be empty")
		}
		return attachConstraints(ast.UnionOf(members...), m)
	}

	typeExpr := get("type")
	if typeExpr == nil {
		return nil, diag.At(diag.ValidateType, m.Span(), "type descriptor mapping requires a \"type\" key")
	}
	nameLit, ok := typeExpr.(*ast.StringLit)
	if !ok {
		return nil, diag.At(diag.ValidateType, typeExpr.Span(), "\"type\" must be a string")
	}

	var desc *ast.TypeDesc
	switch nameLit.Value {
	case "list", "map":
		elem := ast.Prim(ast.TypeAny)
		if of := get("of"); of != nil {
			var err *diag.Diagnostic
			elem, err = typeFromExpr(of)
			if err != nil {
				return nil, err
			}
		}
		if nameLit.Value == "list" {
			desc = ast.ListOf(elem)
		} else {
			desc = ast.MapOf(elem)
		}
	case "struct":
		fieldsExpr := get("fields")
		fieldsMap, ok := fieldsExpr.(*ast.MapLit)
		if !ok {
			return nil, diag.At(diag.ValidateType, m.Span(), "struct descriptor requires a \"fields\" mapping")
		}
		required := map[string]bool{}
		hasRequired := false
		if reqExpr := get("required"); reqExpr != nil {
			reqList, ok := reqExpr.(*ast.ListLit)
			if !ok {
				return nil, diag.At(diag.ValidateType, reqExpr.Span(), "\"required\" must be a list of field names")
			}
			hasRequired = true
			for _, el := range reqList.Elems {
				s, ok := el.(*ast.StringLit)
				if !ok {
					return nil, diag.At(diag.ValidateType, el.Span(), "\"required\" entries must be strings")
				}
				required[s.Value] = true
			}
		}
		desc = &ast.TypeDesc{Kind: ast.TypeStruct}
		for _, fe := range fieldsMap.Entries {
			ft, err := typeFromExpr(fe.Value)
			if err != nil {
				return nil, err
			}
			desc.Fields = append(desc.Fields, ast.StructField{
				Name:     fe.Key,
				Type:     ft,
				Optional: hasRequired && !required[fe.Key],
			})
		}
	case "image":
		desc = &ast.TypeDesc{Kind: ast.TypeImage}
		if v, err := intAttr(get("max_dim")); err != nil {
			return nil, err
		} else {
			desc.MaxDim = v
		}
		if v, err := strAttr(get("format")); err != nil {
			return nil, err
		} else {
			desc.Format = v
		}
	case "audio":
		desc = &ast.TypeDesc{Kind: ast.TypeAudio}
		if v, err := intAttr(get("max_duration")); err != nil {
			return nil, err
		} else {
			desc.MaxDuration = v
		}
		if v, err := strAttr(get("format")); err != nil {
			return nil, err
		} else {
			desc.Format = v
		}
	case "embedding":
		sizeExpr := get("size")
		if sizeExpr == nil {
			return nil, diag.At(diag.ValidateType, m.Span(), "embedding descriptor requires \"size\"")
		}
		size, err := intAttr(sizeExpr)
		if err != nil {
			return nil, err
		}
		desc = &ast.TypeDesc{Kind: ast.TypeEmbedding, EmbedSize: size}
	default:
		d, perr := parseTypeName(nameLit.Value)
		if perr != nil {
			return nil, diag.At(diag.ValidateType, nameLit.Span(), "%s", perr.Message)
		}
		desc = d
	}
	return attachConstraints(desc, m)
}

// attachConstraints reads constraint keys off a descriptor mapping.
func attachConstraints(desc *ast.TypeDesc, m *ast.MapLit) (*ast.TypeDesc, *diag.Diagnostic) {
	c := &ast.Constraints{}
	found := false
	for _, e := range m.Entries {
		switch e.Key {
		case "min", "max":
			f, err := numAttr(e.Value)
			if err != nil {
				return nil, err
			}
			if e.Key == "min" {
				c.Min = &f
			} else {
				c.Max = &f
			}
			found = true
		case "min_length", "max_length":
			n, err := intAttr(e.Value)
			if err != nil {
				return nil, err
			}
			if e.Key == "min_length" {
				c.MinLength = &n
			} else {
				c.MaxLength = &n
			}
			found = true
		case "pattern":
			s, ok := e.Value.(*ast.StringLit)
			if !ok {
				return nil, diag.At(diag.ValidateType, e.Value.Span(), "\"pattern\" must be a string")
			}
			c.Pattern = s.Value
			if _, err := c.CompilePattern(); err != nil {
				return nil, diag.At(diag.ValidateType, e.Value.Span(), "invalid pattern: %v", err)
			}
			found = true
		case "enum":
			list, ok := e.Value.(*ast.ListLit)
			if !ok {
				return nil, diag.At(diag.ValidateType, e.Value.Span(), "\"enum\" must be a list of literals")
			}
			for _, el := range list.Elems {
				v, ok := LiteralValue(el)
				if !ok {
					return nil, diag.At(diag.ValidateType, el.Span(), "\"enum\" entries must be literals")
				}
				c.Enum = append(c.Enum, v.Canonical())
			}
			found = true
		}
	}
	if found {
		desc.Constraints = c
	}
	return desc, nil
}

func intAttr(e ast.Expr) (int, *diag.Diagnostic) {
	if e == nil {
		return 0, nil
	}
	lit, ok := e.(*ast.IntLit)
	if !ok {
		return 0, diag.At(diag.ValidateType, e.Span(), "expected an integer attribute")
	}
	return int(lit.Value), nil
}

func numAttr(e ast.Expr) (float64, *diag.Diagnostic) {
	switch n := e.(type) {
	case *ast.IntLit:
		return float64(n.Value), nil
	case *ast.FloatLit:
		return n.Value, nil
	}
	return 0, diag.At(diag.ValidateType, e.Span(), "expected a numeric attribute")
}

func strAttr(e ast.Expr) (string, *diag.Diagnostic) {
	if e == nil {
		return "", nil
	}
	lit, ok := e.(*ast.StringLit)
	if !ok {
		return "", diag.At(diag.ValidateType, e.Span(), "expected a string attribute")
	}
	return lit.Value, nil
}

// parseTypeName parses source type notation: primitives, any, image/audio
// leaves, and list<...> / map<...> with nesting. Embedding has no name form.
func parseTypeName(name string) (*ast.TypeDesc, *diag.Diagnostic) {
	name = strings.TrimSpace(name)
	switch name {
	case "string":
		return ast.Prim(ast.TypeString), nil
	case "int":
		return ast.Prim(ast.TypeInt), nil
	case "float":
		return ast.Prim(ast.TypeFloat), nil
	case "bool":
		return ast.Prim(ast.TypeBool), nil
	case "null":
		return ast.Prim(ast.TypeNull), nil
	case "any":
		return ast.Prim(ast.TypeAny), nil
	case "image":
		return &ast.TypeDesc{Kind: ast.TypeImage}, nil
	case "audio":
		return &ast.TypeDesc{Kind: ast.TypeAudio}, nil
	}
	for _, generic := range []string{"list", "map"} {
		prefix := generic + "<"
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ">") {
			inner, err := parseTypeName(name[len(prefix) : len(name)-1])
			if err != nil {
				return nil, err
			}
			if generic == "list" {
				return ast.ListOf(inner), nil
			}
			return ast.MapOf(inner), nil
		}
	}
	return nil, diag.New(diag.ValidateType, "unknown type name %q", name)
}

// LiteralValue evaluates a purely literal expression to a runtime value.
// Returns ok=false when the expression references variables, pipelines, or
// directives.
func LiteralValue(e ast.Expr) (value.Value, bool) {
	switch n := e.(type) {
	case *ast.StringLit:
		return value.Str(n.Value), true
	case *ast.IntLit:
		return value.Int(n.Value), true
	case *ast.FloatLit:
		return value.Float(n.Value), true
	case *ast.BoolLit:
		return value.Bool(n.Value), true
	case *ast.NullLit:
		return value.Null(), true
	case *ast.ListLit:
		elems := make([]value.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, ok := LiteralValue(el)
			if !ok {
				return value.Null(), false
			}
			elems[i] = v
		}
		return value.List(elems), true
	case *ast.MapLit:
		fields := make([]value.Field, len(n.Entries))
		for i, entry := range n.Entries {
			v, ok := LiteralValue(entry.Value)
			if !ok {
				return value.Null(), false
			}
			fields[i] = value.Field{Key: entry.Key, Val: v}
		}
		return value.Map(fields), true
	}
	return value.Null(), false
}
