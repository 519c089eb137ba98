package ast

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// TypeKind discriminates type descriptors.
type TypeKind int

const (
	TypeString TypeKind = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeNull
	TypeList
	TypeMap
	TypeStruct
	TypeUnion
	TypeImage
	TypeAudio
	TypeEmbedding
	TypeAny
)

// Constraints restrict the values a descriptor admits. Enum members are
// stored in canonical JSON form so comparison matches the document-wide
// equality used by unique and sort_by.
type Constraints struct {
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Pattern   string
	Enum      []string

	compiled *regexp.Regexp
}

// CompilePattern compiles the pattern once; later calls reuse the result.
// Patterns are anchored: constraint matching is full-match.
func (c *Constraints) CompilePattern() (*regexp.Regexp, error) {
	if c.Pattern == "" {
		return nil, nil
	}
	if c.compiled == nil {
		re, err := regexp.Compile(`\A(?:` + c.Pattern + `)\z`)
		if err != nil {
			return nil, err
		}
		c.compiled = re
	}
	return c.compiled, nil
}

// StructField is one field of a struct descriptor.
type StructField struct {
	Name     string
	Type     *TypeDesc
	Optional bool
}

// TypeDesc describes a declared or inferred type, with optional constraints.
type TypeDesc struct {
	Kind    TypeKind
	Elem    *TypeDesc     // list / map element type
	Fields  []StructField // struct fields, declaration order
	Members []*TypeDesc   // union members

	// Multimodal leaf attributes.
	MaxDim      int
	MaxDuration int
	EmbedSize   int
	Format      string

	Constraints *Constraints
}

// Prim builds a primitive descriptor.
func Prim(kind TypeKind) *TypeDesc { return &TypeDesc{Kind: kind} }

// ListOf builds a list<elem> descriptor.
func ListOf(elem *TypeDesc) *TypeDesc { return &TypeDesc{Kind: TypeList, Elem: elem} }

// MapOf builds a string-keyed map<elem> descriptor.
func MapOf(elem *TypeDesc) *TypeDesc { return &TypeDesc{Kind: TypeMap, Elem: elem} }

// UnionOf builds a union descriptor, flattening nested unions and dropping
// duplicate members so unions compare structurally.
func UnionOf(members ...*TypeDesc) *TypeDesc {
	var flat []*TypeDesc
	seen := map[string]bool{}
	for _, m := range members {
		sub := []*TypeDesc{m}
		if m.Kind == TypeUnion {
			sub = m.Members
		}
		for _, s := range sub {
			key := s.String()
			if !seen[key] {
				seen[key] = true
				flat = append(flat, s)
			}
		}
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &TypeDesc{Kind: TypeUnion, Members: flat}
}

// String renders the descriptor in source-like notation.
func (t *TypeDesc) String() string {
	if t == nil {
		return "any"
	}
	switch t.Kind {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeNull:
		return "null"
	case TypeAny:
		return "any"
	case TypeList:
		return fmt.Sprintf("list<%s>", t.Elem.String())
	case TypeMap:
		return fmt.Sprintf("map<%s>", t.Elem.String())
	case TypeStruct:
		fields := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			opt := ""
			if f.Optional {
				opt = "?"
			}
			fields[i] = fmt.Sprintf("%s%s: %s", f.Name, opt, f.Type.String())
		}
		return "struct{" + strings.Join(fields, ", ") + "}"
	case TypeUnion:
		names := make([]string, len(t.Members))
		for i, m := range t.Members {
			names[i] = m.String()
		}
		sort.Strings(names)
		return "union{" + strings.Join(names, " | ") + "}"
	case TypeImage:
		return "image"
	case TypeAudio:
		return "audio"
	case TypeEmbedding:
		return fmt.Sprintf("embedding{size: %d}", t.EmbedSize)
	}
	return "unknown"
}

// Field returns the struct field with the given name, or nil.
func (t *TypeDesc) Field(name string) *StructField {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// AssignableTo reports whether a value of type t is acceptable where want is
// declared. Int widens to float; any admits everything; a union admits a
// type assignable to any member.
func (t *TypeDesc) AssignableTo(want *TypeDesc) bool {
	if want == nil || want.Kind == TypeAny || t == nil || t.Kind == TypeAny {
		return true
	}
	if want.Kind == TypeUnion {
		for _, m := range want.Members {
			if t.AssignableTo(m) {
				return true
			}
		}
		return false
	}
	if t.Kind == TypeUnion {
		for _, m := range t.Members {
			if !m.AssignableTo(want) {
				return false
			}
		}
		return true
	}
	switch want.Kind {
	case TypeFloat:
		return t.Kind == TypeFloat || t.Kind == TypeInt
	case TypeList, TypeMap:
		if t.Kind != want.Kind {
			// A struct value satisfies map<V> when every field fits V.
			if want.Kind == TypeMap && t.Kind == TypeStruct {
				for _, f := range t.Fields {
					if !f.Type.AssignableTo(want.Elem) {
						return false
					}
				}
				return true
			}
			return false
		}
		if want.Elem == nil {
			return true
		}
		if t.Elem == nil {
			// Empty containers carry no element type and fit anywhere.
			return true
		}
		return t.Elem.AssignableTo(want.Elem)
	case TypeStruct:
		if t.Kind == TypeStruct {
			for _, wf := range want.Fields {
				tf := t.Field(wf.Name)
				if tf == nil {
					if wf.Optional {
						continue
					}
					return false
				}
				if !tf.Type.AssignableTo(wf.Type) {
					return false
				}
			}
			return true
		}
		// A homogeneous map satisfies a struct when its element type fits
		// every field; field presence cannot be proven, so require optional.
		if t.Kind == TypeMap {
			for _, wf := range want.Fields {
				if !wf.Optional {
					return false
				}
				if t.Elem != nil && !t.Elem.AssignableTo(wf.Type) {
					return false
				}
			}
			return true
		}
		return false
	default:
		return t.Kind == want.Kind
	}
}
