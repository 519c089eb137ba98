// Package ast defines the syntax tree produced by the parser and consumed by
// every later phase. The tree is immutable once parsed; phases that transform
// it build new nodes instead of mutating shared state.
package ast

import (
	"facet/internal/source"
)

// BlockKind is the tag of a top-level block.
type BlockKind string

const (
	BlockMeta      BlockKind = "meta"
	BlockSystem    BlockKind = "system"
	BlockUser      BlockKind = "user"
	BlockAssistant BlockKind = "assistant"
	BlockVars      BlockKind = "vars"
	BlockVarTypes  BlockKind = "var_types"
	BlockContext   BlockKind = "context"
	BlockImport    BlockKind = "import"
	BlockInterface BlockKind = "interface"
	BlockTest      BlockKind = "test"
)

// KindOf resolves a block opener name to its kind.
func KindOf(name string) (BlockKind, bool) {
	switch BlockKind(name) {
	case BlockMeta, BlockSystem, BlockUser, BlockAssistant, BlockVars,
		BlockVarTypes, BlockContext, BlockImport, BlockInterface, BlockTest:
		return BlockKind(name), true
	}
	return "", false
}

// Document is an ordered list of top-level blocks from one source file.
type Document struct {
	Name   string
	Blocks []*Block
	Span   source.Span
}

// BlocksOf returns the document's blocks of one kind, in declaration order.
func (d *Document) BlocksOf(kind BlockKind) []*Block {
	var out []*Block
	for _, b := range d.Blocks {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

// Block is one tagged top-level section. Import blocks carry a path instead
// of entries.
type Block struct {
	Kind       BlockKind
	Entries    []*Entry
	ImportPath string
	Span       source.Span
}

// Entry is one key → value pair inside a block or a block-form mapping.
type Entry struct {
	Key   string
	Value Expr
	Span  source.Span
}

// Expr is a value expression node.
type Expr interface {
	Span() source.Span
	exprNode()
}

type exprBase struct {
	span source.Span
}

func (e exprBase) Span() source.Span { return e.span }
func (e exprBase) exprNode()         {}

// SetSpan assigns the node's span; only the parser should call this.
func (e *exprBase) SetSpan(span source.Span) { e.span = span }

// StringLit is a double-quoted string literal.
type StringLit struct {
	exprBase
	Value string
}

// IntLit is a 64-bit signed integer literal.
type IntLit struct {
	exprBase
	Value int64
}

// FloatLit is an IEEE-754 double literal.
type FloatLit struct {
	exprBase
	Value float64
}

// BoolLit is true or false.
type BoolLit struct {
	exprBase
	Value bool
}

// NullLit is the null literal.
type NullLit struct {
	exprBase
}

// ListLit is an ordered [..] literal.
type ListLit struct {
	exprBase
	Elems []Expr
}

// MapLit is an ordered mapping literal; inline {..} and block-indented forms
// parse to the same node.
type MapLit struct {
	exprBase
	Entries []*Entry
}

// ExtendTo widens the mapping's span as block-form entries arrive.
func (m *MapLit) ExtendTo(end source.Position) { m.span.End = end }

// VarRef is $name or ${name}.
type VarRef struct {
	exprBase
	Name   string
	Braced bool
}

// NamedArg is a name=value argument to a lens or directive.
type NamedArg struct {
	Name  string
	Value Expr
	Span  source.Span
}

// LensCall is one |> step of a pipeline.
type LensCall struct {
	exprBase
	Name       string
	Positional []Expr
	Named      []*NamedArg
}

// Pipeline is a head expression followed by one or more lens steps.
type Pipeline struct {
	exprBase
	Head  Expr
	Steps []*LensCall
}

// Directive is a named form with keyed attributes, e.g. input(type="string").
type Directive struct {
	exprBase
	Name  string
	Attrs []*NamedArg
}

// Attr returns the named attribute's value, or nil.
func (d *Directive) Attr(name string) Expr {
	for _, a := range d.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

// WalkRefs calls fn for every variable reference in the expression,
// including references inside lens arguments, in source order.
func WalkRefs(e Expr, fn func(*VarRef)) {
	switch n := e.(type) {
	case *VarRef:
		fn(n)
	case *ListLit:
		for _, el := range n.Elems {
			WalkRefs(el, fn)
		}
	case *MapLit:
		for _, entry := range n.Entries {
			WalkRefs(entry.Value, fn)
		}
	case *Pipeline:
		WalkRefs(n.Head, fn)
		for _, step := range n.Steps {
			for _, arg := range step.Positional {
				WalkRefs(arg, fn)
			}
			for _, arg := range step.Named {
				WalkRefs(arg.Value, fn)
			}
		}
	case *Directive:
		for _, a := range n.Attrs {
			WalkRefs(a.Value, fn)
		}
	}
}

// IsLiteral reports whether the expression contains no variable references,
// pipelines, or directives, i.e. it evaluates to itself.
func IsLiteral(e Expr) bool {
	switch n := e.(type) {
	case *StringLit, *IntLit, *FloatLit, *BoolLit, *NullLit:
		return true
	case *ListLit:
		for _, el := range n.Elems {
			if !IsLiteral(el) {
				return false
			}
		}
		return true
	case *MapLit:
		for _, entry := range n.Entries {
			if !IsLiteral(entry.Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
