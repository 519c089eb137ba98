// Package value is the runtime value model shared by the validator, engine,
// allocator, and renderer. Values are immutable; transforms build new values.
package value

import (
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates runtime values.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// String names the kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Field is one key → value pair of a map value, preserving declaration order.
type Field struct {
	Key string
	Val Value
}

// Value is a runtime value. The zero Value is null.
type Value struct {
	kind     Kind
	boolVal  bool
	intVal   int64
	floatVal float64
	strVal   string
	elems    []Value
	fields   []Field
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolVal: b} }

// Int wraps a 64-bit integer.
func Int(i int64) Value { return Value{kind: KindInt, intVal: i} }

// Float wraps a double.
func Float(f float64) Value { return Value{kind: KindFloat, floatVal: f} }

// Str wraps a string.
func Str(s string) Value { return Value{kind: KindString, strVal: s} }

// List wraps an ordered sequence.
func List(elems []Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindList, elems: elems}
}

// Map wraps an ordered sequence of fields.
func Map(fields []Field) Value {
	if fields == nil {
		fields = []Field{}
	}
	return Value{kind: KindMap, fields: fields}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload; valid only for KindBool.
func (v Value) AsBool() bool { return v.boolVal }

// AsInt returns the integer payload; valid only for KindInt.
func (v Value) AsInt() int64 { return v.intVal }

// AsFloat returns the numeric payload widened to float64 for KindInt and
// KindFloat.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.intVal)
	}
	return v.floatVal
}

// AsString returns the string payload; valid only for KindString.
func (v Value) AsString() string { return v.strVal }

// Elems returns the list payload; valid only for KindList.
func (v Value) Elems() []Value { return v.elems }

// Fields returns the map payload in declaration order; valid only for KindMap.
func (v Value) Fields() []Field { return v.fields }

// Get looks up a map field by key.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Val, true
		}
	}
	return Null(), false
}

// Len returns the element count for lists, field count for maps, and rune
// count for strings; zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.elems)
	case KindMap:
		return len(v.fields)
	case KindString:
		return len([]rune(v.strVal))
	}
	return 0
}

// Canonical returns the value's canonical JSON form: lex-sorted keys, minimal
// whitespace, minimal string escapes. This is the document-wide notion of
// equality and ordering for composite values.
func (v Value) Canonical() string {
	var b strings.Builder
	v.encode(&b, -1, 0)
	return b.String()
}

// Equal compares by canonical form.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	return a.Canonical() == b.Canonical()
}

// Compare orders two values deterministically: two numbers (int or float)
// compare numerically across both kinds; otherwise by kind first, then by
// lexicographic canonical form.
func Compare(a, b Value) int {
	an, aIsNum := a.numeric()
	bn, bIsNum := b.numeric()
	if aIsNum && bIsNum {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	if a.kind != b.kind {
		return int(a.kind) - int(b.kind)
	}
	return strings.Compare(a.Canonical(), b.Canonical())
}

func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.intVal), true
	case KindFloat:
		return v.floatVal, true
	}
	return 0, false
}

// Stringify renders the value as text for join, template, and map lenses:
// strings pass through unquoted, everything else uses the canonical form.
func (v Value) Stringify() string {
	if v.kind == KindString {
		return v.strVal
	}
	return v.Canonical()
}

// FormatFloat renders a float deterministically: shortest representation,
// with ".0" forced onto whole values so the source type stays visible.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// sortedFieldIndex returns field indices ordered by key. Later duplicates of
// a key shadow earlier ones.
func (v Value) sortedFieldIndex() []int {
	byKey := make(map[string]int, len(v.fields))
	for i, f := range v.fields {
		byKey[f.Key] = i
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	idx := make([]int, len(keys))
	for i, k := range keys {
		idx[i] = byKey[k]
	}
	return idx
}
