// Package render emits the canonical JSON object. Key order is fixed:
// metadata, system, context, user, assistant, then variables when bindings
// exist. Map keys inside sections and variables are lexicographic. Pretty
// printing is cosmetic; element and key order never changes.
package render

import (
	"sort"
	"strconv"
	"strings"

	"facet/internal/alloc"
	"facet/internal/ast"
	"facet/internal/value"
)

// Version is the canonical output format version.
const Version = "2.0"

// sectionKinds is the emission order of the section arrays.
var sectionKinds = []ast.BlockKind{
	ast.BlockSystem,
	ast.BlockContext,
	ast.BlockUser,
	ast.BlockAssistant,
}

// Render produces the canonical document. Dropped sections keep their zero
// token count in the metadata but contribute no content to the arrays.
func Render(plan *alloc.Plan, env map[string]value.Value, pretty bool) string {
	indent := -1
	if pretty {
		indent = 2
	}

	e := &emitter{indent: indent}
	e.open()

	e.key("metadata")
	e.writeRaw(metadataJSON(plan, indent))

	for _, kind := range sectionKinds {
		e.key(string(kind))
		e.writeRaw(sectionArray(plan, kind, indent))
	}

	if len(env) > 0 {
		e.key("variables")
		e.writeRaw(variablesValue(env).EncodeJSON(indent))
	}

	e.close()
	return e.String()
}

// metadataJSON assembles the metadata object with its fixed key order,
// which the sorted value encoder cannot express. The per-section token map
// (dropped sections included at zero) still uses the sorted encoder.
func metadataJSON(plan *alloc.Plan, indent int) string {
	secFields := make([]value.Field, 0, len(plan.Assignments))
	for _, a := range plan.Assignments {
		secFields = append(secFields, value.Field{
			Key: a.Section.ID,
			Val: value.Int(int64(a.Tokens)),
		})
	}
	m := &emitter{indent: indent}
	m.open()
	m.key("version")
	m.writeRaw(strconv.Quote(Version))
	m.key("total_tokens")
	m.writeRaw(strconv.Itoa(plan.Total))
	m.key("budget")
	m.writeRaw(strconv.Itoa(plan.Budget))
	m.key("overflow")
	m.writeRaw(strconv.Itoa(plan.Overflow))
	m.key("sections")
	m.writeRaw(value.Map(secFields).EncodeJSON(indent))
	m.close()
	return m.String()
}

// sectionArray renders one tag's block payloads in document order, skipping
// dropped sections.
func sectionArray(plan *alloc.Plan, kind ast.BlockKind, indent int) string {
	var elems []value.Value
	for _, a := range plan.Assignments {
		if a.Section.Kind != kind || a.Dropped {
			continue
		}
		elems = append(elems, a.Section.Payload)
	}
	return value.List(elems).EncodeJSON(indent)
}

func variablesValue(env map[string]value.Value) value.Value {
	names := make([]string, 0, len(env))
	for n := range env {
		names = append(names, n)
	}
	sort.Strings(names)
	fields := make([]value.Field, len(names))
	for i, n := range names {
		fields[i] = value.Field{Key: n, Val: env[n]}
	}
	return value.Map(fields)
}

// emitter assembles a fixed-order JSON object, re-indenting nested
// encodings when pretty printing.
type emitter struct {
	b      strings.Builder
	indent int
	n      int
}

func (e *emitter) open() {
	e.b.WriteByte('{')
}

func (e *emitter) key(k string) {
	if e.n > 0 {
		e.b.WriteByte(',')
	}
	e.n++
	if e.indent >= 0 {
		e.b.WriteString("\n")
		e.b.WriteString(strings.Repeat(" ", e.indent))
	}
	e.b.WriteString(strconv.Quote(k))
	e.b.WriteByte(':')
	if e.indent >= 0 {
		e.b.WriteByte(' ')
	}
}

// writeRaw embeds an already-encoded value, shifting its continuation lines
// one level deeper.
func (e *emitter) writeRaw(encoded string) {
	if e.indent < 0 {
		e.b.WriteString(encoded)
		return
	}
	pad := strings.Repeat(" ", e.indent)
	lines := strings.Split(encoded, "\n")
	for i, line := range lines {
		if i > 0 {
			e.b.WriteByte('\n')
			e.b.WriteString(pad)
		}
		e.b.WriteString(line)
	}
}

func (e *emitter) close() {
	if e.indent >= 0 && e.n > 0 {
		e.b.WriteByte('\n')
	}
	e.b.WriteByte('}')
}

func (e *emitter) String() string { return e.b.String() }
