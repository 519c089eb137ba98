// Package source carries source text and the positions attached to every
// syntax node. Positions survive all compile phases so that diagnostics
// from the engine or allocator can still point at the line that caused them.
package source

import (
	"fmt"
	"strings"
)

// Position is a location in normalized source text. Offset is a byte offset,
// Line and Column are 1-based; Column counts runes, not bytes.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// String renders the position as line:column.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open range [Start, End) over normalized source text.
type Span struct {
	Start Position
	End   Position
}

// At builds a zero-width span at a single position.
func At(p Position) Span {
	return Span{Start: p, End: p}
}

// String renders the span's start position.
func (s Span) String() string {
	return s.Start.String()
}

// File is one normalized source document.
type File struct {
	// Name identifies the file in diagnostics (a path, or "<input>").
	Name string

	// Text is the normalized content: BOM stripped, CRLF folded to LF.
	Text string
}

// New normalizes raw input into a File. A leading UTF-8 byte-order mark is
// ignored and CRLF line endings fold to LF, per the input contract.
func New(name, raw string) *File {
	text := strings.TrimPrefix(raw, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return &File{Name: name, Text: text}
}
