// Package resolver loads the transitive import closure of a document,
// detects import cycles, and merges identically tagged blocks by the
// per-tag policy. Import blocks are consumed; the merged document carries
// none.
package resolver

import (
	"strings"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/parser"
)

// MaxDepth is the transitive import depth limit.
const MaxDepth = 10

// Result is a merged document plus the duplicate-declaration findings the
// validator reports in its batch.
type Result struct {
	Doc        *ast.Document
	Duplicates diag.List
}

// Resolver expands imports through a Loader.
type Resolver struct {
	loader   Loader
	maxDepth int
}

// New builds a resolver with the default depth limit.
func New(loader Loader) *Resolver {
	return &Resolver{loader: loader, maxDepth: MaxDepth}
}

// Resolve expands and merges doc. id is the document's canonical identity
// (its path, or "<input>" for anonymous input).
func (r *Resolver) Resolve(doc *ast.Document, id string) (*Result, *diag.Diagnostic) {
	flat, err := r.flatten(doc, id, []string{id}, 0)
	if err != nil {
		return nil, err
	}
	merged, dups := merge(flat, doc.Name)
	return &Result{Doc: merged, Duplicates: dups}, nil
}

// flatten returns the document's blocks in resolution order: every import's
// expansion first, then the document's own blocks, so the importing file's
// declarations take precedence under last-wins merging.
func (r *Resolver) flatten(doc *ast.Document, id string, stack []string, depth int) ([]*ast.Block, *diag.Diagnostic) {
	if depth > r.maxDepth {
		return nil, diag.New(diag.ResolveDepth,
			"import depth exceeds the limit of %d levels", r.maxDepth)
	}

	var out []*ast.Block
	for _, blk := range doc.Blocks {
		if blk.Kind != ast.BlockImport {
			continue
		}
		cid, content, lerr := r.loader.Load(id, blk.ImportPath)
		if lerr != nil {
			if lerr.Span == nil {
				lerr.Span = &blk.Span
			}
			return nil, lerr
		}
		if i := indexOf(stack, cid); i >= 0 {
			chain := append(append([]string{}, stack[i:]...), cid)
			return nil, diag.At(diag.ResolveCycle, blk.Span,
				"import cycle: %s", strings.Join(chain, " → "))
		}
		sub, perr := parser.Parse(cid, content)
		if perr != nil {
			return nil, perr
		}
		subBlocks, ferr := r.flatten(sub, cid, append(stack, cid), depth+1)
		if ferr != nil {
			return nil, ferr
		}
		out = append(out, subBlocks...)
	}
	for _, blk := range doc.Blocks {
		if blk.Kind != ast.BlockImport {
			out = append(out, blk)
		}
	}
	return out, nil
}

func indexOf(stack []string, id string) int {
	for i, s := range stack {
		if s == id {
			return i
		}
	}
	return -1
}

// merge applies the per-tag policy over blocks in resolution order:
//
//	meta, system, user, assistant  last block wins
//	vars, var_types                key-wise merge, last write wins
//	context, test, interface       append in resolution order
//
// The merged document lists meta, vars, var_types, system, user, and
// assistant (each at most once, in that order), then the appended blocks in
// resolution order.
func merge(blocks []*ast.Block, name string) (*ast.Document, diag.List) {
	var dups diag.List

	singles := map[ast.BlockKind]*ast.Block{}
	keyed := map[ast.BlockKind]*ast.Block{}
	keyIndex := map[ast.BlockKind]map[string]int{}
	var appended []*ast.Block

	for _, blk := range blocks {
		switch blk.Kind {
		case ast.BlockMeta, ast.BlockSystem, ast.BlockUser, ast.BlockAssistant:
			singles[blk.Kind] = blk
		case ast.BlockVars, ast.BlockVarTypes:
			dups = append(dups, duplicateKeys(blk)...)
			target := keyed[blk.Kind]
			if target == nil {
				target = &ast.Block{Kind: blk.Kind, Span: blk.Span}
				keyed[blk.Kind] = target
				keyIndex[blk.Kind] = map[string]int{}
			}
			idx := keyIndex[blk.Kind]
			for _, e := range blk.Entries {
				if at, ok := idx[e.Key]; ok {
					target.Entries[at] = e
					continue
				}
				idx[e.Key] = len(target.Entries)
				target.Entries = append(target.Entries, e)
			}
		case ast.BlockContext, ast.BlockTest, ast.BlockInterface:
			appended = append(appended, blk)
		}
	}

	out := &ast.Document{Name: name}
	for _, kind := range []ast.BlockKind{ast.BlockMeta, ast.BlockVars, ast.BlockVarTypes,
		ast.BlockSystem, ast.BlockUser, ast.BlockAssistant} {
		if b, ok := singles[kind]; ok {
			out.Blocks = append(out.Blocks, b)
		}
		if b, ok := keyed[kind]; ok {
			out.Blocks = append(out.Blocks, b)
		}
	}
	out.Blocks = append(out.Blocks, appended...)
	return out, dups
}

// duplicateKeys flags repeated keys within a single vars or var_types block;
// key-wise merging across blocks is policy, repetition inside one block is a
// declaration error.
func duplicateKeys(blk *ast.Block) diag.List {
	var out diag.List
	seen := map[string]bool{}
	for _, e := range blk.Entries {
		if seen[e.Key] {
			out = append(out, diag.At(diag.ValidateDup, e.Span,
				"duplicate declaration of %q in @%s", e.Key, blk.Kind))
			continue
		}
		seen[e.Key] = true
	}
	return out
}
