// Package validator produces a typed tree: every binding carries an inferred
// or declared type, every variable reference resolves, every lens invocation
// matches a known signature, and every constraint holds where the value is
// literal. Unlike the halt-first phases, the validator batches V-* findings,
// since independent bindings can be checked past one another's failures.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"facet/internal/ast"
	"facet/internal/diag"
	"facet/internal/resolver"
	"facet/internal/source"
)

// Binding is one typed vars entry. Order is the first-declaration position
// in the merged document; Checked.Bindings lists bindings in this order, and
// the engine's tie-break among independent bindings follows that list.
type Binding struct {
	Name     string
	Decl     *ast.TypeDesc
	Expr     ast.Expr
	Span     source.Span
	Inferred *ast.TypeDesc
	Order    int
}

// Checked is the validated, typed document.
type Checked struct {
	Doc      *ast.Document
	Bindings []*Binding
	ByName   map[string]*Binding

	// Types holds every declared descriptor, including those with no
	// matching binding (permitted, not required).
	Types map[string]*ast.TypeDesc

	// Interfaces maps interface name → declared method set.
	Interfaces map[string]map[string]bool
}

// Validate type-checks a resolved document.
func Validate(res *resolver.Result) (*Checked, diag.List) {
	c := &checker{
		doc:        res.Doc,
		byName:     map[string]*Binding{},
		types:      map[string]*ast.TypeDesc{},
		interfaces: map[string]map[string]bool{},
		inFlight:   map[string]bool{},
	}
	c.errs = append(c.errs, res.Duplicates...)

	c.collectTypes()
	c.collectBindings()
	c.collectInterfaces()

	for _, b := range c.bindings {
		c.inferBinding(b)
	}
	for _, b := range c.bindings {
		c.checkBinding(b)
	}
	c.checkConsumerBlocks()
	c.checkTrials()

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return &Checked{
		Doc:        c.doc,
		Bindings:   c.bindings,
		ByName:     c.byName,
		Types:      c.types,
		Interfaces: c.interfaces,
	}, nil
}

type checker struct {
	doc        *ast.Document
	bindings   []*Binding
	byName     map[string]*Binding
	types      map[string]*ast.TypeDesc
	interfaces map[string]map[string]bool
	inFlight   map[string]bool
	errs       diag.List
}

func (c *checker) errorf(code diag.Code, span source.Span, format string, args ...interface{}) {
	c.errs = append(c.errs, diag.At(code, span, format, args...))
}

func (c *checker) collectTypes() {
	for _, blk := range c.doc.BlocksOf(ast.BlockVarTypes) {
		for _, e := range blk.Entries {
			desc, err := typeFromExpr(e.Value)
			if err != nil {
				c.errs = append(c.errs, err)
				continue
			}
			c.types[e.Key] = desc
		}
	}
}

func (c *checker) collectBindings() {
	for _, blk := range c.doc.BlocksOf(ast.BlockVars) {
		for i, e := range blk.Entries {
			b := &Binding{
				Name:  e.Key,
				Decl:  c.types[e.Key],
				Expr:  e.Value,
				Span:  e.Span,
				Order: i,
			}
			c.bindings = append(c.bindings, b)
			c.byName[e.Key] = b
		}
	}
}

func (c *checker) collectInterfaces() {
	for _, blk := range c.doc.BlocksOf(ast.BlockInterface) {
		for _, e := range blk.Entries {
			methods := map[string]bool{}
			switch v := e.Value.(type) {
			case *ast.MapLit:
				for _, m := range v.Entries {
					methods[m.Key] = true
				}
			case *ast.ListLit:
				for _, el := range v.Elems {
					s, ok := el.(*ast.StringLit)
					if !ok {
						c.errorf(diag.ValidateType, el.Span(),
							"interface %q: method names must be strings", e.Key)
						continue
					}
					methods[s.Value] = true
				}
			default:
				c.errorf(diag.ValidateType, e.Value.Span(),
					"interface %q: expected a method mapping or list", e.Key)
				continue
			}
			c.interfaces[e.Key] = methods
		}
	}
}

// checkBinding verifies a binding's declared type and literal constraints.
// Non-literal values defer constraint checking to post-evaluation.
func (c *checker) checkBinding(b *Binding) {
	// Direct self-reference is a name-level forward cycle; longer cycles
	// are the engine's to report.
	selfRef := false
	ast.WalkRefs(b.Expr, func(r *ast.VarRef) {
		if r.Name == b.Name {
			selfRef = true
		}
	})
	if selfRef {
		c.errorf(diag.ValidateFwd, b.Span, "binding %q references itself", b.Name)
		return
	}

	if b.Decl == nil {
		return
	}
	if v, ok := LiteralValue(b.Expr); ok {
		c.errs = append(c.errs, CheckValue(b.Name, b.Decl, v, b.Span)...)
		return
	}
	if b.Inferred != nil && !b.Inferred.AssignableTo(b.Decl) {
		c.errorf(diag.ValidateType, b.Span,
			"%s: computed type %s does not match declared type %s", b.Name, b.Inferred, b.Decl)
	}
}

// checkConsumerBlocks walks non-vars blocks: their references must resolve
// and their pipelines must type-check, though their results never become
// bindings.
func (c *checker) checkConsumerBlocks() {
	for _, blk := range c.doc.Blocks {
		switch blk.Kind {
		case ast.BlockVars, ast.BlockVarTypes, ast.BlockImport, ast.BlockInterface, ast.BlockTest:
			continue
		}
		for _, e := range blk.Entries {
			c.inferExpr(e.Value)
		}
	}
}

// checkTrials validates @test blocks: override keys must name bindings, mock
// keys must name a known external lens or interface.method.
func (c *checker) checkTrials() {
	for _, blk := range c.doc.BlocksOf(ast.BlockTest) {
		for _, trial := range blk.Entries {
			body, ok := trial.Value.(*ast.MapLit)
			if !ok {
				c.errorf(diag.ValidateType, trial.Value.Span(),
					"test %q: expected a trial configuration mapping", trial.Key)
				continue
			}
			for _, e := range body.Entries {
				switch e.Key {
				case "overrides":
					m, ok := e.Value.(*ast.MapLit)
					if !ok {
						c.errorf(diag.ValidateType, e.Value.Span(),
							"test %q: overrides must be a mapping", trial.Key)
						continue
					}
					for _, ov := range m.Entries {
						if _, exists := c.byName[ov.Key]; !exists {
							c.errorf(diag.ValidateUndef, ov.Span,
								"test %q: override targets unknown binding %q", trial.Key, ov.Key)
						}
					}
				case "mocks":
					m, ok := e.Value.(*ast.MapLit)
					if !ok {
						c.errorf(diag.ValidateType, e.Value.Span(),
							"test %q: mocks must be a mapping", trial.Key)
						continue
					}
					for _, mock := range m.Entries {
						if !c.knownMockTarget(mock.Key) {
							c.errorf(diag.ValidateLens, mock.Span,
								"test %q: mock targets unknown name %q", trial.Key, mock.Key)
						}
					}
				}
			}
		}
	}
}

// knownMockTarget accepts an external lens name or interface.method pair.
func (c *checker) knownMockTarget(name string) bool {
	if before, after, found := strings.Cut(name, "."); found {
		methods, ok := c.interfaces[before]
		return ok && methods[after]
	}
	l, ok := lensGet(name)
	return ok && l.External
}

// Summary renders the checked document for debug logging.
func (ch *Checked) Summary() string {
	names := make([]string, 0, len(ch.ByName))
	for n := range ch.ByName {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s: %s", n, ch.ByName[n].Inferred)
	}
	return strings.Join(parts, ", ")
}
