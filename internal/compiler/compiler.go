// Package compiler wires the six phases into one synchronous pipeline:
// parse, resolve, validate, evaluate, allocate, render. One document flows
// through one thread; a hosting process may run many compilers in parallel,
// but a Compiler value itself holds no mutable state across calls.
package compiler

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"facet/internal/alloc"
	"facet/internal/ast"
	"facet/internal/config"
	"facet/internal/diag"
	"facet/internal/engine"
	"facet/internal/logging"
	"facet/internal/parser"
	"facet/internal/render"
	"facet/internal/resolver"
	"facet/internal/validator"
	"facet/internal/value"
)

// Telemetry reports what one compile cost. Hosts build @test assertions on
// top of it.
type Telemetry struct {
	CompileID   string
	GasUsed     int64
	TotalTokens int
	Budget      int
	Overflow    int
	Sections    map[string]int
	Durations   map[string]time.Duration
}

// Result is a successful compile.
type Result struct {
	JSON      string
	Env       map[string]value.Value
	Plan      *alloc.Plan
	Trials    []*engine.Trial
	Telemetry Telemetry
}

// Compiler runs the pipeline under fixed options.
type Compiler struct {
	opts *config.Options
	est  alloc.Estimator
	log  *zap.Logger
}

// New builds a compiler. Nil options mean defaults.
func New(opts *config.Options) *Compiler {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	return &Compiler{
		opts: opts,
		est:  alloc.NewEstimator(),
		log:  logging.Named("compiler"),
	}
}

// CompileFile reads and compiles a document from disk. Imports resolve
// relative to the file, confined to its directory tree plus any configured
// roots.
func (c *Compiler) CompileFile(path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, diag.New(diag.ResolveNotFound, "cannot resolve input path %q: %v", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, diag.New(diag.ResolveNotFound, "cannot read input %q: %v", path, err)
	}
	roots := append([]string{filepath.Dir(abs)}, c.opts.Roots...)
	loader, err := resolver.NewFSLoader(roots...)
	if err != nil {
		return nil, diag.New(diag.ResolvePath, "invalid import roots: %v", err)
	}
	return c.Compile(abs, string(data), loader)
}

// Compile runs the pipeline over in-memory source. A failed compile yields
// an error diagnostic and no canonical output.
func (c *Compiler) Compile(name, src string, loader resolver.Loader) (*Result, error) {
	start := time.Now()
	durations := map[string]time.Duration{}
	mark := func(phase string) func() {
		t := time.Now()
		return func() { durations[phase] = time.Since(t) }
	}

	done := mark("parse")
	doc, perr := parser.Parse(name, src)
	done()
	if perr != nil {
		return nil, perr
	}

	done = mark("resolve")
	resolved, rerr := resolver.New(loader).Resolve(doc, name)
	done()
	if rerr != nil {
		return nil, rerr
	}

	done = mark("validate")
	checked, verrs := validator.Validate(resolved)
	done()
	if len(verrs) > 0 {
		return nil, verrs
	}

	budget, gasLimit := c.limits(checked.Doc)

	done = mark("evaluate")
	eng := engine.New(checked, engine.Options{
		GasLimit: gasLimit,
		Inputs:   c.inputValues(),
	})
	evaluated, eerr := eng.Evaluate()
	done()
	if eerr != nil {
		return nil, eerr
	}

	done = mark("allocate")
	sections := alloc.Build(evaluated.Blocks, c.est)
	plan, aerr := alloc.Allocate(sections, budget)
	done()
	if aerr != nil {
		return nil, aerr
	}

	done = mark("render")
	out := render.Render(plan, evaluated.Env, c.opts.Pretty)
	done()

	trials, terrs := engine.Trials(checked)
	if len(terrs) > 0 {
		return nil, terrs
	}

	res := &Result{
		JSON:   out,
		Env:    evaluated.Env,
		Plan:   plan,
		Trials: trials,
		Telemetry: Telemetry{
			CompileID:   uuid.NewString(),
			GasUsed:     evaluated.GasUsed,
			TotalTokens: plan.Total,
			Budget:      plan.Budget,
			Overflow:    plan.Overflow,
			Sections:    sectionTokens(plan),
			Durations:   durations,
		},
	}
	c.log.Debug("compile finished",
		zap.String("input", name),
		zap.String("compile_id", res.Telemetry.CompileID),
		zap.Int64("gas", res.Telemetry.GasUsed),
		zap.Int("total_tokens", res.Telemetry.TotalTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// Check runs the front half of the pipeline only: parse, resolve, validate.
func (c *Compiler) Check(name, src string, loader resolver.Loader) error {
	doc, perr := parser.Parse(name, src)
	if perr != nil {
		return perr
	}
	resolved, rerr := resolver.New(loader).Resolve(doc, name)
	if rerr != nil {
		return rerr
	}
	if _, verrs := validator.Validate(resolved); len(verrs) > 0 {
		return verrs
	}
	return nil
}

// CheckFile is Check over a file path.
func (c *Compiler) CheckFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return diag.New(diag.ResolveNotFound, "cannot resolve input path %q: %v", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return diag.New(diag.ResolveNotFound, "cannot read input %q: %v", path, err)
	}
	roots := append([]string{filepath.Dir(abs)}, c.opts.Roots...)
	loader, lerr := resolver.NewFSLoader(roots...)
	if lerr != nil {
		return diag.New(diag.ResolvePath, "invalid import roots: %v", lerr)
	}
	return c.Check(abs, string(data), loader)
}

// limits resolves the effective budget and gas limit: explicit options win,
// then literal @meta declarations, then built-in defaults (applied
// downstream by the allocator and engine).
func (c *Compiler) limits(doc *ast.Document) (budget int, gasLimit int64) {
	budget = c.opts.Budget
	gasLimit = c.opts.GasLimit
	for _, blk := range doc.BlocksOf(ast.BlockMeta) {
		for _, e := range blk.Entries {
			v, ok := validator.LiteralValue(e.Value)
			if !ok || v.Kind() != value.KindInt {
				continue
			}
			switch e.Key {
			case "budget":
				if budget == 0 {
					budget = int(v.AsInt())
				}
			case "gas_limit":
				if gasLimit == 0 {
					gasLimit = v.AsInt()
				}
			}
		}
	}
	return budget, gasLimit
}

func (c *Compiler) inputValues() map[string]value.Value {
	if len(c.opts.Inputs) == 0 {
		return nil
	}
	out := make(map[string]value.Value, len(c.opts.Inputs))
	for k, v := range c.opts.Inputs {
		out[k] = value.Str(v)
	}
	return out
}

func sectionTokens(plan *alloc.Plan) map[string]int {
	out := make(map[string]int, len(plan.Assignments))
	for _, a := range plan.Assignments {
		out[a.Section.ID] = a.Tokens
	}
	return out
}

// Envelope renders any compile error as the single-line JSON diagnostic for
// the host's error channel. Batched validator errors surface the first.
func Envelope(err error) string {
	list := diag.AsList(err)
	if first := list.First(); first != nil {
		return first.Envelope()
	}
	return diag.New(diag.Internal, "unknown failure").Envelope()
}
