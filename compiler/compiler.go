// Package compiler wires the ten pipeline components (frontend, typesolve,
// lower, debugidx, schedule) plus the registry/adapter setup into the single
// entry point an external caller (the CLI, the debug server, a test) uses:
// Compile.
package compiler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sarchlab/patchc/blocks"
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/debugidx"
	"github.com/sarchlab/patchc/diag"
	"github.com/sarchlab/patchc/frontend"
	"github.com/sarchlab/patchc/lower"
	"github.com/sarchlab/patchc/patch"
	"github.com/sarchlab/patchc/registry"
	"github.com/sarchlab/patchc/schedule"
	"github.com/sarchlab/patchc/typesolve"
)

// Trace-level logging toggle, mirroring the teacher's PrintToggle /
// LevelTrace pattern in core/util.go: off by default, flippable for a
// compile-time diagnosis session without touching call sites.
const (
	TraceEnabled            = false
	LevelTrace   slog.Level = slog.LevelInfo + 1
)

func trace(msg string, args ...any) {
	if !TraceEnabled {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// Options is the fluent compile-time configuration, in the shape of the
// teacher's config.DeviceBuilder: value receiver, With* methods each
// returning a new Options.
type Options struct {
	registry *registry.Registry
	adapters *frontend.AdapterRegistry
}

// DefaultOptions builds an Options with every built-in block and unit
// adapter registered.
func DefaultOptions() Options {
	reg := registry.New()
	entries := blocks.RegisterAll(reg)
	adapters := frontend.NewAdapterRegistry()
	for _, e := range entries {
		adapters.Register(e.From, e.To, e.BlockType)
	}
	return Options{registry: reg, adapters: adapters}
}

// WithRegistry overrides the block registry, e.g. for a test that registers
// only a handful of fixture blocks.
func (o Options) WithRegistry(r *registry.Registry) Options {
	o.registry = r
	return o
}

// WithAdapters overrides the unit-adapter registry.
func (o Options) WithAdapters(a *frontend.AdapterRegistry) Options {
	o.adapters = a
	return o
}

// Result is what Compile returns on success: the assembled program plus the
// debug-mapping index it was built from, so a caller can immediately feed
// both into a debugmap.Service.
type Result struct {
	Program    *schedule.CompiledProgram
	DebugIndex *debugidx.Index
}

// Compile runs patch p through every pipeline stage in order (spec.md §2),
// stopping at the first stage that reports a diagnostic.
func Compile(p *patch.Patch, opts Options) (*Result, []diag.Diagnostic) {
	if opts.registry == nil {
		opts = DefaultOptions()
	}

	// cty's payload/cardinality unification variables are package-global
	// union-find maps (spec.md §9's tradeoff for keeping Type a plain
	// comparable value). Reset them per compile so a long-lived process
	// compiling many patches in sequence doesn't grow them unbounded.
	cty.ResetVariables()

	ctx := frontend.NewContext(p, opts.registry, opts.adapters)
	if diags := ctx.Run(); len(diags) > 0 {
		trace("compile: frontend failed", "count", len(diags))
		return nil, diags
	}
	trace("compile: frontend ok", "blocks", len(ctx.Patch.Blocks()))

	sol, diags := typesolve.Solve(ctx)
	if len(diags) > 0 {
		trace("compile: typesolve failed", "count", len(diags))
		return nil, diags
	}
	trace("compile: typesolve ok", "ports", len(sol.PortType))

	lowered, diags := lower.Run(ctx, sol)
	if len(diags) > 0 {
		trace("compile: lowering failed", "count", len(diags))
		return nil, diags
	}
	trace("compile: lowering ok", "steps", len(lowered.Module.Steps()))

	idx := debugidx.Build(ctx, lowered)
	program := schedule.Build(lowered, idx, ctx.Topology)
	trace("compile: scheduling ok", "slots", len(program.SlotMeta), "steps", len(program.Steps))

	return &Result{Program: program, DebugIndex: idx}, nil
}

// CompileFile loads a YAML-encoded patch from path and compiles it, folding
// the load failure into the same error channel compile failures use.
func CompileFile(path string, opts Options) (*Result, []diag.Diagnostic, error) {
	p, err := patch.LoadPatchFromYAML(path)
	if err != nil {
		return nil, nil, fmt.Errorf("compiler: loading patch %s: %w", path, err)
	}
	res, diags := Compile(p, opts)
	return res, diags, nil
}
