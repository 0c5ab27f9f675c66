// Package blocks is the concrete block catalog (spec.md §6.2, SPEC_FULL.md
// §6.5): every built-in block definition, expressed as a registry.Def whose
// Lower emits IR. Grounded in the teacher's instr/isa.go instruction-set
// table and core/emu.go's opcode dispatch, generalized from a fixed 32-bit
// ALU to the canonical-type algebra.
package blocks

import (
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

// signalOf builds the generic-group marker type for a cardinality-preserve,
// payload-generic scalar port: Unit and concrete payload are filled in by
// the registration site; Extent is always overwritten by the solver for
// CardinalityPreserve blocks, so only Temporality here matters.
func signalOf(unit cty.Unit) cty.Type {
	return cty.Type{Unit: unit, Extent: cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}}
}

// numericGenerics is the float/int payload-generics group shared by the
// arithmetic family and most of the cardinality-generic math blocks.
var numericGenerics = []cty.Payload{cty.Float, cty.Int}

// zipValueRefs finds the first field-cardinality input among refs, so a
// block's output can be attributed to the same field domain.
func zipValueRefs(refs ...ir.ValueRef) (ir.InstanceID, bool) {
	for _, r := range refs {
		if r.IsField() {
			return r.InstanceID, true
		}
	}
	return "", false
}

// refFor builds the correctly-tagged ValueRef (signal or field) for an
// emitted expression.
func refFor(expr ir.ExprID, t cty.Type, instance ir.InstanceID, hasInstance bool) ir.ValueRef {
	if hasInstance {
		return ir.NewFieldRef(expr, t, instance)
	}
	return ir.NewSignalRef(expr, t)
}

// unaryOpcodeDef builds a cardinality-generic, payload-generic block
// wrapping a single-argument builder opcode (Sin, Cos, Sqrt, Neg).
func unaryOpcodeDef(blockType string, opcode ir.OpCode, unit cty.Unit) registry.Def {
	return registry.Def{
		Type: blockType, Label: blockType, Category: "math",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Payload: &registry.PayloadGenerics{
			AllowedPayloads: map[string][]cty.Payload{"in": {cty.Float}, "out": {cty.Float}},
			Semantics:       registry.SemanticsComponentwise,
		},
		Inputs:  map[string]registry.InputDef{"in": {Type: signalOf(unit)}},
		Outputs: map[string]registry.OutputDef{"out": {Type: signalOf(unit)}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			src := in.ByID["in"]
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Map(src.Expr, ir.Opcode(opcode), outType)
			instance, hasInstance := zipValueRefs(src)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}

// fieldKernelUnaryDef builds a cardinality-generic block wrapping a named,
// runtime-opaque unary kernel (one the builder's fixed opcode catalog
// doesn't cover, e.g. radiusSqrt).
func fieldKernelUnaryDef(blockType, kernelName string, inUnit, outUnit cty.Unit, payload cty.Payload, outPayload cty.Payload) registry.Def {
	return registry.Def{
		Type: blockType, Label: blockType, Category: "math",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Inputs:  map[string]registry.InputDef{"in": {Type: cty.New(payload, inUnit, cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}, cty.ContractNone)}},
		Outputs: map[string]registry.OutputDef{"out": {Type: cty.New(outPayload, outUnit, cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}, cty.ContractNone)}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			src := in.ByID["in"]
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Map(src.Expr, ir.FieldKernel(kernelName, 1), outType)
			instance, hasInstance := zipValueRefs(src)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}

// fieldKernelBinaryDef builds a cardinality-generic block wrapping a named
// two-argument runtime-opaque kernel.
func fieldKernelBinaryDef(blockType, kernelName string, aUnit, bUnit, outUnit cty.Unit, aPayload, bPayload, outPayload cty.Payload) registry.Def {
	return registry.Def{
		Type: blockType, Label: blockType, Category: "math",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Inputs: map[string]registry.InputDef{
			"a": {Type: cty.New(aPayload, aUnit, cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}, cty.ContractNone)},
			"b": {Type: cty.New(bPayload, bUnit, cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}, cty.ContractNone)},
		},
		Outputs: map[string]registry.OutputDef{
			"out": {Type: cty.New(outPayload, outUnit, cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}, cty.ContractNone)},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			a, b := in.ByID["a"], in.ByID["b"]
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Zip([]ir.ExprID{a.Expr, b.Expr}, ir.FieldKernel(kernelName, 2), outType)
			instance, hasInstance := zipValueRefs(a, b)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}
