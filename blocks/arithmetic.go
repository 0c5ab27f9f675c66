package blocks

import (
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

// binaryOpDef builds the generic two-argument arithmetic/comparison blocks
// (SPEC_FULL.md §6.5): Add, Sub, Mul, Div, Gt, Lt, Eq all share this shape,
// differing only in which builder opcode their lower() wraps. Comparisons
// produce the same float/int generic payload as their inputs (0/1 encoded
// in it), matching Expression's binary-operator lowering.
func binaryOpDef(blockType string, opcode ir.OpCode) registry.Def {
	return registry.Def{
		Type: blockType, Label: blockType, Category: "arithmetic",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Payload: &registry.PayloadGenerics{
			AllowedPayloads: map[string][]cty.Payload{"a": numericGenerics, "b": numericGenerics, "out": numericGenerics},
			Semantics:       registry.SemanticsComponentwise,
		},
		Inputs: map[string]registry.InputDef{
			"a": {Type: signalOf(cty.Unit{Tag: cty.UnitNone})},
			"b": {Type: signalOf(cty.Unit{Tag: cty.UnitNone})},
		},
		Outputs: map[string]registry.OutputDef{
			"out": {Type: signalOf(cty.Unit{Tag: cty.UnitNone})},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			a, b := in.ByID["a"], in.ByID["b"]
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Zip([]ir.ExprID{a.Expr, b.Expr}, ir.Opcode(opcode), outType)
			instance, hasInstance := zipValueRefs(a, b)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}

func lerpDef() registry.Def {
	return registry.Def{
		Type: "Lerp", Label: "Lerp", Category: "arithmetic",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Payload: &registry.PayloadGenerics{
			AllowedPayloads: map[string][]cty.Payload{
				"a": numericGenerics, "b": numericGenerics, "t": numericGenerics, "out": numericGenerics,
			},
			Semantics: registry.SemanticsComponentwise,
		},
		Inputs: map[string]registry.InputDef{
			"a": {Type: signalOf(cty.Unit{Tag: cty.UnitNone})},
			"b": {Type: signalOf(cty.Unit{Tag: cty.UnitNone})},
			"t": {Type: signalOf(cty.Unit{Tag: cty.UnitNorm01}), HasDefaultSource: true, DefaultSource: registry.DefaultConst, DefaultValue: 0},
		},
		Outputs: map[string]registry.OutputDef{
			"out": {Type: signalOf(cty.Unit{Tag: cty.UnitNone})},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			a, b, t := in.ByID["a"], in.ByID["b"], in.ByID["t"]
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Zip([]ir.ExprID{a.Expr, b.Expr, t.Expr}, ir.Opcode(ir.OpLerp), outType)
			instance, hasInstance := zipValueRefs(a, b, t)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}

func registerArithmetic(r *registry.Registry) {
	for _, spec := range []struct {
		name   string
		opcode ir.OpCode
	}{
		{"Add", ir.OpAdd}, {"Sub", ir.OpSub}, {"Mul", ir.OpMul}, {"Div", ir.OpDiv},
		{"Gt", ir.OpGt}, {"Lt", ir.OpLt}, {"Eq", ir.OpEq},
	} {
		_ = r.RegisterBlock(binaryOpDef(spec.name, spec.opcode), registry.Options{})
	}
	_ = r.RegisterBlock(lerpDef(), registry.Options{})
}
