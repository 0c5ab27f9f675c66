package blocks

import (
	"strconv"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

// registerVector wires the pack/unpack blocks that cross the scalar<->
// vector/color boundary: Construct builds the composite, Map with a named
// component-extraction kernel tears it back down (the compiler never reads
// component values itself, so extraction is just another opaque kernel).
func registerVector(r *registry.Registry) {
	none := cty.Unit{Tag: cty.UnitNone}
	space := cty.Unit{Tag: cty.UnitSpace}
	color := cty.Unit{Tag: cty.UnitColor}

	_ = r.RegisterBlock(packDef("Vec2", cty.Vec2, space, []string{"x", "y"}), registry.Options{})
	_ = r.RegisterBlock(packDef("Vec3", cty.Vec3, space, []string{"x", "y", "z"}), registry.Options{})
	_ = r.RegisterBlock(packDef("Color", cty.Color, color, []string{"r", "g", "b", "a"}), registry.Options{})

	_ = r.RegisterBlock(unpackDef("Vec2Components", cty.Vec2, space, none, []string{"x", "y"}), registry.Options{})
	_ = r.RegisterBlock(unpackDef("Vec3Components", cty.Vec3, space, none, []string{"x", "y", "z"}), registry.Options{})
	_ = r.RegisterBlock(unpackDef("ColorComponents", cty.Color, color, none, []string{"r", "g", "b", "a"}), registry.Options{})
}

// packDef builds a Construct-based block taking one scalar input per
// component and producing the composite payload.
func packDef(blockType string, payload cty.Payload, unit cty.Unit, components []string) registry.Def {
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	inputs := make(map[string]registry.InputDef, len(components))
	for _, c := range components {
		inputs[c] = registry.InputDef{
			Type: cty.New(cty.Float, cty.Unit{Tag: cty.UnitNone}, scalar, cty.ContractNone),
			HasDefaultSource: true, DefaultSource: registry.DefaultConst, DefaultValue: 0,
		}
	}
	return registry.Def{
		Type: blockType, Label: blockType, Category: "vector",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Inputs:  inputs,
		Outputs: map[string]registry.OutputDef{"out": {Type: cty.New(payload, unit, scalar, cty.ContractNone)}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			refs := make([]ir.ValueRef, 0, len(components))
			exprs := make([]ir.ExprID, 0, len(components))
			for _, c := range components {
				ref := in.ByID[c]
				refs = append(refs, ref)
				exprs = append(exprs, ref.Expr)
			}
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Construct(exprs, outType)
			instance, hasInstance := zipValueRefs(refs...)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}

// unpackDef builds a block with one Map-per-component, each wrapping a
// named "extractN" field kernel.
func unpackDef(blockType string, payload cty.Payload, inUnit, outUnit cty.Unit, components []string) registry.Def {
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	outputs := make(map[string]registry.OutputDef, len(components))
	for _, c := range components {
		outputs[c] = registry.OutputDef{Type: cty.New(cty.Float, outUnit, scalar, cty.ContractNone)}
	}
	return registry.Def{
		Type: blockType, Label: blockType, Category: "vector",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Inputs:  map[string]registry.InputDef{"in": {Type: cty.New(payload, inUnit, scalar, cty.ContractNone)}},
		Outputs: outputs,
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			src := in.ByID["in"]
			instance, hasInstance := zipValueRefs(src)
			outs := make(map[string]ir.ValueRef, len(components))
			for i, c := range components {
				outType := ctx.OutputTypes[c]
				expr := ctx.Builder.Map(src.Expr, ir.FieldKernel("extract"+strconv.Itoa(i), 1), outType)
				outs[c] = refFor(expr, outType, instance, hasInstance)
			}
			return registry.LowerResult{OutputsByID: outs}, nil
		},
	}
}
