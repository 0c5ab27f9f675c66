package blocks

import (
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

// registerMath wires the unary builder-opcode blocks (Sin/Cos/Sqrt/Neg),
// the binary opcode block Mod, and the named field-kernel blocks the teacher's isa.go has no ALU entry
// for. The latter are opaque to the compiler: their numeric semantics live
// in the tick runtime, not here (SPEC_FULL.md §6.5).
func registerMath(r *registry.Registry) {
	rad := cty.Unit{Tag: cty.UnitAngle, Sub: "radians"}
	none := cty.Unit{Tag: cty.UnitNone}
	norm := cty.Unit{Tag: cty.UnitNorm01}
	space := cty.Unit{Tag: cty.UnitSpace}

	_ = r.RegisterBlock(unaryOpcodeDef("Sin", ir.OpSin, rad), registry.Options{})
	_ = r.RegisterBlock(unaryOpcodeDef("Cos", ir.OpCos, rad), registry.Options{})
	_ = r.RegisterBlock(unaryOpcodeDef("Sqrt", ir.OpSqrt, none), registry.Options{})
	_ = r.RegisterBlock(unaryOpcodeDef("Neg", ir.OpNeg, none), registry.Options{})
	_ = r.RegisterBlock(binaryOpDef("Mod", ir.OpMod), registry.Options{})

	_ = r.RegisterBlock(fieldKernelUnaryDef("RadiusSqrt", "radiusSqrt", none, none, cty.Float, cty.Float), registry.Options{})
	_ = r.RegisterBlock(fieldKernelUnaryDef("Pulse", "pulse", norm, norm, cty.Float, cty.Float), registry.Options{})
	_ = r.RegisterBlock(fieldKernelUnaryDef("GoldenAngle", "goldenAngle", none, rad, cty.Int, cty.Float), registry.Options{})
	_ = r.RegisterBlock(fieldKernelBinaryDef("AngularOffset", "angularOffset", rad, rad, rad, cty.Float, cty.Float, cty.Float), registry.Options{})
	_ = r.RegisterBlock(fieldKernelUnaryDef("HueFromPhase", "hueFromPhase", norm, none, cty.Float, cty.Color), registry.Options{})
	_ = r.RegisterBlock(fieldKernelBinaryDef("JitterVec", "jitterVec", none, none, space, cty.Int, cty.Float, cty.Vec2), registry.Options{})
	_ = r.RegisterBlock(setZDef(), registry.Options{})
	_ = r.RegisterBlock(fieldPolarToCartesianDef(), registry.Options{})
	_ = r.RegisterBlock(fieldCartesianToPolarDef(), registry.Options{})
}

// setZDef lifts a Vec2 into a Vec3 by appending a z component, used to
// place 2D layout fields at a fixed depth.
func setZDef() registry.Def {
	space := cty.Unit{Tag: cty.UnitSpace}
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	return registry.Def{
		Type: "SetZ", Label: "SetZ", Category: "math",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Inputs: map[string]registry.InputDef{
			"xy": {Type: cty.New(cty.Vec2, space, scalar, cty.ContractNone)},
			"z":  {Type: cty.New(cty.Float, cty.Unit{Tag: cty.UnitNone}, scalar, cty.ContractNone), HasDefaultSource: true, DefaultSource: registry.DefaultConst, DefaultValue: 0},
		},
		Outputs: map[string]registry.OutputDef{
			"out": {Type: cty.New(cty.Vec3, space, scalar, cty.ContractNone)},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			xy, z := in.ByID["xy"], in.ByID["z"]
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Zip([]ir.ExprID{xy.Expr, z.Expr}, ir.FieldKernel("setZ", 2), outType)
			instance, hasInstance := zipValueRefs(xy, z)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}

func fieldPolarToCartesianDef() registry.Def {
	space := cty.Unit{Tag: cty.UnitSpace}
	rad := cty.Unit{Tag: cty.UnitAngle, Sub: "radians"}
	none := cty.Unit{Tag: cty.UnitNone}
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	return registry.Def{
		Type: "FieldPolarToCartesian", Label: "FieldPolarToCartesian", Category: "math",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Inputs: map[string]registry.InputDef{
			"radius": {Type: cty.New(cty.Float, none, scalar, cty.ContractNone)},
			"angle":  {Type: cty.New(cty.Float, rad, scalar, cty.ContractNone)},
		},
		Outputs: map[string]registry.OutputDef{
			"out": {Type: cty.New(cty.Vec2, space, scalar, cty.ContractNone)},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			radius, angle := in.ByID["radius"], in.ByID["angle"]
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Zip([]ir.ExprID{radius.Expr, angle.Expr}, ir.FieldKernel("polarToCartesian", 2), outType)
			instance, hasInstance := zipValueRefs(radius, angle)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}

// fieldCartesianToPolarDef emits two distinct Map expressions, one per
// output, rather than reusing a single expression id for both: radius and
// angle are logically independent kernel results even though they share a
// source.
func fieldCartesianToPolarDef() registry.Def {
	space := cty.Unit{Tag: cty.UnitSpace}
	rad := cty.Unit{Tag: cty.UnitAngle, Sub: "radians"}
	none := cty.Unit{Tag: cty.UnitNone}
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	return registry.Def{
		Type: "FieldCartesianToPolar", Label: "FieldCartesianToPolar", Category: "math",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Inputs: map[string]registry.InputDef{
			"xy": {Type: cty.New(cty.Vec2, space, scalar, cty.ContractNone)},
		},
		Outputs: map[string]registry.OutputDef{
			"radius": {Type: cty.New(cty.Float, none, scalar, cty.ContractNone)},
			"angle":  {Type: cty.New(cty.Float, rad, scalar, cty.ContractNone)},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			xy := in.ByID["xy"]
			radiusType := ctx.OutputTypes["radius"]
			angleType := ctx.OutputTypes["angle"]
			radiusExpr := ctx.Builder.Map(xy.Expr, ir.FieldKernel("cartesianToPolarRadius", 1), radiusType)
			angleExpr := ctx.Builder.Map(xy.Expr, ir.FieldKernel("cartesianToPolarAngle", 1), angleType)
			instance, hasInstance := zipValueRefs(xy)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{
				"radius": refFor(radiusExpr, radiusType, instance, hasInstance),
				"angle":  refFor(angleExpr, angleType, instance, hasInstance),
			}}, nil
		},
	}
}
