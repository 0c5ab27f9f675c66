package blocks

import (
	"fmt"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

// constDef is the type-polymorphic constant source (spec.md §6.2). Its
// concrete payload is pinned from its config "type" key (float when absent)
// rather than inferred from a connected edge, via registry.Def.ConfigPayload.
func constDef() registry.Def {
	allowed := []cty.Payload{cty.Float, cty.Int, cty.Bool, cty.Vec2, cty.Vec3, cty.Color}
	return registry.Def{
		Type: "Const", Label: "Const", Category: "source",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Payload: &registry.PayloadGenerics{
			AllowedPayloads: map[string][]cty.Payload{"out": allowed},
			Semantics:       registry.SemanticsComponentwise,
		},
		Outputs: map[string]registry.OutputDef{"out": {Type: signalOf(cty.Unit{Tag: cty.UnitNone})}},
		ConfigPayload: func(config map[string]any) (cty.Payload, bool) {
			switch kind, _ := config["type"].(string); kind {
			case "int":
				return cty.Int, true
			case "bool":
				return cty.Bool, true
			case "vec2":
				return cty.Vec2, true
			case "vec3":
				return cty.Vec3, true
			case "color":
				return cty.Color, true
			default:
				return cty.Float, true
			}
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			outType := ctx.OutputTypes["out"]
			payload, _ := cty.ResolvedPayload(outType)
			if payload != cty.Vec2 && payload != cty.Vec3 && payload != cty.Color {
				v, _ := in.Config["value"].(float64)
				expr := ctx.Builder.Const(v, outType)
				return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": ir.NewSignalRef(expr, outType)}}, nil
			}
			comps, _ := in.Config["value"].([]any)
			scalar := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})
			exprs := make([]ir.ExprID, 0, len(comps))
			for _, c := range comps {
				f, _ := c.(float64)
				exprs = append(exprs, ctx.Builder.Const(f, scalar))
			}
			expr := ctx.Builder.Construct(exprs, outType)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": ir.NewSignalRef(expr, outType)}}, nil
		},
	}
}

func externalInputDef() registry.Def {
	return registry.Def{
		Type: "ExternalInput", Label: "ExternalInput", Category: "source",
		Form: registry.FormPrimitive, Capability: registry.CapIO,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Outputs: map[string]registry.OutputDef{"value": {Type: cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			channel, _ := in.Config["channel"].(string)
			outType := ctx.OutputTypes["value"]
			expr := ctx.Builder.External(channel, outType)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"value": ir.NewSignalRef(expr, outType)}}, nil
		},
	}
}

// externalGateDef implements `1 - (threshold > input)` so the boundary is
// inclusive (input >= threshold), per spec.md §6.2.
func externalGateDef() registry.Def {
	return registry.Def{
		Type: "ExternalGate", Label: "ExternalGate", Category: "source",
		Form: registry.FormPrimitive, Capability: registry.CapIO,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Outputs: map[string]registry.OutputDef{"gate": {Type: cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			channel, _ := in.Config["channel"].(string)
			threshold, ok := in.Config["threshold"].(float64)
			if !ok {
				threshold = 0.5
			}
			scalar := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})
			inputExpr := ctx.Builder.External(channel, scalar)
			thresholdExpr := ctx.Builder.Const(threshold, scalar)
			one := ctx.Builder.Const(1, scalar)
			gt := ctx.Builder.Zip([]ir.ExprID{thresholdExpr, inputExpr}, ir.Opcode(ir.OpGt), scalar)
			gate := ctx.Builder.Zip([]ir.ExprID{one, gt}, ir.Opcode(ir.OpSub), scalar)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"gate": ir.NewSignalRef(gate, scalar)}}, nil
		},
	}
}

func externalVec2Def() registry.Def {
	return registry.Def{
		Type: "ExternalVec2", Label: "ExternalVec2", Category: "source",
		Form: registry.FormPrimitive, Capability: registry.CapIO,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Outputs: map[string]registry.OutputDef{"out": {Type: cty.Signal(cty.Vec2, cty.Unit{Tag: cty.UnitSpace})}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			base, _ := in.Config["channelBase"].(string)
			scalar := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})
			xExpr := ctx.Builder.External(base+".x", scalar)
			yExpr := ctx.Builder.External(base+".y", scalar)
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Construct([]ir.ExprID{xExpr, yExpr}, outType)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": ir.NewSignalRef(expr, outType)}}, nil
		},
	}
}

// clockPhaseDef is the time-root default source Pass 1 inserts for
// defaultSource=time-root-phase inputs; its output port is named "out" to
// match the fixed wiring frontend.insertDefaultSource performs.
func clockPhaseDef() registry.Def {
	return registry.Def{
		Type: "ClockPhase", Label: "ClockPhase", Category: "source",
		Form: registry.FormPrimitive, Capability: registry.CapTime,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Outputs: map[string]registry.OutputDef{"out": {Type: cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNorm01})}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			period, ok := in.Config["periodSeconds"].(float64)
			if !ok || period <= 0 {
				period = 1
			}
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Intrinsic(fmt.Sprintf("clockPhase:%g", period), outType)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": ir.NewSignalRef(expr, outType)}}, nil
		},
	}
}

// arrayDef is the primary InstanceDecl-emitting block: it declares a new
// field domain of `count` lanes and exposes the per-lane index as its
// output field.
func arrayDef() registry.Def {
	return registry.Def{
		Type: "Array", Label: "Array", Category: "source",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityFieldOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Outputs: map[string]registry.OutputDef{
			"index": {Type: cty.Field(cty.Int, cty.Unit{Tag: cty.UnitCount}, "", "")},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			count, ok := in.Config["count"].(float64)
			if !ok || count < 1 {
				count = 1
			}
			instanceID := ir.InstanceID(ctx.InstanceID)
			ctx.Builder.CreateInstance(instanceID, ir.DomainDefault, int(count))
			outType := ctx.OutputTypes["index"]
			expr := ctx.Builder.Intrinsic("laneIndex", outType)
			return registry.LowerResult{
				OutputsByID:     map[string]ir.ValueRef{"index": ir.NewFieldRef(expr, outType, instanceID)},
				InstanceContext: instanceID,
				HasInstanceCtx:  true,
			}, nil
		},
	}
}

func registerSources(r *registry.Registry) {
	_ = r.RegisterBlock(constDef(), registry.Options{})
	_ = r.RegisterBlock(externalInputDef(), registry.Options{})
	_ = r.RegisterBlock(externalGateDef(), registry.Options{})
	_ = r.RegisterBlock(externalVec2Def(), registry.Options{})
	_ = r.RegisterBlock(clockPhaseDef(), registry.Options{})
	_ = r.RegisterBlock(arrayDef(), registry.Options{})
}
