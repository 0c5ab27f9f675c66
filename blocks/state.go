package blocks

import (
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

func registerState(r *registry.Registry) {
	_ = r.RegisterBlock(sampleHoldDef(), registry.Options{})
	_ = r.RegisterBlock(eventToSignalMaskDef(), registry.Options{})
}

// sampleHoldDef is the one CapState block in the catalog: it reads the
// previous tick's held value via StateRead and writes lerp(prev, value,
// trigger) for the next tick, per spec.md §6.2. The state slot is keyed by
// (instanceId, 'sample') so recompiling the same patch keeps the same
// memory (I-IR3).
func sampleHoldDef() registry.Def {
	none := cty.Unit{Tag: cty.UnitNone}
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	return registry.Def{
		Type: "SampleHold", Label: "SampleHold", Category: "state",
		Form: registry.FormPrimitive, Capability: registry.CapState,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Payload: &registry.PayloadGenerics{
			AllowedPayloads: map[string][]cty.Payload{"value": numericGenerics, "out": numericGenerics},
			Semantics:       registry.SemanticsComponentwise,
		},
		Inputs: map[string]registry.InputDef{
			"value":   {Type: signalOf(none)},
			"trigger": {Type: cty.New(cty.Float, cty.Unit{Tag: cty.UnitNorm01}, scalar, cty.ContractNone), HasDefaultSource: true, DefaultSource: registry.DefaultConst, DefaultValue: 0},
			"initialValue": {
				Type: cty.New(cty.Float, none, scalar, cty.ContractNone),
				HasDefaultSource: true, DefaultSource: registry.DefaultConst, DefaultValue: 0,
			},
		},
		Outputs: map[string]registry.OutputDef{"out": {Type: signalOf(none)}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			value, trigger := in.ByID["value"], in.ByID["trigger"]
			outType := ctx.OutputTypes["out"]
			initial, _ := in.Config["initialValue"].(float64)

			stateSlot := ctx.Builder.AllocStateSlot(ir.InstanceID(ctx.InstanceID), "sample", initial, outType)
			prevExpr := ctx.Builder.StateRead(stateSlot, outType)
			nextExpr := ctx.Builder.Zip([]ir.ExprID{prevExpr, value.Expr, trigger.Expr}, ir.Opcode(ir.OpLerp), outType)
			ctx.Builder.StepStateWrite(stateSlot, nextExpr)

			instance, hasInstance := zipValueRefs(value)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(prevExpr, outType, instance, hasInstance)}}, nil
		},
	}
}

// eventToSignalMaskDef bridges a discrete event into a {0,1} continuous
// signal valid for the current tick only.
func eventToSignalMaskDef() registry.Def {
	none := cty.Unit{Tag: cty.UnitNone}
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	return registry.Def{
		Type: "EventToSignalMask", Label: "EventToSignalMask", Category: "state",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Inputs: map[string]registry.InputDef{
			"event": {Type: cty.New(cty.Bool, none, cty.Extent{Temporality: cty.Discrete, Cardinality: cty.One}, cty.ContractNone)},
		},
		Outputs: map[string]registry.OutputDef{
			"out": {Type: cty.New(cty.Float, none, scalar, cty.ContractNone)},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			event, _ := in.Config["event"].(string)
			outType := ctx.OutputTypes["out"]
			eventExpr := ctx.Builder.EventRead(event, outType)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": ir.NewSignalRef(eventExpr, outType)}}, nil
		},
	}
}
