package blocks

import (
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

func registerRender(r *registry.Registry) {
	_ = r.RegisterBlock(cameraDef(), registry.Options{})
	_ = r.RegisterBlock(renderInstances2DDef(), registry.Options{})
}

// cameraDef emits a single render global carrying its config forward
// opaquely (spec.md §6.2). Each Camera block adds its own render global;
// neither this block nor the scheduler checks for a second Camera in the
// same patch, so duplicates all appear in the program's render globals.
func cameraDef() registry.Def {
	none := cty.Unit{Tag: cty.UnitNone}
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	return registry.Def{
		Type: "Camera", Label: "Camera", Category: "render",
		Form: registry.FormPrimitive, Capability: registry.CapRender,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Outputs: map[string]registry.OutputDef{
			"out": {Type: cty.New(cty.CameraProjection, none, scalar, cty.ContractNone)},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			ctx.Builder.AddRenderGlobal(ir.RenderGlobal{
				Kind: ir.RenderGlobalCamera, BlockID: ctx.InstanceID, Config: in.Config,
			})
			outType := ctx.OutputTypes["out"]
			expr := ctx.Builder.Intrinsic("camera", outType)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": ir.NewSignalRef(expr, outType)}}, nil
		},
	}
}

// renderInstances2DDef is a sink block: its shape comes from the position
// input's inferred field domain, never from an explicit wire, per
// spec.md §6.2 ("shape is looked up from the position's inferred instance,
// not wired").
func renderInstances2DDef() registry.Def {
	space := cty.Unit{Tag: cty.UnitSpace}
	color := cty.Unit{Tag: cty.UnitColor}
	none := cty.Unit{Tag: cty.UnitNone}
	return registry.Def{
		Type: "RenderInstances2D", Label: "RenderInstances2D", Category: "render",
		Form: registry.FormPrimitive, Capability: registry.CapRender,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityFieldOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Inputs: map[string]registry.InputDef{
			"pos":   {Type: cty.Field(cty.Vec2, space, "", "")},
			"color": {Type: cty.Field(cty.Color, color, "", "")},
			"scale": {
				Type: cty.Field(cty.Float, none, "", ""),
				HasDefaultSource: true, DefaultSource: registry.DefaultConst, DefaultValue: 1,
			},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			pos := in.ByID["pos"]
			instance := ctx.InferredInstance
			if pos.IsField() {
				instance = pos.InstanceID
			}
			ctx.Builder.AddRenderGlobal(ir.RenderGlobal{
				Kind: ir.RenderGlobalInstances, BlockID: ctx.InstanceID, Config: in.Config, InstanceID: instance,
			})
			return registry.LowerResult{
				Effects: registry.Effects{EvalRequests: []registry.EvalRequest{
					{Expr: pos.Expr}, {Expr: in.ByID["color"].Expr}, {Expr: in.ByID["scale"].Expr},
				}},
			}, nil
		},
	}
}
