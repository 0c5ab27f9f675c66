package blocks

import (
	"fmt"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
	"github.com/sarchlab/patchc/topology"
)

func registerShape(r *registry.Registry) {
	_ = r.RegisterBlock(proceduralPolygonDef(), registry.Options{})
	_ = r.RegisterBlock(proceduralStarDef(), registry.Options{})
}

// proceduralPolygonDef registers (once per distinct sides count) a closed
// polygon topology and emits its per-vertex vec2 control points as a field
// over a fresh `control` domain instance.
func proceduralPolygonDef() registry.Def {
	space := cty.Unit{Tag: cty.UnitSpace}
	return registry.Def{
		Type: "ProceduralPolygon", Label: "ProceduralPolygon", Category: "shape",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityFieldOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Outputs: map[string]registry.OutputDef{
			"shape":   {Type: cty.New(cty.Shape, cty.Unit{Tag: cty.UnitNone}, cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}, cty.ContractNone)},
			"control": {Type: cty.Field(cty.Vec2, space, "", "")},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			sides, ok := in.Config["sides"].(float64)
			if !ok || sides < 3 {
				sides = 3
			}
			n := int(sides)
			topoID := fmt.Sprintf("polygon-%d", n)
			verbs := make([]topology.Verb, n+1)
			points := make([]int, n+1)
			verbs[0], points[0] = topology.VerbMove, 1
			for i := 1; i < n; i++ {
				verbs[i], points[i] = topology.VerbLine, 1
			}
			verbs[n], points[n] = topology.VerbClose, 0
			ctx.Topology.Register(topology.PathTopology{
				ID: topoID, Verbs: verbs, PointsPerVerb: points, TotalControlPoints: n,
			})

			radiusX, _ := in.Config["radiusX"].(float64)
			radiusY, _ := in.Config["radiusY"].(float64)
			controlInstance := ir.InstanceID(ctx.InstanceID)
			ctx.Builder.CreateInstance(controlInstance, ir.DomainControl, n)

			scalar := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})
			rxExpr := ctx.Builder.Const(radiusX, scalar)
			ryExpr := ctx.Builder.Const(radiusY, scalar)
			controlType := ctx.OutputTypes["control"]
			controlExpr := ctx.Builder.Zip([]ir.ExprID{rxExpr, ryExpr}, ir.FieldKernel("polygonVertex", 2), controlType)
			ctx.Builder.SetInstanceShapeField(controlInstance, controlExpr)

			shapeType := ctx.OutputTypes["shape"]
			shapeExpr := ctx.Builder.ShapeRef(topoID, nil, controlExpr, true, shapeType)

			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{
				"shape":   ir.NewSignalRef(shapeExpr, shapeType),
				"control": ir.NewFieldRef(controlExpr, controlType, controlInstance),
			}}, nil
		},
	}
}

// proceduralStarDef registers an alternating outer/inner vertex star
// topology, per spec.md §6.2.
func proceduralStarDef() registry.Def {
	space := cty.Unit{Tag: cty.UnitSpace}
	return registry.Def{
		Type: "ProceduralStar", Label: "ProceduralStar", Category: "shape",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityFieldOnly, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.DisallowSignalMix,
		},
		Outputs: map[string]registry.OutputDef{
			"shape":   {Type: cty.New(cty.Shape, cty.Unit{Tag: cty.UnitNone}, cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}, cty.ContractNone)},
			"control": {Type: cty.Field(cty.Vec2, space, "", "")},
		},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			points, ok := in.Config["points"].(float64)
			if !ok || points < 3 {
				points = 3
			}
			n := int(points) * 2
			topoID := fmt.Sprintf("star-%d", int(points))
			verbs := make([]topology.Verb, n+1)
			vpp := make([]int, n+1)
			verbs[0], vpp[0] = topology.VerbMove, 1
			for i := 1; i < n; i++ {
				verbs[i], vpp[i] = topology.VerbLine, 1
			}
			verbs[n], vpp[n] = topology.VerbClose, 0
			ctx.Topology.Register(topology.PathTopology{
				ID: topoID, Verbs: verbs, PointsPerVerb: vpp, TotalControlPoints: n,
			})

			outerRadius, _ := in.Config["outerRadius"].(float64)
			innerRadius, _ := in.Config["innerRadius"].(float64)
			controlInstance := ir.InstanceID(ctx.InstanceID)
			ctx.Builder.CreateInstance(controlInstance, ir.DomainControl, n)

			scalar := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})
			outerExpr := ctx.Builder.Const(outerRadius, scalar)
			innerExpr := ctx.Builder.Const(innerRadius, scalar)
			controlType := ctx.OutputTypes["control"]
			controlExpr := ctx.Builder.Zip([]ir.ExprID{outerExpr, innerExpr}, ir.FieldKernel("starVertex", 2), controlType)
			ctx.Builder.SetInstanceShapeField(controlInstance, controlExpr)

			shapeType := ctx.OutputTypes["shape"]
			shapeExpr := ctx.Builder.ShapeRef(topoID, nil, controlExpr, true, shapeType)

			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{
				"shape":   ir.NewSignalRef(shapeExpr, shapeType),
				"control": ir.NewFieldRef(controlExpr, controlType, controlInstance),
			}}, nil
		},
	}
}
