package blocks

import (
	"math"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

// adapterDef builds a single in/out unit-conversion block, the shape Pass 2
// splices into a mismatched edge (it always wires "in" -> "out"). The
// conversion itself is a fixed scale factor (no offset) baked in as a Const
// multiplied through a generic opcode, since these are proportional unit
// changes rather than named runtime kernels.
func adapterDef(blockType string, from, to cty.Unit, scale float64) registry.Def {
	scalar := cty.Extent{Temporality: cty.Continuous, Cardinality: cty.One}
	return registry.Def{
		Type: blockType, Label: blockType, Category: "adapter",
		Form: registry.FormPrimitive, Capability: registry.CapPure,
		Cardinality: registry.Cardinality{
			Mode: registry.CardinalityPreserve, LaneCoupling: registry.LaneLocal,
			BroadcastPolicy: registry.AllowZipSig,
		},
		Inputs:  map[string]registry.InputDef{"in": {Type: cty.New(cty.Float, from, scalar, cty.ContractNone)}},
		Outputs: map[string]registry.OutputDef{"out": {Type: cty.New(cty.Float, to, scalar, cty.ContractNone)}},
		Lower: func(ctx registry.LowerCtx, in registry.LowerInputs) (registry.LowerResult, error) {
			src := in.ByID["in"]
			outType := ctx.OutputTypes["out"]
			factor := ctx.Builder.Const(scale, cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone}))
			expr := ctx.Builder.Zip([]ir.ExprID{src.Expr, factor}, ir.Opcode(ir.OpMul), outType)
			instance, hasInstance := zipValueRefs(src)
			return registry.LowerResult{OutputsByID: map[string]ir.ValueRef{"out": refFor(expr, outType, instance, hasInstance)}}, nil
		},
	}
}

func registerUnits(r *registry.Registry) *frontendAdapters {
	radians := cty.Unit{Tag: cty.UnitAngle, Sub: "radians"}
	turns := cty.Unit{Tag: cty.UnitAngle, Sub: "turns"}
	degrees := cty.Unit{Tag: cty.UnitAngle, Sub: "degrees"}
	ms := cty.Unit{Tag: cty.UnitTime, Sub: "ms"}
	seconds := cty.Unit{Tag: cty.UnitTime, Sub: "seconds"}

	entries := []struct {
		blockType  string
		from, to   cty.Unit
		scale      float64
	}{
		{"RadiansToTurns", radians, turns, 1 / (2 * math.Pi)},
		{"TurnsToRadians", turns, radians, 2 * math.Pi},
		{"DegreesToRadians", degrees, radians, math.Pi / 180},
		{"RadiansToDegrees", radians, degrees, 180 / math.Pi},
		{"MsToSeconds", ms, seconds, 1.0 / 1000},
		{"SecondsToMs", seconds, ms, 1000},
	}

	adapters := &frontendAdapters{}
	for _, e := range entries {
		_ = r.RegisterBlock(adapterDef(e.blockType, e.from, e.to, e.scale), registry.Options{})
		adapters.entries = append(adapters.entries, adapterEntry{e.from, e.to, e.blockType})
	}
	return adapters
}

// frontendAdapters carries the (from, to, blockType) triples registerUnits
// built, for the caller to feed into a frontend.AdapterRegistry without this
// package importing frontend (blocks stays a leaf package in the import
// graph).
type frontendAdapters struct {
	entries []adapterEntry
}

type adapterEntry struct {
	From, To  cty.Unit
	BlockType string
}

// Entries exposes the registered adapter triples.
func (a *frontendAdapters) Entries() []adapterEntry { return a.entries }
