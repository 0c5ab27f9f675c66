// Package lower implements the lowering driver (component C7): invoking
// each block's registry.LowerFunc in topological order, resolving its
// inputs from already-lowered outputs, and processing the Effects
// handshake (slot requests, forced evaluation, strided writes).
package lower

import (
	"fmt"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/diag"
	"github.com/sarchlab/patchc/frontend"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/patch"
	"github.com/sarchlab/patchc/registry"
	"github.com/sarchlab/patchc/typesolve"
)

// Result is the output of Run: the populated IR module, every block's
// resolved outputs (for the scheduler and debug indexer), and the slot the
// driver allocated for every lowered output port.
type Result struct {
	Module       *ir.Module
	BlockOutputs map[string]map[string]ir.ValueRef // blockId -> portName -> ref
	SlotByPort   map[string]ir.Slot                 // "blockId:portName" -> allocated slot
}

// Run invokes every block's lower() in Pass 3's topological order, per
// spec.md §4.7. A failing block's diagnostic aborts the run immediately —
// lowering failures never cascade into later blocks.
func Run(ctx *frontend.Context, sol *typesolve.Solution) (*Result, []diag.Diagnostic) {
	sink := &diag.Sink{}
	module := ir.NewModule()
	res := &Result{
		Module:       module,
		BlockOutputs: map[string]map[string]ir.ValueRef{},
		SlotByPort:   map[string]ir.Slot{},
	}
	addrs := patch.NewAddressRegistry(ctx.Patch)

	for _, blockID := range ctx.IdxBlock {
		b, ok := ctx.Patch.Block(blockID)
		if !ok {
			continue
		}
		def, ok := ctx.Registry.GetBlockDefinition(b.Type)
		if !ok {
			continue
		}

		builder := ir.NewBuilder(module, ctx.BlockIdx[blockID])
		inputTypes, outputTypes := portTypesFor(sol, b, def)

		in := registry.LowerInputs{
			ByID:       map[string]ir.ValueRef{},
			VarargByID: map[string][]ir.ValueRef{},
			Config:     b.Config,
		}
		if ok := resolveInputs(ctx, sol, res, addrs, b, def, builder, &in, sink); !ok {
			return res, sink.Items()
		}

		instanceID := sol.BlockInstance[b.ID]
		hasInstance := sol.HasInstance[b.ID]

		lctx := registry.LowerCtx{
			Builder:          builder,
			BlockIndex:       ctx.BlockIdx[blockID],
			BlockType:        b.Type,
			InstanceID:       b.ID,
			InputTypes:       inputTypes,
			OutputTypes:      outputTypes,
			InferredInstance: instanceID,
			HasInstance:      hasInstance,
			Topology:         ctx.Topology,
		}

		result, err := def.Lower(lctx, in)
		if err != nil {
			sink.Add(diag.At(diag.KindLowering, diag.CodeLoweringFailed,
				fmt.Sprintf("block %s (%s): %v", b.ID, b.Type, err),
				diag.Where{BlockID: b.ID, ConnectionIndex: -1}))
			return res, sink.Items()
		}

		res.BlockOutputs[b.ID] = result.OutputsByID
		applyEffects(res, builder, b.ID, result.Effects)
		allocateOutputSlots(res, builder, b.ID, def)
	}

	return res, sink.Items()
}

func portTypesFor(sol *typesolve.Solution, b *patch.Block, def registry.Def) (map[string]cty.Type, map[string]cty.Type) {
	in := map[string]cty.Type{}
	out := map[string]cty.Type{}
	for name := range def.Inputs {
		if t, ok := sol.PortType[patch.JoinAddress(b.ID, name)]; ok {
			in[name] = t
		}
	}
	for name := range def.Outputs {
		if t, ok := sol.PortType[patch.JoinAddress(b.ID, name)]; ok {
			out[name] = t
		}
	}
	return in, out
}

func lookupOutput(res *Result, blockID, portName string) (ir.ValueRef, bool) {
	m, ok := res.BlockOutputs[blockID]
	if !ok {
		return ir.ValueRef{}, false
	}
	ref, ok := m[portName]
	return ref, ok
}

// resolveInputs fills in.ByID/in.VarargByID from already-lowered upstream
// outputs, inserting a Broadcast expression when the type solver flagged
// the feeding edge for it.
func resolveInputs(ctx *frontend.Context, sol *typesolve.Solution, res *Result, addrs *patch.AddressRegistry, b *patch.Block, def registry.Def, builder *ir.Builder, in *registry.LowerInputs, sink *diag.Sink) bool {
	for name, inDef := range def.Inputs {
		if inDef.IsVararg {
			var refs []ir.ValueRef
			for _, conn := range b.VarargConnections(name) {
				srcBlock, srcPort, ok := addrs.Resolve(conn.SourceAddress)
				if !ok {
					continue
				}
				ref, ok := lookupOutput(res, srcBlock.ID, srcPort)
				if !ok {
					continue
				}
				refs = append(refs, ref)
			}
			in.VarargByID[name] = refs
			continue
		}

		edgeID, connected := b.ConnectedEdge(name)
		if !connected {
			continue // optional input left unconnected: lower() supplies its own default behavior
		}
		edge, ok := ctx.Patch.Edge(edgeID)
		if !ok {
			continue
		}
		ref, ok := lookupOutput(res, edge.SourceBlock, edge.SourcePort)
		if !ok {
			sink.Add(diag.At(diag.KindLowering, diag.CodeLoweringFailed,
				fmt.Sprintf("block %s: input %s references unlowered source %s:%s", b.ID, name, edge.SourceBlock, edge.SourcePort),
				diag.Where{BlockID: b.ID, PortID: name, ConnectionIndex: -1}))
			return false
		}

		if sol.BroadcastEdge[edge.ID] && ref.Kind == ir.RefSignal {
			fieldType := sol.PortType[patch.JoinAddress(b.ID, name)]
			bExpr := builder.Broadcast(ref.Expr, fieldType)
			ref = ir.NewFieldRef(bExpr, fieldType, ir.InstanceID(fieldType.Extent.InstanceID))
		}

		in.ByID[name] = ref
	}
	return true
}

// applyEffects processes the declarative handshake a block's lower() may
// return alongside its outputs: slot allocation, forced evaluation for
// sink blocks, and the purely-functional strided-write alternative.
func applyEffects(res *Result, builder *ir.Builder, blockID string, eff registry.Effects) {
	for _, req := range eff.SlotRequests {
		stride := strideOf(req.Type)
		slot := builder.AllocSlot(stride, req.Type)
		res.SlotByPort[patch.JoinAddress(blockID, req.PortID)] = slot
		if ref, ok := res.BlockOutputs[blockID][req.PortID]; ok {
			res.BlockOutputs[blockID][req.PortID] = ref.WithSlot(slot)
		}
	}
	for _, req := range eff.EvalRequests {
		exprType := builder.Module().Expr(req.Expr).Type
		builder.StepEvalSig(req.Expr, builder.AllocSlot(1, exprType))
	}
	for _, w := range eff.StridedWrites {
		builder.StepSlotWriteStrided(w.Slot, w.Components)
	}
}

// allocateOutputSlots assigns a value slot to every one of the block's
// declared output ports that does not already carry one (a block's own
// SlotRequests wins when present). Per spec.md §4.8, every lowered output
// port is a live slot whether or not a step happens to read or write it —
// debugidx/debugmap's address<->slot mapping depends on SlotByPort covering
// every output, not just the ones backed by a step.
func allocateOutputSlots(res *Result, builder *ir.Builder, blockID string, def registry.Def) {
	outputs := res.BlockOutputs[blockID]
	for portName := range def.Outputs {
		ref, ok := outputs[portName]
		if !ok || ref.HasSlot {
			continue
		}
		stride := ref.Stride
		if stride <= 0 {
			stride = 1
		}
		slot := builder.AllocSlot(stride, ref.Type)
		outputs[portName] = ref.WithSlot(slot)
		res.SlotByPort[patch.JoinAddress(blockID, portName)] = slot
	}
}

func strideOf(t cty.Type) int {
	p, ok := cty.ResolvedPayload(t)
	if !ok {
		return 1
	}
	return cty.StrideOf(p)
}
