// Package typesolve implements the type solver (component C6): per-block
// instantiation of payload-generics groups and cardinality-preserve groups,
// edge-worklist unification across the patch, the broadcast rule, and the
// final concreteness check before lowering.
package typesolve

import (
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/diag"
	"github.com/sarchlab/patchc/frontend"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/patch"
	"github.com/sarchlab/patchc/registry"
)

// Solution is the output of Solve: every port's resolved canonical type,
// keyed by its "blockId:portName" address, which edges need a Broadcast
// spliced in at lowering time, and which field domain each many-cardinality
// block resolved to.
type Solution struct {
	PortType      map[string]cty.Type
	BroadcastEdge map[string]bool
	BlockInstance map[string]ir.InstanceID
	HasInstance   map[string]bool
}

func newSolution() *Solution {
	return &Solution{
		PortType:      map[string]cty.Type{},
		BroadcastEdge: map[string]bool{},
		BlockInstance: map[string]ir.InstanceID{},
		HasInstance:   map[string]bool{},
	}
}

// Solve runs the solver over a frontend context that has already completed
// Pass1-4 cleanly. It never mutates ctx.Patch; it only reads it.
func Solve(ctx *frontend.Context) (*Solution, []diag.Diagnostic) {
	sink := &diag.Sink{}
	sol := newSolution()

	for _, b := range ctx.Patch.Blocks() {
		def, ok := ctx.Registry.GetBlockDefinition(b.Type)
		if !ok {
			continue
		}
		instantiateBlock(sol, b, def)
	}

	for _, e := range ctx.Patch.Edges() {
		propagateEdge(ctx, sol, sink, e)
	}

	propagateVarargs(ctx, sol, sink)

	for _, b := range ctx.Patch.Blocks() {
		def, ok := ctx.Registry.GetBlockDefinition(b.Type)
		if !ok {
			continue
		}
		resolveInstance(sol, b, def)
		checkConcreteness(sol, sink, b, def)
	}

	return sol, sink.Items()
}

// instantiateBlock stamps one payload variable across every port in a
// block's payload-generics group (if any) and one cardinality variable
// across every port of a CardinalityPreserve block, then records every
// declared port's (possibly still-generic) type.
func instantiateBlock(sol *Solution, b *patch.Block, def registry.Def) {
	var payloadVarID int64
	if def.Payload != nil && len(def.Payload.AllowedPayloads) > 0 {
		payloadVarID = cty.NewPayloadVarID()
		if def.ConfigPayload != nil {
			if p, ok := def.ConfigPayload(b.Config); ok {
				marker := cty.WithPayloadVarID(payloadVarID, cty.Unit{}, cty.Extent{}, cty.ContractNone)
				concrete := cty.New(p, cty.Unit{}, cty.Extent{}, cty.ContractNone)
				cty.UnifyPayload(marker, concrete)
			}
		}
	}

	var cardVarID int64
	if def.Cardinality.Mode == registry.CardinalityPreserve {
		cardVarID = cty.NewCardinalityVarID()
	}

	for name, in := range def.Inputs {
		sol.PortType[patch.JoinAddress(b.ID, name)] = portType(def, b.ID, name, in.Type, payloadVarID, cardVarID)
	}
	for name, out := range def.Outputs {
		sol.PortType[patch.JoinAddress(b.ID, name)] = portType(def, b.ID, name, out.Type, payloadVarID, cardVarID)
	}
}

func portType(def registry.Def, blockID, portName string, declared cty.Type, payloadVarID, cardVarID int64) cty.Type {
	t := declared
	if def.Payload != nil && payloadVarID != 0 {
		if _, generic := def.Payload.AllowedPayloads[portName]; generic {
			t = cty.WithPayloadVarID(payloadVarID, t.Unit, t.Extent, t.Contract)
		}
	}
	if cardVarID != 0 {
		t.Extent = cty.ExtentWithCardinalityVarID(cardVarID, t.Extent.Temporality)
	}
	// A Many-cardinality port declared with no instance id at registration
	// time marks a block that originates a brand new field domain (e.g.
	// Array); since Def is one process-wide value shared by every instance
	// of that block type, the domain identity is stamped here, per block
	// instance, from the block's own patch id.
	if t.Extent.Cardinality == cty.Many && t.Extent.InstanceID == "" {
		t.Extent.InstanceID = blockID
		if t.Extent.DomainTypeID == "" {
			t.Extent.DomainTypeID = blockID
		}
	}
	return t
}

// propagateEdge unifies a single edge's source/dest types, applying the
// broadcast rule (spec.md §4.1/§4.6) before falling back to full
// unification.
func propagateEdge(ctx *frontend.Context, sol *Solution, sink *diag.Sink, e *patch.Edge) {
	srcAddr := patch.JoinAddress(e.SourceBlock, e.SourcePort)
	dstAddr := patch.JoinAddress(e.DestBlock, e.DestPort)
	srcType, ok := sol.PortType[srcAddr]
	if !ok {
		return
	}
	dstType, ok := sol.PortType[dstAddr]
	if !ok {
		return
	}

	dstBlock, ok := ctx.Patch.Block(e.DestBlock)
	if !ok {
		return
	}
	dstDef, ok := ctx.Registry.GetBlockDefinition(dstBlock.Type)
	if !ok {
		return
	}

	if srcType.Extent.Cardinality == cty.One && dstType.Extent.Cardinality == cty.Many {
		if dstDef.Cardinality.BroadcastPolicy != registry.AllowZipSig {
			sink.Addf(diag.KindType, diag.CodeCardinalityMismatch,
				diag.Where{BlockID: e.DestBlock, PortID: e.DestPort, ConnectionIndex: -1},
				"edge %s: signal %s:%s cannot feed field input %s:%s (block does not allow zipSig)",
				e.ID, e.SourceBlock, e.SourcePort, e.DestBlock, e.DestPort)
			return
		}
		if _, ok := cty.UnifyPayload(srcType, dstType); !ok {
			sink.Addf(diag.KindType, diag.CodeTypeMismatch,
				diag.Where{BlockID: e.DestBlock, PortID: e.DestPort, ConnectionIndex: -1},
				"edge %s: payload mismatch broadcasting %s:%s onto %s:%s",
				e.ID, e.SourceBlock, e.SourcePort, e.DestBlock, e.DestPort)
			return
		}
		if _, ok := cty.UnifyUnit(srcType.Unit, dstType.Unit); !ok {
			sink.Addf(diag.KindType, diag.CodeUnitMismatch,
				diag.Where{BlockID: e.DestBlock, PortID: e.DestPort, ConnectionIndex: -1},
				"edge %s: unit mismatch broadcasting %s:%s onto %s:%s",
				e.ID, e.SourceBlock, e.SourcePort, e.DestBlock, e.DestPort)
			return
		}
		sol.BroadcastEdge[e.ID] = true
		return
	}

	unified, ok := cty.Unify(srcType, dstType)
	if !ok {
		code, msg := classifyMismatch(srcType, dstType)
		sink.Addf(diag.KindType, code,
			diag.Where{BlockID: e.DestBlock, PortID: e.DestPort, ConnectionIndex: -1},
			"edge %s: %s (%s:%s -> %s:%s)", e.ID, msg, e.SourceBlock, e.SourcePort, e.DestBlock, e.DestPort)
		return
	}
	sol.PortType[srcAddr] = unified
	sol.PortType[dstAddr] = unified
}

func classifyMismatch(a, b cty.Type) (string, string) {
	if pa, oka := cty.ResolvedPayload(a); oka {
		if pb, okb := cty.ResolvedPayload(b); okb && pa != pb {
			return diag.CodeTypeMismatch, "payload mismatch"
		}
	}
	if a.Unit.Tag != cty.UnitNone && b.Unit.Tag != cty.UnitNone && a.Unit.Tag != b.Unit.Tag {
		return diag.CodeUnitMismatch, "unit mismatch"
	}
	if a.Extent.Cardinality == cty.Many && b.Extent.Cardinality == cty.Many && !cty.SameDomain(a.Extent, b.Extent) {
		return diag.CodeDomainMismatch, "cross-domain field zip"
	}
	return diag.CodeCardinalityMismatch, "cardinality mismatch"
}

// propagateVarargs unifies each vararg connection's source payload against
// the port's payload-generics group, if any (e.g. a varargs sum block
// generic over float/int). Cardinality/payload hard constraints were
// already checked by frontend Pass 4; this only feeds the type solver's
// variable resolution.
func propagateVarargs(ctx *frontend.Context, sol *Solution, sink *diag.Sink) {
	addrs := patch.NewAddressRegistry(ctx.Patch)
	for _, b := range ctx.Patch.Blocks() {
		def, ok := ctx.Registry.GetBlockDefinition(b.Type)
		if !ok {
			continue
		}
		for portName, in := range def.Inputs {
			if !in.IsVararg {
				continue
			}
			dstAddr := patch.JoinAddress(b.ID, portName)
			dstType, hasDst := sol.PortType[dstAddr]
			if !hasDst || !cty.IsPayloadVar(dstType) {
				continue
			}
			for i, conn := range b.VarargConnections(portName) {
				srcBlock, srcPort, ok := addrs.Resolve(conn.SourceAddress)
				if !ok {
					continue
				}
				srcType, ok := sol.PortType[patch.JoinAddress(srcBlock.ID, srcPort)]
				if !ok {
					continue
				}
				if _, ok := cty.UnifyPayload(dstType, srcType); !ok {
					sink.Addf(diag.KindType, diag.CodeTypeMismatch,
						diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: i},
						"vararg %s:%s[%d]: payload does not unify with the port's generics group", b.ID, portName, i)
				}
			}
		}
	}
}

// resolveInstance records which field domain (InstanceID) a block resolved
// to, by scanning its ports for the first many-cardinality, concretely
// resolved extent. Signal-only and event blocks leave HasInstance false.
func resolveInstance(sol *Solution, b *patch.Block, def registry.Def) {
	for name := range def.Outputs {
		if tryInstance(sol, b, name) {
			return
		}
	}
	for name := range def.Inputs {
		if tryInstance(sol, b, name) {
			return
		}
	}
}

func tryInstance(sol *Solution, b *patch.Block, portName string) bool {
	t, ok := sol.PortType[patch.JoinAddress(b.ID, portName)]
	if !ok {
		return false
	}
	if t.Extent.Cardinality == cty.Many && t.Extent.InstanceID != "" {
		sol.BlockInstance[b.ID] = ir.InstanceID(t.Extent.InstanceID)
		sol.HasInstance[b.ID] = true
		return true
	}
	return false
}

// checkConcreteness fails compilation (via sink) for any port whose payload
// is still an unresolved inference variable, and for any payload-generic
// port whose resolved payload falls outside the block's allowed set.
func checkConcreteness(sol *Solution, sink *diag.Sink, b *patch.Block, def registry.Def) {
	check := func(portName string) {
		addr := patch.JoinAddress(b.ID, portName)
		t, ok := sol.PortType[addr]
		if !ok {
			return
		}
		p, ok := cty.ResolvedPayload(t)
		if !ok {
			sink.Addf(diag.KindType, diag.CodeTypeMismatch,
				diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: -1},
				"port %s:%s could not resolve a concrete payload", b.ID, portName)
			return
		}
		if def.Payload == nil {
			return
		}
		allowed, generic := def.Payload.AllowedPayloads[portName]
		if !generic {
			return
		}
		for _, a := range allowed {
			if a == p {
				return
			}
		}
		sink.Addf(diag.KindType, diag.CodeTypeMismatch,
			diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: -1},
			"port %s:%s resolved payload %v is not among the block's allowed payloads", b.ID, portName, p)
	}
	for name := range def.Inputs {
		check(name)
	}
	for name := range def.Outputs {
		check(name)
	}
}
