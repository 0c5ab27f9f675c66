// Package debugidx builds the debug index (component C9): the static
// block/port/slot/step cross-reference a compiled program carries so the
// debug mapping service (component C10) can answer "what does this slot
// mean" without re-running the compiler.
package debugidx

import (
	"sort"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/frontend"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/lower"
	"github.com/sarchlab/patchc/patch"
)

// PortEntry is one block port, annotated with why it ended up wired the way
// it did (a real user connection, a unit adapter Pass 2 spliced in, or a
// default source Pass 1 inserted).
type PortEntry struct {
	BlockID  string
	PortName string
	Role     string
}

// Index is the static cross-reference built once per compile.
type Index struct {
	BlockMap    map[string]string   // blockId -> block type
	Ports       []PortEntry
	SlotToPort  map[ir.Slot]string  // slot -> "blockId:portName"
	SlotToBlock map[ir.Slot]string  // slot -> blockId
	StepToBlock []string            // stepIndex -> blockId
	PortType    map[string]cty.Type // "blockId:portName" -> resolved output type, for debugmap's Track gating
}

// Build assembles the index from a completed frontend context and lowering
// result.
func Build(ctx *frontend.Context, lowered *lower.Result) *Index {
	idx := &Index{
		BlockMap:    map[string]string{},
		SlotToPort:  map[ir.Slot]string{},
		SlotToBlock: map[ir.Slot]string{},
		PortType:    map[string]cty.Type{},
	}

	for _, b := range ctx.Patch.Blocks() {
		idx.BlockMap[b.ID] = b.Type
		role := string(ctx.BlockRole[b.ID])
		if role == "" {
			role = string(frontend.RoleUserWire)
		}
		def, ok := ctx.Registry.GetBlockDefinition(b.Type)
		if !ok {
			continue
		}
		for name := range def.Inputs {
			idx.Ports = append(idx.Ports, PortEntry{BlockID: b.ID, PortName: name, Role: role})
		}
		for name := range def.Outputs {
			idx.Ports = append(idx.Ports, PortEntry{BlockID: b.ID, PortName: name, Role: role})
		}
	}
	sort.Slice(idx.Ports, func(i, j int) bool {
		if idx.Ports[i].BlockID != idx.Ports[j].BlockID {
			return idx.Ports[i].BlockID < idx.Ports[j].BlockID
		}
		return idx.Ports[i].PortName < idx.Ports[j].PortName
	})

	for addr, slot := range lowered.SlotByPort {
		idx.SlotToPort[slot] = addr
		if blockID, _, ok := patch.SplitAddress(addr); ok {
			idx.SlotToBlock[slot] = blockID
		}
	}

	for blockID, outputs := range lowered.BlockOutputs {
		for portName, ref := range outputs {
			idx.PortType[patch.JoinAddress(blockID, portName)] = ref.Type
		}
	}

	for _, step := range lowered.Module.Steps() {
		blockID := ""
		if step.BlockIndex >= 0 && step.BlockIndex < len(ctx.IdxBlock) {
			blockID = ctx.IdxBlock[step.BlockIndex]
		}
		idx.StepToBlock = append(idx.StepToBlock, blockID)
	}

	return idx
}
