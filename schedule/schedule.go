// Package schedule implements the slot allocator and scheduler (component
// C8): slot metadata derivation, step ordering with a state-commit phase
// partition, and assembly of the external CompiledProgram contract.
package schedule

import (
	"sort"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/debugidx"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/lower"
	"github.com/sarchlab/patchc/topology"
)

// StorageKind is the runtime-facing storage width for a slot.
type StorageKind string

const (
	StorageF32 StorageKind = "f32"
	StorageF64 StorageKind = "f64"
	StorageI32 StorageKind = "i32"
)

// SlotMeta describes one allocated slot for the runtime.
type SlotMeta struct {
	Slot    ir.Slot
	Type    cty.Type
	Storage StorageKind
	Offset  int
}

// CompiledProgram is the external contract (spec.md §6.4): everything the
// tick runtime needs to execute a compiled patch, and nothing it needs to
// interpret beyond that.
type CompiledProgram struct {
	SlotMeta      []SlotMeta
	Steps         []ir.Step
	StateSlots    []ir.StateSlot
	RenderGlobals []ir.RenderGlobal
	Instances     []ir.InstanceDecl
	Topologies    []topology.PathTopology
	DebugIndex    *debugidx.Index
}

// Build assembles a CompiledProgram from a lowered module, enumerating slot
// metadata from every slot the driver allocated and ordering steps into
// their two scheduling phases.
func Build(lowered *lower.Result, idx *debugidx.Index, topologies *topology.Registry) *CompiledProgram {
	module := lowered.Module
	return &CompiledProgram{
		SlotMeta:      buildSlotMeta(module),
		Steps:         orderSteps(module),
		StateSlots:    module.StateSlots(),
		RenderGlobals: module.RenderGlobals(),
		Instances:     module.Instances(),
		Topologies:    topologies.All(),
		DebugIndex:    idx,
	}
}

// buildSlotMeta enumerates every slot the lowering driver allocated,
// independent of whether any step happens to read or write it (spec.md
// §4.8): an Empty Expression block's lone output, or an ExternalVec2
// source's stride-2 field, is a live slot with no backing step at all.
func buildSlotMeta(m *ir.Module) []SlotMeta {
	var metas []SlotMeta
	for _, entry := range m.SlotTypes() {
		for i := 0; i < entry.Stride; i++ {
			slot := entry.Base + ir.Slot(i)
			metas = append(metas, SlotMeta{Slot: slot, Type: entry.Type, Storage: storageOf(entry.Type), Offset: int(slot)})
		}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Slot < metas[j].Slot })
	return metas
}

func storageOf(t cty.Type) StorageKind {
	p, ok := cty.ResolvedPayload(t)
	if !ok {
		return StorageF32
	}
	switch p {
	case cty.Int:
		return StorageI32
	case cty.Bool:
		return StorageI32
	default:
		return StorageF32
	}
}

// orderSteps partitions emitted steps into two phases — ordinary
// evaluation, then state commits — so a StateWrite always lands after
// every read of that slot's previous-tick value has already happened this
// tick (I-IR3: a state output is available to readers only on the
// following tick). Within a phase, steps keep the order lowering emitted
// them in (already a valid topological order, since the driver lowers
// blocks in Pass 3's order), ties broken by BlockIndex for determinism
// across runs with the same patch.
func orderSteps(m *ir.Module) []ir.Step {
	steps := append([]ir.Step{}, m.Steps()...)
	sort.SliceStable(steps, func(i, j int) bool {
		pi, pj := phaseOf(steps[i]), phaseOf(steps[j])
		if pi != pj {
			return pi < pj
		}
		return steps[i].BlockIndex < steps[j].BlockIndex
	})
	return steps
}

func phaseOf(s ir.Step) int {
	if s.Kind == ir.StepStateWrite {
		return 1
	}
	return 0
}
