package schedule_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/debugidx"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/lower"
	"github.com/sarchlab/patchc/schedule"
	"github.com/sarchlab/patchc/topology"
)

var _ = Describe("Build", func() {
	It("orders state commits after every ordinary step regardless of emission order", func() {
		m := ir.NewModule()
		b0 := ir.NewBuilder(m, 0)
		b1 := ir.NewBuilder(m, 1)

		floatType := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})
		stateSlot := b1.AllocStateSlot("inst", "sample", 0, floatType)
		prev := b1.StateRead(stateSlot, floatType)
		b1.StepStateWrite(stateSlot, prev) // emitted first, but belongs to the later phase

		constExpr := b0.Const(1, floatType)
		slot := b0.AllocSlot(1, floatType)
		b0.StepEvalSig(constExpr, slot)

		topologies := topology.New()
		idx := &debugidx.Index{}
		program := schedule.Build(&lower.Result{Module: m}, idx, topologies)

		Expect(program.Steps).To(HaveLen(2))
		Expect(program.Steps[0].Kind).To(Equal(ir.StepEvalExpr))
		Expect(program.Steps[1].Kind).To(Equal(ir.StepStateWrite))
	})

	It("derives one slot-meta entry per slot, sorted, with int payloads stored as i32", func() {
		m := ir.NewModule()
		b := ir.NewBuilder(m, 0)

		floatType := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})
		intType := cty.Signal(cty.Int, cty.Unit{Tag: cty.UnitNone})

		fExpr := b.Const(2, floatType)
		fSlot := b.AllocSlot(1, floatType)
		b.StepEvalSig(fExpr, fSlot)

		iExpr := b.Const(3, intType)
		iSlot := b.AllocSlot(1, intType)
		b.StepEvalSig(iExpr, iSlot)

		program := schedule.Build(&lower.Result{Module: m}, &debugidx.Index{}, topology.New())

		Expect(program.SlotMeta).To(HaveLen(2))
		Expect(program.SlotMeta[0].Slot).To(Equal(fSlot))
		Expect(program.SlotMeta[0].Storage).To(Equal(schedule.StorageF32))
		Expect(program.SlotMeta[1].Slot).To(Equal(iSlot))
		Expect(program.SlotMeta[1].Storage).To(Equal(schedule.StorageI32))
	})

	It("carries every registered topology through to the compiled program", func() {
		reg := topology.New()
		pt := topology.PathTopology{ID: "triangle", Verbs: []topology.Verb{topology.VerbMove, topology.VerbLine, topology.VerbLine, topology.VerbClose}, TotalControlPoints: 3}
		reg.Register(pt)

		program := schedule.Build(&lower.Result{Module: ir.NewModule()}, &debugidx.Index{}, reg)
		Expect(program.Topologies).To(ConsistOf(pt))
	})
})
