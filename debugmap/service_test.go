package debugmap

import (
	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/patchc/debugidx"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/patch"
)

func samplePatch() *patch.Patch {
	p := patch.New()
	_ = p.AddBlock(patch.Block{ID: "src", Type: "Const"})
	_ = p.AddBlock(patch.Block{ID: "dst", Type: "Camera"})
	_ = p.AddEdge(patch.Edge{ID: "e1", SourceBlock: "src", SourcePort: "out", DestBlock: "dst", DestPort: "in"})
	return p
}

var _ = Describe("Service", func() {
	var svc *Service

	BeforeEach(func() {
		svc = NewService()
	})

	Describe("Rebuild", func() {
		It("maps every edge whose source output resolved to a slot", func() {
			p := samplePatch()
			idx := &debugidx.Index{
				BlockMap:   map[string]string{"src": "Const", "dst": "Camera"},
				SlotToPort: map[ir.Slot]string{5: "src:out"},
			}
			svc.Rebuild(p, idx)

			slot, ok := svc.SlotForEdge("e1")
			Expect(ok).To(BeTrue())
			Expect(slot).To(Equal(ir.Slot(5)))
		})

		It("records an unmapped edge when the destination block was eliminated", func() {
			p := samplePatch()
			idx := &debugidx.Index{
				BlockMap:   map[string]string{"src": "Const"},
				SlotToPort: map[ir.Slot]string{},
			}
			svc.Rebuild(p, idx)

			_, ok := svc.SlotForEdge("e1")
			Expect(ok).To(BeFalse())
			Expect(svc.UnmappedEdges()).To(ConsistOf(UnmappedEdge{EdgeID: "e1", Reason: ReasonBlockEliminated}))
		})

		It("records an unmapped edge when no debug index is available", func() {
			p := samplePatch()
			svc.Rebuild(p, nil)
			Expect(svc.UnmappedEdges()).To(ConsistOf(UnmappedEdge{EdgeID: "e1", Reason: ReasonDebugIndexMissing}))
		})

		It("retains tracked history, paused, for an address whose slot disappears", func() {
			p := samplePatch()
			idx := &debugidx.Index{
				BlockMap:   map[string]string{"src": "Const", "dst": "Camera"},
				SlotToPort: map[ir.Slot]string{5: "src:out"},
			}
			svc.Rebuild(p, idx)
			svc.Track("src:out", false)

			svc.Rebuild(p, &debugidx.Index{BlockMap: map[string]string{"src": "Const"}, SlotToPort: map[ir.Slot]string{}})

			samples, ok := svc.History("src:out")
			Expect(ok).To(BeTrue())
			Expect(samples).To(BeEmpty())

			// Paused: a write to the address's old slot no longer reaches it,
			// since portMap no longer resolves "src:out" to any slot.
			svc.OnSlotWrite(5, 42)
			samples, ok = svc.History("src:out")
			Expect(ok).To(BeTrue())
			Expect(samples).To(BeEmpty())
		})
	})

	Describe("Track/Untrack", func() {
		It("evicts the oldest unpinned address once at capacity", func() {
			for i := 0; i < maxTrackedKeys; i++ {
				svc.Track(string(rune('a'+i)), false)
			}
			svc.Track("overflow", false)

			_, ok := svc.History("a")
			Expect(ok).To(BeFalse())
			_, ok = svc.History("overflow")
			Expect(ok).To(BeTrue())
		})

		It("skips pinned addresses when evicting", func() {
			svc.Track("pinned", true)
			for i := 1; i < maxTrackedKeys; i++ {
				svc.Track(string(rune('a'+i)), false)
			}
			svc.Track("overflow", false)

			_, ok := svc.History("pinned")
			Expect(ok).To(BeTrue())
		})
	})

	Describe("OnSlotWrite", func() {
		It("records a sample only for addresses tracked at that slot", func() {
			p := samplePatch()
			idx := &debugidx.Index{
				BlockMap:   map[string]string{"src": "Const", "dst": "Camera"},
				SlotToPort: map[ir.Slot]string{5: "src:out"},
			}
			svc.Rebuild(p, idx)
			svc.Track("src:out", false)

			svc.OnSlotWrite(5, 1.5)
			svc.OnSlotWrite(9, 9.9)

			samples, ok := svc.History("src:out")
			Expect(ok).To(BeTrue())
			Expect(samples).To(Equal([]float32{1.5}))
		})
	})

	Describe("RebuildFrom", func() {
		It("pulls a patch and index from a ProgramSource and rebuilds", func() {
			ctrl := gomock.NewController(GinkgoT())
			src := NewMockProgramSource(ctrl)
			p := samplePatch()
			idx := &debugidx.Index{
				BlockMap:   map[string]string{"src": "Const", "dst": "Camera"},
				SlotToPort: map[ir.Slot]string{5: "src:out"},
			}
			src.EXPECT().LoadPatch().Return(p, nil)
			src.EXPECT().DebugIndex().Return(idx)

			Expect(svc.RebuildFrom(src)).To(Succeed())

			slot, ok := svc.SlotForEdge("e1")
			Expect(ok).To(BeTrue())
			Expect(slot).To(Equal(ir.Slot(5)))
		})

		It("propagates a LoadPatch error without touching the mapping", func() {
			ctrl := gomock.NewController(GinkgoT())
			src := NewMockProgramSource(ctrl)
			src.EXPECT().LoadPatch().Return(nil, errBoom)

			Expect(svc.RebuildFrom(src)).To(MatchError(errBoom))
		})
	})
})

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
