package typesolve_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/patchc/blocks"
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/diag"
	"github.com/sarchlab/patchc/frontend"
	"github.com/sarchlab/patchc/patch"
	"github.com/sarchlab/patchc/registry"
	"github.com/sarchlab/patchc/typesolve"
)

func newTestContext(p *patch.Patch) *frontend.Context {
	reg := registry.New()
	entries := blocks.RegisterAll(reg)
	adapters := frontend.NewAdapterRegistry()
	for _, e := range entries {
		adapters.Register(e.From, e.To, e.BlockType)
	}
	return frontend.NewContext(p, reg, adapters)
}

var _ = Describe("Solve", func() {
	BeforeEach(func() {
		cty.ResetVariables()
	})

	It("resolves a concrete payload across a simple signal chain", func() {
		p := patch.New()
		Expect(p.AddBlock(patch.Block{ID: "c1", Type: "Const"})).To(Succeed())
		Expect(p.AddBlock(patch.Block{ID: "c2", Type: "Const"})).To(Succeed())
		Expect(p.AddBlock(patch.Block{ID: "add", Type: "Add"})).To(Succeed())
		Expect(p.AddEdge(patch.Edge{ID: "e1", SourceBlock: "c1", SourcePort: "out", DestBlock: "add", DestPort: "a"})).To(Succeed())
		Expect(p.AddEdge(patch.Edge{ID: "e2", SourceBlock: "c2", SourcePort: "out", DestBlock: "add", DestPort: "b"})).To(Succeed())

		ctx := newTestContext(p)
		Expect(ctx.Run()).To(BeEmpty())

		sol, diags := typesolve.Solve(ctx)
		Expect(diags).To(BeEmpty())

		outType := sol.PortType[patch.JoinAddress("add", "out")]
		payload, ok := cty.ResolvedPayload(outType)
		Expect(ok).To(BeTrue())
		Expect(payload).To(Equal(cty.Float))
	})

	It("reports a TypeMismatch when two incompatible payloads are unified", func() {
		p := patch.New()
		Expect(p.AddBlock(patch.Block{ID: "c1", Type: "Const", Config: map[string]any{"type": "float"}})).To(Succeed())
		Expect(p.AddBlock(patch.Block{ID: "c2", Type: "Const", Config: map[string]any{"type": "bool"}})).To(Succeed())
		Expect(p.AddBlock(patch.Block{ID: "add", Type: "Add"})).To(Succeed())
		Expect(p.AddEdge(patch.Edge{ID: "e1", SourceBlock: "c1", SourcePort: "out", DestBlock: "add", DestPort: "a"})).To(Succeed())
		Expect(p.AddEdge(patch.Edge{ID: "e2", SourceBlock: "c2", SourcePort: "out", DestBlock: "add", DestPort: "b"})).To(Succeed())

		ctx := newTestContext(p)
		Expect(ctx.Run()).To(BeEmpty())

		_, diags := typesolve.Solve(ctx)
		Expect(diags).NotTo(BeEmpty())
		Expect(diags[0].Code).To(Equal(diag.CodeTypeMismatch))
	})

	It("propagates a field domain through a cardinality-preserve block", func() {
		p := patch.New()
		Expect(p.AddBlock(patch.Block{ID: "arr", Type: "Array", Config: map[string]any{"count": 4.0}})).To(Succeed())
		Expect(p.AddBlock(patch.Block{ID: "c1", Type: "Const", Config: map[string]any{"type": "int"}})).To(Succeed())
		Expect(p.AddBlock(patch.Block{ID: "add", Type: "Add"})).To(Succeed())
		Expect(p.AddEdge(patch.Edge{ID: "e1", SourceBlock: "arr", SourcePort: "index", DestBlock: "add", DestPort: "a"})).To(Succeed())
		Expect(p.AddEdge(patch.Edge{ID: "e2", SourceBlock: "c1", SourcePort: "out", DestBlock: "add", DestPort: "b"})).To(Succeed())

		ctx := newTestContext(p)
		Expect(ctx.Run()).To(BeEmpty())

		sol, _ := typesolve.Solve(ctx)
		outType := sol.PortType[patch.JoinAddress("add", "a")]
		card, instanceID, _, ok := cty.ResolvedCardinality(outType.Extent)
		Expect(ok).To(BeTrue())
		Expect(card).To(Equal(cty.Many))
		Expect(instanceID).To(Equal("arr"))
	})

	It("reports MissingInput for a required input left unconnected", func() {
		p := patch.New()
		Expect(p.AddBlock(patch.Block{ID: "add", Type: "Add"})).To(Succeed())

		ctx := newTestContext(p)
		diags := ctx.Run()
		Expect(diags).NotTo(BeEmpty())
		Expect(diags[0].Code).To(Equal(diag.CodeMissingInput))
	})
})
