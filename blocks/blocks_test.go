package blocks_test

import (
	"testing"

	"github.com/sarchlab/patchc/blocks"
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/registry"
)

func TestRegisterAllCatalogInvariants(t *testing.T) {
	cty.ResetVariables()
	r := registry.New()
	blocks.RegisterAll(r)

	types := r.GetAllBlockTypes()
	if len(types) == 0 {
		t.Fatal("expected RegisterAll to register at least one block type")
	}

	for _, blockType := range types {
		def, ok := r.GetBlockDefinition(blockType)
		if !ok {
			t.Fatalf("%s: listed by GetAllBlockTypes but missing from GetBlockDefinition", blockType)
		}
		if def.Lower == nil {
			t.Errorf("%s: Lower is nil", blockType)
		}
		if len(def.Outputs) == 0 && def.Capability != registry.CapRender {
			t.Errorf("%s: declares no outputs and is not a render sink", blockType)
		}
		switch def.Capability {
		case registry.CapPure, registry.CapIdentity, registry.CapState, registry.CapTime, registry.CapRender, registry.CapIO:
		default:
			t.Errorf("%s: unrecognized capability %q", blockType, def.Capability)
		}
		for name, in := range def.Inputs {
			if in.IsVararg && in.HasDefaultSource {
				t.Errorf("%s: vararg input %q must not also declare a defaultSource", blockType, name)
			}
		}
	}
}

func TestConstLowerEmitsScalarConstForNumericPayload(t *testing.T) {
	cty.ResetVariables()
	r := registry.New()
	blocks.RegisterAll(r)
	def, ok := r.GetBlockDefinition("Const")
	if !ok {
		t.Fatal("Const block not registered")
	}

	m := ir.NewModule()
	b := ir.NewBuilder(m, 0)
	outType := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})

	res, err := def.Lower(registry.LowerCtx{
		Builder:     b,
		OutputTypes: map[string]cty.Type{"out": outType},
	}, registry.LowerInputs{Config: map[string]any{"value": 3.5}})
	if err != nil {
		t.Fatalf("Lower returned an error: %v", err)
	}
	out, ok := res.OutputsByID["out"]
	if !ok {
		t.Fatal("Lower did not produce an \"out\" ValueRef")
	}
	expr := m.Expr(out.Expr)
	if expr.Kind != ir.ExprConst {
		t.Fatalf("expected ExprConst, got %v", expr.Kind)
	}
	if expr.ConstValue != 3.5 {
		t.Fatalf("expected ConstValue 3.5, got %v", expr.ConstValue)
	}
}

func TestAddLowerZipsBothInputs(t *testing.T) {
	cty.ResetVariables()
	r := registry.New()
	blocks.RegisterAll(r)
	def, ok := r.GetBlockDefinition("Add")
	if !ok {
		t.Fatal("Add block not registered")
	}

	m := ir.NewModule()
	b := ir.NewBuilder(m, 0)
	scalarType := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})

	aExpr := b.Const(1, scalarType)
	bExpr := b.Const(2, scalarType)
	a := ir.NewSignalRef(aExpr, scalarType)
	bv := ir.NewSignalRef(bExpr, scalarType)

	res, err := def.Lower(registry.LowerCtx{
		Builder:     b,
		OutputTypes: map[string]cty.Type{"out": scalarType},
	}, registry.LowerInputs{ByID: map[string]ir.ValueRef{"a": a, "b": bv}})
	if err != nil {
		t.Fatalf("Lower returned an error: %v", err)
	}
	out, ok := res.OutputsByID["out"]
	if !ok {
		t.Fatal("Lower did not produce an \"out\" ValueRef")
	}
	expr := m.Expr(out.Expr)
	if expr.Kind != ir.ExprZip {
		t.Fatalf("expected ExprZip, got %v", expr.Kind)
	}
	if len(expr.Srcs) != 2 {
		t.Fatalf("expected 2 zip sources, got %d", len(expr.Srcs))
	}
	if expr.Srcs[0] != aExpr || expr.Srcs[1] != bExpr {
		t.Fatalf("expected zip sources [%v %v], got %v", aExpr, bExpr, expr.Srcs)
	}
}

func TestSampleHoldLowerAlwaysEmitsStateWrite(t *testing.T) {
	cty.ResetVariables()
	r := registry.New()
	blocks.RegisterAll(r)
	def, ok := r.GetBlockDefinition("SampleHold")
	if !ok {
		t.Fatal("SampleHold block not registered")
	}
	if def.Capability != registry.CapState {
		t.Fatalf("expected CapState, got %v", def.Capability)
	}

	m := ir.NewModule()
	b := ir.NewBuilder(m, 0)
	scalarType := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNone})
	triggerType := cty.Signal(cty.Float, cty.Unit{Tag: cty.UnitNorm01})

	valueExpr := b.Const(1, scalarType)
	triggerExpr := b.Const(0, triggerType)

	_, err := def.Lower(registry.LowerCtx{
		Builder:     b,
		BlockIndex:  0,
		InstanceID:  "sh0",
		OutputTypes: map[string]cty.Type{"out": scalarType},
	}, registry.LowerInputs{ByID: map[string]ir.ValueRef{
		"value":   ir.NewSignalRef(valueExpr, scalarType),
		"trigger": ir.NewSignalRef(triggerExpr, triggerType),
	}})
	if err != nil {
		t.Fatalf("Lower returned an error: %v", err)
	}

	var sawStateWrite bool
	for _, s := range m.Steps() {
		if s.Kind == ir.StepStateWrite {
			sawStateWrite = true
		}
	}
	if !sawStateWrite {
		t.Fatal("expected SampleHold.Lower to unconditionally emit a StepStateWrite")
	}
}
