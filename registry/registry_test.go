package registry_test

import (
	"testing"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/registry"
)

func scalarDef(portName string) registry.Def {
	return registry.Def{
		Type: "Scalar", Capability: registry.CapPure,
		Cardinality: registry.Cardinality{Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal, BroadcastPolicy: registry.DisallowSignalMix},
		Outputs:     map[string]registry.OutputDef{portName: {Type: cty.Signal(cty.Float, cty.Unit{})}},
	}
}

func TestRegisterBlockDuplicate(t *testing.T) {
	r := registry.New()
	if err := r.RegisterBlock(scalarDef("out"), registry.Options{}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := r.RegisterBlock(scalarDef("out"), registry.Options{})
	if err == nil {
		t.Fatal("expected a duplicate-registration error, got nil")
	}
	if !registry.IsDuplicateRegistration(err) {
		t.Fatalf("expected IsDuplicateRegistration, got %v", err)
	}
}

func TestRegisterBlockAllowOverride(t *testing.T) {
	r := registry.New()
	if err := r.RegisterBlock(scalarDef("out"), registry.Options{}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.RegisterBlock(scalarDef("out"), registry.Options{AllowOverride: true}); err != nil {
		t.Fatalf("override registration should succeed, got %v", err)
	}
}

func TestRegisterBlockVarargRequiresConstraint(t *testing.T) {
	def := registry.Def{
		Type: "Sum", Capability: registry.CapPure,
		Cardinality: registry.Cardinality{Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal, BroadcastPolicy: registry.DisallowSignalMix},
		Inputs: map[string]registry.InputDef{
			"terms": {Type: cty.Signal(cty.Float, cty.Unit{}), IsVararg: true},
		},
	}
	r := registry.New()
	err := r.RegisterBlock(def, registry.Options{})
	if err == nil || !registry.IsRegistryInvalid(err) {
		t.Fatalf("expected RegistryInvalid for a vararg input with no constraint, got %v", err)
	}
}

func TestRegisterBlockVarargRejectsDefaultSource(t *testing.T) {
	def := registry.Def{
		Type: "Sum", Capability: registry.CapPure,
		Cardinality: registry.Cardinality{Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal, BroadcastPolicy: registry.DisallowSignalMix},
		Inputs: map[string]registry.InputDef{
			"terms": {
				Type: cty.Signal(cty.Float, cty.Unit{}), IsVararg: true,
				VarargConstraint: registry.VarargConstraint{Max: 4},
				HasDefaultSource: true, DefaultSource: registry.DefaultConst,
			},
		},
	}
	r := registry.New()
	err := r.RegisterBlock(def, registry.Options{})
	if err == nil || !registry.IsRegistryInvalid(err) {
		t.Fatalf("expected RegistryInvalid for a vararg input declaring a defaultSource, got %v", err)
	}
}

func TestRegisterBlockPayloadGenericsReferenceUndeclaredPort(t *testing.T) {
	def := registry.Def{
		Type: "Bad", Capability: registry.CapPure,
		Cardinality: registry.Cardinality{Mode: registry.CardinalitySignalOnly, LaneCoupling: registry.LaneLocal, BroadcastPolicy: registry.DisallowSignalMix},
		Payload: &registry.PayloadGenerics{
			AllowedPayloads: map[string][]cty.Payload{"nonexistent": {cty.Float}},
		},
	}
	r := registry.New()
	err := r.RegisterBlock(def, registry.Options{})
	if err == nil || !registry.IsRegistryInvalid(err) {
		t.Fatalf("expected RegistryInvalid for payload.allowedPayloads naming an undeclared port, got %v", err)
	}
}

func TestRegisterBlockFieldOnlyRejectsSignalOnlyVararg(t *testing.T) {
	def := registry.Def{
		Type: "FieldSum", Capability: registry.CapPure,
		Cardinality: registry.Cardinality{Mode: registry.CardinalityFieldOnly, LaneCoupling: registry.LaneLocal, BroadcastPolicy: registry.DisallowSignalMix},
		Inputs: map[string]registry.InputDef{
			"terms": {
				Type: cty.Signal(cty.Float, cty.Unit{}), IsVararg: true,
				VarargConstraint: registry.VarargConstraint{Max: 4, CardinalityConstraint: registry.CardinalitySignalOnly},
			},
		},
	}
	r := registry.New()
	err := r.RegisterBlock(def, registry.Options{})
	if err == nil || !registry.IsRegistryInvalid(err) {
		t.Fatalf("expected RegistryInvalid for a signalOnly vararg constraint on a fieldOnly block, got %v", err)
	}
}

func TestGetBlockDefinitionAndAllTypes(t *testing.T) {
	r := registry.New()
	if err := r.RegisterBlock(scalarDef("out"), registry.Options{}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	if _, ok := r.GetBlockDefinition("Scalar"); !ok {
		t.Fatal("expected Scalar to be registered")
	}
	if _, ok := r.GetBlockDefinition("Missing"); ok {
		t.Fatal("expected Missing to be absent")
	}
	types := r.GetAllBlockTypes()
	if len(types) != 1 || types[0] != "Scalar" {
		t.Fatalf("expected [Scalar], got %v", types)
	}
}
