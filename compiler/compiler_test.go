package compiler_test

import (
	"reflect"
	"testing"

	"github.com/sarchlab/patchc/compiler"
	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/patch"
)

// TestCompileFileGoldenFixture exercises Compile against a checked-in
// patch, the teacher's verify-against-golden-output style (verify/report.go)
// generalized from a textual diff to a structural one.
func TestCompileFileGoldenFixture(t *testing.T) {
	cty.ResetVariables()
	res, diags, err := compiler.CompileFile("testdata/add_chain.yaml", compiler.DefaultOptions())
	if err != nil {
		t.Fatalf("CompileFile returned an error: %v", err)
	}
	if len(diags) > 0 {
		t.Fatalf("expected a clean compile, got diagnostics: %v", diags)
	}
	if res.Program == nil {
		t.Fatal("expected a non-nil compiled program")
	}
	var sawCamera bool
	for _, g := range res.Program.RenderGlobals {
		if g.Kind == ir.RenderGlobalCamera {
			sawCamera = true
		}
	}
	if !sawCamera {
		t.Fatal("expected the Camera block to contribute a render global")
	}
}

// TestCompileIsDeterministic is the round-trip property from spec.md §8:
// compiling the same patch twice yields byte-identical slotMeta and steps.
func TestCompileIsDeterministic(t *testing.T) {
	cty.ResetVariables()
	p, err := patch.LoadPatchFromYAML("testdata/add_chain.yaml")
	if err != nil {
		t.Fatalf("LoadPatchFromYAML failed: %v", err)
	}

	first, diags := compiler.Compile(p, compiler.DefaultOptions())
	if len(diags) > 0 {
		t.Fatalf("first compile produced diagnostics: %v", diags)
	}

	cty.ResetVariables()
	second, diags := compiler.Compile(p, compiler.DefaultOptions())
	if len(diags) > 0 {
		t.Fatalf("second compile produced diagnostics: %v", diags)
	}

	if !reflect.DeepEqual(first.Program.SlotMeta, second.Program.SlotMeta) {
		t.Fatalf("slotMeta diverged across recompiles:\n%#v\n%#v", first.Program.SlotMeta, second.Program.SlotMeta)
	}
	if !reflect.DeepEqual(first.Program.Steps, second.Program.Steps) {
		t.Fatalf("steps diverged across recompiles:\n%#v\n%#v", first.Program.Steps, second.Program.Steps)
	}
}

// TestCompileFileLoadError surfaces a missing fixture as a load error, not
// a panic or a silently empty result.
func TestCompileFileLoadError(t *testing.T) {
	cty.ResetVariables()
	_, _, err := compiler.CompileFile("testdata/does_not_exist.yaml", compiler.DefaultOptions())
	if err == nil {
		t.Fatal("expected an error for a missing fixture file")
	}
}
