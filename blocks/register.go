package blocks

import "github.com/sarchlab/patchc/registry"

// RegisterAll wires every built-in block definition into r (spec.md §6.2,
// SPEC_FULL.md §6.5) and returns the unit-adapter triples for the caller to
// feed into a frontend.AdapterRegistry.
func RegisterAll(r *registry.Registry) []AdapterEntry {
	registerSources(r)
	registerMath(r)
	registerVector(r)
	registerShape(r)
	registerRender(r)
	registerState(r)
	registerExpression(r)
	registerArithmetic(r)

	adapters := registerUnits(r)
	out := make([]AdapterEntry, 0, len(adapters.Entries()))
	for _, e := range adapters.Entries() {
		out = append(out, AdapterEntry(e))
	}
	return out
}

// AdapterEntry is the exported form of adapterEntry, for compiler.DefaultOptions to
// range over without depending on blocks' unexported types.
type AdapterEntry = adapterEntry
