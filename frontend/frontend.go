// Package frontend implements the sequential frontend passes (component
// C5): default-source insertion, adapter insertion, indexing, and vararg
// validation. Passes run in order; each collects every diagnostic it can
// before the pipeline decides whether to continue (spec.md §4.5, §7).
package frontend

import (
	"sort"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/diag"
	"github.com/sarchlab/patchc/patch"
	"github.com/sarchlab/patchc/registry"
	"github.com/sarchlab/patchc/topology"
)

// PortRole classifies why a port ended up with a lowered value, echoed
// into the debug index (component C9).
type PortRole string

const (
	RoleUserWire PortRole = "userWire"
	RoleAdapter  PortRole = "adapter"
	RoleDefault  PortRole = "default"
)

// AdapterSpec names the unit conversion an adapter block performs.
type AdapterSpec struct {
	From, To cty.Unit
}

// AdapterRegistry maps a (from, to) unit pair to the block type that
// performs the conversion, consulted by Pass 2.
type AdapterRegistry struct {
	entries map[unitPair]string
}

type unitPair struct {
	fromTag, toTag         cty.UnitTag
	fromSub, toSub         string
}

// NewAdapterRegistry creates an empty adapter registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{entries: map[unitPair]string{}}
}

// Register records that blockType converts from `from` to `to`.
func (a *AdapterRegistry) Register(from, to cty.Unit, blockType string) {
	a.entries[unitPair{from.Tag, to.Tag, from.Sub, to.Sub}] = blockType
}

// Lookup finds an adapter block type converting from `from` to `to`.
func (a *AdapterRegistry) Lookup(from, to cty.Unit) (string, bool) {
	t, ok := a.entries[unitPair{from.Tag, to.Tag, from.Sub, to.Sub}]
	return t, ok
}

// Context is the working state threaded through the four passes. It owns a
// private clone of the caller's patch so the original is never mutated
// (spec.md §3.4's "the compiler treats its input patch as immutable").
type Context struct {
	Patch     *patch.Patch
	Registry  *registry.Registry
	Adapters  *AdapterRegistry
	Topology  *topology.Registry
	Sink      *diag.Sink
	BlockRole map[string]PortRole // blockID -> role (for synthetic blocks)
	BlockIdx  map[string]int      // populated by Pass 3
	IdxBlock  []string            // inverse of BlockIdx, populated by Pass 3
}

// NewContext builds a fresh frontend context wrapping a clone of p.
func NewContext(p *patch.Patch, reg *registry.Registry, adapters *AdapterRegistry) *Context {
	return &Context{
		Patch:     clone(p),
		Registry:  reg,
		Adapters:  adapters,
		Topology:  topology.New(),
		Sink:      &diag.Sink{},
		BlockRole: map[string]PortRole{},
		BlockIdx:  map[string]int{},
	}
}

func clone(p *patch.Patch) *patch.Patch {
	np := patch.New()
	for _, b := range p.Blocks() {
		_ = np.AddBlock(patch.Block{ID: b.ID, Type: b.Type, Config: b.Config})
	}
	for _, e := range p.Edges() {
		_ = np.AddEdge(*e)
	}
	for _, b := range p.Blocks() {
		for _, portName := range b.VarargPortNames() {
			for _, c := range b.VarargConnections(portName) {
				_ = np.AddVarargConnection(b.ID, portName, c)
			}
		}
	}
	return np
}

// Run executes passes 1-4 in order, honoring the "downstream passes do not
// run if upstream produced any error" rule (spec.md §7): a pass whose own
// diagnostics are non-empty still lets *that* pass finish (no
// short-circuiting within a pass), but the next pass only runs if the sink
// was still empty beforehand.
func (c *Context) Run() []diag.Diagnostic {
	before := len(c.Sink.Items())
	c.Pass1DefaultSourcing()
	if len(c.Sink.Items()) > before {
		return c.Sink.Items()
	}

	before = len(c.Sink.Items())
	c.Pass2AdapterInsertion()
	if len(c.Sink.Items()) > before {
		return c.Sink.Items()
	}

	before = len(c.Sink.Items())
	c.Pass3Indexing()
	if len(c.Sink.Items()) > before {
		return c.Sink.Items()
	}

	c.Pass4VarargValidation()
	return c.Sink.Items()
}

// Pass1DefaultSourcing inserts synthetic source blocks for unconnected,
// non-vararg inputs that declare a defaultSource, and records MissingInput
// for required inputs that have neither a connection nor a default.
func (c *Context) Pass1DefaultSourcing() {
	for _, b := range c.Patch.Blocks() {
		def, ok := c.Registry.GetBlockDefinition(b.Type)
		if !ok {
			continue // unknown block types are a patch-construction error caught elsewhere
		}
		for portName, in := range def.Inputs {
			if in.IsVararg {
				continue
			}
			if _, connected := b.ConnectedEdge(portName); connected {
				continue
			}
			if in.HasDefaultSource {
				c.insertDefaultSource(b, portName, in)
				continue
			}
			if !in.Optional {
				c.Sink.Addf(diag.KindDefault, diag.CodeMissingInput,
					diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: -1},
					"required input %s:%s has no connection and no default source", b.ID, portName)
			}
		}
	}
}

func (c *Context) insertDefaultSource(dst *patch.Block, portName string, in registry.InputDef) {
	// Deterministic, derived from (dst, port) rather than a random/time-based
	// id: Pass 3 breaks topological ties by block id string, so a
	// nondeterministic synthetic id would shift blockIndex assignment (and
	// therefore Steps[].BlockIndex) across otherwise-identical compiles.
	srcID := "zn_default_" + dst.ID + "_" + portName
	var blockType string
	cfg := map[string]any{}
	switch in.DefaultSource {
	case registry.DefaultConst:
		blockType = "Const"
		cfg["value"] = in.DefaultValue
	case registry.DefaultTimeRoot:
		blockType = "ClockPhase"
	default:
		blockType = "Const"
		cfg["value"] = in.DefaultValue
	}
	_ = c.Patch.AddBlock(patch.Block{ID: srcID, Type: blockType, Config: cfg})
	c.BlockRole[srcID] = RoleDefault
	edgeID := "zn_default_edge_" + dst.ID + "_" + portName
	_ = c.Patch.AddEdge(patch.Edge{
		ID: edgeID, SourceBlock: srcID, SourcePort: "out",
		DestBlock: dst.ID, DestPort: portName,
	})
}

// Pass2AdapterInsertion splices an adapter block into any edge whose
// source/destination units mismatch and a registered adapter exists;
// otherwise it records UnitMismatch.
func (c *Context) Pass2AdapterInsertion() {
	for _, e := range c.Patch.Edges() {
		srcBlock, ok := c.Patch.Block(e.SourceBlock)
		if !ok {
			continue
		}
		dstBlock, ok := c.Patch.Block(e.DestBlock)
		if !ok {
			continue
		}
		srcDef, ok := c.Registry.GetBlockDefinition(srcBlock.Type)
		if !ok {
			continue
		}
		dstDef, ok := c.Registry.GetBlockDefinition(dstBlock.Type)
		if !ok {
			continue
		}
		outDef, ok := srcDef.Outputs[e.SourcePort]
		if !ok {
			continue
		}
		inDef, ok := dstDef.Inputs[e.DestPort]
		if !ok {
			continue
		}
		uSrc, uDst := outDef.Type.Unit, inDef.Type.Unit
		if uSrc.Tag == cty.UnitNone || uDst.Tag == cty.UnitNone {
			continue
		}
		if uSrc.Tag == uDst.Tag && (uSrc.Sub == "" || uDst.Sub == "" || uSrc.Sub == uDst.Sub) {
			continue
		}

		adapterType, found := c.Adapters.Lookup(uSrc, uDst)
		if !found {
			c.Sink.Addf(diag.KindAdapter, diag.CodeUnitMismatch,
				diag.Where{BlockID: e.DestBlock, PortID: e.DestPort, ConnectionIndex: -1},
				"edge %s: unit mismatch %v -> %v on %s:%s -> %s:%s with no registered adapter",
				e.ID, uSrc, uDst, e.SourceBlock, e.SourcePort, e.DestBlock, e.DestPort)
			continue
		}

		// Derived from the edge id being spliced, not a random/time-based id
		// (see insertDefaultSource): keeps Pass 3's id-based tie-breaking,
		// and hence blockIndex assignment, stable across recompiles.
		adapterID := "zn_adapter_" + e.ID
		_ = c.Patch.AddBlock(patch.Block{ID: adapterID, Type: adapterType})
		c.BlockRole[adapterID] = RoleAdapter

		// Splice: remove the original edge, wire src -> adapter -> dst.
		c.removeEdge(e.ID)
		_ = c.Patch.AddEdge(patch.Edge{
			ID: "zn_adapter_in_" + e.ID, SourceBlock: e.SourceBlock, SourcePort: e.SourcePort,
			DestBlock: adapterID, DestPort: "in",
		})
		_ = c.Patch.AddEdge(patch.Edge{
			ID: "zn_adapter_out_" + e.ID, SourceBlock: adapterID, SourcePort: "out",
			DestBlock: e.DestBlock, DestPort: e.DestPort,
		})
	}
}

// removeEdge deletes an edge from the working patch. Patch does not expose
// deletion directly (edges are meant to be append-only for a user-facing
// patch); the frontend package, which owns its private clone, reaches past
// that via a narrow helper.
func (c *Context) removeEdge(id string) {
	c.Patch.RemoveEdgeForFrontend(id)
}

// Pass3Indexing assigns a deterministic blockIndex by topological sort,
// ties broken by stable id. Per spec.md design note on cyclic graphs, the
// dependency graph excludes edges leaving a CapState block (those values
// are available from the previous tick, not this tick's computation), so
// a state-coupled loop does not register as a cycle.
func (c *Context) Pass3Indexing() {
	blocks := c.Patch.Blocks()
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.ID)
	}
	sort.Strings(ids)

	indeg := map[string]int{}
	adj := map[string][]string{}
	for _, id := range ids {
		indeg[id] = 0
	}
	for _, e := range c.Patch.Edges() {
		srcBlock, ok := c.Patch.Block(e.SourceBlock)
		if !ok {
			continue
		}
		def, ok := c.Registry.GetBlockDefinition(srcBlock.Type)
		if ok && def.Capability == registry.CapState {
			continue // state-read edge: excluded from ordering dependency
		}
		adj[e.SourceBlock] = append(adj[e.SourceBlock], e.DestBlock)
		indeg[e.DestBlock]++
	}

	var ready []string
	for _, id := range ids {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		next := append([]string{}, adj[n]...)
		sort.Strings(next)
		for _, m := range next {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(ids) {
		c.Sink.Add(diag.At(diag.KindScheduling, diag.CodeCycleDetected,
			"patch contains a cycle not resolvable by excluding state-read edges", diag.Where{ConnectionIndex: -1}))
		return
	}

	c.BlockIdx = map[string]int{}
	c.IdxBlock = order
	for i, id := range order {
		c.BlockIdx[id] = i
	}
}

// Pass4VarargValidation resolves every vararg connection's source address,
// checks cardinality/payload/count constraints, and stably sorts each
// port's connections by SortKey.
func (c *Context) Pass4VarargValidation() {
	addrs := patch.NewAddressRegistry(c.Patch)
	for _, b := range c.Patch.Blocks() {
		def, ok := c.Registry.GetBlockDefinition(b.Type)
		if !ok {
			continue
		}
		for portName, in := range def.Inputs {
			if !in.IsVararg {
				continue
			}
			conns := b.VarargConnections(portName)
			if in.VarargConstraint.Min > 0 && len(conns) < in.VarargConstraint.Min {
				c.Sink.Addf(diag.KindVararg, diag.CodeConnectionLimit,
					diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: -1},
					"vararg %s:%s has %d connections, minimum is %d", b.ID, portName, len(conns), in.VarargConstraint.Min)
			}
			if in.VarargConstraint.Max > 0 && len(conns) > in.VarargConstraint.Max {
				c.Sink.Addf(diag.KindVararg, diag.CodeConnectionLimit,
					diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: -1},
					"vararg %s:%s has %d connections, maximum is %d", b.ID, portName, len(conns), in.VarargConstraint.Max)
			}

			for i, conn := range conns {
				srcBlock, srcPort, ok := addrs.Resolve(conn.SourceAddress)
				if !ok {
					c.Sink.Addf(diag.KindVararg, diag.CodeInvalidAddress,
						diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: i},
						"vararg %s:%s[%d]: address %q does not resolve", b.ID, portName, i, conn.SourceAddress)
					continue
				}
				srcDef, ok := c.Registry.GetBlockDefinition(srcBlock.Type)
				if !ok {
					continue
				}
				outDef, ok := srcDef.Outputs[srcPort]
				if !ok {
					c.Sink.Addf(diag.KindVararg, diag.CodeInvalidAddress,
						diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: i},
						"vararg %s:%s[%d]: address %q does not name an output", b.ID, portName, i, conn.SourceAddress)
					continue
				}

				if p, ok := cty.ResolvedPayload(outDef.Type); ok && in.VarargConstraint.PayloadType != cty.PayloadNone && p != in.VarargConstraint.PayloadType {
					c.Sink.Addf(diag.KindVararg, diag.CodeTypeMismatch,
						diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: i},
						"vararg %s:%s[%d]: payload %v does not match required %v", b.ID, portName, i, p, in.VarargConstraint.PayloadType)
				}

				wantField := in.VarargConstraint.CardinalityConstraint == registry.CardinalityFieldOnly
				wantSignal := in.VarargConstraint.CardinalityConstraint == registry.CardinalitySignalOnly
				isField := outDef.Type.Extent.Cardinality == cty.Many
				isSignal := outDef.Type.Extent.Cardinality == cty.One
				if wantField && isSignal {
					c.Sink.Addf(diag.KindVararg, diag.CodeCardinalityMismatch,
						diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: i},
						"vararg %s:%s[%d]: expected a field connection, got a signal", b.ID, portName, i)
				}
				if wantSignal && isField {
					c.Sink.Addf(diag.KindVararg, diag.CodeCardinalityMismatch,
						diag.Where{BlockID: b.ID, PortID: portName, ConnectionIndex: i},
						"vararg %s:%s[%d]: expected a signal connection, got a field", b.ID, portName, i)
				}
			}

			b.SortVarargConnections(portName)
		}
	}
}
