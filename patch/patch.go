// Package patch implements the patch model (component C4): blocks, ports,
// edges, vararg port connections, and the address registry that resolves
// "blockId:portName" addresses.
package patch

import (
	"fmt"
	"sort"
)

// VarargConnection is one ordered entry of a vararg input port's connection
// list.
type VarargConnection struct {
	SourceAddress string // "blockId:portName", must name an output
	SortKey       float64
}

// Block is a node in the patch graph: a registry type, a config map, and
// (structurally) whatever ports its block definition declares. The patch
// model itself does not know input/output shapes — those come from the
// registry — it only records per-input wiring.
type Block struct {
	ID     string
	Type   string
	Config map[string]any

	// Edges (non-vararg): inputPortName -> the single connected edge id,
	// if any.
	connectedInput map[string]string

	// Vararg connections: inputPortName -> ordered connection list.
	varargInputs map[string][]VarargConnection
}

// Edge connects (sourceBlockId, outputPortName) to (destBlockId,
// inputPortName).
type Edge struct {
	ID           string
	SourceBlock  string
	SourcePort   string
	DestBlock    string
	DestPort     string
}

// Violation is the PatchViolation error raised at the point of an illegal
// mutation (spec.md §4.4): self-loop, duplicate id, or a second edge into a
// non-vararg input.
type Violation struct {
	Reason string
}

func (v Violation) Error() string { return "PatchViolation: " + v.Reason }

// Patch is an unordered set of blocks and edges plus the address registry
// that resolves addresses against them. Patch is mutable while being built;
// once handed to compile() it must be treated as immutable (the compiler
// never mutates its input).
type Patch struct {
	blocks map[string]*Block
	edges  map[string]*Edge
	order  []string // block ids in insertion order, for deterministic iteration before Pass 3 assigns topo order
}

// New creates an empty patch.
func New() *Patch {
	return &Patch{blocks: map[string]*Block{}, edges: map[string]*Edge{}}
}

// AddBlock adds a block, returning a Violation if its id is already used.
func (p *Patch) AddBlock(b Block) error {
	if _, exists := p.blocks[b.ID]; exists {
		return Violation{Reason: fmt.Sprintf("duplicate block id %q", b.ID)}
	}
	nb := b
	nb.connectedInput = map[string]string{}
	nb.varargInputs = map[string][]VarargConnection{}
	p.blocks[b.ID] = &nb
	p.order = append(p.order, b.ID)
	return nil
}

// AddEdge connects a non-vararg input. Raises Violation on self-loop,
// duplicate edge id, unknown endpoints, or a second edge into the same
// non-vararg input.
func (p *Patch) AddEdge(e Edge) error {
	if e.SourceBlock == e.DestBlock {
		return Violation{Reason: fmt.Sprintf("self-loop on block %q", e.SourceBlock)}
	}
	if _, exists := p.edges[e.ID]; exists {
		return Violation{Reason: fmt.Sprintf("duplicate edge id %q", e.ID)}
	}
	src, ok := p.blocks[e.SourceBlock]
	if !ok {
		return Violation{Reason: fmt.Sprintf("unknown source block %q", e.SourceBlock)}
	}
	dst, ok := p.blocks[e.DestBlock]
	if !ok {
		return Violation{Reason: fmt.Sprintf("unknown dest block %q", e.DestBlock)}
	}
	if existing, connected := dst.connectedInput[e.DestPort]; connected {
		return Violation{Reason: fmt.Sprintf("input %s:%s already has edge %q", e.DestBlock, e.DestPort, existing)}
	}
	_ = src
	p.edges[e.ID] = &e
	dst.connectedInput[e.DestPort] = e.ID
	return nil
}

// AddVarargConnection appends one connection to a vararg input port. Unlike
// AddEdge, any number (N >= 0) of connections is allowed; full validation
// against varargConstraint happens in Pass 4, not here.
func (p *Patch) AddVarargConnection(blockID, portName string, conn VarargConnection) error {
	b, ok := p.blocks[blockID]
	if !ok {
		return Violation{Reason: fmt.Sprintf("unknown block %q", blockID)}
	}
	b.varargInputs[portName] = append(b.varargInputs[portName], conn)
	return nil
}

// Blocks returns every block in insertion order.
func (p *Patch) Blocks() []*Block {
	out := make([]*Block, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.blocks[id])
	}
	return out
}

// Block looks up a block by id.
func (p *Patch) Block(id string) (*Block, bool) {
	b, ok := p.blocks[id]
	return b, ok
}

// Edges returns every edge, sorted by id for determinism.
func (p *Patch) Edges() []*Edge {
	out := make([]*Edge, 0, len(p.edges))
	for _, e := range p.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edge looks up an edge by id.
func (p *Patch) Edge(id string) (*Edge, bool) {
	e, ok := p.edges[id]
	return e, ok
}

// ConnectedEdge returns the edge id wired into a block's non-vararg input,
// if any.
func (b *Block) ConnectedEdge(portName string) (string, bool) {
	id, ok := b.connectedInput[portName]
	return id, ok
}

// VarargConnections returns the ordered connection list for a vararg
// input, sorted by SortKey (Pass 4's responsibility is to have populated
// this ordering; Patch itself stores insertion order until then).
func (b *Block) VarargConnections(portName string) []VarargConnection {
	return append([]VarargConnection{}, b.varargInputs[portName]...)
}

// SortVarargConnections stably sorts a vararg port's connections by
// SortKey. Called by frontend Pass 4.
func (b *Block) SortVarargConnections(portName string) {
	conns := b.varargInputs[portName]
	sort.SliceStable(conns, func(i, j int) bool { return conns[i].SortKey < conns[j].SortKey })
	b.varargInputs[portName] = conns
}

// VarargPortNames returns every input port name carrying at least one
// vararg connection, used when cloning a patch wholesale.
func (b *Block) VarargPortNames() []string {
	names := make([]string, 0, len(b.varargInputs))
	for name := range b.varargInputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveEdgeForFrontend deletes an edge and frees up the destination
// input's connection slot. Exported narrowly for the frontend package,
// which owns a private working clone and needs to splice adapters in;
// ordinary patch construction never deletes edges.
func (p *Patch) RemoveEdgeForFrontend(id string) {
	e, ok := p.edges[id]
	if !ok {
		return
	}
	if dst, ok := p.blocks[e.DestBlock]; ok {
		if dst.connectedInput[e.DestPort] == id {
			delete(dst.connectedInput, e.DestPort)
		}
	}
	delete(p.edges, id)
}

// --- address registry -------------------------------------------------

// AddressRegistry resolves canonical "blockId:portName" addresses against a
// patch. It is rebuilt (cheaply) from a Patch rather than kept in sync
// incrementally, since the compiler treats its input patch as immutable.
type AddressRegistry struct {
	p *Patch
}

// NewAddressRegistry builds an address registry over p.
func NewAddressRegistry(p *Patch) *AddressRegistry {
	return &AddressRegistry{p: p}
}

// Direction distinguishes an input address from an output address.
type Direction int

const (
	DirUnknown Direction = iota
	DirIn
	DirOut
)

// Resolved identifies the block and direction an address refers to. The
// caller must still consult the registry.Def for the PortDef itself, since
// Patch alone does not carry port schemas.
type Resolved struct {
	Block     *Block
	PortName  string
	Direction Direction
}

// Resolve parses "blockId:portName" and resolves it against the patch,
// reporting the block only — direction must be supplied by the caller
// (derived from the block's registry.Def, which patch does not import to
// avoid a dependency cycle between the patch and registry packages).
func (a *AddressRegistry) Resolve(address string) (*Block, string, bool) {
	blockID, portName, ok := SplitAddress(address)
	if !ok {
		return nil, "", false
	}
	b, ok := a.p.Block(blockID)
	if !ok {
		return nil, "", false
	}
	return b, portName, true
}

// SplitAddress splits a canonical "blockId:portName" address.
func SplitAddress(address string) (blockID, portName string, ok bool) {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == ':' {
			return address[:i], address[i+1:], true
		}
	}
	return "", "", false
}

// JoinAddress builds a canonical "blockId:portName" address.
func JoinAddress(blockID, portName string) string {
	return blockID + ":" + portName
}
