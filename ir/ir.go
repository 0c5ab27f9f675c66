// Package ir implements the IR core (component C2): the value-expression
// DAG, kernel references, opcodes, slots, steps, state, and instances.
//
// Per the rewrite notes in spec.md §9, expressions are immutable once
// emitted (I-IR1) and kernels are kept in a typed catalog so arity is
// checkable at registration time, rather than passing "as any" payloads
// around the way the teacher's string-keyed opcode dispatch
// (core/emu.go's giant switch) does.
package ir

import "github.com/sarchlab/patchc/cty"

// ExprID identifies a ValueExpr node in the module's expression table.
type ExprID int

// Slot is an integer handle into the runtime's flat value storage. Strided
// allocations reserve Stride consecutive indices starting at the base.
type Slot int

// StateSlotID identifies a StateSlot within the module.
type StateSlotID int

// InstanceID identifies an InstanceDecl (a field domain of N lanes).
type InstanceID string

// ExprKind enumerates the ValueExpr variants from spec.md §3.2.
type ExprKind int

const (
	ExprConst ExprKind = iota
	ExprExternal
	ExprIntrinsic
	ExprMap
	ExprZip
	ExprZipSig
	ExprConstruct
	ExprBroadcast
	ExprShapeRef
	ExprSlotRead
	ExprStateRead
	ExprEventRead
)

func (k ExprKind) String() string {
	return [...]string{
		"Const", "External", "Intrinsic", "Map", "Zip", "ZipSig",
		"Construct", "Broadcast", "ShapeRef", "SlotRead", "StateRead", "EventRead",
	}[k]
}

// KernelKind distinguishes a builder-registered opcode from a named
// field-kernel; both are opaque to the compiler beyond arity.
type KernelKind int

const (
	KernelOpcode KernelKind = iota
	KernelField
)

// OpCode enumerates the builder-registered scalar opcodes.
type OpCode string

const (
	OpAdd  OpCode = "add"
	OpSub  OpCode = "sub"
	OpMul  OpCode = "mul"
	OpDiv  OpCode = "div"
	OpMod  OpCode = "mod"
	OpSin  OpCode = "sin"
	OpCos  OpCode = "cos"
	OpSqrt OpCode = "sqrt"
	OpGt   OpCode = "gt"
	OpLt   OpCode = "lt"
	OpEq   OpCode = "eq"
	OpLerp OpCode = "lerp"
	OpNeg  OpCode = "neg"
)

// arities of builder opcodes, keyed by name: checkable at registration/use
// time instead of left to an "as any" cast.
var opcodeArity = map[OpCode]int{
	OpAdd: 2, OpSub: 2, OpMul: 2, OpDiv: 2, OpMod: 2,
	OpSin: 1, OpCos: 1, OpSqrt: 1, OpNeg: 1,
	OpGt: 2, OpLt: 2, OpEq: 2, OpLerp: 3,
}

// Kernel is a named computation, opaque to the compiler aside from arity.
type Kernel struct {
	Kind   KernelKind
	Opcode OpCode // valid when Kind == KernelOpcode
	Name   string // valid when Kind == KernelField
	arity  int
}

// Opcode builds a Kernel wrapping a builder opcode; panics if the opcode is
// unknown, mirroring the registry's validate-at-registration-time posture.
func Opcode(code OpCode) Kernel {
	arity, ok := opcodeArity[code]
	if !ok {
		panic("ir: unknown opcode " + string(code))
	}
	return Kernel{Kind: KernelOpcode, Opcode: code, arity: arity}
}

// FieldKernel builds a Kernel wrapping a named field-kernel with an
// explicit arity (field kernels are not in the builder's opcode catalog).
func FieldKernel(name string, arity int) Kernel {
	return Kernel{Kind: KernelField, Name: name, arity: arity}
}

// Arity returns the kernel's expected input count.
func (k Kernel) Arity() int { return k.arity }

func (k Kernel) String() string {
	if k.Kind == KernelOpcode {
		return string(k.Opcode)
	}
	return k.Name
}

// Expr is a single node in the SSA-style expression DAG. Only the fields
// relevant to Kind are populated; unused fields are left zero. This mirrors
// the compact, single-struct instruction records the teacher parses ASM
// operations into (core.Operation), rather than a class hierarchy per
// expression kind.
type Expr struct {
	ID   ExprID
	Kind ExprKind
	Type cty.Type

	// ExprConst
	ConstValue float64

	// ExprExternal
	Channel string

	// ExprIntrinsic
	IntrinsicName string

	// ExprMap / ExprZip / ExprZipSig
	Src     ExprID   // ExprMap, ExprBroadcast
	Srcs    []ExprID // ExprZip, ExprConstruct
	FieldSrc ExprID  // ExprZipSig
	SigSrcs []ExprID // ExprZipSig
	Kernel  Kernel

	// ExprShapeRef
	TopologyID          string
	ShapeParams         []ExprID
	ControlPointField   ExprID
	HasControlPointField bool

	// ExprSlotRead
	Slot Slot

	// ExprStateRead
	StateSlot StateSlotID

	// ExprEventRead
	EventID string
}

// DomainType is the logical kind of an instance.
type DomainType string

const (
	DomainDefault DomainType = "default"
	DomainControl DomainType = "control"
)

// InstanceDecl declares a field domain of N lanes.
type InstanceDecl struct {
	ID                InstanceID
	DomainType        DomainType
	Count             int
	ShapeFieldExprID  ExprID
	HasShapeField     bool
	OriginBlockIndex  int
}

// StateSlot is persistent cross-tick storage, identified by a stable id so
// re-compilation preserves memory (spec.md §3.2).
type StateSlot struct {
	ID           StateSlotID
	InstanceID   InstanceID
	Role         string
	InitialValue float64
	Type         cty.Type
}

// StepKind enumerates emitted instruction kinds.
type StepKind int

const (
	StepEvalExpr StepKind = iota
	StepSlotWriteStrided
	StepStateWrite
	StepRenderGlobal
)

func (k StepKind) String() string {
	return [...]string{"EvalExpr", "SlotWriteStrided", "StateWrite", "RenderGlobal"}[k]
}

// Step is an emitted instruction consumed by the runtime.
type Step struct {
	Kind       StepKind
	BlockIndex int

	// StepEvalExpr
	Expr ExprID
	Slot Slot

	// StepSlotWriteStrided
	Components []ExprID

	// StepStateWrite
	StateSlot StateSlotID
	ValueExpr ExprID

	// StepRenderGlobal
	RenderGlobal RenderGlobal
}

// RenderGlobalKind enumerates the runtime-opaque render globals the
// compiler can emit without interpreting them.
type RenderGlobalKind string

const (
	RenderGlobalCamera        RenderGlobalKind = "camera"
	RenderGlobalInstances     RenderGlobalKind = "renderInstances"
)

// RenderGlobal is an opaque, runtime-consumed declaration (camera, render
// target, instanced-draw declaration). The compiler never interprets its
// payload; it simply carries the block's config forward.
type RenderGlobal struct {
	Kind       RenderGlobalKind
	BlockID    string
	Config     map[string]any
	InstanceID InstanceID
}

// SlotTypeEntry records one AllocSlot call's base, stride, and resolved
// type, independent of whether any step later reads or writes the slot
// (spec.md §4.8: slotMeta enumerates every live slot, not just the ones a
// step touches).
type SlotTypeEntry struct {
	Base   Slot
	Stride int
	Type   cty.Type
}

// Module is the small, owned value threaded through lowering (spec.md §9's
// rewrite of the imperative IRBuilder): each lower() call receives a
// *Builder bound to this Module and returns a fragment the driver splices
// in. Construction is pure; Builder's imperative step/global emission
// methods are the only observable mutation, matching I-IR1.
type Module struct {
	exprs      []Expr
	nextSlot   Slot
	nextState  StateSlotID
	steps      []Step
	stateSlots []StateSlot
	instances  []InstanceDecl
	globals    []RenderGlobal
	slotTypes  []SlotTypeEntry
}

// NewModule creates an empty IR module.
func NewModule() *Module {
	return &Module{}
}

// Exprs returns every expression emitted so far, indexed by ExprID.
func (m *Module) Exprs() []Expr { return m.exprs }

// Expr returns the expression with the given id.
func (m *Module) Expr(id ExprID) Expr { return m.exprs[id] }

// Steps returns every step emitted so far.
func (m *Module) Steps() []Step { return m.steps }

// StateSlots returns every declared state slot.
func (m *Module) StateSlots() []StateSlot { return m.stateSlots }

// Instances returns every declared instance (field domain).
func (m *Module) Instances() []InstanceDecl { return m.instances }

// RenderGlobals returns every emitted render global.
func (m *Module) RenderGlobals() []RenderGlobal { return m.globals }

// SlotTypes returns every slot allocation made so far, in allocation order.
func (m *Module) SlotTypes() []SlotTypeEntry { return m.slotTypes }

// SlotCount returns the number of slot indices allocated so far.
func (m *Module) SlotCount() int { return int(m.nextSlot) }

func (m *Module) push(e Expr) ExprID {
	id := ExprID(len(m.exprs))
	e.ID = id
	m.exprs = append(m.exprs, e)
	return id
}

// Builder is the write-only sink used by block lower implementations
// (spec.md §4.2). Every constructor is pure on its inputs and returns a
// stable handle; stepSlotWriteStrided/stepStateWrite/addRenderGlobal are
// the only observable side-effects, kept as an explicit legacy path
// alongside the preferred Construct-based effect records (see
// registry.Effects, which the lowering driver consumes).
type Builder struct {
	m          *Module
	blockIndex int
}

// NewBuilder returns a Builder bound to m for the given block index. The
// lowering driver constructs one per block so emitted steps can be
// attributed back to blockIndex for debug indexing.
func NewBuilder(m *Module, blockIndex int) *Builder {
	return &Builder{m: m, blockIndex: blockIndex}
}

// Const emits a Const expression.
func (b *Builder) Const(v float64, t cty.Type) ExprID {
	return b.m.push(Expr{Kind: ExprConst, Type: t, ConstValue: v})
}

// External emits an External(channel, type) expression.
func (b *Builder) External(channel string, t cty.Type) ExprID {
	return b.m.push(Expr{Kind: ExprExternal, Type: t, Channel: channel})
}

// Intrinsic emits an Intrinsic(name, type) expression (e.g. per-lane index).
func (b *Builder) Intrinsic(name string, t cty.Type) ExprID {
	return b.m.push(Expr{Kind: ExprIntrinsic, Type: t, IntrinsicName: name})
}

// Map emits a Map(src, kernel, type) expression.
func (b *Builder) Map(src ExprID, k Kernel, t cty.Type) ExprID {
	if k.Arity() != 1 {
		panic("ir: Map requires a unary kernel")
	}
	return b.m.push(Expr{Kind: ExprMap, Type: t, Src: src, Kernel: k})
}

// Zip emits a Zip(srcs[], kernel, type) expression.
func (b *Builder) Zip(srcs []ExprID, k Kernel, t cty.Type) ExprID {
	if k.Arity() != len(srcs) {
		panic("ir: Zip kernel arity mismatch")
	}
	return b.m.push(Expr{Kind: ExprZip, Type: t, Srcs: append([]ExprID{}, srcs...), Kernel: k})
}

// ZipSig emits a ZipSig(fieldSrc, sigSrcs[], kernel, type) expression,
// broadcast-zipping a field with one or more signals.
func (b *Builder) ZipSig(fieldSrc ExprID, sigSrcs []ExprID, k Kernel, t cty.Type) ExprID {
	if k.Arity() != 1+len(sigSrcs) {
		panic("ir: ZipSig kernel arity mismatch")
	}
	return b.m.push(Expr{Kind: ExprZipSig, Type: t, FieldSrc: fieldSrc, SigSrcs: append([]ExprID{}, sigSrcs...), Kernel: k})
}

// Construct emits a Construct(components[], type) expression, packing
// scalar components into a multi-component value (the preferred,
// purely-functional alternative to an imperative strided write).
func (b *Builder) Construct(components []ExprID, t cty.Type) ExprID {
	return b.m.push(Expr{Kind: ExprConstruct, Type: t, Srcs: append([]ExprID{}, components...)})
}

// Broadcast emits a Broadcast(sig, fieldType) expression.
func (b *Builder) Broadcast(sig ExprID, fieldType cty.Type) ExprID {
	return b.m.push(Expr{Kind: ExprBroadcast, Type: fieldType, Src: sig})
}

// ShapeRef emits a ShapeRef(topologyId, params[], controlPointField?)
// expression.
func (b *Builder) ShapeRef(topologyID string, params []ExprID, controlPoints ExprID, hasControlPoints bool, t cty.Type) ExprID {
	return b.m.push(Expr{
		Kind: ExprShapeRef, Type: t, TopologyID: topologyID,
		ShapeParams: append([]ExprID{}, params...),
		ControlPointField: controlPoints, HasControlPointField: hasControlPoints,
	})
}

// SlotRead emits a SlotRead(slot) expression.
func (b *Builder) SlotRead(slot Slot, t cty.Type) ExprID {
	return b.m.push(Expr{Kind: ExprSlotRead, Type: t, Slot: slot})
}

// StateRead emits a StateRead(stateSlot, type) expression.
func (b *Builder) StateRead(s StateSlotID, t cty.Type) ExprID {
	return b.m.push(Expr{Kind: ExprStateRead, Type: t, StateSlot: s})
}

// EventRead emits an EventRead(eventId) expression.
func (b *Builder) EventRead(eventID string, t cty.Type) ExprID {
	return b.m.push(Expr{Kind: ExprEventRead, Type: t, EventID: eventID})
}

// AllocSlot reserves stride consecutive slot indices (stride defaults to 1
// when 0 is passed) for a value of type t and returns the base slot. The
// (base, stride, type) triple is recorded on the module so a live slot is
// enumerable in slotMeta even if no step ever reads or writes it.
func (b *Builder) AllocSlot(stride int, t cty.Type) Slot {
	if stride <= 0 {
		stride = 1
	}
	base := b.m.nextSlot
	b.m.nextSlot += Slot(stride)
	b.m.slotTypes = append(b.m.slotTypes, SlotTypeEntry{Base: base, Stride: stride, Type: t})
	return base
}

// AllocStateSlot declares a new persistent state slot keyed by a stable id
// (instanceId, role), per spec.md §3.2.
func (b *Builder) AllocStateSlot(instanceID InstanceID, role string, init float64, t cty.Type) StateSlotID {
	id := b.m.nextState
	b.m.nextState++
	b.m.stateSlots = append(b.m.stateSlots, StateSlot{
		ID: id, InstanceID: instanceID, Role: role, InitialValue: init, Type: t,
	})
	return id
}

// CreateInstance declares a field domain of count lanes.
func (b *Builder) CreateInstance(id InstanceID, domainType DomainType, count int) InstanceID {
	b.m.instances = append(b.m.instances, InstanceDecl{
		ID: id, DomainType: domainType, Count: count, OriginBlockIndex: b.blockIndex,
	})
	return id
}

// SetInstanceShapeField records the control-point field expression backing
// an instance's shape, used when a ProceduralPolygon/Star-style block
// originates the field this instance iterates over.
func (b *Builder) SetInstanceShapeField(id InstanceID, shapeExpr ExprID) {
	for i := range b.m.instances {
		if b.m.instances[i].ID == id {
			b.m.instances[i].ShapeFieldExprID = shapeExpr
			b.m.instances[i].HasShapeField = true
			return
		}
	}
}

// --- imperative legacy path ------------------------------------------------
//
// Retained only for back-compat per spec.md §9: the Construct form above is
// preferred, but some blocks (notably sinks that must force materialization)
// still emit steps directly.

// StepSlotWriteStrided emits a SlotWriteStrided step.
func (b *Builder) StepSlotWriteStrided(slot Slot, components []ExprID) {
	b.m.steps = append(b.m.steps, Step{
		Kind: StepSlotWriteStrided, BlockIndex: b.blockIndex, Slot: slot,
		Components: append([]ExprID{}, components...),
	})
}

// StepStateWrite emits a StateWrite step.
func (b *Builder) StepStateWrite(s StateSlotID, expr ExprID) {
	b.m.steps = append(b.m.steps, Step{
		Kind: StepStateWrite, BlockIndex: b.blockIndex, StateSlot: s, ValueExpr: expr,
	})
}

// StepEvalSig emits an EvalExpr step materializing expr into slot.
func (b *Builder) StepEvalSig(expr ExprID, slot Slot) {
	b.m.steps = append(b.m.steps, Step{
		Kind: StepEvalExpr, BlockIndex: b.blockIndex, Expr: expr, Slot: slot,
	})
}

// AddRenderGlobal emits a runtime-opaque render global declaration.
func (b *Builder) AddRenderGlobal(g RenderGlobal) {
	b.m.globals = append(b.m.globals, g)
	b.m.steps = append(b.m.steps, Step{Kind: StepRenderGlobal, BlockIndex: b.blockIndex, RenderGlobal: g})
}

// Module exposes the module this builder writes into, for callers (the
// lowering driver, the scheduler) that need read access after lowering.
func (b *Builder) Module() *Module { return b.m }

// --- ValueRef --------------------------------------------------------------
//
// Per the rewrite note in spec.md §9 ("deep generic blocks"), downstream
// source code branches on input.kind through conditionals; here ValueRef is
// modeled as a tagged variant with exactly two constructors sharing a
// common record, dispatched by pattern-matching (a type switch on Kind)
// rather than an interface/class hierarchy.

// RefKind distinguishes a signal reference from a field reference.
type RefKind int

const (
	RefSignal RefKind = iota
	RefField
)

// ValueRef is what the lowering driver hands a block as a resolved input,
// and what a block's lower() returns per output: a reference to a source
// expression, optionally backed by a slot, carrying its resolved type and
// component stride. Components is an optimization hint a scheduler may use
// instead of the strided slot (spec.md §9 open question); it is never
// authoritative.
type ValueRef struct {
	Kind       RefKind
	Expr       ExprID
	Slot       Slot
	HasSlot    bool
	Type       cty.Type
	Stride     int
	Components []ExprID
	InstanceID InstanceID // valid when Kind == RefField
}

// NewSignalRef builds a signal-kind ValueRef.
func NewSignalRef(expr ExprID, t cty.Type) ValueRef {
	return ValueRef{Kind: RefSignal, Expr: expr, Type: t, Stride: cty.StrideOf(mustPayload(t))}
}

// NewFieldRef builds a field-kind ValueRef over the given instance.
func NewFieldRef(expr ExprID, t cty.Type, instanceID InstanceID) ValueRef {
	return ValueRef{Kind: RefField, Expr: expr, Type: t, Stride: cty.StrideOf(mustPayload(t)), InstanceID: instanceID}
}

// WithSlot returns a copy of r bound to the given slot.
func (r ValueRef) WithSlot(s Slot) ValueRef {
	r.Slot = s
	r.HasSlot = true
	return r
}

// IsField reports whether r carries field (many) cardinality.
func (r ValueRef) IsField() bool { return r.Kind == RefField }

func mustPayload(t cty.Type) cty.Payload {
	p, ok := cty.ResolvedPayload(t)
	if !ok {
		// Stride is only asked of resolved types post type-solving; an
		// unresolved payload here is a compiler bug, not a user error.
		panic("ir: ValueRef constructed with an unresolved payload")
	}
	return p
}
