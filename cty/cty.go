// Package cty implements the canonical type algebra: payload x unit x extent
// x contract, equality, and unification. This is component C1 of the
// compiler pipeline.
package cty

import (
	"fmt"
	"sync/atomic"
)

// Payload is a concrete payload kind, or the zero value when the type
// carries a payload variable instead (see Type.PayloadVar).
type Payload int

const (
	PayloadNone Payload = iota
	Float
	Int
	Bool
	Vec2
	Vec3
	Color
	Shape
	CameraProjection
)

func (p Payload) String() string {
	switch p {
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Vec2:
		return "vec2"
	case Vec3:
		return "vec3"
	case Color:
		return "color"
	case Shape:
		return "shape"
	case CameraProjection:
		return "cameraProjection"
	default:
		return "payloadVar"
	}
}

// StrideOf returns the fixed component stride of a concrete payload. Shape
// is opaque (stride 0): it is not sample-lane addressable.
func StrideOf(p Payload) int {
	switch p {
	case Float, Int, Bool, CameraProjection:
		return 1
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Color:
		return 4
	case Shape:
		return 0
	default:
		panic(fmt.Sprintf("cty: StrideOf called on unresolved payload variable"))
	}
}

// UnitTag distinguishes the unit variants.
type UnitTag int

const (
	UnitNone UnitTag = iota
	UnitScalar
	UnitCount
	UnitNorm01
	UnitAngle
	UnitTime
	UnitSpace
	UnitColor
)

// Unit is a tagged variant carrying an optional substructure tag.
type Unit struct {
	Tag UnitTag
	Sub string // angle: turns|radians|degrees; time: ms|seconds; space/color: open vocabulary
}

func (u Unit) String() string {
	if u.Sub == "" {
		return fmt.Sprintf("unit(%d)", u.Tag)
	}
	return fmt.Sprintf("unit(%d;%s)", u.Tag, u.Sub)
}

// Temporality distinguishes continuous signals from discrete events.
type Temporality int

const (
	TemporalityVar Temporality = iota
	Continuous
	Discrete
)

// Cardinality distinguishes a single broadcast value from a per-lane field.
type Cardinality int

const (
	CardinalityVar Cardinality = iota
	One
	Many
)

// varCounter is a fresh id generator for inference variables, separate
// per process (the registry/solver are process-wide per I-T1).
var varCounter int64

func freshVarID() int64 {
	return atomic.AddInt64(&varCounter, 1)
}

// Extent is (temporality, cardinality); either component may be an
// inference variable still to be resolved by the solver.
type Extent struct {
	Temporality    Temporality
	Cardinality    Cardinality
	InstanceID     string // valid when Cardinality == Many
	DomainTypeID   string // valid when Cardinality == Many
	temporalityVar int64  // nonzero when Temporality == TemporalityVar
	cardinalityVar int64  // nonzero when Cardinality == CardinalityVar
}

// NewCardinalityVar builds an Extent with a fresh, unresolved cardinality
// (used by cardinality-generic blocks in "preserve" mode: the concrete
// extent is filled in from whichever connected edge supplies one).
func NewCardinalityVar() Extent {
	return Extent{Temporality: Continuous, Cardinality: CardinalityVar, cardinalityVar: freshVarID()}
}

// NewCardinalityVarID allocates a fresh cardinality variable id without
// wrapping it in an Extent, for callers (the type solver) that need to
// stamp the same variable across several ports of one block instance.
func NewCardinalityVarID() int64 {
	return freshVarID()
}

// ExtentWithCardinalityVarID builds an Extent carrying an existing
// cardinality variable id, putting every port that shares it into the same
// "preserve" cardinality group.
func ExtentWithCardinalityVarID(id int64, temporality Temporality) Extent {
	return Extent{Temporality: temporality, Cardinality: CardinalityVar, cardinalityVar: id}
}

// ResolvedCardinality reports the concrete cardinality of e, following
// variable bindings. ok is false if e is still an unresolved variable.
func ResolvedCardinality(e Extent) (Cardinality, string, string, bool) {
	if e.Cardinality != CardinalityVar {
		return e.Cardinality, e.InstanceID, e.DomainTypeID, true
	}
	root := findCard(e.cardinalityVar)
	b, ok := cardBindings[root]
	if !ok {
		return 0, "", "", false
	}
	return b.card, b.inst, b.dom, true
}

type cardBinding struct {
	card Cardinality
	inst, dom string
}

var (
	cardParent   = map[int64]int64{}
	cardBindings = map[int64]cardBinding{}
)

func findCard(id int64) int64 {
	p, ok := cardParent[id]
	if !ok || p == id {
		cardParent[id] = id
		return id
	}
	root := findCard(p)
	cardParent[id] = root
	return root
}

func unionCard(a, b int64) {
	ra, rb := findCard(a), findCard(b)
	if ra == rb {
		return
	}
	cardParent[ra] = rb
	if binding, ok := cardBindings[ra]; ok {
		cardBindings[rb] = binding
	}
}

func bindCard(id int64, card Cardinality, inst, dom string) {
	root := findCard(id)
	cardBindings[root] = cardBinding{card: card, inst: inst, dom: dom}
}

// Contract is an optional runtime-invariant assertion on a value.
type Contract int

const (
	ContractNone Contract = iota
	Clamp01
	Wrap01
)

// stricter returns the stricter of two contracts (Pick rule in §4.1).
func stricter(a, b Contract) Contract {
	if a == ContractNone {
		return b
	}
	return a
}

// Type is the canonical type tuple (payload, unit, extent, contract). A
// payload variable is represented with Payload == PayloadNone and a
// nonzero payloadVar id, unified through the package-level union-find.
type Type struct {
	Payload    Payload
	payloadVar int64
	Unit       Unit
	Extent     Extent
	Contract   Contract
}

// New constructs a fully-concrete canonical type.
func New(payload Payload, unit Unit, extent Extent, contract Contract) Type {
	return Type{Payload: payload, Unit: unit, Extent: extent, Contract: contract}
}

// Signal builds a continuous, single-value (cardinality one) type.
func Signal(payload Payload, unit Unit) Type {
	return New(payload, unit, Extent{Temporality: Continuous, Cardinality: One}, ContractNone)
}

// Field builds a continuous, many-valued (field) type over the given
// instance/domain.
func Field(payload Payload, unit Unit, instanceID, domainTypeID string) Type {
	return New(payload, unit, Extent{
		Temporality:  Continuous,
		Cardinality:  Many,
		InstanceID:   instanceID,
		DomainTypeID: domainTypeID,
	}, ContractNone)
}

// Event builds a discrete-event type (payload-less in practice, but the
// algebra allows any payload to ride an event).
func Event() Type {
	return New(Bool, Unit{Tag: UnitNone}, Extent{Temporality: Discrete, Cardinality: One}, ContractNone)
}

// NewPayloadVar allocates a fresh payload variable to be resolved later.
func NewPayloadVar() Type {
	return Type{payloadVar: freshVarID()}
}

// NewPayloadVarID allocates a fresh payload variable id without wrapping it
// in a Type, for callers that need to stamp the same variable across
// several port types within one block instance's payload-generics group.
func NewPayloadVarID() int64 {
	return freshVarID()
}

// WithPayloadVarID builds a type carrying an existing payload variable id
// rather than allocating a fresh one.
func WithPayloadVarID(id int64, unit Unit, extent Extent, contract Contract) Type {
	return Type{payloadVar: id, Unit: unit, Extent: extent, Contract: contract}
}

// PayloadVarID returns t's payload variable id, or 0 if t carries a
// concrete payload.
func (t Type) PayloadVarID() int64 {
	return t.payloadVar
}

// IsPayloadVar reports whether the type's payload is still an unresolved
// inference variable.
func IsPayloadVar(t Type) bool {
	return t.payloadVar != 0 && !payloadResolved[find(t.payloadVar)]
}

// RequireInst asserts that an inference variable has been resolved,
// returning TypeMismatch-shaped information via ok=false otherwise.
func RequireInst(t Type, role string) (Payload, bool) {
	p, ok := ResolvedPayload(t)
	if !ok {
		return PayloadNone, false
	}
	return p, true
}

// --- payload variable union-find -----------------------------------------
//
// A minimal global union-find keyed by variable id, per I-T1: payload
// variables are identity-compared by a unique id and unify via union-find.
// This mirrors the teacher's small package-level mutable registries (e.g.
// cgra.sideNames) guarded by a mutex, scaled down to a parent map.

var (
	parent          = map[int64]int64{}
	payloadBindings = map[int64]Payload{}
	payloadResolved = map[int64]bool{}
)

func find(id int64) int64 {
	p, ok := parent[id]
	if !ok || p == id {
		parent[id] = id
		return id
	}
	root := find(p)
	parent[id] = root
	return root
}

func union(a, b int64) {
	ra, rb := find(a), find(b)
	if ra == rb {
		return
	}
	parent[ra] = rb
	// carry forward any existing binding.
	if r, ok := payloadResolved[ra]; ok && r {
		payloadBindings[rb] = payloadBindings[ra]
		payloadResolved[rb] = true
	}
}

func bind(id int64, p Payload) {
	root := find(id)
	payloadBindings[root] = p
	payloadResolved[root] = true
}

// ResolvedPayload returns the concrete payload for t, following variable
// bindings if necessary.
func ResolvedPayload(t Type) (Payload, bool) {
	if t.payloadVar == 0 {
		return t.Payload, true
	}
	root := find(t.payloadVar)
	if payloadResolved[root] {
		return payloadBindings[root], true
	}
	return PayloadNone, false
}

// ResetVariables clears the global payload-variable union-find. Exposed so
// tests and independent `compile` calls never leak state into one another;
// the registry and topology registry remain append-only and persistent as
// per spec.md §5, but payload variables are per-compile scratch state.
func ResetVariables() {
	parent = map[int64]int64{}
	payloadBindings = map[int64]Payload{}
	payloadResolved = map[int64]bool{}
	cardParent = map[int64]int64{}
	cardBindings = map[int64]cardBinding{}
}

// UnifyPayload unifies two payload-bearing types in place, returning false
// (TypeMismatch) when both are concrete and differ.
func UnifyPayload(a, b Type) (Type, bool) {
	aConcrete := a.payloadVar == 0
	bConcrete := b.payloadVar == 0
	switch {
	case aConcrete && bConcrete:
		if a.Payload != b.Payload {
			return Type{}, false
		}
		return a, true
	case aConcrete && !bConcrete:
		bind(b.payloadVar, a.Payload)
		return a, true
	case !aConcrete && bConcrete:
		bind(a.payloadVar, b.Payload)
		return b, true
	default:
		union(a.payloadVar, b.payloadVar)
		if p, ok := ResolvedPayload(a); ok {
			return New(p, a.Unit, a.Extent, stricter(a.Contract, b.Contract)), true
		}
		return a, true
	}
}

// UnifyUnit unifies two units: tags must agree, and any substructure must
// agree; UnitNone acts as a neutral element.
func UnifyUnit(a, b Unit) (Unit, bool) {
	if a.Tag == UnitNone {
		return b, true
	}
	if b.Tag == UnitNone {
		return a, true
	}
	if a.Tag != b.Tag {
		return Unit{}, false
	}
	if a.Sub != "" && b.Sub != "" && a.Sub != b.Sub {
		return Unit{}, false
	}
	if a.Sub == "" {
		return b, true
	}
	return a, true
}

// UnifyExtent unifies two extents component-wise. many(i1,d1) unifies with
// many(i2,d2) iff i1==i2 and d1==d2.
func UnifyExtent(a, b Extent) (Extent, bool) {
	t, ok := unifyTemporality(a, b)
	if !ok {
		return Extent{}, false
	}
	c, inst, dom, ok := unifyCardinality(a, b)
	if !ok {
		return Extent{}, false
	}
	return Extent{Temporality: t, Cardinality: c, InstanceID: inst, DomainTypeID: dom}, true
}

func unifyTemporality(a, b Extent) (Temporality, bool) {
	switch {
	case a.Temporality == TemporalityVar:
		return b.Temporality, true
	case b.Temporality == TemporalityVar:
		return a.Temporality, true
	case a.Temporality == b.Temporality:
		return a.Temporality, true
	default:
		return 0, false
	}
}

func unifyCardinality(a, b Extent) (Cardinality, string, string, bool) {
	aVar := a.Cardinality == CardinalityVar
	bVar := b.Cardinality == CardinalityVar
	switch {
	case aVar && bVar:
		unionCard(a.cardinalityVar, b.cardinalityVar)
		if c, inst, dom, ok := ResolvedCardinality(a); ok {
			return c, inst, dom, true
		}
		return a.Cardinality, "", "", true
	case aVar && !bVar:
		bindCard(a.cardinalityVar, b.Cardinality, b.InstanceID, b.DomainTypeID)
		return b.Cardinality, b.InstanceID, b.DomainTypeID, true
	case !aVar && bVar:
		bindCard(b.cardinalityVar, a.Cardinality, a.InstanceID, a.DomainTypeID)
		return a.Cardinality, a.InstanceID, a.DomainTypeID, true
	case a.Cardinality == One && b.Cardinality == One:
		return One, "", "", true
	case a.Cardinality == Many && b.Cardinality == Many:
		if a.InstanceID != b.InstanceID || a.DomainTypeID != b.DomainTypeID {
			return 0, "", "", false
		}
		return Many, a.InstanceID, a.DomainTypeID, true
	default:
		return 0, "", "", false
	}
}

// Unify unifies two full canonical types, combining payload/unit/extent and
// taking the stricter contract. ok is false on TypeMismatch, UnitMismatch
// (via unit), or DomainMismatch/CardinalityMismatch (via extent) — callers
// are expected to classify failures using the more specific helpers below
// when producing diagnostics.
func Unify(a, b Type) (Type, bool) {
	p, ok := UnifyPayload(a, b)
	if !ok {
		return Type{}, false
	}
	u, ok := UnifyUnit(a.Unit, b.Unit)
	if !ok {
		return Type{}, false
	}
	e, ok := UnifyExtent(a.Extent, b.Extent)
	if !ok {
		return Type{}, false
	}
	p.Unit = u
	p.Extent = e
	p.Contract = stricter(a.Contract, b.Contract)
	return p, true
}

// SameDomain reports whether two many-cardinality extents belong to the
// same domain type (used to detect cross-domain zips, I-IR-adjacent).
func SameDomain(a, b Extent) bool {
	return a.DomainTypeID == b.DomainTypeID
}
