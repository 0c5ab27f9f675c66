// Package registry implements the block registry (component C3): block
// definitions, registration-time validation, and capability/cardinality
// metadata.
//
// Per spec.md §9's "global registry" rewrite note, definitions live in an
// explicit Registry value created at program start (e.g. in
// compiler.DefaultOptions or a test's setup) and passed through, rather than a process-wide mutable
// map populated by import-for-side-effects init() functions the way the
// teacher's instr.ISA / defaultISA pattern does it.
package registry

import (
	"fmt"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/topology"
)

// Capability gates scheduler decisions.
type Capability string

const (
	CapPure     Capability = "pure"
	CapIdentity Capability = "identity"
	CapState    Capability = "state"
	CapTime     Capability = "time"
	CapRender   Capability = "render"
	CapIO       Capability = "io"
)

// Form distinguishes primitive blocks from macros that re-expand before
// lowering.
type Form string

const (
	FormPrimitive Form = "primitive"
	FormMacro     Form = "macro"
)

// CardinalityMode constrains which extents a block's ports may carry.
type CardinalityMode string

const (
	CardinalityPreserve   CardinalityMode = "preserve"
	CardinalitySignalOnly CardinalityMode = "signalOnly"
	CardinalityFieldOnly  CardinalityMode = "fieldOnly"
)

// LaneCoupling distinguishes lane-local computation from cross-lane.
type LaneCoupling string

const (
	LaneLocal LaneCoupling = "laneLocal"
	CrossLane LaneCoupling = "crossLane"
)

// BroadcastPolicy controls whether a signal may be zipped against a field.
type BroadcastPolicy string

const (
	AllowZipSig       BroadcastPolicy = "allowZipSig"
	DisallowSignalMix BroadcastPolicy = "disallowSignalMix"
)

// Cardinality is the block-level cardinality metadata of spec.md §3.4.
type Cardinality struct {
	Mode            CardinalityMode
	LaneCoupling    LaneCoupling
	BroadcastPolicy BroadcastPolicy
}

// PayloadSemantics describes how a payload-generic block treats its
// payload-linked ports.
type PayloadSemantics string

const (
	SemanticsComponentwise PayloadSemantics = "componentwise"
)

// PayloadGenerics describes payload-genericity across a set of ports.
type PayloadGenerics struct {
	// AllowedPayloads maps a port name to the set of payloads it accepts;
	// all ports sharing a generics group bind to the same concrete payload
	// at solve time.
	AllowedPayloads map[string][]cty.Payload
	Semantics       PayloadSemantics
}

// DefaultSourceKind distinguishes the two default-source flavors Pass 1
// may insert.
type DefaultSourceKind string

const (
	DefaultConst     DefaultSourceKind = "const"
	DefaultTimeRoot  DefaultSourceKind = "time-root-phase"
)

// UIHint is opaque editor metadata; the compiler never interprets it.
type UIHint map[string]any

// InputDef describes one input port.
type InputDef struct {
	Type            cty.Type
	Optional        bool
	HasDefaultSource bool
	DefaultSource   DefaultSourceKind
	DefaultValue    float64
	UIHint          UIHint
	ExposedAsPort   bool
	IsVararg        bool
	VarargConstraint VarargConstraint
}

// VarargConstraint bounds a vararg port's accepted connections.
type VarargConstraint struct {
	PayloadType           cty.Payload
	CardinalityConstraint CardinalityMode // SignalOnly or FieldOnly ("field"/"signal" in spec prose)
	Min, Max              int             // Max == 0 means unbounded
}

// OutputDef describes one output port. Output ports never declare a
// default source (enforced at registration).
type OutputDef struct {
	Type cty.Type
}

// Effects is the declarative handshake a block's lower() may return
// alongside its outputs (spec.md §4.7).
type Effects struct {
	SlotRequests  []SlotRequest
	EvalRequests  []EvalRequest
	StridedWrites []StridedWrite // reserved, preferred purely-functional path
}

// SlotRequest asks the driver to allocate a slot for a port's output.
type SlotRequest struct {
	PortID string
	Type   cty.Type
}

// EvalRequest forces a step that materializes an expression even with no
// downstream reader (used by sink blocks).
type EvalRequest struct {
	Expr ir.ExprID
}

// StridedWrite is the purely-functional alternative to the imperative
// Builder.StepSlotWriteStrided.
type StridedWrite struct {
	Slot       ir.Slot
	Components []ir.ExprID
}

// LowerCtx holds everything a block's lower() needs beyond its own inputs.
type LowerCtx struct {
	Builder          *ir.Builder
	BlockIndex       int
	BlockType        string
	InstanceID       string
	InputTypes       map[string]cty.Type
	OutputTypes      map[string]cty.Type
	InferredInstance ir.InstanceID
	HasInstance      bool
	Topology         *topology.Registry
}

// LowerInputs is what a block's lower() receives: positional/named inputs
// plus config. Vararg ports resolve to an ordered slice of ValueRef.
type LowerInputs struct {
	ByID       map[string]ir.ValueRef
	VarargByID map[string][]ir.ValueRef
	Config     map[string]any
}

// LowerResult is what a block's lower() returns.
type LowerResult struct {
	OutputsByID      map[string]ir.ValueRef
	Effects          Effects
	InstanceContext  ir.InstanceID
	HasInstanceCtx   bool
}

// LowerFunc is the only block-specific logic a BlockDef carries.
type LowerFunc func(ctx LowerCtx, in LowerInputs) (LowerResult, error)

// Def is a block definition (spec.md §3.4).
type Def struct {
	Type        string
	Label       string
	Category    string
	Description string
	Form        Form
	Capability  Capability
	Cardinality Cardinality
	Payload     *PayloadGenerics
	Inputs      map[string]InputDef
	Outputs     map[string]OutputDef
	Lower       LowerFunc

	// ConfigPayload binds a block's payload-generics group directly from
	// its config, for blocks like Const whose output type is chosen by the
	// patch author rather than inferred from a connected edge. ok is false
	// when config does not pin down a payload (the solver then falls back
	// to edge-based unification).
	ConfigPayload func(config map[string]any) (cty.Payload, bool)
}

// IsVarargInput reports whether def declares at least one vararg input.
func IsVarargInput(def Def) bool {
	for _, in := range def.Inputs {
		if in.IsVararg {
			return true
		}
	}
	return false
}

// Registry is the process-wide-in-spirit, but explicitly constructed and
// passed-through, block catalog.
type Registry struct {
	defs map[string]Def
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]Def)}
}

// Options configures RegisterBlock.
type Options struct {
	AllowOverride bool
}

// RegisterBlock validates and adds a block definition. Duplicate Type
// replaces silently only when Options.AllowOverride is set; otherwise it is
// a DuplicateRegistration error. Any other violation is RegistryInvalid.
func (r *Registry) RegisterBlock(def Def, opts Options) error {
	if _, exists := r.defs[def.Type]; exists && !opts.AllowOverride {
		return fmt.Errorf("registry: duplicate registration for block type %q: %w", def.Type, errDuplicateRegistration)
	}
	if err := validate(def); err != nil {
		return fmt.Errorf("registry: invalid block %q: %w", def.Type, err)
	}
	r.defs[def.Type] = def
	return nil
}

var (
	errDuplicateRegistration = fmt.Errorf("DuplicateRegistration")
	errRegistryInvalid       = fmt.Errorf("RegistryInvalid")
)

// IsDuplicateRegistration reports whether err originated from a duplicate
// registration attempt.
func IsDuplicateRegistration(err error) bool {
	return err != nil && isWrapped(err, errDuplicateRegistration)
}

// IsRegistryInvalid reports whether err originated from a registration
// validation failure.
func IsRegistryInvalid(err error) bool {
	return err != nil && isWrapped(err, errRegistryInvalid)
}

func isWrapped(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func validate(def Def) error {
	for name, out := range def.Outputs {
		_ = name
		_ = out // output ports carry no DefaultSource field at all: the
		// type system itself enforces this invariant, nothing to check.
	}

	for name, in := range def.Inputs {
		if in.IsVararg {
			if in.VarargConstraint == (VarargConstraint{}) {
				return fmt.Errorf("vararg input %q missing varargConstraint: %w", name, errRegistryInvalid)
			}
			if in.HasDefaultSource {
				return fmt.Errorf("vararg input %q must not declare a defaultSource: %w", name, errRegistryInvalid)
			}
		}
	}

	if def.Cardinality.Mode == CardinalityFieldOnly || def.Cardinality.Mode == CardinalitySignalOnly {
		// Symmetric check: a fieldOnly/signalOnly block's ports must not
		// contradict the block-level mode via an incompatible per-port
		// vararg constraint.
		for name, in := range def.Inputs {
			if !in.IsVararg {
				continue
			}
			if def.Cardinality.Mode == CardinalityFieldOnly && in.VarargConstraint.CardinalityConstraint == CardinalitySignalOnly {
				return fmt.Errorf("input %q declares signalOnly on a fieldOnly block: %w", name, errRegistryInvalid)
			}
			if def.Cardinality.Mode == CardinalitySignalOnly && in.VarargConstraint.CardinalityConstraint == CardinalityFieldOnly {
				return fmt.Errorf("input %q declares fieldOnly on a signalOnly block: %w", name, errRegistryInvalid)
			}
		}
	}

	if def.Payload != nil {
		for port := range def.Payload.AllowedPayloads {
			if _, ok := def.Inputs[port]; ok {
				continue
			}
			if _, ok := def.Outputs[port]; ok {
				continue
			}
			return fmt.Errorf("payload.allowedPayloads references undeclared port %q: %w", port, errRegistryInvalid)
		}
	}

	return nil
}

// GetBlockDefinition looks up a block type, returning ok=false if absent.
func (r *Registry) GetBlockDefinition(blockType string) (Def, bool) {
	d, ok := r.defs[blockType]
	return d, ok
}

// RequireBlockDef looks up a block type, panicking if absent: used only by
// internal callers that have already validated the type exists (e.g. after
// a patch block's type was checked against GetAllBlockTypes).
func (r *Registry) RequireBlockDef(blockType string) Def {
	d, ok := r.defs[blockType]
	if !ok {
		panic("registry: unknown block type " + blockType)
	}
	return d
}

// GetAllBlockTypes returns every registered block type.
func (r *Registry) GetAllBlockTypes() []string {
	out := make([]string, 0, len(r.defs))
	for t := range r.defs {
		out = append(out, t)
	}
	return out
}

// GetBlockTypesByCategory returns every registered block type in the given
// category.
func (r *Registry) GetBlockTypesByCategory(category string) []string {
	var out []string
	for t, d := range r.defs {
		if d.Category == category {
			out = append(out, t)
		}
	}
	return out
}
