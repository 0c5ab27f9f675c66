// Package debugmap implements the debug mapping service (component C10):
// address<->slot resolution for a compiled program, the set of edges a
// recompile left unmapped (and why), and bounded sample-history ring
// buffers for whichever ports the debug UI is actively watching.
package debugmap

import (
	"sync"

	"github.com/sarchlab/patchc/cty"
	"github.com/sarchlab/patchc/debugidx"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/patch"
)

const (
	maxTrackedKeys = 32
	ringSize       = 128
)

// UnmappedReason explains why Rebuild could not map an edge to a slot.
type UnmappedReason string

const (
	ReasonBlockEliminated   UnmappedReason = "blockEliminated"
	ReasonPortNotFound      UnmappedReason = "portNotFound"
	ReasonSlotNotAllocated  UnmappedReason = "slotNotAllocated"
	ReasonDebugIndexMissing UnmappedReason = "debugIndexMissing"
)

// UnmappedEdge names one edge the last Rebuild could not resolve.
type UnmappedEdge struct {
	EdgeID string
	Reason UnmappedReason
}

// ring is a fixed-size FIFO sample buffer for one tracked address.
// writeIndex is the total number of samples ever pushed — monotonically
// unbounded, never wrapped — so "after N writes, writeIndex == N" holds for
// any N; push derives the physical storage index by taking it mod ringSize.
type ring struct {
	samples    [ringSize]float32
	writeIndex int
}

func (r *ring) push(v float32) {
	r.samples[((r.writeIndex%ringSize)+ringSize)%ringSize] = v
	r.writeIndex++
}

func (r *ring) filled() bool {
	return r.writeIndex >= ringSize
}

// Samples returns the ring's contents oldest-first.
func (r *ring) Samples() []float32 {
	if !r.filled() {
		return append([]float32{}, r.samples[:r.writeIndex]...)
	}
	start := r.writeIndex % ringSize
	out := make([]float32, 0, ringSize)
	out = append(out, r.samples[start:]...)
	out = append(out, r.samples[:start]...)
	return out
}

// ProgramSource supplies the patch and debug index a recompile produced.
// Service depends on this interface rather than calling the compiler
// package directly, so a watcher loop driving RebuildFrom can be tested
// against a mock recompile instead of a real one.
//
//go:generate mockgen -write_package_comment=false -package=debugmap -destination=mock_source_test.go github.com/sarchlab/patchc/debugmap ProgramSource
type ProgramSource interface {
	LoadPatch() (*patch.Patch, error)
	DebugIndex() *debugidx.Index
}

// RebuildFrom pulls a patch and index from src and rebuilds the mapping.
func (s *Service) RebuildFrom(src ProgramSource) error {
	p, err := src.LoadPatch()
	if err != nil {
		return err
	}
	s.Rebuild(p, src.DebugIndex())
	return nil
}

// Service maps patch addresses to slots and back, and maintains bounded
// sample history for the ports a debug client is watching. A single mutex
// guards it: the runtime's slot-write notifications and a debug client's
// requests are expected to interleave, and correctness matters more than
// write throughput here (this is diagnostic plumbing, not the hot tick
// path).
type Service struct {
	mu sync.Mutex

	edgeMap  map[string]ir.Slot  // edgeId -> slot its source output drives
	portMap  map[string]ir.Slot  // "blockId:portName" -> slot
	portType map[string]cty.Type // "blockId:portName" -> resolved output type
	unmapped []UnmappedEdge

	pinned        map[string]bool
	histories     map[string]*ring
	trackedStride map[string]int // last known stride per tracked address, for reset-on-stride-change
	trackedOrder  []string       // FIFO eviction order, oldest first
}

// NewService creates an empty mapping service; call Rebuild once a program
// has compiled before serving any requests.
func NewService() *Service {
	return &Service{
		edgeMap:       map[string]ir.Slot{},
		portMap:       map[string]ir.Slot{},
		portType:      map[string]cty.Type{},
		pinned:        map[string]bool{},
		histories:     map[string]*ring{},
		trackedStride: map[string]int{},
	}
}

// Rebuild replaces the address->slot mapping after a (re)compile. A tracked
// history whose address no longer resolves is retained, paused (no further
// samples land until the address resolves again), and reset only if the
// address's resolved stride actually changed. An edge whose destination
// block vanished is recorded as unmapped with ReasonBlockEliminated, and one
// whose source output never received an allocated slot with
// ReasonSlotNotAllocated; a vanished destination port is not detected
// separately.
func (s *Service) Rebuild(p *patch.Patch, idx *debugidx.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx == nil {
		s.unmapped = []UnmappedEdge{}
		for _, e := range p.Edges() {
			s.unmapped = append(s.unmapped, UnmappedEdge{EdgeID: e.ID, Reason: ReasonDebugIndexMissing})
		}
		return
	}

	s.edgeMap = map[string]ir.Slot{}
	s.portMap = map[string]ir.Slot{}
	s.portType = map[string]cty.Type{}
	s.unmapped = nil

	for slot, addr := range idx.SlotToPort {
		s.portMap[addr] = slot
	}
	for addr, t := range idx.PortType {
		s.portType[addr] = t
	}

	for _, e := range p.Edges() {
		if _, ok := idx.BlockMap[e.DestBlock]; !ok {
			s.unmapped = append(s.unmapped, UnmappedEdge{EdgeID: e.ID, Reason: ReasonBlockEliminated})
			continue
		}
		// Per spec.md §4.10, an edge's mapped slot is the one its source
		// output drives, not its destination input: portMap is keyed by
		// output-port addresses (built from SlotToPort, which only ever
		// holds output slots).
		srcAddr := patch.JoinAddress(e.SourceBlock, e.SourcePort)
		slot, ok := s.portMap[srcAddr]
		if !ok {
			s.unmapped = append(s.unmapped, UnmappedEdge{EdgeID: e.ID, Reason: ReasonSlotNotAllocated})
			continue
		}
		s.edgeMap[e.ID] = slot
	}

	for addr := range s.histories {
		t, hasType := s.portType[addr]
		if !hasType {
			// The address's slot disappeared entirely: leave the entry in
			// place, paused. OnSlotWrite only feeds a history whose address
			// still resolves in s.portMap, so it already stops advancing.
			delete(s.trackedStride, addr)
			continue
		}
		stride, ok := strideOfType(t)
		if !ok {
			continue
		}
		if prevStride, tracked := s.trackedStride[addr]; tracked && prevStride != stride {
			s.histories[addr] = &ring{}
		}
		s.trackedStride[addr] = stride
	}
}

func strideOfType(t cty.Type) (int, bool) {
	p, ok := cty.ResolvedPayload(t)
	if !ok {
		return 0, false
	}
	return cty.StrideOf(p), true
}

// isTrackable reports whether t is a sampleable scalar signal: not a field
// (spec.md §4.10 rejects shapes/fields), not bool, and stride 1.
func isTrackable(t cty.Type) bool {
	p, ok := cty.ResolvedPayload(t)
	if !ok || p == cty.Bool {
		return false
	}
	if cty.StrideOf(p) != 1 {
		return false
	}
	card, _, _, ok := cty.ResolvedCardinality(t.Extent)
	return ok && card == cty.One
}

// Track begins (or continues) recording sample history for address. When
// the tracked set is already at MAX_TRACKED_KEYS capacity, the oldest
// non-pinned tracked address is evicted first. An address whose resolved
// type is known and is not a sampleable stride-1, non-bool signal (a field,
// a bool, or a shape) is silently rejected (spec.md §4.10); an address with
// no resolved type yet (no compile has run, or it's not an output port at
// all) is accepted, since there is nothing concrete to reject against.
func (s *Service) Track(address string, pinned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.histories[address]; exists {
		s.pinned[address] = s.pinned[address] || pinned
		return
	}
	if t, known := s.portType[address]; known && !isTrackable(t) {
		return
	}
	if len(s.trackedOrder) >= maxTrackedKeys {
		s.evictOldestLocked()
	}
	s.histories[address] = &ring{}
	s.pinned[address] = pinned
	s.trackedOrder = append(s.trackedOrder, address)
}

// Untrack stops recording history for address.
func (s *Service) Untrack(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, address)
	delete(s.pinned, address)
	delete(s.trackedStride, address)
	s.trackedOrder = removeString(s.trackedOrder, address)
}

func (s *Service) evictOldestLocked() {
	for i, addr := range s.trackedOrder {
		if s.pinned[addr] {
			continue
		}
		delete(s.histories, addr)
		delete(s.pinned, addr)
		delete(s.trackedStride, addr)
		s.trackedOrder = append(s.trackedOrder[:i], s.trackedOrder[i+1:]...)
		return
	}
	// Every tracked address is pinned: evict the oldest anyway so a
	// pathological client can't pin its way out of the cap.
	addr := s.trackedOrder[0]
	delete(s.histories, addr)
	delete(s.pinned, addr)
	delete(s.trackedStride, addr)
	s.trackedOrder = s.trackedOrder[1:]
}

// OnSlotWrite records one tick's sample for every tracked address currently
// mapped to slot. The runtime calls this once per written slot per tick;
// each call scans every tracked address and compares its mapped slot.
func (s *Service) OnSlotWrite(slot ir.Slot, value float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, r := range s.histories {
		if mapped, ok := s.portMap[addr]; ok && mapped == slot {
			r.push(value)
		}
	}
}

// History returns the recorded samples for address, oldest first.
func (s *Service) History(address string) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.histories[address]
	if !ok {
		return nil, false
	}
	return r.Samples(), true
}

// UnmappedEdges returns every edge the last Rebuild could not map to a slot.
func (s *Service) UnmappedEdges() []UnmappedEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]UnmappedEdge{}, s.unmapped...)
}

// SlotForAddress resolves a "blockId:portName" address to its slot.
func (s *Service) SlotForAddress(address string) (ir.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.portMap[address]
	return slot, ok
}

// SlotForEdge resolves an edge id to the slot its source output drives.
func (s *Service) SlotForEdge(edgeID string) (ir.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.edgeMap[edgeID]
	return slot, ok
}

func removeString(xs []string, target string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != target {
			out = append(out, x)
		}
	}
	return out
}
