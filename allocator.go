// Package regalloc assigns physical registers to the live ranges of virtual registers. It keeps, for each physical
// register, the union of the live ranges currently assigned to it, so that checking a candidate for interference
// is a lookup instead of a rebuild of an interference graph. What to do with a live range which doesn't fit is
// decided by a pluggable Policy, see api.go.
package regalloc

// References:
// * https://llvm.org/docs/CodeGenerator.html#register-allocation
// * https://blog.llvm.org/2011/09/greedy-register-allocation-in-llvm-30.html
// * https://pfalcon.github.io/ssabook/latest/book-full.pdf: Chapter 9. for liveness analysis.

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/tetratelabs/regalloc/internal/contract"
	"github.com/tetratelabs/regalloc/internal/regallocapi"
)

// State is the phase of an Allocator.
type State byte

const (
	// StateIdle is the state of a new or Reset Allocator.
	StateIdle State = iota
	// StateSeeded means the worklist holds every virtual register of the function.
	StateSeeded
	// StateAllocating means the worklist is being drained.
	StateAllocating
	// StateDone means the worklist is empty, or the pass failed.
	StateDone
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeded:
		return "seeded"
	case StateAllocating:
		return "allocating"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Assignment is the entry of the register map for one virtual register.
type Assignment struct {
	// Reg is the RealReg the virtual register is assigned to, or RealRegInvalid.
	Reg RealReg
	// Spilled is true if the virtual register lives in memory.
	Spilled bool
}

// Assigned returns true if the virtual register is assigned to a RealReg.
func (a Assignment) Assigned() bool {
	return a.Reg != RealRegInvalid
}

// String implements fmt.Stringer.
func (a Assignment) String() string {
	switch {
	case a.Assigned():
		return a.Reg.String()
	case a.Spilled:
		return "spilled"
	default:
		return "unassigned"
	}
}

// Stats counts the interference probes of an Allocator since the last Reset.
type Stats struct {
	// Probes is the number of interval unions probed for interference.
	Probes int
	// Scans is the number of probes which had to walk an interval union.
	Scans int
	// CacheHits is the number of probes answered from the query cache.
	CacheHits int
	// Invalidations is the number of InvalidateAll calls.
	Invalidations int
	// Rounds is the number of Policy.SelectOrSplit calls.
	Rounds int
}

type (
	// Allocator is a register allocator. It is not safe for concurrent use, and is reusable across functions
	// after Reset.
	Allocator struct {
		// regInfo is static per ABI/ISA.
		regInfo *RegisterInfo
		cfg     *Config
		// classSets holds the allocatable registers of each class as a RegSet, indexed by RegClass.
		classSets []RegSet

		// unions and queries are indexed by RealReg, and sized to the register file once.
		unions  []intervalUnion
		queries []query
		// fixed holds the live range of each pre-colored register, indexed by RealReg.
		fixed []*LiveRange
		// gen is bumped by InvalidateAll, and invalidates every query at once.
		gen uint32

		// vregs is the register map, indexed by VRegID.
		vregs  []vregState
		nextID VRegID

		state    State
		mutating bool
		liveness Liveness
		queue    Queue
		policy   Policy
		spilled  []VReg
		split    []VReg
		stats    Stats

		// Followings are re-used during the allocation.
		order []RealReg
		ifs   []Interference
		vs    []VReg
	}

	// vregState is the per virtual register state of the Allocator.
	vregState struct {
		lr         *LiveRange
		assignment Assignment
		// family is the VRegID of the virtual register this one was split from, transitively.
		family VRegID
		// rounds counts the SelectOrSplit calls for the family, and is only maintained on the family root.
		rounds int
		known  bool
	}
)

// NewAllocator returns a new Allocator for the given target. cfg can be nil, which means NewConfig.
func NewAllocator(info *RegisterInfo, cfg *Config) *Allocator {
	if err := info.Validate(); err != nil {
		panic("BUG: invalid RegisterInfo: " + err.Error())
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	a := &Allocator{regInfo: info, cfg: cfg}

	numRegs := len(info.Aliases)
	a.classSets = make([]RegSet, len(info.AllocatableRegisters))
	for c, regs := range info.AllocatableRegisters {
		for _, r := range regs {
			a.classSets[c] = a.classSets[c].Add(r)
			if int(r) >= numRegs {
				numRegs = int(r) + 1
			}
		}
	}
	a.unions = make([]intervalUnion, numRegs)
	for i := range a.unions {
		a.unions[i].init()
	}
	a.queries = make([]query, numRegs)
	a.fixed = make([]*LiveRange, numRegs)
	a.nextID = VRegIDNonReservedBegin
	return a
}

// Info returns the RegisterInfo of the target.
func (a *Allocator) Info() *RegisterInfo {
	return a.regInfo
}

// State returns the current phase of the Allocator.
func (a *Allocator) State() State {
	return a.state
}

// Stats returns the probe counters since the last Reset.
func (a *Allocator) Stats() Stats {
	return a.stats
}

// Allocate seeds the worklist q with the live ranges of l, and drains it. See Seed and Run.
func (a *Allocator) Allocate(l Liveness, q Queue, p Policy) (*Result, error) {
	if err := a.Seed(l, q); err != nil {
		return nil, err
	}
	return a.Run(p)
}

// Seed loads every live range of l which needs a register into the worklist q. The order of the worklist is
// decided by q.
func (a *Allocator) Seed(l Liveness, q Queue) error {
	contract.Requiref(a.state == StateIdle, "a", "Seed called in state %s, Reset must be called first", a.state)
	a.liveness, a.queue = l, q

	for _, lr := range l.FixedRanges() {
		contract.Requiref(lr.V.IsRealReg(), "l", "fixed range of non real register %s", lr.V)
		r := lr.V.RealReg()
		if int(r) >= len(a.fixed) {
			// Neither allocatable nor aliased with an allocatable register.
			continue
		}
		merged := a.fixed[r]
		if merged == nil {
			merged = &LiveRange{V: lr.V, Parent: lr.V, Weight: Unspillable}
			a.fixed[r] = merged
		}
		for _, s := range lr.Segments {
			merged.AddSegment(s)
		}
	}

	for _, lr := range l.LiveRanges() {
		v := lr.V
		contract.Requiref(!v.IsRealReg() && v.Valid(), "l", "%s is not a virtual register", v)
		contract.Requiref(v.ID() >= VRegIDNonReservedBegin, "l", "%s uses a reserved id", v)
		if regallocapi.RegAllocValidationEnabled {
			if err := lr.Validate(); err != nil {
				contract.Failf("invalid live range: %v", err)
			}
		}
		if int(v.RegClass()) >= len(a.classSets) {
			return &OutOfRegistersError{V: v, ClassName: a.regInfo.ClassName(v.RegClass())}
		}
		s := a.vregState(v)
		contract.Requiref(!s.known, "l", "%s has more than one live range", v)
		s.known, s.lr, s.family = true, lr, v.ID()
		if id := v.ID(); id >= a.nextID {
			a.nextID = id + 1
		}
		if lr.Empty() {
			// Nothing to allocate, e.g. the value is never used.
			continue
		}
		q.Enqueue(lr)
	}
	a.state = StateSeeded
	if glog.V(5) {
		glog.Infof("seeded %d live ranges", q.Len())
	}
	return nil
}

// Run drains the worklist filled by Seed: each live range is assigned to the first free RealReg of its class
// in allocation order, or handed to p when all of them interfere.
func (a *Allocator) Run(p Policy) (*Result, error) {
	contract.Requiref(a.state == StateSeeded, "a", "Run called in state %s, Seed must be called first", a.state)
	a.policy = p
	a.state = StateAllocating
	defer func() {
		a.state = StateDone
		a.policy = nil
	}()

	for lr := a.queue.Dequeue(); lr != nil; lr = a.queue.Dequeue() {
		if err := a.allocate(lr); err != nil {
			return nil, err
		}
	}

	if a.cfg.verify {
		if err := a.Verify(); err != nil {
			return nil, errors.Wrap(err, "verify")
		}
	}
	return a.result(), nil
}

func (a *Allocator) allocate(lr *LiveRange) error {
	s := a.vregState(lr.V)
	contract.Assertf(s.known && s.lr == lr, "dequeued %s which was never enqueued", lr.V)
	contract.Assertf(!s.assignment.Assigned() && !s.assignment.Spilled, "dequeued %s which is already %s", lr.V, s.assignment)

	class := lr.V.RegClass()
	if len(a.regInfo.AllocatableRegisters[class]) == 0 {
		return &OutOfRegistersError{V: lr.V, ClassName: a.regInfo.ClassName(class)}
	}

	for _, r := range a.AllocationOrder(lr) {
		if a.CheckPhysRegInterference(lr, r) == RealRegInvalid {
			if glog.V(5) {
				glog.Infof("%s: free %s", lr, a.regInfo.RealRegName(r))
			}
			a.Assign(lr, r)
			return nil
		}
	}

	if err := a.countRound(lr); err != nil {
		return err
	}
	d, err := a.policy.SelectOrSplit(a, lr)
	if err != nil {
		return errors.Wrapf(err, "allocating %s", lr.V)
	}
	if glog.V(5) {
		glog.Infof("%s: policy decided to %s", lr, d.Kind)
	}
	// The policy may have created virtual registers, which moves the register map.
	s = a.vregState(lr.V)
	if regallocapi.RegAllocLoggingEnabled {
		fmt.Printf("%s: %s %v\n", lr, d.Kind, d.LiveRanges)
	}

	switch d.Kind {
	case DecisionAssign:
		if r := a.CheckPhysRegInterference(lr, d.Reg); r != RealRegInvalid {
			contract.Failf("policy assigned %s to %s which still interferes on %s",
				lr.V, a.regInfo.RealRegName(d.Reg), a.regInfo.RealRegName(r))
		}
		a.Assign(lr, d.Reg)
	case DecisionSplit:
		contract.Assertf(len(d.LiveRanges) > 0, "policy split %s into nothing", lr.V)
		for _, piece := range d.LiveRanges {
			contract.Assertf(piece.Size() <= lr.Size(), "split piece %s is larger than %s", piece, lr)
			a.Requeue(piece)
		}
		a.vregState(lr.V).lr = nil
		a.split = append(a.split, lr.V)
	case DecisionSpill:
		s.assignment = Assignment{Spilled: true}
		s.lr = nil
		a.spilled = append(a.spilled, lr.V)
		for _, reload := range d.LiveRanges {
			contract.Assertf(!reload.Spillable(), "reload %s of spilled %s is spillable", reload, lr.V)
			a.Requeue(reload)
		}
	default:
		contract.Failf("invalid decision %s for %s", d.Kind, lr.V)
	}
	return nil
}

// countRound records one SelectOrSplit call for the split family of lr.
func (a *Allocator) countRound(lr *LiveRange) error {
	a.stats.Rounds++
	root := a.vregStateByID(a.vregState(lr.V).family)
	root.rounds++
	max := a.cfg.maxRounds
	if max == 0 && regallocapi.RegAllocValidationEnabled {
		max = regallocapi.DefaultMaxRounds
	}
	if max > 0 && root.rounds > max {
		return &InternalError{V: lr.V, Msg: fmt.Sprintf("gave up after %d rounds of split or evict", root.rounds-1)}
	}
	return nil
}

// AllocationOrder returns the RealReg(s) of the class of lr in the order they are tried: the hint first, then
// the order of RegisterInfo.AllocatableRegisters. The returned slice is reused by the next call.
func (a *Allocator) AllocationOrder(lr *LiveRange) []RealReg {
	class := lr.V.RegClass()
	regs := a.regInfo.AllocatableRegisters[class]
	h := lr.Hint
	if h == RealRegInvalid || len(regs) == 0 || !a.classSets[class].Has(h) || regs[0] == h {
		return regs
	}
	order := append(a.order[:0], h)
	for _, r := range regs {
		if r != h {
			order = append(order, r)
		}
	}
	a.order = order
	return order
}

// Assign inserts lr into the interval union of r, and records r in the register map.
// lr must be unassigned, and must not interfere on r.
func (a *Allocator) Assign(lr *LiveRange, r RealReg) {
	a.enter("Assign")
	defer a.exit()
	v := lr.V
	contract.Requiref(!v.IsRealReg(), "lr", "%s is a real register", v)
	contract.Requiref(a.classSets[v.RegClass()].Has(r), "r", "%s is not allocatable for %s",
		a.regInfo.RealRegName(r), a.regInfo.ClassName(v.RegClass()))
	s := a.vregState(v)
	contract.Assertf(!s.assignment.Assigned(), "assigning %s to %s while it's assigned to %s",
		v, a.regInfo.RealRegName(r), a.regInfo.RealRegName(s.assignment.Reg))
	if regallocapi.RegAllocValidationEnabled {
		a.regInfo.AliasesOf(r).Range(func(alias RealReg) {
			contract.Assertf(!a.unions[alias].overlaps(lr), "assigning %s to %s interferes on %s",
				v, a.regInfo.RealRegName(r), a.regInfo.RealRegName(alias))
		})
		contract.Assertf(!a.FixedInterference(lr, r), "assigning %s to %s overlaps a pre-colored register",
			v, a.regInfo.RealRegName(r))
	}

	a.unions[r].insert(lr)
	s.known, s.lr = true, lr
	s.assignment = Assignment{Reg: r}
	if s.family == 0 {
		s.family = v.ID()
	}
}

// Unassign removes lr from the interval union of the RealReg it is assigned to, and returns that RealReg.
// This can be called by a Policy on any virtual register to evict it, but a Policy which does so must call
// InvalidateAll before probing for interference again.
func (a *Allocator) Unassign(lr *LiveRange) RealReg {
	a.enter("Unassign")
	defer a.exit()
	s := a.vregState(lr.V)
	contract.Assertf(s.assignment.Assigned(), "unassigning %s which is not assigned", lr.V)
	contract.Assertf(s.lr == lr, "unassigning %s with a live range which was not assigned", lr.V)
	r := s.assignment.Reg
	a.unions[r].remove(lr)
	s.assignment = Assignment{}
	if glog.V(5) {
		glog.Infof("%s: evicted from %s", lr, a.regInfo.RealRegName(r))
	}
	return r
}

func (a *Allocator) enter(op string) {
	if a.mutating {
		contract.Failf("reentrant call to %s", op)
	}
	a.mutating = true
}

func (a *Allocator) exit() {
	a.mutating = false
}

// Requeue adds lr back to the worklist. This is meant for policies, e.g. for the virtual registers they evicted,
// and can only be called while the Allocator is running.
func (a *Allocator) Requeue(lr *LiveRange) {
	contract.Requiref(a.state == StateAllocating, "a", "Requeue called in state %s", a.state)
	v := lr.V
	contract.Requiref(!v.IsRealReg() && v.ID() >= VRegIDNonReservedBegin, "lr", "%s is not a virtual register", v)
	s := a.vregState(v)
	contract.Assertf(!s.assignment.Assigned(), "requeueing %s which is assigned to %s", v, s.assignment)
	if !s.known {
		s.known = true
		s.family = a.familyOf(lr)
	}
	s.lr = lr
	a.queue.Enqueue(lr)
}

// familyOf returns the VRegID of the root of the split family of lr.
func (a *Allocator) familyOf(lr *LiveRange) VRegID {
	if p := lr.Parent; p != lr.V && p.Valid() && !p.IsRealReg() && int(p.ID()) < len(a.vregs) {
		if ps := a.vregStateByID(p.ID()); ps.known {
			return ps.family
		}
	}
	return lr.V.ID()
}

// CheckPhysRegInterference returns the first RealReg among r and its aliases on which lr interferes with either
// a pre-colored register or an assigned virtual register, or RealRegInvalid if r is free for lr.
func (a *Allocator) CheckPhysRegInterference(lr *LiveRange, r RealReg) RealReg {
	if a.interferesOn(lr, r) {
		return r
	}
	ret := RealRegInvalid
	a.regInfo.AliasesOf(r).Range(func(alias RealReg) {
		if ret == RealRegInvalid && a.interferesOn(lr, alias) {
			ret = alias
		}
	})
	return ret
}

func (a *Allocator) interferesOn(lr *LiveRange, r RealReg) bool {
	if f := a.fixed[r]; f != nil && f.Overlaps(lr) {
		return true
	}
	hit, scanned := a.query(lr, r).checkInterference()
	if scanned {
		a.stats.Scans++
	}
	return hit
}

// query returns the query of r bound to lr.
func (a *Allocator) query(lr *LiveRange, r RealReg) *query {
	q := &a.queries[r]
	a.stats.Probes++
	if q.init(a.gen, lr, &a.unions[r]) {
		a.stats.CacheHits++
	}
	return q
}

// FixedInterference returns true if lr overlaps with a pre-colored register on r or its aliases. Such interference
// can't be resolved by eviction.
func (a *Allocator) FixedInterference(lr *LiveRange, r RealReg) bool {
	if f := a.fixed[r]; f != nil && f.Overlaps(lr) {
		return true
	}
	ret := false
	a.regInfo.AliasesOf(r).Range(func(alias RealReg) {
		if f := a.fixed[alias]; f != nil && f.Overlaps(lr) {
			ret = true
		}
	})
	return ret
}

// Interferences returns the segments of the virtual registers assigned to r or its aliases which overlap lr.
func (a *Allocator) Interferences(lr *LiveRange, r RealReg) []Interference {
	ifs := a.ifs[:0]
	collect := func(r RealReg) {
		found, scanned := a.query(lr, r).collectInterferences()
		if scanned {
			a.stats.Scans++
		}
		ifs = append(ifs, found...)
	}
	collect(r)
	a.regInfo.AliasesOf(r).Range(collect)
	a.ifs = ifs[:0]
	return append([]Interference(nil), ifs...)
}

// InterferingVRegs returns the distinct virtual registers assigned to r or its aliases whose live range overlaps lr,
// in the order they are found.
func (a *Allocator) InterferingVRegs(lr *LiveRange, r RealReg) []VReg {
	vs := a.vs[:0]
	for _, i := range a.Interferences(lr, r) {
		dup := false
		for _, v := range vs {
			if v == i.Owner {
				dup = true
				break
			}
		}
		if !dup {
			vs = append(vs, i.Owner)
		}
	}
	a.vs = vs[:0]
	return append([]VReg(nil), vs...)
}

// InvalidateAll invalidates every cached query in O(1).
func (a *Allocator) InvalidateAll() {
	a.gen++
	a.stats.Invalidations++
}

// NewVReg returns a fresh virtual register of the given class, e.g. for the pieces of a split live range.
func (a *Allocator) NewVReg(class RegClass) VReg {
	contract.Requiref(int(class) < len(a.classSets), "class", "unknown class %d", class)
	id := a.nextID
	a.nextID++
	a.vregState(VReg(id))
	return VReg(id).SetRegClass(class)
}

// LiveRangeOf returns the live range of v known to the Allocator, or nil.
func (a *Allocator) LiveRangeOf(v VReg) *LiveRange {
	if int(v.ID()) >= len(a.vregs) {
		return nil
	}
	return a.vregs[v.ID()].lr
}

// AssignmentOf returns the entry of the register map for v.
func (a *Allocator) AssignmentOf(v VReg) Assignment {
	if int(v.ID()) >= len(a.vregs) {
		return Assignment{}
	}
	return a.vregs[v.ID()].assignment
}

func (a *Allocator) vregState(v VReg) *vregState {
	return a.vregStateByID(v.ID())
}

func (a *Allocator) vregStateByID(id VRegID) *vregState {
	if i := int(id); i >= len(a.vregs) {
		a.vregs = append(a.vregs, make([]vregState, i+1-len(a.vregs))...)
	}
	return &a.vregs[id]
}

// Reset empties the interval unions and the register map so that the Allocator can be reused for another function.
func (a *Allocator) Reset() {
	contract.Requiref(!a.mutating, "a", "Reset called during %s", "Assign or Unassign")
	for i := range a.unions {
		a.unions[i].clear()
		a.queries[i].reset()
		a.fixed[i] = nil
	}
	a.gen++
	for i := range a.vregs {
		a.vregs[i] = vregState{}
	}
	a.vregs = a.vregs[:0]
	a.nextID = VRegIDNonReservedBegin
	a.state = StateIdle
	a.liveness, a.queue, a.policy = nil, nil, nil
	a.spilled = a.spilled[:0]
	a.split = a.split[:0]
	a.stats = Stats{}
}

// String implements fmt.Stringer for debugging: one line per non-empty interval union.
func (a *Allocator) String() string {
	var ret string
	for i := range a.unions {
		if a.unions[i].empty() {
			continue
		}
		ret += fmt.Sprintf("%s: %s\n", a.regInfo.RealRegName(RealReg(i)), &a.unions[i])
	}
	return ret
}
