package regalloc

import (
	"fmt"
	"sort"
	"strings"
)

// Result is the outcome of one allocation pass, consumed by the code emission.
type Result struct {
	info        *RegisterInfo
	assignments []Assignment
	// Spilled are the virtual registers which live in memory, in the order they were spilled.
	Spilled []VReg
	// Split are the virtual registers which were replaced by smaller pieces, in the order they were split.
	Split []VReg
	// LiveIns maps a block ID to the RealReg(s) which are live at the start of the block.
	LiveIns map[int]RegSet
	// UsedRegs are the RealReg(s) assigned to at least one virtual register.
	UsedRegs RegSet
	// CalleeSavedUsed are the callee-saved RealReg(s) which are written by the function, directly or through an
	// alias, in ascending order.
	CalleeSavedUsed []RealReg
}

// AssignmentOf returns the final entry of the register map for v.
func (r *Result) AssignmentOf(v VReg) Assignment {
	if int(v.ID()) >= len(r.assignments) {
		return Assignment{}
	}
	return r.assignments[v.ID()]
}

// NumVRegs returns the size of the register map, i.e. one more than the largest VRegID seen.
func (r *Result) NumVRegs() int {
	return len(r.assignments)
}

// String implements fmt.Stringer for debugging.
func (r *Result) String() string {
	var buf strings.Builder
	for id, a := range r.assignments {
		if !a.Assigned() {
			continue
		}
		fmt.Fprintf(&buf, "v%d -> %s\n", id, r.info.RealRegName(a.Reg))
	}
	for _, v := range r.Spilled {
		fmt.Fprintf(&buf, "v%d -> spilled\n", v.ID())
	}
	return buf.String()
}

func (a *Allocator) result() *Result {
	ret := &Result{
		info:        a.regInfo,
		assignments: make([]Assignment, len(a.vregs)),
		Spilled:     append([]VReg(nil), a.spilled...),
		Split:       append([]VReg(nil), a.split...),
		LiveIns:     a.AddLiveIns(),
	}
	for i := range a.vregs {
		asg := a.vregs[i].assignment
		ret.assignments[i] = asg
		if asg.Assigned() {
			ret.UsedRegs = ret.UsedRegs.Add(asg.Reg)
		}
	}
	ret.CalleeSavedUsed = a.calleeSavedUsed(ret.UsedRegs)
	return ret
}

// calleeSavedUsed returns the callee-saved registers overlapping with any of used. Writing to a narrow register
// clobbers the callee-saved wide register it is part of.
func (a *Allocator) calleeSavedUsed(used RegSet) []RealReg {
	var clobbered RegSet
	used.Range(func(r RealReg) {
		if a.regInfo.IsCalleeSaved(r) {
			clobbered = clobbered.Add(r)
		}
		a.regInfo.AliasesOf(r).Range(func(alias RealReg) {
			if a.regInfo.IsCalleeSaved(alias) {
				clobbered = clobbered.Add(alias)
			}
		})
	})
	// In order to make the output deterministic, it's sorted, which RegSet.Slice already is.
	return clobbered.Slice()
}

// AddLiveIns returns, for each block of the Liveness, the RealReg(s) which are live at its start: a RealReg is
// live-in when a segment of a virtual register assigned to it covers the start point of the block. Reload ranges
// of spilled virtual registers are not live-in.
func (a *Allocator) AddLiveIns() map[int]RegSet {
	ret := make(map[int]RegSet)
	if a.liveness == nil {
		return ret
	}
	blocks := append([]BlockBoundary(nil), a.liveness.Blocks()...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })
	for _, b := range blocks {
		ret[b.ID] = RegSet{}
	}

	for i := range a.vregs {
		s := &a.vregs[i]
		if !s.assignment.Assigned() || s.lr == nil {
			continue
		}
		if s.lr.Parent != s.lr.V && !s.lr.Spillable() {
			// A reload is defined inside its block, even at the block's first instruction.
			continue
		}
		r := s.assignment.Reg
		for _, seg := range s.lr.Segments {
			// The first block starting at or after the segment.
			j := sort.Search(len(blocks), func(j int) bool { return blocks[j].Start >= seg.Start })
			for ; j < len(blocks) && blocks[j].Start < seg.End; j++ {
				id := blocks[j].ID
				ret[id] = ret[id].Add(r)
			}
		}
	}
	return ret
}
