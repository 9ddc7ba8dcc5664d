package policy

import (
	"github.com/golang/glog"

	"github.com/tetratelabs/regalloc"
)

// StackSpiller is a regalloc.Spiller which gives each spilled virtual register a stack slot. A slot is shared by
// spilled registers of the same class whose live ranges don't overlap.
type StackSpiller struct {
	slots  []stackSlot
	slotOf map[regalloc.VReg]int
}

// stackSlot is the union of the live ranges of the registers spilled to one slot.
type stackSlot struct {
	class    regalloc.RegClass
	occupied *regalloc.LiveRange
}

var _ regalloc.Spiller = (*StackSpiller)(nil)

// NewStackSpiller returns a StackSpiller without any slot.
func NewStackSpiller() *StackSpiller {
	return &StackSpiller{slotOf: make(map[regalloc.VReg]int)}
}

// Spill implements regalloc.Spiller. The returned reloads cover the use and def points of lr, one live range
// per run of consecutive points.
func (s *StackSpiller) Spill(a *regalloc.Allocator, lr *regalloc.LiveRange) []*regalloc.LiveRange {
	slot := s.assignSlot(lr)
	if glog.V(5) {
		glog.Infof("%s spilled to slot %d", lr, slot)
	}

	var reloads []*regalloc.LiveRange
	var cur *regalloc.LiveRange
	for _, u := range lr.Uses {
		if cur != nil && cur.End() == u {
			cur.AddSegment(regalloc.Segment{Start: u, End: u + 1})
			cur.AddUse(u)
			continue
		}
		cur = regalloc.NewLiveRange(a.NewVReg(lr.V.RegClass()), regalloc.Segment{Start: u, End: u + 1})
		cur.Parent, cur.Weight, cur.Hint = lr.V, regalloc.Unspillable, lr.Hint
		cur.AddUse(u)
		reloads = append(reloads, cur)
	}
	return reloads
}

func (s *StackSpiller) assignSlot(lr *regalloc.LiveRange) int {
	class := lr.V.RegClass()
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.class != class || slot.occupied.Overlaps(lr) {
			continue
		}
		for _, seg := range lr.Segments {
			slot.occupied.AddSegment(seg)
		}
		s.slotOf[lr.V] = i
		return i
	}
	s.slots = append(s.slots, stackSlot{class: class, occupied: regalloc.NewLiveRange(lr.V, lr.Segments...)})
	s.slotOf[lr.V] = len(s.slots) - 1
	return len(s.slots) - 1
}

// Slot returns the stack slot of the spilled virtual register v.
func (s *StackSpiller) Slot(v regalloc.VReg) (slot int, ok bool) {
	slot, ok = s.slotOf[v]
	return
}

// NumSlots returns the number of stack slots used so far.
func (s *StackSpiller) NumSlots() int {
	return len(s.slots)
}

// Reset drops every slot so that the spiller can be reused for another function.
func (s *StackSpiller) Reset() {
	s.slots = s.slots[:0]
	for v := range s.slotOf {
		delete(s.slotOf, v)
	}
}
