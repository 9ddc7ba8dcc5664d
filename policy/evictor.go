package policy

import (
	"github.com/golang/glog"

	"github.com/tetratelabs/regalloc"
)

// Evictor is a regalloc.Policy which tries, in this order, to:
//
//  1. evict the cheapest set of lighter live ranges which interfere on a RealReg of the class,
//  2. split the live range into one piece per segment,
//  3. spill the live range with Spiller.
//
// A live range which can neither evict, split nor spill fails the pass with regalloc.OutOfRegistersError.
type Evictor struct {
	// Spiller is used for the live ranges which can't be split anymore. Nil means nothing can be spilled.
	Spiller regalloc.Spiller

	candidates []regalloc.RealReg
	victims    []*regalloc.LiveRange
}

var _ regalloc.Policy = (*Evictor)(nil)

// NewEvictor returns an Evictor spilling through s.
func NewEvictor(s regalloc.Spiller) *Evictor {
	return &Evictor{Spiller: s}
}

// SelectOrSplit implements regalloc.Policy.
func (e *Evictor) SelectOrSplit(a *regalloc.Allocator, lr *regalloc.LiveRange) (regalloc.Decision, error) {
	if r, ok := e.evict(a, lr); ok {
		return regalloc.Assign(r), nil
	}

	if len(lr.Segments) > 1 {
		return regalloc.Split(splitPerSegment(a, lr)...), nil
	}

	if lr.Spillable() && e.Spiller != nil {
		if glog.V(5) {
			glog.Infof("spilling %s", lr)
		}
		return regalloc.Spilled(e.Spiller.Spill(a, lr)...), nil
	}
	return regalloc.Decision{}, &regalloc.OutOfRegistersError{V: lr.V, ClassName: a.Info().ClassName(lr.V.RegClass())}
}

// evict finds the RealReg whose interfering live ranges are all lighter than lr and have the least total weight,
// and evicts them. Returns false if there's no such RealReg.
func (e *Evictor) evict(a *regalloc.Allocator, lr *regalloc.LiveRange) (regalloc.RealReg, bool) {
	// AllocationOrder reuses its result, and Interferences may be called in between.
	e.candidates = append(e.candidates[:0], a.AllocationOrder(lr)...)

	best, bestCost := regalloc.RealRegInvalid, float32(0)
	for _, r := range e.candidates {
		if a.FixedInterference(lr, r) {
			continue
		}
		cost, ok := float32(0), true
		for _, v := range a.InterferingVRegs(lr, r) {
			w := a.LiveRangeOf(v).Weight
			if w >= lr.Weight {
				ok = false
				break
			}
			cost += w
		}
		if ok && (best == regalloc.RealRegInvalid || cost < bestCost) {
			best, bestCost = r, cost
		}
	}
	if best == regalloc.RealRegInvalid {
		return regalloc.RealRegInvalid, false
	}

	// Collect first since Unassign mutates the unions being queried.
	e.victims = e.victims[:0]
	for _, v := range a.InterferingVRegs(lr, best) {
		e.victims = append(e.victims, a.LiveRangeOf(v))
	}
	for _, victim := range e.victims {
		a.Unassign(victim)
		a.Requeue(victim)
		if glog.V(5) {
			glog.Infof("%s evicted %s", lr, victim)
		}
	}
	a.InvalidateAll()
	return best, true
}

// splitPerSegment returns one live range per segment of lr, each with the uses it covers.
func splitPerSegment(a *regalloc.Allocator, lr *regalloc.LiveRange) []*regalloc.LiveRange {
	pieces := make([]*regalloc.LiveRange, 0, len(lr.Segments))
	uses := lr.Uses
	for _, s := range lr.Segments {
		piece := regalloc.NewLiveRange(a.NewVReg(lr.V.RegClass()), s)
		piece.Parent, piece.Weight, piece.Hint = lr.V, lr.Weight, lr.Hint
		for len(uses) > 0 && uses[0] < s.End {
			if uses[0] >= s.Start {
				piece.Uses = append(piece.Uses, uses[0])
			}
			uses = uses[1:]
		}
		pieces = append(pieces, piece)
	}
	if glog.V(5) {
		glog.Infof("split %s into %d pieces", lr, len(pieces))
	}
	return pieces
}
