package regalloc

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/golang/glog"

	"github.com/tetratelabs/regalloc/internal/contract"
)

type (
	// intervalUnion holds the segments of every virtual register currently assigned to one RealReg.
	// Segments of the union never overlap, so they are keyed by their start in a red-black tree, and a lookup
	// only needs the floor of a point to find the one segment that may cover it.
	intervalUnion struct {
		tree *redblacktree.Tree
		// tag changes on every mutation, so that a cached query can tell whether the union changed since.
		tag uint32
	}

	// unionEntry is the value stored in intervalUnion.tree for a segment keyed by its start.
	unionEntry struct {
		end   ProgramPoint
		owner VReg
	}

	// Interference is a segment of an interval union which overlaps with a candidate live range.
	Interference struct {
		Segment
		Owner VReg
	}
)

// String implements fmt.Stringer.
func (i Interference) String() string {
	return fmt.Sprintf("%s@%s", i.Segment, i.Owner)
}

func comparePoints(a, b interface{}) int {
	pa, pb := a.(ProgramPoint), b.(ProgramPoint)
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}

func (u *intervalUnion) init() {
	u.tree = redblacktree.NewWith(comparePoints)
}

func (u *intervalUnion) clear() {
	u.tree.Clear()
	u.tag++
}

func (u *intervalUnion) empty() bool {
	return u.tree.Empty()
}

func (u *intervalUnion) len() int {
	return u.tree.Size()
}

// insert merges the segments of lr into the union, tagged with lr.V.
func (u *intervalUnion) insert(lr *LiveRange) {
	for _, s := range lr.Segments {
		if first := u.firstOverlap(s); first != nil {
			contract.Failf("inserting %s of %s overlaps [%d,%d) of %s", s, lr.V,
				first.Key.(ProgramPoint), first.Value.(unionEntry).end, first.Value.(unionEntry).owner)
		}
		u.tree.Put(s.Start, unionEntry{end: s.End, owner: lr.V})
	}
	u.tag++
	if glog.V(7) {
		glog.Infof("union insert %s: %d segments", lr, u.len())
	}
}

// remove removes exactly the segments previously inserted for lr.
func (u *intervalUnion) remove(lr *LiveRange) {
	for _, s := range lr.Segments {
		v, ok := u.tree.Get(s.Start)
		contract.Assertf(ok, "removing %s of %s which is not in the union", s, lr.V)
		e := v.(unionEntry)
		contract.Assertf(e.owner == lr.V && e.end == s.End,
			"removing %s of %s but the union has [%d,%d) of %s", s, lr.V, s.Start, e.end, e.owner)
		u.tree.Remove(s.Start)
	}
	u.tag++
	if glog.V(7) {
		glog.Infof("union remove %s: %d segments", lr, u.len())
	}
}

// firstOverlap returns the node of the first segment of the union which overlaps s, or nil.
func (u *intervalUnion) firstOverlap(s Segment) *redblacktree.Node {
	n := u.seek(s.Start)
	if n != nil && n.Key.(ProgramPoint) < s.End {
		return n
	}
	return nil
}

// seek returns the node of the first segment which ends after p, or nil if there's no such segment.
func (u *intervalUnion) seek(p ProgramPoint) *redblacktree.Node {
	n, found := u.tree.Floor(p)
	if !found {
		return u.tree.Left()
	}
	if n.Value.(unionEntry).end > p {
		return n
	}
	return successor(n)
}

// overlaps returns true if any segment of lr overlaps with the union. This short-circuits on the first hit.
func (u *intervalUnion) overlaps(lr *LiveRange) bool {
	if u.empty() {
		return false
	}
	for _, s := range lr.Segments {
		if u.firstOverlap(s) != nil {
			return true
		}
	}
	return false
}

// collect appends to dst every segment of the union overlapping lr, in program order, and returns it.
// If max is positive, it stops after max segments.
func (u *intervalUnion) collect(lr *LiveRange, max int, dst []Interference) []Interference {
	if u.empty() {
		return dst
	}
	var last ProgramPoint = -1 << 63
	for _, s := range lr.Segments {
		for n := u.seek(s.Start); n != nil; n = successor(n) {
			start := n.Key.(ProgramPoint)
			if start >= s.End {
				break
			}
			if start <= last {
				// Already collected for the previous segment of lr.
				continue
			}
			e := n.Value.(unionEntry)
			dst = append(dst, Interference{Segment: Segment{Start: start, End: e.end}, Owner: e.owner})
			last = start
			if max > 0 && len(dst) >= max {
				return dst
			}
		}
	}
	return dst
}

// segments returns every segment of the union in program order.
func (u *intervalUnion) segments() []Interference {
	ret := make([]Interference, 0, u.len())
	it := u.tree.Iterator()
	for it.Next() {
		e := it.Value().(unionEntry)
		ret = append(ret, Interference{Segment: Segment{Start: it.Key().(ProgramPoint), End: e.end}, Owner: e.owner})
	}
	return ret
}

// successor returns the in-order successor of n.
func successor(n *redblacktree.Node) *redblacktree.Node {
	if n.Right != nil {
		n = n.Right
		for n.Left != nil {
			n = n.Left
		}
		return n
	}
	for n.Parent != nil && n == n.Parent.Right {
		n = n.Parent
	}
	return n.Parent
}

// String implements fmt.Stringer for debugging.
func (u *intervalUnion) String() string {
	var buf strings.Builder
	for _, i := range u.segments() {
		buf.WriteString(fmt.Sprintf("%s@v%d ", i.Segment, i.Owner.ID()))
	}
	return strings.TrimSpace(buf.String())
}
