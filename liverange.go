package regalloc

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type (
	// ProgramPoint represents an opaque, totally ordered position in the instruction stream.
	ProgramPoint int64

	// Segment is a half-open interval [Start, End) of program points.
	Segment struct {
		Start, End ProgramPoint
	}

	// LiveRange is the lifetime of one register: a sorted sequence of disjoint, non-adjacent segments.
	// A LiveRange is owned by the Liveness which produced it (or by the Policy which split it), and the
	// Allocator never modifies it.
	LiveRange struct {
		// V is the register owning this range. Pre-colored (fixed) ranges have V.IsRealReg() == true.
		V VReg
		// Segments are sorted by Start, and never overlap or touch each other.
		Segments []Segment
		// Uses are the sorted program points where V is read or written. Policies use them to split and spill.
		Uses []ProgramPoint
		// Weight is the spill weight: the higher, the more expensive it is to keep V in memory.
		// Unspillable marks a range which must get a register, e.g. a reload created by a spiller.
		Weight float32
		// Hint is the preferred RealReg, e.g. the source or the destination of a copy. RealRegInvalid means none.
		Hint RealReg
		// Parent is the VReg this range was split from, or V itself if it has never been split.
		Parent VReg
	}
)

// Unspillable is the Weight of a LiveRange which must be assigned a register.
var Unspillable = float32(math.Inf(1))

// NewLiveRange returns a LiveRange of v covering the given segments. The segments are sorted, and the
// overlapping or adjacent ones are merged.
func NewLiveRange(v VReg, segs ...Segment) *LiveRange {
	lr := &LiveRange{V: v, Parent: v}
	for _, s := range segs {
		lr.AddSegment(s)
	}
	return lr
}

// Overlaps returns true if the two segments share at least one program point.
func (s Segment) Overlaps(o Segment) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains returns true if p is in [s.Start, s.End).
func (s Segment) Contains(p ProgramPoint) bool {
	return s.Start <= p && p < s.End
}

// Len returns the number of program points covered by s.
func (s Segment) Len() int64 {
	return int64(s.End - s.Start)
}

// String implements fmt.Stringer.
func (s Segment) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// AddSegment adds s to the range, keeping the segments sorted and merging with the ones it overlaps or touches.
// This is meant for the producers of live ranges, i.e. liveness and split policies, and must not be called on
// a range which is currently assigned.
func (lr *LiveRange) AddSegment(s Segment) {
	if s.Start >= s.End {
		panic(fmt.Sprintf("BUG: empty segment %s for %s", s, lr.V))
	}
	segs := lr.Segments
	// First segment whose end reaches s.Start, i.e. the first one that can be merged with s.
	i := sort.Search(len(segs), func(i int) bool { return segs[i].End >= s.Start })
	j := i
	for j < len(segs) && segs[j].Start <= s.End {
		if segs[j].Start < s.Start {
			s.Start = segs[j].Start
		}
		if segs[j].End > s.End {
			s.End = segs[j].End
		}
		j++
	}
	if i == j {
		segs = append(segs, Segment{})
		copy(segs[i+1:], segs[i:])
		segs[i] = s
	} else {
		segs[i] = s
		segs = append(segs[:i+1], segs[j:]...)
	}
	lr.Segments = segs
}

// AddUse records p as a use or def point of the range.
func (lr *LiveRange) AddUse(p ProgramPoint) {
	uses := lr.Uses
	i := sort.Search(len(uses), func(i int) bool { return uses[i] >= p })
	if i < len(uses) && uses[i] == p {
		return
	}
	uses = append(uses, 0)
	copy(uses[i+1:], uses[i:])
	uses[i] = p
	lr.Uses = uses
}

// Empty returns true if the range covers no program point.
func (lr *LiveRange) Empty() bool {
	return len(lr.Segments) == 0
}

// Start returns the first program point covered by the range.
func (lr *LiveRange) Start() ProgramPoint {
	return lr.Segments[0].Start
}

// End returns the first program point after the range.
func (lr *LiveRange) End() ProgramPoint {
	return lr.Segments[len(lr.Segments)-1].End
}

// Size returns the number of program points covered by the range.
func (lr *LiveRange) Size() (n int64) {
	for _, s := range lr.Segments {
		n += s.Len()
	}
	return
}

// Spillable returns false if the range must be assigned a register.
func (lr *LiveRange) Spillable() bool {
	return !math.IsInf(float64(lr.Weight), 1)
}

// LiveAt returns true if p is covered by one of the segments.
func (lr *LiveRange) LiveAt(p ProgramPoint) bool {
	segs := lr.Segments
	i := sort.Search(len(segs), func(i int) bool { return segs[i].End > p })
	return i < len(segs) && segs[i].Contains(p)
}

// Overlaps returns true if lr and other share at least one program point.
// Both segment lists are sorted, so this is a single merge scan.
func (lr *LiveRange) Overlaps(other *LiveRange) bool {
	a, b := lr.Segments, other.Segments
	for i, j := 0, 0; i < len(a) && j < len(b); {
		if a[i].Overlaps(b[j]) {
			return true
		}
		if a[i].End <= b[j].End {
			i++
		} else {
			j++
		}
	}
	return false
}

// Validate returns an error if the segments are not sorted, or if any of them is empty, overlaps or touches
// the next one.
func (lr *LiveRange) Validate() error {
	for i, s := range lr.Segments {
		if s.Start >= s.End {
			return fmt.Errorf("%s: segment %d %s is empty", lr.V, i, s)
		}
		if i > 0 && lr.Segments[i-1].End >= s.Start {
			return fmt.Errorf("%s: segment %d %s is not after %s", lr.V, i, s, lr.Segments[i-1])
		}
	}
	for i := 1; i < len(lr.Uses); i++ {
		if lr.Uses[i-1] >= lr.Uses[i] {
			return fmt.Errorf("%s: uses are not sorted at %d", lr.V, i)
		}
	}
	return nil
}

// String implements fmt.Stringer for debugging.
func (lr *LiveRange) String() string {
	var buf strings.Builder
	buf.WriteString(lr.V.String())
	if lr.Parent != lr.V {
		fmt.Fprintf(&buf, "(of %s)", lr.Parent)
	}
	buf.WriteString(" ")
	for _, s := range lr.Segments {
		buf.WriteString(s.String())
	}
	if !lr.Spillable() {
		buf.WriteString(" unspillable")
	}
	return buf.String()
}
