package regalloc

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Verify rebuilds the interval union of every RealReg from the register map, and returns an error describing each
// difference with the maintained ones. It also checks that no two virtual registers on a RealReg or on aliasing
// RealReg(s) overlap, and that no assigned virtual register overlaps a pre-colored register.
func (a *Allocator) Verify() error {
	var result *multierror.Error
	want := make([][]Interference, len(a.unions))
	for i := range a.vregs {
		s := &a.vregs[i]
		if !s.assignment.Assigned() {
			continue
		}
		r := s.assignment.Reg
		if s.lr == nil {
			result = multierror.Append(result, fmt.Errorf("v%d is assigned to %s without a live range",
				i, a.regInfo.RealRegName(r)))
			continue
		}
		for _, seg := range s.lr.Segments {
			want[r] = append(want[r], Interference{Segment: seg, Owner: s.lr.V})
		}
		checkFixed := func(r RealReg) {
			if int(r) >= len(a.fixed) {
				return
			}
			if f := a.fixed[r]; f != nil && f.Overlaps(s.lr) {
				result = multierror.Append(result, fmt.Errorf("%s overlaps the pre-colored %s", s.lr, a.regInfo.RealRegName(r)))
			}
		}
		checkFixed(r)
		a.regInfo.AliasesOf(r).Range(checkFixed)
	}

	for i := range a.unions {
		r := RealReg(i)
		name := a.regInfo.RealRegName(r)
		w := want[i]
		sort.Slice(w, func(i, j int) bool { return w[i].Start < w[j].Start })
		for j := 1; j < len(w); j++ {
			if w[j-1].End > w[j].Start {
				result = multierror.Append(result, fmt.Errorf("%s: %s of %s overlaps %s of %s",
					name, w[j-1].Segment, w[j-1].Owner, w[j].Segment, w[j].Owner))
			}
		}

		got := a.unions[i].segments()
		if !equalInterferences(got, w) {
			result = multierror.Append(result, fmt.Errorf("%s: interval union is %v, but the register map gives %v",
				name, got, w))
		}

		a.regInfo.AliasesOf(r).Range(func(alias RealReg) {
			if alias <= r || int(alias) >= len(want) {
				return
			}
			if i, j, ok := firstOverlap(w, want[alias]); ok {
				result = multierror.Append(result, fmt.Errorf("%s of %s on %s overlaps %s of %s on %s",
					w[i].Segment, w[i].Owner, name, want[alias][j].Segment, want[alias][j].Owner, a.regInfo.RealRegName(alias)))
			}
		})
	}
	return result.ErrorOrNil()
}

func equalInterferences(a, b []Interference) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// firstOverlap returns the indexes of the first overlapping pair of two sorted lists of segments.
// b may not be sorted yet, so it is sorted here.
func firstOverlap(a, b []Interference) (i, j int, ok bool) {
	sort.Slice(b, func(i, j int) bool { return b[i].Start < b[j].Start })
	for i < len(a) && j < len(b) {
		if a[i].Overlaps(b[j].Segment) {
			return i, j, true
		}
		if a[i].End <= b[j].End {
			i++
		} else {
			j++
		}
	}
	return 0, 0, false
}
