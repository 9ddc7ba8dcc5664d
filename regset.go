package regalloc

import (
	"math/bits"
	"strings"
)

// NewRegSet returns a new RegSet with the given registers.
func NewRegSet(regs ...RealReg) RegSet {
	var ret RegSet
	for _, r := range regs {
		ret = ret.Add(r)
	}
	return ret
}

// RegSet represents a set of registers. The zero value is the empty set.
type RegSet [RealRegsNumMax / 64]uint64

// Format returns the names of the registers in the set, joined by ", ".
func (rs RegSet) Format(info *RegisterInfo) string {
	var ret []string
	rs.Range(func(r RealReg) {
		ret = append(ret, info.RealRegName(r))
	})
	return strings.Join(ret, ", ")
}

// Has returns true if r is in the set.
func (rs RegSet) Has(r RealReg) bool {
	if r >= RealRegsNumMax {
		return false
	}
	return rs[r/64]&(1<<(r%64)) != 0
}

// Add returns the set with r added.
func (rs RegSet) Add(r RealReg) RegSet {
	if r >= RealRegsNumMax {
		return rs
	}
	rs[r/64] |= 1 << (r % 64)
	return rs
}

// Remove returns the set with r removed.
func (rs RegSet) Remove(r RealReg) RegSet {
	if r >= RealRegsNumMax {
		return rs
	}
	rs[r/64] &^= 1 << (r % 64)
	return rs
}

// Union returns the set of registers in either rs or other.
func (rs RegSet) Union(other RegSet) RegSet {
	for i := range rs {
		rs[i] |= other[i]
	}
	return rs
}

// Len returns the number of registers in the set.
func (rs RegSet) Len() (n int) {
	for _, w := range rs {
		n += bits.OnesCount64(w)
	}
	return
}

// Empty returns true if there's no register in the set.
func (rs RegSet) Empty() bool {
	return rs == RegSet{}
}

// Range calls f for each register in the set in ascending order.
func (rs RegSet) Range(f func(r RealReg)) {
	for i, w := range rs {
		for w != 0 {
			n := bits.TrailingZeros64(w)
			w &^= 1 << uint(n)
			f(RealReg(i*64 + n))
		}
	}
}

// Slice returns the registers in the set in ascending order.
func (rs RegSet) Slice() []RealReg {
	ret := make([]RealReg, 0, rs.Len())
	rs.Range(func(r RealReg) { ret = append(ret, r) })
	return ret
}
