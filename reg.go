package regalloc

import (
	"fmt"
)

// VReg represents a register which is assigned to a value. A VReg may or may not be a physical register,
// and the info of physical register can be obtained by RealReg.
type VReg uint64

// VRegID is the lower 32bit of VReg, which is the pure identifier of VReg without RealReg info.
type VRegID uint32

// RealReg returns the RealReg of this VReg.
func (v VReg) RealReg() RealReg {
	return RealReg(v >> 32)
}

// IsRealReg returns true if this VReg is backed by a physical register.
func (v VReg) IsRealReg() bool {
	return v.RealReg() != RealRegInvalid
}

// FromRealReg returns a VReg from the given RealReg and RegClass.
// This is used to represent a specific pre-colored register.
func FromRealReg(r RealReg, class RegClass) VReg {
	rid := VRegID(r)
	if rid > vRegIDReservedForRealNum {
		panic(fmt.Sprintf("invalid real reg %d", r))
	}
	return VReg(r).SetRealReg(r).SetRegClass(class)
}

// SetRealReg sets the RealReg of this VReg and returns the updated VReg.
func (v VReg) SetRealReg(r RealReg) VReg {
	return VReg(r)<<32 | (v & 0xff_00_ffffffff)
}

// RegClass returns the RegClass of this VReg.
func (v VReg) RegClass() RegClass {
	return RegClass(v >> 40)
}

// SetRegClass sets the RegClass of this VReg and returns the updated VReg.
func (v VReg) SetRegClass(c RegClass) VReg {
	return VReg(c)<<40 | (v & 0x00_ff_ffffffff)
}

// ID returns the VRegID of this VReg.
func (v VReg) ID() VRegID {
	return VRegID(v & 0xffffffff)
}

// Valid returns true if this VReg is Valid.
func (v VReg) Valid() bool {
	return v.ID() != vRegIDInvalid
}

// RealReg represents a physical register. It is a compact index into RegisterInfo, not the machine encoding.
type RealReg byte

const RealRegInvalid RealReg = 0

const (
	vRegIDInvalid VRegID = 1 << 31
	// VRegIDNonReservedBegin is the first VRegID which is free to use for virtual registers.
	// The ones below are reserved for pre-colored registers created by FromRealReg.
	VRegIDNonReservedBegin          = vRegIDReservedForRealNum
	vRegIDReservedForRealNum VRegID = RealRegsNumMax
	VRegInvalid                     = VReg(vRegIDInvalid)
)

// RealRegsNumMax is the maximum number of RealReg a RegisterInfo can describe.
const RealRegsNumMax = 128

// String implements fmt.Stringer.
func (r RealReg) String() string {
	switch r {
	case RealRegInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("r%d", r)
	}
}

// String implements fmt.Stringer.
func (v VReg) String() string {
	if v.IsRealReg() {
		return fmt.Sprintf("r%d", v.ID())
	}
	return fmt.Sprintf("v%d?", v.ID())
}

// RegClass identifies a register class of the target, e.g. 64-bit integer or 128-bit vector registers.
// The meaning of each value is given by RegisterInfo.
type RegClass byte

// RegClassInvalid is never a valid class in RegisterInfo.
const RegClassInvalid RegClass = 0xff
