package regalloc

import "fmt"

// These interfaces are implemented by the collaborators of the Allocator: the liveness analysis which produces
// live ranges, and the policies which decide the allocation order and what to do with a live range which doesn't
// fit. The reference implementations live in the liveness and policy packages.

type (
	// RegisterInfo holds the statically-known ISA-specific register information.
	RegisterInfo struct {
		// AllocatableRegisters is a 2D array of allocatable RealReg, indexed by RegClass.
		// The order matters: the first element is the most preferred one when allocating.
		AllocatableRegisters [][]RealReg
		// Aliases maps a RealReg to the set of other RealReg whose storage overlaps with it, e.g. AL and AX on amd64.
		// The relation must be symmetric, and a RealReg never aliases itself. A nil slice means a flat register file.
		Aliases []RegSet
		// CalleeSavedRegisters are the registers which a function must preserve when it uses them.
		CalleeSavedRegisters RegSet
		// RealRegName returns the name of the given RealReg for debugging.
		RealRegName func(r RealReg) string
		// RegClassName returns the name of the given RegClass for diagnostics. Can be nil.
		RegClassName func(c RegClass) string
	}

	// BlockBoundary is the range of program points [Start, End) of one basic block.
	BlockBoundary struct {
		ID         int
		Start, End ProgramPoint
	}

	// Liveness is the source of the live ranges for one allocation pass. The Allocator treats everything returned
	// as read-only.
	Liveness interface {
		// LiveRanges returns the live range of each virtual register which needs a RealReg.
		LiveRanges() []*LiveRange
		// FixedRanges returns the live ranges of the pre-colored registers, i.e. whose V.IsRealReg() is true.
		FixedRanges() []*LiveRange
		// Blocks returns the boundaries of the basic blocks, used to compute the live-in registers.
		Blocks() []BlockBoundary
	}

	// Queue is the worklist of live ranges still waiting for a RealReg. The implementation decides the order.
	Queue interface {
		// Enqueue adds lr to the worklist.
		Enqueue(lr *LiveRange)
		// Dequeue removes and returns the next live range to allocate, or nil if the worklist is empty.
		Dequeue() *LiveRange
		// Len returns the number of live ranges in the worklist.
		Len() int
	}

	// Policy decides what to do with a live range for which no allocatable RealReg is free.
	Policy interface {
		// SelectOrSplit is called by Allocator.Allocate when every candidate RealReg of lr interferes.
		// The implementation may call Allocator.Unassign on other virtual registers (eviction), Allocator.Requeue
		// to put them back to the worklist, and Allocator.InvalidateAll afterwards.
		//
		// Forward progress is the responsibility of the implementation: the Allocator only bounds the number of
		// rounds when configured to.
		SelectOrSplit(a *Allocator, lr *LiveRange) (Decision, error)
	}

	// Spiller is invoked by a Policy (never by the Allocator) to move a virtual register to memory.
	Spiller interface {
		// Spill moves lr to memory, and returns the live ranges which still need a register around the
		// uses of lr, e.g. reloads. The returned ranges must be unspillable.
		Spill(a *Allocator, lr *LiveRange) []*LiveRange
	}
)

// DecisionKind is the kind of Decision.
type DecisionKind byte

const (
	// DecisionAssign means the live range must be assigned to Decision.Reg, which must be free by now.
	DecisionAssign DecisionKind = iota
	// DecisionSplit means the live range is replaced by Decision.LiveRanges, which are enqueued.
	DecisionSplit
	// DecisionSpill means the live range lives in memory, and Decision.LiveRanges (if any) are enqueued.
	DecisionSpill
)

// String implements fmt.Stringer.
func (k DecisionKind) String() string {
	switch k {
	case DecisionAssign:
		return "assign"
	case DecisionSplit:
		return "split"
	case DecisionSpill:
		return "spill"
	default:
		return fmt.Sprintf("DecisionKind(%d)", k)
	}
}

// Decision is the result of Policy.SelectOrSplit.
type Decision struct {
	Kind       DecisionKind
	Reg        RealReg
	LiveRanges []*LiveRange
}

// Assign returns the Decision to assign the live range to r.
func Assign(r RealReg) Decision {
	return Decision{Kind: DecisionAssign, Reg: r}
}

// Split returns the Decision to replace the live range with the given smaller ones.
func Split(pieces ...*LiveRange) Decision {
	return Decision{Kind: DecisionSplit, LiveRanges: pieces}
}

// Spilled returns the Decision to keep the live range in memory, with the given reloads still needing registers.
func Spilled(reloads ...*LiveRange) Decision {
	return Decision{Kind: DecisionSpill, LiveRanges: reloads}
}

// NumRegClass returns the number of register classes.
func (r *RegisterInfo) NumRegClass() int {
	return len(r.AllocatableRegisters)
}

// AliasesOf returns the RealReg(s) whose storage overlaps with reg, excluding reg itself.
func (r *RegisterInfo) AliasesOf(reg RealReg) RegSet {
	if int(reg) < len(r.Aliases) {
		return r.Aliases[reg]
	}
	return RegSet{}
}

// IsCalleeSaved returns true if reg is callee saved.
func (r *RegisterInfo) IsCalleeSaved(reg RealReg) bool {
	return r.CalleeSavedRegisters.Has(reg)
}

// ClassName returns the name of c for diagnostics.
func (r *RegisterInfo) ClassName(c RegClass) string {
	if r.RegClassName != nil {
		return r.RegClassName(c)
	}
	return fmt.Sprintf("class%d", c)
}

// Validate returns an error if the alias relation is not symmetric, or if a RealReg aliases itself.
func (r *RegisterInfo) Validate() error {
	if len(r.Aliases) > RealRegsNumMax {
		return fmt.Errorf("%d alias entries exceed the %d supported registers", len(r.Aliases), RealRegsNumMax)
	}
	for i, as := range r.Aliases {
		reg := RealReg(i)
		if as.Has(reg) {
			return fmt.Errorf("%s aliases itself", r.RealRegName(reg))
		}
		var err error
		as.Range(func(other RealReg) {
			if err == nil && !r.AliasesOf(other).Has(reg) {
				err = fmt.Errorf("%s aliases %s but not vice versa", r.RealRegName(reg), r.RealRegName(other))
			}
		})
		if err != nil {
			return err
		}
	}
	for c, regs := range r.AllocatableRegisters {
		for _, reg := range regs {
			if reg == RealRegInvalid || reg >= RealRegsNumMax {
				return fmt.Errorf("%s: invalid allocatable register %d", r.ClassName(RegClass(c)), reg)
			}
		}
	}
	return nil
}
