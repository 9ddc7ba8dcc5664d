package liveness

import "github.com/tetratelabs/regalloc"

// Result is the outcome of Analyzer.Analyze, and is passed to regalloc.Allocator.Allocate.
type Result struct {
	ranges, fixed []*regalloc.LiveRange
	blocks        []regalloc.BlockBoundary
	liveIns       map[int][]regalloc.VReg
}

var _ regalloc.Liveness = (*Result)(nil)

// LiveRanges implements regalloc.Liveness. The ranges are in the order of the first occurrence of their register.
func (r *Result) LiveRanges() []*regalloc.LiveRange { return r.ranges }

// FixedRanges implements regalloc.Liveness.
func (r *Result) FixedRanges() []*regalloc.LiveRange { return r.fixed }

// Blocks implements regalloc.Liveness. The blocks are in reverse post-order.
func (r *Result) Blocks() []regalloc.BlockBoundary { return r.blocks }

// LiveIns returns the virtual registers live at the entry of the block, sorted by id.
func (r *Result) LiveIns(blockID int) []regalloc.VReg { return r.liveIns[blockID] }
