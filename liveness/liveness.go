// Package liveness computes the live ranges consumed by regalloc.Allocator from a CFG of instructions. The code is
// abstracted by the interfaces in api.go, so the analysis works on any ISA.
package liveness

// References:
// * https://pfalcon.github.io/ssabook/latest/book-full.pdf: Chapter 9. for liveness analysis.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/tetratelabs/regalloc"
	"github.com/tetratelabs/regalloc/internal/contract"
	"github.com/tetratelabs/regalloc/internal/regallocapi"
)

// We assign different program points to use and def in one instruction. That way the same register can be used
// and defined by one instruction. E.g. add r0, r0, r0.
const (
	pcUseOffset = 0
	pcDefOffset = 1
	pcStride    = pcDefOffset + 1
)

type (
	// Analyzer computes the live ranges of a Function. It is reusable across functions after Reset.
	Analyzer struct {
		info *regalloc.RegisterInfo
		// tracked are the RealReg(s) whose pre-colored ranges matter to the allocation: the allocatable ones and
		// their aliases. The other ones, e.g. the stack pointer, are ignored.
		tracked regalloc.RegSet

		rangePool  regallocapi.Pool[regalloc.LiveRange]
		blockInfos []blockInfo
		// vRegIDToRange maps a VRegID to the live range of the virtual register.
		vRegIDToRange []*regalloc.LiveRange
		// fixed maps a RealReg to its pre-colored live range.
		fixed []*regalloc.LiveRange
		// vs holds the virtual registers in the order of their first occurrence.
		vs []regalloc.VReg
		// openRealDefs is the program point of the pending def of each RealReg in the current block.
		openRealDefs map[regalloc.RealReg]regalloc.ProgramPoint
	}

	// blockInfo is a per-block information used during the analysis.
	blockInfo struct {
		start, end        regalloc.ProgramPoint
		liveIns, liveOuts map[regalloc.VReg]struct{}
		occurrences       map[regalloc.VReg]occurrence
		visited           bool
	}

	// occurrence summarizes the defs and uses of one virtual register in one block.
	occurrence struct {
		firstDef, last regalloc.ProgramPoint
		defined        bool
		// exposed is true if the register is used before any def in the block, i.e. it must be live-in.
		exposed bool
	}
)

// NewAnalyzer returns a new Analyzer for the given target.
func NewAnalyzer(info *regalloc.RegisterInfo) *Analyzer {
	a := &Analyzer{
		info: info,
		rangePool: regallocapi.NewPool[regalloc.LiveRange](func(lr *regalloc.LiveRange) {
			*lr = regalloc.LiveRange{Segments: lr.Segments[:0], Uses: lr.Uses[:0]}
		}),
		openRealDefs: make(map[regalloc.RealReg]regalloc.ProgramPoint),
	}
	for _, regs := range info.AllocatableRegisters {
		for _, r := range regs {
			a.tracked = a.tracked.Add(r).Union(info.AliasesOf(r))
		}
	}
	return a
}

// Analyze computes the live ranges of f. The returned Result is valid until the next Reset.
func (a *Analyzer) Analyze(f Function) *Result {
	a.gather(f)
	a.propagate(f)
	return a.build(f)
}

// gather numbers the program points and collects the defs and uses of each block.
func (a *Analyzer) gather(f Function) {
	var pc regalloc.ProgramPoint
	for blk := f.ReversePostOrderBlockIteratorBegin(); blk != nil; blk = f.ReversePostOrderBlockIteratorNext() {
		info := a.allocateBlockInfo(blk)
		info.start = pc
		for instr := blk.InstrIteratorBegin(); instr != nil; instr = blk.InstrIteratorNext() {
			var srcVR, dstVR regalloc.VReg
			for _, use := range instr.Uses() {
				srcVR = use
				pos := pc + pcUseOffset
				if use.IsRealReg() {
					a.addRealRegUse(info, use, pos)
					continue
				}
				o, ok := info.occurrences[use]
				if !ok || !o.defined {
					o.exposed = true
				}
				o.last = pos
				info.occurrences[use] = o
				a.getOrAllocateRange(use).AddUse(pos)
			}
			for _, def := range instr.Defs() {
				dstVR = def
				pos := pc + pcDefOffset
				if def.IsRealReg() {
					a.addRealRegDef(def, pos)
					continue
				}
				o := info.occurrences[def]
				if !o.defined {
					// A register can be defined multiple times in a series of instructions, e.g. loading an
					// arbitrary constant in arm64, and only the earliest definition starts the range.
					o.firstDef, o.defined = pos, true
				}
				o.last = pos
				info.occurrences[def] = o
				a.getOrAllocateRange(def).AddUse(pos)
			}
			if instr.IsCopy() {
				a.recordCopyRelation(dstVR, srcVR)
			}
			pc += pcStride
		}
		if pc == info.start {
			// Empty blocks still get a boundary of their own.
			pc += pcStride
		}
		info.end = pc

		// A def which is never used still clobbers the register, e.g. the caller-saved ones at a call.
		for r, d := range a.openRealDefs {
			a.addFixedSegment(r, regalloc.Segment{Start: d, End: d + 1})
			delete(a.openRealDefs, r)
		}

		if regallocapi.LivenessLoggingEnabled {
			fmt.Printf("constructed block info for block[%d]:\n%s\n\n", blk.ID(), info)
		}
	}
}

// addRealRegUse closes the range of the pre-colored register opened by its last def in the block, or starts it at
// the beginning of the block, e.g. for the argument registers in the entry block.
func (a *Analyzer) addRealRegUse(info *blockInfo, use regalloc.VReg, pos regalloc.ProgramPoint) {
	r := use.RealReg()
	if !a.tracked.Has(r) {
		return
	}
	begin := info.start
	if d, ok := a.openRealDefs[r]; ok {
		begin = d
		delete(a.openRealDefs, r)
	}
	a.addFixedSegment(r, regalloc.Segment{Start: begin, End: pos + 1})
}

func (a *Analyzer) addRealRegDef(def regalloc.VReg, pos regalloc.ProgramPoint) {
	r := def.RealReg()
	if !a.tracked.Has(r) {
		return
	}
	if d, ok := a.openRealDefs[r]; ok {
		a.addFixedSegment(r, regalloc.Segment{Start: d, End: d + 1})
	}
	a.openRealDefs[r] = pos
	if a.fixedRange(r) == nil {
		lr := a.rangePool.Allocate()
		lr.V, lr.Parent, lr.Weight = def, def, regalloc.Unspillable
		a.fixed[r] = lr
	}
}

func (a *Analyzer) addFixedSegment(r regalloc.RealReg, s regalloc.Segment) {
	lr := a.fixedRange(r)
	if lr == nil {
		v := regalloc.FromRealReg(r, a.classOf(r))
		lr = a.rangePool.Allocate()
		lr.V, lr.Parent, lr.Weight = v, v, regalloc.Unspillable
		a.fixed[r] = lr
	}
	lr.AddSegment(s)
}

func (a *Analyzer) fixedRange(r regalloc.RealReg) *regalloc.LiveRange {
	if int(r) >= len(a.fixed) {
		a.fixed = append(a.fixed, make([]*regalloc.LiveRange, int(r)+1-len(a.fixed))...)
	}
	return a.fixed[r]
}

// classOf returns the first class r is allocatable in, or the class of one of its aliases.
func (a *Analyzer) classOf(r regalloc.RealReg) regalloc.RegClass {
	for c, regs := range a.info.AllocatableRegisters {
		for _, reg := range regs {
			if reg == r || a.info.AliasesOf(r).Has(reg) {
				return regalloc.RegClass(c)
			}
		}
	}
	return regalloc.RegClassInvalid
}

// recordCopyRelation hints the virtual side of a copy from or to a RealReg with that RealReg, so that the copy
// can be eliminated. Copies between virtual registers are left to the allocation order.
func (a *Analyzer) recordCopyRelation(dst, src regalloc.VReg) {
	sr, dr := src.IsRealReg(), dst.IsRealReg()
	switch {
	case sr && !dr:
		if lr := a.getOrAllocateRange(dst); lr.Hint == regalloc.RealRegInvalid {
			lr.Hint = src.RealReg()
		}
	case !sr && dr:
		if lr := a.getOrAllocateRange(src); lr.Hint == regalloc.RealRegInvalid {
			lr.Hint = dst.RealReg()
		}
	}
}

// propagate runs the Algorithm 9.9. in the book, and constructs blockInfo.liveIns and blockInfo.liveOuts.
// There are no phis here: they are lowered to virtual registers with multiple defs in the predecessors.
func (a *Analyzer) propagate(f Function) {
	for _, v := range a.vs {
		for blk := f.ReversePostOrderBlockIteratorBegin(); blk != nil; blk = f.ReversePostOrderBlockIteratorNext() {
			info := a.blockInfoAt(blk.ID())
			if o, ok := info.occurrences[v]; !ok || !o.exposed {
				continue
			}
			a.upAndMarkStack(blk, v, 0)
		}
	}
}

// upAndMarkStack is the Algorithm 9.10. in the book named Up_and_Mark_Stack(B, v). As v may have multiple defs,
// the climb stops at the predecessors defining v instead of at the single def.
//
// We recursively call this, so passing `depth` for debugging.
func (a *Analyzer) upAndMarkStack(b Block, v regalloc.VReg, depth int) {
	info := a.blockInfoAt(b.ID())
	if _, ok := info.liveIns[v]; ok {
		return // Already visited, e.g. by a sibling block.
	}
	if regallocapi.LivenessLoggingEnabled {
		fmt.Printf("%sadding %v live-in at block[%d]\n", strings.Repeat("\t", depth), v, b.ID())
	}
	info.liveIns[v] = struct{}{}

	preds := b.Preds()
	if len(preds) == 0 {
		// Only the parameters of the function can be live-in to the entry block.
		contract.Assertf(b.Entry(), "block has no predecessors while requiring live-in of %v: blk%d", v, b.ID())
		return
	}
	for _, pred := range preds {
		if regallocapi.LivenessLoggingEnabled {
			fmt.Printf("%sadding %v live-out at block[%d]\n", strings.Repeat("\t", depth+1), v, pred.ID())
		}
		predInfo := a.blockInfoAt(pred.ID())
		predInfo.liveOuts[v] = struct{}{}
		if o, ok := predInfo.occurrences[v]; ok && o.defined {
			continue // Defined in the predecessor, so no need to climb further.
		}
		a.upAndMarkStack(pred, v, depth+1)
	}
}

// build turns the per-block information into one live range per virtual register.
func (a *Analyzer) build(f Function) *Result {
	ret := &Result{liveIns: make(map[int][]regalloc.VReg)}
	for blk := f.ReversePostOrderBlockIteratorBegin(); blk != nil; blk = f.ReversePostOrderBlockIteratorNext() {
		id := blk.ID()
		info := a.blockInfoAt(id)
		ret.blocks = append(ret.blocks, regalloc.BlockBoundary{ID: id, Start: info.start, End: info.end})

		for v := range info.liveIns {
			if _, ok := info.occurrences[v]; ok {
				continue // Handled below.
			}
			// Live-through.
			a.getOrAllocateRange(v).AddSegment(regalloc.Segment{Start: info.start, End: info.end})
		}
		for v, o := range info.occurrences {
			begin, end := o.firstDef, o.last+1
			if _, ok := info.liveIns[v]; ok {
				begin = info.start
			}
			if _, ok := info.liveOuts[v]; ok {
				end = info.end
			}
			contract.Assertf(o.defined || o.exposed, "%v occurs in blk%d without def or use", v, id)
			a.getOrAllocateRange(v).AddSegment(regalloc.Segment{Start: begin, End: end})
		}

		ins := make([]regalloc.VReg, 0, len(info.liveIns))
		for v := range info.liveIns {
			ins = append(ins, v)
		}
		// In order to make the output deterministic, sort it now.
		sort.Slice(ins, func(i, j int) bool { return ins[i].ID() < ins[j].ID() })
		ret.liveIns[id] = ins
	}

	for _, v := range a.vs {
		lr := a.vRegIDToRange[v.ID()]
		lr.Weight = spillWeight(lr)
		ret.ranges = append(ret.ranges, lr)
	}
	for _, lr := range a.fixed {
		if lr != nil {
			ret.fixed = append(ret.fixed, lr)
		}
	}
	if glog.V(5) {
		glog.Infof("liveness: %d blocks, %d live ranges, %d fixed ranges", len(ret.blocks), len(ret.ranges), len(ret.fixed))
	}
	return ret
}

// spillWeight is the density of the uses over the range: a short range with many uses is the most expensive to
// keep in memory.
func spillWeight(lr *regalloc.LiveRange) float32 {
	return float32(len(lr.Uses)) / float32(lr.Size())
}

// Reset resets the analyzer's internal state so that it can be reused.
func (a *Analyzer) Reset() {
	a.rangePool.Reset()
	a.blockInfos = a.blockInfos[:0]
	for i := range a.vRegIDToRange {
		a.vRegIDToRange[i] = nil
	}
	for i := range a.fixed {
		a.fixed[i] = nil
	}
	a.vs = a.vs[:0]
	for r := range a.openRealDefs {
		delete(a.openRealDefs, r)
	}
}

func (a *Analyzer) allocateBlockInfo(blk Block) *blockInfo {
	id := blk.ID()
	if id >= len(a.blockInfos) {
		a.blockInfos = append(a.blockInfos, make([]blockInfo, id+1-len(a.blockInfos))...)
	}
	info := &a.blockInfos[id]
	contract.Assertf(!info.visited, "block %d is iterated twice", id)
	initBlockInfo(info)
	return info
}

func (a *Analyzer) blockInfoAt(blockID int) *blockInfo {
	return &a.blockInfos[blockID]
}

// getOrAllocateRange returns the live range of the given virtual register.
func (a *Analyzer) getOrAllocateRange(v regalloc.VReg) *regalloc.LiveRange {
	id := int(v.ID())
	if id < len(a.vRegIDToRange) {
		if lr := a.vRegIDToRange[id]; lr != nil {
			return lr
		}
	} else {
		a.vRegIDToRange = append(a.vRegIDToRange, make([]*regalloc.LiveRange, id+1-len(a.vRegIDToRange))...)
	}
	lr := a.rangePool.Allocate()
	lr.V, lr.Parent = v, v
	a.vRegIDToRange[id] = lr
	a.vs = append(a.vs, v)
	return lr
}

func initBlockInfo(i *blockInfo) {
	i.visited = true
	if i.liveIns == nil {
		i.liveIns = make(map[regalloc.VReg]struct{})
		i.liveOuts = make(map[regalloc.VReg]struct{})
		i.occurrences = make(map[regalloc.VReg]occurrence)
		return
	}
	for v := range i.liveIns {
		delete(i.liveIns, v)
	}
	for v := range i.liveOuts {
		delete(i.liveOuts, v)
	}
	for v := range i.occurrences {
		delete(i.occurrences, v)
	}
}

// String implements fmt.Stringer for debugging.
func (i *blockInfo) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "\t[%d,%d)\n\tliveOuts: ", i.start, i.end)
	for v := range i.liveOuts {
		buf.WriteString(fmt.Sprintf("%v ", v))
	}
	buf.WriteString("\n\tliveIns: ")
	for v := range i.liveIns {
		buf.WriteString(fmt.Sprintf("%v ", v))
	}
	buf.WriteString("\n\toccurrences: ")
	for v, o := range i.occurrences {
		buf.WriteString(fmt.Sprintf("%v@%v..%v ", v, o.firstDef, o.last))
	}
	return buf.String()
}
