package liveness

import (
	"fmt"

	"github.com/tetratelabs/regalloc"
)

// These interfaces are implemented by ISA-specific backends to expose their code to the analysis.

type (
	// Function is a CFG of Block(s).
	Function interface {
		// ReversePostOrderBlockIteratorBegin returns the first block in the reverse post-order traversal of the CFG.
		// In other words, the first blocks in the CFG will be returned first.
		ReversePostOrderBlockIteratorBegin() Block
		// ReversePostOrderBlockIteratorNext returns the next block in the reverse post-order traversal of the CFG.
		ReversePostOrderBlockIteratorNext() Block
	}

	// Block is a basic block in the CFG of a function, and it consists of multiple instructions, and predecessor Block(s).
	Block interface {
		// ID returns the unique identifier of this block.
		ID() int
		// InstrIteratorBegin returns the first instruction in this block.
		// Note: multiple Instr(s) will not be held at the same time, so it's safe to use the same impl for the return Instr.
		InstrIteratorBegin() Instr
		// InstrIteratorNext returns the next instruction in this block.
		InstrIteratorNext() Instr
		// Preds returns the predecessors of this block in the CFG.
		// Note: multiple returned []Block will not be used at the same time, so it's safe to use the same slice for []Block.
		Preds() []Block
		// Entry returns true if the block is for the entry block.
		Entry() bool
	}

	// Instr is an instruction in a block, abstracting away the underlying ISA.
	Instr interface {
		fmt.Stringer

		// Defs returns the registers defined by this instruction.
		// Note: multiple returned []VReg will not be held at the same time, so it's safe to use the same slice for this.
		Defs() []regalloc.VReg
		// Uses returns the registers used by this instruction.
		// Note: multiple returned []VReg will not be held at the same time, so it's safe to use the same slice for this.
		Uses() []regalloc.VReg
		// IsCopy returns true if this instruction is a move instruction between two registers.
		// If true, the instruction is of the form of dst = src, and the allocator is hinted to give both the
		// same RealReg so that the copy can be eliminated.
		IsCopy() bool
	}
)
