package liveness

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/regalloc"
)

// Following mock types are used for testing.
type (
	// mockFunction implements Function.
	mockFunction struct {
		iter   int
		blocks []*mockBlock
	}

	// mockBlock implements Block.
	mockBlock struct {
		id           int
		instructions []*mockInstr
		preds        []*mockBlock
		_preds       []Block
		iter         int
		_entry       bool
	}

	// mockInstr implements Instr.
	mockInstr struct {
		defs, uses []regalloc.VReg
		isCopy     bool
	}
)

// newMockFunction returns a function whose blocks are given in reverse post-order.
func newMockFunction(blocks ...*mockBlock) *mockFunction {
	return &mockFunction{blocks: blocks}
}

func newMockBlock(id int, instructions ...*mockInstr) *mockBlock {
	return &mockBlock{id: id, instructions: instructions}
}

func newMockInstr() *mockInstr {
	return &mockInstr{}
}

// String implements fmt.Stringer for debugging.
func (m *mockFunction) String() string {
	var block []string
	for _, b := range m.blocks {
		block = append(block, "\t"+b.String())
	}
	return fmt.Sprintf("mockFunction:\n%s", strings.Join(block, ",\n"))
}

// String implements fmt.Stringer for debugging.
func (m *mockInstr) String() string {
	return fmt.Sprintf("mockInstr{defs=%v, uses=%v}", m.defs, m.uses)
}

// String implements fmt.Stringer for debugging.
func (m *mockBlock) String() string {
	var preds []int
	for _, p := range m.preds {
		preds = append(preds, p.id)
	}
	return fmt.Sprintf("mockBlock{\n\tid=%v,\n\tpreds=%v,\n\tinstructions=%v,\n}", m.id, preds, m.instructions)
}

func (m *mockBlock) addPred(b *mockBlock) *mockBlock {
	m.preds = append(m.preds, b)
	m._preds = append(m._preds, b)
	return m
}

func (m *mockBlock) entry() *mockBlock {
	m._entry = true
	return m
}

func (m *mockInstr) use(uses ...regalloc.VReg) *mockInstr {
	m.uses = uses
	return m
}

func (m *mockInstr) def(defs ...regalloc.VReg) *mockInstr {
	m.defs = defs
	return m
}

func (m *mockInstr) asCopy() *mockInstr {
	m.isCopy = true
	return m
}

// ReversePostOrderBlockIteratorBegin implements Function.
func (m *mockFunction) ReversePostOrderBlockIteratorBegin() Block {
	m.iter = 1
	return m.blocks[0]
}

// ReversePostOrderBlockIteratorNext implements Function.
func (m *mockFunction) ReversePostOrderBlockIteratorNext() Block {
	if m.iter == len(m.blocks) {
		return nil
	}
	ret := m.blocks[m.iter]
	m.iter++
	return ret
}

// ID implements Block.
func (m *mockBlock) ID() int {
	return m.id
}

// InstrIteratorBegin implements Block.
func (m *mockBlock) InstrIteratorBegin() Instr {
	if len(m.instructions) == 0 {
		return nil
	}
	m.iter = 1
	return m.instructions[0]
}

// InstrIteratorNext implements Block.
func (m *mockBlock) InstrIteratorNext() Instr {
	if m.iter == len(m.instructions) {
		return nil
	}
	ret := m.instructions[m.iter]
	m.iter++
	return ret
}

// Preds implements Block.
func (m *mockBlock) Preds() []Block { return m._preds }

// Entry implements Block.
func (m *mockBlock) Entry() bool { return m._entry }

// Defs implements Instr.
func (m *mockInstr) Defs() []regalloc.VReg {
	return m.defs
}

// Uses implements Instr.
func (m *mockInstr) Uses() []regalloc.VReg {
	return m.uses
}

// IsCopy implements Instr.
func (m *mockInstr) IsCopy() bool { return m.isCopy }

var (
	_ Function = (*mockFunction)(nil)
	_ Block    = (*mockBlock)(nil)
	_ Instr    = (*mockInstr)(nil)
)
