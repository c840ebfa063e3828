package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testProgram() *Program {
	return &Program{
		Instructions: []Instruction{
			{LineNo: 1, Offset: 0, Opcode: OP_LOAD, Operand: [3]Token{Register(0), Immediate(100)}},
			{LineNo: 2, Offset: 4, Opcode: OP_ADD, Operand: [3]Token{Register(0), Register(1), Register(2)}},
			{LineNo: 3, Offset: 8, Opcode: OP_JMPC, Operand: [3]Token{Register(2)}},
			{LineNo: 5, Offset: 10, Opcode: OP_HLT},
		},
	}
}

func TestInstruction_Binary(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		ins      Instruction
		expected []byte
		text     string
	}){
		{NewInstruction(OP_HLT), []byte{0}, "hlt"},
		{NewInstruction(OP_NOP), []byte{255}, "nop"},
		{NewInstruction(OP_JMPB, Register(9)), []byte{7, 9}, "jmpb $9"},
		{NewInstruction(OP_LOAD, Register(1), Immediate(500)), []byte{1, 1, 1, 244}, "load $1 #500"},
		{NewInstruction(OP_LOAD, Register(1), Immediate(-2)), []byte{1, 1, 0xff, 0xfe}, "load $1 #-2"},
		{NewInstruction(OP_GTQ, Register(4), Register(5)), []byte{14, 4, 5}, "gtq $4 $5"},
		{NewInstruction(OP_SUB, Register(31), Register(0), Register(7)), []byte{3, 31, 0, 7}, "sub $31 $0 $7"},
	}

	for _, entry := range table {
		assert.Equal(entry.expected, entry.ins.AppendBinary(nil), entry.text)
		assert.Equal(len(entry.expected), entry.ins.Len(), entry.text)
		assert.Equal(entry.text, entry.ins.String())
		assert.Equal(entry.ins.Opcode.Shape().Length(), entry.ins.Len(), entry.text)
	}
}

func TestProgram_Binary(t *testing.T) {
	assert := assert.New(t)

	prog := testProgram()

	assert.Equal(11, prog.Len())
	assert.Equal([]byte{
		1, 0, 0, 100,
		2, 0, 1, 2,
		9, 2,
		0,
	}, prog.Binary())

	empty := &Program{}
	assert.Equal([]byte{}, empty.Binary())
}

func TestProgram_Debug(t *testing.T) {
	assert := assert.New(t)

	prog := testProgram()

	table := [](struct {
		pc     int
		lineNo int
	}){
		{0, 1}, {3, 1}, {4, 2}, {7, 2}, {8, 3}, {9, 3}, {10, 5},
	}

	for _, entry := range table {
		ins := prog.Debug(entry.pc)
		if assert.NotNil(ins, entry.pc) {
			assert.Equal(entry.lineNo, ins.LineNo, entry.pc)
		}
	}

	assert.Nil(prog.Debug(11))
	assert.Nil(prog.Debug(-1))
}

func TestProgram_Relocate(t *testing.T) {
	assert := assert.New(t)

	prog := testProgram()
	prog.Relocate(100)

	assert.Equal(100, prog.Origin)
	var offsets []int
	for offset := range prog.All() {
		offsets = append(offsets, offset)
	}
	assert.Equal([]int{100, 104, 108, 110}, offsets)
	assert.Equal(2, prog.Debug(105).LineNo)

	prog.Relocate(0)
	assert.Equal(0, prog.Instructions[0].Offset)
}

func TestProgram_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("load $0 #100\nadd $0 $1 $2\njmpc $2\nhlt\n", testProgram().String())
}
