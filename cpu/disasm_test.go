package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassemble(t *testing.T) {
	assert := assert.New(t)

	code := []byte{
		1, 0, 0, 100,
		1, 1, 1, 244,
		5, 0, 1, 3,
		15, 0, 1,
		6, 2,
		255,
		0,
	}

	prog, err := Disassemble(code)
	require.NoError(t, err)

	assert.Equal("load $0 #100\nload $1 #500\ndiv $0 $1 $3\nltq $0 $1\njmp $2\nnop\nhlt\n", prog.String())
	assert.Equal(code, prog.Binary())
}

func TestDisassembleErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		code   []byte
		err    error
		offset int
	}){
		{"illegal", []byte{0, 200}, ErrOpcodeDecode, 1},
		{"igl", []byte{16}, ErrOpcodeDecode, 0},
		{"load_short", []byte{1, 0, 1}, ErrTruncated, 0},
		{"add_short", []byte{255, 2, 0, 1}, ErrTruncated, 1},
		{"jmp_short", []byte{6}, ErrTruncated, 0},
	}

	for _, entry := range table {
		prog, err := Disassemble(entry.code)
		assert.Nil(prog, entry.name)
		assert.ErrorIs(err, entry.err, entry.name)
		var decode *ErrDecode
		if assert.ErrorAs(err, &decode, entry.name) {
			assert.Equal(entry.offset, decode.Offset, entry.name)
		}
	}

	_, err := DecodeInstruction([]byte{0}, 1)
	assert.ErrorIs(err, ErrTruncated)
}

func TestAssembleDisassembleRoundTrip(t *testing.T) {
	assert := assert.New(t)

	sources := []string{
		"hlt",
		"nop",
		"load $0 #100",
		"load $31 #65535",
		"add $1 $2 $3",
		"sub $4 $5 $6",
		"mul $7 $8 $9",
		"div $10 $11 $12",
		"jmp $13",
		"jmpb $14",
		"jmpf $15",
		"jmpc $16",
		"eq $17 $18",
		"neq $19 $20",
		"gt $21 $22",
		"lt $23 $24",
		"gtq $25 $26",
		"ltq $27 $28",
	}

	for _, source := range sources {
		asm := &Assembler{}
		prog, err := asm.ParseString(source)
		if !assert.NoError(err, source) {
			continue
		}
		code := prog.Binary()

		back, err := Disassemble(code)
		if !assert.NoError(err, source) {
			continue
		}
		assert.Equal(1, len(back.Instructions), source)
		assert.Equal(prog.Instructions[0].Opcode, back.Instructions[0].Opcode, source)
		assert.Equal(prog.Instructions[0].Operand, back.Instructions[0].Operand, source)
		assert.Equal(source, back.Instructions[0].String())
		assert.Equal(Decode(code[0]), prog.Instructions[0].Opcode, source)

		again, err := Assemble(back.String())
		assert.NoError(err, source)
		assert.Equal(code, again, source)
	}
}
