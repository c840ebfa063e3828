package cpu

// Opcode is the numeric identifier of an instruction.
type Opcode uint8

const (
	OP_HLT  = Opcode(0)   // hlt
	OP_LOAD = Opcode(1)   // load
	OP_ADD  = Opcode(2)   // add
	OP_SUB  = Opcode(3)   // sub
	OP_MUL  = Opcode(4)   // mul
	OP_DIV  = Opcode(5)   // div
	OP_JMP  = Opcode(6)   // jmp
	OP_JMPB = Opcode(7)   // jmpb
	OP_JMPF = Opcode(8)   // jmpf
	OP_JMPC = Opcode(9)   // jmpc
	OP_EQ   = Opcode(10)  // eq
	OP_NEQ  = Opcode(11)  // neq
	OP_GT   = Opcode(12)  // gt
	OP_LT   = Opcode(13)  // lt
	OP_GTQ  = Opcode(14)  // gtq
	OP_LTQ  = Opcode(15)  // ltq
	OP_IGL  = Opcode(16)  // igl
	OP_NOP  = Opcode(255) // nop
)

// Shape is the operand pattern an opcode requires.
type Shape int

//go:generate go tool stringer -linecomment -type=Shape
const (
	SHAPE_NONE = Shape(0) // none
	SHAPE_R    = Shape(1) // reg
	SHAPE_RI   = Shape(2) // reg,imm
	SHAPE_RR   = Shape(3) // reg,reg
	SHAPE_RRR  = Shape(4) // reg,reg,reg
)

// Operand kinds, in slot order, for each shape.
var shapeOperands = [...][]TokenKind{
	SHAPE_NONE: nil,
	SHAPE_R:    {TOKEN_REGISTER},
	SHAPE_RI:   {TOKEN_REGISTER, TOKEN_IMMEDIATE},
	SHAPE_RR:   {TOKEN_REGISTER, TOKEN_REGISTER},
	SHAPE_RRR:  {TOKEN_REGISTER, TOKEN_REGISTER, TOKEN_REGISTER},
}

// Operands returns the operand kinds of the shape, in order.
func (s Shape) Operands() []TokenKind {
	if s < 0 || int(s) >= len(shapeOperands) {
		return nil
	}
	return shapeOperands[s]
}

// Length returns the encoded byte length of an instruction of this shape,
// including the opcode byte.
func (s Shape) Length() (size int) {
	size = 1
	for _, kind := range s.Operands() {
		switch kind {
		case TOKEN_REGISTER:
			size += 1
		case TOKEN_IMMEDIATE:
			size += 2
		}
	}
	return
}

type opcodeInfo struct {
	mnemonic string
	shape    Shape
}

var opcodeTable = map[Opcode]opcodeInfo{
	OP_HLT:  {"hlt", SHAPE_NONE},
	OP_LOAD: {"load", SHAPE_RI},
	OP_ADD:  {"add", SHAPE_RRR},
	OP_SUB:  {"sub", SHAPE_RRR},
	OP_MUL:  {"mul", SHAPE_RRR},
	OP_DIV:  {"div", SHAPE_RRR},
	OP_JMP:  {"jmp", SHAPE_R},
	OP_JMPB: {"jmpb", SHAPE_R},
	OP_JMPF: {"jmpf", SHAPE_R},
	OP_JMPC: {"jmpc", SHAPE_R},
	OP_EQ:   {"eq", SHAPE_RR},
	OP_NEQ:  {"neq", SHAPE_RR},
	OP_GT:   {"gt", SHAPE_RR},
	OP_LT:   {"lt", SHAPE_RR},
	OP_GTQ:  {"gtq", SHAPE_RR},
	OP_LTQ:  {"ltq", SHAPE_RR},
	OP_NOP:  {"nop", SHAPE_NONE},
}

// mnemonicMap is the reverse of opcodeTable.
var mnemonicMap = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.mnemonic] = op
	}
	return m
}()

// Decode maps any byte to an opcode. Unassigned values decode to OP_IGL.
func Decode(b byte) Opcode {
	op := Opcode(b)
	if _, ok := opcodeTable[op]; ok {
		return op
	}
	return OP_IGL
}

// Encode returns the byte emitted for the opcode.
func (op Opcode) Encode() byte {
	return byte(op)
}

// FromMnemonic maps a lower case mnemonic to its opcode. Unknown text maps
// to OP_IGL.
func FromMnemonic(text string) Opcode {
	op, ok := mnemonicMap[text]
	if !ok {
		return OP_IGL
	}
	return op
}

// Valid returns true if the opcode is executable.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Shape returns the declared operand shape. OP_IGL has SHAPE_NONE.
func (op Opcode) Shape() Shape {
	return opcodeTable[op].shape
}

func (op Opcode) String() string {
	info, ok := opcodeTable[op]
	if !ok {
		return "igl"
	}
	return info.mnemonic
}
