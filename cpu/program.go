package cpu

import (
	"fmt"
	"iter"
	"strings"
)

// TokenKind is the type of a parsed token.
type TokenKind int

//go:generate go tool stringer -linecomment -type=TokenKind
const (
	TOKEN_NONE      = TokenKind(0) // -
	TOKEN_REGISTER  = TokenKind(1) // register
	TOKEN_IMMEDIATE = TokenKind(2) // immediate
)

// Token is a single parsed operand.
//
// For TOKEN_REGISTER the value is the register index, for TOKEN_IMMEDIATE
// the signed immediate.
type Token struct {
	Kind  TokenKind
	Value int32
}

// Register makes a register operand token.
func Register(index uint8) Token {
	return Token{Kind: TOKEN_REGISTER, Value: int32(index)}
}

// Immediate makes an immediate operand token.
func Immediate(value int32) Token {
	return Token{Kind: TOKEN_IMMEDIATE, Value: value}
}

func (tok Token) String() string {
	switch tok.Kind {
	case TOKEN_REGISTER:
		return fmt.Sprintf("$%d", tok.Value)
	case TOKEN_IMMEDIATE:
		return fmt.Sprintf("#%d", tok.Value)
	}
	return ""
}

// Instruction is one parsed line of assembly.
type Instruction struct {
	LineNo  int      // Source line, 1 based. Zero if not from source.
	Offset  int      // Byte offset of the opcode in the program.
	Opcode  Opcode   // Decoded opcode.
	Operand [3]Token // Operand slots, unused slots are TOKEN_NONE.
}

// NewInstruction builds an instruction from an opcode and its operands.
func NewInstruction(op Opcode, operands ...Token) (ins Instruction) {
	ins.Opcode = op
	copy(ins.Operand[:], operands)
	return
}

// Operands returns the populated operand slots.
func (ins *Instruction) Operands() (tokens []Token) {
	for _, tok := range ins.Operand {
		if tok.Kind == TOKEN_NONE {
			break
		}
		tokens = append(tokens, tok)
	}
	return
}

// Len returns the encoded size of the instruction in bytes.
func (ins *Instruction) Len() (size int) {
	size = 1
	for _, tok := range ins.Operands() {
		switch tok.Kind {
		case TOKEN_REGISTER:
			size += 1
		case TOKEN_IMMEDIATE:
			size += 2
		}
	}
	return
}

// AppendBinary appends the encoding of the instruction to code.
//
// Register operands are one byte, immediates are two bytes big endian,
// truncated to 16 bits.
func (ins *Instruction) AppendBinary(code []byte) []byte {
	code = append(code, ins.Opcode.Encode())
	for _, tok := range ins.Operands() {
		switch tok.Kind {
		case TOKEN_REGISTER:
			code = append(code, byte(tok.Value&0xff))
		case TOKEN_IMMEDIATE:
			imm := uint16(tok.Value)
			code = append(code, byte(imm>>8), byte(imm))
		}
	}
	return code
}

// String returns the canonical assembly text of the instruction.
func (ins *Instruction) String() string {
	words := []string{ins.Opcode.String()}
	for _, tok := range ins.Operands() {
		words = append(words, tok.String())
	}
	return strings.Join(words, " ")
}

// Program is an ordered list of instructions.
type Program struct {
	Origin       int           // Byte offset of the first instruction when loaded.
	Instructions []Instruction // Instructions in execution order.
}

// Len returns the encoded size of the program in bytes.
func (prog *Program) Len() (size int) {
	for n := range prog.Instructions {
		size += prog.Instructions[n].Len()
	}
	return
}

// Binary encodes the program into bytecode.
func (prog *Program) Binary() (code []byte) {
	code = make([]byte, 0, prog.Len())
	for n := range prog.Instructions {
		code = prog.Instructions[n].AppendBinary(code)
	}
	return
}

// Relocate moves the program to a new origin, updating instruction offsets.
func (prog *Program) Relocate(origin int) {
	delta := origin - prog.Origin
	for n := range prog.Instructions {
		prog.Instructions[n].Offset += delta
	}
	prog.Origin = origin
}

// All iterates over the instructions by absolute byte offset.
func (prog *Program) All() iter.Seq2[int, *Instruction] {
	return func(yield func(offset int, ins *Instruction) bool) {
		for n := range prog.Instructions {
			ins := &prog.Instructions[n]
			if !yield(ins.Offset, ins) {
				return
			}
		}
	}
}

// Debug finds the instruction that covers the byte offset pc.
func (prog *Program) Debug(pc int) (ins *Instruction) {
	for offset, candidate := range prog.All() {
		if pc >= offset && pc < offset+candidate.Len() {
			return candidate
		}
	}
	return nil
}

// String returns the program as assembly text, one instruction per line.
func (prog *Program) String() string {
	var sb strings.Builder
	for _, ins := range prog.All() {
		sb.WriteString(ins.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
