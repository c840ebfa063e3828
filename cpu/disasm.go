package cpu

// DecodeInstruction decodes the instruction whose opcode byte is at offset.
//
// Operand bytes are consumed per the opcode's declared shape. Register
// indices are not range checked.
func DecodeInstruction(code []byte, offset int) (ins Instruction, err error) {
	if offset < 0 || offset >= len(code) {
		err = &ErrDecode{Offset: offset, Err: ErrTruncated}
		return
	}

	ins.Offset = offset
	ins.Opcode = Decode(code[offset])
	if !ins.Opcode.Valid() {
		err = &ErrDecode{Offset: offset, Err: ErrOpcodeDecode}
		return
	}

	shape := ins.Opcode.Shape()
	if offset+shape.Length() > len(code) {
		err = &ErrDecode{Offset: offset, Err: ErrTruncated}
		return
	}

	pos := offset + 1
	for n, kind := range shape.Operands() {
		switch kind {
		case TOKEN_REGISTER:
			ins.Operand[n] = Register(code[pos])
			pos += 1
		case TOKEN_IMMEDIATE:
			imm := uint16(code[pos])<<8 | uint16(code[pos+1])
			ins.Operand[n] = Immediate(int32(imm))
			pos += 2
		}
	}

	return
}

// Disassemble decodes bytecode into a Program.
//
// Immediates decode as their unsigned 16-bit value, so a program assembled
// from immediates outside 0..65535 disassembles to the truncated values.
func Disassemble(code []byte) (prog *Program, err error) {
	var instructions []Instruction

	for offset := 0; offset < len(code); {
		var ins Instruction
		ins, err = DecodeInstruction(code, offset)
		if err != nil {
			return
		}
		instructions = append(instructions, ins)
		offset += ins.Len()
	}

	prog = &Program{Instructions: instructions}

	return
}
