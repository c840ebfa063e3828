// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ezrec/asmvm/internal"
)

// Assembler converts assembly text into a Program.
//
// In the default strict mode the operand grammar of each instruction is
// chosen by the declared shape of its mnemonic, and unknown mnemonics are
// rejected. In Permissive mode the operand grammars are tried in a fixed
// order and unknown mnemonics assemble to OP_IGL.
type Assembler struct {
	Verbose    bool        // If set, logs each parsed instruction.
	Permissive bool        // If set, use try-order grammar selection.
	Logger     *zap.Logger // Logger for verbose output. Optional.
}

// permissiveOrder is the grammar try order for permissive mode.
var permissiveOrder = []Shape{SHAPE_RRR, SHAPE_RI, SHAPE_RR, SHAPE_R, SHAPE_NONE}

// Assemble parses source with a strict assembler and encodes it.
func Assemble(source string) (code []byte, err error) {
	asm := &Assembler{}
	prog, err := asm.ParseString(source)
	if err != nil {
		return
	}

	code = prog.Binary()
	return
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	text, err := io.ReadAll(input)
	if err != nil {
		return
	}

	return asm.ParseString(string(text))
}

// ParseString parses source text into a Program. No partial program is
// returned on error.
func (asm *Assembler) ParseString(source string) (prog *Program, err error) {
	log := internal.Logger(asm.Logger)

	sc := &scanner{text: source, lineNo: 1}

	defer func() {
		if err != nil {
			prog = nil
		}
	}()

	var instructions []Instruction
	offset := 0

	sc.skipSeparators()
	for !sc.eof() {
		var ins Instruction
		ins, err = asm.instruction(sc)
		if err != nil {
			return
		}
		ins.Offset = offset
		offset += ins.Len()

		if asm.Verbose {
			log.Debug("asm", zap.Int("line", ins.LineNo), zap.Int("offset", ins.Offset), zap.Stringer("ins", &ins))
		}

		instructions = append(instructions, ins)
		sc.skipSeparators()
	}

	if len(instructions) == 0 {
		err = sc.errorf(ErrProgramEmpty)
		return
	}

	prog = &Program{Instructions: instructions}

	return
}

// instruction parses a single instruction at the scanner position.
func (asm *Assembler) instruction(sc *scanner) (ins Instruction, err error) {
	start := *sc

	word, ok := sc.mnemonic()
	if !ok {
		err = sc.errorf(ErrInstructionInvalid)
		return
	}

	ins.LineNo = start.lineNo
	ins.Opcode = FromMnemonic(word)

	if asm.Permissive {
		err = asm.permissiveOperands(sc, &ins)
		if err != nil {
			return
		}
	} else {
		if !ins.Opcode.Valid() {
			*sc = start
			err = sc.errorf(ErrOpcodeInvalid)
			return
		}
		err = asm.strictOperands(sc, &ins)
		if err != nil {
			return
		}
	}

	return
}

// strictOperands parses exactly the operands of the opcode's shape.
func (asm *Assembler) strictOperands(sc *scanner, ins *Instruction) (err error) {
	for n, kind := range ins.Opcode.Shape().Operands() {
		var tok Token
		var ok bool
		tok, ok, err = sc.operand(kind)
		if err != nil {
			return
		}
		if !ok {
			sc.skipSpace()
			cause := ErrShapeMismatch
			switch {
			case kind == TOKEN_REGISTER && sc.peek() == '$':
				cause = ErrRegisterSyntax
			case kind == TOKEN_IMMEDIATE && sc.peek() == '#':
				cause = ErrImmediateSyntax
			}
			err = sc.errorf(cause)
			return
		}
		ins.Operand[n] = tok
	}

	// Excess operands.
	sc.skipSpace()
	if c := sc.peek(); c == '$' || c == '#' {
		err = sc.errorf(ErrShapeMismatch)
		return
	}

	return
}

// permissiveOperands tries each shape's grammar in order, taking the first
// that matches.
func (asm *Assembler) permissiveOperands(sc *scanner, ins *Instruction) (err error) {
	after := *sc

	for _, shape := range permissiveOrder {
		*sc = after
		var operand [3]Token
		matched := true
		for n, kind := range shape.Operands() {
			var tok Token
			var ok bool
			tok, ok, err = sc.operand(kind)
			if err != nil {
				return
			}
			if !ok {
				matched = false
				break
			}
			operand[n] = tok
		}
		if matched {
			ins.Operand = operand
			break
		}
	}

	return
}

// scanner is a cursor over assembly text.
type scanner struct {
	text      string
	pos       int
	lineNo    int
	lineStart int
}

func (sc *scanner) eof() bool {
	return sc.pos >= len(sc.text)
}

func (sc *scanner) peek() byte {
	if sc.eof() {
		return 0
	}
	return sc.text[sc.pos]
}

func (sc *scanner) advance() {
	if sc.text[sc.pos] == '\n' {
		sc.lineNo++
		sc.lineStart = sc.pos + 1
	}
	sc.pos++
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// skipSpace skips whitespace, including newlines.
func (sc *scanner) skipSpace() {
	for !sc.eof() && isSpace(sc.peek()) {
		sc.advance()
	}
}

// skipSeparators skips whitespace and ';' instruction separators.
func (sc *scanner) skipSeparators() {
	for !sc.eof() && (isSpace(sc.peek()) || sc.peek() == ';') {
		sc.advance()
	}
}

// take consumes the longest run of bytes matching fn.
func (sc *scanner) take(fn func(c byte) bool) string {
	start := sc.pos
	for !sc.eof() && fn(sc.peek()) {
		sc.advance()
	}
	return sc.text[start:sc.pos]
}

// mnemonic consumes one or more letters.
func (sc *scanner) mnemonic() (word string, ok bool) {
	word = sc.take(isAlpha)
	ok = len(word) > 0
	return
}

// operand parses a register or immediate operand with surrounding
// whitespace. ok is false, and the scanner unmoved, if the text does not
// have the operand's form. err is set for well formed operands whose value
// is out of range.
func (sc *scanner) operand(kind TokenKind) (tok Token, ok bool, err error) {
	start := *sc
	defer func() {
		if !ok {
			if err == nil {
				*sc = start
			}
		}
	}()

	sc.skipSpace()
	switch kind {
	case TOKEN_REGISTER:
		if sc.peek() != '$' {
			return
		}
		sc.advance()
		digits := sc.take(isDigit)
		if len(digits) == 0 {
			return
		}
		var index uint64
		index, err = strconv.ParseUint(digits, 10, 8)
		if err != nil || index >= REGISTER_COUNT {
			err = sc.errorf(ErrRegisterInvalid)
			return
		}
		tok = Register(uint8(index))
	case TOKEN_IMMEDIATE:
		if sc.peek() != '#' {
			return
		}
		sc.advance()
		sign := ""
		if sc.peek() == '-' {
			sign = "-"
			sc.advance()
		}
		digits := sc.take(isDigit)
		if len(digits) == 0 {
			return
		}
		var value int64
		value, err = strconv.ParseInt(sign+digits, 10, 32)
		if err != nil {
			err = sc.errorf(ErrImmediateRange)
			return
		}
		tok = Immediate(int32(value))
	default:
		return
	}
	sc.skipSpace()

	ok = true
	return
}

// errorf builds an ErrSyntax at the current position.
func (sc *scanner) errorf(cause error) error {
	line := sc.text[sc.lineStart:]
	if n := strings.IndexByte(line, '\n'); n >= 0 {
		line = line[:n]
	}
	return &ErrSyntax{
		LineNo: sc.lineNo,
		Column: sc.pos - sc.lineStart + 1,
		Line:   strings.TrimSpace(line),
		Err:    cause,
	}
}
