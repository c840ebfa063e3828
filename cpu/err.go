package cpu

import (
	"errors"

	"github.com/ezrec/asmvm/translate"
)

var f = translate.From

var (
	// Assembler errors
	ErrProgramEmpty       = errors.New(f("program empty"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrOpcodeInvalid      = errors.New(f("opcode invalid"))
	ErrShapeMismatch      = errors.New(f("operands do not match opcode"))
	ErrRegisterSyntax     = errors.New(f("register syntax"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrImmediateSyntax    = errors.New(f("immediate syntax"))
	ErrImmediateRange     = errors.New(f("immediate out of range"))

	// Disassembler errors
	ErrOpcodeDecode = errors.New(f("decode"))
	ErrTruncated    = errors.New(f("truncated instruction"))

	// Cpu faults, one per FaultKind
	ErrIllegalOpcode  = errors.New(f("illegal opcode"))
	ErrDivisionByZero = errors.New(f("division by zero"))
	ErrRegisterRange  = errors.New(f("register out of range"))
	ErrPcRange        = errors.New(f("program counter out of range"))
	ErrJumpUnderflow  = errors.New(f("jump underflow"))
	ErrProgramEnd     = errors.New(f("operands past end of program"))
)

// ErrSyntax locates an assembly error in the source text.
type ErrSyntax struct {
	LineNo int
	Column int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d:%d '%v' %v", err.LineNo, err.Column, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

// ErrDecode locates a disassembly error in the bytecode.
type ErrDecode struct {
	Offset int
	Err    error
}

func (err *ErrDecode) Error() string {
	return f("offset %d %v", err.Offset, err.Err)
}

func (err *ErrDecode) Unwrap() error {
	return err.Err
}

// FaultKind classifies a run-time fault.
type FaultKind int

const (
	FAULT_ILLEGAL_OPCODE   = FaultKind(0) // illegal opcode
	FAULT_DIVISION_BY_ZERO = FaultKind(1) // division by zero
	FAULT_REGISTER_INVALID = FaultKind(2) // register out of range
	FAULT_PC_RANGE         = FaultKind(3) // program counter out of range
	FAULT_JUMP_UNDERFLOW   = FaultKind(4) // jump underflow
	FAULT_TRUNCATED        = FaultKind(5) // operands past end of program
)

var faultErr = [...]error{
	FAULT_ILLEGAL_OPCODE:   ErrIllegalOpcode,
	FAULT_DIVISION_BY_ZERO: ErrDivisionByZero,
	FAULT_REGISTER_INVALID: ErrRegisterRange,
	FAULT_PC_RANGE:         ErrPcRange,
	FAULT_JUMP_UNDERFLOW:   ErrJumpUnderflow,
	FAULT_TRUNCATED:        ErrProgramEnd,
}

// Err returns the sentinel error of the fault kind.
func (kind FaultKind) Err() error {
	if kind < 0 || int(kind) >= len(faultErr) {
		return ErrIllegalOpcode
	}
	return faultErr[kind]
}

func (kind FaultKind) String() string {
	return kind.Err().Error()
}

// Fault is a run-time error raised by an instruction.
// The Cpu halts on any fault.
type Fault struct {
	Kind   FaultKind
	Pc     int    // Offset of the faulting instruction's opcode byte.
	Opcode Opcode // Opcode being executed.
}

func (fault *Fault) Error() string {
	return f("pc %d %v: %v", fault.Pc, fault.Opcode, fault.Kind)
}

func (fault *Fault) Unwrap() error {
	return fault.Kind.Err()
}
