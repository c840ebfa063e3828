package cpu

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ezrec/asmvm/internal"
)

const (
	REGISTER_COUNT = 32 // General purpose registers, $0 to $31.
)

// Outcome is the result of a single Step.
type Outcome int

//go:generate go tool stringer -linecomment -type=Outcome
const (
	OUTCOME_CONTINUED = Outcome(0) // continued
	OUTCOME_HALTED    = Outcome(1) // halted
	OUTCOME_FAULTED   = Outcome(2) // faulted
)

// Cpu is the register machine that executes bytecode.
//
// A Cpu exclusively owns its registers, flags and program. It is not safe
// for concurrent use; run independent programs on independent Cpus.
type Cpu struct {
	Verbose bool        // Set to enable per-instruction logging.
	Logger  *zap.Logger // Logger for verbose output. Optional.

	register  [REGISTER_COUNT]int32
	pc        int
	remainder uint32
	cond      bool
	program   []byte

	halted bool
	fault  *Fault
	ticks  int
}

// NewCpu creates a new CPU with an empty program.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}

	return
}

// LoadProgram replaces the program with a copy of code and restarts
// execution at offset 0. Registers and flags are kept.
func (cpu *Cpu) LoadProgram(code []byte) {
	cpu.program = slices.Clone(code)
	cpu.pc = 0
	cpu.halted = false
	cpu.fault = nil
}

// Append extends the program with code. A CPU that halted cleanly, by
// running off the end of its program or by executing hlt, resumes at its
// program counter, which then points into the appended code. A faulted CPU
// stays halted until Reset.
func (cpu *Cpu) Append(code []byte) {
	cpu.program = append(cpu.program, code...)
	if cpu.fault == nil && cpu.pc < len(cpu.program) {
		cpu.halted = false
	}
}

// Reset the CPU state.
// - Clears the registers, remainder and conditional flag.
// - Zeros the tick counter.
// - Sets the program counter to 0, keeping the program.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		internal.Logger(cpu.Logger).Debug("cpu: reset")
	}

	clear(cpu.register[:])
	cpu.pc = 0
	cpu.remainder = 0
	cpu.cond = false
	cpu.halted = false
	cpu.fault = nil
	cpu.ticks = 0
}

// Register returns the value of register index.
func (cpu *Cpu) Register(index int) (value int32, err error) {
	if index < 0 || index >= REGISTER_COUNT {
		err = ErrRegisterRange
		return
	}
	value = cpu.register[index]
	return
}

// Registers returns a copy of the register file.
func (cpu *Cpu) Registers() [REGISTER_COUNT]int32 {
	return cpu.register
}

// Pc returns the program counter, as a byte offset into the program.
func (cpu *Cpu) Pc() int {
	return cpu.pc
}

// Remainder returns the remainder of the last division.
func (cpu *Cpu) Remainder() uint32 {
	return cpu.remainder
}

// Cond returns the result of the last comparison.
func (cpu *Cpu) Cond() bool {
	return cpu.cond
}

// Halted returns true once the CPU has stopped, cleanly or by fault.
func (cpu *Cpu) Halted() bool {
	return cpu.halted
}

// Fault returns the fault that halted the CPU, or nil.
func (cpu *Cpu) Fault() *Fault {
	return cpu.fault
}

// Ticks returns the number of instructions executed since the last Reset.
func (cpu *Cpu) Ticks() int {
	return cpu.ticks
}

// Program returns a copy of the loaded bytecode.
func (cpu *Cpu) Program() []byte {
	return slices.Clone(cpu.program)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	state := "running"
	switch {
	case cpu.fault != nil:
		state = "faulted"
	case cpu.halted:
		state = "halted"
	}
	text = fmt.Sprintf("   pc: %d/%d %v\n", cpu.pc, len(cpu.program), state)
	text += fmt.Sprintf(" cond: %v\n", cpu.cond)
	text += fmt.Sprintf("  rem: %d\n", cpu.remainder)
	for row := 0; row < REGISTER_COUNT; row += 8 {
		text += fmt.Sprintf("%5s:", fmt.Sprintf("$%d", row))
		for n := row; n < row+8; n++ {
			text += fmt.Sprintf(" %d", cpu.register[n])
		}
		text += "\n"
	}

	return
}

// raise halts the CPU with a fault for the instruction at pc.
func (cpu *Cpu) raise(kind FaultKind, pc int, op Opcode) (outcome Outcome, err error) {
	cpu.fault = &Fault{Kind: kind, Pc: pc, Opcode: op}
	cpu.halted = true
	cpu.pc = pc

	if cpu.Verbose {
		internal.Logger(cpu.Logger).Debug("cpu: fault", zap.Int("pc", pc), zap.Stringer("op", op), zap.Stringer("kind", kind))
	}

	return OUTCOME_FAULTED, cpu.fault
}

// jump moves the program counter to target, which may be at most the
// program length.
func (cpu *Cpu) jump(target int64, underflow FaultKind, pc int, op Opcode) (outcome Outcome, err error) {
	if target < 0 {
		return cpu.raise(underflow, pc, op)
	}
	if target > int64(len(cpu.program)) {
		return cpu.raise(FAULT_PC_RANGE, pc, op)
	}
	cpu.pc = int(target)
	return OUTCOME_CONTINUED, nil
}

// Step executes a single instruction.
//
// It returns OUTCOME_HALTED when a hlt is executed or the program counter
// is at the end of the program, and OUTCOME_FAULTED with a *Fault error
// when the instruction faults. Once halted, Step does nothing.
func (cpu *Cpu) Step() (outcome Outcome, err error) {
	if cpu.halted {
		if cpu.fault != nil {
			return OUTCOME_FAULTED, cpu.fault
		}
		return OUTCOME_HALTED, nil
	}

	if cpu.pc >= len(cpu.program) {
		cpu.halted = true
		return OUTCOME_HALTED, nil
	}

	pc := cpu.pc
	ins, err := DecodeInstruction(cpu.program, pc)
	switch {
	case err == nil:
	case errors.Is(err, ErrTruncated):
		return cpu.raise(FAULT_TRUNCATED, pc, ins.Opcode)
	default:
		return cpu.raise(FAULT_ILLEGAL_OPCODE, pc, ins.Opcode)
	}

	op := ins.Opcode
	cpu.pc = pc + ins.Len()
	cpu.ticks++

	if cpu.Verbose {
		internal.Logger(cpu.Logger).Debug("cpu: step", zap.Int("pc", pc), zap.Stringer("ins", &ins))
	}

	// Range check every register operand before any state change.
	var reg [3]int
	for n, tok := range ins.Operands() {
		if tok.Kind != TOKEN_REGISTER {
			continue
		}
		if tok.Value < 0 || tok.Value >= REGISTER_COUNT {
			return cpu.raise(FAULT_REGISTER_INVALID, pc, op)
		}
		reg[n] = int(tok.Value)
	}

	r := &cpu.register

	switch op {
	case OP_HLT:
		cpu.halted = true
		return OUTCOME_HALTED, nil
	case OP_NOP:
		// pass
	case OP_LOAD:
		r[reg[0]] = int32(uint16(ins.Operand[1].Value))
	case OP_ADD:
		r[reg[2]] = r[reg[0]] + r[reg[1]]
	case OP_SUB:
		r[reg[2]] = r[reg[0]] - r[reg[1]]
	case OP_MUL:
		r[reg[2]] = r[reg[0]] * r[reg[1]]
	case OP_DIV:
		a, b := r[reg[0]], r[reg[1]]
		if b == 0 {
			return cpu.raise(FAULT_DIVISION_BY_ZERO, pc, op)
		}
		r[reg[2]] = a / b
		cpu.remainder = uint32(a % b)
	case OP_JMP:
		return cpu.jump(int64(r[reg[0]]), FAULT_PC_RANGE, pc, op)
	case OP_JMPF:
		return cpu.jump(int64(cpu.pc)+int64(r[reg[0]]), FAULT_PC_RANGE, pc, op)
	case OP_JMPB:
		return cpu.jump(int64(cpu.pc)-int64(r[reg[0]]), FAULT_JUMP_UNDERFLOW, pc, op)
	case OP_JMPC:
		if cpu.cond {
			return cpu.jump(int64(r[reg[0]]), FAULT_PC_RANGE, pc, op)
		}
	case OP_EQ:
		cpu.cond = r[reg[0]] == r[reg[1]]
	case OP_NEQ:
		cpu.cond = r[reg[0]] != r[reg[1]]
	case OP_GT:
		cpu.cond = r[reg[0]] > r[reg[1]]
	case OP_LT:
		cpu.cond = r[reg[0]] < r[reg[1]]
	case OP_GTQ:
		cpu.cond = r[reg[0]] >= r[reg[1]]
	case OP_LTQ:
		cpu.cond = r[reg[0]] <= r[reg[1]]
	default:
		return cpu.raise(FAULT_ILLEGAL_OPCODE, pc, op)
	}

	return OUTCOME_CONTINUED, nil
}

// Run steps the CPU until it halts. A nil error means a clean halt.
func (cpu *Cpu) Run() (err error) {
	for {
		var outcome Outcome
		outcome, err = cpu.Step()
		if outcome != OUTCOME_CONTINUED {
			return
		}
	}
}
