// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/ezrec/asmvm/cpu"
	"github.com/ezrec/asmvm/internal"
)

// Emulator state. CPU + program listings.
type Emulator struct {
	Verbose    bool        // If set, enables verbose logging.
	Permissive bool        // If set, Assemble uses the permissive grammar.
	Budget     int         // Maximum instructions per Run. Zero is unlimited.
	Logger     *zap.Logger // Logger for verbose output. Optional.

	*cpu.Cpu // Reference to the CPU simulation.

	programs []*cpu.Program
}

// New creates a new emulator with an empty program.
func New() (emu *Emulator) {
	emu = &Emulator{
		Cpu: cpu.NewCpu(),
	}

	return
}

func (emu *Emulator) log() *zap.Logger {
	return internal.Logger(emu.Logger)
}

// Assemble parses source with the emulator's assembler settings.
func (emu *Emulator) Assemble(source string) (prog *cpu.Program, err error) {
	asm := &cpu.Assembler{
		Verbose:    emu.Verbose,
		Permissive: emu.Permissive,
		Logger:     emu.Logger,
	}

	return asm.ParseString(source)
}

// Load replaces the running program. Registers and flags are kept, the
// program counter restarts at 0.
func (emu *Emulator) Load(prog *cpu.Program) {
	prog.Relocate(0)
	emu.programs = []*cpu.Program{prog}
	emu.Cpu.LoadProgram(prog.Binary())

	if emu.Verbose {
		emu.log().Debug("emulator: load", zap.Int("bytes", prog.Len()))
	}
}

// Append places prog after the loaded bytecode. A CPU that ran off the end
// of its program continues into the appended code.
func (emu *Emulator) Append(prog *cpu.Program) {
	origin := len(emu.Cpu.Program())
	prog.Relocate(origin)
	emu.programs = append(emu.programs, prog)
	emu.Cpu.Append(prog.Binary())

	if emu.Verbose {
		emu.log().Debug("emulator: append", zap.Int("origin", origin), zap.Int("bytes", prog.Len()))
	}
}

// Reset clears the CPU state, keeping the loaded program.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Logger = emu.Logger
	emu.Cpu.Reset()
}

// Listing returns an iterator over every loaded instruction, by absolute
// byte offset.
func (emu *Emulator) Listing() iter.Seq2[int, *cpu.Instruction] {
	seqs := make([]iter.Seq2[int, *cpu.Instruction], 0, len(emu.programs))
	for _, prog := range emu.programs {
		seqs = append(seqs, prog.All())
	}

	return internal.IterSeq2Concat(seqs...)
}

// Instruction returns the instruction at the program counter, or nil.
func (emu *Emulator) Instruction() *cpu.Instruction {
	pc := emu.Cpu.Pc()
	for _, prog := range emu.programs {
		if ins := prog.Debug(pc); ins != nil {
			return ins
		}
	}

	return nil
}

// LineNo returns the current line number for the executing instruction.
func (emu *Emulator) LineNo() int {
	if ins := emu.Instruction(); ins != nil {
		return ins.LineNo
	}

	return 0
}

// Tick performs a single instruction of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Logger = emu.Logger

	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			fault := emu.Cpu.Fault()
			pc := emu.Cpu.Pc()
			if fault != nil {
				pc = fault.Pc
			}
			err = &ErrRuntime{LineNo: lineno, Pc: pc, Err: err}
		}
	}()

	outcome, err := emu.Cpu.Step()
	done = outcome != cpu.OUTCOME_CONTINUED

	return
}

// Run ticks the emulator until the CPU halts, the context is done, or the
// instruction budget is spent.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	for n := 0; ; n++ {
		if emu.Budget > 0 && n >= emu.Budget {
			if emu.Cpu.Halted() {
				return
			}
			err = ErrBudget
			return
		}

		err = ctx.Err()
		if err != nil {
			return
		}

		var done bool
		done, err = emu.Tick()
		if done || err != nil {
			if emu.Verbose {
				emu.log().Debug("emulator: stopped", zap.Int("ticks", emu.Cpu.Ticks()), zap.Error(err))
			}
			return
		}
	}
}
