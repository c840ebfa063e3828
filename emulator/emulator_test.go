package emulator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ezrec/asmvm/cpu"
)

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := New()

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.Equal(0, emu.LineNo())
	assert.Nil(emu.Instruction())

	done, err := emu.Tick()
	assert.NoError(err)
	assert.True(done)
}

func doLoad(emu *Emulator, program []string, t *testing.T) *cpu.Program {
	prog, err := emu.Assemble(strings.Join(program, "\n"))
	require.NoError(t, err)
	emu.Load(prog)
	return prog
}

func TestEmulatorSingle(t *testing.T) {
	assert := assert.New(t)

	emu := New()

	program := []string{
		"load $0 #100",
		"load $1 #7",
		"",
		"div $0 $1 $2",
		"nop",
		"hlt",
	}
	prog := doLoad(emu, program, t)

	for _, ins := range prog.All() {
		assert.Equal(ins.LineNo, emu.LineNo())
		assert.Equal(ins.Offset, emu.Pc())
		assert.Same(ins, emu.Instruction())
		here := program[emu.LineNo()-1]
		done, err := emu.Tick()
		assert.NoError(err, here)
		assert.Equal(ins.Opcode == cpu.OP_HLT, done, here)
	}

	assert.Equal(int32(14), emu.Registers()[2])
	assert.Equal(uint32(2), emu.Remainder())
	assert.Equal(5, emu.Ticks())
}

func TestEmulatorRun(t *testing.T) {
	assert := assert.New(t)

	emu := New()
	doLoad(emu, []string{
		"load $0 #0",
		"load $1 #1",
		"load $2 #0",
		"load $3 #0",
		"load $4 #0",
		"load $5 #1",
		"load $6 #20",
		"add $1 $3 $2",
		"add $0 $1 $1",
		"add $2 $3 $0",
		"add $4 $5 $4",
		"lt $4 $6",
		"load $7 #28",
		"jmpc $7",
		"hlt",
	}, t)

	err := emu.Run(context.Background())
	assert.NoError(err)
	assert.Equal(int32(10946), emu.Registers()[1])
	assert.True(emu.Halted())
}

func TestEmulatorFault(t *testing.T) {
	assert := assert.New(t)

	emu := New()
	doLoad(emu, []string{
		"load $0 #10",
		"",
		"div $0 $1 $2",
	}, t)

	err := emu.Run(context.Background())
	assert.ErrorIs(err, cpu.ErrDivisionByZero)

	var rt *ErrRuntime
	if assert.ErrorAs(err, &rt) {
		assert.Equal(3, rt.LineNo)
		assert.Equal(4, rt.Pc)
		assert.Contains(rt.Error(), "line 3")
	}

	var fault *cpu.Fault
	if assert.ErrorAs(err, &fault) {
		assert.Equal(cpu.FAULT_DIVISION_BY_ZERO, fault.Kind)
	}

	// The fault is sticky.
	done, err := emu.Tick()
	assert.True(done)
	assert.ErrorIs(err, cpu.ErrDivisionByZero)

	emu.Reset()
	assert.False(emu.Halted())
	assert.Equal(0, emu.Pc())
}

func TestEmulatorPermissive(t *testing.T) {
	assert := assert.New(t)

	emu := New()
	_, err := emu.Assemble("bogus $1")
	assert.ErrorIs(err, cpu.ErrOpcodeInvalid)

	emu.Permissive = true
	doLoad(emu, []string{"nop", "bogus $1"}, t)

	err = emu.Run(context.Background())
	assert.ErrorIs(err, cpu.ErrIllegalOpcode)

	var rt *ErrRuntime
	if assert.ErrorAs(err, &rt) {
		assert.Equal(2, rt.LineNo)
		assert.Equal(1, rt.Pc)
	}
}

func TestEmulatorBudget(t *testing.T) {
	assert := assert.New(t)

	emu := New()
	emu.Budget = 100
	doLoad(emu, []string{
		"load $0 #0",
		"jmp $0",
	}, t)

	err := emu.Run(context.Background())
	assert.ErrorIs(err, ErrBudget)
	assert.False(emu.Halted())
	assert.Equal(100, emu.Ticks())

	// Budget is per Run.
	err = emu.Run(context.Background())
	assert.ErrorIs(err, ErrBudget)
	assert.Equal(200, emu.Ticks())
}

func TestEmulatorContext(t *testing.T) {
	assert := assert.New(t)

	emu := New()
	doLoad(emu, []string{
		"load $0 #0",
		"jmp $0",
	}, t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := emu.Run(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(0, emu.Ticks())
}

func TestEmulatorAppend(t *testing.T) {
	assert := assert.New(t)

	emu := New()
	first := doLoad(emu, []string{"load $0 #5", "load $1 #6"}, t)
	assert.NoError(emu.Run(context.Background()))
	assert.True(emu.Halted())

	second, err := emu.Assemble("mul $0 $1 $2\nhlt")
	require.NoError(t, err)
	emu.Append(second)
	assert.Equal(8, second.Origin)
	assert.False(emu.Halted())

	assert.Equal(1, emu.LineNo())
	assert.NoError(emu.Run(context.Background()))
	assert.Equal(int32(30), emu.Registers()[2])

	var offsets []int
	var lines []int
	for offset, ins := range emu.Listing() {
		offsets = append(offsets, offset)
		lines = append(lines, ins.LineNo)
	}
	assert.Equal([]int{0, 4, 8, 12}, offsets)
	assert.Equal([]int{1, 2, 1, 2}, lines)

	// Load replaces every listing.
	emu.Load(first)
	count := 0
	for range emu.Listing() {
		count++
	}
	assert.Equal(2, count)
	assert.Equal(0, emu.Pc())
}

func TestEmulatorVerbose(t *testing.T) {
	assert := assert.New(t)

	emu := New()
	emu.Verbose = true
	emu.Logger = zap.NewExample()
	doLoad(emu, []string{"load $0 #1", "hlt"}, t)
	assert.NoError(emu.Run(context.Background()))
	emu.Reset()
	assert.Equal(0, emu.Ticks())
}
