// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package repl is the interactive assembler shell.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/ezrec/asmvm/cpu"
	"github.com/ezrec/asmvm/emulator"
	"github.com/ezrec/asmvm/internal"
	"github.com/ezrec/asmvm/translate"
)

var f = translate.From

var (
	ErrCommandInvalid = errors.New(f("command invalid"))
	ErrCommandUsage   = errors.New(f("command usage"))
)

const (
	BANNER = "ASMVM DB\nv0.1\n"
)

// Repl reads assembly lines, appends them to the running program and
// executes them.
type Repl struct {
	Prompt       string             // Prompt printed before each line.
	HistoryLimit int                // Maximum remembered lines, 0 is unlimited.
	Emulator     *emulator.Emulator // Emulator running the entered program.
	Logger       *zap.Logger        // Logger. Optional.

	history []string
	out     io.Writer
}

// New creates a REPL around emu.
func New(emu *emulator.Emulator) (repl *Repl) {
	repl = &Repl{
		Prompt:   "-> ",
		Emulator: emu,
	}

	return
}

type command struct {
	name string
	args string
	help string
	run  func(repl *Repl, ctx context.Context, arg string) (quit bool, err error)
}

var commands []command

func init() {
	commands = []command{
		{".quit", "", "leave the shell", (*Repl).cmdQuit},
		{".history", "", "list entered lines", (*Repl).cmdHistory},
		{".program", "", "list the loaded program", (*Repl).cmdProgram},
		{".registers", "", "show the register file", (*Repl).cmdRegisters},
		{".reset", "", "clear the program and registers", (*Repl).cmdReset},
		{".load", "<file>", "assemble and run a file", (*Repl).cmdLoad},
		{".help", "", "list commands", (*Repl).cmdHelp},
	}
}

// History returns the remembered lines, oldest first.
func (repl *Repl) History() []string {
	return repl.history
}

func (repl *Repl) remember(line string) {
	repl.history = append(repl.history, line)
	if repl.HistoryLimit > 0 && len(repl.history) > repl.HistoryLimit {
		repl.history = repl.history[len(repl.history)-repl.HistoryLimit:]
	}
}

// Run reads lines from in until EOF, .quit or the context is done.
func (repl *Repl) Run(ctx context.Context, in io.Reader, out io.Writer) (err error) {
	repl.out = out

	fmt.Fprint(out, BANNER)
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, repl.Prompt)

		if !scanner.Scan() {
			fmt.Fprintln(out)
			err = scanner.Err()
			return
		}

		var quit bool
		quit, err = repl.Execute(ctx, scanner.Text(), out)
		if err != nil {
			fmt.Fprintln(out, f("error: %v", err))
		}
		if quit {
			return nil
		}

		err = ctx.Err()
		if err != nil {
			return
		}
	}
}

// Execute handles a single input line. Meta commands start with '.', any
// other text is assembled, appended and run.
func (repl *Repl) Execute(ctx context.Context, line string, out io.Writer) (quit bool, err error) {
	repl.out = out

	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	repl.remember(line)

	if line[0] == '.' {
		name, arg, _ := strings.Cut(line, " ")
		for _, cmd := range commands {
			if cmd.name == name {
				return cmd.run(repl, ctx, strings.TrimSpace(arg))
			}
		}
		err = fmt.Errorf("%w: %v", ErrCommandInvalid, name)
		return
	}

	err = repl.execute(ctx, line)

	return
}

// execute assembles source onto the end of the program and runs it.
func (repl *Repl) execute(ctx context.Context, source string) (err error) {
	emu := repl.Emulator

	prog, err := emu.Assemble(source)
	if err != nil {
		return
	}

	internal.Logger(repl.Logger).Debug("repl: append", zap.Int("origin", len(emu.Program())), zap.Int("bytes", prog.Len()))

	emu.Append(prog)

	return emu.Run(ctx)
}

func (repl *Repl) cmdQuit(ctx context.Context, arg string) (quit bool, err error) {
	quit = true
	return
}

func (repl *Repl) cmdHistory(ctx context.Context, arg string) (quit bool, err error) {
	for _, line := range repl.history {
		fmt.Fprintln(repl.out, line)
	}
	return
}

func (repl *Repl) cmdProgram(ctx context.Context, arg string) (quit bool, err error) {
	fmt.Fprintln(repl.out, ProgramTable(repl.Emulator))
	return
}

func (repl *Repl) cmdRegisters(ctx context.Context, arg string) (quit bool, err error) {
	fmt.Fprintln(repl.out, RegisterTable(repl.Emulator.Cpu))
	return
}

func (repl *Repl) cmdReset(ctx context.Context, arg string) (quit bool, err error) {
	repl.Emulator.Load(&cpu.Program{})
	repl.Emulator.Reset()
	return
}

func (repl *Repl) cmdLoad(ctx context.Context, arg string) (quit bool, err error) {
	if len(arg) == 0 {
		err = fmt.Errorf("%w: .load <file>", ErrCommandUsage)
		return
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return
	}

	err = repl.execute(ctx, string(data))

	return
}

func (repl *Repl) cmdHelp(ctx context.Context, arg string) (quit bool, err error) {
	for _, cmd := range commands {
		fmt.Fprintf(repl.out, "%-18s %v\n", strings.TrimSpace(cmd.name+" "+cmd.args), f(cmd.help))
	}
	fmt.Fprintln(repl.out, f("anything else is assembled and run"))
	return
}

// RegisterTable renders the CPU state as a table.
func RegisterTable(vm *cpu.Cpu) string {
	regs := vm.Registers()

	tw := table.NewWriter()
	tw.SetTitle(f("Registers"))
	tw.AppendHeader(table.Row{"", "+0", "+1", "+2", "+3", "+4", "+5", "+6", "+7"})
	for row := 0; row < cpu.REGISTER_COUNT; row += 8 {
		cells := table.Row{fmt.Sprintf("$%d", row)}
		for n := row; n < row+8; n++ {
			cells = append(cells, regs[n])
		}
		tw.AppendRow(cells)
	}
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"pc", vm.Pc(), "rem", vm.Remainder(), "cond", vm.Cond(), "ticks", vm.Ticks()})

	return tw.Render()
}

// ProgramTable renders the loaded program listing as a table.
func ProgramTable(emu *emulator.Emulator) string {
	pc := emu.Pc()

	tw := table.NewWriter()
	tw.SetTitle(f("Program"))
	tw.AppendHeader(table.Row{"", "offset", "line", "bytes", "instruction"})
	for offset, ins := range emu.Listing() {
		mark := ""
		if offset == pc {
			mark = ">"
		}
		code := ins.AppendBinary(nil)
		tw.AppendRow(table.Row{mark, offset, ins.LineNo, fmt.Sprintf("% x", code), ins.String()})
	}

	return tw.Render()
}
