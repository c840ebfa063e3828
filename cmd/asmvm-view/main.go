// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/tebeka/atexit"

	"github.com/ezrec/asmvm/config"
	"github.com/ezrec/asmvm/emulator"
)

const (
	RUN_BUDGET = 1_000_000 // Instruction cap for 'r' when no budget is configured.
)

// Viewer is a single step debugger for one program.
type Viewer struct {
	app *tview.Application

	programView  *tview.Table
	registerView *tview.Table
	statusView   *tview.TextView

	emu    *emulator.Emulator
	status string
}

// NewViewer builds the debugger UI around emu.
func NewViewer(emu *emulator.Emulator, title string) (v *Viewer) {
	app := tview.NewApplication()

	programView := tview.NewTable().SetBorders(false)
	programView.SetTitle(title).SetBorder(true)

	registerView := tview.NewTable().SetBorders(false)
	registerView.SetTitle("Registers").SetBorder(true)

	statusView := tview.NewTextView().SetDynamicColors(true)
	statusView.SetBorder(true)

	help := tview.NewTextView().
		SetText("s step  r run  R reset  q quit")

	rightPane := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(registerView, 0, 3, false).
		AddItem(statusView, 3, 0, false).
		AddItem(help, 1, 0, false)

	flex := tview.NewFlex().
		AddItem(programView, 0, 1, true).
		AddItem(rightPane, 0, 1, false)

	app.SetRoot(flex, true)

	v = &Viewer{
		app:          app,
		programView:  programView,
		registerView: registerView,
		statusView:   statusView,
		emu:          emu,
		status:       "ready",
	}

	app.SetInputCapture(v.input)

	return
}

func (v *Viewer) input(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		v.app.Stop()
		return nil
	}

	switch event.Rune() {
	case 's':
		v.step()
	case 'r':
		v.run()
	case 'R':
		v.emu.Reset()
		v.status = "reset"
	case 'q':
		v.app.Stop()
		return nil
	default:
		return event
	}

	v.Draw()
	return nil
}

func (v *Viewer) report(err error) {
	switch {
	case err == nil && v.emu.Halted():
		v.status = "[green]halted"
	case err == nil:
		v.status = "stepped"
	case errors.Is(err, emulator.ErrBudget):
		v.status = fmt.Sprintf("[yellow]%v", err)
	default:
		v.status = fmt.Sprintf("[red]%v", err)
	}
}

func (v *Viewer) step() {
	_, err := v.emu.Tick()
	v.report(err)
}

func (v *Viewer) run() {
	budget := v.emu.Budget
	if budget == 0 {
		v.emu.Budget = RUN_BUDGET
		defer func() { v.emu.Budget = budget }()
	}

	err := v.emu.Run(context.Background())
	v.report(err)
}

// Draw refreshes every view from the emulator state.
func (v *Viewer) Draw() {
	v.drawProgram()
	v.drawRegisters()

	v.statusView.SetText(fmt.Sprintf("ticks %d  %v", v.emu.Ticks(), v.status))
}

func (v *Viewer) drawProgram() {
	pc := v.emu.Pc()

	v.programView.Clear()
	for i, elem := range []string{"", "offset", "line", "instruction"} {
		cell := tview.NewTableCell(elem).
			SetAttributes(tcell.AttrBold).
			SetAlign(tview.AlignCenter)
		v.programView.SetCell(0, i, cell).SetFixed(1, i)
	}

	row := 1
	for offset, ins := range v.emu.Listing() {
		mark := ""
		if offset == pc {
			mark = ">"
		}
		for j, content := range []any{mark, fmt.Sprintf("%04x", offset), ins.LineNo, ins} {
			cell := tview.NewTableCell(fmt.Sprint(content))
			if offset == pc {
				cell.SetAttributes(tcell.AttrReverse)
			}
			v.programView.SetCell(row, j, cell)
		}
		row++
	}
}

func (v *Viewer) drawRegisters() {
	regs := v.emu.Registers()

	v.registerView.Clear()
	for n, reg := range regs {
		name := tview.NewTableCell(fmt.Sprintf("$%d", n)).SetTextColor(tcell.ColorDimGray)
		value := tview.NewTableCell(fmt.Sprint(reg)).SetAlign(tview.AlignRight)
		if reg != 0 {
			value.SetAttributes(tcell.AttrBold)
		}
		v.registerView.SetCell(n%16, (n/16)*2, name)
		v.registerView.SetCell(n%16, (n/16)*2+1, value)
	}

	for n, content := range [][2]any{
		{"pc", v.emu.Pc()},
		{"rem", v.emu.Remainder()},
		{"cond", v.emu.Cond()},
	} {
		v.registerView.SetCell(17+n, 0, tview.NewTableCell(fmt.Sprint(content[0])).SetTextColor(tcell.ColorDimGray))
		v.registerView.SetCell(17+n, 1, tview.NewTableCell(fmt.Sprint(content[1])).SetAlign(tview.AlignRight))
	}
}

// Run the UI until quit.
func (v *Viewer) Run() error {
	v.Draw()
	return v.app.Run()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%v: ", os.Args[0])
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	atexit.Exit(1)
}

func main() {
	var configPath string
	var permissive bool

	flag.StringVar(&configPath, "config", "", "asmvm.toml file to use")
	flag.BoolVar(&permissive, "permissive", false, "Permissive operand grammar")

	flag.Parse()

	if flag.NArg() != 1 {
		fatalf("usage: %v [-config asmvm.toml] [-permissive] program.asm", os.Args[0])
	}
	path := flag.Arg(0)

	var cfg *config.Config
	var err error
	if len(configPath) != 0 {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		fatalf("%v", err)
	}
	if permissive {
		cfg.VM.Permissive = true
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fatalf("%v", err)
	}

	emu := emulator.New()
	emu.Permissive = cfg.VM.Permissive
	emu.Budget = cfg.VM.Budget

	prog, err := emu.Assemble(string(source))
	if err != nil {
		fatalf("%v: %v", path, err)
	}
	emu.Load(prog)

	viewer := NewViewer(emu, path)
	if err = viewer.Run(); err != nil {
		fatalf("%v", err)
	}

	atexit.Exit(0)
}
