// Package script exposes the assembler and virtual machine to Starlark.
//
// Scripts see a module named asmvm:
//
//	code = asmvm.assemble("load $0 #100\nhlt")
//	print(asmvm.disassemble(code))
//	state = asmvm.run(code, budget=1000)
//	print(state.registers[0], state.halted, state.fault)
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/ezrec/asmvm/cpu"
	"github.com/ezrec/asmvm/emulator"
	"github.com/ezrec/asmvm/internal"
)

const (
	CACHE_SIZE = 128 // Default number of assembled programs to keep.
)

// Engine runs Starlark scripts against the assembler and VM.
// An Engine is safe for concurrent use; each run gets its own VM.
type Engine struct {
	Permissive bool        // Assemble with the permissive grammar.
	Budget     int         // Default instruction budget for run(). Zero is unlimited.
	Verbose    bool        // If set, logs cache and run activity.
	Logger     *zap.Logger // Logger. Optional.

	cache *lru.Cache[[32]byte, *cpu.Program]
}

// New creates an engine caching up to size assembled programs.
func New(size int) (engine *Engine, err error) {
	cache, err := lru.New[[32]byte, *cpu.Program](size)
	if err != nil {
		return
	}

	engine = &Engine{
		cache: cache,
	}

	return
}

var defaultEngine *Engine

func init() {
	var err error
	defaultEngine, err = New(CACHE_SIZE)
	if err != nil {
		panic(err)
	}
}

// Module returns the asmvm module of the default engine.
func Module() *starlarkstruct.Module {
	return defaultEngine.Module()
}

// Exec runs a script with the default engine.
func Exec(filename string, src any, out io.Writer) (globals starlark.StringDict, err error) {
	return defaultEngine.Exec(filename, src, out)
}

func (engine *Engine) log() *zap.Logger {
	return internal.Logger(engine.Logger)
}

// key is the cache key of source under the engine's grammar.
func (engine *Engine) key(source string) [32]byte {
	mode := "strict\n"
	if engine.Permissive {
		mode = "permissive\n"
	}
	return blake3.Sum256([]byte(mode + source))
}

// Cached returns true if source has an assembled program in the cache.
func (engine *Engine) Cached(source string) bool {
	return engine.cache.Contains(engine.key(source))
}

// Parse assembles source, using the cache. The returned program is owned by
// the caller.
func (engine *Engine) Parse(source string) (prog *cpu.Program, err error) {
	key := engine.key(source)

	cached, ok := engine.cache.Get(key)
	if !ok {
		asm := &cpu.Assembler{
			Permissive: engine.Permissive,
			Verbose:    engine.Verbose,
			Logger:     engine.Logger,
		}
		cached, err = asm.ParseString(source)
		if err != nil {
			return
		}
		engine.cache.Add(key, cached)
	}

	if engine.Verbose {
		engine.log().Debug("script: parse", zap.Bool("cached", ok), zap.Binary("key", key[:8]))
	}

	prog = &cpu.Program{
		Origin:       cached.Origin,
		Instructions: slices.Clone(cached.Instructions),
	}

	return
}

// Module returns the asmvm Starlark module.
func (engine *Engine) Module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "asmvm",
		Members: starlark.StringDict{
			"assemble":    starlark.NewBuiltin("assemble", engine.assemble),
			"disassemble": starlark.NewBuiltin("disassemble", engine.disassemble),
			"run":         starlark.NewBuiltin("run", engine.run),
		},
	}
}

// Exec runs a Starlark script with the asmvm module predeclared. print()
// output goes to out.
func (engine *Engine) Exec(filename string, src any, out io.Writer) (globals starlark.StringDict, err error) {
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(out, msg)
		},
	}
	opts := syntax.FileOptions{
		TopLevelControl: true,
		GlobalReassign:  true,
	}
	predeclared := starlark.StringDict{
		"asmvm": engine.Module(),
	}

	return starlark.ExecFileOptions(&opts, thread, filename, src, predeclared)
}

// assemble(src) -> bytes
func (engine *Engine) assemble(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (value starlark.Value, err error) {
	var src string
	err = starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &src)
	if err != nil {
		return
	}

	prog, err := engine.Parse(src)
	if err != nil {
		err = fmt.Errorf("%v: %w", b.Name(), err)
		return
	}

	value = starlark.Bytes(prog.Binary())
	return
}

// disassemble(code) -> list of str
func (engine *Engine) disassemble(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (value starlark.Value, err error) {
	var code starlark.Bytes
	err = starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &code)
	if err != nil {
		return
	}

	prog, err := cpu.Disassemble([]byte(code))
	if err != nil {
		err = fmt.Errorf("%v: %w", b.Name(), err)
		return
	}

	var lines []starlark.Value
	for _, ins := range prog.All() {
		lines = append(lines, starlark.String(ins.String()))
	}

	value = starlark.NewList(lines)
	return
}

// run(code_or_src, budget=0) -> struct
func (engine *Engine) run(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (value starlark.Value, err error) {
	var input starlark.Value
	budget := engine.Budget
	err = starlark.UnpackArgs(b.Name(), args, kwargs, "code", &input, "budget?", &budget)
	if err != nil {
		return
	}
	if budget < 0 {
		err = fmt.Errorf("%v: budget must not be negative", b.Name())
		return
	}

	emu := emulator.New()
	emu.Budget = budget
	emu.Verbose = engine.Verbose
	emu.Logger = engine.Logger

	switch input := input.(type) {
	case starlark.Bytes:
		emu.Cpu.LoadProgram([]byte(input))
	case starlark.String:
		var prog *cpu.Program
		prog, err = engine.Parse(string(input))
		if err != nil {
			err = fmt.Errorf("%v: %w", b.Name(), err)
			return
		}
		emu.Load(prog)
	default:
		err = fmt.Errorf("%v: got %v, want bytes or string", b.Name(), input.Type())
		return
	}

	fault := starlark.Value(starlark.None)
	err = emu.Run(context.Background())
	if err != nil {
		if !errors.Is(err, emulator.ErrBudget) && !errors.As(err, new(*cpu.Fault)) {
			return
		}
		fault = starlark.String(err.Error())
		err = nil
	}

	regs := emu.Registers()
	registers := make([]starlark.Value, len(regs))
	for n, reg := range regs {
		registers[n] = starlark.MakeInt(int(reg))
	}

	value = starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"registers": starlark.NewList(registers),
		"pc":        starlark.MakeInt(emu.Pc()),
		"remainder": starlark.MakeUint64(uint64(emu.Remainder())),
		"cond":      starlark.Bool(emu.Cond()),
		"halted":    starlark.Bool(emu.Halted()),
		"ticks":     starlark.MakeInt(emu.Ticks()),
		"fault":     fault,
	})

	return
}
