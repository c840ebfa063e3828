// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/ezrec/asmvm/config"
	"github.com/ezrec/asmvm/cpu"
	"github.com/ezrec/asmvm/emulator"
	"github.com/ezrec/asmvm/repl"
	"github.com/ezrec/asmvm/script"
)

var logger *zap.Logger

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%v: ", os.Args[0])
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	atexit.Exit(1)
}

func main() {
	var configPath string
	var verbose bool
	var budget int
	var permissive bool
	var compile string
	var output string
	var binary string
	var disasm bool
	var scriptPath string

	flag.StringVar(&configPath, "config", "", "asmvm.toml file to use")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.IntVar(&budget, "n", 0, "Instruction budget, 0 is unlimited")
	flag.BoolVar(&permissive, "permissive", false, "Permissive operand grammar")
	flag.StringVar(&compile, "c", "", ".asm file to compile")
	flag.StringVar(&output, "o", "", "Bytecode output, do not execute")
	flag.StringVar(&binary, "b", "", "Bytecode file to run")
	flag.BoolVar(&disasm, "d", false, "Print a disassembly, do not execute")
	flag.StringVar(&scriptPath, "s", "", ".star script to run")

	flag.Parse()

	if flag.NArg() != 0 {
		fatalf("Unknown arguments: %v", flag.Args())
	}

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

	// Flags override the configuration file.
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "v":
			cfg.Log.Verbose = verbose
		case "n":
			cfg.VM.Budget = budget
		case "permissive":
			cfg.VM.Permissive = permissive
		}
	})
	if err = cfg.Validate(); err != nil {
		fatalf("%v", err)
	}

	if cfg.Log.Verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fatalf("logger: %v", err)
	}
	atexit.Register(func() {
		_ = logger.Sync()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	atexit.Register(stop)

	emu := emulator.New()
	emu.Verbose = cfg.Log.Verbose
	emu.Permissive = cfg.VM.Permissive
	emu.Budget = cfg.VM.Budget
	emu.Logger = logger

	switch {
	case len(scriptPath) != 0:
		err = runScript(cfg, scriptPath)
	case len(compile) != 0:
		err = runSource(ctx, emu, compile, output, disasm)
	case len(binary) != 0:
		err = runBinary(ctx, emu, binary, disasm)
	default:
		shell := repl.New(emu)
		shell.Prompt = cfg.Repl.Prompt
		shell.HistoryLimit = cfg.Repl.History
		shell.Logger = logger
		err = shell.Run(ctx, os.Stdin, os.Stdout)
	}

	if err != nil {
		fatalf("%v", err)
	}

	atexit.Exit(0)
}

func runScript(cfg *config.Config, path string) (err error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return
	}

	engine, err := script.New(script.CACHE_SIZE)
	if err != nil {
		return
	}
	engine.Permissive = cfg.VM.Permissive
	engine.Budget = cfg.VM.Budget
	engine.Verbose = cfg.Log.Verbose
	engine.Logger = logger

	_, err = engine.Exec(path, src, os.Stdout)

	return
}

func runSource(ctx context.Context, emu *emulator.Emulator, path string, output string, disasm bool) (err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	asm := &cpu.Assembler{
		Verbose:    emu.Verbose,
		Permissive: emu.Permissive,
		Logger:     logger,
	}
	prog, err := asm.Parse(inf)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
		return
	}

	if len(output) != 0 {
		err = os.WriteFile(output, prog.Binary(), 0o644)
		return
	}

	if disasm {
		fmt.Print(prog.String())
		return
	}

	emu.Load(prog)

	return execute(ctx, emu)
}

func runBinary(ctx context.Context, emu *emulator.Emulator, path string, disasm bool) (err error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return
	}

	prog, err := cpu.Disassemble(code)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
		if disasm {
			return
		}
		// Undecodable bytecode still runs, up to its fault.
		logger.Warn("disassemble", zap.Error(err))
		emu.Cpu.LoadProgram(code)
		return execute(ctx, emu)
	}

	if disasm {
		for offset, ins := range prog.All() {
			fmt.Printf("%04x: %v\n", offset, ins)
		}
		return
	}

	emu.Load(prog)

	return execute(ctx, emu)
}

func execute(ctx context.Context, emu *emulator.Emulator) (err error) {
	err = emu.Run(ctx)

	fmt.Println(repl.RegisterTable(emu.Cpu))

	return
}
