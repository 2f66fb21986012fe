// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/cobra"

	"github.com/lassandro/chip8x/pkg/assembler"
	"github.com/lassandro/chip8x/pkg/config"
	"github.com/lassandro/chip8x/pkg/debugger"
	"github.com/lassandro/chip8x/pkg/disasm"
	"github.com/lassandro/chip8x/pkg/display"
	"github.com/lassandro/chip8x/pkg/machine"
	"github.com/lassandro/chip8x/pkg/runner"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

// symbolFile returns the debug symbol path that chip8x-asm writes next to rom.
func symbolFile(rom string) string {
	return filepath.Join(
		filepath.Dir(rom),
		strings.TrimSuffix(filepath.Base(rom), filepath.Ext(rom))+".c8db",
	)
}

func loadSymbols(filename string) (*assembler.SymTable, error) {
	file, err := os.Open(filename)

	if err != nil {
		return nil, err
	}

	defer file.Close()

	var symtable assembler.SymTable

	if err := gob.NewDecoder(file).Decode(&symtable); err != nil {
		return nil, err
	}

	return &symtable, nil
}

func newMachine(logger *log.Logger, opts config.Options) *machine.Machine {
	mc := machine.New(logger)
	mc.Trace = opts.Trace
	mc.Quirks = machine.Quirks{
		WrapSprites:   opts.WrapSprites,
		StrictOpcodes: opts.Strict,
	}

	if opts.Seed != 0 {
		mc.Rand = machine.SeededRand(opts.Seed)
	}

	return mc
}

func runROM(ctx context.Context, logger *log.Logger, opts config.Options) error {
	program, err := os.ReadFile(opts.ROM)

	if err != nil {
		return fmt.Errorf("%w: %v", machine.ErrSourceUnavailable, err)
	}

	mc := newMachine(logger, opts)

	if err := mc.LoadProgram(bytes.NewReader(program)); err != nil {
		return err
	}

	logger.Info("Scale factor set",
		log.Int("scale", opts.Scale),
		log.Int("width", machine.ScreenWidth*opts.Scale),
		log.Int("height", machine.ScreenHeight*opts.Scale),
	)

	var renderer display.Renderer
	var input = &keyboard{}

	stdin := int(os.Stdin.Fd())
	interactive := !opts.Headless && isTerminal(stdin)

	if opts.Headless {
		renderer = &display.Headless{}
	} else {
		renderer = display.NewTerminal(os.Stdout, opts.Scale)
	}

	var termRestore = func() {}

	if interactive {
		restore, err := enterRawTerm(stdin)

		if err != nil {
			return err
		}

		termRestore = func() {
			if err := exitRawTerm(stdin, restore); err != nil {
				logger.Error("Restoring terminal failed", log.Err(err))
			}
		}

		defer termRestore()

		input.reader = os.Stdin
		fmt.Fprint(os.Stdout, "\033[2J")
	}

	r := runner.New(mc, renderer, input, logger, opts.Hz)
	r.MaxCycles = opts.MaxCycles

	if opts.Debugger {
		c, stop := attachDebugger(logger, opts, mc, program, input)
		defer stop()

		if interactive {
			c.suspend = termRestore
			c.resume = func() {
				if _, err := enterRawTerm(stdin); err != nil {
					logger.Error("Entering raw terminal failed", log.Err(err))
				}
			}
		}

		c.repl()
	}

	err = r.Run(ctx)

	logger.Info("Machine stopped",
		log.Int("cycles", int(r.Cycles)),
		log.Int("illegal_opcodes", int(mc.IllegalOpcodes)),
	)

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// attachDebugger installs the debug console on mc. Interrupts break into the
// console instead of ending the run.
func attachDebugger(logger *log.Logger, opts config.Options, mc *machine.Machine, program []byte, input *keyboard) (*console, func()) {
	dbg := &debugger.Debugger{}
	closers := []io.Closer{}

	if symtable, err := loadSymbols(symbolFile(opts.ROM)); err == nil {
		dbg.SymTable = symtable
	} else {
		logger.Warn("Error loading symbol file", log.Err(err))
	}

	if dbg.SymTable != nil && dbg.SymTable.Source != "" {
		if file, err := os.Open(dbg.SymTable.Source); err == nil {
			dbg.Source = file
			closers = append(closers, file)
		} else {
			logger.Warn("Error loading source file", log.Err(err))
		}
	}

	mc.Debugger = dbg
	c := newConsole(dbg, mc, program, os.Stdin, os.Stdout)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	input.interrupts = interrupts
	input.onInterrupt = func() {
		fmt.Fprintln(os.Stdout)
		dbg.Break = true
	}
	input.quit = &c.quit

	return c, func() {
		signal.Stop(interrupts)

		for _, closer := range closers {
			closer.Close()
		}
	}
}

func disasmROM(out io.Writer, rom string) error {
	program, err := os.ReadFile(rom)

	if err != nil {
		return fmt.Errorf("%w: %v", machine.ErrSourceUnavailable, err)
	}

	if len(program) > machine.ProgramMaxSize {
		return machine.ErrProgramTooLarge
	}

	var labels map[uint16]string

	if symtable, err := loadSymbols(symbolFile(rom)); err == nil {
		labels = symtable.Labels
	}

	return disasm.Listing(out, program, machine.ProgramStart, labels)
}

func newRunCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run ROM",
		Short: "Run a CHIP-8 program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ROM = args[0]

			if err := opts.Validate(); err != nil {
				return err
			}

			logger := config.CreateLogger(opts.Debug, opts.Quiet)

			// Interrupts break into the debugger rather than cancelling
			ctx := context.Background()
			if !opts.Debugger {
				ctx = app.Context()
			}

			return runROM(ctx, logger, *opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.Scale, "scale", config.DefaultScale, "terminal pixel scale factor")
	flags.IntVar(&opts.Hz, "hz", config.DefaultHz, "instructions executed per second")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "only log errors")
	flags.BoolVar(&opts.Trace, "trace", false, "log every executed instruction at debug level")
	flags.BoolVar(&opts.Strict, "strict", false, "stop on illegal opcodes")
	flags.BoolVar(&opts.WrapSprites, "wrap", false, "wrap sprites around the screen edges instead of clipping")
	flags.BoolVar(&opts.Headless, "headless", false, "run without terminal output or keyboard input")
	flags.Uint64Var(&opts.MaxCycles, "cycles", 0, "stop after this many cycles, 0 runs until quit")
	flags.Uint64Var(&opts.Seed, "seed", 0, "seed for the RND instruction, 0 picks a random seed")
	flags.BoolVar(&opts.Debugger, "dbg", false, "start in the interactive debugger")

	return cmd
}

func newDisasmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm ROM",
		Short: "Print a disassembly listing of a CHIP-8 program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return disasmROM(cmd.OutOrStdout(), args[0])
		},
	}
}

func newRootCommand() *cobra.Command {
	opts := config.Default()

	rootCmd := &cobra.Command{
		Use:           "chip8x",
		Short:         "CHIP-8 interpreter",
		Version:       buildinfo.Version(version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCommand(&opts))
	rootCmd.AddCommand(newDisasmCommand())

	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger := config.CreateLogger(false, false)
		logger.Error("chip8x failed", log.Err(err))
		os.Exit(1)
	}
}
