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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"

	"github.com/lassandro/chip8x/pkg/assembler"
	"github.com/lassandro/chip8x/pkg/config"
	"github.com/lassandro/chip8x/pkg/debugger"
	"github.com/lassandro/chip8x/pkg/machine"
	"github.com/lassandro/chip8x/pkg/runner"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	filename := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(filename, data, 0666))
	return filename
}

func TestSymbolFile(t *testing.T) {
	assert.Equal(t, filepath.Join("roms", "pong.c8db"), symbolFile(filepath.Join("roms", "pong.ch8")))
	assert.Equal(t, "pong.c8db", symbolFile("pong"))
}

func TestDisasmROM(t *testing.T) {
	rom := writeFile(t, "test.ch8", []byte{0x00, 0xE0, 0x12, 0x00})

	symtable := assembler.NewSymTable("")
	symtable.Labels[0x200] = "START"

	file, err := os.Create(symbolFile(rom))
	assert.NoError(t, err)
	assert.NoError(t, gob.NewEncoder(file).Encode(symtable))
	assert.NoError(t, file.Close())

	var out bytes.Buffer
	assert.NoError(t, disasmROM(&out, rom))

	text := out.String()
	assert.Contains(t, text, "START:")
	assert.Contains(t, text, "CLS")
	assert.Contains(t, text, "JP START")
}

func TestDisasmROMMissing(t *testing.T) {
	err := disasmROM(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.ch8"))
	assert.True(t, errors.Is(err, machine.ErrSourceUnavailable))
}

func TestRunROMHeadless(t *testing.T) {
	rom := writeFile(t, "spin.ch8", []byte{0x6A, 0x05, 0x12, 0x02})

	opts := config.Default()
	opts.ROM = rom
	opts.Headless = true
	opts.Hz = 1000000
	opts.MaxCycles = 10
	assert.NoError(t, opts.Validate())

	assert.NoError(t, runROM(context.Background(), log.NewTestLogger(t), opts))
}

func TestRunROMStrict(t *testing.T) {
	rom := writeFile(t, "illegal.ch8", []byte{0xE0, 0x9E})

	opts := config.Default()
	opts.ROM = rom
	opts.Headless = true
	opts.Strict = true
	assert.NoError(t, opts.Validate())

	err := runROM(context.Background(), log.NewTestLogger(t), opts)

	var illegal *machine.IllegalOpcodeError
	assert.True(t, errors.As(err, &illegal))
	assert.Equal(t, uint16(0xE09E), illegal.Opcode)
}

func TestRunROMMissing(t *testing.T) {
	opts := config.Default()
	opts.ROM = filepath.Join(t.TempDir(), "missing.ch8")
	opts.Headless = true

	err := runROM(context.Background(), log.NewTestLogger(t), opts)
	assert.True(t, errors.Is(err, machine.ErrSourceUnavailable))
}

func TestRunROMTooLarge(t *testing.T) {
	rom := writeFile(t, "large.ch8", make([]byte, machine.ProgramMaxSize+1))

	opts := config.Default()
	opts.ROM = rom
	opts.Headless = true

	err := runROM(context.Background(), log.NewTestLogger(t), opts)
	assert.True(t, errors.Is(err, machine.ErrProgramTooLarge))
}

func TestConsole(t *testing.T) {
	mc := machine.New(log.NewTestLogger(t))
	program := []byte{0x6A, 0x05, 0x12, 0x02}
	assert.NoError(t, mc.LoadBytes(program))

	dbg := &debugger.Debugger{}
	mc.Debugger = dbg

	input := strings.Join([]string{
		"break add 0x202",
		"break list",
		"reg V3 0x42",
		"reg VG 0x1",
		"set 0x300 0xAB",
		"memory 0x300",
		"disasm 0x200 2",
		"bogus",
		"continue",
	}, "\n") + "\n"

	var out bytes.Buffer
	c := newConsole(dbg, mc, program, strings.NewReader(input), &out)
	c.repl()

	text := out.String()
	assert.Contains(t, text, "Breakpoint added [0x202]")
	assert.Contains(t, text, "#0: 0x202")
	assert.Contains(t, text, "V3:")
	assert.Contains(t, text, "Invalid register")
	assert.Contains(t, text, "0xab")
	assert.Contains(t, text, "LD VA, $05")
	assert.Contains(t, text, "'bogus' is not a valid command")
	assert.False(t, c.quit)

	assert.Equal(t, uint8(0x42), mc.State.Registers[3])
	assert.Equal(t, uint8(0xAB), mc.State.Memory[0x300])
	assert.Len(t, dbg.Breakpoints, 1)
}

func TestConsoleBreakAndQuit(t *testing.T) {
	mc := machine.New(log.NewTestLogger(t))
	program := []byte{0x6A, 0x05, 0x12, 0x02}
	assert.NoError(t, mc.LoadBytes(program))

	dbg := &debugger.Debugger{}
	mc.Debugger = dbg

	var out bytes.Buffer
	c := newConsole(dbg, mc, program, strings.NewReader("break add 0x202\ncontinue\nreg\nquit\n"), &out)
	c.repl()

	// The first step lands on the breakpoint and reenters the console
	assert.NoError(t, mc.Step())
	assert.True(t, c.quit)
	assert.Contains(t, out.String(), "Program stopped")
	assert.Contains(t, out.String(), "VA:")

	kb := &keyboard{quit: &c.quit}
	cmd, err := kb.Poll()
	assert.NoError(t, err)
	assert.Equal(t, runner.CommandQuit, cmd)
}

func TestConsoleReset(t *testing.T) {
	mc := machine.New(log.NewTestLogger(t))
	program := []byte{0x6A, 0x05, 0x12, 0x02}
	assert.NoError(t, mc.LoadBytes(program))
	assert.NoError(t, mc.Step())

	dbg := &debugger.Debugger{}

	var out bytes.Buffer
	c := newConsole(dbg, mc, program, strings.NewReader("reset\njump 0x202\nnext\n"), &out)
	c.repl()

	assert.Equal(t, uint8(0), mc.State.Registers[0xA])
	assert.Equal(t, uint16(0x202), mc.State.Program)
	assert.Equal(t, uint8(0x6A), mc.State.Memory[machine.ProgramStart])
	assert.True(t, dbg.Break)
}
