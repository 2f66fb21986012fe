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
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lassandro/chip8x/pkg/debugger"
	"github.com/lassandro/chip8x/pkg/encoding"
	"github.com/lassandro/chip8x/pkg/machine"
)

// console is the interactive debug prompt entered on breaks.
type console struct {
	dbg     *debugger.Debugger
	mc      *machine.Machine
	program []byte

	in  *bufio.Scanner
	out io.Writer

	lastcmd []string
	quit    bool

	// suspend and resume leave and re-enter raw terminal mode around the
	// prompt.
	suspend func()
	resume  func()
}

func newConsole(dbg *debugger.Debugger, mc *machine.Machine, program []byte, in io.Reader, out io.Writer) *console {
	c := &console{
		dbg:     dbg,
		mc:      mc,
		program: program,
		in:      bufio.NewScanner(in),
		out:     out,
	}

	dbg.Out = out
	dbg.HandleBreak = c.handleBreak
	dbg.HandleRead = c.handleRead

	return c
}

func (c *console) println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

func (c *console) printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *console) debugBreak(args []string) {
	const usage = "break [add|list|remove|clear]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [0x###|label]"

		if len(args) != 1 {
			c.println(usage)
			return
		}

		addr, ok := c.resolve(args[0])

		if !ok {
			return
		}

		if err := c.dbg.AddBreakpoint(addr); err == nil {
			c.printf("Breakpoint added [%#04x]\n", addr)
		}

	case "l", "ls", "list":
		const usage = "break list"

		if len(args) != 0 {
			c.println(usage)
			return
		}

		var fmtstring string
		{
			digits := math.Floor(math.Log10(float64(len(c.dbg.Breakpoints) + 1)))
			fmtstring = fmt.Sprintf("#%%0%dd: %%#x\n", int64(digits)+1)
		}

		for i, breakpoint := range c.dbg.Breakpoints {
			c.printf(fmtstring, i, breakpoint.Addr)
		}

	case "r", "rm", "remove":
		const usage = "break remove [#]"

		if len(args) != 1 {
			c.println(usage)
			return
		}

		i, err := strconv.ParseInt(args[0], 10, 64)

		if err != nil {
			c.println(err)
			return
		}

		if err := c.dbg.RemoveBreakpoint(int(i)); err != nil {
			c.println("Invalid breakpoint number")
			return
		}

		c.printf("Breakpoint removed [%d]\n", i)

	case "clear":
		c.dbg.Breakpoints = make([]debugger.Breakpoint, 0)
		c.println("Breakpoints reset")

	default:
		c.printf("break: '%s' is not a valid command\n", cmd)
		c.println(usage)
	}
}

func (c *console) debugWatch(args []string) {
	const usage = "watch [add|list|rm|clear]"

	if len(args) == 0 {
		c.println(usage)
		return
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "watch add [0x###]"

		if len(args) != 1 {
			c.println(usage)
			return
		}

		addr, err := encoding.DecodeHex(args[0])

		if err != nil {
			c.println(err)
			return
		}

		if err := c.dbg.AddWatchpoint(addr); err == nil {
			c.printf("Watchpoint added [%#04x]\n", addr)
		}

	case "l", "ls", "list":
		for i, watchpoint := range c.dbg.Watchpoints {
			c.printf("#%d: %#x\n", i, watchpoint.Addr)
		}

	case "r", "rm", "remove":
		const usage = "watch rm [#]"

		if len(args) != 1 {
			c.println(usage)
			return
		}

		i, err := strconv.ParseInt(args[0], 10, 64)

		if err != nil {
			c.println(err)
			return
		}

		if err := c.dbg.RemoveWatchpoint(int(i)); err != nil {
			c.println("Invalid watchpoint number")
			return
		}

		c.printf("Watchpoint removed [%d]\n", i)

	case "clear":
		c.dbg.Watchpoints = make([]debugger.Watchpoint, 0)
		c.println("Watchpoints reset")

	default:
		c.printf("watch: '%s' is not a valid command\n", cmd)
	}
}

func (c *console) debugReg(args []string) {
	const usage = "register [V#|PC|I] [0x###]"

	state := &c.mc.State

	if len(args) == 0 {
		c.dbg.PrintRegisters(state)
		return
	}

	if len(args) != 2 {
		c.println(usage)
		return
	}

	value, err := encoding.DecodeHex(args[1])

	if err != nil {
		c.println(err)
		return
	}

	name := strings.ToUpper(args[0])

	switch {
	case name == "PC":
		state.Program = value
	case name == "I":
		state.Index = value
	case len(name) == 2 && name[0] == 'V':
		reg, err := strconv.ParseUint(name[1:], 16, 8)

		if err != nil || value > math.MaxUint8 {
			c.println("Invalid register")
			return
		}

		state.Registers[reg] = uint8(value)
	default:
		c.println("Invalid register")
		return
	}

	c.printf("\033[1m%s:\033[0m %#04x\n", name, value)
}

// resolve parses a hex address or a label from the symbol table.
func (c *console) resolve(arg string) (uint16, bool) {
	if addr, err := encoding.DecodeHex(arg); err == nil {
		return addr, true
	}

	if c.dbg.SymTable == nil {
		c.println("No symbol table loaded")
		return 0, false
	}

	if addr, ok := c.dbg.SymTable.Lookup(arg); ok {
		return addr, true
	}

	c.printf("Unable to find '%s'\n", arg)
	return 0, false
}

// addressAndCount parses the optional "[0x###|label] [#]" arguments shared by
// the listing commands. A lone decimal argument is a count.
func (c *console) addressAndCount(args []string, size uint16) (uint16, uint16, bool) {
	addr := c.mc.State.Program

	if len(args) > 0 {
		if value, err := strconv.ParseUint(args[0], 10, 16); err == nil && !encoding.IsHex(args[0]) {
			size = uint16(value)
		} else if resolved, ok := c.resolve(args[0]); ok {
			addr = resolved
		} else {
			return 0, 0, false
		}
	}

	if len(args) > 1 {
		value, err := strconv.ParseUint(args[1], 10, 16)

		if err != nil {
			c.println(err)
			return 0, 0, false
		}

		size = uint16(value)
	}

	return addr, size, true
}

func (c *console) debugSource(args []string) {
	const usage = "source [0x###|label] [#]"

	if len(args) > 2 {
		c.println(usage)
		return
	}

	if addr, size, ok := c.addressAndCount(args, 3); ok {
		c.dbg.PrintSource(&c.mc.State, addr, size)
	}
}

func (c *console) debugDisasm(args []string) {
	const usage = "disasm [0x###|label] [#]"

	if len(args) > 2 {
		c.println(usage)
		return
	}

	if addr, size, ok := c.addressAndCount(args, 8); ok {
		c.dbg.PrintDisasm(&c.mc.State, addr, size)
	}
}

func (c *console) debugLabels(args []string) {
	const usage = "labels"

	if len(args) > 0 {
		c.println(usage)
		return
	}

	if c.dbg.SymTable == nil {
		c.println("No symbol table loaded")
		return
	}

	keys := make([]uint16, 0, len(c.dbg.SymTable.Labels))
	for addr := range c.dbg.SymTable.Labels {
		keys = append(keys, addr)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, addr := range keys {
		c.printf("\033[1m[%#04x]\033[0m %s\n", addr, c.dbg.SymTable.Labels[addr])
	}
}

func (c *console) debugJump(args []string) {
	const usage = "jump [0x###|label]"

	if len(args) != 1 {
		c.println(usage)
		return
	}

	if addr, ok := c.resolve(args[0]); ok {
		c.mc.State.Program = addr
		c.printf("\033[1mPC:\033[0m %#04x\n", addr)
	}
}

func (c *console) debugMemory(args []string) {
	const usage = "memory [0x###|#] [#]"

	if len(args) > 2 {
		c.println(usage)
		return
	}

	if addr, size, ok := c.addressAndCount(args, 1); ok {
		c.dbg.PrintMem(&c.mc.State, addr, size)
	}
}

func (c *console) debugSet(args []string) {
	const usage = "set [0x###] [0x##]"

	if len(args) != 2 {
		c.println(usage)
		return
	}

	addr, err := encoding.DecodeHex(args[0])

	if err != nil {
		c.println(err)
		return
	}

	value, err := encoding.DecodeHex(args[1])

	if err != nil {
		c.println(err)
		return
	}

	if int(addr) >= machine.MemorySize || value > math.MaxUint8 {
		c.println(usage)
		return
	}

	c.mc.State.Memory[addr] = uint8(value)
	c.dbg.PrintMem(&c.mc.State, addr, 1)
}

func (c *console) reset() {
	c.mc.State.Reset()

	if err := c.mc.LoadBytes(c.program); err != nil {
		c.println(err)
		return
	}

	c.println("Machine reset")
}

// repl reads commands until one resumes execution.
func (c *console) repl() {
	if c.suspend != nil {
		c.suspend()
	}

	if c.resume != nil {
		defer c.resume()
	}

	for {
		fmt.Fprint(c.out, "\033[1;30m(dbg)\033[0m ")

		if !c.in.Scan() {
			c.println()
			c.quit = true
			return
		}

		args := strings.Fields(c.in.Text())

		if len(args) == 0 {
			if len(c.lastcmd) == 0 {
				continue
			}
			args = c.lastcmd
		} else {
			c.lastcmd = make([]string, len(args))
			copy(c.lastcmd, args)
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "b", "bp", "break", "breakpoint":
			c.debugBreak(args)

		case "w", "wp", "watch", "watchpoint":
			c.debugWatch(args)

		case "r", "reg", "register", "registers":
			c.debugReg(args)

		case "s", "src", "source":
			c.debugSource(args)

		case "d", "dis", "disasm":
			c.debugDisasm(args)

		case "l", "label", "labels":
			c.debugLabels(args)

		case "j", "jmp", "jump":
			c.debugJump(args)

		case "m", "mem", "memory":
			c.debugMemory(args)

		case "set":
			c.debugSet(args)

		case "f", "frame":
			c.dbg.PrintFrame(&c.mc.State)

		case "c", "continue":
			c.dbg.Break = false
			return

		case "n", "next":
			c.dbg.Break = true
			return

		case "q", "quit", "exit":
			c.quit = true
			return

		case "clear":
			fmt.Fprint(c.out, "\033[H\033[2J")

		case "reset":
			c.reset()

		default:
			c.printf("error: '%s' is not a valid command\n", cmd)
		}
	}
}

func (c *console) handleBreak(dbg *debugger.Debugger, mc *machine.Machine) {
	if c.quit {
		return
	}

	if !dbg.Break {
		c.println()
		c.println("Program stopped")
		dbg.PrintSource(&mc.State, mc.State.Program, 8)
	}

	c.repl()
}

func (c *console) handleRead(addr uint16, dbg *debugger.Debugger, mc *machine.Machine) {
	if c.quit {
		return
	}

	c.println()
	c.println("Program stopped")
	dbg.PrintMem(&mc.State, addr, 1)
	c.repl()
}
