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

package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lassandro/chip8x/pkg/disasm"
	"github.com/lassandro/chip8x/pkg/encoding"
	"github.com/lassandro/chip8x/pkg/machine"
)

var ErrBreakpointExists = errors.New("Breakpoint already exists")
var ErrWatchpointExists = errors.New("Watchpoint already exists")
var ErrInvalidIndex = errors.New("Invalid index")

func (dbg *Debugger) out() io.Writer {
	if dbg.Out == nil {
		return os.Stdout
	}

	return dbg.Out
}

func (dbg *Debugger) Step(mc *machine.Machine) {
	if dbg.HandleBreak == nil {
		return
	}

	if dbg.Break {
		dbg.HandleBreak(dbg, mc)
		return
	}

	for _, breakpoint := range dbg.Breakpoints {
		if mc.State.Program == breakpoint.Addr {
			dbg.HandleBreak(dbg, mc)
			break
		}
	}
}

func (dbg *Debugger) Read(addr uint16, mc *machine.Machine) {
	if dbg.HandleRead == nil {
		return
	}

	for _, watchpoint := range dbg.Watchpoints {
		if addr == watchpoint.Addr {
			dbg.HandleRead(addr, dbg, mc)
			break
		}
	}
}

func (dbg *Debugger) AddBreakpoint(addr uint16) error {
	for _, breakpoint := range dbg.Breakpoints {
		if breakpoint.Addr == addr {
			return ErrBreakpointExists
		}
	}

	dbg.Breakpoints = append(dbg.Breakpoints, Breakpoint{addr})
	return nil
}

// RemoveBreakpoint swaps the last breakpoint into index i.
func (dbg *Debugger) RemoveBreakpoint(i int) error {
	if i < 0 || i >= len(dbg.Breakpoints) {
		return ErrInvalidIndex
	}

	dbg.Breakpoints[i] = dbg.Breakpoints[len(dbg.Breakpoints)-1]
	dbg.Breakpoints = dbg.Breakpoints[:len(dbg.Breakpoints)-1]
	return nil
}

func (dbg *Debugger) AddWatchpoint(addr uint16) error {
	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Addr == addr {
			return ErrWatchpointExists
		}
	}

	dbg.Watchpoints = append(dbg.Watchpoints, Watchpoint{addr})
	return nil
}

func (dbg *Debugger) RemoveWatchpoint(i int) error {
	if i < 0 || i >= len(dbg.Watchpoints) {
		return ErrInvalidIndex
	}

	dbg.Watchpoints[i] = dbg.Watchpoints[len(dbg.Watchpoints)-1]
	dbg.Watchpoints = dbg.Watchpoints[:len(dbg.Watchpoints)-1]
	return nil
}

// PrintSource prints count source lines starting at the line that assembled
// addr. Without a source file it falls back to disassembly.
func (dbg *Debugger) PrintSource(mc *machine.MachineState, addr, count uint16) {
	out := dbg.out()

	if dbg.Source == nil || dbg.SymTable == nil {
		dbg.PrintDisasm(mc, addr, count)
		return
	}

	offset, exists := dbg.SymTable.Symbols[addr]

	if !exists {
		fmt.Fprintf(out, "No instruction found at %#04x\n", addr)
		return
	}

	if _, err := dbg.Source.Seek(offset, io.SeekStart); err != nil {
		fmt.Fprintln(out, err)
		return
	}

	lines := make(map[int64]uint16, len(dbg.SymTable.Symbols))
	for lineaddr, linebyte := range dbg.SymTable.Symbols {
		lines[linebyte] = lineaddr
	}

	scanner := bufio.NewScanner(dbg.Source)
	scanner.Split(bufio.ScanLines)

	for i := uint16(0); i < count; i++ {
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		if lineaddr, found := lines[offset]; found {
			fmt.Fprintf(out, "\033[1m[%#04x]\033[0m ", lineaddr)
		} else {
			fmt.Fprint(out, "\033[1;30m~~~~~~~~\033[0m ")
		}

		fmt.Fprintln(out, line)

		offset += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(out, err)
	}
}

// PrintDisasm prints count instructions decoded from memory at addr.
func (dbg *Debugger) PrintDisasm(mc *machine.MachineState, addr, count uint16) {
	out := dbg.out()

	var labels map[uint16]string
	if dbg.SymTable != nil {
		labels = dbg.SymTable.Labels
	}

	for i := uint16(0); i < count; i++ {
		current := int(addr) + int(i)*machine.InstructionSize

		if current+1 >= machine.MemorySize {
			break
		}

		opcode := encoding.Word(mc.Memory[current], mc.Memory[current+1])

		if label, exists := labels[uint16(current)]; exists {
			fmt.Fprintf(out, "\033[1;30m%s:\033[0m\n", label)
		}

		marker := " "
		if uint16(current) == mc.Program {
			marker = ">"
		}

		fmt.Fprintf(
			out, "%s\033[1m[%#04x]\033[0m %04X  %s\n",
			marker, current, opcode, disasm.FormatWithLabels(opcode, labels),
		)
	}
}

func (dbg *Debugger) PrintMem(mc *machine.MachineState, addr, count uint16) {
	out := dbg.out()

	for i := 0; i < int(count) && int(addr)+i < machine.MemorySize; i++ {
		current := int(addr) + i

		if i == 0 {
			fmt.Fprintf(out, "\033[1m[%#04x]\033[0m ", current)
		} else if i%8 == 0 {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "\033[1m[%#04x]\033[0m ", current)
		}

		result := mc.Memory[current]

		if result == 0 {
			fmt.Fprintf(out, "\033[1;30m%#04x\033[0m ", result)
		} else {
			fmt.Fprintf(out, "%#04x ", result)
		}
	}

	fmt.Fprintln(out)
}

func (dbg *Debugger) PrintRegisters(mc *machine.MachineState) {
	out := dbg.out()

	for i, register := range mc.Registers {
		fmt.Fprintf(out, "\033[1mV%X:\033[0m %#04x\t", i, register)
		if i%8 == 7 {
			fmt.Fprintln(out)
		}
	}

	fmt.Fprintf(
		out, "\033[1mPC:\033[0m %#04x\t\033[1mI:\033[0m %#04x\t\033[1mSP:\033[0m %d\n",
		mc.Program,
		mc.Index,
		mc.Depth,
	)

	for i := uint8(0); i < mc.Depth && int(i) < machine.StackSize; i++ {
		fmt.Fprintf(out, "\033[1;30m#%02d:\033[0m %#04x\n", i, mc.Stack[i])
	}
}

// PrintFrame draws the framebuffer as text, one character per pixel.
func (dbg *Debugger) PrintFrame(mc *machine.MachineState) {
	out := dbg.out()

	for y := 0; y < machine.ScreenHeight; y++ {
		line := make([]byte, machine.ScreenWidth)

		for x := 0; x < machine.ScreenWidth; x++ {
			if mc.Pixel(x, y) {
				line[x] = '#'
			} else {
				line[x] = '.'
			}
		}

		fmt.Fprintln(out, string(line))
	}
}
