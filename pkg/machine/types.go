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

package machine

import (
	"github.com/retroenv/retrogolib/log"
)

type MachineState struct {
	Memory    [MemorySize]byte
	Registers [RegisterCount]uint8
	Index     uint16
	Program   uint16
	Stack     [StackSize]uint16
	Depth     uint8
	Frame     [ScreenPixels]uint32
	Dirty     bool
}

type MachineDebugger interface {
	Step(mc *Machine)
	Read(addr uint16, mc *Machine)
}

// Quirks select between behaviours that CHIP-8 interpreters disagree on.
type Quirks struct {
	// Wrap sprite pixels that cross the right or bottom edge around to the
	// opposite edge instead of clipping them.
	WrapSprites bool

	// Treat unknown opcodes as fatal instead of logging and continuing.
	StrictOpcodes bool
}

type Machine struct {
	State    MachineState
	Quirks   Quirks
	Logger   *log.Logger
	Debugger MachineDebugger

	// Source of CXNN random bytes, math/rand when nil.
	Rand func() byte

	// Log every executed instruction at debug level.
	Trace bool

	IllegalOpcodes uint64
}
