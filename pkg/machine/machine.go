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
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/lassandro/chip8x/pkg/disasm"
	"github.com/lassandro/chip8x/pkg/encoding"
	"github.com/retroenv/retrogolib/log"
)

// New returns a reset machine logging to logger.
func New(logger *log.Logger) *Machine {
	mc := &Machine{Logger: logger}
	mc.State.Reset()
	mc.logger().Info("CHIP-8 core started")
	return mc
}

func (mc *MachineState) Reset() {
	for i := range mc.Memory {
		mc.Memory[i] = 0x00
	}

	for i := range mc.Registers {
		mc.Registers[i] = 0x00
	}

	for i := range mc.Stack {
		mc.Stack[i] = 0x0000
	}

	// Font must be copied after memory is cleared
	copy(mc.Memory[:], fontSet[:])

	mc.Index = 0x0000
	mc.Depth = 0
	mc.Program = ProgramStart

	mc.Clear()
	mc.Dirty = false
}

// Clear fills the framebuffer with the background colour.
func (mc *MachineState) Clear() {
	for i := range mc.Frame {
		mc.Frame[i] = ColorBackground
	}
}

// Pixel reports whether the pixel at column x, row y is foreground.
func (mc *MachineState) Pixel(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}

	return mc.Frame[y*ScreenWidth+x] == ColorForeground
}

// LoadProgram copies the program read from reader into memory at
// ProgramStart. Registers, stack and framebuffer are left untouched.
func (mc *Machine) LoadProgram(reader io.Reader) error {
	if reader == nil {
		return fmt.Errorf("%w: no reader", ErrSourceUnavailable)
	}

	// One extra byte tells an oversized program apart from a full one
	program, err := io.ReadAll(io.LimitReader(reader, ProgramMaxSize+1))

	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	return mc.LoadBytes(program)
}

func (mc *Machine) LoadBytes(program []byte) error {
	if len(program) > ProgramMaxSize {
		return fmt.Errorf(
			"%w: %d bytes, max size allowed: %d bytes",
			ErrProgramTooLarge,
			len(program),
			ProgramMaxSize,
		)
	}

	copy(mc.State.Memory[ProgramStart:], program)

	mc.logger().Info("Program loaded",
		log.Hex("address", uint16(ProgramStart)),
		log.Int("size", len(program)),
	)

	return nil
}

func (mc *Machine) logger() *log.Logger {
	if mc.Logger == nil {
		mc.Logger = log.NewWithConfig(log.DefaultConfig())
	}

	return mc.Logger
}

func (mc *Machine) random() byte {
	if mc.Rand != nil {
		return mc.Rand()
	}

	return byte(rand.UintN(256))
}

// SeededRand returns a deterministic random byte source.
func SeededRand(seed uint64) func() byte {
	source := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))

	return func() byte {
		return byte(source.UintN(256))
	}
}

func (mc *Machine) read(addr uint16) (byte, error) {
	if int(addr) >= MemorySize {
		return 0, fmt.Errorf("%w: read at %#04x", ErrMemoryOutOfBounds, addr)
	}

	if mc.Debugger != nil {
		mc.Debugger.Read(addr, mc)
	}

	return mc.State.Memory[addr], nil
}

func (mc *Machine) push(value uint16) error {
	if int(mc.State.Depth) >= StackSize {
		return fmt.Errorf(
			"%w: stack size %d, call from %#04x",
			ErrStackOverflow,
			StackSize,
			value-InstructionSize,
		)
	}

	mc.State.Stack[mc.State.Depth] = value
	mc.State.Depth++

	return nil
}

func (mc *Machine) pop() (uint16, error) {
	if mc.State.Depth == 0 {
		return 0, fmt.Errorf(
			"%w: return from %#04x",
			ErrStackUnderflow,
			mc.State.Program-InstructionSize,
		)
	}

	mc.State.Depth--

	return mc.State.Stack[mc.State.Depth], nil
}

func (mc *Machine) skip() {
	// PC already points at the next instruction
	mc.State.Program += InstructionSize
}

func (mc *Machine) illegal(addr uint16, op Opcode) error {
	mc.IllegalOpcodes++

	err := &IllegalOpcodeError{Address: addr, Opcode: uint16(op)}

	if mc.Quirks.StrictOpcodes {
		return err
	}

	mc.logger().Warn("Illegal opcode",
		log.Hex("address", addr),
		log.Hex("opcode", uint16(op)),
	)

	return nil
}

// Step executes a single fetch-decode-execute cycle. Any returned error is
// fatal for the run.
func (mc *Machine) Step() error {
	addr := mc.State.Program

	if int(addr) > MemorySize-InstructionSize {
		return fmt.Errorf("%w: %#04x", ErrProgramCounterOutOfBounds, addr)
	}

	op := Opcode(encoding.Word(mc.State.Memory[addr], mc.State.Memory[addr+1]))

	mc.State.Dirty = false
	mc.State.Program += InstructionSize

	if mc.Trace {
		mc.logger().Debug("Step",
			log.Hex("address", addr),
			log.Hex("opcode", uint16(op)),
			log.String("instruction", disasm.Format(uint16(op))),
		)
	}

	if err := mc.execute(addr, op); err != nil {
		return err
	}

	if mc.Debugger != nil {
		mc.Debugger.Step(mc)
	}

	return nil
}

func (mc *Machine) execute(addr uint16, op Opcode) error {
	regs := &mc.State.Registers
	x, y := op.X(), op.Y()

	switch op.Prefix() {
	// CLS  |0000|0000|1110|0000| Clear screen
	// RET  |0000|0000|1110|1110| Return from subroutine
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SYS:
		switch op.NN() {
		case SYS_CLS:
			mc.State.Clear()
			mc.State.Dirty = true

		case SYS_RET:
			target, err := mc.pop()

			if err != nil {
				return err
			}

			mc.State.Program = target

		default:
			return mc.illegal(addr, op)
		}

	// JP   |0001|nnn           | Jump
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_JP:
		mc.State.Program = op.NNN()

	// CALL |0010|nnn           | Call subroutine
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_CALL:
		if err := mc.push(mc.State.Program); err != nil {
			return err
		}

		mc.State.Program = op.NNN()

	// SE   |0011|x   |nn       | Skip if VX == NN
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SEI:
		if regs[x] == op.NN() {
			mc.skip()
		}

	// SNE  |0100|x   |nn       | Skip if VX != NN
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SNEI:
		if regs[x] != op.NN() {
			mc.skip()
		}

	// SE   |0101|x   |y   |0000| Skip if VX == VY
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SE:
		if regs[x] == regs[y] {
			mc.skip()
		}

	// LD   |0110|x   |nn       | VX = NN
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LDI:
		regs[x] = op.NN()

	// ADD  |0111|x   |nn       | VX += NN, no carry
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_ADDI:
		regs[x] += op.NN()

	// ALU  |1000|x   |y   |n   | Register arithmetic, VF as flag
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_ALU:
		return mc.executeALU(addr, op)

	// SNE  |1001|x   |y   |0000| Skip if VX != VY
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_SNE:
		if regs[x] != regs[y] {
			mc.skip()
		}

	// LD   |1010|nnn           | I = NNN
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_LDX:
		mc.State.Index = op.NNN()

	// JP   |1011|nnn           | Jump to NNN + V0
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_JPV0:
		mc.State.Program = op.NNN() + uint16(regs[0])

	// RND  |1100|x   |nn       | VX = random & NN
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_RND:
		regs[x] = mc.random() & op.NN()

	// DRW  |1101|x   |y   |n   | Draw n rows of sprite at I
	// ---- [ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ _ ]
	case OP_DRW:
		return mc.draw(regs[x], regs[y], op.N())

	// SKP, SKNP, LD DT/ST/K/F/B and friends need keypad and timers
	default:
		return mc.illegal(addr, op)
	}

	return nil
}

// executeALU runs the 8XYN family. Flags are written before the result, so
// a result targeting VF overwrites its own flag.
func (mc *Machine) executeALU(addr uint16, op Opcode) error {
	regs := &mc.State.Registers
	x, y := op.X(), op.Y()

	switch op.N() {
	case ALU_LD:
		regs[x] = regs[y]

	case ALU_OR:
		regs[x] |= regs[y]

	case ALU_AND:
		regs[x] &= regs[y]

	case ALU_XOR:
		regs[x] ^= regs[y]

	case ALU_ADD:
		sum := uint16(regs[x]) + uint16(regs[y])
		regs[FlagRegister] = boolToFlag(sum > 0xFF)
		regs[x] = uint8(sum)

	case ALU_SUB:
		vx, vy := regs[x], regs[y]
		regs[FlagRegister] = boolToFlag(vx >= vy)
		regs[x] = vx - vy

	case ALU_SHR:
		vx := regs[x]
		regs[FlagRegister] = vx & 0x1
		regs[x] = vx >> 1

	case ALU_SUBN:
		vx, vy := regs[x], regs[y]
		regs[FlagRegister] = boolToFlag(vy >= vx)
		regs[x] = vy - vx

	case ALU_SHL:
		vx := regs[x]
		regs[FlagRegister] = vx >> 7
		regs[x] = vx << 1

	default:
		return mc.illegal(addr, op)
	}

	return nil
}

func boolToFlag(b bool) uint8 {
	if b {
		return 1
	}

	return 0
}
