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

// Package disasm turns CHIP-8 instruction words back into assembly text
// understood by the chip8x assembler.
package disasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

const wordSize = 2

// Decode looks up the instruction encoded by opcode.
func Decode(opcode uint16) (*chip8.Instruction, bool) {
	nibble := int(opcode>>12) & 0xF

	for _, op := range chip8.Opcodes[nibble] {
		if op.Info.Mask&opcode == op.Info.Value {
			return op.Instruction, op.Instruction != nil
		}
	}

	return nil, false
}

// Format returns the assembly text for opcode, or a .WORD directive when the
// word does not encode a known instruction.
func Format(opcode uint16) string {
	ins, ok := Decode(opcode)
	if !ok {
		return fmt.Sprintf(".WORD $%04X", opcode)
	}

	name := strings.ToUpper(ins.Name)

	if params := formatParams(ins, opcode); params != "" {
		return name + " " + params
	}

	return name
}

// IsSkip reports whether opcode conditionally skips the next instruction.
func IsSkip(opcode uint16) bool {
	ins, ok := Decode(opcode)
	return ok && chip8.SkipInstructions.Contains(ins.Name)
}

// Listing writes one line per instruction word of program, which is loaded at
// base. Labels are printed on their own line before the addressed word.
func Listing(w io.Writer, program []byte, base uint16, labels map[uint16]string) error {
	for offset := 0; offset < len(program); offset += wordSize {
		addr := base + uint16(offset)

		if label, ok := labels[addr]; ok {
			if _, err := fmt.Fprintf(w, "%s:\n", label); err != nil {
				return err
			}
		}

		if offset+1 >= len(program) {
			_, err := fmt.Fprintf(w, "  $%04X  %02X        .BYTE $%02X\n",
				addr, program[offset], program[offset])
			return err
		}

		opcode := uint16(program[offset])<<8 | uint16(program[offset+1])

		if _, err := fmt.Fprintf(w, "  $%04X  %02X %02X     %s\n",
			addr, program[offset], program[offset+1], FormatWithLabels(opcode, labels),
		); err != nil {
			return err
		}
	}

	return nil
}

// FormatWithLabels is Format with address operands replaced by their label.
func FormatWithLabels(opcode uint16, labels map[uint16]string) string {
	text := Format(opcode)

	if !hasAddressOperand(opcode) {
		return text
	}

	label, ok := labels[opcode&0x0FFF]
	if !ok {
		return text
	}

	return strings.Replace(text, fmt.Sprintf("$%03X", opcode&0x0FFF), label, 1)
}

func hasAddressOperand(opcode uint16) bool {
	switch opcode & 0xF000 {
	case 0x1000, 0x2000, 0xA000, 0xB000:
		return true
	}
	return false
}

func formatParams(ins *chip8.Instruction, opcode uint16) string {
	x := extractRegisterX(opcode)
	y := extractRegisterY(opcode)

	switch ins {
	case chip8.Cls, chip8.Ret:
		return ""

	case chip8.Jp:
		if opcode&0xF000 == 0xB000 {
			return fmt.Sprintf("V0, $%03X", opcode&0x0FFF)
		}
		return fmt.Sprintf("$%03X", opcode&0x0FFF)

	case chip8.Call:
		return fmt.Sprintf("$%03X", opcode&0x0FFF)

	case chip8.Se, chip8.Sne:
		switch opcode & 0xF000 {
		case 0x3000, 0x4000:
			return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
		default:
			return fmt.Sprintf("V%X, V%X", x, y)
		}

	case chip8.Ld:
		return formatLoad(opcode)

	case chip8.Add:
		switch opcode & 0xF000 {
		case 0x7000:
			return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
		case 0x8000:
			return fmt.Sprintf("V%X, V%X", x, y)
		default:
			return fmt.Sprintf("I, V%X", x)
		}

	case chip8.Or, chip8.And, chip8.Xor, chip8.Sub, chip8.Subn:
		return fmt.Sprintf("V%X, V%X", x, y)

	case chip8.Shr, chip8.Shl:
		return fmt.Sprintf("V%X", x)

	case chip8.Rnd:
		return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)

	case chip8.Drw:
		return fmt.Sprintf("V%X, V%X, $%X", x, y, opcode&0x000F)

	case chip8.Skp, chip8.Sknp:
		return fmt.Sprintf("V%X", x)
	}

	return ""
}

func formatLoad(opcode uint16) string {
	x := extractRegisterX(opcode)

	switch opcode & 0xF000 {
	case 0x6000:
		return fmt.Sprintf("V%X, $%02X", x, opcode&0x00FF)
	case 0x8000:
		return fmt.Sprintf("V%X, V%X", x, extractRegisterY(opcode))
	case 0xA000:
		return fmt.Sprintf("I, $%03X", opcode&0x0FFF)
	}

	switch opcode & 0x00FF {
	case 0x07:
		return fmt.Sprintf("V%X, DT", x)
	case 0x0A:
		return fmt.Sprintf("V%X, K", x)
	case 0x15:
		return fmt.Sprintf("DT, V%X", x)
	case 0x18:
		return fmt.Sprintf("ST, V%X", x)
	case 0x29:
		return fmt.Sprintf("F, V%X", x)
	case 0x33:
		return fmt.Sprintf("B, V%X", x)
	case 0x55:
		return fmt.Sprintf("[I], V%X", x)
	case 0x65:
		return fmt.Sprintf("V%X, [I]", x)
	}

	return ""
}

func extractRegisterX(opcode uint16) uint16 {
	return (opcode & 0x0F00) >> 8
}

func extractRegisterY(opcode uint16) uint16 {
	return (opcode & 0x00F0) >> 4
}
