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

// Opcode is a big-endian instruction word laid out as |prefix|x|y|n|.
type Opcode uint16

func (op Opcode) Prefix() uint8 {
	return uint8(op>>12) & 0xF
}

func (op Opcode) X() uint8 {
	return uint8(op>>8) & 0xF
}

func (op Opcode) Y() uint8 {
	return uint8(op>>4) & 0xF
}

func (op Opcode) N() uint8 {
	return uint8(op) & 0xF
}

func (op Opcode) NN() uint8 {
	return uint8(op)
}

func (op Opcode) NNN() uint16 {
	return uint16(op) & 0x0FFF
}
