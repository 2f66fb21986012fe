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

const (
	MemorySize      = 4096
	ProgramStart    = 0x200
	ProgramMaxSize  = MemorySize - ProgramStart
	InstructionSize = 2

	RegisterCount = 16
	FlagRegister  = 0xF
	StackSize     = 16

	ScreenWidth  = 64
	ScreenHeight = 32
	ScreenPixels = ScreenWidth * ScreenHeight
)

// Pixel values are RGBA8888 so the framebuffer can be handed to a renderer
// without conversion.
const (
	ColorForeground uint32 = 0xD964FF43
	ColorBackground uint32 = 0x00000000
)

const (
	OP_SYS  uint8 = 0x0
	OP_JP   uint8 = 0x1
	OP_CALL uint8 = 0x2
	OP_SEI  uint8 = 0x3
	OP_SNEI uint8 = 0x4
	OP_SE   uint8 = 0x5
	OP_LDI  uint8 = 0x6
	OP_ADDI uint8 = 0x7
	OP_ALU  uint8 = 0x8
	OP_SNE  uint8 = 0x9
	OP_LDX  uint8 = 0xA
	OP_JPV0 uint8 = 0xB
	OP_RND  uint8 = 0xC
	OP_DRW  uint8 = 0xD

	// Keyboard and timer families, not executed
	OP_KEY  uint8 = 0xE
	OP_MISC uint8 = 0xF
)

const (
	SYS_CLS uint8 = 0xE0
	SYS_RET uint8 = 0xEE
)

const (
	ALU_LD   uint8 = 0x0
	ALU_OR   uint8 = 0x1
	ALU_AND  uint8 = 0x2
	ALU_XOR  uint8 = 0x3
	ALU_ADD  uint8 = 0x4
	ALU_SUB  uint8 = 0x5
	ALU_SHR  uint8 = 0x6
	ALU_SUBN uint8 = 0x7
	ALU_SHL  uint8 = 0xE
)

const FontGlyphSize = 5

var fontSet = [...]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

const FontSize = len(fontSet)

// Font returns a copy of the built-in hex digit bitmap.
func Font() []byte {
	font := make([]byte, FontSize)
	copy(font, fontSet[:])
	return font
}

// FontAddress returns the memory address of the glyph for a hex digit.
func FontAddress(digit uint8) uint16 {
	return uint16(digit&0xF) * FontGlyphSize
}
