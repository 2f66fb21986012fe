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

package disasm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lassandro/chip8x/pkg/disasm"
	"github.com/retroenv/retrogolib/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		Name   string
		Opcode uint16
		Output string
	}{
		{"CLS", 0x00E0, "CLS"},
		{"RET", 0x00EE, "RET"},
		{"JP", 0x1234, "JP $234"},
		{"JP V0", 0xB300, "JP V0, $300"},
		{"CALL", 0x2ABC, "CALL $ABC"},
		{"SE byte", 0x3A05, "SE VA, $05"},
		{"SNE byte", 0x4B10, "SNE VB, $10"},
		{"SE reg", 0x5120, "SE V1, V2"},
		{"SNE reg", 0x9120, "SNE V1, V2"},
		{"LD byte", 0x6A05, "LD VA, $05"},
		{"LD reg", 0x8120, "LD V1, V2"},
		{"LD I", 0xA2F0, "LD I, $2F0"},
		{"ADD byte", 0x7301, "ADD V3, $01"},
		{"ADD reg", 0x8344, "ADD V3, V4"},
		{"OR", 0x8121, "OR V1, V2"},
		{"AND", 0x8122, "AND V1, V2"},
		{"XOR", 0x8123, "XOR V1, V2"},
		{"SUB", 0x8125, "SUB V1, V2"},
		{"SHR", 0x8106, "SHR V1"},
		{"SUBN", 0x8127, "SUBN V1, V2"},
		{"SHL", 0x810E, "SHL V1"},
		{"RND", 0xC10F, "RND V1, $0F"},
		{"DRW", 0xD015, "DRW V0, V1, $5"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assert.Equal(t, test.Output, disasm.Format(test.Opcode))
		})
	}
}

func TestFormatUnknown(t *testing.T) {
	assert.Equal(t, ".WORD $801F", disasm.Format(0x801F))

	_, ok := disasm.Decode(0x801F)
	assert.False(t, ok)
}

func TestIsSkip(t *testing.T) {
	assert.True(t, disasm.IsSkip(0x3A05))
	assert.True(t, disasm.IsSkip(0x9120))
	assert.False(t, disasm.IsSkip(0x1200))
}

func TestListing(t *testing.T) {
	var out bytes.Buffer

	program := []byte{0x6A, 0x05, 0x12, 0x00, 0xFF}
	labels := map[uint16]string{0x200: "start"}

	assert.NoError(t, disasm.Listing(&out, program, 0x200, labels))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")

	assert.Len(t, lines, 4)
	assert.Equal(t, "start:", lines[0])
	assert.Contains(t, lines[1], "LD VA, $05")
	assert.Contains(t, lines[2], "JP start")
	assert.Contains(t, lines[3], ".BYTE $FF")
}
