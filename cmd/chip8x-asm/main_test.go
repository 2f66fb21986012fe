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
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"

	"github.com/lassandro/chip8x/pkg/assembler"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "pong.ch8", replaceExt("pong.c8s", ".ch8"))
	assert.Equal(t, "pong.c8db", replaceExt("pong", ".c8db"))
}

func TestAssembleFile(t *testing.T) {
	dir := t.TempDir()
	infile := filepath.Join(dir, "game.c8s")
	assert.NoError(t, os.WriteFile(infile, []byte("START: CLS\nJP START\n"), 0666))

	var stderr bytes.Buffer
	err := assembleFile(log.NewTestLogger(t), &stderr, infile, options{debug: true})
	assert.NoError(t, err)

	result, err := os.ReadFile(filepath.Join(dir, "game.ch8"))
	assert.NoError(t, err)

	if diff := cmp.Diff([]byte{0x00, 0xE0, 0x12, 0x00}, result); diff != "" {
		t.Fatalf("Output mismatch (-want +have):\n%s", diff)
	}

	file, err := os.Open(filepath.Join(dir, "game.c8db"))
	assert.NoError(t, err)
	defer file.Close()

	var symtable assembler.SymTable
	assert.NoError(t, gob.NewDecoder(file).Decode(&symtable))
	assert.Equal(t, "START", symtable.Labels[0x200])
	assert.Equal(t, int64(11), symtable.Symbols[0x202])
	assert.True(t, filepath.IsAbs(symtable.Source))
}

func TestAssembleFileErrors(t *testing.T) {
	dir := t.TempDir()
	infile := filepath.Join(dir, "bad.c8s")
	assert.NoError(t, os.WriteFile(infile, []byte("CLS\nLD V0, 0x100\n"), 0666))

	var stderr bytes.Buffer
	err := assembleFile(log.NewTestLogger(t), &stderr, infile, options{
		out: filepath.Join(dir, "out.ch8"),
	})
	assert.True(t, errors.Is(err, errAssembly))

	text := stderr.String()
	assert.Contains(t, text, "Literal exceeds allowed size")
	assert.Contains(t, text, "LD V0, 0x100")
	assert.Contains(t, text, "^~~~")

	_, err = os.Stat(filepath.Join(dir, "out.ch8"))
	assert.True(t, os.IsNotExist(err))
}

func TestPrintErrorsPlain(t *testing.T) {
	var out bytes.Buffer
	printErrors(&out, "big.c8s", nil, []error{&assembler.OversizedBinaryError{}})
	assert.True(t, strings.Contains(out.String(), "Binary exceeds allowed size"))
}
