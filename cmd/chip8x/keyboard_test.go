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
	"errors"
	"os"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/retroenv/retrogolib/assert"

	"github.com/lassandro/chip8x/pkg/runner"
)

func TestParseKeys(t *testing.T) {
	tests := []struct {
		Name   string
		Input  string
		Output runner.Command
	}{
		{"Empty", "", runner.CommandNone},
		{"Pause", "p", runner.CommandTogglePause},
		{"Space", " ", runner.CommandTogglePause},
		{"Quit", "q", runner.CommandQuit},
		{"Escape", "\x1b", runner.CommandQuit},
		{"Unmapped", "abc", runner.CommandNone},
		{"First Wins", "xqp", runner.CommandQuit},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assert.Equal(t, test.Output, parseKeys([]byte(test.Input)))
		})
	}
}

func TestKeyboardPoll(t *testing.T) {
	kb := &keyboard{reader: strings.NewReader("p")}

	cmd, err := kb.Poll()
	assert.NoError(t, err)
	assert.Equal(t, runner.CommandTogglePause, cmd)

	// Drained reader reports EOF, which is not an error for a raw terminal
	cmd, err = kb.Poll()
	assert.NoError(t, err)
	assert.Equal(t, runner.CommandNone, cmd)
}

func TestKeyboardReadError(t *testing.T) {
	errRead := errors.New("read failed")
	kb := &keyboard{reader: iotest.ErrReader(errRead)}

	_, err := kb.Poll()
	assert.True(t, errors.Is(err, errRead))
}

func TestKeyboardInterrupt(t *testing.T) {
	interrupts := make(chan os.Signal, 1)
	interrupts <- os.Interrupt

	broke := false
	kb := &keyboard{
		interrupts:  interrupts,
		onInterrupt: func() { broke = true },
	}

	cmd, err := kb.Poll()
	assert.NoError(t, err)
	assert.Equal(t, runner.CommandNone, cmd)
	assert.True(t, broke)
}

func TestKeyboardQuitFlag(t *testing.T) {
	quit := true
	kb := &keyboard{reader: strings.NewReader("p"), quit: &quit}

	cmd, err := kb.Poll()
	assert.NoError(t, err)
	assert.Equal(t, runner.CommandQuit, cmd)
}
