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
	"io"
	"os"

	"github.com/lassandro/chip8x/pkg/runner"
)

const keyEscape = 0x1b

// keyboard maps terminal key presses to runner commands. Reads must not block,
// which enterRawTerm guarantees for a terminal.
type keyboard struct {
	reader io.Reader
	buffer [32]byte

	// Interrupts are forwarded to onInterrupt from the run loop.
	interrupts  <-chan os.Signal
	onInterrupt func()

	// quit is set when the debug console asks to exit.
	quit *bool
}

func (kb *keyboard) Poll() (runner.Command, error) {
	select {
	case <-kb.interrupts:
		if kb.onInterrupt != nil {
			kb.onInterrupt()
		}
	default:
	}

	if kb.quit != nil && *kb.quit {
		return runner.CommandQuit, nil
	}

	if kb.reader == nil {
		return runner.CommandNone, nil
	}

	n, err := kb.reader.Read(kb.buffer[:])

	if err != nil && !errors.Is(err, io.EOF) {
		return runner.CommandNone, err
	}

	return parseKeys(kb.buffer[:n]), nil
}

// parseKeys returns the first command found in a batch of key presses.
func parseKeys(keys []byte) runner.Command {
	for _, key := range keys {
		switch key {
		case 'p', 'P', ' ':
			return runner.CommandTogglePause
		case 'q', 'Q', keyEscape:
			return runner.CommandQuit
		}
	}

	return runner.CommandNone
}
